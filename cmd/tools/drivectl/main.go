// drivectl is an operator tool for poking the remote store directly: dump the
// history document, inspect the daily counter, write the config skeleton, or
// cache a freshly acquired access token.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/config"
	chatmodel "github.com/ermakartekovec-star/E-Genius5-AI/internal/model/chat"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/model/remoteconfig"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store/drive"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store/token"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: no .env file, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	cmd := flag.String("cmd", "", "command: dump | stats | init-config | save-token")
	tok := flag.String("token", "", "access token for save-token")
	expires := flag.Int64("expires", 3600, "token lifetime in seconds for save-token")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fileTokens := token.NewFileProvider(cfg.Drive.StateDir, nil)

	if *cmd == "save-token" {
		if *tok == "" {
			log.Fatal("save-token requires -token")
		}
		if err := fileTokens.Store(*tok, *expires); err != nil {
			log.Fatalf("failed to cache token: %v", err)
		}
		log.Printf("token cached under %s, expires in %ds", cfg.Drive.StateDir, *expires)
		return
	}

	var tokens store.TokenProvider = fileTokens
	if cfg.Drive.AccessToken != "" {
		tokens = token.Static(cfg.Drive.AccessToken)
	}
	blobs := drive.New(drive.Config{
		FolderName: cfg.Drive.FolderName,
		Tokens:     tokens,
		Timeout:    *timeout,
	})

	switch *cmd {
	case "dump":
		data, err := blobs.Load(ctx, chatmodel.HistoryFileName)
		if err != nil {
			log.Fatalf("failed to load %s: %v", chatmodel.HistoryFileName, err)
		}
		os.Stdout.Write(data)
		fmt.Println()
	case "stats":
		data, err := blobs.Load(ctx, chatmodel.HistoryFileName)
		if err != nil {
			log.Fatalf("failed to load %s: %v", chatmodel.HistoryFileName, err)
		}
		doc, status := chatmodel.DecodeDocument(data)
		if status != chatmodel.DocOK {
			log.Fatalf("history document is %s", status)
		}
		today := chatmodel.DateKey(time.Now())
		fmt.Printf("messages: %d\n", len(doc.Messages))
		fmt.Printf("stats date: %s (today: %s)\n", doc.DailyStats.Date, today)
		fmt.Printf("ai requests today: %d\n", doc.CountForDate(today))
	case "init-config":
		skeleton := remoteconfig.Default(cfg.AI.Model, cfg.Chat.DailyLimit, cfg.Chat.SessionDays)
		payload, err := remoteconfig.Encode(skeleton)
		if err != nil {
			log.Fatalf("failed to encode config skeleton: %v", err)
		}
		if err := blobs.Save(ctx, remoteconfig.FileName, payload); err != nil {
			log.Fatalf("failed to write %s: %v", remoteconfig.FileName, err)
		}
		log.Printf("%s written, fill in passwords and the openrouter key by hand", remoteconfig.FileName)
	default:
		flag.Usage()
		log.Fatal("specify -cmd=dump, -cmd=stats, -cmd=init-config or -cmd=save-token")
	}
}
