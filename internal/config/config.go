package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"gopkg.in/yaml.v3"
)

// Defaults mirrored from the remote config skeleton.
const (
	DefaultModel       = "arcee-ai/trinity-large-preview-free"
	DefaultDailyLimit  = 50
	DefaultPollEvery   = 3 * time.Second
	DefaultSessionDays = 30
	DefaultFolderName  = "E-Genius5 AI"
)

// Config aggregates all service settings.
type Config struct {
	Server ServerConfig
	Drive  DriveConfig
	AI     AIConfig
	Chat   ChatConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// DriveConfig describes the remote store and local state location.
type DriveConfig struct {
	FolderName  string
	AccessToken string
	StateDir    string
}

// ChatConfig carries the sync engine knobs.
type ChatConfig struct {
	PollInterval time.Duration
	DailyLimit   int
	SessionDays  int
}

// AIConfig describes the completion gateway. OpenRouter is the default
// backend; when Ark credentials are present the gateway runs on the Ark
// model instead.
type AIConfig struct {
	Model string

	OpenRouterBaseURL string
	OpenRouterReferer string
	AppName           string

	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkModel     string
	ArkBaseURL   string
	ArkRegion    string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
}

// ArkEnabled reports whether the Ark credentials are complete enough to back
// the gateway with the eino chat model.
func (c AIConfig) ArkEnabled() bool {
	return c.ArkModel != "" && (c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != ""))
}

// NewArkChatModel builds the eino chat model from the Ark settings.
func (c AIConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.ArkEnabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY+ARK_MODEL or AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}
	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      c.ArkAPIKey,
		AccessKey:   c.ArkAccessKey,
		SecretKey:   c.ArkSecretKey,
		Model:       c.ArkModel,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

// fileConfig is the optional YAML overlay loaded from CONFIG_FILE. Environment
// variables win over file values.
type fileConfig struct {
	Port           string `yaml:"port"`
	FolderName     string `yaml:"drive_folder"`
	StateDir       string `yaml:"state_dir"`
	Model          string `yaml:"ai_model"`
	DailyLimit     *int   `yaml:"daily_limit"`
	PollEveryMS    *int   `yaml:"poll_interval_ms"`
	SessionDays    *int   `yaml:"session_days"`
	AppName        string `yaml:"app_name"`
	OpenRouterBase string `yaml:"openrouter_base_url"`
}

// Load assembles the configuration from the optional YAML overlay and the
// environment.
func Load() (*Config, error) {
	overlay, err := loadFileOverlay()
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig(overlay)
	if err != nil {
		return nil, err
	}

	driveCfg, err := loadDriveConfig(overlay)
	if err != nil {
		return nil, err
	}

	aiCfg, err := loadAIConfig(overlay)
	if err != nil {
		return nil, err
	}

	chatCfg, err := loadChatConfig(overlay)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Drive: driveCfg, AI: aiCfg, Chat: chatCfg}, nil
}

func loadFileOverlay() (*fileConfig, error) {
	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		return &fileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var overlay fileConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &overlay, nil
}

func loadServerConfig(overlay *fileConfig) (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = strings.TrimSpace(overlay.Port)
	}
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

func loadDriveConfig(overlay *fileConfig) (DriveConfig, error) {
	folder := getEnvOrDefault("DRIVE_FOLDER", overlay.FolderName)
	if folder == "" {
		folder = DefaultFolderName
	}

	stateDir := getEnvOrDefault("STATE_DIR", overlay.StateDir)
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DriveConfig{}, fmt.Errorf("resolve state dir: %w", err)
		}
		stateDir = filepath.Join(home, ".egenius")
	}

	return DriveConfig{
		FolderName:  folder,
		AccessToken: strings.TrimSpace(os.Getenv("DRIVE_ACCESS_TOKEN")),
		StateDir:    stateDir,
	}, nil
}

func loadChatConfig(overlay *fileConfig) (ChatConfig, error) {
	pollMS, err := parseOptionalIntEnv("POLL_INTERVAL_MS")
	if err != nil {
		return ChatConfig{}, err
	}
	if pollMS == nil {
		pollMS = overlay.PollEveryMS
	}
	poll := DefaultPollEvery
	if pollMS != nil && *pollMS > 0 {
		poll = time.Duration(*pollMS) * time.Millisecond
	}

	limit, err := parseOptionalIntEnv("DAILY_LIMIT")
	if err != nil {
		return ChatConfig{}, err
	}
	if limit == nil {
		limit = overlay.DailyLimit
	}
	dailyLimit := DefaultDailyLimit
	if limit != nil && *limit > 0 {
		dailyLimit = *limit
	}

	days, err := parseOptionalIntEnv("SESSION_DAYS")
	if err != nil {
		return ChatConfig{}, err
	}
	if days == nil {
		days = overlay.SessionDays
	}
	sessionDays := DefaultSessionDays
	if days != nil && *days > 0 {
		sessionDays = *days
	}

	return ChatConfig{
		PollInterval: poll,
		DailyLimit:   dailyLimit,
		SessionDays:  sessionDays,
	}, nil
}

func loadAIConfig(overlay *fileConfig) (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}
	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	model := getEnvOrDefault("AI_MODEL", overlay.Model)
	if model == "" {
		model = DefaultModel
	}

	openRouterBase := getEnvOrDefault("OPENROUTER_BASE_URL", overlay.OpenRouterBase)
	if openRouterBase == "" {
		openRouterBase = "https://openrouter.ai/api/v1"
	}

	appName := getEnvOrDefault("APP_NAME", overlay.AppName)
	if appName == "" {
		appName = "E-Genius5 AI"
	}

	return AIConfig{
		Model:             model,
		OpenRouterBaseURL: openRouterBase,
		OpenRouterReferer: strings.TrimSpace(os.Getenv("OPENROUTER_REFERER")),
		AppName:           appName,
		ArkAPIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkModel:          strings.TrimSpace(os.Getenv("ARK_MODEL")),
		ArkBaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:       temperature,
		TopP:              topP,
		MaxTokens:         maxTokens,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(defaultValue)
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
