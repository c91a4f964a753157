package drive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store/token"
)

// fakeDrive emulates the slice of the Drive v3 API the adapter touches.
type fakeDrive struct {
	mu       sync.Mutex
	folderID string
	files    map[string]string // name -> id
	content  map[string]string // id -> body
	nextID   int

	lastAuth        string
	lastContentType string
	folderCreates   int
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		files:   make(map[string]string),
		content: make(map[string]string),
	}
}

func (d *fakeDrive) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/drive/v3/files", d.handleFiles)
	mux.HandleFunc("/drive/v3/files/", d.handleDownload)
	mux.HandleFunc("/upload/drive/v3/files", d.handleUpload)
	mux.HandleFunc("/upload/drive/v3/files/", d.handleUpload)
	return mux
}

func (d *fakeDrive) handleFiles(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAuth = r.Header.Get("Authorization")

	if r.Method == http.MethodPost {
		// Folder creation.
		var meta struct {
			Name     string `json:"name"`
			MimeType string `json:"mimeType"`
		}
		_ = json.NewDecoder(r.Body).Decode(&meta)
		d.folderID = "folder-1"
		d.folderCreates++
		json.NewEncoder(w).Encode(map[string]string{"id": d.folderID})
		return
	}

	query := r.URL.Query().Get("q")
	type file struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var found []file

	if strings.Contains(query, "application/vnd.google-apps.folder") {
		if d.folderID != "" {
			found = append(found, file{ID: d.folderID})
		}
	} else {
		name := extractName(query)
		if id, ok := d.files[name]; ok {
			found = append(found, file{ID: id, Name: name})
		}
	}
	json.NewEncoder(w).Encode(map[string]any{"files": found})
}

func (d *fakeDrive) handleDownload(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := strings.TrimPrefix(r.URL.Path, "/drive/v3/files/")
	body, ok := d.content[id]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	io.WriteString(w, body)
}

func (d *fakeDrive) handleUpload(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAuth = r.Header.Get("Authorization")
	d.lastContentType = r.Header.Get("Content-Type")

	raw, _ := io.ReadAll(r.Body)
	name, media := parseMultipartUpload(string(raw))

	if r.Method == http.MethodPatch {
		id := strings.TrimPrefix(r.URL.Path, "/upload/drive/v3/files/")
		d.content[id] = media
	} else {
		d.nextID++
		id := "file-" + strings.Repeat("x", d.nextID)
		d.files[name] = id
		d.content[id] = media
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func extractName(query string) string {
	start := strings.Index(query, "name='")
	if start < 0 {
		return ""
	}
	rest := query[start+len("name='"):]
	end := strings.Index(rest, "'")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// parseMultipartUpload pulls the metadata name and the media body out of the
// multipart/related payload without caring about boundaries.
func parseMultipartUpload(body string) (name, media string) {
	var meta struct {
		Name string `json:"name"`
	}
	if start := strings.Index(body, "{"); start >= 0 {
		if end := strings.Index(body[start:], "}"); end >= 0 {
			_ = json.Unmarshal([]byte(body[start:start+end+1]), &meta)
		}
	}

	parts := strings.Split(body, "\r\n\r\n")
	if len(parts) >= 3 {
		media = parts[2]
		if idx := strings.Index(media, "\r\n--"); idx >= 0 {
			media = media[:idx]
		}
	}
	return meta.Name, media
}

func (d *fakeDrive) seed(name, id, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.folderID == "" {
		d.folderID = "folder-1"
	}
	d.files[name] = id
	d.content[id] = body
}

func newTestClient(t *testing.T, fake *fakeDrive) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return New(Config{
		FolderName: "E-Genius5 AI",
		Tokens:     token.Static("test-token"),
		APIBase:    srv.URL,
		UploadBase: srv.URL,
	})
}

func TestLoadMissingFile(t *testing.T) {
	fake := newFakeDrive()
	fake.folderID = "folder-1"
	client := newTestClient(t, fake)

	_, err := client.Load(context.Background(), "chat_history.json")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadExistingFile(t *testing.T) {
	fake := newFakeDrive()
	fake.seed("chat_history.json", "file-1", `{"messages": []}`)
	client := newTestClient(t, fake)

	data, err := client.Load(context.Background(), "chat_history.json")
	require.NoError(t, err)
	require.JSONEq(t, `{"messages": []}`, string(data))
	require.Equal(t, "Bearer test-token", fake.lastAuth)
}

func TestSaveCreatesFolderAndFile(t *testing.T) {
	fake := newFakeDrive()
	client := newTestClient(t, fake)

	err := client.Save(context.Background(), "chat_history.json", []byte(`{"messages": []}`))
	require.NoError(t, err)

	require.Equal(t, 1, fake.folderCreates)
	require.Contains(t, fake.lastContentType, "multipart/related")

	data, err := client.Load(context.Background(), "chat_history.json")
	require.NoError(t, err)
	require.JSONEq(t, `{"messages": []}`, string(data))
}

func TestSaveReplacesExistingFile(t *testing.T) {
	fake := newFakeDrive()
	fake.seed("chat_history.json", "file-1", "old")
	client := newTestClient(t, fake)

	err := client.Save(context.Background(), "chat_history.json", []byte("new content"))
	require.NoError(t, err)

	data, err := client.Load(context.Background(), "chat_history.json")
	require.NoError(t, err)
	require.Equal(t, "new content", string(data))

	// No second file was created for the same name.
	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.files, 1)
}

func TestFolderIDIsCached(t *testing.T) {
	fake := newFakeDrive()
	client := newTestClient(t, fake)

	require.NoError(t, client.Save(context.Background(), "a.json", []byte("a")))
	require.NoError(t, client.Save(context.Background(), "b.json", []byte("b")))
	require.Equal(t, 1, fake.folderCreates)
}

func TestEscapeQueryValue(t *testing.T) {
	cases := map[string]string{
		"plain":            "plain",
		"it's":             `it\'s`,
		`back\slash`:       `back\\slash`,
		`trailing\`:        `trailing\\`,
		`quoted\' already`: `quoted\\\' already`,
	}
	for in, want := range cases {
		require.Equal(t, want, escapeQueryValue(in), "input %q", in)
	}
}

func TestMissingTokenSurfaces(t *testing.T) {
	fake := newFakeDrive()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := New(Config{
		FolderName: "E-Genius5 AI",
		Tokens:     token.Static(""),
		APIBase:    srv.URL,
	})

	_, err := client.Load(context.Background(), "chat_history.json")
	require.True(t, errors.Is(err, store.ErrNoToken))
}
