// Package drive adapts the Google Drive v3 REST API to the store.BlobStore
// capability. All blobs live in one named folder which is looked up lazily
// and created on first use.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
)

const (
	defaultAPIBase    = "https://www.googleapis.com"
	folderMimeType    = "application/vnd.google-apps.folder"
	jsonMimeType      = "application/json"
	defaultHTTPExpiry = 30 * time.Second
)

// Config carries the adapter settings. APIBase and UploadBase exist so tests
// can point the client at a local server; production leaves them empty.
type Config struct {
	FolderName string
	Tokens     store.TokenProvider
	Timeout    time.Duration
	APIBase    string
	UploadBase string
}

// Client is a BlobStore over one Drive folder.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex
	folderID string
}

// New builds a Drive-backed blob store.
func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.UploadBase == "" {
		cfg.UploadBase = cfg.APIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPExpiry
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ store.BlobStore = (*Client)(nil)

// Load fetches the named blob's content, or store.ErrNotFound when no file
// with that name exists inside the folder.
func (c *Client) Load(ctx context.Context, name string) ([]byte, error) {
	folderID, err := c.ensureFolder(ctx)
	if err != nil {
		return nil, err
	}

	fileID, err := c.findFile(ctx, folderID, name)
	if err != nil {
		return nil, err
	}
	if fileID == "" {
		return nil, store.ErrNotFound
	}

	endpoint := fmt.Sprintf("%s/drive/v3/files/%s?alt=media", c.cfg.APIBase, url.PathEscape(fileID))
	body, err := c.doRequest(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	return body, nil
}

// Save uploads the blob, replacing an existing file of the same name or
// creating a new one inside the folder.
func (c *Client) Save(ctx context.Context, name string, data []byte) error {
	folderID, err := c.ensureFolder(ctx)
	if err != nil {
		return err
	}

	fileID, err := c.findFile(ctx, folderID, name)
	if err != nil {
		return err
	}

	metadata := map[string]any{
		"name":     name,
		"mimeType": jsonMimeType,
	}
	var method, endpoint string
	if fileID != "" {
		method = http.MethodPatch
		endpoint = fmt.Sprintf("%s/upload/drive/v3/files/%s?uploadType=multipart", c.cfg.UploadBase, url.PathEscape(fileID))
	} else {
		method = http.MethodPost
		endpoint = fmt.Sprintf("%s/upload/drive/v3/files?uploadType=multipart", c.cfg.UploadBase)
		metadata["parents"] = []string{folderID}
	}

	body, contentType, err := buildMultipart(metadata, data)
	if err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}

	if _, err := c.doRequest(ctx, method, endpoint, contentType, body); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

// ensureFolder resolves the configured folder id, creating the folder when it
// does not exist yet. The id is cached for the client's lifetime.
func (c *Client) ensureFolder(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.folderID != "" {
		return c.folderID, nil
	}

	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false",
		escapeQueryValue(c.cfg.FolderName), folderMimeType)
	files, err := c.listFiles(ctx, query)
	if err != nil {
		return "", fmt.Errorf("find folder %q: %w", c.cfg.FolderName, err)
	}
	if len(files) > 0 {
		c.folderID = files[0].ID
		log.Printf("[drive] using folder %q id=%s", c.cfg.FolderName, c.folderID)
		return c.folderID, nil
	}

	id, err := c.createFolder(ctx)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", c.cfg.FolderName, err)
	}
	c.folderID = id
	log.Printf("[drive] created folder %q id=%s", c.cfg.FolderName, c.folderID)
	return c.folderID, nil
}

func (c *Client) createFolder(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"name":     c.cfg.FolderName,
		"mimeType": folderMimeType,
	})
	if err != nil {
		return "", err
	}

	endpoint := c.cfg.APIBase + "/drive/v3/files?fields=id"
	body, err := c.doRequest(ctx, http.MethodPost, endpoint, jsonMimeType, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create response carried no id")
	}
	return created.ID, nil
}

// findFile returns the id of the named file inside the folder, or "" when it
// does not exist.
func (c *Client) findFile(ctx context.Context, folderID, name string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false",
		escapeQueryValue(name), folderID)
	files, err := c.listFiles(ctx, query)
	if err != nil {
		return "", fmt.Errorf("find file %q: %w", name, err)
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[0].ID, nil
}

type driveFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) listFiles(ctx context.Context, query string) ([]driveFile, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id, name)")
	params.Set("spaces", "drive")

	endpoint := c.cfg.APIBase + "/drive/v3/files?" + params.Encode()
	body, err := c.doRequest(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}

	var listing struct {
		Files []driveFile `json:"files"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return listing.Files, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint, contentType string, body io.Reader) ([]byte, error) {
	token, err := c.cfg.Tokens.ValidToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("drive api status %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}
	return payload, nil
}

// buildMultipart assembles the multipart/related upload body: a JSON metadata
// part followed by the media part.
func buildMultipart(metadata map[string]any, data []byte) (io.Reader, string, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", jsonMimeType+"; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, "", err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", jsonMimeType)
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	contentType := "multipart/related; boundary=" + writer.Boundary()
	return &buf, contentType, nil
}

// escapeQueryValue escapes a literal for a Drive query string. Backslashes
// must be doubled before quotes are escaped, or a trailing backslash would
// swallow the closing quote.
func escapeQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, "'", `\'`)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
