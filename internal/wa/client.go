package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to the WhatsApp Cloud API: plain text messages and the
// two-step media flow (upload the file, then send by media id).
type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewClient(token, phoneNumberID, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:         token,
		phoneNumberID: phoneNumberID,
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
		logger:        logger,
	}
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
}

func (c *Client) mediaURL() string {
	return fmt.Sprintf("%s/%s/media", c.baseURL, c.phoneNumberID)
}

type apiResponse struct {
	ID       string `json:"id"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	_, err := c.postJSON(ctx, c.messagesURL(), payload)
	return err
}

// UploadMedia uploads a local file and returns the media id.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening media file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := writer.WriteField("type", mimeTypeFor(path)); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading media file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mediaURL(), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("upload returned no media id")
	}
	return resp.ID, nil
}

// MediaKind is the Cloud API message type used for a file.
type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindAudio    MediaKind = "audio"
	KindDocument MediaKind = "document"
)

// SendMediaByID sends previously uploaded media.
func (c *Client) SendMediaByID(ctx context.Context, to, mediaID string, kind MediaKind, caption string) error {
	media := map[string]string{"id": mediaID}
	// Audio messages do not support captions on the Cloud API.
	if caption != "" && kind != KindAudio {
		media["caption"] = caption
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              string(kind),
		string(kind):        media,
	}
	_, err := c.postJSON(ctx, c.messagesURL(), payload)
	return err
}

// SendMedia uploads a file and sends it, inferring the message kind from
// the file extension. Containers WhatsApp refuses inline are sent as
// documents.
func (c *Client) SendMedia(ctx context.Context, to, path, caption string) error {
	mediaID, err := c.UploadMedia(ctx, path)
	if err != nil {
		return err
	}
	return c.SendMediaByID(ctx, to, mediaID, KindFor(path), caption)
}

// KindFor infers the Cloud API message type from a filename.
func KindFor(path string) MediaKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov":
		return KindVideo
	case ".mp3", ".m4a", ".ogg", ".aac":
		return KindAudio
	case ".jpg", ".jpeg", ".png", ".webp":
		return KindImage
	default:
		return KindDocument
	}
}

func mimeTypeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		// Strip charset parameters the API does not expect.
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".jpg", ".jpeg", ".png":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func (c *Client) postJSON(ctx context.Context, url string, payload interface{}) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp api request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading whatsapp api response: %w", err)
	}

	var parsed apiResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("whatsapp api error",
			"status", resp.StatusCode,
			"message", parsed.Error.Message)
		return nil, fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, parsed.Error.Message)
	}
	return &parsed, nil
}
