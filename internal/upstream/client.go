// Package upstream wraps the Gemini SDK behind a typed boundary.
//
// The raw SDK stream is classified into Fragment values before any business
// logic touches it, and the client handle is constructed once and passed in
// explicitly wherever generation is needed.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/lumenhq/lumen/internal/config"
)

// Client is an explicit handle to the Gemini generation and file APIs.
type Client struct {
	g       *genai.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Call is one prepared generation request.
type Call struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// NewClient builds the Gemini client from config.
func NewClient(ctx context.Context, log *slog.Logger, cfg config.GeminiConfig) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	g, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		g:       g,
		timeout: timeout,
		logger:  log.With(slog.String("component", "upstream")),
	}, nil
}

// Stream issues a streaming generation call and invokes fn for every
// classified fragment, in upstream order. A non-nil error from fn stops the
// stream and is returned unchanged.
func (c *Client) Stream(ctx context.Context, call Call, fn func(Fragment) error) error {
	for resp, err := range c.g.Models.GenerateContentStream(ctx, call.Model, call.Contents, call.Config) {
		if err != nil {
			return fmt.Errorf("generate stream: %w", err)
		}
		for _, frag := range Classify(resp) {
			if err := fn(frag); err != nil {
				return err
			}
		}
	}
	return nil
}

// Generate issues a single non-streaming call and returns the response text.
func (c *Client) Generate(ctx context.Context, call Call) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.g.Models.GenerateContent(ctx, call.Model, call.Contents, call.Config)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Text(), nil
}

// UploadFile writes bytes to the provider's ephemeral file store and returns
// the continuity handle (file URI). Files expire on the provider side after
// roughly 48 hours.
func (c *Client) UploadFile(ctx context.Context, reader io.Reader, mime string) (string, error) {
	file, err := c.g.Files.Upload(ctx, reader, &genai.UploadFileConfig{MIMEType: mime})
	if err != nil {
		return "", fmt.Errorf("upload provider file: %w", err)
	}
	if file == nil || file.URI == "" {
		return "", fmt.Errorf("upload provider file: empty uri")
	}
	return file.URI, nil
}
