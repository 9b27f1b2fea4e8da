// Package gemini is a minimal client for the Gemini generateContent endpoint.
//
// Every call returns a Result; failures never surface as Go errors. Callers
// render a failed Result with String, which yields the "ERROR: ..." sentinel.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/hpungsan/aireach/internal/config"
	"github.com/hpungsan/aireach/internal/logging"
	"github.com/hpungsan/aireach/internal/secrets"
)

// ImageMimeType is declared for every inline image.
const ImageMimeType = "image/jpeg"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://generativelanguage.googleapis.com/v1beta
	BaseURL string

	// Model is used for every request
	Model string

	// Timeout of 0 leaves the transport default in place
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout (tests)
	HTTPClient *http.Client
}

// ConfigFrom builds a client Config from application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.RequestTimeout(),
	}
}

// Client sends prompts, optionally with an image, to one fixed model.
type Client struct {
	creds      secrets.Provider
	baseURL    string
	model      string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a Client. Empty BaseURL and Model fall back to the defaults.
func New(creds secrets.Provider, cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = config.DefaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		creds:      creds,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		log:        logging.With().Str("component", "gemini").Str("model", model).Logger(),
	}
}

// Model returns the model every request is sent to.
func (c *Client) Model() string {
	return c.model
}

// SendText sends a single text prompt.
func (c *Client) SendText(ctx context.Context, prompt string) Result {
	return c.invokeModel(ctx, []Part{TextPart(prompt)})
}

// SendVision sends a prompt followed by a base64-encoded JPEG image.
func (c *Client) SendVision(ctx context.Context, prompt string, image []byte) Result {
	return c.invokeModel(ctx, []Part{
		TextPart(prompt),
		{InlineData: &inlineData{
			MimeType: ImageMimeType,
			Data:     base64.StdEncoding.EncodeToString(image),
		}},
	})
}

// invokeModel performs one generateContent request and extracts the first
// text part of the first candidate.
func (c *Client) invokeModel(ctx context.Context, parts []Part) Result {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return Failed(err.Error())
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.creds.Credential()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Failed(transportMessage(err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := transportMessage(err)
		c.log.Debug().Str("reason", msg).Dur("elapsed", time.Since(start)).Msg("model request failed")
		return Failed(msg)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Failed(transportMessage(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ev := c.log.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start))
		var parsed generateResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
			ev = ev.Str("api_status", parsed.Error.Status).Str("api_message", parsed.Error.Message)
		}
		ev.Msg("model returned non-success status")
		return Failed(NoResponse)
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.log.Debug().Err(err).Msg("model response not decodable")
		return Failed(err.Error())
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		c.log.Debug().Int("candidates", len(parsed.Candidates)).Msg("model returned no completion")
		return Failed(NoResponse)
	}

	c.log.Debug().Dur("elapsed", time.Since(start)).Msg("model request completed")
	return Ok(parsed.Candidates[0].Content.Parts[0].Text)
}

// transportMessage renders a transport error without the request URL, which
// carries the credential as a query parameter.
func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}
