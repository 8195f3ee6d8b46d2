// Package unstructured is a client for the Unstructured partition API, used
// as the optional structural parser of the ingestion pipeline. It turns a
// PDF into layout elements (tables, figure captions, inline images).
package unstructured

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/ingest"
)

// partitionPath is the partition endpoint, relative to the API base URL.
const partitionPath = "/general/v0/general"

// defaultStrategy asks the service for full layout analysis. Slower than
// "fast" but the only strategy that detects tables and figures reliably.
const defaultStrategy = "hi_res"

// Client calls the Unstructured partition API. Safe for concurrent use.
type Client struct {
	baseURL  string
	apiKey   string
	strategy string
	client   *http.Client
	log      *slog.Logger
}

// New returns a Client for the given API base URL. apiKey may be empty for
// self-hosted deployments without auth.
func New(baseURL, apiKey string, log *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		strategy: defaultStrategy,
		// hi_res partitioning of a large report can take minutes.
		client: &http.Client{Timeout: 120 * time.Second},
		log:    log,
	}
}

// NewFromEnv returns a Client configured from UNSTRUCTURED_API_URL and
// UNSTRUCTURED_API_KEY, or nil when no URL is set. Callers must treat a nil
// *Client as "capability unavailable" and skip structural parsing.
func NewFromEnv(log *slog.Logger) *Client {
	url := os.Getenv("UNSTRUCTURED_API_URL")
	if url == "" {
		return nil
	}
	return New(url, os.Getenv("UNSTRUCTURED_API_KEY"), log)
}

// element is the wire shape of one partition result entry.
type element struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber  int    `json:"page_number"`
		ImageBase64 string `json:"image_base64"`
	} `json:"metadata"`
}

// Parse uploads the PDF at pdfPath and returns the detected layout elements.
func (c *Client) Parse(ctx context.Context, pdfPath string) ([]ingest.Element, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("unstructured: open %s: %w", pdfPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filepath.Base(pdfPath))
	if err != nil {
		return nil, fmt.Errorf("unstructured: build request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("unstructured: read %s: %w", pdfPath, err)
	}
	if err := mw.WriteField("strategy", c.strategy); err != nil {
		return nil, fmt.Errorf("unstructured: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("unstructured: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+partitionPath, &body)
	if err != nil {
		return nil, fmt.Errorf("unstructured: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("unstructured-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unstructured: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unstructured: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var raw []element
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("unstructured: decode response: %w", err)
	}

	elements := make([]ingest.Element, 0, len(raw))
	for _, el := range raw {
		out := ingest.Element{
			Category: el.Type,
			Text:     el.Text,
			Page:     el.Metadata.PageNumber,
		}
		if el.Metadata.ImageBase64 != "" {
			data, err := base64.StdEncoding.DecodeString(el.Metadata.ImageBase64)
			if err != nil {
				c.log.Warn("unstructured: undecodable image payload",
					slog.String("type", el.Type),
					slog.Int("page", el.Metadata.PageNumber),
				)
			} else {
				out.Image = data
			}
		}
		elements = append(elements, out)
	}
	return elements, nil
}
