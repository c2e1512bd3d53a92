package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/pkg/errors"
)

// NotionClient fetches recent pages and their content blocks from Notion.
type NotionClient struct {
	token   string
	baseURL string
	version string
	http    *http.Client
}

// NewNotionClient creates a client from config.
func NewNotionClient(cfg *config.NotionConfig) *NotionClient {
	return &NotionClient{
		token:   cfg.Token,
		baseURL: cfg.BaseURL,
		version: cfg.Version,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *NotionClient) Source() Platform { return Notion }

type notionSearchResponse struct {
	Results []NotionPage `json:"results"`
}

type notionBlocksResponse struct {
	Results []NotionBlock `json:"results"`
}

// FetchRecent searches for pages, then loads each page's child blocks so the
// normalizer can flatten them into searchable text. A page whose blocks cannot
// be loaded is still returned with empty content rather than failing the batch.
func (c *NotionClient) FetchRecent(ctx context.Context, max int) ([]Record, error) {
	body := map[string]interface{}{
		"filter":    map[string]string{"property": "object", "value": "page"},
		"page_size": max,
	}
	var search notionSearchResponse
	if err := c.do(ctx, http.MethodPost, "/search", body, &search); err != nil {
		return nil, err
	}

	pages := search.Results
	if len(pages) > max {
		pages = pages[:max]
	}
	records := make([]Record, 0, len(pages))
	for i := range pages {
		page := &pages[i]
		var blocks notionBlocksResponse
		if err := c.do(ctx, http.MethodGet, "/blocks/"+page.ID+"/children", nil, &blocks); err == nil {
			page.Blocks = blocks.Results
		} else if ctx.Err() != nil {
			return nil, errors.Client("notion: fetch blocks cancelled", ctx.Err())
		}
		records = append(records, page)
	}
	return records, nil
}

func (c *NotionClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Client("notion: encode request", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Client("notion: build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", c.version)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Client("notion: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Client(fmt.Sprintf("notion: unexpected status %d for %s", resp.StatusCode, path), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Client("notion: decode response", err)
	}
	return nil
}
