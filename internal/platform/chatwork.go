package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/pkg/errors"
)

// ChatworkClient fetches recent messages from Chatwork rooms.
type ChatworkClient struct {
	token    string
	baseURL  string
	maxRooms int
	http     *http.Client
}

// NewChatworkClient creates a client from config. The HTTP client carries its
// own timeout as a backstop; callers still bound calls with a context.
func NewChatworkClient(cfg *config.ChatworkConfig) *ChatworkClient {
	return &ChatworkClient{
		token:    cfg.Token,
		baseURL:  cfg.BaseURL,
		maxRooms: cfg.MaxRooms,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ChatworkClient) Source() Platform { return Chatwork }

type chatworkRoom struct {
	RoomID int64  `json:"room_id"`
	Name   string `json:"name"`
}

// FetchRecent lists rooms and pulls the latest messages from each, newest
// rooms first as the API returns them, until max records are collected.
func (c *ChatworkClient) FetchRecent(ctx context.Context, max int) ([]Record, error) {
	var rooms []chatworkRoom
	if err := c.get(ctx, "/rooms", &rooms); err != nil {
		return nil, err
	}
	if c.maxRooms > 0 && len(rooms) > c.maxRooms {
		rooms = rooms[:c.maxRooms]
	}

	var records []Record
	for _, room := range rooms {
		if len(records) >= max {
			break
		}
		var messages []ChatworkMessage
		path := fmt.Sprintf("/rooms/%d/messages?force=1", room.RoomID)
		if err := c.get(ctx, path, &messages); err != nil {
			return nil, err
		}
		// API returns oldest first; keep the newest that fit the budget.
		remaining := max - len(records)
		if len(messages) > remaining {
			messages = messages[len(messages)-remaining:]
		}
		for i := range messages {
			messages[i].RoomID = room.RoomID
			messages[i].RoomName = room.Name
			records = append(records, &messages[i])
		}
	}
	return records, nil
}

func (c *ChatworkClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Client("chatwork: build request", err)
	}
	req.Header.Set("X-ChatWorkToken", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Client("chatwork: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Client(fmt.Sprintf("chatwork: unexpected status %d for %s", resp.StatusCode, path), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Client("chatwork: decode response", err)
	}
	return nil
}
