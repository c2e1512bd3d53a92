// Package normalize maps platform-native records into the unified Message
// schema. Normalization is pure: the same record always yields the same
// Message; synchronized_at is stamped later by the store.
package normalize

import (
	"fmt"
	"time"

	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/internal/platform"
	"github.com/hyperjump/matome/pkg/errors"
)

// Record maps one native record into a Message. It fails with a
// NORMALIZATION error when the record lacks a stable source identifier or
// has an unrecognized shape.
func Record(rec platform.Record) (*models.Message, error) {
	switch r := rec.(type) {
	case *platform.ChatworkMessage:
		return chatworkMessage(r)
	case *platform.NotionPage:
		return notionPage(r)
	default:
		return nil, errors.Normalization(fmt.Sprintf("unrecognized record shape %T", rec))
	}
}

func chatworkMessage(m *platform.ChatworkMessage) (*models.Message, error) {
	if m.MessageID == "" {
		return nil, errors.Normalization("chatwork message has no message_id")
	}

	roomName := m.RoomName
	if roomName == "" {
		roomName = fmt.Sprintf("room_%d", m.RoomID)
	}
	authorName := m.Account.Name
	if authorName == "" {
		authorName = "Unknown"
	}

	msg := &models.Message{
		Platform: string(platform.Chatwork),
		// Room id is part of the key: message ids are only unique per room.
		PlatformID:  fmt.Sprintf("%d_%s", m.RoomID, m.MessageID),
		Title:       roomName,
		Content:     m.Body,
		AuthorName:  authorName,
		AuthorID:    fmt.Sprintf("%d", m.Account.AccountID),
		ChannelName: roomName,
		ChannelID:   fmt.Sprintf("%d", m.RoomID),
		Metadata: map[string]interface{}{
			"room_id": m.RoomID,
		},
	}
	if m.SendTime > 0 {
		t := time.Unix(m.SendTime, 0).UTC()
		msg.CreatedAt = &t
	}
	if m.UpdateTime > 0 {
		t := time.Unix(m.UpdateTime, 0).UTC()
		msg.UpdatedAt = &t
	}
	return msg, nil
}

func notionPage(p *platform.NotionPage) (*models.Message, error) {
	if p.ID == "" {
		return nil, errors.Normalization("notion page has no id")
	}

	title := notionTitle(p)
	if title == "" {
		title = "page_" + shortID(p.ID)
	}
	authorName := "Notion User"
	authorID := ""
	if p.CreatedBy.ID != "" {
		authorName = "User_" + shortID(p.CreatedBy.ID)
		authorID = p.CreatedBy.ID
	}

	msg := &models.Message{
		Platform:    string(platform.Notion),
		PlatformID:  p.ID,
		Title:       title,
		Content:     FlattenBlocks(p.Blocks),
		AuthorName:  authorName,
		AuthorID:    authorID,
		ChannelName: "Notion Pages",
		ChannelID:   "notion_pages",
	}
	if p.URL != "" {
		msg.Metadata = map[string]interface{}{"url": p.URL}
	}
	if t, err := time.Parse(time.RFC3339, p.CreatedTime); err == nil {
		tt := t.UTC()
		msg.CreatedAt = &tt
	}
	if t, err := time.Parse(time.RFC3339, p.LastEditedTime); err == nil {
		tt := t.UTC()
		msg.UpdatedAt = &tt
	}
	return msg, nil
}

// notionTitle returns the page's title property text, or "" when none exists.
func notionTitle(p *platform.NotionPage) string {
	for _, prop := range p.Properties {
		if prop.Type == "title" && len(prop.Title) > 0 {
			return prop.Title[0].PlainText
		}
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
