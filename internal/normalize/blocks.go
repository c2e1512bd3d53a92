package normalize

import (
	"fmt"
	"strings"

	"github.com/hyperjump/matome/internal/platform"
)

// FlattenBlocks turns a page's content blocks into one searchable string,
// order preserved, logical segments separated by blank lines. Unsupported
// block kinds are skipped, not errored.
func FlattenBlocks(blocks []platform.NotionBlock) string {
	var segments []string
	for _, block := range blocks {
		if seg := flattenBlock(block); seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "\n\n")
}

func flattenBlock(block platform.NotionBlock) string {
	switch block.Type {
	case "paragraph":
		return richText(block.Paragraph)
	case "heading_1":
		return prefix("# ", richText(block.Heading1))
	case "heading_2":
		return prefix("## ", richText(block.Heading2))
	case "heading_3":
		return prefix("### ", richText(block.Heading3))
	case "bulleted_list_item":
		return prefix("• ", richText(block.BulletedListItem))
	case "numbered_list_item":
		return prefix("1. ", richText(block.NumberedListItem))
	case "to_do":
		if block.ToDo == nil {
			return ""
		}
		text := joinRichText(block.ToDo.RichText)
		if text == "" {
			return ""
		}
		box := "☐"
		if block.ToDo.Checked {
			box = "☑"
		}
		return box + " " + text
	case "code":
		if block.Code == nil {
			return ""
		}
		text := joinRichText(block.Code.RichText)
		if text == "" {
			return ""
		}
		lang := block.Code.Language
		if lang == "" {
			lang = "plain"
		}
		return fmt.Sprintf("```%s\n%s\n```", lang, text)
	case "quote":
		return prefix("> ", richText(block.Quote))
	default:
		return ""
	}
}

func richText(t *platform.NotionBlockText) string {
	if t == nil {
		return ""
	}
	return joinRichText(t.RichText)
}

func joinRichText(parts []platform.NotionRichText) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.PlainText)
	}
	return strings.TrimSpace(b.String())
}

func prefix(marker, text string) string {
	if text == "" {
		return ""
	}
	return marker + text
}
