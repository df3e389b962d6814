// Package transport defines the conversation message model and the client
// interface implemented by the model-serving backends.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block types for ContentBlock.Type.
const (
	BlockText  = "text"
	BlockImage = "image"
)

// ContentBlock is one typed fragment of a Turn's payload. Type selects which
// of the remaining fields are meaningful.
type ContentBlock struct {
	Type string

	// Text content (BlockText)
	Text string

	// Image content (BlockImage). Data holds the full file contents,
	// MediaType its sniffed MIME type.
	Data      []byte
	MediaType string
}

// Text returns a text content block.
func Text(s string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: s}
}

// Image returns an image content block for the given file contents. The MIME
// type is sniffed from the data.
func Image(data []byte) ContentBlock {
	return ContentBlock{
		Type:      BlockImage,
		Data:      data,
		MediaType: http.DetectContentType(data),
	}
}

// Turn is a single message exchanged within a conversation, attributed to
// either the user or the model.
type Turn struct {
	Role    Role
	Content []ContentBlock
}

// TextTurn returns a Turn holding a single text block.
func TextTurn(role Role, text string) Turn {
	return Turn{Role: role, Content: []ContentBlock{Text(text)}}
}

// Text returns the concatenated text of all text blocks in the turn.
func (t Turn) Text() string {
	var out string
	for _, b := range t.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// HasImage reports whether any block in the turn is an image.
func (t Turn) HasImage() bool {
	for _, b := range t.Content {
		if b.Type == BlockImage {
			return true
		}
	}
	return false
}

// Client performs chat completion round-trips against a specific
// model-serving backend.
type Client interface {
	// Name returns the name of the backing service, e.g. "vllm" or "openai".
	Name() string

	// Chat sends the ordered turns to the model and returns the raw response
	// body exactly as the backend produced it. Response shape handling is
	// the caller's concern; backends must not re-encode the payload.
	Chat(ctx context.Context, turns []Turn) (json.RawMessage, error)

	// IsHealthy returns whether the serving backend is reachable.
	IsHealthy() bool
}
