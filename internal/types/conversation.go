// Package types holds the shared conversation model and error taxonomy
// used across the relay. It has no dependencies on other internal packages.
package types

import "fmt"

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType discriminates the content part variants.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
	PartVideoURL PartType = "video_url"
)

// ContentPart is one element of a turn's content: either inline text or a
// reference to hosted media.
type ContentPart struct {
	Type PartType
	Text string // set when Type == PartText
	URL  string // set for media parts
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an image reference part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImageURL, URL: url}
}

// VideoPart builds a video reference part.
func VideoPart(url string) ContentPart {
	return ContentPart{Type: PartVideoURL, URL: url}
}

// Turn is one message in a conversation. Turns are immutable once created;
// history mutation is always append/evict at the history level.
type Turn struct {
	Role    Role
	Content []ContentPart
}

// SystemTurn builds a system turn with a single text part.
func SystemTurn(prompt string) Turn {
	return Turn{Role: RoleSystem, Content: []ContentPart{TextPart(prompt)}}
}

// UserTurn builds a user turn from content parts.
func UserTurn(parts ...ContentPart) Turn {
	return Turn{Role: RoleUser, Content: parts}
}

// AssistantTurn builds an assistant turn with a single text part.
func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Content: []ContentPart{TextPart(text)}}
}

// Text returns the concatenated text parts of the turn.
func (t Turn) Text() string {
	var out string
	for _, p := range t.Content {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ConversationKey scopes one bounded history. A key is a channel id plus the
// user talking in it, so two users in the same channel keep separate contexts.
// Value equality; usable as a map key.
type ConversationKey struct {
	ChannelID string
	UserID    string
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%s/%s", k.ChannelID, k.UserID)
}
