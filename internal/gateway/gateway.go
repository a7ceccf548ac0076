// Package gateway adapts chat-platform message events into dispatcher calls.
// The platform SDK itself stays behind the Event/Sender contract; this
// package owns mention stripping, content-part assembly, media resolution,
// and mapping terminal failures to a single user-visible notice.
package gateway

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"relaybot/internal/media"
	"relaybot/internal/relay"
	"relaybot/internal/types"
)

// FallbackNotice is the single chunk shown for any terminal failure.
const FallbackNotice = "I couldn't generate a response. Please try again in a moment."

// Attachment is a media reference carried by an inbound message.
type Attachment struct {
	URL         string
	ContentType string // MIME type, e.g. "image/png", "video/mp4"
}

// Event is one inbound message from the chat platform.
type Event struct {
	Key                types.ConversationKey
	Text               string
	Attachments        []Attachment
	IsReplyToAssistant bool
	ReferencedText     string // assistant text the user replied to, if any
}

// Sender delivers output back to the channel an event came from. SendReply
// attaches the message to the triggering turn; Send is a plain follow-up.
type Sender interface {
	SendReply(ctx context.Context, text string) error
	Send(ctx context.Context, text string) error
	Typing(ctx context.Context) error
}

// Handler wires events to the dispatcher.
type Handler struct {
	dispatcher *relay.Dispatcher
	resolver   *media.Resolver

	// mention is the raw mention token ("<@botid>") replaced with a
	// readable name before the text reaches the model.
	mention     string
	mentionName string

	logger *zap.Logger
}

// NewHandler builds a handler. resolver may be nil to disable short-link
// resolution.
func NewHandler(dispatcher *relay.Dispatcher, resolver *media.Resolver, mention, mentionName string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dispatcher:  dispatcher,
		resolver:    resolver,
		mention:     mention,
		mentionName: mentionName,
		logger:      logger,
	}
}

// ShouldHandle reports whether an event triggers the relay: a mention, an
// attachment, or a reply to one of the assistant's messages.
func (h *Handler) ShouldHandle(ev Event) bool {
	if h.mention != "" && strings.Contains(ev.Text, h.mention) {
		return true
	}
	return len(ev.Attachments) > 0 || ev.IsReplyToAssistant
}

// HandleMessage relays one inbound message and sends the reply chunks: the
// first as a reply to the triggering message, the rest as follow-ups. Every
// terminal failure becomes exactly one fallback notice.
func (h *Handler) HandleMessage(ctx context.Context, ev Event, sender Sender) error {
	parts := h.buildParts(ctx, ev)

	chunks, err := h.dispatcher.Submit(ctx, ev.Key, parts, relay.SubmitOptions{
		ReferencedReply: ev.ReferencedText,
		Notify:          sender.Typing,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Warn("turn submission failed",
			zap.Stringer("key", ev.Key),
			zap.Error(err))
		return sender.SendReply(ctx, FallbackNotice)
	}

	for i, c := range chunks {
		if i == 0 {
			err = sender.SendReply(ctx, c)
		} else {
			err = sender.Send(ctx, c)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// HandleReset clears one or all histories; a zero key clears everything.
func (h *Handler) HandleReset(key types.ConversationKey) {
	if key == (types.ConversationKey{}) {
		h.dispatcher.ResetAll()
		return
	}
	h.dispatcher.Reset(key)
}

func (h *Handler) buildParts(ctx context.Context, ev Event) []types.ContentPart {
	text := ev.Text
	if h.mention != "" && h.mentionName != "" {
		text = strings.ReplaceAll(text, h.mention, h.mentionName)
	}

	parts := []types.ContentPart{types.TextPart(text)}
	for _, a := range ev.Attachments {
		switch {
		case strings.HasPrefix(a.ContentType, "image/"):
			parts = append(parts, types.ImagePart(a.URL))
		case strings.HasPrefix(a.ContentType, "video/"):
			parts = append(parts, types.VideoPart(a.URL))
		}
	}

	if h.resolver != nil {
		for _, direct := range h.resolver.Resolve(ctx, media.FindLinks(ev.Text)) {
			parts = append(parts, types.ImagePart(direct))
		}
	}
	return parts
}
