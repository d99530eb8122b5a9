// Package chat orchestrates one conversation turn: variant resolution,
// attachment resolution, history compaction, the supervised stream, and
// post-stream persistence and suggestions.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/lumenhq/lumen/internal/attachment"
	"github.com/lumenhq/lumen/internal/history"
	"github.com/lumenhq/lumen/internal/router"
	"github.com/lumenhq/lumen/internal/stream"
	"github.com/lumenhq/lumen/internal/upstream"
	"github.com/lumenhq/lumen/internal/variant"
)

// ErrInvalidRequest wraps every pre-stream validation failure so handlers can
// reject before any streaming header is written.
var ErrInvalidRequest = errors.New("invalid chat request")

// Settings are per-request tuning knobs from the client.
type Settings struct {
	SystemInstruction string `json:"systemInstruction,omitempty"`
	UserName          string `json:"userName,omitempty"`
	AspectRatio       string `json:"aspectRatio,omitempty"`
	ImageStyle        string `json:"imageStyle,omitempty"`
	ShowSuggestions   bool   `json:"showSuggestions,omitempty"`
}

// Request is one streaming chat turn. History travels with the request;
// ConversationID is optional and only enables server-side persistence of the
// exchanged turns.
type Request struct {
	ConversationID string                  `json:"conversationId,omitempty"`
	History        []history.Turn          `json:"history,omitempty"`
	NewMessage     string                  `json:"newMessage"`
	Attachments    []attachment.Attachment `json:"attachments,omitempty"`
	ModelID        string                  `json:"modelId,omitempty"`
	Settings       Settings                `json:"settings,omitempty"`
}

// Generator is the non-streaming upstream call used for suggestions.
type Generator interface {
	Generate(ctx context.Context, call upstream.Call) (string, error)
}

// Appender persists exchanged turns when the request names a conversation.
type Appender interface {
	AppendMessage(ctx context.Context, conversationID string, turn history.Turn) (history.Message, error)
}

// Orchestrator runs the full turn pipeline.
type Orchestrator struct {
	router     *router.Router
	resolver   *attachment.Resolver
	compactor  *history.Compactor
	supervisor *stream.Supervisor
	gen        Generator
	appender   Appender
	logger     *slog.Logger
}

// NewOrchestrator wires the turn pipeline.
func NewOrchestrator(
	log *slog.Logger,
	rt *router.Router,
	resolver *attachment.Resolver,
	compactor *history.Compactor,
	supervisor *stream.Supervisor,
	gen Generator,
	appender Appender,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		router:     rt,
		resolver:   resolver,
		compactor:  compactor,
		supervisor: supervisor,
		gen:        gen,
		appender:   appender,
		logger:     log.With(slog.String("service", "chat")),
	}
}

// Turn is one validated, variant-resolved request, ready to stream.
type Turn struct {
	UserID   string
	Request  Request
	Selected variant.Variant
	Routed   bool

	attachmentParts []*genai.Part
}

// Prepare validates the request, resolves attachments and settles the
// variant. Every error it returns wraps ErrInvalidRequest and is safe to map
// to a 4xx before streaming begins. Routing runs here too: auto and unknown
// identifiers alike go through the router, and routing itself never fails.
func (o *Orchestrator) Prepare(ctx context.Context, userID string, req Request) (*Turn, error) {
	if strings.TrimSpace(req.NewMessage) == "" && len(req.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message or attachments required", ErrInvalidRequest)
	}
	for i, turn := range req.History {
		if turn.Role != history.RoleUser && turn.Role != history.RoleModel {
			return nil, fmt.Errorf("%w: history turn %d has role %q", ErrInvalidRequest, i, turn.Role)
		}
	}

	parts, err := o.resolver.Resolve(req.Attachments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	turn := &Turn{UserID: userID, Request: req, attachmentParts: parts}

	id := strings.TrimSpace(req.ModelID)
	if selected, ok := variant.Parse(id); ok {
		turn.Selected = selected
		return turn, nil
	}
	decision := o.router.Route(ctx, req.NewMessage, req.History)
	turn.Selected = decision.Selected
	turn.Routed = true
	return turn, nil
}

// Stream runs the prepared turn against sink. The terminal event is emitted
// exactly once: done on success, error on upstream hard failure. Persistence
// and suggestion failures never surface to the client.
func (o *Orchestrator) Stream(ctx context.Context, turn *Turn, sink stream.Sink) error {
	if turn.Routed {
		if err := sink.Emit(stream.RoutedModelEvent(string(turn.Selected))); err != nil {
			return err
		}
	}

	outcome, used, err := o.supervisor.Run(ctx, o.callBuilder(turn), turn.Selected, turn.UserID, sink)
	if err != nil {
		o.logger.Error("stream failed",
			slog.String("variant", string(used)), slog.Any("error", err))
		// Best effort: the client may already be gone.
		_ = sink.Emit(stream.ErrorEvent("the model could not complete this response"))
		return err
	}

	o.persist(ctx, turn, outcome)

	if turn.Request.Settings.ShowSuggestions {
		if suggestions := o.suggest(ctx, turn.Request.NewMessage, outcome.Text); len(suggestions) > 0 {
			if err := sink.Emit(stream.SuggestionsEvent(suggestions)); err != nil {
				return err
			}
		}
	}
	return sink.Emit(stream.DoneEvent())
}

// persist appends both turns when the request names a conversation. Failures
// degrade to a log line; the stream already delivered the content.
func (o *Orchestrator) persist(ctx context.Context, turn *Turn, outcome stream.Outcome) {
	conversationID := strings.TrimSpace(turn.Request.ConversationID)
	if conversationID == "" || o.appender == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if _, err := o.appender.AppendMessage(ctx, conversationID, history.Turn{
		Role:        history.RoleUser,
		Text:        turn.Request.NewMessage,
		Attachments: turn.Request.Attachments,
	}); err != nil {
		o.logger.Warn("persist user turn failed", slog.Any("error", err))
		return
	}
	if _, err := o.appender.AppendMessage(ctx, conversationID, history.Turn{
		Role:             history.RoleModel,
		Text:             outcome.Text,
		ImageHandles:     outcome.ImageHandles,
		ThoughtSignature: outcome.Signature,
	}); err != nil {
		o.logger.Warn("persist model turn failed", slog.Any("error", err))
	}
}
