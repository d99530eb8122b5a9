// Package router selects an upstream variant for auto-routed turns.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/lumenhq/lumen/internal/history"
	"github.com/lumenhq/lumen/internal/upstream"
	"github.com/lumenhq/lumen/internal/variant"
)

const (
	// contextTurns is how much trailing history the classifier sees.
	contextTurns = 4
	// turnExcerptLimit truncates long turns inside the classifier prompt.
	turnExcerptLimit = 400
	// outputTokenBudget caps the classification reply; one identifier fits easily.
	outputTokenBudget = 16
)

// Generator is the single non-streaming upstream call the router needs.
type Generator interface {
	Generate(ctx context.Context, call upstream.Call) (string, error)
}

// Decision is the ephemeral routing outcome for one auto-routed turn.
type Decision struct {
	Selected  variant.Variant
	RawReason string
}

// Router classifies a turn onto the closed variant set.
type Router struct {
	gen    Generator
	logger *slog.Logger
}

// NewRouter creates an intent router.
func NewRouter(log *slog.Logger, gen Generator) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		gen:    gen,
		logger: log.With(slog.String("service", "router")),
	}
}

// Route issues one zero-temperature classification call and maps the reply to
// a variant. Routing never fails upward: unparseable output and upstream
// errors alike degrade to the default variant, logged but not surfaced.
func (r *Router) Route(ctx context.Context, message string, turns []history.Turn) Decision {
	raw, err := r.gen.Generate(ctx, upstream.Call{
		Model: variant.SpecFor(variant.Default).Model,
		Contents: []*genai.Content{
			genai.NewContentFromParts(
				[]*genai.Part{genai.NewPartFromText(classifierPrompt(message, turns))},
				genai.RoleUser,
			),
		},
		Config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(0)),
			MaxOutputTokens: outputTokenBudget,
		},
	})
	if err != nil {
		r.logger.Warn("routing call failed, using default", slog.Any("error", err))
		return Decision{Selected: variant.Default, RawReason: "upstream error"}
	}

	selected, matched := variant.MatchText(raw)
	if !matched {
		r.logger.Warn("routing output unmatched, using default", slog.String("raw", raw))
		return Decision{Selected: variant.Default, RawReason: raw}
	}
	return Decision{Selected: selected, RawReason: raw}
}

func classifierPrompt(message string, turns []history.Turn) string {
	var b strings.Builder
	b.WriteString(variant.RouterPrompt)

	if len(turns) > contextTurns {
		turns = turns[len(turns)-contextTurns:]
	}
	if len(turns) > 0 {
		b.WriteString("\n\nRecent conversation:\n")
		for _, turn := range turns {
			b.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, excerpt(turn.Text)))
		}
	}

	b.WriteString("\nLatest message: ")
	b.WriteString(excerpt(message))
	return b.String()
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= turnExcerptLimit {
		return text
	}
	return text[:turnExcerptLimit] + "…"
}
