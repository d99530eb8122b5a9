package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/lumenhq/lumen/internal/stream"
	"github.com/lumenhq/lumen/internal/upstream"
	"github.com/lumenhq/lumen/internal/variant"
)

const maxSuggestions = 3

// callBuilder returns the per-variant call constructor the supervisor uses.
// It re-runs compaction for every variant because the fallback carries its
// own history window and re-embed policy.
func (o *Orchestrator) callBuilder(turn *Turn) stream.CallBuilder {
	return func(ctx context.Context, v variant.Variant) (upstream.Call, error) {
		spec := variant.SpecFor(v)

		contents, err := o.compactor.Compact(ctx, turn.Request.History, spec)
		if err != nil {
			return upstream.Call{}, fmt.Errorf("compact history: %w", err)
		}

		parts := make([]*genai.Part, 0, len(turn.attachmentParts)+1)
		parts = append(parts, turn.attachmentParts...)
		if text := strings.TrimSpace(turn.Request.NewMessage); text != "" {
			parts = append(parts, genai.NewPartFromText(text))
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

		return upstream.Call{
			Model:    spec.Model,
			Contents: contents,
			Config:   generationConfig(spec, turn.Request.Settings),
		}, nil
	}
}

func generationConfig(spec variant.Spec, settings Settings) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(spec, settings), genai.RoleUser),
	}

	var tools []*genai.Tool
	if spec.CodeExecution {
		tools = append(tools, &genai.Tool{CodeExecution: &genai.ToolCodeExecution{}})
	}
	if spec.SearchTool {
		tools = append(tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	config.Tools = tools

	if spec.IncludeThoughts {
		thinking := &genai.ThinkingConfig{IncludeThoughts: true}
		if spec.ThinkingBudget > 0 {
			thinking.ThinkingBudget = genai.Ptr(spec.ThinkingBudget)
		}
		config.ThinkingConfig = thinking
	}

	if spec.ImageOutput {
		config.ResponseModalities = []string{"TEXT", "IMAGE"}
		if ratio := strings.TrimSpace(settings.AspectRatio); ratio != "" {
			config.ImageConfig = &genai.ImageConfig{AspectRatio: ratio}
		}
	}
	return config
}

func systemPrompt(spec variant.Spec, settings Settings) string {
	var b strings.Builder
	b.WriteString(spec.SystemPrompt)

	if name := strings.TrimSpace(settings.UserName); name != "" {
		fmt.Fprintf(&b, "\n\nThe user's name is %s.", name)
	}
	if style := strings.TrimSpace(settings.ImageStyle); style != "" && spec.ImageOutput {
		fmt.Fprintf(&b, "\n\nPreferred image style: %s.", style)
	}
	if extra := strings.TrimSpace(settings.SystemInstruction); extra != "" {
		b.WriteString("\n\n")
		b.WriteString(extra)
	}
	return b.String()
}

// suggest makes one small non-streaming call for follow-up chips. Any
// failure returns nil; suggestions are decoration.
func (o *Orchestrator) suggest(ctx context.Context, userMessage, responseText string) []string {
	prompt := fmt.Sprintf("%s\n\nUser: %s\n\nAssistant: %s",
		variant.SuggestionsPrompt, clip(userMessage, 600), clip(responseText, 1200))

	raw, err := o.gen.Generate(ctx, upstream.Call{
		Model: variant.SpecFor(variant.Default).Model,
		Contents: []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(0.7)),
			MaxOutputTokens: 128,
		},
	})
	if err != nil {
		o.logger.Warn("suggestions call failed", slog.Any("error", err))
		return nil
	}

	var suggestions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "-*• ")
		if line == "" {
			continue
		}
		suggestions = append(suggestions, line)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions
}

func clip(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "…"
}
