// Package variant defines the closed set of upstream model configurations.
//
// Every call site resolves behavior through the Spec lookup table instead of
// string-matching model names ad hoc. An identifier outside the closed set is
// a routing fallback trigger, never a pass-through.
package variant

import "strings"

// Variant identifies one upstream model configuration.
type Variant string

const (
	// Flash is the general-purpose default and the designated routing fallback.
	Flash Variant = "flash"
	// FlashImage is the image-generation variant.
	FlashImage Variant = "flash-image"
	// Pro is the deep-reasoning variant.
	Pro Variant = "pro"
	// Research is the search-grounded variant.
	Research Variant = "research"

	// Auto is a request-only pseudo identifier: it selects intent routing and
	// never appears in a RoutingDecision or Spec.
	Auto Variant = "auto"
)

// Default is the deterministic fallback used whenever routing cannot decide.
const Default = Flash

// Spec describes one variant's upstream binding and turn policies.
type Spec struct {
	Variant     Variant
	Model       string
	DisplayName string

	// SystemPrompt is the base instruction; per-request settings may extend it.
	SystemPrompt string

	// Tool capabilities.
	CodeExecution bool
	SearchTool    bool

	// ImageOutput marks variants that return inline image parts.
	ImageOutput bool

	// Thinking policy.
	IncludeThoughts bool
	ThinkingBudget  int32

	// History policy: HistoryTurns bounds the compacted window; ReembedImages
	// re-inlines the model's own prior generated images (capped at MaxReembed
	// newest across the truncated window).
	HistoryTurns  int
	ReembedImages bool
	MaxReembed    int

	// RetryOnEmpty marks variants known to silently return empty output; an
	// empty stream on these re-issues the turn once against FallbackTo.
	RetryOnEmpty bool
	FallbackTo   Variant
}

var specs = map[Variant]Spec{
	Flash: {
		Variant:       Flash,
		Model:         "gemini-2.5-flash",
		DisplayName:   "Fast",
		SystemPrompt:  flashPrompt,
		CodeExecution: true,
		HistoryTurns:  48,
	},
	FlashImage: {
		Variant:         FlashImage,
		Model:           "gemini-2.5-flash-image",
		DisplayName:     "Imagine",
		SystemPrompt:    imagePrompt,
		ImageOutput:     true,
		IncludeThoughts: true,
		HistoryTurns:    1,
		ReembedImages:   true,
		MaxReembed:      6,
		RetryOnEmpty:    true,
		FallbackTo:      Flash,
	},
	Pro: {
		Variant:         Pro,
		Model:           "gemini-2.5-pro",
		DisplayName:     "Thinker",
		SystemPrompt:    proPrompt,
		CodeExecution:   true,
		IncludeThoughts: true,
		ThinkingBudget:  8192,
		HistoryTurns:    48,
		RetryOnEmpty:    true,
		FallbackTo:      Flash,
	},
	Research: {
		Variant:      Research,
		Model:        "gemini-2.5-flash",
		DisplayName:  "Researcher",
		SystemPrompt: researchPrompt,
		SearchTool:   true,
		HistoryTurns: 2,
	},
}

// matchOrder is the order-sensitive list for free-text classifier matching:
// "flash" is a substring of "flash-image", so the longer identifier comes first.
var matchOrder = []Variant{FlashImage, Research, Pro, Flash}

// Parse validates an identifier against the closed set. Auto is not a valid
// resolved variant and fails here.
func Parse(id string) (Variant, bool) {
	v := Variant(strings.ToLower(strings.TrimSpace(id)))
	_, ok := specs[v]
	return v, ok
}

// SpecFor returns the spec for a resolved variant. Unknown variants return
// the Default spec so a corrupted identifier degrades instead of panicking.
func SpecFor(v Variant) Spec {
	if s, ok := specs[v]; ok {
		return s
	}
	return specs[Default]
}

// All returns every resolved variant's spec in stable match order.
func All() []Spec {
	out := make([]Spec, 0, len(matchOrder))
	for _, v := range matchOrder {
		out = append(out, specs[v])
	}
	return out
}

// MatchText scans free-form classifier output for a variant identifier using
// the order-sensitive closed-set match. Returns Default when nothing matches.
func MatchText(text string) (Variant, bool) {
	lowered := strings.ToLower(text)
	for _, v := range matchOrder {
		if strings.Contains(lowered, string(v)) {
			return v, true
		}
	}
	return Default, false
}
