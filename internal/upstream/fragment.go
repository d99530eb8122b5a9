package upstream

import (
	"encoding/base64"

	"google.golang.org/genai"
)

// FragmentKind tags one unit of an upstream streaming response.
type FragmentKind int

const (
	// FragmentText is plain response text.
	FragmentText FragmentKind = iota
	// FragmentThought is provider-labeled internal reasoning text.
	FragmentThought
	// FragmentExecutableCode is code the model chose to run.
	FragmentExecutableCode
	// FragmentCodeResult is the output of executed code.
	FragmentCodeResult
	// FragmentInlineImage is a generated image (not part of a thought).
	FragmentInlineImage
	// FragmentSources carries grounding citations.
	FragmentSources
	// FragmentSignature carries an opaque reasoning-continuity token.
	FragmentSignature
)

// Fragment is the typed union of upstream stream units. Exactly the fields
// for its Kind are populated.
type Fragment struct {
	Kind FragmentKind

	Text         string
	Code         string
	CodeLanguage string
	ResultOutput string

	MIME string
	Data []byte

	Sources   []Source
	Signature string
}

// Source is one normalized grounding citation.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Classify maps one raw stream response to typed fragments, in part order.
// Inline images inside thought parts are drafts and are dropped here.
func Classify(resp *genai.GenerateContentResponse) []Fragment {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]

	var frags []Fragment
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			frags = append(frags, classifyPart(part)...)
		}
	}
	if sources := groundingSources(candidate.GroundingMetadata); len(sources) > 0 {
		frags = append(frags, Fragment{Kind: FragmentSources, Sources: sources})
	}
	return frags
}

func classifyPart(part *genai.Part) []Fragment {
	var frags []Fragment

	switch {
	case part.Thought:
		// Draft images inside thought parts never surface.
		if part.Text != "" {
			frags = append(frags, Fragment{Kind: FragmentThought, Text: part.Text})
		}
	case part.ExecutableCode != nil:
		frags = append(frags, Fragment{
			Kind:         FragmentExecutableCode,
			Code:         part.ExecutableCode.Code,
			CodeLanguage: string(part.ExecutableCode.Language),
		})
	case part.CodeExecutionResult != nil:
		frags = append(frags, Fragment{
			Kind:         FragmentCodeResult,
			ResultOutput: part.CodeExecutionResult.Output,
		})
	case part.InlineData != nil:
		frags = append(frags, Fragment{
			Kind: FragmentInlineImage,
			MIME: part.InlineData.MIMEType,
			Data: part.InlineData.Data,
		})
	case part.Text != "":
		frags = append(frags, Fragment{Kind: FragmentText, Text: part.Text})
	}

	if len(part.ThoughtSignature) > 0 {
		frags = append(frags, Fragment{
			Kind:      FragmentSignature,
			Signature: base64.StdEncoding.EncodeToString(part.ThoughtSignature),
		})
	}
	return frags
}

func groundingSources(meta *genai.GroundingMetadata) []Source {
	if meta == nil {
		return nil
	}
	sources := make([]Source, 0, len(meta.GroundingChunks))
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		sources = append(sources, Source{Title: title, URL: chunk.Web.URI})
	}
	return sources
}
