package upstream

import (
	"encoding/base64"
	"testing"

	"google.golang.org/genai"
)

func TestClassifySplitsPartsInOrder(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Thought: true, Text: "thinking about it"},
				{Text: "hello"},
				{ExecutableCode: &genai.ExecutableCode{Code: "print(1)", Language: "PYTHON"}},
				{CodeExecutionResult: &genai.CodeExecutionResult{Output: "1\n"}},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
			}},
		}},
	}

	frags := Classify(resp)
	wantKinds := []FragmentKind{
		FragmentThought, FragmentText, FragmentExecutableCode,
		FragmentCodeResult, FragmentInlineImage,
	}
	if len(frags) != len(wantKinds) {
		t.Fatalf("got %d fragments, want %d", len(frags), len(wantKinds))
	}
	for i, want := range wantKinds {
		if frags[i].Kind != want {
			t.Errorf("fragment %d kind = %v, want %v", i, frags[i].Kind, want)
		}
	}
}

func TestClassifyDropsThoughtImages(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Thought: true, InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{9}}},
			}},
		}},
	}
	if frags := Classify(resp); len(frags) != 0 {
		t.Fatalf("draft image inside a thought surfaced: %+v", frags)
	}
}

func TestClassifySignatureRidesAlongside(t *testing.T) {
	sig := []byte("opaque-token")
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "answer", ThoughtSignature: sig},
			}},
		}},
	}
	frags := Classify(resp)
	if len(frags) != 2 {
		t.Fatalf("got %d fragments, want text + signature", len(frags))
	}
	if frags[1].Kind != FragmentSignature {
		t.Fatalf("second fragment kind = %v, want signature", frags[1].Kind)
	}
	if frags[1].Signature != base64.StdEncoding.EncodeToString(sig) {
		t.Errorf("signature not base64 of raw token")
	}
}

func TestClassifyGroundingSources(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "cited"}}},
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{Title: "Example", URI: "https://example.com"}},
					{Web: &genai.GroundingChunkWeb{URI: "https://no-title.example"}},
					{Web: &genai.GroundingChunkWeb{Title: "no uri"}},
					nil,
				},
			},
		}},
	}
	frags := Classify(resp)
	last := frags[len(frags)-1]
	if last.Kind != FragmentSources {
		t.Fatalf("last fragment kind = %v, want sources", last.Kind)
	}
	if len(last.Sources) != 2 {
		t.Fatalf("got %d sources, want 2 (uri-less chunk dropped)", len(last.Sources))
	}
	if last.Sources[1].Title != "https://no-title.example" {
		t.Errorf("missing title should fall back to the URI")
	}
}

func TestClassifyNilAndEmpty(t *testing.T) {
	if frags := Classify(nil); frags != nil {
		t.Errorf("Classify(nil) = %v, want nil", frags)
	}
	if frags := Classify(&genai.GenerateContentResponse{}); frags != nil {
		t.Errorf("Classify(empty) = %v, want nil", frags)
	}
}
