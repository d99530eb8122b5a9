package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEventsMarshalWithOneKey(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		key   string
	}{
		{"text", TextEvent("hi"), "text"},
		{"thinking", ThinkingEvent("hm"), "thinking"},
		{"image", ImageEvent(ImagePayload{MimeType: "image/png", Data: "QQ=="}), "image"},
		{"graph", GraphEvent(ImagePayload{MimeType: "image/png", Data: "QQ=="}), "graph"},
		{"routed", RoutedModelEvent("pro"), "routedModel"},
		{"signature", SignatureEvent("c2ln"), "thoughtSignature"},
		{"suggestions", SuggestionsEvent([]string{"a"}), "suggestions"},
		{"retry", RetryEvent("pro", "flash"), "retry"},
		{"error", ErrorEvent("boom"), "error"},
		{"done", DoneEvent(), "done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatal(err)
			}
			var decoded map[string]json.RawMessage
			if err := json.Unmarshal(raw, &decoded); err != nil {
				t.Fatal(err)
			}
			if len(decoded) != 1 {
				t.Fatalf("event %s marshaled %d keys: %s", tt.name, len(decoded), raw)
			}
			if _, ok := decoded[tt.key]; !ok {
				t.Errorf("event %s missing key %q: %s", tt.name, tt.key, raw)
			}
		})
	}
}

func TestEmptyStringEventsStillMarshal(t *testing.T) {
	// A text delta may legitimately be "", and omitempty on a *string must
	// not drop it.
	raw, err := json.Marshal(TextEvent(""))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"text":""}` {
		t.Errorf("TextEvent(\"\") = %s", raw)
	}
}

func TestNDJSONSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewNDJSONSink(bufio.NewWriter(&buf), nil)

	for _, e := range []Event{TextEvent("a"), ThinkingEvent("b"), DoneEvent()} {
		if err := sink.Emit(e); err != nil {
			t.Fatal(err)
		}
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Errorf("line %q is not a JSON object: %v", line, err)
		}
	}
	if !strings.HasSuffix(lines[2], `"done":true}`) {
		t.Errorf("terminal line = %q", lines[2])
	}
}
