// Package stream turns classified upstream fragments into the typed event
// stream clients consume, and supervises the empty-response retry.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/lumenhq/lumen/internal/upstream"
)

// ImagePayload is the wire shape of an emitted image or graph.
type ImagePayload struct {
	MimeType    string `json:"mimeType"`
	Data        string `json:"data"`
	StorageURL  string `json:"storageUrl,omitempty"`
	FileURI     string `json:"fileUri,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// RetryPayload announces a fallback re-dispatch.
type RetryPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ErrorPayload carries a client-safe failure message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Event is the one-key-per-line wire union. Exactly one field is set; the
// populated key is the event type.
type Event struct {
	Text             *string           `json:"text,omitempty"`
	Thinking         *string           `json:"thinking,omitempty"`
	Image            *ImagePayload     `json:"image,omitempty"`
	Graph            *ImagePayload     `json:"graph,omitempty"`
	Sources          []upstream.Source `json:"sources,omitempty"`
	RoutedModel      *string           `json:"routedModel,omitempty"`
	ThoughtSignature *string           `json:"thoughtSignature,omitempty"`
	Suggestions      []string          `json:"suggestions,omitempty"`
	Retry            *RetryPayload     `json:"retry,omitempty"`
	Error            *ErrorPayload     `json:"error,omitempty"`
	Done             *bool             `json:"done,omitempty"`
}

func TextEvent(text string) Event { return Event{Text: &text} }

func ThinkingEvent(text string) Event { return Event{Thinking: &text} }

func ImageEvent(p ImagePayload) Event { return Event{Image: &p} }

func GraphEvent(p ImagePayload) Event { return Event{Graph: &p} }

func SourcesEvent(s []upstream.Source) Event { return Event{Sources: s} }

func RoutedModelEvent(id string) Event { return Event{RoutedModel: &id} }

func SignatureEvent(sig string) Event { return Event{ThoughtSignature: &sig} }

func SuggestionsEvent(s []string) Event { return Event{Suggestions: s} }

func RetryEvent(from, to string) Event { return Event{Retry: &RetryPayload{From: from, To: to}} }

func ErrorEvent(message string) Event { return Event{Error: &ErrorPayload{Message: message}} }

func DoneEvent() Event {
	done := true
	return Event{Done: &done}
}

// Sink receives events in emit order. Implementations need not be safe for
// concurrent use; the multiplexer serializes emission.
type Sink interface {
	Emit(event Event) error
}

// NDJSONSink writes one JSON object per line and flushes after every event,
// so partial progress reaches the client as it happens.
type NDJSONSink struct {
	writer  *bufio.Writer
	flusher http.Flusher
}

// NewNDJSONSink wraps an HTTP response. flusher may be nil (buffered tests).
func NewNDJSONSink(w *bufio.Writer, flusher http.Flusher) *NDJSONSink {
	return &NDJSONSink{writer: w, flusher: flusher}
}

func (s *NDJSONSink) Emit(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := s.writer.Write(line); err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// lockedSink serializes concurrent emitters onto one Sink.
type lockedSink struct {
	mu   sync.Mutex
	sink Sink
}

func (s *lockedSink) Emit(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Emit(event)
}
