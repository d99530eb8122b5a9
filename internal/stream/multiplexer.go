package stream

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lumenhq/lumen/internal/upload"
	"github.com/lumenhq/lumen/internal/upstream"
)

// Streamer issues one streaming generation call.
type Streamer interface {
	Stream(ctx context.Context, call upstream.Call, fn func(upstream.Fragment) error) error
}

// Uploader runs the dual-sink write for a generated image.
type Uploader interface {
	Store(ctx context.Context, userID string, kind upload.Kind, mime string, data []byte) (upload.Result, error)
}

// Outcome summarizes one completed stream for persistence and retry decisions.
type Outcome struct {
	// Text is the accumulated non-thinking response text, fenced code included.
	Text string
	// Signature is the last continuity token seen, base64-encoded.
	Signature string
	// ImageHandles are display URLs of generated images that reached storage.
	ImageHandles []string
	// ImagesEmitted counts image events sent, persisted or not.
	ImagesEmitted int
}

// Empty reports whether the model produced nothing visible: no non-thinking
// text and no images. Thinking-only output still counts as empty.
func (o Outcome) Empty() bool {
	return strings.TrimSpace(o.Text) == "" && o.ImagesEmitted == 0
}

// Multiplexer fans one upstream stream out into typed client events.
type Multiplexer struct {
	streamer Streamer
	uploader Uploader
	logger   *slog.Logger
}

// NewMultiplexer creates a stream multiplexer.
func NewMultiplexer(log *slog.Logger, streamer Streamer, uploader Uploader) *Multiplexer {
	if log == nil {
		log = slog.Default()
	}
	return &Multiplexer{
		streamer: streamer,
		uploader: uploader,
		logger:   log.With(slog.String("service", "stream")),
	}
}

// Run streams one upstream call into sink. Fragments map to events as they
// arrive; image uploads run concurrently and their events land when the
// upload settles, which may be after later text. Grounding sources are
// emitted at most once per stream; the continuity signature is remembered
// and emitted once after the stream ends.
//
// Run returns the partial Outcome alongside any error, so callers can still
// persist what was delivered before a mid-stream failure.
func (m *Multiplexer) Run(ctx context.Context, call upstream.Call, userID string, sink Sink) (Outcome, error) {
	out := &run{
		mux:    m,
		ctx:    ctx,
		userID: userID,
		sink:   &lockedSink{sink: sink},
	}
	err := m.streamer.Stream(ctx, call, out.consume)
	out.pending.Wait()

	out.mu.Lock()
	outcome := out.outcome
	out.mu.Unlock()

	if err != nil {
		return outcome, err
	}
	if outcome.Signature != "" {
		if err := out.sink.Emit(SignatureEvent(outcome.Signature)); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// run is the per-stream mutable state.
type run struct {
	mux    *Multiplexer
	ctx    context.Context
	userID string
	sink   *lockedSink

	text        strings.Builder
	sourcesSent bool
	pending     sync.WaitGroup

	mu      sync.Mutex
	outcome Outcome
}

func (r *run) consume(frag upstream.Fragment) error {
	switch frag.Kind {
	case upstream.FragmentText:
		r.text.WriteString(frag.Text)
		r.setText()
		return r.sink.Emit(TextEvent(frag.Text))

	case upstream.FragmentThought:
		return r.sink.Emit(ThinkingEvent(frag.Text))

	case upstream.FragmentExecutableCode:
		block := fencedCode(frag.CodeLanguage, frag.Code)
		r.text.WriteString(block)
		r.setText()
		return r.sink.Emit(TextEvent(block))

	case upstream.FragmentCodeResult:
		mime, data, ok := upstream.ExtractInlineImage(frag.ResultOutput)
		if !ok {
			// Raw execution output is an internal artifact, not response text.
			return nil
		}
		r.dispatchImage(mime, data, true)
		return nil

	case upstream.FragmentInlineImage:
		r.dispatchImage(frag.MIME, frag.Data, false)
		return nil

	case upstream.FragmentSources:
		if r.sourcesSent {
			return nil
		}
		r.sourcesSent = true
		return r.sink.Emit(SourcesEvent(frag.Sources))

	case upstream.FragmentSignature:
		r.mu.Lock()
		r.outcome.Signature = frag.Signature
		r.mu.Unlock()
		return nil
	}
	return nil
}

// dispatchImage runs the dual-sink upload off the stream goroutine so text
// keeps flowing, then emits the image event with whatever handles settled.
// The upload is detached from request cancellation: once bytes exist, the
// durable write runs to completion.
func (r *run) dispatchImage(mime string, data []byte, graph bool) {
	if len(data) == 0 {
		return
	}
	r.mu.Lock()
	r.outcome.ImagesEmitted++
	r.mu.Unlock()

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()

		payload := ImagePayload{
			MimeType:    mime,
			Data:        base64.StdEncoding.EncodeToString(data),
			AspectRatio: aspectRatio(data),
		}

		result, err := r.mux.uploader.Store(context.WithoutCancel(r.ctx), r.userID, upload.KindGenerated, mime, data)
		if err != nil {
			// Both sinks failed; the client still gets the raw bytes.
			r.mux.logger.Warn("generated image persistence failed", slog.Any("error", err))
		}
		payload.StorageURL = result.DisplayHandle
		payload.FileURI = result.ContinuityHandle

		if result.DisplayHandle != "" {
			r.mu.Lock()
			r.outcome.ImageHandles = append(r.outcome.ImageHandles, result.DisplayHandle)
			r.mu.Unlock()
		}

		event := ImageEvent(payload)
		if graph {
			event = GraphEvent(payload)
		}
		if err := r.sink.Emit(event); err != nil {
			r.mux.logger.Warn("image event dropped", slog.Any("error", err))
		}
	}()
}

func (r *run) setText() {
	r.mu.Lock()
	r.outcome.Text = r.text.String()
	r.mu.Unlock()
}

func fencedCode(language, code string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	return fmt.Sprintf("\n```%s\n%s\n```\n", lang, strings.TrimRight(code, "\n"))
}
