// Package cleanup removes a conversation's stored objects alongside its
// records, so deleting a session never strands files in object storage.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumenhq/lumen/internal/history"
	"github.com/lumenhq/lumen/internal/storage"
)

// Store is the record side of a conversation delete.
type Store interface {
	ListMessages(ctx context.Context, conversationID string) ([]history.Message, error)
	DeleteMessages(ctx context.Context, conversationID string) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

// Reactor deletes a conversation's stored objects, then its records.
type Reactor struct {
	store    Store
	provider storage.Provider
	logger   *slog.Logger
}

// NewReactor creates a cleanup reactor.
func NewReactor(log *slog.Logger, store Store, provider storage.Provider) *Reactor {
	if log == nil {
		log = slog.Default()
	}
	return &Reactor{
		store:    store,
		provider: provider,
		logger:   log.With(slog.String("service", "cleanup")),
	}
}

// Purge walks every message of the conversation, deletes each referenced
// object (user attachments and generated images alike), then deletes the
// message records and finally the conversation record. A missing object is
// success; any other storage failure is logged and the batch continues, so
// one bad object never blocks the record delete.
func (r *Reactor) Purge(ctx context.Context, conversationID string) error {
	messages, err := r.store.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	for _, handle := range collectHandles(messages) {
		key, err := storage.ExtractKey(handle)
		if err != nil {
			// Not one of ours (external URL or foreign convention); skip.
			continue
		}
		if err := r.provider.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("object delete failed",
				slog.String("key", key), slog.Any("error", err))
		}
	}

	if err := r.store.DeleteMessages(ctx, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := r.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func collectHandles(messages []history.Message) []string {
	var handles []string
	for _, msg := range messages {
		for _, att := range msg.Attachments {
			if att.DisplayHandle != "" {
				handles = append(handles, att.DisplayHandle)
			}
		}
		handles = append(handles, msg.ImageHandles...)
	}
	return handles
}
