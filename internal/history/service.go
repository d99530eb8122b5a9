package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenhq/lumen/internal/attachment"
	"github.com/lumenhq/lumen/internal/db"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotOwner             = errors.New("not the conversation owner")
)

// Service manages the append-only per-conversation message log.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a history service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "history")),
	}
}

// CreateConversation creates a conversation owned by userID.
func (s *Service) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return Conversation{}, fmt.Errorf("user id is required")
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, created_at, updated_at`,
		userID, strings.TrimSpace(title))
	return scanConversation(row)
}

// GetConversation returns a conversation after checking ownership.
func (s *Service) GetConversation(ctx context.Context, userID, conversationID string) (Conversation, error) {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return Conversation{}, ErrConversationNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = $1`, pgID)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrConversationNotFound
		}
		return Conversation{}, err
	}
	if conv.UserID != userID {
		return Conversation{}, ErrNotOwner
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recent first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// RenameConversation updates the title after checking ownership.
func (s *Service) RenameConversation(ctx context.Context, userID, conversationID, title string) error {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return ErrConversationNotFound
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE conversations SET title = $2, updated_at = now() WHERE id = $1`,
		pgID, strings.TrimSpace(title))
	return err
}

// AppendMessage appends one turn to a conversation's log.
func (s *Service) AppendMessage(ctx context.Context, conversationID string, turn Turn) (Message, error) {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return Message{}, ErrConversationNotFound
	}
	if turn.Role != RoleUser && turn.Role != RoleModel {
		return Message{}, fmt.Errorf("invalid turn role: %s", turn.Role)
	}

	attachments, err := json.Marshal(persistable(turn.Attachments))
	if err != nil {
		return Message{}, fmt.Errorf("marshal attachments: %w", err)
	}
	imageHandles, err := json.Marshal(nonNilSlice(turn.ImageHandles))
	if err != nil {
		return Message{}, fmt.Errorf("marshal image handles: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, role, content, attachments, image_handles, thought_signature)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, conversation_id, role, content, attachments, image_handles, thought_signature, created_at`,
		pgID, turn.Role, turn.Text, attachments, imageHandles, db.ToPgText(turn.ThoughtSignature))
	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, err
	}

	if _, err := s.pool.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, pgID); err != nil {
		// Recency ordering is a derived convenience; the append already succeeded.
		s.logger.Warn("touch conversation failed", slog.Any("error", err))
	}
	return msg, nil
}

// ListMessages returns all turns of a conversation in append order.
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, attachments, image_handles, thought_signature, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`, pgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteMessages removes all message records of a conversation.
func (s *Service) DeleteMessages(ctx context.Context, conversationID string) error {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return ErrConversationNotFound
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, pgID)
	return err
}

// DeleteConversation removes the conversation record itself. Callers run the
// cleanup reactor first; this is the final record delete.
func (s *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	pgID, err := db.ParseUUID(conversationID)
	if err != nil {
		return ErrConversationNotFound
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, pgID)
	return err
}

// --- row scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		id        pgtype.UUID
		userID    string
		title     string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &userID, &title, &createdAt, &updatedAt); err != nil {
		return Conversation{}, err
	}
	return Conversation{
		ID:        db.UUIDString(id),
		UserID:    userID,
		Title:     title,
		CreatedAt: db.TimeFromPg(createdAt),
		UpdatedAt: db.TimeFromPg(updatedAt),
	}, nil
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		id             pgtype.UUID
		conversationID pgtype.UUID
		role           string
		content        string
		attachmentsRaw []byte
		handlesRaw     []byte
		signature      pgtype.Text
		createdAt      pgtype.Timestamptz
	)
	if err := row.Scan(&id, &conversationID, &role, &content, &attachmentsRaw, &handlesRaw, &signature, &createdAt); err != nil {
		return Message{}, err
	}

	var attachments []attachment.Attachment
	if len(attachmentsRaw) > 0 {
		if err := json.Unmarshal(attachmentsRaw, &attachments); err != nil {
			return Message{}, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	var imageHandles []string
	if len(handlesRaw) > 0 {
		if err := json.Unmarshal(handlesRaw, &imageHandles); err != nil {
			return Message{}, fmt.Errorf("unmarshal image handles: %w", err)
		}
	}

	return Message{
		ID:             db.UUIDString(id),
		ConversationID: db.UUIDString(conversationID),
		CreatedAt:      db.TimeFromPg(createdAt),
		Turn: Turn{
			Role:             role,
			Text:             content,
			Attachments:      attachments,
			ImageHandles:     imageHandles,
			ThoughtSignature: db.TextToString(signature),
		},
	}, nil
}

// persistable strips fields that must not be stored: inline bytes for size,
// continuity handles because the provider expires them (~48h).
func persistable(attachments []attachment.Attachment) []attachment.Attachment {
	out := make([]attachment.Attachment, 0, len(attachments))
	for _, att := range attachments {
		att.InlineBytes = ""
		att.ContinuityHandle = ""
		out = append(out, att)
	}
	return out
}

func nonNilSlice(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
