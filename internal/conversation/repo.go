package conversation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/apexmind/backend/internal/models"
)

var ErrNotFound = errors.New("conversation not found")

type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	// GetByID returns the conversation with its messages in creation order.
	// Conversations owned by another user are reported as not found.
	GetByID(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	Create(ctx context.Context, conv *models.Conversation) error
	// Update overwrites the title and replaces the message set.
	Update(ctx context.Context, conv *models.Conversation) error
	Delete(ctx context.Context, userID, conversationID string) error
}

type ConversationRepository struct {
	db *bun.DB
}

func NewConversationRepository(db *bun.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	var rows []*models.ConversationDB
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	convs := make([]*models.Conversation, 0, len(rows))
	for _, row := range rows {
		convs = append(convs, row.ToConversation())
	}
	return convs, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	row := new(models.ConversationDB)
	err := r.db.NewSelect().
		Model(row).
		Relation("Messages", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Where("c.id = ?", conversationID).
		Where("c.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.ToConversation(), nil
}

func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := &models.ConversationDB{
			ID:        conv.ID,
			UserID:    conv.UserID,
			Title:     conv.Title,
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		return insertMessages(ctx, tx, conv.ID, conv.Messages)
	})
}

func (r *ConversationRepository) Update(ctx context.Context, conv *models.Conversation) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.ConversationDB)(nil)).
			Set("title = ?", conv.Title).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", conv.ID).
			Where("user_id = ?", conv.UserID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}

		if _, err := tx.NewDelete().
			Model((*models.MessageDB)(nil)).
			Where("conversation_id = ?", conv.ID).
			Exec(ctx); err != nil {
			return err
		}
		return insertMessages(ctx, tx, conv.ID, conv.Messages)
	})
}

func (r *ConversationRepository) Delete(ctx context.Context, userID, conversationID string) error {
	res, err := r.db.NewDelete().
		Model((*models.ConversationDB)(nil)).
		Where("id = ?", conversationID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertMessages(ctx context.Context, tx bun.Tx, conversationID string, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	rows := make([]*models.MessageDB, 0, len(messages))
	for i := range messages {
		m := &messages[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		rows = append(rows, models.MessageFromDomain(conversationID, m))
	}

	_, err := tx.NewInsert().Model(&rows).Exec(ctx)
	return err
}
