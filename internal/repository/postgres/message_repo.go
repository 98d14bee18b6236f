package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is raised by a statement trigger on every change to messages.
const NotifyChannel = "messages_changed"

type messageRepo struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) domain.MessageRepository {
	return &messageRepo{db: db}
}

const messageColumns = `id, name, email, message, date, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.ContactMessage, error) {
	var (
		m      domain.ContactMessage
		id     uuid.UUID
		date   time.Time
		status string
	)
	if err := row.Scan(&id, &m.Name, &m.Email, &m.Message, &date, &status); err != nil {
		return m, err
	}
	m.ID = id.String()
	m.Date = domain.FormatDate(date)
	m.Status = domain.MessageStatus(status)
	return m, nil
}

// Create assigns msg a new id. Date must already be set.
func (r *messageRepo) Create(ctx context.Context, msg *domain.ContactMessage) error {
	date, err := time.Parse(domain.DateLayout, msg.Date)
	if err != nil {
		return fmt.Errorf("parse message date: %w", err)
	}
	if msg.Status == "" {
		msg.Status = domain.StatusNew
	}
	id := uuid.New()
	query := `INSERT INTO messages (id, name, email, message, date, status) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.Exec(ctx, query, id, msg.Name, msg.Email, msg.Message, date, string(msg.Status)); err != nil {
		return err
	}
	msg.ID = id.String()
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (*domain.ContactMessage, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrMessageNotFound
	}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	m, err := scanMessage(r.db.QueryRow(ctx, query, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns all messages, newest first. Ties on date fall back to id so
// the order is stable between snapshots.
func (r *messageRepo) List(ctx context.Context) ([]domain.ContactMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY date DESC, id DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]domain.ContactMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *messageRepo) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrMessageNotFound
	}
	query := `UPDATE messages SET status = $2, updated_at = now() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, uid, string(status))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *messageRepo) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrMessageNotFound
	}
	result, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}
