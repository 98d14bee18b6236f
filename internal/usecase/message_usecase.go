package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio-backend/internal/domain"
	"portfolio-backend/internal/triage"
	"portfolio-backend/pkg/apperror"
	"portfolio-backend/pkg/email"
	"portfolio-backend/pkg/logger"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the media type of exports.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Notifier tells the site owner about new messages.
type Notifier interface {
	IsConfigured() bool
	NotifyNewMessage(n email.MessageNotification) error
}

// Archiver stores exports outside the database.
type Archiver interface {
	Put(ctx context.Context, name, contentType string, body []byte) (string, error)
	Bucket() string
}

type messageUsecase struct {
	repo     domain.MessageRepository
	feed     domain.MessageFeed
	notifier Notifier
	archiver Archiver
	maxSkew  time.Duration
	now      func() time.Time
}

type MessageOption func(*messageUsecase)

// WithArchiver enables Archive.
func WithArchiver(a Archiver) MessageOption {
	return func(u *messageUsecase) { u.archiver = a }
}

// NewMessageUsecase wires the message workflow. notifier may be nil.
func NewMessageUsecase(repo domain.MessageRepository, feed domain.MessageFeed, notifier Notifier, maxSkew time.Duration, opts ...MessageOption) domain.MessageUsecase {
	u := &messageUsecase{
		repo:     repo,
		feed:     feed,
		notifier: notifier,
		maxSkew:  maxSkew,
		now:      time.Now,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// messageDate keeps the submitter's timestamp when it is well formed and
// close to our clock.
func (u *messageUsecase) messageDate(submitted string) string {
	now := u.now()
	if submitted == "" {
		return domain.FormatDate(now)
	}
	t, err := time.Parse(time.RFC3339Nano, submitted)
	if err != nil {
		return domain.FormatDate(now)
	}
	if d := now.Sub(t); d > u.maxSkew || d < -u.maxSkew {
		return domain.FormatDate(now)
	}
	return domain.FormatDate(t)
}

func (u *messageUsecase) Create(ctx context.Context, req *domain.NewMessage) (*domain.ContactMessage, error) {
	msg := &domain.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
		Date:    u.messageDate(req.Date),
		Status:  domain.StatusNew,
	}
	if err := u.repo.Create(ctx, msg); err != nil {
		return nil, apperror.New(500, "Failed to save message. Please try again later.", err)
	}
	logger.Log.Info("Contact message stored", "id", msg.ID)

	if u.notifier != nil && u.notifier.IsConfigured() {
		n := email.MessageNotification{
			ID:          msg.ID,
			SenderName:  msg.Name,
			SenderEmail: msg.Email,
			Message:     msg.Message,
			Date:        msg.Date,
		}
		if err := u.notifier.NotifyNewMessage(n); err != nil {
			logger.Log.Warn("Owner notification failed", "id", msg.ID, "error", err)
		}
	}
	return msg, nil
}

func (u *messageUsecase) Get(ctx context.Context, id string) (*domain.ContactMessage, error) {
	m, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return m, nil
}

func (u *messageUsecase) List(ctx context.Context, search, status string) ([]domain.ContactMessage, error) {
	filter, ok := triage.ParseFilter(status)
	if !ok {
		return nil, apperror.New(400, "status must be one of all, new, read, replied", domain.ErrInvalidStatus)
	}
	msgs, err := u.repo.List(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return triage.Filter(msgs, search, filter), nil
}

func (u *messageUsecase) Stats(ctx context.Context) (*domain.MessageKPIs, error) {
	msgs, err := u.repo.List(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	k := triage.ComputeKPIs(msgs)
	return &k, nil
}

func (u *messageUsecase) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) (*domain.ContactMessage, error) {
	if !status.Valid() {
		return nil, apperror.New(400, "status must be one of new, read, replied", domain.ErrInvalidStatus)
	}
	if err := u.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, mapRepoError(err)
	}
	return u.Get(ctx, id)
}

func (u *messageUsecase) Delete(ctx context.Context, id string) error {
	if err := u.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func (u *messageUsecase) Watch(ctx context.Context) *domain.Subscription {
	return u.feed.Subscribe()
}

var exportHeaders = []string{"ID", "Date", "Status", "Name", "Email", "Message"}

// Export renders every message into an XLSX workbook, newest first.
func (u *messageUsecase) Export(ctx context.Context) ([]byte, string, error) {
	msgs, err := u.repo.List(ctx)
	if err != nil {
		return nil, "", mapRepoError(err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Messages"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", apperror.Internal(err)
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}
	for r, m := range msgs {
		row := []interface{}{m.ID, m.Date, string(m.Status), m.Name, m.Email, m.Message}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, "", apperror.Internal(err)
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "C", 26)
	_ = f.SetColWidth(sheet, "D", "E", 28)
	_ = f.SetColWidth(sheet, "F", "F", 80)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", apperror.Internal(fmt.Errorf("write xlsx: %w", err))
	}
	name := fmt.Sprintf("messages-%s.xlsx", u.now().UTC().Format("20060102-150405"))
	return buf.Bytes(), name, nil
}

func (u *messageUsecase) Archive(ctx context.Context) (*domain.ArchiveResult, error) {
	if u.archiver == nil {
		return nil, apperror.New(503, "export archive is not configured", nil).WithKind("archive_disabled")
	}
	data, name, err := u.Export(ctx)
	if err != nil {
		return nil, err
	}
	key, err := u.archiver.Put(ctx, name, XLSXContentType, data)
	if err != nil {
		return nil, apperror.New(502, "Failed to archive export", err)
	}
	logger.Log.Info("Export archived", "bucket", u.archiver.Bucket(), "key", key, "bytes", len(data))
	return &domain.ArchiveResult{Bucket: u.archiver.Bucket(), Key: key}, nil
}

func mapRepoError(err error) error {
	if errors.Is(err, domain.ErrMessageNotFound) {
		return apperror.New(404, "message not found", err)
	}
	return apperror.Internal(err)
}
