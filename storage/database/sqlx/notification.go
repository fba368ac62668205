package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/occupeye/backend/core/notification"
)

type notificationRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Kind      string      `db:"kind"`
	Title     null.String `db:"title"`
	Body      null.String `db:"body"`
	Read      bool        `db:"read"`
	CreatedAt null.Time   `db:"created_at"`
}

func (row notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Kind:      row.Kind,
		Title:     row.Title.String,
		Body:      row.Body.String,
		Read:      row.Read,
		CreatedAt: row.CreatedAt.Time,
	}
}

func newNotificationRow(notif notification.Notification) notificationRow {
	return notificationRow{
		ID:        notif.ID,
		UserID:    notif.UserID,
		Kind:      notif.Kind,
		Title:     null.NewString(notif.Title, notif.Title != ""),
		Body:      null.NewString(notif.Body, notif.Body != ""),
		Read:      notif.Read,
		CreatedAt: null.NewTime(notif.CreatedAt.UTC(), !notif.CreatedAt.IsZero()),
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, user_id, kind, title, body, read, created_at`

func (repo notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	notif.ID = uuid.New().String()
	row := newNotificationRow(notif)
	q := `INSERT INTO notification (` + notificationColumns + `)
VALUES (:id, :user_id, :kind, :title, :body, :read, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return row.toNotification(), nil
}

func (repo notificationRepository) QueryNotificationsByUser(ctx context.Context, userID string) ([]notification.Notification, error) {
	var rows []notificationRow
	q := `SELECT ` + notificationColumns + ` FROM notification WHERE user_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, row.toNotification())
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM notification WHERE user_id = $1 AND read = FALSE`
	if err := repo.db.GetContext(ctx, &count, q, userID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	q := `UPDATE notification SET read = TRUE WHERE id = $1 AND user_id = $2`
	res, err := repo.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	q := `UPDATE notification SET read = TRUE WHERE user_id = $1`
	if _, err := repo.db.ExecContext(ctx, q, userID); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return nil
}
