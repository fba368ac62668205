package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/occupeye/backend/core/application"
)

type applicationRow struct {
	ID         string      `db:"id"`
	StudentID  string      `db:"student_id"`
	DormID     string      `db:"dorm_id"`
	RoomID     null.String `db:"room_id"`
	Status     string      `db:"status"`
	Note       null.String `db:"note"`
	ReviewedBy null.String `db:"reviewed_by"`
	ReviewedAt null.Time   `db:"reviewed_at"`
	CreatedAt  null.Time   `db:"created_at"`
	UpdatedAt  null.Time   `db:"updated_at"`
}

func (row applicationRow) toApplication() application.Application {
	return application.Application{
		ID:         row.ID,
		StudentID:  row.StudentID,
		DormID:     row.DormID,
		RoomID:     row.RoomID.String,
		Status:     row.Status,
		Note:       row.Note.String,
		ReviewedBy: row.ReviewedBy.String,
		ReviewedAt: row.ReviewedAt.Time,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}

func newApplicationRow(app application.Application) applicationRow {
	return applicationRow{
		ID:         app.ID,
		StudentID:  app.StudentID,
		DormID:     app.DormID,
		RoomID:     null.NewString(app.RoomID, app.RoomID != ""),
		Status:     app.Status,
		Note:       null.NewString(app.Note, app.Note != ""),
		ReviewedBy: null.NewString(app.ReviewedBy, app.ReviewedBy != ""),
		ReviewedAt: null.NewTime(app.ReviewedAt.UTC(), !app.ReviewedAt.IsZero()),
		CreatedAt:  null.NewTime(app.CreatedAt.UTC(), !app.CreatedAt.IsZero()),
		UpdatedAt:  null.NewTime(app.UpdatedAt.UTC(), !app.UpdatedAt.IsZero()),
	}
}

type applicationRepository struct {
	db *sqlx.DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) application.Repository {
	return &applicationRepository{db: db}
}

const applicationColumns = `id, student_id, dorm_id, room_id, status, note, reviewed_by,
reviewed_at, created_at, updated_at`

func (repo applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	app.ID = uuid.New().String()
	row := newApplicationRow(app)
	q := `INSERT INTO application (` + applicationColumns + `)
VALUES (:id, :student_id, :dorm_id, :room_id, :status, :note, :reviewed_by,
:reviewed_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return application.Application{}, errors.Wrap(err, "inserting application")
	}
	return row.toApplication(), nil
}

func (repo applicationRepository) GetApplicationByID(ctx context.Context, id string) (application.Application, error) {
	var row applicationRow
	q := `SELECT ` + applicationColumns + ` FROM application WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return application.Application{}, application.ErrNotFound
		}
		return application.Application{}, errors.Wrap(err, "getting application")
	}
	return row.toApplication(), nil
}

func (repo applicationRepository) QueryApplicationsByStudent(ctx context.Context, studentID string) ([]application.Application, error) {
	return repo.selectApplications(ctx,
		`SELECT `+applicationColumns+` FROM application WHERE student_id = $1 ORDER BY created_at DESC`, studentID)
}

func (repo applicationRepository) FilterApplications(ctx context.Context, filter application.QueryFilter) ([]application.Application, error) {
	var clauses []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = "+arg(filter.StudentID))
	}
	if filter.DormID != "" {
		clauses = append(clauses, "dorm_id = "+arg(filter.DormID))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(filter.Status))
	}

	q := `SELECT ` + applicationColumns + ` FROM application`
	if len(clauses) > 0 {
		q += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	return repo.selectApplications(ctx, q, args...)
}

func (repo applicationRepository) HasPendingApplication(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM application WHERE student_id = $1 AND status = $2)`
	if err := repo.db.GetContext(ctx, &exists, q, studentID, application.StatusPending); err != nil {
		return false, errors.Wrap(err, "checking pending application")
	}
	return exists, nil
}

func (repo applicationRepository) UpdateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	row := newApplicationRow(app)
	q := `UPDATE application SET status = :status, note = :note, reviewed_by = :reviewed_by,
reviewed_at = :reviewed_at, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "updating application")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return application.Application{}, application.ErrNotFound
	}
	return row.toApplication(), nil
}

func (repo applicationRepository) selectApplications(ctx context.Context, q string, args ...interface{}) ([]application.Application, error) {
	var rows []applicationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]application.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toApplication())
	}
	return apps, nil
}
