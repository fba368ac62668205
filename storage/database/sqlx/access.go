package sqlxrepos

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/occupeye/backend/core/access"
)

// eventRow keeps the timestamp as stored. Badge readers and older ingestion
// paths wrote several string encodings; access.NormalizeEventTime converts
// them all on the way out.
type eventRow struct {
	ID                string      `db:"id"`
	UserID            string      `db:"user_id"`
	UserName          null.String `db:"user_name"`
	Room              null.String `db:"room"`
	Building          null.String `db:"building"`
	DormID            null.String `db:"dorm_id"`
	DormName          null.String `db:"dorm_name"`
	Action            string      `db:"action"`
	Timestamp         string      `db:"timestamp"`
	AssignedRoom      null.String `db:"assigned_room"`
	AssignedBuilding  null.String `db:"assigned_building"`
	ApplicationStatus null.String `db:"application_status"`
	UserRef           null.String `db:"user_ref"`
}

func (row eventRow) toEvent() access.Event {
	return access.Event{
		ID:                row.ID,
		UserID:            row.UserID,
		UserName:          row.UserName.String,
		Room:              row.Room.String,
		Building:          row.Building.String,
		DormID:            row.DormID.String,
		DormName:          row.DormName.String,
		Action:            row.Action,
		Timestamp:         access.NormalizeEventTime(row.Timestamp),
		AssignedRoom:      row.AssignedRoom.String,
		AssignedBuilding:  row.AssignedBuilding.String,
		ApplicationStatus: row.ApplicationStatus.String,
		UserRef:           row.UserRef.String,
	}
}

func newEventRow(evt access.Event) eventRow {
	return eventRow{
		ID:                evt.ID,
		UserID:            evt.UserID,
		UserName:          null.NewString(evt.UserName, evt.UserName != ""),
		Room:              null.NewString(evt.Room, evt.Room != ""),
		Building:          null.NewString(evt.Building, evt.Building != ""),
		DormID:            null.NewString(evt.DormID, evt.DormID != ""),
		DormName:          null.NewString(evt.DormName, evt.DormName != ""),
		Action:            evt.Action,
		Timestamp:         evt.Timestamp.UTC().Format(time.RFC3339Nano),
		AssignedRoom:      null.NewString(evt.AssignedRoom, evt.AssignedRoom != ""),
		AssignedBuilding:  null.NewString(evt.AssignedBuilding, evt.AssignedBuilding != ""),
		ApplicationStatus: null.NewString(evt.ApplicationStatus, evt.ApplicationStatus != ""),
		UserRef:           null.NewString(evt.UserRef, evt.UserRef != ""),
	}
}

type accessRepository struct {
	db *sqlx.DB
}

var _ access.Repository = (*accessRepository)(nil) // interface compliance check

func NewAccessRepository(db *sqlx.DB) access.Repository {
	return &accessRepository{db: db}
}

const eventColumns = `id, user_id, user_name, room, building, dorm_id, dorm_name, action,
"timestamp", assigned_room, assigned_building, application_status, user_ref`

func (repo accessRepository) AppendEvent(ctx context.Context, evt access.Event) (access.Event, error) {
	evt.ID = uuid.New().String()
	row := newEventRow(evt)
	q := `INSERT INTO access_event (` + eventColumns + `)
VALUES (:id, :user_id, :user_name, :room, :building, :dorm_id, :dorm_name, :action,
:timestamp, :assigned_room, :assigned_building, :application_status, :user_ref)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return access.Event{}, errors.Wrap(err, "inserting access event")
	}
	return row.toEvent(), nil
}

func (repo accessRepository) QueryEventsByUser(ctx context.Context, userID string) ([]access.Event, error) {
	var rows []eventRow
	q := `SELECT ` + eventColumns + ` FROM access_event WHERE user_id = $1`
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying access events")
	}
	return toEvents(rows), nil
}

func (repo accessRepository) QueryRecentEvents(ctx context.Context, limit int) ([]access.Event, error) {
	var rows []eventRow
	// string timestamps do not sort chronologically across encodings, so
	// the recency cut happens after normalization, not in SQL
	q := `SELECT ` + eventColumns + ` FROM access_event`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying access events")
	}
	evts := toEvents(rows)
	sort.Slice(evts, func(i, j int) bool { return evts[i].Timestamp.After(evts[j].Timestamp) })
	if limit > 0 && len(evts) > limit {
		evts = evts[:limit]
	}
	return evts, nil
}

func toEvents(rows []eventRow) []access.Event {
	evts := make([]access.Event, 0, len(rows))
	for _, row := range rows {
		evts = append(evts, row.toEvent())
	}
	return evts
}
