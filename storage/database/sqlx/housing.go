package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/occupeye/backend/core/housing"
)

type dormRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Address   null.String `db:"address"`
	ManagerID null.String `db:"manager_id"`
	Capacity  int         `db:"capacity"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

func (row dormRow) toDorm() housing.Dorm {
	return housing.Dorm{
		ID:        row.ID,
		Name:      row.Name,
		Address:   row.Address.String,
		ManagerID: row.ManagerID.String,
		Capacity:  row.Capacity,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func newDormRow(dorm housing.Dorm) dormRow {
	return dormRow{
		ID:        dorm.ID,
		Name:      dorm.Name,
		Address:   null.NewString(dorm.Address, dorm.Address != ""),
		ManagerID: null.NewString(dorm.ManagerID, dorm.ManagerID != ""),
		Capacity:  dorm.Capacity,
		CreatedAt: null.NewTime(dorm.CreatedAt.UTC(), !dorm.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(dorm.UpdatedAt.UTC(), !dorm.UpdatedAt.IsZero()),
	}
}

type roomRow struct {
	ID        string    `db:"id"`
	Number    string    `db:"number"`
	DormID    string    `db:"dorm_id"`
	Floor     int       `db:"floor"`
	Capacity  int       `db:"capacity"`
	Occupied  int       `db:"occupied"`
	CreatedAt null.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

func (row roomRow) toRoom() housing.Room {
	return housing.Room{
		ID:        row.ID,
		Number:    row.Number,
		DormID:    row.DormID,
		Floor:     row.Floor,
		Capacity:  row.Capacity,
		Occupied:  row.Occupied,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func newRoomRow(room housing.Room) roomRow {
	return roomRow{
		ID:        room.ID,
		Number:    room.Number,
		DormID:    room.DormID,
		Floor:     room.Floor,
		Capacity:  room.Capacity,
		Occupied:  room.Occupied,
		CreatedAt: null.NewTime(room.CreatedAt.UTC(), !room.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(room.UpdatedAt.UTC(), !room.UpdatedAt.IsZero()),
	}
}

type housingRepository struct {
	db *sqlx.DB
}

var _ housing.Repository = (*housingRepository)(nil) // interface compliance check

func NewHousingRepository(db *sqlx.DB) housing.Repository {
	return &housingRepository{db: db}
}

const dormColumns = `id, name, address, manager_id, capacity, created_at, updated_at`
const roomColumns = `id, number, dorm_id, floor, capacity, occupied, created_at, updated_at`

func (repo housingRepository) CheckDormNameUniqueness(ctx context.Context, name string, excludedDorms ...housing.Dorm) error {
	q := `SELECT EXISTS (SELECT 1 FROM dorm WHERE name = $1`
	args := []interface{}{name}
	if len(excludedDorms) > 0 {
		ids := make([]string, 0, len(excludedDorms))
		for _, d := range excludedDorms {
			ids = append(ids, d.ID)
		}
		q += ` AND id != ALL($2)`
		args = append(args, pq.Array(ids))
	}
	q += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking dorm name uniqueness")
	}
	if exists {
		return housing.ErrDormNameExists
	}
	return nil
}

func (repo housingRepository) CreateDorm(ctx context.Context, dorm housing.Dorm) (housing.Dorm, error) {
	dorm.ID = uuid.New().String()
	row := newDormRow(dorm)
	q := `INSERT INTO dorm (` + dormColumns + `)
VALUES (:id, :name, :address, :manager_id, :capacity, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return housing.Dorm{}, errors.Wrap(err, "inserting dorm")
	}
	return row.toDorm(), nil
}

func (repo housingRepository) QueryAllDorms(ctx context.Context) ([]housing.Dorm, error) {
	var rows []dormRow
	q := `SELECT ` + dormColumns + ` FROM dorm ORDER BY name`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying dorms")
	}
	dorms := make([]housing.Dorm, 0, len(rows))
	for _, row := range rows {
		dorms = append(dorms, row.toDorm())
	}
	return dorms, nil
}

func (repo housingRepository) getDormWhere(ctx context.Context, clause string, args ...interface{}) (housing.Dorm, error) {
	var row dormRow
	q := `SELECT ` + dormColumns + ` FROM dorm WHERE ` + clause
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return housing.Dorm{}, housing.ErrDormNotFound
		}
		return housing.Dorm{}, errors.Wrap(err, "getting dorm")
	}
	return row.toDorm(), nil
}

func (repo housingRepository) GetDormByID(ctx context.Context, id string) (housing.Dorm, error) {
	return repo.getDormWhere(ctx, `id = $1`, id)
}

func (repo housingRepository) GetDormByName(ctx context.Context, name string) (housing.Dorm, error) {
	return repo.getDormWhere(ctx, `name = $1`, name)
}

func (repo housingRepository) UpdateDorm(ctx context.Context, dorm housing.Dorm) (housing.Dorm, error) {
	row := newDormRow(dorm)
	q := `UPDATE dorm SET name = :name, address = :address, manager_id = :manager_id,
capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return housing.Dorm{}, errors.Wrap(err, "updating dorm")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return housing.Dorm{}, housing.ErrDormNotFound
	}
	return row.toDorm(), nil
}

func (repo housingRepository) DeleteDormsByID(ctx context.Context, ids ...string) error {
	q := `DELETE FROM dorm WHERE id = ANY($1)`
	if _, err := repo.db.ExecContext(ctx, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting dorms")
	}
	return nil
}

func (repo housingRepository) CheckRoomNumberUniqueness(ctx context.Context, dormID, number string, excludedRooms ...housing.Room) error {
	q := `SELECT EXISTS (SELECT 1 FROM room WHERE dorm_id = $1 AND number = $2`
	args := []interface{}{dormID, number}
	if len(excludedRooms) > 0 {
		ids := make([]string, 0, len(excludedRooms))
		for _, r := range excludedRooms {
			ids = append(ids, r.ID)
		}
		q += ` AND id != ALL($3)`
		args = append(args, pq.Array(ids))
	}
	q += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking room number uniqueness")
	}
	if exists {
		return housing.ErrRoomNumberExists
	}
	return nil
}

func (repo housingRepository) CreateRoom(ctx context.Context, room housing.Room) (housing.Room, error) {
	room.ID = uuid.New().String()
	row := newRoomRow(room)
	q := `INSERT INTO room (` + roomColumns + `)
VALUES (:id, :number, :dorm_id, :floor, :capacity, :occupied, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return housing.Room{}, errors.Wrap(err, "inserting room")
	}
	return row.toRoom(), nil
}

func (repo housingRepository) queryRooms(ctx context.Context, clause string, args ...interface{}) ([]housing.Room, error) {
	var rows []roomRow
	q := `SELECT ` + roomColumns + ` FROM room`
	if clause != "" {
		q += ` WHERE ` + clause
	}
	q += ` ORDER BY dorm_id, number`
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	rooms := make([]housing.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.toRoom())
	}
	return rooms, nil
}

func (repo housingRepository) QueryAllRooms(ctx context.Context) ([]housing.Room, error) {
	return repo.queryRooms(ctx, "")
}

func (repo housingRepository) QueryRoomsByDorm(ctx context.Context, dormID string) ([]housing.Room, error) {
	return repo.queryRooms(ctx, `dorm_id = $1`, dormID)
}

func (repo housingRepository) GetRoomByID(ctx context.Context, id string) (housing.Room, error) {
	var row roomRow
	q := `SELECT ` + roomColumns + ` FROM room WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return housing.Room{}, housing.ErrRoomNotFound
		}
		return housing.Room{}, errors.Wrap(err, "getting room")
	}
	return row.toRoom(), nil
}

func (repo housingRepository) UpdateRoom(ctx context.Context, room housing.Room) (housing.Room, error) {
	row := newRoomRow(room)
	q := `UPDATE room SET number = :number, floor = :floor, capacity = :capacity,
occupied = :occupied, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return housing.Room{}, errors.Wrap(err, "updating room")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return housing.Room{}, housing.ErrRoomNotFound
	}
	return row.toRoom(), nil
}

func (repo housingRepository) AdjustRoomOccupancy(ctx context.Context, id string, delta int) (housing.Room, error) {
	var row roomRow
	q := fmt.Sprintf(`UPDATE room SET occupied = GREATEST(occupied + $1, 0)
WHERE id = $2 RETURNING %s`, roomColumns)
	if err := repo.db.GetContext(ctx, &row, q, delta, id); err != nil {
		if err == sql.ErrNoRows {
			return housing.Room{}, housing.ErrRoomNotFound
		}
		return housing.Room{}, errors.Wrap(err, "adjusting room occupancy")
	}
	return row.toRoom(), nil
}

func (repo housingRepository) DeleteRoomsByID(ctx context.Context, ids ...string) error {
	q := `DELETE FROM room WHERE id = ANY($1)`
	if _, err := repo.db.ExecContext(ctx, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting rooms")
	}
	return nil
}
