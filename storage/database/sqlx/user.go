package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/user"
)

type userRow struct {
	ID                string         `db:"id"`
	FirstName         null.String    `db:"first_name"`
	LastName          null.String    `db:"last_name"`
	Username          null.String    `db:"username"`
	Email             null.String    `db:"email"`
	RFIDTag           null.String    `db:"rfid_tag"`
	Roles             pq.StringArray `db:"roles"`
	AssignedRoom      null.String    `db:"assigned_room"`
	AssignedBuilding  null.String    `db:"assigned_building"`
	ManagedDormID     null.String    `db:"managed_dorm_id"`
	Status            null.String    `db:"status"`
	ApplicationStatus null.String    `db:"application_status"`
	IsActive          null.Bool      `db:"is_active"`
	PasswordHash      null.Bytes     `db:"password_hash"`
	CreatedAt         null.Time      `db:"created_at"`
	UpdatedAt         null.Time      `db:"updated_at"`
	LastLogin         null.Time      `db:"last_login"`
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:                row.ID,
		FirstName:         row.FirstName.String,
		LastName:          row.LastName.String,
		Username:          row.Username.String,
		Email:             row.Email.String,
		RFIDTag:           row.RFIDTag.String,
		Roles:             row.Roles,
		AssignedRoom:      row.AssignedRoom.String,
		AssignedBuilding:  row.AssignedBuilding.String,
		ManagedDormID:     row.ManagedDormID.String,
		Status:            row.Status.String,
		ApplicationStatus: row.ApplicationStatus.String,
		IsActive:          row.IsActive.Ptr(),
		PasswordHash:      row.PasswordHash.Bytes,
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
		LastLogin:         row.LastLogin.Time,
	}
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:                usr.ID,
		FirstName:         null.NewString(usr.FirstName, usr.FirstName != ""),
		LastName:          null.NewString(usr.LastName, usr.LastName != ""),
		Username:          null.NewString(usr.Username, usr.Username != ""),
		Email:             null.NewString(usr.Email, usr.Email != ""),
		RFIDTag:           null.NewString(usr.RFIDTag, usr.RFIDTag != ""),
		Roles:             usr.Roles,
		AssignedRoom:      null.NewString(usr.AssignedRoom, usr.AssignedRoom != ""),
		AssignedBuilding:  null.NewString(usr.AssignedBuilding, usr.AssignedBuilding != ""),
		ManagedDormID:     null.NewString(usr.ManagedDormID, usr.ManagedDormID != ""),
		Status:            null.NewString(usr.Status, usr.Status != ""),
		ApplicationStatus: null.NewString(usr.ApplicationStatus, usr.ApplicationStatus != ""),
		IsActive:          null.BoolFromPtr(usr.IsActive),
		PasswordHash:      null.BytesFrom(usr.PasswordHash),
		CreatedAt:         null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:         null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:         null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email, rfidTag string, excludedUsers ...user.User) error {
	checks := []struct {
		column string
		value  string
		err    error
	}{
		{column: "username", value: username, err: user.ErrUsernameExists},
		{column: "email", value: email, err: user.ErrEmailExists},
		{column: "rfid_tag", value: rfidTag, err: user.ErrRFIDTagExists},
	}

	exclIDs := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		exclIDs = append(exclIDs, u.ID)
	}

	for _, check := range checks {
		if check.value == "" {
			continue
		}
		q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM "user" WHERE %s = $1`, check.column)
		args := []interface{}{check.value}
		if len(exclIDs) > 0 {
			q += ` AND id != ALL($2)`
			args = append(args, pq.Array(exclIDs))
		}
		q += `)`

		var exists bool
		if err := repo.db.GetContext(ctx, &exists, q, args...); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if exists {
			return check.err
		}
	}
	return nil
}

const userColumns = `id, first_name, last_name, username, email, rfid_tag, roles, assigned_room,
assigned_building, managed_dorm_id, status, application_status, is_active, password_hash,
created_at, updated_at, last_login`

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := newUserRow(usr)
	q := `INSERT INTO "user" (` + userColumns + `)
VALUES (:id, :first_name, :last_name, :username, :email, :rfid_tag, :roles, :assigned_room,
:assigned_building, :managed_dorm_id, :status, :application_status, :is_active, :password_hash,
:created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM "user"`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo userRepository) getUserWhere(ctx context.Context, clause string, args ...interface{}) (user.User, error) {
	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user" WHERE ` + clause
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUserWhere(ctx, `id = $1`, id)
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUserWhere(ctx, `username = $1`, username)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUserWhere(ctx, `email = $1`, email)
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUserWhere(ctx, `username = $1 OR email = $1`, username)
}

func (repo userRepository) GetUserByRFIDTag(ctx context.Context, tag string) (user.User, error) {
	return repo.getUserWhere(ctx, `rfid_tag = $1`, tag)
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var clauses []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + strings.ToLower(filter.Search) + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(first_name) LIKE %[1]s OR LOWER(last_name) LIKE %[1]s OR LOWER(username) LIKE %[1]s OR LOWER(email) LIKE %[1]s)", p))
	}
	if len(filter.Roles) > 0 {
		var roleClauses []string
		for _, role := range filter.Roles {
			roleClauses = append(roleClauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM unnest(roles) r WHERE r LIKE %s)", arg(role+"%")))
		}
		clauses = append(clauses, "("+strings.Join(roleClauses, " OR ")+")")
	}
	if filter.IsActive != nil {
		clauses = append(clauses, "is_active = "+arg(*filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		clauses = append(clauses, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		clauses = append(clauses, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}

	q := `SELECT ` + userColumns + ` FROM "user"`
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	if len(ordering) > 0 {
		q += " ORDER BY " + ordering[0].String()
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return toUsers(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	sets := []string{"updated_at = :updated_at"}
	row := newUserRow(usr)
	if usr.FirstName != "" {
		sets = append(sets, "first_name = :first_name")
	}
	if usr.LastName != "" {
		sets = append(sets, "last_name = :last_name")
	}
	if usr.Username != "" {
		sets = append(sets, "username = :username")
	}
	if usr.Email != "" {
		sets = append(sets, "email = :email")
	}
	if usr.RFIDTag != "" {
		sets = append(sets, "rfid_tag = :rfid_tag")
	}
	if usr.Roles != nil {
		sets = append(sets, "roles = :roles")
	}
	if usr.Status != "" {
		sets = append(sets, "status = :status")
	}
	if usr.PasswordHash != nil {
		sets = append(sets, "password_hash = :password_hash")
	}
	if isActive != nil {
		row.IsActive = null.BoolFrom(*isActive)
		sets = append(sets, "is_active = :is_active")
	}
	sets = append(sets,
		"assigned_room = :assigned_room",
		"assigned_building = :assigned_building",
		"managed_dorm_id = :managed_dorm_id",
	)

	q := `UPDATE "user" SET ` + strings.Join(sets, ", ") + ` WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo userRepository) UpdateUserStatus(ctx context.Context, id, status string, at time.Time) error {
	q := `UPDATE "user" SET status = $1, updated_at = $2 WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, q, status, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating user status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) SetHousingAssignment(ctx context.Context, id, room, building, applicationStatus string, at time.Time) error {
	q := `UPDATE "user" SET assigned_room = $1, assigned_building = $2, application_status = $3, updated_at = $4 WHERE id = $5`
	res, err := repo.db.ExecContext(ctx, q,
		null.NewString(room, room != ""),
		null.NewString(building, building != ""),
		null.NewString(applicationStatus, applicationStatus != ""),
		at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting housing assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) (user.User, error) {
	q := `UPDATE "user" SET last_login = $1 WHERE id = $2`
	if _, err := repo.db.ExecContext(ctx, q, at.UTC(), id); err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return repo.GetUserByID(ctx, id)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	q := `DELETE FROM "user" WHERE id = ANY($1)`
	if _, err := repo.db.ExecContext(ctx, q, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users
}
