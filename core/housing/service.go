package housing

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/occupeye/backend/core"
)

var (
	// errors
	ErrDormNotFound     = errors.New("dorm not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrDormNameExists   = errors.New("a dorm with this name already exists")
	ErrRoomNumberExists = errors.New("a room with this number already exists in this dorm")
	ErrRoomFull         = errors.New("room is at full capacity")
)

type (
	Repository interface {
		CheckDormNameUniqueness(ctx context.Context, name string, excludedDorms ...Dorm) error
		CreateDorm(ctx context.Context, dorm Dorm) (Dorm, error)
		QueryAllDorms(ctx context.Context) ([]Dorm, error)
		GetDormByID(ctx context.Context, id string) (Dorm, error)
		GetDormByName(ctx context.Context, name string) (Dorm, error)
		UpdateDorm(ctx context.Context, dorm Dorm) (Dorm, error)
		DeleteDormsByID(ctx context.Context, ids ...string) error

		CheckRoomNumberUniqueness(ctx context.Context, dormID, number string, excludedRooms ...Room) error
		CreateRoom(ctx context.Context, room Room) (Room, error)
		QueryAllRooms(ctx context.Context) ([]Room, error)
		QueryRoomsByDorm(ctx context.Context, dormID string) ([]Room, error)
		GetRoomByID(ctx context.Context, id string) (Room, error)
		UpdateRoom(ctx context.Context, room Room) (Room, error)
		// AdjustRoomOccupancy changes the occupied count by delta, clamped at 0.
		AdjustRoomOccupancy(ctx context.Context, id string, delta int) (Room, error)
		DeleteRoomsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckDormNameUniqueness(name string, exclDorms ...Dorm) error
		CreateDorm(ctx context.Context, nd NewDorm) (Dorm, error)
		QueryAllDorms(ctx context.Context) ([]Dorm, error)
		GetDormByID(ctx context.Context, id string) (Dorm, error)
		GetDormByName(ctx context.Context, name string) (Dorm, error)
		UpdateDorm(ctx context.Context, id string, ud UpdateDorm) (Dorm, error)
		DeleteDorms(ctx context.Context, ids ...string) error

		CheckRoomNumberUniqueness(dormID, number string, exclRooms ...Room) error
		CreateRoom(ctx context.Context, nr NewRoom) (Room, error)
		QueryAllRooms(ctx context.Context) ([]Room, error)
		QueryRoomsByDorm(ctx context.Context, dormID string) ([]Room, error)
		GetRoomByID(ctx context.Context, id string) (Room, error)
		UpdateRoom(ctx context.Context, id string, ur UpdateRoom) (Room, error)
		AdjustRoomOccupancy(ctx context.Context, id string, delta int) (Room, error)
		DeleteRooms(ctx context.Context, ids ...string) error
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) CheckDormNameUniqueness(name string, exclDorms ...Dorm) error {
	if err := svc.repo.CheckDormNameUniqueness(context.Background(), name, exclDorms...); err != nil {
		if err == ErrDormNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) CreateDorm(ctx context.Context, nd NewDorm) (Dorm, error) {
	now := time.Now().UTC()
	dorm := Dorm{
		Name:      nd.Name,
		Address:   nd.Address,
		ManagerID: nd.ManagerID,
		Capacity:  nd.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateDorm(ctx, dorm)
}

func (svc *service) QueryAllDorms(ctx context.Context) ([]Dorm, error) {
	return svc.repo.QueryAllDorms(ctx)
}

func (svc *service) GetDormByID(ctx context.Context, id string) (Dorm, error) {
	return svc.repo.GetDormByID(ctx, id)
}

func (svc *service) GetDormByName(ctx context.Context, name string) (Dorm, error) {
	return svc.repo.GetDormByName(ctx, core.CleanString(name))
}

func (svc *service) UpdateDorm(ctx context.Context, id string, ud UpdateDorm) (Dorm, error) {
	orig, err := svc.repo.GetDormByID(ctx, id)
	if err != nil {
		return Dorm{}, err
	}
	orig.Name = ud.Name
	if ud.Address != nil {
		orig.Address = *ud.Address
	}
	if ud.ManagerID != nil {
		orig.ManagerID = *ud.ManagerID
	}
	if ud.Capacity != nil {
		orig.Capacity = *ud.Capacity
	}
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateDorm(ctx, orig)
}

func (svc *service) DeleteDorms(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteDormsByID(ctx, ids...)
}

func (svc *service) CheckRoomNumberUniqueness(dormID, number string, exclRooms ...Room) error {
	if err := svc.repo.CheckRoomNumberUniqueness(context.Background(), dormID, number, exclRooms...); err != nil {
		if err == ErrRoomNumberExists {
			return core.NewValidationError(err, core.FieldError{Field: "number", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) CreateRoom(ctx context.Context, nr NewRoom) (Room, error) {
	if _, err := svc.repo.GetDormByID(ctx, nr.DormID); err != nil {
		if errors.Cause(err) == ErrDormNotFound {
			return Room{}, core.NewValidationError(err, core.FieldError{Field: "dorm_id", Error: err.Error()})
		}
		return Room{}, err
	}
	now := time.Now().UTC()
	room := Room{
		Number:    nr.Number,
		DormID:    nr.DormID,
		Floor:     nr.Floor,
		Capacity:  nr.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateRoom(ctx, room)
}

func (svc *service) QueryAllRooms(ctx context.Context) ([]Room, error) {
	return svc.repo.QueryAllRooms(ctx)
}

func (svc *service) QueryRoomsByDorm(ctx context.Context, dormID string) ([]Room, error) {
	return svc.repo.QueryRoomsByDorm(ctx, dormID)
}

func (svc *service) GetRoomByID(ctx context.Context, id string) (Room, error) {
	return svc.repo.GetRoomByID(ctx, id)
}

func (svc *service) UpdateRoom(ctx context.Context, id string, ur UpdateRoom) (Room, error) {
	orig, err := svc.repo.GetRoomByID(ctx, id)
	if err != nil {
		return Room{}, err
	}
	orig.Number = ur.Number
	if ur.Floor != nil {
		orig.Floor = *ur.Floor
	}
	if ur.Capacity != nil {
		orig.Capacity = *ur.Capacity
	}
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRoom(ctx, orig)
}

func (svc *service) AdjustRoomOccupancy(ctx context.Context, id string, delta int) (Room, error) {
	return svc.repo.AdjustRoomOccupancy(ctx, id, delta)
}

func (svc *service) DeleteRooms(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteRoomsByID(ctx, ids...)
}
