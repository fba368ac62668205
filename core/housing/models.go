package housing

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/occupeye/backend/core"
)

// Dorm represents a dormitory building.
type Dorm struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	ManagerID string    `json:"manager_id"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Room represents a single room within a Dorm.
type Room struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	DormID    string    `json:"dorm_id"`
	Floor     int       `json:"floor"`
	Capacity  int       `json:"capacity"`
	Occupied  int       `json:"occupied"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (r *Room) HasVacancy() bool {
	return r.Capacity == 0 || r.Occupied < r.Capacity
}

// NewDorm contains information needed to create a new Dorm.
type NewDorm struct {
	Name      string `json:"name" validate:"required"`
	Address   string `json:"address"`
	ManagerID string `json:"manager_id"`
	Capacity  int    `json:"capacity" validate:"gte=0"`
}

func (nd *NewDorm) Validate(validate *validator.Validate, svc Service) error {
	nd.Name = core.CleanString(nd.Name)
	nd.Address = core.CleanString(nd.Address)

	if err := validate.Struct(nd); err != nil {
		return err
	}
	return svc.CheckDormNameUniqueness(nd.Name)
}

// UpdateDorm defines what information may be provided to modify an existing Dorm.
type UpdateDorm struct {
	Name      string `json:"name"`
	Address   *string `json:"address"`
	ManagerID *string `json:"manager_id"`
	Capacity  *int    `json:"capacity" validate:"omitempty,gte=0"`
}

func (ud *UpdateDorm) Validate(origDorm Dorm, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(ud.Name); name != "" {
		ud.Name = name
	} else {
		ud.Name = origDorm.Name
	}

	if err := validate.Struct(ud); err != nil {
		return err
	}
	return svc.CheckDormNameUniqueness(ud.Name, origDorm)
}

// NewRoom contains information needed to create a new Room.
type NewRoom struct {
	Number   string `json:"number" validate:"required"`
	DormID   string `json:"dorm_id" validate:"required"`
	Floor    int    `json:"floor" validate:"gte=0"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

func (nr *NewRoom) Validate(validate *validator.Validate, svc Service) error {
	nr.Number = core.CleanString(nr.Number)

	if err := validate.Struct(nr); err != nil {
		return err
	}
	return svc.CheckRoomNumberUniqueness(nr.DormID, nr.Number)
}

// UpdateRoom defines what information may be provided to modify an existing Room.
type UpdateRoom struct {
	Number   string `json:"number"`
	Floor    *int   `json:"floor" validate:"omitempty,gte=0"`
	Capacity *int   `json:"capacity" validate:"omitempty,gte=0"`
}

func (ur *UpdateRoom) Validate(origRoom Room, validate *validator.Validate, svc Service) error {
	if number := core.CleanString(ur.Number); number != "" {
		ur.Number = number
	} else {
		ur.Number = origRoom.Number
	}

	if err := validate.Struct(ur); err != nil {
		return err
	}
	return svc.CheckRoomNumberUniqueness(origRoom.DormID, ur.Number, origRoom)
}
