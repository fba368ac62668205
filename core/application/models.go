package application

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/occupeye/backend/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Application is a student's request for housing in a dorm, optionally
// naming a preferred room. Reviewed by a manager or an admin.
type Application struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	DormID     string    `json:"dorm_id"`
	RoomID     string    `json:"room_id,omitempty"`
	Status     string    `json:"status"`
	Note       string    `json:"note,omitempty"`
	ReviewedBy string    `json:"reviewed_by,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at,omitempty"` // UTC
	CreatedAt  time.Time `json:"created_at"`            // UTC
	UpdatedAt  time.Time `json:"updated_at"`            // UTC
}

func (a *Application) IsPending() bool {
	return a.Status == StatusPending
}

// NewApplication contains information needed to submit a housing application.
type NewApplication struct {
	DormID string `json:"dorm_id" validate:"required"`
	RoomID string `json:"room_id"`
	Note   string `json:"note"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.Note = core.CleanString(na.Note)
	return validate.Struct(na)
}

// ReviewApplication defines a manager's decision on a pending application.
type ReviewApplication struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Note     string `json:"note"`
}

func (ra *ReviewApplication) Validate(validate *validator.Validate) error {
	ra.Decision = core.CleanString(ra.Decision, true /* lower */)
	ra.Note = core.CleanString(ra.Note)
	return validate.Struct(ra)
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	DormID    string `query:"dorm_id"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.DormID == "" && qf.Status == ""
}
