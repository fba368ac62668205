package application

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/housing"
	"github.com/occupeye/backend/core/notification"
	"github.com/occupeye/backend/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("application not found")
	ErrAlreadyReviewed = errors.New("application has already been reviewed")
	ErrPendingExists   = errors.New("a pending application already exists for this student")
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application) (Application, error)
		GetApplicationByID(ctx context.Context, id string) (Application, error)
		QueryApplicationsByStudent(ctx context.Context, studentID string) ([]Application, error)
		// FilterApplications applies AND operation on available QueryFilter fields.
		FilterApplications(ctx context.Context, filter QueryFilter) ([]Application, error)
		HasPendingApplication(ctx context.Context, studentID string) (bool, error)
		UpdateApplication(ctx context.Context, app Application) (Application, error)
	}

	Service interface {
		Submit(ctx context.Context, studentID string, na NewApplication) (Application, error)
		GetByID(ctx context.Context, id string) (Application, error)
		QueryByStudent(ctx context.Context, studentID string) ([]Application, error)
		Filter(ctx context.Context, filter QueryFilter) ([]Application, error)
		Review(ctx context.Context, id, reviewerID string, ra ReviewApplication) (Application, error)
	}

	service struct {
		repo       Repository
		usrSvc     user.Service
		housingSvc housing.Service
		notifSvc   notification.Service
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	usrSvc user.Service,
	housingSvc housing.Service,
	notifSvc notification.Service,
	logger core.Logger,
) Service {
	return &service{
		repo:       repo,
		usrSvc:     usrSvc,
		housingSvc: housingSvc,
		notifSvc:   notifSvc,
		logger:     logger,
	}
}

func (svc *service) Submit(ctx context.Context, studentID string, na NewApplication) (Application, error) {
	pending, err := svc.repo.HasPendingApplication(ctx, studentID)
	if err != nil {
		return Application{}, errors.Wrap(err, "checking pending applications")
	}
	if pending {
		return Application{}, core.NewValidationError(ErrPendingExists)
	}

	if _, err := svc.housingSvc.GetDormByID(ctx, na.DormID); err != nil {
		if errors.Cause(err) == housing.ErrDormNotFound {
			return Application{}, core.NewValidationError(err, core.FieldError{Field: "dorm_id", Error: err.Error()})
		}
		return Application{}, err
	}
	if na.RoomID != "" {
		room, err := svc.housingSvc.GetRoomByID(ctx, na.RoomID)
		if err != nil {
			if errors.Cause(err) == housing.ErrRoomNotFound {
				return Application{}, core.NewValidationError(err, core.FieldError{Field: "room_id", Error: err.Error()})
			}
			return Application{}, err
		}
		if room.DormID != na.DormID {
			return Application{}, core.NewValidationError(
				errors.New("room does not belong to the selected dorm"),
				core.FieldError{Field: "room_id", Error: "room does not belong to the selected dorm"},
			)
		}
	}

	now := time.Now().UTC()
	app := Application{
		StudentID: studentID,
		DormID:    na.DormID,
		RoomID:    na.RoomID,
		Status:    StatusPending,
		Note:      na.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	app, err = svc.repo.CreateApplication(ctx, app)
	if err != nil {
		return Application{}, err
	}

	// keep the student's own record in sync
	if err := svc.usrSvc.SetHousingAssignment(ctx, studentID, "", "", StatusPending); err != nil {
		svc.logger.Error(fmt.Sprintf("setting application status on user %s: %v", studentID, err), err)
	}
	return app, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Application, error) {
	return svc.repo.GetApplicationByID(ctx, id)
}

func (svc *service) QueryByStudent(ctx context.Context, studentID string) ([]Application, error) {
	return svc.repo.QueryApplicationsByStudent(ctx, studentID)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]Application, error) {
	return svc.repo.FilterApplications(ctx, filter)
}

// Review applies a manager's decision. Approval assigns the room/building on
// the student's record and bumps the room occupancy; rejection only flips
// statuses. The outcome is notified to the student either way.
func (svc *service) Review(ctx context.Context, id, reviewerID string, ra ReviewApplication) (Application, error) {
	app, err := svc.repo.GetApplicationByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !app.IsPending() {
		return Application{}, core.NewValidationError(ErrAlreadyReviewed)
	}

	dorm, err := svc.housingSvc.GetDormByID(ctx, app.DormID)
	if err != nil {
		return Application{}, errors.Wrap(err, "resolving application dorm")
	}

	var assignedRoom string
	if ra.Decision == StatusApproved && app.RoomID != "" {
		room, err := svc.housingSvc.GetRoomByID(ctx, app.RoomID)
		if err != nil {
			return Application{}, errors.Wrap(err, "resolving application room")
		}
		if !room.HasVacancy() {
			return Application{}, core.NewValidationError(housing.ErrRoomFull)
		}
		if _, err := svc.housingSvc.AdjustRoomOccupancy(ctx, room.ID, +1); err != nil {
			return Application{}, errors.Wrap(err, "bumping room occupancy")
		}
		assignedRoom = room.Number
	}

	app.Status = ra.Decision
	if ra.Note != "" {
		app.Note = ra.Note
	}
	app.ReviewedBy = reviewerID
	app.ReviewedAt = time.Now().UTC()
	app.UpdatedAt = app.ReviewedAt
	app, err = svc.repo.UpdateApplication(ctx, app)
	if err != nil {
		return Application{}, err
	}

	var assignedBuilding string
	if ra.Decision == StatusApproved {
		assignedBuilding = dorm.Name
	}
	if err := svc.usrSvc.SetHousingAssignment(ctx, app.StudentID, assignedRoom, assignedBuilding, ra.Decision); err != nil {
		svc.logger.Error(fmt.Sprintf("setting housing assignment on user %s: %v", app.StudentID, err), err)
	}

	usr, err := svc.usrSvc.GetByID(ctx, app.StudentID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("resolving student %s for notification: %v", app.StudentID, err), err)
		return app, nil
	}
	if err := svc.notifSvc.NotifyApplication(ctx, usr, ra.Decision, dorm.Name); err != nil {
		svc.logger.Error(fmt.Sprintf("notifying student %s: %v", app.StudentID, err), err)
	}
	return app, nil
}
