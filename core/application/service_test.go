package application_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/pkg/errors"

	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/application"
	"github.com/occupeye/backend/core/housing"
	"github.com/occupeye/backend/core/notification"
	"github.com/occupeye/backend/core/user"
	emailsvc "github.com/occupeye/backend/services/email"
	logsvc "github.com/occupeye/backend/services/logger"
	dummydb "github.com/occupeye/backend/storage/database/dummy"
)

type applicationFixture struct {
	usrRepo    user.Repository
	usrSvc     user.Service
	housingSvc housing.Service
	notifRepo  notification.Repository
	svc        application.Service
}

func newApplicationFixture(t *testing.T) *applicationFixture {
	t.Helper()

	conf := core.NewConfig("test")
	conf.TestMode = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	fix := &applicationFixture{
		usrRepo:   dummydb.NewUserRepository(db),
		notifRepo: dummydb.NewNotificationRepository(db),
	}
	fix.usrSvc = user.NewServiceMock(conf, fix.usrRepo, mailSvc, logger)
	fix.housingSvc = housing.NewService(dummydb.NewHousingRepository(db), logger)
	notifSvc := notification.NewService(conf, fix.notifRepo, mailSvc, logger)
	fix.svc = application.NewService(
		dummydb.NewApplicationRepository(db), fix.usrSvc, fix.housingSvc, notifSvc, logger)
	return fix
}

func (fix *applicationFixture) createStudent(t *testing.T, uname string) user.User {
	t.Helper()

	usr := user.User{
		Username: uname,
		Email:    uname + "@test.test",
		Roles:    []string{user.RoleStudent},
		Status:   user.StatusActive,
	}
	usr.SetActive(true)
	usr, err := fix.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func TestService_Submit(t *testing.T) {
	fix := newApplicationFixture(t)
	ctx := context.Background()

	dorm, err := fix.housingSvc.CreateDorm(ctx, housing.NewDorm{Name: "West Hall", Capacity: 50})
	if err != nil {
		t.Fatalf("CreateDorm() failed: %v", err)
	}
	other, err := fix.housingSvc.CreateDorm(ctx, housing.NewDorm{Name: "Annex", Capacity: 10})
	if err != nil {
		t.Fatalf("CreateDorm() failed: %v", err)
	}
	room, err := fix.housingSvc.CreateRoom(ctx, housing.NewRoom{Number: "12", DormID: dorm.ID, Capacity: 2})
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	student := fix.createStudent(t, "sub")

	// unknown dorm is rejected
	if _, err := fix.svc.Submit(ctx, student.ID, application.NewApplication{DormID: "nope"}); err == nil {
		t.Error("Submit() with unknown dorm: expected error, got nil")
	}

	// room must belong to the chosen dorm
	if _, err := fix.svc.Submit(ctx, student.ID, application.NewApplication{DormID: other.ID, RoomID: room.ID}); err == nil {
		t.Error("Submit() with foreign room: expected error, got nil")
	}

	app, err := fix.svc.Submit(ctx, student.ID, application.NewApplication{DormID: dorm.ID, RoomID: room.ID})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if app.Status != application.StatusPending {
		t.Errorf("Status = %s, want %s", app.Status, application.StatusPending)
	}

	// the student's record reflects the pending application
	stored, err := fix.usrSvc.GetByID(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if stored.ApplicationStatus != application.StatusPending {
		t.Errorf("ApplicationStatus = %s, want %s", stored.ApplicationStatus, application.StatusPending)
	}

	// only one pending application at a time
	_, err = fix.svc.Submit(ctx, student.ID, application.NewApplication{DormID: dorm.ID})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("second Submit() error = %v, want ValidationError", err)
	}
}

func TestService_Review(t *testing.T) {
	fix := newApplicationFixture(t)
	ctx := context.Background()

	dorm, err := fix.housingSvc.CreateDorm(ctx, housing.NewDorm{Name: "Main Hall", Capacity: 50})
	if err != nil {
		t.Fatalf("CreateDorm() failed: %v", err)
	}
	room, err := fix.housingSvc.CreateRoom(ctx, housing.NewRoom{Number: "7", DormID: dorm.ID, Capacity: 1})
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	student := fix.createStudent(t, "rev")
	reviewer := fix.createStudent(t, "mgr")

	app, err := fix.svc.Submit(ctx, student.ID, application.NewApplication{DormID: dorm.ID, RoomID: room.ID})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	reviewed, err := fix.svc.Review(ctx, app.ID, reviewer.ID, application.ReviewApplication{Decision: application.StatusApproved})
	if err != nil {
		t.Fatalf("Review() failed: %v", err)
	}
	if reviewed.Status != application.StatusApproved {
		t.Errorf("Status = %s, want %s", reviewed.Status, application.StatusApproved)
	}
	if reviewed.ReviewedBy != reviewer.ID {
		t.Errorf("ReviewedBy = %s, want %s", reviewed.ReviewedBy, reviewer.ID)
	}
	if reviewed.ReviewedAt.IsZero() {
		t.Error("ReviewedAt not set")
	}

	// the student now lives there
	stored, err := fix.usrSvc.GetByID(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if stored.AssignedRoom != room.Number {
		t.Errorf("AssignedRoom = %s, want %s", stored.AssignedRoom, room.Number)
	}
	if stored.AssignedBuilding != dorm.Name {
		t.Errorf("AssignedBuilding = %s, want %s", stored.AssignedBuilding, dorm.Name)
	}
	if stored.ApplicationStatus != application.StatusApproved {
		t.Errorf("ApplicationStatus = %s, want %s", stored.ApplicationStatus, application.StatusApproved)
	}

	// the room occupancy was bumped
	gotRoom, err := fix.housingSvc.GetRoomByID(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoomByID() failed: %v", err)
	}
	if gotRoom.Occupied != 1 {
		t.Errorf("Occupied = %d, want 1", gotRoom.Occupied)
	}

	// the student was notified
	notifs, err := fix.notifRepo.QueryNotificationsByUser(ctx, student.ID)
	if err != nil {
		t.Fatalf("QueryNotificationsByUser() failed: %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("notification count = %d, want 1", len(notifs))
	}
	if notifs[0].Kind != notification.KindApplication {
		t.Errorf("Kind = %s, want %s", notifs[0].Kind, notification.KindApplication)
	}

	// a reviewed application cannot be reviewed again
	_, err = fix.svc.Review(ctx, app.ID, reviewer.ID, application.ReviewApplication{Decision: application.StatusRejected})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("second Review() error = %v, want ValidationError", err)
	}

	// a full room rejects further approvals
	second := fix.createStudent(t, "late")
	app2, err := fix.svc.Submit(ctx, second.ID, application.NewApplication{DormID: dorm.ID, RoomID: room.ID})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err := fix.svc.Review(ctx, app2.ID, reviewer.ID, application.ReviewApplication{Decision: application.StatusApproved}); err == nil {
		t.Error("Review() on full room: expected error, got nil")
	}
}

func TestService_Review_reject(t *testing.T) {
	fix := newApplicationFixture(t)
	ctx := context.Background()

	dorm, err := fix.housingSvc.CreateDorm(ctx, housing.NewDorm{Name: "Quiet Hall", Capacity: 20})
	if err != nil {
		t.Fatalf("CreateDorm() failed: %v", err)
	}
	student := fix.createStudent(t, "rej")
	reviewer := fix.createStudent(t, "boss")

	app, err := fix.svc.Submit(ctx, student.ID, application.NewApplication{DormID: dorm.ID})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	reviewed, err := fix.svc.Review(ctx, app.ID, reviewer.ID, application.ReviewApplication{Decision: application.StatusRejected, Note: "no space"})
	if err != nil {
		t.Fatalf("Review() failed: %v", err)
	}
	if reviewed.Status != application.StatusRejected {
		t.Errorf("Status = %s, want %s", reviewed.Status, application.StatusRejected)
	}
	if reviewed.Note != "no space" {
		t.Errorf("Note = %s, want 'no space'", reviewed.Note)
	}

	// a rejection leaves no assignment behind
	stored, err := fix.usrSvc.GetByID(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if stored.AssignedRoom != "" || stored.AssignedBuilding != "" {
		t.Errorf("assignment = (%s, %s), want empty", stored.AssignedRoom, stored.AssignedBuilding)
	}
	if stored.ApplicationStatus != application.StatusRejected {
		t.Errorf("ApplicationStatus = %s, want %s", stored.ApplicationStatus, application.StatusRejected)
	}
}
