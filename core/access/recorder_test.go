package access_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/access"
	"github.com/occupeye/backend/core/housing"
	"github.com/occupeye/backend/core/notification"
	"github.com/occupeye/backend/core/user"
	emailsvc "github.com/occupeye/backend/services/email"
	logsvc "github.com/occupeye/backend/services/logger"
	dummydb "github.com/occupeye/backend/storage/database/dummy"
)

type recorderFixture struct {
	conf       *core.Config
	repo       access.Repository
	usrRepo    user.Repository
	usrSvc     user.Service
	housingSvc housing.Service
	notifRepo  notification.Repository
	notifSvc   notification.Service
	logger     core.Logger
	recorder   access.Recorder
}

func newRecorderFixture(t *testing.T) *recorderFixture {
	t.Helper()

	conf := core.NewConfig("test")
	conf.TestMode = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	fix := &recorderFixture{
		conf:      conf,
		repo:      dummydb.NewAccessRepository(db),
		usrRepo:   dummydb.NewUserRepository(db),
		notifRepo: dummydb.NewNotificationRepository(db),
		logger:    logger,
	}
	fix.usrSvc = user.NewServiceMock(conf, fix.usrRepo, mailSvc, logger)
	fix.housingSvc = housing.NewService(dummydb.NewHousingRepository(db), logger)
	fix.notifSvc = notification.NewService(conf, fix.notifRepo, mailSvc, logger)
	fix.recorder = access.NewRecorder(fix.repo, fix.usrSvc, fix.housingSvc, fix.notifSvc, logger)
	return fix
}

func (fix *recorderFixture) createUser(t *testing.T, usr user.User) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr.Status = user.StatusActive
	usr.CreatedAt = now
	usr.UpdatedAt = now
	usr.SetActive(true)
	created, err := fix.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return created
}

func (fix *recorderFixture) createDorm(t *testing.T, name string) housing.Dorm {
	t.Helper()

	dorm, err := fix.housingSvc.CreateDorm(context.Background(), housing.NewDorm{Name: name, Capacity: 100})
	if err != nil {
		t.Fatalf("CreateDorm() failed: %v", err)
	}
	return dorm
}

func (fix *recorderFixture) createRoom(t *testing.T, dormID, number string) housing.Room {
	t.Helper()

	room, err := fix.housingSvc.CreateRoom(context.Background(), housing.NewRoom{Number: number, DormID: dormID, Capacity: 2})
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	return room
}

func (fix *recorderFixture) allEvents(t *testing.T) []access.Event {
	t.Helper()

	evts, err := fix.repo.QueryRecentEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("QueryRecentEvents() failed: %v", err)
	}
	return evts
}

func TestRecorder_Record_requiresRFIDValue(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  access.ScanRequest
	}{
		{name: "empty", req: access.ScanRequest{}},
		{name: "whitespace", req: access.ScanRequest{RFIDValue: "   "}},
		{name: "empty with room", req: access.ScanRequest{RoomID: "some-room"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fix.recorder.Record(ctx, tt.req)
			if err == nil {
				t.Fatal("Record() expected error, got nil")
			}
			var vErr *core.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("Record() error = %v, want ValidationError", err)
			}
		})
	}

	// a rejected scan must leave no trace in the log
	if evts := fix.allEvents(t); len(evts) != 0 {
		t.Errorf("event count = %d, want 0", len(evts))
	}
}

func TestRecorder_Record_unknownCredential(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	dorm := fix.createDorm(t, "North Hall")
	room := fix.createRoom(t, dorm.ID, "101")

	// without a room context: denied but nothing logged
	_, err := fix.recorder.Record(ctx, access.ScanRequest{RFIDValue: "no-such-tag"})
	if errors.Cause(err) != access.ErrUnknownCredential {
		t.Fatalf("Record() error = %v, want %v", err, access.ErrUnknownCredential)
	}
	if evts := fix.allEvents(t); len(evts) != 0 {
		t.Fatalf("event count = %d, want 0", len(evts))
	}

	// with a known room: a denied entry is logged against the unknown identity
	_, err = fix.recorder.Record(ctx, access.ScanRequest{RFIDValue: "no-such-tag", RoomID: room.ID})
	if errors.Cause(err) != access.ErrUnknownCredential {
		t.Fatalf("Record() error = %v, want %v", err, access.ErrUnknownCredential)
	}
	evts := fix.allEvents(t)
	if len(evts) != 1 {
		t.Fatalf("event count = %d, want 1", len(evts))
	}
	evt := evts[0]
	if evt.Action != access.ActionDenied {
		t.Errorf("Action = %s, want %s", evt.Action, access.ActionDenied)
	}
	if evt.UserID != access.UnknownUserID {
		t.Errorf("UserID = %s, want %s", evt.UserID, access.UnknownUserID)
	}
	if evt.Room != room.Number {
		t.Errorf("Room = %s, want %s", evt.Room, room.Number)
	}
	if evt.Building != dorm.Name {
		t.Errorf("Building = %s, want %s", evt.Building, dorm.Name)
	}

	// with an unresolvable room: the raw identifier is kept as the room name
	_, err = fix.recorder.Record(ctx, access.ScanRequest{RFIDValue: "no-such-tag", RoomID: "ghost-room"})
	if errors.Cause(err) != access.ErrUnknownCredential {
		t.Fatalf("Record() error = %v, want %v", err, access.ErrUnknownCredential)
	}
	evts = fix.allEvents(t)
	if len(evts) != 2 {
		t.Fatalf("event count = %d, want 2", len(evts))
	}
	var ghost *access.Event
	for i := range evts {
		if evts[i].Room == "ghost-room" {
			ghost = &evts[i]
		}
	}
	if ghost == nil {
		t.Fatal("no denied event recorded with the raw room identifier")
	}
	if ghost.Building != "" {
		t.Errorf("Building = %s, want empty", ghost.Building)
	}
}

func TestRecorder_Record_togglesEntryExit(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	dorm := fix.createDorm(t, "East Hall")
	room := fix.createRoom(t, dorm.ID, "204")
	usr := fix.createUser(t, user.User{
		FirstName: "Ada",
		LastName:  "M",
		Username:  "ada",
		Email:     "ada@test.test",
		RFIDTag:   "AA:BB:CC:01",
		Roles:     []string{user.RoleStudent},
	})

	req := access.ScanRequest{RFIDValue: usr.RFIDTag, RoomID: room.ID}
	wantActions := []string{access.ActionEntry, access.ActionExit, access.ActionEntry, access.ActionExit}

	for i, want := range wantActions {
		res, err := fix.recorder.Record(ctx, req)
		if err != nil {
			t.Fatalf("scan %d: Record() failed: %v", i, err)
		}
		if res.LogEntry.Action != want {
			t.Errorf("scan %d: Action = %s, want %s", i, res.LogEntry.Action, want)
		}
		if res.User.Status != want {
			t.Errorf("scan %d: returned user status = %s, want %s", i, res.User.Status, want)
		}

		// current status follows the recorded action
		stored, err := fix.usrSvc.GetByID(ctx, usr.ID)
		if err != nil {
			t.Fatalf("scan %d: GetByID() failed: %v", i, err)
		}
		if stored.Status != want {
			t.Errorf("scan %d: stored user status = %s, want %s", i, stored.Status, want)
		}

		// events carry distinct timestamps so history ordering stays unambiguous
		time.Sleep(2 * time.Millisecond)
	}

	if evts := fix.allEvents(t); len(evts) != len(wantActions) {
		t.Errorf("event count = %d, want %d", len(evts), len(wantActions))
	}

	// each recorded scan leaves a notification behind
	notifs, err := fix.notifRepo.QueryNotificationsByUser(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryNotificationsByUser() failed: %v", err)
	}
	if len(notifs) != len(wantActions) {
		t.Errorf("notification count = %d, want %d", len(notifs), len(wantActions))
	}
}

func TestRecorder_Record_deniedHistoryDefaultsToEntry(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	usr := fix.createUser(t, user.User{
		Username: "dee", Email: "dee@test.test", RFIDTag: "TAG-DEE", Roles: []string{user.RoleStudent},
	})

	// the identity's only history is a denied event
	_, err := fix.repo.AppendEvent(ctx, access.Event{
		UserID:    usr.ID,
		UserName:  usr.Name(),
		Action:    access.ActionDenied,
		Timestamp: time.Now().UTC(),
		UserRef:   usr.ID,
	})
	if err != nil {
		t.Fatalf("AppendEvent() failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	res, err := fix.recorder.Record(ctx, access.ScanRequest{RFIDValue: usr.RFIDTag})
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if res.LogEntry.Action != access.ActionEntry {
		t.Errorf("Action = %s, want %s", res.LogEntry.Action, access.ActionEntry)
	}
	if res.User.Status != access.ActionEntry {
		t.Errorf("returned user status = %s, want %s", res.User.Status, access.ActionEntry)
	}
}

func TestRecorder_Record_contextResolution(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	north := fix.createDorm(t, "North Hall")
	south := fix.createDorm(t, "South Hall")
	northRoom := fix.createRoom(t, north.ID, "101")

	tests := []struct {
		name         string
		usr          user.User
		roomID       string
		wantRoom     string
		wantBuilding string
		wantDormID   string
	}{
		{
			name:         "supplied room wins",
			usr:          user.User{Username: "u1", Email: "u1@test.test", RFIDTag: "TAG-01", Roles: []string{user.RoleStudent}},
			roomID:       northRoom.ID,
			wantRoom:     "101",
			wantBuilding: north.Name,
			wantDormID:   north.ID,
		},
		{
			name: "assigned building fallback",
			usr: user.User{
				Username: "u2", Email: "u2@test.test", RFIDTag: "TAG-02", Roles: []string{user.RoleStudent},
				AssignedRoom: "310", AssignedBuilding: south.Name,
			},
			wantRoom:     "310",
			wantBuilding: south.Name,
			wantDormID:   south.ID,
		},
		{
			name: "managed dorm overrides supplied room",
			usr: user.User{
				Username: "u3", Email: "u3@test.test", RFIDTag: "TAG-03", Roles: []string{user.RoleManager},
				ManagedDormID: south.ID,
			},
			roomID:       northRoom.ID,
			wantRoom:     "101",
			wantBuilding: north.Name, // name resolved before the override sticks
			wantDormID:   south.ID,
		},
		{
			name: "managed dorm overrides assigned building",
			usr: user.User{
				Username: "u6", Email: "u6@test.test", RFIDTag: "TAG-06", Roles: []string{user.RoleManager},
				AssignedBuilding: north.Name, ManagedDormID: south.ID,
			},
			wantRoom:     access.UnknownRoom,
			wantBuilding: north.Name, // name resolved before the override sticks
			wantDormID:   south.ID,
		},
		{
			name: "managed dorm resolves its own name",
			usr: user.User{
				Username: "u4", Email: "u4@test.test", RFIDTag: "TAG-04", Roles: []string{user.RoleManager},
				ManagedDormID: south.ID,
			},
			wantRoom:     access.UnknownRoom,
			wantBuilding: south.Name,
			wantDormID:   south.ID,
		},
		{
			name:         "no context at all",
			usr:          user.User{Username: "u5", Email: "u5@test.test", RFIDTag: "TAG-05", Roles: []string{user.RoleStudent}},
			wantRoom:     access.UnknownRoom,
			wantBuilding: "",
			wantDormID:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := fix.createUser(t, tt.usr)
			res, err := fix.recorder.Record(ctx, access.ScanRequest{RFIDValue: usr.RFIDTag, RoomID: tt.roomID})
			if err != nil {
				t.Fatalf("Record() failed: %v", err)
			}
			evt := res.LogEntry
			if evt.Room != tt.wantRoom {
				t.Errorf("Room = %s, want %s", evt.Room, tt.wantRoom)
			}
			if evt.Building != tt.wantBuilding {
				t.Errorf("Building = %s, want %s", evt.Building, tt.wantBuilding)
			}
			if evt.DormID != tt.wantDormID {
				t.Errorf("DormID = %s, want %s", evt.DormID, tt.wantDormID)
			}
			if evt.UserName != usr.Name() {
				t.Errorf("UserName = %s, want %s", evt.UserName, usr.Name())
			}
		})
	}
}

func TestRecorder_Record_callerSuppliedUserRef(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	usr := fix.createUser(t, user.User{
		Username: "ref", Email: "ref@test.test", RFIDTag: "TAG-REF", Roles: []string{user.RoleStudent},
	})

	res, err := fix.recorder.Record(ctx, access.ScanRequest{RFIDValue: usr.RFIDTag, UserID: "device-42"})
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if res.LogEntry.UserRef != "device-42" {
		t.Errorf("UserRef = %s, want device-42", res.LogEntry.UserRef)
	}
	if res.LogEntry.UserID != usr.ID {
		t.Errorf("UserID = %s, want %s", res.LogEntry.UserID, usr.ID)
	}
}

// failingStatusUserService wraps a real user service but refuses status updates.
type failingStatusUserService struct {
	user.Service
}

func (svc failingStatusUserService) UpdateStatus(context.Context, string, string) error {
	return errors.New("status column is on strike")
}

func TestRecorder_Record_statusUpdateFailureStillSucceeds(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	usr := fix.createUser(t, user.User{
		Username: "stub", Email: "stub@test.test", RFIDTag: "TAG-STUB", Roles: []string{user.RoleStudent},
	})

	rec := access.NewRecorder(
		fix.repo,
		failingStatusUserService{fix.usrSvc},
		fix.housingSvc,
		fix.notifSvc,
		fix.logger,
	)

	res, err := rec.Record(ctx, access.ScanRequest{RFIDValue: usr.RFIDTag})
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if res.LogEntry.Action != access.ActionEntry {
		t.Errorf("Action = %s, want %s", res.LogEntry.Action, access.ActionEntry)
	}
	// the log entry is authoritative and must survive the failed update
	if evts := fix.allEvents(t); len(evts) != 1 {
		t.Errorf("event count = %d, want 1", len(evts))
	}
	// the stored status keeps its old value
	stored, err := fix.usrSvc.GetByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if stored.Status != user.StatusActive {
		t.Errorf("stored user status = %s, want %s", stored.Status, user.StatusActive)
	}
}

// failingAppendRepository refuses all writes.
type failingAppendRepository struct {
	access.Repository
}

func (repo failingAppendRepository) AppendEvent(context.Context, access.Event) (access.Event, error) {
	return access.Event{}, errors.New("log store unavailable")
}

func TestRecorder_Record_appendFailureFailsScan(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	usr := fix.createUser(t, user.User{
		Username: "boom", Email: "boom@test.test", RFIDTag: "TAG-BOOM", Roles: []string{user.RoleStudent},
	})

	rec := access.NewRecorder(
		failingAppendRepository{fix.repo},
		fix.usrSvc,
		fix.housingSvc,
		fix.notifSvc,
		fix.logger,
	)

	if _, err := rec.Record(ctx, access.ScanRequest{RFIDValue: usr.RFIDTag}); err == nil {
		t.Fatal("Record() expected error, got nil")
	}
	// no status change either
	stored, err := fix.usrSvc.GetByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if stored.Status != user.StatusActive {
		t.Errorf("stored user status = %s, want %s", stored.Status, user.StatusActive)
	}
}

func TestRecorder_QueryRecent(t *testing.T) {
	fix := newRecorderFixture(t)
	ctx := context.Background()

	usr := fix.createUser(t, user.User{
		Username: "hist", Email: "hist@test.test", RFIDTag: "TAG-HIST", Roles: []string{user.RoleStudent},
	})

	for i := 0; i < 5; i++ {
		if _, err := fix.recorder.Record(ctx, access.ScanRequest{RFIDValue: usr.RFIDTag}); err != nil {
			t.Fatalf("scan %d: Record() failed: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	evts, err := fix.recorder.QueryRecent(ctx, 3)
	if err != nil {
		t.Fatalf("QueryRecent() failed: %v", err)
	}
	if len(evts) != 3 {
		t.Fatalf("event count = %d, want 3", len(evts))
	}
	for i := 1; i < len(evts); i++ {
		if evts[i].Timestamp.After(evts[i-1].Timestamp) {
			t.Errorf("events not sorted most recent first at index %d", i)
		}
	}

	byUser, err := fix.recorder.QueryByUser(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryByUser() failed: %v", err)
	}
	if len(byUser) != 5 {
		t.Errorf("event count = %d, want 5", len(byUser))
	}
	// most recent of an odd run of scans is an entry
	if byUser[0].Action != access.ActionEntry {
		t.Errorf("latest action = %s, want %s", byUser[0].Action, access.ActionEntry)
	}
}
