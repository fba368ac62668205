package notification_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/pkg/errors"

	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/notification"
	"github.com/occupeye/backend/core/user"
	emailsvc "github.com/occupeye/backend/services/email"
	logsvc "github.com/occupeye/backend/services/logger"
	dummydb "github.com/occupeye/backend/storage/database/dummy"
)

func newNotificationService(t *testing.T) (notification.Service, *core.Config) {
	t.Helper()

	conf := core.NewConfig("test")
	conf.TestMode = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	return notification.NewService(conf, dummydb.NewNotificationRepository(db), mailSvc, logger), conf
}

func TestService_NotifyAccess(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	if err := svc.NotifyAccess(ctx, "usr-1", "entry", "204", "West Hall"); err != nil {
		t.Fatalf("NotifyAccess() error = %v", err)
	}
	if err := svc.NotifyAccess(ctx, "usr-1", "exit", "204", ""); err != nil {
		t.Fatalf("NotifyAccess() error = %v", err)
	}

	notifs, err := svc.QueryByUser(ctx, "usr-1")
	if err != nil {
		t.Fatalf("QueryByUser() error = %v", err)
	}
	if len(notifs) != 2 {
		t.Fatalf("QueryByUser() len = %d, want 2", len(notifs))
	}
	for _, n := range notifs {
		if n.Kind != notification.KindAccess {
			t.Errorf("Kind = %q, want %q", n.Kind, notification.KindAccess)
		}
	}

	// other users see nothing
	notifs, err = svc.QueryByUser(ctx, "usr-2")
	if err != nil {
		t.Fatalf("QueryByUser() error = %v", err)
	}
	if len(notifs) != 0 {
		t.Errorf("QueryByUser() len = %d, want 0", len(notifs))
	}
}

func TestService_ReadTracking(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	usr := user.User{ID: "usr-1", FirstName: "Jane", LastName: "Doe", Email: "jane@test.cd"}
	if err := svc.NotifyApplication(ctx, usr, "approved", "East Hall"); err != nil {
		t.Fatalf("NotifyApplication() error = %v", err)
	}
	if err := svc.NotifyAccess(ctx, usr.ID, "entry", "101", "East Hall"); err != nil {
		t.Fatalf("NotifyAccess() error = %v", err)
	}

	count, err := svc.CountUnread(ctx, usr.ID)
	if err != nil {
		t.Fatalf("CountUnread() error = %v", err)
	}
	if count.Count != 2 {
		t.Errorf("CountUnread() = %d, want 2", count.Count)
	}

	notifs, err := svc.QueryByUser(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryByUser() error = %v", err)
	}
	if err := svc.MarkRead(ctx, usr.ID, notifs[0].ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	count, _ = svc.CountUnread(ctx, usr.ID)
	if count.Count != 1 {
		t.Errorf("CountUnread() = %d, want 1", count.Count)
	}

	// marking someone else's notification fails
	if err := svc.MarkRead(ctx, "usr-2", notifs[1].ID); errors.Cause(err) != notification.ErrNotFound {
		t.Errorf("MarkRead() error = %v, want %v", err, notification.ErrNotFound)
	}

	if err := svc.MarkAllRead(ctx, usr.ID); err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	count, _ = svc.CountUnread(ctx, usr.ID)
	if count.Count != 0 {
		t.Errorf("CountUnread() = %d, want 0", count.Count)
	}
}
