package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, notif Notification) (Notification, error)
		QueryNotificationsByUser(ctx context.Context, userID string) ([]Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, userID, id string) error
		MarkAllRead(ctx context.Context, userID string) error
	}

	Service interface {
		// NotifyAccess records an entry/exit notification for a user.
		// It is the recorder's fire-and-forget collaborator.
		NotifyAccess(ctx context.Context, userID, action, roomName, buildingName string) error
		// NotifyApplication records an application review outcome and mails the student.
		NotifyApplication(ctx context.Context, usr user.User, status, dormName string) error
		QueryByUser(ctx context.Context, userID string) ([]Notification, error)
		CountUnread(ctx context.Context, userID string) (UnreadCount, error)
		MarkRead(ctx context.Context, userID, id string) error
		MarkAllRead(ctx context.Context, userID string) error
	}

	service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *service) NotifyAccess(ctx context.Context, userID, action, roomName, buildingName string) error {
	title := "Entry recorded"
	if action == "exit" {
		title = "Exit recorded"
	}
	body := fmt.Sprintf("%s at room %s", title, roomName)
	if buildingName != "" {
		body += ", " + buildingName
	}

	notif := Notification{
		UserID:    userID,
		Kind:      KindAccess,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := svc.repo.CreateNotification(ctx, notif); err != nil {
		return errors.Wrap(err, "creating access notification")
	}
	return nil
}

func (svc *service) NotifyApplication(ctx context.Context, usr user.User, status, dormName string) error {
	notif := Notification{
		UserID:    usr.ID,
		Kind:      KindApplication,
		Title:     "Housing application " + status,
		Body:      fmt.Sprintf("Your housing application for %s has been %s.", dormName, status),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := svc.repo.CreateNotification(ctx, notif); err != nil {
		return errors.Wrap(err, "creating application notification")
	}

	if usr.Email != "" {
		msg := &core.EmailMessage{
			To:      []mail.Address{{Name: usr.Name(), Address: usr.Email}},
			Subject: notif.Title,
			BodyStr: notif.Body,
		}
		svc.mailSvc.SendMessages(msg)
	}
	return nil
}

func (svc *service) QueryByUser(ctx context.Context, userID string) ([]Notification, error) {
	return svc.repo.QueryNotificationsByUser(ctx, userID)
}

func (svc *service) CountUnread(ctx context.Context, userID string) (UnreadCount, error) {
	n, err := svc.repo.CountUnread(ctx, userID)
	if err != nil {
		return UnreadCount{}, err
	}
	return UnreadCount{Count: n}, nil
}

func (svc *service) MarkRead(ctx context.Context, userID, id string) error {
	return svc.repo.MarkRead(ctx, userID, id)
}

func (svc *service) MarkAllRead(ctx context.Context, userID string) error {
	return svc.repo.MarkAllRead(ctx, userID)
}
