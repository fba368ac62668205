package access

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/occupeye/backend/core"
	"github.com/occupeye/backend/core/housing"
	"github.com/occupeye/backend/core/notification"
	"github.com/occupeye/backend/core/user"
)

var (
	// errors
	ErrMissingRFIDValue  = errors.New("rfidValue is required")
	ErrUnknownCredential = errors.New("no user found with this RFID tag")
)

type (
	// Repository is the append-only access log store.
	Repository interface {
		AppendEvent(ctx context.Context, evt Event) (Event, error)
		QueryEventsByUser(ctx context.Context, userID string) ([]Event, error)
		QueryRecentEvents(ctx context.Context, limit int) ([]Event, error)
	}

	// Recorder turns a badge scan into an access event: it resolves the
	// credential and its housing context, toggles entry/exit from the
	// identity's history, persists the event and updates the identity's
	// current status.
	Recorder interface {
		Record(ctx context.Context, req ScanRequest) (ScanResult, error)
		QueryByUser(ctx context.Context, userID string) ([]Event, error)
		QueryRecent(ctx context.Context, limit int) ([]Event, error)
	}

	recorder struct {
		repo       Repository
		usrSvc     user.Service
		housingSvc housing.Service
		notifSvc   notification.Service
		logger     core.Logger
	}

	// eventContext is the housing context resolved for one scan.
	eventContext struct {
		room     *housing.Room
		dormID   string
		dormName string
	}
)

var _ Recorder = (*recorder)(nil)

func NewRecorder(
	repo Repository,
	usrSvc user.Service,
	housingSvc housing.Service,
	notifSvc notification.Service,
	logger core.Logger,
) Recorder {
	return &recorder{
		repo:       repo,
		usrSvc:     usrSvc,
		housingSvc: housingSvc,
		notifSvc:   notifSvc,
		logger:     logger,
	}
}

func (rec *recorder) Record(ctx context.Context, req ScanRequest) (ScanResult, error) {
	rfid := core.CleanString(req.RFIDValue)
	if rfid == "" {
		return ScanResult{}, core.NewValidationError(ErrMissingRFIDValue,
			core.FieldError{Field: "rfidValue", Error: ErrMissingRFIDValue.Error()})
	}

	usr, err := rec.usrSvc.GetByRFIDTag(ctx, rfid)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			rec.recordDenied(ctx, req)
			return ScanResult{}, ErrUnknownCredential
		}
		return ScanResult{}, errors.Wrap(err, "looking up credential")
	}

	evtCtx := rec.resolveContext(ctx, usr, req.RoomID)
	action := rec.toggleAction(ctx, usr.ID)

	evt := Event{
		UserID:            usr.ID,
		UserName:          usr.Name(),
		Room:              rec.resolveRoomName(evtCtx, usr),
		Building:          rec.resolveBuildingName(evtCtx, usr),
		DormID:            evtCtx.dormID,
		DormName:          evtCtx.dormName,
		Action:            action,
		Timestamp:         time.Now().UTC(),
		AssignedRoom:      usr.AssignedRoom,
		AssignedBuilding:  usr.AssignedBuilding,
		ApplicationStatus: usr.ApplicationStatus,
		UserRef:           usr.ID,
	}
	if req.UserID != "" {
		evt.UserRef = req.UserID
	}

	// primary write; its failure fails the whole scan
	evt, err = rec.repo.AppendEvent(ctx, evt)
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "appending access event")
	}

	// secondary write; the log entry is authoritative, a failed status
	// update must not fail a scan that was already recorded
	if err := rec.usrSvc.UpdateStatus(ctx, usr.ID, action); err != nil {
		rec.logger.Error(fmt.Sprintf("updating status of user %s to %s: %v", usr.ID, action, err), err)
	}

	// fire-and-forget
	if err := rec.notifSvc.NotifyAccess(ctx, usr.ID, action, evt.Room, evt.Building); err != nil {
		rec.logger.Error(fmt.Sprintf("notifying user %s: %v", usr.ID, err), err)
	}

	usr.Status = action
	return ScanResult{
		User: UserProjection{
			ID:        usr.ID,
			FirstName: usr.FirstName,
			LastName:  usr.LastName,
			Email:     usr.Email,
			RFIDTag:   usr.RFIDTag,
			Roles:     usr.Roles,
			Status:    usr.Status,
		},
		Room:     evtCtx.room,
		LogEntry: evt,
	}, nil
}

func (rec *recorder) QueryByUser(ctx context.Context, userID string) ([]Event, error) {
	evts, err := rec.repo.QueryEventsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortEventsDesc(evts)
	return evts, nil
}

func (rec *recorder) QueryRecent(ctx context.Context, limit int) ([]Event, error) {
	evts, err := rec.repo.QueryRecentEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	sortEventsDesc(evts)
	return evts, nil
}

// recordDenied logs a denied event for an unregistered credential. Only done
// when the scan carried a room context; a bare unknown badge with no room is
// not worth a log row. Failures are logged and swallowed; the caller still
// reports the scan as denied.
func (rec *recorder) recordDenied(ctx context.Context, req ScanRequest) {
	if req.RoomID == "" {
		return
	}

	roomName := req.RoomID
	var building string
	if room, err := rec.housingSvc.GetRoomByID(ctx, req.RoomID); err == nil {
		roomName = room.Number
		if dorm, err := rec.housingSvc.GetDormByID(ctx, room.DormID); err == nil {
			building = dorm.Name
		}
	}

	evt := Event{
		UserID:    UnknownUserID,
		UserName:  UnknownUserID,
		Room:      roomName,
		Building:  building,
		Action:    ActionDenied,
		Timestamp: time.Now().UTC(),
		UserRef:   UnknownUserID,
	}
	if _, err := rec.repo.AppendEvent(ctx, evt); err != nil {
		rec.logger.Error(fmt.Sprintf("appending denied event: %v", err), err)
	}
}

// resolveContext determines the building/dorm for this event. Sources are
// tried in priority order, each only when the previous yielded nothing. The
// manager override is the exception: a manager's location is the dorm they
// manage, not a transient room assignment. Lookup failures are enrichment
// failures; they are logged and treated as "no context found".
func (rec *recorder) resolveContext(ctx context.Context, usr user.User, roomID string) eventContext {
	var evtCtx eventContext

	// 1. supplied room -> its dorm
	if roomID != "" {
		room, err := rec.housingSvc.GetRoomByID(ctx, roomID)
		if err != nil {
			rec.logger.Warn(fmt.Sprintf("resolving room %s: %v", roomID, err))
		} else {
			evtCtx.room = &room
			evtCtx.dormID = room.DormID
			if dorm, err := rec.housingSvc.GetDormByID(ctx, room.DormID); err != nil {
				rec.logger.Warn(fmt.Sprintf("resolving dorm %s: %v", room.DormID, err))
			} else {
				evtCtx.dormName = dorm.Name
			}
		}
	}

	// 2. assigned building name
	if evtCtx.dormID == "" && usr.AssignedBuilding != "" {
		if dorm, err := rec.housingSvc.GetDormByName(ctx, usr.AssignedBuilding); err != nil {
			rec.logger.Warn(fmt.Sprintf("resolving dorm by name %q: %v", usr.AssignedBuilding, err))
		} else {
			evtCtx.dormID = dorm.ID
			evtCtx.dormName = dorm.Name
		}
	}

	// 3. manager override
	if usr.ManagedDormID != "" {
		evtCtx.dormID = usr.ManagedDormID

		// 4. last-chance name lookup
		if evtCtx.dormName == "" {
			if dorm, err := rec.housingSvc.GetDormByID(ctx, usr.ManagedDormID); err != nil {
				rec.logger.Warn(fmt.Sprintf("resolving managed dorm %s: %v", usr.ManagedDormID, err))
			} else {
				evtCtx.dormName = dorm.Name
			}
		}
	}

	return evtCtx
}

// toggleAction decides entry vs exit from the identity's history: the most
// recent action flips, anything else (no history, denied, lookup error)
// defaults to entry.
//
// The read-toggle-write sequence is deliberately not serialized per
// identity; two concurrent scans of the same badge can both read the same
// history and record the same action. Known limitation, tolerated.
func (rec *recorder) toggleAction(ctx context.Context, userID string) string {
	evts, err := rec.repo.QueryEventsByUser(ctx, userID)
	if err != nil {
		rec.logger.Warn(fmt.Sprintf("querying events of user %s: %v", userID, err))
		return ActionEntry
	}
	if len(evts) == 0 {
		return ActionEntry
	}

	sortEventsDesc(evts)

	switch evts[0].Action {
	case ActionEntry:
		return ActionExit
	case ActionExit:
		return ActionEntry
	default: // denied or unknown
		return ActionEntry
	}
}

func (rec *recorder) resolveRoomName(evtCtx eventContext, usr user.User) string {
	if evtCtx.room != nil {
		return evtCtx.room.Number
	}
	if usr.AssignedRoom != "" {
		return usr.AssignedRoom
	}
	return UnknownRoom
}

func (rec *recorder) resolveBuildingName(evtCtx eventContext, usr user.User) string {
	if evtCtx.dormName != "" {
		return evtCtx.dormName
	}
	return usr.AssignedBuilding
}

// sortEventsDesc sorts most recent first. The store gives no ordering
// guarantee, so ordering is always re-derived here.
func sortEventsDesc(evts []Event) {
	sort.Slice(evts, func(i, j int) bool { return evts[i].Timestamp.After(evts[j].Timestamp) })
}
