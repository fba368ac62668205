package access

import (
	"time"

	"github.com/occupeye/backend/core/housing"
)

// Actions
const (
	ActionEntry  = "entry"
	ActionExit   = "exit"
	ActionDenied = "denied"
)

// UnknownUserID is the sentinel identity reference recorded on denied scans
// of unregistered credentials.
const UnknownUserID = "Unknown"

// UnknownRoom is the literal recorded when no room could be resolved at all.
const UnknownRoom = "Unknown"

// Event is one immutable access log record. Snapshots of the identity's
// assignment fields are denormalized onto the event at write time; the log
// is never updated after the fact.
type Event struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Room     string `json:"room"`
	Building string `json:"building"`
	DormID   string `json:"dorm_id,omitempty"`
	DormName string `json:"dorm_name,omitempty"`
	Action   string `json:"action"`

	Timestamp time.Time `json:"timestamp"` // UTC

	// identity snapshots at event time
	AssignedRoom      string `json:"assigned_room,omitempty"`
	AssignedBuilding  string `json:"assigned_building,omitempty"`
	ApplicationStatus string `json:"application_status,omitempty"`

	// caller-supplied or store-assigned identity reference
	UserRef string `json:"user_ref,omitempty"`
}

// ScanRequest is the device payload. Key names are fixed by the badge
// reader firmware; do not rename.
type ScanRequest struct {
	RFIDValue string `json:"rfidValue"`
	RoomID    string `json:"roomId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// UserProjection is the trimmed identity view returned to the scanning device.
type UserProjection struct {
	ID        string   `json:"id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	RFIDTag   string   `json:"rfid_tag"`
	Roles     []string `json:"roles"`
	Status    string   `json:"status"`
}

// ScanResult is the outcome of a successfully recorded scan.
type ScanResult struct {
	User     UserProjection `json:"user"`
	Room     *housing.Room  `json:"room"`
	LogEntry Event          `json:"logEntry"`
}
