package attendance

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Session statuses. A session is active the moment it is created and the
// transition to expired is one-way and terminal.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

type (
	// Session is one live attendance window for one class meeting.
	Session struct {
		ID              string    `json:"id"`
		ClassID         string    `json:"class_id"`
		TeacherID       string    `json:"teacher_id"`
		TeacherEmail    string    `json:"-"` // summary recipient, not exposed to clients
		Date            time.Time `json:"date"`
		StartTime       string    `json:"start_time"` // HH:MM, display only
		EndTime         string    `json:"end_time"`   // HH:MM, display only
		RequireLocation bool      `json:"require_location"`
		Status          string    `json:"status"`
		CreatedAt       time.Time `json:"created_at"` // UTC
		UpdatedAt       time.Time `json:"updated_at"` // UTC
		EndedAt         null.Time `json:"ended_at"`
	}

	// CheckIn is one student's recorded presence for a session.
	// (session_id, student_id) is unique: a student checks in at most once.
	CheckIn struct {
		SessionID string    `json:"session_id"`
		StudentID string    `json:"student_id"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// SessionView is a Session together with its check-in ledger,
	// as presented to the owning teacher.
	SessionView struct {
		Session
		CheckedInStudents []string `json:"checked_in_students"`
		CheckedInCount    int      `json:"checked_in_count"`
	}

	// Location is a device-supplied coordinate pair. It crosses a trust
	// boundary: the device can lie, so the geofence is a policy decision,
	// not a security guarantee.
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	}

	// CheckInResult is the outcome of a successful check-in pipeline run.
	// Already is set when the student had checked in before; that is an
	// informational success, not an error.
	CheckInResult struct {
		Success   bool   `json:"success"`
		Already   bool   `json:"already_checked_in"`
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
		Count     int    `json:"count"`
	}

	// Caller identifies the authenticated user on behalf of whom an
	// operation runs. Identity issuance lives with the external auth
	// service; only claims reach this package.
	Caller struct {
		ID        string
		Email     string
		IsStudent bool
		IsTeacher bool
		IsAdmin   bool
	}

	// ThrottleEntry is one logged gated call, used to reconstruct a
	// sliding rate-limit window.
	ThrottleEntry struct {
		Identifier string    `json:"identifier"`
		Endpoint   string    `json:"endpoint"`
		CreatedAt  time.Time `json:"created_at"` // UTC
	}
)

func (s Session) IsActive() bool { return s.Status == StatusActive }
