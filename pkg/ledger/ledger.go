// Package ledger implements the shared JSON coordination file that
// agents use as a mailbox, status board and file-lock table. All
// access goes through a Hub, which serializes read-modify-write
// cycles and persists atomically so concurrent agents and a polling
// dashboard always observe a complete document.
package ledger

import (
	"time"
)

// Message is a directed note between two agents. Messages stay in the
// ledger after delivery; the Read flag marks consumption.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}

// Message types agents conventionally use. The field is free-form;
// these are the values the built-in tools emit.
const (
	MessageInfo     = "info"
	MessageQuestion = "question"
	MessageHandoff  = "handoff"
	MessageWarning  = "warning"
)

// StatusUpdate records an agent's progress report. The ledger keeps
// only the most recent maxStatusUpdates entries.
type StatusUpdate struct {
	Agent     string         `json:"agent"`
	State     string         `json:"state"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// FileLock marks exclusive ownership of a workspace path.
type FileLock struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// RequestStatus is the lifecycle state of a LockRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
	RequestExpired  RequestStatus = "expired"
)

// LockRequest is a petition for a file lock, decided by the lock
// manager agent (or auto-approved when the approval feature is off).
type LockRequest struct {
	ID          string        `json:"id"`
	Agent       string        `json:"agent"`
	Path        string        `json:"path"`
	Reason      string        `json:"reason,omitempty"`
	Status      RequestStatus `json:"status"`
	Decision    string        `json:"decision,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
}

// IntegrationPoint documents a contract one agent exposes for others,
// such as an API endpoint or a component interface.
type IntegrationPoint struct {
	Agent     string         `json:"agent"`
	Component string         `json:"component"`
	Contract  map[string]any `json:"contract,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ConflictStatus is the lifecycle state of a Conflict.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// Conflict is a reported disagreement between agents, e.g. two agents
// producing incompatible interfaces for the same component.
type Conflict struct {
	ID          string         `json:"id"`
	Reporter    string         `json:"reporter"`
	Description string         `json:"description"`
	Status      ConflictStatus `json:"status"`
	Resolution  string         `json:"resolution,omitempty"`
	ReportedAt  time.Time      `json:"reported_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}

// Document is the complete ledger file contents. Every collection is
// always present after repair, so readers never nil-check top-level
// keys.
type Document struct {
	Messages          []Message           `json:"communications"`
	StatusUpdates     []StatusUpdate      `json:"status_updates"`
	SharedContext     map[string]any      `json:"shared_context"`
	FileLocks         map[string]FileLock `json:"file_locks"`
	LockRequests      []LockRequest       `json:"file_lock_requests"`
	IntegrationPoints []IntegrationPoint  `json:"integration_points"`
	Conflicts         []Conflict          `json:"conflict_reports"`
}

// maxStatusUpdates bounds the status_updates collection so the file
// does not grow without limit during long sessions.
const maxStatusUpdates = 50

// NewDocument returns an empty document with every collection
// initialized.
func NewDocument() *Document {
	return &Document{
		Messages:          []Message{},
		StatusUpdates:     []StatusUpdate{},
		SharedContext:     map[string]any{},
		FileLocks:         map[string]FileLock{},
		LockRequests:      []LockRequest{},
		IntegrationPoints: []IntegrationPoint{},
		Conflicts:         []Conflict{},
	}
}

// repair fills in any collection a hand-edited or partially written
// file is missing. It reports whether anything changed.
func (d *Document) repair() bool {
	changed := false
	if d.Messages == nil {
		d.Messages = []Message{}
		changed = true
	}
	if d.StatusUpdates == nil {
		d.StatusUpdates = []StatusUpdate{}
		changed = true
	}
	if d.SharedContext == nil {
		d.SharedContext = map[string]any{}
		changed = true
	}
	if d.FileLocks == nil {
		d.FileLocks = map[string]FileLock{}
		changed = true
	}
	if d.LockRequests == nil {
		d.LockRequests = []LockRequest{}
		changed = true
	}
	if d.IntegrationPoints == nil {
		d.IntegrationPoints = []IntegrationPoint{}
		changed = true
	}
	if d.Conflicts == nil {
		d.Conflicts = []Conflict{}
		changed = true
	}
	return changed
}

// UnreadFor returns the messages addressed to agent that have not been
// marked read, preserving ledger order.
func (d *Document) UnreadFor(agent string) []Message {
	var out []Message
	for _, m := range d.Messages {
		if m.To == agent && !m.Read {
			out = append(out, m)
		}
	}
	return out
}

// PendingRequests returns lock requests still awaiting a decision.
func (d *Document) PendingRequests() []LockRequest {
	var out []LockRequest
	for _, r := range d.LockRequests {
		if r.Status == RequestPending {
			out = append(out, r)
		}
	}
	return out
}

// OpenConflicts returns conflicts that have not been resolved.
func (d *Document) OpenConflicts() []Conflict {
	var out []Conflict
	for _, c := range d.Conflicts {
		if c.Status == ConflictOpen {
			out = append(out, c)
		}
	}
	return out
}
