// Package event holds the event aggregate and the in-memory registry that
// owns every event for the lifetime of the process.
package event

import (
	"slices"
	"sync"
	"time"

	"github.com/clanops/eventbot/internal/clock"
)

// DefaultMaxParticipants caps participation when no explicit limit is given.
const DefaultMaxParticipants = 100

// Event is the aggregate root for a single clan event: participation,
// check-in and team state plus the reminder latch. It is safe for
// concurrent use. Mutators return booleans instead of errors: a duplicate
// join or a full event is ordinary control flow for callers, not a fault.
type Event struct {
	mu sync.RWMutex

	// Identity and descriptive fields are fixed at creation.
	ID          string
	GuildID     string
	CreatorID   string
	Type        Type
	Name        string
	Description string
	CreatedAt   time.Time

	maxParticipants int
	scheduledAt     *time.Time

	status       Status
	participants []string
	checkedIn    []string

	teams    [][]string
	teamSize *int

	checkInEnabled bool
	checkInStart   *time.Time
	checkInEnd     *time.Time

	messageID string
	threadID  string

	reminderSent bool

	clock clock.Clock
}

// Params are the creation attributes of an event.
type Params struct {
	ID              string
	GuildID         string
	CreatorID       string
	Type            Type
	Name            string
	Description     string
	MaxParticipants int        // 0 means DefaultMaxParticipants
	ScheduledAt     *time.Time // optional start time, UTC
	TeamSize        *int       // optional preset team size
}

// New creates an open event. The clock is used to evaluate the check-in
// window and the creation timestamp.
func New(p Params, clk clock.Clock) *Event {
	maxP := p.MaxParticipants
	if maxP <= 0 {
		maxP = DefaultMaxParticipants
	}
	return &Event{
		ID:              p.ID,
		GuildID:         p.GuildID,
		CreatorID:       p.CreatorID,
		Type:            p.Type,
		Name:            p.Name,
		Description:     p.Description,
		CreatedAt:       clk.Now().UTC(),
		maxParticipants: maxP,
		scheduledAt:     p.ScheduledAt,
		status:          StatusOpen,
		teamSize:        p.TeamSize,
		clock:           clk,
	}
}

// AddParticipant appends the user to the participant list. It returns false
// without mutation if the user is already in or the event is at capacity.
// Reaching capacity flips the status to Full.
func (e *Event) AddParticipant(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if slices.Contains(e.participants, userID) {
		return false
	}
	if len(e.participants) >= e.maxParticipants {
		return false
	}

	e.participants = append(e.participants, userID)
	if len(e.participants) >= e.maxParticipants {
		e.status = StatusFull
	}
	return true
}

// RemoveParticipant removes the user from the participant list and from the
// first team containing them, if any. The check-in record is kept so that
// attendance history survives a leave. A Full event drops back to Open.
func (e *Event) RemoveParticipant(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := slices.Index(e.participants, userID)
	if idx < 0 {
		return false
	}
	e.participants = slices.Delete(e.participants, idx, idx+1)

	for i, team := range e.teams {
		if j := slices.Index(team, userID); j >= 0 {
			e.teams[i] = slices.Delete(team, j, j+1)
			break
		}
	}

	if e.status == StatusFull && len(e.participants) < e.maxParticipants {
		e.status = StatusOpen
	}
	return true
}

// IsParticipant reports whether the user has joined the event.
func (e *Event) IsParticipant(userID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Contains(e.participants, userID)
}

// IsCheckedIn reports whether the user has checked in.
func (e *Event) IsCheckedIn(userID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Contains(e.checkedIn, userID)
}

// CheckIn records the user's attendance. It returns false unless the user
// is a participant, check-in is enabled, the current time falls within the
// configured window and the user has not checked in yet.
func (e *Event) CheckIn(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !slices.Contains(e.participants, userID) {
		return false
	}
	if !e.checkInActiveLocked() {
		return false
	}
	if slices.Contains(e.checkedIn, userID) {
		return false
	}

	e.checkedIn = append(e.checkedIn, userID)
	return true
}

// CheckOut removes the user's check-in record. Returns false if the user
// never checked in.
func (e *Event) CheckOut(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := slices.Index(e.checkedIn, userID)
	if idx < 0 {
		return false
	}
	e.checkedIn = slices.Delete(e.checkedIn, idx, idx+1)
	return true
}

// EnableCheckIn turns check-in on with an optional activation window.
// Either bound may be nil, meaning unbounded on that side. Idempotent.
func (e *Event) EnableCheckIn(start, end *time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkInEnabled = true
	e.checkInStart = start
	e.checkInEnd = end
}

// DisableCheckIn turns check-in off. The window bounds are retained but
// irrelevant while disabled.
func (e *Event) DisableCheckIn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkInEnabled = false
}

// CheckInActive reports whether check-in is enabled and the current time is
// within the window.
func (e *Event) CheckInActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checkInActiveLocked()
}

func (e *Event) checkInActiveLocked() bool {
	if !e.checkInEnabled {
		return false
	}
	now := e.clock.Now()
	if e.checkInStart != nil && now.Before(*e.checkInStart) {
		return false
	}
	if e.checkInEnd != nil && now.After(*e.checkInEnd) {
		return false
	}
	return true
}

// CheckInEnabled reports whether check-in has been turned on, regardless of
// the window.
func (e *Event) CheckInEnabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checkInEnabled
}

// NoShows returns the participants who did not check in, in join order.
func (e *Event) NoShows() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []string
	for _, p := range e.participants {
		if !slices.Contains(e.checkedIn, p) {
			out = append(out, p)
		}
	}
	return out
}

// SetTeams assigns the team partition. Membership correctness is the
// caller's responsibility; the randomizer already guarantees it.
func (e *Event) SetTeams(teams [][]string, size int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teams = teams
	e.teamSize = &size
}

// ClearTeams removes all team assignments.
func (e *Event) ClearTeams() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teams = nil
	e.teamSize = nil
}

// Teams returns a copy of the team partition.
func (e *Event) Teams() [][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([][]string, len(e.teams))
	for i, t := range e.teams {
		out[i] = slices.Clone(t)
	}
	return out
}

// TeamSize returns the configured team size, or 0 if none is set.
func (e *Event) TeamSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.teamSize == nil {
		return 0
	}
	return *e.teamSize
}

// HasTeams reports whether teams have been assigned.
func (e *Event) HasTeams() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.teams) > 0
}

// TeamCount returns the number of teams.
func (e *Event) TeamCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.teams)
}

// TeamOf returns the 1-indexed team number for the user, or 0 if the user
// is in no team. First match wins.
func (e *Event) TeamOf(userID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for i, team := range e.teams {
		if slices.Contains(team, userID) {
			return i + 1
		}
	}
	return 0
}

// Participants returns a copy of the participant list in join order.
func (e *Event) Participants() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.participants)
}

// CheckedIn returns a copy of the checked-in list in check-in order.
func (e *Event) CheckedIn() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.checkedIn)
}

// ParticipantCount returns the current number of participants.
func (e *Event) ParticipantCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.participants)
}

// CheckedInCount returns the number of checked-in participants.
func (e *Event) CheckedInCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.checkedIn)
}

// AttendanceRate returns the check-in percentage, 0 for an empty event.
func (e *Event) AttendanceRate() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.participants) == 0 {
		return 0
	}
	return float64(len(e.checkedIn)) / float64(len(e.participants)) * 100
}

// IsFull reports whether the event is at capacity.
func (e *Event) IsFull() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.participants) >= e.maxParticipants
}

// MaxParticipants returns the capacity limit.
func (e *Event) MaxParticipants() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.maxParticipants
}

// Status returns the current lifecycle state.
func (e *Event) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// SetStatus overrides the lifecycle state. Used for the externally-set
// states (In Progress, Completed, Cancelled); the Open/Full pair keeps
// transitioning automatically on add/remove regardless of overrides.
func (e *Event) SetStatus(s Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
}

// ScheduledAt returns the scheduled start time, or nil for ad-hoc events.
func (e *Event) ScheduledAt() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scheduledAt
}

// MessageID returns the opaque handle of the rendered event message.
func (e *Event) MessageID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.messageID
}

// SetMessageID records the opaque handle of the rendered event message.
func (e *Event) SetMessageID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messageID = id
}

// ThreadID returns the opaque handle of the event's discussion thread.
func (e *Event) ThreadID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.threadID
}

// SetThreadID records the opaque handle of the event's discussion thread.
func (e *Event) SetThreadID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threadID = id
}

// ReminderSent reports whether the one-shot reminder latch is set.
func (e *Event) ReminderSent() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reminderSent
}

// ClaimReminder atomically claims the one-shot reminder if the event is
// scheduled, the latch is unclaimed and the time until the event falls
// within [min, max]. The check and the latch set happen under one lock so
// two concurrent scans can never both claim the same event.
func (e *Event) ClaimReminder(now time.Time, min, max time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scheduledAt == nil || e.reminderSent {
		return false
	}
	until := e.scheduledAt.Sub(now)
	if until < min || until > max {
		return false
	}
	e.reminderSent = true
	return true
}
