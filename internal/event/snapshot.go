package event

import (
	"slices"
	"time"

	"github.com/clanops/eventbot/internal/clock"
)

// Snapshot is the serializable form of an event. It exists as an
// export/import contract; no durable store consumes it in-process. Team
// membership validity is not re-checked on restore.
type Snapshot struct {
	ID              string     `json:"event_id"`
	GuildID         string     `json:"guild_id"`
	CreatorID       string     `json:"creator_id"`
	Type            Type       `json:"event_type"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	CreatedAt       time.Time  `json:"created_at"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	MaxParticipants int        `json:"max_participants"`
	Status          Status     `json:"status"`
	Participants    []string   `json:"participants"`
	CheckedIn       []string   `json:"checked_in_participants"`
	Teams           [][]string `json:"teams"`
	TeamSize        *int       `json:"team_size,omitempty"`
	CheckInEnabled  bool       `json:"check_in_enabled"`
	CheckInStart    *time.Time `json:"check_in_start,omitempty"`
	CheckInEnd      *time.Time `json:"check_in_end,omitempty"`
	MessageID       string     `json:"message_id,omitempty"`
	ThreadID        string     `json:"thread_id,omitempty"`
	ReminderSent    bool       `json:"reminder_sent"`
}

// Snapshot captures the full event state.
func (e *Event) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	teams := make([][]string, len(e.teams))
	for i, t := range e.teams {
		teams[i] = slices.Clone(t)
	}

	return Snapshot{
		ID:              e.ID,
		GuildID:         e.GuildID,
		CreatorID:       e.CreatorID,
		Type:            e.Type,
		Name:            e.Name,
		Description:     e.Description,
		CreatedAt:       e.CreatedAt,
		ScheduledAt:     e.scheduledAt,
		MaxParticipants: e.maxParticipants,
		Status:          e.status,
		Participants:    slices.Clone(e.participants),
		CheckedIn:       slices.Clone(e.checkedIn),
		Teams:           teams,
		TeamSize:        e.teamSize,
		CheckInEnabled:  e.checkInEnabled,
		CheckInStart:    e.checkInStart,
		CheckInEnd:      e.checkInEnd,
		MessageID:       e.messageID,
		ThreadID:        e.threadID,
		ReminderSent:    e.reminderSent,
	}
}

// Restore rebuilds an event from a snapshot.
func Restore(s Snapshot, clk clock.Clock) *Event {
	maxP := s.MaxParticipants
	if maxP <= 0 {
		maxP = DefaultMaxParticipants
	}
	return &Event{
		ID:              s.ID,
		GuildID:         s.GuildID,
		CreatorID:       s.CreatorID,
		Type:            s.Type,
		Name:            s.Name,
		Description:     s.Description,
		CreatedAt:       s.CreatedAt,
		scheduledAt:     s.ScheduledAt,
		maxParticipants: maxP,
		status:          s.Status,
		participants:    slices.Clone(s.Participants),
		checkedIn:       slices.Clone(s.CheckedIn),
		teams:           s.Teams,
		teamSize:        s.TeamSize,
		checkInEnabled:  s.CheckInEnabled,
		checkInStart:    s.CheckInStart,
		checkInEnd:      s.CheckInEnd,
		messageID:       s.MessageID,
		threadID:        s.ThreadID,
		reminderSent:    s.ReminderSent,
		clock:           clk,
	}
}
