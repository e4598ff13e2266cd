package event

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clanops/eventbot/internal/clock"
	"github.com/clanops/eventbot/internal/eventid"
)

// Registry owns the in-memory collection of events, indexed by id and by
// the external message handle. It is an explicitly injected instance, not a
// process-wide global, so tests can use disposable registries.
type Registry struct {
	// mu guards the two maps only. Event state has its own lock.
	mu        sync.RWMutex
	events    map[string]*Event
	byMessage map[string]string

	logger *slog.Logger
	tracer trace.Tracer
	clock  clock.Clock
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Registry {
	return &Registry{
		events:    make(map[string]*Event),
		byMessage: make(map[string]string),
		logger:    logger,
		tracer:    tp.Tracer("github.com/clanops/eventbot/internal/event"),
		clock:     clk,
	}
}

// Create stores and returns a new open event with a freshly generated short
// id.
func (r *Registry) Create(ctx context.Context, p Params) *Event {
	ctx, span := r.tracer.Start(ctx, "Registry.Create",
		trace.WithAttributes(
			attribute.String("event.type", string(p.Type)),
			attribute.String("event.name", p.Name),
			attribute.String("guild.id", p.GuildID),
		),
	)
	defer span.End()

	r.mu.Lock()
	id := eventid.New()
	for _, taken := r.events[id]; taken; _, taken = r.events[id] {
		id = eventid.New()
	}
	p.ID = id
	ev := New(p, r.clock)
	r.events[id] = ev
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "event created",
		slog.String("event_id", id),
		slog.String("type", string(p.Type)),
		slog.String("name", p.Name),
		slog.String("guild_id", p.GuildID),
	)
	return ev
}

// Get returns the event with the given id, or nil if unknown.
func (r *Registry) Get(eventID string) *Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events[eventID]
}

// GetByMessage returns the event rendered as the given message handle. The
// secondary index is tried first; on a miss every event is scanned and the
// index backfilled, because a message can exist before Link was called.
func (r *Registry) GetByMessage(messageID string) *Event {
	r.mu.RLock()
	if id, ok := r.byMessage[messageID]; ok {
		ev := r.events[id]
		r.mu.RUnlock()
		return ev
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ev := range r.events {
		if ev.MessageID() == messageID {
			r.byMessage[messageID] = id
			return ev
		}
	}
	return nil
}

// Link records the message handle under which an event was rendered.
func (r *Registry) Link(messageID, eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMessage[messageID] = eventID
}

// Delete removes the event and any message-handle index entry pointing at
// it. Returns false if the id is unknown.
func (r *Registry) Delete(ctx context.Context, eventID string) bool {
	_, span := r.tracer.Start(ctx, "Registry.Delete",
		trace.WithAttributes(attribute.String("event.id", eventID)),
	)
	defer span.End()

	r.mu.Lock()
	ev, ok := r.events[eventID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if mid := ev.MessageID(); mid != "" {
		delete(r.byMessage, mid)
	}
	delete(r.events, eventID)
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "event deleted", slog.String("event_id", eventID))
	return true
}

// ByGuild returns every event in the guild, oldest first.
func (r *Registry) ByGuild(guildID string) []*Event {
	return r.filter(func(ev *Event) bool {
		return ev.GuildID == guildID
	})
}

// ByCreator returns the guild's events created by the given user.
func (r *Registry) ByCreator(creatorID, guildID string) []*Event {
	return r.filter(func(ev *Event) bool {
		return ev.GuildID == guildID && ev.CreatorID == creatorID
	})
}

// ByStatus returns the guild's events in the given status.
func (r *Registry) ByStatus(guildID string, status Status) []*Event {
	return r.filter(func(ev *Event) bool {
		return ev.GuildID == guildID && ev.Status() == status
	})
}

// ByType returns the guild's events of the given type.
func (r *Registry) ByType(guildID string, typ Type) []*Event {
	return r.filter(func(ev *Event) bool {
		return ev.GuildID == guildID && ev.Type == typ
	})
}

func (r *Registry) filter(keep func(*Event) bool) []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Event
	for _, ev := range r.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// All returns every stored event in unspecified order. Used by the reminder
// scheduler's scan.
func (r *Registry) All() []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Event, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev)
	}
	return out
}

// Len returns the number of stored events.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// AddParticipant delegates to the event, returning false for unknown ids.
func (r *Registry) AddParticipant(ctx context.Context, eventID, userID string) bool {
	ev := r.Get(eventID)
	if ev == nil {
		return false
	}
	ok := ev.AddParticipant(userID)
	if ok {
		r.logger.InfoContext(ctx, "participant joined",
			slog.String("event_id", eventID), slog.String("user_id", userID))
	}
	return ok
}

// RemoveParticipant delegates to the event, returning false for unknown ids.
func (r *Registry) RemoveParticipant(ctx context.Context, eventID, userID string) bool {
	ev := r.Get(eventID)
	if ev == nil {
		return false
	}
	ok := ev.RemoveParticipant(userID)
	if ok {
		r.logger.InfoContext(ctx, "participant left",
			slog.String("event_id", eventID), slog.String("user_id", userID))
	}
	return ok
}

// EnableCheckIn delegates to the event, returning false for unknown ids.
func (r *Registry) EnableCheckIn(ctx context.Context, eventID string, start, end *time.Time) bool {
	ev := r.Get(eventID)
	if ev == nil {
		return false
	}
	ev.EnableCheckIn(start, end)
	r.logger.InfoContext(ctx, "check-in enabled", slog.String("event_id", eventID))
	return true
}

// DisableCheckIn delegates to the event, returning false for unknown ids.
func (r *Registry) DisableCheckIn(ctx context.Context, eventID string) bool {
	ev := r.Get(eventID)
	if ev == nil {
		return false
	}
	ev.DisableCheckIn()
	r.logger.InfoContext(ctx, "check-in disabled", slog.String("event_id", eventID))
	return true
}

// CheckIn delegates to the event, returning false for unknown ids.
func (r *Registry) CheckIn(ctx context.Context, eventID, userID string) bool {
	ev := r.Get(eventID)
	if ev == nil {
		return false
	}
	ok := ev.CheckIn(userID)
	if ok {
		r.logger.InfoContext(ctx, "participant checked in",
			slog.String("event_id", eventID), slog.String("user_id", userID))
	}
	return ok
}

// CheckOut delegates to the event, returning false for unknown ids.
func (r *Registry) CheckOut(ctx context.Context, eventID, userID string) bool {
	ev := r.Get(eventID)
	if ev == nil {
		return false
	}
	ok := ev.CheckOut(userID)
	if ok {
		r.logger.InfoContext(ctx, "participant checked out",
			slog.String("event_id", eventID), slog.String("user_id", userID))
	}
	return ok
}

// AttendanceReport summarizes check-in state for one event.
type AttendanceReport struct {
	EventID        string
	EventName      string
	Participants   int
	CheckedInCount int
	AttendanceRate float64
	CheckedIn      []string
	NoShows        []string
	CheckInEnabled bool
	CheckInActive  bool
}

// Attendance builds the attendance report, or nil for unknown ids.
func (r *Registry) Attendance(eventID string) *AttendanceReport {
	ev := r.Get(eventID)
	if ev == nil {
		return nil
	}
	return &AttendanceReport{
		EventID:        ev.ID,
		EventName:      ev.Name,
		Participants:   ev.ParticipantCount(),
		CheckedInCount: ev.CheckedInCount(),
		AttendanceRate: ev.AttendanceRate(),
		CheckedIn:      ev.CheckedIn(),
		NoShows:        ev.NoShows(),
		CheckInEnabled: ev.CheckInEnabled(),
		CheckInActive:  ev.CheckInActive(),
	}
}

// CleanupOld deletes events created more than the given number of days ago
// and returns how many were removed.
func (r *Registry) CleanupOld(ctx context.Context, days int) int {
	ctx, span := r.tracer.Start(ctx, "Registry.CleanupOld",
		trace.WithAttributes(attribute.Int("days", days)),
	)
	defer span.End()

	cutoff := r.clock.Now().UTC().AddDate(0, 0, -days)

	r.mu.RLock()
	var old []string
	for id, ev := range r.events {
		if ev.CreatedAt.Before(cutoff) {
			old = append(old, id)
		}
	}
	r.mu.RUnlock()

	removed := 0
	for _, id := range old {
		if r.Delete(ctx, id) {
			removed++
		}
	}

	r.logger.InfoContext(ctx, "cleaned up old events", slog.Int("removed", removed))
	return removed
}

// ClearGuild deletes every event in the guild and returns how many were
// removed.
func (r *Registry) ClearGuild(ctx context.Context, guildID string) int {
	ctx, span := r.tracer.Start(ctx, "Registry.ClearGuild",
		trace.WithAttributes(attribute.String("guild.id", guildID)),
	)
	defer span.End()

	removed := 0
	for _, ev := range r.ByGuild(guildID) {
		if r.Delete(ctx, ev.ID) {
			removed++
		}
	}

	r.logger.InfoContext(ctx, "cleared guild events",
		slog.String("guild_id", guildID), slog.Int("removed", removed))
	return removed
}

// Statistics aggregates per-guild event counts.
type Statistics struct {
	TotalEvents         int
	ByType              map[Type]int
	ByStatus            map[Status]int
	TotalParticipants   int
	AverageParticipants float64
}

// Stats computes event statistics across the guild.
func (r *Registry) Stats(guildID string) Statistics {
	events := r.ByGuild(guildID)

	stats := Statistics{
		TotalEvents: len(events),
		ByType:      make(map[Type]int),
		ByStatus:    make(map[Status]int),
	}
	for _, typ := range Types {
		stats.ByType[typ] = 0
	}
	for _, st := range Statuses {
		stats.ByStatus[st] = 0
	}

	for _, ev := range events {
		stats.ByType[ev.Type]++
		stats.ByStatus[ev.Status()]++
		stats.TotalParticipants += ev.ParticipantCount()
	}
	if len(events) > 0 {
		stats.AverageParticipants = float64(stats.TotalParticipants) / float64(len(events))
	}
	return stats
}
