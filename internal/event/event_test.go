package event_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/clanops/eventbot/internal/clock"
	"github.com/clanops/eventbot/internal/event"
)

var baseTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newEvent(t *testing.T, p event.Params) (*event.Event, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(baseTime)
	if p.ID == "" {
		p.ID = "ev1"
	}
	if p.GuildID == "" {
		p.GuildID = "guild-1"
	}
	if p.CreatorID == "" {
		p.CreatorID = "creator"
	}
	if p.Type == "" {
		p.Type = event.TypeGeneral
	}
	if p.Name == "" {
		p.Name = "Raid Night"
	}
	return event.New(p, clk), clk
}

func TestAddParticipant(t *testing.T) {
	ev, _ := newEvent(t, event.Params{MaxParticipants: 2})

	if !ev.AddParticipant("u1") {
		t.Fatal("first join should succeed")
	}
	if ev.AddParticipant("u1") {
		t.Error("duplicate join should fail")
	}
	if got := ev.ParticipantCount(); got != 1 {
		t.Errorf("ParticipantCount() = %d, want 1", got)
	}

	if !ev.AddParticipant("u2") {
		t.Fatal("second join should succeed")
	}
	if ev.Status() != event.StatusFull {
		t.Errorf("Status() = %q, want Full at capacity", ev.Status())
	}

	// Full event rejects further joins and leaves state unchanged.
	if ev.AddParticipant("u3") {
		t.Error("join on full event should fail")
	}
	if got := ev.ParticipantCount(); got != 2 {
		t.Errorf("ParticipantCount() after rejected join = %d, want 2", got)
	}
}

func TestRemoveParticipant(t *testing.T) {
	ev, _ := newEvent(t, event.Params{MaxParticipants: 2})
	ev.AddParticipant("u1")
	ev.AddParticipant("u2")

	if ev.Status() != event.StatusFull {
		t.Fatalf("Status() = %q, want Full", ev.Status())
	}

	if !ev.RemoveParticipant("u1") {
		t.Fatal("remove of existing participant should succeed")
	}
	if ev.Status() != event.StatusOpen {
		t.Errorf("Status() = %q, want Open after leaving a full event", ev.Status())
	}
	if ev.RemoveParticipant("u1") {
		t.Error("removing an absent user should fail")
	}

	// Re-filling flips back to Full.
	ev.AddParticipant("u3")
	if ev.Status() != event.StatusFull {
		t.Errorf("Status() = %q, want Full after refilling", ev.Status())
	}
}

func TestRemoveParticipant_LeavesTeam(t *testing.T) {
	ev, _ := newEvent(t, event.Params{})
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		ev.AddParticipant(u)
	}
	ev.SetTeams([][]string{{"u1", "u2"}, {"u3", "u4"}}, 2)

	if !ev.RemoveParticipant("u3") {
		t.Fatal("remove should succeed")
	}
	if got := ev.TeamOf("u3"); got != 0 {
		t.Errorf("TeamOf(u3) = %d, want 0 after removal", got)
	}
	if got := ev.TeamOf("u4"); got != 2 {
		t.Errorf("TeamOf(u4) = %d, want 2 (team order preserved)", got)
	}
}

func TestParticipants_NeverExceedCapacityNorDuplicate(t *testing.T) {
	ev, _ := newEvent(t, event.Params{MaxParticipants: 5})

	// Interleave joins, duplicate joins and leaves.
	for i := 0; i < 30; i++ {
		ev.AddParticipant(fmt.Sprintf("u%d", i%8))
		if i%3 == 0 {
			ev.RemoveParticipant(fmt.Sprintf("u%d", (i+1)%8))
		}

		if got := ev.ParticipantCount(); got > 5 {
			t.Fatalf("ParticipantCount() = %d, exceeds capacity 5", got)
		}
		seen := make(map[string]bool)
		for _, p := range ev.Participants() {
			if seen[p] {
				t.Fatalf("duplicate participant %s", p)
			}
			seen[p] = true
		}
	}
}

func TestCheckIn(t *testing.T) {
	windowStart := baseTime.Add(-time.Hour)
	windowEnd := baseTime.Add(time.Hour)

	tests := []struct {
		name  string
		setup func(ev *event.Event, clk *clock.Mock)
		user  string
		want  bool
	}{
		{
			name: "before enable",
			setup: func(ev *event.Event, clk *clock.Mock) {
				ev.AddParticipant("u1")
			},
			user: "u1",
			want: false,
		},
		{
			name: "after disable",
			setup: func(ev *event.Event, clk *clock.Mock) {
				ev.AddParticipant("u1")
				ev.EnableCheckIn(nil, nil)
				ev.DisableCheckIn()
			},
			user: "u1",
			want: false,
		},
		{
			name: "non-participant",
			setup: func(ev *event.Event, clk *clock.Mock) {
				ev.EnableCheckIn(nil, nil)
			},
			user: "stranger",
			want: false,
		},
		{
			name: "before window opens",
			setup: func(ev *event.Event, clk *clock.Mock) {
				ev.AddParticipant("u1")
				start := baseTime.Add(time.Hour)
				ev.EnableCheckIn(&start, nil)
			},
			user: "u1",
			want: false,
		},
		{
			name: "after window closes",
			setup: func(ev *event.Event, clk *clock.Mock) {
				ev.AddParticipant("u1")
				ev.EnableCheckIn(&windowStart, &windowEnd)
				clk.Advance(2 * time.Hour)
			},
			user: "u1",
			want: false,
		},
		{
			name: "inside window",
			setup: func(ev *event.Event, clk *clock.Mock) {
				ev.AddParticipant("u1")
				ev.EnableCheckIn(&windowStart, &windowEnd)
			},
			user: "u1",
			want: true,
		},
		{
			name: "unbounded window",
			setup: func(ev *event.Event, clk *clock.Mock) {
				ev.AddParticipant("u1")
				ev.EnableCheckIn(nil, nil)
			},
			user: "u1",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, clk := newEvent(t, event.Params{})
			tt.setup(ev, clk)
			if got := ev.CheckIn(tt.user); got != tt.want {
				t.Errorf("CheckIn(%s) = %v, want %v", tt.user, got, tt.want)
			}
		})
	}
}

func TestCheckIn_OncePerUser(t *testing.T) {
	ev, _ := newEvent(t, event.Params{})
	ev.AddParticipant("u1")
	ev.EnableCheckIn(nil, nil)

	if !ev.CheckIn("u1") {
		t.Fatal("first check-in should succeed")
	}
	if ev.CheckIn("u1") {
		t.Error("second check-in should fail")
	}
	if got := ev.CheckedInCount(); got != 1 {
		t.Errorf("CheckedInCount() = %d, want 1", got)
	}
}

func TestCheckOut(t *testing.T) {
	ev, _ := newEvent(t, event.Params{})
	ev.AddParticipant("u1")
	ev.EnableCheckIn(nil, nil)
	ev.CheckIn("u1")

	if !ev.CheckOut("u1") {
		t.Fatal("check-out of checked-in user should succeed")
	}
	if ev.CheckOut("u1") {
		t.Error("check-out twice should fail")
	}
}

func TestCheckInActive_Window(t *testing.T) {
	ev, clk := newEvent(t, event.Params{})
	start := baseTime.Add(10 * time.Minute)
	end := baseTime.Add(20 * time.Minute)
	ev.EnableCheckIn(&start, &end)

	if ev.CheckInActive() {
		t.Error("active before window opens")
	}
	clk.Advance(15 * time.Minute)
	if !ev.CheckInActive() {
		t.Error("inactive inside window")
	}
	clk.Advance(10 * time.Minute)
	if ev.CheckInActive() {
		t.Error("active after window closes")
	}
}

func TestNoShows(t *testing.T) {
	ev, _ := newEvent(t, event.Params{})
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		ev.AddParticipant(u)
	}
	ev.EnableCheckIn(nil, nil)
	ev.CheckIn("u2")
	ev.CheckIn("u4")

	got := ev.NoShows()
	want := []string{"u1", "u3"}
	if len(got) != len(want) {
		t.Fatalf("NoShows() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NoShows()[%d] = %s, want %s (join order preserved)", i, got[i], want[i])
		}
	}
}

func TestCheckInRecordSurvivesLeave(t *testing.T) {
	// Attendance history deliberately survives a participant leaving.
	ev, _ := newEvent(t, event.Params{})
	ev.AddParticipant("u1")
	ev.EnableCheckIn(nil, nil)
	ev.CheckIn("u1")

	ev.RemoveParticipant("u1")

	if !ev.IsCheckedIn("u1") {
		t.Error("check-in record should survive participant removal")
	}
}

func TestAttendanceRate(t *testing.T) {
	ev, _ := newEvent(t, event.Params{})

	if got := ev.AttendanceRate(); got != 0 {
		t.Errorf("AttendanceRate() with no participants = %v, want 0", got)
	}

	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		ev.AddParticipant(u)
	}
	ev.EnableCheckIn(nil, nil)
	for _, u := range []string{"u1", "u2", "u3"} {
		ev.CheckIn(u)
	}

	if got := ev.AttendanceRate(); got != 75.0 {
		t.Errorf("AttendanceRate() = %v, want 75.0", got)
	}
}

func TestTeams(t *testing.T) {
	ev, _ := newEvent(t, event.Params{})
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		ev.AddParticipant(u)
	}

	if ev.HasTeams() {
		t.Error("HasTeams() = true before assignment")
	}
	ev.SetTeams([][]string{{"u1", "u2"}, {"u3", "u4"}}, 2)

	if !ev.HasTeams() || ev.TeamCount() != 2 {
		t.Errorf("HasTeams()/TeamCount() = %v/%d, want true/2", ev.HasTeams(), ev.TeamCount())
	}
	if got := ev.TeamSize(); got != 2 {
		t.Errorf("TeamSize() = %d, want 2", got)
	}
	if got := ev.TeamOf("u3"); got != 2 {
		t.Errorf("TeamOf(u3) = %d, want 2", got)
	}
	if got := ev.TeamOf("missing"); got != 0 {
		t.Errorf("TeamOf(missing) = %d, want 0", got)
	}

	ev.ClearTeams()
	if ev.HasTeams() || ev.TeamSize() != 0 {
		t.Error("ClearTeams() should remove teams and size")
	}
}

func TestClaimReminder(t *testing.T) {
	min, max := 30*time.Second, 3*time.Minute

	tests := []struct {
		name      string
		scheduled *time.Time
		now       time.Time
		want      bool
	}{
		{
			name:      "inside window",
			scheduled: timePtr(baseTime.Add(90 * time.Second)),
			now:       baseTime,
			want:      true,
		},
		{
			name:      "too far out",
			scheduled: timePtr(baseTime.Add(10 * time.Minute)),
			now:       baseTime,
			want:      false,
		},
		{
			name:      "already past",
			scheduled: timePtr(baseTime.Add(-time.Minute)),
			now:       baseTime,
			want:      false,
		},
		{
			name:      "at lower bound",
			scheduled: timePtr(baseTime.Add(30 * time.Second)),
			now:       baseTime,
			want:      true,
		},
		{
			name:      "at upper bound",
			scheduled: timePtr(baseTime.Add(3 * time.Minute)),
			now:       baseTime,
			want:      true,
		},
		{
			name:      "no schedule",
			scheduled: nil,
			now:       baseTime,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _ := newEvent(t, event.Params{ScheduledAt: tt.scheduled})
			if got := ev.ClaimReminder(tt.now, min, max); got != tt.want {
				t.Errorf("ClaimReminder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaimReminder_OneShot(t *testing.T) {
	ev, _ := newEvent(t, event.Params{ScheduledAt: timePtr(baseTime.Add(90 * time.Second))})

	if !ev.ClaimReminder(baseTime, 30*time.Second, 3*time.Minute) {
		t.Fatal("first claim inside the window should succeed")
	}
	if ev.ClaimReminder(baseTime.Add(15*time.Second), 30*time.Second, 3*time.Minute) {
		t.Error("second claim should be suppressed by the latch")
	}
	if !ev.ReminderSent() {
		t.Error("ReminderSent() = false after claim")
	}
}

func TestSetStatus(t *testing.T) {
	ev, _ := newEvent(t, event.Params{})
	ev.SetStatus(event.StatusInProgress)
	if ev.Status() != event.StatusInProgress {
		t.Errorf("Status() = %q, want In Progress", ev.Status())
	}
}

func TestTypeInfo(t *testing.T) {
	if !event.TypeBingo.Valid() {
		t.Error("TypeBingo should be valid")
	}
	if event.Type("Karaoke").Valid() {
		t.Error("unknown type should be invalid")
	}
	// Unknown types fall back to the general metadata.
	if got := event.Type("Karaoke").Info(); got.Emoji != event.TypeGeneral.Info().Emoji {
		t.Errorf("unknown type Info() = %+v, want general fallback", got)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
