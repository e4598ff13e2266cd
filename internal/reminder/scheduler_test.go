package reminder_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/clanops/eventbot/internal/clock"
	"github.com/clanops/eventbot/internal/event"
	"github.com/clanops/eventbot/internal/reminder"
	"github.com/clanops/eventbot/internal/team"
)

var baseTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// mockNotifier records reminder side effects.
type mockNotifier struct {
	mu          sync.Mutex
	reminders   []string
	prompts     []string
	resolutions map[string]reminder.Resolution
	sendErr     error
	openErr     error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{resolutions: make(map[string]reminder.Resolution)}
}

func (m *mockNotifier) SendReminder(_ context.Context, ev *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.reminders = append(m.reminders, ev.ID)
	return nil
}

func (m *mockNotifier) OpenTeamPrompt(_ context.Context, p *reminder.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.prompts = append(m.prompts, p.Event().ID)
	return nil
}

func (m *mockNotifier) ResolvePrompt(_ context.Context, p *reminder.Prompt, res reminder.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions[p.Event().ID] = res
	return nil
}

func (m *mockNotifier) reminderCount(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.reminders {
		if id == eventID {
			n++
		}
	}
	return n
}

func (m *mockNotifier) promptCount(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.prompts {
		if id == eventID {
			n++
		}
	}
	return n
}

func (m *mockNotifier) resolution(eventID string) (reminder.Resolution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.resolutions[eventID]
	return res, ok
}

type fixture struct {
	registry  *event.Registry
	notifier  *mockNotifier
	scheduler *reminder.Scheduler
	clock     *clock.Mock
}

func newFixture(t *testing.T, opts reminder.Options) *fixture {
	t.Helper()
	clk := clock.NewMock(baseTime)
	tp := noop.NewTracerProvider()
	registry := event.NewRegistry(slog.Default(), tp, clk)
	notifier := newMockNotifier()
	sched := reminder.NewScheduler(registry, notifier, slog.Default(), tp, clk, opts)
	return &fixture{registry: registry, notifier: notifier, scheduler: sched, clock: clk}
}

func (f *fixture) scheduledEvent(t *testing.T, in time.Duration, participants ...string) *event.Event {
	t.Helper()
	at := f.clock.Now().Add(in)
	ev := f.registry.Create(context.Background(), event.Params{
		GuildID:     "guild-1",
		CreatorID:   "creator",
		Type:        event.TypeGeneral,
		Name:        "Raid Night",
		ScheduledAt: &at,
	})
	for _, u := range participants {
		ev.AddParticipant(u)
	}
	ev.SetThreadID("thread-1")
	return ev
}

func TestScan_SendsOnceInsideWindow(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	ev := f.scheduledEvent(t, 90*time.Second, "u1", "u2")
	ctx := context.Background()

	f.scheduler.Scan(ctx)
	if got := f.notifier.reminderCount(ev.ID); got != 1 {
		t.Fatalf("reminders after first scan = %d, want 1", got)
	}

	// A second tick inside the window must be suppressed by the latch.
	f.clock.Advance(15 * time.Second)
	f.scheduler.Scan(ctx)
	if got := f.notifier.reminderCount(ev.ID); got != 1 {
		t.Errorf("reminders after second scan = %d, want 1", got)
	}
}

func TestScan_OutsideWindowThenInside(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	ev := f.scheduledEvent(t, 10*time.Minute, "u1", "u2")
	ctx := context.Background()

	// Repeated scans outside the window never remind.
	for i := 0; i < 5; i++ {
		f.scheduler.Scan(ctx)
		f.clock.Advance(15 * time.Second)
	}
	if got := f.notifier.reminderCount(ev.ID); got != 0 {
		t.Fatalf("reminders while outside window = %d, want 0", got)
	}

	// Advance into the window: exactly one reminder fires.
	f.clock.Set(ev.ScheduledAt().Add(-2 * time.Minute))
	f.scheduler.Scan(ctx)
	f.scheduler.Scan(ctx)
	if got := f.notifier.reminderCount(ev.ID); got != 1 {
		t.Errorf("reminders inside window = %d, want 1", got)
	}
}

func TestScan_SkipsUnscheduledEvents(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	ev := f.registry.Create(context.Background(), event.Params{
		GuildID: "guild-1", CreatorID: "creator", Type: event.TypeGeneral, Name: "Ad hoc",
	})
	ev.AddParticipant("u1")

	f.scheduler.Scan(context.Background())
	if got := f.notifier.reminderCount(ev.ID); got != 0 {
		t.Errorf("reminders for unscheduled event = %d, want 0", got)
	}
}

func TestScan_ConcurrentScansSendOnce(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	ev := f.scheduledEvent(t, 90*time.Second, "u1", "u2")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.scheduler.Scan(context.Background())
		}()
	}
	wg.Wait()

	if got := f.notifier.reminderCount(ev.ID); got != 1 {
		t.Errorf("reminders after concurrent scans = %d, want exactly 1", got)
	}
}

func TestScan_SendFailureIsConfined(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	f.notifier.sendErr = errors.New("thread not found")
	ev := f.scheduledEvent(t, 90*time.Second, "u1", "u2")

	// Must not panic and must not open a prompt for the failed event.
	f.scheduler.Scan(context.Background())
	if got := f.notifier.promptCount(ev.ID); got != 0 {
		t.Errorf("prompts after failed send = %d, want 0", got)
	}
}

func TestScan_PromptOnlyWhenEligible(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(f *fixture) *event.Event
		wantPrompt bool
	}{
		{
			name: "two participants, no teams",
			setup: func(f *fixture) *event.Event {
				return f.scheduledEvent(t, time.Minute, "u1", "u2")
			},
			wantPrompt: true,
		},
		{
			name: "single participant",
			setup: func(f *fixture) *event.Event {
				return f.scheduledEvent(t, time.Minute, "u1")
			},
			wantPrompt: false,
		},
		{
			name: "teams already assigned",
			setup: func(f *fixture) *event.Event {
				ev := f.scheduledEvent(t, time.Minute, "u1", "u2")
				ev.SetTeams([][]string{{"u1", "u2"}}, 2)
				return ev
			},
			wantPrompt: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, reminder.Options{})
			ev := tt.setup(f)
			f.scheduler.Scan(context.Background())

			got := f.notifier.promptCount(ev.ID) > 0
			if got != tt.wantPrompt {
				t.Errorf("prompt opened = %v, want %v", got, tt.wantPrompt)
			}
			if tt.wantPrompt && f.scheduler.Prompt(ev.ID) == nil {
				t.Error("Prompt() = nil, want outstanding prompt")
			}
		})
	}
}

func TestChoose(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	ev := f.scheduledEvent(t, time.Minute, "u1", "u2", "u3", "u4")
	ctx := context.Background()
	f.scheduler.Scan(ctx)

	t.Run("non-creator is rejected without consuming", func(t *testing.T) {
		_, err := f.scheduler.Choose(ctx, ev.ID, "intruder", 2)
		if !errors.Is(err, reminder.ErrNotCreator) {
			t.Fatalf("Choose() error = %v, want ErrNotCreator", err)
		}
		if f.scheduler.Prompt(ev.ID) == nil {
			t.Error("prompt consumed by rejected actor")
		}
	})

	t.Run("creator choice assigns teams", func(t *testing.T) {
		res, err := f.scheduler.Choose(ctx, ev.ID, "creator", 2)
		if err != nil {
			t.Fatalf("Choose() error = %v", err)
		}
		if res.Outcome != reminder.OutcomeTeams {
			t.Fatalf("Outcome = %v, want OutcomeTeams", res.Outcome)
		}
		if len(res.Teams) != 2 {
			t.Errorf("got %d teams, want 2", len(res.Teams))
		}
		if !ev.HasTeams() || ev.TeamSize() != 2 {
			t.Errorf("event teams/size = %v/%d, want assigned size 2", ev.HasTeams(), ev.TeamSize())
		}
		if got, ok := f.notifier.resolution(ev.ID); !ok || got.Outcome != reminder.OutcomeTeams {
			t.Errorf("notifier resolution = %+v (%v), want OutcomeTeams", got, ok)
		}
	})

	t.Run("prompt gone after resolution", func(t *testing.T) {
		_, err := f.scheduler.Choose(ctx, ev.ID, "creator", 2)
		if !errors.Is(err, reminder.ErrNoPrompt) {
			t.Errorf("Choose() after resolution error = %v, want ErrNoPrompt", err)
		}
	})
}

// choosingNotifier resolves the prompt from inside OpenTeamPrompt, like a
// creator clicking the instant the buttons render. Run with -race: the
// resolution must not race the scheduler's prompt bookkeeping.
type choosingNotifier struct {
	*mockNotifier
	scheduler *reminder.Scheduler
	choice    reminder.Resolution
	chooseErr error
}

func (c *choosingNotifier) OpenTeamPrompt(ctx context.Context, p *reminder.Prompt) error {
	if err := c.mockNotifier.OpenTeamPrompt(ctx, p); err != nil {
		return err
	}
	c.choice, c.chooseErr = c.scheduler.Choose(ctx, p.Event().ID, p.Event().CreatorID, 2)
	return nil
}

func TestChoose_ImmediatelyAfterPromptOpens(t *testing.T) {
	clk := clock.NewMock(baseTime)
	tp := noop.NewTracerProvider()
	registry := event.NewRegistry(slog.Default(), tp, clk)
	notifier := &choosingNotifier{mockNotifier: newMockNotifier()}
	sched := reminder.NewScheduler(registry, notifier, slog.Default(), tp, clk, reminder.Options{})
	notifier.scheduler = sched

	at := clk.Now().Add(90 * time.Second)
	ev := registry.Create(context.Background(), event.Params{
		GuildID:     "guild-1",
		CreatorID:   "creator",
		Type:        event.TypeGeneral,
		Name:        "Raid Night",
		ScheduledAt: &at,
	})
	ev.AddParticipant("u1")
	ev.AddParticipant("u2")
	ev.SetThreadID("thread-1")

	sched.Scan(context.Background())

	if notifier.chooseErr != nil {
		t.Fatalf("Choose() error = %v", notifier.chooseErr)
	}
	if notifier.choice.Outcome != reminder.OutcomeTeams {
		t.Fatalf("Outcome = %v, want OutcomeTeams", notifier.choice.Outcome)
	}
	if !ev.HasTeams() {
		t.Error("teams not assigned")
	}
	if sched.Prompt(ev.ID) != nil {
		t.Error("prompt still registered after resolution")
	}
}

func TestChoose_RandomizeFailure(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	ev := f.scheduledEvent(t, time.Minute, "u1", "u2")
	ctx := context.Background()
	f.scheduler.Scan(ctx)

	// Size 6 with only two participants cannot be satisfied.
	res, err := f.scheduler.Choose(ctx, ev.ID, "creator", 6)
	if err != nil {
		t.Fatalf("Choose() error = %v", err)
	}
	if res.Outcome != reminder.OutcomeFailed {
		t.Fatalf("Outcome = %v, want OutcomeFailed", res.Outcome)
	}
	if !errors.Is(res.Err, team.ErrNotEnough) {
		t.Errorf("Err = %v, want ErrNotEnough", res.Err)
	}
	if ev.HasTeams() {
		t.Error("teams set despite randomize failure")
	}
}

func TestChoose_NoParticipantsLeft(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	ev := f.scheduledEvent(t, time.Minute, "u1", "u2")
	ctx := context.Background()
	f.scheduler.Scan(ctx)

	// Everyone leaves while the prompt is outstanding.
	ev.RemoveParticipant("u1")
	ev.RemoveParticipant("u2")

	res, err := f.scheduler.Choose(ctx, ev.ID, "creator", 2)
	if err != nil {
		t.Fatalf("Choose() error = %v", err)
	}
	if res.Outcome != reminder.OutcomeFailed {
		t.Errorf("Outcome = %v, want OutcomeFailed", res.Outcome)
	}
}

func TestChoose_UnknownEvent(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	_, err := f.scheduler.Choose(context.Background(), "missing", "creator", 2)
	if !errors.Is(err, reminder.ErrNoPrompt) {
		t.Errorf("Choose() error = %v, want ErrNoPrompt", err)
	}
}

func TestDecline(t *testing.T) {
	f := newFixture(t, reminder.Options{})
	ev := f.scheduledEvent(t, time.Minute, "u1", "u2")
	ctx := context.Background()
	f.scheduler.Scan(ctx)

	if _, err := f.scheduler.Decline(ctx, ev.ID, "intruder"); !errors.Is(err, reminder.ErrNotCreator) {
		t.Fatalf("Decline() by non-creator error = %v, want ErrNotCreator", err)
	}

	res, err := f.scheduler.Decline(ctx, ev.ID, "creator")
	if err != nil {
		t.Fatalf("Decline() error = %v", err)
	}
	if res.Outcome != reminder.OutcomeNoTeams {
		t.Errorf("Outcome = %v, want OutcomeNoTeams", res.Outcome)
	}
	if ev.HasTeams() {
		t.Error("teams set despite decline")
	}
}

func TestPrompt_Timeout(t *testing.T) {
	f := newFixture(t, reminder.Options{PromptTimeout: 20 * time.Millisecond})
	ev := f.scheduledEvent(t, time.Minute, "u1", "u2")
	f.scheduler.Scan(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		if res, ok := f.notifier.resolution(ev.ID); ok {
			if res.Outcome != reminder.OutcomeTimeout {
				t.Fatalf("Outcome = %v, want OutcomeTimeout", res.Outcome)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("prompt never timed out")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if ev.HasTeams() {
		t.Error("teams set despite timeout")
	}
	if f.scheduler.Prompt(ev.ID) != nil {
		t.Error("prompt still registered after timeout")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t, reminder.Options{ScanInterval: 5 * time.Millisecond})
	ev := f.scheduledEvent(t, 90*time.Second, "u1", "u2")

	f.scheduler.Start(context.Background())
	// Start twice is a no-op, not a second loop.
	f.scheduler.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for f.notifier.reminderCount(ev.ID) == 0 {
		select {
		case <-deadline:
			t.Fatal("loop never fired the reminder")
		case <-time.After(5 * time.Millisecond):
		}
	}

	f.scheduler.Stop()
	// Stop twice must not block or panic.
	f.scheduler.Stop()

	if got := f.notifier.reminderCount(ev.ID); got != 1 {
		t.Errorf("reminders = %d, want 1", got)
	}
}
