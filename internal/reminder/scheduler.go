// Package reminder runs the background scheduler that watches scheduled
// events, fires one reminder per event inside a narrow pre-start window and
// drives the time-boxed team-size selection that follows.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clanops/eventbot/internal/clock"
	"github.com/clanops/eventbot/internal/event"
)

// Notifier is the collaborator that delivers reminder side effects: posting
// to the event's thread and rendering the team-size prompt. Failures are
// logged and confined to the one event being processed.
type Notifier interface {
	// SendReminder posts the reminder addressed to all current
	// participants to the event's thread.
	SendReminder(ctx context.Context, ev *event.Event) error
	// OpenTeamPrompt renders the team-size choice for the event creator.
	OpenTeamPrompt(ctx context.Context, p *Prompt) error
	// ResolvePrompt updates the rendered prompt with the final outcome
	// and, for created teams, posts the roster.
	ResolvePrompt(ctx context.Context, p *Prompt, res Resolution) error
}

// Options tune the scheduler's timing. Zero values take the defaults.
type Options struct {
	ScanInterval  time.Duration // delay between scans
	ErrorBackoff  time.Duration // delay after a failed scan
	WindowMin     time.Duration // lower bound of the firing window
	WindowMax     time.Duration // upper bound of the firing window
	PromptTimeout time.Duration // team-size prompt lifetime
}

func (o Options) withDefaults() Options {
	if o.ScanInterval <= 0 {
		o.ScanInterval = 15 * time.Second
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = time.Minute
	}
	if o.WindowMin <= 0 {
		o.WindowMin = 30 * time.Second
	}
	if o.WindowMax <= 0 {
		o.WindowMax = 3 * time.Minute
	}
	if o.PromptTimeout <= 0 {
		o.PromptTimeout = 5 * time.Minute
	}
	return o
}

// Scheduler periodically scans the registry for events entering the
// reminder window. Start and Stop bracket a single background goroutine;
// outstanding team prompts run on their own timers and survive Stop.
type Scheduler struct {
	registry *event.Registry
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    clock.Clock
	opts     Options

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	prompts map[string]*Prompt
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(registry *event.Registry, notifier Notifier, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock, opts Options) *Scheduler {
	return &Scheduler{
		registry: registry,
		notifier: notifier,
		logger:   logger,
		tracer:   tp.Tracer("github.com/clanops/eventbot/internal/reminder"),
		clock:    clk,
		opts:     opts.withDefaults(),
		prompts:  make(map[string]*Prompt),
	}
}

// Start launches the scan loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.loop(ctx, done)
	s.logger.Info("reminder scheduler started")
}

// Stop cancels the in-flight wait and blocks until the loop has exited.
// Outstanding team prompts are not cancelled; their timers run out on their
// own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("reminder scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		delay := s.opts.ScanInterval
		if err := s.scanSafely(ctx); err != nil {
			s.logger.ErrorContext(ctx, "reminder scan failed",
				slog.Any("error", err),
				slog.Duration("backoff", s.opts.ErrorBackoff),
			)
			delay = s.opts.ErrorBackoff
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// scanSafely converts a scan panic into an error so a single bad pass backs
// off instead of crash-looping the process.
func (s *Scheduler) scanSafely(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panic: %v", r)
		}
	}()
	s.Scan(ctx)
	return nil
}

// Scan walks every event once and fires the reminder for each event whose
// time-until-start falls within the firing window. The claim happens inside
// the event's lock, so overlapping scans can never double-send.
func (s *Scheduler) Scan(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Scheduler.Scan")
	defer span.End()

	now := s.clock.Now()
	for _, ev := range s.registry.All() {
		if !ev.ClaimReminder(now, s.opts.WindowMin, s.opts.WindowMax) {
			continue
		}
		span.AddEvent("reminder claimed", trace.WithAttributes(attribute.String("event.id", ev.ID)))
		s.remind(ctx, ev)
	}
}

// remind delivers the one-shot reminder and, when the event qualifies,
// opens the team-size prompt. The latch is already claimed: a failed send
// is logged, not retried.
func (s *Scheduler) remind(ctx context.Context, ev *event.Event) {
	ctx, span := s.tracer.Start(ctx, "Scheduler.remind",
		trace.WithAttributes(attribute.String("event.id", ev.ID)),
	)
	defer span.End()

	if err := s.notifier.SendReminder(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "failed to send reminder",
			slog.String("event_id", ev.ID),
			slog.Any("error", err),
		)
		return
	}
	s.logger.InfoContext(ctx, "reminder sent",
		slog.String("event_id", ev.ID),
		slog.Int("participants", ev.ParticipantCount()),
	)

	if ev.HasTeams() {
		return
	}
	if ev.ParticipantCount() < 2 {
		s.logger.InfoContext(ctx, "too few participants for a team prompt",
			slog.String("event_id", ev.ID))
		return
	}
	s.openPrompt(ctx, ev)
}

func (s *Scheduler) openPrompt(ctx context.Context, ev *event.Event) {
	p := &Prompt{event: ev, expiresAt: s.clock.Now().Add(s.opts.PromptTimeout)}

	// The timer is assigned before the prompt becomes reachable through the
	// registry or the notifier, so a click resolving the prompt right after
	// it renders never races this write.
	p.timer = time.AfterFunc(s.opts.PromptTimeout, func() {
		s.expirePrompt(ev.ID)
	})

	s.mu.Lock()
	s.prompts[ev.ID] = p
	s.mu.Unlock()

	if err := s.notifier.OpenTeamPrompt(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to open team prompt",
			slog.String("event_id", ev.ID),
			slog.Any("error", err),
		)
		p.timer.Stop()
		s.mu.Lock()
		delete(s.prompts, ev.ID)
		s.mu.Unlock()
		return
	}

	s.logger.InfoContext(ctx, "team prompt opened",
		slog.String("event_id", ev.ID),
		slog.String("creator_id", ev.CreatorID),
	)
}

// Prompt returns the outstanding prompt for the event, or nil.
func (s *Scheduler) Prompt(eventID string) *Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts[eventID]
}

func (s *Scheduler) takePrompt(eventID string) *Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.prompts[eventID]
	if p != nil {
		delete(s.prompts, eventID)
	}
	return p
}

func (s *Scheduler) expirePrompt(eventID string) {
	p := s.takePrompt(eventID)
	if p == nil || !p.claim() {
		return
	}

	ctx := context.Background()
	s.logger.Warn("team prompt timed out", slog.String("event_id", eventID))
	if err := s.notifier.ResolvePrompt(ctx, p, Resolution{Outcome: OutcomeTimeout}); err != nil {
		s.logger.Error("failed to resolve timed-out prompt",
			slog.String("event_id", eventID),
			slog.Any("error", err),
		)
	}
}
