package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/clanops/eventbot/internal/event"
	"github.com/clanops/eventbot/internal/team"
)

// Errors returned by prompt interactions.
var (
	ErrNoPrompt   = errors.New("no team prompt is open for this event")
	ErrNotCreator = errors.New("only the event creator can choose the team size")
)

// Outcome classifies how a team prompt ended.
type Outcome int

const (
	// OutcomeTeams means a size was chosen and teams were assigned.
	OutcomeTeams Outcome = iota
	// OutcomeNoTeams means the creator explicitly declined teams.
	OutcomeNoTeams
	// OutcomeTimeout means the prompt expired with no response.
	OutcomeTimeout
	// OutcomeFailed means randomization failed or no participants remained.
	OutcomeFailed
)

// Resolution is the final state of a prompt, handed to the Notifier for
// rendering.
type Resolution struct {
	Outcome Outcome
	Size    int
	Teams   [][]string
	Err     error
}

// Prompt is one outstanding time-boxed team-size choice. The first
// resolution wins: a selection, the decline button or the expiry timer.
type Prompt struct {
	mu        sync.Mutex
	resolved  bool
	messageID string

	event     *event.Event
	expiresAt time.Time
	timer     *time.Timer
}

// Event returns the event the prompt belongs to.
func (p *Prompt) Event() *event.Event { return p.event }

// ExpiresAt returns when the prompt times out.
func (p *Prompt) ExpiresAt() time.Time { return p.expiresAt }

// SetMessageID records the handle of the rendered prompt message.
func (p *Prompt) SetMessageID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messageID = id
}

// MessageID returns the handle of the rendered prompt message.
func (p *Prompt) MessageID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messageID
}

// claim marks the prompt resolved. It returns false if the prompt was
// already resolved by a competing selection or the expiry timer.
func (p *Prompt) claim() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return false
	}
	p.resolved = true
	return true
}

// Choose resolves the prompt with the selected team size: the event's
// current participants are randomized and, on success, assigned. Actors
// other than the event creator are rejected without consuming the prompt.
func (s *Scheduler) Choose(ctx context.Context, eventID, userID string, size int) (Resolution, error) {
	p := s.Prompt(eventID)
	if p == nil {
		return Resolution{}, ErrNoPrompt
	}
	if userID != p.event.CreatorID {
		return Resolution{}, ErrNotCreator
	}
	if !p.claim() {
		return Resolution{}, ErrNoPrompt
	}
	s.finishPrompt(p)

	res := Resolution{Size: size}
	participants := p.event.Participants()
	if len(participants) == 0 {
		res.Outcome = OutcomeFailed
		res.Err = team.ErrNoParticipants
	} else if teams, err := team.Randomize(participants, size); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
	} else {
		p.event.SetTeams(teams, size)
		res.Outcome = OutcomeTeams
		res.Teams = teams
	}

	s.logger.InfoContext(ctx, "team prompt resolved",
		slog.String("event_id", eventID),
		slog.Int("size", size),
		slog.Int("teams", len(res.Teams)),
		slog.Any("error", res.Err),
	)
	if err := s.notifier.ResolvePrompt(ctx, p, res); err != nil {
		s.logger.ErrorContext(ctx, "failed to render prompt resolution",
			slog.String("event_id", eventID),
			slog.Any("error", err),
		)
	}
	return res, nil
}

// Decline resolves the prompt with no teams. Restricted to the creator.
func (s *Scheduler) Decline(ctx context.Context, eventID, userID string) (Resolution, error) {
	p := s.Prompt(eventID)
	if p == nil {
		return Resolution{}, ErrNoPrompt
	}
	if userID != p.event.CreatorID {
		return Resolution{}, ErrNotCreator
	}
	if !p.claim() {
		return Resolution{}, ErrNoPrompt
	}
	s.finishPrompt(p)

	res := Resolution{Outcome: OutcomeNoTeams}
	s.logger.InfoContext(ctx, "team prompt declined", slog.String("event_id", eventID))
	if err := s.notifier.ResolvePrompt(ctx, p, res); err != nil {
		s.logger.ErrorContext(ctx, "failed to render prompt resolution",
			slog.String("event_id", eventID),
			slog.Any("error", err),
		)
	}
	return res, nil
}

// finishPrompt stops the expiry timer and drops the prompt from the
// routing table.
func (s *Scheduler) finishPrompt(p *Prompt) {
	if p.timer != nil {
		p.timer.Stop()
	}
	s.takePrompt(p.event.ID)
}
