package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/clanops/eventbot/internal/bot/commands"
	"github.com/clanops/eventbot/internal/event"
	"github.com/clanops/eventbot/internal/reminder"
)

// The bot is the scheduler's Notifier: reminders and team prompts are
// rendered as Discord messages in the event's channel.

// SendReminder posts the reminder message addressed to every participant.
func (b *Bot) SendReminder(ctx context.Context, ev *event.Event) error {
	channelID := ev.ThreadID()
	if channelID == "" {
		return fmt.Errorf("event %s has no channel to remind in", ev.ID)
	}

	participants := ev.Participants()
	mentions := make([]string, 0, len(participants))
	for _, id := range participants {
		mentions = append(mentions, "<@"+id+">")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "⏰ **%s** is starting soon!", ev.Name)
	if at := ev.ScheduledAt(); at != nil {
		fmt.Fprintf(&msg, " <t:%d:R>", at.Unix())
	}
	if len(mentions) > 0 {
		msg.WriteString("\n" + strings.Join(mentions, " "))
	}

	if _, err := b.session.ChannelMessageSend(channelID, msg.String()); err != nil {
		return fmt.Errorf("sending reminder for event %s: %w", ev.ID, err)
	}
	b.logger.InfoContext(ctx, "reminder sent",
		slog.String("event_id", ev.ID), slog.Int("participants", len(participants)))
	return nil
}

// OpenTeamPrompt posts the team-size choice buttons for the event creator.
func (b *Bot) OpenTeamPrompt(ctx context.Context, p *reminder.Prompt) error {
	ev := p.Event()
	channelID := ev.ThreadID()
	if channelID == "" {
		return fmt.Errorf("event %s has no channel for the team prompt", ev.ID)
	}

	sizes := ev.Type.Info().SuggestedTeamSizes
	msg, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> Should **%s** be played in teams? Pick a size within <t:%d:R>.",
			ev.CreatorID, ev.Name, p.ExpiresAt().Unix()),
		Components: commands.TeamSizeRows(ev.ID, sizes, false),
	})
	if err != nil {
		return fmt.Errorf("opening team prompt for event %s: %w", ev.ID, err)
	}
	p.SetMessageID(msg.ID)

	b.logger.InfoContext(ctx, "team prompt opened", slog.String("event_id", ev.ID))
	return nil
}

// ResolvePrompt disables the prompt buttons and posts the outcome.
func (b *Bot) ResolvePrompt(ctx context.Context, p *reminder.Prompt, res reminder.Resolution) error {
	ev := p.Event()
	channelID := ev.ThreadID()

	// Disable the buttons on the original prompt message, if we know it.
	if msgID := p.MessageID(); msgID != "" && channelID != "" {
		sizes := ev.Type.Info().SuggestedTeamSizes
		disabled := commands.TeamSizeRows(ev.ID, sizes, true)
		if _, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    channelID,
			ID:         msgID,
			Components: &disabled,
		}); err != nil {
			b.logger.WarnContext(ctx, "disabling team prompt buttons",
				slog.String("event_id", ev.ID), slog.Any("error", err))
		}
	}

	if channelID == "" {
		return nil
	}

	var text string
	switch res.Outcome {
	case reminder.OutcomeTeams:
		text = fmt.Sprintf("**Teams for %s** (size %d):\n%s", ev.Name, res.Size, rosterText(res.Teams))
	case reminder.OutcomeNoTeams:
		text = fmt.Sprintf("**%s** will be played without teams.", ev.Name)
	case reminder.OutcomeTimeout:
		text = fmt.Sprintf("No team size was chosen for **%s** in time. Playing without teams.", ev.Name)
	case reminder.OutcomeFailed:
		text = fmt.Sprintf("Could not build teams for **%s**: %s", ev.Name, res.Err)
	}

	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		return fmt.Errorf("posting prompt outcome for event %s: %w", ev.ID, err)
	}
	return nil
}

func rosterText(teams [][]string) string {
	var b strings.Builder
	for n, members := range teams {
		mentions := make([]string, 0, len(members))
		for _, id := range members {
			mentions = append(mentions, "<@"+id+">")
		}
		fmt.Fprintf(&b, "**Team %d:** %s\n", n+1, strings.Join(mentions, ", "))
	}
	return b.String()
}
