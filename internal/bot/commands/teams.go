package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/clanops/eventbot/internal/team"
)

func (h *Handlers) handleRandomizeTeams(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := option(i, "event-id").StringValue()
	size := int(option(i, "size").IntValue())

	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !canManage(i, ev) {
		respondEphemeral(s, i, "Only the event creator or an admin can assign teams.")
		return
	}

	teams, err := team.Randomize(ev.Participants(), size)
	if err != nil {
		switch {
		case errors.Is(err, team.ErrNoParticipants):
			respondEphemeral(s, i, "Nobody has joined this event yet.")
		case errors.Is(err, team.ErrNotEnough):
			respondEphemeral(s, i, fmt.Sprintf("Not enough participants for teams of %d.", size))
		case errors.Is(err, team.ErrInvalidSize):
			respondEphemeral(s, i, fmt.Sprintf("Team size %d is not supported.", size))
		default:
			respondEphemeral(s, i, fmt.Sprintf("Could not build teams: %s", err))
		}
		return
	}

	ev.SetTeams(teams, size)
	h.logger.InfoContext(ctx, "teams randomized",
		slog.String("event_id", ev.ID), slog.Int("size", size), slog.Int("teams", len(teams)))

	respond(s, i, fmt.Sprintf("**Teams for %s** (size %d):\n%s", ev.Name, size, rosterText(teams)))
}

func (h *Handlers) handleShowTeams(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev := h.registry.Get(option(i, "event-id").StringValue())
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !ev.HasTeams() {
		respondEphemeral(s, i, "No teams have been assigned yet. Use `/randomize-teams`.")
		return
	}
	respond(s, i, fmt.Sprintf("**Teams for %s** (size %d):\n%s", ev.Name, ev.TeamSize(), rosterText(ev.Teams())))
}

func (h *Handlers) handleClearTeams(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev := h.registry.Get(option(i, "event-id").StringValue())
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !canManage(i, ev) {
		respondEphemeral(s, i, "Only the event creator or an admin can clear teams.")
		return
	}
	if !ev.HasTeams() {
		respondEphemeral(s, i, "There are no teams to clear.")
		return
	}
	ev.ClearTeams()
	h.logger.InfoContext(ctx, "teams cleared", slog.String("event_id", ev.ID))
	respond(s, i, fmt.Sprintf("Teams cleared for **%s**.", ev.Name))
}

func (h *Handlers) handleTeamStats(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev := h.registry.Get(option(i, "event-id").StringValue())
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !ev.HasTeams() {
		respondEphemeral(s, i, "No teams have been assigned yet.")
		return
	}

	stats := team.Statistics(ev.Teams())
	respond(s, i, fmt.Sprintf(
		"**Team stats for %s**\nTeams: %d\nPlayers on teams: %d\nAverage size: %.1f\nSmallest: %d, largest: %d",
		ev.Name, stats.TotalTeams, stats.TotalMembers, stats.AverageSize, stats.MinSize, stats.MaxSize,
	))
}

func (h *Handlers) handleEventStats(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	stats := h.registry.Stats(i.GuildID)
	if stats.TotalEvents == 0 {
		respondEphemeral(s, i, "No events in this server yet.")
		return
	}

	var b strings.Builder
	b.WriteString("**Event statistics**\n")
	fmt.Fprintf(&b, "Total events: %d\n", stats.TotalEvents)
	fmt.Fprintf(&b, "Total sign-ups: %d (%.1f per event)\n", stats.TotalParticipants, stats.AverageParticipants)
	b.WriteString("By type:")
	for typ, n := range stats.ByType {
		if n > 0 {
			fmt.Fprintf(&b, " %s %d", typ.Info().Emoji, n)
		}
	}
	b.WriteString("\nBy status:")
	for status, n := range stats.ByStatus {
		if n > 0 {
			fmt.Fprintf(&b, " %s: %d", status, n)
		}
	}
	respond(s, i, b.String())
}
