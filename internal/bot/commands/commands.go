// Package commands implements the slash command and message component
// handlers that expose the event registry and team tools on Discord.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clanops/eventbot/internal/event"
	"github.com/clanops/eventbot/internal/reminder"
)

// Handlers process Discord interactions.
type Handlers struct {
	registry  *event.Registry
	scheduler *reminder.Scheduler
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(registry *event.Registry, scheduler *reminder.Scheduler, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		registry:  registry,
		scheduler: scheduler,
		logger:    logger,
		tracer:    tp.Tracer("github.com/clanops/eventbot/internal/bot/commands"),
	}
}

func typeChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(event.Types))
	for _, t := range event.Types {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  string(t),
			Value: string(t),
		})
	}
	return choices
}

func eventIDOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "event-id",
		Description: "The event ID",
		Required:    true,
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "event-create",
			Description: "Create a new clan event",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Event name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Event type",
					Required:    true,
					Choices:     typeChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: "What the event is about",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "time",
					Description: "Start time in UTC, e.g. 2026-09-01 19:00",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "max-participants",
					Description: "Participant cap (default: 100)",
					Required:    false,
				},
			},
		},
		{
			Name:        "events",
			Description: "List events in this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "status",
					Description: "Only show events with this status",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Open", Value: string(event.StatusOpen)},
						{Name: "Full", Value: string(event.StatusFull)},
						{Name: "In Progress", Value: string(event.StatusInProgress)},
						{Name: "Completed", Value: string(event.StatusCompleted)},
						{Name: "Cancelled", Value: string(event.StatusCancelled)},
					},
				},
			},
		},
		{
			Name:        "event-info",
			Description: "Show full details for one event",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "event-delete",
			Description: "Delete an event (creator or admin only)",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "clear-events",
			Description: "Delete every event in this server (admin only)",
		},
		{
			Name:        "join",
			Description: "Join an event",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "leave",
			Description: "Leave an event",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "checkin",
			Description: "Check in to an event",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "checkout",
			Description: "Undo your check-in",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "checkin-enable",
			Description: "Open the check-in window (creator or admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				eventIDOption(),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "start",
					Description: "Window start in UTC, e.g. 2026-09-01 18:30 (default: now)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "end",
					Description: "Window end in UTC (default: open-ended)",
					Required:    false,
				},
			},
		},
		{
			Name:        "checkin-disable",
			Description: "Close the check-in window (creator or admin only)",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "attendance",
			Description: "Show the attendance report for an event",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "randomize-teams",
			Description: "Randomize participants into teams (creator or admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				eventIDOption(),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "size",
					Description: "Players per team",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Solo (1)", Value: 1},
						{Name: "Duos (2)", Value: 2},
						{Name: "Trios (3)", Value: 3},
						{Name: "Fours (4)", Value: 4},
						{Name: "Sixes (6)", Value: 6},
					},
				},
			},
		},
		{
			Name:        "show-teams",
			Description: "Show the current team roster",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "clear-teams",
			Description: "Clear the team roster (creator or admin only)",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "team-stats",
			Description: "Show team size statistics for an event",
			Options:     []*discordgo.ApplicationCommandOption{eventIDOption()},
		},
		{
			Name:        "event-stats",
			Description: "Show event statistics for this server",
		},
	}
}

// InteractionCreate routes slash commands and component clicks.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		h.handleComponent(s, i)
	}
}

func (h *Handlers) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", name)),
	)
	defer span.End()

	switch name {
	case "event-create":
		h.handleEventCreate(ctx, s, i)
	case "events":
		h.handleEvents(ctx, s, i)
	case "event-info":
		h.handleEventInfo(ctx, s, i)
	case "event-delete":
		h.handleEventDelete(ctx, s, i)
	case "clear-events":
		h.handleClearEvents(ctx, s, i)
	case "join":
		h.handleJoin(ctx, s, i)
	case "leave":
		h.handleLeave(ctx, s, i)
	case "checkin":
		h.handleCheckIn(ctx, s, i)
	case "checkout":
		h.handleCheckOut(ctx, s, i)
	case "checkin-enable":
		h.handleCheckInEnable(ctx, s, i)
	case "checkin-disable":
		h.handleCheckInDisable(ctx, s, i)
	case "attendance":
		h.handleAttendance(ctx, s, i)
	case "randomize-teams":
		h.handleRandomizeTeams(ctx, s, i)
	case "show-teams":
		h.handleShowTeams(ctx, s, i)
	case "clear-teams":
		h.handleClearTeams(ctx, s, i)
	case "team-stats":
		h.handleTeamStats(ctx, s, i)
	case "event-stats":
		h.handleEventStats(ctx, s, i)
	default:
		respondEphemeral(s, i, "Unknown command")
	}
}

// actorID returns the invoking user's id for both guild and DM interactions.
func actorID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// canManage reports whether the actor is the event creator or carries a
// server management permission.
func canManage(i *discordgo.InteractionCreate, ev *event.Event) bool {
	if actorID(i) == ev.CreatorID {
		return true
	}
	return isAdmin(i)
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	return i.Member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0
}

// option returns the named command option, or nil.
func option(i *discordgo.InteractionCreate, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

// parseWhen accepts "2006-01-02 15:04" or RFC 3339, interpreted as UTC.
func parseWhen(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02 15:04", value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: expected YYYY-MM-DD HH:MM (UTC)", value)
	}
	return t.UTC(), nil
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}
