package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clanops/eventbot/internal/reminder"
)

// Component custom ids carry the action and the event id, colon separated:
// "event:join:<id>", "event:leave:<id>", "teams:size:<id>:<n>", "teams:none:<id>".

// JoinLeaveRow builds the join/leave button row attached to event messages.
func JoinLeaveRow(eventID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Join",
					Style:    discordgo.PrimaryButton,
					CustomID: "event:join:" + eventID,
				},
				discordgo.Button{
					Label:    "Leave",
					Style:    discordgo.SecondaryButton,
					CustomID: "event:leave:" + eventID,
				},
			},
		},
	}
}

// TeamSizeRows builds the team-size prompt buttons for the given sizes.
func TeamSizeRows(eventID string, sizes []int, disabled bool) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(sizes)+1)
	for _, size := range sizes {
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("Teams of %d", size),
			Style:    discordgo.PrimaryButton,
			CustomID: fmt.Sprintf("teams:size:%s:%d", eventID, size),
			Disabled: disabled,
		})
	}
	buttons = append(buttons, discordgo.Button{
		Label:    "No teams",
		Style:    discordgo.SecondaryButton,
		CustomID: "teams:none:" + eventID,
		Disabled: disabled,
	})
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func (h *Handlers) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	ctx, span := h.tracer.Start(context.Background(), "ComponentInteraction",
		trace.WithAttributes(attribute.String("custom_id", customID)),
	)
	defer span.End()

	parts := strings.Split(customID, ":")
	if len(parts) < 3 {
		return
	}

	switch {
	case parts[0] == "event" && parts[1] == "join":
		h.componentJoin(ctx, s, i, parts[2])
	case parts[0] == "event" && parts[1] == "leave":
		h.componentLeave(ctx, s, i, parts[2])
	case parts[0] == "teams" && parts[1] == "size" && len(parts) == 4:
		size, err := strconv.Atoi(parts[3])
		if err != nil {
			return
		}
		h.componentTeamSize(ctx, s, i, parts[2], size)
	case parts[0] == "teams" && parts[1] == "none":
		h.componentTeamDecline(ctx, s, i, parts[2])
	}
}

func (h *Handlers) componentJoin(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, eventID string) {
	ev := h.registry.Get(eventID)
	if ev == nil {
		// Button on a message whose event is gone; fall back to the message index.
		if i.Message != nil {
			ev = h.registry.GetByMessage(i.Message.ID)
		}
		if ev == nil {
			respondEphemeral(s, i, "This event no longer exists.")
			return
		}
	}
	if !h.registry.AddParticipant(ctx, ev.ID, actorID(i)) {
		if ev.IsFull() {
			respondEphemeral(s, i, "This event is full.")
		} else {
			respondEphemeral(s, i, "You have already joined this event.")
		}
		return
	}
	h.refreshEventMessage(s, i, ev.ID)
	respondEphemeral(s, i, fmt.Sprintf("You joined **%s** (%d/%d).",
		ev.Name, ev.ParticipantCount(), ev.MaxParticipants()))
}

func (h *Handlers) componentLeave(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, eventID string) {
	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "This event no longer exists.")
		return
	}
	if !h.registry.RemoveParticipant(ctx, ev.ID, actorID(i)) {
		respondEphemeral(s, i, "You are not a participant of this event.")
		return
	}
	h.refreshEventMessage(s, i, ev.ID)
	respondEphemeral(s, i, fmt.Sprintf("You left **%s**.", ev.Name))
}

// refreshEventMessage re-renders the event embed on the message that carries
// the buttons so counts stay current.
func (h *Handlers) refreshEventMessage(s *discordgo.Session, i *discordgo.InteractionCreate, eventID string) {
	ev := h.registry.Get(eventID)
	if ev == nil || i.Message == nil {
		return
	}
	embed := eventEmbed(ev)
	_, _ = s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: i.Message.ChannelID,
		ID:      i.Message.ID,
		Embeds:  &[]*discordgo.MessageEmbed{embed},
	})
}

func (h *Handlers) componentTeamSize(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, eventID string, size int) {
	res, err := h.scheduler.Choose(ctx, eventID, actorID(i), size)
	if err != nil {
		h.respondPromptError(s, i, err)
		return
	}
	h.respondPromptResolution(s, i, res)
}

func (h *Handlers) componentTeamDecline(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, eventID string) {
	res, err := h.scheduler.Decline(ctx, eventID, actorID(i))
	if err != nil {
		h.respondPromptError(s, i, err)
		return
	}
	h.respondPromptResolution(s, i, res)
}

func (h *Handlers) respondPromptError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	switch {
	case errors.Is(err, reminder.ErrNotCreator):
		respondEphemeral(s, i, "Only the event creator can decide on teams.")
	case errors.Is(err, reminder.ErrNoPrompt):
		respondEphemeral(s, i, "This team prompt is no longer open.")
	default:
		respondEphemeral(s, i, fmt.Sprintf("Could not resolve the prompt: %s", err))
	}
}

// The public outcome message is posted by the scheduler's notifier; the
// interaction itself only gets a private acknowledgement.
func (h *Handlers) respondPromptResolution(s *discordgo.Session, i *discordgo.InteractionCreate, res reminder.Resolution) {
	switch res.Outcome {
	case reminder.OutcomeTeams:
		respondEphemeral(s, i, fmt.Sprintf("Teams of %d assigned.", res.Size))
	case reminder.OutcomeNoTeams:
		respondEphemeral(s, i, "Noted, no teams for this event.")
	case reminder.OutcomeFailed:
		respondEphemeral(s, i, fmt.Sprintf("Could not build teams: %s", res.Err))
	}
}
