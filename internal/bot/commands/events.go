package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/clanops/eventbot/internal/event"
)

func (h *Handlers) handleEventCreate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	p := event.Params{
		GuildID:   i.GuildID,
		CreatorID: actorID(i),
	}
	for _, opt := range data.Options {
		switch opt.Name {
		case "name":
			p.Name = opt.StringValue()
		case "type":
			p.Type = event.Type(opt.StringValue())
		case "description":
			p.Description = opt.StringValue()
		case "max-participants":
			p.MaxParticipants = int(opt.IntValue())
		case "time":
			at, err := parseWhen(opt.StringValue())
			if err != nil {
				respondEphemeral(s, i, fmt.Sprintf("Invalid time: %s", err))
				return
			}
			p.ScheduledAt = &at
		}
	}
	if !p.Type.Valid() {
		respondEphemeral(s, i, fmt.Sprintf("Unknown event type %q", p.Type))
		return
	}

	ev := h.registry.Create(ctx, p)

	respondEmbed(s, i, eventEmbed(ev), JoinLeaveRow(ev.ID))

	// The response itself is the event message; link it so button clicks and
	// message lookups resolve back to the event.
	if msg, err := s.InteractionResponse(i.Interaction); err == nil {
		ev.SetMessageID(msg.ID)
		ev.SetThreadID(msg.ChannelID)
		h.registry.Link(msg.ID, ev.ID)
	} else {
		h.logger.WarnContext(ctx, "fetching interaction response",
			slog.String("event_id", ev.ID), slog.Any("error", err))
	}
}

func (h *Handlers) handleEvents(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	var events []*event.Event
	if opt := option(i, "status"); opt != nil {
		events = h.registry.ByStatus(i.GuildID, event.Status(opt.StringValue()))
	} else {
		events = h.registry.ByGuild(i.GuildID)
	}
	if len(events) == 0 {
		respondEphemeral(s, i, "No events found.")
		return
	}

	var b strings.Builder
	b.WriteString("**Events:**\n")
	for _, ev := range events {
		info := ev.Type.Info()
		fmt.Fprintf(&b, "%s `%s` **%s** — %s, %d/%d joined",
			info.Emoji, ev.ID, ev.Name, ev.Status(), ev.ParticipantCount(), ev.MaxParticipants())
		if at := ev.ScheduledAt(); at != nil {
			fmt.Fprintf(&b, ", starts <t:%d:R>", at.Unix())
		}
		b.WriteString("\n")
	}
	respond(s, i, b.String())
}

func (h *Handlers) handleEventInfo(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev := h.registry.Get(option(i, "event-id").StringValue())
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	respondEmbed(s, i, eventEmbed(ev), JoinLeaveRow(ev.ID))
}

func (h *Handlers) handleEventDelete(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := option(i, "event-id").StringValue()
	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !canManage(i, ev) {
		respondEphemeral(s, i, "Only the event creator or an admin can delete this event.")
		return
	}
	h.registry.Delete(ctx, eventID)
	respond(s, i, fmt.Sprintf("Event **%s** deleted.", ev.Name))
}

func (h *Handlers) handleClearEvents(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respondEphemeral(s, i, "Only an admin can clear all events.")
		return
	}
	removed := h.registry.ClearGuild(ctx, i.GuildID)
	if removed == 0 {
		respondEphemeral(s, i, "No events found in this server.")
		return
	}
	respond(s, i, fmt.Sprintf("Cleared %d event(s) from this server.", removed))
}

func (h *Handlers) handleJoin(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := option(i, "event-id").StringValue()
	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !h.registry.AddParticipant(ctx, eventID, actorID(i)) {
		if ev.IsFull() {
			respondEphemeral(s, i, "This event is full.")
		} else {
			respondEphemeral(s, i, "You have already joined this event.")
		}
		return
	}
	respond(s, i, fmt.Sprintf("<@%s> joined **%s** (%d/%d).",
		actorID(i), ev.Name, ev.ParticipantCount(), ev.MaxParticipants()))
}

func (h *Handlers) handleLeave(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := option(i, "event-id").StringValue()
	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !h.registry.RemoveParticipant(ctx, eventID, actorID(i)) {
		respondEphemeral(s, i, "You are not a participant of this event.")
		return
	}
	respond(s, i, fmt.Sprintf("<@%s> left **%s** (%d/%d).",
		actorID(i), ev.Name, ev.ParticipantCount(), ev.MaxParticipants()))
}

func (h *Handlers) handleCheckIn(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := option(i, "event-id").StringValue()
	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !h.registry.CheckIn(ctx, eventID, actorID(i)) {
		switch {
		case !ev.IsParticipant(actorID(i)):
			respondEphemeral(s, i, "Join the event before checking in.")
		case !ev.CheckInActive():
			respondEphemeral(s, i, "Check-in is not open right now.")
		default:
			respondEphemeral(s, i, "You are already checked in.")
		}
		return
	}
	respond(s, i, fmt.Sprintf("<@%s> checked in to **%s** (%d/%d checked in).",
		actorID(i), ev.Name, ev.CheckedInCount(), ev.ParticipantCount()))
}

func (h *Handlers) handleCheckOut(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := option(i, "event-id").StringValue()
	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !h.registry.CheckOut(ctx, eventID, actorID(i)) {
		respondEphemeral(s, i, "You are not checked in.")
		return
	}
	respond(s, i, fmt.Sprintf("<@%s> checked out of **%s**.", actorID(i), ev.Name))
}

func (h *Handlers) handleCheckInEnable(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := option(i, "event-id").StringValue()
	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !canManage(i, ev) {
		respondEphemeral(s, i, "Only the event creator or an admin can manage check-in.")
		return
	}

	var start, end *time.Time
	if opt := option(i, "start"); opt != nil {
		t, err := parseWhen(opt.StringValue())
		if err != nil {
			respondEphemeral(s, i, fmt.Sprintf("Invalid start: %s", err))
			return
		}
		start = &t
	}
	if opt := option(i, "end"); opt != nil {
		t, err := parseWhen(opt.StringValue())
		if err != nil {
			respondEphemeral(s, i, fmt.Sprintf("Invalid end: %s", err))
			return
		}
		end = &t
	}

	h.registry.EnableCheckIn(ctx, eventID, start, end)
	respond(s, i, fmt.Sprintf("Check-in is now open for **%s**. Use `/checkin event-id:%s`.", ev.Name, ev.ID))
}

func (h *Handlers) handleCheckInDisable(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	eventID := option(i, "event-id").StringValue()
	ev := h.registry.Get(eventID)
	if ev == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}
	if !canManage(i, ev) {
		respondEphemeral(s, i, "Only the event creator or an admin can manage check-in.")
		return
	}
	h.registry.DisableCheckIn(ctx, eventID)
	respond(s, i, fmt.Sprintf("Check-in closed for **%s**.", ev.Name))
}

func (h *Handlers) handleAttendance(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	report := h.registry.Attendance(option(i, "event-id").StringValue())
	if report == nil {
		respondEphemeral(s, i, "Event not found.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Attendance for %s**\n", report.EventName)
	fmt.Fprintf(&b, "Checked in: %d/%d (%.0f%%)\n", report.CheckedInCount, report.Participants, report.AttendanceRate)
	if !report.CheckInEnabled {
		b.WriteString("Check-in is not enabled.\n")
	} else if report.CheckInActive {
		b.WriteString("Check-in is open.\n")
	} else {
		b.WriteString("Check-in window is closed.\n")
	}
	if len(report.CheckedIn) > 0 {
		b.WriteString("Present: " + mentionList(report.CheckedIn) + "\n")
	}
	if len(report.NoShows) > 0 {
		b.WriteString("Not checked in: " + mentionList(report.NoShows) + "\n")
	}
	respond(s, i, b.String())
}
