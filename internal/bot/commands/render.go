package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/clanops/eventbot/internal/event"
)

// eventEmbed renders the canonical event card.
func eventEmbed(ev *event.Event) *discordgo.MessageEmbed {
	info := ev.Type.Info()

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s", info.Emoji, ev.Name),
		Description: ev.Description,
		Color:       info.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Type", Value: string(ev.Type), Inline: true},
			{Name: "Status", Value: string(ev.Status()), Inline: true},
			{
				Name:   "Participants",
				Value:  fmt.Sprintf("%d/%d", ev.ParticipantCount(), ev.MaxParticipants()),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Event ID: " + ev.ID},
	}

	if at := ev.ScheduledAt(); at != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Starts",
			Value:  fmt.Sprintf("<t:%d:F> (<t:%d:R>)", at.Unix(), at.Unix()),
			Inline: false,
		})
	}
	if ev.CheckInEnabled() {
		state := "closed"
		if ev.CheckInActive() {
			state = "open"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Check-in",
			Value:  fmt.Sprintf("%s (%d/%d checked in)", state, ev.CheckedInCount(), ev.ParticipantCount()),
			Inline: false,
		})
	}
	if ev.HasTeams() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Teams",
			Value:  rosterText(ev.Teams()),
			Inline: false,
		})
	}

	return embed
}

// rosterText formats teams as numbered lines of mentions.
func rosterText(teams [][]string) string {
	var b strings.Builder
	for n, members := range teams {
		fmt.Fprintf(&b, "**Team %d:** %s\n", n+1, mentionList(members))
	}
	return b.String()
}

func mentionList(userIDs []string) string {
	mentions := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		mentions = append(mentions, "<@"+id+">")
	}
	return strings.Join(mentions, ", ")
}
