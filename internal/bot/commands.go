package bot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/gryphrace/paddock/internal/countdown"
	"github.com/gryphrace/paddock/internal/discord"
	"github.com/gryphrace/paddock/internal/verify"
)

const svcUnavailable = "Service unavailable. Please try again later."

// Both separators are accepted; the component widths are strict.
var dateRE = regexp.MustCompile(`^([0-9]{4})[/-]([0-9]{2})[/-]([0-9]{2})$`)

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	switch data.Name {
	case "countdown":
		b.handleCountdown(s, i, data)
	case "verify":
		b.handleVerify(s, i, data)
	case "db":
		b.handleDB(s, i, data)
	}
}

func (b *Bot) handleCountdown(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.storeReady {
		b.replyText(s, i, svcUnavailable)
		return
	}
	sub, opts := subcommand(data)
	switch sub {
	case "add":
		dateStr, ok1 := optString(opts, "date")
		title, ok2 := optString(opts, "name")
		if !ok1 || !ok2 {
			// Required options the platform should have enforced; abandon
			// the interaction rather than reply with nonsense.
			b.log.Error("countdown add missing required options",
				zap.String("interaction", i.ID))
			return
		}
		link, _ := optString(opts, "url")

		m := dateRE.FindStringSubmatch(dateStr)
		if m == nil {
			b.replyText(s, i, "Invalid date format. Please use YYYY/MM/DD format")
			return
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		expiration := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)

		if err := b.countdowns.Add(i.ChannelID, title, link, expiration); err != nil {
			if errors.Is(err, countdown.ErrPastDate) {
				b.replyText(s, i, "Date specified should be in the future")
				return
			}
			b.log.Error("countdown add failed", zap.Error(err))
			b.replyText(s, i, svcUnavailable)
			return
		}
		if err := b.countdowns.Render(i.ChannelID, false); err != nil {
			b.log.Error("countdown render failed", zap.String("channel", i.ChannelID), zap.Error(err))
		}
		b.replyEmbed(s, i, discord.QuickEmbed("Success", "Created a countdown.", discord.ColorYellow))

	case "remove":
		title, ok := optString(opts, "name")
		if !ok {
			b.log.Error("countdown remove missing name option", zap.String("interaction", i.ID))
			return
		}
		removed, err := b.countdowns.Remove(i.ChannelID, title)
		if err != nil {
			b.log.Error("countdown remove failed", zap.Error(err))
			b.replyText(s, i, svcUnavailable)
			return
		}
		if !removed {
			b.replyEmbed(s, i, discord.QuickEmbed("Not found",
				fmt.Sprintf("No countdown named `%s` in this channel.", title), discord.ColorRed))
			return
		}
		if err := b.countdowns.Render(i.ChannelID, false); err != nil {
			b.log.Error("countdown render failed", zap.String("channel", i.ChannelID), zap.Error(err))
		}
		b.replyEmbed(s, i, discord.QuickEmbed("Success", "Deleted the countdown.", discord.ColorYellow))

	case "update":
		tracked, err := b.countdowns.Tracked(i.ChannelID)
		if err != nil {
			b.log.Error("countdown lookup failed", zap.Error(err))
			b.replyText(s, i, svcUnavailable)
			return
		}
		if !tracked {
			b.replyEmbed(s, i, discord.QuickEmbed("Failure",
				"Channel does not contain any countdowns", discord.ColorRed))
			return
		}
		if err := b.countdowns.Render(i.ChannelID, false); err != nil {
			b.log.Error("countdown render failed", zap.String("channel", i.ChannelID), zap.Error(err))
		}
		b.replyEmbed(s, i, discord.QuickEmbed("Success", "Refreshed countdowns in channel.", discord.ColorYellow))
	}
}

func (b *Bot) handleVerify(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.storeReady {
		b.replyText(s, i, svcUnavailable)
		return
	}
	if i.Member == nil || i.Member.User == nil {
		return
	}
	sub, opts := subcommand(data)
	switch sub {
	case "unlink":
		if err := b.verifier.Unlink(i.Member.User.ID); err != nil {
			b.log.Error("unlink failed", zap.String("user", i.Member.User.ID), zap.Error(err))
			b.replyText(s, i, svcUnavailable)
			return
		}
		b.replyEmbed(s, i, discord.QuickEmbed("Unlinked",
			"Successfully unlinked email from your discord account.", discord.ColorYellow))

	case "update":
		if i.Member.Permissions&discordgo.PermissionAdministrator == 0 {
			b.replyText(s, i, "You do not have permission to use this command.")
			return
		}
		email, ok := optString(opts, "email")
		if !ok {
			b.log.Error("verify update missing email option", zap.String("interaction", i.ID))
			return
		}
		upd := verify.UserUpdate{Email: email}
		if v, ok := optBool(opts, "paid"); ok {
			upd.PaymentStatus = &v
		}
		if v, ok := optBool(opts, "community"); ok {
			upd.InCommunity = &v
		}
		if v, ok := optString(opts, "first_name"); ok {
			upd.FirstName = &v
		}
		if v, ok := optString(opts, "last_name"); ok {
			upd.LastName = &v
		}
		if err := b.verifier.UpsertUser(upd); err != nil {
			b.replyText(s, i, fmt.Sprintf("Update failed: %v", err))
			return
		}
		b.replyEmbed(s, i, discord.QuickEmbed("Updated",
			fmt.Sprintf("Record for `%s` saved.", email), discord.ColorYellow))
	}
}

func (b *Bot) handleDB(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.storeReady {
		b.replyText(s, i, "Database is down.")
		return
	}
	sub, _ := subcommand(data)
	if sub != "refresh" {
		return
	}
	// The full-guild sweep outlives the 3s interaction window: defer, sweep,
	// then follow up.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.log.Error("defer failed", zap.Error(err))
		return
	}
	b.roles.CheckAll()
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: "Refreshed!",
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		b.log.Warn("refresh follow-up failed", zap.Error(err))
	}
}

// Replies are ephemeral: visible only to the invoking user.

func (b *Bot) replyText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Warn("interaction reply failed", zap.Error(err))
	}
}

func (b *Bot) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Warn("interaction reply failed", zap.Error(err))
	}
}

func subcommand(data discordgo.ApplicationCommandInteractionData) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(data.Options) == 0 {
		return "", nil
	}
	sub := data.Options[0]
	return sub.Name, sub.Options
}

func optString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	for _, o := range opts {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionString {
			return o.StringValue(), true
		}
	}
	return "", false
}

func optBool(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (bool, bool) {
	for _, o := range opts {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionBoolean {
			return o.BoolValue(), true
		}
	}
	return false, false
}
