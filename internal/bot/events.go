package bot

import (
	"github.com/bwmarrin/discordgo"
)

// Guild traffic feeds the countdown messages-since heuristic; direct
// messages feed the verification state machine.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	if m.GuildID == "" {
		if m.Author.Bot {
			return
		}
		go b.verifier.HandleDirectMessage(m.Author.ID, m.Content)
		return
	}
	if m.GuildID != b.guildID {
		return
	}
	go b.countdowns.OnChannelMessage(m.ChannelID, true)
}

func (b *Bot) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	if m.GuildID != b.guildID {
		return
	}
	go b.countdowns.OnChannelMessage(m.ChannelID, false)
}
