// Package bot owns the discord session and routes gateway events to the
// countdown, verification and role services.
package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/gryphrace/paddock/internal/countdown"
	"github.com/gryphrace/paddock/internal/roles"
	"github.com/gryphrace/paddock/internal/verify"
)

type Bot struct {
	session *discordgo.Session
	guildID string
	log     *zap.Logger

	countdowns *countdown.Service
	verifier   *verify.Service
	roles      *roles.Service
	// False when the persistent store failed to come up; commands then
	// reply with a fixed unavailability notice instead of crashing.
	storeReady bool
}

// NewSession builds the gateway session for the given bot token. The
// session is shared between the event handlers here and the REST-side
// discord.Client adapter.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	return s, nil
}

func New(s *discordgo.Session, guildID string, cd *countdown.Service, vf *verify.Service, rl *roles.Service, storeReady bool, log *zap.Logger) *Bot {
	b := &Bot{
		session:    s,
		guildID:    guildID,
		log:        log,
		countdowns: cd,
		verifier:   vf,
		roles:      rl,
		storeReady: storeReady,
	}
	s.AddHandler(b.onInteractionCreate)
	s.AddHandler(b.onMessageCreate)
	s.AddHandler(b.onMessageDelete)
	return b
}

func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	b.log.Info("connected to discord", zap.String("guild", b.guildID))
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}
