// Package discord wraps the gateway/REST client behind narrow interfaces so
// the countdown, verification and role services can be exercised against
// fakes in tests.
package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Message is the slice of a platform message the services care about.
type Message struct {
	ID        string
	ChannelID string
	Timestamp time.Time
}

// Member is a guild member with the role set attached.
type Member struct {
	UserID   string
	Username string
	Bot      bool
	RoleIDs  []string
}

// HasRole reports whether the member currently holds the given role.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Messenger covers channel message manipulation and direct messages.
type Messenger interface {
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) (Message, error)
	EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) (Message, error)
	FetchMessage(channelID, messageID string) (Message, error)
	DeleteMessage(channelID, messageID string) error
	// DirectEmbed DMs a user, creating the DM channel as needed.
	DirectEmbed(userID string, embeds ...*discordgo.MessageEmbed) error
}

// Directory covers guild membership and role management.
type Directory interface {
	Members() ([]Member, error)
	Member(userID string) (Member, bool, error)
	RoleIDByName(name string) (string, error)
	AddRole(userID, roleID string) error
	RemoveRole(userID, roleID string) error
}
