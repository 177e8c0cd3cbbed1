package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Client implements Messenger and Directory over a discordgo session scoped
// to a single guild.
type Client struct {
	s       *discordgo.Session
	guildID string
}

func NewClient(s *discordgo.Session, guildID string) *Client {
	return &Client{s: s, guildID: guildID}
}

func (c *Client) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (Message, error) {
	m, err := c.s.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return Message{}, err
	}
	return fromMessage(m), nil
}

func (c *Client) EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) (Message, error) {
	m, err := c.s.ChannelMessageEditEmbed(channelID, messageID, embed)
	if err != nil {
		return Message{}, err
	}
	return fromMessage(m), nil
}

func (c *Client) FetchMessage(channelID, messageID string) (Message, error) {
	m, err := c.s.ChannelMessage(channelID, messageID)
	if err != nil {
		return Message{}, err
	}
	return fromMessage(m), nil
}

func (c *Client) DeleteMessage(channelID, messageID string) error {
	return c.s.ChannelMessageDelete(channelID, messageID)
}

func (c *Client) DirectEmbed(userID string, embeds ...*discordgo.MessageEmbed) error {
	ch, err := c.s.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("create dm channel: %w", err)
	}
	for _, e := range embeds {
		if _, err := c.s.ChannelMessageSendEmbed(ch.ID, e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Members() ([]Member, error) {
	var out []Member
	after := ""
	for {
		batch, err := c.s.GuildMembers(c.guildID, after, 1000)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return out, nil
		}
		for _, gm := range batch {
			out = append(out, fromGuildMember(gm))
			after = gm.User.ID
		}
		if len(batch) < 1000 {
			return out, nil
		}
	}
}

func (c *Client) Member(userID string) (Member, bool, error) {
	gm, err := c.s.GuildMember(c.guildID, userID)
	if err != nil {
		if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil && restErr.Response.StatusCode == 404 {
			return Member{}, false, nil
		}
		return Member{}, false, err
	}
	return fromGuildMember(gm), true, nil
}

func (c *Client) RoleIDByName(name string) (string, error) {
	roles, err := c.s.GuildRoles(c.guildID)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if r.Name == name {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("role %q not found in guild %s", name, c.guildID)
}

func (c *Client) AddRole(userID, roleID string) error {
	return c.s.GuildMemberRoleAdd(c.guildID, userID, roleID)
}

func (c *Client) RemoveRole(userID, roleID string) error {
	return c.s.GuildMemberRoleRemove(c.guildID, userID, roleID)
}

func fromMessage(m *discordgo.Message) Message {
	ts := m.Timestamp
	if ts.IsZero() {
		// Edited messages can come back without a creation timestamp;
		// the snowflake always carries one.
		if st, err := discordgo.SnowflakeTimestamp(m.ID); err == nil {
			ts = st
		} else {
			ts = time.Now()
		}
	}
	return Message{ID: m.ID, ChannelID: m.ChannelID, Timestamp: ts}
}

func fromGuildMember(gm *discordgo.Member) Member {
	m := Member{RoleIDs: gm.Roles}
	if gm.User != nil {
		m.UserID = gm.User.ID
		m.Username = gm.User.Username
		m.Bot = gm.User.Bot
	}
	return m
}
