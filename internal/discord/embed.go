package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Embed colors used across the bot's replies.
const (
	ColorYellow = 0xFFC72A
	ColorRed    = 0xD0342C
)

// QuickEmbed builds a small titled embed for status replies.
func QuickEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}
