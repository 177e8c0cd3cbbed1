package models

import "time"

// User is the permanent membership record, keyed by email. DiscordID is
// nullable and unique: a record exists for every club member we know about,
// linked or not.
type User struct {
	Email     string  `gorm:"primaryKey"`
	DiscordID *string `gorm:"uniqueIndex"`

	PaymentStatus bool `gorm:"not null;default:false"`
	// Whether the member shows up on the university club platform roster.
	InCommunity bool `gorm:"not null;default:false"`

	FirstName string
	LastName  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VerifyingUser is a pending verification session: one per discord user,
// holding the candidate email and the one-time code mailed to it.
type VerifyingUser struct {
	DiscordID string `gorm:"primaryKey"`
	Email     string `gorm:"not null"`
	Code      int    `gorm:"column:verification_code;not null"`
	CreatedAt time.Time
}

// CountdownChannel tracks the single live countdown message per channel.
// MessageID is nil until the first render sends one. MessagesSince counts
// channel traffic observed since that message was sent.
type CountdownChannel struct {
	ChannelID     string `gorm:"primaryKey"`
	MessageID     *string
	MessagesSince int `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CountdownEntry is one named future event in a channel's summary message.
type CountdownEntry struct {
	ID         uint   `gorm:"primaryKey"`
	ChannelID  string `gorm:"index;not null"`
	Title      string `gorm:"not null"`
	Link       string
	Expiration time.Time `gorm:"not null"`
	CreatedAt  time.Time
}

// FeatureFlag is a named boolean switch evaluated at runtime.
type FeatureFlag struct {
	Name      string `gorm:"primaryKey"`
	Enabled   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
