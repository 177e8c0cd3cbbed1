package countdown

import (
	"errors"
	"time"
)

// ErrNoChannel is returned by store lookups for channels with no countdown state.
var ErrNoChannel = errors.New("countdown: channel not tracked")

// Entry is one named future event in a channel.
type Entry struct {
	Title      string
	Link       string
	Expiration time.Time
}

// Channel is the per-channel countdown state: the tracked summary message
// and the active entries. MessageID is empty until a message has been sent.
type Channel struct {
	ID            string
	MessageID     string
	MessagesSince int
	Entries       []Entry
}

// Store is the narrow persistence contract shared by the database-backed
// and the legacy JSON-file implementations.
type Store interface {
	// Get returns the channel state, ErrNoChannel when untracked.
	Get(channelID string) (*Channel, error)
	List() ([]*Channel, error)
	// AddEntry creates the channel record when absent, then upserts the
	// entry by (channel, title).
	AddEntry(channelID string, e Entry) error
	// RemoveEntry reports whether a matching entry existed.
	RemoveEntry(channelID, title string) (bool, error)
	// SetMessageID records the live message for a channel and resets the
	// traffic counter; an empty id clears the tracked message.
	SetMessageID(channelID, messageID string) error
	// BumpMessagesSince adjusts the traffic counter by delta, flooring at
	// zero, and returns the new value. ErrNoChannel when untracked.
	BumpMessagesSince(channelID string, delta int) (int, error)
	ResetMessagesSince(channelID string) error
	DeleteChannel(channelID string) error
	// PurgeExpired removes entries whose expiration predates the cutoff
	// and returns how many were removed.
	PurgeExpired(before time.Time) (int, error)
}
