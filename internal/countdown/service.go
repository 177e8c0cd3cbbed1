package countdown

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/gryphrace/paddock/internal/discord"
)

const (
	// A live message older than this is replaced instead of edited.
	replaceAfterAge = 24 * time.Hour
	// Channel traffic after which the message has likely scrolled past the
	// platform's 100-message fetch window and must be resent. The old
	// implementation computed max(100, 3) here, which is always 100.
	replaceAfterMessages = 100
	// Expired entries stay visible (marked done) for this long before the
	// purge removes them.
	retention = 24 * time.Hour

	// DefaultEventLink backs entries added without a URL.
	DefaultEventLink = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
)

// ErrPastDate is returned when an entry's expiration is not in the future.
var ErrPastDate = errors.New("countdown: expiration must be in the future")

// Service owns the countdown lifecycle: entry CRUD, the per-channel live
// summary message, and the scheduled refresh.
type Service struct {
	store Store
	msgr  discord.Messenger
	log   *zap.Logger
	now   func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewService(store Store, msgr discord.Messenger, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		msgr:     msgr,
		log:      log,
		now:      time.Now,
		inFlight: make(map[string]bool),
	}
}

// Add validates and stores a new entry. The link defaults when empty.
func (s *Service) Add(channelID, title, link string, expiration time.Time) error {
	if !expiration.After(s.now()) {
		return ErrPastDate
	}
	if link == "" {
		link = DefaultEventLink
	}
	return s.store.AddEntry(channelID, Entry{Title: title, Link: link, Expiration: expiration})
}

// Remove deletes the entry matching (channel, title) and reports whether
// one existed. Existing entries are untouched on a miss.
func (s *Service) Remove(channelID, title string) (bool, error) {
	return s.store.RemoveEntry(channelID, title)
}

// Entry returns a single entry by (channel, title).
func (s *Service) Entry(channelID, title string) (Entry, bool, error) {
	ch, err := s.store.Get(channelID)
	if err != nil {
		if errors.Is(err, ErrNoChannel) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	for _, e := range ch.Entries {
		if e.Title == title {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Tracked reports whether the channel has countdown state.
func (s *Service) Tracked(channelID string) (bool, error) {
	_, err := s.store.Get(channelID)
	if errors.Is(err, ErrNoChannel) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Channels lists all tracked channels.
func (s *Service) Channels() ([]*Channel, error) {
	return s.store.List()
}

// Render recomputes and publishes the summary message for a channel.
// At most one render runs per channel; a request arriving while one is in
// flight is dropped, not queued; the next scheduled tick catches up.
func (s *Service) Render(channelID string, forceNew bool) error {
	s.mu.Lock()
	if s.inFlight[channelID] {
		s.mu.Unlock()
		return nil
	}
	s.inFlight[channelID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, channelID)
		s.mu.Unlock()
	}()

	ch, err := s.store.Get(channelID)
	if err != nil {
		if errors.Is(err, ErrNoChannel) {
			return nil
		}
		return err
	}

	if len(ch.Entries) == 0 {
		// Nothing left to count down: drop the message and the record.
		if ch.MessageID != "" {
			if err := s.msgr.DeleteMessage(channelID, ch.MessageID); err != nil {
				s.log.Warn("failed to delete empty countdown message",
					zap.String("channel", channelID), zap.Error(err))
			}
		}
		return s.store.DeleteChannel(channelID)
	}

	embed := s.buildEmbed(ch)

	if ch.MessageID == "" {
		return s.sendNew(channelID, embed)
	}

	msg, err := s.msgr.FetchMessage(channelID, ch.MessageID)
	if err != nil {
		// Deleted, inaccessible, or rate limited: degrade to a new send.
		s.log.Warn("countdown message fetch failed, sending new",
			zap.String("channel", channelID), zap.String("message", ch.MessageID), zap.Error(err))
		return s.sendNew(channelID, embed)
	}

	replace := forceNew ||
		s.now().Sub(msg.Timestamp) > replaceAfterAge ||
		ch.MessagesSince >= replaceAfterMessages
	if replace {
		if err := s.msgr.DeleteMessage(channelID, msg.ID); err != nil {
			s.log.Warn("failed to delete stale countdown message",
				zap.String("channel", channelID), zap.Error(err))
		}
		return s.sendNew(channelID, embed)
	}

	if _, err := s.msgr.EditEmbed(channelID, msg.ID, embed); err != nil {
		s.log.Warn("countdown edit failed, sending new",
			zap.String("channel", channelID), zap.Error(err))
		return s.sendNew(channelID, embed)
	}
	return nil
}

func (s *Service) sendNew(channelID string, embed *discordgo.MessageEmbed) error {
	msg, err := s.msgr.SendEmbed(channelID, embed)
	if err != nil {
		return fmt.Errorf("send countdown message: %w", err)
	}
	return s.store.SetMessageID(channelID, msg.ID)
}

func (s *Service) buildEmbed(ch *Channel) *discordgo.MessageEmbed {
	now := s.now()

	entries := make([]Entry, len(ch.Entries))
	copy(entries, ch.Entries)
	// Soonest event first.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Expiration.Before(entries[j].Expiration)
	})

	fields := make([]*discordgo.MessageEmbedField, 0, len(entries))
	for _, e := range entries {
		dateStr := e.Expiration.Format("January 2, 2006")
		value := fmt.Sprintf("[%s](%s)\nDone.", dateStr, e.Link)
		if remaining := e.Expiration.Sub(now); remaining > 0 {
			value = fmt.Sprintf("[%s](%s)\nTime remaining: %s", dateStr, e.Link, formatRemaining(remaining))
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: e.Title, Value: value})
	}

	return &discordgo.MessageEmbed{
		Color:     discord.ColorYellow,
		Fields:    fields,
		Timestamp: now.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Off to the races!"},
	}
}

// RefreshAll purges long-expired entries and re-renders every tracked
// channel. One channel's failure does not stop the others.
func (s *Service) RefreshAll() {
	cutoff := s.now().Add(-retention)
	if n, err := s.store.PurgeExpired(cutoff); err != nil {
		s.log.Error("countdown purge failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("purged expired countdown entries", zap.Int("count", n))
	}

	chans, err := s.store.List()
	if err != nil {
		s.log.Error("countdown refresh skipped, store unavailable", zap.Error(err))
		return
	}
	for _, ch := range chans {
		if err := s.Render(ch.ID, false); err != nil {
			s.log.Error("countdown render failed",
				zap.String("channel", ch.ID), zap.Error(err))
		}
	}
}

// OnChannelMessage records channel traffic. created is false for deletions,
// which decrement (floored at zero). Crossing the replacement threshold
// forces a fresh message so the summary stays inside the fetch window.
func (s *Service) OnChannelMessage(channelID string, created bool) {
	delta := 1
	if !created {
		delta = -1
	}
	n, err := s.store.BumpMessagesSince(channelID, delta)
	if err != nil {
		if !errors.Is(err, ErrNoChannel) {
			s.log.Warn("failed to record channel traffic",
				zap.String("channel", channelID), zap.Error(err))
		}
		return
	}
	if created && n >= replaceAfterMessages {
		if err := s.Render(channelID, true); err != nil {
			s.log.Error("forced countdown render failed",
				zap.String("channel", channelID), zap.Error(err))
		}
	}
}
