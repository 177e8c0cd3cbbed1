package countdown

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// FileStore is the legacy single-JSON-document store. The on-disk layout is
// fixed: channel id -> { message_id, events: { name -> { event_date,
// event_link } } }. Traffic counters were never persisted in this format and
// live in memory only, resetting on restart.
type FileStore struct {
	mu    sync.Mutex
	path  string
	doc   map[string]*fileChannel
	since map[string]int
}

type fileChannel struct {
	MessageID string               `json:"message_id"`
	Events    map[string]fileEvent `json:"events"`
}

type fileEvent struct {
	EventDate time.Time `json:"event_date"`
	EventLink string    `json:"event_link"`
}

// OpenFileStore loads the document at path, creating an empty one when the
// file does not exist.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		doc:   make(map[string]*fileChannel),
		since: make(map[string]int),
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, s.flushLocked()
		}
		return nil, fmt.Errorf("read countdown file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("parse countdown file: %w", err)
	}
	for _, ch := range s.doc {
		if ch.Events == nil {
			ch.Events = make(map[string]fileEvent)
		}
	}
	return s, nil
}

func (s *FileStore) flushLocked() error {
	raw, err := json.Marshal(s.doc)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}

func (s *FileStore) Get(channelID string) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.doc[channelID]
	if !ok {
		return nil, ErrNoChannel
	}
	return s.toChannelLocked(channelID, ch), nil
}

func (s *FileStore) List() ([]*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.doc))
	for id := range s.doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Channel, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.toChannelLocked(id, s.doc[id]))
	}
	return out, nil
}

func (s *FileStore) toChannelLocked(id string, ch *fileChannel) *Channel {
	out := &Channel{ID: id, MessageID: ch.MessageID, MessagesSince: s.since[id]}
	names := make([]string, 0, len(ch.Events))
	for name := range ch.Events {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return ch.Events[names[i]].EventDate.Before(ch.Events[names[j]].EventDate)
	})
	for _, name := range names {
		ev := ch.Events[name]
		out.Entries = append(out.Entries, Entry{Title: name, Link: ev.EventLink, Expiration: ev.EventDate})
	}
	return out
}

func (s *FileStore) AddEntry(channelID string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.doc[channelID]
	if !ok {
		ch = &fileChannel{Events: make(map[string]fileEvent)}
		s.doc[channelID] = ch
	}
	ch.Events[e.Title] = fileEvent{EventDate: e.Expiration, EventLink: e.Link}
	return s.flushLocked()
}

func (s *FileStore) RemoveEntry(channelID, title string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.doc[channelID]
	if !ok {
		return false, nil
	}
	if _, ok := ch.Events[title]; !ok {
		return false, nil
	}
	delete(ch.Events, title)
	return true, s.flushLocked()
}

func (s *FileStore) SetMessageID(channelID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.doc[channelID]
	if !ok {
		return ErrNoChannel
	}
	ch.MessageID = messageID
	if messageID != "" {
		s.since[channelID] = 0
	}
	return s.flushLocked()
}

func (s *FileStore) BumpMessagesSince(channelID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc[channelID]; !ok {
		return 0, ErrNoChannel
	}
	n := s.since[channelID] + delta
	if n < 0 {
		n = 0
	}
	s.since[channelID] = n
	return n, nil
}

func (s *FileStore) ResetMessagesSince(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.since[channelID] = 0
	return nil
}

func (s *FileStore) DeleteChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc, channelID)
	delete(s.since, channelID)
	return s.flushLocked()
}

func (s *FileStore) PurgeExpired(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for _, ch := range s.doc {
		for name, ev := range ch.Events {
			if ev.EventDate.Before(before) {
				delete(ch.Events, name)
				purged++
			}
		}
	}
	if purged == 0 {
		return 0, nil
	}
	return purged, s.flushLocked()
}
