package countdown

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestFileStore_ReadsLegacyLayout loads a document in the historical
// on-disk shape and checks the mapping into store types.
func TestFileStore_ReadsLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	doc := `{
		"111": {
			"message_id": "222",
			"events": {
				"Race Day": {"event_date": "2026-06-01T00:00:00Z", "event_link": "https://example.com/race"}
			}
		}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	ch, err := s.Get("111")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ch.MessageID != "222" {
		t.Errorf("MessageID = %q, want 222", ch.MessageID)
	}
	if len(ch.Entries) != 1 || ch.Entries[0].Title != "Race Day" {
		t.Fatalf("entries = %+v", ch.Entries)
	}
	if ch.Entries[0].Link != "https://example.com/race" {
		t.Errorf("link = %q", ch.Entries[0].Link)
	}
	want := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if !ch.Entries[0].Expiration.Equal(want) {
		t.Errorf("expiration = %v, want %v", ch.Entries[0].Expiration, want)
	}
}

// TestFileStore_PersistsLegacyLayout round-trips mutations through a fresh
// open and checks the written JSON keeps the legacy field names.
func TestFileStore_PersistsLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := s.AddEntry("111", Entry{Title: "Race Day", Link: "https://example.com", Expiration: exp}); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := s.SetMessageID("111", "m9"); err != nil {
		t.Fatalf("SetMessageID: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("parse written file: %v", err)
	}
	if _, ok := onDisk["111"]["message_id"]; !ok {
		t.Error("written document missing message_id key")
	}
	if _, ok := onDisk["111"]["events"]; !ok {
		t.Error("written document missing events key")
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ch, err := reopened.Get("111")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if ch.MessageID != "m9" || len(ch.Entries) != 1 {
		t.Errorf("reopened state = %+v", ch)
	}
}

func TestFileStore_CountersAreInMemoryOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	s, _ := OpenFileStore(path)
	s.AddEntry("111", Entry{Title: "x", Expiration: time.Now().Add(time.Hour)})

	if n, err := s.BumpMessagesSince("111", 5); err != nil || n != 5 {
		t.Fatalf("Bump = (%d, %v), want (5, nil)", n, err)
	}

	reopened, _ := OpenFileStore(path)
	ch, err := reopened.Get("111")
	if err != nil {
		t.Fatal(err)
	}
	if ch.MessagesSince != 0 {
		t.Errorf("counter persisted across restart: %d", ch.MessagesSince)
	}
}

func TestFileStore_PurgeExpired(t *testing.T) {
	s, _ := OpenFileStore(filepath.Join(t.TempDir(), "messages.json"))
	now := time.Now()
	s.AddEntry("111", Entry{Title: "old", Expiration: now.Add(-48 * time.Hour)})
	s.AddEntry("111", Entry{Title: "new", Expiration: now.Add(48 * time.Hour)})

	n, err := s.PurgeExpired(now.Add(-24 * time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = (%d, %v), want (1, nil)", n, err)
	}
	ch, _ := s.Get("111")
	if len(ch.Entries) != 1 || ch.Entries[0].Title != "new" {
		t.Errorf("entries after purge = %+v", ch.Entries)
	}
}

func TestFileStore_MissingChannel(t *testing.T) {
	s, _ := OpenFileStore(filepath.Join(t.TempDir(), "messages.json"))
	if _, err := s.Get("absent"); !errors.Is(err, ErrNoChannel) {
		t.Errorf("Get absent: %v, want ErrNoChannel", err)
	}
	if _, err := s.BumpMessagesSince("absent", 1); !errors.Is(err, ErrNoChannel) {
		t.Errorf("Bump absent: %v, want ErrNoChannel", err)
	}
	if removed, err := s.RemoveEntry("absent", "x"); err != nil || removed {
		t.Errorf("RemoveEntry absent = (%v, %v)", removed, err)
	}
}
