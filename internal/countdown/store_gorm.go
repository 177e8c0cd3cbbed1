package countdown

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gryphrace/paddock/internal/models"
)

// GormStore is the canonical database-backed countdown store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ErrStoreDown is returned when the backing database never came up.
var ErrStoreDown = errors.New("countdown: store unavailable")

func (s *GormStore) Get(channelID string) (*Channel, error) {
	if s.db == nil {
		return nil, ErrStoreDown
	}
	var ch models.CountdownChannel
	if err := s.db.Where("channel_id = ?", channelID).First(&ch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoChannel
		}
		return nil, err
	}
	return s.load(&ch)
}

func (s *GormStore) List() ([]*Channel, error) {
	if s.db == nil {
		return nil, ErrStoreDown
	}
	var chans []models.CountdownChannel
	if err := s.db.Find(&chans).Error; err != nil {
		return nil, err
	}
	out := make([]*Channel, 0, len(chans))
	for i := range chans {
		ch, err := s.load(&chans[i])
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func (s *GormStore) load(ch *models.CountdownChannel) (*Channel, error) {
	var rows []models.CountdownEntry
	if err := s.db.Where("channel_id = ?", ch.ChannelID).
		Order("expiration asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := &Channel{ID: ch.ChannelID, MessagesSince: ch.MessagesSince}
	if ch.MessageID != nil {
		out.MessageID = *ch.MessageID
	}
	for _, r := range rows {
		out.Entries = append(out.Entries, Entry{Title: r.Title, Link: r.Link, Expiration: r.Expiration})
	}
	return out, nil
}

func (s *GormStore) AddEntry(channelID string, e Entry) error {
	if s.db == nil {
		return ErrStoreDown
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", channelID).
			FirstOrCreate(&models.CountdownChannel{ChannelID: channelID}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "title"}},
			DoUpdates: clause.AssignmentColumns([]string{"link", "expiration"}),
		}).Create(&models.CountdownEntry{
			ChannelID:  channelID,
			Title:      e.Title,
			Link:       e.Link,
			Expiration: e.Expiration,
		}).Error
	})
}

func (s *GormStore) RemoveEntry(channelID, title string) (bool, error) {
	if s.db == nil {
		return false, ErrStoreDown
	}
	res := s.db.Where("channel_id = ? AND title = ?", channelID, title).
		Delete(&models.CountdownEntry{})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) SetMessageID(channelID, messageID string) error {
	if s.db == nil {
		return ErrStoreDown
	}
	updates := map[string]any{"message_id": nil}
	if messageID != "" {
		updates["message_id"] = messageID
		updates["messages_since"] = 0
	}
	return s.db.Model(&models.CountdownChannel{}).
		Where("channel_id = ?", channelID).Updates(updates).Error
}

func (s *GormStore) BumpMessagesSince(channelID string, delta int) (int, error) {
	if s.db == nil {
		return 0, ErrStoreDown
	}
	var count int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ch models.CountdownChannel
		if err := tx.Where("channel_id = ?", channelID).First(&ch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoChannel
			}
			return err
		}
		ch.MessagesSince += delta
		if ch.MessagesSince < 0 {
			ch.MessagesSince = 0
		}
		count = ch.MessagesSince
		return tx.Model(&models.CountdownChannel{}).
			Where("channel_id = ?", channelID).
			Update("messages_since", ch.MessagesSince).Error
	})
	return count, err
}

func (s *GormStore) ResetMessagesSince(channelID string) error {
	if s.db == nil {
		return ErrStoreDown
	}
	return s.db.Model(&models.CountdownChannel{}).
		Where("channel_id = ?", channelID).Update("messages_since", 0).Error
}

func (s *GormStore) DeleteChannel(channelID string) error {
	if s.db == nil {
		return ErrStoreDown
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", channelID).Delete(&models.CountdownEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("channel_id = ?", channelID).Delete(&models.CountdownChannel{}).Error
	})
}

func (s *GormStore) PurgeExpired(before time.Time) (int, error) {
	if s.db == nil {
		return 0, ErrStoreDown
	}
	res := s.db.Where("expiration < ?", before).Delete(&models.CountdownEntry{})
	return int(res.RowsAffected), res.Error
}
