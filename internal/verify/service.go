// Package verify implements the email-based member verification flow: a
// direct-message state machine that proves mailbox possession with a
// one-time code before the Verified role is granted.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gryphrace/paddock/internal/discord"
	"github.com/gryphrace/paddock/internal/mailer"
	"github.com/gryphrace/paddock/internal/models"
)

const (
	// Max direct messages per user per rate window.
	rateLimit  = 15
	rateWindow = 60 * time.Second
	// Pending sessions older than this are swept.
	sessionTTL = time.Hour
)

// Service drives verification sessions. Reconcile is called with a discord
// user id after any change that affects role eligibility.
type Service struct {
	db        *gorm.DB
	mail      mailer.Provider
	msgr      discord.Messenger
	dir       discord.Directory
	log       *zap.Logger
	rates     *rateLimiter
	now       func() time.Time
	Reconcile func(userID string)
}

func NewService(db *gorm.DB, mail mailer.Provider, msgr discord.Messenger, dir discord.Directory, log *zap.Logger) *Service {
	return &Service{
		db:    db,
		mail:  mail,
		msgr:  msgr,
		dir:   dir,
		log:   log,
		rates: newRateLimiter(rateLimit),
		now:   time.Now,
	}
}

// Start launches the fixed-window rate limit reset until stop is closed.
func (s *Service) Start(stop <-chan struct{}) {
	s.rates.startResetLoop(rateWindow, stop)
}

// normEmail lowercases and validates a candidate address. Bare addresses
// only; anything with a display name or invalid grammar is rejected.
func normEmail(raw string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", false
	}
	return e, true
}

// emailLinked reports whether the address is already linked to a discord
// account.
func (s *Service) emailLinked(email string) (bool, error) {
	var u models.User
	err := s.db.Where("email = ? AND discord_id IS NOT NULL", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HandleDirectMessage processes one inbound DM through the state machine.
// Every branch replies (or deliberately stays silent) and returns; errors
// are logged here so one bad message never breaks the handler chain.
func (s *Service) HandleDirectMessage(userID, content string) {
	if s.db == nil {
		return
	}
	if !s.rates.allow(userID) {
		return
	}
	if _, isMember, err := s.dir.Member(userID); err != nil || !isMember {
		if err != nil {
			s.log.Warn("membership lookup failed", zap.String("user", userID), zap.Error(err))
		}
		return
	}

	var session models.VerifyingUser
	err := s.db.Where("discord_id = ?", userID).First(&session).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.startSession(userID, content)
	case err != nil:
		s.log.Error("verification session lookup failed", zap.String("user", userID), zap.Error(err))
		s.dm(userID, discord.QuickEmbed("Service unavailable",
			"Verification is temporarily unavailable. Please try again later.", discord.ColorRed))
	default:
		s.continueSession(&session, content)
	}
}

func (s *Service) startSession(userID, content string) {
	email, ok := normEmail(content)
	if !ok {
		s.dm(userID, discord.QuickEmbed("Invalid email address",
			fmt.Sprintf("`%s` is not a valid email address.", content), discord.ColorRed))
		return
	}

	linked, err := s.emailLinked(email)
	if err != nil {
		s.log.Error("linked-email lookup failed", zap.String("email", email), zap.Error(err))
		return
	}
	if linked {
		s.dm(userID, discord.QuickEmbed("Email exists",
			"This email is already registered.", discord.ColorRed))
		return
	}

	code := generateCode()
	body, err := mailer.VerificationBody(displayCode(code))
	if err != nil {
		s.log.Error("verification email render failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := s.mail.Send(ctx, email, "Verification Code", body); err != nil {
		s.log.Error("verification email send failed", zap.String("email", email), zap.Error(err))
		s.dm(userID, discord.QuickEmbed("Error",
			"Seems like our mailing service is down currently. Please be patient as we try to fix it.",
			discord.ColorYellow))
		return
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "verification_code", "created_at"}),
	}).Create(&models.VerifyingUser{
		DiscordID: userID,
		Email:     email,
		Code:      code,
		CreatedAt: s.now(),
	}).Error
	if err != nil {
		s.log.Error("failed to persist verification session", zap.String("user", userID), zap.Error(err))
		return
	}

	s.dm(userID, discord.QuickEmbed("Sent!",
		fmt.Sprintf("We have sent the email address an **%d-digit** code. Please message the bot the code to link the account.", CodeLength),
		discord.ColorYellow))
}

func (s *Service) continueSession(session *models.VerifyingUser, content string) {
	trimmed := strings.TrimSpace(content)

	if code, err := strconv.Atoi(trimmed); err == nil && code == session.Code {
		s.confirm(session)
		return
	}

	if strings.EqualFold(trimmed, "cancel") {
		if err := s.deleteSession(session.DiscordID); err != nil {
			s.log.Error("failed to delete verification session", zap.Error(err))
			return
		}
		s.dm(session.DiscordID, discord.QuickEmbed("Cancelled!",
			"Verification process has been cancelled.", discord.ColorYellow))
		return
	}

	s.dm(session.DiscordID, discord.QuickEmbed("Invalid code",
		"The code you have entered is not the correct code. Type `cancel` to stop the verification process.",
		discord.ColorYellow))
}

// confirm links the email to the discord account. The email may have been
// linked elsewhere mid-session, so the check runs again here.
func (s *Service) confirm(session *models.VerifyingUser) {
	linked, err := s.emailLinked(session.Email)
	if err != nil {
		s.log.Error("linked-email lookup failed", zap.String("email", session.Email), zap.Error(err))
		return
	}
	if linked {
		s.dm(session.DiscordID, discord.QuickEmbed("Email exists",
			"This email is already registered.", discord.ColorRed))
		return
	}

	userID := session.DiscordID
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// The discord id is unique across users: detach it from any other
		// record before linking.
		if err := tx.Model(&models.User{}).
			Where("discord_id = ? AND email <> ?", userID, session.Email).
			Update("discord_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"discord_id"}),
		}).Create(&models.User{Email: session.Email, DiscordID: &userID}).Error; err != nil {
			return err
		}
		return tx.Where("discord_id = ?", userID).Delete(&models.VerifyingUser{}).Error
	})
	if err != nil {
		s.log.Error("failed to link account", zap.String("user", userID), zap.Error(err))
		return
	}

	if s.Reconcile != nil {
		s.Reconcile(userID)
	}
	s.dm(userID, discord.QuickEmbed("Linked!",
		"You now have successfully linked your discord and email account.", discord.ColorYellow))
}

// Unlink clears the discord id from the caller's user record and
// re-evaluates their role.
func (s *Service) Unlink(userID string) error {
	if err := s.db.Model(&models.User{}).
		Where("discord_id = ?", userID).
		Update("discord_id", nil).Error; err != nil {
		return err
	}
	if s.Reconcile != nil {
		s.Reconcile(userID)
	}
	return nil
}

// UserUpdate is an administrative upsert of the permanent record; nil
// fields are left untouched on an existing record.
type UserUpdate struct {
	Email         string
	PaymentStatus *bool
	InCommunity   *bool
	FirstName     *string
	LastName      *string
}

func (s *Service) UpsertUser(u UserUpdate) error {
	email, ok := normEmail(u.Email)
	if !ok {
		return fmt.Errorf("invalid email address %q", u.Email)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var rec models.User
		err := tx.Where("email = ?", email).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = models.User{Email: email}
		} else if err != nil {
			return err
		}
		if u.PaymentStatus != nil {
			rec.PaymentStatus = *u.PaymentStatus
		}
		if u.InCommunity != nil {
			rec.InCommunity = *u.InCommunity
		}
		if u.FirstName != nil {
			rec.FirstName = *u.FirstName
		}
		if u.LastName != nil {
			rec.LastName = *u.LastName
		}
		return tx.Save(&rec).Error
	})
}

func (s *Service) deleteSession(userID string) error {
	return s.db.Where("discord_id = ?", userID).Delete(&models.VerifyingUser{}).Error
}

// SweepExpired purges pending sessions older than an hour, independent of
// user activity.
func (s *Service) SweepExpired() {
	cutoff := s.now().Add(-sessionTTL)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.VerifyingUser{})
	if res.Error != nil {
		s.log.Error("session sweep failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		s.log.Info("swept expired verification sessions", zap.Int64("count", res.RowsAffected))
	}
}

func (s *Service) dm(userID string, embeds ...*discordgo.MessageEmbed) {
	if err := s.msgr.DirectEmbed(userID, embeds...); err != nil {
		s.log.Warn("direct message failed", zap.String("user", userID), zap.Error(err))
	}
}
