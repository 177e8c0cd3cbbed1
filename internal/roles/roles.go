// Package roles aligns each member's Verified role with their backing
// membership record.
package roles

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gryphrace/paddock/internal/discord"
	"github.com/gryphrace/paddock/internal/fflags"
	"github.com/gryphrace/paddock/internal/models"
)

// Status is a bitmask of eligibility deficiencies. Zero means fully eligible.
type Status int

const (
	StatusOK        Status = 0
	NoEmail         Status = 1 << 0
	NoDiscord       Status = 1 << 1
	NoCommunity     Status = 1 << 2
	NoPayment       Status = 1 << 3
	NoDatabaseEntry Status = 1 << 4
)

// Evaluate computes the deficiency mask for a record. A nil record means
// the member is entirely unknown to us.
func Evaluate(u *models.User) Status {
	if u == nil {
		return NoDatabaseEntry
	}
	var s Status
	if u.Email == "" {
		s |= NoEmail
	}
	if u.DiscordID == nil || *u.DiscordID == "" {
		s |= NoDiscord
	}
	if !u.InCommunity {
		s |= NoCommunity
	}
	if !u.PaymentStatus {
		s |= NoPayment
	}
	return s
}

type reason struct {
	name, detail string
}

var reasons = []struct {
	bit Status
	r   reason
}{
	{NoEmail, reason{"No email", "You do not have an email account associated."}},
	{NoDiscord, reason{"No discord", "You do not have an associated discord account."}},
	{NoPayment, reason{"No payment", "You have not paid the club fees due."}},
	{NoCommunity, reason{"No club platform", "You have not joined the club on the university platform."}},
	{NoDatabaseEntry, reason{"No database entry", "You are not in our database."}},
}

// denialEmbed enumerates exactly the set deficiency bits, one line each.
func denialEmbed(s Status) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title: "Removal",
		Description: "Your access to the server has been revoked. " +
			"We have provided the reasons below why you have not been given access.",
		Color: discord.ColorRed,
	}
	for _, entry := range reasons {
		if s&entry.bit != 0 {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
				Name: entry.r.name, Value: entry.r.detail,
			})
		}
	}
	return e
}

// Service applies the minimal role correction per member. Grants and
// revokes are independently gated by feature flags so either side can run
// dry (logged but skipped).
type Service struct {
	db       *gorm.DB
	dir      discord.Directory
	msgr     discord.Messenger
	flags    *fflags.Service
	roleName string
	log      *zap.Logger
}

func NewService(db *gorm.DB, dir discord.Directory, msgr discord.Messenger, flags *fflags.Service, roleName string, log *zap.Logger) *Service {
	return &Service{db: db, dir: dir, msgr: msgr, flags: flags, roleName: roleName, log: log}
}

func (s *Service) lookup(userID string) (*models.User, error) {
	if s.db == nil {
		return nil, errors.New("roles: store unavailable")
	}
	var u models.User
	err := s.db.Where("discord_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CheckMember evaluates one member and applies the correcting action.
func (s *Service) CheckMember(m discord.Member) error {
	roleID, err := s.dir.RoleIDByName(s.roleName)
	if err != nil {
		return err
	}
	return s.checkWithRole(m, roleID)
}

func (s *Service) checkWithRole(m discord.Member, roleID string) error {
	rec, err := s.lookup(m.UserID)
	if err != nil {
		return err
	}
	status := Evaluate(rec)
	hasRole := m.HasRole(roleID)

	switch {
	case status != StatusOK && hasRole:
		if !s.flags.Enabled(fflags.RoleRevoke) {
			s.log.Info("revoke gated off, skipping",
				zap.String("user", m.UserID), zap.Int("status", int(status)))
			return nil
		}
		if err := s.dir.RemoveRole(m.UserID, roleID); err != nil {
			return err
		}
		if err := s.msgr.DirectEmbed(m.UserID, denialEmbed(status)); err != nil {
			s.log.Warn("revocation notice failed", zap.String("user", m.UserID), zap.Error(err))
		}
		s.log.Info("revoked role", zap.String("user", m.UserID), zap.Int("status", int(status)))

	case status == StatusOK && !hasRole:
		if !s.flags.Enabled(fflags.RoleGrant) {
			s.log.Info("grant gated off, skipping", zap.String("user", m.UserID))
			return nil
		}
		if err := s.dir.AddRole(m.UserID, roleID); err != nil {
			return err
		}
		if err := s.msgr.DirectEmbed(m.UserID, discord.QuickEmbed("Verified",
			"You now have access to the server. Welcome aboard!", discord.ColorYellow)); err != nil {
			s.log.Warn("grant notice failed", zap.String("user", m.UserID), zap.Error(err))
		}
		s.log.Info("granted role", zap.String("user", m.UserID))
	}
	return nil
}

// CheckUser resolves a discord id to a guild member and evaluates them.
// Unknown members are a no-op.
func (s *Service) CheckUser(userID string) {
	m, ok, err := s.dir.Member(userID)
	if err != nil {
		s.log.Error("member lookup failed", zap.String("user", userID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if err := s.CheckMember(m); err != nil {
		s.log.Error("member check failed", zap.String("user", userID), zap.Error(err))
	}
}

// CheckAll sweeps the full guild. Bots are skipped and one member's failure
// never aborts the batch; failed members are counted as unresolved.
func (s *Service) CheckAll() {
	roleID, err := s.dir.RoleIDByName(s.roleName)
	if err != nil {
		s.log.Error("verified role lookup failed", zap.Error(err))
		return
	}
	members, err := s.dir.Members()
	if err != nil {
		s.log.Error("guild member fetch failed", zap.Error(err))
		return
	}

	unresolved := 0
	for _, m := range members {
		if m.Bot {
			continue
		}
		if err := s.checkWithRole(m, roleID); err != nil {
			unresolved++
			s.log.Warn("member unresolved in sweep", zap.String("user", m.UserID), zap.Error(err))
		}
	}
	s.log.Info("role sweep complete",
		zap.Int("members", len(members)), zap.Int("unresolved", unresolved))
}
