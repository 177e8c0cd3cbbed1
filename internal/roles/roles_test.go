package roles

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gryphrace/paddock/internal/discord"
	"github.com/gryphrace/paddock/internal/fflags"
	"github.com/gryphrace/paddock/internal/models"
)

const testRoleID = "role-verified"

// fakeGuild implements both Directory and the DM side of Messenger so the
// reconciler's role changes and notices can be asserted together.
type fakeGuild struct {
	members  []discord.Member
	added    []string
	removed  []string
	dms      map[string][]*discordgo.MessageEmbed
	roleErr  map[string]error
	lookupOK bool
}

func newFakeGuild(members ...discord.Member) *fakeGuild {
	return &fakeGuild{
		members:  members,
		dms:      make(map[string][]*discordgo.MessageEmbed),
		roleErr:  make(map[string]error),
		lookupOK: true,
	}
}

func (f *fakeGuild) Members() ([]discord.Member, error) { return f.members, nil }

func (f *fakeGuild) Member(userID string) (discord.Member, bool, error) {
	for _, m := range f.members {
		if m.UserID == userID {
			return m, true, nil
		}
	}
	return discord.Member{}, false, nil
}

func (f *fakeGuild) RoleIDByName(name string) (string, error) {
	if !f.lookupOK {
		return "", errors.New("role not found")
	}
	return testRoleID, nil
}

func (f *fakeGuild) AddRole(userID, roleID string) error {
	if err := f.roleErr[userID]; err != nil {
		return err
	}
	f.added = append(f.added, userID)
	return nil
}

func (f *fakeGuild) RemoveRole(userID, roleID string) error {
	if err := f.roleErr[userID]; err != nil {
		return err
	}
	f.removed = append(f.removed, userID)
	return nil
}

func (f *fakeGuild) SendEmbed(string, *discordgo.MessageEmbed) (discord.Message, error) {
	return discord.Message{}, errors.New("unused")
}

func (f *fakeGuild) EditEmbed(string, string, *discordgo.MessageEmbed) (discord.Message, error) {
	return discord.Message{}, errors.New("unused")
}

func (f *fakeGuild) FetchMessage(string, string) (discord.Message, error) {
	return discord.Message{}, errors.New("unused")
}

func (f *fakeGuild) DeleteMessage(string, string) error { return errors.New("unused") }

func (f *fakeGuild) DirectEmbed(userID string, embeds ...*discordgo.MessageEmbed) error {
	f.dms[userID] = append(f.dms[userID], embeds...)
	return nil
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "roles_test.db") + "?_journal_mode=WAL"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &models.FeatureFlag{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func testService(t *testing.T, guild *fakeGuild, grant, revoke bool) (*Service, *gorm.DB) {
	t.Helper()
	gdb := testDB(t)
	flags := fflags.New(gdb, zap.NewNop())
	if err := flags.Set(fflags.RoleGrant, grant); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set(fflags.RoleRevoke, revoke); err != nil {
		t.Fatal(err)
	}
	return NewService(gdb, guild, guild, flags, "Verified", zap.NewNop()), gdb
}

func eligibleUser(id string) *models.User {
	return &models.User{
		Email: id + "@example.com", DiscordID: &id,
		InCommunity: true, PaymentStatus: true,
	}
}

func TestEvaluate(t *testing.T) {
	id := "u1"
	cases := []struct {
		name string
		u    *models.User
		want Status
	}{
		{"nil record", nil, NoDatabaseEntry},
		{"fully eligible", eligibleUser("u1"), StatusOK},
		{"unpaid", &models.User{Email: "a@b.c", DiscordID: &id, InCommunity: true}, NoPayment},
		{"not in community", &models.User{Email: "a@b.c", DiscordID: &id, PaymentStatus: true}, NoCommunity},
		{"unlinked", &models.User{Email: "a@b.c", InCommunity: true, PaymentStatus: true}, NoDiscord},
		{"empty record", &models.User{}, NoEmail | NoDiscord | NoCommunity | NoPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.u); got != tc.want {
				t.Errorf("Evaluate = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCheckMember_GrantsWhenEligible(t *testing.T) {
	guild := newFakeGuild(discord.Member{UserID: "u1"})
	svc, gdb := testService(t, guild, true, true)
	gdb.Create(eligibleUser("u1"))

	if err := svc.CheckMember(discord.Member{UserID: "u1"}); err != nil {
		t.Fatalf("CheckMember: %v", err)
	}
	if len(guild.added) != 1 || guild.added[0] != "u1" {
		t.Errorf("added = %v, want [u1]", guild.added)
	}
	if len(guild.removed) != 0 {
		t.Errorf("removed = %v, want none", guild.removed)
	}
	if len(guild.dms["u1"]) != 1 || guild.dms["u1"][0].Title != "Verified" {
		t.Error("grant notice missing")
	}
}

func TestCheckMember_RevokesWithReasons(t *testing.T) {
	guild := newFakeGuild()
	svc, gdb := testService(t, guild, true, true)
	id := "u1"
	gdb.Create(&models.User{Email: "a@b.c", DiscordID: &id, InCommunity: true})

	member := discord.Member{UserID: "u1", RoleIDs: []string{testRoleID}}
	if err := svc.CheckMember(member); err != nil {
		t.Fatalf("CheckMember: %v", err)
	}
	if len(guild.removed) != 1 || guild.removed[0] != "u1" {
		t.Fatalf("removed = %v, want [u1]", guild.removed)
	}

	dms := guild.dms["u1"]
	if len(dms) != 1 {
		t.Fatalf("dms = %d, want 1 denial notice", len(dms))
	}
	// NoPayment is the only set bit, so exactly one reason field.
	if len(dms[0].Fields) != 1 || dms[0].Fields[0].Name != "No payment" {
		t.Errorf("denial fields = %+v", dms[0].Fields)
	}
}

func TestCheckMember_DenialListsEveryDeficiency(t *testing.T) {
	guild := newFakeGuild()
	svc, _ := testService(t, guild, true, true)

	// No record at all: the notice carries the database-entry reason only.
	member := discord.Member{UserID: "ghost", RoleIDs: []string{testRoleID}}
	if err := svc.CheckMember(member); err != nil {
		t.Fatalf("CheckMember: %v", err)
	}
	dms := guild.dms["ghost"]
	if len(dms) != 1 || len(dms[0].Fields) != 1 || dms[0].Fields[0].Name != "No database entry" {
		t.Fatalf("denial = %+v", dms)
	}
}

func TestCheckMember_EligibleWithRoleIsNoop(t *testing.T) {
	guild := newFakeGuild()
	svc, gdb := testService(t, guild, true, true)
	gdb.Create(eligibleUser("u1"))

	member := discord.Member{UserID: "u1", RoleIDs: []string{testRoleID}}
	if err := svc.CheckMember(member); err != nil {
		t.Fatal(err)
	}
	if len(guild.added)+len(guild.removed)+len(guild.dms["u1"]) != 0 {
		t.Error("steady state produced actions")
	}
}

func TestCheckMember_GatesClosed(t *testing.T) {
	guild := newFakeGuild()
	svc, gdb := testService(t, guild, false, false)
	gdb.Create(eligibleUser("u1"))

	if err := svc.CheckMember(discord.Member{UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.CheckMember(discord.Member{UserID: "ghost", RoleIDs: []string{testRoleID}}); err != nil {
		t.Fatal(err)
	}
	if len(guild.added) != 0 || len(guild.removed) != 0 {
		t.Errorf("gated actions ran: added=%v removed=%v", guild.added, guild.removed)
	}
	if len(guild.dms) != 0 {
		t.Error("notice sent although the action was gated off")
	}
}

func TestCheckAll_SkipsBotsAndIsolatesFailures(t *testing.T) {
	guild := newFakeGuild(
		discord.Member{UserID: "bot", Bot: true},
		discord.Member{UserID: "u1"},
		discord.Member{UserID: "u2"},
		discord.Member{UserID: "u3"},
	)
	guild.roleErr["u2"] = errors.New("api error")

	svc, gdb := testService(t, guild, true, true)
	gdb.Create(eligibleUser("u1"))
	gdb.Create(eligibleUser("u2"))
	gdb.Create(eligibleUser("u3"))

	svc.CheckAll()

	// u2's API failure must not stop u3 from being granted.
	if len(guild.added) != 2 || guild.added[0] != "u1" || guild.added[1] != "u3" {
		t.Errorf("added = %v, want [u1 u3]", guild.added)
	}
	if _, ok := guild.dms["bot"]; ok {
		t.Error("bot was processed")
	}
}

func TestCheckUser_UnknownMemberIsNoop(t *testing.T) {
	guild := newFakeGuild()
	svc, _ := testService(t, guild, true, true)

	svc.CheckUser("nobody")
	if len(guild.added)+len(guild.removed) != 0 {
		t.Error("unknown member caused role changes")
	}
}
