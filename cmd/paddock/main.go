package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gryphrace/paddock/internal/bot"
	"github.com/gryphrace/paddock/internal/config"
	"github.com/gryphrace/paddock/internal/countdown"
	"github.com/gryphrace/paddock/internal/db"
	"github.com/gryphrace/paddock/internal/discord"
	"github.com/gryphrace/paddock/internal/fflags"
	"github.com/gryphrace/paddock/internal/logger"
	"github.com/gryphrace/paddock/internal/mailer"
	"github.com/gryphrace/paddock/internal/roles"
	"github.com/gryphrace/paddock/internal/sched"
	"github.com/gryphrace/paddock/internal/verify"
	"github.com/gryphrace/paddock/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	log, err := logger.Init(logger.Config{
		Development: cfg.Log.Development,
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
	})
	if err != nil {
		zap.NewExample().Fatal("logger init failed", zap.Error(err))
	}
	defer logger.Sync()

	storeReady := true
	if err := db.Init(cfg.DB.Path); err != nil {
		// The bot can still connect and answer with a fixed unavailability
		// notice; scheduled store-backed jobs skip their runs.
		storeReady = false
		log.Error("database init failed, running degraded", zap.Error(err))
	}

	session, err := bot.NewSession(cfg.Discord.Token)
	if err != nil {
		log.Fatal("discord session", zap.Error(err))
	}
	client := discord.NewClient(session, cfg.Discord.GuildID)

	// The countdown store is database-backed unless the deployment still
	// points at the legacy JSON file.
	var cdStore countdown.Store
	if cfg.DB.CountdownFile != "" {
		fs, err := countdown.OpenFileStore(cfg.DB.CountdownFile)
		if err != nil {
			log.Fatal("open countdown file", zap.Error(err))
		}
		cdStore = fs
		log.Info("using legacy countdown file store", zap.String("path", cfg.DB.CountdownFile))
	} else {
		cdStore = countdown.NewGormStore(db.Conn())
	}

	flags := fflags.New(db.Conn(), log.Named("fflags"))
	if storeReady {
		if err := flags.Ensure(fflags.RoleGrant, true); err != nil {
			log.Warn("flag seed failed", zap.Error(err))
		}
		if err := flags.Ensure(fflags.RoleRevoke, false); err != nil {
			log.Warn("flag seed failed", zap.Error(err))
		}
	}

	mail := mailer.NewBrevo(cfg.Mail.APIKey, cfg.Mail.FromAddr, cfg.Mail.FromName, log.Named("mailer"))

	countdowns := countdown.NewService(cdStore, client, log.Named("countdown"))
	reconciler := roles.NewService(db.Conn(), client, client, flags, cfg.Discord.VerifiedRole, log.Named("roles"))
	verifier := verify.NewService(db.Conn(), mail, client, client, log.Named("verify"))
	verifier.Reconcile = reconciler.CheckUser

	b := bot.New(session, cfg.Discord.GuildID, countdowns, verifier, reconciler, storeReady, log.Named("bot"))
	if err := b.Open(); err != nil {
		log.Fatal("gateway open failed", zap.Error(err))
	}
	defer b.Close()

	stop := make(chan struct{})
	verifier.Start(stop)

	runner := sched.New(log.Named("sched"))
	if storeReady {
		mustSchedule(log, runner, "*/5 * * * *", "countdown-refresh", countdowns.RefreshAll)
		mustSchedule(log, runner, "*/15 * * * *", "session-sweep", verifier.SweepExpired)
		mustSchedule(log, runner, "0 0 * * *", "role-sweep", reconciler.CheckAll)
	}
	runner.Start()
	defer runner.Stop()

	go func() {
		log.Info("ops server listening", zap.String("addr", cfg.Web.Addr))
		if err := http.ListenAndServe(cfg.Web.Addr, web.Router(db.Conn(), countdowns)); err != nil {
			log.Error("ops server stopped", zap.Error(err))
		}
	}()

	// Run the initial full sweep once connected.
	if storeReady {
		go reconciler.CheckAll()
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc
	close(stop)
	log.Info("shutting down")
}

func mustSchedule(log *zap.Logger, r *sched.Runner, spec, name string, fn func()) {
	if err := r.Add(spec, name, fn); err != nil {
		log.Fatal("schedule registration failed", zap.String("job", name), zap.Error(err))
	}
}
