package daemon

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/api"
	"github.com/greencredits/greencredits/internal/app/accounts"
	"github.com/greencredits/greencredits/internal/app/reports"
	"github.com/greencredits/greencredits/internal/app/rewards"
	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/memstore"
	"github.com/greencredits/greencredits/internal/infra/photostore"
	"github.com/greencredits/greencredits/internal/infra/sqlite"
	"github.com/greencredits/greencredits/internal/logger"
)

// shutdownTimeout bounds how long in-flight requests may run after Run's
// context is cancelled.
const shutdownTimeout = 10 * time.Second

// Daemon is the assembled service: store, engine, services and HTTP API.
type Daemon struct {
	Config      Config
	Store       domain.Store
	Engine      *rewards.Engine
	Leaderboard *rewards.Leaderboard
	Accounts    *accounts.Service
	Reports     *reports.Service
	Photos      *photostore.Store
	Sessions    *api.Sessions

	server *api.Server
	log    *zap.Logger
}

// New wires every component from cfg. The caller must Close the daemon.
func New(cfg Config, log *zap.Logger) (*Daemon, error) {
	log = logger.OrDefault(log).Named("daemon")

	store, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	photos := photostore.New(cfg.Uploads.Dir, cfg.Uploads.MaxBytes())
	if err := photos.Init(); err != nil {
		store.Close()
		return nil, err
	}

	engine := rewards.NewEngine(store, cfg.Credits.Rewards(), log)
	accts := accounts.NewService(store, engine, accounts.Config{
		OrgCodes:   cfg.Auth.OrgCodes,
		BcryptCost: cfg.Auth.BcryptCost,
	}, log)

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			store.Close()
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		log.Warn("no JWT secret configured; sessions will not survive a restart",
			zap.String("env", EnvJWTSecret))
	}
	sessions := api.NewSessions(secret, cfg.Auth.TTL(), accts)
	sessions.SetSecure(cfg.Auth.SecureCookie)

	d := &Daemon{
		Config:      cfg,
		Store:       store,
		Engine:      engine,
		Leaderboard: rewards.NewLeaderboard(store, cfg.Credits.LeaderboardSize),
		Accounts:    accts,
		Reports:     reports.NewService(store, engine, nil, log),
		Photos:      photos,
		Sessions:    sessions,
		log:         log,
	}

	d.server = api.NewServer(api.Deps{
		Accounts:    d.Accounts,
		Reports:     d.Reports,
		Engine:      d.Engine,
		Leaderboard: d.Leaderboard,
		Photos:      d.Photos,
		Sessions:    d.Sessions,
		Logger:      log,
	})
	if cfg.Metrics.Enabled {
		d.server.EnableMetrics()
	}
	return d, nil
}

// Rewards converts the [credits] section into engine rules.
func (c CreditsConfig) Rewards() rewards.Config {
	return rewards.Config{
		QualityThreshold: c.QualityThreshold,
		BadgeBonus:       c.BadgeBonus,
		NextBadgesLimit:  c.NextBadges,
	}
}

// OpenStore opens the configured storage backend.
func OpenStore(cfg StorageConfig) (domain.Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return memstore.New(), nil
	case BackendSQLite:
		db, err := sqlite.Open(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// Handler returns the HTTP handler serving the API.
func (d *Daemon) Handler() http.Handler { return d.server.Handler() }

// Run serves HTTP on the configured address until ctx is cancelled, then
// drains in-flight requests.
func (d *Daemon) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              d.Config.API.Addr(),
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", d.Config.Storage.Backend),
			zap.Bool("metrics", d.Config.Metrics.Enabled),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	d.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the store.
func (d *Daemon) Close() error { return d.Store.Close() }
