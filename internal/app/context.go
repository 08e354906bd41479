// Package app wires the pieces together: database, config, verification
// service, payment router, and notifiers. Both the CLI and the server build
// from here.
package app

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"clubrun/internal/archiver"
	"clubrun/internal/config"
	"clubrun/internal/db"
	"clubrun/internal/events"
	"clubrun/internal/migrate"
	"clubrun/internal/notify"
	"clubrun/internal/oracle"
	"clubrun/internal/payments"
	"clubrun/internal/repo"
	"clubrun/internal/verify"
)

// App holds a fully wired instance.
type App struct {
	DB       *sql.DB
	Repo     repo.Repo
	Config   *config.Config
	Verify   *verify.Service
	Payments *payments.Router
}

// Options override default collaborators, mainly for tests.
type Options struct {
	Oracle   oracle.Client
	Archiver archiver.Archiver
	Now      func() time.Time
}

// Open opens (creating if needed) the workspace database, applies
// migrations, loads config, and wires the verification and payment stack.
func Open(workspace string, opts Options) (*App, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return New(conn, cfg, opts)
}

// New wires an App around an already-open database.
func New(conn *sql.DB, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	oracleClient := opts.Oracle
	if oracleClient == nil {
		oracleClient = oracle.NewHTTPClient(cfg.Oracle)
	}
	archiverClient := opts.Archiver
	if archiverClient == nil {
		archiverClient = archiver.NewHTTPClient(cfg.Archiver)
	}
	notifier := notify.NewEventNotifier(conn, now)

	router := payments.NewRouter(conn, cfg.Payments, notifier)
	router.Now = now

	worker := &verify.Worker{
		DB:       conn,
		Repo:     repo.Repo{DB: conn},
		Events:   events.Writer{DB: conn},
		Oracle:   oracleClient,
		Archiver: archiverClient,
		Router:   router,
		Notifier: notifier,
		Config:   cfg.Verification,
		Now:      now,
		Log:      log.Printf,
	}
	interval := cfg.Verification.SchedulerInterval.Std()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	service := verify.NewService(worker, interval)

	return &App{
		DB:       conn,
		Repo:     repo.Repo{DB: conn},
		Config:   cfg,
		Verify:   service,
		Payments: router,
	}, nil
}

// Start launches the scheduler loop and webhook forwarding.
func (a *App) Start() {
	a.Verify.Start()
	notify.StartWebhookForwarder(a.Repo, a.Config.Webhooks)
}

// Close stops background work and closes the database.
func (a *App) Close() error {
	a.Verify.Stop()
	return a.DB.Close()
}
