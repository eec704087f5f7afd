// Package app wires all Plantavoz subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the processing loops, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithRecordStore,
// WithNotifier). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/tomasrey88/plantavoz/internal/capture"
	"github.com/tomasrey88/plantavoz/internal/config"
	"github.com/tomasrey88/plantavoz/internal/discord"
	"github.com/tomasrey88/plantavoz/internal/extract"
	"github.com/tomasrey88/plantavoz/internal/health"
	"github.com/tomasrey88/plantavoz/internal/notify"
	"github.com/tomasrey88/plantavoz/internal/observe"
	"github.com/tomasrey88/plantavoz/internal/queue"
	"github.com/tomasrey88/plantavoz/internal/resolve"
	"github.com/tomasrey88/plantavoz/internal/session"
	"github.com/tomasrey88/plantavoz/internal/store"
	"github.com/tomasrey88/plantavoz/internal/store/postgres"
	"github.com/tomasrey88/plantavoz/pkg/provider/llm"
	"github.com/tomasrey88/plantavoz/pkg/provider/stt"
)

// Providers holds one interface value per provider slot, populated by main.go
// via the config registry (and optionally wrapped in resilience fallbacks).
type Providers struct {
	STT stt.Provider
	LLM llm.Provider
}

// RecordStore is everything the application needs from the record store: the
// capture pipeline's slice plus the queue's job-state operations.
type RecordStore interface {
	capture.RecordStore
	UpdateJobStatus(ctx context.Context, id string, status store.JobStatus, attempts int, lastError string) error
	JobsByStatus(ctx context.Context, statuses ...store.JobStatus) ([]store.TranscriptionJob, error)
}

// App owns all subsystem lifetimes and orchestrates the capture service.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	records  RecordStore
	sessions *session.Store
	pipeline *capture.Pipeline
	queue    *queue.Queue
	bot      *discord.Bot
	metrics  *observe.Metrics
	health   *health.Handler
	notifier notify.Dispatcher

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecordStore injects a record store instead of connecting to PostgreSQL.
func WithRecordStore(s RecordStore) Option {
	return func(a *App) { a.records = s }
}

// WithNotifier injects an assignment notifier instead of the Discord DM
// dispatcher.
func WithNotifier(n notify.Dispatcher) Option {
	return func(a *App) { a.notifier = n }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. Use Option functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	if providers.LLM == nil {
		return nil, fmt.Errorf("app: an llm provider is required for field extraction")
	}
	if providers.STT == nil {
		return nil, fmt.Errorf("app: an stt provider is required for voice notes")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Metrics ───────────────────────────────────────────────────────
	if err := a.initMetrics(ctx); err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}

	// ── 2. Record store ──────────────────────────────────────────────────
	if err := a.initRecords(ctx); err != nil {
		return nil, fmt.Errorf("app: init record store: %w", err)
	}

	// ── 3. Sessions ──────────────────────────────────────────────────────
	a.sessions = session.NewStore(
		session.WithTTLs(cfg.Capture.InteractiveTTL, cfg.Capture.WaitingTTL),
	)
	if err := a.metrics.ObserveActiveSessions(func() int64 {
		return int64(a.sessions.Len())
	}); err != nil {
		return nil, fmt.Errorf("app: register session gauge: %w", err)
	}

	// ── 4. Capture pipeline ──────────────────────────────────────────────
	a.initPipeline()

	// ── 5. Processing queue ──────────────────────────────────────────────
	a.queue = queue.New(queue.Config{
		MaxDepth:   cfg.Queue.MaxDepth,
		MaxRetries: cfg.Queue.MaxRetries,
		Backoff:    cfg.Queue.Backoff,
		JobTimeout: cfg.Queue.JobTimeout,
		Pause:      cfg.Queue.Pause,
	}, a.records, a.pipeline.ProcessJob, queue.WithMetrics(a.metrics))
	a.pipeline.SetEnqueuer(a.queue)

	// ── 6. Discord transport ─────────────────────────────────────────────
	if err := a.initDiscord(ctx); err != nil {
		return nil, fmt.Errorf("app: init discord: %w", err)
	}

	// ── 7. Health checks ─────────────────────────────────────────────────
	a.initHealth()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initMetrics sets up the OTel meter provider with the Prometheus exporter
// and creates the instrument set.
func (a *App) initMetrics(ctx context.Context) error {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(closeCtx)
	})

	a.metrics, err = observe.NewMetrics(otel.GetMeterProvider())
	return err
}

// initRecords connects the PostgreSQL record store unless one was injected.
func (a *App) initRecords(ctx context.Context) error {
	if a.records != nil {
		return nil
	}

	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		return fmt.Errorf("store.postgres_dsn is required when a record store is not injected")
	}

	pg, err := postgres.NewStore(ctx, dsn, a.cfg.Store.CompanyID)
	if err != nil {
		return err
	}
	a.records = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

// initPipeline builds the resolvers, extractor, and capture pipeline. The
// responder, enqueuer, and notifier are wired afterwards via the Set hooks.
func (a *App) initPipeline() {
	rcfg := resolverConfig(a.cfg.Resolver)

	a.pipeline = capture.New(capture.Config{
		CancelWords:      a.cfg.Capture.CancelWords,
		MinTranscriptLen: a.cfg.Capture.MinTranscriptLen,
	}, capture.Deps{
		Sessions:  a.sessions,
		Records:   a.records,
		STT:       a.providers.STT,
		Extractor: extract.New(a.providers.LLM),
		Machines:  resolve.NewMachineResolver(rcfg),
		People:    resolve.NewPersonResolver(rcfg),
		Notifier:  a.notifier,
		Metrics:   a.metrics,
	})
}

// initDiscord connects the bot and closes the pipeline's wiring cycle:
// responder and DM notifier both need the live session. Without a token the
// app still runs (queue recovery, metrics), which is what integration tests
// and the readiness probe exercise.
func (a *App) initDiscord(ctx context.Context) error {
	if a.cfg.Discord.Token == "" {
		slog.Warn("discord token not configured, transport disabled")
		return nil
	}

	bot, err := discord.New(ctx, discord.Config{
		Token:         a.cfg.Discord.Token,
		GuildID:       a.cfg.Discord.GuildID,
		CaptureRoleID: a.cfg.Discord.CaptureRoleID,
	}, a.pipeline)
	if err != nil {
		return err
	}
	a.bot = bot
	a.closers = append(a.closers, bot.Close)

	a.pipeline.SetResponder(bot.Responder())
	bot.SetStatusSource(statusSource{queue: a.queue, sessions: a.sessions})
	if a.notifier == nil {
		a.pipeline.SetNotifier(notify.NewDiscord(bot.Session()))
	}
	slog.Info("discord bot connected", "guild_id", a.cfg.Discord.GuildID)
	return nil
}

// initHealth assembles the readiness checker set.
func (a *App) initHealth() {
	var checkers []health.Checker

	if pinger, ok := a.records.(interface{ Ping(context.Context) error }); ok {
		checkers = append(checkers, health.Checker{Name: "database", Check: pinger.Ping})
	}
	if a.bot != nil {
		sess := a.bot.Session()
		checkers = append(checkers, health.Checker{Name: "discord", Check: func(context.Context) error {
			last := sess.LastHeartbeatAck
			if !last.IsZero() && time.Since(last) > 5*time.Minute {
				return fmt.Errorf("no gateway heartbeat ack since %s", last.Format(time.RFC3339))
			}
			return nil
		}})
	}

	a.health = health.New(checkers...)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run recovers unfinished jobs, then starts the worker loops and blocks until
// ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	if n, err := a.queue.Recover(ctx); err != nil {
		slog.Warn("job recovery failed, continuing without backlog", "err", err)
	} else if n > 0 {
		slog.Info("recovered jobs from previous run", "count", n)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.sessions.RunSweeper(gctx, a.cfg.Capture.SweepInterval)
		return nil
	})
	g.Go(func() error {
		return a.queue.Run(gctx)
	})
	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		g.Go(func() error {
			return observe.Serve(gctx, addr, a.health, slog.Default())
		})
	}
	if a.bot != nil {
		g.Go(func() error {
			return a.bot.Run(gctx)
		})
	}

	slog.Info("app running")
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// Pipeline exposes the capture pipeline for tests and diagnostics.
func (a *App) Pipeline() *capture.Pipeline {
	return a.pipeline
}

// Health exposes the readiness handler.
func (a *App) Health() *health.Handler {
	return a.health
}

// statusSource feeds the bot's /estado command from the queue and session
// store.
type statusSource struct {
	queue    *queue.Queue
	sessions *session.Store
}

func (s statusSource) QueueStatus() queue.Status { return s.queue.Status() }
func (s statusSource) ActiveSessions() int       { return s.sessions.Len() }

// resolverConfig maps the config schema onto the resolver's tuning struct.
func resolverConfig(rc config.ResolverConfig) resolve.Config {
	return resolve.Config{
		AcceptThreshold: rc.AcceptThreshold,
		AcceptMargin:    rc.AcceptMargin,
		FuzzyThreshold:  rc.FuzzyThreshold,
		GroupBoost:      rc.GroupBoost,
		GroupPenalty:    rc.GroupPenalty,
	}
}
