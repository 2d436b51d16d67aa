package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"PostTranslator/internal/config"
	"PostTranslator/internal/domain"
	"PostTranslator/internal/infrastructure/htmlsanitize"
	"PostTranslator/internal/infrastructure/httpapi"
	"PostTranslator/internal/infrastructure/llm"
	"PostTranslator/internal/infrastructure/memstore"
	"PostTranslator/internal/infrastructure/notify"
	"PostTranslator/internal/infrastructure/queue"
	"PostTranslator/internal/infrastructure/redisstore"
	"PostTranslator/internal/infrastructure/scheduler"
	"PostTranslator/internal/infrastructure/storage"
	"PostTranslator/internal/logging"
	"PostTranslator/internal/ports"
	"PostTranslator/internal/ratelimit"
	"PostTranslator/internal/usecase"
)

// MemoryDriver keeps every record in process memory; nothing survives a restart.
const MemoryDriver = "memory"

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	sseKeepAlive      = 25 * time.Second
)

type backend struct {
	posts        ports.PostRepository
	translations ports.TranslationRepository
	preferences  ports.PreferenceRepository
	counters     ports.CounterStore
	purger       ports.CounterPurger
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db     *storage.DB
	redis  *redisstore.CounterStore
	events *logging.EventLog

	hub          *notify.Hub
	queue        *queue.Queue
	job          *usecase.TranslateJob
	postEvents   *usecase.PostEvents
	translations *usecase.Translations
	janitor      *usecase.Janitor
	router       *gin.Engine
}

// New opens the configured backends and builds every component. Close releases them.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	be, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	events, err := logging.NewEventLog(cfg.Logging.EventLogPath, baseLogger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.events = events

	limiter := ratelimit.New(be.counters, cfg.Translator.RateLimitPerMinute,
		ratelimit.WithLogger(logging.Component(baseLogger, "ratelimit")))

	service := usecase.NewTranslationService(usecase.TranslationServiceDeps{
		Completer: llm.NewClient(cfg.Translator.RequestTimeout, logging.Component(baseLogger, "llm")),
		Limiter:   limiter,
		Settings: usecase.TranslationSettings{
			PresetModel:      cfg.Translator.PresetModel,
			Model:            cfg.Translator.ModelSettings(),
			MaxContentLength: cfg.Translator.MaxContentLength,
		},
		Sanitize: htmlsanitize.Clean,
		Logger:   logging.Component(baseLogger, "translation_service"),
	})

	a.hub = notify.NewHub(cfg.Notifications.HubBuffer, logging.Component(baseLogger, "hub"))
	var notifier ports.Notifier = a.hub
	if hook := cfg.Notifications.Webhook; hook.URL != "" {
		notifier = notify.Fanout{a.hub, notify.NewWebhook(hook.URL, hook.Token, hook.Timeout)}
	}

	a.job = usecase.NewTranslateJob(usecase.TranslateJobDeps{
		Posts:          be.posts,
		Translations:   be.translations,
		Translator:     service,
		Notifier:       notifier,
		Events:         events,
		TranslateTitle: cfg.Translator.TranslateTitle,
		Locks:          usecase.NewKeyedMutex(),
		Logger:         logging.Component(baseLogger, "translate_job"),
	})

	a.queue = queue.New(queue.Options{
		Workers:    cfg.Queue.Workers,
		Buffer:     cfg.Queue.Buffer,
		JobTimeout: cfg.Queue.JobTimeout,
		Logger:     logging.Component(baseLogger, "queue"),
	})

	a.postEvents = usecase.NewPostEvents(usecase.PostEventsDeps{
		Posts:         be.posts,
		Translations:  be.translations,
		Preferences:   be.preferences,
		Queue:         a.queue,
		Notifier:      notifier,
		Enabled:       cfg.Translator.Enabled,
		AutoLanguages: cfg.Translator.AutoLanguages(),
		Logger:        logging.Component(baseLogger, "post_events"),
	})

	a.translations = usecase.NewTranslations(usecase.TranslationsDeps{
		Posts:        be.posts,
		Translations: be.translations,
		Preferences:  be.preferences,
		Queue:        a.queue,
		Logger:       logging.Component(baseLogger, "translations"),
	})

	var driver ports.Scheduler
	if be.purger != nil {
		driver = scheduler.NewTickerScheduler(cfg.Janitor.Interval)
	}
	a.janitor = usecase.NewJanitor(driver, be.purger, logging.Component(baseLogger, "janitor"))

	a.router = httpapi.NewRouter(httpapi.Deps{
		Translations: a.translations,
		Events:       a.postEvents,
		Hub:          a.hub,
		KeepAlive:    sseKeepAlive,
		Logger:       logging.Component(baseLogger, "http"),
	})

	return a, nil
}

func (a *Application) openBackend(ctx context.Context) (backend, error) {
	var be backend

	if strings.EqualFold(strings.TrimSpace(a.cfg.Database.Driver), MemoryDriver) {
		store := memstore.New(nil)
		be.posts, be.translations, be.preferences = store, store, store
		a.logger.Warn("using in-memory storage, translations are lost on restart")
	} else {
		db, err := storage.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN)
		if err != nil {
			return be, err
		}
		a.db = db
		counters := storage.NewCounterStore(db)
		be.posts = storage.NewPostRepo(db)
		be.translations = storage.NewTranslationRepo(db)
		be.preferences = storage.NewPreferenceRepo(db)
		be.counters = counters
		be.purger = counters
	}

	switch {
	case a.cfg.Redis.Addr != "":
		store, err := redisstore.Dial(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			return be, err
		}
		a.redis = store
		be.counters = store
	case be.counters == nil:
		be.counters = ratelimit.NewMemoryStore(nil)
	}

	return be, nil
}

// Migrate applies pending schema migrations; the memory driver has none.
func (a *Application) Migrate(ctx context.Context) ([]string, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Migrate(ctx)
}

// Handler exposes the REST surface.
func (a *Application) Handler() http.Handler { return a.router }

// Translations exposes the query and request use case.
func (a *Application) Translations() *usecase.Translations { return a.translations }

// StartWorkers launches the job queue workers and the counter janitor.
func (a *Application) StartWorkers(ctx context.Context) error {
	a.queue.Start(ctx, func(ctx context.Context, args domain.TranslateJobArgs) {
		a.job.Run(ctx, args)
	})
	if err := a.janitor.Start(ctx); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	return nil
}

// Drain blocks until every queued job has finished.
func (a *Application) Drain(ctx context.Context) error {
	return a.queue.Wait(ctx)
}

// TranslateNow runs one translation job synchronously, bypassing the queue.
func (a *Application) TranslateNow(ctx context.Context, args domain.TranslateJobArgs) usecase.Outcome {
	return a.job.Run(ctx, args)
}

// Serve migrates, starts the workers and serves HTTP until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	applied, err := a.Migrate(ctx)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		a.logger.Info("migrations applied", "migrations", applied)
	}

	if err := a.StartWorkers(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
		// Streams end with the serve context so Shutdown is not held by open SSE clients.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			a.shutdown()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown", "error", err)
		}
	}

	a.shutdown()
	return nil
}

func (a *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.janitor.Stop(ctx); err != nil {
		a.logger.Warn("janitor stop", "error", err)
	}
	if err := a.queue.Stop(ctx); err != nil {
		a.logger.Warn("queue stop", "error", err)
	}
}

// Close stops the workers and releases storage, Redis and the event log.
func (a *Application) Close() error {
	if a.queue != nil {
		a.shutdown()
	}

	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
