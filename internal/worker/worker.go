// ABOUTME: Worker orchestrator wiring store, cache, interceptor, sync and notifications
// ABOUTME: Runs the lifecycle, HTTP listener, periodic tickers and connectivity monitor

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/2389/mindmatters/internal/cache"
	"github.com/2389/mindmatters/internal/clients"
	"github.com/2389/mindmatters/internal/config"
	"github.com/2389/mindmatters/internal/connectivity"
	"github.com/2389/mindmatters/internal/interceptor"
	"github.com/2389/mindmatters/internal/messaging"
	"github.com/2389/mindmatters/internal/notify"
	"github.com/2389/mindmatters/internal/store"
	"github.com/2389/mindmatters/internal/syncq"
)

// Options overrides dependencies. Zero values build the real ones from config.
type Options struct {
	Store   store.Store
	Storage cache.Storage
	Client  cache.Doer
	Opener  clients.Opener
	Logger  *slog.Logger
	Now     func() time.Time
}

// Worker is the background half of the app.
type Worker struct {
	config *config.Config
	origin *url.URL

	store       store.Store
	storage     cache.Storage
	cache       *cache.Manager
	interceptor *interceptor.Interceptor
	sync        *syncq.Processor
	center      *notify.Center
	timers      *notify.Timers
	reminder    *notify.Reminder
	windows     *clients.Registry
	monitor     *connectivity.Monitor
	dispatcher  *Dispatcher

	mux        *http.ServeMux
	httpServer *http.Server
	logger     *slog.Logger
	now        func() time.Time
	startedAt  time.Time

	// ctx scopes background work; cancelled by Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds a Worker from configuration.
func New(cfg *config.Config, opts Options) (*Worker, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	origin, err := url.Parse(cfg.Origin.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing origin: %w", err)
	}

	var manifest *cache.Manifest
	if cfg.Cache.Manifest != "" {
		manifest, err = cache.LoadManifest(cfg.Cache.Manifest)
		if err != nil {
			return nil, err
		}
	}

	st := opts.Store
	if st == nil {
		st = store.NewLazySQLiteStore(cfg.Database.Path)
	}

	storage := opts.Storage
	if storage == nil {
		s, err := cache.NewSQLiteStorage(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing cache storage: %w", err)
		}
		storage = s
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	opener := opts.Opener
	if opener == nil {
		opener = clients.BrowserOpener{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		config:    cfg,
		origin:    origin,
		store:     st,
		storage:   storage,
		logger:    logger,
		now:       now,
		startedAt: now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	w.monitor = connectivity.New(connectivity.Config{
		ProbeURL: cfg.Connectivity.ProbeURL,
		Interval: cfg.Connectivity.Interval,
		Client:   client,
		Logger:   logger,
		OnOnline: func(context.Context) { w.trigger(EventSync) },
	})

	w.cache = cache.NewManager(storage, cache.ManagerConfig{
		Name:     cfg.CacheName(),
		Origin:   origin,
		Manifest: manifest,
		Client:   client,
		Logger:   logger,
	})

	w.interceptor = interceptor.New(interceptor.Config{
		Origin:    origin,
		APIMarker: cfg.Cache.APIMarker,
		Cache:     w.cache,
		Client:    w.monitor.TrackingDoer(client),
		Logger:    logger,
	})

	w.sync = syncq.New(st, syncq.Config{
		Endpoint:      cfg.Sync.Endpoint,
		Client:        client,
		Timeout:       cfg.Sync.Timeout,
		RatePerSecond: cfg.Sync.RatePerSecond,
		LedgerTTL:     cfg.Sync.LedgerTTL,
		Logger:        logger,
	})

	var sinks []notify.Sink
	if cfg.Notifications.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notifications.WebhookURL, cfg.External.Timeout))
	}
	w.center = notify.NewCenter(cfg.Notifications.JournalPath, logger, sinks...)
	w.timers = notify.NewTimers(func(n notify.Notification) {
		w.center.Show(w.ctx, n)
	})
	w.reminder = notify.NewReminder(st, w.center, notify.ReminderContent{
		Title: cfg.Notifications.Title,
		Body:  cfg.Notifications.Body,
		Icon:  cfg.Notifications.Icon,
		Badge: cfg.Notifications.Badge,
		URL:   cfg.Notifications.JournalPath,
	}, logger)

	w.windows, err = clients.NewRegistry(cfg.Origin.URL, opener, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	w.dispatcher = NewDispatcher(logger)
	w.registerHandlers()

	w.mux = http.NewServeMux()
	w.registerRoutes(w.mux)
	w.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           w.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return w, nil
}

// Handler returns the worker's HTTP handler.
func (w *Worker) Handler() http.Handler {
	return w.mux
}

// Dispatcher returns the event dispatcher.
func (w *Worker) Dispatcher() *Dispatcher {
	return w.dispatcher
}

func (w *Worker) registerHandlers() {
	d := w.dispatcher
	d.Register(EventInstall, func(ctx context.Context, ev Event) error {
		return w.cache.Install(ctx)
	})
	d.Register(EventActivate, func(ctx context.Context, ev Event) error {
		return w.cache.Activate(ctx)
	})
	d.Register(EventFetch, w.handleFetch)
	d.Register(EventSync, w.handleSync)
	d.Register(EventPeriodicSync, w.handlePeriodicSync)
	d.Register(EventMessage, w.handleMessage)
	d.Register(EventNotificationClick, w.handleNotificationClick)
}

func (w *Worker) handleFetch(ctx context.Context, ev Event) error {
	if ev.Request == nil {
		return errors.New("fetch event without request")
	}
	resp, source := w.interceptor.Handle(ctx, ev.Request)
	if ev.Respond != nil {
		ev.Respond(resp, source)
	}
	return nil
}

func (w *Worker) handleSync(ctx context.Context, ev Event) error {
	res := w.sync.Run(ctx)
	if res.Failed > 0 {
		w.logger.Info("entries left pending for the next sync", "failed", res.Failed)
	}
	return nil
}

func (w *Worker) handlePeriodicSync(ctx context.Context, ev Event) error {
	_, err := w.reminder.CheckAndFireDailyReminder(ctx, ev.Time)
	return err
}

func (w *Worker) handleNotificationClick(ctx context.Context, ev Event) error {
	return w.center.Click(ctx, ev.Tag, ev.Action, w.windows)
}

func (w *Worker) handleMessage(ctx context.Context, ev Event) error {
	msg := ev.Message
	if msg == nil {
		return errors.New("message event without message")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	switch msg.Type {
	case messaging.TypeScheduleNotification:
		n := notify.Notification{
			Tag:     msg.Tag,
			Title:   msg.Title,
			Body:    msg.Body,
			Icon:    w.config.Notifications.Icon,
			Badge:   w.config.Notifications.Badge,
			URL:     msg.URL,
			Actions: notify.DefaultActions(),
		}
		if n.Tag == "" {
			n.Tag = notify.DailyReminderTag
		}
		if n.URL == "" {
			n.URL = w.config.Notifications.JournalPath
		}
		w.timers.Schedule(msg.Timestamp, n)
		w.logger.Info("notification scheduled", "tag", n.Tag, "at", msg.Timestamp)

	case messaging.TypeCancelNotifications:
		// Only the pending fire is dropped; notifications on screen stay
		if msg.Tag == "" {
			w.logger.Info("pending notifications cancelled", "timers", w.timers.CancelAll())
			break
		}
		w.logger.Info("pending notification cancelled", "tag", msg.Tag, "found", w.timers.Cancel(msg.Tag))

	case messaging.TypeSyncNow:
		w.trigger(EventSync)

	case messaging.TypeSkipWaiting:
		w.cache.SkipWaiting()
		if w.cache.State() == cache.StateInstalled {
			return w.cache.Activate(ctx)
		}
	}
	return nil
}

// trigger dispatches kind in the background under the worker's context.
func (w *Worker) trigger(kind EventKind) {
	if w.ctx.Err() != nil {
		return
	}
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		_ = w.dispatcher.Dispatch(w.ctx, Event{Kind: kind, Time: w.now()})
	}()
}

// Lifecycle installs the current cache generation and activates it. When
// install fails the previous generation keeps serving.
func (w *Worker) Lifecycle(ctx context.Context) error {
	if err := w.dispatcher.Dispatch(ctx, Event{Kind: EventInstall, Time: w.now()}); err != nil {
		w.logger.Warn("install failed, earlier cache generation keeps serving", "error", err)
		return err
	}
	return w.dispatcher.Dispatch(ctx, Event{Kind: EventActivate, Time: w.now()})
}

// Run listens on the configured address and serves until ctx is cancelled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (w *Worker) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return w.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (w *Worker) Serve(ctx context.Context, ln net.Listener) error {
	w.logger.Info("starting worker",
		"http_addr", ln.Addr().String(),
		"origin", w.origin.String(),
		"cache", w.cache.Name(),
	)

	errCh := w.startServer(ln)
	w.startBackground()

	serverErr := w.waitForShutdownSignal(ctx, errCh)
	shutdownErr := w.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (w *Worker) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)
	go func() {
		w.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := w.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return errCh
}

// startBackground runs the lifecycle, the periodic tickers and the
// connectivity monitor.
func (w *Worker) startBackground() {
	w.bg.Add(3)
	go func() {
		defer w.bg.Done()
		_ = w.Lifecycle(w.ctx)
	}()
	go func() {
		defer w.bg.Done()
		w.monitor.Run(w.ctx)
	}()
	go func() {
		defer w.bg.Done()
		w.tick()
	}()
}

func (w *Worker) tick() {
	syncTicker := time.NewTicker(w.config.Sync.Interval)
	defer syncTicker.Stop()
	periodic := time.NewTicker(w.config.Notifications.PeriodicInterval)
	defer periodic.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-syncTicker.C:
			w.trigger(EventSync)
		case <-periodic.C:
			w.trigger(EventPeriodicSync)
		}
	}
}

// waitForShutdownSignal waits for context cancellation or server error.
func (w *Worker) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		w.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		w.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown uses a fresh context because the caller's is already done.
func (w *Worker) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the server and background work and releases resources.
// Safe to call more than once.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() {
		w.logger.Info("shutting down worker")
		w.cancel()

		// Closing the registry ends open SSE streams so Shutdown doesn't wait on them
		w.windows.Close()

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", w.httpServer.Shutdown(ctx))

		done := make(chan struct{})
		go func() {
			w.bg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("background work: %w", ctx.Err()))
		}

		w.timers.CancelAll()
		w.sync.Close()
		errs = appendCloseError(errs, "store close", w.store.Close())
		errs = appendCloseError(errs, "cache close", w.storage.Close())

		w.shutdownErr = errors.Join(errs...)
	})
	return w.shutdownErr
}
