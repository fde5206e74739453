// Package app wires the clipperd components together: store, extractor,
// resolver, cutter, downloaders, stream registry, watchers, janitor, and the
// clip web server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/OdielDomanie/clipper-bot/internal/config"
	"github.com/OdielDomanie/clipper-bot/internal/download"
	"github.com/OdielDomanie/clipper-bot/internal/extractor"
	"github.com/OdielDomanie/clipper-bot/internal/janitor"
	"github.com/OdielDomanie/clipper-bot/internal/kvstore"
	"github.com/OdielDomanie/clipper-bot/internal/media"
	"github.com/OdielDomanie/clipper-bot/internal/models"
	"github.com/OdielDomanie/clipper-bot/internal/observability"
	"github.com/OdielDomanie/clipper-bot/internal/resolver"
	"github.com/OdielDomanie/clipper-bot/internal/stream"
	"github.com/OdielDomanie/clipper-bot/internal/watch"
	"github.com/OdielDomanie/clipper-bot/internal/web"
)

// Notifier delivers going-live notices to a chat surface. The default
// implementation only logs; a chat frontend replaces it.
type Notifier interface {
	SendEnabled(ctx context.Context, chnID uint64, s *stream.Stream) error
}

type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) SendEnabled(_ context.Context, chnID uint64, s *stream.Stream) error {
	n.logger.Info("clipping enabled",
		slog.Uint64("channel_id", chnID),
		slog.String("uid", string(s.UID)),
		slog.String("title", s.Title()),
	)
	return nil
}

// App holds every long-lived component of the service.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *kvstore.Store
	Extractor *extractor.Extractor
	Holodex   *extractor.HolodexClient
	Resolver  *resolver.Resolver
	Cutter    *media.Cutter
	Past      *download.PastDownloader
	Registry  *stream.Registry
	Counter   *stream.DownloadCounter
	Sharer    *watch.SharerTable
	Janitor   *janitor.Janitor
	Web       *web.Server
	Notifier  Notifier
}

// New builds the full component graph from configuration. Nothing runs yet;
// call Run.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{cfg.Storage.DownloadDir, cfg.Storage.ClipDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	store, err := kvstore.Open(cfg.Database, observability.WithComponent(logger, "kvstore"))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	ext := extractor.New(cfg.Platform.YTDLPath, cfg.Storage.CookieFile,
		observability.WithComponent(logger, "extractor"))
	holodex := extractor.NewHolodexClient(cfg.Platform.HolodexToken,
		observability.WithComponent(logger, "holodex"))

	var dir *resolver.Directory
	if cfg.Platform.DirectoryFile != "" {
		dir, err = resolver.LoadDirectory(cfg.Platform.DirectoryFile)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("loading channel directory: %w", err)
		}
	}
	res := resolver.New(ext, dir, observability.WithComponent(logger, "resolver"))

	cutter := media.NewCutter(cfg.Platform.FFmpegPath,
		observability.WithComponent(logger, "cutter"))
	past := download.NewPastDownloader(cfg.Platform.YTDLPath, cfg.Storage.CookieFile, ext,
		observability.WithComponent(logger, "download"))

	env := &stream.Env{
		Cutter:      cutter,
		Past:        past,
		Dir:         dir,
		DownloadDir: cfg.Storage.DownloadDir,
		ClipDir:     cfg.Storage.ClipDir,
		YTDLPath:    cfg.Platform.YTDLPath,
		CookieFile:  cfg.Storage.CookieFile,
		Logger:      observability.WithComponent(logger, "stream"),
		RefineStart: holodex.StartActual,
	}
	registry := stream.NewRegistry(store, env)
	counter := stream.NewDownloadCounter(observability.WithComponent(logger, "counter"))

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Extractor: ext,
		Holodex:   holodex,
		Resolver:  res,
		Cutter:    cutter,
		Past:      past,
		Registry:  registry,
		Counter:   counter,
		Notifier:  logNotifier{logger: observability.WithComponent(logger, "notify")},
	}

	watchCfg := watch.Config{
		Fetcher:  ext,
		Registry: registry,
		Counter:  counter,
		Backoff:  ext.Backoff,
		Period:   cfg.Watch.PollPeriod.Duration(),
		Logger:   observability.WithComponent(logger, "watch"),
	}
	a.Sharer = watch.NewSharerTable(watchCfg, store, a.bindHook)

	a.Janitor = janitor.New(janitor.Config{
		DownloadDir:    cfg.Storage.DownloadDir,
		ClipDir:        cfg.Storage.ClipDir,
		DownloadBudget: cfg.Storage.MaxDownloadSize.Bytes(),
		ClipBudget:     cfg.Storage.MaxClipSize.Bytes(),
		Period:         cfg.Watch.JanitorPeriod.Duration(),
		Logger:         observability.WithComponent(logger, "janitor"),
	}, registry)

	a.Web = web.NewServer(cfg.Server, cfg.Storage.ClipDir, store,
		observability.WithComponent(logger, "web"))

	return a, nil
}

// bindHook turns a persisted hook description into the executable action.
func (a *App) bindHook(chnID uint64, h models.Hook) (watch.HookFunc, error) {
	switch h := h.(type) {
	case models.AddToCapturedStreams:
		return func(_ context.Context, s *stream.Stream) error {
			priority := 0.0
			if s.IsAlias(h.Name) {
				priority = 1
			}
			return a.Store.AddCapturedStream(h.Key, priority, s.UID)
		}, nil
	case models.SendEnabledMsg:
		return func(ctx context.Context, s *stream.Stream) error {
			return a.Notifier.SendEnabled(ctx, h.ChannelID, s)
		}, nil
	default:
		return nil, fmt.Errorf("unknown hook type %q", h.Tag())
	}
}

// Run restores persisted state, starts the background components, and serves
// until the context ends.
func (a *App) Run(ctx context.Context) error {
	n, err := a.Registry.Load()
	if err != nil {
		return err
	}
	a.Logger.Info("restored streams", slog.Int("count", n))

	n, err = a.Sharer.Resume(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info("resumed registrations", slog.Int("count", n))

	if err := a.Janitor.Start(); err != nil {
		return err
	}
	defer a.Janitor.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Web.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx := context.Background()
	if err := a.Web.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("web shutdown", slog.Any("error", err))
	}
	return nil
}

// Close releases the durable store.
func (a *App) Close() error {
	return a.Store.Close()
}
