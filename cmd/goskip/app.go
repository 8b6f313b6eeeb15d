package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvarorichard/goskip/internal/api"
	"github.com/alvarorichard/goskip/internal/cache"
	"github.com/alvarorichard/goskip/internal/config"
	"github.com/alvarorichard/goskip/internal/engine"
	"github.com/alvarorichard/goskip/internal/metrics"
	"github.com/alvarorichard/goskip/internal/notify"
	"github.com/alvarorichard/goskip/internal/player"
	"github.com/alvarorichard/goskip/internal/storage"
	"github.com/alvarorichard/goskip/internal/util"
	"github.com/alvarorichard/goskip/internal/version"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNoSocket is returned when there is neither a socket to attach to nor a target to play
var ErrNoSocket = errors.New("no mpv socket configured: pass -socket, set player.socket, or give a file to play")

type options struct {
	configPath string
	socket     string
	debug      bool
	clearCache bool
	yes        bool
	target     string
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, opts.debug)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Debug("starting goskip", "version", version.Version, "backend", cfg.Cache.Backend)

	if opts.clearCache {
		return clearCache(cfg, logger, opts.yes)
	}

	var timingCache api.Cache
	if cfg.Cache.Enabled {
		store, err := storage.Open(cfg.Cache.Backend, cfg.Cache.Path)
		if err != nil {
			return errors.Wrap(err, "opening timing cache")
		}
		defer store.Close()
		timingCache = newTimingCache(cfg, store, logger)
	}

	recorder := metrics.New()

	client := api.NewClient(api.ClientConfig{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: util.NewHTTPClient(0),
		Retry: api.RetryPolicy{
			MaxAttempts: cfg.API.Retries,
			BaseDelay:   cfg.API.RetryBaseDelay,
			Timeout:     cfg.API.Timeout,
		},
		Logger: logger,
	})
	provider := api.NewProvider(api.ProviderConfig{
		Source:        client,
		Cache:         timingCache,
		Observer:      recorder,
		TimePrecision: cfg.API.TimePrecision,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mpv, err := connect(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		Playback:       mpv,
		Notifier:       notify.Multi{mpv, notify.NewTerminal(os.Stdout)},
		Fetcher:        provider,
		Observer:       recorder,
		Logger:         logger,
		Cooldown:       cooldown(cfg.Skip.Cooldown),
		Delay:          cfg.Skip.Delay,
		Notify:         cfg.Skip.Notify,
		NotifyDuration: cfg.Skip.NotifyDuration,
		Sections:       cfg.Sections(),
		OutroFallback:  cfg.Skip.OutroFallback,
	})
	defer eng.Close()

	logger.Info("watching mpv", "socket", mpv.SocketPath())
	watcher := player.NewWatcher(mpv, eng, player.WatcherConfig{
		Interval: cfg.Player.PollInterval,
		Logger:   logger,
	})

	// the metrics endpoint lives exactly as long as the watcher
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return recorder.Serve(gCtx, cfg.Metrics.Listen, logger)
		})
	}
	g.Go(func() error {
		defer cancel()
		return watcher.Run(gCtx)
	})
	return g.Wait()
}

func newLogger(cfg *config.Config, debug bool) (*log.Logger, func(), error) {
	if cfg.Logging.File == "" {
		return util.NewLogger(os.Stderr, cfg.Logging.Level, debug), func() {}, nil
	}
	f, err := util.OpenLogFile(cfg.Logging.File)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening log file")
	}
	return util.NewLogger(f, cfg.Logging.Level, debug), func() { _ = f.Close() }, nil
}

func newTimingCache(cfg *config.Config, store storage.Storage, logger *log.Logger) *cache.TimingCache {
	return cache.New(cache.Options{
		MaxSize: cfg.Cache.MaxSize,
		Expiry:  cfg.Cache.Expiry,
		Durable: store,
		Logger:  logger,
	})
}

// cooldown maps the config value to the scheduler's: 0 in config disables it
func cooldown(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// connect attaches to a running mpv or launches one on the target
func connect(ctx context.Context, cfg *config.Config, opts options, logger *log.Logger) (*player.MPV, error) {
	socket := opts.socket
	if socket == "" {
		socket = cfg.Player.Socket
	}

	if opts.target != "" {
		proc, err := player.Launch(ctx, player.LaunchConfig{
			Command:    cfg.Player.Command,
			Args:       cfg.Player.Args,
			Target:     opts.target,
			SocketPath: socket,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return proc.MPV, nil
	}

	if socket == "" {
		return nil, ErrNoSocket
	}
	return player.NewMPV(socket, logger), nil
}

func clearCache(cfg *config.Config, logger *log.Logger, yes bool) error {
	if !yes {
		ok, err := confirmClear(cfg.Cache.Path)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("cache left untouched")
			return nil
		}
	}

	store, err := storage.Open(cfg.Cache.Backend, cfg.Cache.Path)
	if err != nil {
		return errors.Wrap(err, "opening timing cache")
	}
	defer store.Close()

	newTimingCache(cfg, store, logger).Clear()
	fmt.Fprintln(os.Stdout, util.Success("Skip timing cache cleared"))
	return nil
}

func confirmClear(path string) (bool, error) {
	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Remove all cached skip timings?").
				Description(path).
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.Wrap(err, "failed to show confirmation prompt")
	}
	return confirmed, nil
}
