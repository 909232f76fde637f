// Package main is the entry point for the playerd daemon.
// playerd is a headless playback client for a soundvault media server: it
// streams tracks and radio stations, keeps the play queue and playback
// preferences, and integrates with the OS media session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/soundvault/playerd/internal/api"
	"github.com/soundvault/playerd/internal/audio"
	"github.com/soundvault/playerd/internal/catalog"
	"github.com/soundvault/playerd/internal/config"
	"github.com/soundvault/playerd/internal/lyrics"
	"github.com/soundvault/playerd/internal/media"
	"github.com/soundvault/playerd/internal/player"
	"github.com/soundvault/playerd/internal/realtime"
)

// Version is set at build time via ldflags
var Version = "dev"

// Flags holds command line configuration
type Flags struct {
	ServerURL string
	ConfigDir string
	Verbose   bool
}

func main() {
	flags := parseFlags()

	if flags.Verbose {
		log.Printf("playerd version %s starting...", Version)
	}

	// Create context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() *Flags {
	// .env is optional; environment beats file values either way
	godotenv.Load()

	flags := &Flags{}

	flag.StringVar(&flags.ServerURL, "server", "", "Media server URL (default: from config or PLAYERD_SERVER_URL)")
	flag.StringVar(&flags.ConfigDir, "config", "", "Configuration directory (default: ~/.config/playerd)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	if flags.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		flags.ConfigDir = homeDir + "/.config/playerd"
	}

	return flags
}

func run(ctx context.Context, flags *Flags) error {
	if err := os.MkdirAll(flags.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configMgr := config.NewManager(flags.ConfigDir)
	if err := configMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configMgr.Get()

	serverURL := cfg.ServerURL
	if flags.ServerURL != "" {
		serverURL = flags.ServerURL
	}
	if serverURL == "" {
		return fmt.Errorf("no server URL configured (use -server, PLAYERD_SERVER_URL or the config file)")
	}

	client := api.NewClient(serverURL)

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = flags.ConfigDir
	}

	// Local catalog cache keeps radio and state rehydration working when
	// the server is briefly unreachable
	cache, err := catalog.Open(cacheDir)
	if err != nil {
		return fmt.Errorf("failed to open catalog cache: %w", err)
	}
	defer cache.Close()
	cachedCatalog := catalog.NewCached(client, cache)

	chain := audio.NewChain()
	chain.SetTargetLoudness(cfg.Audio.TargetLUFS)
	transport, err := audio.NewPlayer(chain)
	if err != nil {
		return fmt.Errorf("failed to initialize audio transport: %w", err)
	}
	defer transport.Close()

	lyricCache := lyrics.NewCache(client)

	engine := player.New(transport, cachedCatalog, client, client, chain, lyricCache, player.Options{
		NormalizationEnabled: cfg.Audio.NormalizationEnabled,
		LimiterEnabled:       cfg.Audio.LimiterEnabled,
		LimiterCeilingDB:     cfg.Audio.LimiterCeilingDB,
		SnapshotInterval:     time.Duration(cfg.Behavior.SnapshotIntervalSec) * time.Second,
		LyricPrefetchCount:   cfg.Behavior.LyricPrefetchCount,
		DefaultVolume:        cfg.Audio.DefaultVolume,
	})

	// OS media session integration (platform-specific)
	mediaSession, err := media.NewSession()
	if err != nil {
		log.Printf("[MEDIA] Warning: failed to initialize media session: %v", err)
		log.Printf("[MEDIA] Continuing without OS media integration")
		mediaSession = media.NewNoOpSession()
	} else {
		log.Printf("[MEDIA] Media session initialized successfully")
	}
	defer mediaSession.Close()
	media.NewBridge(engine, mediaSession)

	// Rehydrate the last saved state; nothing starts playing until asked
	if err := engine.LoadState(ctx); err != nil {
		log.Printf("[ENGINE] No saved state restored: %v", err)
	} else if cfg.Behavior.ResumeOnStart {
		if err := engine.Play(ctx); err != nil {
			log.Printf("[ENGINE] Failed to resume playback: %v", err)
		}
	}

	// Server push channel: media keys and library change notifications
	rt := realtime.NewClient(serverURL, engine)

	// Post-chain band frames feed the server's event channel so attached
	// UIs can render a visualizer
	transport.SetAudioCallback(rt.SendBands)

	rt.SetOnLibraryChanged(func() {
		go func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := cachedCatalog.ListTracks(refreshCtx); err != nil {
				log.Printf("[CATALOG] Refresh after library change failed: %v", err)
			}
		}()
	})
	go rt.Run(ctx)

	// The engine owns the periodic state snapshot; Run blocks until the
	// context is cancelled and performs a final save on the way out
	engine.Run(ctx)

	log.Printf("playerd stopped")
	return nil
}
