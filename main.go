package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"subaddon/api"
	"subaddon/config"
	"subaddon/handlers"
	"subaddon/internal/addon"
	"subaddon/internal/aggregator"
	"subaddon/internal/cachestore"
	"subaddon/internal/orchestrator"
	"subaddon/internal/provider"
	"subaddon/internal/translate"
	"subaddon/utils"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("subaddon starting...")

	configPath := os.Getenv("SUBADDON_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if err := os.MkdirAll(settings.CacheDirectory, 0o755); err != nil {
		log.Fatalf("failed to create cache directory: %v", err)
	}
	store := cachestore.New(afero.NewOsFs(), settings.CacheDirectory)
	if err := store.EnsureDirs(); err != nil {
		log.Fatalf("failed to initialize cache store: %v", err)
	}
	store.Sweep()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			store.Sweep()
		}
	}()

	registry := provider.NewRegistry()
	registry.Reload(buildProviders(settings))
	agg := aggregator.New(registry)

	var client translate.Client
	if settings.Gemini.APIKey != "" {
		geminiClient, err := translate.NewGeminiClient(context.Background(), settings.Gemini.APIKey)
		if err != nil {
			log.Fatalf("failed to initialize gemini client: %v", err)
		}
		client = geminiClient
	} else {
		log.Printf("warning: no gemini api key configured; translation requests will fail")
		client = noTranslationClient{}
	}
	engine := translate.New(client)

	orch := orchestrator.New(store, registry, engine)

	facade := addon.New(agg, orch, registry, addon.Options{
		PublicBaseURL:         settings.Server.PublicBaseURL,
		TargetLanguages:       settings.TargetLanguages,
		EnableSyncAction:      settings.EnableSyncAction,
		EnableTranslateAction: settings.EnableTranslateAction,
	})

	addonHandler := handlers.NewAddonHandler(facade, handlers.AddonHandlerOptions{
		MinSubtitleSizeBytes: settings.MinSubtitleSizeBytes,
		TranslationModel:     settings.Gemini.Model,
		BypassCacheEnabled:   settings.BypassCache,
	})

	r := utils.NewRouter()
	api.Register(r, addonHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			reloaded, err := cfgManager.Load()
			if err != nil {
				log.Printf("SIGHUP reload: failed to read settings: %v", err)
				continue
			}
			registry.Reload(buildProviders(reloaded))
			log.Println("SIGHUP reload: provider registry refreshed from settings.json")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// buildProviders constructs the enabled provider set from config. Called
// once at startup and again on every SIGHUP reload, so registry.Reload can
// swap in providers built from the settings currently on disk.
func buildProviders(settings config.Settings) []provider.Provider {
	timeout := time.Duration(settings.SubtitleProviderTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = provider.DefaultSearchTimeout
	}

	var providers []provider.Provider
	if cfg, ok := settings.SubtitleProviders["opensubtitles"]; ok && cfg.Enabled {
		providers = append(providers, provider.NewOpenSubtitlesProvider(provider.OpenSubtitlesConfig{
			APIKey:    cfg.APIKey,
			Username:  cfg.Username,
			Password:  cfg.Password,
			UserAgent: "subaddon v1",
			Timeout:   timeout,
		}, nil))
	}
	if cfg, ok := settings.SubtitleProviders["subdl"]; ok && cfg.Enabled {
		providers = append(providers, provider.NewSubDLProvider(provider.SubDLConfig{
			APIKey:  cfg.APIKey,
			Timeout: timeout,
		}, nil))
	}
	if cfg, ok := settings.SubtitleProviders["subsource"]; ok && cfg.Enabled {
		providers = append(providers, provider.NewSubSourceProvider(provider.SubSourceConfig{
			Timeout: timeout,
		}, nil))
	}

	return providers
}

// noTranslationClient is used when no Gemini API key is configured; every
// call fails so the orchestrator stores a classified error entry instead
// of panicking on a nil client.
type noTranslationClient struct{}

func (noTranslationClient) Generate(ctx context.Context, model, prompt string) (translate.GenerateResult, error) {
	return translate.GenerateResult{}, fmt.Errorf("translate: no gemini api key configured")
}

func (noTranslationClient) GenerateStream(ctx context.Context, model, prompt string, onDelta func(string)) (translate.GenerateResult, error) {
	return translate.GenerateResult{}, fmt.Errorf("translate: no gemini api key configured")
}

func (noTranslationClient) OutputTokenCap(model string) int { return 4096 }
