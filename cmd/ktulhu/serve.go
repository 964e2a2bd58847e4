package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ktulhu/internal/common/fsutil"
	"ktulhu/internal/config"
	"ktulhu/internal/httpapi"
	"ktulhu/internal/reasoning"
	"ktulhu/internal/registry"
	"ktulhu/internal/router"
	"ktulhu/internal/runtime"
	"ktulhu/internal/service"
	"ktulhu/internal/store"
	"ktulhu/internal/worker"
	"ktulhu/pkg/types"
)

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ktulhu",
		Short:         "Local text generation service over llama.cpp models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load a model and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Config file (.yaml/.json/.toml); flags override it")
	cmd.Flags().String("addr", envOr("KTULHU_ADDR", ":8080"), "HTTP listen address")
	cmd.Flags().String("model", "", "GGUF model file to load (default: first file in --models-dir)")
	cmd.Flags().String("models-dir", "~/models/llm", "Directory to scan for *.gguf model files")
	cmd.Flags().String("store", "", "SQLite file for conversation state (empty keeps it in memory)")
	cmd.Flags().Int("queue-depth", 8, "Maximum queued generations before backpressure")
	cmd.Flags().Int("ctx-length", 0, "Model context window (0 uses the default)")
	cmd.Flags().Int("max-tokens", 0, "Maximum new tokens per generation (0 uses the default)")
	cmd.Flags().Int("gpu-layers", 0, "Layers to offload to GPU (-1 offloads everything)")
	cmd.Flags().Int("threads", 0, "Inference threads (0 uses all CPUs)")
	cmd.Flags().String("log-level", envOr("KTULHU_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	return cmd
}

// resolveConfig loads the optional config file and applies flag overrides
// for any flag the user set explicitly.
func resolveConfig(cmd *cobra.Command, cfgPath string) (config.Config, error) {
	var cfg config.Config
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	stringInto := func(name string, dst *string) {
		if flags.Changed(name) || *dst == "" {
			if v, err := flags.GetString(name); err == nil && (flags.Changed(name) || v != "") {
				*dst = v
			}
		}
	}
	intInto := func(name string, dst *int) {
		if flags.Changed(name) || *dst == 0 {
			if v, err := flags.GetInt(name); err == nil && (flags.Changed(name) || v != 0) {
				*dst = v
			}
		}
	}
	stringInto("addr", &cfg.Addr)
	stringInto("model", &cfg.ModelPath)
	stringInto("models-dir", &cfg.ModelsDir)
	stringInto("store", &cfg.StorePath)
	stringInto("log-level", &cfg.LogLevel)
	intInto("queue-depth", &cfg.QueueDepth)
	intInto("ctx-length", &cfg.CtxLength)
	intInto("max-tokens", &cfg.MaxTokens)
	intInto("gpu-layers", &cfg.GPULayers)
	intInto("threads", &cfg.Threads)
	return cfg, nil
}

func serve(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	var models []types.Model
	if cfg.ModelsDir != "" {
		loaded, err := registry.LoadDir(cfg.ModelsDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("model scan failed")
		} else {
			models = loaded
		}
	}
	modelPath := cfg.ModelPath
	if modelPath == "" && len(models) > 0 {
		modelPath = models[0].Path
	}
	if modelPath == "" {
		log.Fatal().Msg("no model: set --model or put a .gguf file in --models-dir")
	}
	if expanded, err := fsutil.ExpandHome(modelPath); err == nil {
		modelPath = expanded
	}
	if !fsutil.PathExists(modelPath) {
		log.Fatal().Str("model", modelPath).Msg("model file does not exist")
	}

	engine, err := runtime.Load(runtime.Config{
		ModelPath:   modelPath,
		CtxLength:   cfg.CtxLength,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
		GPULayers:   cfg.GPULayers,
		Threads:     cfg.Threads,
		BatchSize:   cfg.BatchSize,
		RepeatGuard: cfg.RepeatGuard,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Str("model", modelPath).Msg("model load failed")
	}
	defer engine.Close()

	var st store.Store
	if cfg.StorePath != "" {
		sq, err := store.OpenSQLite(cfg.StorePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("open store")
		}
		defer sq.Close()
		st = sq
	} else {
		st = store.NewMemoryStore()
	}

	w := worker.New(engine, st, cfg.QueueDepth, log)
	defer w.Close()
	// First generation pays lazy-init costs; do it before traffic arrives.
	if err := w.Enqueue(context.Background(), worker.WarmupJob()); err != nil {
		log.Warn().Err(err).Msg("warmup enqueue failed")
	}

	rt := router.New(router.NewLexicalModel(), router.Config{
		SupportThreshold:    cfg.SupportThreshold,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	}, log)
	svc := service.New(engine, w, st, rt, reasoning.NewPipeline(engine, log), models, service.Config{ModelPath: modelPath}, log)

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetGenerateTimeoutSeconds(cfg.GenerateTimeoutSec)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(svc)}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("model", modelPath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
