// cabled is the development channel server. It speaks the cable wire
// protocol over a single /cable endpoint and broadcasts performed messages
// between subscribed connections.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cablekit/cablekit/pkg/config"
	"github.com/cablekit/cablekit/pkg/logging"
	"github.com/cablekit/cablekit/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	listenAddr := flag.String("listen", "", "listen address, overrides the config")
	token := flag.String("token", "", "require this token on subscribe commands")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			os.Stderr.WriteString(e.Error() + "\n")
		}
		os.Exit(1)
	}

	level := zapcore.LevelEnabler(zapcore.InfoLevel)
	if *debug {
		level = zapcore.DebugLevel
	}
	logger, err := logging.NewColoredLogger(level, cfg.Logging.Colors)
	if err != nil {
		fatal("failed to initialize logger", err)
	}

	opts := server.Options{
		Logger:       logger,
		PingInterval: cfg.Server.PingInterval,
	}
	if *token != "" {
		required := *token
		opts.Authorize = func(identifier, got string) bool { return got == required }
	}

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.New(opts).Router(),
	}

	go func() {
		logger.ComponentInfo(logging.ComponentServer, "cable server starting",
			zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ComponentError(logging.ComponentServer, "HTTP server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.ComponentInfo(logging.ComponentServer, "Shutting down cable server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.ComponentError(logging.ComponentServer, "HTTP server shutdown error", zap.Error(err))
	}
	logger.ComponentInfo(logging.ComponentServer, "Shutdown complete")
}

func fatal(msg string, err error) {
	os.Stderr.WriteString(msg + ": " + err.Error() + "\n")
	os.Exit(1)
}
