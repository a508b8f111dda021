package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/pawhaven/pawchat/internal/api"
	"github.com/pawhaven/pawchat/internal/config"
	"github.com/pawhaven/pawchat/internal/database"
	"github.com/pawhaven/pawchat/internal/server"
	"github.com/pawhaven/pawchat/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	databaseURL    string
	signingSecret  string
	skipMigrations bool
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[pawchat] ", log.LstdFlags)

	env, err := config.FromEnv()
	if err != nil {
		logger.Fatal("env:", err)
	}

	flag.StringVar(&addr, "addr", env.ServerAddr, "server address")
	flag.StringVar(&databaseURL, "database-url", env.DatabaseURL, "postgres connection URL")
	flag.StringVar(&signingSecret, "signing-secret", env.SigningSecret, "base64 encoded token signing secret")
	flag.BoolVar(&skipMigrations, "skip-migrations", false, "do not apply schema migrations on startup")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = env.AllowedOrigins
	}

	cfg, err := config.NewConfig(addr, databaseURL, signingSecret, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	if !skipMigrations {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("migrations:", err)
		}
	}

	db, err := database.NewPgChatRepository(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	registry := server.NewRegistry(logger)
	broadcaster := server.NewBroadcaster(logger, registry, statsUpdater)
	chatService := server.NewChatService(logger, db, broadcaster, statsUpdater)
	resolver := server.NewResolver(logger, db, cfg.SigningKey)
	sessionHandler := server.NewSessionHandler(logger, resolver, registry, chatService, statsUpdater)

	app := api.NewChatApp(mux, logger, db, resolver, chatService, sessionHandler, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
