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

	"github.com/blogloom/realtime/internal/api"
	"github.com/blogloom/realtime/internal/config"
	"github.com/blogloom/realtime/internal/realtime"
	"github.com/blogloom/realtime/internal/stats"
	"github.com/blogloom/realtime/internal/store"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

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
	mongoURI       string
	mongoDatabase  string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&mongoURI, "mongo-uri", "mongodb://localhost:27017", "mongodb connection string")
	flag.StringVar(&mongoDatabase, "mongo-db", "blogloom", "mongodb database name")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[realtime] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, mongoURI, mongoDatabase, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelConnect()

	repo, err := store.NewMongoRepository(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("store:", err)
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			logger.Println("store close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	rtServer, err := realtime.NewServer(logger, repo, statsUpdater)
	if err != nil {
		logger.Fatal("new realtime server:", err)
	}

	srv := api.NewApp(mux, logger, rtServer, repo, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go rtServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
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

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down realtime server...")
	if err := rtServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("realtime server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
