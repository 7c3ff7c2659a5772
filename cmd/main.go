package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dirupload/internal/api"
	"dirupload/internal/config"
	fileutil "dirupload/internal/file"
	"dirupload/internal/nftstorage"
	"dirupload/internal/upload"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to YAML config")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	cfg.Token, err = config.LoadToken()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment")
	}
	if cfg.Token == "" {
		log.Warn().Str("env", config.TokenEnv).Msg("no nft.storage token configured; uploads will be rejected")
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	uploads := buildUploadManager(cfg)
	router := setupRouter()
	wireAPI(router, uploads)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	uploads.SetBaseContext(baseCtx)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		log.Info().Int("port", cfg.Port).Str("gateway", cfg.GatewayHost).Msg("directory uploader listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()

	gracefulShutdown(srv, baseCancel, uploads, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	return r
}

func buildUploadManager(cfg config.Config) *upload.Manager {
	client := nftstorage.NewClient(nftstorage.Options{
		BaseURL: cfg.APIURL,
		Token:   cfg.Token,
	})
	m := upload.NewManager(upload.Options{
		DataDir:       cfg.DataDir,
		GatewayHost:   cfg.GatewayHost,
		UploadTimeout: cfg.UploadTimeout,
		Storer:        client,
	})

	if err := m.LoadFromDisk(); err != nil {
		log.Warn().Err(err).Msg("restore sessions failed")
	}
	return m
}

func wireAPI(router *gin.Engine, uploads *upload.Manager) {
	apiHandler := api.NewAPI(uploads)
	apiHandler.RegisterRoutes(router)
	apiHandler.RegisterUIRoutes(router)
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, uploads *upload.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	if !uploads.WaitAll(ctx) {
		log.Warn().Msg("in-flight uploads did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
