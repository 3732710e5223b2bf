package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/sports-etl/internal/api"
	"github.com/andresuchdata/sports-etl/internal/config"
	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/service"
	"github.com/andresuchdata/sports-etl/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
)

const (
	fetchLogFile = "fetch_data.log"
	loadLogFile  = "load_data.log"
	probeLogFile = "test_minio.log"
	allLogFile   = "pipeline.log"
	serveLogFile = "serve.log"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("sportsetl failed")
		os.Exit(1)
	}
}

// newStrictFlag is declared on the app and on every stage command so both
// "sportsetl --strict fetch" and "sportsetl fetch --strict" work.
func newStrictFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "strict",
		Usage:   "Exit with status 1 when a stage fails",
		EnvVars: []string{"PIPELINE_STRICT_EXIT"},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sportsetl",
		Usage: "Stage TheSportsDB leagues in object storage and load them into PostgreSQL",
		Flags: []cli.Flag{
			newStrictFlag(),
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "Fetch leagues from the source API and upload them to the bucket",
				Flags:  []cli.Flag{newStrictFlag()},
				Action: runStages(fetchLogFile, "Sports data fetch and upload completed. Check logs for details.", domain.StageFetch),
			},
			{
				Name:   "load",
				Usage:  "Download the staged leagues and insert them into the sports_data table",
				Flags:  []cli.Flag{newStrictFlag()},
				Action: runStages(loadLogFile, "Sports data load into PostgreSQL completed. Check logs for details.", domain.StageLoad),
			},
			{
				Name:   "probe",
				Usage:  "Round-trip a test file through the bucket",
				Flags:  []cli.Flag{newStrictFlag()},
				Action: runStages(probeLogFile, "MinIO connection test completed. Check logs for details.", domain.StageProbe),
			},
			{
				Name:   "all",
				Usage:  "Run fetch, then load",
				Flags:  []cli.Flag{newStrictFlag()},
				Action: runStages(allLogFile, "Sports data pipeline completed. Check logs for details.", domain.StageFetch, domain.StageLoad),
			},
			{
				Name:  "serve",
				Usage: "Serve the control API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Usage:   "HTTP listen port",
						EnvVars: []string{"SERVER_PORT"},
					},
				},
				Action: serve,
			},
		},
	}
}

// runStages returns an action that runs stages in order, prints done and
// exits successfully unless strict mode is on and a stage failed.
func runStages(logFile, done string, stages ...domain.Stage) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, ok := execute(c, logFile, stages...)
		fmt.Println(done)

		if ok || !strictExit(c, cfg) {
			return nil
		}
		return cli.Exit("", 1)
	}
}

func execute(c *cli.Context, logFile string, stages ...domain.Stage) (*config.Config, bool) {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to load configuration")
		return nil, false
	}

	if err := logger.Setup(cfg.App.LogDir, logFile); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to open log file, logging to console only")
	}
	defer logger.Close()
	logger.SetLevel(logLevel(c, cfg))

	p, err := service.NewPipeline(c.Context, cfg, logger.Log)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to initialise pipeline")
		return cfg, false
	}
	defer p.Close()

	reports, err := p.TriggerSequence(c.Context, stages...)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to run pipeline")
		return cfg, false
	}

	return cfg, allSucceeded(reports, len(stages))
}

func allSucceeded(reports []*domain.StageReport, want int) bool {
	if len(reports) != want {
		return false
	}
	for _, r := range reports {
		if !r.Succeeded() {
			return false
		}
	}
	return true
}

// strictExit checks every context in the lineage: a command level flag
// shadows the app level one in c.Bool.
func strictExit(c *cli.Context, cfg *config.Config) bool {
	for _, cc := range c.Lineage() {
		if cc.Bool("strict") {
			return true
		}
	}
	return cfg != nil && cfg.Pipeline.StrictExit
}

func logLevel(c *cli.Context, cfg *config.Config) string {
	if lvl := c.String("log-level"); lvl != "" {
		return lvl
	}
	return cfg.App.LogLevel
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Setup(cfg.App.LogDir, serveLogFile); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to open log file, logging to console only")
	}
	defer logger.Close()
	logger.SetLevel(logLevel(c, cfg))

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	p, err := service.NewPipeline(c.Context, cfg, logger.Log)
	if err != nil {
		return fmt.Errorf("failed to initialise pipeline: %w", err)
	}
	defer p.Close()

	port := cfg.Server.Port
	if c.String("port") != "" {
		port = c.String("port")
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      api.NewRouter(&api.Services{RunService: p.RunService}, cfg.Server.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
