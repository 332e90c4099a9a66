package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Fennzo/CourtScrapper/internal/api"
	"github.com/Fennzo/CourtScrapper/internal/browser"
	"github.com/Fennzo/CourtScrapper/internal/captcha"
	"github.com/Fennzo/CourtScrapper/internal/clock/system"
	"github.com/Fennzo/CourtScrapper/internal/config"
	"github.com/Fennzo/CourtScrapper/internal/courts"
	"github.com/Fennzo/CourtScrapper/internal/export"
	"github.com/Fennzo/CourtScrapper/internal/extract"
	"github.com/Fennzo/CourtScrapper/internal/notify"
	"github.com/Fennzo/CourtScrapper/internal/pool"
	"github.com/Fennzo/CourtScrapper/internal/probe"
	"github.com/Fennzo/CourtScrapper/internal/session"
	"github.com/Fennzo/CourtScrapper/internal/storage/gcs"
	"github.com/Fennzo/CourtScrapper/internal/storage/postgres"
)

// newScrapeCmd creates the 'scrape' subcommand, the main entry point: probe
// the portal, fan sessions out over the attorney list, aggregate, export,
// and ship the results.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Runs the attorney case scrape",
		Long: `Runs one scraping session per configured attorney with bounded
concurrency, collects extracted case records, exports them locally, and
optionally persists them to Postgres, uploads the artifact to GCS, and
publishes a completion event.`,
		RunE: runScrapeCommand,
	}
}

// runState is the mutable view the ops server reads.
type runState struct {
	mu      sync.Mutex
	status  api.RunStatus
	summary courts.RunSummary
}

func (s *runState) set(state string) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
}

func (s *runState) setSummary(summary courts.RunSummary) {
	s.mu.Lock()
	s.summary = summary
	s.status.Summary = &s.summary
	s.mu.Unlock()
}

func (s *runState) snapshot() api.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx := cmd.Context()
	clk := system.New()
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("scrape run starting", zap.Int("attorneys", len(cfg.Search.Attorneys)))

	state := &runState{status: api.RunStatus{RunID: runID, State: "starting", StartedAt: clk.Now()}}

	var ops *api.Server
	if cfg.Server.Enabled {
		ops = api.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), state.snapshot, logger)
		go func() {
			if serveErr := ops.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.Error("ops server failed", zap.Error(serveErr))
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutErr := ops.Shutdown(shutCtx); shutErr != nil {
				logger.Warn("ops server shutdown failed", zap.Error(shutErr))
			}
		}()
	}

	state.set("probing")
	prober := probe.New(probe.Config{UserAgent: cfg.Browser.UserAgent}, logger)
	if _, err := prober.Check(ctx, cfg.Portal.BaseURL); err != nil {
		return fmt.Errorf("portal not usable: %w", err)
	}

	factory, err := browser.NewFactory(browser.Config{
		BaseURL:           cfg.Portal.BaseURL,
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.Browser.NavTimeout(),
		ActionDelay:       cfg.Browser.ActionDelay(),
	}, logger)
	if err != nil {
		return fmt.Errorf("init browser: %w", err)
	}
	defer factory.Close()

	var captchaClient *captcha.TwoCaptchaClient
	if cfg.Captcha.UseService && cfg.Captcha.APIKey != "" {
		captchaClient = captcha.NewTwoCaptchaClient(cfg.Captcha.APIKey)
	}
	resolver := captcha.NewResolver(captchaClient, captcha.Config{
		UseService:    cfg.Captcha.UseService,
		MinBalance:    cfg.Captcha.MinBalance,
		ManualTimeout: cfg.Captcha.ManualTimeout(),
	}, logger)

	sessionCfg := session.Config{
		MinCaseYear:      cfg.Search.MinCaseYear,
		CaseType:         cfg.Search.CaseType,
		ChargeKeywords:   cfg.Search.ChargeKeywords,
		PageSize:         cfg.Search.ItemsPerPage,
		EnableRecovery:   cfg.Recovery.Enabled,
		RecoveryAttempts: cfg.Recovery.MaxAttempts,
		RecoveryDelay:    cfg.Recovery.RecoveryDelay(),
	}
	newSession := func(index int, attorney courts.AttorneyQuery) pool.SessionRunner {
		return session.New(index, attorney, factory, resolver, extract.CaseDetails, sessionCfg, logger)
	}

	state.set("scraping")
	results := pool.New(cfg.Pool.MaxWorkers, newSession, logger).Run(ctx, cfg.Search.Attorneys)

	records := pool.Aggregate(results)
	summary := pool.Summarize(runID, results)
	state.setSummary(summary)
	state.set("exporting")
	logger.Info("scrape finished",
		zap.Int("attorneys", summary.Attorneys),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("records", summary.TotalRecords),
	)
	for _, res := range results {
		if !res.Success {
			logger.Warn("attorney session failed",
				zap.String("attorney", res.Attorney.FullName()),
				zap.Int("partial_records", len(res.Records)),
				zap.Error(res.Err),
			)
		}
	}

	exporter := export.New(cfg.Output.Dir, clk, logger)
	artifact, err := exporter.Export(export.ParseFormat(cfg.Output.Format), records)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	// Downstream shipping is best-effort once the local export exists; a
	// failed upload must not discard a completed scrape.
	shipResults(ctx, cfg, logger, runID, artifact, records, summary, clk)

	state.set("done")
	if summary.Attorneys > 0 && summary.Succeeded == 0 {
		return fmt.Errorf("all %d attorney sessions failed", summary.Attorneys)
	}
	return nil
}

// shipResults persists, uploads, and announces the run. Each leg is skipped
// when unconfigured and logged when it fails.
func shipResults(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
	runID string,
	artifact string,
	records []courts.CaseRecord,
	summary courts.RunSummary,
	clk courts.Clock,
) {
	if cfg.DB.DSN != "" && len(records) > 0 {
		store, err := postgres.NewCaseStore(ctx, postgres.CaseStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			logger.Error("postgres unavailable, records not persisted", zap.Error(err))
		} else {
			defer store.Close()
			if err := store.SaveRecords(ctx, runID, records); err != nil {
				logger.Error("persist records failed", zap.Error(err))
			} else {
				logger.Info("records persisted", zap.Int("records", len(records)))
			}
		}
	}

	var artifactURI string
	if cfg.Storage.GCSBucket != "" && artifact != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Error("gcs client init failed", zap.Error(err))
		} else {
			defer client.Close()
			blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
			if err != nil {
				logger.Error("gcs store init failed", zap.Error(err))
			} else if artifactURI, err = blobs.UploadFile(ctx, runID, artifact); err != nil {
				logger.Error("artifact upload failed", zap.Error(err))
			} else {
				logger.Info("artifact uploaded", zap.String("uri", artifactURI))
			}
		}
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Error("pubsub client init failed", zap.Error(err))
			return
		}
		defer client.Close()
		publisher, err := notify.New(client, cfg.PubSub.TopicName)
		if err != nil {
			logger.Error("pubsub publisher init failed", zap.Error(err))
			return
		}
		defer publisher.Stop()
		event := notify.RunEvent{
			RunID:        summary.RunID,
			Attorneys:    summary.Attorneys,
			Succeeded:    summary.Succeeded,
			Failed:       summary.Failed,
			TotalRecords: summary.TotalRecords,
			ArtifactURI:  artifactURI,
			FinishedAt:   clk.Now().Format(time.RFC3339),
		}
		if id, err := publisher.Publish(ctx, event); err != nil {
			logger.Error("publish run event failed", zap.Error(err))
		} else {
			logger.Info("run event published", zap.String("message_id", id))
		}
	}
}
