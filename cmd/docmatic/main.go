package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/RodenPaul86/docmatic/api/swagger"
	"github.com/RodenPaul86/docmatic/internal/handler"
	internalmiddleware "github.com/RodenPaul86/docmatic/internal/middleware"
	"github.com/RodenPaul86/docmatic/internal/ocr/tesseract"
	"github.com/RodenPaul86/docmatic/internal/repository"
	"github.com/RodenPaul86/docmatic/internal/service"
	"github.com/RodenPaul86/docmatic/internal/summarizer"
	"github.com/RodenPaul86/docmatic/internal/summarizer/vertex"
	"github.com/RodenPaul86/docmatic/pkg/cache"
	"github.com/RodenPaul86/docmatic/pkg/config"
	"github.com/RodenPaul86/docmatic/pkg/database"
	"github.com/RodenPaul86/docmatic/pkg/export"
	"github.com/RodenPaul86/docmatic/pkg/imaging"
	"github.com/RodenPaul86/docmatic/pkg/jobs"
	"github.com/RodenPaul86/docmatic/pkg/logger"
	corsmiddleware "github.com/RodenPaul86/docmatic/pkg/middleware/cors"
	reqidmiddleware "github.com/RodenPaul86/docmatic/pkg/middleware/requestid"
	"github.com/RodenPaul86/docmatic/pkg/pdfimport"
	"github.com/RodenPaul86/docmatic/pkg/storage"
)

// @title DocMatic API
// @version 1.0.0
// @description Document capture, library, export and summarization service
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
	logr.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, widget snapshots go to file only", zap.Error(err))
	}

	store, err := storage.NewLocalStorage(cfg.Export.ScratchDir)
	if err != nil {
		return fmt.Errorf("init scratch storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)

	metrics := service.NewMetricsService()
	oracle := service.NewStaticEntitlement(cfg.Entitlement.Premium)
	documentRepo := repository.NewDocumentRepository(db)
	snapshots := repository.NewSnapshotRepository(redisClient, cfg.Widget.RedisKey, cfg.Widget.Channel, logr)
	defer snapshots.Close() //nolint:errcheck

	quota := service.NewQuotaService(documentRepo, oracle, service.QuotaConfig{
		FreeLimit: cfg.Quota.FreeLimit,
		Location:  cfg.Quota.Location(),
	}, logr)
	if err := quota.Sync(ctx); err != nil {
		return fmt.Errorf("sync quota: %w", err)
	}

	gate := service.NewLockGate(service.NewPasscodeAuthenticator(cfg.Lock.PasscodeHash), logr)
	widgets := service.NewWidgetService(documentRepo, snapshots, store, service.WidgetConfig{SnapshotFile: cfg.Widget.SnapshotFile}, metrics, logr)
	documents := service.NewDocumentService(documentRepo, quota, gate, widgets, validator.New(), metrics, logr, service.DocumentConfig{
		DeletionDelay: cfg.Documents.DeletionDelay,
	})

	codec := imaging.NewJPEGCodec()
	compositor, err := imaging.NewCompositor(cfg.Watermark.Alpha, cfg.Watermark.FontScale)
	if err != nil {
		return fmt.Errorf("init watermark: %w", err)
	}
	watermark := imaging.WatermarkOptions{Text: cfg.Watermark.Text, Logo: loadLogo(cfg.Watermark.LogoPath, codec, logr)}
	assembler := service.NewPageAssembler(codec, compositor, oracle, watermark, metrics, logr)
	rasterizer, err := pdfimport.NewRasterizer(cfg.Capture.Workers)
	if err != nil {
		return fmt.Errorf("init pdf import: %w", err)
	}
	defer func() {
		if err := rasterizer.Close(); err != nil {
			logr.Warn("failed to stop pdf rasterizer", zap.Error(err))
		}
	}()
	captures := service.NewCaptureService(assembler, documents, quota, codec, rasterizer, service.CaptureConfig{
		ScanQuality:   cfg.Capture.ScanQuality,
		ImportQuality: cfg.Capture.ImportQuality,
		ImportDPI:     cfg.Capture.ImportDPI,
	}, metrics, logr)

	exports := service.NewExportService(documents, store, signer, service.ExportConfig{
		APIPrefix:   cfg.APIPrefix,
		ArtifactTTL: cfg.Export.ArtifactTTL,
	}, metrics, logr, export.NewPDFRenderer(config.ProductName), export.NewCSVExporter())

	presets, err := summarizer.LoadPresets()
	if err != nil {
		return err
	}
	presets = presets.Override(cfg.Summary.Length, cfg.Summary.TargetWords)
	var summaryBackend service.Summarizer
	if cfg.Summary.Enabled {
		backend, err := vertex.New(ctx, cfg.Summary.ProjectID, cfg.Summary.Region, cfg.Summary.Model)
		if err != nil {
			logr.Warn("summarizer unavailable", zap.Error(err))
		} else {
			defer backend.Close() //nolint:errcheck
			summaryBackend = backend
		}
	}
	summaries := service.NewSummaryService(documents, tesseract.New(cfg.OCR.Languages), summaryBackend, presets, metrics, logr)

	sessions := service.NewSessionService(gate, quota, service.SessionConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	}, logr)

	captureQueue := jobs.NewQueue("captures", captures.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Capture.Workers,
		BufferSize: cfg.Capture.QueueSize,
		NoRetry:    true,
		Logger:     logr,
	})
	deletionQueue := jobs.NewQueue("deletions", documents.HandleJob, jobs.QueueConfig{Workers: 1, Logger: logr})
	captures.UseQueue(captureQueue)
	documents.UseScheduler(deletionQueue)

	development := cfg.Env != config.EnvProduction
	if !development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.RegisterRoutes(r, handler.RouterConfig{APIPrefix: cfg.APIPrefix, Development: development}, handler.Handlers{
		Sessions:  handler.NewSessionHandler(sessions),
		Documents: handler.NewDocumentHandler(documents),
		Captures:  handler.NewCaptureHandler(captures, cfg.Capture.MaxUploadBytes, cfg.APIPrefix),
		Exports:   handler.NewExportHandler(exports),
		Summaries: handler.NewSummaryHandler(summaries),
		Account:   handler.NewAccountHandler(quota, widgets, oracle),
		Metrics:   handler.NewMetricsHandler(metrics, db),
		Session:   internalmiddleware.Session(sessions),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	captureQueue.Start(gctx)
	deletionQueue.Start(gctx)

	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		captureQueue.Stop()
		deletionQueue.Stop()
		if flushErr := documents.FlushDeletions(shutdownCtx); flushErr != nil {
			logr.Error("pending deletions not flushed", zap.Error(flushErr))
		}
		return err
	})

	g.Go(func() error {
		runCleanup(gctx, exports, gate, cfg.Export.CleanupInterval, logr)
		return nil
	})

	return g.Wait()
}

// runCleanup removes expired export artifacts until ctx ends.
func runCleanup(ctx context.Context, exports *service.ExportService, gate *service.LockGate, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := gate.PruneExpired(); pruned > 0 {
				logr.Info("expired sessions pruned", zap.Int("count", pruned))
			}
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}

func loadLogo(path string, codec imaging.Codec, logr *zap.Logger) image.Image {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logr.Warn("watermark logo unreadable", zap.String("path", path), zap.Error(err))
		return nil
	}
	img, err := codec.Decode(data)
	if err != nil {
		logr.Warn("watermark logo undecodable", zap.String("path", path), zap.Error(err))
		return nil
	}
	return img
}
