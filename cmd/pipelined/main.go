// Command pipelined runs the conversion pipeline: the stage workers, the
// Job Manager, the Recovery Service and the HTTP Surface, wired together
// the way the teacher's cmd/server wires config, storage and server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"video-pipeline/internal/adapter/download"
	"video-pipeline/internal/adapter/media"
	"video-pipeline/internal/adapter/objectstore"
	"video-pipeline/internal/adapter/validate"
	"video-pipeline/internal/adapter/youtube"
	"video-pipeline/internal/config"
	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/pipeline"
	"video-pipeline/internal/recovery"
	"video-pipeline/internal/server"
	"video-pipeline/internal/store"
	"video-pipeline/internal/throttle"
	"video-pipeline/internal/workspace"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	configManager := config.NewManager()
	cfg, err := configManager.Load(os.Getenv("PIPELINE_CONFIG_DIR"))
	if err != nil {
		log.Fatal().Err(err).Msg("error loading configuration")
	}
	logger := configManager.GetLogger()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening job store")
	}
	defer st.Close()

	ws, err := workspace.New(cfg.Workspace.Root, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error initializing workspace")
	}

	events := eventlog.New(st, logger)
	events.Start()
	defer events.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	objStore, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("error initializing object store")
	}

	downloader, err := download.New(cfg.Downloader, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("error initializing downloader")
	}

	var analyzer pipeline.AudioAnalyzer
	if bin := os.Getenv("PIPELINE_BEATDETECT_BIN"); bin != "" {
		analyzer = media.NewBeatDetector(bin)
	}

	gate := throttle.New(cfg.Throttle.HighWatermark, time.Duration(cfg.Throttle.MaxWaitSeconds)*time.Second)
	gate.Start(ctx)
	defer gate.Stop()

	scope := &pipeline.Scope{
		Store:     st,
		Events:    events,
		Workspace: ws,
		Throttle:  gate,
		Channels:  pipeline.NewChannels(),
		Config:    cfg,
		Log:       logger,
		Adapters: pipeline.Adapters{
			Downloader:     downloader,
			ObjectStore:    objStore,
			Transcoder:     media.New(os.Getenv("PIPELINE_FFPROBE_BIN"), os.Getenv("PIPELINE_FFMPEG_BIN")),
			AudioAnalyzer:  analyzer,
			FrameExtractor: media.New(os.Getenv("PIPELINE_FFPROBE_BIN"), os.Getenv("PIPELINE_FFMPEG_BIN")),
			UrlValidator:   validate.New(cfg.Validation),
			Youtube:        youtube.New(os.Getenv("PIPELINE_YTDLP_BIN"), os.Getenv("PIPELINE_FFMPEG_BIN")),
		},
	}

	pipeline.StartDownloadWorkers(ctx, scope, cfg.Performance.MaxConcurrentDownloads)
	pipeline.StartYoutubeWorkers(ctx, scope, cfg.Performance.MaxConcurrentYoutubeDownloads)
	pipeline.StartTranscodeWorkers(ctx, scope, cfg.Performance.MaxConcurrentConversions)
	pipeline.StartAudioAnalyzeWorkers(ctx, scope, cfg.Performance.MaxConcurrentAudioAnalyses)
	pipeline.StartKeyframeWorkers(ctx, scope, cfg.Performance.MaxConcurrentKeyframeExtractions)
	pipeline.StartUploadWorkers(ctx, scope, cfg.Performance.MaxConcurrentUploads)

	manager := pipeline.NewManager(scope)

	recoverySvc := recovery.New(
		scope,
		time.Duration(cfg.Performance.RecoveryCheckIntervalMinutes)*time.Minute,
		time.Duration(cfg.Performance.RecoveryStaleThresholdMinutes)*time.Minute,
		cfg.Performance.RecoveryMaxAttempts,
		time.Duration(cfg.Performance.LogCleanupIntervalHours)*time.Hour,
		cfg.Performance.LogRetentionDays,
	)
	recoverySvc.Start(ctx)
	defer recoverySvc.Stop()

	cleanupSvc := workspace.NewCleanupService(ws, cfg.Performance, logger)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	srv := server.New(cfg, manager, recoverySvc, st, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("error starting API server")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	cancel()
	if err := srv.Stop(); err != nil {
		logger.Error().Err(err).Msg("error stopping API server")
	}
}
