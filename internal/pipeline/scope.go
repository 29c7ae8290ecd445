package pipeline

import (
	"github.com/rs/zerolog"

	"video-pipeline/internal/config"
	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
	"video-pipeline/internal/throttle"
	"video-pipeline/internal/workspace"
)

// Adapters bundles the external-collaborator interfaces a worker needs.
// AudioAnalyzer is optional: a nil AudioAnalyzer degrades the AudioAnalyze
// worker to pass-through. Youtube has no fallback: YouTube-class URLs are
// always routed to the YoutubeDownload channel, whose worker calls it.
type Adapters struct {
	Downloader     Downloader
	ObjectStore    ObjectStore
	Transcoder     Transcoder
	AudioAnalyzer  AudioAnalyzer
	FrameExtractor FrameExtractor
	UrlValidator   UrlValidator
	Youtube        YoutubeDownloader
}

// Scope is the explicit per-message dependency bundle every worker
// iteration carries: the source's request-scoped DI container replaced by a
// value passed into each loop iteration, per the design note on scoped
// dependency lifetime.
type Scope struct {
	Store     *store.Store
	Events    *eventlog.Logger
	Workspace *workspace.Workspace
	Throttle  *throttle.Gate
	Channels  *Channels
	Adapters  Adapters
	Config    *config.Config
	Log       zerolog.Logger
}
