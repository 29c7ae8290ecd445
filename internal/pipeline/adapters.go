package pipeline

import (
	"context"
	"time"
)

// MediaInfo is the probe result the Transcode and Keyframe workers need
// before invoking the transcoder/extractor.
type MediaInfo struct {
	Duration     time.Duration
	AudioStreams int
	VideoStreams int
}

// ProgressFunc reports fractional progress (0..1) from a long-running
// adapter call back to the worker, which throttles it into progress events.
type ProgressFunc func(fraction float64)

// Downloader streams a remote URL to a local file. Implementations classify
// failures into DownloadError so the worker can apply the stage retry
// policy.
type Downloader interface {
	Download(ctx context.Context, url, destPath string, progress ProgressFunc) error
}

// ObjectStore is the upload/lookup surface the Download and Upload workers
// use. TryDownload is a cheap existence+fetch check keyed by the original
// video URL (not the content hash) the Download worker uses before pulling
// from the origin.
type ObjectStore interface {
	TryDownload(ctx context.Context, url, destPath string) (bool, error)
	Upload(ctx context.Context, path, contentType string) (string, error)
}

// Transcoder extracts an audio track from a video file.
type Transcoder interface {
	GetMediaInfo(ctx context.Context, path string) (MediaInfo, error)
	ExtractAudioToMp3(ctx context.Context, srcPath, destPath string, bitrateKbps int, progress ProgressFunc) error
}

// AudioAnalysisResult is the beat/tempo result surfaced to the store. It mirrors
// store.AudioAnalysis so adapters do not need to import the store package.
type AudioAnalysisResult struct {
	BPM               float64
	Confidence        float64
	BeatTimestamps    []float64
	Intervals         []float64
	DetectedBeatCount int
	Regularity        float64
}

// AudioAnalyzer is optional: a nil AudioAnalyzer degrades the AudioAnalyze
// worker to pass-through.
type AudioAnalyzer interface {
	AnalyzeFromFile(ctx context.Context, mp3Path string) (*AudioAnalysisResult, error)
}

// FrameExtractor samples a single frame from a video at a timestamp.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath string, timestamp time.Duration, destPath string, quality int) error
}

// UrlValidator performs intake-time URL vetting.
type UrlValidator interface {
	IsSyntaxValid(url string) bool
	IsContentAcceptable(ctx context.Context, url string) (bool, error)
	IsYoutube(url string) bool
}

// YoutubeDownloader is the one-step fetch+extract adapter for YouTube-class
// URLs: it produces an MP3 directly, with no intermediate video file kept.
type YoutubeDownloader interface {
	DownloadAndExtract(ctx context.Context, url, destMp3Path string, progress ProgressFunc) error
}
