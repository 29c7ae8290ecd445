package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"video-pipeline/internal/config"
	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
	"video-pipeline/internal/throttle"
	"video-pipeline/internal/workspace"
)

// fakeDownloader writes a fixed payload to destPath and always succeeds.
type fakeDownloader struct{ payload []byte }

func (f *fakeDownloader) Download(ctx context.Context, url, destPath string, progress ProgressFunc) error {
	progress(1.0)
	return os.WriteFile(destPath, f.payload, 0644)
}

// cacheMissObjectStore always misses on TryDownload and always succeeds on
// Upload, returning a deterministic fake CDN URL.
type cacheMissObjectStore struct{}

func (cacheMissObjectStore) TryDownload(ctx context.Context, url, destPath string) (bool, error) {
	return false, nil
}
func (cacheMissObjectStore) Upload(ctx context.Context, path, contentType string) (string, error) {
	return "https://cdn.example/" + filepath.Base(path), nil
}

type fakeTranscoder struct{ audioStreams int }

func (f *fakeTranscoder) GetMediaInfo(ctx context.Context, path string) (MediaInfo, error) {
	return MediaInfo{Duration: 30 * time.Second, AudioStreams: f.audioStreams, VideoStreams: 1}, nil
}
func (f *fakeTranscoder) ExtractAudioToMp3(ctx context.Context, src, dest string, bitrate int, progress ProgressFunc) error {
	progress(1.0)
	return os.WriteFile(dest, []byte("fake-mp3"), 0644)
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) AnalyzeFromFile(ctx context.Context, mp3Path string) (*AudioAnalysisResult, error) {
	return &AudioAnalysisResult{BPM: 120, DetectedBeatCount: 4}, nil
}

type fakeFrameExtractor struct{}

func (fakeFrameExtractor) ExtractFrame(ctx context.Context, videoPath string, ts time.Duration, dest string, quality int) error {
	return os.WriteFile(dest, []byte("jpeg"), 0644)
}

type fakeValidator struct{}

func (fakeValidator) IsSyntaxValid(url string) bool { return url != "" }
func (fakeValidator) IsContentAcceptable(ctx context.Context, url string) (bool, error) {
	return true, nil
}
func (fakeValidator) IsYoutube(url string) bool {
	return len(url) > 11 && url[len(url)-11:] == "youtube.com"
}

type fakeYoutube struct{}

func (fakeYoutube) DownloadAndExtract(ctx context.Context, url, destMp3Path string, progress ProgressFunc) error {
	progress(1.0)
	return os.WriteFile(destMp3Path, []byte("yt-mp3"), 0644)
}

func newTestScope(t *testing.T) *Scope {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ws, err := workspace.New(filepath.Join(t.TempDir(), "ws"), zerolog.Nop())
	if err != nil {
		t.Fatalf("workspace.New() error = %v", err)
	}

	events := eventlog.New(st, zerolog.Nop())
	events.Start()
	t.Cleanup(events.Stop)

	cfg := &config.Config{}
	cfg.Keyframe.FrameCount = 2
	cfg.Keyframe.Quality = 2

	return &Scope{
		Store:     st,
		Events:    events,
		Workspace: ws,
		Throttle:  throttle.New(0.85, 30*time.Second),
		Channels:  NewChannels(),
		Config:    cfg,
		Log:       zerolog.Nop(),
		Adapters: Adapters{
			Downloader:     &fakeDownloader{payload: []byte("video-bytes")},
			ObjectStore:    cacheMissObjectStore{},
			Transcoder:     &fakeTranscoder{audioStreams: 1},
			AudioAnalyzer:  fakeAnalyzer{},
			FrameExtractor: fakeFrameExtractor{},
			UrlValidator:   fakeValidator{},
			Youtube:        fakeYoutube{},
		},
	}
}
