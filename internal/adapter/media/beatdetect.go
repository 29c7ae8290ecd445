package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"video-pipeline/internal/pipeline"
)

// BeatDetector analyzes an MP3's tempo and beat grid by shelling out to an
// external beat-detection CLI that emits a single JSON object on stdout.
// Deliberately a separate, optional adapter: the pipeline's AudioAnalyze
// stage already degrades to pass-through when no analyzer is configured or
// when this command fails repeatedly.
type BeatDetector struct {
	binPath string
}

// NewBeatDetector builds a BeatDetector invoking binPath (e.g. a bundled
// "beatdetect" executable) for each analysis.
func NewBeatDetector(binPath string) *BeatDetector {
	return &BeatDetector{binPath: binPath}
}

type beatDetectOutput struct {
	BPM               float64   `json:"bpm"`
	Confidence        float64   `json:"confidence"`
	BeatTimestamps    []float64 `json:"beat_timestamps"`
	Intervals         []float64 `json:"intervals"`
	DetectedBeatCount int       `json:"detected_beat_count"`
	Regularity        float64   `json:"regularity"`
}

// AnalyzeFromFile runs the beat-detection binary against mp3Path.
func (b *BeatDetector) AnalyzeFromFile(ctx context.Context, mp3Path string) (*pipeline.AudioAnalysisResult, error) {
	cmd := exec.CommandContext(ctx, b.binPath, "--format", "json", mp3Path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("beat detection failed: %w: %s", err, stderr.String())
	}

	var out beatDetectOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse beat detection output: %w", err)
	}

	return &pipeline.AudioAnalysisResult{
		BPM:               out.BPM,
		Confidence:        out.Confidence,
		BeatTimestamps:    out.BeatTimestamps,
		Intervals:         out.Intervals,
		DetectedBeatCount: out.DetectedBeatCount,
		Regularity:        out.Regularity,
	}, nil
}
