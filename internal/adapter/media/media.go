// Package media implements pipeline.Transcoder and pipeline.FrameExtractor
// as thin os/exec wrappers around ffprobe/ffmpeg, grounded on the pack's
// ffmpeg tooling: link270-shrinkray/internal/ffmpeg/probe.go's JSON-probe
// shape and transcode.go's exec.CommandContext + stderr-capture pattern.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"video-pipeline/internal/pipeline"
)

// FFmpeg wraps ffprobe/ffmpeg binaries found on PATH (or at configured
// paths) to extract media metadata, transcode audio, and grab keyframes.
type FFmpeg struct {
	ffprobePath string
	ffmpegPath  string
}

// New builds an FFmpeg adapter. Empty paths default to "ffprobe"/"ffmpeg"
// resolved via PATH.
func New(ffprobePath, ffmpegPath string) *FFmpeg {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpeg{ffprobePath: ffprobePath, ffmpegPath: ffmpegPath}
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
}

// GetMediaInfo probes path with ffprobe and returns duration and stream
// counts.
func (f *FFmpeg) GetMediaInfo(ctx context.Context, path string) (pipeline.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return pipeline.MediaInfo{}, ffmpegErr("ffprobe", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return pipeline.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := pipeline.MediaInfo{}
	if probe.Format.Duration != "" {
		secs, _ := strconv.ParseFloat(probe.Format.Duration, 64)
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "audio":
			info.AudioStreams++
		case "video":
			info.VideoStreams++
		}
	}
	return info, nil
}

// ExtractAudioToMp3 transcodes the audio track of srcPath to an MP3 at
// destPath, at the given constant bitrate.
func (f *FFmpeg) ExtractAudioToMp3(ctx context.Context, srcPath, destPath string, bitrateKbps int, progress pipeline.ProgressFunc) error {
	if bitrateKbps <= 0 {
		bitrateKbps = 192
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-i", srcPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", bitrateKbps),
		destPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg audio extraction failed: %w: %s", err, stderr.String())
	}
	if progress != nil {
		progress(1.0)
	}
	return nil
}

// ExtractFrame grabs a single JPEG frame at timestamp from videoPath.
func (f *FFmpeg) ExtractFrame(ctx context.Context, videoPath string, timestamp time.Duration, destPath string, quality int) error {
	if quality <= 0 {
		quality = 2
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-ss", formatTimestamp(timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(quality),
		destPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg frame extraction failed: %w: %s", err, stderr.String())
	}
	return nil
}

func formatTimestamp(d time.Duration) string {
	total := d.Seconds()
	h := int(total) / 3600
	m := (int(total) % 3600) / 60
	s := total - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

func ffmpegErr(tool string, err error) error {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return fmt.Errorf("%s failed: %s", tool, string(exitErr.Stderr))
	}
	return fmt.Errorf("%s failed: %w", tool, err)
}
