package youtube

import "testing"

func TestNewDefaultsBinaryPaths(t *testing.T) {
	y := New("", "")
	if y.ytDlpPath != "yt-dlp" {
		t.Errorf("ytDlpPath = %q, want yt-dlp", y.ytDlpPath)
	}
	if y.ffmpegPath != "ffmpeg" {
		t.Errorf("ffmpegPath = %q, want ffmpeg", y.ffmpegPath)
	}
}

func TestProgressRegexExtractsPercentage(t *testing.T) {
	m := progressRegex.FindStringSubmatch("[download]  42.5% of 10.00MiB at 1.2MiB/s ETA 00:05")
	if len(m) < 2 {
		t.Fatal("expected a percentage match")
	}
	if m[1] != "42.5" {
		t.Errorf("matched percentage = %q, want 42.5", m[1])
	}
}
