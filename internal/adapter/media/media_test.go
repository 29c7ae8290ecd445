package media

import (
	"testing"
	"time"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{90 * time.Second, "00:01:30.000"},
		{3661500 * time.Millisecond, "01:01:01.500"},
	}
	for _, c := range cases {
		if got := formatTimestamp(c.d); got != c.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestNewDefaultsBinaryPaths(t *testing.T) {
	f := New("", "")
	if f.ffprobePath != "ffprobe" {
		t.Errorf("ffprobePath = %q, want ffprobe", f.ffprobePath)
	}
	if f.ffmpegPath != "ffmpeg" {
		t.Errorf("ffmpegPath = %q, want ffmpeg", f.ffmpegPath)
	}
}
