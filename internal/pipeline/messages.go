package pipeline

import "video-pipeline/internal/store"

// DownloadMsg enters the Download channel: a job claiming Pending → Downloading.
type DownloadMsg struct {
	JobID    string
	VideoURL string
}

// YoutubeMsg enters the YoutubeDownload channel.
type YoutubeMsg struct {
	JobID    string
	VideoURL string
}

// ConversionMsg carries a downloaded video into the Transcode worker.
type ConversionMsg struct {
	JobID     string
	VideoPath string
	VideoHash string
}

// AudioAnalysisMsg carries a transcoded MP3 (plus the source video, kept
// alive for the Keyframe stage) into the AudioAnalyze worker.
type AudioAnalysisMsg struct {
	JobID     string
	Mp3Path   string
	VideoPath string
	VideoHash string
}

// KeyframeMsg carries both media files into the Keyframe worker.
type KeyframeMsg struct {
	JobID     string
	Mp3Path   string
	VideoPath string
	VideoHash string
}

// UploadMsg carries the fully-processed artifacts into the Upload worker.
type UploadMsg struct {
	JobID     string
	Mp3Path   string
	VideoPath string
	VideoHash string
	Keyframes []store.Keyframe
}
