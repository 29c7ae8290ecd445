package pipeline

// channelBuffer is generous rather than unbounded: Go has no native
// unbounded channel, and backpressure is meant to come from bounded worker
// parallelism per stage, not from channel capacity (see Channels).
const channelBuffer = 4096

// Channels is the set of six stage channels that move work between worker
// pools. Producer of each channel is the previous stage, or the Job Manager
// for the two entrance channels (Download, YoutubeDownload).
type Channels struct {
	Download            chan DownloadMsg
	YoutubeDownload      chan YoutubeMsg
	Conversion           chan ConversionMsg
	AudioAnalysis        chan AudioAnalysisMsg
	KeyframeExtraction   chan KeyframeMsg
	Upload               chan UploadMsg
}

// NewChannels allocates the six stage channels.
func NewChannels() *Channels {
	return &Channels{
		Download:           make(chan DownloadMsg, channelBuffer),
		YoutubeDownload:    make(chan YoutubeMsg, channelBuffer),
		Conversion:         make(chan ConversionMsg, channelBuffer),
		AudioAnalysis:      make(chan AudioAnalysisMsg, channelBuffer),
		KeyframeExtraction: make(chan KeyframeMsg, channelBuffer),
		Upload:             make(chan UploadMsg, channelBuffer),
	}
}
