package domain

// Video is the metadata shown on search results and detail screens
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoURL     string `json:"videoUrl"`
	ChannelTitle string `json:"channelTitle"`
}

// WatchURL returns the canonical YouTube watch URL for a video ID
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
