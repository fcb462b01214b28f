package youtube

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/recipetube/backend/internal/domain"
)

// Data API v3 response shapes, trimmed to the fields we read

type thumbnail struct {
	URL string `json:"url"`
}

type snippet struct {
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	ChannelTitle string               `json:"channelTitle"`
	Thumbnails   map[string]thumbnail `json:"thumbnails"`
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet snippet `json:"snippet"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type videoItem struct {
	ID      string  `json:"id"`
	Snippet snippet `json:"snippet"`
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type commentThreadItem struct {
	Snippet struct {
		TopLevelComment struct {
			Snippet struct {
				TextDisplay  string `json:"textDisplay"`
				TextOriginal string `json:"textOriginal"`
			} `json:"snippet"`
		} `json:"topLevelComment"`
	} `json:"snippet"`
}

type commentThreadResponse struct {
	Items []commentThreadItem `json:"items"`
}

// thumbnail sizes in order of preference
var thumbnailSizes = []string{"high", "medium", "default"}

var (
	videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	videoIDRE      = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/|live/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	lineBreakRE    = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// mapVideo converts a snippet into our domain Video model
func mapVideo(id string, s snippet) domain.Video {
	return domain.Video{
		ID:           id,
		Title:        s.Title,
		Description:  s.Description,
		ThumbnailURL: pickThumbnail(s.Thumbnails),
		VideoURL:     domain.WatchURL(id),
		ChannelTitle: s.ChannelTitle,
	}
}

func pickThumbnail(thumbs map[string]thumbnail) string {
	for _, size := range thumbnailSizes {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

func mapSearchItems(items []searchItem) []domain.Video {
	videos := make([]domain.Video, 0, len(items))
	for _, item := range items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, mapVideo(item.ID.VideoID, item.Snippet))
	}
	return videos
}

func mapVideoItems(items []videoItem) []domain.Video {
	videos := make([]domain.Video, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		videos = append(videos, mapVideo(item.ID, item.Snippet))
	}
	return videos
}

func mapComments(items []commentThreadItem) []string {
	comments := make([]string, 0, len(items))
	for _, item := range items {
		top := item.Snippet.TopLevelComment.Snippet
		text := StripHTML(top.TextDisplay)
		if text == "" {
			text = strings.TrimSpace(top.TextOriginal)
		}
		if text != "" {
			comments = append(comments, text)
		}
	}
	return comments
}

// StripHTML turns comment markup into plain text, keeping line breaks
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}
	fragment = lineBreakRE.ReplaceAllString(fragment, "\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}

// ExtractVideoID pulls the 11-character id out of a watch URL, a youtu.be
// link, a shorts/embed/live URL or a bare id.
func ExtractVideoID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	if videoIDPattern.MatchString(input) {
		return input, true
	}

	if u, err := url.Parse(input); err == nil && u.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		host = strings.TrimPrefix(host, "m.")
		switch host {
		case "youtube.com", "music.youtube.com":
			if v := u.Query().Get("v"); videoIDPattern.MatchString(v) {
				return v, true
			}
		case "youtu.be":
			if id := strings.Trim(u.Path, "/"); videoIDPattern.MatchString(id) {
				return id, true
			}
		}
	}

	if m := videoIDRE.FindStringSubmatch(input); len(m) >= 2 {
		return m[1], true
	}
	return "", false
}
