package domain

import "time"

// PopularVideo counts how often a video was saved across all users
type PopularVideo struct {
	VideoID     string    `json:"videoId"`
	SaveCount   int       `json:"saveCount"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// KeywordStat counts how often a keyword was searched
type KeywordStat struct {
	Keyword     string    `json:"keyword"`
	SearchCount int       `json:"searchCount"`
	LastUpdated time.Time `json:"lastUpdated"`
}
