package domain

import "time"

// RecipeFields is the structured part produced by the extraction model
type RecipeFields struct {
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Tags        []string `json:"tags"`
}

// Normalize replaces missing lists with empty ones.
func (f RecipeFields) Normalize() RecipeFields {
	if f.Ingredients == nil {
		f.Ingredients = []string{}
	}
	if f.Steps == nil {
		f.Steps = []string{}
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
	return f
}

// Recipe is an extracted recipe together with the video it came from
type Recipe struct {
	VideoID      string   `json:"videoId"`
	VideoTitle   string   `json:"videoTitle"`
	VideoURL     string   `json:"videoUrl"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	Ingredients  []string `json:"ingredients"`
	Steps        []string `json:"steps"`
	Tags         []string `json:"tags"`
}

// SavedRecipe is a recipe persisted for a user
type SavedRecipe struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Recipe    Recipe    `json:"recipe"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExtractRequest is the body of a recipe extraction request
type ExtractRequest struct {
	VideoURL string `json:"videoUrl" binding:"required"`
}
