package usecase

import (
	"time"

	"github.com/recipetube/backend/internal/domain"
)

// Fixed per-account limits
const (
	DailySearchLimit = 5
	SavedRecipeLimit = 5
)

// Today formats now as a calendar date in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(domain.DateLayout)
}

// effectiveSearchCount treats a count from another day as zero.
func effectiveSearchCount(state domain.QuotaState, today string) int {
	if state.LastSearchDate != today {
		return 0
	}
	return state.DailySearchCount
}

// CanSearch reports whether one more search is allowed today
func CanSearch(state domain.QuotaState, today string) bool {
	return effectiveSearchCount(state, today) < DailySearchLimit
}

// RecordSearch returns the state after one search today.
// Callers must check CanSearch first.
func RecordSearch(state domain.QuotaState, today string) domain.QuotaState {
	if state.LastSearchDate != today {
		return domain.QuotaState{DailySearchCount: 1, LastSearchDate: today}
	}
	return domain.QuotaState{DailySearchCount: state.DailySearchCount + 1, LastSearchDate: today}
}

// RemainingSearches is always within [0, DailySearchLimit] for non-negative counts
func RemainingSearches(state domain.QuotaState, today string) int {
	return max(0, DailySearchLimit-effectiveSearchCount(state, today))
}

// CanSave reports whether another recipe fits in the saved set
func CanSave(savedCount int) bool {
	return savedCount < SavedRecipeLimit
}

// RemainingSaves returns the number of free save slots
func RemainingSaves(savedCount int) int {
	return max(0, SavedRecipeLimit-savedCount)
}
