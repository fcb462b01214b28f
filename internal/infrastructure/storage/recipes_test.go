package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipetube/backend/internal/domain"
)

func testRecipe(id, userID, videoID string) *domain.SavedRecipe {
	return &domain.SavedRecipe{
		ID:     id,
		UserID: userID,
		Recipe: domain.Recipe{
			VideoID:      videoID,
			VideoTitle:   "Title " + videoID,
			VideoURL:     domain.WatchURL(videoID),
			ThumbnailURL: "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg",
			Ingredients:  []string{"rice", "water"},
			Steps:        []string{"wash", "cook"},
			Tags:         nil,
		},
		CreatedAt: testNow,
	}
}

func TestRecipeRepository_InsertAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewRecipeRepository(db)
	ctx := context.Background()
	createTestUser(t, db, "u1", "cook@example.com")

	older := testRecipe("r1", "u1", "vid00000001")
	newer := testRecipe("r2", "u1", "vid00000002")
	newer.CreatedAt = testNow.Add(time.Minute)
	require.NoError(t, repo.Insert(ctx, older, 5))
	require.NoError(t, repo.Insert(ctx, newer, 5))

	recipes, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, "r2", recipes[0].ID)
	assert.Equal(t, "r1", recipes[1].ID)
	assert.Equal(t, []string{"rice", "water"}, recipes[1].Recipe.Ingredients)
	assert.Equal(t, []string{}, recipes[1].Recipe.Tags)
	assert.Equal(t, "u1", recipes[1].UserID)

	other, err := repo.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.NotNil(t, other)
}

func TestRecipeRepository_Duplicate(t *testing.T) {
	db := newTestDB(t)
	repo := NewRecipeRepository(db)
	ctx := context.Background()
	createTestUser(t, db, "u1", "cook@example.com")

	require.NoError(t, repo.Insert(ctx, testRecipe("r1", "u1", "vid00000001"), 5))
	err := repo.Insert(ctx, testRecipe("r2", "u1", "vid00000001"), 5)
	assert.ErrorIs(t, err, domain.ErrDuplicateRecipe)

	// another user may save the same video
	createTestUser(t, db, "u2", "other@example.com")
	assert.NoError(t, repo.Insert(ctx, testRecipe("r3", "u2", "vid00000001"), 5))
}

func TestRecipeRepository_Limit(t *testing.T) {
	db := newTestDB(t)
	repo := NewRecipeRepository(db)
	ctx := context.Background()
	createTestUser(t, db, "u1", "cook@example.com")

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, testRecipe(fmt.Sprintf("r%d", i), "u1", fmt.Sprintf("vid%08d", i)), 5))
	}

	err := repo.Insert(ctx, testRecipe("r6", "u1", "vid00000099"), 5)
	var quotaErr *domain.QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, domain.QuotaSave, quotaErr.Kind)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	count, err := repo.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestRecipeRepository_ConcurrentInsertsRespectLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewRecipeRepository(db)
	ctx := context.Background()
	createTestUser(t, db, "u1", "cook@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Insert(ctx, testRecipe(fmt.Sprintf("r%d", i), "u1", fmt.Sprintf("vid%08d", i)), 5)
		}(i)
	}
	wg.Wait()

	count, err := repo.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestRecipeRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewRecipeRepository(db)
	ctx := context.Background()
	createTestUser(t, db, "u1", "cook@example.com")

	require.NoError(t, repo.Insert(ctx, testRecipe("r1", "u1", "vid00000001"), 5))
	require.NoError(t, repo.Delete(ctx, "u1", "vid00000001"))
	assert.ErrorIs(t, repo.Delete(ctx, "u1", "vid00000001"), domain.ErrNotFound)
}
