package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/recipetube/backend/internal/domain"
)

// RecipeRepository stores saved recipes
type RecipeRepository struct {
	db *DB
}

// NewRecipeRepository creates a recipe repository
func NewRecipeRepository(db *DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// Insert stores a recipe while the user holds fewer than limit recipes.
// The count check and the insert are one statement, so concurrent saves
// cannot push a user past the limit.
func (r *RecipeRepository) Insert(ctx context.Context, recipe *domain.SavedRecipe, limit int) error {
	ingredients, err := encodeList(recipe.Recipe.Ingredients)
	if err != nil {
		return err
	}
	steps, err := encodeList(recipe.Recipe.Steps)
	if err != nil {
		return err
	}
	tags, err := encodeList(recipe.Recipe.Tags)
	if err != nil {
		return err
	}

	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		if r.db.driver == DriverPostgres {
			// serialize saves of the same user
			if _, err := tx.ExecContext(ctx, r.db.rebind(`SELECT id FROM users WHERE id = ? FOR UPDATE`), recipe.UserID); err != nil {
				return fmt.Errorf("lock user: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, r.db.rebind(
			`INSERT INTO saved_recipes
			   (id, user_id, video_id, video_title, video_url, thumbnail_url, ingredients, steps, tags, created_at)
			 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, CAST(? AS BIGINT)
			 WHERE (SELECT COUNT(*) FROM saved_recipes WHERE user_id = ?) < ?`),
			recipe.ID, recipe.UserID, recipe.Recipe.VideoID, recipe.Recipe.VideoTitle, recipe.Recipe.VideoURL,
			recipe.Recipe.ThumbnailURL, ingredients, steps, tags, toMillis(recipe.CreatedAt),
			recipe.UserID, limit)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRecipe
		}
		if err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}
		if affected(res) == 0 {
			return &domain.QuotaExceededError{Kind: domain.QuotaSave, Limit: limit}
		}
		return nil
	})
}

// List returns the user's recipes, newest first
func (r *RecipeRepository) List(ctx context.Context, userID string) ([]domain.SavedRecipe, error) {
	rows, err := r.db.query(ctx,
		`SELECT id, user_id, video_id, video_title, video_url, thumbnail_url, ingredients, steps, tags, created_at
		 FROM saved_recipes WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []domain.SavedRecipe{}
	for rows.Next() {
		var (
			sr                       domain.SavedRecipe
			ingredients, steps, tags string
			createdAt                int64
		)
		if err := rows.Scan(&sr.ID, &sr.UserID, &sr.Recipe.VideoID, &sr.Recipe.VideoTitle, &sr.Recipe.VideoURL,
			&sr.Recipe.ThumbnailURL, &ingredients, &steps, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		if sr.Recipe.Ingredients, err = decodeList(ingredients); err != nil {
			return nil, err
		}
		if sr.Recipe.Steps, err = decodeList(steps); err != nil {
			return nil, err
		}
		if sr.Recipe.Tags, err = decodeList(tags); err != nil {
			return nil, err
		}
		sr.CreatedAt = fromMillis(createdAt)
		recipes = append(recipes, sr)
	}
	return recipes, rows.Err()
}

// Count returns how many recipes the user has saved
func (r *RecipeRepository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM saved_recipes WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}
	return n, nil
}

// Delete removes the user's recipe for a video
func (r *RecipeRepository) Delete(ctx context.Context, userID, videoID string) error {
	res, err := r.db.exec(ctx, `DELETE FROM saved_recipes WHERE user_id = ? AND video_id = ?`, userID, videoID)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if affected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	items := []string{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}
