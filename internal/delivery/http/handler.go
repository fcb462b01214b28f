package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/recipetube/backend/internal/domain"
	"github.com/recipetube/backend/internal/usecase"
)

// Version is reported by the health check
const Version = "1.0.0"

// RecipeUsecase is the recipe service as seen by the handlers
type RecipeUsecase interface {
	SearchVideos(ctx context.Context, userID, keyword string) (*usecase.SearchResult, error)
	GetVideo(ctx context.Context, videoID string) (*domain.Video, error)
	ExtractRecipe(ctx context.Context, videoURL string) (*domain.Recipe, error)
	SaveRecipe(ctx context.Context, userID string, recipe domain.Recipe) (*domain.SavedRecipe, error)
	DeleteRecipe(ctx context.Context, userID, videoID string) error
	ListSavedRecipes(ctx context.Context, userID string) ([]domain.SavedRecipe, error)
	QuotaStatus(ctx context.Context, user *domain.User) (domain.QuotaStatus, error)
	PopularVideos(ctx context.Context) []domain.Video
	PopularKeywords(ctx context.Context, limit int) ([]domain.KeywordStat, error)
	ClearCache(ctx context.Context, namespace string) ([]domain.CacheNamespace, error)
}

// HealthPinger reports whether a backing store is reachable
type HealthPinger interface {
	Ping(ctx context.Context) error
}

// AuthUsecase is the auth service as seen by the handlers
type AuthUsecase interface {
	SignUp(ctx context.Context, creds domain.Credentials) (*domain.User, error)
	ResendVerification(ctx context.Context, email string) error
	SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, *domain.User, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	DeleteAccount(ctx context.Context, userID, password string) error
}

// BatchUsecase is the batch service as seen by the internal job routes
type BatchUsecase interface {
	Schedule(ctx context.Context) ([]domain.BatchJob, error)
	Process(ctx context.Context) ([]domain.JobResult, error)
	ResetDailySearchCounts(ctx context.Context) (int64, error)
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	recipes RecipeUsecase
	auth    AuthUsecase
	batch   BatchUsecase
	db      HealthPinger
	log     zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(recipes RecipeUsecase, auth AuthUsecase, batch BatchUsecase, log zerolog.Logger) *Handler {
	return &Handler{
		recipes: recipes,
		auth:    auth,
		batch:   batch,
		log:     log.With().Str("component", "handler").Logger(),
	}
}

// SetHealthCheck makes /health report the database as well
func (h *Handler) SetHealthCheck(db HealthPinger) {
	h.db = db
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.log.Error().Err(err).Msg("database health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"service":  "recipetube-backend",
				"version":  Version,
				"database": "unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "recipetube-backend",
		"version": Version,
	})
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithCode(c, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// --- auth ---

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type deleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// SignUp handles POST /auth/signup
func (h *Handler) SignUp(c *gin.Context) {
	var creds domain.Credentials
	if !h.bindJSON(c, &creds) {
		return
	}
	user, err := h.auth.SignUp(c.Request.Context(), creds)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// ResendVerification handles POST /auth/verify-email/resend
func (h *Handler) ResendVerification(c *gin.Context) {
	var req emailRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists and is unverified, a new link was sent"})
}

// SignIn handles POST /auth/signin
func (h *Handler) SignIn(c *gin.Context) {
	var creds domain.Credentials
	if !h.bindJSON(c, &creds) {
		return
	}
	session, user, err := h.auth.SignIn(c.Request.Context(), creds)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Token: session.Token, ExpiresAt: session.ExpiresAt, User: user})
}

// SignOut handles POST /auth/signout
func (h *Handler) SignOut(c *gin.Context) {
	if err := h.auth.SignOut(c.Request.Context(), bearerToken(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// VerifyEmail handles POST /auth/verify-email
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.auth.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// ForgotPassword handles POST /auth/password/forgot
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists, a reset link was sent"})
}

// ResetPassword handles POST /auth/password/reset
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// --- profile ---

// Me handles GET /me
func (h *Handler) Me(c *gin.Context) {
	user := currentUser(c)
	status, err := h.recipes.QuotaStatus(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "quota": status})
}

// DeleteMe handles DELETE /me
func (h *Handler) DeleteMe(c *gin.Context) {
	var req deleteAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.auth.DeleteAccount(c.Request.Context(), currentUser(c).ID, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- videos ---

// SearchVideos handles GET /videos/search?q=
func (h *Handler) SearchVideos(c *gin.Context) {
	result, err := h.recipes.SearchVideos(c.Request.Context(), currentUser(c).ID, c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PopularVideos handles GET /videos/popular
func (h *Handler) PopularVideos(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"videos": h.recipes.PopularVideos(c.Request.Context())})
}

// GetVideo handles GET /videos/:id
func (h *Handler) GetVideo(c *gin.Context) {
	video, err := h.recipes.GetVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// PopularKeywords handles GET /keywords/popular?limit=
func (h *Handler) PopularKeywords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	keywords, err := h.recipes.PopularKeywords(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keywords": keywords})
}

// --- recipes ---

// ExtractRecipe handles POST /recipes/extract
func (h *Handler) ExtractRecipe(c *gin.Context) {
	var req domain.ExtractRequest
	if !h.bindJSON(c, &req) {
		return
	}
	recipe, err := h.recipes.ExtractRecipe(c.Request.Context(), req.VideoURL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// ListRecipes handles GET /recipes
func (h *Handler) ListRecipes(c *gin.Context) {
	recipes, err := h.recipes.ListSavedRecipes(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recipes":        recipes,
		"remainingSaves": usecase.RemainingSaves(len(recipes)),
	})
}

// SaveRecipe handles POST /recipes
func (h *Handler) SaveRecipe(c *gin.Context) {
	var recipe domain.Recipe
	if !h.bindJSON(c, &recipe) {
		return
	}
	saved, err := h.recipes.SaveRecipe(c.Request.Context(), currentUser(c).ID, recipe)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// DeleteRecipe handles DELETE /recipes/:videoId
func (h *Handler) DeleteRecipe(c *gin.Context) {
	if err := h.recipes.DeleteRecipe(c.Request.Context(), currentUser(c).ID, c.Param("videoId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- internal jobs ---

// ResetDailySearchCount handles POST /internal/jobs/reset-daily-search-count
func (h *Handler) ResetDailySearchCount(c *gin.Context) {
	n, err := h.batch.ResetDailySearchCounts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "usersReset": n})
}

// ScheduleJobs handles POST /internal/jobs/schedule
func (h *Handler) ScheduleJobs(c *gin.Context) {
	jobs, err := h.batch.Schedule(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": jobs})
}

// ProcessJobs handles POST /internal/jobs/process
func (h *Handler) ProcessJobs(c *gin.Context) {
	results, err := h.batch.Process(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "processed": len(results), "results": results})
}

// ClearCache handles POST /internal/jobs/clear-cache?namespace=video|search|all
func (h *Handler) ClearCache(c *gin.Context) {
	cleared, err := h.recipes.ClearCache(c.Request.Context(), c.Query("namespace"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared})
}

// CleanupTokens handles POST /internal/jobs/cleanup-tokens
func (h *Handler) CleanupTokens(c *gin.Context) {
	n, err := h.batch.CleanupExpiredTokens(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n})
}
