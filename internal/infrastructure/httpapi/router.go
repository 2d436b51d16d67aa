package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/infrastructure/notify"
	"PostTranslator/internal/modelconfig"
	"PostTranslator/internal/usecase"
)

// Deps wires the use cases behind the REST surface.
type Deps struct {
	Translations *usecase.Translations
	Events       *usecase.PostEvents
	Hub          *notify.Hub
	// KeepAlive is the SSE comment interval; zero disables keep-alives.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// NewRouter builds a gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	Register(r, deps)
	return r
}

// Register wires the REST routes onto r.
func Register(r gin.IRouter, deps Deps) {
	h := &handlers{deps: deps, logger: deps.Logger}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/models", listModels)

	posts := r.Group("/posts/:post_id")
	posts.GET("/translations", h.listTranslations)
	posts.GET("/translations/:language", h.getTranslation)
	posts.POST("/translations", h.requestTranslation)
	posts.DELETE("/translations/:language", h.deleteTranslation)
	posts.GET("/translation-status", h.translationStatus)
	posts.GET("/translated-title", h.translatedTitle)

	r.POST("/translations/batch", h.batchTranslate)

	r.GET("/user-preferred-language", h.getPreference)
	r.POST("/user-preferred-language", h.setPreference)

	hooks := r.Group("/hooks")
	hooks.POST("/post-created", h.postCreated)
	hooks.POST("/post-edited", h.postEdited)
	hooks.POST("/post-destroyed", h.postDestroyed)
	hooks.POST("/user-logged-in", h.userLoggedIn)

	if deps.Hub != nil {
		r.GET("/channels/*channel", h.streamChannel)
	}
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

type translationView struct {
	ID                int64           `json:"id"`
	PostID            int64           `json:"post_id"`
	Language          string          `json:"language"`
	TranslatedContent string          `json:"translated_content"`
	TranslatedTitle   string          `json:"translated_title,omitempty"`
	SourceLanguage    string          `json:"source_language"`
	Provider          string          `json:"translation_provider"`
	Status            string          `json:"status"`
	Confidence        float64         `json:"confidence"`
	Metadata          domain.Metadata `json:"metadata"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func viewOf(t domain.Translation) translationView {
	return translationView{
		ID:                t.ID,
		PostID:            t.PostID,
		Language:          t.Language,
		TranslatedContent: t.TranslatedContent,
		TranslatedTitle:   t.TranslatedTitle,
		SourceLanguage:    t.SourceLanguage,
		Provider:          t.Provider,
		Status:            string(t.Status),
		Confidence:        t.Confidence(),
		Metadata:          t.Metadata,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func listModels(c *gin.Context) {
	filter := modelconfig.Filter{
		Provider: modelconfig.Provider(c.Query("provider")),
		Tier:     modelconfig.Tier(c.Query("tier")),
	}
	c.JSON(http.StatusOK, gin.H{"models": modelconfig.List(filter)})
}

func (h *handlers) listTranslations(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	items, err := h.deps.Translations.List(c.Request.Context(), postID)
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]translationView, 0, len(items))
	for _, item := range items {
		views = append(views, viewOf(item))
	}
	c.JSON(http.StatusOK, gin.H{"translations": views})
}

func (h *handlers) getTranslation(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	item, err := h.deps.Translations.Get(c.Request.Context(), postID, c.Param("language"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(item))
}

type translateRequest struct {
	TargetLanguage string `json:"target_language"`
	ForceUpdate    bool   `json:"force_update"`
}

func (h *handlers) requestTranslation(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	jobID, err := h.deps.Translations.Request(c.Request.Context(), postID, req.TargetLanguage, req.ForceUpdate)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued", "post_id": postID, "target_language": strings.TrimSpace(req.TargetLanguage), "job_id": jobID})
}

func (h *handlers) deleteTranslation(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	if err := h.deps.Translations.Delete(c.Request.Context(), postID, c.Param("language")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *handlers) translationStatus(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	report, err := h.deps.Translations.Status(c.Request.Context(), postID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// translatedTitle answers with the topic title in the caller's preferred
// language; post_id is the first post of the topic.
func (h *handlers) translatedTitle(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	userID, ok := userIDHeader(c)
	if !ok {
		return
	}
	title, err := h.deps.Translations.TranslatedTitleForUser(c.Request.Context(), userID, postID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translated_title": title})
}

type batchRequest struct {
	PostIDs     []int64  `json:"post_ids"`
	Languages   []string `json:"target_languages"`
	ForceUpdate bool     `json:"force_update"`
}

func (h *handlers) batchTranslate(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.PostIDs) == 0 || len(req.Languages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post_ids and target_languages are required"})
		return
	}
	result, err := h.deps.Translations.BatchTranslate(c.Request.Context(), req.PostIDs, req.Languages, req.ForceUpdate)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type preferenceRequest struct {
	Language *string `json:"language"`
	Enabled  *bool   `json:"enabled"`
}

func (h *handlers) getPreference(c *gin.Context) {
	userID, ok := userIDHeader(c)
	if !ok {
		return
	}
	pref, err := h.deps.Translations.Preference(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": pref.Language, "enabled": pref.Enabled})
}

func (h *handlers) setPreference(c *gin.Context) {
	userID, ok := userIDHeader(c)
	if !ok {
		return
	}
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	pref, err := h.deps.Translations.SetPreference(c.Request.Context(), userID, req.Language, enabled)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "language": pref.Language, "enabled": pref.Enabled})
}

type postPayload struct {
	ID         int64      `json:"id"`
	TopicID    int64      `json:"topic_id"`
	PostNumber int        `json:"post_number"`
	Raw        string     `json:"raw"`
	Cooked     string     `json:"cooked"`
	TopicTitle string     `json:"topic_title"`
	Hidden     bool       `json:"hidden"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

func (p postPayload) post() domain.Post {
	return domain.Post{
		ID:         p.ID,
		TopicID:    p.TopicID,
		PostNumber: p.PostNumber,
		Raw:        p.Raw,
		Cooked:     p.Cooked,
		TopicTitle: p.TopicTitle,
		Hidden:     p.Hidden,
		DeletedAt:  p.DeletedAt,
	}
}

func bindPost(c *gin.Context) (domain.Post, bool) {
	var payload postPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post id is required"})
		return domain.Post{}, false
	}
	return payload.post(), true
}

func (h *handlers) postCreated(c *gin.Context) {
	post, ok := bindPost(c)
	if !ok {
		return
	}
	queued, err := h.deps.Events.OnPostCreated(c.Request.Context(), post)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": nonNil(queued)})
}

func (h *handlers) postEdited(c *gin.Context) {
	post, ok := bindPost(c)
	if !ok {
		return
	}
	queued, err := h.deps.Events.OnPostEdited(c.Request.Context(), post)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": nonNil(queued)})
}

func (h *handlers) postDestroyed(c *gin.Context) {
	var payload struct {
		ID int64 `json:"id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post id is required"})
		return
	}
	if err := h.deps.Events.OnPostDestroyed(c.Request.Context(), payload.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *handlers) userLoggedIn(c *gin.Context) {
	var payload struct {
		UserID int64 `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.UserID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	prompted, err := h.deps.Events.OnUserLoggedIn(c.Request.Context(), payload.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompted": prompted})
}

func (h *handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, usecase.ErrInvalidLanguage), errors.Is(err, domain.ErrInvalidPreference):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func postIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return 0, false
	}
	return id, true
}

func userIDHeader(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return 0, false
	}
	return id, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
