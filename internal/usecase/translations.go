package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

const (
	batchMinDelay = time.Second
	batchMaxDelay = 5 * time.Second
)

// ErrInvalidLanguage is returned for target languages outside the accepted format.
var ErrInvalidLanguage = errors.New("invalid target language")

// TranslationsDeps wires the query and request surface.
type TranslationsDeps struct {
	Posts        ports.PostRepository
	Translations ports.TranslationRepository
	Preferences  ports.PreferenceRepository
	Queue        ports.JobQueue
	// BatchDelay picks the start delay of each batch job; defaults to 1 to 5 seconds.
	BatchDelay func() time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// Translations serves reads and translation requests for posts and users.
type Translations struct {
	posts        ports.PostRepository
	translations ports.TranslationRepository
	preferences  ports.PreferenceRepository
	queue        ports.JobQueue
	batchDelay   func() time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// TranslationStatusReport describes the translation state of a single post.
type TranslationStatusReport struct {
	PostID             int64      `json:"post_id"`
	PendingLanguages   []string   `json:"pending_translations"`
	AvailableLanguages []string   `json:"available_translations"`
	LastUpdated        *time.Time `json:"last_updated,omitempty"`
}

// BatchResult reports how many jobs a batch request queued.
type BatchResult struct {
	Queued int      `json:"queued"`
	JobIDs []string `json:"job_ids"`
}

// NewTranslations constructs the query surface.
func NewTranslations(deps TranslationsDeps) *Translations {
	batchDelay := deps.BatchDelay
	if batchDelay == nil {
		batchDelay = randomBatchDelay
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Translations{
		posts:        deps.Posts,
		translations: deps.Translations,
		preferences:  deps.Preferences,
		queue:        deps.Queue,
		batchDelay:   batchDelay,
		now:          now,
		logger:       logger,
	}
}

// List returns all translations of a post, most recently updated first.
func (t *Translations) List(ctx context.Context, postID int64) ([]domain.Translation, error) {
	items, err := t.translations.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list translations of post %d: %w", postID, err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}

// Get returns one translation or domain.ErrNotFound.
func (t *Translations) Get(ctx context.Context, postID int64, language string) (domain.Translation, error) {
	item, err := t.translations.Find(ctx, postID, language)
	if err != nil {
		return domain.Translation{}, fmt.Errorf("find translation %d/%s: %w", postID, language, err)
	}
	return item, nil
}

// Request queues one translation job for an existing post.
func (t *Translations) Request(ctx context.Context, postID int64, language string, force bool) (string, error) {
	language = strings.TrimSpace(language)
	if !domain.ValidLanguageCode(language) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, language)
	}
	if _, err := t.posts.FindPost(ctx, postID); err != nil {
		return "", fmt.Errorf("find post %d: %w", postID, err)
	}
	id, err := t.queue.Enqueue(ctx, domain.TranslateJobArgs{PostID: postID, TargetLanguage: language, ForceUpdate: force})
	if err != nil {
		return "", fmt.Errorf("enqueue translation: %w", err)
	}
	t.logger.Info("translation requested", "post_id", postID, "language", language, "force_update", force, "job_id", id)
	return id, nil
}

// Delete removes one translation.
func (t *Translations) Delete(ctx context.Context, postID int64, language string) error {
	if err := t.translations.Delete(ctx, postID, language); err != nil {
		return fmt.Errorf("delete translation %d/%s: %w", postID, language, err)
	}
	return nil
}

// Status reports queued and stored languages of a post.
func (t *Translations) Status(ctx context.Context, postID int64) (TranslationStatusReport, error) {
	items, err := t.translations.ListByPost(ctx, postID)
	if err != nil {
		return TranslationStatusReport{}, fmt.Errorf("list translations of post %d: %w", postID, err)
	}

	report := TranslationStatusReport{
		PostID:             postID,
		PendingLanguages:   []string{},
		AvailableLanguages: []string{},
	}
	if t.queue != nil {
		report.PendingLanguages = append(report.PendingLanguages, t.queue.Pending(postID)...)
	}
	for _, item := range items {
		if item.Status == domain.StatusCompleted {
			report.AvailableLanguages = append(report.AvailableLanguages, item.Language)
		}
		if report.LastUpdated == nil || item.UpdatedAt.After(*report.LastUpdated) {
			updated := item.UpdatedAt
			report.LastUpdated = &updated
		}
	}
	sort.Strings(report.AvailableLanguages)
	return report, nil
}

// BatchTranslate queues every (post, language) pair with a spread-out start
// delay. Invalid languages abort the whole batch before anything is queued.
func (t *Translations) BatchTranslate(ctx context.Context, postIDs []int64, languages []string, force bool) (BatchResult, error) {
	clean := make([]string, 0, len(languages))
	for _, language := range languages {
		language = strings.TrimSpace(language)
		if language == "" {
			continue
		}
		if !domain.ValidLanguageCode(language) {
			return BatchResult{}, fmt.Errorf("%w: %q", ErrInvalidLanguage, language)
		}
		clean = append(clean, language)
	}

	result := BatchResult{JobIDs: []string{}}
	for _, postID := range postIDs {
		for _, language := range clean {
			args := domain.TranslateJobArgs{PostID: postID, TargetLanguage: language, ForceUpdate: force}
			id, err := t.queue.EnqueueIn(ctx, t.batchDelay(), args)
			if err != nil {
				return result, fmt.Errorf("enqueue %d/%s: %w", postID, language, err)
			}
			result.JobIDs = append(result.JobIDs, id)
			result.Queued++
		}
	}
	t.logger.Info("batch translation queued", "posts", len(postIDs), "languages", clean, "jobs", result.Queued)
	return result, nil
}

// TranslatedTitleForUser returns the topic title in the user's preferred
// language, or "" when the user has none or no finished translation exists.
func (t *Translations) TranslatedTitleForUser(ctx context.Context, userID, firstPostID int64) (string, error) {
	pref, err := t.Preference(ctx, userID)
	if err != nil {
		return "", err
	}
	if !pref.Enabled || pref.LanguageOrEmpty() == "" {
		return "", nil
	}
	item, err := t.translations.Find(ctx, firstPostID, pref.LanguageOrEmpty())
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find title translation: %w", err)
	}
	if item.Status != domain.StatusCompleted {
		return "", nil
	}
	return item.TranslatedTitle, nil
}

// Preference returns the user's preference, or the default when none is stored.
func (t *Translations) Preference(ctx context.Context, userID int64) (domain.UserLanguagePreference, error) {
	pref, err := t.preferences.FindPreference(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultPreference(userID), nil
	}
	if err != nil {
		return domain.UserLanguagePreference{}, fmt.Errorf("load preference of user %d: %w", userID, err)
	}
	return pref, nil
}

// SetPreference stores the user's language choice. A nil language clears it.
func (t *Translations) SetPreference(ctx context.Context, userID int64, language *string, enabled bool) (domain.UserLanguagePreference, error) {
	if userID <= 0 {
		return domain.UserLanguagePreference{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidPreference)
	}
	if language != nil {
		code := strings.TrimSpace(*language)
		if code == "" {
			language = nil
		} else if !domain.ValidLanguageCode(code) {
			return domain.UserLanguagePreference{}, fmt.Errorf("%w: language %q", domain.ErrInvalidPreference, code)
		} else {
			language = &code
		}
	}

	pref, err := t.Preference(ctx, userID)
	if err != nil {
		return domain.UserLanguagePreference{}, err
	}
	now := t.now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.Language = language
	pref.Enabled = enabled
	pref.UpdatedAt = now
	if err := t.preferences.SavePreference(ctx, &pref); err != nil {
		return domain.UserLanguagePreference{}, fmt.Errorf("save preference of user %d: %w", userID, err)
	}
	return pref, nil
}

func randomBatchDelay() time.Duration {
	return batchMinDelay + time.Duration(rand.Int63n(int64(batchMaxDelay-batchMinDelay+1)))
}
