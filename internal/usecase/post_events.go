package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

// PostEventsDeps wires the host event hooks.
type PostEventsDeps struct {
	Posts        ports.PostRepository
	Translations ports.TranslationRepository
	Preferences  ports.PreferenceRepository
	Queue        ports.JobQueue
	Notifier     ports.Notifier
	Enabled      bool
	// AutoLanguages are translated for every new post.
	AutoLanguages []string
	Now           func() time.Time
	Logger        *slog.Logger
}

// PostEvents reacts to content changes in the host CMS.
type PostEvents struct {
	posts         ports.PostRepository
	translations  ports.TranslationRepository
	preferences   ports.PreferenceRepository
	queue         ports.JobQueue
	notifier      ports.Notifier
	enabled       bool
	autoLanguages []string
	now           func() time.Time
	logger        *slog.Logger
}

// NewPostEvents constructs the hook handlers.
func NewPostEvents(deps PostEventsDeps) *PostEvents {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostEvents{
		posts:         deps.Posts,
		translations:  deps.Translations,
		preferences:   deps.Preferences,
		queue:         deps.Queue,
		notifier:      deps.Notifier,
		enabled:       deps.Enabled,
		autoLanguages: deps.AutoLanguages,
		now:           now,
		logger:        logger,
	}
}

// OnPostCreated stores the snapshot and schedules the auto languages. Records
// are placed in translating before the jobs are queued so readers see the
// pending state immediately.
func (e *PostEvents) OnPostCreated(ctx context.Context, post domain.Post) ([]string, error) {
	if !e.enabled || strings.TrimSpace(post.Raw) == "" {
		return nil, nil
	}
	if err := e.posts.SavePost(ctx, post); err != nil {
		return nil, fmt.Errorf("save post %d: %w", post.ID, err)
	}
	if !post.Translatable() {
		return nil, nil
	}
	return e.schedule(ctx, post.ID, e.autoLanguages, false)
}

// OnPostEdited refreshes the snapshot and re-translates every language the post
// already has.
func (e *PostEvents) OnPostEdited(ctx context.Context, post domain.Post) ([]string, error) {
	if !e.enabled {
		return nil, nil
	}
	if err := e.posts.SavePost(ctx, post); err != nil {
		return nil, fmt.Errorf("save post %d: %w", post.ID, err)
	}
	if !post.Translatable() {
		return nil, nil
	}
	languages, err := e.translations.Languages(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list languages of post %d: %w", post.ID, err)
	}
	return e.schedule(ctx, post.ID, languages, true)
}

// OnPostDestroyed removes the post's translations and its snapshot.
func (e *PostEvents) OnPostDestroyed(ctx context.Context, postID int64) error {
	if err := e.translations.DeleteByPost(ctx, postID); err != nil {
		return fmt.Errorf("delete translations of post %d: %w", postID, err)
	}
	if err := e.posts.DeletePost(ctx, postID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete post %d: %w", postID, err)
	}
	return nil
}

// OnUserLoggedIn prompts users without a stored preference to pick a language.
// It reports whether the prompt was published.
func (e *PostEvents) OnUserLoggedIn(ctx context.Context, userID int64) (bool, error) {
	if !e.enabled || e.preferences == nil || e.notifier == nil {
		return false, nil
	}
	_, err := e.preferences.FindPreference(ctx, userID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("load preference of user %d: %w", userID, err)
	}
	if err := e.notifier.Publish(ctx, domain.LanguagePromptChannel(userID), domain.LanguagePromptEvent{UserID: userID}); err != nil {
		e.logger.Warn("language prompt not delivered", "user_id", userID, "error", err)
		return false, nil
	}
	return true, nil
}

func (e *PostEvents) schedule(ctx context.Context, postID int64, languages []string, force bool) ([]string, error) {
	var queued []string
	for _, language := range languages {
		if _, err := markTranslating(ctx, e.translations, postID, language, e.now()); err != nil {
			return queued, fmt.Errorf("mark %s translating: %w", language, err)
		}
		args := domain.TranslateJobArgs{PostID: postID, TargetLanguage: language, ForceUpdate: force}
		if _, err := e.queue.Enqueue(ctx, args); err != nil {
			return queued, fmt.Errorf("enqueue %s: %w", language, err)
		}
		queued = append(queued, language)
	}
	if len(queued) > 0 {
		e.logger.Info("translations scheduled", "post_id", postID, "languages", queued, "force_update", force)
	}
	return queued, nil
}
