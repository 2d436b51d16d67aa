package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

// markTranslating moves the (post, language) record into the translating state,
// creating it when absent. Content and title are cleared; metadata is merged.
func markTranslating(ctx context.Context, repo ports.TranslationRepository, postID int64, language string, now time.Time) (domain.Translation, error) {
	stamp := now.UTC()
	patch := domain.Metadata{TranslatingStartedAt: &stamp, UpdatedAt: &stamp}

	existing, err := repo.Find(ctx, postID, language)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		record := domain.Translation{
			PostID:   postID,
			Language: language,
			Status:   domain.StatusTranslating,
			Metadata: patch,
		}
		createErr := repo.Create(ctx, &record)
		if createErr == nil {
			return record, nil
		}
		if !errors.Is(createErr, domain.ErrDuplicateTranslation) {
			return domain.Translation{}, fmt.Errorf("create translation: %w", createErr)
		}
		// Lost a creation race; fall back to updating the winner's record.
		existing, err = repo.Find(ctx, postID, language)
		if err != nil {
			return domain.Translation{}, fmt.Errorf("reload translation: %w", err)
		}
	case err != nil:
		return domain.Translation{}, fmt.Errorf("find translation: %w", err)
	}

	existing.Status = domain.StatusTranslating
	existing.TranslatedContent = ""
	existing.TranslatedTitle = ""
	existing.Metadata = existing.Metadata.Merge(patch)
	if err := repo.Update(ctx, &existing); err != nil {
		return domain.Translation{}, fmt.Errorf("update translation: %w", err)
	}
	return existing, nil
}

// KeyedMutex serializes work per key inside one process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex builds an empty lock table.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyedLock{}}
}

// Lock blocks until key is free and returns its unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func translationKey(postID int64, language string) string {
	return fmt.Sprintf("%d:%s", postID, language)
}
