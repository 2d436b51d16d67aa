package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

// Store keeps posts, translations and preferences in memory. It enforces the
// same uniqueness and validation rules as the SQL repositories and backs the
// "memory" database driver.
type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	nextID int64

	posts        map[int64]domain.Post
	translations map[translationKey]domain.Translation
	preferences  map[int64]domain.UserLanguagePreference
}

type translationKey struct {
	postID   int64
	language string
}

var (
	_ ports.PostRepository        = (*Store)(nil)
	_ ports.TranslationRepository = (*Store)(nil)
	_ ports.PreferenceRepository  = (*Store)(nil)
)

// New builds an empty store; a nil clock uses time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:          now,
		posts:        map[int64]domain.Post{},
		translations: map[translationKey]domain.Translation{},
		preferences:  map[int64]domain.UserLanguagePreference{},
	}
}

func (s *Store) FindPost(_ context.Context, id int64) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *Store) SavePost(_ context.Context, post domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = s.now().UTC()
	}
	s.posts[post.ID] = post
	return nil
}

// DeletePost removes the snapshot and cascades to its translations.
func (s *Store) DeletePost(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.posts, id)
	for key := range s.translations {
		if key.postID == id {
			delete(s.translations, key)
		}
	}
	return nil
}

func (s *Store) Find(_ context.Context, postID int64, language string) (domain.Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.translations[translationKey{postID, language}]
	if !ok {
		return domain.Translation{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *Store) Create(_ context.Context, t *domain.Translation) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := translationKey{t.PostID, t.Language}
	if _, ok := s.translations[key]; ok {
		return domain.ErrDuplicateTranslation
	}
	s.nextID++
	now := s.now().UTC()
	t.ID = s.nextID
	t.CreatedAt = now
	t.UpdatedAt = now
	s.translations[key] = *t
	return nil
}

func (s *Store) Update(_ context.Context, t *domain.Translation) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := translationKey{t.PostID, t.Language}
	existing, ok := s.translations[key]
	if !ok {
		return domain.ErrNotFound
	}
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now().UTC()
	s.translations[key] = *t
	return nil
}

func (s *Store) ListByPost(_ context.Context, postID int64) ([]domain.Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Translation
	for key, t := range s.translations {
		if key.postID == postID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) Languages(_ context.Context, postID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for key := range s.translations {
		if key.postID == postID {
			out = append(out, key.language)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Delete(_ context.Context, postID int64, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := translationKey{postID, language}
	if _, ok := s.translations[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.translations, key)
	return nil
}

func (s *Store) DeleteByPost(_ context.Context, postID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.translations {
		if key.postID == postID {
			delete(s.translations, key)
		}
	}
	return nil
}

func (s *Store) FindPreference(_ context.Context, userID int64) (domain.UserLanguagePreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preferences[userID]
	if !ok {
		return domain.UserLanguagePreference{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *Store) SavePreference(_ context.Context, pref *domain.UserLanguagePreference) error {
	if pref.Language != nil && !domain.ValidLanguageCode(*pref.Language) {
		return domain.ErrInvalidPreference
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now
	s.preferences[pref.UserID] = *pref
	return nil
}
