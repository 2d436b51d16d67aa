package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/infrastructure/memstore"
)

func newTranslations(store *memstore.Store, queue *fakeQueue) *Translations {
	return NewTranslations(TranslationsDeps{
		Posts:        store,
		Translations: store,
		Preferences:  store,
		Queue:        queue,
		BatchDelay:   func() time.Duration { return 2 * time.Second },
	})
}

func seedCompleted(t *testing.T, store *memstore.Store, postID int64, language, title string) {
	t.Helper()
	ctx := context.Background()
	tr := domain.Translation{PostID: postID, Language: language, Status: domain.StatusTranslating}
	if err := store.Create(ctx, &tr); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr.Status = domain.StatusCompleted
	tr.TranslatedContent = "<p>" + language + "</p>"
	tr.TranslatedTitle = title
	if err := store.Update(ctx, &tr); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestRequestValidatesAndQueues(t *testing.T) {
	t.Parallel()

	store := memstore.New(nil)
	queue := &fakeQueue{}
	svc := newTranslations(store, queue)
	ctx := context.Background()
	_ = store.SavePost(ctx, domain.Post{ID: 1, Raw: "hola"})

	if _, err := svc.Request(ctx, 1, "english", false); !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("expected ErrInvalidLanguage, got %v", err)
	}
	if _, err := svc.Request(ctx, 2, "en", false); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	id, err := svc.Request(ctx, 1, " zh-CN ", true)
	if err != nil || id == "" {
		t.Fatalf("request = %q, %v", id, err)
	}
	if len(queue.jobs) != 1 || queue.jobs[0].TargetLanguage != "zh-CN" || !queue.jobs[0].ForceUpdate {
		t.Fatalf("jobs = %+v", queue.jobs)
	}
}

func TestStatusReportsPendingAndAvailable(t *testing.T) {
	t.Parallel()

	store := memstore.New(nil)
	queue := &fakeQueue{}
	svc := newTranslations(store, queue)
	ctx := context.Background()

	seedCompleted(t, store, 1, "es", "")
	seedCompleted(t, store, 1, "de", "")
	failed := domain.Translation{PostID: 1, Language: "fr", Status: domain.StatusTranslating}
	_ = store.Create(ctx, &failed)
	_, _ = queue.Enqueue(ctx, domain.TranslateJobArgs{PostID: 1, TargetLanguage: "fr"})

	report, err := svc.Status(ctx, 1)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(report.AvailableLanguages) != 2 || report.AvailableLanguages[0] != "de" || report.AvailableLanguages[1] != "es" {
		t.Fatalf("available = %v", report.AvailableLanguages)
	}
	if len(report.PendingLanguages) != 1 || report.PendingLanguages[0] != "fr" || report.LastUpdated == nil {
		t.Fatalf("report = %+v", report)
	}

	empty, err := svc.Status(ctx, 99)
	if err != nil || empty.PendingLanguages == nil || empty.AvailableLanguages == nil || empty.LastUpdated != nil {
		t.Fatalf("empty report = %+v, %v", empty, err)
	}
}

func TestBatchTranslateValidatesBeforeQueueing(t *testing.T) {
	t.Parallel()

	store := memstore.New(nil)
	queue := &fakeQueue{}
	svc := newTranslations(store, queue)
	ctx := context.Background()

	if _, err := svc.BatchTranslate(ctx, []int64{1, 2}, []string{"en", "bad language"}, false); !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("expected ErrInvalidLanguage, got %v", err)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("jobs queued before validation failed")
	}

	result, err := svc.BatchTranslate(ctx, []int64{1, 2}, []string{"en", " ", "ja"}, true)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if result.Queued != 4 || len(result.JobIDs) != 4 {
		t.Fatalf("result = %+v", result)
	}
	for _, delay := range queue.delays {
		if delay != 2*time.Second {
			t.Fatalf("delay = %s", delay)
		}
	}
}

func TestRandomBatchDelayRange(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		d := randomBatchDelay()
		if d < batchMinDelay || d > batchMaxDelay {
			t.Fatalf("delay %s outside [%s, %s]", d, batchMinDelay, batchMaxDelay)
		}
	}
}

func TestPreferencesAndTranslatedTitle(t *testing.T) {
	t.Parallel()

	store := memstore.New(nil)
	svc := newTranslations(store, &fakeQueue{})
	ctx := context.Background()

	pref, err := svc.Preference(ctx, 7)
	if err != nil || pref.Language != nil || !pref.Enabled {
		t.Fatalf("default preference = %+v, %v", pref, err)
	}

	seedCompleted(t, store, 10, "en", "Greetings")
	if title, _ := svc.TranslatedTitleForUser(ctx, 7, 10); title != "" {
		t.Fatalf("title without preference = %q", title)
	}

	bad := "xx_YY"
	if _, err := svc.SetPreference(ctx, 7, &bad, true); !errors.Is(err, domain.ErrInvalidPreference) {
		t.Fatalf("expected ErrInvalidPreference, got %v", err)
	}
	lang := " en "
	saved, err := svc.SetPreference(ctx, 7, &lang, true)
	if err != nil || saved.LanguageOrEmpty() != "en" {
		t.Fatalf("set = %+v, %v", saved, err)
	}
	if title, err := svc.TranslatedTitleForUser(ctx, 7, 10); err != nil || title != "Greetings" {
		t.Fatalf("title = %q, %v", title, err)
	}

	if _, err := svc.SetPreference(ctx, 7, &lang, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if title, _ := svc.TranslatedTitleForUser(ctx, 7, 10); title != "" {
		t.Fatalf("disabled preference still translated title: %q", title)
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	store := memstore.New(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	svc := newTranslations(store, &fakeQueue{})
	ctx := context.Background()

	for _, lang := range []string{"en", "es", "de"} {
		tr := domain.Translation{PostID: 1, Language: lang, Status: domain.StatusTranslating}
		if err := store.Create(ctx, &tr); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	items, err := svc.List(ctx, 1)
	if err != nil || len(items) != 3 || items[0].Language != "de" || items[2].Language != "en" {
		t.Fatalf("list = %+v, %v", items, err)
	}
	if _, err := svc.Get(ctx, 1, "fr"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, 1, "es"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
