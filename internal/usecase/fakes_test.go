package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PostTranslator/internal/domain"
)

type fakeCompleter struct {
	mu      sync.Mutex
	replies []func(domain.ChatRequest) (domain.ChatCompletion, error)
	calls   []domain.ChatRequest
}

func (f *fakeCompleter) reply(content string) *fakeCompleter {
	f.replies = append(f.replies, func(domain.ChatRequest) (domain.ChatCompletion, error) {
		return domain.ChatCompletion{Content: content, Model: "test-model", TotalTokens: 12}, nil
	})
	return f
}

func (f *fakeCompleter) fail(err error) *fakeCompleter {
	f.replies = append(f.replies, func(domain.ChatRequest) (domain.ChatCompletion, error) {
		return domain.ChatCompletion{}, err
	})
	return f
}

func (f *fakeCompleter) Complete(_ context.Context, req domain.ChatRequest) (domain.ChatCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.replies) == 0 {
		return domain.ChatCompletion{}, fmt.Errorf("unexpected call %d", len(f.calls))
	}
	next := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return next(req)
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type translatorFunc func(context.Context, TranslationRequest) (TranslationResult, error)

func (fn translatorFunc) Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
	return fn(ctx, req)
}

type published struct {
	channel string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(_ context.Context, channel string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{channel: channel, payload: payload})
	return nil
}

func (n *recordingNotifier) snapshot() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]published(nil), n.events...)
}

// statuses lists the translation event statuses published for one language, in order.
func (n *recordingNotifier) statuses(language string) []domain.NotificationStatus {
	var out []domain.NotificationStatus
	for _, p := range n.snapshot() {
		if ev, ok := p.payload.(domain.TranslationEvent); ok && ev.TargetLanguage == language {
			out = append(out, ev.Status)
		}
	}
	return out
}

type recordingEvents struct {
	mu    sync.Mutex
	lines []string
}

func (e *recordingEvents) add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = append(e.lines, fmt.Sprintf(format, args...))
}

func (e *recordingEvents) Started(postID int64, language string, contentLength int, force bool) {
	e.add("started %d %s %d %t", postID, language, contentLength, force)
}

func (e *recordingEvents) Completed(entry domain.CompletedEntry) {
	e.add("completed %d %s", entry.PostID, entry.Language)
}

func (e *recordingEvents) Failed(postID int64, language, _, class string, _ float64) {
	e.add("failed %d %s %s", postID, language, class)
}

func (e *recordingEvents) Skipped(postID int64, language, reason string) {
	e.add("skipped %d %s %s", postID, language, reason)
}

func (e *recordingEvents) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lines...)
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []domain.TranslateJobArgs
	delays []time.Duration
}

func (q *fakeQueue) Enqueue(ctx context.Context, args domain.TranslateJobArgs) (string, error) {
	return q.EnqueueIn(ctx, 0, args)
}

func (q *fakeQueue) EnqueueIn(_ context.Context, delay time.Duration, args domain.TranslateJobArgs) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, args)
	q.delays = append(q.delays, delay)
	return fmt.Sprintf("job-%d", len(q.jobs)), nil
}

func (q *fakeQueue) Pending(postID int64) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, j := range q.jobs {
		if j.PostID == postID {
			out = append(out, j.TargetLanguage)
		}
	}
	return out
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}
