package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/infrastructure/memstore"
	"PostTranslator/internal/infrastructure/notify"
	"PostTranslator/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []domain.TranslateJobArgs
}

func (q *fakeQueue) Enqueue(_ context.Context, args domain.TranslateJobArgs) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, args)
	return fmt.Sprintf("job-%d", len(q.jobs)), nil
}

func (q *fakeQueue) EnqueueIn(ctx context.Context, _ time.Duration, args domain.TranslateJobArgs) (string, error) {
	return q.Enqueue(ctx, args)
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

type fixture struct {
	router *gin.Engine
	store  *memstore.Store
	queue  *fakeQueue
	hub    *notify.Hub
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	store := memstore.New(nil)
	queue := &fakeQueue{}
	hub := notify.NewHub(8, nil)

	translations := usecase.NewTranslations(usecase.TranslationsDeps{
		Posts:        store,
		Translations: store,
		Preferences:  store,
		Queue:        queue,
	})
	events := usecase.NewPostEvents(usecase.PostEventsDeps{
		Posts:         store,
		Translations:  store,
		Preferences:   store,
		Queue:         queue,
		Notifier:      hub,
		Enabled:       true,
		AutoLanguages: []string{"en", "es"},
	})

	router := NewRouter(Deps{Translations: translations, Events: events, Hub: hub})
	return fixture{router: router, store: store, queue: queue, hub: hub}
}

func (f fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndModels(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	rec := f.do(http.MethodGet, "/models?provider=deepseek", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("models status = %d", rec.Code)
	}
	var body struct {
		Models []struct {
			Key string `json:"key"`
		} `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Models) != 2 || body.Models[0].Key != "deepseek-r1" {
		t.Fatalf("models = %+v", body.Models)
	}
}

func TestRequestTranslationValidatesLanguage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_ = f.store.SavePost(context.Background(), domain.Post{ID: 5, TopicID: 1, PostNumber: 1, Raw: "hola"})

	rec := f.do(http.MethodPost, "/posts/5/translations", `{"target_language":"english"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid language status = %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/posts/5/translations", `{"target_language":"pt-BR","force_update":true}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"queued"`) {
		t.Fatalf("request status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(f.queue.jobs) != 1 || !f.queue.jobs[0].ForceUpdate || f.queue.jobs[0].TargetLanguage != "pt-BR" {
		t.Fatalf("jobs = %+v", f.queue.jobs)
	}

	if rec := f.do(http.MethodPost, "/posts/404/translations", `{"target_language":"en"}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing post status = %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/posts/abc/translations", `{"target_language":"en"}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad post id status = %d", rec.Code)
	}
}

func TestPostCreatedHookMarksTranslating(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(http.MethodPost, "/hooks/post-created", `{"id":9,"topic_id":3,"post_number":1,"raw":"你好","cooked":"<p>你好</p>","topic_title":"问候"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("hook status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/posts/9/translations", "", nil)
	var body struct {
		Translations []translationView `json:"translations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Translations) != 2 {
		t.Fatalf("translations = %+v", body.Translations)
	}
	for _, tr := range body.Translations {
		if tr.Status != string(domain.StatusTranslating) {
			t.Fatalf("status = %s", tr.Status)
		}
	}

	rec = f.do(http.MethodGet, "/posts/9/translation-status", "", nil)
	if !strings.Contains(rec.Body.String(), `"pending_translations":["en","es"]`) {
		t.Fatalf("status body = %s", rec.Body.String())
	}

	if rec := f.do(http.MethodGet, "/posts/9/translations/fr", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing translation status = %d", rec.Code)
	}

	if rec := f.do(http.MethodPost, "/hooks/post-destroyed", `{"id":9}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("destroy status = %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/posts/9/translations/en", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("translation should be gone, status = %d", rec.Code)
	}
}

func TestUserPreferredLanguage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/user-preferred-language", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing user status = %d", rec.Code)
	}

	user := map[string]string{"X-User-ID": "42"}
	rec := f.do(http.MethodGet, "/user-preferred-language", "", user)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"language":null`) || !strings.Contains(rec.Body.String(), `"enabled":true`) {
		t.Fatalf("default preference = %d %s", rec.Code, rec.Body.String())
	}

	if rec := f.do(http.MethodPost, "/user-preferred-language", `{"language":"xx-yyy"}`, user); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid language status = %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/user-preferred-language", `{"language":"zh-cn","enabled":true}`, user)
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodGet, "/user-preferred-language", "", user)
	if !strings.Contains(rec.Body.String(), `"language":"zh-cn"`) {
		t.Fatalf("stored preference = %s", rec.Body.String())
	}
}

func TestBatchTranslate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(http.MethodPost, "/translations/batch", `{"post_ids":[1,2],"target_languages":["en","es"]}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"queued":4`) {
		t.Fatalf("batch = %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(http.MethodPost, "/translations/batch", `{"post_ids":[],"target_languages":["en"]}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status = %d", rec.Code)
	}
}

func TestChannelStreamRelaysHubMessages(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/channels/topic/3/translations", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	channel := domain.TopicChannel(3)
	for f.hub.Subscribers(channel) == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("stream never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	event := domain.NewTranslationEvent(1, "en", domain.NotifyCompleted, time.Now())
	if err := f.hub.Publish(ctx, channel, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data:") {
			if !strings.Contains(line, `"status":"completed"`) {
				t.Fatalf("unexpected data line: %s", line)
			}
			return
		}
	}
}

func TestTranslatedTitleFollowsPreference(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	_ = f.store.SavePost(ctx, domain.Post{ID: 11, TopicID: 4, PostNumber: 1, Raw: "你好", TopicTitle: "问候"})

	tr := domain.Translation{PostID: 11, Language: "en", Status: domain.StatusTranslating}
	if err := f.store.Create(ctx, &tr); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr.Status = domain.StatusCompleted
	tr.TranslatedContent = "<p>Hello</p>"
	tr.TranslatedTitle = "Greetings"
	if err := f.store.Update(ctx, &tr); err != nil {
		t.Fatalf("update: %v", err)
	}

	user := map[string]string{"X-User-ID": "8"}
	rec := f.do(http.MethodGet, "/posts/11/translated-title", "", user)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"translated_title":""`) {
		t.Fatalf("title without preference = %d %s", rec.Code, rec.Body.String())
	}

	if rec := f.do(http.MethodPost, "/user-preferred-language", `{"language":"en"}`, user); rec.Code != http.StatusOK {
		t.Fatalf("set preference = %d", rec.Code)
	}
	rec = f.do(http.MethodGet, "/posts/11/translated-title", "", user)
	if !strings.Contains(rec.Body.String(), `"translated_title":"Greetings"`) {
		t.Fatalf("title = %s", rec.Body.String())
	}
}
