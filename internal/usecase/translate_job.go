package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/ports"
)

// Skip reasons written to the event log.
const (
	ReasonInvalidArgs      = "invalid_args"
	ReasonPostNotFound     = "post_not_found"
	ReasonPostUnavailable  = "post_deleted_or_hidden"
	ReasonAlreadyCompleted = "translation_already_exists"
)

// OutcomeStatus summarizes how a job run ended.
type OutcomeStatus string

const (
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeExisting  OutcomeStatus = "existing"
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is returned by TranslateJob.Run; jobs never return errors to the runner.
type Outcome struct {
	Status      OutcomeStatus
	Reason      string
	Translation *domain.Translation
	Err         error
}

// Translator is the translation service as seen by the job.
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error)
}

// TranslateJobDeps wires the lifecycle job.
type TranslateJobDeps struct {
	Posts          ports.PostRepository
	Translations   ports.TranslationRepository
	Translator     Translator
	Notifier       ports.Notifier
	Events         ports.TranslationEventLog
	TranslateTitle bool
	// Locks serializes runs for the same (post, language) in this process; nil disables it.
	Locks  *KeyedMutex
	Now    func() time.Time
	Logger *slog.Logger
}

// TranslateJob owns the translating -> completed | failed state machine of one
// (post, language) pair.
type TranslateJob struct {
	posts          ports.PostRepository
	translations   ports.TranslationRepository
	translator     Translator
	notifier       ports.Notifier
	events         ports.TranslationEventLog
	translateTitle bool
	locks          *KeyedMutex
	now            func() time.Time
	logger         *slog.Logger
}

// NewTranslateJob constructs the lifecycle job.
func NewTranslateJob(deps TranslateJobDeps) *TranslateJob {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := deps.Events
	if events == nil {
		events = nopEventLog{}
	}
	return &TranslateJob{
		posts:          deps.Posts,
		translations:   deps.Translations,
		translator:     deps.Translator,
		notifier:       deps.Notifier,
		events:         events,
		translateTitle: deps.TranslateTitle,
		locks:          deps.Locks,
		now:            now,
		logger:         logger,
	}
}

// Run executes one translation job. Every failure, including panics, ends in
// an Outcome; nothing propagates past this boundary.
func (j *TranslateJob) Run(ctx context.Context, args domain.TranslateJobArgs) (out Outcome) {
	language := strings.TrimSpace(args.TargetLanguage)
	if args.PostID <= 0 || language == "" {
		return Outcome{Status: OutcomeSkipped, Reason: ReasonInvalidArgs}
	}
	args.TargetLanguage = language

	if j.locks != nil {
		unlock := j.locks.Lock(translationKey(args.PostID, language))
		defer unlock()
	}

	start := j.now()
	var announced *domain.Post
	defer func() {
		if r := recover(); r != nil {
			out = j.failUnexpected(ctx, args, announced, fmt.Errorf("panic: %v", r), "panic", start, debug.Stack())
		}
	}()

	post, err := j.posts.FindPost(ctx, args.PostID)
	if errors.Is(err, domain.ErrNotFound) {
		return j.skip(args, ReasonPostNotFound)
	}
	if err != nil {
		return j.failUnexpected(ctx, args, nil, fmt.Errorf("load post: %w", err), errorClass(err), start, nil)
	}
	if !post.Translatable() {
		return j.skip(args, ReasonPostUnavailable)
	}

	existing, err := j.translations.Find(ctx, post.ID, language)
	switch {
	case err == nil:
		if existing.Status == domain.StatusCompleted && !args.ForceUpdate {
			j.events.Skipped(post.ID, language, ReasonAlreadyCompleted)
			return Outcome{Status: OutcomeExisting, Reason: ReasonAlreadyCompleted, Translation: &existing}
		}
	case !errors.Is(err, domain.ErrNotFound):
		return j.failUnexpected(ctx, args, nil, fmt.Errorf("load translation: %w", err), errorClass(err), start, nil)
	}

	record, err := markTranslating(ctx, j.translations, post.ID, language, j.now())
	if err != nil {
		return j.failUnexpected(ctx, args, nil, err, errorClass(err), start, nil)
	}

	started := domain.NewTranslationEvent(post.ID, language, domain.NotifyStarted, j.now())
	started.TranslationID = idRef(record.ID)
	j.notify(ctx, domain.TopicChannel(post.TopicID), started)
	announced = &post

	content := post.Cooked
	if strings.TrimSpace(content) == "" {
		content = post.Raw
	}
	j.events.Started(post.ID, language, utf8.RuneCountInString(content), args.ForceUpdate)

	var title string
	if j.translateTitle && post.IsFirstInTopic() && strings.TrimSpace(post.TopicTitle) != "" {
		title = post.TopicTitle
	}

	result, err := j.translator.Translate(ctx, TranslationRequest{
		Content:        content,
		TargetLanguage: language,
		Title:          title,
	})
	elapsed := elapsedMS(start, j.now())

	if err != nil {
		return j.fail(ctx, post, record, err, elapsed)
	}
	return j.complete(ctx, args, post, record, result, start, elapsed)
}

func (j *TranslateJob) complete(ctx context.Context, args domain.TranslateJobArgs, post domain.Post, record domain.Translation, result TranslationResult, start time.Time, elapsed float64) Outcome {
	if strings.TrimSpace(result.TranslatedContent) == "" {
		return j.fail(ctx, post, record, domain.NewError(domain.KindParse, "No translation in response"), elapsed)
	}

	now := j.now().UTC()
	confidence := result.Confidence
	info := result.ProviderInfo

	record.Status = domain.StatusCompleted
	record.TranslatedContent = result.TranslatedContent
	record.TranslatedTitle = result.TranslatedTitle
	record.SourceLanguage = result.SourceLanguage
	record.Provider = info.Provider
	record.Metadata = record.Metadata.Merge(domain.Metadata{
		Confidence:       &confidence,
		ProviderInfo:     &info,
		TranslatedAt:     &now,
		UpdatedAt:        &now,
		ProcessingTimeMS: &elapsed,
	})
	record.Metadata.Error = ""
	record.Metadata.ErrorClass = ""

	if err := j.translations.Update(ctx, &record); err != nil {
		return j.failUnexpected(ctx, args, &post, fmt.Errorf("save translation: %w", err), errorClass(err), start, nil)
	}

	done := domain.NewTranslationEvent(post.ID, record.Language, domain.NotifyCompleted, now)
	done.TranslationID = idRef(record.ID)
	done.TranslatedContent = record.TranslatedContent
	j.notify(ctx, domain.TopicChannel(post.TopicID), done)
	j.notify(ctx, domain.PostChannel(post.ID), domain.PostTranslationEvent{
		PostID:      post.ID,
		Translation: domain.SnapshotOf(record),
	})

	j.events.Completed(domain.CompletedEntry{
		PostID:           post.ID,
		Language:         record.Language,
		TranslationID:    record.ID,
		Model:            info.Model,
		TokensUsed:       info.TokensUsed,
		TranslatedLength: utf8.RuneCountInString(record.TranslatedContent),
		ProcessingMS:     elapsed,
		ForceUpdate:      args.ForceUpdate,
	})

	return Outcome{Status: OutcomeCompleted, Translation: &record}
}

func (j *TranslateJob) fail(ctx context.Context, post domain.Post, record domain.Translation, cause error, elapsed float64) Outcome {
	now := j.now().UTC()
	message := domain.UserMessage(cause)
	class := errorClass(cause)

	record.Status = domain.StatusFailed
	record.Metadata = record.Metadata.Merge(domain.Metadata{
		Error:            message,
		ErrorClass:       class,
		FailedAt:         &now,
		UpdatedAt:        &now,
		ProcessingTimeMS: &elapsed,
	})
	if err := j.translations.Update(ctx, &record); err != nil {
		j.logger.Error("cannot persist failed translation", "post_id", post.ID, "language", record.Language, "error", err)
	}

	failed := domain.NewTranslationEvent(post.ID, record.Language, domain.NotifyFailed, now)
	failed.TranslationID = idRef(record.ID)
	failed.Error = message
	j.notify(ctx, domain.TopicChannel(post.TopicID), failed)

	j.events.Failed(post.ID, record.Language, message, class, elapsed)
	j.logger.Warn("translation failed", "post_id", post.ID, "language", record.Language, "error", cause)

	return Outcome{Status: OutcomeFailed, Translation: &record, Err: cause}
}

// failUnexpected handles errors the state machine does not model. It marks the
// record failed when one exists and never panics itself. A non-nil announced
// post means "started" went out on its topic, so "failed" follows there.
func (j *TranslateJob) failUnexpected(ctx context.Context, args domain.TranslateJobArgs, announced *domain.Post, cause error, class string, start time.Time, stack []byte) (out Outcome) {
	out = Outcome{Status: OutcomeFailed, Err: cause}
	elapsed := elapsedMS(start, j.now())

	attrs := []any{"post_id", args.PostID, "language", args.TargetLanguage, "error", cause}
	if len(stack) > 0 {
		attrs = append(attrs, "stack", string(stack))
	}
	j.logger.Error("translation job aborted", attrs...)

	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("cannot record aborted translation", "post_id", args.PostID, "panic", r)
		}
	}()

	j.events.Failed(args.PostID, args.TargetLanguage, cause.Error(), class, elapsed)

	now := j.now().UTC()
	record, err := j.translations.Find(ctx, args.PostID, args.TargetLanguage)
	if err == nil {
		record.Status = domain.StatusFailed
		record.Metadata = record.Metadata.Merge(domain.Metadata{
			Error:      cause.Error(),
			ErrorClass: class,
			FailedAt:   &now,
			UpdatedAt:  &now,
		})
		if err := j.translations.Update(ctx, &record); err != nil {
			j.logger.Error("cannot persist aborted translation", "post_id", args.PostID, "error", err)
		} else {
			out.Translation = &record
		}
	}

	if announced != nil {
		failed := domain.NewTranslationEvent(args.PostID, args.TargetLanguage, domain.NotifyFailed, now)
		failed.TranslationID = idRef(record.ID)
		failed.Error = domain.UserMessage(cause)
		j.notify(ctx, domain.TopicChannel(announced.TopicID), failed)
	}
	return out
}

func (j *TranslateJob) skip(args domain.TranslateJobArgs, reason string) Outcome {
	j.events.Skipped(args.PostID, args.TargetLanguage, reason)
	return Outcome{Status: OutcomeSkipped, Reason: reason}
}

// notify is fire-and-forget: errors and panics from the notifier are logged only.
func (j *TranslateJob) notify(ctx context.Context, channel string, payload any) {
	if j.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			j.logger.Warn("notifier panicked", "channel", channel, "panic", r)
		}
	}()
	if err := j.notifier.Publish(ctx, channel, payload); err != nil {
		j.logger.Warn("notification failed", "channel", channel, "error", err)
	}
}

// errorClass names the failure for metadata: the modeled kind, or the Go type
// of the innermost cause.
func errorClass(err error) string {
	if kind := domain.KindOf(err); kind != "" {
		return string(kind)
	}
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	return fmt.Sprintf("%T", err)
}

func elapsedMS(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000
}

func idRef(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

type nopEventLog struct{}

func (nopEventLog) Started(int64, string, int, bool)              {}
func (nopEventLog) Completed(domain.CompletedEntry)               {}
func (nopEventLog) Failed(int64, string, string, string, float64) {}
func (nopEventLog) Skipped(int64, string, string)                 {}
