package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/grading"
	"github.com/mind-engage/mindengage-academy/internal/metrics"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
	syncx "github.com/mind-engage/mindengage-academy/internal/sync"
	"github.com/mind-engage/mindengage-academy/internal/tracing"
)

var errCancelled = errors.New("session cancelled")

type Options struct {
	Clock  clock.Clock
	Logger *zap.Logger
	Events EventSink // optional
}

// Session drives one actor through one timed exam. All methods are safe
// for concurrent use; the countdown goroutine and explicit calls share the
// same submission path.
type Session struct {
	repo   Repository
	actor  rbac.Actor
	clock  clock.Clock
	log    *zap.Logger
	events EventSink

	mu        sync.Mutex
	state     State
	courseID  string
	exam      store.Exam
	view      []store.Question
	keys      []grading.Q
	answers   []int
	remaining int
	startedAt time.Time
	touched   time.Time

	timedOut bool
	pending  *store.Attempt // graded but not yet persisted
	result   *Result
	lastErr  error
	inflight chan struct{}

	stop    chan struct{}
	done    chan struct{}
	stopped bool
}

func NewSession(repo Repository, actor rbac.Actor, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if actor == nil {
		actor = rbac.Anonymous{}
	}
	return &Session{
		repo:    repo,
		actor:   actor,
		clock:   opts.Clock,
		log:     opts.Logger.With(zap.String("actor", actor.ID())),
		events:  opts.Events,
		state:   StateLoading,
		touched: opts.Clock.Now(),
	}
}

func (s *Session) Actor() rbac.Actor { return s.actor }

// Load fetches the course's exam and its questions and moves the session
// to Ready. Lookup and permission failures leave the session Failed.
func (s *Session) Load(ctx context.Context, courseID string) error {
	ctx, span := tracing.Tracer().Start(ctx, "exam.Load")
	defer span.End()
	span.SetAttributes(attribute.String("course.id", courseID))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading {
		return fmt.Errorf("load in state %s: %w", s.state, errs.ErrInvalidState)
	}
	s.courseID = courseID
	s.touched = s.clock.Now()

	fail := func(err error) error {
		s.state = StateFailed
		s.lastErr = err
		span.RecordError(err)
		return err
	}

	e, err := s.repo.ExamForCourse(ctx, s.actor, courseID)
	if err != nil {
		return fail(err)
	}
	keyed, err := s.repo.GradingQuestions(ctx, s.actor, e.ID)
	if err != nil {
		return fail(err)
	}
	view, err := s.repo.Questions(ctx, s.actor, e.ID)
	if err != nil {
		return fail(err)
	}
	if len(view) != len(keyed) {
		return fail(fmt.Errorf("question set changed while loading: %w", errs.ErrPersistence))
	}

	keys := make([]grading.Q, len(keyed))
	for i, q := range keyed {
		if q.CorrectIndex == nil || q.ID != view[i].ID {
			return fail(fmt.Errorf("question %s: %w", q.ID, errs.ErrPersistence))
		}
		keys[i] = grading.Q{Points: q.Points, Correct: *q.CorrectIndex}
	}

	s.exam = e
	s.view = view
	s.keys = keys
	s.answers = make([]int, len(view))
	for i := range s.answers {
		s.answers[i] = grading.Unanswered
	}
	s.remaining = e.DurationMinutes * 60
	s.state = StateReady
	return nil
}

// Start begins the countdown. It runs until the deadline, Submit, Cancel
// or cancellation of ctx, whichever comes first. ctx also bounds the
// automatic submission on timeout, so it should outlive the request that
// called Start.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return fmt.Errorf("start in state %s: %w", s.state, errs.ErrInvalidState)
	}
	s.state = StateInProgress
	s.startedAt = s.clock.Now()
	s.touched = s.startedAt
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.countdown(ctx, s.clock.Ticker(time.Second), s.stop, s.done)
	return nil
}

func (s *Session) countdown(ctx context.Context, t *clock.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-t.C:
			if finished := s.Tick(ctx); finished {
				return
			}
		}
	}
}

// Tick advances the countdown by one second. When it reaches zero the
// session submits itself. It reports whether the countdown is over.
func (s *Session) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return true
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		s.mu.Unlock()
		return false
	}
	// Expiry and the move out of InProgress happen under one lock so no
	// answer lands after the clock hit zero.
	if _, err := s.submitLocked(ctx, true); err != nil {
		s.log.Warn("timed-out submission failed", zap.String("course_id", s.courseID), zap.Error(err))
	}
	return true
}

// SelectAnswer records choice for question q. Last write wins.
func (s *Session) SelectAnswer(q, choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return fmt.Errorf("answer in state %s: %w", s.state, errs.ErrInvalidState)
	}
	if q < 0 || q >= len(s.view) {
		return fmt.Errorf("question %d of %d: %w", q, len(s.view), errs.ErrInvalidInput)
	}
	if choice < 0 || choice >= len(s.view[q].Options) {
		return fmt.Errorf("choice %d of %d: %w", choice, len(s.view[q].Options), errs.ErrInvalidInput)
	}
	s.answers[q] = choice
	s.touched = s.clock.Now()
	return nil
}

// Submit grades and persists the attempt. It is one-shot: once the session
// has left InProgress later calls return the stored result, and a call
// racing an in-flight submission waits for it. After a failed attempt
// write, Submit retries the write with the answers already graded.
func (s *Session) Submit(ctx context.Context) (Result, error) {
	return s.submit(ctx, false)
}

func (s *Session) submit(ctx context.Context, timedOut bool) (Result, error) {
	s.mu.Lock()
	return s.submitLocked(ctx, timedOut)
}

// submitLocked is entered with s.mu held and releases it.
func (s *Session) submitLocked(ctx context.Context, timedOut bool) (Result, error) {
	switch s.state {
	case StateCompleted:
		r := *s.result
		s.mu.Unlock()
		return r, nil

	case StateSubmitting:
		ch := s.inflight
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		return s.outcome()

	case StateFailed:
		if s.pending == nil {
			err := s.lastErr
			s.mu.Unlock()
			return Result{}, fmt.Errorf("submit after failure (%v): %w", err, errs.ErrInvalidState)
		}

	case StateInProgress:
		s.halt()
		g, err := grading.Score(s.keys, s.answers)
		if err != nil {
			s.state = StateFailed
			s.lastErr = err
			s.mu.Unlock()
			metrics.ExamSubmissions.WithLabelValues("error").Inc()
			return Result{}, err
		}
		end := s.clock.Now().UTC().Truncate(time.Second)
		s.timedOut = timedOut
		s.pending = &store.Attempt{
			ExamID:      s.exam.ID,
			CourseID:    s.courseID,
			StudentID:   s.actor.ID(),
			Answers:     append([]int(nil), s.answers...),
			Score:       g.Percentage,
			Passed:      grading.Passed(g.Percentage, s.exam.PassingScore),
			Completed:   true,
			TimedOut:    timedOut,
			StartedAt:   s.startedAt.UTC().Truncate(time.Second),
			CompletedAt: &end,
		}
		s.result = &Result{
			EarnedPoints: g.EarnedPoints,
			TotalPoints:  g.TotalPoints,
			Score:        g.Percentage,
			PassingScore: s.exam.PassingScore,
			Passed:       s.pending.Passed,
			TimedOut:     timedOut,
			Unanswered:   countUnanswered(s.answers),
		}

	default:
		st := s.state
		s.mu.Unlock()
		return Result{}, fmt.Errorf("submit in state %s: %w", st, errs.ErrInvalidState)
	}

	s.state = StateSubmitting
	s.lastErr = nil
	s.inflight = make(chan struct{})
	attempt := *s.pending
	res := *s.result
	s.mu.Unlock()

	res, err := s.persist(ctx, attempt, res)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
	} else {
		s.state = StateCompleted
		s.pending = nil
		s.result = &res
	}
	s.touched = s.clock.Now()
	close(s.inflight)
	s.mu.Unlock()

	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// persist writes the attempt and, on a pass, the enrollment completion and
// certificate. Only the attempt write can fail the submission.
func (s *Session) persist(ctx context.Context, a store.Attempt, res Result) (Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "exam.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("exam.id", a.ExamID), attribute.Int("score", a.Score))

	saved, err := s.repo.RecordAttempt(ctx, s.actor, a)
	if err != nil {
		span.RecordError(err)
		metrics.ExamSubmissions.WithLabelValues("error").Inc()
		s.log.Error("attempt write failed", zap.String("exam_id", a.ExamID), zap.Error(err))
		return Result{}, err
	}
	res.AttemptID = saved.ID
	s.emit(ctx, syncx.TypeAttemptSubmitted, saved.ID, saved)

	if !res.Passed {
		metrics.ExamSubmissions.WithLabelValues("failed").Inc()
		return res, nil
	}
	metrics.ExamSubmissions.WithLabelValues("passed").Inc()

	if e, err := s.repo.CompleteEnrollment(ctx, s.actor, a.CourseID); err != nil {
		res.Warnings = append(res.Warnings, "enrollment not marked complete: "+err.Error())
		s.log.Warn("enrollment completion failed", zap.String("course_id", a.CourseID), zap.Error(err))
	} else {
		s.emit(ctx, syncx.TypeEnrollmentCompleted, e.ID, e)
	}

	cert, err := s.repo.IssueCertificate(ctx, s.actor, store.Certificate{
		StudentID: a.StudentID,
		CourseID:  a.CourseID,
		ExamID:    a.ExamID,
		Score:     a.Score,
	})
	switch {
	case err == nil:
		res.CertificateID = cert.ID
		s.emit(ctx, syncx.TypeCertificateIssued, cert.ID, cert)
	case errors.Is(err, errs.ErrDuplicate):
		res.CertificateID = cert.ID
	default:
		res.Warnings = append(res.Warnings, "certificate not issued: "+err.Error())
		s.log.Warn("certificate issuance failed", zap.String("course_id", a.CourseID), zap.Error(err))
	}
	return res, nil
}

func (s *Session) emit(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	ev, err := syncx.NewEvent(typ, key, data)
	if err == nil {
		err = s.events.Append(ctx, ev)
	}
	if err != nil {
		s.log.Warn("event log append failed", zap.String("type", typ), zap.Error(err))
	}
}

func (s *Session) outcome() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCompleted {
		return *s.result, nil
	}
	return Result{}, s.lastErr
}

// Cancel stops the countdown and waits for its goroutine to exit. A
// session cancelled before submitting ends Failed.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.halt()
	done := s.done
	if s.state == StateInProgress || s.state == StateReady || s.state == StateLoading {
		s.state = StateFailed
		s.lastErr = errCancelled
	}
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// halt signals the countdown goroutine to stop. Callers hold s.mu.
func (s *Session) halt() {
	if s.stop != nil && !s.stopped {
		close(s.stop)
		s.stopped = true
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:            s.state,
		CourseID:         s.courseID,
		Exam:             s.exam,
		Questions:        append([]store.Question(nil), s.view...),
		Answers:          append([]int(nil), s.answers...),
		RemainingSeconds: s.remaining,
	}
	if s.result != nil && s.state == StateCompleted {
		r := *s.result
		r.Warnings = append([]string(nil), r.Warnings...)
		snap.Result = &r
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// idleSince returns the time of the last state change or answer.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func countUnanswered(answers []int) int {
	n := 0
	for _, a := range answers {
		if a == grading.Unanswered {
			n++
		}
	}
	return n
}
