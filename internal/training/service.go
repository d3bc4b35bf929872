package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dajus/daal-sub000/internal/events"
	"github.com/Dajus/daal-sub000/internal/grading"
	"github.com/Dajus/daal-sub000/internal/locks"
)

type Options struct {
	Locker locks.Locker
	Events EventSink // optional
	Logger *slog.Logger
	Now    func() time.Time
	// TimeLimitGrace is tolerated past a course time limit before the
	// credited time is capped.
	TimeLimitGrace time.Duration
}

// Service is the entry point used by the HTTP layer. It composes the
// registry, session manager, assembler, grading engine, ledger and issuer,
// and serializes per-session writes.
type Service struct {
	store     *SQLStore
	Registry  *Registry
	Sessions  *SessionManager
	Assembler *Assembler
	Ledger    *Ledger
	Issuer    *Issuer

	engine *grading.Engine
	locker locks.Locker
	events EventSink
	log    *slog.Logger
	now    func() time.Time
	grace  time.Duration
}

func NewService(store *SQLStore, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Locker == nil {
		opts.Locker = locks.NewLocal()
	}
	reg := NewRegistry(store, opts.Now)
	return &Service{
		store:     store,
		Registry:  reg,
		Sessions:  NewSessionManager(reg, store, opts.Locker, opts.Logger, opts.Now),
		Assembler: NewAssembler(store, store),
		Ledger:    NewLedger(store, opts.Now),
		Issuer:    NewIssuer(store, opts.Now),
		engine:    grading.NewEngine(),
		locker:    opts.Locker,
		events:    opts.Events,
		log:       opts.Logger,
		now:       opts.Now,
		grace:     opts.TimeLimitGrace,
	}
}

func (s *Service) Store() *SQLStore { return s.store }

func (s *Service) emit(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, typ, key, data); err != nil {
		s.log.WarnContext(ctx, "append event", "type", typ, "key", key, "err", err)
	}
}

func (s *Service) lockSession(ctx context.Context, id string) (func(), error) {
	release, err := s.locker.Lock(ctx, "session:"+id)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	return release, nil
}

// studentScope loads a session with its access code and course.
func (s *Service) studentScope(ctx context.Context, sessionID string) (Session, AccessCode, Course, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, AccessCode{}, Course{}, err
	}
	code, err := s.store.GetAccessCode(ctx, sess.AccessCodeID)
	if err != nil {
		return Session{}, AccessCode{}, Course{}, err
	}
	course, err := s.store.GetCourse(ctx, code.CourseID)
	if err != nil {
		return Session{}, AccessCode{}, Course{}, err
	}
	return sess, code, course, nil
}

// ---- login ----

func (s *Service) Login(ctx context.Context, in LoginInput) (Session, AccessCode, error) {
	sess, code, created, err := s.Sessions.Login(ctx, in)
	if err != nil {
		return Session{}, AccessCode{}, err
	}
	if created {
		s.emit(ctx, events.SessionCreated, sess.ID, map[string]any{
			"accessCode": code.Code, "studentEmail": sess.StudentEmail,
		})
	}
	return sess, code, nil
}

// ---- theory ----

type TheoryView struct {
	Course Course        `json:"course"`
	Slides []TheorySlide `json:"slides"`
}

// Theory returns the reading material and marks the theory as started.
func (s *Service) Theory(ctx context.Context, sessionID string) (TheoryView, error) {
	sess, _, course, err := s.studentScope(ctx, sessionID)
	if err != nil {
		return TheoryView{}, err
	}
	slides, err := s.store.ListSlides(ctx, course.ID)
	if err != nil {
		return TheoryView{}, err
	}
	if sess.TheoryStartedAt == nil {
		if err := s.store.MarkTheoryStarted(ctx, sess.ID, s.now().Unix()); err != nil {
			return TheoryView{}, err
		}
	}
	return TheoryView{Course: course, Slides: slides}, nil
}

type TheoryResult struct {
	TheoryToTest bool         `json:"theoryToTest"`
	Certificate  *Certificate `json:"certificate"`
}

// CompleteTheory records theory completion. On a code that needs no test
// the certificate is issued right away; repeated calls return the same one.
func (s *Service) CompleteTheory(ctx context.Context, sessionID string) (TheoryResult, error) {
	release, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return TheoryResult{}, err
	}
	defer release()

	sess, code, _, err := s.studentScope(ctx, sessionID)
	if err != nil {
		return TheoryResult{}, err
	}
	if sess.TheoryCompletedAt == nil {
		at := s.now().Unix()
		if err := s.store.MarkTheoryCompleted(ctx, sess.ID, at); err != nil {
			return TheoryResult{}, err
		}
		sess.TheoryCompletedAt = &at
		s.emit(ctx, events.TheoryCompleted, sess.ID, map[string]any{"theoryToTest": code.TheoryToTest})
	}
	res := TheoryResult{TheoryToTest: code.TheoryToTest}
	if code.TheoryToTest {
		return res, nil
	}
	cert, created, err := s.Issuer.IssueTheoryOnly(ctx, sess, code)
	if err != nil {
		return TheoryResult{}, err
	}
	if created {
		s.certified(ctx, sess, cert)
	}
	res.Certificate = &cert
	return res, nil
}

func (s *Service) certified(ctx context.Context, sess Session, c Certificate) {
	s.log.InfoContext(ctx, "certificate issued", "session_id", sess.ID, "certificate", c.CertificateNumber)
	s.emit(ctx, events.CertificateIssued, sess.ID, map[string]any{
		"certificateNumber": c.CertificateNumber, "testAttemptId": c.TestAttemptID,
	})
}

// ---- test ----

func (s *Service) testGate(ctx context.Context, sess Session, code AccessCode, course Course) ([]Attempt, error) {
	if !code.TheoryToTest {
		return nil, ErrNoTest
	}
	if sess.TheoryCompletedAt == nil {
		return nil, ErrTheoryPending
	}
	attempts, err := s.Ledger.History(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range attempts {
		if a.Passed {
			return nil, ErrAlreadyPassed
		}
	}
	if len(attempts) >= course.MaxAttempts {
		return nil, ErrMaxAttempts
	}
	return attempts, nil
}

// BuildTest returns a freshly shuffled question set for the session.
func (s *Service) BuildTest(ctx context.Context, sessionID string) ([]StudentQuestion, error) {
	sess, code, course, err := s.studentScope(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.testGate(ctx, sess, code, course); err != nil {
		return nil, err
	}
	qs, err := s.Assembler.BuildTest(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}
	return qs, nil
}

type SubmitInput struct {
	Answers          map[string]grading.Answer
	TimeTakenSeconds int
}

type SubmitResult struct {
	Attempt           Attempt          `json:"attempt"`
	Certificate       *Certificate     `json:"certificate"`
	Passed            bool             `json:"passed"`
	Score             int              `json:"score"`
	MaxScore          int              `json:"maxScore"`
	Percentage        float64          `json:"percentage"`
	QuestionsCount    int              `json:"questionsCount"`
	AttemptsRemaining int              `json:"attemptsRemaining"`
	Results           []grading.Result `json:"results"`
}

// SubmitTest grades the answers against the stored questions, records the
// attempt and, when passed, issues the certificate. Only answered questions
// of the session's course are graded; null answers count as unanswered and
// unknown ids are ignored. A failure to issue the certificate leaves the
// attempt recorded; GET /student/certificate issues it later.
func (s *Service) SubmitTest(ctx context.Context, sessionID string, in SubmitInput) (SubmitResult, error) {
	if in.TimeTakenSeconds < 0 {
		return SubmitResult{}, invalid("invalid submission", map[string]string{"timeTakenSeconds": "min"})
	}
	sess, code, course, err := s.studentScope(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}

	// the submission size is client controlled; match it against the course
	// in memory rather than binding every id into the query
	qs, err := s.store.ActiveQuestions(ctx, course.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	canonical := make([]grading.Q, 0, len(qs))
	graded := make(map[string]grading.Answer, len(qs))
	for _, q := range qs {
		a, ok := in.Answers[q.ID]
		if !ok || a.IsZero() {
			continue
		}
		canonical = append(canonical, q.grading())
		graded[q.ID] = a
	}
	card := s.engine.Score(canonical, graded, course.PassingScore)

	release, err := s.lockSession(ctx, sess.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	defer release()

	// re-read under the lock; theory or attempts may have moved
	sess, err = s.store.GetSession(ctx, sess.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	if _, err := s.testGate(ctx, sess, code, course); err != nil && !errors.Is(err, ErrMaxAttempts) {
		return SubmitResult{}, err
	}

	attempt, remaining, err := s.Ledger.Record(ctx, sess.ID, course.MaxAttempts, Graded{
		Answers:          graded,
		Card:             card,
		TimeTakenSeconds: s.creditedTime(ctx, sess.ID, course, in.TimeTakenSeconds),
	})
	if err != nil {
		return SubmitResult{}, err
	}
	s.log.InfoContext(ctx, "attempt recorded", "session_id", sess.ID, "attempt", attempt.AttemptNumber,
		"score", attempt.Score, "max_score", attempt.MaxScore, "passed", attempt.Passed)
	s.emit(ctx, events.AttemptRecorded, sess.ID, map[string]any{
		"attemptId": attempt.ID, "attemptNumber": attempt.AttemptNumber,
		"percentage": attempt.Percentage, "passed": attempt.Passed,
	})

	res := SubmitResult{
		Attempt:           attempt,
		Passed:            attempt.Passed,
		Score:             attempt.Score,
		MaxScore:          attempt.MaxScore,
		Percentage:        attempt.Percentage,
		QuestionsCount:    len(card.Results),
		AttemptsRemaining: remaining,
		Results:           card.Results,
	}
	if attempt.Passed {
		cert, created, err := s.Issuer.IssueForAttempt(ctx, sess, code, attempt)
		if err != nil {
			s.log.ErrorContext(ctx, "issue certificate after passed attempt", "session_id", sess.ID, "attempt_id", attempt.ID, "err", err)
		} else {
			if created {
				s.certified(ctx, sess, cert)
			}
			res.Certificate = &cert
		}
	}
	return res, nil
}

// creditedTime caps a reported duration that overshoots the course limit by
// more than the grace period.
func (s *Service) creditedTime(ctx context.Context, sessionID string, course Course, reported int) int {
	if course.TimeLimitMinutes == nil {
		return reported
	}
	limit := *course.TimeLimitMinutes * 60
	if reported <= limit+int(s.grace/time.Second) {
		return reported
	}
	s.log.WarnContext(ctx, "submission over time limit, crediting the limit",
		"session_id", sessionID, "reported_seconds", reported, "limit_seconds", limit)
	return limit
}

// ---- results ----

type StudentInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CertificateView struct {
	Certificate Certificate `json:"certificate"`
	Course      Course      `json:"course"`
	Company     *Company    `json:"company"`
	Student     StudentInfo `json:"student"`
}

// Certificate returns the session's certificate, issuing a missing one the
// session has already earned.
func (s *Service) Certificate(ctx context.Context, sessionID string) (CertificateView, error) {
	release, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return CertificateView{}, err
	}
	defer release()

	sess, code, course, err := s.studentScope(ctx, sessionID)
	if err != nil {
		return CertificateView{}, err
	}
	var attempts []Attempt
	if code.TheoryToTest {
		if attempts, err = s.Ledger.History(ctx, sess.ID); err != nil {
			return CertificateView{}, err
		}
	}
	cert, created, err := s.Issuer.Reconcile(ctx, sess, code, attempts)
	if err != nil {
		return CertificateView{}, err
	}
	if created {
		s.certified(ctx, sess, cert)
	}
	company, err := s.companyOf(ctx, code)
	if err != nil {
		return CertificateView{}, err
	}
	return CertificateView{
		Certificate: cert,
		Course:      course,
		Company:     company,
		Student:     StudentInfo{Name: sess.StudentName, Email: sess.StudentEmail},
	}, nil
}

func (s *Service) companyOf(ctx context.Context, code AccessCode) (*Company, error) {
	if code.CompanyID == nil {
		return nil, nil
	}
	c, err := s.store.GetCompany(ctx, *code.CompanyID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type Verification struct {
	Valid       bool        `json:"valid"`
	Certificate Certificate `json:"certificate"`
	Student     StudentInfo `json:"student"`
	Course      Course      `json:"course"`
	Company     *Company    `json:"company"`
	IssuedAt    int64       `json:"issuedAt"`
}

// Verify is the public certificate lookup.
func (s *Service) Verify(ctx context.Context, verificationCode string) (Verification, error) {
	cert, err := s.Issuer.Verify(ctx, verificationCode)
	if err != nil {
		return Verification{}, err
	}
	sess, code, course, err := s.studentScope(ctx, cert.StudentSessionID)
	if err != nil {
		return Verification{}, err
	}
	company, err := s.companyOf(ctx, code)
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		Valid:       cert.IsValid,
		Certificate: cert,
		Student:     StudentInfo{Name: sess.StudentName, Email: sess.StudentEmail},
		Course:      course,
		Company:     company,
		IssuedAt:    cert.IssuedAt,
	}, nil
}

func (s *Service) Progress(ctx context.Context, sessionID string) (Progress, error) {
	sess, code, course, err := s.studentScope(ctx, sessionID)
	if err != nil {
		return Progress{}, err
	}
	attempts, err := s.Ledger.History(ctx, sess.ID)
	if err != nil {
		return Progress{}, err
	}
	_, err = s.Issuer.Current(ctx, sess.ID)
	if err != nil && !errors.Is(err, ErrNoCertificate) {
		return Progress{}, err
	}
	return DeriveProgress(sess, code, course, attempts, err == nil), nil
}

// Attempts is the session's history, most recent first.
func (s *Service) Attempts(ctx context.Context, sessionID string) ([]Attempt, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.Ledger.History(ctx, sessionID)
}
