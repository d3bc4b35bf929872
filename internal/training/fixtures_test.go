package training

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dajus/daal-sub000/internal/db"
	"github.com/Dajus/daal-sub000/internal/events"
	"github.com/Dajus/daal-sub000/internal/grading"
	"github.com/Dajus/daal-sub000/internal/locks"
	"github.com/Dajus/daal-sub000/internal/logging"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc    *Service
	store  *SQLStore
	events *events.Repo
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h, err := db.Open(context.Background(), db.DriverSQLite, db.MemoryDSN(t.Name()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	store := NewSQLStore(h)
	ev := events.NewRepo(h)
	clk := newClock()
	svc := NewService(store, Options{
		Locker:         locks.NewLocal(),
		Events:         ev,
		Logger:         logging.Discard(),
		Now:            clk.Now,
		TimeLimitGrace: 30 * time.Second,
	})
	return &fixture{svc: svc, store: store, events: ev, clock: clk}
}

func intp(n int) *int { return &n }

// course creates a course with n single-choice questions whose correct
// option is always "B".
func (f *fixture) course(t *testing.T, c Course, n int) Course {
	t.Helper()
	ctx := context.Background()
	if c.Name == "" {
		c.Name = "Fire Safety"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	created, err := f.svc.CreateCourse(ctx, c)
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	for i := 0; i < n; i++ {
		_, err := f.svc.AddQuestion(ctx, created.ID, Question{
			QuestionText:   "question",
			QuestionType:   grading.SingleChoice,
			Options:        []string{"A", "B", "C", "D"},
			CorrectAnswers: grading.Single("B"),
			QuestionOrder:  i + 1,
		})
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
	}
	return created
}

type codeOpts struct {
	max          *int
	theoryToTest bool
	validFor     time.Duration
}

func (f *fixture) code(t *testing.T, courseID string, o codeOpts) AccessCode {
	t.Helper()
	if o.validFor == 0 {
		o.validFor = 30 * 24 * time.Hour
	}
	codes, err := f.svc.GenerateAccessCodes(context.Background(), Scope{}, GenerateCodesInput{
		CourseID:              courseID,
		Count:                 1,
		UnlimitedParticipants: o.max == nil,
		MaxParticipants:       o.max,
		TheoryToTest:          o.theoryToTest,
		ValidUntil:            f.clock.Now().Add(o.validFor),
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return codes[0]
}

func (f *fixture) login(t *testing.T, name string, code AccessCode) Session {
	t.Helper()
	sess, _, err := f.svc.Login(context.Background(), LoginInput{
		StudentName: name, StudentEmail: name + "@example.com", AccessCode: code.Code,
	})
	if err != nil {
		t.Fatalf("login %s: %v", name, err)
	}
	return sess
}

// ready logs a student in and completes the theory.
func (f *fixture) ready(t *testing.T, name string, code AccessCode) Session {
	t.Helper()
	sess := f.login(t, name, code)
	if _, err := f.svc.CompleteTheory(context.Background(), sess.ID); err != nil {
		t.Fatalf("complete theory: %v", err)
	}
	return sess
}

// answers answers every active question of the course, the first correct
// of them right and the rest with "A".
func (f *fixture) answers(t *testing.T, courseID string, correct int) map[string]grading.Answer {
	t.Helper()
	qs, err := f.store.ActiveQuestions(context.Background(), courseID)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]grading.Answer{}
	for i, q := range qs {
		if i < correct {
			out[q.ID] = grading.Single("B")
		} else {
			out[q.ID] = grading.Single("A")
		}
	}
	return out
}
