package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dajus/daal-sub000/internal/grading"
)

// Ledger is the append-only attempt history of a session.
type Ledger struct {
	attempts AttemptRepo
	now      func() time.Time
}

func NewLedger(attempts AttemptRepo, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{attempts: attempts, now: now}
}

// Graded is a scored submission ready to be recorded.
type Graded struct {
	Answers          map[string]grading.Answer
	Card             grading.Scorecard
	TimeTakenSeconds int
}

// Record appends the attempt as number count+1, rejecting it before anything
// is written when that would exceed maxAttempts. Callers serialize Record per
// session; the (session, attempt_number) unique index catches the rest, in
// which case the attempt already stored under that number is returned.
func (l *Ledger) Record(ctx context.Context, sessionID string, maxAttempts int, g Graded) (Attempt, int, error) {
	prior, err := l.attempts.CountAttempts(ctx, sessionID)
	if err != nil {
		return Attempt{}, 0, fmt.Errorf("count attempts: %w", err)
	}
	number := prior + 1
	if number > maxAttempts {
		return Attempt{}, 0, ErrMaxAttempts
	}

	completed := l.now().Unix()
	a := Attempt{
		ID:               uuid.NewString(),
		StudentSessionID: sessionID,
		Answers:          g.Answers,
		Score:            g.Card.Score,
		MaxScore:         g.Card.MaxScore,
		Percentage:       g.Card.Percentage,
		Passed:           g.Card.Passed,
		TimeTakenSeconds: g.TimeTakenSeconds,
		AttemptNumber:    number,
		StartedAt:        completed - int64(g.TimeTakenSeconds),
		CompletedAt:      completed,
	}
	if a.Answers == nil {
		a.Answers = map[string]grading.Answer{}
	}
	if err := l.attempts.InsertAttempt(ctx, a); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return Attempt{}, 0, fmt.Errorf("insert attempt: %w", err)
		}
		existing, gerr := l.attempts.AttemptByNumber(ctx, sessionID, number)
		if gerr != nil {
			return Attempt{}, 0, gerr
		}
		a = existing
	}
	return a, Remaining(maxAttempts, a.AttemptNumber), nil
}

func (l *Ledger) History(ctx context.Context, sessionID string) ([]Attempt, error) {
	return l.attempts.ListAttempts(ctx, sessionID)
}

// Remaining is how many attempts are left after attempt number used.
func Remaining(maxAttempts, used int) int {
	if r := maxAttempts - used; r > 0 {
		return r
	}
	return 0
}
