package training

type Status string

const (
	StatusNotStarted       Status = "not_started"
	StatusTheoryInProgress Status = "theory_in_progress"
	StatusTheoryCompleted  Status = "theory_completed"
	StatusTestPending      Status = "test_pending"
	StatusTestFailed       Status = "test_failed"
	StatusTestPassed       Status = "test_passed"
	StatusCertified        Status = "certified"
)

// Progress is the completion state of a session. It is derived on read and
// never stored.
type Progress struct {
	Status            Status   `json:"status"`
	TheoryToTest      bool     `json:"theoryToTest"`
	AttemptsUsed      int      `json:"attemptsUsed"`
	AttemptsRemaining int      `json:"attemptsRemaining"`
	BestPercentage    *float64 `json:"bestPercentage"`
	Certified         bool     `json:"certified"`
	// Terminal means no further student action changes the outcome: either
	// certified, or failed with no attempts left.
	Terminal bool `json:"terminal"`
}

// DeriveProgress walks
//
//	not_started -> theory_in_progress -> theory_completed -> certified          (theory only)
//	                                  -> test_pending -> test_failed* -> test_passed -> certified
func DeriveProgress(sess Session, code AccessCode, course Course, attempts []Attempt, certified bool) Progress {
	p := Progress{
		TheoryToTest:      code.TheoryToTest,
		AttemptsUsed:      len(attempts),
		AttemptsRemaining: Remaining(course.MaxAttempts, len(attempts)),
		Certified:         certified,
	}
	passed := false
	for _, a := range attempts {
		if p.BestPercentage == nil || a.Percentage > *p.BestPercentage {
			v := a.Percentage
			p.BestPercentage = &v
		}
		passed = passed || a.Passed
	}

	switch {
	case certified:
		p.Status, p.Terminal = StatusCertified, true
	case sess.TheoryCompletedAt == nil && sess.TheoryStartedAt == nil:
		p.Status = StatusNotStarted
	case sess.TheoryCompletedAt == nil:
		p.Status = StatusTheoryInProgress
	case !code.TheoryToTest:
		p.Status = StatusTheoryCompleted
	case passed:
		p.Status = StatusTestPassed
	case len(attempts) == 0:
		p.Status = StatusTestPending
	default:
		p.Status = StatusTestFailed
		p.Terminal = p.AttemptsRemaining == 0
	}
	return p
}
