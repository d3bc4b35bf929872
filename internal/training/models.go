package training

import (
	"fmt"
	"time"

	"github.com/Dajus/daal-sub000/internal/grading"
)

// Timestamps are unix seconds throughout.

type Course struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	PassingScore       int    `json:"passingScore"` // percentage, inclusive
	TimeLimitMinutes   *int   `json:"timeLimitMinutes"`
	MaxAttempts        int    `json:"maxAttempts"`
	MaxQuestionsInTest *int   `json:"maxQuestionsInTest"`
	IsActive           bool   `json:"isActive"`
	CreatedAt          int64  `json:"createdAt"`
	UpdatedAt          int64  `json:"updatedAt"`
}

func (c Course) validate() error {
	fields := map[string]string{}
	if c.Name == "" {
		fields["name"] = "required"
	}
	if c.PassingScore < 0 || c.PassingScore > 100 {
		fields["passingScore"] = "range"
	}
	if c.MaxAttempts < 1 {
		fields["maxAttempts"] = "min"
	}
	if c.TimeLimitMinutes != nil && *c.TimeLimitMinutes < 1 {
		fields["timeLimitMinutes"] = "min"
	}
	if c.MaxQuestionsInTest != nil && *c.MaxQuestionsInTest < 0 {
		fields["maxQuestionsInTest"] = "min"
	}
	if len(fields) > 0 {
		return &Error{Kind: KindValidation, Msg: "invalid course", Fields: fields}
	}
	return nil
}

type TheorySlide struct {
	ID         string `json:"id"`
	CourseID   string `json:"courseId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	ImageKey   string `json:"imageKey,omitempty"`
	SlideOrder int    `json:"slideOrder"`
	CreatedAt  int64  `json:"createdAt"`
}

type Company struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contactEmail"`
	CreatedAt    int64  `json:"createdAt"`
}

type SuperAdmin struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"createdAt"`
}

type CompanyAdmin struct {
	ID           string `json:"id"`
	CompanyID    string `json:"companyId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"createdAt"`
}

// AccessCode admits a cohort of students into one course. Capacity is either
// unlimited or MaxParticipants concurrent in-flight sessions.
type AccessCode struct {
	ID                    string  `json:"id"`
	Code                  string  `json:"code"`
	CourseID              string  `json:"courseId"`
	CompanyID             *string `json:"companyId"`
	UnlimitedParticipants bool    `json:"unlimitedParticipants"`
	MaxParticipants       *int    `json:"maxParticipants"`
	TheoryToTest          bool    `json:"theoryToTest"`
	ValidUntil            int64   `json:"validUntil"`
	IsActive              bool    `json:"isActive"`
	CreatedAt             int64   `json:"createdAt"`
}

// Expired reports whether now is past ValidUntil.
func (c AccessCode) Expired(now time.Time) bool {
	return now.Unix() > c.ValidUntil
}

type Session struct {
	ID                string `json:"id"`
	AccessCodeID      string `json:"accessCodeId"`
	StudentName       string `json:"studentName"`
	StudentEmail      string `json:"studentEmail"`
	IPAddress         string `json:"ipAddress,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
	TheoryStartedAt   *int64 `json:"theoryStartedAt"`
	TheoryCompletedAt *int64 `json:"theoryCompletedAt"`
	CreatedAt         int64  `json:"createdAt"`
}

// Question is the canonical, admin-side view including the answer key.
type Question struct {
	ID             string               `json:"id"`
	CourseID       string               `json:"courseId"`
	QuestionText   string               `json:"questionText"`
	QuestionType   grading.QuestionType `json:"questionType"`
	Options        []string             `json:"options"`
	CorrectAnswers grading.Answer       `json:"correctAnswers"`
	Explanation    *string              `json:"explanation"`
	Points         int                  `json:"points"`
	QuestionOrder  int                  `json:"questionOrder"`
	IsActive       bool                 `json:"isActive"`
	CreatedAt      int64                `json:"createdAt"`
}

func (q Question) validate() error {
	fields := map[string]string{}
	if q.QuestionText == "" {
		fields["questionText"] = "required"
	}
	if !q.QuestionType.Valid() {
		fields["questionType"] = "oneof"
	}
	if q.Points < 1 {
		fields["points"] = "min"
	}
	if len(q.Options) < 2 {
		fields["options"] = "min"
	}
	opts := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if _, dup := opts[o]; dup {
			fields["options"] = "unique"
		}
		opts[o] = struct{}{}
	}
	if q.QuestionType.Valid() && !q.CorrectAnswers.Fits(q.QuestionType) {
		fields["correctAnswers"] = "shape"
	}
	correct := q.CorrectAnswers.Options()
	if len(correct) == 0 {
		fields["correctAnswers"] = "required"
	}
	seen := make(map[string]struct{}, len(correct))
	for _, a := range correct {
		if _, ok := opts[a]; !ok {
			fields["correctAnswers"] = "subset"
		}
		if _, dup := seen[a]; dup {
			fields["correctAnswers"] = "unique"
		}
		seen[a] = struct{}{}
	}
	if len(fields) > 0 {
		return &Error{Kind: KindValidation, Msg: "invalid question", Fields: fields}
	}
	return nil
}

func (q Question) grading() grading.Q {
	return grading.Q{ID: q.ID, Type: q.QuestionType, Points: q.Points, Correct: q.CorrectAnswers, Explanation: q.Explanation}
}

// StudentQuestion is what a test taker sees: no answer key, no explanation.
type StudentQuestion struct {
	ID           string               `json:"id"`
	QuestionText string               `json:"questionText"`
	QuestionType grading.QuestionType `json:"questionType"`
	Options      []string             `json:"options"`
	Points       int                  `json:"points"`
}

// Attempt is one graded submission. Rows are append-only.
type Attempt struct {
	ID               string                    `json:"id"`
	StudentSessionID string                    `json:"studentSessionId"`
	Answers          map[string]grading.Answer `json:"answers"`
	Score            int                       `json:"score"`
	MaxScore         int                       `json:"maxScore"`
	Percentage       float64                   `json:"percentage"`
	Passed           bool                      `json:"passed"`
	TimeTakenSeconds int                       `json:"timeTakenSeconds"`
	AttemptNumber    int                       `json:"attemptNumber"`
	StartedAt        int64                     `json:"startedAt"`
	CompletedAt      int64                     `json:"completedAt"`
}

type Certificate struct {
	ID                string  `json:"id"`
	StudentSessionID  string  `json:"studentSessionId"`
	TestAttemptID     *string `json:"testAttemptId"`
	CertificateNumber string  `json:"certificateNumber"`
	VerificationCode  string  `json:"verificationCode"`
	IssuedAt          int64   `json:"issuedAt"`
	IsValid           bool    `json:"isValid"`
}

func certificateNumber(code string, at time.Time) string {
	return fmt.Sprintf("CERT-%s-%d", code, at.UnixMilli())
}
