package training

import (
	"context"
	"math/rand/v2"
)

// Assembler builds the randomized question set shown for one test attempt.
type Assembler struct {
	courses   CourseRepo
	questions QuestionRepo
	// Shuffle permutes n elements through swap; rand.Shuffle (Fisher-Yates)
	// unless a test pins it.
	Shuffle func(n int, swap func(i, j int))
}

func NewAssembler(courses CourseRepo, questions QuestionRepo) *Assembler {
	return &Assembler{courses: courses, questions: questions, Shuffle: rand.Shuffle}
}

// BuildTest shuffles all active questions, keeps the first maxQuestionsInTest
// of them when that cap is set, and shuffles each question's options. The
// result carries no answer keys. An empty slice means the course has no
// questions.
func (a *Assembler) BuildTest(ctx context.Context, courseID string) ([]StudentQuestion, error) {
	course, err := a.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	qs, err := a.questions.ActiveQuestions(ctx, courseID)
	if err != nil {
		return nil, err
	}

	a.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	if n := course.MaxQuestionsInTest; n != nil && *n > 0 && *n < len(qs) {
		qs = qs[:*n]
	}

	out := make([]StudentQuestion, 0, len(qs))
	for _, q := range qs {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		a.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
		out = append(out, StudentQuestion{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      opts,
			Points:       q.Points,
		})
	}
	return out, nil
}
