package grading

// Q is the canonical view of a question needed for grading. Callers build it
// from stored questions, never from what the client echoed back.
type Q struct {
	ID          string
	Type        QuestionType
	Points      int
	Correct     Answer
	Explanation *string
}

// Result is the outcome of grading a single question response.
type Result struct {
	QuestionID     string  `json:"questionId"`
	SelectedAnswer string  `json:"selectedAnswer"`
	CorrectAnswer  string  `json:"correctAnswer"`
	IsCorrect      bool    `json:"isCorrect"`
	Points         int     `json:"points"`
	MaxPoints      int     `json:"maxPoints"`
	Explanation    *string `json:"explanation"`
}

// Scorecard aggregates a graded submission.
type Scorecard struct {
	Score      int      `json:"score"`
	MaxScore   int      `json:"maxScore"`
	Percentage float64  `json:"percentage"`
	Passed     bool     `json:"passed"`
	Results    []Result `json:"results"`
}

// Strategy decides binary correctness for one question type.
type Strategy interface {
	Correct(q Q, resp Answer) bool
}

// Engine routes by question type to the matching Strategy.
type Engine struct {
	strategies map[QuestionType]Strategy
}

// NewEngine installs the built-in strategies.
func NewEngine() *Engine {
	return &Engine{
		strategies: map[QuestionType]Strategy{
			SingleChoice:   singleChoiceStrategy{},
			MultipleChoice: multipleChoiceStrategy{},
		},
	}
}

// Grade grades one response. Unknown question types are never correct.
func (e *Engine) Grade(q Q, resp Answer) Result {
	res := Result{
		QuestionID:     q.ID,
		SelectedAnswer: resp.String(),
		CorrectAnswer:  q.Correct.String(),
		MaxPoints:      q.Points,
		Explanation:    q.Explanation,
	}
	s, ok := e.strategies[q.Type]
	if ok && s.Correct(q, resp) {
		res.IsCorrect = true
		res.Points = q.Points
	}
	return res
}

// Score grades the submitted answers against the given canonical questions.
// Only questions present in submitted count towards MaxScore; unanswered
// questions are skipped rather than counted wrong. Results follow the order
// of questions.
func (e *Engine) Score(questions []Q, submitted map[string]Answer, passingScore int) Scorecard {
	card := Scorecard{Results: make([]Result, 0, len(questions))}
	for _, q := range questions {
		resp, ok := submitted[q.ID]
		if !ok {
			continue
		}
		r := e.Grade(q, resp)
		card.MaxScore += r.MaxPoints
		card.Score += r.Points
		card.Results = append(card.Results, r)
	}
	card.Percentage = Percentage(card.Score, card.MaxScore)
	card.Passed = Passed(card.Score, card.MaxScore, passingScore)
	return card
}

// Percentage is score/maxScore*100, or 0 when nothing was gradable.
func Percentage(score, maxScore int) float64 {
	if maxScore <= 0 {
		return 0
	}
	return float64(score) * 100 / float64(maxScore)
}

// Passed evaluates percentage >= passingScore in integer arithmetic so that
// boundary cases like 4/5 vs 80 are exact. A submission with nothing
// gradable scores 0%, so it passes only a passing score of 0.
func Passed(score, maxScore, passingScore int) bool {
	if maxScore <= 0 {
		return passingScore <= 0
	}
	return score*100 >= passingScore*maxScore
}

// --- Strategies ---

type singleChoiceStrategy struct{}

// Strict scalar equality; a one-element list does not match.
func (singleChoiceStrategy) Correct(q Q, resp Answer) bool {
	if q.Correct.Kind() != KindSingle || resp.Kind() != KindSingle {
		return false
	}
	return resp.Value() == q.Correct.Value()
}

type multipleChoiceStrategy struct{}

// Order-independent set equality: same length, no repeats, every selected
// option is among the correct ones.
func (multipleChoiceStrategy) Correct(q Q, resp Answer) bool {
	if q.Correct.Kind() != KindMultiple || resp.Kind() != KindMultiple {
		return false
	}
	correct := toSet(q.Correct.Values())
	selected := resp.Values()
	if len(selected) != len(q.Correct.Values()) {
		return false
	}
	seen := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		if _, dup := seen[s]; dup {
			return false
		}
		seen[s] = struct{}{}
		if _, ok := correct[s]; !ok {
			return false
		}
	}
	return true
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}
