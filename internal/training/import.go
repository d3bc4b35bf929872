package training

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Dajus/daal-sub000/internal/grading"
)

// Bundle is the YAML course format accepted by ImportCourse:
//
//	course:
//	  name: Fire Safety
//	  passingScore: 80
//	  maxAttempts: 3
//	slides:
//	  - title: Extinguishers
//	    content: ...
//	questions:
//	  - text: Which class covers electrical fires?
//	    type: single_choice
//	    options: [A, B, C]
//	    correct: C
type Bundle struct {
	Course struct {
		Name               string `yaml:"name"`
		Description        string `yaml:"description"`
		PassingScore       int    `yaml:"passingScore"`
		TimeLimitMinutes   *int   `yaml:"timeLimitMinutes"`
		MaxAttempts        int    `yaml:"maxAttempts"`
		MaxQuestionsInTest *int   `yaml:"maxQuestionsInTest"`
	} `yaml:"course"`
	Slides []struct {
		Title    string `yaml:"title"`
		Content  string `yaml:"content"`
		ImageKey string `yaml:"imageKey"`
	} `yaml:"slides"`
	Questions []struct {
		Text        string   `yaml:"text"`
		Type        string   `yaml:"type"`
		Options     []string `yaml:"options"`
		Correct     any      `yaml:"correct"`
		Explanation *string  `yaml:"explanation"`
		Points      int      `yaml:"points"`
	} `yaml:"questions"`
}

// ImportCourse creates a course with its slides and questions from a YAML
// bundle. Slide and question order follow the document. Nothing is stored
// unless every part is valid.
func (s *Service) ImportCourse(ctx context.Context, r io.Reader) (CourseDetail, error) {
	var b Bundle
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return CourseDetail{}, invalid("empty course bundle", nil)
		}
		return CourseDetail{}, &Error{Kind: KindValidation, Msg: "invalid course bundle", Err: err}
	}

	now := s.now().Unix()
	c := Course{
		ID:                 uuid.NewString(),
		Name:               b.Course.Name,
		Description:        b.Course.Description,
		PassingScore:       b.Course.PassingScore,
		TimeLimitMinutes:   b.Course.TimeLimitMinutes,
		MaxAttempts:        b.Course.MaxAttempts,
		MaxQuestionsInTest: b.Course.MaxQuestionsInTest,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	if err := c.validate(); err != nil {
		return CourseDetail{}, err
	}

	slides := make([]TheorySlide, 0, len(b.Slides))
	for i, in := range b.Slides {
		if in.Title == "" {
			return CourseDetail{}, invalid(fmt.Sprintf("slide %d", i+1), map[string]string{"title": "required"})
		}
		slides = append(slides, TheorySlide{
			ID: uuid.NewString(), CourseID: c.ID, Title: in.Title, Content: in.Content,
			ImageKey: in.ImageKey, SlideOrder: i + 1, CreatedAt: now,
		})
	}

	questions := make([]Question, 0, len(b.Questions))
	for i, in := range b.Questions {
		correct, err := grading.FromAny(in.Correct)
		if err != nil {
			return CourseDetail{}, invalid(fmt.Sprintf("question %d", i+1), map[string]string{"correct": "shape"})
		}
		q := Question{
			ID:             uuid.NewString(),
			CourseID:       c.ID,
			QuestionText:   in.Text,
			QuestionType:   grading.QuestionType(in.Type),
			Options:        in.Options,
			CorrectAnswers: correct,
			Explanation:    in.Explanation,
			Points:         in.Points,
			QuestionOrder:  i + 1,
			IsActive:       true,
			CreatedAt:      now,
		}
		if q.Points == 0 {
			q.Points = 1
		}
		if err := q.validate(); err != nil {
			var e *Error
			if errors.As(err, &e) {
				e.Msg = fmt.Sprintf("question %d: %s", i+1, e.Msg)
			}
			return CourseDetail{}, err
		}
		questions = append(questions, q)
	}

	if err := s.store.ImportCourse(ctx, c, slides, questions); err != nil {
		return CourseDetail{}, err
	}
	s.log.InfoContext(ctx, "course imported", "course_id", c.ID, "slides", len(slides), "questions", len(questions))
	return CourseDetail{Course: c, Slides: slides, Questions: questions}, nil
}
