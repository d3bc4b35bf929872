package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Dajus/daal-sub000/internal/grading"
	"github.com/Dajus/daal-sub000/internal/rbac"
	"github.com/Dajus/daal-sub000/internal/training"
)

type courseRequest struct {
	Name               string `json:"name" validate:"required,max=200"`
	Description        string `json:"description"`
	PassingScore       int    `json:"passingScore" validate:"min=0,max=100"`
	TimeLimitMinutes   *int   `json:"timeLimitMinutes" validate:"omitempty,min=1"`
	MaxAttempts        int    `json:"maxAttempts" validate:"required,min=1"`
	MaxQuestionsInTest *int   `json:"maxQuestionsInTest" validate:"omitempty,min=0"`
}

func (c courseRequest) course() training.Course {
	return training.Course{
		Name:               c.Name,
		Description:        c.Description,
		PassingScore:       c.PassingScore,
		TimeLimitMinutes:   c.TimeLimitMinutes,
		MaxAttempts:        c.MaxAttempts,
		MaxQuestionsInTest: c.MaxQuestionsInTest,
	}
}

// POST /admin/courses
func CreateCourseHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req courseRequest
		if !decode(w, r, &req) {
			return
		}
		c, err := svc.CreateCourse(r.Context(), req.course())
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, c)
	}
}

// GET /admin/courses?all=true
// Inactive courses are listed for super admins only.
func ListCoursesHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
		if rbac.RoleFromContext(r.Context()) != rbac.RoleSuperAdmin {
			all = false
		}
		list, err := svc.ListCourses(r.Context(), all)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /admin/courses/{id}
func GetCourseHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.CourseDetail(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, d)
	}
}

// PUT /admin/courses/{id}
func UpdateCourseHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req courseRequest
		if !decode(w, r, &req) {
			return
		}
		c, err := svc.UpdateCourse(r.Context(), chi.URLParam(r, "id"), req.course())
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

// DELETE /admin/courses/{id}
// Soft delete: the course, its questions and its access codes go inactive.
func DeleteCourseHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteCourse(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type slideRequest struct {
	Title      string `json:"title" validate:"required,max=300"`
	Content    string `json:"content"`
	ImageKey   string `json:"imageKey" validate:"omitempty,max=500"`
	SlideOrder int    `json:"slideOrder" validate:"min=0"`
}

// POST /admin/courses/{id}/slides
func AddSlideHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req slideRequest
		if !decode(w, r, &req) {
			return
		}
		sl, err := svc.AddSlide(r.Context(), chi.URLParam(r, "id"), training.TheorySlide{
			Title:      req.Title,
			Content:    req.Content,
			ImageKey:   req.ImageKey,
			SlideOrder: req.SlideOrder,
		})
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, sl)
	}
}

type questionRequest struct {
	QuestionText   string               `json:"questionText" validate:"required"`
	QuestionType   grading.QuestionType `json:"questionType" validate:"required,oneof=single_choice multiple_choice"`
	Options        []string             `json:"options" validate:"required,min=2,dive,required"`
	CorrectAnswers grading.Answer       `json:"correctAnswers"`
	Explanation    *string              `json:"explanation"`
	Points         int                  `json:"points" validate:"min=0"`
	QuestionOrder  int                  `json:"questionOrder" validate:"min=0"`
}

func (q questionRequest) question() training.Question {
	return training.Question{
		QuestionText:   q.QuestionText,
		QuestionType:   q.QuestionType,
		Options:        q.Options,
		CorrectAnswers: q.CorrectAnswers,
		Explanation:    q.Explanation,
		Points:         q.Points,
		QuestionOrder:  q.QuestionOrder,
	}
}

// POST /admin/courses/{id}/questions
// correctAnswers is a string for single_choice and a list for multiple_choice.
func AddQuestionHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if !decode(w, r, &req) {
			return
		}
		q, err := svc.AddQuestion(r.Context(), chi.URLParam(r, "id"), req.question())
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, q)
	}
}

// PUT /admin/questions/{id}
func UpdateQuestionHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionRequest
		if !decode(w, r, &req) {
			return
		}
		q, err := svc.UpdateQuestion(r.Context(), chi.URLParam(r, "id"), req.question())
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

// DELETE /admin/questions/{id} deactivates; graded history keeps its answers.
func DeleteQuestionHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeactivateQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /admin/courses/import
// Body is a YAML course bundle; the whole bundle is stored or nothing is.
func ImportCourseHandler(svc *training.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := http.MaxBytesReader(w, r.Body, 4*maxBodyBytes)
		d, err := svc.ImportCourse(r.Context(), body)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, d)
	}
}
