package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dajus/daal-sub000/internal/events"
)

const (
	bcryptCost       = 12
	maxCodesPerBatch = 100
)

// Scope limits admin operations to one company. The zero value is the
// super-admin scope.
type Scope struct {
	CompanyID string
}

func (sc Scope) allows(companyID *string) bool {
	if sc.CompanyID == "" {
		return true
	}
	return companyID != nil && *companyID == sc.CompanyID
}

// ---- courses ----

type CourseDetail struct {
	Course    Course        `json:"course"`
	Slides    []TheorySlide `json:"slides"`
	Questions []Question    `json:"questions"`
}

func (s *Service) CreateCourse(ctx context.Context, c Course) (Course, error) {
	now := s.now().Unix()
	c.ID = uuid.NewString()
	c.IsActive = true
	c.CreatedAt, c.UpdatedAt = now, now
	if err := c.validate(); err != nil {
		return Course{}, err
	}
	if err := s.store.InsertCourse(ctx, c); err != nil {
		return Course{}, err
	}
	return c, nil
}

func (s *Service) ListCourses(ctx context.Context, includeInactive bool) ([]Course, error) {
	return s.store.ListCourses(ctx, includeInactive)
}

func (s *Service) CourseDetail(ctx context.Context, id string) (CourseDetail, error) {
	c, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return CourseDetail{}, err
	}
	slides, err := s.store.ListSlides(ctx, id)
	if err != nil {
		return CourseDetail{}, err
	}
	qs, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return CourseDetail{}, err
	}
	return CourseDetail{Course: c, Slides: slides, Questions: qs}, nil
}

// UpdateCourse replaces the editable fields of a course.
func (s *Service) UpdateCourse(ctx context.Context, id string, in Course) (Course, error) {
	cur, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	cur.Name = in.Name
	cur.Description = in.Description
	cur.PassingScore = in.PassingScore
	cur.TimeLimitMinutes = in.TimeLimitMinutes
	cur.MaxAttempts = in.MaxAttempts
	cur.MaxQuestionsInTest = in.MaxQuestionsInTest
	cur.UpdatedAt = s.now().Unix()
	if err := cur.validate(); err != nil {
		return Course{}, err
	}
	if err := s.store.UpdateCourse(ctx, cur); err != nil {
		return Course{}, err
	}
	return cur, nil
}

// DeleteCourse deactivates the course with its questions and access codes.
// Sessions, attempts and certificates are kept.
func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	if err := s.store.DeactivateCourse(ctx, id, s.now().Unix()); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "course deactivated", "course_id", id)
	return nil
}

func (s *Service) AddSlide(ctx context.Context, courseID string, sl TheorySlide) (TheorySlide, error) {
	if _, err := s.store.GetCourse(ctx, courseID); err != nil {
		return TheorySlide{}, err
	}
	if strings.TrimSpace(sl.Title) == "" {
		return TheorySlide{}, invalid("invalid slide", map[string]string{"title": "required"})
	}
	sl.ID = uuid.NewString()
	sl.CourseID = courseID
	sl.CreatedAt = s.now().Unix()
	if err := s.store.InsertSlide(ctx, sl); err != nil {
		return TheorySlide{}, err
	}
	return sl, nil
}

func (s *Service) AddQuestion(ctx context.Context, courseID string, q Question) (Question, error) {
	if _, err := s.store.GetCourse(ctx, courseID); err != nil {
		return Question{}, err
	}
	q.ID = uuid.NewString()
	q.CourseID = courseID
	q.IsActive = true
	q.CreatedAt = s.now().Unix()
	if q.Points == 0 {
		q.Points = 1
	}
	if err := q.validate(); err != nil {
		return Question{}, err
	}
	if err := s.store.InsertQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *Service) UpdateQuestion(ctx context.Context, id string, in Question) (Question, error) {
	cur, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	cur.QuestionText = in.QuestionText
	cur.QuestionType = in.QuestionType
	cur.Options = in.Options
	cur.CorrectAnswers = in.CorrectAnswers
	cur.Explanation = in.Explanation
	cur.Points = in.Points
	cur.QuestionOrder = in.QuestionOrder
	if cur.Points == 0 {
		cur.Points = 1
	}
	if err := cur.validate(); err != nil {
		return Question{}, err
	}
	if err := s.store.UpdateQuestion(ctx, cur); err != nil {
		return Question{}, err
	}
	return cur, nil
}

func (s *Service) DeactivateQuestion(ctx context.Context, id string) error {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	q.IsActive = false
	return s.store.UpdateQuestion(ctx, q)
}

// ---- companies & admins ----

func (s *Service) CreateCompany(ctx context.Context, name, contactEmail string) (Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Company{}, invalid("invalid company", map[string]string{"name": "required"})
	}
	c := Company{ID: uuid.NewString(), Name: name, ContactEmail: strings.TrimSpace(contactEmail), CreatedAt: s.now().Unix()}
	if err := s.store.InsertCompany(ctx, c); err != nil {
		return Company{}, err
	}
	return c, nil
}

func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	return s.store.ListCompanies(ctx)
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Service) CreateCompanyAdmin(ctx context.Context, companyID, email, name, password string) (CompanyAdmin, error) {
	if _, err := s.store.GetCompany(ctx, companyID); err != nil {
		return CompanyAdmin{}, err
	}
	// bcrypt only hashes the first 72 bytes and rejects longer input
	switch {
	case len(password) < 8:
		return CompanyAdmin{}, invalid("invalid company admin", map[string]string{"password": "min"})
	case len(password) > 72:
		return CompanyAdmin{}, invalid("invalid company admin", map[string]string{"password": "max"})
	}
	hash, err := HashPassword(password)
	if err != nil {
		return CompanyAdmin{}, err
	}
	a := CompanyAdmin{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    s.now().Unix(),
	}
	if err := s.store.InsertCompanyAdmin(ctx, a); err != nil {
		return CompanyAdmin{}, err
	}
	return a, nil
}

// EnsureSuperAdmin seeds or updates the configured super admin. passHash
// must already be a bcrypt hash.
func (s *Service) EnsureSuperAdmin(ctx context.Context, username, passHash string) error {
	if _, err := bcrypt.Cost([]byte(passHash)); err != nil {
		return fmt.Errorf("super admin password hash: %w", err)
	}
	return s.store.UpsertSuperAdmin(ctx, SuperAdmin{
		ID: uuid.NewString(), Username: username, PasswordHash: passHash, CreatedAt: s.now().Unix(),
	})
}

func (s *Service) AuthenticateSuperAdmin(ctx context.Context, username, password string) (SuperAdmin, error) {
	a, err := s.store.SuperAdminByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return SuperAdmin{}, ErrInvalidLogin
	}
	if err != nil {
		return SuperAdmin{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return SuperAdmin{}, ErrInvalidLogin
	}
	return a, nil
}

func (s *Service) AuthenticateCompanyAdmin(ctx context.Context, email, password string) (CompanyAdmin, error) {
	a, err := s.store.CompanyAdminByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return CompanyAdmin{}, ErrInvalidLogin
	}
	if err != nil {
		return CompanyAdmin{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return CompanyAdmin{}, ErrInvalidLogin
	}
	return a, nil
}

// ---- access codes ----

type GenerateCodesInput struct {
	CourseID              string
	CompanyID             *string
	Count                 int
	UnlimitedParticipants bool
	MaxParticipants       *int
	TheoryToTest          bool
	ValidUntil            time.Time
}

// GenerateAccessCodes creates Count codes in one batch. Company admins can
// only create codes for their own company.
func (s *Service) GenerateAccessCodes(ctx context.Context, sc Scope, in GenerateCodesInput) ([]AccessCode, error) {
	if sc.CompanyID != "" {
		in.CompanyID = &sc.CompanyID
	}
	fields := map[string]string{}
	if in.Count < 1 || in.Count > maxCodesPerBatch {
		fields["count"] = "range"
	}
	switch {
	case in.UnlimitedParticipants && in.MaxParticipants != nil:
		fields["maxParticipants"] = "excluded_with"
	case !in.UnlimitedParticipants && (in.MaxParticipants == nil || *in.MaxParticipants < 1):
		fields["maxParticipants"] = "required"
	}
	if !in.ValidUntil.After(s.now()) {
		fields["validUntil"] = "future"
	}
	if len(fields) > 0 {
		return nil, invalid("invalid access code request", fields)
	}

	course, err := s.store.GetCourse(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, notFound("course")
	}
	if in.CompanyID != nil {
		if _, err := s.store.GetCompany(ctx, *in.CompanyID); err != nil {
			return nil, err
		}
	}

	now := s.now().Unix()
	seen := make(map[string]struct{}, in.Count)
	codes := make([]AccessCode, 0, in.Count)
	for len(codes) < in.Count {
		code, err := s.Registry.NewCode(ctx, course.Name)
		if err != nil {
			return nil, err
		}
		// same millisecond and suffix within one batch
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, AccessCode{
			ID:                    uuid.NewString(),
			Code:                  code,
			CourseID:              course.ID,
			CompanyID:             in.CompanyID,
			UnlimitedParticipants: in.UnlimitedParticipants,
			MaxParticipants:       in.MaxParticipants,
			TheoryToTest:          in.TheoryToTest,
			ValidUntil:            in.ValidUntil.Unix(),
			IsActive:              true,
			CreatedAt:             now,
		})
	}
	if err := s.store.InsertAccessCodes(ctx, codes); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "access codes generated", "course_id", course.ID, "count", len(codes))
	s.emit(ctx, events.AccessCodesIssued, course.ID, map[string]any{"count": len(codes), "companyId": in.CompanyID})
	return codes, nil
}

func (s *Service) ListAccessCodes(ctx context.Context, sc Scope) ([]AccessCode, error) {
	return s.store.ListAccessCodes(ctx, sc.CompanyID)
}

// scopedCode hides codes of other companies as not found.
func (s *Service) scopedCode(ctx context.Context, sc Scope, id string) (AccessCode, error) {
	c, err := s.store.GetAccessCode(ctx, id)
	if err != nil {
		return AccessCode{}, err
	}
	if !sc.allows(c.CompanyID) {
		return AccessCode{}, notFound("access code")
	}
	return c, nil
}

func (s *Service) SetAccessCodeActive(ctx context.Context, sc Scope, id string, active bool) (AccessCode, error) {
	c, err := s.scopedCode(ctx, sc, id)
	if err != nil {
		return AccessCode{}, err
	}
	if err := s.store.SetAccessCodeActive(ctx, id, active); err != nil {
		return AccessCode{}, err
	}
	c.IsActive = active
	return c, nil
}

type CodeUsage struct {
	AccessCode AccessCode      `json:"accessCode"`
	InFlight   int             `json:"inFlight"`
	Sessions   []SessionStatus `json:"sessions"`
}

func (s *Service) CodeSessions(ctx context.Context, sc Scope, id string) (CodeUsage, error) {
	c, err := s.scopedCode(ctx, sc, id)
	if err != nil {
		return CodeUsage{}, err
	}
	sessions, err := s.store.ListSessionsForCode(ctx, id)
	if err != nil {
		return CodeUsage{}, err
	}
	u := CodeUsage{AccessCode: c, Sessions: sessions}
	for _, st := range sessions {
		if st.InFlight {
			u.InFlight++
		}
	}
	return u, nil
}

func (s *Service) SessionAttempts(ctx context.Context, sc Scope, sessionID string) ([]Attempt, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.scopedCode(ctx, sc, sess.AccessCodeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("session")
		}
		return nil, err
	}
	return s.Ledger.History(ctx, sessionID)
}
