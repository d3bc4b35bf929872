package training

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Dajus/daal-sub000/internal/db"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLStore persists the training model with database/sql. Placeholders are
// $N which both pgx and modernc sqlite accept; booleans always travel as
// parameters so the same SQL runs on INTEGER and BOOLEAN columns.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(h *sql.DB) *SQLStore { return &SQLStore{db: h} }

func (s *SQLStore) DB() *sql.DB { return s.db }

func insertErr(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func noRows(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(what)
	}
	return err
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

// ---- courses ----

const courseCols = `id,name,description,passing_score,time_limit_minutes,max_attempts,max_questions_in_test,is_active,created_at,updated_at`

func scanCourse(r rowScanner) (Course, error) {
	var c Course
	var limit, maxQ sql.NullInt64
	err := r.Scan(&c.ID, &c.Name, &c.Description, &c.PassingScore, &limit, &c.MaxAttempts, &maxQ, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	c.TimeLimitMinutes = intPtr(limit)
	c.MaxQuestionsInTest = intPtr(maxQ)
	return c, err
}

func insertCourse(ctx context.Context, q querier, c Course) error {
	_, err := q.ExecContext(ctx, `INSERT INTO courses (`+courseCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.Name, c.Description, c.PassingScore, nullInt(c.TimeLimitMinutes), c.MaxAttempts,
		nullInt(c.MaxQuestionsInTest), c.IsActive, c.CreatedAt, c.UpdatedAt)
	return insertErr(err)
}

func (s *SQLStore) InsertCourse(ctx context.Context, c Course) error {
	return insertCourse(ctx, s.db, c)
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	c, err := scanCourse(s.db.QueryRowContext(ctx, `SELECT `+courseCols+` FROM courses WHERE id=$1`, id))
	if err != nil {
		return Course{}, noRows(err, "course")
	}
	return c, nil
}

func (s *SQLStore) ListCourses(ctx context.Context, includeInactive bool) ([]Course, error) {
	q := `SELECT ` + courseCols + ` FROM courses`
	args := []any{}
	if !includeInactive {
		q += ` WHERE is_active=$1`
		args = append(args, true)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY created_at DESC, name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateCourse(ctx context.Context, c Course) error {
	res, err := s.db.ExecContext(ctx, `UPDATE courses SET name=$1, description=$2, passing_score=$3,
		time_limit_minutes=$4, max_attempts=$5, max_questions_in_test=$6, updated_at=$7 WHERE id=$8`,
		c.Name, c.Description, c.PassingScore, nullInt(c.TimeLimitMinutes), c.MaxAttempts,
		nullInt(c.MaxQuestionsInTest), c.UpdatedAt, c.ID)
	return affected(res, err, "course")
}

// DeactivateCourse soft-deletes a course together with its questions and
// access codes.
func (s *SQLStore) DeactivateCourse(ctx context.Context, id string, at int64) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE courses SET is_active=$1, updated_at=$2 WHERE id=$3`, false, at, id)
		if err := affected(res, err, "course"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE test_questions SET is_active=$1 WHERE course_id=$2`, false, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE access_codes SET is_active=$1 WHERE course_id=$2`, false, id)
		return err
	})
}

func affected(res sql.Result, err error, what string) error {
	if err != nil {
		return insertErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(what)
	}
	return nil
}

// ---- slides ----

func insertSlide(ctx context.Context, q querier, sl TheorySlide) error {
	_, err := q.ExecContext(ctx, `INSERT INTO theory_slides (id,course_id,title,content,image_key,slide_order,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sl.ID, sl.CourseID, sl.Title, sl.Content, sl.ImageKey, sl.SlideOrder, sl.CreatedAt)
	return insertErr(err)
}

func (s *SQLStore) InsertSlide(ctx context.Context, sl TheorySlide) error {
	return insertSlide(ctx, s.db, sl)
}

func (s *SQLStore) ListSlides(ctx context.Context, courseID string) ([]TheorySlide, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,course_id,title,content,image_key,slide_order,created_at
		FROM theory_slides WHERE course_id=$1 ORDER BY slide_order, created_at`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TheorySlide{}
	for rows.Next() {
		var sl TheorySlide
		if err := rows.Scan(&sl.ID, &sl.CourseID, &sl.Title, &sl.Content, &sl.ImageKey, &sl.SlideOrder, &sl.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// ---- questions ----

const questionCols = `id,course_id,question_text,question_type,options_json,correct_answers_json,explanation,points,question_order,is_active,created_at`

func scanQuestion(r rowScanner) (Question, error) {
	var q Question
	var opts, correct string
	var expl sql.NullString
	if err := r.Scan(&q.ID, &q.CourseID, &q.QuestionText, &q.QuestionType, &opts, &correct, &expl,
		&q.Points, &q.QuestionOrder, &q.IsActive, &q.CreatedAt); err != nil {
		return Question{}, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return Question{}, fmt.Errorf("question %s options: %w", q.ID, err)
	}
	if err := json.Unmarshal([]byte(correct), &q.CorrectAnswers); err != nil {
		return Question{}, fmt.Errorf("question %s answer key: %w", q.ID, err)
	}
	q.Explanation = strPtr(expl)
	return q, nil
}

func questionJSON(q Question) (string, string, error) {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return "", "", err
	}
	correct, err := json.Marshal(q.CorrectAnswers)
	if err != nil {
		return "", "", err
	}
	return string(opts), string(correct), nil
}

func insertQuestion(ctx context.Context, qr querier, q Question) error {
	opts, correct, err := questionJSON(q)
	if err != nil {
		return err
	}
	_, err = qr.ExecContext(ctx, `INSERT INTO test_questions (`+questionCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		q.ID, q.CourseID, q.QuestionText, string(q.QuestionType), opts, correct, nullStr(q.Explanation),
		q.Points, q.QuestionOrder, q.IsActive, q.CreatedAt)
	return insertErr(err)
}

func (s *SQLStore) InsertQuestion(ctx context.Context, q Question) error {
	return insertQuestion(ctx, s.db, q)
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM test_questions WHERE id=$1`, id))
	if err != nil {
		return Question{}, noRows(err, "question")
	}
	return q, nil
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	opts, correct, err := questionJSON(q)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE test_questions SET question_text=$1, question_type=$2, options_json=$3,
		correct_answers_json=$4, explanation=$5, points=$6, question_order=$7, is_active=$8 WHERE id=$9`,
		q.QuestionText, string(q.QuestionType), opts, correct, nullStr(q.Explanation), q.Points, q.QuestionOrder, q.IsActive, q.ID)
	return affected(res, err, "question")
}

func (s *SQLStore) ListQuestions(ctx context.Context, courseID string) ([]Question, error) {
	return s.queryQuestions(ctx, `SELECT `+questionCols+` FROM test_questions WHERE course_id=$1
		ORDER BY question_order, created_at`, courseID)
}

func (s *SQLStore) ActiveQuestions(ctx context.Context, courseID string) ([]Question, error) {
	return s.queryQuestions(ctx, `SELECT `+questionCols+` FROM test_questions WHERE course_id=$1 AND is_active=$2
		ORDER BY question_order, created_at`, courseID, true)
}

func (s *SQLStore) queryQuestions(ctx context.Context, query string, args ...any) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ImportCourse stores a course with its slides and questions atomically.
func (s *SQLStore) ImportCourse(ctx context.Context, c Course, slides []TheorySlide, questions []Question) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := insertCourse(ctx, tx, c); err != nil {
			return err
		}
		for _, sl := range slides {
			if err := insertSlide(ctx, tx, sl); err != nil {
				return err
			}
		}
		for _, q := range questions {
			if err := insertQuestion(ctx, tx, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// ---- companies & admins ----

func (s *SQLStore) InsertCompany(ctx context.Context, c Company) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO companies (id,name,contact_email,created_at) VALUES ($1,$2,$3,$4)`,
		c.ID, c.Name, c.ContactEmail, c.CreatedAt)
	return insertErr(err)
}

func (s *SQLStore) GetCompany(ctx context.Context, id string) (Company, error) {
	var c Company
	err := s.db.QueryRowContext(ctx, `SELECT id,name,contact_email,created_at FROM companies WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.ContactEmail, &c.CreatedAt)
	if err != nil {
		return Company{}, noRows(err, "company")
	}
	return c, nil
}

func (s *SQLStore) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,contact_email,created_at FROM companies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Company{}
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactEmail, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertSuperAdmin(ctx context.Context, a SuperAdmin) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO super_admins (id,username,password_hash,created_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (username) DO UPDATE SET password_hash=EXCLUDED.password_hash`,
		a.ID, a.Username, a.PasswordHash, a.CreatedAt)
	return err
}

func (s *SQLStore) SuperAdminByUsername(ctx context.Context, username string) (SuperAdmin, error) {
	var a SuperAdmin
	err := s.db.QueryRowContext(ctx, `SELECT id,username,password_hash,created_at FROM super_admins WHERE username=$1`, username).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return SuperAdmin{}, noRows(err, "admin")
	}
	return a, nil
}

func (s *SQLStore) InsertCompanyAdmin(ctx context.Context, a CompanyAdmin) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO company_admins (id,company_id,email,name,password_hash,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, a.ID, a.CompanyID, a.Email, a.Name, a.PasswordHash, a.CreatedAt)
	return insertErr(err)
}

func (s *SQLStore) CompanyAdminByEmail(ctx context.Context, email string) (CompanyAdmin, error) {
	var a CompanyAdmin
	err := s.db.QueryRowContext(ctx, `SELECT id,company_id,email,name,password_hash,created_at FROM company_admins WHERE email=$1`, email).
		Scan(&a.ID, &a.CompanyID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return CompanyAdmin{}, noRows(err, "company admin")
	}
	return a, nil
}

// ---- access codes ----

const codeCols = `id,code,course_id,company_id,unlimited_participants,max_participants,theory_to_test,valid_until,is_active,created_at`

func scanCode(r rowScanner) (AccessCode, error) {
	var c AccessCode
	var company sql.NullString
	var maxP sql.NullInt64
	err := r.Scan(&c.ID, &c.Code, &c.CourseID, &company, &c.UnlimitedParticipants, &maxP, &c.TheoryToTest, &c.ValidUntil, &c.IsActive, &c.CreatedAt)
	c.CompanyID = strPtr(company)
	c.MaxParticipants = intPtr(maxP)
	return c, err
}

// InsertAccessCodes stores a batch all-or-nothing.
func (s *SQLStore) InsertAccessCodes(ctx context.Context, codes []AccessCode) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, c := range codes {
			_, err := tx.ExecContext(ctx, `INSERT INTO access_codes (`+codeCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				c.ID, c.Code, c.CourseID, nullStr(c.CompanyID), c.UnlimitedParticipants, nullInt(c.MaxParticipants),
				c.TheoryToTest, c.ValidUntil, c.IsActive, c.CreatedAt)
			if err != nil {
				return insertErr(err)
			}
		}
		return nil
	})
}

func (s *SQLStore) AccessCodeByCode(ctx context.Context, code string) (AccessCode, error) {
	c, err := scanCode(s.db.QueryRowContext(ctx, `SELECT `+codeCols+` FROM access_codes WHERE code=$1`, code))
	if err != nil {
		return AccessCode{}, noRows(err, "access code")
	}
	return c, nil
}

func (s *SQLStore) GetAccessCode(ctx context.Context, id string) (AccessCode, error) {
	c, err := scanCode(s.db.QueryRowContext(ctx, `SELECT `+codeCols+` FROM access_codes WHERE id=$1`, id))
	if err != nil {
		return AccessCode{}, noRows(err, "access code")
	}
	return c, nil
}

func (s *SQLStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM access_codes WHERE code=$1`, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ListAccessCodes lists codes, newest first. An empty companyID lists all.
func (s *SQLStore) ListAccessCodes(ctx context.Context, companyID string) ([]AccessCode, error) {
	q := `SELECT ` + codeCols + ` FROM access_codes`
	args := []any{}
	if companyID != "" {
		q += ` WHERE company_id=$1`
		args = append(args, companyID)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY created_at DESC, code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AccessCode{}
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetAccessCodeActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE access_codes SET is_active=$1 WHERE id=$2`, active, id)
	return affected(res, err, "access code")
}

func (s *SQLStore) CountInFlightSessions(ctx context.Context, accessCodeID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM student_sessions s
		WHERE s.access_code_id=$1 AND NOT EXISTS (
			SELECT 1 FROM certificates c WHERE c.student_session_id=s.id AND c.is_valid=$2)`,
		accessCodeID, true).Scan(&n)
	return n, err
}

// ---- sessions ----

const sessionCols = `id,access_code_id,student_name,student_email,ip_address,user_agent,theory_started_at,theory_completed_at,created_at`

func scanSession(r rowScanner) (Session, error) {
	var s Session
	var started, completed sql.NullInt64
	err := r.Scan(&s.ID, &s.AccessCodeID, &s.StudentName, &s.StudentEmail, &s.IPAddress, &s.UserAgent, &started, &completed, &s.CreatedAt)
	s.TheoryStartedAt = int64Ptr(started)
	s.TheoryCompletedAt = int64Ptr(completed)
	return s, err
}

func (s *SQLStore) FindSession(ctx context.Context, name, email, accessCodeID string) (Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM student_sessions
		WHERE student_name=$1 AND student_email=$2 AND access_code_id=$3`, name, email, accessCodeID))
	if err != nil {
		return Session{}, noRows(err, "session")
	}
	return sess, nil
}

func (s *SQLStore) InsertSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO student_sessions (`+sessionCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sess.ID, sess.AccessCodeID, sess.StudentName, sess.StudentEmail, sess.IPAddress, sess.UserAgent,
		nullInt64(sess.TheoryStartedAt), nullInt64(sess.TheoryCompletedAt), sess.CreatedAt)
	return insertErr(err)
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM student_sessions WHERE id=$1`, id))
	if err != nil {
		return Session{}, noRows(err, "session")
	}
	return sess, nil
}

// MarkTheoryStarted sets theory_started_at once; later calls are no-ops.
func (s *SQLStore) MarkTheoryStarted(ctx context.Context, id string, at int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE student_sessions SET theory_started_at=$1 WHERE id=$2 AND theory_started_at IS NULL`, at, id)
	return err
}

// MarkTheoryCompleted sets theory_completed_at (and a missing start) once.
func (s *SQLStore) MarkTheoryCompleted(ctx context.Context, id string, at int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE student_sessions SET theory_completed_at=$1,
		theory_started_at=COALESCE(theory_started_at, $1) WHERE id=$2 AND theory_completed_at IS NULL`, at, id)
	return err
}

// SessionStatus is a session as listed for admins.
type SessionStatus struct {
	Session
	Certified bool `json:"certified"`
	InFlight  bool `json:"inFlight"` // counts against capacity
}

func (s *SQLStore) ListSessionsForCode(ctx context.Context, accessCodeID string) ([]SessionStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+prefixed("s.", sessionCols)+`,
		EXISTS (SELECT 1 FROM certificates c WHERE c.student_session_id=s.id AND c.is_valid=$2)
		FROM student_sessions s WHERE s.access_code_id=$1 ORDER BY s.created_at, s.student_name`, accessCodeID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SessionStatus{}
	for rows.Next() {
		var st SessionStatus
		var started, completed sql.NullInt64
		if err := rows.Scan(&st.ID, &st.AccessCodeID, &st.StudentName, &st.StudentEmail, &st.IPAddress, &st.UserAgent,
			&started, &completed, &st.CreatedAt, &st.Certified); err != nil {
			return nil, err
		}
		st.TheoryStartedAt = int64Ptr(started)
		st.TheoryCompletedAt = int64Ptr(completed)
		st.InFlight = !st.Certified
		out = append(out, st)
	}
	return out, rows.Err()
}

func prefixed(p, cols string) string {
	parts := strings.Split(cols, ",")
	for i := range parts {
		parts[i] = p + parts[i]
	}
	return strings.Join(parts, ",")
}

// ---- attempts ----

const attemptCols = `id,student_session_id,answers_json,score,max_score,percentage,passed,time_taken_seconds,attempt_number,started_at,completed_at`

func scanAttempt(r rowScanner) (Attempt, error) {
	var a Attempt
	var answers string
	if err := r.Scan(&a.ID, &a.StudentSessionID, &answers, &a.Score, &a.MaxScore, &a.Percentage, &a.Passed,
		&a.TimeTakenSeconds, &a.AttemptNumber, &a.StartedAt, &a.CompletedAt); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s answers: %w", a.ID, err)
	}
	return a, nil
}

func (s *SQLStore) CountAttempts(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_attempts WHERE student_session_id=$1`, sessionID).Scan(&n)
	return n, err
}

func (s *SQLStore) InsertAttempt(ctx context.Context, a Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO test_attempts (`+attemptCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.StudentSessionID, string(answers), a.Score, a.MaxScore, a.Percentage, a.Passed,
		a.TimeTakenSeconds, a.AttemptNumber, a.StartedAt, a.CompletedAt)
	return insertErr(err)
}

func (s *SQLStore) AttemptByNumber(ctx context.Context, sessionID string, n int) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM test_attempts
		WHERE student_session_id=$1 AND attempt_number=$2`, sessionID, n))
	if err != nil {
		return Attempt{}, noRows(err, "attempt")
	}
	return a, nil
}

// ListAttempts returns the session's attempts, most recent first.
func (s *SQLStore) ListAttempts(ctx context.Context, sessionID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptCols+` FROM test_attempts WHERE student_session_id=$1
		ORDER BY started_at DESC, attempt_number DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- certificates ----

const certCols = `id,student_session_id,test_attempt_id,certificate_number,verification_code,issued_at,is_valid`

func scanCert(r rowScanner) (Certificate, error) {
	var c Certificate
	var attempt sql.NullString
	err := r.Scan(&c.ID, &c.StudentSessionID, &attempt, &c.CertificateNumber, &c.VerificationCode, &c.IssuedAt, &c.IsValid)
	c.TestAttemptID = strPtr(attempt)
	return c, err
}

func (s *SQLStore) ValidCertificate(ctx context.Context, sessionID string) (Certificate, error) {
	c, err := scanCert(s.db.QueryRowContext(ctx, `SELECT `+certCols+` FROM certificates
		WHERE student_session_id=$1 AND is_valid=$2`, sessionID, true))
	if err != nil {
		return Certificate{}, noRows(err, "certificate")
	}
	return c, nil
}

func (s *SQLStore) InsertCertificate(ctx context.Context, c Certificate) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO certificates (`+certCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.StudentSessionID, nullStr(c.TestAttemptID), c.CertificateNumber, c.VerificationCode, c.IssuedAt, c.IsValid)
	return insertErr(err)
}

func (s *SQLStore) CertificateByVerification(ctx context.Context, code string) (Certificate, error) {
	c, err := scanCert(s.db.QueryRowContext(ctx, `SELECT `+certCols+` FROM certificates WHERE verification_code=$1`, code))
	if err != nil {
		return Certificate{}, noRows(err, "certificate")
	}
	return c, nil
}
