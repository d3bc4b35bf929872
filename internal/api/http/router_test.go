package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	auth "github.com/Dajus/daal-sub000/internal/auth/middleware"
	"github.com/Dajus/daal-sub000/internal/db"
	"github.com/Dajus/daal-sub000/internal/events"
	"github.com/Dajus/daal-sub000/internal/locks"
	"github.com/Dajus/daal-sub000/internal/logging"
	"github.com/Dajus/daal-sub000/internal/storage"
	"github.com/Dajus/daal-sub000/internal/training"
)

type testServer struct {
	h   http.Handler
	svc *training.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, db.MemoryDSN(t.Name()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	log := logging.Discard()
	ev := events.NewRepo(h)
	svc := training.NewService(training.NewSQLStore(h), training.Options{
		Locker: locks.NewLocal(),
		Events: ev,
		Logger: log,
	})
	hash, err := bcrypt.GenerateFromPassword([]byte("root-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.EnsureSuperAdmin(ctx, "root", string(hash)); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter(Deps{
		Service:     svc,
		Auth:        auth.NewAuthService("test-secret", time.Hour, time.Hour),
		Blobs:       blobs,
		DB:          h,
		Events:      ev,
		Logger:      log,
		CORSOrigins: []string{"http://localhost:3000"},
	})
	return &testServer{h: router, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, out any) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	var out struct{ Token string }
	expect(t, s.do(t, "POST", "/auth/admin/login", "", map[string]string{"username": "root", "password": "root-pass"}), 200, &out)
	return out.Token
}

// seedCourse creates a course with five single-choice questions answered by "B".
func (s *testServer) seedCourse(t *testing.T, admin string) training.Course {
	t.Helper()
	var c training.Course
	expect(t, s.do(t, "POST", "/admin/courses", admin, map[string]any{
		"name": "Forklift Safety", "passingScore": 80, "maxAttempts": 2,
	}), http.StatusCreated, &c)
	for i := 0; i < 5; i++ {
		expect(t, s.do(t, "POST", "/admin/courses/"+c.ID+"/questions", admin, map[string]any{
			"questionText":   "Which one?",
			"questionType":   "single_choice",
			"options":        []string{"A", "B", "C"},
			"correctAnswers": "B",
			"questionOrder":  i + 1,
		}), http.StatusCreated, nil)
	}
	return c
}

func (s *testServer) seedCode(t *testing.T, admin string, body map[string]any) training.AccessCode {
	t.Helper()
	if _, ok := body["validUntil"]; !ok {
		body["validUntil"] = time.Now().Add(48 * time.Hour).UTC().Format(time.DateOnly)
	}
	var codes []training.AccessCode
	expect(t, s.do(t, "POST", "/admin/access-codes", admin, body), http.StatusCreated, &codes)
	if len(codes) == 0 {
		t.Fatal("no codes generated")
	}
	return codes[0]
}

type loginResult struct {
	Token   string
	Session training.Session
}

func (s *testServer) studentLogin(t *testing.T, name, code string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, "POST", "/auth/student/login", "", map[string]string{
		"studentName": name, "studentEmail": strings.ToLower(name) + "@example.com", "accessCode": code,
	})
}

func TestStudentJourney(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	course := s.seedCourse(t, admin)
	code := s.seedCode(t, admin, map[string]any{"courseId": course.ID, "unlimitedParticipants": true})
	if !code.TheoryToTest {
		t.Fatal("theoryToTest should default to true")
	}

	var first, again loginResult
	expect(t, s.studentLogin(t, "Ana", code.Code), 200, &first)
	expect(t, s.studentLogin(t, "Ana", strings.ToLower(code.Code)), 200, &again)
	if first.Session.ID != again.Session.ID {
		t.Fatalf("returning student got a new session: %s vs %s", first.Session.ID, again.Session.ID)
	}
	tok := first.Token

	var perr errorBody
	expect(t, s.do(t, "GET", "/student/test", tok, nil), http.StatusBadRequest, &perr)
	if perr.Code != string(training.KindPolicy) {
		t.Fatalf("test before theory: %+v", perr)
	}

	expect(t, s.do(t, "GET", "/student/theory", tok, nil), 200, nil)
	var done theoryCompleteResponse
	expect(t, s.do(t, "POST", "/student/theory/complete", tok, "{}"), 200, &done)
	if !done.Success || !done.TheoryToTest || done.Certificate != nil {
		t.Fatalf("theory complete = %+v", done)
	}

	rec := s.do(t, "GET", "/student/test", tok, nil)
	var qs []training.StudentQuestion
	expect(t, rec, 200, &qs)
	if len(qs) != 5 {
		t.Fatalf("questions = %d", len(qs))
	}
	if strings.Contains(rec.Body.String(), "correctAnswers") {
		t.Fatal("answer key leaked to the student")
	}

	answers := map[string]string{}
	for i, q := range qs {
		answers[q.ID] = "B"
		if i == 0 {
			answers[q.ID] = "A"
		}
	}
	var res training.SubmitResult
	expect(t, s.do(t, "POST", "/student/test/submit", tok, map[string]any{
		"answers": answers, "timeTakenSeconds": 120,
	}), 200, &res)
	if !res.Passed || res.Percentage != 80 || res.QuestionsCount != 5 || res.AttemptsRemaining != 1 {
		t.Fatalf("submit = %+v", res)
	}
	if res.Certificate == nil || res.Certificate.TestAttemptID == nil || *res.Certificate.TestAttemptID != res.Attempt.ID {
		t.Fatalf("certificate = %+v", res.Certificate)
	}

	var view training.CertificateView
	expect(t, s.do(t, "GET", "/student/certificate", tok, nil), 200, &view)
	if view.Certificate.VerificationCode != res.Certificate.VerificationCode || view.Student.Name != "Ana" {
		t.Fatalf("certificate view = %+v", view)
	}

	var v training.Verification
	expect(t, s.do(t, "GET", "/verify/"+view.Certificate.VerificationCode, "", nil), 200, &v)
	if !v.Valid || v.Student.Email != "ana@example.com" || v.Course.ID != course.ID || v.IssuedAt != view.Certificate.IssuedAt {
		t.Fatalf("verification = %+v", v)
	}
	expect(t, s.do(t, "GET", "/verify/DOESNOTEXIST", "", nil), http.StatusNotFound, nil)

	var p training.Progress
	expect(t, s.do(t, "GET", "/student/progress", tok, nil), 200, &p)
	if p.Status != training.StatusCertified || !p.Terminal {
		t.Fatalf("progress = %+v", p)
	}
	var hist []training.Attempt
	expect(t, s.do(t, "GET", "/student/attempts", tok, nil), 200, &hist)
	if len(hist) != 1 {
		t.Fatalf("attempts = %+v", hist)
	}

	// passed students cannot sit the test again
	expect(t, s.do(t, "POST", "/student/test/submit", tok, map[string]any{"answers": answers}), http.StatusBadRequest, nil)

	var evs []events.Event
	expect(t, s.do(t, "GET", "/admin/events?key="+first.Session.ID, admin, nil), 200, &evs)
	if len(evs) < 3 {
		t.Fatalf("audit events = %+v", evs)
	}
}

func TestTheoryOnlyCode(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	course := s.seedCourse(t, admin)
	code := s.seedCode(t, admin, map[string]any{
		"courseId": course.ID, "unlimitedParticipants": true, "theoryToTest": false,
	})

	var lr loginResult
	expect(t, s.studentLogin(t, "Bo", code.Code), 200, &lr)
	expect(t, s.do(t, "GET", "/student/certificate", lr.Token, nil), http.StatusNotFound, nil)

	var done theoryCompleteResponse
	expect(t, s.do(t, "POST", "/student/theory/complete", lr.Token, nil), 200, &done)
	if done.TheoryToTest || done.Certificate == nil || done.Certificate.TestAttemptID != nil {
		t.Fatalf("theory-only completion = %+v", done)
	}
	var view training.CertificateView
	expect(t, s.do(t, "GET", "/student/certificate", lr.Token, nil), 200, &view)
	if view.Certificate.ID != done.Certificate.ID {
		t.Fatal("certificate changed between calls")
	}
	expect(t, s.do(t, "GET", "/student/test", lr.Token, nil), http.StatusBadRequest, nil)
}

func TestStudentLoginErrors(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	course := s.seedCourse(t, admin)
	code := s.seedCode(t, admin, map[string]any{"courseId": course.ID, "maxParticipants": 1})

	var e errorBody
	expect(t, s.studentLogin(t, "Cy", "NOPE-123"), http.StatusUnauthorized, &e)
	if e.Code != string(training.KindAuth) {
		t.Fatalf("unknown code: %+v", e)
	}

	expect(t, s.do(t, "POST", "/auth/student/login", "", map[string]string{
		"studentName": "Cy", "accessCode": code.Code,
	}), http.StatusBadRequest, &e)
	if e.Fields["studentEmail"] != "required" {
		t.Fatalf("fields = %+v", e.Fields)
	}
	expect(t, s.do(t, "POST", "/auth/student/login", "", "{not json"), http.StatusBadRequest, nil)

	expect(t, s.studentLogin(t, "Cy", code.Code), 200, nil)
	expect(t, s.studentLogin(t, "Di", code.Code), http.StatusUnauthorized, &e)
	if e.Code != string(training.KindCapacity) {
		t.Fatalf("capacity: %+v", e)
	}
	// the admitted student still gets in
	expect(t, s.studentLogin(t, "Cy", code.Code), 200, nil)

	var upd training.AccessCode
	expect(t, s.do(t, "PATCH", "/admin/access-codes/"+code.ID, admin, map[string]bool{"isActive": false}), 200, &upd)
	if upd.IsActive {
		t.Fatal("code still active")
	}
	expect(t, s.studentLogin(t, "Cy", code.Code), http.StatusUnauthorized, nil)
}

func TestAuthorization(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	course := s.seedCourse(t, admin)
	code := s.seedCode(t, admin, map[string]any{"courseId": course.ID, "unlimitedParticipants": true})

	var lr loginResult
	expect(t, s.studentLogin(t, "Ed", code.Code), 200, &lr)

	expect(t, s.do(t, "GET", "/student/theory", "", nil), http.StatusUnauthorized, nil)
	expect(t, s.do(t, "GET", "/student/theory", "garbage", nil), http.StatusUnauthorized, nil)
	expect(t, s.do(t, "GET", "/admin/courses", lr.Token, nil), http.StatusForbidden, nil)
	expect(t, s.do(t, "GET", "/student/theory", admin, nil), http.StatusForbidden, nil)
	expect(t, s.do(t, "POST", "/auth/admin/login", "", map[string]string{"username": "root", "password": "nope"}), http.StatusUnauthorized, nil)
}

func TestCompanyAdminScope(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	course := s.seedCourse(t, admin)

	var acme, other training.Company
	expect(t, s.do(t, "POST", "/admin/companies", admin, map[string]string{"name": "Acme"}), http.StatusCreated, &acme)
	expect(t, s.do(t, "POST", "/admin/companies", admin, map[string]string{"name": "Other"}), http.StatusCreated, &other)
	expect(t, s.do(t, "POST", "/admin/company-admins", admin, map[string]string{
		"companyId": acme.ID, "email": "lead@acme.test", "name": "Lead", "password": "short",
	}), http.StatusBadRequest, nil)
	var e errorBody
	expect(t, s.do(t, "POST", "/admin/company-admins", admin, map[string]string{
		"companyId": acme.ID, "email": "lead@acme.test", "name": "Lead", "password": strings.Repeat("é", 40),
	}), http.StatusBadRequest, &e)
	if e.Fields["password"] != "max" {
		t.Fatalf("80-byte password: %+v", e)
	}
	expect(t, s.do(t, "POST", "/admin/company-admins", admin, map[string]string{
		"companyId": acme.ID, "email": "lead@acme.test", "name": "Lead", "password": "long-enough",
	}), http.StatusCreated, nil)

	var cl struct{ Token string }
	expect(t, s.do(t, "POST", "/auth/company-admin/login", "", map[string]string{
		"email": "LEAD@acme.test", "password": "long-enough",
	}), 200, &cl)

	foreign := s.seedCode(t, admin, map[string]any{"courseId": course.ID, "unlimitedParticipants": true, "companyId": other.ID})
	own := s.seedCode(t, cl.Token, map[string]any{
		"courseId": course.ID, "unlimitedParticipants": true, "companyId": other.ID, "count": 3,
	})
	if own.CompanyID == nil || *own.CompanyID != acme.ID {
		t.Fatalf("company admin code belongs to %v", own.CompanyID)
	}

	var list []training.AccessCode
	expect(t, s.do(t, "GET", "/admin/access-codes", cl.Token, nil), 200, &list)
	if len(list) != 3 {
		t.Fatalf("company admin sees %d codes", len(list))
	}
	expect(t, s.do(t, "GET", "/admin/access-codes/"+foreign.ID+"/sessions", cl.Token, nil), http.StatusNotFound, nil)
	expect(t, s.do(t, "PATCH", "/admin/access-codes/"+foreign.ID, cl.Token, map[string]bool{"isActive": false}), http.StatusNotFound, nil)

	var usage training.CodeUsage
	expect(t, s.do(t, "GET", "/admin/access-codes/"+own.ID+"/sessions", cl.Token, nil), 200, &usage)

	expect(t, s.do(t, "GET", "/admin/courses", cl.Token, nil), 200, nil)
	expect(t, s.do(t, "POST", "/admin/courses", cl.Token, map[string]any{"name": "x", "maxAttempts": 1}), http.StatusForbidden, nil)
	expect(t, s.do(t, "GET", "/admin/companies", cl.Token, nil), http.StatusForbidden, nil)
}

func TestAccessCodeValidation(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	course := s.seedCourse(t, admin)
	tomorrow := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)

	cases := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"too many", map[string]any{"courseId": course.ID, "count": 101, "unlimitedParticipants": true, "validUntil": tomorrow}, "count"},
		{"no capacity", map[string]any{"courseId": course.ID, "validUntil": tomorrow}, "maxParticipants"},
		{"both capacities", map[string]any{"courseId": course.ID, "unlimitedParticipants": true, "maxParticipants": 5, "validUntil": tomorrow}, "maxParticipants"},
		{"past", map[string]any{"courseId": course.ID, "unlimitedParticipants": true, "validUntil": "2001-01-01"}, "validUntil"},
		{"garbage date", map[string]any{"courseId": course.ID, "unlimitedParticipants": true, "validUntil": "soon"}, "validUntil"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var e errorBody
			expect(t, s.do(t, "POST", "/admin/access-codes", admin, tc.body), http.StatusBadRequest, &e)
			if _, ok := e.Fields[tc.field]; !ok {
				t.Fatalf("fields = %+v, want %s", e.Fields, tc.field)
			}
		})
	}

	var codes []training.AccessCode
	expect(t, s.do(t, "POST", "/admin/access-codes", admin, map[string]any{
		"courseId": course.ID, "count": 100, "maxParticipants": 2, "validUntil": tomorrow,
	}), http.StatusCreated, &codes)
	seen := map[string]bool{}
	for _, c := range codes {
		if seen[c.Code] {
			t.Fatalf("duplicate code %s", c.Code)
		}
		seen[c.Code] = true
	}
	if len(seen) != 100 {
		t.Fatalf("generated %d codes", len(seen))
	}
}

func TestCourseAdmin(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	course := s.seedCourse(t, admin)

	var e errorBody
	expect(t, s.do(t, "POST", "/admin/courses/"+course.ID+"/questions", admin, map[string]any{
		"questionText": "?", "questionType": "multiple_choice", "options": []string{"A", "B"}, "correctAnswers": "A",
	}), http.StatusBadRequest, &e)
	if e.Fields["correctAnswers"] == "" {
		t.Fatalf("fields = %+v", e.Fields)
	}
	expect(t, s.do(t, "POST", "/admin/courses/"+course.ID+"/slides", admin, map[string]any{
		"title": "Intro", "content": "Read me", "slideOrder": 1,
	}), http.StatusCreated, nil)

	var d training.CourseDetail
	expect(t, s.do(t, "GET", "/admin/courses/"+course.ID, admin, nil), 200, &d)
	if len(d.Slides) != 1 || len(d.Questions) != 5 {
		t.Fatalf("detail = %d slides, %d questions", len(d.Slides), len(d.Questions))
	}

	expect(t, s.do(t, "DELETE", "/admin/courses/"+course.ID, admin, nil), http.StatusNoContent, nil)
	var active []training.Course
	expect(t, s.do(t, "GET", "/admin/courses", admin, nil), 200, &active)
	if len(active) != 0 {
		t.Fatalf("deleted course still listed: %+v", active)
	}
	var all []training.Course
	expect(t, s.do(t, "GET", "/admin/courses?all=true", admin, nil), 200, &all)
	if len(all) != 1 || all[0].IsActive {
		t.Fatalf("all courses = %+v", all)
	}
	expect(t, s.do(t, "GET", "/admin/courses/missing", admin, nil), http.StatusNotFound, nil)
}

func TestImportCourse(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	bundle := `
course:
  name: Ladder Use
  passingScore: 50
  maxAttempts: 1
slides:
  - title: Three points of contact
    content: Always.
questions:
  - text: Safe?
    type: single_choice
    options: [Yes, No]
    correct: "Yes"
`
	var d training.CourseDetail
	expect(t, s.do(t, "POST", "/admin/courses/import", admin, bundle), http.StatusCreated, &d)
	if d.Course.Name != "Ladder Use" || len(d.Slides) != 1 || len(d.Questions) != 1 {
		t.Fatalf("imported = %+v", d)
	}
	expect(t, s.do(t, "POST", "/admin/courses/import", admin, "course: [broken"), http.StatusBadRequest, nil)
}

func (s *testServer) upload(t *testing.T, token, filename string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(body)
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/admin/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func TestAssets(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)

	var up struct{ Key, URL string }
	expect(t, s.upload(t, admin, "diagram.PNG", []byte("\x89PNG fake")), http.StatusCreated, &up)
	if !strings.HasPrefix(up.Key, "slides/") || !strings.HasSuffix(up.Key, ".png") {
		t.Fatalf("key = %q", up.Key)
	}

	rec := s.do(t, "GET", up.URL, "", nil)
	if rec.Code != 200 || rec.Body.String() != "\x89PNG fake" || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("get asset: %d %q %q", rec.Code, rec.Body.String(), rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Content-Security-Policy") != "default-src 'none'" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("asset headers: %v", rec.Header())
	}
	expect(t, s.do(t, "GET", "/assets/slides/missing.png", "", nil), http.StatusNotFound, nil)
	expect(t, s.do(t, "GET", "/assets/slides", "", nil), http.StatusNotFound, nil)

	// scriptable formats are never stored
	var e errorBody
	expect(t, s.upload(t, admin, "logo.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)), http.StatusBadRequest, &e)
	if e.Fields["file"] != "image" {
		t.Fatalf("svg upload: %+v", e)
	}
	expect(t, s.upload(t, admin, "page.html", []byte("<script></script>")), http.StatusBadRequest, nil)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	expect(t, s.do(t, "GET", "/healthz", "", nil), 200, nil)
	expect(t, s.do(t, "GET", "/readyz", "", nil), 200, nil)
}

func TestParseValidUntil(t *testing.T) {
	d, ok := parseValidUntil("2030-06-01")
	if !ok || !d.Equal(time.Date(2030, 6, 1, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("date = %v, %v", d, ok)
	}
	ts, ok := parseValidUntil("2030-06-01T10:00:00+02:00")
	if !ok || ts.UTC().Hour() != 8 {
		t.Fatalf("timestamp = %v, %v", ts, ok)
	}
	if _, ok := parseValidUntil("tomorrow"); ok {
		t.Fatal("free text accepted")
	}
}
