package training

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Dajus/daal-sub000/internal/grading"
)

func TestGenerateAccessCodesValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, Course{}, 1)
	future := f.clock.Now().Add(time.Hour)

	cases := []struct {
		name  string
		in    GenerateCodesInput
		field string
	}{
		{"zero count", GenerateCodesInput{CourseID: c.ID, Count: 0, UnlimitedParticipants: true, ValidUntil: future}, "count"},
		{"too many", GenerateCodesInput{CourseID: c.ID, Count: 101, UnlimitedParticipants: true, ValidUntil: future}, "count"},
		{"both capacities", GenerateCodesInput{CourseID: c.ID, Count: 1, UnlimitedParticipants: true, MaxParticipants: intp(3), ValidUntil: future}, "maxParticipants"},
		{"no capacity", GenerateCodesInput{CourseID: c.ID, Count: 1, ValidUntil: future}, "maxParticipants"},
		{"past", GenerateCodesInput{CourseID: c.ID, Count: 1, UnlimitedParticipants: true, ValidUntil: f.clock.Now()}, "validUntil"},
	}
	for _, tc := range cases {
		_, err := f.svc.GenerateAccessCodes(ctx, Scope{}, tc.in)
		if KindOf(err) != KindValidation || FieldsOf(err)[tc.field] == "" {
			t.Errorf("%s: err = %v (%v)", tc.name, err, FieldsOf(err))
		}
	}

	codes, err := f.svc.GenerateAccessCodes(ctx, Scope{}, GenerateCodesInput{
		CourseID: c.ID, Count: 100, MaxParticipants: intp(5), ValidUntil: future,
	})
	if err != nil || len(codes) != 100 {
		t.Fatalf("batch of 100: %d, %v", len(codes), err)
	}
	seen := map[string]bool{}
	for _, code := range codes {
		if seen[code.Code] || !strings.HasPrefix(code.Code, "FIRE") {
			t.Fatalf("bad code %q", code.Code)
		}
		seen[code.Code] = true
	}
}

func TestCompanyScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, Course{}, 1)
	acme, _ := f.svc.CreateCompany(ctx, "Acme", "")
	globex, _ := f.svc.CreateCompany(ctx, "Globex", "")
	future := f.clock.Now().Add(time.Hour)

	// a company admin cannot create codes for someone else
	codes, err := f.svc.GenerateAccessCodes(ctx, Scope{CompanyID: acme.ID}, GenerateCodesInput{
		CourseID: c.ID, CompanyID: &globex.ID, Count: 2, UnlimitedParticipants: true, ValidUntil: future,
	})
	if err != nil || *codes[0].CompanyID != acme.ID {
		t.Fatalf("codes = %+v, %v", codes, err)
	}
	other, err := f.svc.GenerateAccessCodes(ctx, Scope{}, GenerateCodesInput{
		CourseID: c.ID, CompanyID: &globex.ID, Count: 1, UnlimitedParticipants: true, ValidUntil: future,
	})
	if err != nil {
		t.Fatal(err)
	}

	mine, _ := f.svc.ListAccessCodes(ctx, Scope{CompanyID: acme.ID})
	all, _ := f.svc.ListAccessCodes(ctx, Scope{})
	if len(mine) != 2 || len(all) != 3 {
		t.Fatalf("mine=%d all=%d", len(mine), len(all))
	}
	if _, err := f.svc.CodeSessions(ctx, Scope{CompanyID: acme.ID}, other[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign code: %v", err)
	}
	if _, err := f.svc.SetAccessCodeActive(ctx, Scope{CompanyID: acme.ID}, other[0].ID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign deactivate: %v", err)
	}

	sess := f.login(t, "ann", other[0])
	if _, err := f.svc.SessionAttempts(ctx, Scope{CompanyID: acme.ID}, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign session: %v", err)
	}
	u, err := f.svc.CodeSessions(ctx, Scope{}, other[0].ID)
	if err != nil || u.InFlight != 1 || len(u.Sessions) != 1 {
		t.Fatalf("usage = %+v, %v", u, err)
	}
}

func TestDeleteCourseCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, Course{}, 2)
	code := f.code(t, c.ID, codeOpts{theoryToTest: true})

	if err := f.svc.DeleteCourse(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.Login(ctx, LoginInput{StudentName: "ann", StudentEmail: "ann@example.com", AccessCode: code.Code}); !errors.Is(err, ErrCodeInactive) {
		t.Fatalf("login after delete: %v", err)
	}
	qs, _ := f.store.ActiveQuestions(ctx, c.ID)
	if len(qs) != 0 {
		t.Fatalf("active questions = %d", len(qs))
	}
	listed, _ := f.svc.ListCourses(ctx, false)
	if len(listed) != 0 {
		t.Fatalf("listed = %+v", listed)
	}
	if err := f.svc.DeleteCourse(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing course: %v", err)
	}
}

func TestQuestionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, Course{}, 0)
	cases := []struct {
		name  string
		q     Question
		field string
	}{
		{"answer not an option", Question{QuestionText: "q", QuestionType: grading.SingleChoice, Options: []string{"A", "B"}, CorrectAnswers: grading.Single("C")}, "correctAnswers"},
		{"list for single", Question{QuestionText: "q", QuestionType: grading.SingleChoice, Options: []string{"A", "B"}, CorrectAnswers: grading.Multiple("A")}, "correctAnswers"},
		{"empty multi", Question{QuestionText: "q", QuestionType: grading.MultipleChoice, Options: []string{"A", "B"}, CorrectAnswers: grading.Multiple()}, "correctAnswers"},
		{"unknown type", Question{QuestionText: "q", QuestionType: "essay", Options: []string{"A", "B"}, CorrectAnswers: grading.Single("A")}, "questionType"},
		{"duplicate options", Question{QuestionText: "q", QuestionType: grading.SingleChoice, Options: []string{"A", "A"}, CorrectAnswers: grading.Single("A")}, "options"},
	}
	for _, tc := range cases {
		_, err := f.svc.AddQuestion(ctx, c.ID, tc.q)
		if KindOf(err) != KindValidation || FieldsOf(err)[tc.field] == "" {
			t.Errorf("%s: %v %v", tc.name, err, FieldsOf(err))
		}
	}

	q, err := f.svc.AddQuestion(ctx, c.ID, Question{
		QuestionText: "pick two", QuestionType: grading.MultipleChoice,
		Options: []string{"A", "B", "C"}, CorrectAnswers: grading.Multiple("C", "A"),
	})
	if err != nil || q.Points != 1 {
		t.Fatalf("add: %+v, %v", q, err)
	}
	got, err := f.store.GetQuestion(ctx, q.ID)
	if err != nil || got.CorrectAnswers.String() != "C, A" || got.CorrectAnswers.Kind() != grading.KindMultiple {
		t.Fatalf("stored = %+v, %v", got, err)
	}
}

func TestAdminAuthentication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.EnsureSuperAdmin(ctx, "root", hash); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.EnsureSuperAdmin(ctx, "root", hash); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	if err := f.svc.EnsureSuperAdmin(ctx, "root", "plain"); err == nil {
		t.Fatal("accepted a non-bcrypt hash")
	}
	if _, err := f.svc.AuthenticateSuperAdmin(ctx, "root", "s3cret-pass"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AuthenticateSuperAdmin(ctx, "root", "wrong"); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("wrong password: %v", err)
	}

	co, _ := f.svc.CreateCompany(ctx, "Acme", "")
	if _, err := f.svc.CreateCompanyAdmin(ctx, co.ID, "Boss@Acme.test", "Boss", "short"); KindOf(err) != KindValidation {
		t.Fatalf("short password: %v", err)
	}
	// 40 runes, 80 bytes
	if _, err := f.svc.CreateCompanyAdmin(ctx, co.ID, "Boss@Acme.test", "Boss", strings.Repeat("é", 40)); KindOf(err) != KindValidation || FieldsOf(err)["password"] != "max" {
		t.Fatalf("password over 72 bytes: %v", err)
	}
	if _, err := f.svc.CreateCompanyAdmin(ctx, co.ID, "Boss@Acme.test", "Boss", "long-enough"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateCompanyAdmin(ctx, co.ID, "boss@acme.test", "Dup", "long-enough"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email: %v", err)
	}
	a, err := f.svc.AuthenticateCompanyAdmin(ctx, "boss@acme.test", "long-enough")
	if err != nil || a.CompanyID != co.ID {
		t.Fatalf("company admin = %+v, %v", a, err)
	}
	if _, err := f.svc.CreateCompany(ctx, "Acme", ""); KindOf(err) != KindConflict {
		t.Fatalf("duplicate company: %v", err)
	}
}
