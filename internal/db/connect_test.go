package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	h, err := Open(context.Background(), DriverSQLite, MemoryDSN(t.Name()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{"sqlite3": DriverSQLite, " PGX ": DriverPostgres, "postgres": DriverPostgres} {
		got, err := ParseDriver(in)
		if err != nil || got != want {
			t.Fatalf("ParseDriver(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDriver("mysql"); err == nil {
		t.Fatal("expected error for mysql")
	}
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	h := openTestDB(t)
	if err := ensureSchema(context.Background(), h, DriverSQLite); err != nil {
		t.Fatalf("second ensureSchema: %v", err)
	}
	var n int
	if err := h.QueryRow(`SELECT COUNT(*) FROM certificates`).Scan(&n); err != nil {
		t.Fatalf("certificates table missing: %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	h := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, h, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO companies (id,name,contact_email,created_at) VALUES ('c1','Acme','',1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	var n int
	if err := h.QueryRow(`SELECT COUNT(*) FROM companies`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("rollback failed, %d rows", n)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	h := openTestDB(t)
	ins := `INSERT INTO companies (id,name,contact_email,created_at) VALUES ($1,'Acme','',1)`
	if _, err := h.Exec(ins, "c1"); err != nil {
		t.Fatal(err)
	}
	_, err := h.Exec(ins, "c2")
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("other")) || IsUniqueViolation(nil) {
		t.Fatal("false positive")
	}
}

func TestOneValidCertificatePerSession(t *testing.T) {
	h := openTestDB(t)
	seed := []string{
		`INSERT INTO courses (id,name,passing_score,max_attempts,created_at,updated_at) VALUES ('co','C',80,3,1,1)`,
		`INSERT INTO access_codes (id,code,course_id,valid_until,created_at) VALUES ('ac','CODE','co',9999999999,1)`,
		`INSERT INTO student_sessions (id,access_code_id,student_name,student_email,created_at) VALUES ('s','ac','A','a@x',1)`,
		`INSERT INTO certificates (id,student_session_id,certificate_number,verification_code,issued_at,is_valid) VALUES ('c1','s','N1','V1',1,0)`,
		`INSERT INTO certificates (id,student_session_id,certificate_number,verification_code,issued_at,is_valid) VALUES ('c2','s','N2','V2',1,1)`,
	}
	for _, q := range seed {
		if _, err := h.Exec(q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	_, err := h.Exec(`INSERT INTO certificates (id,student_session_id,certificate_number,verification_code,issued_at,is_valid) VALUES ('c3','s','N3','V3',1,1)`)
	if !IsUniqueViolation(err) {
		t.Fatalf("second valid certificate accepted: %v", err)
	}
}
