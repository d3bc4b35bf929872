package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const certIssueRetries = 3

// Issuer issues at most one valid certificate per session.
type Issuer struct {
	certs CertificateRepo
	now   func() time.Time
	// NewVerificationCode returns a fresh public lookup token.
	NewVerificationCode func() string
}

func NewIssuer(certs CertificateRepo, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{certs: certs, now: now, NewVerificationCode: verificationCode}
}

// verificationCode is 16 upper-case hex chars from a random v4 UUID.
func verificationCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
}

// IssueForAttempt certifies a passed attempt. created is false when the
// session already held a valid certificate, which is then returned.
func (i *Issuer) IssueForAttempt(ctx context.Context, sess Session, code AccessCode, a Attempt) (Certificate, bool, error) {
	if !a.Passed || a.StudentSessionID != sess.ID {
		return Certificate{}, false, &Error{Kind: KindPolicy, Msg: "attempt does not qualify for a certificate"}
	}
	id := a.ID
	return i.issue(ctx, sess.ID, &id, code.Code)
}

// IssueTheoryOnly certifies a completed theory on a code that needs no test.
func (i *Issuer) IssueTheoryOnly(ctx context.Context, sess Session, code AccessCode) (Certificate, bool, error) {
	if code.TheoryToTest {
		return Certificate{}, false, &Error{Kind: KindPolicy, Msg: "this course requires passing the test"}
	}
	if sess.TheoryCompletedAt == nil {
		return Certificate{}, false, ErrTheoryPending
	}
	return i.issue(ctx, sess.ID, nil, code.Code)
}

func (i *Issuer) issue(ctx context.Context, sessionID string, attemptID *string, code string) (Certificate, bool, error) {
	existing, err := i.certs.ValidCertificate(ctx, sessionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Certificate{}, false, err
	}

	for try := 0; try < certIssueRetries; try++ {
		at := i.now().Add(time.Duration(try) * time.Millisecond)
		c := Certificate{
			ID:                uuid.NewString(),
			StudentSessionID:  sessionID,
			TestAttemptID:     attemptID,
			CertificateNumber: certificateNumber(code, at),
			VerificationCode:  i.NewVerificationCode(),
			IssuedAt:          at.Unix(),
			IsValid:           true,
		}
		err := i.certs.InsertCertificate(ctx, c)
		if err == nil {
			return c, true, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return Certificate{}, false, fmt.Errorf("insert certificate: %w", err)
		}
		// either a concurrent issue for this session won, or the number or
		// verification code collided with another certificate
		if existing, gerr := i.certs.ValidCertificate(ctx, sessionID); gerr == nil {
			return existing, false, nil
		}
	}
	return Certificate{}, false, fmt.Errorf("issue certificate: %w", ErrDuplicate)
}

// Current returns the session's valid certificate or ErrNoCertificate.
func (i *Issuer) Current(ctx context.Context, sessionID string) (Certificate, error) {
	c, err := i.certs.ValidCertificate(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return Certificate{}, ErrNoCertificate
	}
	return c, err
}

// Reconcile returns the valid certificate, issuing it first when the
// session has earned one that is missing (e.g. issuance failed after a
// passed attempt was recorded). attempts may be in any order.
func (i *Issuer) Reconcile(ctx context.Context, sess Session, code AccessCode, attempts []Attempt) (Certificate, bool, error) {
	c, err := i.Current(ctx, sess.ID)
	if err == nil || !errors.Is(err, ErrNoCertificate) {
		return c, false, err
	}
	if !code.TheoryToTest {
		if sess.TheoryCompletedAt == nil {
			return Certificate{}, false, ErrNoCertificate
		}
		return i.IssueTheoryOnly(ctx, sess, code)
	}
	var first *Attempt
	for k := range attempts {
		if attempts[k].Passed && (first == nil || attempts[k].AttemptNumber < first.AttemptNumber) {
			first = &attempts[k]
		}
	}
	if first == nil {
		return Certificate{}, false, ErrNoCertificate
	}
	return i.IssueForAttempt(ctx, sess, code, *first)
}

// Verify looks a certificate up by its public verification code.
func (i *Issuer) Verify(ctx context.Context, verification string) (Certificate, error) {
	return i.certs.CertificateByVerification(ctx, strings.ToUpper(strings.TrimSpace(verification)))
}
