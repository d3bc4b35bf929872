package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dajus/daal-sub000/internal/locks"
)

type LoginInput struct {
	StudentName  string
	StudentEmail string
	AccessCode   string
	IPAddress    string
	UserAgent    string
}

// SessionManager resolves the participation session for a student login.
type SessionManager struct {
	registry *Registry
	sessions SessionRepo
	locker   locks.Locker
	log      *slog.Logger
	now      func() time.Time
}

func NewSessionManager(reg *Registry, sessions SessionRepo, locker locks.Locker, log *slog.Logger, now func() time.Time) *SessionManager {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionManager{registry: reg, sessions: sessions, locker: locker, log: log, now: now}
}

// Login returns the session for (name, email, code), creating it when the
// code still has room. An existing session is returned even when the code is
// full so a returning student is never locked out by their own seat.
// created reports whether a new session was stored.
func (m *SessionManager) Login(ctx context.Context, in LoginInput) (sess Session, code AccessCode, created bool, err error) {
	name := strings.TrimSpace(in.StudentName)
	email := strings.ToLower(strings.TrimSpace(in.StudentEmail))
	fields := map[string]string{}
	if name == "" {
		fields["studentName"] = "required"
	}
	if addr, perr := mail.ParseAddress(email); perr != nil || addr.Address != email {
		fields["studentEmail"] = "email"
	}
	if strings.TrimSpace(in.AccessCode) == "" {
		fields["accessCode"] = "required"
	}
	if len(fields) > 0 {
		return Session{}, AccessCode{}, false, invalid("invalid login", fields)
	}

	code, err = m.registry.Validate(ctx, in.AccessCode)
	if err != nil {
		return Session{}, AccessCode{}, false, err
	}

	release, err := m.locker.Lock(ctx, "access-code:"+code.ID)
	if err != nil {
		return Session{}, AccessCode{}, false, fmt.Errorf("lock access code: %w", err)
	}
	defer release()

	sess, err = m.sessions.FindSession(ctx, name, email, code.ID)
	if err == nil {
		return sess, code, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, AccessCode{}, false, err
	}

	ok, err := m.registry.CheckCapacity(ctx, code)
	if err != nil {
		return Session{}, AccessCode{}, false, err
	}
	if !ok {
		m.log.InfoContext(ctx, "login rejected, access code full", "access_code", code.Code)
		return Session{}, AccessCode{}, false, ErrCapacityFull
	}

	sess = Session{
		ID:           uuid.NewString(),
		AccessCodeID: code.ID,
		StudentName:  name,
		StudentEmail: email,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
		CreatedAt:    m.now().Unix(),
	}
	if err := m.sessions.InsertSession(ctx, sess); err != nil {
		// another gateway without a shared lock won the insert
		if errors.Is(err, ErrDuplicate) {
			existing, ferr := m.sessions.FindSession(ctx, name, email, code.ID)
			return existing, code, false, ferr
		}
		return Session{}, AccessCode{}, false, err
	}
	m.log.InfoContext(ctx, "session created", "session_id", sess.ID, "access_code", code.Code)
	return sess, code, true, nil
}
