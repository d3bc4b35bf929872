package training

import "context"

// Each component depends only on the slice of storage it needs. *SQLStore
// implements all of them.

type CourseRepo interface {
	GetCourse(ctx context.Context, id string) (Course, error)
}

type QuestionRepo interface {
	// ActiveQuestions returns the course's active questions by questionOrder.
	ActiveQuestions(ctx context.Context, courseID string) ([]Question, error)
}

type AccessCodeRepo interface {
	AccessCodeByCode(ctx context.Context, code string) (AccessCode, error)
	GetAccessCode(ctx context.Context, id string) (AccessCode, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// CountInFlightSessions counts sessions under the code without a valid
	// certificate.
	CountInFlightSessions(ctx context.Context, accessCodeID string) (int, error)
}

type SessionRepo interface {
	FindSession(ctx context.Context, name, email, accessCodeID string) (Session, error)
	InsertSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
}

type AttemptRepo interface {
	CountAttempts(ctx context.Context, sessionID string) (int, error)
	// InsertAttempt returns ErrDuplicate when the attempt number is taken.
	InsertAttempt(ctx context.Context, a Attempt) error
	AttemptByNumber(ctx context.Context, sessionID string, n int) (Attempt, error)
	ListAttempts(ctx context.Context, sessionID string) ([]Attempt, error)
}

type CertificateRepo interface {
	ValidCertificate(ctx context.Context, sessionID string) (Certificate, error)
	// InsertCertificate returns ErrDuplicate on any unique collision.
	InsertCertificate(ctx context.Context, c Certificate) error
	CertificateByVerification(ctx context.Context, code string) (Certificate, error)
}

// EventSink receives audit events; events.Repo implements it.
type EventSink interface {
	Append(ctx context.Context, typ, key string, data any) error
}
