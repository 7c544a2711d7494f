package auth

import (
	"context"

	"github.com/google/uuid"
)

const (
	RoleAdmin  = "admin"
	RoleLawyer = "lawyer"
	RoleClient = "client"
)

// Session is the caller identity resolved once per request by the session
// middleware. Handlers read it with SessionFromContext and hand it to the
// services explicitly.
type Session struct {
	UserID          string    `json:"user_id"`
	Role            string    `json:"role"`
	LawyerID        uuid.UUID `json:"lawyer_id"`
	IsAuthenticated bool      `json:"is_authenticated"`
}

// Anonymous is the session of a caller without credentials.
func Anonymous() Session {
	return Session{Role: RoleClient}
}

func (s Session) IsAdmin() bool {
	return s.IsAuthenticated && s.Role == RoleAdmin
}

// CanManageLawyer reports whether s may change the calendar of lawyerID.
// Admins manage every lawyer; a lawyer manages only their own calendar.
func (s Session) CanManageLawyer(lawyerID uuid.UUID) bool {
	if !s.IsAuthenticated {
		return false
	}
	switch s.Role {
	case RoleAdmin:
		return true
	case RoleLawyer:
		return s.LawyerID != uuid.Nil && s.LawyerID == lawyerID
	}
	return false
}

// ActorID returns the user id as a uuid when it is one.
func (s Session) ActorID() *uuid.UUID {
	id, err := uuid.Parse(s.UserID)
	if err != nil {
		return nil
	}
	return &id
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the request session, or an anonymous one when
// no middleware set it.
func SessionFromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey{}).(Session); ok {
		return s
	}
	return Anonymous()
}
