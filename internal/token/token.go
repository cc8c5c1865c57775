// Package token issues and verifies HS256 identity tokens trusted by every service.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
)

// DefaultTTL is the validity horizon of issued tokens.
const DefaultTTL = 24 * time.Hour

// SubjectLookup resolves a subject in its owning store.
type SubjectLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Identity, error)
}

type claims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a shared secret.
type Service struct {
	key      []byte
	ttl      time.Duration
	now      func() time.Time
	subjects SubjectLookup
}

// New constructs a token service. subjects may be nil for verify-only callers (the edge).
func New(key []byte, ttl time.Duration, subjects SubjectLookup) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{key: key, ttl: ttl, now: time.Now, subjects: subjects}
}

// Issue signs a token for the subject.
func (s *Service) Issue(subjectID uuid.UUID, email string, role model.Role) (model.Token, error) {
	if subjectID == uuid.Nil || email == "" || !role.Valid() {
		return model.Token{}, errs.New(errs.KindInvalidArgument, "invalid token subject")
	}
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	c := claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return model.Token{}, errs.Wrap(errs.KindInternal, "sign token", err)
	}
	return model.Token{AccessToken: signed, ExpiresAt: c.ExpiresAt.Time}, nil
}

// Verify checks signature and expiry locally, without contacting the issuer.
func (s *Service) Verify(raw string) (model.Claims, error) {
	if raw == "" {
		return model.Claims{}, errs.New(errs.KindUnauthorized, "missing token")
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Claims{}, errs.Wrap(errs.KindUnauthorized, "token expired", err)
		}
		return model.Claims{}, errs.Wrap(errs.KindUnauthorized, "invalid token", err)
	}

	id, err := uuid.FromString(c.Subject)
	if err != nil || id == uuid.Nil {
		return model.Claims{}, errs.New(errs.KindUnauthorized, "invalid token subject")
	}
	if !c.Role.Valid() || c.Email == "" {
		return model.Claims{}, errs.New(errs.KindUnauthorized, "invalid token claims")
	}

	out := model.Claims{SubjectID: id, Email: c.Email, Role: c.Role, ExpiresAt: c.ExpiresAt.Time}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	return out, nil
}

// ValidateSubjectActive confirms the subject still exists and is active in the identity store.
func (s *Service) ValidateSubjectActive(ctx context.Context, c model.Claims) (model.Claims, error) {
	if s.subjects == nil {
		return model.Claims{}, errs.New(errs.KindInternal, "subject lookup not configured")
	}
	id, err := s.subjects.GetByID(ctx, c.SubjectID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Claims{}, errs.New(errs.KindUnauthorized, "subject not found")
		}
		return model.Claims{}, err
	}
	if !id.Active {
		return model.Claims{}, errs.New(errs.KindUnauthorized, "subject inactive")
	}
	return c, nil
}

// VerifyActive is Verify followed by ValidateSubjectActive.
func (s *Service) VerifyActive(ctx context.Context, raw string) (model.Claims, error) {
	c, err := s.Verify(raw)
	if err != nil {
		return model.Claims{}, err
	}
	return s.ValidateSubjectActive(ctx, c)
}
