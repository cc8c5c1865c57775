// Package service contains the application services of auth-service, task-service and
// user-service.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/contract"
	pkgcrypto "github.com/and161185/taskmesh/internal/crypto"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/limiter"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/repository"
	"github.com/and161185/taskmesh/internal/saga"
)

// AuthService defines account and token operations of auth-service.
type AuthService interface {
	// Register creates an identity and its profile atomically and returns a token.
	Register(ctx context.Context, req contract.RegisterRequest) (contract.RegisterResponse, error)
	// Login applies rate-limiting and authenticates by email and password.
	Login(ctx context.Context, req contract.LoginRequest) (contract.LoginResponse, error)
	// VerifyToken checks signature, expiry and subject standing.
	VerifyToken(ctx context.Context, req contract.VerifyTokenRequest) (model.Claims, error)
}

// Tokens issues and fully verifies identity tokens.
type Tokens interface {
	Issue(subjectID uuid.UUID, email string, role model.Role) (model.Token, error)
	VerifyActive(ctx context.Context, raw string) (model.Claims, error)
}

// Registrar runs the registration saga.
type Registrar interface {
	Run(ctx context.Context, in saga.Input) (saga.Result, error)
}

type AuthServiceImpl struct {
	users  repository.IdentityRepository
	tokens Tokens
	reg    Registrar
	lim    limiter.Limiter
	admins map[string]bool
}

// NewAuthService constructs AuthService. Accounts registered with an email from admins
// get the admin role; everyone else starts as a member.
func NewAuthService(
	users repository.IdentityRepository, tokens Tokens, reg Registrar, lim limiter.Limiter, admins []string,
) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Noop{}
	}
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		set[normalizeEmail(a)] = true
	}
	return &AuthServiceImpl{users: users, tokens: tokens, reg: reg, lim: lim, admins: set}
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

var identityNamespace = uuid.NewV5(uuid.NamespaceURL, "urn:taskmesh:identity")

// IdentityID derives the subject id from a normalized email. A retried
// registration lands on the same id, so a profile left behind by an
// unanswered user.created is adopted instead of conflicting.
func IdentityID(email string) uuid.UUID { return uuid.NewV5(identityNamespace, email) }

// Register rejects a taken email, hashes the password and hands over to the saga.
func (s *AuthServiceImpl) Register(ctx context.Context, req contract.RegisterRequest) (contract.RegisterResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return contract.RegisterResponse{}, errs.New(errs.KindInvalidArgument, "email and password are required")
	}

	switch _, err := s.users.GetByEmail(ctx, email); {
	case err == nil:
		return contract.RegisterResponse{}, errs.New(errs.KindConflict, "email already registered")
	case !errors.Is(err, errs.ErrNotFound):
		return contract.RegisterResponse{}, err
	}

	hash, err := pkgcrypto.HashPassword(req.Password)
	if err != nil {
		return contract.RegisterResponse{}, err
	}
	uid := IdentityID(email)
	role := model.RoleMember
	if s.admins[email] {
		role = model.RoleAdmin
	}

	res, err := s.reg.Run(ctx, saga.Input{
		Identity: &model.Identity{
			ID:        uid,
			Email:     email,
			PwdHash:   hash,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Role:      role,
			Active:    true,
		},
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return contract.RegisterResponse{}, err
	}
	return contract.RegisterResponse{
		ID:        uid,
		Email:     email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
		Token:     res.Token,
	}, nil
}

// Login authenticates with rate limiting by (email, client ip).
func (s *AuthServiceImpl) Login(ctx context.Context, req contract.LoginRequest) (contract.LoginResponse, error) {
	email := normalizeEmail(req.Email)
	ipHash := limiter.HashIP(req.ClientIP)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return contract.LoginResponse{}, err
	}
	if !allowed {
		return contract.LoginResponse{}, errs.New(errs.KindRateLimited, "too many failed login attempts, try again later")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || !u.Active || !pkgcrypto.VerifyPassword(req.Password, u.PwdHash) {
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return contract.LoginResponse{}, err
		}
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return contract.LoginResponse{}, errs.New(errs.KindRateLimited, "too many failed login attempts, try again later")
		}
		// unknown email and wrong password look the same
		return contract.LoginResponse{}, errs.New(errs.KindUnauthorized, "invalid credentials")
	}

	_ = s.lim.Success(ctx, email, ipHash)

	tok, err := s.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return contract.LoginResponse{}, err
	}
	return contract.LoginResponse{
		User:  contract.UserRef{ID: u.ID, Email: u.Email, Role: u.Role},
		Token: tok,
	}, nil
}

// VerifyToken is the remote form of token verification used by the edge.
func (s *AuthServiceImpl) VerifyToken(ctx context.Context, req contract.VerifyTokenRequest) (model.Claims, error) {
	return s.tokens.VerifyActive(ctx, req.Token)
}
