package service

import (
	"context"

	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/repository"
)

// UserService defines profile operations of user-service.
type UserService interface {
	// OnUserCreated stores the profile announced by auth-service. Replays are no-ops.
	OnUserCreated(ctx context.Context, ev contract.UserCreated) error
	FindOne(ctx context.Context, req contract.IDRequest) (*model.Profile, error)
	FindAll(ctx context.Context, req contract.UserListRequest) (contract.ProfileList, error)
	Update(ctx context.Context, req contract.UserUpdateRequest) (*model.Profile, error)
	Exists(ctx context.Context, req contract.IDRequest) (contract.ExistsResponse, error)
	FindByEmail(ctx context.Context, req contract.EmailRequest) (*model.Profile, error)
}

type UserServiceImpl struct {
	profiles repository.ProfileRepository
}

// NewUserService constructs UserService.
func NewUserService(profiles repository.ProfileRepository) *UserServiceImpl {
	return &UserServiceImpl{profiles: profiles}
}

func (s *UserServiceImpl) OnUserCreated(ctx context.Context, ev contract.UserCreated) error {
	role := ev.Role
	if !role.Valid() {
		role = model.RoleMember
	}
	return s.profiles.Create(ctx, &model.Profile{
		ID:        ev.ID,
		Email:     normalizeEmail(ev.Email),
		FirstName: ev.FirstName,
		LastName:  ev.LastName,
		Phone:     ev.Phone,
		Role:      role,
	})
}

func (s *UserServiceImpl) FindOne(ctx context.Context, req contract.IDRequest) (*model.Profile, error) {
	p, err := s.profiles.GetByID(ctx, req.ID)
	if err != nil {
		return nil, errs.Annotate(err, "user")
	}
	return p, nil
}

func (s *UserServiceImpl) FindAll(ctx context.Context, req contract.UserListRequest) (contract.ProfileList, error) {
	page, size := model.Normalize(req.Page, req.PageSize)
	items, total, err := s.profiles.List(ctx, model.ProfileFilter{Search: req.Search, Page: page, PageSize: size})
	if err != nil {
		return contract.ProfileList{}, err
	}
	return contract.ProfileList{Items: items, Meta: model.Page{Total: total, Page: page, PageSize: size}}, nil
}

// Update changes names and phone. Email and role belong to auth-service and stay as they are.
func (s *UserServiceImpl) Update(ctx context.Context, req contract.UserUpdateRequest) (*model.Profile, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	p, err := s.profiles.GetByID(ctx, req.ID)
	if err != nil {
		return nil, errs.Annotate(err, "user")
	}
	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		p.LastName = *req.LastName
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *UserServiceImpl) Exists(ctx context.Context, req contract.IDRequest) (contract.ExistsResponse, error) {
	ok, err := s.profiles.Exists(ctx, req.ID)
	if err != nil {
		return contract.ExistsResponse{}, err
	}
	return contract.ExistsResponse{Exists: ok}, nil
}

func (s *UserServiceImpl) FindByEmail(ctx context.Context, req contract.EmailRequest) (*model.Profile, error) {
	p, err := s.profiles.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, errs.Annotate(err, "user")
	}
	return p, nil
}
