package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/repository"
)

// TeamService defines team operations of user-service.
type TeamService interface {
	// Create stores a team whose creator is the actor and always a member.
	Create(ctx context.Context, req contract.TeamCreateRequest) (*model.Team, error)
	Update(ctx context.Context, req contract.TeamUpdateRequest) (*model.Team, error)
	AddMember(ctx context.Context, req contract.TeamMemberRequest) (*model.Team, error)
	// RemoveMember refuses to remove the creator.
	RemoveMember(ctx context.Context, req contract.TeamMemberRequest) (*model.Team, error)
	Delete(ctx context.Context, req contract.IDRequest) (contract.Deleted, error)
	FindOne(ctx context.Context, req contract.IDRequest) (*model.Team, error)
	FindAll(ctx context.Context, req contract.TeamListRequest) (contract.TeamList, error)
	IsMember(ctx context.Context, req contract.TeamMemberRequest) (contract.MemberResponse, error)
	Exists(ctx context.Context, req contract.IDRequest) (contract.ExistsResponse, error)
	GetMembers(ctx context.Context, req contract.IDRequest) ([]model.Profile, error)
}

type TeamServiceImpl struct {
	teams    repository.TeamRepository
	profiles repository.ProfileRepository
}

// NewTeamService constructs TeamService. Member references are checked against the local
// profile store since both are owned by user-service.
func NewTeamService(teams repository.TeamRepository, profiles repository.ProfileRepository) *TeamServiceImpl {
	return &TeamServiceImpl{teams: teams, profiles: profiles}
}

// memberSet returns the creator followed by the distinct other ids, after confirming each
// non-creator profile exists.
func (s *TeamServiceImpl) memberSet(ctx context.Context, creator uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	out := []uuid.UUID{creator}
	seen := map[uuid.UUID]bool{creator: true}
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		ok, err := s.profiles.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Newf(errs.KindNotFound, "user %s not found", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func (s *TeamServiceImpl) Create(ctx context.Context, req contract.TeamCreateRequest) (*model.Team, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	members, err := s.memberSet(ctx, req.Actor.SubjectID, req.MemberIDs)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	t := &model.Team{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   req.Actor.SubjectID,
		MemberIDs:   members,
	}
	if err := s.teams.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update changes the present fields; a MemberIDs list replaces the member set.
func (s *TeamServiceImpl) Update(ctx context.Context, req contract.TeamUpdateRequest) (*model.Team, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	return s.teams.Update(ctx, req.ID, func(t *model.Team) error {
		if req.Name != nil {
			t.Name = *req.Name
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.MemberIDs != nil {
			members, err := s.memberSet(ctx, t.CreatorID, req.MemberIDs)
			if err != nil {
				return err
			}
			t.MemberIDs = members
		}
		return nil
	})
}

func (s *TeamServiceImpl) AddMember(ctx context.Context, req contract.TeamMemberRequest) (*model.Team, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	ok, err := s.profiles.Exists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "user %s not found", req.UserID)
	}
	if err := s.teams.AddMember(ctx, req.TeamID, req.UserID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Annotate(err, "team")
		}
		return nil, err
	}
	return s.teams.Get(ctx, req.TeamID)
}

func (s *TeamServiceImpl) RemoveMember(ctx context.Context, req contract.TeamMemberRequest) (*model.Team, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	t, err := s.teams.Get(ctx, req.TeamID)
	if err != nil {
		return nil, errs.Annotate(err, "team")
	}
	if t.CreatorID == req.UserID {
		return nil, errs.New(errs.KindInvalidArgument, "team creator cannot be removed")
	}
	if err := s.teams.RemoveMember(ctx, req.TeamID, req.UserID); err != nil {
		return nil, err
	}
	return s.teams.Get(ctx, req.TeamID)
}

func (s *TeamServiceImpl) Delete(ctx context.Context, req contract.IDRequest) (contract.Deleted, error) {
	if err := requireActor(req.Actor); err != nil {
		return contract.Deleted{}, err
	}
	if err := s.teams.Delete(ctx, req.ID); err != nil {
		return contract.Deleted{}, errs.Annotate(err, "team")
	}
	return contract.Deleted{ID: req.ID, Deleted: true}, nil
}

func (s *TeamServiceImpl) FindOne(ctx context.Context, req contract.IDRequest) (*model.Team, error) {
	t, err := s.teams.Get(ctx, req.ID)
	if err != nil {
		return nil, errs.Annotate(err, "team")
	}
	return t, nil
}

func (s *TeamServiceImpl) FindAll(ctx context.Context, req contract.TeamListRequest) (contract.TeamList, error) {
	page, size := model.Normalize(req.Page, req.PageSize)
	items, total, err := s.teams.List(ctx, model.TeamFilter{
		MemberID: req.UserID,
		Search:   req.Search,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return contract.TeamList{}, err
	}
	return contract.TeamList{Items: items, Meta: model.Page{Total: total, Page: page, PageSize: size}}, nil
}

func (s *TeamServiceImpl) IsMember(ctx context.Context, req contract.TeamMemberRequest) (contract.MemberResponse, error) {
	ok, err := s.teams.IsMember(ctx, req.TeamID, req.UserID)
	if err != nil {
		return contract.MemberResponse{}, err
	}
	return contract.MemberResponse{Member: ok}, nil
}

func (s *TeamServiceImpl) Exists(ctx context.Context, req contract.IDRequest) (contract.ExistsResponse, error) {
	ok, err := s.teams.Exists(ctx, req.ID)
	if err != nil {
		return contract.ExistsResponse{}, err
	}
	return contract.ExistsResponse{Exists: ok}, nil
}

// GetMembers returns the profiles of the team members. Members without a profile are skipped.
func (s *TeamServiceImpl) GetMembers(ctx context.Context, req contract.IDRequest) ([]model.Profile, error) {
	t, err := s.teams.Get(ctx, req.ID)
	if err != nil {
		return nil, errs.Annotate(err, "team")
	}
	out := make([]model.Profile, 0, len(t.MemberIDs))
	for _, id := range t.MemberIDs {
		p, err := s.profiles.GetByID(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}
