package service

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/repository"
	"github.com/and161185/taskmesh/internal/rpc"
)

// TaskService defines task-service operations. Callers are identified by the Actor of each
// request; authorization has already happened at the edge.
type TaskService interface {
	Create(ctx context.Context, req contract.TaskCreateRequest) (*model.Task, error)
	Update(ctx context.Context, req contract.TaskUpdateRequest) (*model.Task, error)
	// Assign switches the assignee between a user, a team and nobody.
	Assign(ctx context.Context, req contract.TaskAssignRequest) (*model.Task, error)
	UpdateStatus(ctx context.Context, req contract.TaskStatusRequest) (*model.Task, error)
	Delete(ctx context.Context, req contract.IDRequest) (contract.Deleted, error)
	// FindOne returns the task with its assignee attached when user-service answers in time.
	FindOne(ctx context.Context, req contract.IDRequest) (contract.TaskView, error)
	FindAll(ctx context.Context, req contract.TaskListRequest) (contract.TaskList, error)
}

// References confirms foreign keys owned by user-service. Implementations fail closed.
type References interface {
	UserExists(ctx context.Context, id uuid.UUID) bool
	TeamExists(ctx context.Context, id uuid.UUID) bool
}

// Records fetches user-service records for display.
type Records interface {
	Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	Team(ctx context.Context, id uuid.UUID) (*model.Team, error)
}

type TaskServiceImpl struct {
	repo    repository.TaskRepository
	refs    References
	records Records
	log     *zap.Logger
}

// NewTaskService constructs TaskService. records may be nil to skip enrichment.
func NewTaskService(repo repository.TaskRepository, refs References, records Records, log *zap.Logger) *TaskServiceImpl {
	return &TaskServiceImpl{repo: repo, refs: refs, records: records, log: log}
}

func requireActor(c model.Claims) error {
	if c.SubjectID == uuid.Nil {
		return errs.New(errs.KindUnauthorized, "missing actor")
	}
	return nil
}

// checkAssignee validates the assignment shape and then confirms the referenced record.
// Nothing is written before it returns nil.
func (s *TaskServiceImpl) checkAssignee(ctx context.Context, userID, teamID *uuid.UUID) error {
	if err := model.ValidateAssignment(userID, teamID); err != nil {
		return err
	}
	if userID != nil && !s.refs.UserExists(ctx, *userID) {
		return errs.Newf(errs.KindNotFound, "assigned user %s not found", userID)
	}
	if teamID != nil && !s.refs.TeamExists(ctx, *teamID) {
		return errs.Newf(errs.KindNotFound, "assigned team %s not found", teamID)
	}
	return nil
}

// Create validates references and inserts the task owned by the actor.
func (s *TaskServiceImpl) Create(ctx context.Context, req contract.TaskCreateRequest) (*model.Task, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, req.AssignedUserID, req.AssignedTeamID); err != nil {
		return nil, err
	}

	id := uuid.Nil
	if req.ID != nil {
		id = *req.ID
	}
	if id == uuid.Nil {
		var err error
		if id, err = uuid.NewV4(); err != nil {
			return nil, err
		}
	}
	status := req.Status
	if status == "" {
		status = model.StatusTodo
	}

	t := &model.Task{
		ID:             id,
		Title:          req.Title,
		Description:    req.Description,
		DueDate:        req.DueDate,
		Status:         status,
		OwnerID:        req.Actor.SubjectID,
		AssignedUserID: req.AssignedUserID,
		AssignedTeamID: req.AssignedTeamID,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies the present fields. Assignment is changed only through Assign.
func (s *TaskServiceImpl) Update(ctx context.Context, req contract.TaskUpdateRequest) (*model.Task, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, req.ID, func(t *model.Task) error {
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if req.Status != nil {
			if !req.Status.Valid() {
				return errs.Newf(errs.KindInvalidArgument, "unknown status %q", *req.Status)
			}
			t.Status = *req.Status
		}
		return nil
	})
}

// Assign replaces both assignee references at once.
func (s *TaskServiceImpl) Assign(ctx context.Context, req contract.TaskAssignRequest) (*model.Task, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, req.UserID, req.TeamID); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, req.ID, func(t *model.Task) error {
		t.AssignedUserID = req.UserID
		t.AssignedTeamID = req.TeamID
		return t.ValidateAssignment()
	})
}

// UpdateStatus moves the task to another workflow state.
func (s *TaskServiceImpl) UpdateStatus(ctx context.Context, req contract.TaskStatusRequest) (*model.Task, error) {
	if err := requireActor(req.Actor); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, errs.Newf(errs.KindInvalidArgument, "unknown status %q", req.Status)
	}
	return s.repo.Update(ctx, req.ID, func(t *model.Task) error {
		t.Status = req.Status
		return nil
	})
}

// Delete removes the task.
func (s *TaskServiceImpl) Delete(ctx context.Context, req contract.IDRequest) (contract.Deleted, error) {
	if err := requireActor(req.Actor); err != nil {
		return contract.Deleted{}, err
	}
	if err := s.repo.Delete(ctx, req.ID); err != nil {
		return contract.Deleted{}, err
	}
	return contract.Deleted{ID: req.ID, Deleted: true}, nil
}

// FindOne loads the task and attaches its assignee. Enrichment failures are logged and
// leave the assignee field empty.
func (s *TaskServiceImpl) FindOne(ctx context.Context, req contract.IDRequest) (contract.TaskView, error) {
	t, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return contract.TaskView{}, err
	}
	view := contract.TaskView{Task: *t}
	if s.records == nil {
		return view, nil
	}
	switch {
	case t.AssignedUserID != nil:
		p, err := s.records.Profile(ctx, *t.AssignedUserID)
		if err != nil {
			s.log.Debug("assignee enrichment skipped", zap.String("task_id", t.ID.String()), zap.Error(err))
			break
		}
		view.AssignedUser = p
	case t.AssignedTeamID != nil:
		tm, err := s.records.Team(ctx, *t.AssignedTeamID)
		if err != nil {
			s.log.Debug("team enrichment skipped", zap.String("task_id", t.ID.String()), zap.Error(err))
			break
		}
		view.AssignedTeam = tm
	}
	return view, nil
}

// FindAll lists tasks matching the filters with paging metadata.
func (s *TaskServiceImpl) FindAll(ctx context.Context, req contract.TaskListRequest) (contract.TaskList, error) {
	page, size := model.Normalize(req.Page, req.PageSize)
	items, total, err := s.repo.List(ctx, model.TaskFilter{
		OwnerID:        req.OwnerID,
		AssignedUserID: req.AssignedUserID,
		AssignedTeamID: req.AssignedTeamID,
		Status:         req.Status,
		Page:           page,
		PageSize:       size,
	})
	if err != nil {
		return contract.TaskList{}, err
	}
	return contract.TaskList{Items: items, Meta: model.Page{Total: total, Page: page, PageSize: size}}, nil
}

// RemoteRecords reads profiles and teams from user-service.
type RemoteRecords struct{ rpc rpc.Caller }

// NewRemoteRecords constructs Records over an RPC caller.
func NewRemoteRecords(c rpc.Caller) *RemoteRecords { return &RemoteRecords{rpc: c} }

func (r *RemoteRecords) Profile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var p model.Profile
	if err := r.rpc.Send(ctx, contract.UserService, contract.CmdUserFindOne, contract.IDRequest{ID: id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RemoteRecords) Team(ctx context.Context, id uuid.UUID) (*model.Team, error) {
	var t model.Team
	if err := r.rpc.Send(ctx, contract.UserService, contract.CmdTeamFindOne, contract.IDRequest{ID: id}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
