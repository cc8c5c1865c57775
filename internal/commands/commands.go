// Package commands binds application services to the RPC command names of each service.
package commands

import (
	"context"

	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/rpc"
	"github.com/and161185/taskmesh/internal/service"
)

// HealthChecker answers health_check.
type HealthChecker interface {
	Check(ctx context.Context) model.HealthCheck
}

func registerHealth(srv *rpc.Server, h HealthChecker) {
	srv.Handle(contract.CmdHealthCheck, rpc.Bind(func(ctx context.Context, _ contract.Empty) (model.HealthCheck, error) {
		return h.Check(ctx), nil
	}))
}

// RegisterAuth installs the auth-service commands.
func RegisterAuth(srv *rpc.Server, auth service.AuthService, h HealthChecker) {
	srv.Handle(contract.CmdRegister, rpc.Bind(auth.Register))
	srv.Handle(contract.CmdLogin, rpc.Bind(auth.Login))
	srv.Handle(contract.CmdVerifyToken, rpc.Bind(auth.VerifyToken))
	registerHealth(srv, h)
}

// RegisterTasks installs the task-service commands.
func RegisterTasks(srv *rpc.Server, tasks service.TaskService, h HealthChecker) {
	srv.Handle(contract.CmdTaskCreate, rpc.Bind(tasks.Create))
	srv.Handle(contract.CmdTaskUpdate, rpc.Bind(tasks.Update))
	srv.Handle(contract.CmdTaskAssign, rpc.Bind(tasks.Assign))
	srv.Handle(contract.CmdTaskUpdateStatus, rpc.Bind(tasks.UpdateStatus))
	srv.Handle(contract.CmdTaskDelete, rpc.Bind(tasks.Delete))
	srv.Handle(contract.CmdTaskFindOne, rpc.Bind(tasks.FindOne))
	srv.Handle(contract.CmdTaskFindAll, rpc.Bind(tasks.FindAll))
	registerHealth(srv, h)
}

// RegisterUsers installs the user-service commands, the team commands and the
// user.created event.
func RegisterUsers(srv *rpc.Server, users service.UserService, teams service.TeamService, h HealthChecker) {
	srv.On(contract.EventUserCreated, rpc.BindEvent(users.OnUserCreated))

	srv.Handle(contract.CmdUserFindOne, rpc.Bind(users.FindOne))
	srv.Handle(contract.CmdUserFindAll, rpc.Bind(users.FindAll))
	srv.Handle(contract.CmdUserUpdate, rpc.Bind(users.Update))
	srv.Handle(contract.CmdUserExists, rpc.Bind(users.Exists))
	srv.Handle(contract.CmdUserFindByEmail, rpc.Bind(users.FindByEmail))

	srv.Handle(contract.CmdTeamCreate, rpc.Bind(teams.Create))
	srv.Handle(contract.CmdTeamUpdate, rpc.Bind(teams.Update))
	srv.Handle(contract.CmdTeamAddMember, rpc.Bind(teams.AddMember))
	srv.Handle(contract.CmdTeamRemoveMember, rpc.Bind(teams.RemoveMember))
	srv.Handle(contract.CmdTeamDelete, rpc.Bind(teams.Delete))
	srv.Handle(contract.CmdTeamFindOne, rpc.Bind(teams.FindOne))
	srv.Handle(contract.CmdTeamFindAll, rpc.Bind(teams.FindAll))
	srv.Handle(contract.CmdTeamIsMember, rpc.Bind(teams.IsMember))
	srv.Handle(contract.CmdTeamExists, rpc.Bind(teams.Exists))
	srv.Handle(contract.CmdTeamGetMembers, rpc.Bind(teams.GetMembers))
	registerHealth(srv, h)
}
