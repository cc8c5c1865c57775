package edge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/authz"
	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/rpc"
)

const maxBody = 1 << 20

// payloadFunc builds the command payload from the request and the verified caller.
type payloadFunc func(r *http.Request, c model.Claims) (any, error)

// factsFunc resolves the resource facts an authorization decision needs.
type factsFunc func(ctx context.Context, r *http.Request, c model.Claims) (authz.Resource, error)

// route is one protected endpoint.
type route struct {
	action  authz.Action
	facts   factsFunc
	dest    string
	cmd     string
	payload payloadFunc
	status  int
	list    bool
}

// API holds the HTTP handlers of the edge.
type API struct {
	d      *Dispatcher
	health *Health
	log    *zap.Logger
}

// NewRouter builds the chi router serving /api/v1 and /health.
func NewRouter(d *Dispatcher, health *Health, log *zap.Logger) http.Handler {
	a := &API{d: d, health: health, log: log}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(accessLog(log))
	r.Use(recoverer(log))

	r.Get("/health", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.public(contract.AuthService, contract.CmdRegister, http.StatusCreated, body[contract.RegisterRequest](nil)))
			r.Post("/login", a.public(contract.AuthService, contract.CmdLogin, http.StatusOK, body(func(req *contract.LoginRequest, r *http.Request, _ model.Claims) error {
				req.ClientIP = clientIP(r)
				return nil
			})))
			r.Post("/verify", a.public(contract.AuthService, contract.CmdVerifyToken, http.StatusOK, body[contract.VerifyTokenRequest](nil)))
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", a.protected(route{
				action: authz.TaskCreate, dest: contract.TaskService, cmd: contract.CmdTaskCreate, status: http.StatusCreated,
				payload: body(func(req *contract.TaskCreateRequest, _ *http.Request, c model.Claims) error {
					req.Actor = c
					return nil
				}),
			}))
			r.Get("/", a.protected(route{
				action: authz.TaskList, dest: contract.TaskService, cmd: contract.CmdTaskFindAll, list: true,
				payload: taskQuery(func(req *contract.TaskListRequest, r *http.Request, c model.Claims) error {
					// admins may browse every task, everyone else sees what they own
					if c.Role == model.RoleAdmin {
						return optionalUUID(r, "ownerId", &req.OwnerID)
					}
					req.OwnerID = &c.SubjectID
					return nil
				}),
			}))
			r.Get("/assigned/me", a.protected(route{
				action: authz.TaskList, dest: contract.TaskService, cmd: contract.CmdTaskFindAll, list: true,
				payload: taskQuery(func(req *contract.TaskListRequest, _ *http.Request, c model.Claims) error {
					req.AssignedUserID = &c.SubjectID
					return nil
				}),
			}))
			r.Get("/team/{teamId}", a.protected(route{
				action: authz.TaskListTeam, dest: contract.TaskService, cmd: contract.CmdTaskFindAll, list: true,
				payload: taskQuery(func(req *contract.TaskListRequest, r *http.Request, _ model.Claims) error {
					id, err := pathID(r, "teamId")
					req.AssignedTeamID = &id
					return err
				}),
			}))
			r.Get("/{id}", a.protected(route{
				action: authz.TaskView, facts: a.taskFacts, dest: contract.TaskService, cmd: contract.CmdTaskFindOne,
				payload: idPayload,
			}))
			r.Patch("/{id}", a.protected(route{
				action: authz.TaskUpdate, facts: a.taskFacts, dest: contract.TaskService, cmd: contract.CmdTaskUpdate,
				payload: body(func(req *contract.TaskUpdateRequest, r *http.Request, c model.Claims) error {
					req.Actor = c
					return setPathID(r, "id", &req.ID)
				}),
			}))
			r.Put("/{id}/assign", a.protected(route{
				action: authz.TaskAssign, facts: a.taskFacts, dest: contract.TaskService, cmd: contract.CmdTaskAssign,
				payload: body(func(req *contract.TaskAssignRequest, r *http.Request, c model.Claims) error {
					req.Actor = c
					return setPathID(r, "id", &req.ID)
				}),
			}))
			r.Patch("/{id}/status", a.protected(route{
				action: authz.TaskUpdateStatus, facts: a.taskFacts, dest: contract.TaskService, cmd: contract.CmdTaskUpdateStatus,
				payload: body(func(req *contract.TaskStatusRequest, r *http.Request, c model.Claims) error {
					req.Actor = c
					return setPathID(r, "id", &req.ID)
				}),
			}))
			r.Delete("/{id}", a.protected(route{
				action: authz.TaskDelete, facts: a.taskFacts, dest: contract.TaskService, cmd: contract.CmdTaskDelete,
				payload: idPayload,
			}))
		})

		r.Route("/teams", func(r chi.Router) {
			r.Post("/", a.protected(route{
				action: authz.TeamCreate, dest: contract.UserService, cmd: contract.CmdTeamCreate, status: http.StatusCreated,
				payload: body(func(req *contract.TeamCreateRequest, _ *http.Request, c model.Claims) error {
					req.Actor = c
					return nil
				}),
			}))
			r.Get("/", a.protected(route{
				action: authz.TeamList, dest: contract.UserService, cmd: contract.CmdTeamFindAll, list: true,
				payload: func(r *http.Request, c model.Claims) (any, error) {
					req := contract.TeamListRequest{Actor: c, Search: r.URL.Query().Get("search")}
					if err := paging(r, &req.Page, &req.PageSize); err != nil {
						return nil, err
					}
					if err := optionalUUID(r, "userId", &req.UserID); err != nil {
						return nil, err
					}
					return req, rpc.Validate(req)
				},
			}))
			r.Get("/{id}", a.protected(route{
				action: authz.TeamView, facts: a.teamFacts, dest: contract.UserService, cmd: contract.CmdTeamFindOne,
				payload: idPayload,
			}))
			r.Get("/{id}/members", a.protected(route{
				action: authz.TeamMembers, facts: a.teamFacts, dest: contract.UserService, cmd: contract.CmdTeamGetMembers,
				payload: idPayload,
			}))
			r.Patch("/{id}", a.protected(route{
				action: authz.TeamUpdate, facts: a.teamFacts, dest: contract.UserService, cmd: contract.CmdTeamUpdate,
				payload: body(func(req *contract.TeamUpdateRequest, r *http.Request, c model.Claims) error {
					req.Actor = c
					return setPathID(r, "id", &req.ID)
				}),
			}))
			r.Post("/{id}/members", a.protected(route{
				action: authz.TeamAddMember, facts: a.teamFacts, dest: contract.UserService, cmd: contract.CmdTeamAddMember,
				payload: body(func(req *contract.TeamMemberRequest, r *http.Request, c model.Claims) error {
					req.Actor = c
					return setPathID(r, "id", &req.TeamID)
				}),
			}))
			r.Delete("/{id}/members/{userId}", a.protected(route{
				action: authz.TeamRemoveMember, facts: a.teamFacts, dest: contract.UserService, cmd: contract.CmdTeamRemoveMember,
				payload: func(r *http.Request, c model.Claims) (any, error) {
					req := contract.TeamMemberRequest{Actor: c}
					if err := setPathID(r, "id", &req.TeamID); err != nil {
						return nil, err
					}
					return req, setPathID(r, "userId", &req.UserID)
				},
			}))
			r.Delete("/{id}", a.protected(route{
				action: authz.TeamDelete, facts: a.teamFacts, dest: contract.UserService, cmd: contract.CmdTeamDelete,
				payload: idPayload,
			}))
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", a.protected(route{
				action: authz.UserList, dest: contract.UserService, cmd: contract.CmdUserFindAll, list: true,
				payload: func(r *http.Request, c model.Claims) (any, error) {
					req := contract.UserListRequest{Actor: c, Search: r.URL.Query().Get("search")}
					if err := paging(r, &req.Page, &req.PageSize); err != nil {
						return nil, err
					}
					return req, rpc.Validate(req)
				},
			}))
			r.Get("/me", a.protected(route{
				action: authz.UserMe, facts: selfFacts, dest: contract.UserService, cmd: contract.CmdUserFindOne,
				payload: func(_ *http.Request, c model.Claims) (any, error) {
					return contract.IDRequest{Actor: c, ID: c.SubjectID}, nil
				},
			}))
			r.Get("/{id}", a.protected(route{
				action: authz.UserView, facts: userFacts, dest: contract.UserService, cmd: contract.CmdUserFindOne,
				payload: idPayload,
			}))
			r.Patch("/{id}", a.protected(route{
				action: authz.UserUpdateSelf, facts: userFacts, dest: contract.UserService, cmd: contract.CmdUserUpdate,
				payload: body(func(req *contract.UserUpdateRequest, r *http.Request, c model.Claims) error {
					req.Actor = c
					return setPathID(r, "id", &req.ID)
				}),
			}))
		})
	})

	return r
}

// public forwards without a token.
func (a *API) public(dest, cmd string, status int, payload payloadFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		req, err := payload(r, model.Claims{})
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		raw, err := a.d.Forward(r.Context(), dest, cmd, req)
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		a.relay(w, status, raw, false)
	}
}

// protected runs authenticate, payload, facts, authorize and forward in that order.
// Nothing is forwarded unless the decision is allow.
func (a *API) protected(rt route) http.HandlerFunc {
	if rt.status == 0 {
		rt.status = http.StatusOK
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		c, err := a.d.Authenticate(ctx, r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		req, err := rt.payload(r, c)
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		var res authz.Resource
		if rt.facts != nil {
			if res, err = rt.facts(ctx, r, c); err != nil {
				writeError(w, a.log, err)
				return
			}
		}
		if err := a.d.Authorize(ctx, c, rt.action, res); err != nil {
			writeError(w, a.log, err)
			return
		}
		raw, err := a.d.Forward(ctx, rt.dest, rt.cmd, req)
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		a.relay(w, rt.status, raw, rt.list)
	}
}

// relay writes the downstream result unchanged. List results are split into data and meta.
func (a *API) relay(w http.ResponseWriter, status int, raw json.RawMessage, list bool) {
	if !list {
		writeJSON(w, status, Envelope{Data: raw})
		return
	}
	var page struct {
		Items json.RawMessage `json:"items"`
		Meta  *model.Page     `json:"meta"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		writeError(w, a.log, errs.Wrap(errs.KindInternal, "malformed list result", err))
		return
	}
	writeJSON(w, status, Envelope{Data: page.Items, Meta: page.Meta})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Envelope{Data: a.health.Check(r.Context())})
}

func (a *API) taskFacts(ctx context.Context, r *http.Request, c model.Claims) (authz.Resource, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return authz.Resource{}, err
	}
	return a.d.TaskFacts(ctx, c, id)
}

func (a *API) teamFacts(ctx context.Context, r *http.Request, c model.Claims) (authz.Resource, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return authz.Resource{}, err
	}
	return a.d.TeamFacts(ctx, c, id)
}

// userFacts makes the profile its own owner.
func userFacts(_ context.Context, r *http.Request, _ model.Claims) (authz.Resource, error) {
	id, err := pathID(r, "id")
	return authz.Resource{OwnerID: id}, err
}

func selfFacts(_ context.Context, _ *http.Request, c model.Claims) (authz.Resource, error) {
	return authz.Resource{OwnerID: c.SubjectID}, nil
}

// body decodes a JSON body into Req, lets set fill path and caller fields, then validates.
func body[Req any](set func(req *Req, r *http.Request, c model.Claims) error) payloadFunc {
	return func(r *http.Request, c model.Claims) (any, error) {
		var req Req
		if r.Body != nil {
			err := json.NewDecoder(r.Body).Decode(&req)
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, errs.Wrap(errs.KindInvalidArgument, "malformed JSON body", err)
			}
		}
		if set != nil {
			if err := set(&req, r, c); err != nil {
				return nil, err
			}
		}
		if err := rpc.Validate(req); err != nil {
			return nil, err
		}
		return req, nil
	}
}

func taskQuery(set func(req *contract.TaskListRequest, r *http.Request, c model.Claims) error) payloadFunc {
	return func(r *http.Request, c model.Claims) (any, error) {
		req := contract.TaskListRequest{Actor: c, Status: model.TaskStatus(r.URL.Query().Get("status"))}
		if err := paging(r, &req.Page, &req.PageSize); err != nil {
			return nil, err
		}
		if err := set(&req, r, c); err != nil {
			return nil, err
		}
		return req, rpc.Validate(req)
	}
}

func idPayload(r *http.Request, c model.Claims) (any, error) {
	req := contract.IDRequest{Actor: c}
	return req, setPathID(r, "id", &req.ID)
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(chi.URLParam(r, name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errs.Newf(errs.KindInvalidArgument, "invalid %s", name)
	}
	return id, nil
}

func setPathID(r *http.Request, name string, dst *uuid.UUID) error {
	id, err := pathID(r, name)
	if err != nil {
		return err
	}
	*dst = id
	return nil
}

func optionalUUID(r *http.Request, name string, dst **uuid.UUID) error {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	id, err := uuid.FromString(v)
	if err != nil {
		return errs.Newf(errs.KindInvalidArgument, "invalid %s", name)
	}
	*dst = &id
	return nil
}

func paging(r *http.Request, page, size *int) error {
	q := r.URL.Query()
	for name, dst := range map[string]*int{"page": page, "pageSize": size} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errs.Newf(errs.KindInvalidArgument, "invalid %s", name)
		}
		*dst = n
	}
	return nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
