// Package saga coordinates account registration across auth-service and user-service:
// a local identity commit, a notification to the profile owner, and a single compensating
// delete when the notification fails.
package saga

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/taskmesh/internal/alert"
	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/rpc"
)

// State is a step of the registration state machine.
type State string

const (
	Started         State = "started"
	LocalCommitted  State = "local_committed"
	NotifySucceeded State = "notify_succeeded"
	NotifyFailed    State = "notify_failed"
	Compensating    State = "compensating"
	Done            State = "done"
	Failed          State = "failed"
)

var transitions = map[State][]State{
	Started:         {LocalCommitted, Failed},
	LocalCommitted:  {NotifySucceeded, NotifyFailed},
	NotifySucceeded: {Done, Failed},
	NotifyFailed:    {Compensating},
	Compensating:    {Failed},
}

// DefaultCompensationTimeout bounds the compensating delete.
const DefaultCompensationTimeout = 5 * time.Second

// IdentityStore is the local store of identities.
type IdentityStore interface {
	Create(ctx context.Context, u *model.Identity) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Notifier tells the profile owner about a new account.
type Notifier interface {
	NotifyCreated(ctx context.Context, ev contract.UserCreated) error
}

// Issuer signs the token returned on success.
type Issuer interface {
	Issue(subjectID uuid.UUID, email string, role model.Role) (model.Token, error)
}

// Input is the data of one registration attempt. Identity.PwdHash is already encoded.
type Input struct {
	Identity  *model.Identity
	FirstName string
	LastName  string
	Phone     string
}

// Result is the terminal outcome of a run.
type Result struct {
	State    State
	History  []State
	Identity *model.Identity
	Token    model.Token
}

// Registration runs the state machine.
type Registration struct {
	store       IdentityStore
	notifier    Notifier
	issuer      Issuer
	alerter     alert.Alerter
	log         *zap.Logger
	service     string
	compTimeout time.Duration
}

// NewRegistration constructs a coordinator.
func NewRegistration(store IdentityStore, n Notifier, iss Issuer, a alert.Alerter, log *zap.Logger) *Registration {
	return &Registration{
		store:       store,
		notifier:    n,
		issuer:      iss,
		alerter:     a,
		log:         log,
		service:     contract.AuthService,
		compTimeout: DefaultCompensationTimeout,
	}
}

// WithCompensationTimeout overrides the bound of the compensating delete.
func (r *Registration) WithCompensationTimeout(d time.Duration) *Registration {
	if d > 0 {
		r.compTimeout = d
	}
	return r
}

type run struct {
	state   State
	history []State
}

func (x *run) to(next State) {
	for _, allowed := range transitions[x.state] {
		if allowed == next {
			x.state = next
			x.history = append(x.history, next)
			return
		}
	}
	panic("saga: illegal transition " + string(x.state) + " -> " + string(next))
}

func (x *run) result(id *model.Identity) Result {
	return Result{State: x.state, History: append([]State(nil), x.history...), Identity: id}
}

// Run executes one registration. Either both the identity and the profile exist on return
// with a nil error, or the identity was removed and the notify failure is returned.
// A failed removal yields an internal inconsistency error and an alert.
func (r *Registration) Run(ctx context.Context, in Input) (Result, error) {
	x := &run{state: Started, history: []State{Started}}
	id := in.Identity

	if err := r.store.Create(ctx, id); err != nil {
		x.to(Failed)
		return x.result(nil), err
	}
	x.to(LocalCommitted)

	ev := contract.UserCreated{
		ID:        id.ID,
		Email:     id.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      id.Role,
	}
	if nerr := r.notifier.NotifyCreated(ctx, ev); nerr != nil {
		x.to(NotifyFailed)
		if errors.Is(nerr, errs.ErrTimeout) || errors.Is(nerr, errs.ErrUnavailable) {
			// user-service may have stored the profile before the call gave up
			r.log.Error("registration notify outcome unknown, compensating",
				zap.Bool("alert", true),
				zap.String("identity_id", id.ID.String()),
				zap.String("email", id.Email),
				zap.Error(nerr),
			)
			r.raise(ctx, alert.Alert{
				Kind:    "registration_outcome_unknown",
				Service: r.service,
				Message: "profile may exist without identity until the account registers again",
				Fields:  map[string]string{"identity_id": id.ID.String(), "email": id.Email},
			})
		} else {
			r.log.Warn("registration notify failed, compensating",
				zap.String("identity_id", id.ID.String()),
				zap.Error(nerr),
			)
		}
		return r.compensate(ctx, x, id, nerr)
	}
	x.to(NotifySucceeded)

	tok, err := r.issuer.Issue(id.ID, id.Email, id.Role)
	if err != nil {
		// identity and profile both exist; the account can log in later
		x.to(Failed)
		r.log.Error("registration token issue failed", zap.String("identity_id", id.ID.String()), zap.Error(err))
		return x.result(id), errs.Wrap(errs.KindInternal, "registration succeeded but token could not be issued", err)
	}
	x.to(Done)

	res := x.result(id)
	res.Token = tok
	r.log.Debug("registration done", zap.String("identity_id", id.ID.String()), zap.Any("history", res.History))
	return res, nil
}

func (r *Registration) compensate(ctx context.Context, x *run, id *model.Identity, cause error) (Result, error) {
	x.to(Compensating)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.compTimeout)
	defer cancel()

	derr := r.store.Delete(cctx, id.ID)
	x.to(Failed)
	if derr == nil || errors.Is(derr, errs.ErrNotFound) {
		return x.result(nil), errs.Annotate(cause, "registration failed")
	}

	out := errs.Wrap(errs.KindInconsistency, "registration left an orphaned identity", errors.Join(cause, derr))
	r.log.Error("registration compensation failed",
		zap.Bool("alert", true),
		zap.String("identity_id", id.ID.String()),
		zap.String("email", id.Email),
		zap.NamedError("notify_error", cause),
		zap.NamedError("compensation_error", derr),
	)
	r.raise(ctx, alert.Alert{
		Kind:    "registration_inconsistency",
		Service: r.service,
		Message: "identity committed without profile and could not be removed",
		Fields:  map[string]string{"identity_id": id.ID.String(), "email": id.Email},
	})
	return x.result(id), out
}

func (r *Registration) raise(ctx context.Context, a alert.Alert) {
	if r.alerter == nil {
		return
	}
	a.At = time.Now().UTC()
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.compTimeout)
	defer cancel()
	if err := r.alerter.Alert(actx, a); err != nil {
		r.log.Error("alert delivery failed", zap.String("kind", a.Kind), zap.Error(err))
	}
}

// RPCNotifier emits user.created to user-service.
type RPCNotifier struct{ rpc rpc.Caller }

// NewRPCNotifier constructs a notifier over an RPC caller.
func NewRPCNotifier(c rpc.Caller) *RPCNotifier { return &RPCNotifier{rpc: c} }

// NotifyCreated implements Notifier.
func (n *RPCNotifier) NotifyCreated(ctx context.Context, ev contract.UserCreated) error {
	return n.rpc.Emit(ctx, contract.UserService, contract.EventUserCreated, ev)
}
