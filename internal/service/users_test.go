package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/contract"
	"github.com/and161185/taskmesh/internal/errs"
	"github.com/and161185/taskmesh/internal/model"
	"github.com/and161185/taskmesh/internal/repository"
)

type fakeProfiles struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Profile
	err  error
}

var _ repository.ProfileRepository = (*fakeProfiles)(nil)

func newFakeProfiles(ps ...model.Profile) *fakeProfiles {
	f := &fakeProfiles{byID: map[uuid.UUID]model.Profile{}}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProfiles) Create(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ID]; ok {
		return nil
	}
	for _, x := range f.byID {
		if x.Email == p.Email {
			return errs.New(errs.KindConflict, "profile email already exists")
		}
	}
	f.byID[p.ID] = *p
	return nil
}
func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}
func (f *fakeProfiles) GetByEmail(_ context.Context, email string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeProfiles) Update(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ID]; !ok {
		return errs.ErrNotFound
	}
	f.byID[p.ID] = *p
	return nil
}
func (f *fakeProfiles) List(_ context.Context, flt model.ProfileFilter) ([]model.Profile, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Profile{}
	for _, p := range f.byID {
		if flt.Search == "" || strings.Contains(p.Email, flt.Search) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}
func (f *fakeProfiles) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.byID[id]
	return ok, nil
}

func TestUsers_OnUserCreated_Idempotent(t *testing.T) {
	t.Parallel()
	profiles := newFakeProfiles()
	s := NewUserService(profiles)
	ctx := context.Background()
	ev := contract.UserCreated{ID: uuid.Must(uuid.NewV4()), Email: "Ann@Example.com", FirstName: "Ann", LastName: "Lee", Role: model.RoleMember}

	if err := s.OnUserCreated(ctx, ev); err != nil {
		t.Fatalf("OnUserCreated: %v", err)
	}
	if err := s.OnUserCreated(ctx, ev); err != nil {
		t.Fatalf("replay must be a no-op, got %v", err)
	}
	p, err := s.FindByEmail(ctx, contract.EmailRequest{Email: "ann@example.com"})
	if err != nil || p.ID != ev.ID {
		t.Fatalf("FindByEmail: %v %+v", err, p)
	}

	other := ev
	other.ID = uuid.Must(uuid.NewV4())
	if err := s.OnUserCreated(ctx, other); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("want conflict for a second id with the same email, got %v", err)
	}
}

func TestUsers_UpdateKeepsIdentityFields(t *testing.T) {
	t.Parallel()
	id := uuid.Must(uuid.NewV4())
	s := NewUserService(newFakeProfiles(model.Profile{ID: id, Email: "a@example.com", FirstName: "Ann", LastName: "Lee", Role: model.RoleAdmin}))
	actor := model.Claims{SubjectID: id, Role: model.RoleAdmin}

	p, err := s.Update(context.Background(), contract.UserUpdateRequest{Actor: actor, ID: id, LastName: ptr("Long"), Phone: ptr("+1 555")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.FirstName != "Ann" || p.LastName != "Long" || p.Phone != "+1 555" || p.Email != "a@example.com" || p.Role != model.RoleAdmin {
		t.Fatalf("bad update: %+v", p)
	}

	_, err = s.Update(context.Background(), contract.UserUpdateRequest{Actor: actor, ID: uuid.Must(uuid.NewV4())})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestUsers_ExistsAndList(t *testing.T) {
	t.Parallel()
	id := uuid.Must(uuid.NewV4())
	profiles := newFakeProfiles(model.Profile{ID: id, Email: "a@example.com"}, model.Profile{ID: uuid.Must(uuid.NewV4()), Email: "b@example.com"})
	s := NewUserService(profiles)
	ctx := context.Background()

	ex, err := s.Exists(ctx, contract.IDRequest{ID: id})
	if err != nil || !ex.Exists {
		t.Fatalf("Exists: %v %+v", err, ex)
	}
	ex, err = s.Exists(ctx, contract.IDRequest{ID: uuid.Must(uuid.NewV4())})
	if err != nil || ex.Exists {
		t.Fatalf("Exists unknown: %v %+v", err, ex)
	}
	profiles.err = errors.New("db down")
	if _, err := s.Exists(ctx, contract.IDRequest{ID: id}); err == nil {
		t.Fatalf("want storage error, never a false answer")
	}

	list, err := s.FindAll(ctx, contract.UserListRequest{Search: "a@"})
	if err != nil || list.Meta.Total != 1 || list.Meta.PageSize != model.DefaultPageSize || list.Meta.Page != 1 {
		t.Fatalf("FindAll: %v %+v", err, list)
	}
}
