package bootstrap

import (
	"context"
	"errors"
	"testing"

	userstore "github.com/dalemusser/classhub/internal/app/store/users"
	"github.com/dalemusser/classhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memAccounts struct {
	byEmail map[string]*models.User
	created []models.User
	lookErr error
}

func newMemAccounts(users ...models.User) *memAccounts {
	m := &memAccounts{byEmail: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		m.byEmail[u.Email] = &u
	}
	return m
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if m.lookErr != nil {
		return nil, m.lookErr
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	return u, nil
}

func (m *memAccounts) Create(_ context.Context, u models.User, _ string) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Status = models.UserActive
	m.created = append(m.created, u)
	m.byEmail[u.Email] = &u
	return u, nil
}

func (m *memAccounts) find(id primitive.ObjectID) *models.User {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *memAccounts) SetRole(_ context.Context, id primitive.ObjectID, role string) error {
	m.find(id).Role = role
	return nil
}

func (m *memAccounts) SetStatus(_ context.Context, id primitive.ObjectID, status string) error {
	m.find(id).Status = status
	return nil
}

func TestEnsureAdmin_CreatesNew(t *testing.T) {
	users := newMemAccounts()

	if err := ensureAdmin(context.Background(), users, "admin@school.test", "longenough", "Administrator", zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin: %v", err)
	}
	if len(users.created) != 1 {
		t.Fatalf("created %d users, want 1", len(users.created))
	}
	if got := users.created[0]; got.Role != models.RoleAdmin || got.FullName != "Administrator" {
		t.Errorf("created %+v, want admin named Administrator", got)
	}
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	id := primitive.NewObjectID()
	users := newMemAccounts(models.User{ID: id, Email: "lead@school.test", Role: models.RoleTeacher, Status: models.UserDisabled})

	if err := ensureAdmin(context.Background(), users, "lead@school.test", "", "ignored", zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin: %v", err)
	}
	u := users.find(id)
	if u.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", u.Role)
	}
	if u.Status != models.UserActive {
		t.Errorf("status = %q, want active", u.Status)
	}
	if len(users.created) != 0 {
		t.Error("existing user should not be recreated")
	}
}

func TestEnsureAdmin_NewAccountNeedsPassword(t *testing.T) {
	err := ensureAdmin(context.Background(), newMemAccounts(), "admin@school.test", "", "Administrator", zap.NewNop())
	if err == nil {
		t.Fatal("expected error without admin_password")
	}
}

func TestEnsureAdmin_LookupError(t *testing.T) {
	users := newMemAccounts()
	users.lookErr = errors.New("connection refused")

	err := ensureAdmin(context.Background(), users, "admin@school.test", "longenough", "Administrator", zap.NewNop())
	if err == nil || !errors.Is(err, users.lookErr) {
		t.Fatalf("err = %v, want wrapped lookup error", err)
	}
}
