package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/classhub/internal/app/system/auth"
	"github.com/dalemusser/classhub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestActor_FromSession(t *testing.T) {
	id := primitive.NewObjectID()
	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{
		ID:   id.Hex(),
		Name: "Mrs Lee",
		Role: "Head_Teacher",
	})

	a, ok := authz.Actor(req)
	if !ok {
		t.Fatal("expected actor")
	}
	if a.ID != id || a.Name != "Mrs Lee" || a.Role != "head_teacher" {
		t.Errorf("unexpected actor: %+v", a)
	}
}

func TestActor_NoUser(t *testing.T) {
	if _, ok := authz.Actor(httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("expected no actor for anonymous request")
	}
}

func TestUserCtx_MalformedIDFailsClosed(t *testing.T) {
	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{ID: "not-hex", Role: "admin"})

	role, _, id, ok := authz.UserCtx(req)
	if ok || role != "visitor" || !id.IsZero() {
		t.Errorf("expected visitor fallback, got role=%q ok=%v", role, ok)
	}
	if _, ok := authz.Actor(req); ok {
		t.Error("malformed session must not yield an actor")
	}
}
