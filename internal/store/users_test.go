package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "testuser", "hash123", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %q", user.Username)
	}
	if user.Role != model.RoleUser {
		t.Errorf("expected role 'user', got %q", user.Role)
	}

	got, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %q", got.Username)
	}
}

func TestGetUserByUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateUser(ctx, "alice", "hash", model.RoleAdmin)

	user, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Username != "alice" {
		t.Errorf("expected 'alice', got %q", user.Username)
	}

	missing, err := s.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateUser(ctx, "a", "hash", model.RoleUser)
	s.CreateUser(ctx, "b", "hash", model.RoleManager)

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
}

func TestDeleteUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := s.CreateUser(ctx, "deleteme", "hash", model.RoleUser)
	s.DeleteUser(ctx, user.ID)

	users, _ := s.ListUsers(ctx)
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}
}

func TestUpdateUserPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, _ := s.CreateUser(ctx, "pwuser", "oldhash", model.RoleUser)
	s.UpdateUserPassword(ctx, user.ID, "newhash")

	got, _ := s.GetUser(ctx, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}

func TestDeletedUsernameCanBeReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _ := s.CreateUser(ctx, "kim", "hash", model.RoleUser)
	if err := s.DeleteUser(ctx, first.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if _, err := s.CreateUser(ctx, "kim", "hash2", model.RoleManager); err != nil {
		t.Fatalf("expected username reuse after delete, got %v", err)
	}

	got, _ := s.GetUserByUsername(ctx, "kim")
	if got == nil || got.Role != model.RoleManager {
		t.Errorf("expected active manager 'kim', got %+v", got)
	}
}

func TestUserUpdatesReportMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpdateUserRole(ctx, 42, model.RoleAdmin); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateUserRole: expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateUserPassword(ctx, 42, "hash"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateUserPassword: expected ErrNotFound, got %v", err)
	}

	user, _ := s.CreateUser(ctx, "kim", "hash", model.RoleUser)
	s.DeleteUser(ctx, user.ID)
	if err := s.DeleteUser(ctx, user.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second DeleteUser: expected ErrNotFound, got %v", err)
	}
}
