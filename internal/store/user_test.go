package store

import (
	"database/sql"
	"testing"

	"github.com/hfurst/taskpay/internal/database"
	"github.com/hfurst/taskpay/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, us *UserStore, name, email, role string) *model.User {
	t.Helper()
	u, err := us.Create(name, email, "x", role, "")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func TestUserCreate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("Alice", "alice@example.com", "hash", model.RoleUser, "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Role != model.RoleUser {
		t.Errorf("role = %q, want %q", u.Role, model.RoleUser)
	}
	if !u.Wallet.IsZero() {
		t.Errorf("wallet = %s, want 0", u.Wallet)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	if _, err := us.Create("Other", "alice@example.com", "hash", model.RoleUser, ""); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	created := createTestUser(t, us, "Bob", "bob@example.com", model.RoleAdmin)

	u, err := us.GetByEmail("bob@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %v, want user %d", u, created.ID)
	}

	missing, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserAllExist(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	a := createTestUser(t, us, "Alice", "alice@example.com", model.RoleUser)
	b := createTestUser(t, us, "Bob", "bob@example.com", model.RoleUser)

	ok, err := us.AllExist([]int64{a.ID, b.ID})
	if err != nil {
		t.Fatalf("all exist: %v", err)
	}
	if !ok {
		t.Error("expected true for existing users")
	}

	ok, err = us.AllExist([]int64{a.ID, 9999})
	if err != nil {
		t.Fatalf("all exist: %v", err)
	}
	if ok {
		t.Error("expected false when one id is unknown")
	}

	// Duplicate ids count once.
	ok, err = us.AllExist([]int64{a.ID, a.ID})
	if err != nil {
		t.Fatalf("all exist: %v", err)
	}
	if !ok {
		t.Error("expected true for duplicated existing id")
	}
}

func TestUserUpdateProfile(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u := createTestUser(t, us, "Carol", "carol@example.com", model.RoleUser)

	updated, err := us.UpdateProfile(u.ID, "Caroline", "", "newhash", "/uploads/images/p.png")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Caroline" {
		t.Errorf("name = %q, want %q", updated.Name, "Caroline")
	}
	if updated.Email != "carol@example.com" {
		t.Errorf("email changed unexpectedly: %q", updated.Email)
	}
	if updated.PasswordHash != "newhash" {
		t.Errorf("password hash not updated")
	}
	if updated.ProfileImageURL != "/uploads/images/p.png" {
		t.Errorf("profile image = %q", updated.ProfileImageURL)
	}
}

func TestUserList(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	createTestUser(t, us, "Zed", "zed@example.com", model.RoleUser)
	createTestUser(t, us, "Amy", "amy@example.com", model.RoleUser)

	users, err := us.List()
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[0].Name != "Amy" {
		t.Errorf("users[0] = %q, want Amy (name order)", users[0].Name)
	}
}
