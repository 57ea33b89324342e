package repo_test

import (
	"context"
	"os"
	"testing"

	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/repo"
	"github.com/thislinkplease/midterm-cross-platform/pkg/database"
)

func TestUserRepoUpsertAccount(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	r := repo.NewUserRepo(db)
	if err := r.EnsureTable(ctx); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	const email = "repo-test@x.com"
	t.Cleanup(func() { _ = r.Delete(context.Background(), email) })

	if err := r.UpsertAccount(ctx, entity.User{Username: "first", Email: email}, "hash-1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := r.UpsertAccount(ctx, entity.User{Username: "second", Email: email, Image: "https://img"}, "hash-2"); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := r.GetByEmail(ctx, email)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Username != "second" || got.Image != "https://img" {
		t.Errorf("row = %+v", got)
	}
	if h, _ := r.PasswordHash(ctx, email); h != "hash-2" {
		t.Errorf("hash = %q", h)
	}
	if missing, err := r.GetByEmail(ctx, "nobody@x.com"); err != nil || missing != nil {
		t.Errorf("missing row: %v %v", missing, err)
	}
}
