package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type BaseFixture struct {
	ctx      context.Context
	db       *SQLiteDB
	t        *testing.T
	tearDown func()
}

// NewBaseFixture opens a private in-memory database with the schema applied.
func NewBaseFixture(t *testing.T) *BaseFixture {
	ctx, cancel := context.WithCancel(context.Background())

	db, err := NewSQLiteDB(uuid.NewString(), &SQLiteDBOption{
		Mode:        "memory",
		Cache:       "shared",
		ForeignKeys: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	return &BaseFixture{
		ctx: ctx,
		db:  db,
		t:   t,
		tearDown: func() {
			cancel()
			db.Close()
		},
	}
}

type ChatFixture struct {
	*BaseFixture
	userStore *SQLiteUserStore
	chatStore *SQLiteChatStore
}

func NewChatFixture(t *testing.T) *ChatFixture {
	base := NewBaseFixture(t)
	userStore := NewSQLiteUserStore(base.db.DB)
	return &ChatFixture{
		BaseFixture: base,
		userStore:   userStore,
		chatStore:   NewSQLiteChatStore(base.db.DB, userStore),
	}
}
