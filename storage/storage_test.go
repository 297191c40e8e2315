package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/richinex/virgil/memory"
	"github.com/richinex/virgil/session"
)

func sampleConversation(id string) *Conversation {
	return &Conversation{
		SessionID: id,
		Turns: []session.Turn{
			{Kind: session.TurnUser, Content: "where is auth handled?"},
			{Kind: session.TurnAnswer, Content: "in auth/login.py"},
		},
		Records: []*memory.Record{
			{SourceKey: "auth/login.py", Overview: "login entry point"},
		},
	}
}

// storageUnderTest runs the contract tests against any implementation.
func storageUnderTest(t *testing.T, store ConversationStorage) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(missing) = %v, want ErrNotFound", err)
	}

	if err := store.Save(ctx, sampleConversation("s1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, sampleConversation("s2")); err != nil {
		t.Fatal(err)
	}

	conv, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Turns) != 2 || conv.Turns[0].Content != "where is auth handled?" {
		t.Errorf("loaded turns = %+v", conv.Turns)
	}
	if len(conv.Records) != 1 || conv.Records[0].SourceKey != "auth/login.py" {
		t.Errorf("loaded records = %+v", conv.Records)
	}
	if conv.UpdatedAt.IsZero() {
		t.Error("Save should stamp UpdatedAt")
	}

	// Saving again replaces.
	updated := sampleConversation("s1")
	updated.Turns = append(updated.Turns, session.Turn{Kind: session.TurnUser, Content: "and tokens?"})
	if err := store.Save(ctx, updated); err != nil {
		t.Fatal(err)
	}
	conv, err = store.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Turns) != 3 {
		t.Errorf("after resave, turns = %d, want 3", len(conv.Turns))
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("List = %v", ids)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("deleting a missing session should not error: %v", err)
	}
}

func TestInMemoryStorage(t *testing.T) {
	store := NewInMemoryStorage()
	defer store.Close()
	storageUnderTest(t, store)
}

func TestSqliteStorage(t *testing.T) {
	store, err := OpenSqlite(filepath.Join(t.TempDir(), "conv.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	storageUnderTest(t, store)
}

func TestSqliteStorageCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".virgil", "nested", "conv.db")

	store, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite with missing parent dirs: %v", err)
	}
	defer store.Close()

	if err := store.Save(context.Background(), sampleConversation("s1")); err != nil {
		t.Fatal(err)
	}
}

func TestSqliteStorageReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.db")
	ctx := context.Background()

	store, err := OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, sampleConversation("persisted")); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	conv, err := store.Load(ctx, "persisted")
	if err != nil {
		t.Fatal(err)
	}
	if conv.Records[0].Overview != "login entry point" {
		t.Errorf("reloaded record = %+v", conv.Records[0])
	}
}
