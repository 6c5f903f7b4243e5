package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/modwatch/internal/catalog"
	"github.com/good-yellow-bee/modwatch/internal/storage"
)

// mockSource serves a fixed set of projects and versions.
type mockSource struct {
	projects map[string]catalog.Project
	versions map[string][]catalog.Version
}

func (m *mockSource) Project(ctx context.Context, id string) (*catalog.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, &catalog.FetchError{Kind: catalog.KindNotFound, Status: 404}
	}
	return &p, nil
}

func (m *mockSource) Versions(ctx context.Context, projectID string) ([]catalog.Version, error) {
	return m.versions[projectID], nil
}

func (m *mockSource) ProjectsBatch(ctx context.Context, ids []string) ([]catalog.Project, error) {
	var out []catalog.Project
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func setupHandler(t *testing.T) (*Handler, storage.Storage) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "modwatch-commands-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	store := storage.NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(tmpDir)
	})

	source := &mockSource{
		projects: map[string]catalog.Project{
			"modpack-x": {
				ID:      "modpack-x",
				Title:   "Modpack X",
				Updated: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		versions: map[string][]catalog.Version{
			"modpack-x": {{ID: "v2"}, {ID: "v1"}},
		},
	}

	return NewHandler(store, source), store
}

func TestHandle_AddUnknownProject(t *testing.T) {
	handler, _ := setupHandler(t)

	reply := handler.Handle(context.Background(), Interaction{
		ChannelID: "chan-1", UserID: "user-1", Command: "add", ProjectID: "nope",
	})
	if !strings.Contains(reply, "not found") {
		t.Errorf("reply = %q, want mention of not found", reply)
	}
}

func TestHandle_AddThenDuplicate(t *testing.T) {
	handler, store := setupHandler(t)
	ctx := context.Background()

	in := Interaction{ChannelID: "chan-1", UserID: "user-1", Command: "add", ProjectID: "modpack-x"}

	reply := handler.Handle(ctx, in)
	if !strings.Contains(reply, "added") {
		t.Errorf("first add reply = %q, want added", reply)
	}

	// Watermark initialized to the newest version so the next pass does
	// not re-announce it.
	watermark, err := store.Projects().GetLatestVersion(ctx, "modpack-x")
	if err != nil || watermark != "v2" {
		t.Errorf("watermark = %q, %v; want v2", watermark, err)
	}

	reply = handler.Handle(ctx, in)
	if !strings.Contains(reply, "already in the tracking list") {
		t.Errorf("second add reply = %q, want already tracked", reply)
	}
}

func TestHandle_AddSameProjectInSecondChannel(t *testing.T) {
	handler, _ := setupHandler(t)
	ctx := context.Background()

	reply := handler.Handle(ctx, Interaction{
		ChannelID: "chan-1", UserID: "user-1", Command: "add", ProjectID: "modpack-x",
	})
	if !strings.Contains(reply, "added") {
		t.Fatalf("first channel add reply = %q", reply)
	}

	// Project row already exists; the subscription for a different channel
	// must still succeed.
	reply = handler.Handle(ctx, Interaction{
		ChannelID: "chan-2", UserID: "user-2", Command: "add", ProjectID: "modpack-x",
	})
	if !strings.Contains(reply, "added") {
		t.Errorf("second channel add reply = %q, want added", reply)
	}
}

func TestHandle_AddWithoutProjectOption(t *testing.T) {
	handler, _ := setupHandler(t)

	reply := handler.Handle(context.Background(), Interaction{
		ChannelID: "chan-1", UserID: "user-1", Command: "add",
	})
	if !strings.Contains(reply, "required") {
		t.Errorf("reply = %q, want required-option message", reply)
	}
}

func TestHandle_Remove(t *testing.T) {
	handler, _ := setupHandler(t)
	ctx := context.Background()

	// Not tracked yet.
	reply := handler.Handle(ctx, Interaction{
		ChannelID: "chan-1", UserID: "user-1", Command: "remove", ProjectID: "modpack-x",
	})
	if !strings.Contains(reply, "is not being tracked in this channel") {
		t.Errorf("remove untracked reply = %q", reply)
	}

	handler.Handle(ctx, Interaction{
		ChannelID: "chan-1", UserID: "user-1", Command: "add", ProjectID: "modpack-x",
	})

	reply = handler.Handle(ctx, Interaction{
		ChannelID: "chan-1", UserID: "user-1", Command: "remove", ProjectID: "modpack-x",
	})
	if !strings.Contains(reply, "No longer tracking") {
		t.Errorf("remove reply = %q", reply)
	}
}

func TestHandle_RemoveAll(t *testing.T) {
	handler, _ := setupHandler(t)
	ctx := context.Background()

	reply := handler.Handle(ctx, Interaction{ChannelID: "chan-1", Command: "removeall"})
	if !strings.Contains(reply, "No project is being tracked") {
		t.Errorf("removeall on empty channel reply = %q", reply)
	}

	handler.Handle(ctx, Interaction{
		ChannelID: "chan-1", UserID: "user-1", Command: "add", ProjectID: "modpack-x",
	})

	reply = handler.Handle(ctx, Interaction{ChannelID: "chan-1", Command: "removeall"})
	if !strings.Contains(reply, "No longer tracking any project") {
		t.Errorf("removeall reply = %q", reply)
	}
}

func TestHandle_List(t *testing.T) {
	handler, _ := setupHandler(t)
	ctx := context.Background()

	reply := handler.Handle(ctx, Interaction{ChannelID: "chan-1", Command: "list"})
	if !strings.Contains(reply, "No project is being tracked") {
		t.Errorf("empty list reply = %q", reply)
	}

	handler.Handle(ctx, Interaction{
		ChannelID: "chan-1", UserID: "user-1", Command: "add", ProjectID: "modpack-x",
	})

	reply = handler.Handle(ctx, Interaction{ChannelID: "chan-1", Command: "list"})
	if !strings.Contains(reply, "Modpack X") || !strings.Contains(reply, "modpack-x") {
		t.Errorf("list reply = %q, want title and id", reply)
	}
}

func TestHandle_UnknownSubcommand(t *testing.T) {
	handler, _ := setupHandler(t)

	reply := handler.Handle(context.Background(), Interaction{ChannelID: "chan-1", Command: "frobnicate"})
	if !strings.Contains(reply, "Unknown") {
		t.Errorf("reply = %q", reply)
	}
}
