package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/good-yellow-bee/modwatch/internal/catalog"
	"github.com/good-yellow-bee/modwatch/internal/models"
	"github.com/good-yellow-bee/modwatch/internal/storage"
)

var (
	baseTime  = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	laterTime = baseTime.Add(24 * time.Hour)
)

// mockSource is an in-memory catalog.Source.
type mockSource struct {
	projects    map[string]catalog.Project
	versions    map[string][]catalog.Version
	versionsErr map[string]error
	batchErrs   int // fail the first N batch calls
	batchCalls  int
}

func (m *mockSource) Project(ctx context.Context, id string) (*catalog.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, &catalog.FetchError{Kind: catalog.KindNotFound, Status: 404}
	}
	return &p, nil
}

func (m *mockSource) Versions(ctx context.Context, projectID string) ([]catalog.Version, error) {
	if err := m.versionsErr[projectID]; err != nil {
		return nil, err
	}
	return m.versions[projectID], nil
}

func (m *mockSource) ProjectsBatch(ctx context.Context, ids []string) ([]catalog.Project, error) {
	m.batchCalls++
	if m.batchCalls <= m.batchErrs {
		return nil, &catalog.FetchError{Kind: catalog.KindServerError, Status: 500}
	}
	var out []catalog.Project
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// mockNotifier records every NotifyUpdate call.
type notifyCall struct {
	projectID string
	versionID string
	channels  []string
}

type mockNotifier struct {
	calls []notifyCall
}

func (m *mockNotifier) NotifyUpdate(ctx context.Context, project *models.Project, version *catalog.Version, channels []string) error {
	m.calls = append(m.calls, notifyCall{project.ID, version.ID, channels})
	return nil
}

func setupStore(t *testing.T) storage.Storage {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "modwatch-tracker-test-*")
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
	return store
}

func trackProject(t *testing.T, store storage.Storage, id, watermark, channelID string) {
	t.Helper()
	ctx := context.Background()

	err := store.Projects().Create(ctx, &models.Project{
		ID:            id,
		Title:         "Title " + id,
		LatestVersion: watermark,
		LastUpdate:    baseTime,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if channelID != "" {
		if err := store.Subscriptions().Create(ctx, models.NewSubscription(id, channelID, "owner")); err != nil {
			t.Fatalf("create subscription: %v", err)
		}
	}
}

func version(id, versionType string) catalog.Version {
	return catalog.Version{
		ID:            id,
		VersionNumber: id,
		VersionType:   versionType,
		DatePublished: laterTime,
		Files:         []catalog.File{{URL: "https://cdn/" + id, Filename: id + ".jar", Primary: true}},
	}
}

func testConfig() Config {
	return Config{
		Interval:   time.Hour,
		ChunkDelay: time.Millisecond,
	}
}

func TestRunPass_NoChangeIsIdempotent(t *testing.T) {
	store := setupStore(t)
	trackProject(t, store, "sodium", "v1", "chan-1")

	source := &mockSource{
		projects: map[string]catalog.Project{
			// Same updated timestamp as stored: not changed.
			"sodium": {ID: "sodium", Title: "Title sodium", Updated: baseTime},
		},
		versions: map[string][]catalog.Version{
			"sodium": {version("v1", "release")},
		},
	}
	notif := &mockNotifier{}

	r := New(store, source, notif, testConfig())
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	if len(notif.calls) != 0 {
		t.Errorf("sent %d notifications, want 0", len(notif.calls))
	}
	got, err := store.Projects().GetLatestVersion(context.Background(), "sodium")
	if err != nil || got != "v1" {
		t.Errorf("watermark = %q, %v; want v1 unchanged", got, err)
	}
}

func TestRunPass_NotifiesVersionsAboveWatermark(t *testing.T) {
	store := setupStore(t)
	trackProject(t, store, "sodium", "v1", "chan-1")

	source := &mockSource{
		projects: map[string]catalog.Project{
			"sodium": {ID: "sodium", Title: "Sodium", Updated: laterTime},
		},
		versions: map[string][]catalog.Version{
			"sodium": {version("v3", "release"), version("v2", "beta"), version("v1", "release")},
		},
	}
	notif := &mockNotifier{}

	r := New(store, source, notif, testConfig())
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	if len(notif.calls) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(notif.calls))
	}
	if notif.calls[0].versionID != "v3" || notif.calls[1].versionID != "v2" {
		t.Errorf("notified %s then %s, want v3 then v2",
			notif.calls[0].versionID, notif.calls[1].versionID)
	}

	got, err := store.Projects().GetLatestVersion(context.Background(), "sodium")
	if err != nil || got != "v3" {
		t.Errorf("watermark = %q, %v; want v3", got, err)
	}
}

func TestRunPass_StaleWatermarkNotifiesNewestOnly(t *testing.T) {
	store := setupStore(t)
	trackProject(t, store, "sodium", "long-gone", "chan-1")

	source := &mockSource{
		projects: map[string]catalog.Project{
			"sodium": {ID: "sodium", Title: "Sodium", Updated: laterTime},
		},
		versions: map[string][]catalog.Version{
			"sodium": {version("v3", "release"), version("v2", "beta"), version("v1", "release")},
		},
	}
	notif := &mockNotifier{}

	r := New(store, source, notif, testConfig())
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	if len(notif.calls) != 1 {
		t.Fatalf("sent %d notifications, want 1 (newest only)", len(notif.calls))
	}
	if notif.calls[0].versionID != "v3" {
		t.Errorf("notified %s, want v3", notif.calls[0].versionID)
	}
}

func TestRunPass_PrunesProjectWithoutSubscribers(t *testing.T) {
	store := setupStore(t)
	trackProject(t, store, "sodium", "v1", "") // no subscription

	source := &mockSource{
		projects: map[string]catalog.Project{
			"sodium": {ID: "sodium", Title: "Sodium", Updated: laterTime},
		},
		versions: map[string][]catalog.Version{
			"sodium": {version("v2", "release")},
		},
	}
	notif := &mockNotifier{}

	r := New(store, source, notif, testConfig())
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	if len(notif.calls) != 0 {
		t.Errorf("sent %d notifications, want 0", len(notif.calls))
	}
	_, err := store.Projects().GetLatestVersion(context.Background(), "sodium")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("project lookup = %v, want ErrNotFound (pruned)", err)
	}
}

func TestRunPass_PrunesProjectGoneFromCatalog(t *testing.T) {
	store := setupStore(t)
	trackProject(t, store, "vanished", "v1", "chan-1")

	source := &mockSource{projects: map[string]catalog.Project{}}
	notif := &mockNotifier{}

	r := New(store, source, notif, testConfig())
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	_, err := store.Projects().GetLatestVersion(context.Background(), "vanished")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("project lookup = %v, want ErrNotFound (pruned)", err)
	}
	// Subscriptions pruned along with the project.
	channels, err := store.Subscriptions().ChannelsFor(context.Background(), "vanished")
	if err != nil {
		t.Fatalf("channels for: %v", err)
	}
	if len(channels) != 0 {
		t.Errorf("got %d orphaned subscriptions, want 0", len(channels))
	}
}

func TestRunPass_ChunkFailureIsNotPassFatal(t *testing.T) {
	store := setupStore(t)
	trackProject(t, store, "alpha", "v1", "chan-1")
	trackProject(t, store, "beta", "v1", "chan-1")

	source := &mockSource{
		projects: map[string]catalog.Project{
			"alpha": {ID: "alpha", Title: "Alpha", Updated: laterTime},
			"beta":  {ID: "beta", Title: "Beta", Updated: laterTime},
		},
		versions: map[string][]catalog.Version{
			"alpha": {version("v2", "release"), version("v1", "release")},
			"beta":  {version("v2", "release"), version("v1", "release")},
		},
		batchErrs: 1, // first chunk fails
	}
	notif := &mockNotifier{}

	config := testConfig()
	config.ChunkSize = 1
	r := New(store, source, notif, config)
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	// The failed chunk's project is untouched, the second chunk proceeds.
	if len(notif.calls) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(notif.calls))
	}
	if notif.calls[0].projectID != "beta" {
		t.Errorf("notified project %s, want beta", notif.calls[0].projectID)
	}
	if _, err := store.Projects().GetLatestVersion(context.Background(), "alpha"); err != nil {
		t.Errorf("project in failed chunk should survive: %v", err)
	}
}

func TestRunPass_VersionsNotFoundPrunes(t *testing.T) {
	store := setupStore(t)
	trackProject(t, store, "sodium", "v1", "chan-1")

	source := &mockSource{
		projects: map[string]catalog.Project{
			"sodium": {ID: "sodium", Title: "Sodium", Updated: laterTime},
		},
		versionsErr: map[string]error{
			"sodium": &catalog.FetchError{Kind: catalog.KindNotFound, Status: 404},
		},
	}
	notif := &mockNotifier{}

	r := New(store, source, notif, testConfig())
	if err := r.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	_, err := store.Projects().GetLatestVersion(context.Background(), "sodium")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("project lookup = %v, want ErrNotFound (pruned)", err)
	}
}

func TestRunPass_SkipsWhenAlreadyRunning(t *testing.T) {
	store := setupStore(t)
	source := &mockSource{}
	r := New(store, source, &mockNotifier{}, testConfig())

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.RunPass(context.Background()); err != nil {
		t.Errorf("overlapping pass = %v, want nil no-op", err)
	}
	if source.batchCalls != 0 {
		t.Errorf("overlapping pass issued %d fetches, want 0", source.batchCalls)
	}
}

func TestVersionsSince(t *testing.T) {
	list := []catalog.Version{
		{ID: "v3"}, {ID: "v2"}, {ID: "v1"},
	}

	tests := []struct {
		name      string
		watermark string
		want      []string
	}{
		{"at newest", "v3", nil},
		{"one behind", "v2", []string{"v3"}},
		{"two behind", "v1", []string{"v3", "v2"}},
		{"stale cursor", "v0", []string{"v3"}},
		{"never set", "", []string{"v3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := versionsSince(list, tt.watermark)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d versions, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if got[i].ID != want {
					t.Errorf("version %d = %q, want %q", i, got[i].ID, want)
				}
			}
		})
	}

	if got := versionsSince(nil, "v1"); got != nil {
		t.Errorf("empty list = %v, want nil", got)
	}
}

func TestChunkIDs(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	chunks := chunkIDs(ids, 2)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[2]) != 1 || chunks[2][0] != "e" {
		t.Errorf("last chunk = %v, want [e]", chunks[2])
	}

	if chunks := chunkIDs(nil, 2); chunks != nil {
		t.Errorf("empty input = %v, want nil", chunks)
	}
}
