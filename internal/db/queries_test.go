package db

import (
	"path/filepath"
	"testing"
	"time"
)

// testDB creates a test database in a temp directory
func testDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCreateAndGetSearchRun(t *testing.T) {
	database := testDB(t)

	roots := []string{"/data/a", "/data/b"}
	run, err := database.CreateSearchRun(nil, roots, false, true, true)
	if err != nil {
		t.Fatalf("CreateSearchRun: %v", err)
	}

	if run.ID == 0 {
		t.Error("run ID not assigned")
	}
	if run.Status != SearchRunStatusRunning {
		t.Errorf("status = %s, want running", run.Status)
	}
	if len(run.Roots) != 2 || run.Roots[0] != "/data/a" {
		t.Errorf("roots = %v, want %v", run.Roots, roots)
	}
	if run.ByName || !run.BySize || !run.ByContent {
		t.Errorf("criteria = %v/%v/%v, want false/true/true", run.ByName, run.BySize, run.ByContent)
	}
	if run.CompletedAt != nil {
		t.Error("new run already has a completion time")
	}
}

func TestCompleteSearchRun(t *testing.T) {
	database := testDB(t)

	run, err := database.CreateSearchRun(nil, []string{"/x"}, false, true, false)
	if err != nil {
		t.Fatal(err)
	}

	if err := database.UpdateSearchRunStats(run.ID, 1000, 40, 20, 1, 5, 123456); err != nil {
		t.Fatalf("UpdateSearchRunStats: %v", err)
	}
	if err := database.CompleteSearchRun(run.ID, SearchRunStatusCompleted, nil); err != nil {
		t.Fatalf("CompleteSearchRun: %v", err)
	}

	got, err := database.GetSearchRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != SearchRunStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed run has no completion time")
	}
	if got.FilesScanned != 1000 || got.GroupsFound != 5 || got.WastedBytes != 123456 {
		t.Errorf("stats not persisted: %+v", got)
	}
	if got.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", got.FilesSkipped)
	}
}

func TestCompleteSearchRunWithError(t *testing.T) {
	database := testDB(t)

	run, err := database.CreateSearchRun(nil, []string{"/x"}, true, false, false)
	if err != nil {
		t.Fatal(err)
	}

	msg := "all roots invalid"
	if err := database.CompleteSearchRun(run.ID, SearchRunStatusFailed, &msg); err != nil {
		t.Fatal(err)
	}

	got, err := database.GetSearchRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != SearchRunStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != msg {
		t.Errorf("error message = %v, want %q", got.ErrorMessage, msg)
	}
}

func TestDuplicateGroups(t *testing.T) {
	database := testDB(t)

	run, err := database.CreateSearchRun(nil, []string{"/x"}, false, true, true)
	if err != nil {
		t.Fatal(err)
	}

	groups := []*DuplicateGroup{
		{SearchRunID: run.ID, Digest: "aa", FileSize: 10, FileCount: 2, WastedBytes: 10, Files: []string{"/x/a", "/x/b"}},
		{SearchRunID: run.ID, Digest: "bb", FileSize: 9000, FileCount: 3, WastedBytes: 18000, Files: []string{"/x/c", "/x/d", "/x/e"}},
	}
	for _, g := range groups {
		if err := database.CreateDuplicateGroup(g); err != nil {
			t.Fatalf("CreateDuplicateGroup: %v", err)
		}
	}

	got, err := database.ListDuplicateGroups(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d groups, want 2", len(got))
	}
	// Largest first.
	if got[0].FileSize != 9000 {
		t.Errorf("first group size = %d, want 9000", got[0].FileSize)
	}
	if len(got[0].Files) != 3 {
		t.Errorf("first group files = %v, want 3 paths", got[0].Files)
	}
}

func TestScheduledSearches(t *testing.T) {
	database := testDB(t)

	next := time.Now().Add(time.Hour).Truncate(time.Second)
	created, err := database.CreateScheduledSearch(&ScheduledSearch{
		Name:           "nightly downloads",
		Roots:          []string{"~/Downloads"},
		BySize:         true,
		ByContent:      true,
		CronExpression: "0 3 * * *",
		Enabled:        true,
		NextRunAt:      &next,
	})
	if err != nil {
		t.Fatalf("CreateScheduledSearch: %v", err)
	}
	if created.ID == 0 {
		t.Error("scheduled search ID not assigned")
	}

	enabled, err := database.GetEnabledScheduledSearches()
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 1 {
		t.Fatalf("got %d enabled searches, want 1", len(enabled))
	}
	if enabled[0].Name != "nightly downloads" {
		t.Errorf("name = %q", enabled[0].Name)
	}

	now := time.Now().Truncate(time.Second)
	if err := database.UpdateScheduledSearchRun(created.ID, now, now.Add(24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	got, err := database.GetScheduledSearch(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastRunAt == nil {
		t.Error("LastRunAt not recorded")
	}

	if err := database.DeleteScheduledSearch(created.ID); err != nil {
		t.Fatal(err)
	}
	all, err := database.ListScheduledSearches()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("got %d searches after delete, want 0", len(all))
	}
}

func TestSettings(t *testing.T) {
	database := testDB(t)

	// Seeded by migration.
	val, err := database.GetSetting("retention_days")
	if err != nil {
		t.Fatal(err)
	}
	if val != "30" {
		t.Errorf("retention_days = %q, want 30", val)
	}

	if err := database.SetSetting("retention_days", "7"); err != nil {
		t.Fatal(err)
	}
	val, err = database.GetSetting("retention_days")
	if err != nil {
		t.Fatal(err)
	}
	if val != "7" {
		t.Errorf("retention_days = %q, want 7 after update", val)
	}

	val, err = database.GetSetting("missing_key")
	if err != nil {
		t.Fatal(err)
	}
	if val != "" {
		t.Errorf("missing key = %q, want empty", val)
	}
}

func TestCleanupOldData(t *testing.T) {
	database := testDB(t)

	run, err := database.CreateSearchRun(nil, []string{"/x"}, false, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := database.CreateDuplicateGroup(&DuplicateGroup{
		SearchRunID: run.ID, FileSize: 1, FileCount: 2, WastedBytes: 1, Files: []string{"/a", "/b"},
	}); err != nil {
		t.Fatal(err)
	}

	// Age the run past the retention window.
	if _, err := database.Exec(`UPDATE search_runs SET started_at = ? WHERE id = ?`,
		time.Now().AddDate(0, 0, -60), run.ID); err != nil {
		t.Fatal(err)
	}

	if err := database.CleanupOldData(30); err != nil {
		t.Fatalf("CleanupOldData: %v", err)
	}

	runs, err := database.ListSearchRuns(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs after cleanup, want 0", len(runs))
	}
	groups, err := database.ListDuplicateGroups(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 0 {
		t.Errorf("got %d groups after cleanup, want 0", len(groups))
	}
}
