package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potooio/curator/internal/api"
	"github.com/potooio/curator/internal/module"
	"github.com/potooio/curator/internal/types"
)

var t0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func testSnapshot() module.Snapshot {
	return module.Snapshot{
		State: "Enabled",
		Buckets: []module.BucketView{
			{ProcessName: "Game.exe", Detections: []module.DetectionView{
				{WorkshopID: 42, EntryName: "Map Pack", ReleaseID: 7, Version: "1.2", Predicate: "process-name"},
				{WorkshopID: 43, ReleaseID: 9, Predicate: "window-title", Installing: true},
			}},
		},
		Installs: []types.InstallOutcome{
			{EntryID: 41, EntryName: "Skins", Version: "2.0", ProcessName: "Game.exe",
				Status: types.OutcomeSucceeded, StartedAt: t0, FinishedAt: t0.Add(1500 * time.Millisecond)},
		},
	}
}

// newTestServer serves the status API from a fixed snapshot and points the
// CLI at it for the duration of the test.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	snap := testSnapshot()
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(snap)
	})
	mux.HandleFunc("/api/v1/detections", func(w http.ResponseWriter, r *http.Request) {
		resp := api.DetectionsResponse{Buckets: []module.BucketView{}, ProcessNames: []string{}}
		if p := r.URL.Query().Get("process"); p == "" || p == "Game.exe" {
			resp.Buckets = snap.Buckets
			resp.ProcessNames = []string{"Game.exe"}
			resp.Total = 2
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	origServer := serverURL
	serverURL = srv.URL
	t.Cleanup(func() { serverURL = origServer })
	return srv
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	origOutput := outputFmt
	origProcess := detectionsProcess
	origFiles := checkFiles
	t.Cleanup(func() {
		outputFmt = origOutput
		detectionsProcess = origProcess
		checkFiles = origFiles
	})

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusCommand_JSON(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "status", "--server", srv.URL, "-o", "json")
	require.NoError(t, err)

	var result StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "Enabled", result.State)
	assert.Equal(t, 1, result.ProcessCount)
	assert.Equal(t, 2, result.PendingDetections)
	assert.Equal(t, 1, result.Installing)
	require.Len(t, result.Installs, 1)
	assert.Equal(t, "Succeeded", result.Installs[0].Status)
	assert.Equal(t, "1.5s", result.Installs[0].Duration)
}

func TestStatusCommand_Table(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "status", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "STATE:")
	assert.Contains(t, out, "Enabled")
	assert.Contains(t, out, "Skins")
}

func TestStatusCommand_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := runCLI(t, "status", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestStatusCommand_BadServerScheme(t *testing.T) {
	_, err := runCLI(t, "status", "--server", "ftp://localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http or https")
}

func TestDetectionsCommand(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "detections", "--server", srv.URL, "-o", "json")
	require.NoError(t, err)

	var result DetectionsResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Detections, 2)
	assert.Equal(t, "Game.exe", result.Detections[0].ProcessName)
	assert.True(t, result.Detections[1].Installing)
}

func TestDetectionsCommand_FilterByProcess(t *testing.T) {
	srv := newTestServer(t)

	out, err := runCLI(t, "detections", "--server", srv.URL, "-p", "Other.exe", "-o", "json")
	require.NoError(t, err)

	var result DetectionsResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Zero(t, result.Total)
	assert.Empty(t, result.Detections)
}

func writeCuration(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCheckCommand_Valid(t *testing.T) {
	path := writeCuration(t, "curation.yaml", `profiles:
- workshopId: 42
  profileTriggers:
  - processName: Game.exe
  - processName: Game.exe
    windowTitle: "(("
- workshopId: 7
  profileTriggers:
  - processName: Launcher.exe
`)

	out, err := runCLI(t, "check", "-f", path, "-o", "json")
	require.NoError(t, err)

	var result CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	require.Len(t, result.Files, 1)
	f := result.Files[0]
	assert.Equal(t, "yaml", f.Format)
	assert.Equal(t, 2, f.Profiles)
	assert.Equal(t, 3, f.Triggers)
	assert.Equal(t, []string{"Game.exe", "Launcher.exe"}, f.ProcessNames)
	require.Len(t, f.Warnings, 1)
	assert.Contains(t, f.Warnings[0], "profiles[0].profileTriggers[1]")
}

func TestCheckCommand_Invalid(t *testing.T) {
	good := writeCuration(t, "good.json", `{"profiles":[{"workshopId":1,"profileTriggers":[{"processName":"a.exe"}]}]}`)
	bad := writeCuration(t, "bad.json", `{"profiles":[{"workshopId":0,"profileTriggers":[{"processName":""}]}]}`)

	out, err := runCLI(t, "check", "-f", good, "-f", bad)
	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "workshopId must be positive")
	assert.Contains(t, out, "processName is required")
}

func TestCheckCommand_WarnsOnUnreportedWindowTitle(t *testing.T) {
	path := writeCuration(t, "curation.json",
		`{"profiles":[{"workshopId":42,"profileTriggers":[{"processName":"game.exe","windowTitle":"^Lobby"}]}]}`)

	out, err := runCLI(t, "check", "-f", path, "-o", "json")
	require.NoError(t, err)

	var result CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	require.Len(t, result.Files[0].Warnings, 1)
	assert.Contains(t, result.Files[0].Warnings[0], "does not report window titles")
}

func TestCheckCommand_RequiresFile(t *testing.T) {
	_, err := runCLI(t, "check")
	require.Error(t, err)
}

func TestOutputYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputResult(&buf, DetectionsResult{Total: 1, Detections: []DetectionInfo{{ProcessName: "a.exe", WorkshopID: 5}}}, "yaml"))
	assert.Contains(t, buf.String(), "processName: a.exe")
	assert.Contains(t, buf.String(), "total: 1")
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"Failed", "\033[31m"},
		{"Cancelled", "\033[33m"},
		{"succeeded", "\033[32m"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, statusColor(tt.status))
		})
	}
	assert.Empty(t, colorReset(""))
	assert.Equal(t, "\033[0m", colorReset("Failed"))
}
