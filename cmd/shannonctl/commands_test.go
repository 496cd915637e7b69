package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shannon/internal/api"
	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers the message protocol with a sync that completes on
// the third status query.
func fakeServer(t *testing.T, taskID uuid.UUID) *httptest.Server {
	t.Helper()

	var polls atomic.Int32
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var msg api.MessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		w.Header().Set("Content-Type", "application/json")

		switch msg.Type {
		case api.MessageSyncGmailMemory:
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(api.SyncStartedResponse{Success: true, TaskID: taskID.String()})

		case api.MessageGetTaskStatus:
			resp := api.TaskResponse{
				ID:        taskID.String(),
				Type:      task.TypeGmailSync,
				Status:    string(task.StatusRunning),
				Progress:  40,
				CreatedAt: created,
				UpdatedAt: created,
			}
			if polls.Add(1) >= 3 {
				finished := created.Add(1500 * time.Millisecond)
				resp.Status = string(task.StatusCompleted)
				resp.Progress = 100
				resp.FinishedAt = &finished
				resp.Result = json.RawMessage(`{"episodicCount":3,"semanticCount":2,"proceduralCount":1,"emailsProcessed":3,"emailsSkipped":0}`)
			}
			_ = json.NewEncoder(w).Encode(api.TaskStatusResponse{Success: true, Task: resp})

		case api.MessageGetWorkspaceMemoryStats:
			_ = json.NewEncoder(w).Encode(api.StatsResponse{Success: true, Stats: &domain.WorkspaceStats{
				Episodic:         domain.EpisodicStats{Episodes: 3},
				TotalTokens:      42,
				GmailIntegration: domain.GmailIntegration{TotalEmailsProcessed: 3},
			}})

		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCommand(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSyncCommand_FollowsTask(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv := fakeServer(t, id)

	out, err := execute(t,
		"--server", srv.URL, "--token", "test-token", "--interval", "5ms",
		"sync", "--gmail-token", "ya29.test", "--max", "10")
	require.NoError(t, err)

	assert.Contains(t, out, "started sync task "+id.String())
	assert.Contains(t, out, "running    40%")
	assert.Contains(t, out, "completed 100%")
	assert.Contains(t, out, "elapsed:  1.5s")
	assert.Contains(t, out, "emails:   3 processed, 0 skipped")
	assert.Contains(t, out, "memories: 3 episodic, 2 semantic, 1 procedural")
}

func TestSyncCommand_Detach(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv := fakeServer(t, id)

	out, err := execute(t, "--server", srv.URL, "--token", "test-token",
		"sync", "--gmail-token", "ya29.test", "--detach")
	require.NoError(t, err)
	assert.Equal(t, "started sync task "+id.String()+"\n", out)
}

func TestSyncCommand_RequiresGmailToken(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "sync")
	assert.ErrorContains(t, err, "--gmail-token is required")
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv := fakeServer(t, id)

	out, err := execute(t, "--server", srv.URL, "--token", "test-token", "status", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, "status:   running")
	assert.Contains(t, out, "progress: 40%")

	_, err = execute(t, "status", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid task id")
}

func TestStatsCommand(t *testing.T) {
	t.Parallel()

	srv := fakeServer(t, uuid.New())

	out, err := execute(t, "--server", srv.URL, "--token", "test-token", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "episodes:        3")
	assert.Contains(t, out, "tokens:          42")
	assert.Contains(t, out, "last sync:       never")

	out, err = execute(t, "--server", srv.URL, "--token", "test-token", "stats", "--json")
	require.NoError(t, err)
	var stats domain.WorkspaceStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 42, stats.TotalTokens)
}

func TestRejectedToken(t *testing.T) {
	t.Parallel()

	srv := fakeServer(t, uuid.New())

	_, err := execute(t, "--server", srv.URL, "--token", "wrong", "stats")
	assert.ErrorContains(t, err, "unauthorized")
}
