package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSQLiteStore(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func generateTestID(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}

func TestAuditStore_Append(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	entry := &AuditEntry{
		Actor:      "agent_A",
		Action:     AuditAdmitted,
		TargetType: "request",
		TargetID:   "req-456",
		Detail:     map[string]any{"path": "currentState.workloads.nginx"},
	}

	require.NoError(t, s.AppendAuditLog(ctx, entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.Timestamp.IsZero())
}

func TestAuditStore_List_NoFilter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, action := range []AuditAction{AuditAdmitted, AuditDenied, AuditWorkloadTransitioned} {
		entry := &AuditEntry{
			Actor:      "agent_A",
			Action:     action,
			TargetType: "request",
			TargetID:   generateTestID("target", i),
			Timestamp:  time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.AppendAuditLog(ctx, entry))
	}

	entries, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, AuditWorkloadTransitioned, entries[0].Action) // newest first
}

func TestAuditStore_List_BySince(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	baseTime := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		entry := &AuditEntry{
			Actor:      "agent_A",
			Action:     AuditAdmitted,
			TargetType: "request",
			TargetID:   generateTestID("target", i),
			Timestamp:  baseTime.Add(time.Duration(i) * 10 * time.Minute),
		}
		require.NoError(t, s.AppendAuditLog(ctx, entry))
	}

	since := baseTime.Add(15 * time.Minute)
	entries, err := s.ListAuditLog(ctx, AuditFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestAuditStore_List_ByActor(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i, actor := range []string{"agent_A", "agent_B", "agent_A"} {
		entry := &AuditEntry{
			Actor:      actor,
			Action:     AuditAgentConnected,
			TargetType: "agent_session",
			TargetID:   generateTestID("target", i),
		}
		require.NoError(t, s.AppendAuditLog(ctx, entry))
	}

	actor := "agent_A"
	entries, err := s.ListAuditLog(ctx, AuditFilter{Actor: &actor})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, "agent_A", e.Actor)
	}
}

func TestAuditStore_List_ByAction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	actions := []AuditAction{AuditAdmitted, AuditDenied, AuditAdmitted}
	for i, action := range actions {
		entry := &AuditEntry{
			Actor:      "agent_A",
			Action:     action,
			TargetType: "request",
			TargetID:   generateTestID("target", i),
		}
		require.NoError(t, s.AppendAuditLog(ctx, entry))
	}

	action := AuditAdmitted
	entries, err := s.ListAuditLog(ctx, AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, AuditAdmitted, e.Action)
	}
}

func TestAuditStore_List_ByTarget(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	targets := []struct {
		targetType string
		targetID   string
	}{
		{"workload", "nginx"},
		{"workload", "hello1"},
		{"workload", "nginx"},
	}
	for _, tg := range targets {
		entry := &AuditEntry{
			Actor:      "agent_A",
			Action:     AuditWorkloadTransitioned,
			TargetType: tg.targetType,
			TargetID:   tg.targetID,
		}
		require.NoError(t, s.AppendAuditLog(ctx, entry))
	}

	targetType, targetID := "workload", "nginx"
	results, err := s.ListAuditLog(ctx, AuditFilter{TargetType: &targetType, TargetID: &targetID})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestAuditStore_List_Pagination(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := &AuditEntry{
			Actor:      "agent_A",
			Action:     AuditAdmitted,
			TargetType: "request",
			TargetID:   generateTestID("target", i),
		}
		require.NoError(t, s.AppendAuditLog(ctx, entry))
	}

	entries, err := s.ListAuditLog(ctx, AuditFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestAuditStore_Append_DeniedCarriesMessage(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	entry := &AuditEntry{
		Actor:      "cli-session-1",
		Action:     AuditDenied,
		TargetType: "request",
		TargetID:   "req-789",
		Detail:     map[string]any{"message": "permission denied for currentState.workloads.nginx.runtime"},
	}
	require.NoError(t, s.AppendAuditLog(ctx, entry))

	entries, err := s.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "permission denied for currentState.workloads.nginx.runtime", entries[0].Detail["message"])
}
