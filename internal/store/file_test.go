package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

func sampleResult() *domain.AssignmentResult {
	return &domain.AssignmentResult{
		Parameters: domain.ResultParameters{NumTeams: 2, Repeat: 50, DataPath: "data/job/players.json", RunTime: 1.25},
		Teams: []domain.Team{
			{Label: "Team 1", TotalScore: 95, Members: []domain.TeamMember{{Name: "P1", Score: 50}, {Name: "P4", Score: 45}}},
			{Label: "Team 2", TotalScore: 95, Members: []domain.TeamMember{{Name: "P2", Score: 55}, {Name: "P3", Score: 40}}},
		},
	}
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx := context.Background()

	ref, err := s.Save(ctx, "job", sampleResult())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "job"), filepath.Dir(ref))
	require.True(t, strings.HasPrefix(filepath.Base(ref), "result-"))
	require.Equal(t, ".json", filepath.Ext(ref))

	loaded, err := s.Load(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, sampleResult(), loaded)
}

func TestFileStoreNeverOverwrites(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()

	first, err := s.Save(ctx, "job", sampleResult())
	require.NoError(t, err)

	changed := sampleResult()
	changed.Parameters.SwapInfo = "P1,P2"
	second, err := s.Save(ctx, "job", changed)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// 新文件名按时间递增
	require.Less(t, filepath.Base(first), filepath.Base(second))

	res, err := s.Load(ctx, first)
	require.NoError(t, err)
	require.Empty(t, res.Parameters.SwapInfo)

	entries, err := os.ReadDir(filepath.Dir(first))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestFileStoreRejectsBadJobID(t *testing.T) {
	s := NewFileStore(t.TempDir())

	for _, id := range []string{"", ".", "..", "../x", `a\b`} {
		_, err := s.Save(context.Background(), id, sampleResult())
		require.Error(t, err, id)
	}
}

func TestFileStoreLoadErrors(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	_, err := s.Load(context.Background(), filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))
	_, err = s.Load(context.Background(), broken)
	require.Error(t, err)
}

func TestFileStoreHonoursContext(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, "job", sampleResult())
	require.ErrorIs(t, err, context.Canceled)
}
