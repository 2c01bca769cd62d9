package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"electoral-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "db"), filepath.Join(dir, "export"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func artifact(unit int) domain.Artifact {
	return domain.Artifact{
		UnitID:          unit,
		ElectionID:      3,
		Records:         [][]string{{"1", "Candidate A", "PL"}, {"2", "Candidate B", "PC"}},
		PackageVersion:  "v2024.1",
		SourceTimestamp: 1700000000000,
		GeneratedAt:     time.Date(2026, 3, 8, 7, 0, 0, 0, time.UTC),
	}
}

func TestPersistAndLoad(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Persist(ctx, 17, artifact(17)))

	got, err := s.Load(3, 17)
	require.NoError(t, err)
	assert.Equal(t, artifact(17), got)

	exported, err := s.LoadExport(3, 17)
	require.NoError(t, err)
	assert.Equal(t, artifact(17), exported)

	_, err = s.Load(3, 18)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.LoadExport(4, 17)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExportLayout(t *testing.T) {
	s, dir := openStore(t)
	require.NoError(t, s.Persist(context.Background(), 5, artifact(5)))

	path := filepath.Join(dir, "export", "election_3", "mesa_5.yaml")
	assert.Equal(t, path, s.ExportPath(3, 5))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "packageVersion: v2024.1"))
	assert.True(t, strings.Contains(string(b), "unitId: 5"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestUnits(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, u := range []int{10, 2, 33, 4} {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			assert.NoError(t, s.Persist(ctx, u, artifact(u)))
		}(u)
	}
	wg.Wait()

	other := artifact(1)
	other.ElectionID = 30
	require.NoError(t, s.Persist(ctx, 1, other))

	ids, err := s.Units(3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 10, 33}, ids)

	ids, err = s.Units(30)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)
}

func TestPersist_Overwrites(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	a := artifact(1)
	require.NoError(t, s.Persist(ctx, 1, a))
	a.PackageVersion = "v2024.2"
	require.NoError(t, s.Persist(ctx, 1, a))

	got, err := s.Load(3, 1)
	require.NoError(t, err)
	assert.Equal(t, "v2024.2", got.PackageVersion)
}

func TestPersist_WithoutExport(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"), "", nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Persist(context.Background(), 1, artifact(1)))
	_, err = s.Load(3, 1)
	assert.NoError(t, err)
}

func TestPersist_CancelledContext(t *testing.T) {
	s, _ := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Persist(ctx, 1, artifact(1)), context.Canceled)
}
