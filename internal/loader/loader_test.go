package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hochfrequenz/process-eta/internal/domain"
)

const tradeYAML = `processes:
  - id: p1
    owner: user1
    type: TRADE
    priority: high
    status: completed
    start: 2025-05-01T10:00:00Z
    end: 2025-05-01T10:05:00Z
    steps: [INIT, VERIFY, EXECUTE]
    retries: 2
    automated: true
    metadata:
      desk: fx
  - owner: user2
    type: TRANSFER
    priority: Medium
    status: in_progress
    start: 2025-05-01T11:00:00Z
    duration: 90s
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	processes, err := Parse([]byte(tradeYAML))
	require.NoError(t, err)
	require.Len(t, processes, 2)

	p1 := processes[0]
	assert.Equal(t, "p1", p1.ID)
	assert.Equal(t, "user1", p1.OwnerID)
	assert.Equal(t, domain.PriorityHigh, p1.Priority)
	assert.Equal(t, domain.StatusCompleted, p1.Status)
	assert.Equal(t, []string{"INIT", "VERIFY", "EXECUTE"}, p1.StepsCompleted)
	assert.Equal(t, 2, p1.Retries)
	assert.True(t, p1.Automated)
	assert.Equal(t, "fx", p1.Metadata["desk"])
	assert.Equal(t, 5*time.Minute, p1.Duration())

	p2 := processes[1]
	_, err = uuid.Parse(p2.ID)
	assert.NoError(t, err, "missing id should be replaced by a UUID")
	assert.Equal(t, domain.PriorityMedium, p2.Priority)
	assert.Equal(t, domain.StatusInProgress, p2.Status)
	assert.Equal(t, 90*time.Second, p2.Duration())
	assert.NotNil(t, p2.Metadata)
}

func TestParseKeepsUnknownPriority(t *testing.T) {
	processes, err := Parse([]byte(`processes:
  - id: x
    priority: urgent
    status: completed
    start: 2025-05-01T10:00:00Z
    end: 2025-05-01T10:00:10Z
`))
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, domain.Priority("URGENT"), processes[0].Priority)
	assert.False(t, processes[0].Priority.Valid())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "processes: [\n"},
		{"missing start", "processes:\n  - id: a\n"},
		{"bad start", "processes:\n  - id: a\n    start: yesterday\n"},
		{"bad end", "processes:\n  - id: a\n    start: 2025-05-01T10:00:00Z\n    end: later\n"},
		{"bad duration", "processes:\n  - id: a\n    start: 2025-05-01T10:00:00Z\n    duration: forever\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	processes, err := Parse([]byte("processes: []\n"))
	require.NoError(t, err)
	assert.Empty(t, processes)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yml", `processes:
  - id: b1
    start: 2025-05-01T10:00:00Z
    duration: 1m
`)
	writeFile(t, dir, "a.yaml", `processes:
  - id: a1
    start: 2025-05-01T10:00:00Z
    duration: 1m
  - id: a2
    start: 2025-05-01T10:00:00Z
    duration: 2m
`)
	writeFile(t, dir, "notes.txt", "not a record file")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	processes, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)

	var ids []string
	for _, p := range processes {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a1", "a2", "b1"}, ids)
}

func TestLoadDirReportsFile(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "processes:\n  - id: a\n")

	_, err := LoadDir(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadFilesCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", "processes: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadFiles(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRecordFile(t *testing.T) {
	assert.True(t, IsRecordFile("a.yaml"))
	assert.True(t, IsRecordFile("a.YML"))
	assert.False(t, IsRecordFile("a.json"))
	assert.False(t, IsRecordFile("yaml"))
}

const anonymousYAML = `processes:
  - type: AUDIT
    status: completed
    start: 2025-05-01T10:00:00Z
    duration: 1m
  - type: AUDIT
    status: completed
    start: 2025-05-01T10:00:00Z
    duration: 1m
`

func TestParseDerivesStableIDs(t *testing.T) {
	first, err := Parse([]byte(anonymousYAML))
	require.NoError(t, err)
	second, err := Parse([]byte(anonymousYAML))
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)
	assert.NotEqual(t, first[0].ID, first[1].ID, "identical records at different positions need distinct ids")
}

func TestParseFileDerivesIDsFromPath(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", anonymousYAML)
	writeFile(t, dir, "b.yaml", anonymousYAML)

	first, err := ParseFile(a)
	require.NoError(t, err)
	assert.Equal(t, RecordID(a, 0), first[0].ID)

	t.Chdir(dir)
	relative, err := ParseFile("a.yaml")
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, relative[0].ID, "relative and absolute paths name the same file")

	other, err := ParseFile("b.yaml")
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, other[0].ID)
}

func TestLoadFilesRepeatedImportKeepsIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "records.yaml", anonymousYAML)

	ids := map[string]bool{}
	for range 3 {
		processes, err := LoadFiles(context.Background(), []string{path})
		require.NoError(t, err)
		for _, p := range processes {
			ids[p.ID] = true
		}
	}
	assert.Len(t, ids, 2)
}
