package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineFileFullPath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "previous-run.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0644))

	tests := []struct {
		name       string
		path       string
		wantFile   string
		wantFolder string
	}{
		{name: "existing folder receives the run file", path: dir, wantFile: filepath.Join(dir, "findingsync-r1.json"), wantFolder: dir},
		{name: "existing report is overwritten", path: existing, wantFile: existing, wantFolder: dir},
		{name: "missing folder", path: filepath.Join(dir, "reports"), wantFile: filepath.Join(dir, "reports", "findingsync-r1.json"), wantFolder: filepath.Join(dir, "reports")},
		{name: "missing file with extension", path: filepath.Join(dir, "nightly", "sync.html"), wantFile: filepath.Join(dir, "nightly", "sync.html"), wantFolder: filepath.Join(dir, "nightly")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, folder, err := DetermineFileFullPath(tt.path, "findingsync-r1.json")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, file)
			assert.Equal(t, tt.wantFolder, folder)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/reports")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "reports"), got)

	got, err = ExpandPath("/tmp/out.json")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.json", got)
}

func TestWriteOutput(t *testing.T) {
	dir := t.TempDir()
	write := func(w io.Writer) error {
		_, err := fmt.Fprint(w, `{"ok":true}`)
		return err
	}

	got, err := WriteOutput(filepath.Join(dir, "reports"), "sync.json", write)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "sync.json"), got)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	explicit := filepath.Join(dir, "out.json")
	got, err = WriteOutput(explicit, "ignored.json", write)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	_, err = WriteOutput(filepath.Join(dir, "fail.json"), "", func(io.Writer) error { return fmt.Errorf("boom") })
	assert.ErrorContains(t, err, "boom")
}
