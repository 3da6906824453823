package internal

import (
	"os"
	"path/filepath"
	"testing"

	"qaforge/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaderWithDirs(t *testing.T) (*FileLoader, types.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := types.Config{
		SourceDir:  filepath.Join(root, "incoming"),
		ArchiveDir: filepath.Join(root, "archive"),
		BadDir:     filepath.Join(root, "bad"),
	}
	return NewFileLoader(cfg, nil, nil), cfg
}

func TestMoveToArchive(t *testing.T) {
	t.Run("Should move a processed file into the archive", func(t *testing.T) {
		l, cfg := loaderWithDirs(t)
		src := filepath.Join(cfg.SourceDir, "doc.txt")
		require.NoError(t, os.WriteFile(src, []byte("requirement text"), 0644))

		l.MoveToArchive(src, false)

		_, err := os.Stat(src)
		assert.True(t, os.IsNotExist(err), "source file must be gone after archiving")

		data, err := os.ReadFile(filepath.Join(cfg.ArchiveDir, "doc.txt"))
		require.NoError(t, err)
		assert.Equal(t, "requirement text", string(data))
	})

	t.Run("Should quarantine bad files separately", func(t *testing.T) {
		l, cfg := loaderWithDirs(t)
		src := filepath.Join(cfg.SourceDir, "broken.pdf")
		require.NoError(t, os.WriteFile(src, []byte("not a pdf"), 0644))

		l.MoveToArchive(src, true)

		_, err := os.Stat(filepath.Join(cfg.BadDir, "broken.pdf"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(cfg.ArchiveDir, "broken.pdf"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Should keep the source file when the copy fails", func(t *testing.T) {
		l, cfg := loaderWithDirs(t)
		src := filepath.Join(cfg.SourceDir, "doc.txt")
		require.NoError(t, os.WriteFile(src, []byte("requirement text"), 0644))

		// Replace the archive directory with a plain file so the copy target
		// cannot be created.
		require.NoError(t, os.Remove(cfg.ArchiveDir))
		require.NoError(t, os.WriteFile(cfg.ArchiveDir, nil, 0644))

		l.MoveToArchive(src, false)

		data, err := os.ReadFile(src)
		require.NoError(t, err, "source file must survive a failed archive copy")
		assert.Equal(t, "requirement text", string(data))
	})
}
