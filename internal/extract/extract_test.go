package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractPlainText(t *testing.T) {
	path := writeTemp(t, "notes.txt", "hello world")

	res, err := NewTextExtractor().Extract(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", res.DisplayFilename)
	assert.Equal(t, "hello world", res.Text)
	assert.False(t, res.OCRUsed)
	assert.Equal(t, 1, res.PageCount)
}

func TestExtractMarkdown(t *testing.T) {
	path := writeTemp(t, "readme.md", "# Title\n\nbody")

	res, err := NewTextExtractor().Extract(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nbody", res.Text)
}

func TestExtractUnsupportedType(t *testing.T) {
	path := writeTemp(t, "image.png", "not text")

	_, err := NewTextExtractor().Extract(path, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := NewTextExtractor().Extract(filepath.Join(t.TempDir(), "gone.txt"), Options{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedType)
}
