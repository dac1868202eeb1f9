package fileaccess

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyme-go/internal/dimension"
)

func touch(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.JPG"), []byte("x"))
	touch(t, filepath.Join(dir, "a.png"), []byte("x"))
	touch(t, filepath.Join(dir, "notes.txt"), []byte("x"))
	touch(t, filepath.Join(dir, "nested", "c.webp"), []byte("x"))
	touch(t, filepath.Join(dir, ".hidden", "d.jpg"), []byte("x"))

	l := NewLocal(nil)
	got, err := l.CollectImages([]string{dir, filepath.Join(dir, "a.png")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "nested", "c.webp"),
	}, got)
}

func TestCollectImagesMissingPath(t *testing.T) {
	_, err := NewLocal(nil).CollectImages([]string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestNewLocalNormalisesExtensions(t *testing.T) {
	l := NewLocal([]string{"PNG"})
	assert.True(t, l.Supported("/x/a.png"))
	assert.False(t, l.Supported("/x/a.jpg"))
}

func TestStatSizeAndReadBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	touch(t, path, []byte("hello"))
	l := NewLocal(nil)

	size, err := l.StatSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	data, err := l.ReadBytes(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = l.StatSize(dir)
	assert.Error(t, err)
}

func TestEnsureDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "x", "y")
	abs, err := EnsureDir(target)
	require.NoError(t, err)
	info, err := os.Stat(abs)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = EnsureDir("")
	assert.Error(t, err)
}

func TestProbePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 40, 30))))
	require.NoError(t, f.Close())

	p := NewProber()
	info, err := p.Probe(path)
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, dimension.Size{Width: 40, Height: 30}, info.Stored)
	assert.Equal(t, info.Stored, info.Display)
	assert.Equal(t, 1, info.Orientation)

	again, err := p.Probe(path)
	require.NoError(t, err)
	assert.Equal(t, info, again)
}

func TestProbeRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	touch(t, path, []byte("not an image"))
	_, err := NewProber().Probe(path)
	assert.Error(t, err)
}
