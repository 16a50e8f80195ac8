package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSaveAndRead(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	relPath, err := s.Save(CategoryProforma, "invoice.pdf", []byte("pdf bytes"))
	require.NoError(t, err)

	now := time.Now()
	assert.Equal(t, filepath.Join("proformas", now.Format("2006"), now.Format("01")), filepath.Dir(relPath))
	assert.True(t, strings.HasSuffix(relPath, "_invoice.pdf"))

	content, err := s.Read(relPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), content)
}

func TestSaveSameFilenameDoesNotOverwrite(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	first, err := s.Save(CategoryProforma, "invoice.pdf", []byte("first upload"))
	require.NoError(t, err)
	second, err := s.Save(CategoryProforma, "invoice.pdf", []byte("second upload"))
	require.NoError(t, err)

	require.NotEqual(t, first, second)

	content, err := s.Read(first)
	require.NoError(t, err)
	assert.Equal(t, []byte("first upload"), content)

	content, err = s.Read(second)
	require.NoError(t, err)
	assert.Equal(t, []byte("second upload"), content)
}

func TestRemove(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	relPath, err := s.Save(CategoryReceipt, "receipt.pdf", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(relPath))
	_, err = s.Read(relPath)
	assert.Error(t, err)

	// Removing again is a no-op
	assert.NoError(t, s.Remove(relPath))
}

func TestSaveStripsClientDirectories(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	relPath, err := s.Save(CategoryReceipt, "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(relPath, "_passwd"))
	assert.NotContains(t, relPath, "..")
}

func TestAbsPathRejectsTraversal(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	_, err := s.AbsPath("../outside.txt")
	assert.Error(t, err)
}
