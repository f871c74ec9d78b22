package models

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File is a local file handed to the upload pipeline.
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// LocalFile is a File backed by a path on disk.
type LocalFile struct {
	Path string
	size int64
}

// NewLocalFile stats path and returns a File for it.
func NewLocalFile(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "upload", Path: path, Err: os.ErrInvalid}
	}
	return &LocalFile{Path: path, size: info.Size()}, nil
}

func (f *LocalFile) Name() string { return filepath.Base(f.Path) }
func (f *LocalFile) Size() int64  { return f.size }

func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// MemFile is an in-memory File, used for generated content and tests.
type MemFile struct {
	FileName string
	Data     []byte
}

func (f *MemFile) Name() string { return f.FileName }
func (f *MemFile) Size() int64  { return int64(len(f.Data)) }

func (f *MemFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
