package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"tinyme-go/internal/compressor"
	"tinyme-go/internal/options"
)

// fakeBackend returns canned results without touching pixels.
type fakeBackend struct {
	mu         sync.Mutex
	progress   chan compressor.ProgressEvent
	sizes      map[string]int64
	failPaths  map[string]bool
	batchErr   error
	truncateTo int
	onCall     func(paths []string)
	singles    []string
	batches    [][]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		progress:   make(chan compressor.ProgressEvent, 64),
		sizes:      map[string]int64{},
		failPaths:  map[string]bool{},
		truncateTo: -1,
	}
}

func (f *fakeBackend) Progress() <-chan compressor.ProgressEvent {
	return f.progress
}

func (f *fakeBackend) result(i int, path, outputDir string) compressor.Result {
	if f.failPaths[path] {
		return compressor.Result{
			SourcePath: path,
			Err:        &compressor.BackendFailure{Path: path, Message: "encode error", Err: errors.New("boom")},
		}
	}
	size := f.sizes[path]
	if size == 0 {
		size = 40
	}
	return compressor.Result{
		SourcePath:     path,
		OutputPath:     filepath.Join(outputDir, fmt.Sprintf("%d_%s", i, filepath.Base(path))),
		CompressedSize: size,
		Width:          10,
		Height:         5,
	}
}

func (f *fakeBackend) CompressSingle(_ context.Context, path, outputDir string, _ options.Options) (compressor.Result, error) {
	f.mu.Lock()
	f.singles = append(f.singles, path)
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook([]string{path})
	}
	res := f.result(0, path, outputDir)
	return res, res.Err
}

func (f *fakeBackend) CompressBatch(_ context.Context, paths []string, outputDir string, _ options.Options) ([]compressor.Result, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), paths...))
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(paths)
	}
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]compressor.Result, 0, len(paths))
	for i, p := range paths {
		out = append(out, f.result(i, p, outputDir))
	}
	if f.truncateTo >= 0 && f.truncateTo < len(out) {
		out = out[:f.truncateTo]
	}
	return out, nil
}

// fakeReader serves previews and fails for chosen output paths.
type fakeReader struct {
	fail map[string]bool
}

func (r fakeReader) ReadBytes(path string) ([]byte, error) {
	if r.fail[path] {
		return nil, errors.New("read failed")
	}
	return []byte("preview:" + path), nil
}

// fakeStater returns fixed sizes.
type fakeStater map[string]int64

func (s fakeStater) StatSize(path string) (int64, error) {
	size, ok := s[path]
	if !ok {
		return 0, errors.New("no such file")
	}
	return size, nil
}
