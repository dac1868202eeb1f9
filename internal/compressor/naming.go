package compressor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tinyme-go/internal/options"
)

const maxNameAttempts = 10000

// targetFormat picks the encoding for sourcePath: the requested format, or the
// source's own format when none was requested.
func targetFormat(sourcePath string, requested options.Format) (options.Format, error) {
	if requested != options.FormatPreserve {
		return requested, nil
	}
	f, err := options.ParseFormat(filepath.Ext(sourcePath))
	if err != nil || f == options.FormatPreserve {
		return "", fmt.Errorf("unsupported source format %q", filepath.Ext(sourcePath))
	}
	return f, nil
}

// reserveOutput atomically creates an empty placeholder for the output file so
// concurrent workers never pick the same name. An existing name gets a
// numeric suffix: photo.jpg, photo_1.jpg, photo_2.jpg, ...
func reserveOutput(dir, sourcePath string, requested options.Format) (string, error) {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if requested != options.FormatPreserve {
		ext = "." + string(requested)
	}

	for i := 0; i < maxNameAttempts; i++ {
		name := stem + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return path, f.Close()
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free output name for %s in %s", base, dir)
}
