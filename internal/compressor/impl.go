package compressor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"tinyme-go/internal/dimension"
	"tinyme-go/internal/logger"
	"tinyme-go/internal/options"
)

// Config tunes the ImagingBackend.
type Config struct {
	Workers          int
	FFmpegPath       string
	PreserveMetadata bool
	ProgressBuffer   int
}

// ImagingBackend is the default Backend. JPEG and PNG are encoded in process,
// WebP through ffmpeg.
type ImagingBackend struct {
	cfg      Config
	log      *logrus.Logger
	progress chan ProgressEvent
}

// NewImagingBackend creates an ImagingBackend.
func NewImagingBackend(cfg Config, log *logrus.Logger) *ImagingBackend {
	if cfg.Workers <= 0 {
		cfg.Workers = max(runtime.NumCPU(), 2)
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.ProgressBuffer <= 0 {
		cfg.ProgressBuffer = 256
	}
	if log == nil {
		log = logrus.New()
	}
	return &ImagingBackend{
		cfg:      cfg,
		log:      log,
		progress: make(chan ProgressEvent, cfg.ProgressBuffer),
	}
}

// Progress implements Backend.
func (b *ImagingBackend) Progress() <-chan ProgressEvent {
	return b.progress
}

// CompressSingle implements Backend.
func (b *ImagingBackend) CompressSingle(ctx context.Context, sourcePath, outputDir string, opts options.Options) (Result, error) {
	if err := checkOutputDir(outputDir); err != nil {
		return Result{}, &BackendFailure{Path: sourcePath, Message: "output directory unavailable", Err: err}
	}
	res := b.compressOne(ctx, sourcePath, outputDir, opts)
	return res, res.Err
}

// CompressBatch implements Backend. Files are spread over a worker pool and
// results are placed back at their input index.
func (b *ImagingBackend) CompressBatch(ctx context.Context, sourcePaths []string, outputDir string, opts options.Options) ([]Result, error) {
	if len(sourcePaths) == 0 {
		return nil, nil
	}
	if err := checkOutputDir(outputDir); err != nil {
		return nil, fmt.Errorf("output directory unavailable: %w", err)
	}

	type job struct {
		index int
		path  string
	}

	numWorkers := min(b.cfg.Workers, len(sourcePaths))
	jobs := make(chan job, len(sourcePaths))
	resArr := make([]Result, len(sourcePaths))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					resArr[j.index] = failed(Result{SourcePath: j.path, StartedAt: time.Now()}, "cancelled", err)
					continue
				}
				resArr[j.index] = b.compressOne(ctx, j.path, outputDir, opts)
			}
		}()
	}

	for i, path := range sourcePaths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)
	wg.Wait()

	return resArr, nil
}

// compressOne decodes, resizes and re-encodes a single file.
func (b *ImagingBackend) compressOne(ctx context.Context, sourcePath, outputDir string, opts options.Options) Result {
	log := logger.WithFileOperation(b.log, sourcePath, "compress")
	res := Result{SourcePath: sourcePath, StartedAt: time.Now()}
	b.emit(sourcePath, 0)

	info, err := os.Stat(sourcePath)
	if err != nil {
		return b.fail(log, res, "stat error", err)
	}
	if info.IsDir() {
		return b.fail(log, res, "source is a directory", nil)
	}
	res.OriginalSize = info.Size()

	format, err := targetFormat(sourcePath, opts.Format)
	if err != nil {
		return b.fail(log, res, "format error", err)
	}

	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return b.fail(log, res, "open error", err)
	}
	b.emit(sourcePath, 25)

	bounds := img.Bounds()
	plan := dimension.Compute(
		dimension.Size{Width: bounds.Dx(), Height: bounds.Dy()},
		opts.MaxWidth, opts.MaxHeight, opts.MaintainAspectRatio,
	)
	if plan.Resize {
		img = imaging.Resize(img, plan.Width, plan.Height, imaging.Lanczos)
	}
	res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()
	b.emit(sourcePath, 50)

	outPath, err := reserveOutput(outputDir, sourcePath, opts.Format)
	if err != nil {
		return b.fail(log, res, "reserve output error", err)
	}
	tmpPath := outPath + ".tmp"
	cleanup := func() {
		_ = os.Remove(tmpPath)
		_ = os.Remove(outPath)
	}

	if err := b.encode(ctx, img, format, opts.Quality, tmpPath); err != nil {
		cleanup()
		return b.fail(log, res, "encode error", err)
	}
	b.emit(sourcePath, 80)

	if b.cfg.PreserveMetadata && format == options.FormatJPG && isJPEG(sourcePath) {
		if err := copyMetadata(sourcePath, tmpPath); err != nil {
			log.WithError(err).Warn("metadata not copied")
		}
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		cleanup()
		return b.fail(log, res, "rename error", err)
	}
	res.OutputPath = outPath

	outInfo, err := os.Stat(outPath)
	if err != nil {
		return b.fail(log, res, "stat compressed error", err)
	}
	res.CompressedSize = outInfo.Size()
	res.FinishedAt = time.Now()
	b.emit(sourcePath, 100)

	log.WithFields(logrus.Fields{
		"output":          outPath,
		"original_size":   res.OriginalSize,
		"compressed_size": res.CompressedSize,
		"width":           res.Width,
		"height":          res.Height,
		"duration":        res.FinishedAt.Sub(res.StartedAt).String(),
	}).Debug("image compressed")
	return res
}

// encode writes img to dst in the given format.
func (b *ImagingBackend) encode(ctx context.Context, img image.Image, format options.Format, quality int, dst string) error {
	var buf bytes.Buffer
	switch format {
	case options.FormatJPG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return err
		}
	case options.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(pngLevel(quality))); err != nil {
			return err
		}
	case options.FormatWebP:
		return b.encodeWebP(ctx, img, dst, quality)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	return os.WriteFile(dst, buf.Bytes(), 0o644)
}

// emit publishes a progress event without blocking the worker.
func (b *ImagingBackend) emit(path string, percent int) {
	select {
	case b.progress <- ProgressEvent{SourcePath: path, Percent: percent}:
	default:
	}
}

func (b *ImagingBackend) fail(log *logrus.Entry, res Result, msg string, err error) Result {
	res = failed(res, msg, err)
	log.WithError(err).Warnf("compression failed: %s", msg)
	return res
}

func failed(res Result, msg string, err error) Result {
	res.Err = &BackendFailure{Path: res.SourcePath, Message: msg, Err: err}
	res.FinishedAt = time.Now()
	return res
}

// pngLevel maps quality onto zlib effort: low quality asks for the smallest file.
func pngLevel(quality int) png.CompressionLevel {
	switch {
	case quality < 50:
		return png.BestCompression
	case quality < 80:
		return png.DefaultCompression
	default:
		return png.BestSpeed
	}
}

func isJPEG(path string) bool {
	f, err := options.ParseFormat(filepath.Ext(path))
	return err == nil && f == options.FormatJPG
}

func checkOutputDir(dir string) error {
	if dir == "" {
		return errors.New("output directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
