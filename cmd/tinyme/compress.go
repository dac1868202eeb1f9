package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tinyme-go/internal/compressor"
	"tinyme-go/internal/config"
	"tinyme-go/internal/fileaccess"
	"tinyme-go/internal/jobs"
	"tinyme-go/internal/options"
	"tinyme-go/internal/preset"
	"tinyme-go/internal/statistics"
	"tinyme-go/internal/tui"
)

var (
	outputDir    string
	presetName   string
	quality      int
	maxWidth     int
	maxHeight    int
	formatName   string
	keepAspect   bool
	noTUI        bool
	oneByOne     bool
	keepMetadata bool
)

// compressCmd compresses files and directories.
var compressCmd = &cobra.Command{
	Use:   "compress <path>...",
	Short: "Compress images",
	Long: `Compress the given images. Directories are searched recursively for
.jpg, .jpeg, .png and .webp files.

Options are resolved in order: config defaults, --preset, then any of
--quality, --max-width, --max-height, --format or --keep-aspect that were
given explicitly. Setting any of those after a preset detaches the preset.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd, args)
	},
}

func init() {
	compressCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (created if missing)")
	compressCmd.Flags().BoolVar(&noTUI, "no-tui", false, "log progress instead of showing the live view")
	compressCmd.Flags().BoolVar(&oneByOne, "single", false, "submit files one at a time instead of as one batch")
	compressCmd.Flags().BoolVar(&keepMetadata, "preserve-metadata", true, "copy EXIF tags onto JPEG outputs")
	addOptionFlags(compressCmd.Flags())
}

// addOptionFlags registers the compression option flags on fs.
func addOptionFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&presetName, "preset", "p", "", "preset id (see 'tinyme presets')")
	fs.IntVarP(&quality, "quality", "q", 80, "quality 1-100")
	fs.IntVar(&maxWidth, "max-width", 0, "maximum width in pixels (0 = none)")
	fs.IntVar(&maxHeight, "max-height", 0, "maximum height in pixels (0 = none)")
	fs.StringVarP(&formatName, "format", "f", "", "output format: jpg, png or webp (default: keep source format)")
	fs.BoolVar(&keepAspect, "keep-aspect", true, "keep the aspect ratio when resizing")
}

// resolveOptions merges config defaults, the preset flag and explicitly set
// option flags.
func resolveOptions(cfg *config.Config, fs *pflag.FlagSet) (options.Options, error) {
	base, err := cfg.BaseOptions()
	if err != nil {
		return options.Options{}, err
	}

	var overrides []options.Override
	if fs.Changed("quality") {
		overrides = append(overrides, options.Quality(quality))
	}
	if fs.Changed("max-width") {
		overrides = append(overrides, options.MaxWidth(maxWidth))
	}
	if fs.Changed("max-height") {
		overrides = append(overrides, options.MaxHeight(maxHeight))
	}
	if fs.Changed("format") {
		overrides = append(overrides, options.WithFormat(options.Format(formatName)))
	}
	if fs.Changed("keep-aspect") {
		overrides = append(overrides, options.MaintainAspectRatio(keepAspect))
	}

	return options.Resolve(base, preset.ID(presetName), overrides...)
}

func runCompress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	useTUI := !noTUI && !quiet
	log := setupLogger(cfg, !useTUI)

	opts, err := resolveOptions(cfg, cmd.Flags())
	if err != nil {
		return err
	}

	dir := outputDir
	if dir == "" {
		dir = cfg.OutputDirectory
	}
	if dir == "" {
		return fmt.Errorf("%w: use --output or set output_directory", jobs.ErrNoOutputDirectory)
	}
	if dir, err = fileaccess.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := fileaccess.NewLocal(cfg.SupportedExtensions)
	paths, err := files.CollectImages(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no supported images found")
	}

	backendCfg := cfg.BackendSettings()
	if cmd.Flags().Changed("preserve-metadata") {
		backendCfg.PreserveMetadata = keepMetadata
	}
	backend := compressor.NewImagingBackend(backendCfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Previews are kept for the web interface only.
	session := jobs.NewSession(backend, log)
	session.Start(ctx)
	defer session.Close()

	for _, path := range paths {
		if _, err := session.Registry.AdmitFile(files, path); err != nil {
			log.WithError(err).WithField("file", path).Warn("Skipping file")
		}
	}

	log.WithFields(logrus.Fields{
		"files":   session.Registry.Len(),
		"options": opts.String(),
		"output":  dir,
	}).Info("Starting compression")

	run := func() error {
		return compressAll(ctx, session, opts, dir)
	}
	if useTUI {
		err = runWithTUI(session, cancel, run)
	} else {
		unsubscribe := session.Registry.Subscribe(logTerminal(log))
		err = run()
		unsubscribe()
	}
	if err != nil {
		return err
	}

	summary := statistics.Compute(session.Registry.Snapshot())
	log.WithField("output", dir).Info(summary.String())
	if !quiet {
		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.SummaryRows(summary)))
		if summary.Failed > 0 {
			fmt.Fprintln(os.Stdout, summary.ErrorSummary())
		}
		fmt.Fprintf(os.Stdout, "Compressed files written to: %s\n", dir)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Total)
	}
	return nil
}

// compressAll submits every pending job, as one batch or one at a time.
func compressAll(ctx context.Context, session *jobs.Session, opts options.Options, dir string) error {
	var ids []string
	for _, job := range session.Registry.Snapshot() {
		if job.Status == jobs.StatusPending {
			ids = append(ids, job.ID)
		}
	}

	if !oneByOne {
		_, err := session.Orchestrator.CompressBatch(ctx, ids, opts, dir)
		return err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Failures recorded on the job are reported in the summary.
		job, err := session.Orchestrator.CompressOne(ctx, id, opts, dir)
		if err != nil && job.Status != jobs.StatusError {
			return err
		}
	}
	return nil
}

// runWithTUI shows the live view while run executes.
func runWithTUI(session *jobs.Session, cancel context.CancelFunc, run func() error) error {
	feed := tui.NewFeed(session.Registry, 256)
	model := tui.NewModel(session.Registry.Snapshot(), feed.Events(), cancel)
	program := tea.NewProgram(model)

	uiDone := make(chan struct{})
	go func() {
		_, _ = program.Run()
		close(uiDone)
	}()

	err := run()
	feed.Close()
	<-uiDone
	return err
}

// logTerminal logs each job that reaches done or error.
func logTerminal(log *logrus.Logger) jobs.Listener {
	return func(ev jobs.Event) {
		job := ev.Job
		entry := log.WithFields(logrus.Fields{"job_id": job.ID, "file": job.SourcePath})
		switch job.Status {
		case jobs.StatusDone:
			entry.WithFields(logrus.Fields{
				"output":          job.OutputPath,
				"original_size":   job.OriginalSize,
				"compressed_size": job.CompressedSize,
			}).Info("Compressed")
		case jobs.StatusError:
			entry.WithField("error", job.ErrorDetail).Error("Compression failed")
		}
	}
}
