package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tinyme-go/internal/dimension"
	"tinyme-go/internal/fileaccess"
	"tinyme-go/internal/preset"
	"tinyme-go/internal/statistics"
)

// presetsCmd lists the preset catalog.
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List compression presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tQUALITY\tMAX SIZE\tFORMAT\tDESCRIPTION")
		for _, p := range preset.All() {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", p.ID, p.Quality, bounds(p.MaxWidth, p.MaxHeight), p.Format, p.Description)
		}
		return w.Flush()
	},
}

// inspectCmd shows what compress would do with one file.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show image dimensions and the planned output size",
	Long: `Reads the image header and EXIF orientation of a file and prints the
output size that the given options would produce. Accepts the same option
flags as compress.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, args[0])
	},
}

func init() {
	addOptionFlags(inspectCmd.Flags())
}

func runInspect(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := resolveOptions(cfg, cmd.Flags())
	if err != nil {
		return err
	}

	info, err := fileaccess.NewProber().Probe(path)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	plan := dimension.Compute(info.Display, opts.MaxWidth, opts.MaxHeight, opts.MaintainAspectRatio)

	fmt.Printf("File:        %s\n", info.Path)
	fmt.Printf("Format:      %s\n", info.Format)
	fmt.Printf("Size:        %s\n", statistics.FormatBytes(info.Size))
	fmt.Printf("Stored:      %dx%d\n", info.Stored.Width, info.Stored.Height)
	if info.Orientation != 1 {
		fmt.Printf("Orientation: %d (displayed %dx%d)\n", info.Orientation, info.Display.Width, info.Display.Height)
	}
	fmt.Printf("Options:     %s\n", opts)
	if plan.Resize {
		fmt.Printf("Output:      %dx%d\n", plan.Width, plan.Height)
	} else {
		fmt.Println("Output:      unchanged dimensions")
	}
	return nil
}

func bounds(w, h int) string {
	if w == 0 && h == 0 {
		return "original"
	}
	dim := func(v int) string {
		if v == 0 {
			return "*"
		}
		return fmt.Sprintf("%d", v)
	}
	return dim(w) + "x" + dim(h)
}
