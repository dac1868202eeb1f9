package compressor

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// encodeWebP writes img as WebP to dst. There is no pure Go WebP encoder, so
// the image goes through a lossless PNG intermediate and ffmpeg's libwebp.
func (b *ImagingBackend) encodeWebP(ctx context.Context, img image.Image, dst string, quality int) error {
	intermediate := dst + ".src.png"
	defer os.Remove(intermediate)

	if err := imaging.Save(img, intermediate); err != nil {
		return fmt.Errorf("write intermediate: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.cfg.FFmpegPath,
		"-y", "-loglevel", "error",
		"-i", intermediate,
		"-c:v", "libwebp",
		"-quality", strconv.Itoa(quality),
		"-f", "webp",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
