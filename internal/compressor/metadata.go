package compressor

import (
	"fmt"

	"github.com/barasher/go-exiftool"
)

const softwareTag = "TinyMe Compressed"

// preservedTags are copied from the source onto JPEG outputs. Orientation is
// left out because pixels are already auto-oriented on decode.
var preservedTags = []string{
	"Make", "Model", "LensModel",
	"DateTimeOriginal", "CreateDate", "ModifyDate", "OffsetTime",
	"Artist", "Copyright", "ImageDescription",
	"ExposureTime", "FNumber", "ISO", "FocalLength",
	"GPSLatitude", "GPSLatitudeRef", "GPSLongitude", "GPSLongitudeRef", "GPSAltitude",
}

// copyMetadata copies preservedTags from src to dst and stamps the Software tag.
func copyMetadata(src, dst string) error {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return fmt.Errorf("start exiftool: %w", err)
	}
	defer et.Close()

	extracted := et.ExtractMetadata(src)
	if len(extracted) == 0 {
		return fmt.Errorf("no metadata returned for %s", src)
	}
	if extracted[0].Err != nil {
		return fmt.Errorf("read metadata: %w", extracted[0].Err)
	}

	out := exiftool.FileMetadata{File: dst, Fields: map[string]interface{}{}}
	for _, tag := range preservedTags {
		if v, ok := extracted[0].Fields[tag]; ok {
			out.Fields[tag] = v
		}
	}
	out.Fields["Software"] = softwareTag

	batch := []exiftool.FileMetadata{out}
	et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("write metadata: %w", batch[0].Err)
	}
	return nil
}
