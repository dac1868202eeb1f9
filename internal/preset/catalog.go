// Package preset holds the static catalog of named compression presets.
package preset

import (
	"errors"
	"fmt"
)

// ErrUnknownPreset is returned when a preset identifier is not in the catalog.
var ErrUnknownPreset = errors.New("unknown preset")

// ID identifies a catalog entry.
type ID string

const (
	Web        ID = "web"
	Social     ID = "social"
	Archive    ID = "archive"
	Mobile1x   ID = "mobile1x"
	Mobile2x   ID = "mobile2x"
	Mobile3x   ID = "mobile3x"
	AndroidHD  ID = "androidHD"
	AndroidFHD ID = "androidFHD"
	IPadRetina ID = "ipadRetina"
)

// Preset is an immutable bundle of compression parameters.
// MaxWidth and MaxHeight of 0 mean the axis is unconstrained.
type Preset struct {
	ID                  ID     `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	Quality             int    `json:"quality"`
	MaxWidth            int    `json:"max_width,omitempty"`
	MaxHeight           int    `json:"max_height,omitempty"`
	Format              string `json:"format"`
	MaintainAspectRatio bool   `json:"maintain_aspect_ratio"`
}

// order fixes the listing order of the catalog.
var order = []ID{Web, Social, Archive, Mobile1x, Mobile2x, Mobile3x, AndroidHD, AndroidFHD, IPadRetina}

var catalog = map[ID]Preset{
	Web: {
		ID:                  Web,
		Name:                "Web",
		Description:         "Images for web pages: high compression, good quality",
		Quality:             75,
		MaxWidth:            1920,
		MaxHeight:           1080,
		Format:              "webp",
		MaintainAspectRatio: true,
	},
	Social: {
		ID:                  Social,
		Name:                "Social media",
		Description:         "Sharing on social networks, balances size and quality",
		Quality:             85,
		MaxWidth:            1200,
		MaxHeight:           1200,
		Format:              "jpg",
		MaintainAspectRatio: true,
	},
	Archive: {
		ID:                  Archive,
		Name:                "Archive",
		Description:         "High quality archive copy at original dimensions",
		Quality:             95,
		Format:              "png",
		MaintainAspectRatio: true,
	},
	Mobile1x: {
		ID:                  Mobile1x,
		Name:                "Mobile 1x",
		Description:         "1x resolution for iPhone X class devices",
		Quality:             80,
		MaxWidth:            375,
		MaxHeight:           812,
		Format:              "webp",
		MaintainAspectRatio: true,
	},
	Mobile2x: {
		ID:                  Mobile2x,
		Name:                "Mobile 2x",
		Description:         "2x resolution for iPhone X class devices",
		Quality:             85,
		MaxWidth:            750,
		MaxHeight:           1624,
		Format:              "webp",
		MaintainAspectRatio: true,
	},
	Mobile3x: {
		ID:                  Mobile3x,
		Name:                "Mobile 3x",
		Description:         "3x resolution for iPhone X class devices",
		Quality:             90,
		MaxWidth:            1125,
		MaxHeight:           2436,
		Format:              "webp",
		MaintainAspectRatio: true,
	},
	AndroidHD: {
		ID:                  AndroidHD,
		Name:                "Android HD",
		Description:         "HD resolution for most Android devices",
		Quality:             85,
		MaxWidth:            1080,
		MaxHeight:           1920,
		Format:              "webp",
		MaintainAspectRatio: true,
	},
	AndroidFHD: {
		ID:                  AndroidFHD,
		Name:                "Android FHD",
		Description:         "FHD+ resolution for high-end Android devices",
		Quality:             90,
		MaxWidth:            1440,
		MaxHeight:           2560,
		Format:              "webp",
		MaintainAspectRatio: true,
	},
	IPadRetina: {
		ID:                  IPadRetina,
		Name:                "iPad Retina",
		Description:         "Retina resolution for iPad Pro class devices",
		Quality:             85,
		MaxWidth:            2048,
		MaxHeight:           2732,
		Format:              "webp",
		MaintainAspectRatio: true,
	},
}

// Resolve returns the preset registered under id.
func Resolve(id ID) (Preset, error) {
	p, ok := catalog[id]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
	}
	return p, nil
}

// All returns every preset in catalog order.
func All() []Preset {
	out := make([]Preset, 0, len(order))
	for _, id := range order {
		out = append(out, catalog[id])
	}
	return out
}
