package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"maps"
	"slices"

	_ "image/gif"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Device is an e-reader screen pages are fitted to.
type Device struct {
	Name      string
	Width     int
	Height    int
	Grayscale bool
	Quality   int
}

var Devices = map[string]Device{
	"kindle-basic":      {Name: "Kindle", Width: 758, Height: 1024, Grayscale: true, Quality: 85},
	"kindle-paperwhite": {Name: "Kindle Paperwhite", Width: 1236, Height: 1648, Grayscale: true, Quality: 90},
	"kindle-oasis":      {Name: "Kindle Oasis", Width: 1264, Height: 1680, Grayscale: true, Quality: 90},
	"kindle-scribe":     {Name: "Kindle Scribe", Width: 1860, Height: 2480, Grayscale: true, Quality: 90},
	"tablet":            {Name: "Color tablet", Width: 1200, Height: 1920, Quality: 90},
}

func DeviceNames() []string {
	return slices.Sorted(maps.Keys(Devices))
}

// PageOptimizer shrinks pages to fit a device and converts them to
// grayscale JPEG for e-ink screens.
type PageOptimizer struct {
	device Device
}

func NewPageOptimizer(deviceID string) (*PageOptimizer, error) {
	device, ok := Devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("unknown device %q", deviceID)
	}
	return &PageOptimizer{device: device}, nil
}

func (p *PageOptimizer) Process(page ImageData) (ImageData, error) {
	img, _, err := image.Decode(bytes.NewReader(page.Content))
	if err != nil {
		return page, fmt.Errorf("failed to decode page %d: %w", page.Index, err)
	}

	bounds := img.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy(), p.device.Width, p.device.Height)

	var dst draw.Image
	rect := image.Rect(0, 0, width, height)
	if p.device.Grayscale {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if p.device.Quality > 0 {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.device.Quality})
		page.ContentType = "image/jpeg"
	} else {
		err = png.Encode(&buf, dst)
		page.ContentType = "image/png"
	}
	if err != nil {
		return page, fmt.Errorf("failed to encode page %d: %w", page.Index, err)
	}
	page.Content = buf.Bytes()
	return page, nil
}

// fit scales width x height down to fit maxW x maxH, keeping the aspect
// ratio. Images that already fit are left alone.
func fit(width, height, maxW, maxH int) (int, int) {
	if width <= maxW && height <= maxH {
		return width, height
	}
	if width*maxH > height*maxW {
		return maxW, max(1, height*maxW/width)
	}
	return max(1, width*maxH/height), maxH
}
