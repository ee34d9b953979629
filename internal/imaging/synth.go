package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	syntheticWidth  = 400
	syntheticHeight = 300
	labelScale      = 3
)

// Synthetic describes one generated test image.
type Synthetic struct {
	File  string
	Label string
	Color color.RGBA
}

// SyntheticSet is the fixed set of solid-colour images used to smoke-test a
// vision model.
var SyntheticSet = []Synthetic{
	{File: "test_rojo.png", Label: "Imagen Roja", Color: color.RGBA{R: 255, G: 100, B: 100, A: 255}},
	{File: "test_verde.png", Label: "Imagen Verde", Color: color.RGBA{R: 100, G: 255, B: 100, A: 255}},
	{File: "test_azul.png", Label: "Imagen Azul", Color: color.RGBA{R: 100, G: 100, B: 255, A: 255}},
	{File: "test_amarillo.png", Label: "Imagen Amarilla", Color: color.RGBA{R: 255, G: 255, B: 100, A: 255}},
}

// Synthesize writes SyntheticSet into dir as 400x300 PNGs with the label
// drawn in black at the centre, returning the written paths.
func Synthesize(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(SyntheticSet))
	for _, sample := range SyntheticSet {
		path := filepath.Join(dir, sample.File)
		if err := writePNG(path, Render(sample)); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Render draws one synthetic image.
func Render(sample Synthetic) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, syntheticWidth, syntheticHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: sample.Color}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Face: face}
	textWidth := drawer.MeasureString(sample.Label).Ceil()
	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()

	label := image.NewRGBA(image.Rect(0, 0, textWidth, textHeight))
	drawer.Dst = label
	drawer.Src = image.NewUniform(color.Black)
	drawer.Dot = fixed.Point26_6{X: 0, Y: metrics.Ascent}
	drawer.DrawString(sample.Label)

	w, h := textWidth*labelScale, textHeight*labelScale
	x0 := (syntheticWidth - w) / 2
	y0 := (syntheticHeight - h) / 2
	xdraw.NearestNeighbor.Scale(canvas, image.Rect(x0, y0, x0+w, y0+h), label, label.Bounds(), xdraw.Over, nil)
	return canvas
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return file.Close()
}
