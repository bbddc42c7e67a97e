package qr

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/sunshineplan/imgconv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	renderSize = 1536 // working resolution for crisp glyph scaling
	outputSize = 512  // final image width
)

// Generator produces branded QR code images: the encoded payload with a
// centered label on a white backing. High error correction leaves enough
// redundancy for the code to survive the overlay.
type Generator struct {
	tempDir string
	overlay string
}

func NewGenerator(tempDir, overlayText string) *Generator {
	return &Generator{tempDir: tempDir, overlay: overlayText}
}

// Generate renders a QR code for data and returns the PNG path. The
// caller owns the file and is responsible for deleting it after delivery.
func (g *Generator) Generate(data string) (string, error) {
	if data == "" {
		return "", fmt.Errorf("nothing to encode")
	}

	code, err := qrcode.New(data, qrcode.Highest)
	if err != nil {
		return "", fmt.Errorf("building qr code: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, renderSize, renderSize))
	draw.Draw(canvas, canvas.Bounds(), code.Image(renderSize), image.Point{}, draw.Src)

	if g.overlay != "" {
		compositeLabel(canvas, g.overlay)
	}

	// Downscale for smooth edges on the scaled-up glyphs.
	final := imgconv.Resize(canvas, &imgconv.ResizeOption{Width: outputSize})

	if err := os.MkdirAll(g.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("qr temp dir: %w", err)
	}
	path := filepath.Join(g.tempDir, fmt.Sprintf("qr_output_%d.png", time.Now().UnixNano()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating qr file: %w", err)
	}
	defer f.Close()

	if err := imgconv.Write(f, final, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("encoding qr png: %w", err)
	}
	return path, nil
}

// compositeLabel draws the overlay text centered on the canvas over a
// white backing rectangle. Glyphs are rendered small with a bitmap face
// and integer-upscaled, which keeps them sharp at the working resolution.
func compositeLabel(canvas *image.RGBA, text string) {
	label := renderText(text)
	lb := label.Bounds()

	// Cap the label at 70% of the canvas width.
	maxWidth := canvas.Bounds().Dx() * 7 / 10
	scale := maxWidth / lb.Dx()
	if scale < 1 {
		scale = 1
	}
	if scale > 12 {
		scale = 12
	}

	w, h := lb.Dx()*scale, lb.Dy()*scale
	x0 := (canvas.Bounds().Dx() - w) / 2
	y0 := (canvas.Bounds().Dy() - h) / 2

	pad := h / 8
	backing := image.Rect(x0-pad, y0-pad, x0+w+pad, y0+h+pad)
	draw.Draw(canvas, backing, image.NewUniform(color.White), image.Point{}, draw.Src)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := label.RGBAAt(lb.Min.X+x/scale, lb.Min.Y+y/scale)
			if c.A > 0 {
				canvas.SetRGBA(x0+x, y0+y, c)
			}
		}
	}
}

// renderText rasterizes the string with a fixed bitmap face into a
// tightly-sized image.
func renderText(text string) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	return img
}
