// Package imaging handles image decode, encode, and exact-size scaling.
package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	// Register decoders so tile directories with mixed formats work.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// jpegQuality is the encoder quality used for .jpg/.jpeg output.
const jpegQuality = 92

// Formats lists the decodable input formats, in registration order.
func Formats() []string {
	return []string{"png", "jpeg", "gif", "bmp", "tiff", "webp"}
}

// Open decodes the image at path and returns it with its format name.
func Open(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return img, format, nil
}

// Scale resizes src to exactly w×h. Aspect ratio is intentionally not
// preserved: tiles and the mosaic grid are square regardless of the source
// shape.
func Scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scalerFor(src.Bounds(), w, h).Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// scalerFor picks a filter by direction: bilinear when shrinking (the common
// case for tile thumbnails), nearest when enlarging so small tiles keep crisp
// edges instead of smearing.
func scalerFor(src image.Rectangle, w, h int) draw.Scaler {
	if w >= src.Dx() && h >= src.Dy() {
		return draw.NearestNeighbor
	}
	return draw.ApproxBiLinear
}

// Save encodes img to path. The encoder is chosen by file extension:
// .png or .jpg/.jpeg.
func Save(path string, img image.Image) error {
	var encode func(io.Writer, image.Image) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		encode = png.Encode
	case ".jpg", ".jpeg":
		encode = func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: jpegQuality})
		}
	default:
		return fmt.Errorf("unsupported output format %q (supported: .png, .jpg, .jpeg)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
