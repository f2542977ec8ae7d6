package ocr

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// minOCRWidth is the width below which Tesseract accuracy drops off sharply
// for photographed documents.
const minOCRWidth = 1200

// prepareImage writes a preprocessed copy of the image to a temp file and
// returns its path plus a cleanup func. Grayscale + contrast + sharpening,
// and an upscale for small photos.
func prepareImage(path string) (string, func(), error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, err
	}

	processed := imaging.Grayscale(img)
	processed = imaging.AdjustContrast(processed, 20)
	processed = imaging.Sharpen(processed, 1.0)

	if processed.Bounds().Dx() < minOCRWidth {
		processed = imaging.Resize(processed, minOCRWidth, 0, imaging.Lanczos)
	}

	tmp, err := os.CreateTemp("", "fieldscan-ocr-*.png")
	if err != nil {
		return "", nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := imaging.Save(processed, tmpPath, imaging.PNGCompressionLevel(0)); err != nil {
		os.Remove(tmpPath)
		return "", nil, err
	}

	cleanup := func() { os.Remove(tmpPath) }
	return tmpPath, cleanup, nil
}

// IsImagePath reports whether the file extension is one the engine accepts.
func IsImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp":
		return true
	}
	return false
}
