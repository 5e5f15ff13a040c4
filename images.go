package circlepress

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
)

// UploadedImage describes a stored featured image.
type UploadedImage struct {
	URL    string `json:"url"`
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
}

// processImage decodes an image from src, shrinks it to maxImageWidth if
// wider, and encodes it as JPEG.
func processImage(src io.Reader) ([]byte, int, int, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, 0, 0, invalidf("invalid image: %v", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

// imageKey builds a unique, date-partitioned object key from the upload name.
func imageKey(originalName string, at time.Time) string {
	base := Slugify(strings.TrimSuffix(originalName, filepath.Ext(originalName)))
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s/%s-%s.jpg", at.UTC().Format("2006/01"), base, uuid.NewString()[:8])
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return invalidf("no image file provided")
	}
	if file.Size > maxUploadSize {
		return invalidf("file too large (max 10MB)")
	}
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, w, h, err := processImage(src)
	if err != nil {
		return err
	}
	key := imageKey(file.Filename, a.now())
	url, err := a.Objects.Put(c.Request().Context(), key, bytes.NewReader(data), "image/jpeg")
	if err != nil {
		return fmt.Errorf("store image: %w", err)
	}
	a.Logger.Info("image uploaded", "key", key, "bytes", len(data), "width", w, "height", h)
	return c.JSON(http.StatusCreated, UploadedImage{URL: url, Key: key, Width: w, Height: h, Size: len(data)})
}
