package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"

	// Register decoders accepted by Ingest.
	_ "image/gif"
	_ "image/png"

	"platefeed/internal/models"
	"platefeed/internal/observability"
	"platefeed/internal/storage"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaMaxUploadSizeMB = 10
	MasterMaxSize               = 2048
	// MaxSourcePixels caps width*height before a full decode.
	MaxSourcePixels = 40_000_000
	JPEGQuality     = 82
	WebPQuality     = 70
)

// Blob folders used by the authoring flows.
const (
	FolderDishes          = "dishes"
	FolderRestaurants     = "restaurants"
	FolderMenuItems       = "menu-items"
	FolderProfilePictures = "profile-pictures"
)

// MediaIngester turns an encoded image into a public URL.
type MediaIngester interface {
	Ingest(ctx context.Context, encoded, folder string) (string, error)
}

type MediaService struct {
	store              storage.BlobStore
	maxUploadSizeBytes int64
}

func NewMediaService(store storage.BlobStore, maxUploadSizeMB int) *MediaService {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultMediaMaxUploadSizeMB
	}
	return &MediaService{
		store:              store,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Ingest decodes a base64 image (optionally a data URL), normalizes it to a
// JPEG no larger than MasterMaxSize on either side, stores it with a WebP
// sibling under folder and returns the JPEG's public URL.
func (s *MediaService) Ingest(ctx context.Context, encoded, folder string) (string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "MediaService", "Ingest")
	url, err := s.ingest(ctx, encoded, folder)
	observability.EndSpan(span, err)
	return url, err
}

func (s *MediaService) ingest(ctx context.Context, encoded, folder string) (string, error) {
	raw, err := decodeBase64Image(encoded)
	if err != nil {
		return "", err
	}
	if int64(len(raw)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("Image too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(raw)) {
		return "", models.NewValidationError("Invalid image type")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return "", models.NewValidationError(fmt.Sprintf("Image dimensions %dx%d are too large", cfg.Width, cfg.Height))
	}

	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	master := resizeToFit(decoded, MasterMaxSize, MasterMaxSize)

	jpg, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	webpData, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	base := folder + "/" + uuid.NewString()
	url, err := s.store.Put(ctx, base+".jpg", "image/jpeg", jpg)
	if err != nil {
		return "", models.NewInternalError(fmt.Errorf("store image: %w", err))
	}
	if _, err := s.store.Put(ctx, base+".webp", "image/webp", webpData); err != nil {
		_ = s.store.Delete(ctx, base+".jpg")
		return "", models.NewInternalError(fmt.Errorf("store webp sibling: %w", err))
	}

	observability.MediaBytesIngested.WithLabelValues(folder).Add(float64(len(jpg) + len(webpData)))
	return url, nil
}

func decodeBase64Image(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	if encoded == "" {
		return nil, models.NewValidationError("Image data is required")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, models.NewValidationError("Image is not valid base64")
	}
	return raw, nil
}

func isAllowedImageMIME(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
