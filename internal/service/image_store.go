package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"blogicum/internal/config"
	"blogicum/internal/models"
	"blogicum/internal/observability"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	"github.com/samber/lo"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaDir             = "media"
	DefaultImageMaxUploadSizeMB = 5
	ImageMaxSize                = 1280
	ImageWebPQuality            = 80
	MediaURLPrefix              = "/media"
	postImageSubdir             = "posts"
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ImageSaver stores an uploaded image and returns its public path.
// Remove deletes a file by the path Save returned.
type ImageSaver interface {
	Save(ctx context.Context, content []byte) (string, error)
	Remove(publicPath string) error
}

// ImageStore writes post images below the media directory as WebP files.
type ImageStore struct {
	dir                string
	maxUploadSizeBytes int64
}

func NewImageStore(cfg *config.Config) *ImageStore {
	dir := DefaultMediaDir
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	if cfg != nil {
		if cfg.MediaDir != "" {
			dir = cfg.MediaDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}
	return &ImageStore{
		dir:                dir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Dir is the filesystem root served under MediaURLPrefix.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save validates, downsizes and stores content. Rejections are form errors on "image".
func (s *ImageStore) Save(ctx context.Context, content []byte) (_ string, err error) {
	_, span := observability.StartSpan(ctx, "ImageStore.Save")
	defer func() { observability.EndSpan(span, err) }()

	if len(content) == 0 {
		return "", imageFieldError("The submitted file is empty.")
	}
	if int64(len(content)) > s.maxUploadSizeBytes {
		return "", imageFieldError(fmt.Sprintf("File too large (max %dMB).", s.maxUploadSizeBytes/(1024*1024)))
	}
	if !lo.Contains(allowedImageTypes, http.DetectContentType(content)) {
		return "", imageFieldError("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", imageFieldError("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}

	resized := resizeToFit(decoded, ImageMaxSize, ImageMaxSize)
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, resized, &webp.Options{Quality: ImageWebPQuality}); err != nil {
		return "", models.NewInternalError(err)
	}

	name := uuid.NewString() + ".webp"
	if err := writeBytesToFile(filepath.Join(s.dir, postImageSubdir, name), buf.Bytes()); err != nil {
		return "", models.NewInternalError(err)
	}
	return path.Join(MediaURLPrefix, postImageSubdir, name), nil
}

// Remove deletes a file previously returned by Save. Unknown paths are ignored.
func (s *ImageStore) Remove(publicPath string) error {
	rel, ok := strings.CutPrefix(publicPath, MediaURLPrefix+"/"+postImageSubdir+"/")
	if !ok || rel == "" || strings.ContainsAny(rel, `/\`) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, postImageSubdir, rel)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func imageFieldError(msg string) *models.AppError {
	return models.NewFormError(map[string]string{"image": msg})
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}
