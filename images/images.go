package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"gorm.io/gorm"

	"portfolio/logger"
	"portfolio/models"
)

const MaxUploadSize = 5 << 20 // 5MB

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds 5MB")
	ErrInvalidImage    = errors.New("image data cannot be decoded")
	ErrNotFound        = errors.New("image not found")
)

// RejectionMessage returns the client-facing message for a rejected upload,
// and false when err is not an upload rejection.
func RejectionMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "Invalid file type. Only JPEG, PNG, GIF, and WebP are allowed.", true
	case errors.Is(err, ErrTooLarge):
		return "File too large. Maximum size is 5MB.", true
	case errors.Is(err, ErrInvalidImage):
		return "File is not a readable image.", true
	}
	return "", false
}

// Upload is one uploaded file, read into memory.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// ReadUpload loads a multipart file, refusing anything over MaxUploadSize
// before reading it.
func ReadUpload(fh *multipart.FileHeader) (Upload, error) {
	if fh.Size > MaxUploadSize {
		return Upload{}, ErrTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	if len(data) > MaxUploadSize {
		return Upload{}, ErrTooLarge
	}

	return Upload{
		Filename: fh.Filename,
		MimeType: strings.ToLower(strings.TrimSpace(fh.Header.Get("Content-Type"))),
		Data:     data,
	}, nil
}

// Validate checks the declared type, the size, and that the bytes decode as
// an image. It returns the pixel dimensions.
func Validate(u Upload) (width, height int, err error) {
	if !allowedTypes[u.MimeType] {
		return 0, 0, ErrUnsupportedType
	}
	if len(u.Data) > MaxUploadSize {
		return 0, 0, ErrTooLarge
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w (%s)", ErrInvalidImage, u.Filename)
	}
	return cfg.Width, cfg.Height, nil
}

// Save validates u and stores it base64 encoded using tx.
func Save(tx *gorm.DB, u Upload) (*models.Image, error) {
	width, height, err := Validate(u)
	if err != nil {
		return nil, err
	}

	img := &models.Image{
		Filename: u.Filename,
		MimeType: u.MimeType,
		Size:     int64(len(u.Data)),
		Width:    width,
		Height:   height,
		Data:     base64.StdEncoding.EncodeToString(u.Data),
	}
	if err := tx.Create(img).Error; err != nil {
		return nil, fmt.Errorf("save image %q: %w", u.Filename, err)
	}
	return img, nil
}

type ImageModule struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewImageModule(db *gorm.DB, log *zap.Logger) *ImageModule {
	return &ImageModule{db: db, log: log}
}

func (m *ImageModule) RegisterRoutes(router gin.IRoutes) {
	router.GET("/api/images/:id", m.serve)
}

// Get loads an image row including its payload.
func (m *ImageModule) Get(ctx context.Context, id string) (*models.Image, error) {
	var img models.Image
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// DeleteByIDs removes the given images and returns how many rows went away.
func (m *ImageModule) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := m.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Image{})
	return res.RowsAffected, res.Error
}

func (m *ImageModule) serve(c *gin.Context) {
	log := logger.WithRequest(m.log, c)

	img, err := m.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	if err != nil {
		log.Error("error retrieving image", zap.String("image_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve image"})
		return
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64String(img.ID+":"+strconv.FormatInt(img.Size, 10)), 16) + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}

	data, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		log.Error("stored image is not valid base64", zap.String("image_id", img.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve image"})
		return
	}

	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, img.MimeType, data)
}
