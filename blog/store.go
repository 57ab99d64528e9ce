package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"portfolio/content"
	"portfolio/images"
	"portfolio/models"
)

const DefaultReadTime = "5 min read"

var ErrNotFound = errors.New("blog not found")

// PostInput is the JSON payload sent as the blogData form field.
type PostInput struct {
	Title         string                `json:"title"`
	Author        string                `json:"author"`
	PublishedAt   string                `json:"publishedAt"`
	ReadTime      string                `json:"readTime"`
	Tags          []string              `json:"tags"`
	FeaturedImage string                `json:"featuredImage"`
	Content       []models.ContentBlock `json:"content"`
}

type Store struct {
	db     *gorm.DB
	images *images.ImageModule
	log    *zap.Logger
}

func NewStore(db *gorm.DB, imageModule *images.ImageModule, log *zap.Logger) *Store {
	return &Store{db: db, images: imageModule, log: log}
}

// Create validates in and stores it along with its uploads. featured replaces
// the featured image URL and contentUploads[i] replaces the src of the image
// block at index i. Images and post are written in one transaction, so a
// failure leaves nothing behind.
func (s *Store) Create(ctx context.Context, in PostInput, featured *images.Upload, contentUploads map[int]images.Upload) (*models.Blog, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	if title == "" || author == "" {
		return nil, &content.ValidationError{Message: "Title and author are required"}
	}

	publishedAt, err := parsePublishedAt(in.PublishedAt)
	if err != nil {
		return nil, err
	}

	blocks, err := content.Validate(in.Content)
	if err != nil {
		return nil, err
	}
	for i, block := range blocks {
		if block.Type != models.BlockImage {
			continue
		}
		if _, ok := contentUploads[i]; !ok && strings.TrimSpace(block.Src) == "" {
			return nil, &content.ValidationError{Message: fmt.Sprintf("Content block %d: image needs a src or an uploaded file", i)}
		}
	}

	blog := &models.Blog{
		Title:         title,
		Author:        author,
		PublishedAt:   publishedAt,
		ReadTime:      strings.TrimSpace(in.ReadTime),
		Tags:          datatypes.JSONSlice[string](in.Tags),
		FeaturedImage: strings.TrimSpace(in.FeaturedImage),
	}
	if blog.ReadTime == "" {
		blog.ReadTime = DefaultReadTime
	}
	if blog.Tags == nil {
		blog.Tags = datatypes.JSONSlice[string]{}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if featured != nil {
			img, err := images.Save(tx, *featured)
			if err != nil {
				return fmt.Errorf("featured image: %w", err)
			}
			blog.FeaturedImage = img.URL()
		}

		for i := range blocks {
			u, ok := contentUploads[i]
			if !ok || blocks[i].Type != models.BlockImage {
				continue
			}
			img, err := images.Save(tx, u)
			if err != nil {
				return fmt.Errorf("content image %d: %w", i, err)
			}
			blocks[i].Src = img.URL()
		}
		blog.Content = datatypes.JSONSlice[models.ContentBlock](blocks)

		return tx.Create(blog).Error
	})
	if err != nil {
		return nil, err
	}
	return blog, nil
}

// List returns every post, newest first.
func (s *Store) List(ctx context.Context) ([]models.Blog, error) {
	var blogs []models.Blog
	err := s.db.WithContext(ctx).Order("published_at DESC").Find(&blogs).Error
	return blogs, err
}

// Latest returns the n most recently published posts.
func (s *Store) Latest(ctx context.Context, n int) ([]models.Blog, error) {
	var blogs []models.Blog
	err := s.db.WithContext(ctx).Order("published_at DESC").Limit(n).Find(&blogs).Error
	return blogs, err
}

func (s *Store) Get(ctx context.Context, id string) (*models.Blog, error) {
	var blog models.Blog
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&blog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &blog, nil
}

// Delete removes the post and then, best effort, the stored images it
// references. A cleanup failure is logged and reported as zero deleted images.
func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	blog, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Blog{}, "id = ?", blog.ID).Error; err != nil {
		return 0, fmt.Errorf("delete blog %s: %w", blog.ID, err)
	}

	ids := content.ImageIDs(blog.FeaturedImage, blog.Content)
	deleted, err := s.images.DeleteByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("error cleaning up blog images",
			zap.String("blog_id", blog.ID),
			zap.Strings("image_ids", ids),
			zap.Error(err),
		)
		return 0, nil
	}
	return deleted, nil
}

// parsePublishedAt returns the publish date in UTC. sqlite orders time
// columns as text, so mixed offsets would sort by local clock.
func parsePublishedAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &content.ValidationError{Message: "Invalid publishedAt date"}
}
