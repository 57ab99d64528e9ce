package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Block types a post body can hold, in display order.
const (
	BlockParagraph = "paragraph"
	BlockHeading1  = "heading1"
	BlockHeading2  = "heading2"
	BlockHeading3  = "heading3"
	BlockHeading4  = "heading4"
	BlockImage     = "image"
)

type ContentBlock struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Level   int    `json:"level,omitempty"`
	Src     string `json:"src,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type Blog struct {
	ID            string                            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title         string                            `gorm:"not null" json:"title"`
	Author        string                            `gorm:"not null" json:"author"`
	PublishedAt   time.Time                         `gorm:"not null;index" json:"publishedAt"`
	ReadTime      string                            `gorm:"not null" json:"readTime"`
	Tags          datatypes.JSONSlice[string]       `json:"tags"`
	FeaturedImage string                            `gorm:"type:text" json:"featuredImage"`
	Content       datatypes.JSONSlice[ContentBlock] `json:"content"` // stored as one JSON column
	CreatedAt     time.Time                         `json:"createdAt"`
	UpdatedAt     time.Time                         `json:"updatedAt"`
}

func (b *Blog) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// URL is the public page of the post.
func (b *Blog) URL() string {
	return "/blog/" + b.ID
}

type Image struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Filename  string    `gorm:"not null" json:"filename"`
	MimeType  string    `gorm:"not null" json:"mimeType"`
	Size      int64     `gorm:"not null" json:"size"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Data      string    `gorm:"type:text;not null" json:"-"` // base64 payload
	CreatedAt time.Time `json:"createdAt"`
}

func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// URL is the path the image is served from.
func (i *Image) URL() string {
	return "/api/images/" + i.ID
}

// PostView is one counted read of a post. Lives in the analytics database.
type PostView struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	PostID    string    `gorm:"not null;index;type:varchar(36)"`
	VisitorID string    `gorm:"not null;index"`
	Browser   *string
	Language  *string
	CreatedAt time.Time `gorm:"index"`
}
