// Package posts maps the blog's post catalog. The blog owns these rows;
// analytics only reads them to label page views.
package posts

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Post is a blog post as stored by the surrounding blog platform.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	Published bool      `gorm:"not null;default:false;index" json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetPost returns a post by id.
func GetPost(db *gorm.DB, id uint) (*Post, error) {
	var post Post
	if err := db.First(&post, id).Error; err != nil {
		return nil, fmt.Errorf("error fetching post %d: %w", id, err)
	}
	return &post, nil
}

// ListPublished returns published posts ordered by id.
func ListPublished(db *gorm.DB) ([]Post, error) {
	var result []Post
	if err := db.Where("published = ?", true).Order("id ASC").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("error listing published posts: %w", err)
	}
	return result, nil
}

// Path returns the public path of a post.
func (p Post) Path() string {
	return "/blog/" + p.Slug
}
