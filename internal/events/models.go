package events

import "time"

// PageView is one tracked page load. Rows are append-only.
type PageView struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PagePath     string    `gorm:"not null;index:idx_page_views_path_created,priority:1" json:"pagePath"`
	PostID       *uint     `gorm:"index:idx_page_views_post" json:"postId,omitempty"`
	VisitorID    string    `gorm:"size:64;not null;index:idx_page_views_visitor_created,priority:1" json:"visitorId"`
	IPHash       string    `gorm:"size:64;not null" json:"-"`
	UserAgentRaw string    `gorm:"type:text" json:"-"`
	Referrer     string    `gorm:"not null;default:''" json:"referrer"`
	DeviceType   string    `gorm:"not null;default:'desktop'" json:"deviceType"`
	Browser      string    `gorm:"not null;default:'Unknown'" json:"browser"`
	OS           string    `gorm:"column:os;not null;default:'Unknown'" json:"os"`
	Country      string    `gorm:"not null;default:'Unknown'" json:"country"`
	CreatedAt    time.Time `gorm:"not null;index:idx_page_views_created;index:idx_page_views_path_created,priority:2;index:idx_page_views_visitor_created,priority:2" json:"createdAt"`
}

// VisitorSession is the single mutable row kept per visitor id.
type VisitorSession struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	VisitorID   string    `gorm:"size:64;not null;uniqueIndex" json:"visitorId"`
	IPHash      string    `gorm:"size:64;not null" json:"-"`
	DeviceType  string    `gorm:"not null" json:"deviceType"`
	Browser     string    `gorm:"not null" json:"browser"`
	OS          string    `gorm:"column:os;not null" json:"os"`
	FirstSeenAt time.Time `gorm:"not null" json:"firstSeenAt"`
	LastSeenAt  time.Time `gorm:"not null;index" json:"lastSeenAt"`
}

// ClientInfo is the classified view of the requesting client.
type ClientInfo struct {
	DeviceType string
	Browser    string
	OS         string
	Country    string
}
