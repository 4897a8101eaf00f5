package events

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ErrInvalidPageView marks input that can never be stored. Callers treat it
// as a client problem rather than a store failure.
var ErrInvalidPageView = errors.New("invalid page view")

// PageViewInput defines the input required to record a page view.
type PageViewInput struct {
	PagePath  string
	PostID    *uint
	VisitorID string
	IPHash    string
	UserAgent string
	Referrer  string
	Client    ClientInfo
	Timestamp time.Time
}

// SessionTouch carries the values written by UpsertSession.
type SessionTouch struct {
	VisitorID  string
	IPHash     string
	DeviceType string
	Browser    string
	OS         string
	SeenAt     time.Time
}

const upsertSessionSQL = `
INSERT INTO visitor_sessions (visitor_id, ip_hash, device_type, browser, os, first_seen_at, last_seen_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(visitor_id) DO UPDATE SET
    ip_hash       = excluded.ip_hash,
    device_type   = excluded.device_type,
    browser       = excluded.browser,
    os            = excluded.os,
    first_seen_at = MIN(visitor_sessions.first_seen_at, excluded.first_seen_at),
    last_seen_at  = MAX(visitor_sessions.last_seen_at, excluded.last_seen_at)
`

// Append inserts a page view. It never updates an existing row.
func Append(tx *gorm.DB, pageView *PageView) error {
	pageView.ID = 0
	if pageView.CreatedAt.IsZero() {
		pageView.CreatedAt = time.Now().UTC()
	}
	pageView.CreatedAt = pageView.CreatedAt.UTC()

	if err := tx.Create(pageView).Error; err != nil {
		return fmt.Errorf("failed to append page view: %w", err)
	}
	return nil
}

// UpsertSession creates the visitor's session or refreshes it in one statement.
// first_seen_at only moves back and last_seen_at only moves forward, so late or
// concurrent writers for the same visitor cannot shrink the session or create a
// second row.
func UpsertSession(tx *gorm.DB, touch SessionTouch) error {
	if touch.VisitorID == "" {
		return fmt.Errorf("%w: missing visitor id", ErrInvalidPageView)
	}
	seenAt := touch.SeenAt
	if seenAt.IsZero() {
		seenAt = time.Now()
	}
	seenAt = seenAt.UTC()

	err := tx.Exec(upsertSessionSQL,
		touch.VisitorID, touch.IPHash, touch.DeviceType, touch.Browser, touch.OS,
		seenAt, seenAt,
	).Error
	if err != nil {
		return fmt.Errorf("failed to upsert visitor session: %w", err)
	}
	return nil
}

// RecordPageView appends the event and upserts the visitor session in a single write.
func RecordPageView(dbManager cartridge.DBManager, logger *slog.Logger, input *PageViewInput) error {
	pageView, err := buildPageView(input)
	if err != nil {
		logger.Debug("Rejected page view", slog.Any("error", err))
		return err
	}

	db := dbManager.GetConnection()
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := Append(tx, pageView); err != nil {
			return err
		}
		return UpsertSession(tx, SessionTouch{
			VisitorID:  pageView.VisitorID,
			IPHash:     pageView.IPHash,
			DeviceType: pageView.DeviceType,
			Browser:    pageView.Browser,
			OS:         pageView.OS,
			SeenAt:     pageView.CreatedAt,
		})
	})
	if err != nil {
		logger.Error("Failed to record page view", slog.Any("error", err))
		return fmt.Errorf("failed to record page view: %w", err)
	}

	return nil
}

func buildPageView(input *PageViewInput) (*PageView, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidPageView)
	}

	path, ok := NormalizePagePath(input.PagePath)
	if !ok {
		return nil, fmt.Errorf("%w: page path %q", ErrInvalidPageView, input.PagePath)
	}
	if input.VisitorID == "" {
		return nil, fmt.Errorf("%w: missing visitor id", ErrInvalidPageView)
	}

	var postID *uint
	if input.PostID != nil && *input.PostID > 0 {
		id := *input.PostID
		postID = &id
	}

	client := input.Client
	if client.DeviceType == "" {
		client.DeviceType = DeviceDesktop
	}
	if client.Browser == "" {
		client.Browser = UnknownBrowser
	}
	if client.OS == "" {
		client.OS = UnknownOS
	}
	if client.Country == "" {
		client.Country = UnknownCountry
	}

	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return &PageView{
		PagePath:     path,
		PostID:       postID,
		VisitorID:    input.VisitorID,
		IPHash:       input.IPHash,
		UserAgentRaw: input.UserAgent,
		Referrer:     input.Referrer,
		DeviceType:   client.DeviceType,
		Browser:      client.Browser,
		OS:           client.OS,
		Country:      client.Country,
		CreatedAt:    timestamp.UTC(),
	}, nil
}
