package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blogstats/internal"
	"blogstats/internal/config"
	"blogstats/internal/database"
	"blogstats/internal/events"
	"blogstats/internal/posts"
	"blogstats/internal/settings"
)

const (
	ChromeDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	SafariIPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	FirefoxLinuxUA  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

func init() {
	if os.Getenv("BLOGSTATS_ENV") == "" {
		os.Setenv("BLOGSTATS_ENV", config.Test)
	}
}

// testDBCache caches test databases by root test name so helpers called from
// subtests share the database of their parent test.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a migrated in-memory database shared by every call
// made within the same root test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}
	if err := settings.SetupDefaultSettings(db, GetLogger()); err != nil {
		t.Fatalf("testsupport: failed to seed settings: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set BLOGSTATS_ENV=test", cfg.Environment)
	}

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanTables empties the named tables, or every table when none are given.
func CleanTables(db *gorm.DB, tables ...string) {
	if len(tables) == 0 {
		db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tables)
	}

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestPost inserts a post.
func CreateTestPost(t *testing.T, db *gorm.DB, title, slug string, published bool) posts.Post {
	t.Helper()

	post := posts.Post{Title: title, Slug: slug, Published: published}
	require.NoError(t, db.Create(&post).Error)
	return post
}

// PageViewFixture describes a stored page view. Zero fields get test defaults.
type PageViewFixture struct {
	Path       string
	PostID     *uint
	VisitorID  string
	Referrer   string
	DeviceType string
	Browser    string
	OS         string
	Country    string
	At         time.Time
}

// InsertPageView stores a page view and touches its visitor session the same
// way ingestion does.
func InsertPageView(t *testing.T, db *gorm.DB, fixture PageViewFixture) events.PageView {
	t.Helper()

	view := events.PageView{
		PagePath:     withDefault(fixture.Path, "/"),
		PostID:       fixture.PostID,
		VisitorID:    withDefault(fixture.VisitorID, "visitor-1"),
		IPHash:       "test-ip-hash",
		UserAgentRaw: ChromeDesktopUA,
		Referrer:     fixture.Referrer,
		DeviceType:   withDefault(fixture.DeviceType, events.DeviceDesktop),
		Browser:      withDefault(fixture.Browser, "Chrome"),
		OS:           withDefault(fixture.OS, "Windows"),
		Country:      withDefault(fixture.Country, "US"),
		CreatedAt:    fixture.At,
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := events.Append(tx, &view); err != nil {
			return err
		}
		return events.UpsertSession(tx, events.SessionTouch{
			VisitorID:  view.VisitorID,
			IPHash:     view.IPHash,
			DeviceType: view.DeviceType,
			Browser:    view.Browser,
			OS:         view.OS,
			SeenAt:     view.CreatedAt,
		})
	})
	require.NoError(t, err)
	return view
}

// CreateSession stores a visitor session with explicit bounds.
func CreateSession(t *testing.T, db *gorm.DB, visitorID string, firstSeen, lastSeen time.Time) {
	t.Helper()

	session := events.VisitorSession{
		VisitorID:   visitorID,
		IPHash:      "test-ip-hash",
		DeviceType:  events.DeviceDesktop,
		Browser:     "Chrome",
		OS:          "Windows",
		FirstSeenAt: firstSeen.UTC(),
		LastSeenAt:  lastSeen.UTC(),
	}
	require.NoError(t, db.Create(&session).Error)
}

// UintPtr returns a pointer to id.
func UintPtr(id uint) *uint {
	return &id
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test
	appConfig.PublicDirectory = t.TempDir()

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	cfg.StaticDirectory = appConfig.PublicDirectory
	cfg.StaticPrefix = appConfig.PublicAssetsUrlPrefix
	cfg.TemplatesDirectory = appConfig.PublicDirectory
	// Requests without Sec-Fetch-Site are rejected, as in production.
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
