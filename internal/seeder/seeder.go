// Package seeder fills a database with sample posts and reader traffic for
// local development and demos.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blogstats/internal/config"
	"blogstats/internal/events"
	"blogstats/internal/posts"
	"blogstats/internal/visitors"
)

const writeBatchSize = 500

// Seeder generates sample posts and page views.
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
	ViewCount int
	// Days is how far back generated traffic reaches.
	Days int
	Salt string
}

func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, viewCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager: dbManager,
		Logger:    logger,
		ViewCount: viewCount,
		Days:      30,
		Salt:      config.GetConfig().IPHashSalt,
	}
}

var samplePosts = []posts.Post{
	{Title: "Hello, World", Slug: "hello-world", Published: true},
	{Title: "Notes on SQLite in Production", Slug: "sqlite-in-production", Published: true},
	{Title: "Writing a Tiny HTTP Router", Slug: "tiny-http-router", Published: true},
	{Title: "What I Read in 2024", Slug: "reading-2024", Published: true},
	{Title: "Self-Hosting Without Tears", Slug: "self-hosting", Published: true},
	{Title: "Draft: Caching Strategies", Slug: "caching-strategies", Published: false},
}

// Run seeds posts and then ViewCount page views spread over the last Days days.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding database...", slog.Int("views", s.ViewCount), slog.Int("days", s.Days))

	catalog, err := s.SeedPosts()
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	views := s.generatePageViews(catalog)
	if err := s.writePageViews(ctx, views); err != nil {
		return fmt.Errorf("failed to seed page views: %w", err)
	}

	s.Logger.Info("Seeding completed",
		slog.Int("posts", len(catalog)),
		slog.Int("views", len(views)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// SeedPosts inserts the sample posts that are missing and returns the published ones.
func (s *Seeder) SeedPosts() ([]posts.Post, error) {
	db := s.DBManager.GetConnection()

	err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
		for _, p := range samplePosts {
			post := p
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&post).Error; err != nil {
				return fmt.Errorf("failed to insert post %s: %w", p.Slug, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return posts.ListPublished(db)
}

type reader struct {
	visitorID string
	ip        string
	userAgent string
	country   string
}

func (s *Seeder) generatePageViews(catalog []posts.Post) []events.PageView {
	readers := generateReaders(max(s.ViewCount/4, 1))
	referrers := sampleReferrers()
	window := time.Duration(max(s.Days, 1)) * 24 * time.Hour
	now := time.Now().UTC()

	views := make([]events.PageView, 0, s.ViewCount)
	for len(views) < s.ViewCount {
		r := readers[rand.IntN(len(readers))]
		client := events.ClassifyClient(events.ClientHeaders{
			UserAgent:  r.userAgent,
			CDNCountry: r.country,
		}, config.GetConfig().DefaultCountry)

		at := now.Add(-time.Duration(rand.Int64N(int64(window))))
		referrer := referrers[rand.IntN(len(referrers))]

		for _, path := range journey(catalog) {
			if len(views) >= s.ViewCount || !at.Before(now) {
				break
			}
			pagePath, _ := events.NormalizePagePath(path.path)
			views = append(views, events.PageView{
				PagePath:     pagePath,
				PostID:       path.postID,
				VisitorID:    r.visitorID,
				IPHash:       visitors.HashIP(r.ip, s.Salt),
				UserAgentRaw: r.userAgent,
				Referrer:     referrer,
				DeviceType:   client.DeviceType,
				Browser:      client.Browser,
				OS:           client.OS,
				Country:      client.Country,
				CreatedAt:    at,
			})
			// Later pages of a visit come from the blog itself.
			referrer = "https://" + sampleSiteHost() + pagePath
			at = at.Add(time.Duration(rand.IntN(170)+10) * time.Second)
		}
	}

	// Sessions must see each visitor's views in time order for last_seen_at.
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views
}

func (s *Seeder) writePageViews(ctx context.Context, views []events.PageView) error {
	db := s.DBManager.GetConnection()

	for start := 0; start < len(views); start += writeBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := views[start:min(start+writeBatchSize, len(views))]
		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			for i := range batch {
				if err := events.Append(tx, &batch[i]); err != nil {
					return err
				}
				err := events.UpsertSession(tx, events.SessionTouch{
					VisitorID:  batch[i].VisitorID,
					IPHash:     batch[i].IPHash,
					DeviceType: batch[i].DeviceType,
					Browser:    batch[i].Browser,
					OS:         batch[i].OS,
					SeenAt:     batch[i].CreatedAt,
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.Logger.Debug("Wrote page view batch", slog.Int("written", start+len(batch)))
	}
	return nil
}

type visitPath struct {
	path   string
	postID *uint
}

// journey picks one to four pages, starting at the home page or a post.
func journey(catalog []posts.Post) []visitPath {
	staticPages := []string{"/", "/about", "/archive", "/tags/go"}

	pick := func() visitPath {
		if len(catalog) > 0 && rand.IntN(3) > 0 {
			post := catalog[rand.IntN(len(catalog))]
			id := post.ID
			return visitPath{path: addCampaign(post.Path()), postID: &id}
		}
		return visitPath{path: staticPages[rand.IntN(len(staticPages))]}
	}

	length := rand.IntN(4) + 1
	paths := make([]visitPath, 0, length)
	for i := 0; i < length; i++ {
		paths = append(paths, pick())
	}
	return paths
}

// addCampaign sometimes appends a query string, which ingestion strips.
func addCampaign(path string) string {
	if rand.IntN(10) < 8 {
		return path
	}
	params := url.Values{}
	params.Set("utm_source", []string{"newsletter", "mastodon", "rss"}[rand.IntN(3)])
	return path + "?" + params.Encode()
}

func generateReaders(count int) []reader {
	userAgents := sampleUserAgents()
	countries := []string{"US", "US", "DE", "GB", "FR", "CA", "IN", "BR", "JP", "NL", "ES", ""}

	readers := make([]reader, 0, count)
	for i := 0; i < count; i++ {
		readers = append(readers, reader{
			visitorID: uuid.NewString(),
			ip:        fmt.Sprintf("%d.%d.%d.%d", rand.IntN(223)+1, rand.IntN(256), rand.IntN(256), rand.IntN(254)+1),
			userAgent: userAgents[rand.IntN(len(userAgents))],
			country:   countries[rand.IntN(len(countries))],
		})
	}
	return readers
}

func sampleSiteHost() string {
	if host := config.GetConfig().SiteDomain; host != "" {
		return host
	}
	return "myblog.example"
}

func sampleUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"curl/8.4.0",
	}
}

func sampleReferrers() []string {
	return []string{
		"",
		"",
		"https://www.google.com/search?q=sqlite+wal",
		"https://duckduckgo.com/",
		"https://news.ycombinator.com/item?id=38000000",
		"https://www.reddit.com/r/golang/",
		"https://mastodon.social/@someone/1",
		"https://t.co/abc123",
		"https://lobste.rs/s/xyz",
		"https://someones-blog.dev/links",
	}
}
