package settings

import (
	"log/slog"
	"slices"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"
)

// Cache serves settings from a TTL-bounded cache in front of the settings table.
// One Cache is built at startup and handed to the handlers that need it.
type Cache struct {
	db     *gorm.DB
	logger *slog.Logger
	values *cache.Cache[string, string]
}

func NewCache(dbConn *gorm.DB, logger *slog.Logger, ttl time.Duration) *Cache {
	fetch := func(key string) (string, error) {
		return GetSetting(dbConn, key)
	}
	return &Cache{
		db:     dbConn,
		logger: logger,
		values: cache.NewCache[string, string](logger, ttl, fetch),
	}
}

// Get returns a setting value, loading it on a miss.
func (c *Cache) Get(key string) (string, error) {
	return c.values.Get(key)
}

func (c *Cache) ExcludedIPs() ([]string, error) {
	value, err := c.Get(KeyExcludedIPs)
	if err != nil {
		return nil, err
	}
	return ParseIPList(value), nil
}

// IsIPExcluded reports whether ip is listed in the excluded_ips setting.
func (c *Cache) IsIPExcluded(ip string) (bool, error) {
	excluded, err := c.ExcludedIPs()
	if err != nil {
		return false, err
	}
	return slices.Contains(excluded, ip), nil
}

// SiteDomain returns the site_domain setting or fallback when it is empty.
func (c *Cache) SiteDomain(fallback string) string {
	value, err := c.Get(KeySiteDomain)
	if err != nil {
		c.logger.Warn("Failed to read site domain setting", slog.Any("error", err))
		return fallback
	}
	if value == "" {
		return fallback
	}
	return value
}

// Set writes through to the database and drops cached values.
func (c *Cache) Set(key, value string) error {
	if err := UpdateSetting(c.db, c.logger, key, value); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

func (c *Cache) Invalidate() {
	c.values.Clear()
}
