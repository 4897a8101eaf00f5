package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"blogstats/internal/config"
)

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger = slog.Default()
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// openGeoDB opens the configured GeoLite2 database.
// Returns nil if the database is not configured or not found (GeoIP is optional).
func openGeoDB(path string) *geoip2.Reader {
	if path == "" {
		logger.Debug("GeoIP database path not configured - country lookups use headers only")
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			logger.Info("GeoLite2 database not found - country lookups use headers only",
				slog.String("path", path))
		} else {
			logger.Warn("Error checking GeoLite2 database file",
				slog.String("path", path),
				slog.Any("error", err))
		}
		return nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}

	logger.Info("GeoLite2 database initialized", slog.String("path", path))
	return db
}

// GetGeoDB returns the GeoLite2 database reader, opening it on first use.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = openGeoDB(config.GetConfig().GeoDBPath)
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// ReloadGeoDB reopens the GeoLite2 database from disk after it was replaced.
func ReloadGeoDB() {
	GetGeoDB()

	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = openGeoDB(config.GetConfig().GeoDBPath)
}

// LookupCountry resolves an IP to an upper-case ISO country code.
// It reports false when no database is loaded or the IP is not found.
func LookupCountry(ipAddress string) (string, bool) {
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return "", false
	}

	GetGeoDB()

	mu.RLock()
	defer mu.RUnlock()
	if geoDB == nil {
		return "", false
	}

	record, err := geoDB.Country(ip)
	if err != nil {
		logger.Debug("GeoIP lookup failed", slog.Any("error", err))
		return "", false
	}

	code := strings.ToUpper(record.Country.IsoCode)
	if code == "" || code == "--" {
		return "", false
	}
	return code, true
}
