package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

const (
	KeyExcludedIPs = "excluded_ips"
	KeySiteDomain  = "site_domain"
)

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

var defaultSettings = []Setting{
	{Key: KeyExcludedIPs, Value: ""},
	{Key: KeySiteDomain, Value: ""},
}

// SetupDefaultSettings inserts any missing default settings. Existing values are kept.
func SetupDefaultSettings(dbConn *gorm.DB, logger *slog.Logger) error {
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, setting := range defaultSettings {
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, setting.Key, setting.Value, now, now).Error
			if err != nil {
				logger.Error("Failed to insert default setting", slog.String("key", setting.Key), slog.Any("error", err))
				return fmt.Errorf("failed to insert setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})
}

// GetSetting returns the stored value, or "" when the key does not exist.
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	err := dbConn.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return setting.Value, nil
}

// UpdateSetting writes a setting, creating it when missing.
func UpdateSetting(dbConn *gorm.DB, logger *slog.Logger, key, value string) error {
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		err := tx.Exec(`
            INSERT INTO settings (key, value, created_at, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
        `, key, value, now, now).Error
		if err != nil {
			return fmt.Errorf("failed to update setting %s: %w", key, err)
		}
		return nil
	})
}

// ParseIPList splits a comma-separated IP list, dropping blanks.
func ParseIPList(value string) []string {
	var ips []string
	for _, ip := range strings.Split(value, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}
