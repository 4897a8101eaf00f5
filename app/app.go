// Package app is the public entry point for embedding blogstats in another
// Go program, such as the blog server that owns the posts table.
package app

import (
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"blogstats/internal"
	"blogstats/internal/analytics"
	"blogstats/internal/config"
	"blogstats/internal/database"
	"blogstats/internal/timeframe"
)

type (
	Application = internal.Application
	Config      = config.Config
	DBManager   = database.DBManager

	Engine         = analytics.Engine
	EngineOption   = analytics.Option
	Period         = timeframe.Period
	BucketSize     = timeframe.BucketSize
	DashboardStats = analytics.DashboardStats
	LiveStats      = analytics.LiveStats
)

const (
	PeriodDay   = timeframe.PeriodDay
	PeriodWeek  = timeframe.PeriodWeek
	PeriodMonth = timeframe.PeriodMonth
	PeriodYear  = timeframe.PeriodYear
)

var (
	WithSiteHost         = analytics.WithSiteHost
	WithMaxVisitDuration = analytics.WithMaxVisitDuration
	WithLogger           = analytics.WithLogger
	WithAliaser          = analytics.WithAliaser
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	return config.GetConfig()
}

// NewApp creates a new application with the default routes
func NewApp() (*Application, error) {
	return internal.NewApp()
}

// NewAppWithRoutes creates a new application with custom route mounting.
// Call MountAppRoutes from routeMount to keep the analytics endpoints.
func NewAppWithRoutes(cfg *Config, routeMount func(*cartridge.Server)) (*Application, error) {
	return internal.NewAppWithRoutes(cfg, routeMount)
}

// MountAppRoutes mounts the tracking, query and health endpoints.
func MountAppRoutes(srv *cartridge.Server) {
	internal.MountAppRoutes(srv)
}

// NewEngine returns an aggregation engine reading from db.
func NewEngine(db *gorm.DB, opts ...EngineOption) *Engine {
	return analytics.NewEngine(db, opts...)
}
