// main.go - Admin control tool for blogstats
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/karloscodes/cartridge/cache"

	"blogstats/internal"
	"blogstats/internal/analytics"
	"blogstats/internal/config"
	"blogstats/internal/events"
	"blogstats/internal/http/middleware"
	"blogstats/internal/seeder"
	"blogstats/internal/settings"
	"blogstats/internal/timeframe"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&StatsCommand{},
	&SetSettingCommand{},
	&SetQueryTokenCommand{},
	&PurgeCacheCommand{},
	&PruneSessionsCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()
	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with sample posts and traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds sample posts and page views (-views N -days D)" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	views := fs.Int("views", 10000, "number of page views to generate")
	days := fs.Int("days", 30, "how many days back the traffic reaches")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *views)
	se.Days = *days
	return se.Run(ctx)
}

// StatsCommand prints a dashboard for a period
type StatsCommand struct{}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Description() string { return "Prints dashboard, top posts and sources (-period day|week|month|year)" }

func (c *StatsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	periodFlag := fs.String("period", string(timeframe.PeriodWeek), "reporting period")
	limit := fs.Int("limit", 5, "rows in rankings")
	if err := fs.Parse(args); err != nil {
		return err
	}

	period, err := timeframe.ParsePeriod(*periodFlag)
	if err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	cfg := config.GetConfig()
	db := app.DBManager.GetConnection()
	siteHost, err := settings.GetSetting(db, settings.KeySiteDomain)
	if err != nil {
		return err
	}
	if siteHost == "" {
		siteHost = cfg.SiteDomain
	}

	engine := analytics.NewEngine(db,
		analytics.WithSiteHost(siteHost),
		analytics.WithMaxVisitDuration(cfg.MaxVisitDuration()),
		analytics.WithLogger(slog.Default()),
	)

	dashboard, err := engine.GetDashboardStats(ctx, period)
	if err != nil {
		return err
	}
	topPosts, err := engine.GetTopPosts(ctx, *limit, period)
	if err != nil {
		return err
	}
	sources, err := engine.GetTrafficSources(ctx, period)
	if err != nil {
		return err
	}
	live, err := engine.GetLiveStats(ctx)
	if err != nil {
		return err
	}

	report := map[string]any{
		"period":         period,
		"dashboard":      dashboard,
		"topPosts":       topPosts,
		"trafficSources": sources,
		"live":           live,
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// SetSettingCommand writes one runtime setting
type SetSettingCommand struct{}

func (c *SetSettingCommand) Name() string { return "set-setting" }
func (c *SetSettingCommand) Description() string {
	return "Sets a runtime setting: set-setting <excluded_ips|site_domain> <value>"
}

func (c *SetSettingCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	known := []string{settings.KeyExcludedIPs, settings.KeySiteDomain}
	if len(args) < 1 || !slices.Contains(known, args[0]) {
		return fmt.Errorf("usage: %s <%s> <value>", c.Name(), strings.Join(known, "|"))
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	key := args[0]
	value := strings.Join(args[1:], " ")
	switch key {
	case settings.KeyExcludedIPs:
		value = strings.Join(settings.ParseIPList(value), ",")
	case settings.KeySiteDomain:
		value = config.NormalizeHost(value)
	}

	if err := settings.UpdateSetting(app.DBManager.GetConnection(), slog.Default(), key, value); err != nil {
		return err
	}
	fmt.Printf("%s = %q\n", key, value)
	return nil
}

// SetQueryTokenCommand prints the bcrypt hash for a query token
type SetQueryTokenCommand struct{}

func (c *SetQueryTokenCommand) Name() string { return "set-query-token" }
func (c *SetQueryTokenCommand) Description() string {
	return "Hashes a query token for BLOGSTATS_QUERY_TOKEN_HASH"
}

func (c *SetQueryTokenCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var token string
	if len(args) >= 1 {
		token = args[0]
	} else {
		fmt.Print("Enter query token: ")
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		token = strings.TrimSpace(input)
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	hash, err := middleware.HashQueryToken(token)
	if err != nil {
		return fmt.Errorf("failed to hash token: %w", err)
	}

	fmt.Println("Add this to the server environment:")
	fmt.Printf("BLOGSTATS_QUERY_TOKEN_HASH='%s'\n", hash)
	return nil
}

// PurgeCacheCommand empties the persistent cache table
type PurgeCacheCommand struct{}

func (c *PurgeCacheCommand) Name() string        { return "purge-cache" }
func (c *PurgeCacheCommand) Description() string { return "Deletes all cached records" }

func (c *PurgeCacheCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	deleted, err := cache.PurgeAllCaches(app.DBManager.GetConnection())
	if err != nil {
		return fmt.Errorf("failed to purge caches: %w", err)
	}
	fmt.Printf("Purged %d cached records\n", deleted)
	return nil
}

// PruneSessionsCommand runs the session prune job once
type PruneSessionsCommand struct{}

func (c *PruneSessionsCommand) Name() string { return "prune-sessions" }
func (c *PruneSessionsCommand) Description() string {
	return "Deletes visitor sessions older than the retention period"
}

func (c *PruneSessionsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	deleted, err := app.Jobs.PruneSessions()
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d sessions\n", deleted)
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()

	var views, sessions int64
	if err := db.Model(&events.PageView{}).Count(&views).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&events.VisitorSession{}).Count(&sessions).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Page views: %d", views)
	log.Printf("- Visitor sessions: %d", sessions)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: blogstatsctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
