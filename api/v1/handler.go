package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"blogstats/internal/config"
	"blogstats/internal/events"
	"blogstats/internal/settings"
	"blogstats/internal/visitors"
)

const (
	errTrackFailed = "Failed to track page view"

	visitorCookieMaxAge = 365 * 24 * 60 * 60
)

// TrackRequest is the body of POST /api/analytics/track.
type TrackRequest struct {
	PagePath string `json:"pagePath"`
	PostID   *uint  `json:"postId"`
}

// TrackHandler records page views sent by the blog's pages.
type TrackHandler struct {
	settings *settings.Cache
}

func NewTrackHandler(settingsCache *settings.Cache) *TrackHandler {
	return &TrackHandler{settings: settingsCache}
}

// Create handles POST /api/analytics/track. Tracking must never break the
// visitor's page, so only a failing store write is reported as an error.
func (h *TrackHandler) Create(ctx *cartridge.Context) error {
	cfg := config.GetConfig()

	var params TrackRequest
	if err := json.Unmarshal(ctx.Body(), &params); err != nil {
		ctx.Logger.Debug("Ignoring malformed track request", slog.Any("error", err))
		return trackAccepted(ctx)
	}

	ip := getClientIP(ctx.Ctx)
	if excluded, err := h.settings.IsIPExcluded(ip); err != nil {
		ctx.Logger.Warn("Failed to check excluded IPs", slog.Any("error", err))
	} else if excluded {
		ctx.Logger.Debug("Skipping page view from excluded IP")
		return trackAccepted(ctx)
	}

	identity := visitors.ResolveVisitor(ctx.Cookies(visitors.CookieName), ip, cfg.IPHashSalt)
	userAgent := ctx.Get(fiber.HeaderUserAgent)

	client := events.ClassifyClient(events.ClientHeaders{
		UserAgent:      userAgent,
		CDNCountry:     ctx.Get("CF-IPCountry"),
		Country:        ctx.Get("X-Country"),
		AcceptLanguage: ctx.Get(fiber.HeaderAcceptLanguage),
		IPAddress:      ip,
	}, cfg.DefaultCountry)

	input := &events.PageViewInput{
		PagePath:  params.PagePath,
		PostID:    params.PostID,
		VisitorID: identity.VisitorID,
		IPHash:    identity.IPHash,
		UserAgent: userAgent,
		Referrer:  ctx.Get(fiber.HeaderReferer),
		Client:    client,
		Timestamp: time.Now().UTC(),
	}

	if err := events.RecordPageView(ctx.DBManager, ctx.Logger, input); err != nil {
		if errors.Is(err, events.ErrInvalidPageView) {
			ctx.Logger.Debug("Ignoring invalid page view", slog.Any("error", err))
			return trackAccepted(ctx)
		}
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": errTrackFailed,
		})
	}

	if identity.IsNew {
		ctx.Cookie(&fiber.Cookie{
			Name:     visitors.CookieName,
			Value:    identity.VisitorID,
			Path:     "/",
			MaxAge:   visitorCookieMaxAge,
			HTTPOnly: true,
			Secure:   cfg.IsProduction(),
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	return trackAccepted(ctx)
}

func trackAccepted(ctx *cartridge.Context) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}
