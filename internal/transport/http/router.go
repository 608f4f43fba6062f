package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/smartfix-api/internal/config"
	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/transport/http/handler"
	appmiddleware "github.com/smartfix-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds the application router. ctx bounds the lifetime of
// background helpers such as the rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	loadAccount := appmiddleware.LoadAccount(deps.Sessions)
	can := appmiddleware.RequirePermission

	// 5 requests/second, burst of 10, for credential and second-factor checks.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, cfg.TrustedProxies...)

	healthH := handler.NewHealthHandler(deps.Hub)
	sessionH := handler.NewSessionHandler(deps.Sessions)
	twoFactorH := handler.NewTwoFactorHandler(deps.TwoFactor)
	accountH := handler.NewAccountHandler(deps.Accounts)
	notifH := handler.NewNotificationHandler(deps.Notifications)
	jobH := handler.NewJobHandler(deps.Jobs)
	disputeH := handler.NewDisputeHandler(deps.Disputes)
	analyticsH := handler.NewAnalyticsHandler(deps.Analytics)
	wsH := handler.NewWSHandler(deps.JWTProvider, deps.Sessions, deps.Hub)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes ────────────────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/login", sessionH.Login)
		r.Get("/ws", wsH.Connect)

		// ── Authenticated, second factor may still be pending ────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw, loadAccount)

			r.Post("/auth/logout", sessionH.Logout)
			r.Get("/auth/session", sessionH.Current)

			r.Route("/2fa", func(r chi.Router) {
				r.Get("/status", twoFactorH.Status)
				r.With(sensitiveRL.Limit).Post("/enable", twoFactorH.Enable)
				r.With(sensitiveRL.Limit).Post("/verify", twoFactorH.Verify)
			})
		})

		// ── Authenticated and fully verified ─────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw, loadAccount, appmiddleware.RequireTwoFactor)

			r.Route("/2fa", func(r chi.Router) {
				r.Post("/setup", twoFactorH.Setup)
				r.With(sensitiveRL.Limit).Post("/disable", twoFactorH.Disable)
				r.With(sensitiveRL.Limit).Post("/backup-codes/regenerate", twoFactorH.RegenerateBackupCodes)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notifH.List)
				r.Get("/unread-count", notifH.UnreadCount)
				r.Put("/read-all", notifH.MarkAllRead)
				r.Put("/{id}/read", notifH.MarkRead)
				r.With(can(domain.ActionCreateNotification)).Post("/", notifH.Create)
				r.With(can(domain.ActionDeleteNotification)).Delete("/{id}", notifH.Delete)
				r.With(can(domain.ActionViewNotificationStat)).Get("/stats/overview", notifH.Stats)
				r.With(can(domain.ActionSweepNotifications)).Post("/sweep", notifH.Sweep)
			})

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/me", accountH.Me)
				r.Post("/me/avatar", accountH.UploadAvatar)
				r.With(sensitiveRL.Limit).Put("/me/password", accountH.ChangePassword)
				r.With(can(domain.ActionListAccounts)).Get("/", accountH.List)
				r.With(can(domain.ActionCreateAccount)).Post("/", accountH.Create)
				r.Get("/{id}", accountH.Get)
				r.Put("/{id}", accountH.Update)
				r.With(can(domain.ActionDeleteAccount)).Delete("/{id}", accountH.Delete)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.With(can(domain.ActionViewJobs)).Get("/", jobH.List)
				r.With(can(domain.ActionViewJobs)).Get("/stats/overview", jobH.Stats)
				r.With(can(domain.ActionViewJobs)).Get("/{id}", jobH.Get)
				r.With(can(domain.ActionManageJobs)).Post("/", jobH.Create)
				r.With(can(domain.ActionManageJobs)).Put("/{id}/status", jobH.UpdateStatus)
				r.With(can(domain.ActionManageJobs)).Put("/{id}/assign", jobH.Assign)
			})

			r.Route("/disputes", func(r chi.Router) {
				r.With(can(domain.ActionViewDisputes)).Get("/", disputeH.List)
				r.With(can(domain.ActionViewDisputes)).Get("/stats/overview", disputeH.Stats)
				r.With(can(domain.ActionViewDisputes)).Get("/{id}", disputeH.Get)
				r.With(can(domain.ActionManageDisputes)).Post("/", disputeH.Create)
				r.With(can(domain.ActionManageDisputes)).Put("/{id}/assign", disputeH.Assign)
				r.With(can(domain.ActionManageDisputes)).Post("/{id}/comments", disputeH.AddComment)
				r.With(can(domain.ActionManageDisputes)).Put("/{id}/resolve", disputeH.Resolve)
				r.With(can(domain.ActionManageDisputes)).Put("/{id}/escalate", disputeH.Escalate)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Use(can(domain.ActionViewAnalytics))
				r.Get("/overview", analyticsH.Overview)
				r.Get("/trends", analyticsH.Trends)
				r.Get("/performance", analyticsH.Performance)
				r.Get("/revenue", analyticsH.Revenue)
			})
		})
	})

	return r
}
