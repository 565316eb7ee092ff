package handlers

import (
	"net/http"
	"time"

	"eventhub/approval"
	"eventhub/auth"
	"eventhub/identity"
	"eventhub/mail"
	"eventhub/metrics"
	"eventhub/middleware"
	"eventhub/response"
	"eventhub/session"
	"eventhub/tournament"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Broker   *auth.Broker
	Tokens   *session.Service
	Identity *identity.Store
	Gate     *approval.Gate
	Engine   *tournament.Engine

	// Mailer delivers best-effort notifications. Direct is used by the
	// notification endpoint, whose failures are reported to the caller.
	Mailer mail.Dispatcher
	Direct mail.Dispatcher

	Realtime http.Handler
	Counter  ActiveCounter
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	CORSOrigins   []string
	SecureCookie  bool
	LegacyLogin   bool
	RequestBudget time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RequestBudget <= 0 {
		d.RequestBudget = 30 * time.Second
	}

	authHandler := NewAuthHandler(d.Broker, d.Tokens.TTL(), d.SecureCookie, d.LegacyLogin, d.Logger.Named("http.auth"))
	approvalHandler := NewApprovalHandler(d.Gate, d.Mailer)
	registrationHandler := NewRegistrationHandler(d.Identity, d.Mailer, d.Logger.Named("http.registration"))
	tournamentHandler := NewTournamentHandler(d.Engine)
	exportHandler := NewExportHandler(d.Identity, d.Engine)
	notificationHandler := NewNotificationHandler(d.Direct)
	statsHandler := NewStatsHandler(d.Counter)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(chimiddleware.Recoverer)
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware)
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		router.Handle("/metrics", d.Metrics.Handler())
	}
	if d.Realtime != nil {
		router.Handle("/ws", d.Realtime)
	}

	authenticate := middleware.Authenticate(d.Tokens, d.Broker)

	router.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(d.RequestBudget))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/signup", authHandler.Signup)
			r.Post("/google", authHandler.Google)
			r.Post("/otp/request", authHandler.RequestOTP)
			r.Post("/otp/resend", authHandler.ResendOTP)
			r.Post("/otp/verify", authHandler.VerifyOTP)
			r.Post("/email-login", authHandler.EmailLogin)
			r.Post("/logout", authHandler.Logout)
			r.With(authenticate, middleware.Require(middleware.AnyRole)).Get("/me", authHandler.Me)
		})

		// Public reads
		r.Get("/players", registrationHandler.ListPlayers)
		r.Get("/food", registrationHandler.ListFood)
		r.Get("/committee", registrationHandler.ListCommittee)
		r.Get("/teams", tournamentHandler.ListTeams)
		r.Get("/tournaments", tournamentHandler.List)
		r.Get("/tournaments/{id}", tournamentHandler.Get)
		r.Get("/tournaments/{id}/standings", tournamentHandler.Standings)
		r.Get("/tournaments/{id}/standings.csv", exportHandler.StandingsCSV)
		r.Get("/tournaments/{id}/matches", tournamentHandler.Matches)
		r.Get("/stats/active", statsHandler.Active)

		// Event staff
		r.Group(func(r chi.Router) {
			r.Use(authenticate, middleware.Require(middleware.Staff))
			r.Post("/committee/{id}/checkin", registrationHandler.CheckIn)
			r.Post("/food/{id}/collect", registrationHandler.Collect)
			r.Get("/food/summary", registrationHandler.FoodSummary)
			r.Get("/food/export.csv", exportHandler.FoodCSV)
			r.Patch("/matches/{id}", tournamentHandler.UpdateMatch)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate, middleware.Require(middleware.SuperAdmin))

			r.Get("/approvals/requests", approvalHandler.ListRequests)
			r.Get("/approvals/history", approvalHandler.History)
			r.Get("/approvals/users", approvalHandler.ListPendingUsers)
			r.Post("/approvals/requests/{id}/approve", approvalHandler.ApproveRequest)
			r.Post("/approvals/requests/{id}/reject", approvalHandler.RejectRequest)
			r.Post("/approvals/users/{id}/approve", approvalHandler.ApproveUser)
			r.Post("/approvals/users/{id}/reject", approvalHandler.RejectUser)

			r.Post("/players/import", registrationHandler.ImportPlayers)
			r.Post("/food/import", registrationHandler.ImportFood)
			r.Post("/committee/import", registrationHandler.ImportCommittee)
			r.Put("/players/{id}/team", registrationHandler.AssignTeam)

			r.Post("/teams", tournamentHandler.CreateTeam)
			r.Post("/tournaments", tournamentHandler.Create)
			r.Delete("/tournaments/{id}", tournamentHandler.Delete)
			r.Post("/tournaments/{id}/teams", tournamentHandler.AddTeam)
			r.Post("/tournaments/{id}/generate-matches", tournamentHandler.GenerateMatches)
			r.Post("/tournaments/{id}/matches/{matchId}/result", tournamentHandler.RecordResult)

			r.Post("/notifications/email", notificationHandler.SendEmail)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, http.StatusNotFound, "route not found")
	})
	return router
}
