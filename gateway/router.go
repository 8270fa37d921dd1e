package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"architex/native/arbitration"
	"architex/native/escrow"
	"architex/native/governance"
	"architex/state"
)

// Server exposes the native engines over an HTTP JSON API.
type Server struct {
	escrow   *escrow.Engine
	disputes *arbitration.Engine
	gov      *governance.Engine
	state    *state.Manager
	auth     *Authenticator
	log      *slog.Logger
}

// Deps carries the wired engines and supporting services for the server.
type Deps struct {
	Escrow   *escrow.Engine
	Disputes *arbitration.Engine
	Gov      *governance.Engine
	State    *state.Manager
	Auth     *Authenticator
	Log      *slog.Logger
}

// NewServer assembles the API server from its dependencies.
func NewServer(deps Deps) *Server {
	logger := deps.Log
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		escrow:   deps.Escrow,
		disputes: deps.Disputes,
		gov:      deps.Gov,
		state:    deps.State,
		auth:     deps.Auth,
		log:      logger,
	}
}

// Router builds the chi routing tree: health and metrics are open, the v1
// API sits behind the optional HMAC authenticator.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware(s.auth))

		r.Route("/escrows", func(r chi.Router) {
			r.Post("/", s.handleCreateEscrow)
			r.Get("/{id}", s.handleGetEscrow)
			r.Post("/{id}/claim", s.handleClaimEscrow)
			r.Post("/{id}/submit", s.handleSubmitWork)
			r.Post("/{id}/release", s.handleReleaseFunds)
			r.Post("/{id}/milestones/{index}/release", s.handleReleaseMilestone)
			r.Post("/{id}/feedback", s.handleLeaveFeedback)
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", s.handleOpenDispute)
			r.Get("/", s.handleListDisputes)
			r.Get("/{id}", s.handleGetDispute)
			r.Post("/{id}/evidence", s.handleSubmitEvidence)
			r.Get("/{id}/arbitrators", s.handleEligibleArbitrators)
			r.Post("/{id}/assign", s.handleAssignArbitrator)
			r.Post("/{id}/resolve", s.handleResolveDispute)
		})

		r.Post("/arbitrators", s.handleRegisterArbitrator)
		r.Post("/interactions", s.handleRecordInteraction)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/{id}", s.handleGetAccount)
			r.Get("/{id}/trust", s.handleTrustProfile)
			r.Get("/{id}/interactions", s.handleAccountInteractions)
			r.Post("/{id}/deposits", s.handleDeposit)
			r.Post("/{id}/stake", s.handleStake)
		})

		r.Route("/governance/proposals", func(r chi.Router) {
			r.Post("/", s.handlePropose)
			r.Get("/", s.handleListProposals)
			r.Get("/{id}", s.handleGetProposal)
			r.Post("/{id}/votes", s.handleCastVote)
			r.Get("/{id}/votes", s.handleListVotes)
			r.Post("/{id}/finalize", s.handleFinalizeProposal)
			r.Post("/{id}/execute", s.handleExecuteProposal)
		})
	})

	return r
}
