package gateway

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"architex/native/escrow"
	"architex/native/settlement"
	"architex/observability"
)

type milestoneView struct {
	Name       string   `json:"name"`
	ShareBps   uint32   `json:"shareBps"`
	Amount     *big.Int `json:"amount"`
	Status     string   `json:"status"`
	ReleasedAt int64    `json:"releasedAt,omitempty"`
}

type contractView struct {
	ID         string          `json:"id"`
	Client     string          `json:"client"`
	Provider   string          `json:"provider,omitempty"`
	Amount     *big.Int        `json:"amount"`
	Remaining  *big.Int        `json:"remaining"`
	FeeBps     uint32          `json:"feeBps"`
	Status     string          `json:"status"`
	Milestones []milestoneView `json:"milestones,omitempty"`
	Memo       string          `json:"memo,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	FeedbackBy []string        `json:"feedbackBy,omitempty"`
	CreatedAt  int64           `json:"createdAt"`
	UpdatedAt  int64           `json:"updatedAt"`
}

type releaseView struct {
	Contract contractView `json:"contract"`
	Amount   *big.Int     `json:"amount"`
	Fee      *big.Int     `json:"fee"`
	Payout   *big.Int     `json:"payout"`
}

func viewContract(c *escrow.Contract) contractView {
	view := contractView{
		ID:         c.ID,
		Client:     c.Client,
		Provider:   c.Provider,
		Amount:     c.Amount,
		Remaining:  c.Remaining,
		FeeBps:     c.FeeBps,
		Status:     c.Status.String(),
		Memo:       c.Memo,
		Reason:     c.Reason,
		FeedbackBy: c.FeedbackBy,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, m := range c.Milestones {
		view.Milestones = append(view.Milestones, milestoneView{
			Name:       m.Name,
			ShareBps:   m.ShareBps,
			Amount:     m.Amount,
			Status:     m.Status.String(),
			ReleasedAt: m.ReleasedAt,
		})
	}
	return view
}

func viewRelease(c *escrow.Contract, split settlement.Split) releaseView {
	return releaseView{
		Contract: viewContract(c),
		Amount:   split.Amount,
		Fee:      split.Fee,
		Payout:   split.Payout,
	}
}

type createEscrowRequest struct {
	ID        string `json:"id,omitempty"`
	Client    string `json:"client"`
	Provider  string `json:"provider,omitempty"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo,omitempty"`
	Reference string `json:"reference,omitempty"`
	B2B       bool   `json:"b2b,omitempty"`
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func decodeBody(r *http.Request, out interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleCreateEscrow(w http.ResponseWriter, r *http.Request) {
	var req createEscrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		// No caller-chosen id: derive one from the parties and reference so
		// a resubmitted request maps onto the existing contract.
		reference := req.Reference
		if reference == "" {
			reference = req.Memo
		}
		id = escrow.ComputeID(req.Client, req.Provider, reference)
	}
	contract, err := s.escrow.Create(escrow.CreateParams{
		ID:       id,
		Client:   req.Client,
		Provider: req.Provider,
		Amount:   amount,
		Memo:     req.Memo,
		B2B:      req.B2B,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	kind := "simple"
	if len(contract.Milestones) > 0 {
		kind = "milestone"
	}
	observability.SettlementMetrics().ContractCreated(kind)
	s.log.Info("escrow created", "contract", contract.ID, "kind", kind)
	writeJSON(w, http.StatusCreated, viewContract(contract))
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	contract, err := s.escrow.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewContract(contract))
}

type partyRequest struct {
	Provider string `json:"provider"`
}

func (s *Server) handleClaimEscrow(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	contract, err := s.escrow.Claim(chi.URLParam(r, "id"), req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewContract(contract))
}

func (s *Server) handleSubmitWork(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	contract, err := s.escrow.SubmitWork(chi.URLParam(r, "id"), req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewContract(contract))
}

func (s *Server) handleReleaseFunds(w http.ResponseWriter, r *http.Request) {
	contract, split, err := s.escrow.ReleaseFunds(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	recordRelease(split)
	s.log.Info("escrow released", "contract", contract.ID, "payout", split.Payout.String())
	writeJSON(w, http.StatusOK, viewRelease(contract, split))
}

func (s *Server) handleReleaseMilestone(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, fmt.Errorf("invalid milestone index: %w", err))
		return
	}
	contract, split, err := s.escrow.ReleaseMilestone(chi.URLParam(r, "id"), index)
	if err != nil {
		writeError(w, err)
		return
	}
	recordRelease(split)
	s.log.Info("milestone released", "contract", contract.ID, "index", index, "payout", split.Payout.String())
	writeJSON(w, http.StatusOK, viewRelease(contract, split))
}

type feedbackRequest struct {
	From string `json:"from"`
}

func (s *Server) handleLeaveFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	contract, err := s.escrow.LeaveFeedback(chi.URLParam(r, "id"), req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewContract(contract))
}

func recordRelease(split settlement.Split) {
	fee := 0.0
	if split.Fee != nil {
		feeFloat, _ := new(big.Float).SetInt(split.Fee).Float64()
		fee = feeFloat
	}
	observability.SettlementMetrics().ReleaseApplied(fee)
}
