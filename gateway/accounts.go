package gateway

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"architex/core/types"
	"architex/native/arbitration"
	"architex/native/trust"
)

type accountView struct {
	ID           string   `json:"id"`
	Balance      *big.Int `json:"balance"`
	Stake        *big.Int `json:"stake"`
	VolumeTraded *big.Int `json:"volumeTraded"`
	Likes        uint64   `json:"likes"`
	DisputesLost uint64   `json:"disputesLost"`
	CreatedAt    int64    `json:"createdAt"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	account, err := s.state.GetAccount(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewAccount(id, account))
}

func viewAccount(id string, account *types.Account) accountView {
	return accountView{
		ID:           id,
		Balance:      account.Balance,
		Stake:        account.Stake,
		VolumeTraded: account.VolumeTraded,
		Likes:        account.Likes,
		DisputesLost: account.DisputesLost,
		CreatedAt:    account.CreatedAt,
	}
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// handleDeposit is the payment-gateway completion callback: a confirmed
// payment credits the account's spendable balance.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	account, err := s.escrow.Deposit(id, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("deposit credited", "account", id, "amount", amount.String())
	writeJSON(w, http.StatusOK, viewAccount(id, account))
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	account, err := s.escrow.Stake(id, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("stake locked", "account", id, "amount", amount.String())
	writeJSON(w, http.StatusOK, viewAccount(id, account))
}

func (s *Server) handleAccountInteractions(w http.ResponseWriter, r *http.Request) {
	records, err := s.state.InteractionsFor(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*arbitration.InteractionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type trustView struct {
	ID          string      `json:"id"`
	Score       int         `json:"score"`
	Level       trust.Level `json:"level"`
	Financial   float64     `json:"financial"`
	Reputation  float64     `json:"reputation"`
	History     float64     `json:"history"`
	Legal       float64     `json:"legal"`
	VotingPower *big.Int    `json:"votingPower"`
}

func (s *Server) handleTrustProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, err := s.state.TrustProfile(id)
	if err != nil {
		writeError(w, err)
		return
	}
	power, err := s.state.VotingPowerOf(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trustView{
		ID:          id,
		Score:       profile.Score,
		Level:       profile.Level,
		Financial:   profile.Financial,
		Reputation:  profile.Reputation,
		History:     profile.History,
		Legal:       profile.Legal,
		VotingPower: power,
	})
}
