package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"architex/native/arbitration"
	"architex/observability"
)

type disputeView struct {
	ID           string                  `json:"id"`
	ContractID   string                  `json:"contractId"`
	Initiator    string                  `json:"initiator"`
	Respondent   string                  `json:"respondent"`
	Reason       string                  `json:"reason,omitempty"`
	Status       string                  `json:"status"`
	ArbitratorID string                  `json:"arbitratorId,omitempty"`
	Evidence     []*arbitration.Evidence `json:"evidence,omitempty"`
	Ruling       *arbitration.Ruling     `json:"ruling,omitempty"`
	CreatedAt    int64                   `json:"createdAt"`
	UpdatedAt    int64                   `json:"updatedAt"`
}

func viewDispute(d *arbitration.Dispute) disputeView {
	return disputeView{
		ID:           d.ID,
		ContractID:   d.ContractID,
		Initiator:    d.Initiator,
		Respondent:   d.Respondent,
		Reason:       d.Reason,
		Status:       d.Status.String(),
		ArbitratorID: d.ArbitratorID,
		Evidence:     d.Evidence,
		Ruling:       d.Ruling,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type openDisputeRequest struct {
	ContractID string `json:"contractId"`
	Initiator  string `json:"initiator"`
	Reason     string `json:"reason,omitempty"`
}

func (s *Server) handleOpenDispute(w http.ResponseWriter, r *http.Request) {
	var req openDisputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dispute, err := s.disputes.Open(req.ContractID, req.Initiator, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.SettlementMetrics().DisputePhase("opened")
	s.log.Info("dispute opened", "dispute", dispute.ID, "contract", dispute.ContractID)
	writeJSON(w, http.StatusCreated, viewDispute(dispute))
}

func (s *Server) handleListDisputes(w http.ResponseWriter, _ *http.Request) {
	disputes, err := s.state.DisputeList()
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]disputeView, 0, len(disputes))
	for _, d := range disputes {
		views = append(views, viewDispute(d))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	dispute, err := s.disputes.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewDispute(dispute))
}

type evidenceRequest struct {
	Submitter   string `json:"submitter"`
	Description string `json:"description"`
	URI         string `json:"uri,omitempty"`
}

func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	var req evidenceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dispute, err := s.disputes.SubmitEvidence(chi.URLParam(r, "id"), req.Submitter, req.Description, req.URI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewDispute(dispute))
}

func (s *Server) handleEligibleArbitrators(w http.ResponseWriter, r *http.Request) {
	eligible, err := s.disputes.EligibleArbitrators(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eligible)
}

func (s *Server) handleAssignArbitrator(w http.ResponseWriter, r *http.Request) {
	dispute, err := s.disputes.AssignArbitrator(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	observability.SettlementMetrics().DisputePhase("assigned")
	writeJSON(w, http.StatusOK, viewDispute(dispute))
}

type resolveRequest struct {
	ArbitratorID   string `json:"arbitratorId"`
	Winner         string `json:"winner"`
	WinnerSplitBps uint32 `json:"winnerSplitBps"`
	Notes          string `json:"notes,omitempty"`
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dispute, err := s.disputes.Resolve(chi.URLParam(r, "id"), req.ArbitratorID, req.Winner, req.WinnerSplitBps, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.SettlementMetrics().DisputePhase("resolved")
	s.log.Info("dispute resolved", "dispute", dispute.ID, "winner", req.Winner)
	writeJSON(w, http.StatusOK, viewDispute(dispute))
}

type registerArbitratorRequest struct {
	ID              string `json:"id"`
	ReputationScore uint32 `json:"reputationScore"`
	Specialty       string `json:"specialty,omitempty"`
}

func (s *Server) handleRegisterArbitrator(w http.ResponseWriter, r *http.Request) {
	var req registerArbitratorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	profile := &arbitration.ArbitratorProfile{
		ID:              req.ID,
		ReputationScore: req.ReputationScore,
		Specialty:       req.Specialty,
	}
	if err := s.disputes.RegisterArbitrator(profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

type interactionRequest struct {
	Kind   string `json:"kind"`
	PartyA string `json:"partyA"`
	PartyB string `json:"partyB"`
}

func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.disputes.RecordInteraction(arbitration.InteractionKind(req.Kind), req.PartyA, req.PartyB); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}
