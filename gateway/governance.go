package gateway

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"architex/native/governance"
	"architex/observability"
)

type proposalView struct {
	ID            uint64   `json:"id"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary,omitempty"`
	Creator       string   `json:"creator"`
	Status        string   `json:"status"`
	VotesFor      *big.Int `json:"votesFor"`
	VotesAgainst  *big.Int `json:"votesAgainst"`
	QuorumReached bool     `json:"quorumReached"`
	VotingStart   int64    `json:"votingStart"`
	VotingEnd     int64    `json:"votingEnd"`
}

func viewProposal(p *governance.Proposal) proposalView {
	return proposalView{
		ID:            p.ID,
		Title:         p.Title,
		Summary:       p.Summary,
		Creator:       p.Creator,
		Status:        p.Status.String(),
		VotesFor:      p.VotesFor,
		VotesAgainst:  p.VotesAgainst,
		QuorumReached: p.QuorumReached,
		VotingStart:   p.VotingStart,
		VotingEnd:     p.VotingEnd,
	}
}

func proposalID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id: %w", err)
	}
	return id, nil
}

type proposeRequest struct {
	Creator string `json:"creator"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	power, err := s.state.VotingPowerOf(req.Creator)
	if err != nil {
		writeError(w, err)
		return
	}
	proposal, err := s.gov.Propose(req.Creator, req.Title, req.Summary, power)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("proposal created", "proposal", proposal.ID, "creator", proposal.Creator)
	writeJSON(w, http.StatusCreated, viewProposal(proposal))
}

func (s *Server) handleListProposals(w http.ResponseWriter, _ *http.Request) {
	proposals, err := s.state.ProposalList()
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]proposalView, 0, len(proposals))
	for _, p := range proposals {
		views = append(views, viewProposal(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	proposal, err := s.gov.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProposal(proposal))
}

type voteRequest struct {
	Voter   string `json:"voter"`
	Support bool   `json:"support"`
}

type voteView struct {
	Voter     string   `json:"voter"`
	Support   bool     `json:"support"`
	Power     *big.Int `json:"power"`
	Timestamp int64    `json:"timestamp"`
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	votes, err := s.state.VoteList(id)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]voteView, 0, len(votes))
	for _, vote := range votes {
		views = append(views, voteView{
			Voter:     vote.Voter,
			Support:   vote.Support,
			Power:     vote.Power,
			Timestamp: vote.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	power, err := s.state.VotingPowerOf(req.Voter)
	if err != nil {
		writeError(w, err)
		return
	}
	proposal, err := s.gov.CastVote(id, req.Voter, req.Support, power)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProposal(proposal))
}

func (s *Server) handleFinalizeProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	proposal, tally, err := s.gov.Finalize(id)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.SettlementMetrics().ProposalFinalized(proposal.Status.String())
	s.log.Info("proposal finalized", "proposal", proposal.ID, "status", proposal.Status.String())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposal": viewProposal(proposal),
		"tally":    tally,
	})
}

func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	proposal, err := s.gov.Execute(id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("proposal executed", "proposal", proposal.ID)
	writeJSON(w, http.StatusOK, viewProposal(proposal))
}
