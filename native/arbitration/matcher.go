package arbitration

import "sort"

// MinArbitratorReputation is the reputation floor below which an arbitrator
// is never matched to a case.
const MinArbitratorReputation uint32 = 80

// ConflictChecker reports whether a prior interaction exists between two
// parties. The ledger backs this with a participant-pair index, so each
// probe is a single keyed lookup rather than a scan of the record list.
type ConflictChecker interface {
	HasInteraction(a, b string) (bool, error)
}

// FindEligibleArbitrators filters and orders the candidate pool for a
// dispute. Candidates with any recorded interaction with either party are
// excluded, as are those below the reputation floor. The remainder is
// ordered by reputation descending; ties keep their insertion order.
func FindEligibleArbitrators(dispute *Dispute, candidates []*ArbitratorProfile, coi ConflictChecker) ([]*ArbitratorProfile, error) {
	if dispute == nil {
		return nil, ErrDisputeNotFound
	}
	eligible := make([]*ArbitratorProfile, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil || candidate.ID == "" {
			continue
		}
		if candidate.ID == dispute.Initiator || candidate.ID == dispute.Respondent {
			continue
		}
		if candidate.ReputationScore < MinArbitratorReputation {
			continue
		}
		if coi != nil {
			conflicted, err := coi.HasInteraction(candidate.ID, dispute.Initiator)
			if err != nil {
				return nil, err
			}
			if !conflicted && dispute.Respondent != "" {
				conflicted, err = coi.HasInteraction(candidate.ID, dispute.Respondent)
				if err != nil {
					return nil, err
				}
			}
			if conflicted {
				continue
			}
		}
		eligible = append(eligible, candidate.Clone())
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].ReputationScore > eligible[j].ReputationScore
	})
	return eligible, nil
}
