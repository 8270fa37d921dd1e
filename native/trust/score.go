package trust

import (
	"math"
	"math/big"
)

// Composite weighting and banding constants. The trust model is a fixed
// business rule; every cut-point lives in this block so a policy change
// touches exactly one place.
const (
	financialWeight  = 0.4
	reputationWeight = 0.4
	historyWeight    = 0.1
	legalWeight      = 0.1

	volumeWeight = 0.6
	stakeWeight  = 0.4

	// volumeFullScore is the traded volume at which the volume component
	// saturates.
	volumeFullScore = 500
	// stakeFullScore is the staked amount at which the stake component
	// saturates.
	stakeFullScore = 1_000
	// historyFullScoreDays is the account age at which history saturates.
	historyFullScoreDays = 365
	// disputePenalty is deducted from legal standing per lost dispute.
	disputePenalty = 25

	// scoreVotingMultiplier converts trust score into voting power units.
	scoreVotingMultiplier = 10
)

// Level bands a trust score into the marketplace's access tiers.
type Level string

const (
	LevelAuthority Level = "authority"
	LevelTrusted   Level = "trusted"
	LevelAssociate Level = "associate"
	LevelNovice    Level = "novice"
)

const (
	authorityFloor = 90
	trustedFloor   = 70
	associateFloor = 40
)

// Stats carries the raw activity counters a trust profile is derived from.
// Profiles are recomputed on demand; nothing here is persisted as a score.
type Stats struct {
	VolumeTraded   *big.Int
	Staked         *big.Int
	LikesReceived  uint64
	AccountAgeDays uint64
	DisputesLost   uint64
}

// Profile is the derived composite. Score is always within [0, 100].
type Profile struct {
	Financial  float64
	Reputation float64
	History    float64
	Legal      float64
	Score      int
	Level      Level
}

// saturating maps value/full onto [0, 100].
func saturating(value *big.Int, full int64) float64 {
	if value == nil || value.Sign() <= 0 {
		return 0
	}
	if value.Cmp(big.NewInt(full)) >= 0 {
		return 100
	}
	// value < full here, so the conversion is exact.
	return float64(value.Int64()) / float64(full) * 100
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Compute derives the trust profile for the supplied stats. Negative inputs
// are treated as zero; the resulting score is banded into a level.
func Compute(stats Stats) Profile {
	financial := volumeWeight*saturating(stats.VolumeTraded, volumeFullScore) +
		stakeWeight*saturating(stats.Staked, stakeFullScore)
	reputation := clamp(float64(stats.LikesReceived))
	history := clamp(float64(stats.AccountAgeDays) / historyFullScoreDays * 100)
	legal := clamp(100 - float64(stats.DisputesLost)*disputePenalty)

	score := int(math.Round(financialWeight*financial +
		reputationWeight*reputation +
		historyWeight*history +
		legalWeight*legal))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return Profile{
		Financial:  financial,
		Reputation: reputation,
		History:    history,
		Legal:      legal,
		Score:      score,
		Level:      LevelFor(score),
	}
}

// LevelFor bands a score into its access tier.
func LevelFor(score int) Level {
	switch {
	case score >= authorityFloor:
		return LevelAuthority
	case score >= trustedFloor:
		return LevelTrusted
	case score >= associateFloor:
		return LevelAssociate
	default:
		return LevelNovice
	}
}

// VotingPower derives governance voting power from staked funds and the
// computed trust score.
func VotingPower(staked *big.Int, score int) *big.Int {
	power := big.NewInt(0)
	if staked != nil && staked.Sign() > 0 {
		power.Set(staked)
	}
	if score > 0 {
		power.Add(power, big.NewInt(int64(score)*scoreVotingMultiplier))
	}
	return power
}
