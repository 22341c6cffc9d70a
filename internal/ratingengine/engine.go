// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratingengine implements the Bayesian pairwise-comparison update:
// given a LEFT/RIGHT/SKIP outcome and the current (mu, sigma) posteriors
// of the two images involved, it computes their next posteriors. Every
// function here is pure — no I/O, no global state, no randomness beyond
// what's passed in — so the rating store can wrap a call in a single
// transaction and the pairing engine can simulate updates without
// touching the database.
package ratingengine

import (
	"math"
	"math/rand/v2"

	"github.com/lensloop/selectrank/internal/config"
)

// Engine holds the tunables that shape the posterior update: initial and
// minimum uncertainty, the decay factor applied to sigma on a rated
// exposure, the K-factor's clamped range, and the skip-cooldown window.
type Engine struct {
	sigmaInitial    float64
	sigmaMin        float64
	sigmaDecay      float64
	kMin            float64
	kMax            float64
	skipCooldownMin int
	skipCooldownMax int
}

// New builds an Engine from the rating section of the loaded configuration.
func New(cfg config.RatingConfig) *Engine {
	return &Engine{
		sigmaInitial:    cfg.SigmaInitial,
		sigmaMin:        cfg.SigmaMin,
		sigmaDecay:      cfg.SigmaDecay,
		kMin:            cfg.KMin,
		kMax:            cfg.KMax,
		skipCooldownMin: cfg.SkipCooldownMin,
		skipCooldownMax: cfg.SkipCooldownMax,
	}
}

// InitialPosterior returns the (mu, sigma) assigned to an image the first
// time it is cataloged.
func (e *Engine) InitialPosterior() (mu, sigma float64) {
	return 1500, e.sigmaInitial
}

// Posterior is a single image's rating state as seen by the update math.
type Posterior struct {
	Mu    float64
	Sigma float64
}

// Update is the result of applying one comparison's outcome to both
// images' posteriors.
type Update struct {
	Left  Posterior
	Right Posterior
}

// expectedScore is the standard Elo expected-score function: the
// probability that Left beats Right given their current ratings.
func expectedScore(muLeft, muRight float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (muRight-muLeft)/400))
}

// kFactor scales the magnitude of a rating update by how uncertain the
// image's current posterior still is: a high-sigma image moves further
// per comparison than one the engine is already confident about. The
// result is clamped to [kMin, kMax].
func (e *Engine) kFactor(sigma float64) float64 {
	k := 24 * sigma / 350
	if k < e.kMin {
		return e.kMin
	}
	if k > e.kMax {
		return e.kMax
	}
	return k
}

// decayedSigma applies the per-exposure uncertainty decay, floored at
// sigmaMin.
func (e *Engine) decayedSigma(sigma float64) float64 {
	decayed := sigma * e.sigmaDecay
	if decayed < e.sigmaMin {
		return e.sigmaMin
	}
	return decayed
}

// ApplyLeft updates both posteriors for a LEFT outcome (left image chosen
// over right).
func (e *Engine) ApplyLeft(left, right Posterior) Update {
	return e.applyWin(left, right)
}

// ApplyRight updates both posteriors for a RIGHT outcome (right image
// chosen over left). It is the mirror of ApplyLeft with the two images
// swapped.
func (e *Engine) ApplyRight(left, right Posterior) Update {
	u := e.applyWin(right, left)
	return Update{Left: u.Right, Right: u.Left}
}

// applyWin computes the shared win/lose update: winner moves up by
// k*(1-expected), loser moves down by the same amount scaled by its own
// K-factor, and both sigmas decay toward sigmaMin. Scores never diverge
// faster than their own K allows, so a confident, low-sigma image is hard
// to move even after a single surprising upset.
func (e *Engine) applyWin(winner, loser Posterior) Update {
	expectedWinner := expectedScore(winner.Mu, loser.Mu)
	expectedLoser := 1 - expectedWinner

	winnerMu := winner.Mu + e.kFactor(winner.Sigma)*(1-expectedWinner)
	loserMu := loser.Mu + e.kFactor(loser.Sigma)*(0-expectedLoser)

	return Update{
		Left:  Posterior{Mu: winnerMu, Sigma: e.decayedSigma(winner.Sigma)},
		Right: Posterior{Mu: loserMu, Sigma: e.decayedSigma(loser.Sigma)},
	}
}

// ApplySkip returns both posteriors unchanged: a SKIP carries no rating
// signal and sigma is not decayed, since the engine learned nothing about
// either image's relative strength.
func (e *Engine) ApplySkip(left, right Posterior) Update {
	return Update{Left: left, Right: right}
}

// SkipCooldown draws a uniformly random round offset in
// [skipCooldownMin, skipCooldownMax] added to the current round to set an
// image's NextEligibleRound after a SKIP.
func (e *Engine) SkipCooldown(rng *rand.Rand) int {
	span := e.skipCooldownMax - e.skipCooldownMin
	if span <= 0 {
		return e.skipCooldownMin
	}
	return e.skipCooldownMin + rng.IntN(span+1)
}
