// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session is the single entry point the outer HTTP layer calls
// through: NextPair, RecordChoice, Progress, Reset. Coordinator owns the
// write lock that serializes every state-mutating operation so that
// "read posteriors -> select pair -> commit choice -> bump round" never
// interleaves with a concurrent writer, and owns the AppState ring
// buffers that back recency suppression and stability detection.
package session

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/lensloop/selectrank/internal/catalog"
	"github.com/lensloop/selectrank/internal/config"
	"github.com/lensloop/selectrank/internal/convergence"
	"github.com/lensloop/selectrank/internal/coreerr"
	"github.com/lensloop/selectrank/internal/corestate"
	"github.com/lensloop/selectrank/internal/logging"
	"github.com/lensloop/selectrank/internal/metrics"
	"github.com/lensloop/selectrank/internal/models"
	"github.com/lensloop/selectrank/internal/pairing"
	"github.com/lensloop/selectrank/internal/ratingengine"
	"github.com/lensloop/selectrank/internal/ratingstore"
	"github.com/lensloop/selectrank/internal/validation"
)

// recordChoiceRequest is the shape go-playground/validator checks before a
// RecordChoice call ever reaches the store: a malformed digest (wrong
// length, non-hex characters) is InputInvalid, distinct from a
// well-formed digest the catalog has simply never seen (UnknownDigest).
type recordChoiceRequest struct {
	Round   int    `validate:"gte=0"`
	Left    string `validate:"required,len=64,hexadecimal"`
	Right   string `validate:"required,len=64,hexadecimal"`
	Outcome string `validate:"required,oneof=LEFT RIGHT SKIP"`
}

// ChoiceCommittedTopic is the watermill topic a committed choice is
// published to after every commit. Nothing in this module subscribes to
// it; Progress computes its report on demand.
const ChoiceCommittedTopic = "choice.committed"

// Coordinator is the sole owner of AppState and the sole caller of the
// rating engine, pairing engine, and convergence detector's mutating
// paths. Catalog and Store are safe for independent concurrent read
// access; Coordinator's mutex serializes SetRoot, NextPair, RecordChoice,
// Progress and Reset alike, while FetchImage reads the catalog without it.
type Coordinator struct {
	mu sync.Mutex

	catalog             *catalog.Catalog
	store               *ratingstore.Store
	engine              *ratingengine.Engine
	selector            *pairing.Selector
	detector            *convergence.Detector
	strictMatch         bool
	recordChoiceTimeout time.Duration

	state *corestate.AppState
	rng   *rand.Rand

	publisher message.Publisher

	lastPair      models.Pair
	lastPairRound int
	haveLastPair  bool

	rootSet bool
}

// New builds a Coordinator over an already-open Catalog and Store. It
// loads any persisted AppState (round counter and ring buffers) so a
// restart resumes exactly where the previous process left off.
func New(ctx context.Context, cfg config.Config, cat *catalog.Catalog, store *ratingstore.Store, publisher message.Publisher) (*Coordinator, error) {
	state := corestate.NewAppState(cfg.Pairing.RecentImagesWindow, cfg.Pairing.RecentPairsWindow, cfg.Convergence.TopKHistoryWindow)

	if snapshot, _, found, err := store.LoadAppState(ctx); err != nil {
		return nil, err
	} else if found {
		if err := state.UnmarshalJSON(snapshot); err != nil {
			return nil, coreerr.Wrap(coreerr.CodeInputInvalid, "decode persisted app state", err)
		}
	}

	if publisher == nil {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	}

	return &Coordinator{
		catalog:             cat,
		store:               store,
		engine:              ratingengine.New(cfg.Rating),
		selector:            pairing.New(cfg.Pairing),
		detector:            convergence.New(cfg.Convergence),
		strictMatch:         cfg.Session.StrictPairMatch,
		recordChoiceTimeout: cfg.Session.RecordChoiceTimeout,
		state:               state,
		rng:                 rand.New(rand.NewPCG(1, 2)),
		publisher:           publisher,
		rootSet:             cfg.Catalog.Root != "",
	}, nil
}

// SetRoot scans root via the catalog and ensures a fresh (mu, sigma)
// record exists for every newly observed digest. It returns the total
// number of present images after the scan.
func (c *Coordinator) SetRoot(ctx context.Context, root string) (int, error) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)
	log.Debug().Msg("set_root entry")

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.catalog.Scan(ctx, root)
	if err != nil {
		return 0, err
	}
	metrics.RecordScan(result.Duration, result.Accepted, result.Skipped, result.Rejected, result.Reused)

	mu, sigma := c.engine.InitialPosterior()
	for _, digest := range result.NewDigests {
		if err := c.store.EnsureImage(ctx, digest, mu, sigma); err != nil {
			return 0, err
		}
	}

	c.rootSet = true
	log.Info().Int("accepted", result.Accepted).Int("skipped", result.Skipped).Int("rejected", result.Rejected).Msg("root directory scanned")
	return len(result.PresentDigests), nil
}

// FetchImage returns the filesystem path backing digest, for the outer
// layer to stream as raw bytes.
func (c *Coordinator) FetchImage(digest models.Digest) (string, error) {
	path, ok := c.catalog.Lookup(digest)
	if !ok {
		return "", coreerr.ErrUnknownDigest
	}
	return path, nil
}

// NextPairResult is the successful output of NextPair.
type NextPairResult struct {
	Round int
	Left  models.Digest
	Right models.Digest
}

// NextPair asks the pairing engine for the next pair to show, reading
// the current posteriors and recency state under the write lock so no
// concurrent RecordChoice can advance the round mid-selection.
func (c *Coordinator) NextPair(ctx context.Context) (NextPairResult, error) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)
	log.Debug().Msg("next_pair entry")

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.rootSet {
		return NextPairResult{}, coreerr.ErrNoDirectorySet
	}

	// No choice has committed since the last pair was handed out, so that
	// pair is still the one awaiting a decision.
	if c.haveLastPair && c.lastPairRound == c.state.Round {
		return NextPairResult{Round: c.state.Round, Left: c.lastPair.A, Right: c.lastPair.B}, nil
	}

	started := time.Now()

	images, err := c.store.AllImages(ctx)
	if err != nil {
		return NextPairResult{}, err
	}

	recency := pairing.RecencyView{
		RecentImages: c.state.RecentImages.Snapshot(),
		RecentPairs:  c.state.RecentPairs.Snapshot(),
	}

	pair, err := c.selector.NextPair(images, c.state.Round, recency, c.rng)
	if err != nil {
		return NextPairResult{}, err
	}
	metrics.RecordPairing(time.Since(started))

	c.state.RecentImages.Push(pair.A)
	c.state.RecentImages.Push(pair.B)
	c.state.RecentPairs.Push(pair)
	c.lastPair = pair
	c.lastPairRound = c.state.Round
	c.haveLastPair = true

	log.Info().Int("round", c.state.Round).Str("left", string(pair.A)).Str("right", string(pair.B)).Msg("pair selected")

	return NextPairResult{Round: c.state.Round, Left: pair.A, Right: pair.B}, nil
}

// RecordChoiceResult is the successful output of RecordChoice.
type RecordChoiceResult struct {
	Saved     bool
	NextRound int
}

// RecordChoice validates and applies one committed choice: it invokes
// the rating engine, commits both posteriors and the choice record in
// one transaction via the rating store, and advances the round counter.
// A rejected call leaves AppState and every posterior unchanged, so the
// same pair is shown again on the caller's next NextPair.
func (c *Coordinator) RecordChoice(ctx context.Context, round int, left, right models.Digest, outcome models.Outcome) (RecordChoiceResult, error) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)
	log.Debug().Int("round", round).Str("left", string(left)).Str("right", string(right)).Msg("record_choice entry")

	if verr := validation.ValidateStruct(&recordChoiceRequest{
		Round:   round,
		Left:    string(left),
		Right:   string(right),
		Outcome: string(outcome),
	}); verr != nil {
		return RecordChoiceResult{}, verr.ToCoreError()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if round != c.state.Round {
		log.Warn().Int("round", round).Int("current_round", c.state.Round).Msg("record_choice rejected: stale round")
		return RecordChoiceResult{}, coreerr.ErrStaleRound
	}
	if !outcome.Valid() {
		return RecordChoiceResult{}, coreerr.ErrInvalidOutcome
	}
	if left == right {
		return RecordChoiceResult{}, coreerr.New(coreerr.CodeInputInvalid, "left and right digest must differ")
	}
	if c.strictMatch {
		if !c.haveLastPair || c.lastPairRound != round || !(c.lastPair.Has(left) && c.lastPair.Has(right)) {
			log.Warn().Int("round", round).Msg("record_choice rejected: pair does not match last next_pair result")
			return RecordChoiceResult{}, coreerr.ErrDigestMismatch
		}
	}

	leftRec, found, err := c.store.GetImage(ctx, left)
	if err != nil {
		return RecordChoiceResult{}, err
	}
	if !found {
		return RecordChoiceResult{}, coreerr.ErrUnknownDigest
	}
	rightRec, found, err := c.store.GetImage(ctx, right)
	if err != nil {
		return RecordChoiceResult{}, err
	}
	if !found {
		return RecordChoiceResult{}, coreerr.ErrUnknownDigest
	}

	leftBefore := ratingengine.Posterior{Mu: leftRec.Mu, Sigma: leftRec.Sigma}
	rightBefore := ratingengine.Posterior{Mu: rightRec.Mu, Sigma: rightRec.Sigma}

	var update ratingengine.Update
	leftNextEligible, rightNextEligible := leftRec.NextEligibleRound, rightRec.NextEligibleRound
	switch outcome {
	case models.OutcomeLeft:
		update = c.engine.ApplyLeft(leftBefore, rightBefore)
	case models.OutcomeRight:
		update = c.engine.ApplyRight(leftBefore, rightBefore)
	case models.OutcomeSkip:
		update = c.engine.ApplySkip(leftBefore, rightBefore)
		leftNextEligible = round + c.engine.SkipCooldown(c.rng)
		rightNextEligible = round + c.engine.SkipCooldown(c.rng)
	}

	commitCtx := ctx
	if c.recordChoiceTimeout > 0 {
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(ctx, c.recordChoiceTimeout)
		defer cancel()
	}

	nextRound := round + 1
	err = c.store.CommitChoice(commitCtx, ratingstore.CommitInput{
		Round:                  round,
		NextRound:              nextRound,
		Left:                   left,
		Right:                  right,
		Outcome:                outcome,
		LeftBefore:             leftBefore,
		LeftAfter:              update.Left,
		RightBefore:            rightBefore,
		RightAfter:             update.Right,
		LeftNextEligibleRound:  leftNextEligible,
		RightNextEligibleRound: rightNextEligible,
	})
	if err != nil {
		return RecordChoiceResult{}, err
	}

	metrics.RecordChoice(string(outcome))
	metrics.SetCurrentRound(nextRound)

	c.state.Round = nextRound
	images, err := c.store.AllImages(ctx)
	if err == nil {
		c.state.TopKHistory.Push(c.detector.Rank(images))
	}
	if err := c.store.SaveAppState(ctx, nextRound, c.state); err != nil {
		log.Warn().Err(err).Msg("persist app state after commit")
	}

	log.Info().Int("round", nextRound).Str("outcome", string(outcome)).Msg("round advanced")

	c.publishChoiceCommitted(ctx, nextRound)

	return RecordChoiceResult{Saved: true, NextRound: nextRound}, nil
}

func (c *Coordinator) publishChoiceCommitted(ctx context.Context, round int) {
	if c.publisher == nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), []byte{})
	msg.Metadata.Set("round", strconv.Itoa(round))
	if err := c.publisher.Publish(ChoiceCommittedTopic, msg); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("publish choice committed event")
	}
}

// Progress reports the convergence detector's current metrics.
func (c *Coordinator) Progress(ctx context.Context) (models.ProgressReport, error) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	logging.Ctx(ctx).Debug().Msg("progress entry")

	c.mu.Lock()
	defer c.mu.Unlock()

	images, err := c.store.AllImages(ctx)
	if err != nil {
		return models.ProgressReport{}, err
	}
	report := c.detector.Report(images, c.state.TopKHistory.Snapshot())
	metrics.RecordConvergence(report.Progress, report.Coverage, report.Confidence, report.Stability, report.PortfolioReady)
	return report, nil
}

// Reset atomically clears all image posteriors, the choice log, and
// AppState. The catalog's filesystem-to-digest mapping is unaffected.
func (c *Coordinator) Reset(ctx context.Context) error {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)
	log.Debug().Msg("reset entry")

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Reset(ctx); err != nil {
		return err
	}
	c.state.Round = 0
	c.state.RecentImages.Reset()
	c.state.RecentPairs.Reset()
	c.state.TopKHistory.Reset()
	c.haveLastPair = false
	log.Info().Msg("session reset")
	return c.store.SaveAppState(ctx, 0, c.state)
}
