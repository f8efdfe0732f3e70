/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package round

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Seednode/streetguess/catalog"
)

type startResult struct {
	started *Started
	err     error
}

type startRequest struct {
	ctx   context.Context
	mode  catalog.Mode
	reply chan startResult
}

type acquireResult struct {
	roundID     string
	acquisition Acquisition
	err         error
}

type guessRequest struct {
	guess Guess
	reply chan Outcome
}

type anchorRequest struct {
	roundID   string
	messageID string
}

type resetRequest struct {
	reply chan bool
}

type snapshotRequest struct {
	reply chan Round
}

// Machine owns the round. Every transition happens on the goroutine running
// Run, so concurrent callers are served one at a time in arrival order.
type Machine struct {
	acquirer Acquirer
	ledger   Ledger
	saver    Saver
	scorer   Scorer
	logger   *zap.Logger
	newID    func() string

	starts    chan startRequest
	acquired  chan acquireResult
	guesses   chan guessRequest
	anchors   chan anchorRequest
	resets    chan resetRequest
	snapshots chan snapshotRequest
	done      chan struct{}

	// Only touched by the Run goroutine.
	round    Round
	pending  *startRequest
	inFlight bool
}

type Option func(*Machine)

func WithScorer(s Scorer) Option {
	return func(m *Machine) { m.scorer = s }
}

// WithSaver persists the ledger after every change made by the machine.
func WithSaver(s Saver) Option {
	return func(m *Machine) { m.saver = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithIDs overrides how round IDs are generated.
func WithIDs(f func() string) Option {
	return func(m *Machine) { m.newID = f }
}

func NewMachine(acquirer Acquirer, ledger Ledger, opts ...Option) *Machine {
	m := &Machine{
		acquirer:  acquirer,
		ledger:    ledger,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
		starts:    make(chan startRequest),
		acquired:  make(chan acquireResult, 1),
		guesses:   make(chan guessRequest),
		anchors:   make(chan anchorRequest),
		resets:    make(chan resetRequest),
		snapshots: make(chan snapshotRequest),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run processes requests until ctx is done. An acquisition still in flight
// at that point is waited for and its artifact removed.
func (m *Machine) Run(ctx context.Context) error {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.drain()
			return ctx.Err()

		case req := <-m.starts:
			m.handleStart(ctx, req)

		case res := <-m.acquired:
			m.handleAcquired(res)

		case req := <-m.guesses:
			req.reply <- m.handleGuess(req.guess)

		case req := <-m.anchors:
			m.handleAnchor(req)

		case req := <-m.resets:
			req.reply <- m.handleReset()

		case req := <-m.snapshots:
			req.reply <- m.snapshot()
		}
	}
}

// Start begins a round for mode and blocks until its image is acquired.
func (m *Machine) Start(ctx context.Context, mode catalog.Mode) (*Started, error) {
	req := startRequest{ctx: ctx, mode: mode, reply: make(chan startResult)}

	select {
	case m.starts <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrStopped
	}

	select {
	case res := <-req.reply:
		return res.started, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrStopped
	}
}

// SubmitGuess scores a guess against the active round. The guess is
// applied even if ctx ends before the outcome is delivered.
func (m *Machine) SubmitGuess(ctx context.Context, g Guess) (Outcome, error) {
	req := guessRequest{guess: g, reply: make(chan Outcome, 1)}

	if err := send(ctx, m.done, m.guesses, req); err != nil {
		return Outcome{}, err
	}

	return receive(ctx, m.done, req.reply)
}

// Anchor records the message a round was published as.
func (m *Machine) Anchor(ctx context.Context, roundID, messageID string) error {
	return send(ctx, m.done, m.anchors, anchorRequest{roundID: roundID, messageID: messageID})
}

// ResetAll zeroes the ledger and aborts the current round. It reports
// whether a round was aborted.
func (m *Machine) ResetAll(ctx context.Context) (bool, error) {
	req := resetRequest{reply: make(chan bool, 1)}

	if err := send(ctx, m.done, m.resets, req); err != nil {
		return false, err
	}

	return receive(ctx, m.done, req.reply)
}

// Current returns a snapshot of the round.
func (m *Machine) Current(ctx context.Context) (Round, error) {
	req := snapshotRequest{reply: make(chan Round, 1)}

	if err := send(ctx, m.done, m.snapshots, req); err != nil {
		return Round{}, err
	}

	return receive(ctx, m.done, req.reply)
}

func send[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrStopped
	}
}

func receive[T any](ctx context.Context, done <-chan struct{}, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		return zero, ErrStopped
	}
}

func (m *Machine) handleStart(ctx context.Context, req startRequest) {
	if m.round.State != Idle {
		m.replyStart(req, startResult{err: fmt.Errorf("%w: %s round is %s", ErrRoundAlreadyActive, m.round.Mode, m.round.State)})
		return
	}

	id := m.newID()
	m.round = Round{ID: id, Mode: req.mode, State: Acquiring}
	m.pending = &req
	m.inFlight = true

	m.logger.Info("acquiring round", zap.String("round", id), zap.String("mode", string(req.mode)))

	go func() {
		acq, err := m.acquirer.Acquire(ctx, req.mode, id)
		m.acquired <- acquireResult{roundID: id, acquisition: acq, err: err}
	}()
}

func (m *Machine) handleAcquired(res acquireResult) {
	m.inFlight = false
	req := m.pending
	m.pending = nil

	logger := m.logger.With(zap.String("round", res.roundID))

	fail := func(err error) {
		m.removeArtifact(res.acquisition.ArtifactPath)
		if m.round.ID == res.roundID {
			m.round.State = Aborted
			m.round = Round{}
		}
		if req != nil {
			m.replyStart(*req, startResult{err: err})
		}
	}

	switch {
	case m.round.ID != res.roundID || m.round.State != Acquiring:
		logger.Info("discarding acquisition for aborted round")
		fail(fmt.Errorf("%w: reset during acquisition", ErrRoundAborted))
		return

	case res.err != nil:
		logger.Warn("acquisition failed", zap.Error(res.err))
		fail(acquisitionError(res.err))
		return
	}

	answers := normalizeAnswers(res.acquisition.Candidate.Answers)
	if len(answers) == 0 {
		logger.Warn("candidate has no answers", zap.String("reference", res.acquisition.Candidate.Reference))
		fail(fmt.Errorf("%w: %w", ErrAcquisitionFailed, ErrNoAnswers))
		return
	}

	c := res.acquisition.Candidate
	m.round.Answers = answers
	m.round.Label = c.Label
	m.round.Reference = c.Reference
	m.round.State = Active

	started := &Started{
		RoundID:      m.round.ID,
		Mode:         m.round.Mode,
		ArtifactPath: res.acquisition.ArtifactPath,
		Label:        c.Label,
		Reference:    c.Reference,
	}

	if req == nil || !m.replyStart(*req, startResult{started: started}) {
		logger.Info("start request abandoned, aborting round")
		m.removeArtifact(res.acquisition.ArtifactPath)
		m.round = Round{}
		return
	}

	logger.Info("round active",
		zap.String("mode", string(m.round.Mode)),
		zap.Strings("answers", answers))
}

// replyStart hands a result to a waiting Start call. It returns false if
// the caller gave up first.
func (m *Machine) replyStart(req startRequest, res startResult) bool {
	select {
	case req.reply <- res:
		return true
	case <-req.ctx.Done():
		return false
	}
}

func (m *Machine) handleGuess(g Guess) Outcome {
	if m.round.State != Active {
		return Outcome{Ignored: true}
	}

	points, rank := m.scorer.Score(g.Text, m.round.Answers)
	out := Outcome{
		RoundID:   m.round.ID,
		Mode:      m.round.Mode,
		Identity:  g.Identity,
		Points:    points,
		Rank:      rank,
		Replied:   g.ReplyTo != "" && g.ReplyTo == m.round.AnchorID,
		Label:     m.round.Label,
		Reference: m.round.Reference,
	}

	if points == 0 {
		out.Label, out.Reference = "", ""
		out.Warning = m.scorer.Warn(g.Text)
		return out
	}

	if err := m.ledger.Credit(m.round.Mode, g.Identity, points); err != nil {
		m.logger.Error("crediting winner", zap.String("round", m.round.ID), zap.Error(err))
	}
	m.save()

	m.round.Winner = g.Identity
	m.round.State = Resolved
	out.Won = true

	m.logger.Info("round resolved",
		zap.String("round", m.round.ID),
		zap.String("winner", g.Identity),
		zap.Int("points", points))

	m.round = Round{}

	return out
}

func (m *Machine) handleAnchor(req anchorRequest) {
	if m.round.State != Active || m.round.ID != req.roundID {
		return
	}
	m.round.AnchorID = req.messageID
}

func (m *Machine) handleReset() bool {
	m.ledger.ResetAll()
	m.save()

	switch m.round.State {
	case Active:
		m.logger.Info("reset aborted active round", zap.String("round", m.round.ID))
		m.round.State = Aborted
		m.round = Round{}
		return true
	case Acquiring:
		// The pipeline cannot be interrupted; the round stays Aborted until
		// its result arrives and is discarded.
		m.logger.Info("reset aborted acquiring round", zap.String("round", m.round.ID))
		m.round.State = Aborted
		return true
	}

	return false
}

func (m *Machine) snapshot() Round {
	r := m.round
	r.Answers = append([]string(nil), m.round.Answers...)
	return r
}

// drain waits for an in-flight acquisition during shutdown.
func (m *Machine) drain() {
	if !m.inFlight {
		return
	}
	res := <-m.acquired
	m.inFlight = false
	m.pending = nil
	m.removeArtifact(res.acquisition.ArtifactPath)
	m.round = Round{}
}

func (m *Machine) save() {
	if m.saver == nil {
		return
	}
	if err := m.saver.Save(m.ledger.Export()); err != nil {
		m.logger.Error("saving scores", zap.Error(err))
	}
}

func (m *Machine) removeArtifact(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("removing artifact", zap.String("path", path), zap.Error(err))
	}
}

func acquisitionError(err error) error {
	if errors.Is(err, ErrAcquisitionFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
}

func normalizeAnswers(answers []string) []string {
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			out = append(out, a)
		}
	}
	return out
}
