// Package game implements the round engine: it turns wagers into
// seeded, reproducible outcomes and drives each round's state machine
// from start to settlement. Balances live behind the Ledger interface
// and the engine only ever reports monetary deltas.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexbotov/roundengine/internal/audit"
	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/rng"
)

var (
	ErrRoundNotFound      = errors.New("round not found")
	ErrGameNotActive      = errors.New("round is not active")
	ErrInvalidCoordinates = errors.New("coordinates outside the grid")
	ErrAlreadyRevealed    = errors.New("cell already revealed")
	ErrPowerUpAlreadyUsed = errors.New("power-up already used this round")
	ErrUnknownPowerUp     = errors.New("unknown power-up type")
	ErrUnknownDifficulty  = errors.New("unknown difficulty")
	ErrInvalidWager       = errors.New("invalid wager amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrWrongMode          = errors.New("operation not supported in this round mode")
)

// Ledger is the account boundary. Implementations must make Debit
// atomic against the balance and return ErrInsufficientFunds (wrapped
// or bare) when the balance cannot cover the amount. Amounts are cents
// and always positive.
type Ledger interface {
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
}

// RoundStore persists active rounds. Load must return a copy the
// caller owns outright and an error satisfying ErrRoundNotFound for
// unknown IDs.
type RoundStore interface {
	Save(ctx context.Context, r *domain.Round) error
	Load(ctx context.Context, roundID string) (*domain.Round, error)
	Delete(ctx context.Context, roundID string) error
}

// EventSink receives outcome events after settled spins and terminal
// transitions. Publish must not block round handling.
type EventSink interface {
	Publish(event domain.OutcomeEvent)
}

// MultiSink fans one outcome event out to several sinks.
type MultiSink []EventSink

func (m MultiSink) Publish(event domain.OutcomeEvent) {
	for _, s := range m {
		s.Publish(event)
	}
}

// JackpotPool is the progressive pool shared across all reel sessions.
type JackpotPool interface {
	Contribute(wager int64) int64
	TryAward() (int64, bool)
	Amount() int64
}

// JackpotRecorder persists jackpot awards for the regulatory record.
type JackpotRecorder interface {
	RecordAward(ctx context.Context, roundID, userID string, amount int64) error
}

// AuditLogger is the audit trail; *audit.Service satisfies it.
type AuditLogger interface {
	Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...audit.EventOption) error
}

// Gate lets operations disable round starts, and lets the engine trip
// the gate itself on a fatal fault such as entropy loss.
type Gate interface {
	Check() error
	Trip(ctx context.Context, reason string)
}

// Engine drives grid rounds and reel sessions.
type Engine struct {
	rng    *rng.Service
	tables *config.Tables
	rounds RoundStore
	ledger Ledger
	pool   JackpotPool
	audit  AuditLogger
	cfg    *config.GameConfig

	sink   EventSink       // optional
	gate   Gate            // optional
	awards JackpotRecorder // optional
	locks  *roundLocks
}

// New creates a round engine. sink, gate and awards may be nil.
func New(rngSvc *rng.Service, tables *config.Tables, rounds RoundStore, ledger Ledger,
	pool JackpotPool, auditSvc AuditLogger, cfg *config.GameConfig,
	sink EventSink, gate Gate, awards JackpotRecorder) *Engine {
	return &Engine{
		rng:    rngSvc,
		tables: tables,
		rounds: rounds,
		ledger: ledger,
		pool:   pool,
		audit:  auditSvc,
		cfg:    cfg,
		sink:   sink,
		gate:   gate,
		awards: awards,
		locks:  newRoundLocks(),
	}
}

// JackpotAmount returns the current progressive pool balance.
func (e *Engine) JackpotAmount() int64 {
	if e.pool == nil {
		return 0
	}
	return e.pool.Amount()
}

// StartRound opens a grid round: debit wager plus entry cost, generate
// the full board from a fresh seed, persist. The debit happens before
// anything else so a player who cannot cover the round never gets one.
func (e *Engine) StartRound(ctx context.Context, userID, difficulty string, wager int64) (*domain.Round, error) {
	if err := e.checkGate(); err != nil {
		return nil, err
	}
	if wager < e.cfg.MinWager || wager > e.cfg.MaxWager {
		return nil, ErrInvalidWager
	}
	d, ok := e.tables.Difficulty(difficulty)
	if !ok {
		return nil, ErrUnknownDifficulty
	}

	seed, err := e.newSeed(ctx, userID)
	if err != nil {
		return nil, err
	}

	cost := entryCost(d, wager)
	if _, err := e.ledger.Debit(ctx, userID, cost); err != nil {
		return nil, err
	}

	bucketIdx, grid := buildGrid(d, e.tables.Multipliers, seed, wager)
	r := &domain.Round{
		ID:           uuid.New().String(),
		UserID:       userID,
		Mode:         domain.ModeGrid,
		Difficulty:   d.Name,
		Seed:         seed,
		NonceCursor:  uint64(d.GridSize * d.GridSize),
		Wager:        wager,
		Grid:         grid,
		GridSize:     d.GridSize,
		MaxMoves:     d.MaxMoves,
		LastRevealX:  -1,
		LastRevealY:  -1,
		UsedPowerUps: make(map[domain.PowerUpType]bool),
		Status:       domain.RoundActive,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.rounds.Save(ctx, r); err != nil {
		// The round never existed; give the debit back.
		e.ledger.Credit(ctx, userID, cost)
		return nil, fmt.Errorf("failed to save round: %w", err)
	}

	if e.pool != nil {
		e.pool.Contribute(wager)
	}

	e.audit.Log(ctx, audit.EventRoundStarted, domain.SeverityInfo,
		fmt.Sprintf("Grid round started: %s", d.Name),
		map[string]interface{}{"difficulty": d.Name, "wager": wager, "bucket": bucketIdx},
		audit.WithUser(userID), audit.WithRound(r.ID))

	return r, nil
}

// RevealResult reports one reveal transition.
type RevealResult struct {
	Cell         domain.Cell        `json:"cell"`
	Status       domain.RoundStatus `json:"status"`
	MovesMade    int                `json:"moves_made"`
	ActivePayout int64              `json:"active_payout"`
	Payout       int64              `json:"payout,omitempty"` // settled amount, terminal only
	Seed         string             `json:"seed,omitempty"`   // published at terminal
}

// Reveal uncovers one cell of a grid round. A trap loses the round for
// a zero payout; reaching the move limit wins it and banks the
// accumulated payout. Rejected reveals leave the round untouched.
func (e *Engine) Reveal(ctx context.Context, userID, roundID string, x, y int) (*RevealResult, error) {
	unlock := e.locks.acquire(roundID)
	defer unlock()

	r, err := e.loadOwned(ctx, userID, roundID, domain.ModeGrid)
	if err != nil {
		return nil, err
	}

	cell, err := reveal(r, x, y)
	if err != nil {
		return nil, err
	}

	res := &RevealResult{
		Cell:         *cell,
		Status:       r.Status,
		MovesMade:    r.MovesMade,
		ActivePayout: r.ActivePayout,
	}

	if r.Status.Terminal() {
		payout := r.ActivePayout // zero on a loss
		if err := e.settle(ctx, r, payout); err != nil {
			return nil, err
		}
		res.Payout = payout
		res.Seed = r.Seed.String()
		return res, nil
	}

	if err := e.rounds.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save round: %w", err)
	}
	return res, nil
}

// CashOutResult reports a voluntary round end.
type CashOutResult struct {
	Payout int64  `json:"payout"`
	Seed   string `json:"seed"`
}

// CashOut ends an active grid round voluntarily and banks the payout
// accumulated so far.
func (e *Engine) CashOut(ctx context.Context, userID, roundID string) (*CashOutResult, error) {
	unlock := e.locks.acquire(roundID)
	defer unlock()

	r, err := e.loadOwned(ctx, userID, roundID, domain.ModeGrid)
	if err != nil {
		return nil, err
	}
	if err := cashOut(r); err != nil {
		return nil, err
	}

	payout := r.ActivePayout
	if err := e.settle(ctx, r, payout); err != nil {
		return nil, err
	}
	return &CashOutResult{Payout: payout, Seed: r.Seed.String()}, nil
}

// PowerUpResult reports a power-up application.
type PowerUpResult struct {
	Type         domain.PowerUpType `json:"-"`
	TypeName     string             `json:"type"`
	Cost         int64              `json:"cost"`
	Hinted       []domain.Cell      `json:"hinted,omitempty"`   // detector
	Revealed     []domain.Cell      `json:"revealed,omitempty"` // map
	Compass      *CompassHint       `json:"compass,omitempty"`
	Status       domain.RoundStatus `json:"status"`
	MovesMade    int                `json:"moves_made"`
	ActivePayout int64              `json:"active_payout"`
	Payout       int64              `json:"payout,omitempty"`
	Seed         string             `json:"seed,omitempty"`
}

// ApplyPowerUp applies a single-use assist to an active grid round.
// The cost is debited before the effect; each type can be used once
// per round. Seeded power-up draws advance the round's nonce cursor so
// the full draw history stays replayable.
func (e *Engine) ApplyPowerUp(ctx context.Context, userID, roundID string, typ domain.PowerUpType) (*PowerUpResult, error) {
	switch typ {
	case domain.PowerUpDetector, domain.PowerUpMap, domain.PowerUpCompass:
	default:
		return nil, ErrUnknownPowerUp
	}

	unlock := e.locks.acquire(roundID)
	defer unlock()

	r, err := e.loadOwned(ctx, userID, roundID, domain.ModeGrid)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.RoundActive {
		return nil, ErrGameNotActive
	}
	if r.UsedPowerUps[typ] {
		return nil, ErrPowerUpAlreadyUsed
	}

	cost := e.tables.PowerUps.Cost(typ)
	if _, err := e.ledger.Debit(ctx, userID, cost); err != nil {
		return nil, err
	}

	r.UsedPowerUps[typ] = true
	res := &PowerUpResult{Type: typ, TypeName: typ.String(), Cost: cost}

	switch typ {
	case domain.PowerUpDetector:
		res.Hinted = e.hintCells(r, e.tables.PowerUps.DetectorHints)
	case domain.PowerUpMap:
		res.Revealed = e.autoReveal(r, e.tables.PowerUps.MapReveals)
	case domain.PowerUpCompass:
		hint := compassHint(r)
		res.Compass = &hint
	}

	res.Status = r.Status
	res.MovesMade = r.MovesMade
	res.ActivePayout = r.ActivePayout

	e.audit.Log(ctx, audit.EventPowerUpUsed, domain.SeverityInfo,
		fmt.Sprintf("Power-up used: %s", typ),
		map[string]interface{}{"power_up": typ.String(), "cost": cost},
		audit.WithUser(userID), audit.WithRound(roundID))

	// A map reveal can reach the move limit and win the round.
	if r.Status.Terminal() {
		payout := r.ActivePayout
		if err := e.settle(ctx, r, payout); err != nil {
			return nil, err
		}
		res.Payout = payout
		res.Seed = r.Seed.String()
		return res, nil
	}

	if err := e.rounds.Save(ctx, r); err != nil {
		e.ledger.Credit(ctx, userID, cost)
		return nil, fmt.Errorf("failed to save round: %w", err)
	}
	return res, nil
}

// hintCells marks up to n hidden safe cells as hinted, chosen by
// seeded draws without replacement.
func (e *Engine) hintCells(r *domain.Round, n int) []domain.Cell {
	candidates := hiddenSafeCells(r)
	var hinted []domain.Cell
	for i := 0; i < n && len(candidates) > 0; i++ {
		pick := rng.DrawInt(r.Seed, r.NonceCursor, len(candidates))
		r.NonceCursor++
		idx := candidates[pick]
		candidates = append(candidates[:pick], candidates[pick+1:]...)

		cell := &r.Grid[idx]
		if cell.State == domain.CellHidden {
			cell.State = domain.CellHinted
		}
		hinted = append(hinted, *cell)
	}
	return hinted
}

// autoReveal reveals up to n hidden safe cells as regular moves. Each
// reveal consumes a move and accrues the cell's value; the loop stops
// early if the move limit wins the round.
func (e *Engine) autoReveal(r *domain.Round, n int) []domain.Cell {
	var revealed []domain.Cell
	for i := 0; i < n && r.Status == domain.RoundActive; i++ {
		candidates := hiddenSafeCells(r)
		if len(candidates) == 0 {
			break
		}
		pick := rng.DrawInt(r.Seed, r.NonceCursor, len(candidates))
		r.NonceCursor++
		cell := &r.Grid[candidates[pick]]
		if c, err := reveal(r, cell.X, cell.Y); err == nil {
			revealed = append(revealed, *c)
		}
	}
	return revealed
}

// StartReelSession opens a reel session: one seed covers every spin of
// the session, each spin consuming a contiguous slice of the nonce
// stream. No money moves until the first spin.
func (e *Engine) StartReelSession(ctx context.Context, userID string) (*domain.Round, error) {
	if err := e.checkGate(); err != nil {
		return nil, err
	}

	seed, err := e.newSeed(ctx, userID)
	if err != nil {
		return nil, err
	}

	rc := &e.tables.Reel
	r := &domain.Round{
		ID:     uuid.New().String(),
		UserID: userID,
		Mode:   domain.ModeReel,
		Seed:   seed,
		Bonus: &domain.BonusState{
			ActiveReels:         rc.StartReels,
			FreeSpinsMultiplier: 1,
		},
		LastRevealX: -1,
		LastRevealY: -1,
		Status:      domain.RoundActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.rounds.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save round: %w", err)
	}

	e.audit.Log(ctx, audit.EventRoundStarted, domain.SeverityInfo,
		"Reel session started", nil,
		audit.WithUser(userID), audit.WithRound(r.ID))

	return r, nil
}

// SpinResult reports one settled spin.
type SpinResult struct {
	Window     [][]domain.SymbolKind `json:"window"` // [reel][row]
	Lines      []LineWin             `json:"lines,omitempty"`
	LineTotal  int64                 `json:"line_total"`
	Bonus      BonusOutcome          `json:"bonus"`
	BonusState domain.BonusState     `json:"bonus_state"`
	TotalWin   int64                 `json:"total_win"`
	FreeSpin   bool                  `json:"free_spin"`
	NonceStart uint64                `json:"nonce_start"`
	NonceEnd   uint64                `json:"nonce_end"`
}

// Spin plays one spin of a reel session. Paid spins debit the wager up
// front and contribute to the progressive pool; free spins replay the
// triggering wager for free. Wins are credited immediately, so every
// spin settles on its own.
func (e *Engine) Spin(ctx context.Context, userID, roundID string, wager int64) (*SpinResult, error) {
	unlock := e.locks.acquire(roundID)
	defer unlock()

	r, err := e.loadOwned(ctx, userID, roundID, domain.ModeReel)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.RoundActive {
		return nil, ErrGameNotActive
	}

	rc := &e.tables.Reel
	free := r.Bonus.InFreeSpins
	multiplier := 1.0
	if free {
		wager = r.Wager
		multiplier = r.Bonus.FreeSpinsMultiplier
	} else {
		if wager < e.cfg.MinWager || wager > e.cfg.MaxWager {
			return nil, ErrInvalidWager
		}
		if _, err := e.ledger.Debit(ctx, userID, wager); err != nil {
			return nil, err
		}
		r.Wager = wager
		if e.pool != nil {
			e.pool.Contribute(wager)
		}
	}

	nonceStart := r.NonceCursor
	window, cursor := spinReels(rc, r.Seed, r.NonceCursor, r.Bonus.ActiveReels)
	lines, lineTotal := scoreWindow(rc, window, wager, multiplier)
	bonusOut := evaluateBonus(rc, r.Bonus, window, r.Seed, &cursor, free, e.pool)
	total := lineTotal + bonusOut.JackpotAmount

	r.NonceCursor = cursor
	r.MovesMade++           // spins played this session
	r.ActivePayout += total // session winnings, published at close

	if err := e.rounds.Save(ctx, r); err != nil {
		// The spin never happened; give a paid wager back.
		if !free {
			e.ledger.Credit(ctx, userID, wager)
		}
		if bonusOut.JackpotWon {
			e.audit.Log(ctx, audit.EventSystemError, domain.SeverityCritical,
				"Round save failed after jackpot award", map[string]int64{"amount": bonusOut.JackpotAmount},
				audit.WithUser(userID), audit.WithRound(roundID))
		}
		return nil, fmt.Errorf("failed to save round: %w", err)
	}

	if total > 0 {
		if _, err := e.ledger.Credit(ctx, userID, total); err != nil {
			e.audit.Log(ctx, audit.EventSystemError, domain.SeverityCritical,
				"Spin payout credit failed", map[string]int64{"amount": total},
				audit.WithUser(userID), audit.WithRound(roundID))
			return nil, fmt.Errorf("failed to credit payout: %w", err)
		}
	}

	if bonusOut.JackpotWon {
		if e.awards != nil {
			e.awards.RecordAward(ctx, roundID, userID, bonusOut.JackpotAmount)
		}
		e.audit.Log(ctx, audit.EventJackpotAward, domain.SeverityWarning,
			fmt.Sprintf("Progressive jackpot awarded: %d", bonusOut.JackpotAmount),
			map[string]int64{"amount": bonusOut.JackpotAmount},
			audit.WithUser(userID), audit.WithRound(roundID))
	}

	// Spin events omit the seed: publishing it mid-session would let
	// the player predict every remaining spin.
	e.publish(domain.OutcomeEvent{
		RoundID:    r.ID,
		UserID:     r.UserID,
		Mode:       r.Mode,
		Wager:      wager,
		Payout:     total,
		ProfitLoss: spinProfit(total, wager, free),
		NonceStart: nonceStart,
		NonceEnd:   cursor,
		Status:     r.Status,
		OccurredAt: time.Now().UTC(),
	})

	return &SpinResult{
		Window:     window,
		Lines:      lines,
		LineTotal:  lineTotal,
		Bonus:      bonusOut,
		BonusState: *r.Bonus,
		TotalWin:   total,
		FreeSpin:   free,
		NonceStart: nonceStart,
		NonceEnd:   cursor,
	}, nil
}

func spinProfit(total, wager int64, free bool) int64 {
	if free {
		return total
	}
	return total - wager
}

// CloseResult reports a reel session close.
type CloseResult struct {
	SpinsPlayed int    `json:"spins_played"`
	TotalWon    int64  `json:"total_won"`
	Seed        string `json:"seed"`
}

// CloseReelSession ends a reel session and publishes its seed. Spins
// settle as they happen, so closing moves no money.
func (e *Engine) CloseReelSession(ctx context.Context, userID, roundID string) (*CloseResult, error) {
	unlock := e.locks.acquire(roundID)
	defer unlock()

	r, err := e.loadOwned(ctx, userID, roundID, domain.ModeReel)
	if err != nil {
		return nil, err
	}
	if err := cashOut(r); err != nil {
		return nil, err
	}

	// Payout is zero here: each spin already settled its own win.
	e.publish(domain.OutcomeEvent{
		RoundID:    r.ID,
		UserID:     r.UserID,
		Mode:       r.Mode,
		Seed:       r.Seed.String(),
		NonceStart: 0,
		NonceEnd:   r.NonceCursor,
		Status:     r.Status,
		OccurredAt: time.Now().UTC(),
	})

	e.audit.Log(ctx, audit.EventRoundSettled, domain.SeverityInfo,
		fmt.Sprintf("Reel session closed: %d spins", r.MovesMade),
		map[string]interface{}{"spins": r.MovesMade, "total_won": r.ActivePayout},
		audit.WithUser(userID), audit.WithRound(roundID))

	if err := e.rounds.Delete(ctx, r.ID); err != nil {
		return nil, fmt.Errorf("failed to delete round: %w", err)
	}

	return &CloseResult{SpinsPlayed: r.MovesMade, TotalWon: r.ActivePayout, Seed: r.Seed.String()}, nil
}

// loadOwned loads a round and checks ownership and mode. Ownership
// failures report ErrRoundNotFound so round IDs cannot be probed
// across users.
func (e *Engine) loadOwned(ctx context.Context, userID, roundID string, mode domain.RoundMode) (*domain.Round, error) {
	r, err := e.rounds.Load(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, ErrRoundNotFound
	}
	if r.Mode != mode {
		return nil, ErrWrongMode
	}
	return r, nil
}

// settle finishes a terminal grid round: credit the payout, publish
// the outcome with the seed, drop the round from the active store.
func (e *Engine) settle(ctx context.Context, r *domain.Round, payout int64) error {
	if payout > 0 {
		if _, err := e.ledger.Credit(ctx, r.UserID, payout); err != nil {
			return fmt.Errorf("failed to credit payout: %w", err)
		}
	}

	e.publish(domain.OutcomeEvent{
		RoundID:    r.ID,
		UserID:     r.UserID,
		Mode:       r.Mode,
		Wager:      r.Wager,
		Payout:     payout,
		ProfitLoss: payout - r.Wager,
		Seed:       r.Seed.String(),
		NonceStart: 0,
		NonceEnd:   r.NonceCursor,
		Status:     r.Status,
		OccurredAt: time.Now().UTC(),
	})

	severity := domain.SeverityInfo
	eventType := audit.EventRoundSettled
	if r.Wager > 0 && payout >= 10*r.Wager {
		severity = domain.SeverityWarning
		eventType = audit.EventLargeWin
	}
	e.audit.Log(ctx, eventType, severity,
		fmt.Sprintf("Round settled: %s, payout %d", r.Status, payout),
		map[string]interface{}{"status": r.Status, "wager": r.Wager, "payout": payout},
		audit.WithUser(r.UserID), audit.WithRound(r.ID))

	if err := e.rounds.Delete(ctx, r.ID); err != nil {
		// The payout already happened; log and move on rather than
		// fail a settled round.
		e.audit.Log(ctx, audit.EventSystemError, domain.SeverityError,
			"Failed to delete settled round", map[string]string{"error": err.Error()},
			audit.WithRound(r.ID))
	}
	return nil
}

func (e *Engine) publish(event domain.OutcomeEvent) {
	if e.sink != nil {
		e.sink.Publish(event)
	}
}

func (e *Engine) checkGate() error {
	if e.gate == nil {
		return nil
	}
	return e.gate.Check()
}

// newSeed draws the round seed, tripping the gate on entropy failure:
// a round engine that cannot get entropy must stop taking rounds.
func (e *Engine) newSeed(ctx context.Context, userID string) (domain.Seed, error) {
	seed, err := e.rng.GenerateSeed()
	if err != nil {
		e.audit.Log(ctx, audit.EventEntropyFailure, domain.SeverityCritical,
			"Entropy source failed at round start", map[string]string{"error": err.Error()},
			audit.WithUser(userID))
		if e.gate != nil {
			e.gate.Trip(ctx, "entropy source failure")
		}
		return nil, err
	}
	return seed, nil
}
