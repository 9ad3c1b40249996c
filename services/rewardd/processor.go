package rewardd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"greenmile/crypto"
	"greenmile/ledger"
	"greenmile/ledger/abi"
	"greenmile/native/rewards"
	"greenmile/native/sponsor"
	"greenmile/services/rewardd/models"
)

// distributeSignature is the treasury contract's simple distribution call.
const distributeSignature = "distributeReward(bytes32,uint256,address,string)"

// treasuryBalanceSignature reads the allocation still available to this
// application.
const treasuryBalanceSignature = "appBalance(bytes32)"

// ErrProcessorPaused is returned while the processor is administratively paused.
var ErrProcessorPaused = errors.New("rewardd: processor paused")

// ErrDistributionInFlight reports a concurrent attempt for the same event.
var ErrDistributionInFlight = errors.New("rewardd: distribution already in progress")

// ErrInvalidRecipient reports a recipient that is not a valid ledger address.
var ErrInvalidRecipient = errors.New("rewardd: invalid recipient address")

// NodeClient is the slice of the ledger client the processor depends on.
type NodeClient interface {
	BestBlock(ctx context.Context) (*ledger.Block, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	GasBalance(ctx context.Context, address string) (*big.Int, error)
	SubmitTransaction(ctx context.Context, raw string) (string, error)
}

// DistributionRequest carries one reward event through the executor.
type DistributionRequest struct {
	EventID          string
	Recipient        string
	Gross            rewards.Units
	ProofReference   string
	Category         rewards.Category
	ReceiptAmountUSD float64
}

// DistributionResult is returned to collaborators for persistence and
// display.
type DistributionResult struct {
	EventID         string
	UserTxHash      string
	PlatformTxHash  string
	UserShare       rewards.Units
	PlatformShare   rewards.Units
	CO2SavingsGrams int64
	Status          models.DistributionStatus
	Degraded        bool
	Sponsoring      sponsor.Decision
}

type processState struct {
	inFlight bool
	result   *DistributionResult
}

// Processor orchestrates a distribution: solvency check, sponsoring
// evaluation, contract-call encoding, signing, and the two sequential
// submissions.
type Processor struct {
	node          NodeClient
	signer        *crypto.PrivateKey
	treasury      *TreasuryAllocator
	sponsoring    *sponsor.Engine
	records       *Records
	metrics       *Metrics
	nonces        *nonceAllocator
	chainTag      uint8
	contract      common.Address
	appID         [32]byte
	operatingFund common.Address
	expiration    uint32
	gas           uint64
	gasPriceCoef  uint8
	now           func() time.Time

	mu        sync.Mutex
	paused    bool
	processed map[string]processState
}

// ProcessorOption customises the processor.
type ProcessorOption func(*Processor)

// WithRecords attaches the persistence store. Without it the processor keeps
// idempotency state in memory only.
func WithRecords(r *Records) ProcessorOption {
	return func(p *Processor) { p.records = r }
}

// WithSponsoring attaches the gas-fee sponsoring engine.
func WithSponsoring(e *sponsor.Engine) ProcessorOption {
	return func(p *Processor) { p.sponsoring = e }
}

// WithMetrics overrides the default metrics registry.
func WithMetrics(m *Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithClock sets the timestamp source.
func WithClock(clock func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = clock }
}

// WithGas overrides the per-transaction gas budget.
func WithGas(gas uint64) ProcessorOption {
	return func(p *Processor) { p.gas = gas }
}

// NewProcessor constructs a distribution processor.
func NewProcessor(node NodeClient, signer *crypto.PrivateKey, treasury *TreasuryAllocator,
	chainTag uint8, contract common.Address, appID [32]byte, operatingFund common.Address,
	opts ...ProcessorOption) *Processor {
	proc := &Processor{
		node:          node,
		signer:        signer,
		treasury:      treasury,
		chainTag:      chainTag,
		contract:      contract,
		appID:         appID,
		operatingFund: operatingFund,
		expiration:    32,
		gas:           300_000,
		nonces:        newNonceAllocator(),
		now:           time.Now,
		processed:     make(map[string]processState),
		metrics:       NewMetrics(),
	}
	for _, opt := range opts {
		opt(proc)
	}
	return proc
}

// IdempotencyKey derives the deterministic token guarding a distribution leg
// against double submission across retries.
func IdempotencyKey(eventID, shareKind string) string {
	return "0x" + hex.EncodeToString(ethcrypto.Keccak256([]byte(eventID+"|"+shareKind)))
}

// Distribute executes the full distribution for one reward event. The user
// transaction's failure aborts the platform leg; the platform transaction's
// failure never rolls back the user leg and is recorded as a partial failure
// for operator reconciliation.
func (p *Processor) Distribute(ctx context.Context, req DistributionRequest) (*DistributionResult, error) {
	if req.EventID == "" {
		return nil, rewards.ErrMissingEventID
	}
	if !common.IsHexAddress(req.Recipient) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, req.Recipient)
	}
	if req.Gross <= 0 {
		return nil, fmt.Errorf("rewardd: gross reward must be positive, got %s", req.Gross)
	}

	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return nil, ErrProcessorPaused
	}
	if state, ok := p.processed[req.EventID]; ok {
		p.mu.Unlock()
		if state.inFlight {
			return nil, ErrDistributionInFlight
		}
		return state.result, nil
	}
	p.processed[req.EventID] = processState{inFlight: true}
	p.mu.Unlock()

	result, err := p.distribute(ctx, req)
	p.mu.Lock()
	if err != nil {
		delete(p.processed, req.EventID)
	} else {
		p.processed[req.EventID] = processState{result: result}
	}
	p.mu.Unlock()
	return result, err
}

func (p *Processor) distribute(ctx context.Context, req DistributionRequest) (*DistributionResult, error) {
	start := p.now()

	// A restart may have lost the in-memory state; the persisted record is
	// the durable idempotency guard.
	if p.records != nil {
		existing, err := p.records.FindByEventID(ctx, req.EventID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Status != models.StatusFailed {
			return resultFromRecord(existing), nil
		}
	}

	split := rewards.Split(req.Gross)
	co2 := rewards.EstimateCO2SavingsGrams(req.Category, req.ReceiptAmountUSD)
	proof := enhancedProof(req, co2)

	grossWei := req.Gross.Wei()
	degraded, err := p.treasury.Reserve(ctx, grossWei)
	if err != nil {
		p.metrics.RecordError("treasury")
		return nil, err
	}
	remaining, treasuryDegraded := p.treasury.Snapshot()
	p.metrics.RecordTreasury(remaining, treasuryDegraded)

	decision := p.evaluateSponsoring(ctx, req.Recipient)
	p.metrics.RecordSponsorship(string(decision.Reason))

	result := &DistributionResult{
		EventID:         req.EventID,
		UserShare:       split.UserShare,
		PlatformShare:   split.PlatformShare,
		CO2SavingsGrams: co2,
		Degraded:        degraded || decision.Degraded,
		Sponsoring:      decision,
	}

	block, err := p.node.BestBlock(ctx)
	if err != nil {
		p.treasury.Release(grossWei)
		p.metrics.RecordError("best_block")
		return nil, fmt.Errorf("rewardd: read best block: %w", err)
	}
	blockRef, err := block.Ref()
	if err != nil {
		p.treasury.Release(grossWei)
		p.metrics.RecordError("best_block")
		return nil, err
	}

	recipient := common.HexToAddress(req.Recipient)

	userTxID, err := p.submitShare(ctx, blockRef, recipient, split.UserShare, proof)
	if err != nil {
		p.treasury.Release(grossWei)
		p.metrics.RecordError("user_submit")
		p.recordOutcome(ctx, req, result, models.StatusFailed, err.Error())
		p.metrics.ObserveDistribution(string(models.StatusFailed), p.now().Sub(start))
		return nil, fmt.Errorf("rewardd: submit user transaction: %w", err)
	}
	result.UserTxHash = userTxID
	result.Status = models.StatusSubmitted
	p.recordOutcome(ctx, req, result, models.StatusSubmitted, "")

	if split.PlatformShare > 0 {
		platformTxID, err := p.submitShare(ctx, blockRef, p.operatingFund, split.PlatformShare, proof+"|platform-share")
		if err != nil {
			// The user share has already left the treasury; only the
			// platform share reservation is returned.
			p.treasury.Commit(split.UserShare.Wei())
			p.treasury.Release(split.PlatformShare.Wei())
			p.metrics.RecordError("platform_submit")
			result.Status = models.StatusPartiallyFailed
			p.recordOutcome(ctx, req, result, models.StatusPartiallyFailed, err.Error())
			p.metrics.ObserveDistribution(string(models.StatusPartiallyFailed), p.now().Sub(start))
			slog.Warn("platform share submission failed, needs reconciliation",
				"event_id", req.EventID, "user_tx", userTxID, "error", err)
			return result, nil
		}
		result.PlatformTxHash = platformTxID
	}

	p.treasury.Commit(grossWei)
	result.Status = models.StatusConfirmed
	p.recordOutcome(ctx, req, result, models.StatusConfirmed, "")
	p.metrics.ObserveDistribution(string(models.StatusConfirmed), p.now().Sub(start))
	return result, nil
}

// submitShare builds, signs, and submits one distribution clause. Both the
// user and platform legs go through here; only the recipient, amount, and
// proof differ.
func (p *Processor) submitShare(ctx context.Context, blockRef [8]byte, to common.Address, amount rewards.Units, proof string) (string, error) {
	data, err := abi.Encode(distributeSignature, p.appID, amount.Wei(), to, proof)
	if err != nil {
		return "", err
	}
	tx := &ledger.Transaction{
		ChainTag:     p.chainTag,
		BlockRef:     blockRef,
		Expiration:   p.expiration,
		GasPriceCoef: p.gasPriceCoef,
		Gas:          p.gas,
		Nonce:        p.nonces.Next(),
		Clauses: []ledger.Clause{{
			To:    p.contract,
			Value: big.NewInt(0),
			Data:  data,
		}},
	}
	if err := tx.Sign(p.signer.PrivateKey); err != nil {
		return "", err
	}
	raw, err := tx.RawHex()
	if err != nil {
		return "", err
	}
	return p.node.SubmitTransaction(ctx, raw)
}

func (p *Processor) evaluateSponsoring(ctx context.Context, recipient string) sponsor.Decision {
	// Evaluate tolerates a nil engine and reports a degraded decision.
	return p.sponsoring.Evaluate(ctx, recipient, sponsor.KindRewardDistribution)
}

func (p *Processor) recordOutcome(ctx context.Context, req DistributionRequest, result *DistributionResult, status models.DistributionStatus, failure string) {
	if p.records == nil {
		return
	}
	existing, err := p.records.FindByEventID(ctx, req.EventID)
	if err != nil {
		slog.Error("load distribution record", "event_id", req.EventID, "error", err)
		return
	}
	if existing == nil {
		record := &models.DistributionRecord{
			EventID:         req.EventID,
			IdempotencyKey:  IdempotencyKey(req.EventID, "user"),
			Recipient:       req.Recipient,
			UserTxHash:      result.UserTxHash,
			PlatformTxHash:  result.PlatformTxHash,
			UserShare:       result.UserShare.String(),
			PlatformShare:   result.PlatformShare.String(),
			CO2SavingsGrams: result.CO2SavingsGrams,
			Status:          status,
			Degraded:        result.Degraded,
			FailureReason:   failure,
		}
		if err := p.records.Create(ctx, record); err != nil {
			slog.Error("persist distribution record", "event_id", req.EventID, "error", err)
		}
		return
	}
	existing.UserTxHash = result.UserTxHash
	existing.PlatformTxHash = result.PlatformTxHash
	existing.Status = status
	existing.Degraded = result.Degraded
	existing.FailureReason = failure
	if err := p.records.Save(ctx, existing); err != nil {
		slog.Error("persist distribution record", "event_id", req.EventID, "error", err)
	}
}

func resultFromRecord(record *models.DistributionRecord) *DistributionResult {
	userShare, _ := rewards.ParseUnits(record.UserShare)
	platformShare, _ := rewards.ParseUnits(record.PlatformShare)
	return &DistributionResult{
		EventID:         record.EventID,
		UserTxHash:      record.UserTxHash,
		PlatformTxHash:  record.PlatformTxHash,
		UserShare:       userShare,
		PlatformShare:   platformShare,
		CO2SavingsGrams: record.CO2SavingsGrams,
		Status:          record.Status,
		Degraded:        record.Degraded,
	}
}

func enhancedProof(req DistributionRequest, co2 int64) string {
	return fmt.Sprintf("%s|%s|%.2f|%dg", req.ProofReference, req.Category, req.ReceiptAmountUSD, co2)
}

// Pause halts new distributions.
func (p *Processor) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	p.metrics.SetPaused(true)
}

// Resume re-enables distributions.
func (p *Processor) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	p.metrics.SetPaused(false)
}

// Status summarises processor state for the admin endpoints.
type Status struct {
	Paused            bool   `json:"paused"`
	Completed         int    `json:"completed"`
	InFlight          int    `json:"in_flight"`
	TreasuryRemaining string `json:"treasury_remaining"`
	TreasuryDegraded  bool   `json:"treasury_degraded"`
}

// Status reports the current snapshot.
func (p *Processor) Status() Status {
	p.mu.Lock()
	status := Status{Paused: p.paused}
	for _, state := range p.processed {
		if state.inFlight {
			status.InFlight++
		} else {
			status.Completed++
		}
	}
	p.mu.Unlock()
	remaining, degraded := p.treasury.Snapshot()
	status.TreasuryRemaining = remaining.String()
	status.TreasuryDegraded = degraded
	return status
}

// TreasuryBalanceFetcher builds the read-only contract call resolving this
// application's remaining treasury allocation.
func TreasuryBalanceFetcher(node NodeClient, contract common.Address, appID [32]byte) func(ctx context.Context) (*big.Int, error) {
	return func(ctx context.Context) (*big.Int, error) {
		data, err := abi.Encode(treasuryBalanceSignature, appID)
		if err != nil {
			return nil, err
		}
		out, err := node.CallContract(ctx, contract, data)
		if err != nil {
			return nil, err
		}
		if len(out) < 32 {
			return nil, fmt.Errorf("rewardd: short treasury balance response (%d bytes)", len(out))
		}
		return new(big.Int).SetBytes(out[:32]), nil
	}
}
