package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/brojonat/solwithdraw/service/metrics"
	natspkg "github.com/brojonat/solwithdraw/service/nats"
	"github.com/brojonat/solwithdraw/service/solana"
)

// EstimatedFeeLamports is the flat network fee assumed by the balance check.
// A single-signature legacy transaction pays 5000 lamports per signature.
const EstimatedFeeLamports uint64 = 5000

// ErrSenderNotFound is returned when the source account does not exist on
// the network.
var ErrSenderNotFound = errors.New("sender account does not exist")

// ChainClient is the subset of *solana.Client the pipeline uses.
type ChainClient interface {
	Network() string
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetAccountInfo(ctx context.Context, address string) (*solana.AccountInfo, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, base64Tx string) (string, error)
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*solana.SignatureStatus, error)
	WaitForConfirmation(ctx context.Context, signature string, opts solana.ConfirmOptions) (*solana.SignatureStatus, error)
}

// KeyProvider hands out decrypted secret key material for one signing
// operation. Callers zero the returned slice when done.
type KeyProvider interface {
	SecretKey(ctx context.Context, address string) ([]byte, error)
}

// EventPublisher receives a status event for every state transition.
type EventPublisher interface {
	PublishWithdrawalStatus(ctx context.Context, event *natspkg.WithdrawalStatusEvent) error
}

// Options configures a Service.
type Options struct {
	// ConfirmTimeout is used when a request does not set its own.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Request asks to move Lamports from From to To.
type Request struct {
	WithdrawalID string `json:"withdrawal_id"`
	From         string `json:"from"`
	To           string `json:"to"`
	Lamports     uint64 `json:"lamports"`
	Memo         string `json:"memo,omitempty"`

	// ConfirmTimeout overrides Options.ConfirmTimeout when set.
	ConfirmTimeout time.Duration `json:"confirm_timeout,omitempty"`
}

// Submission is a signed withdrawal handed to the node and awaiting
// confirmation.
type Submission struct {
	Request     Request   `json:"request"`
	Signature   string    `json:"signature"`
	ExplorerURL string    `json:"explorer_url"`
	Network     string    `json:"network"`
	SubmittedAt time.Time `json:"submitted_at"`

	// Uncertain is set when sendTransaction failed in transit. The node
	// may or may not hold the transaction.
	Uncertain bool `json:"uncertain,omitempty"`
}

// Result is the outcome of processing a withdrawal.
type Result struct {
	WithdrawalID       string  `json:"withdrawal_id"`
	Outcome            Outcome `json:"outcome"`
	Signature          string  `json:"signature,omitempty"`
	ExplorerURL        string  `json:"explorer_url,omitempty"`
	ConfirmationStatus string  `json:"confirmation_status,omitempty"`
	Reason             string  `json:"reason,omitempty"`

	// RawError is sanitized and meant for logs, not end users.
	RawError string `json:"-"`
}

// Error is returned when a withdrawal fails. Reason is safe to show users.
type Error struct {
	WithdrawalID string
	Stage        State
	Reason       string
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("withdrawal %s failed while %s: %v", e.WithdrawalID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Service runs withdrawals through validation, balance check, build, sign,
// submit and confirmation, and reports the terminal transition to the
// ledger.
type Service struct {
	chain     ChainClient
	ledger    Ledger
	keys      KeyProvider
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      Options
}

// NewService creates a new withdrawal service. publisher and m may be nil.
func NewService(chain ChainClient, ledger Ledger, keys KeyProvider, publisher EventPublisher, m *metrics.Metrics, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = solana.DefaultConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = solana.DefaultConfirmInterval
	}
	return &Service{
		chain:     chain,
		ledger:    ledger,
		keys:      keys,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		opts:      opts,
	}
}

// Network returns the network withdrawals are sent on.
func (s *Service) Network() string { return s.chain.Network() }

// Process submits a withdrawal and waits for its confirmation.
func (s *Service) Process(ctx context.Context, req Request) (*Result, error) {
	done := s.metrics.WithdrawalStarted()
	defer done()

	sub, err := s.Submit(ctx, req)
	if err != nil {
		return failedResult(req.WithdrawalID, err), err
	}
	timeout := req.ConfirmTimeout
	if timeout <= 0 {
		timeout = s.opts.ConfirmTimeout
	}
	return s.Confirm(ctx, sub, timeout)
}

// Submit validates, builds, signs and submits a withdrawal. Any failure
// fails the withdrawal in the ledger and returns an *Error, except a
// transport error from sendTransaction: that returns an Uncertain
// Submission, since funds may already have moved.
func (s *Service) Submit(ctx context.Context, req Request) (*Submission, error) {
	logger := s.logger.With("withdrawal_id", req.WithdrawalID)

	if err := s.ledger.MarkProcessing(ctx, req.WithdrawalID); err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			logger.WarnContext(ctx, "withdrawal already settled, not processing again")
			return nil, &Error{WithdrawalID: req.WithdrawalID, Stage: StateValidating, Reason: "This withdrawal has already been processed.", Err: err}
		}
		return nil, fmt.Errorf("failed to mark withdrawal processing: %w", err)
	}

	// validating
	s.transition(ctx, req, StateValidating, nil)
	stop := s.metrics.StageTimer(string(StateValidating))
	from, to, err := validate(req)
	stop(err)
	if err != nil {
		return nil, s.fail(ctx, req, StateValidating, err)
	}

	// balance-checking
	s.transition(ctx, req, StateBalanceChecking, nil)
	stop = s.metrics.StageTimer(string(StateBalanceChecking))
	err = s.checkBalance(ctx, req)
	stop(err)
	if err != nil {
		return nil, s.fail(ctx, req, StateBalanceChecking, err)
	}

	// building
	s.transition(ctx, req, StateBuilding, nil)
	stop = s.metrics.StageTimer(string(StateBuilding))
	message, err := s.build(ctx, req, from, to)
	stop(err)
	if err != nil {
		return nil, s.fail(ctx, req, StateBuilding, err)
	}

	// signing
	s.transition(ctx, req, StateSigning, nil)
	stop = s.metrics.StageTimer(string(StateSigning))
	sig, err := s.sign(ctx, req, message)
	stop(err)
	if err != nil {
		return nil, s.fail(ctx, req, StateSigning, err)
	}

	// submitting
	s.transition(ctx, req, StateSubmitting, nil)
	stop = s.metrics.StageTimer(string(StateSubmitting))
	wire, err := solana.AssembleTransaction(sig, message)
	if err != nil {
		stop(err)
		return nil, s.fail(ctx, req, StateSubmitting, err)
	}
	nodeSig, err := s.chain.SendTransaction(ctx, solana.EncodeTransaction(wire))
	stop(err)
	uncertain := false
	switch {
	case err == nil:
	case solana.KindOf(err) == solana.KindRPCTransport:
		// The node may have taken the transaction before the connection
		// failed. The signature is known locally, so settle it by polling
		// and keep the reservation.
		uncertain = true
		logger.WarnContext(ctx, "submission outcome unknown, polling for the signed transaction",
			"signature", sig.String(),
			"error", Sanitize(err.Error()),
		)
	default:
		return nil, s.fail(ctx, req, StateSubmitting, err)
	}
	if err == nil && nodeSig != sig.String() {
		logger.WarnContext(ctx, "node reported a different signature than the one signed",
			"signed", sig.String(),
			"reported", nodeSig,
		)
	}

	network := s.chain.Network()
	sub := &Submission{
		Request:     req,
		Signature:   sig.String(),
		ExplorerURL: solana.ExplorerURL(network, sig.String()),
		Network:     network,
		SubmittedAt: time.Now().UTC(),
		Uncertain:   uncertain,
	}
	s.metrics.RecordWithdrawalAmount(req.Lamports)
	logger.InfoContext(ctx, "withdrawal submitted",
		"signature", sub.Signature,
		"lamports", req.Lamports,
		"network", network,
	)
	return sub, nil
}

// Confirm waits up to timeout for sub to confirm and settles the ledger.
//
// A confirmed transaction completes the withdrawal. A transaction the node
// reports as failed fails it. A timeout completes it optimistically with
// confirmation status "unknown" and outcome unconfirmed; the balance is not
// restored because the transfer may still land.
func (s *Service) Confirm(ctx context.Context, sub *Submission, timeout time.Duration) (*Result, error) {
	req := sub.Request
	logger := s.logger.With("withdrawal_id", req.WithdrawalID, "signature", sub.Signature)

	s.transition(ctx, req, StateConfirming, func(e *natspkg.WithdrawalStatusEvent) {
		e.Signature = sub.Signature
		e.ExplorerURL = sub.ExplorerURL
	})

	start := time.Now()
	status, err := s.chain.WaitForConfirmation(ctx, sub.Signature, solana.ConfirmOptions{
		Timeout:  timeout,
		Interval: s.opts.PollInterval,
	})
	waited := time.Since(start).Seconds()

	switch {
	case err == nil:
		s.metrics.RecordConfirmation("confirmed", waited)
		completion := Completion{
			Signature:          sub.Signature,
			ExplorerURL:        sub.ExplorerURL,
			ConfirmationStatus: status.ConfirmationStatus,
		}
		if err := s.complete(ctx, req, completion); err != nil {
			return nil, err
		}
		result := &Result{
			WithdrawalID:       req.WithdrawalID,
			Outcome:            OutcomeCompleted,
			Signature:          sub.Signature,
			ExplorerURL:        sub.ExplorerURL,
			ConfirmationStatus: status.ConfirmationStatus,
		}
		s.finish(ctx, req, result)
		return result, nil

	case errors.Is(err, solana.ErrConfirmationTimeout):
		s.metrics.RecordConfirmation("timeout", waited)
		logger.WarnContext(ctx, "withdrawal not confirmed in time, completing optimistically",
			"timeout", timeout.String(),
			"uncertain_submission", sub.Uncertain,
		)
		reason := msgUnconfirmed
		if sub.Uncertain {
			reason = msgSubmissionUnknown
		}
		completion := Completion{
			Signature:          sub.Signature,
			ExplorerURL:        sub.ExplorerURL,
			ConfirmationStatus: ConfirmationUnknown,
		}
		if err := s.complete(ctx, req, completion); err != nil {
			return nil, err
		}
		result := &Result{
			WithdrawalID:       req.WithdrawalID,
			Outcome:            OutcomeUnconfirmed,
			Signature:          sub.Signature,
			ExplorerURL:        sub.ExplorerURL,
			ConfirmationStatus: ConfirmationUnknown,
			Reason:             reason,
			RawError:           Sanitize(err.Error()),
		}
		s.finish(ctx, req, result)
		return result, nil

	case ctx.Err() != nil:
		// The ledger stays in processing; a retry of Confirm settles it.
		logger.WarnContext(ctx, "confirmation abandoned", "error", ctx.Err())
		return nil, ctx.Err()

	default:
		s.metrics.RecordConfirmation("failed", waited)
		ferr := s.fail(ctx, req, StateConfirming, err)
		result := failedResult(req.WithdrawalID, ferr)
		result.Signature = sub.Signature
		result.ExplorerURL = sub.ExplorerURL
		return result, ferr
	}
}

// Reconcile re-checks an unconfirmed withdrawal and reports what the node
// knows now. The ledger is not touched: the withdrawal was already settled
// when confirmation timed out.
func (s *Service) Reconcile(ctx context.Context, sub *Submission) (string, error) {
	statuses, err := s.chain.GetSignatureStatuses(ctx, sub.Signature)
	if err != nil {
		return "", fmt.Errorf("failed to get signature status: %w", err)
	}

	result := ReconcileUnknown
	confirmation := ConfirmationUnknown
	if len(statuses) > 0 && statuses[0] != nil {
		st := statuses[0]
		confirmation = st.ConfirmationStatus
		switch {
		case st.Failed():
			result = ReconcileFailed
		case st.Confirmed():
			result = ReconcileConfirmed
		}
	}
	s.metrics.RecordReconciliation(result)

	level := slog.LevelInfo
	if result == ReconcileFailed {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "reconciled unconfirmed withdrawal",
		"withdrawal_id", sub.Request.WithdrawalID,
		"signature", sub.Signature,
		"result", result,
	)

	s.publish(ctx, sub.Request, StateReconciled, func(e *natspkg.WithdrawalStatusEvent) {
		e.Status = string(StatusCompleted)
		e.Signature = sub.Signature
		e.ExplorerURL = sub.ExplorerURL
		e.ConfirmationStatus = confirmation
		e.Message = "reconciliation: " + result
	})
	return result, nil
}

func validate(req Request) (from, to solana.PublicKey, err error) {
	if req.WithdrawalID == "" {
		return from, to, errors.New("withdrawal id is required")
	}
	if req.Lamports == 0 {
		return from, to, errors.New("amount must be greater than zero")
	}
	if from, err = solana.PublicKeyFromBase58(req.From); err != nil {
		return from, to, fmt.Errorf("source address: %w", err)
	}
	if to, err = solana.PublicKeyFromBase58(req.To); err != nil {
		return from, to, fmt.Errorf("destination address: %w", err)
	}
	return from, to, nil
}

func (s *Service) checkBalance(ctx context.Context, req Request) error {
	info, err := s.chain.GetAccountInfo(ctx, req.From)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w on %s", ErrSenderNotFound, s.chain.Network())
	}

	balance, err := s.chain.GetBalance(ctx, req.From)
	if err != nil {
		return err
	}
	if req.Lamports > math.MaxUint64-EstimatedFeeLamports {
		return errors.New("amount is too large")
	}
	need := req.Lamports + EstimatedFeeLamports
	s.logger.DebugContext(ctx, "sender balance check",
		"withdrawal_id", req.WithdrawalID,
		"balance_lamports", balance,
		"required_lamports", need,
	)
	if balance < need {
		return &solana.InsufficientFundsError{Address: req.From, Have: balance, Need: need}
	}
	return nil
}

// build fetches a fresh blockhash and compiles the transfer (and memo)
// message. Every attempt compiles a new message.
func (s *Service) build(ctx context.Context, req Request, from, to solana.PublicKey) ([]byte, error) {
	blockhash, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	instructions := []solana.Instruction{solana.NewTransferInstruction(from, to, req.Lamports)}
	if req.Memo != "" {
		instructions = append(instructions, solana.NewMemoInstruction(from, req.Memo))
	}
	msg, err := solana.CompileMessage(from, instructions, blockhash)
	if err != nil {
		return nil, err
	}
	return msg.MarshalBinary()
}

func (s *Service) sign(ctx context.Context, req Request, message []byte) (solana.Signature, error) {
	secret, err := s.keys.SecretKey(ctx, req.From)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to load secret key: %w", err)
	}
	defer clear(secret)
	return solana.SignMessage(message, secret, req.From)
}

func (s *Service) complete(ctx context.Context, req Request, c Completion) error {
	err := s.ledger.Complete(ctx, req.WithdrawalID, c)
	if errors.Is(err, ErrAlreadySettled) {
		s.logger.WarnContext(ctx, "withdrawal already settled, completion not re-applied",
			"withdrawal_id", req.WithdrawalID,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to complete withdrawal in ledger: %w", err)
	}
	return nil
}

// fail records a failed withdrawal once and returns the *Error to hand back.
func (s *Service) fail(ctx context.Context, req Request, stage State, cause error) error {
	reason := HumanReadable(cause)
	raw := Sanitize(cause.Error())

	s.logger.ErrorContext(ctx, "withdrawal failed",
		"withdrawal_id", req.WithdrawalID,
		"stage", string(stage),
		"kind", string(solana.KindOf(cause)),
		"reason", reason,
		"raw_error", raw,
	)
	kind := string(solana.KindOf(cause))
	if kind == "" {
		kind = "other"
	}
	s.metrics.RecordWithdrawalFailure(string(stage), kind)
	s.metrics.RecordWithdrawal(s.chain.Network(), string(OutcomeFailed))

	if err := s.ledger.Fail(ctx, req.WithdrawalID, reason); err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			s.logger.WarnContext(ctx, "withdrawal already settled, failure not re-applied",
				"withdrawal_id", req.WithdrawalID,
			)
		} else {
			s.logger.ErrorContext(ctx, "failed to record withdrawal failure in ledger",
				"withdrawal_id", req.WithdrawalID,
				"error", err,
			)
		}
	}

	s.publish(ctx, req, StateFailed, func(e *natspkg.WithdrawalStatusEvent) {
		e.Status = string(StatusFailed)
		e.Outcome = string(OutcomeFailed)
		e.Reason = reason
		e.Message = "failed while " + string(stage)
	})

	return &Error{WithdrawalID: req.WithdrawalID, Stage: stage, Reason: reason, Err: cause}
}

func (s *Service) finish(ctx context.Context, req Request, result *Result) {
	s.metrics.RecordWithdrawal(s.chain.Network(), string(result.Outcome))
	s.logger.InfoContext(ctx, "withdrawal completed",
		"withdrawal_id", req.WithdrawalID,
		"outcome", string(result.Outcome),
		"signature", result.Signature,
		"confirmation_status", result.ConfirmationStatus,
	)
	s.publish(ctx, req, StateCompleted, func(e *natspkg.WithdrawalStatusEvent) {
		e.Status = string(StatusCompleted)
		e.Outcome = string(result.Outcome)
		e.Signature = result.Signature
		e.ExplorerURL = result.ExplorerURL
		e.ConfirmationStatus = result.ConfirmationStatus
		e.Reason = result.Reason
	})
}

func (s *Service) transition(ctx context.Context, req Request, state State, fill func(*natspkg.WithdrawalStatusEvent)) {
	s.logger.DebugContext(ctx, "withdrawal state",
		"withdrawal_id", req.WithdrawalID,
		"state", string(state),
	)
	s.publish(ctx, req, state, func(e *natspkg.WithdrawalStatusEvent) {
		e.Status = string(StatusProcessing)
		if fill != nil {
			fill(e)
		}
	})
}

// publish sends a status event. Publishing never fails a withdrawal.
func (s *Service) publish(ctx context.Context, req Request, state State, fill func(*natspkg.WithdrawalStatusEvent)) {
	if s.publisher == nil {
		return
	}
	event := &natspkg.WithdrawalStatusEvent{
		WithdrawalID: req.WithdrawalID,
		Stage:        string(state),
		From:         req.From,
		To:           req.To,
		Lamports:     req.Lamports,
		Network:      s.chain.Network(),
		PublishedAt:  time.Now().UTC(),
	}
	if fill != nil {
		fill(event)
	}
	if err := s.publisher.PublishWithdrawalStatus(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish withdrawal event",
			"withdrawal_id", req.WithdrawalID,
			"stage", string(state),
			"error", err,
		)
	}
}

func failedResult(id string, err error) *Result {
	result := &Result{WithdrawalID: id, Outcome: OutcomeFailed, RawError: Sanitize(err.Error())}
	var werr *Error
	if errors.As(err, &werr) {
		result.Reason = werr.Reason
	} else {
		result.Reason = HumanReadable(err)
	}
	return result
}
