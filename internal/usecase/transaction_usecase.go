package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/metrics"
)

// Outcome is the set of records a handler committed.
type Outcome struct {
	Events   []*domain.EventRecord
	Balances []*domain.BalanceRecord
}

// HandlerFunc applies one transaction event to the ledger.
type HandlerFunc func(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error)

// TransactionUseCase applies transaction events to account balances and the
// event log. Every handler reads current balances, computes the new ones and
// commits events and balances in one storage transaction. A lost version race
// restarts the whole read-compute-commit cycle.
type TransactionUseCase struct {
	txManager   TransactionManager
	balanceRepo BalanceRepository
	eventRepo   EventRepository
	retrier     Retrier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// NewTransactionUseCase creates a new TransactionUseCase. retrier and
// metrics may be nil.
func NewTransactionUseCase(
	txManager TransactionManager,
	balanceRepo BalanceRepository,
	eventRepo EventRepository,
	retrier Retrier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:   txManager,
		balanceRepo: balanceRepo,
		eventRepo:   eventRepo,
		retrier:     retrier,
		metrics:     metrics,
		logger:      logger.With().Str("component", "transaction_usecase").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handlers returns the dispatch table for every recognized transaction type.
func (uc *TransactionUseCase) Handlers() map[domain.TransactionType]HandlerFunc {
	return map[domain.TransactionType]HandlerFunc{
		domain.TxCashDeposit:               uc.CashDeposit,
		domain.TxVerifiedCashDeposit:       uc.VerifiedCashDeposit,
		domain.TxVerifyCashDeposit:         uc.VerifyCashDeposit,
		domain.TxCashWithdrawal:            uc.CashWithdrawal,
		domain.TxIncomingPayment:           uc.IncomingPayment,
		domain.TxUnverifiedOutgoingPayment: uc.UnverifiedOutgoingPayment,
		domain.TxVerifiedOutgoingPayment:   uc.VerifiedOutgoingPayment,
		domain.TxRejectedOutgoingPayment:   uc.RejectedOutgoingPayment,
		domain.TxInterAccountTransfer:      uc.InterAccountTransfer,
	}
}

// CashDeposit records an unverified deposit: Actual grows, Available waits
// for verification.
func (uc *TransactionUseCase) CashDeposit(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		return uc.planLeg(ctx, ev, leg{
			account:     ev.ReferenceAccount,
			stage:       domain.StagePending,
			actualDelta: ev.Amount,
		})
	})
}

// VerifiedCashDeposit records a deposit that needs no verification step.
func (uc *TransactionUseCase) VerifiedCashDeposit(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		return uc.planLeg(ctx, ev, leg{
			account:        ev.ReferenceAccount,
			stage:          domain.StageVerified,
			actualDelta:    ev.Amount,
			availableDelta: ev.Amount,
		})
	})
}

// VerifyCashDeposit settles a pending deposit. The verified amount becomes
// available; a verified amount that differs from the deposited one corrects
// Actual by the difference.
func (uc *TransactionUseCase) VerifyCashDeposit(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		pending, err := uc.findPredecessor(ctx, ev)
		if err != nil {
			return nil, err
		}

		correction := ev.Amount.Sub(pending.Amount)
		actualEffect := domain.EffectNone
		if !correction.IsZero() {
			actualEffect = domain.EffectAdjusted
			uc.logger.Info().
				Str("account", ev.ReferenceAccount).
				Str("request_id", ev.RequestID).
				Str("deposited", pending.Amount.String()).
				Str("verified", ev.Amount.String()).
				Msg("verified amount differs from deposit, adjusting actual balance")
		}

		return uc.planLeg(ctx, ev, leg{
			account:        ev.ReferenceAccount,
			stage:          domain.StageVerified,
			actualDelta:    correction,
			actualEffect:   actualEffect,
			availableDelta: ev.Amount,
		})
	})
}

// CashWithdrawal debits both balances when enough funds are available.
func (uc *TransactionUseCase) CashWithdrawal(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		return uc.planLeg(ctx, ev, leg{
			account:        ev.ReferenceAccount,
			stage:          domain.StageVerified,
			actualDelta:    ev.Amount.Neg(),
			availableDelta: ev.Amount.Neg(),
			requireFunds:   true,
		})
	})
}

// IncomingPayment credits both balances.
func (uc *TransactionUseCase) IncomingPayment(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		return uc.planLeg(ctx, ev, leg{
			account:        ev.ReferenceAccount,
			stage:          domain.StageVerified,
			actualDelta:    ev.Amount,
			availableDelta: ev.Amount,
		})
	})
}

// UnverifiedOutgoingPayment holds the payment amount until the payment is
// verified or rejected.
func (uc *TransactionUseCase) UnverifiedOutgoingPayment(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		return uc.planLeg(ctx, ev, leg{
			account:        ev.ReferenceAccount,
			stage:          domain.StagePending,
			actualDelta:    ev.Amount.Neg(),
			availableDelta: ev.Amount.Neg(),
			requireFunds:   true,
		})
	})
}

// VerifiedOutgoingPayment settles a held payment. Balances were already
// debited by the hold, so only the log records the settlement.
func (uc *TransactionUseCase) VerifiedOutgoingPayment(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		pending, err := uc.findPredecessor(ctx, ev)
		if err != nil {
			return nil, err
		}

		if !pending.Amount.Equal(ev.Amount) {
			uc.logger.Warn().
				Str("account", ev.ReferenceAccount).
				Str("request_id", ev.RequestID).
				Str("held", pending.Amount.String()).
				Str("verified", ev.Amount.String()).
				Msg("verified payment amount differs from held amount")
		}

		return uc.planLeg(ctx, ev, leg{
			account: ev.ReferenceAccount,
			stage:   domain.StageVerified,
		})
	})
}

// RejectedOutgoingPayment releases a held payment back to both balances.
// The held amount is restored, whatever the rejection message carries.
func (uc *TransactionUseCase) RejectedOutgoingPayment(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		pending, err := uc.findPredecessor(ctx, ev)
		if err != nil {
			return nil, err
		}

		return uc.planLeg(ctx, ev, leg{
			account:        ev.ReferenceAccount,
			stage:          domain.StageVerified,
			actualDelta:    pending.Amount,
			availableDelta: pending.Amount,
		})
	})
}

// InterAccountTransfer moves funds between two accounts. Both legs carry
// their own event record and are committed together, so either both
// accounts change or neither does.
func (uc *TransactionUseCase) InterAccountTransfer(ctx context.Context, ev *domain.TransactionEvent) (*Outcome, error) {
	source := ev.TransferSource()
	if source == ev.TargetAccount {
		return nil, domain.ErrSameAccount
	}

	return uc.apply(ctx, ev, func(ctx context.Context) (*posting, error) {
		out, err := uc.planLeg(ctx, ev, leg{
			account:        source,
			stage:          domain.StageVerified,
			actualDelta:    ev.Amount.Neg(),
			availableDelta: ev.Amount.Neg(),
			requireFunds:   true,
		})
		if err != nil {
			return nil, err
		}

		in, err := uc.planLeg(ctx, ev, leg{
			account:        ev.TargetAccount,
			stage:          domain.StageVerified,
			actualDelta:    ev.Amount,
			availableDelta: ev.Amount,
		})
		if err != nil {
			return nil, err
		}

		out.events = append(out.events, in.events...)
		out.balances = append(out.balances, in.balances...)
		return out, nil
	})
}

// leg describes the effect of an event on one account.
type leg struct {
	account        string
	stage          domain.Stage
	actualDelta    decimal.Decimal
	availableDelta decimal.Decimal
	// actualEffect overrides the effect derived from actualDelta.
	actualEffect domain.Effect
	requireFunds bool
}

// posting is the set of writes one attempt commits.
type posting struct {
	events   []*domain.EventRecord
	balances []*domain.BalanceRecord
}

func (uc *TransactionUseCase) planLeg(ctx context.Context, ev *domain.TransactionEvent, l leg) (*posting, error) {
	actual, err := uc.balanceRepo.Get(ctx, l.account, domain.BalanceActual)
	if err != nil {
		return nil, err
	}
	available, err := uc.balanceRepo.Get(ctx, l.account, domain.BalanceAvailable)
	if err != nil {
		return nil, err
	}

	if l.requireFunds {
		needed := l.availableDelta.Neg()
		if available.Balance.LessThan(needed) {
			return nil, fmt.Errorf("%w: account %s has %s available, needs %s",
				domain.ErrInsufficientFunds, l.account, available.Balance, needed)
		}
	}

	actualEffect := l.actualEffect
	if actualEffect == "" {
		actualEffect = domain.EffectOf(l.actualDelta)
	}

	record := domain.NewEventRecord(ev, l.account, l.stage,
		actualEffect, domain.EffectOf(l.availableDelta),
		l.actualDelta, l.availableDelta, uc.now())

	stamp := ev.Stamp()
	nextActual := actual.Apply(l.actualDelta, stamp, ev.ObjectKey())
	nextAvailable := available.Apply(l.availableDelta, stamp, ev.ObjectKey())

	uc.logger.Debug().
		Str("account", l.account).
		Str("type", string(ev.TransactionType)).
		Str("actual_before", actual.Balance.String()).
		Str("actual_after", nextActual.Balance.String()).
		Str("available_before", available.Balance.String()).
		Str("available_after", nextAvailable.Balance.String()).
		Msg("computed balances")

	return &posting{
		events:   []*domain.EventRecord{record},
		balances: []*domain.BalanceRecord{nextActual, nextAvailable},
	}, nil
}

// findPredecessor returns the pending record that ev settles.
func (uc *TransactionUseCase) findPredecessor(ctx context.Context, ev *domain.TransactionEvent) (*domain.EventRecord, error) {
	want, _ := ev.TransactionType.Predecessor()

	pending, err := uc.eventRepo.FindByRequestID(ctx, ev.ReferenceAccount, ev.PreviousRequestIDReference)
	if err != nil {
		return nil, err
	}

	if pending.TransactionType != want || pending.Stage != domain.StagePending {
		return nil, fmt.Errorf("%w: request %s is a %s %s record, expected pending %s",
			domain.ErrPredecessorNotFound, pending.RequestID, pending.Stage, pending.TransactionType, want)
	}

	settled, err := uc.eventRepo.FindByPreviousRequestID(ctx, ev.ReferenceAccount, pending.RequestID)
	if err != nil {
		return nil, err
	}
	if settled != nil {
		return nil, fmt.Errorf("%w: request %s settled by %s",
			domain.ErrPredecessorAlreadySettled, pending.RequestID, settled.RequestID)
	}

	return pending, nil
}

func (uc *TransactionUseCase) apply(ctx context.Context, ev *domain.TransactionEvent, plan func(context.Context) (*posting, error)) (*Outcome, error) {
	var committed *posting
	attempt := 0

	op := func() error {
		if attempt > 0 && uc.metrics != nil {
			uc.metrics.BalanceConflicts.WithLabelValues(string(ev.TransactionType)).Inc()
		}
		attempt++

		p, err := plan(ctx)
		if err != nil {
			return err
		}
		if err := uc.commit(ctx, p); err != nil {
			return err
		}
		committed = p
		return nil
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		amount, _ := ev.Amount.Float64()
		uc.metrics.TransactionAmount.WithLabelValues(string(ev.TransactionType)).Observe(amount)
	}

	return &Outcome{Events: committed.events, Balances: committed.balances}, nil
}

func (uc *TransactionUseCase) commit(ctx context.Context, p *posting) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	for _, record := range p.events {
		if err := uc.eventRepo.Append(txCtx, tx, record); err != nil {
			return err
		}
	}

	for _, balance := range p.balances {
		if err := uc.balanceRepo.Set(txCtx, tx, balance); err != nil {
			return err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) ||
			errors.Is(err, domain.ErrDuplicateEvent) ||
			errors.Is(err, domain.ErrStorageFailure) {
			return err
		}
		return domain.StorageFailure("commit ledger transaction", err)
	}

	return nil
}
