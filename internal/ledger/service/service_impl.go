package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	"github.com/smallbiznis/kilekitabu/internal/config"
	"github.com/smallbiznis/kilekitabu/internal/events"
	"github.com/smallbiznis/kilekitabu/internal/ledger/currency"
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"github.com/smallbiznis/kilekitabu/internal/ledger/reconcile"
	obsmetrics "github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"github.com/smallbiznis/kilekitabu/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errSettledConcurrently rolls back a transaction whose conditional payment
// update lost the race against another writer.
var errSettledConcurrently = errors.New("payment settled concurrently")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Repo       ledgerdomain.Repository
	Rates      ledgerdomain.RatesSource
	Clock      clock.Clock
	GenID      *snowflake.Node     `optional:"true"`
	Publisher  events.Publisher    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db                *gorm.DB
	log               *zap.Logger
	repo              ledgerdomain.Repository
	rates             ledgerdomain.RatesSource
	clock             clock.Clock
	genID             *snowflake.Node
	publisher         events.Publisher
	obsMetrics        *obsmetrics.Metrics
	resetUsersOnLogin bool
}

func NewService(p Params) ledgerdomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("ledger.service"),
		repo:              p.Repo,
		rates:             p.Rates,
		clock:             clk,
		genID:             p.GenID,
		publisher:         publisher,
		obsMetrics:        p.ObsMetrics,
		resetUsersOnLogin: p.Cfg.Billing.ResetUsersOnLogin,
	}
}

func (s *Service) ApplyEvent(ctx context.Context, event ledgerdomain.PaymentEvent) (ledgerdomain.Outcome, error) {
	event.UserID = strings.TrimSpace(event.UserID)
	event.ProviderReference = strings.TrimSpace(event.ProviderReference)
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	if event.ProviderReference == "" {
		return ledgerdomain.Outcome{}, ledgerdomain.ErrInvalidEvent
	}
	if event.AmountMinor < 0 {
		return ledgerdomain.Outcome{}, ledgerdomain.ErrInvalidAmount
	}

	var (
		outcome ledgerdomain.Outcome
		err     error
	)
	switch event.Kind {
	case ledgerdomain.EventChargeSuccess:
		outcome, err = s.applyCharge(ctx, event)
	case ledgerdomain.EventRefund:
		outcome, err = s.applyRefund(ctx, event)
	case ledgerdomain.EventFailed:
		outcome, err = s.applyFailure(ctx, event)
	default:
		return ledgerdomain.Outcome{}, ledgerdomain.ErrInvalidEvent
	}

	result := "applied"
	switch {
	case err != nil:
		result = "error"
	case outcome.Duplicate:
		result = "duplicate"
	}
	s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, string(event.Kind), result)
	if err != nil {
		return ledgerdomain.Outcome{}, err
	}

	if outcome.Duplicate {
		s.log.Info("payment event already applied",
			zap.String("payment_id", outcome.PaymentID),
			zap.String("kind", string(event.Kind)),
			zap.String("status", string(outcome.Status)),
		)
	}
	return outcome, nil
}

func (s *Service) applyCharge(ctx context.Context, event ledgerdomain.PaymentEvent) (ledgerdomain.Outcome, error) {
	rates := s.rates.Rates()
	now := s.clock.Now().UTC()

	var outcome ledgerdomain.Outcome
	var completed ledgerdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.loadOrCreatePayment(ctx, tx, event, rates, now)
		if err != nil {
			return err
		}
		account, err := s.lockOrCreateAccount(ctx, tx, payment.UserID, now)
		if err != nil {
			return err
		}

		decision, err := reconcile.ApplyCharge(*account, *payment, event, rates, now)
		if err != nil {
			return err
		}
		if decision.Skip {
			outcome = duplicateOutcome(payment, account)
			return nil
		}

		// Account first, payment status last.
		if err := s.repo.SaveAccount(ctx, tx, &decision.Account); err != nil {
			return err
		}
		ok, err := s.repo.CompletePayment(ctx, tx, &decision.Payment)
		if err != nil {
			return err
		}
		if !ok {
			return errSettledConcurrently
		}

		completed = decision.Payment
		outcome = ledgerdomain.Outcome{
			PaymentID:  decision.Payment.PaymentID,
			UserID:     decision.Payment.UserID,
			Status:     ledgerdomain.PaymentStatusCompleted,
			CreditDays: decision.CreditDays,
			NewBalance: decision.Account.CreditBalance,
		}
		return nil
	})
	if errors.Is(err, errSettledConcurrently) {
		return s.settledOutcome(ctx, event.ProviderReference)
	}
	if err != nil {
		return ledgerdomain.Outcome{}, err
	}

	if !outcome.Duplicate {
		s.obsMetrics.RecordCreditDays(ctx, completed.Provider, outcome.CreditDays)
		s.log.Info("payment credited",
			zap.String("payment_id", outcome.PaymentID),
			zap.String("user_id", outcome.UserID),
			zap.String("provider", completed.Provider),
			zap.Int64("credit_days", outcome.CreditDays),
			zap.Int64("new_balance", outcome.NewBalance),
		)
		s.publish(ctx, events.EventPaymentCompleted, completed, outcome)
	}
	return outcome, nil
}

func (s *Service) applyRefund(ctx context.Context, event ledgerdomain.PaymentEvent) (ledgerdomain.Outcome, error) {
	rates := s.rates.Rates()
	now := s.clock.Now().UTC()

	var outcome ledgerdomain.Outcome
	var refunded ledgerdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindPayment(ctx, tx, event.ProviderReference, true)
		if err != nil {
			return err
		}

		userID := event.UserID
		if payment != nil {
			if userID != "" && userID != payment.UserID {
				return ledgerdomain.ErrUserMismatch
			}
			userID = payment.UserID
		}
		if userID == "" {
			return ledgerdomain.ErrInvalidUser
		}

		account, err := s.lockOrCreateAccount(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		if event.UserID == "" {
			event.UserID = userID
		}
		decision, err := reconcile.ApplyRefund(*account, payment, event, rates, now)
		if err != nil {
			return err
		}
		if decision.Skip {
			outcome = duplicateOutcome(&decision.Payment, account)
			return nil
		}

		if err := s.repo.SaveAccount(ctx, tx, &decision.Account); err != nil {
			return err
		}
		var ok bool
		if decision.NewPayment {
			ok, err = s.repo.InsertPayment(ctx, tx, &decision.Payment)
		} else {
			ok, err = s.repo.RefundPayment(ctx, tx, &decision.Payment)
		}
		if err != nil {
			return err
		}
		if !ok {
			return errSettledConcurrently
		}

		refunded = decision.Payment
		outcome = ledgerdomain.Outcome{
			PaymentID:  decision.Payment.PaymentID,
			UserID:     userID,
			Status:     ledgerdomain.PaymentStatusRefunded,
			CreditDays: decision.CreditDays,
			NewBalance: decision.Account.CreditBalance,
		}
		return nil
	})
	if errors.Is(err, errSettledConcurrently) {
		return s.settledOutcome(ctx, event.ProviderReference)
	}
	if err != nil {
		return ledgerdomain.Outcome{}, err
	}

	if !outcome.Duplicate {
		s.obsMetrics.RecordCreditDays(ctx, refunded.Provider, -outcome.CreditDays)
		s.log.Info("payment refunded",
			zap.String("payment_id", outcome.PaymentID),
			zap.String("user_id", outcome.UserID),
			zap.Int64("credit_days_reversed", outcome.CreditDays),
			zap.Int64("new_balance", outcome.NewBalance),
		)
		s.publish(ctx, events.EventPaymentRefunded, refunded, outcome)
	}
	return outcome, nil
}

func (s *Service) applyFailure(ctx context.Context, event ledgerdomain.PaymentEvent) (ledgerdomain.Outcome, error) {
	now := s.clock.Now().UTC()

	var outcome ledgerdomain.Outcome
	var failed ledgerdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindPayment(ctx, tx, event.ProviderReference, true)
		if err != nil {
			return err
		}
		if payment == nil {
			return ledgerdomain.ErrPaymentNotFound
		}

		decision := reconcile.ApplyFailure(*payment, event.FailureReason, now)
		if decision.Skip {
			outcome = ledgerdomain.Outcome{
				PaymentID: payment.PaymentID,
				UserID:    payment.UserID,
				Status:    payment.Status,
				Duplicate: true,
			}
			return nil
		}
		ok, err := s.repo.FailPayment(ctx, tx, payment.PaymentID, decision.Payment.FailureReason, now)
		if err != nil {
			return err
		}
		if !ok {
			return errSettledConcurrently
		}
		failed = decision.Payment
		outcome = ledgerdomain.Outcome{
			PaymentID: payment.PaymentID,
			UserID:    payment.UserID,
			Status:    ledgerdomain.PaymentStatusFailed,
		}
		return nil
	})
	if errors.Is(err, errSettledConcurrently) {
		return s.settledOutcome(ctx, event.ProviderReference)
	}
	if err != nil {
		return ledgerdomain.Outcome{}, err
	}
	if !outcome.Duplicate {
		s.log.Info("payment failed",
			zap.String("payment_id", outcome.PaymentID),
			zap.String("reason", failed.FailureReason),
		)
		s.publish(ctx, events.EventPaymentFailed, failed, outcome)
	}
	return outcome, nil
}

func (s *Service) MarkPaymentFailed(ctx context.Context, paymentID, reason string) error {
	_, err := s.ApplyEvent(ctx, ledgerdomain.PaymentEvent{
		ProviderReference: paymentID,
		Kind:              ledgerdomain.EventFailed,
		FailureReason:     reason,
	})
	return err
}

// loadOrCreatePayment returns the locked payment row for the event,
// recording a pending payment first when the provider pushed one the
// ledger never initiated.
func (s *Service) loadOrCreatePayment(ctx context.Context, tx *gorm.DB, event ledgerdomain.PaymentEvent, rates ledgerdomain.Rates, now time.Time) (*ledgerdomain.Payment, error) {
	payment, err := s.repo.FindPayment(ctx, tx, event.ProviderReference, true)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		if event.UserID == "" {
			return nil, ledgerdomain.ErrInvalidUser
		}
		if event.AmountMinor <= 0 {
			return nil, ledgerdomain.ErrInvalidAmount
		}
		created := reconcile.NewPendingPayment(event, rates, now)
		inserted, err := s.repo.InsertPayment(ctx, tx, &created)
		if err != nil {
			return nil, err
		}
		if inserted {
			return &created, nil
		}
		payment, err = s.repo.FindPayment(ctx, tx, event.ProviderReference, true)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, ledgerdomain.ErrPaymentNotFound
		}
	}
	if event.UserID != "" && event.UserID != payment.UserID {
		return nil, ledgerdomain.ErrUserMismatch
	}
	return payment, nil
}

func (s *Service) lockOrCreateAccount(ctx context.Context, tx *gorm.DB, userID string, now time.Time) (*ledgerdomain.Account, error) {
	account, err := s.repo.FindAccount(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	created := ledgerdomain.NewAccount(userID, now)
	inserted, err := s.repo.InsertAccount(ctx, tx, &created)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.log.Info("credit account bootstrapped", zap.String("user_id", userID))
		return &created, nil
	}
	account, err = s.repo.FindAccount(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	return account, nil
}

// settledOutcome reports the state left by the writer that won a race.
func (s *Service) settledOutcome(ctx context.Context, paymentID string) (ledgerdomain.Outcome, error) {
	payment, err := s.repo.FindPayment(ctx, s.db, paymentID, false)
	if err != nil {
		return ledgerdomain.Outcome{}, err
	}
	if payment == nil {
		return ledgerdomain.Outcome{}, ledgerdomain.ErrPaymentNotFound
	}
	account, err := s.repo.FindAccount(ctx, s.db, payment.UserID, false)
	if err != nil {
		return ledgerdomain.Outcome{}, err
	}
	return duplicateOutcome(payment, account), nil
}

func duplicateOutcome(payment *ledgerdomain.Payment, account *ledgerdomain.Account) ledgerdomain.Outcome {
	out := ledgerdomain.Outcome{
		PaymentID:  payment.PaymentID,
		UserID:     payment.UserID,
		Status:     payment.Status,
		Duplicate:  true,
		CreditDays: payment.CreditDaysAdded,
	}
	if account != nil {
		out.NewBalance = account.CreditBalance
	}
	return out
}

func (s *Service) publish(ctx context.Context, eventType string, payment ledgerdomain.Payment, outcome ledgerdomain.Outcome) {
	event := events.Event{
		ID:         s.nextEventID(),
		Type:       eventType,
		UserID:     outcome.UserID,
		PaymentID:  outcome.PaymentID,
		Provider:   payment.Provider,
		CreditDays: outcome.CreditDays,
		Balance:    outcome.NewBalance,
		OccurredAt: s.clock.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish ledger event",
			zap.String("type", eventType),
			zap.String("payment_id", outcome.PaymentID),
			zap.Error(err),
		)
	}
}

func (s *Service) nextEventID() string {
	if s.genID != nil {
		return s.genID.Generate().String()
	}
	return uuid.NewString()
}

func (s *Service) GetCreditInfo(ctx context.Context, userID string) (*ledgerdomain.CreditInfo, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	rates := s.rates.Rates()
	now := s.clock.Now().UTC()

	var account *ledgerdomain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = s.lockOrCreateAccount(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if !s.needsTrialReset(*account, rates, now) {
			return nil
		}
		reset := resetTrial(*account, now)
		if err := s.repo.SaveAccount(ctx, tx, &reset); err != nil {
			return err
		}
		s.log.Info("trial reset", zap.String("user_id", userID))
		account = &reset
		return nil
	})
	if err != nil {
		return nil, err
	}

	info := BuildCreditInfo(*account, rates, now)
	return &info, nil
}

func (s *Service) needsTrialReset(account ledgerdomain.Account, rates ledgerdomain.Rates, now time.Time) bool {
	if account.RegistrationDate.IsZero() {
		return true
	}
	if !s.resetUsersOnLogin {
		return false
	}
	if account.TrialResetDate == nil {
		return true
	}
	trialLength := time.Duration(rates.FreeTrialDays) * 24 * time.Hour
	return now.Sub(*account.TrialResetDate) >= trialLength
}

// resetTrial restarts the trial. The registration date never moves backwards.
func resetTrial(account ledgerdomain.Account, now time.Time) ledgerdomain.Account {
	next := account.Clone()
	if next.RegistrationDate.Before(now) {
		next.RegistrationDate = now
	}
	resetAt := now
	next.TrialResetDate = &resetAt
	next.CreditBalance = 0
	next.LastUsageDate = nil
	next.UpdatedAt = now
	return next
}

// BuildCreditInfo derives the app-facing view of an account.
func BuildCreditInfo(account ledgerdomain.Account, rates ledgerdomain.Rates, now time.Time) ledgerdomain.CreditInfo {
	trialEnd := account.RegistrationDate.Add(time.Duration(rates.FreeTrialDays) * 24 * time.Hour)
	remaining := trialEnd.Sub(now).Hours() / 24
	daysRemaining := 0
	if remaining > 0 {
		daysRemaining = int(math.Floor(remaining))
	}
	return ledgerdomain.CreditInfo{
		UserID:             account.UserID,
		CreditBalance:      account.CreditBalance,
		RegistrationDate:   account.RegistrationDate,
		TrialResetDate:     account.TrialResetDate,
		LastUsageDate:      account.LastUsageDate,
		LastPaymentDate:    account.LastPaymentDate,
		TotalPayments:      account.TotalPayments,
		IsInTrial:          now.Before(trialEnd),
		TrialDaysRemaining: daysRemaining,
		BillingConfig:      rates.BillingConfig(),
	}
}

func (s *Service) CreatePendingPayment(ctx context.Context, req ledgerdomain.CreatePaymentRequest) (*ledgerdomain.Payment, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	rates := s.rates.Rates()
	now := s.clock.Now().UTC()

	code := strings.ToUpper(strings.TrimSpace(req.Currency))
	if code == "" {
		code = rates.BaseCurrency
	}
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		paymentID = uuid.NewString()
	}
	amountBase := currency.Normalize(req.Amount, code, rates)

	payment := ledgerdomain.Payment{
		PaymentID:     paymentID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      code,
		AmountBase:    amountBase,
		CreditDays:    currency.CreditDays(amountBase, rates.DailyRate),
		Status:        ledgerdomain.PaymentStatusPending,
		Provider:      req.Provider,
		PaymentMethod: req.PaymentMethod,
		Source:        req.Source,
		PhoneE164:     req.PhoneE164,
		MonthKey:      ledgerdomain.MonthKey(now),
		ProviderData:  req.ProviderData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	inserted, err := s.repo.InsertPayment(ctx, s.db, &payment)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ledgerdomain.ErrAlreadyProcessed
	}
	return &payment, nil
}

func (s *Service) AttachCheckoutRequest(ctx context.Context, paymentID, checkoutRequestID string) error {
	paymentID = strings.TrimSpace(paymentID)
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if paymentID == "" || checkoutRequestID == "" {
		return ledgerdomain.ErrInvalidEvent
	}
	now := s.clock.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SetCheckoutRequest(ctx, tx, paymentID, checkoutRequestID, now); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return ledgerdomain.ErrCorrelationTaken
			}
			return err
		}
		inserted, err := s.repo.InsertCorrelation(ctx, tx, &ledgerdomain.PaymentCorrelation{
			CheckoutRequestID: checkoutRequestID,
			PaymentID:         paymentID,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.repo.FindCorrelation(ctx, tx, checkoutRequestID)
			if err != nil {
				return err
			}
			if existing == nil || existing.PaymentID != paymentID {
				return ledgerdomain.ErrCorrelationTaken
			}
		}
		return nil
	})
}

// ResolvePayment finds the payment for a provider callback: the checkout
// correlation index first, then the account reference as a direct key.
func (s *Service) ResolvePayment(ctx context.Context, checkoutRequestID, accountReference string) (*ledgerdomain.Payment, error) {
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	accountReference = strings.TrimSpace(accountReference)

	if checkoutRequestID != "" {
		correlation, err := s.repo.FindCorrelation(ctx, s.db, checkoutRequestID)
		if err != nil {
			return nil, err
		}
		if correlation != nil {
			payment, err := s.repo.FindPayment(ctx, s.db, correlation.PaymentID, false)
			if err != nil {
				return nil, err
			}
			if payment != nil {
				return payment, nil
			}
		}
	}

	if accountReference != "" {
		payment, err := s.repo.FindPayment(ctx, s.db, accountReference, false)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}
	return nil, ledgerdomain.ErrPaymentNotFound
}

func (s *Service) GetPayment(ctx context.Context, paymentID string) (*ledgerdomain.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, ledgerdomain.ErrPaymentNotFound
	}
	payment, err := s.repo.FindPayment(ctx, s.db, paymentID, false)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ledgerdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) ListAccounts(ctx context.Context, userIDs []string) ([]ledgerdomain.Account, error) {
	return s.repo.ListAccounts(ctx, s.db, userIDs)
}
