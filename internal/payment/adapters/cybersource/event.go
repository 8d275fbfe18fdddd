package cybersource

import (
	"strings"
	"time"

	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

// ChargeEvent maps an approved card payment onto a ledger charge. The
// payment is keyed by the client reference code when the app supplied one
// and by the processor transaction id otherwise.
func ChargeEvent(userID, transactionID, referenceCode string, amount float64, code, method, source string, at time.Time) (*ledgerdomain.PaymentEvent, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	reference := strings.TrimSpace(referenceCode)
	if reference == "" {
		reference = transactionID
	}
	return &ledgerdomain.PaymentEvent{
		UserID:            strings.TrimSpace(userID),
		ProviderReference: reference,
		Provider:          ledgerdomain.ProviderCyberSource,
		PaymentMethod:     method,
		Source:            source,
		AmountMinor:       int64(amount*100 + 0.5),
		Currency:          strings.ToUpper(strings.TrimSpace(code)),
		Kind:              ledgerdomain.EventChargeSuccess,
		OccurredAt:        at.UTC(),
		ProviderData: map[string]any{
			"transaction_id": transactionID,
		},
	}, nil
}
