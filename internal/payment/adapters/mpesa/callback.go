package mpesa

import (
	"encoding/json"
	"strconv"
	"strings"

	paymentdomain "github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

// ResultSuccess is the ResultCode of a completed STK push.
const ResultSuccess = 0

// Callback is the flattened Daraja STK push callback.
type Callback struct {
	MerchantRequestID  string
	CheckoutRequestID  string
	ResultCode         int
	ResultDesc         string
	Amount             float64
	MpesaReceiptNumber string
	AccountReference   string
	PhoneNumber        string
	TransactionDate    string
}

func (c Callback) Succeeded() bool {
	return c.ResultCode == ResultSuccess
}

// ProviderData is what gets stored on the payment record.
func (c Callback) ProviderData() map[string]any {
	data := map[string]any{
		"checkout_request_id": c.CheckoutRequestID,
		"merchant_request_id": c.MerchantRequestID,
		"result_code":         c.ResultCode,
		"result_desc":         c.ResultDesc,
	}
	if c.MpesaReceiptNumber != "" {
		data["mpesa_receipt_number"] = c.MpesaReceiptNumber
	}
	if c.PhoneNumber != "" {
		data["phone_number"] = c.PhoneNumber
	}
	if c.Amount > 0 {
		data["amount"] = c.Amount
	}
	if c.TransactionDate != "" {
		data["transaction_date"] = c.TransactionDate
	}
	return data
}

type callbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        json.RawMessage `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes the gateway payload.
func ParseCallback(payload []byte) (Callback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Callback{}, paymentdomain.ErrInvalidPayload
	}
	stk := env.Body.StkCallback
	if stk == nil {
		return Callback{}, paymentdomain.ErrInvalidPayload
	}

	code, ok := rawInt(stk.ResultCode)
	if !ok {
		return Callback{}, paymentdomain.ErrInvalidPayload
	}
	out := Callback{
		MerchantRequestID: strings.TrimSpace(stk.MerchantRequestID),
		CheckoutRequestID: strings.TrimSpace(stk.CheckoutRequestID),
		ResultCode:        code,
		ResultDesc:        strings.TrimSpace(stk.ResultDesc),
	}
	if stk.CallbackMetadata == nil {
		return out, nil
	}
	for _, item := range stk.CallbackMetadata.Item {
		value := rawString(item.Value)
		switch item.Name {
		case "Amount":
			out.Amount, _ = strconv.ParseFloat(value, 64)
		case "MpesaReceiptNumber":
			out.MpesaReceiptNumber = value
		case "AccountReference":
			out.AccountReference = value
		case "PhoneNumber":
			out.PhoneNumber = value
		case "TransactionDate":
			out.TransactionDate = value
		}
	}
	return out, nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawInt(raw json.RawMessage) (int, bool) {
	value := rawString(raw)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
