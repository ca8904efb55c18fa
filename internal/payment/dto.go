package payment

import (
	"encoding/json"
)

// PaymentRequest is the canonical payment-initiation payload sealed into the
// outbound token. Immutable once built; one per gateway call.
type PaymentRequest struct {
	MerchantID       string       `json:"merchantId"`
	RequestMessageID string       `json:"requestMessageID"`
	RequestDateTime  string       `json:"requestDateTime"`
	OrderNo          string       `json:"orderNo"`
	CurrencyCode     string       `json:"currencyCode"`
	Amount           AmountDetail `json:"transactionAmount"`
	Items            []LineItem   `json:"purchaseItems"`
	SuccessURL       string       `json:"successUrl"`
	FailURL          string       `json:"failUrl"`
	CancelURL        string       `json:"cancelUrl"`
	BackendURL       string       `json:"backendUrl"`
	ThreeDSecure     bool         `json:"use3DSecure"`

	// JOSE claim set carried inside the signed payload. Exp is always
	// Iat plus one hour.
	Issuer    string `json:"iss"`
	Audience  string `json:"aud"`
	IssuedAt  int64  `json:"iat"`
	NotBefore int64  `json:"nbf"`
	ExpiresAt int64  `json:"exp"`
}

// AmountDetail carries both the numeric amount and its exact textual wire
// encoding: minor units, left-padded with zeros to 12 characters.
type AmountDetail struct {
	AmountText    string  `json:"amountText"`
	CurrencyCode  string  `json:"currencyCode"`
	DecimalPlaces int     `json:"decimalPlaces"`
	Amount        float64 `json:"amount"`
}

type LineItem struct {
	Type          string       `json:"itemType"`
	ReferenceNo   string       `json:"referenceNo"`
	Description   string       `json:"description"`
	Price         AmountDetail `json:"price"`
	SubMerchantID string       `json:"subMerchantID,omitempty"`
	SequenceNo    int          `json:"sequenceNo"`
}

// PaymentResponse is the payload opened from the bank's sealed response to a
// payment initiation.
type PaymentResponse struct {
	PaymentURL       string `json:"paymentUrl"`
	ExpiryTime       int64  `json:"expiryTime"`
	RequestMessageID string `json:"requestMessageID"`
	ResultCode       string `json:"resultCode,omitempty"`
}

// IPNMessage is the decoded asynchronous notification. Transient: validated,
// applied to order state, then discarded.
type IPNMessage struct {
	IssuedAt      *json.Number   `json:"iat,omitempty"`
	ExpiresAt     *json.Number   `json:"exp,omitempty"`
	PaymentResult *PaymentResult `json:"paymentResult"`
}

type PaymentResult struct {
	OrderNo         string           `json:"orderNo"`
	PaymentStatus   string           `json:"paymentStatus"`
	StatusSubCode   string           `json:"statusSubCode,omitempty"`
	TransactionID   string           `json:"transactionID,omitempty"`
	CardAuthDetails *CardAuthDetails `json:"cardAuthDetails,omitempty"`
}

type CardAuthDetails struct {
	AuthCode   string `json:"authCode,omitempty"`
	CardMasked string `json:"cardMasked,omitempty"`
	CardScheme string `json:"cardScheme,omitempty"`
}

// CheckoutResult is what the host platform gets back from a process-payment
// call: the redirect URL, and whether an unexpired session was reused.
type CheckoutResult struct {
	OrderNo    string `json:"order_no"`
	PaymentURL string `json:"payment_url"`
	Reused     bool   `json:"reused"`
}

// Ack is the reconciliation outcome mapped onto HTTP-equivalent status codes
// for the notification endpoint.
type Ack struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}
