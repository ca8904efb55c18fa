package payment

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/novandria/bankgateway/internal"
	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
)

// wireDecimalPlaces and wireAmountWidth are part of the gateway wire
// contract: amounts travel as minor units, zero-padded to 12 characters.
const (
	wireDecimalPlaces = 2
	wireAmountWidth   = 12

	requestTimeFormat = "2006-01-02T15:04:05.000Z"
	claimWindow       = time.Hour
	defaultAudience   = "bank-payment-gateway"
)

// URLSet holds the notification URLs resolved by the host platform. The
// builder checks well-formedness only, never reachability.
type URLSet struct {
	Success string
	Fail    string
	Cancel  string
	Backend string
}

// BuildPaymentRequest assembles the canonical request payload for one
// gateway call. Metadata (request id, timestamp, claim window) is generated
// fresh on every call, so a retry never resends stale metadata.
func BuildPaymentRequest(o *ordermodel.Order, cfg internal.GatewayConfig, urls URLSet) (*PaymentRequest, error) {
	if err := validateURLSet(urls); err != nil {
		return nil, err
	}

	amount := o.TotalAmount
	if cfg.CardFeeEnabled && cfg.CardFeePercent > 0 {
		amount = amount * (1 + cfg.CardFeePercent/100)
	}
	// round half-up to 2dp exactly once, after the surcharge
	amount = roundHalfUp(amount, wireDecimalPlaces)

	items := make([]LineItem, 0, len(o.Items))
	for i, item := range o.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		items = append(items, LineItem{
			Type:        "PURCHASE",
			ReferenceNo: item.ReferenceNo,
			Description: item.Description,
			Price:       newAmountDetail(item.Price*float64(qty), cfg.CurrencyCode),
			SequenceNo:  i + 1,
		})
	}

	now := time.Now().UTC()
	iat := now.Unix()

	return &PaymentRequest{
		MerchantID:       cfg.MerchantID,
		RequestMessageID: uuid.NewString(),
		RequestDateTime:  now.Format(requestTimeFormat),
		OrderNo:          o.OrderNo,
		CurrencyCode:     cfg.CurrencyCode,
		Amount:           newAmountDetail(amount, cfg.CurrencyCode),
		Items:            items,
		SuccessURL:       urls.Success,
		FailURL:          urls.Fail,
		CancelURL:        urls.Cancel,
		BackendURL:       urls.Backend,
		ThreeDSecure:     cfg.ThreeDSecure,
		Issuer:           cfg.MerchantID,
		Audience:         defaultAudience,
		IssuedAt:         iat,
		NotBefore:        iat,
		ExpiresAt:        iat + int64(claimWindow.Seconds()),
	}, nil
}

func newAmountDetail(amount float64, currency string) AmountDetail {
	rounded := roundHalfUp(amount, wireDecimalPlaces)
	return AmountDetail{
		AmountText:    AmountText(rounded),
		CurrencyCode:  currency,
		DecimalPlaces: wireDecimalPlaces,
		Amount:        rounded,
	}
}

// AmountText encodes an amount as minor units left-padded with zeros to 12
// characters, e.g. 12.5 -> "000000001250".
func AmountText(amount float64) string {
	minor := int64(math.Floor(amount*100 + 0.5))
	return fmt.Sprintf("%0*d", wireAmountWidth, minor)
}

// roundHalfUp rounds to the given number of decimal places, ties away from
// zero toward positive infinity (half-up), matching the gateway contract.
func roundHalfUp(value float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Floor(value*shift+0.5) / shift
}

func validateURLSet(urls URLSet) error {
	for name, raw := range map[string]string{
		"success_url": urls.Success,
		"fail_url":    urls.Fail,
		"cancel_url":  urls.Cancel,
		"backend_url": urls.Backend,
	} {
		if raw == "" {
			return internal.NewValidationError(fmt.Sprintf("%s is required", name), internal.ErrCodeInvalidURL)
		}
		parsed, err := url.ParseRequestURI(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return internal.NewValidationError(fmt.Sprintf("%s is not a well-formed URL", name), internal.ErrCodeInvalidURL)
		}
	}
	return nil
}
