package wayforpay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	StatusApproved   = "Approved"
	StatusPending    = "Pending"
	StatusDeclined   = "Declined"
	StatusExpired    = "Expired"
	StatusRefunded   = "Refunded"
	AckStatusAccept  = "accept"
	UnknownReference = "UNKNOWN"
)

var ErrNotificationBody = errors.New("notification body is not a JSON object")

// Notification is the gateway's service-URL callback payload. Numeric fields
// use json.Number so the signature check reuses the exact token the gateway
// serialized (amount "300" vs "300.00" changes the MAC).
type Notification struct {
	MerchantAccount   string      `json:"merchantAccount"`
	OrderReference    string      `json:"orderReference"`
	MerchantSignature string      `json:"merchantSignature"`
	Amount            json.Number `json:"amount"`
	Currency          string      `json:"currency"`
	AuthCode          string      `json:"authCode"`
	Email             string      `json:"email"`
	Phone             string      `json:"phone"`
	CreatedDate       json.Number `json:"createdDate"`
	ProcessingDate    json.Number `json:"processingDate"`
	CardPan           string      `json:"cardPan"`
	CardType          string      `json:"cardType"`
	IssuerBankCountry FlexString  `json:"issuerBankCountry"`
	IssuerBankName    string      `json:"issuerBankName"`
	RecToken          string      `json:"recToken"`
	TransactionStatus string      `json:"transactionStatus"`
	Reason            string      `json:"reason"`
	ReasonCode        json.Number `json:"reasonCode"`
	Fee               json.Number `json:"fee"`
	PaymentSystem     string      `json:"paymentSystem"`
	ClientAccountID   FlexString  `json:"clientAccountId"`
}

// FlexString tolerates the gateway flip-flopping between string and numeric
// encodings for the same field across payload revisions.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("flex string accepts string or number: %w", err)
	}
	*s = FlexString(num.String())
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// ParseNotification decodes a webhook body. Anything but a JSON object is
// rejected so the caller can fall back to best-effort acknowledgment.
func ParseNotification(body []byte) (Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Notification{}, ErrNotificationBody
	}

	var n Notification
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return n, nil
}

// UserID resolves the client identity with the documented precedence: the
// explicit clientAccountId first, the order-reference digits second.
func (n Notification) UserID() (int64, error) {
	if raw := strings.TrimSpace(n.ClientAccountID.String()); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	id, _, err := ParseOrderReference(n.OrderReference)
	if err != nil {
		return 0, err
	}
	return id, nil
}

var rawReferencePattern = regexp.MustCompile(`"orderReference"\s*:\s*"([^"]*)"`)

// SalvageOrderReference digs an order reference out of a body that failed to
// parse, so the acknowledgment can still name the delivery the gateway is
// retrying.
func SalvageOrderReference(body []byte) string {
	if m := rawReferencePattern.FindSubmatch(body); m != nil && len(m[1]) > 0 {
		return string(m[1])
	}
	return UnknownReference
}

// Ack is the response the gateway requires for every delivery, processed or
// not.
type Ack struct {
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Time           int64  `json:"time"`
	Signature      string `json:"signature"`
}

func (c Codec) NewAck(orderReference string, unixTime int64) Ack {
	return Ack{
		OrderReference: orderReference,
		Status:         AckStatusAccept,
		Time:           unixTime,
		Signature:      c.AckSignature(orderReference, unixTime),
	}
}

func formatUnix(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
