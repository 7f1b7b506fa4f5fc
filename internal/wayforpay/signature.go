package wayforpay

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// MissingFieldMode controls how absent optional fields fold into a signature
// string. The gateway documentation is not consistent between flows, so both
// behaviors are kept selectable instead of unified.
type MissingFieldMode int

const (
	// MissingOmit drops absent fields from the joined string.
	MissingOmit MissingFieldMode = iota
	// MissingNull keeps absent fields as the literal "null".
	MissingNull
)

func ParseMissingFieldMode(raw string) MissingFieldMode {
	if strings.EqualFold(strings.TrimSpace(raw), "null") {
		return MissingNull
	}
	return MissingOmit
}

// Sign computes the gateway MAC: HMAC-MD5 over the ";"-joined field list,
// hex-encoded.
func Sign(secret string, fields []string) string {
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write([]byte(strings.Join(fields, ";")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func Verify(secret string, fields []string, candidate string) bool {
	expected := Sign(secret, fields)
	got := strings.ToLower(strings.TrimSpace(candidate))
	return hmac.Equal([]byte(expected), []byte(got))
}

// Codec binds the merchant secret and the missing-field policy for one flow.
type Codec struct {
	secret  string
	missing MissingFieldMode
}

func NewCodec(secret string, missing MissingFieldMode) Codec {
	return Codec{secret: secret, missing: missing}
}

func (c Codec) Sign(fields []string) string {
	return Sign(c.secret, fields)
}

func (c Codec) Verify(fields []string, candidate string) bool {
	return Verify(c.secret, fields, candidate)
}

// fold applies the missing-field policy to an ordered field list. Empty
// strings are treated as absent fields.
func (c Codec) fold(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			if c.missing == MissingNull {
				out = append(out, "null")
			}
			continue
		}
		out = append(out, f)
	}
	return out
}

// PurchaseFields is the documented signature order for the hosted
// checkout/widget Purchase request. Regular-payment fields are appended only
// when the flow is configured to sign them (the gateway docs disagree between
// revisions; see DESIGN.md).
type PurchaseFields struct {
	MerchantAccount  string
	MerchantDomain   string
	OrderReference   string
	OrderDate        string
	Amount           string
	Currency         string
	ProductName      string
	ProductCount     string
	ProductPrice     string
	RegularAmount    string
	RegularMode      string
	RegularInterval  string
	RegularCount     string
	RegularStartDate string
	SignRegular      bool
}

func (c Codec) PurchaseSignature(f PurchaseFields) string {
	fields := []string{
		f.MerchantAccount,
		f.MerchantDomain,
		f.OrderReference,
		f.OrderDate,
		f.Amount,
		f.Currency,
		f.ProductName,
		f.ProductCount,
		f.ProductPrice,
	}
	if f.SignRegular {
		fields = append(fields,
			f.RegularAmount,
			f.RegularMode,
			f.RegularInterval,
			f.RegularCount,
			f.RegularStartDate,
		)
	}
	return c.Sign(c.fold(fields))
}

// NotificationFields builds the signed field subset for an inbound payment
// notification. The subset legitimately differs by transaction status:
// approved notifications carry authCode and cardPan inside the MAC, other
// statuses do not.
func (c Codec) NotificationFields(n Notification) []string {
	fields := []string{
		n.MerchantAccount,
		n.OrderReference,
		n.Amount.String(),
		n.Currency,
	}
	if strings.EqualFold(n.TransactionStatus, StatusApproved) {
		fields = append(fields, n.AuthCode, n.CardPan)
	}
	fields = append(fields, n.TransactionStatus, n.ReasonCode.String())
	return c.fold(fields)
}

func (c Codec) VerifyNotification(n Notification) bool {
	return c.Verify(c.NotificationFields(n), n.MerchantSignature)
}

// AckSignature signs the acknowledgment the gateway requires to stop
// retrying: orderReference;accept;time.
func (c Codec) AckSignature(orderReference string, unixTime int64) string {
	return c.Sign([]string{orderReference, AckStatusAccept, formatUnix(unixTime)})
}

// RemoveSignature covers the recurring-token removal request:
// merchantAccount;orderReference;recToken.
func (c Codec) RemoveSignature(merchantAccount, orderReference, recToken string) string {
	return c.Sign([]string{merchantAccount, orderReference, recToken})
}
