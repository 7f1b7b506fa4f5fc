package wayforpay

import (
	"encoding/json"
	"testing"
)

// Signature fixtures are pinned to literal digests: a wrong field order
// silently produces an always-invalid MAC, so these must never be derived
// from the code under test.
const fixtureSecret = "flk3409refn54t54t*FNJRET"

func TestPurchaseSignatureFixture(t *testing.T) {
	codec := NewCodec(fixtureSecret, MissingOmit)

	fields := PurchaseFields{
		MerchantAccount: "test_merch_n1",
		MerchantDomain:  "dreamcatcher.guru",
		OrderReference:  "sub_777_1700000000",
		OrderDate:       "1700000000",
		Amount:          "300",
		Currency:        "UAH",
		ProductName:     "AI Dream Analysis (Subscription)",
		ProductCount:    "1",
		ProductPrice:    "300",
	}

	if got := codec.PurchaseSignature(fields); got != "5a754fffc0314fc79b87572991fc8f84" {
		t.Fatalf("unexpected purchase signature: %s", got)
	}

	fields.SignRegular = true
	fields.RegularAmount = "300"
	fields.RegularMode = "month"
	fields.RegularInterval = "1"
	fields.RegularCount = "0"
	fields.RegularStartDate = "2026-10-01"

	if got := codec.PurchaseSignature(fields); got != "adfde01074dbe1875c21e179e7d7b72c" {
		t.Fatalf("unexpected purchase signature with regular fields: %s", got)
	}
}

func TestNotificationSignatureApprovedFixture(t *testing.T) {
	codec := NewCodec(fixtureSecret, MissingOmit)

	n := Notification{
		MerchantAccount:   "test_merch_n1",
		OrderReference:    "sub_777_1700000000",
		Amount:            json.Number("300"),
		Currency:          "UAH",
		AuthCode:          "541963",
		CardPan:           "444455XXXXXX1111",
		TransactionStatus: StatusApproved,
		ReasonCode:        json.Number("1100"),
		MerchantSignature: "c3c6c3f4f2518abe2b1499a9a7f4968b",
	}

	if !codec.VerifyNotification(n) {
		t.Fatalf("approved notification fixture must verify")
	}

	// Any tampered signed field must break the MAC.
	tampered := n
	tampered.Amount = json.Number("301")
	if codec.VerifyNotification(tampered) {
		t.Fatalf("tampered amount must not verify")
	}

	tampered = n
	tampered.OrderReference = "sub_778_1700000000"
	if codec.VerifyNotification(tampered) {
		t.Fatalf("tampered order reference must not verify")
	}

	tampered = n
	tampered.MerchantSignature = "c3c6c3f4f2518abe2b1499a9a7f4968c"
	if codec.VerifyNotification(tampered) {
		t.Fatalf("tampered signature must not verify")
	}
}

func TestNotificationSignatureDropsCardFieldsForNonApproved(t *testing.T) {
	codec := NewCodec(fixtureSecret, MissingOmit)

	n := Notification{
		MerchantAccount:   "test_merch_n1",
		OrderReference:    "sub_777_1700000000",
		Amount:            json.Number("300"),
		Currency:          "UAH",
		TransactionStatus: StatusDeclined,
		ReasonCode:        json.Number("1105"),
		MerchantSignature: "922f4521d1725da10800f5cecf83b725",
	}

	if !codec.VerifyNotification(n) {
		t.Fatalf("declined notification fixture must verify")
	}
}

func TestMissingFieldModeChangesSignatureString(t *testing.T) {
	n := Notification{
		MerchantAccount:   "test_merch_n1",
		OrderReference:    "widget_single_42_1700000500",
		Amount:            json.Number("50"),
		Currency:          "UAH",
		TransactionStatus: StatusApproved,
		ReasonCode:        json.Number("1100"),
	}

	omit := NewCodec(fixtureSecret, MissingOmit)
	if got := omit.Sign(omit.NotificationFields(n)); got != "031020378412655334fd72cb01be2216" {
		t.Fatalf("unexpected omit-mode signature: %s", got)
	}

	nullMode := NewCodec(fixtureSecret, MissingNull)
	if got := nullMode.Sign(nullMode.NotificationFields(n)); got != "78f964d1bb33188a24c57a71e035d889" {
		t.Fatalf("unexpected null-mode signature: %s", got)
	}
}

func TestAckSignatureFixture(t *testing.T) {
	codec := NewCodec(fixtureSecret, MissingOmit)

	ack := codec.NewAck("sub_777_1700000000", 1700000100)
	if ack.Status != AckStatusAccept {
		t.Fatalf("unexpected ack status: %q", ack.Status)
	}
	if ack.Signature != "2a77a6ad9a6fae3b57466759b4d87254" {
		t.Fatalf("unexpected ack signature: %s", ack.Signature)
	}

	// The ack must re-verify independently, including the UNKNOWN sentinel.
	if !codec.Verify([]string{ack.OrderReference, ack.Status, formatUnix(ack.Time)}, ack.Signature) {
		t.Fatalf("ack signature must round-trip")
	}

	unknown := codec.NewAck(UnknownReference, 1700000100)
	if unknown.Signature != "fb9eab78ee8b113a5dc633349e694ece" {
		t.Fatalf("unexpected sentinel ack signature: %s", unknown.Signature)
	}
}

func TestRemoveSignatureFixture(t *testing.T) {
	codec := NewCodec(fixtureSecret, MissingOmit)

	got := codec.RemoveSignature("test_merch_n1", "order_42_1700000000", "tok123")
	if got != "8349439599a3151d1f782ac4499dc5b2" {
		t.Fatalf("unexpected remove signature: %s", got)
	}
}

func TestVerifyToleratesCaseAndWhitespace(t *testing.T) {
	fields := []string{"a", "b", "c"}
	digest := Sign(fixtureSecret, fields)

	if !Verify(fixtureSecret, fields, "  "+digest+" ") {
		t.Fatalf("verify must trim whitespace")
	}
	if !Verify(fixtureSecret, fields, stringsToUpper(digest)) {
		t.Fatalf("verify must accept upper-case hex")
	}
	if Verify(fixtureSecret, []string{"a", "b"}, digest) {
		t.Fatalf("verify must fail on different field list")
	}
}

func stringsToUpper(s string) string {
	out := []byte(s)
	for i, b := range out {
		if b >= 'a' && b <= 'f' {
			out[i] = b - 32
		}
	}
	return string(out)
}
