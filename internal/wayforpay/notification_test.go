package wayforpay

import (
	"errors"
	"testing"
)

func TestParseNotification(t *testing.T) {
	body := []byte(`{
		"merchantAccount": "test_merch_n1",
		"orderReference": "sub_777_1700000000",
		"merchantSignature": "abc",
		"amount": 300,
		"currency": "UAH",
		"authCode": "541963",
		"cardPan": "444455XXXXXX1111",
		"transactionStatus": "Approved",
		"reasonCode": 1100,
		"recToken": "tok123",
		"clientAccountId": 777
	}`)

	n, err := ParseNotification(body)
	if err != nil {
		t.Fatalf("parse notification: %v", err)
	}

	if n.OrderReference != "sub_777_1700000000" {
		t.Fatalf("unexpected order reference: %q", n.OrderReference)
	}
	if n.Amount.String() != "300" {
		t.Fatalf("unexpected amount token: %q", n.Amount.String())
	}
	if n.ClientAccountID.String() != "777" {
		t.Fatalf("numeric clientAccountId must decode, got %q", n.ClientAccountID.String())
	}
	if n.RecToken != "tok123" {
		t.Fatalf("unexpected rec token: %q", n.RecToken)
	}
}

func TestParseNotificationPreservesAmountToken(t *testing.T) {
	n, err := ParseNotification([]byte(`{"amount": 300.00, "currency": "UAH"}`))
	if err != nil {
		t.Fatalf("parse notification: %v", err)
	}
	// The raw token matters: "300.00" and "300" sign differently.
	if n.Amount.String() != "300.00" {
		t.Fatalf("amount token not preserved: %q", n.Amount.String())
	}
}

func TestParseNotificationRejectsNonObjects(t *testing.T) {
	for _, body := range [][]byte{nil, {}, []byte("  "), []byte(`"str"`), []byte(`[1,2]`), []byte(`42`)} {
		if _, err := ParseNotification(body); !errors.Is(err, ErrNotificationBody) {
			t.Fatalf("expected ErrNotificationBody for %q, got %v", body, err)
		}
	}

	if _, err := ParseNotification([]byte(`{"amount": `)); err == nil {
		t.Fatalf("expected decode error for truncated object")
	}
}

func TestFlexStringAcceptsStringAndNumber(t *testing.T) {
	var s FlexString

	if err := s.UnmarshalJSON([]byte(`"hello"`)); err != nil || s != "hello" {
		t.Fatalf("string decode failed: %v, %q", err, s)
	}
	if err := s.UnmarshalJSON([]byte(`12345`)); err != nil || s != "12345" {
		t.Fatalf("number decode failed: %v, %q", err, s)
	}
	if err := s.UnmarshalJSON([]byte(`null`)); err != nil || s != "" {
		t.Fatalf("null decode failed: %v, %q", err, s)
	}
	if err := s.UnmarshalJSON([]byte(`{"nested":1}`)); err == nil {
		t.Fatalf("expected error for object value")
	}
}
