package wayforpay

import (
	"errors"
	"testing"
	"time"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/domain/enums"
)

func TestOrderReferenceRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 0)

	cases := []struct {
		prefix   string
		wantPlan string
	}{
		{PrefixSubscription, enums.PlanSubscription},
		{PrefixSingle, enums.PlanSingle},
		{PrefixWidgetSubscription, enums.PlanSubscription},
		{PrefixWidgetSingle, enums.PlanSingle},
		{PrefixOrder, ""},
	}

	for _, tc := range cases {
		t.Run(tc.prefix, func(t *testing.T) {
			ref := NewOrderReference(tc.prefix, 12345, at)

			userID, plan, err := ParseOrderReference(ref)
			if err != nil {
				t.Fatalf("parse %q: %v", ref, err)
			}
			if userID != 12345 {
				t.Fatalf("round trip user id = %d, want 12345", userID)
			}
			if plan != tc.wantPlan {
				t.Fatalf("plan hint for %q = %q, want %q", ref, plan, tc.wantPlan)
			}
		})
	}
}

func TestOrderReferenceFormat(t *testing.T) {
	ref := NewOrderReference(PrefixSubscription, 777, time.Unix(1700000000, 0))
	if ref != "sub_777_1700000000" {
		t.Fatalf("unexpected reference format: %q", ref)
	}
}

func TestParseOrderReferenceMalformed(t *testing.T) {
	for _, ref := range []string{"", "UNKNOWN", "sub__x", "no-digits-here", "sub_abc_def"} {
		if _, _, err := ParseOrderReference(ref); !errors.Is(err, ErrMalformedReference) {
			t.Fatalf("expected ErrMalformedReference for %q, got %v", ref, err)
		}
	}
}

func TestSalvageOrderReference(t *testing.T) {
	body := []byte(`{"broken": true, "orderReference": "sub_1_2",`)
	if got := SalvageOrderReference(body); got != "sub_1_2" {
		t.Fatalf("unexpected salvaged reference: %q", got)
	}

	if got := SalvageOrderReference([]byte("not json at all")); got != UnknownReference {
		t.Fatalf("expected sentinel, got %q", got)
	}
}

func TestNotificationUserIDPrecedence(t *testing.T) {
	n := Notification{
		OrderReference:  "sub_555_1700000000",
		ClientAccountID: "777",
	}
	id, err := n.UserID()
	if err != nil {
		t.Fatalf("resolve user id: %v", err)
	}
	if id != 777 {
		t.Fatalf("explicit client id must win, got %d", id)
	}

	// Fallback to the reference when the explicit field is unusable.
	n.ClientAccountID = "not-a-number"
	id, err = n.UserID()
	if err != nil {
		t.Fatalf("resolve user id via reference: %v", err)
	}
	if id != 555 {
		t.Fatalf("reference fallback user id = %d, want 555", id)
	}

	n.ClientAccountID = ""
	n.OrderReference = "garbage"
	if _, err := n.UserID(); !errors.Is(err, ErrMalformedReference) {
		t.Fatalf("expected ErrMalformedReference, got %v", err)
	}
}
