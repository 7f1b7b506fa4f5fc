package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
)

type subsStub struct {
	record postgres.SubscriptionRecord
	err    error
}

func (s *subsStub) Get(context.Context, int64) (postgres.SubscriptionRecord, error) {
	return s.record, s.err
}

func newTestService(subs *subsStub) *Service {
	svc := NewService(subs, time.UTC, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2023, 11, 14, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestCheckActiveSubscription(t *testing.T) {
	svc := newTestService(&subsStub{record: postgres.SubscriptionRecord{
		UserID:          777,
		IsActive:        1,
		SubscriptionEnd: "2023-12-14",
	}})

	res := svc.Check(context.Background(), 777)
	if !res.Active || res.SubscriptionEnd != "2023-12-14" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheckEndDateIsInclusive(t *testing.T) {
	svc := newTestService(&subsStub{record: postgres.SubscriptionRecord{
		UserID:          777,
		IsActive:        1,
		SubscriptionEnd: "2023-11-14",
	}})

	if res := svc.Check(context.Background(), 777); !res.Active {
		t.Fatalf("subscription ending today must still be active")
	}
}

func TestCheckFailsClosed(t *testing.T) {
	cases := map[string]*subsStub{
		"not found":   {err: postgres.ErrSubscriptionNotFound},
		"store error": {err: errors.New("pg down")},
		"inactive":    {record: postgres.SubscriptionRecord{UserID: 777, IsActive: 0, SubscriptionEnd: "2023-12-14"}},
		"past end":    {record: postgres.SubscriptionRecord{UserID: 777, IsActive: 1, SubscriptionEnd: "2023-11-13"}},
	}

	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			if res := newTestService(stub).Check(context.Background(), 777); res.Active {
				t.Fatalf("expected no access")
			}
		})
	}
}

func TestCheckRejectsInvalidUser(t *testing.T) {
	svc := newTestService(&subsStub{record: postgres.SubscriptionRecord{IsActive: 1, SubscriptionEnd: "2099-01-01"}})
	if res := svc.Check(context.Background(), 0); res.Active {
		t.Fatalf("user id 0 must not resolve access")
	}
}

func TestCheckSurfacesCancelRequested(t *testing.T) {
	svc := newTestService(&subsStub{record: postgres.SubscriptionRecord{
		UserID:          777,
		IsActive:        1,
		SubscriptionEnd: "2023-12-14",
		CancelRequested: 1,
	}})

	res := svc.Check(context.Background(), 777)
	if !res.Active || !res.CancelRequested {
		t.Fatalf("unexpected result: %+v", res)
	}
}
