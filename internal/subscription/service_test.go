package subscription

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/meterlease/meterlease-core/internal/balance"
	"github.com/meterlease/meterlease-core/internal/event"
	"github.com/meterlease/meterlease-core/internal/registry"
)

const testOperator = "0xoperator"

// newTestService wires a service against an in-memory database with one
// registered device at 10000/day.
func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db := setupTestDB(t)
	svc := NewService(db,
		NewSQLiteRepository(db),
		registry.NewSQLiteRepository(db),
		balance.NewSQLiteRepository(db),
		event.NewSQLiteJournal(db),
		nil, testOperator, nil,
	)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	d := &registry.Device{
		ID:         "mtr-001",
		Owner:      "0xowner",
		Name:       "Flow Meter",
		Type:       "water_meter",
		Active:     true,
		SessionFee: 5000,
		FeePerDay:  10000,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := registry.NewSQLiteRepository(db).Create(context.Background(), d); err != nil {
		t.Fatalf("seeding device: %v", err)
	}

	return svc, db
}

func TestService_Subscribe(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	// 10000/day at a week plan: 70000 exactly.
	sub, err := svc.Subscribe(ctx, "0xuser", "mtr-001", PlanWeek, 70000)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if sub.ID == 0 {
		t.Error("Subscribe() did not assign an ID")
	}
	if sub.TotalFee != 70000 || sub.Status != StatusActive {
		t.Errorf("Subscribe() = %+v", sub)
	}
	wantEnd := time.Date(2026, 8, 8, 12, 0, 0, 0, time.UTC)
	if !sub.EndsAt.Equal(wantEnd) {
		t.Errorf("EndsAt = %v, want %v", sub.EndsAt, wantEnd)
	}

	// Owner paid immediately, no escrow.
	accounts := balance.NewSQLiteRepository(db)
	ownerBal, _ := accounts.Balance(ctx, "0xowner")
	if ownerBal != 70000 {
		t.Errorf("owner balance = %d, want 70000", ownerBal)
	}
	tr, _ := accounts.Treasury(ctx)
	if tr.DepositsTotal != 70000 {
		t.Errorf("DepositsTotal = %d, want 70000", tr.DepositsTotal)
	}

	active, err := svc.IsActive(ctx, sub.ID)
	if err != nil {
		t.Fatalf("IsActive() error = %v", err)
	}
	if !active {
		t.Error("IsActive() = false for fresh subscription")
	}
}

func TestService_Subscribe_Overlapping(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	// Subscriptions are non-exclusive: two users may hold overlapping
	// windows on the same device.
	first, err := svc.Subscribe(ctx, "0xuser1", "mtr-001", PlanWeek, 70000)
	if err != nil {
		t.Fatalf("first Subscribe() error = %v", err)
	}
	second, err := svc.Subscribe(ctx, "0xuser2", "mtr-001", PlanDay, 10000)
	if err != nil {
		t.Fatalf("second Subscribe() error = %v", err)
	}

	for _, id := range []int64{first.ID, second.ID} {
		active, err := svc.IsActive(ctx, id)
		if err != nil {
			t.Fatalf("IsActive(%d) error = %v", id, err)
		}
		if !active {
			t.Errorf("subscription %d inactive, want active", id)
		}
	}

	accounts := balance.NewSQLiteRepository(db)
	ownerBal, _ := accounts.Balance(ctx, "0xowner")
	if ownerBal != 80000 {
		t.Errorf("owner balance = %d, want 80000", ownerBal)
	}
}

func TestService_Subscribe_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("invalid plan", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, "0xuser", "mtr-001", Plan("year"), 70000)
		if !errors.Is(err, ErrInvalidPlan) {
			t.Errorf("Subscribe() error = %v, want ErrInvalidPlan", err)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, "0xuser", "mtr-999", PlanDay, 10000)
		if !errors.Is(err, registry.ErrDeviceNotFound) {
			t.Errorf("Subscribe() error = %v, want ErrDeviceNotFound", err)
		}
	})

	t.Run("payment mismatch", func(t *testing.T) {
		// Day plan at 10000/day: paying the week price fails.
		_, err := svc.Subscribe(ctx, "0xuser", "mtr-001", PlanDay, 70000)
		if !errors.Is(err, ErrPaymentMismatch) {
			t.Errorf("Subscribe() error = %v, want ErrPaymentMismatch", err)
		}
	})
}

func TestService_Subscribe_PriceOverflow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	devices := registry.NewSQLiteRepository(db)
	d, _ := devices.Get(ctx, "mtr-001")
	d.FeePerDay = 1 << 62
	if err := devices.Update(ctx, d); err != nil {
		t.Fatalf("updating device: %v", err)
	}

	// 2^62 * 7 overflows int64.
	_, err := svc.Subscribe(ctx, "0xuser", "mtr-001", PlanWeek, 0)
	if !errors.Is(err, balance.ErrOverflow) {
		t.Errorf("Subscribe() error = %v, want ErrOverflow", err)
	}
}

func TestService_Expire(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "0xuser", "mtr-001", PlanDay, 10000)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	t.Run("before end time", func(t *testing.T) {
		if err := svc.Expire(ctx, "0xanyone", sub.ID); !errors.Is(err, ErrNotYetExpired) {
			t.Errorf("Expire() error = %v, want ErrNotYetExpired", err)
		}
	})

	// Advance past the end time. Lazy expiry flips IsActive first.
	svc.now = func() time.Time { return sub.EndsAt.Add(time.Minute) }

	active, err := svc.IsActive(ctx, sub.ID)
	if err != nil {
		t.Fatalf("IsActive() error = %v", err)
	}
	if active {
		t.Error("IsActive() = true past end time without Expire")
	}

	t.Run("any caller may expire", func(t *testing.T) {
		if err := svc.Expire(ctx, "0xanyone", sub.ID); err != nil {
			t.Fatalf("Expire() error = %v", err)
		}
		got, _ := svc.Get(ctx, sub.ID)
		if got.Status != StatusExpired {
			t.Errorf("Status = %v, want expired", got.Status)
		}
	})

	t.Run("repeat rejected", func(t *testing.T) {
		if err := svc.Expire(ctx, "0xanyone", sub.ID); !errors.Is(err, ErrAlreadyExpired) {
			t.Errorf("Expire() repeat error = %v, want ErrAlreadyExpired", err)
		}
	})

	t.Run("unknown subscription", func(t *testing.T) {
		if err := svc.Expire(ctx, "0xanyone", 999); !errors.Is(err, ErrSubscriptionNotFound) {
			t.Errorf("Expire() error = %v, want ErrSubscriptionNotFound", err)
		}
	})
}

func TestService_TreasuryAdministration(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	accounts := balance.NewSQLiteRepository(db)

	t.Run("operator only", func(t *testing.T) {
		if err := svc.SetRegistrationReward(ctx, "0xuser", 1000); !errors.Is(err, ErrNotOperator) {
			t.Errorf("SetRegistrationReward() error = %v, want ErrNotOperator", err)
		}
		if err := svc.Fund(ctx, "0xuser", 5000); !errors.Is(err, ErrNotOperator) {
			t.Errorf("Fund() error = %v, want ErrNotOperator", err)
		}
	})

	if err := svc.SetRegistrationReward(ctx, testOperator, 1000); err != nil {
		t.Fatalf("SetRegistrationReward() error = %v", err)
	}
	if err := svc.Fund(ctx, testOperator, 5000); err != nil {
		t.Fatalf("Fund() error = %v", err)
	}

	tr, err := accounts.Treasury(ctx)
	if err != nil {
		t.Fatalf("Treasury() error = %v", err)
	}
	if tr.RegistrationReward != 1000 {
		t.Errorf("RegistrationReward = %d, want 1000", tr.RegistrationReward)
	}
	if tr.RewardPool != 5000 {
		t.Errorf("RewardPool = %d, want 5000", tr.RewardPool)
	}
	// Funding counts as a deposit so conservation holds.
	if tr.DepositsTotal != 5000 {
		t.Errorf("DepositsTotal = %d, want 5000", tr.DepositsTotal)
	}

	journal := event.NewSQLiteJournal(db)
	result, err := journal.List(ctx, event.Filter{EntityType: event.EntityTreasury})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 2 {
		t.Errorf("treasury events = %d, want reward_set + treasury_funded", result.Total)
	}
	for _, ev := range result.Events {
		if !ev.CreatedAt.Equal(svc.now().UTC()) {
			t.Errorf("event %s CreatedAt = %v, want service clock %v", ev.Type, ev.CreatedAt, svc.now().UTC())
		}
	}
}
