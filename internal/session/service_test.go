package session

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

// newTestService wires a service against an in-memory database with one
// registered device.
func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db := setupTestDB(t)
	svc := NewService(db,
		NewSQLiteRepository(db),
		registry.NewSQLiteRepository(db),
		balance.NewSQLiteRepository(db),
		event.NewSQLiteJournal(db),
		nil, nil,
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

// checkConservation asserts the ledger's conservation invariant:
// balances + reward pool + active escrow == deposits - withdrawals.
func checkConservation(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()

	accounts := balance.NewSQLiteRepository(db)
	balances, err := accounts.TotalBalances(ctx)
	if err != nil {
		t.Fatalf("TotalBalances() error = %v", err)
	}
	tr, err := accounts.Treasury(ctx)
	if err != nil {
		t.Fatalf("Treasury() error = %v", err)
	}
	escrow, err := NewSQLiteRepository(db).EscrowTotal(ctx)
	if err != nil {
		t.Fatalf("EscrowTotal() error = %v", err)
	}

	held := balances + tr.RewardPool + escrow
	net := tr.DepositsTotal - tr.WithdrawalsTotal
	if held != net {
		t.Errorf("conservation violated: balances(%d) + pool(%d) + escrow(%d) = %d, want deposits(%d) - withdrawals(%d) = %d",
			balances, tr.RewardPool, escrow, held, tr.DepositsTotal, tr.WithdrawalsTotal, net)
	}
}

func TestService_Start(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "0xuser", "mtr-001", 5000)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if sess.DeviceID != "mtr-001" || sess.User != "0xuser" || sess.Fee != 5000 {
		t.Errorf("Start() = %+v", sess)
	}
	if !sess.Active {
		t.Error("Active = false, want true")
	}

	// The fee is escrowed, not yet anyone's balance.
	accounts := balance.NewSQLiteRepository(db)
	ownerBal, _ := accounts.Balance(ctx, "0xowner")
	if ownerBal != 0 {
		t.Errorf("owner balance during session = %d, want 0", ownerBal)
	}
	tr, _ := accounts.Treasury(ctx)
	if tr.DepositsTotal != 5000 {
		t.Errorf("DepositsTotal = %d, want 5000", tr.DepositsTotal)
	}
	checkConservation(t, db)
}

func TestService_Start_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("unknown device", func(t *testing.T) {
		_, err := svc.Start(ctx, "0xuser", "mtr-999", 5000)
		if !errors.Is(err, registry.ErrDeviceNotFound) {
			t.Errorf("Start() error = %v, want ErrDeviceNotFound", err)
		}
	})

	t.Run("payment mismatch", func(t *testing.T) {
		if _, err := svc.Start(ctx, "0xuser", "mtr-001", 4999); !errors.Is(err, ErrPaymentMismatch) {
			t.Errorf("Start() underpaid error = %v, want ErrPaymentMismatch", err)
		}
		// Overpayment is rejected too, not refunded.
		if _, err := svc.Start(ctx, "0xuser", "mtr-001", 5001); !errors.Is(err, ErrPaymentMismatch) {
			t.Errorf("Start() overpaid error = %v, want ErrPaymentMismatch", err)
		}
	})

	t.Run("device busy", func(t *testing.T) {
		if _, err := svc.Start(ctx, "0xuser", "mtr-001", 5000); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		_, err := svc.Start(ctx, "0xother", "mtr-001", 5000)
		if !errors.Is(err, ErrSessionExists) {
			t.Errorf("Start() on busy device error = %v, want ErrSessionExists", err)
		}
	})
}

func TestService_Start_InactiveDevice(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	devices := registry.NewSQLiteRepository(db)
	d, _ := devices.Get(ctx, "mtr-001")
	d.Active = false
	if err := devices.Update(ctx, d); err != nil {
		t.Fatalf("deactivating device: %v", err)
	}

	_, err := svc.Start(ctx, "0xuser", "mtr-001", 5000)
	if !errors.Is(err, registry.ErrDeviceInactive) {
		t.Errorf("Start() error = %v, want ErrDeviceInactive", err)
	}
}

func TestService_End(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "0xuser", "mtr-001", 5000)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	later := time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return later }

	ended, err := svc.End(ctx, "0xuser", sess.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Active {
		t.Error("Active = true after End")
	}
	if ended.EndedAt == nil || !ended.EndedAt.Equal(later) {
		t.Errorf("EndedAt = %v, want %v", ended.EndedAt, later)
	}

	// Escrow released to the owner.
	ownerBal, _ := balance.NewSQLiteRepository(db).Balance(ctx, "0xowner")
	if ownerBal != 5000 {
		t.Errorf("owner balance after End = %d, want 5000", ownerBal)
	}
	checkConservation(t, db)

	// The device is free again.
	if _, err := svc.ActiveSessionOfDevice(ctx, "mtr-001"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("ActiveSessionOfDevice() error = %v, want ErrNoActiveSession", err)
	}

	t.Run("repeat end rejected", func(t *testing.T) {
		if _, err := svc.End(ctx, "0xuser", sess.ID); !errors.Is(err, ErrSessionEnded) {
			t.Errorf("End() repeat error = %v, want ErrSessionEnded", err)
		}
	})
}

func TestService_End_Authorization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "0xuser", "mtr-001", 5000)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Run("stranger rejected", func(t *testing.T) {
		if _, err := svc.End(ctx, "0xmallory", sess.ID); !errors.Is(err, ErrNotParticipant) {
			t.Errorf("End() error = %v, want ErrNotParticipant", err)
		}
	})

	t.Run("owner may end", func(t *testing.T) {
		if _, err := svc.End(ctx, "0xowner", sess.ID); err != nil {
			t.Errorf("End() by owner error = %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		if _, err := svc.End(ctx, "0xuser", "deadbeef"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("End() error = %v, want ErrSessionNotFound", err)
		}
	})
}

func TestService_FreeSession(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	// A zero session fee means free leasing: payment must still match.
	devices := registry.NewSQLiteRepository(db)
	d, _ := devices.Get(ctx, "mtr-001")
	d.SessionFee = 0
	if err := devices.Update(ctx, d); err != nil {
		t.Fatalf("updating device: %v", err)
	}

	if _, err := svc.Start(ctx, "0xuser", "mtr-001", 100); !errors.Is(err, ErrPaymentMismatch) {
		t.Errorf("Start() paid on free device error = %v, want ErrPaymentMismatch", err)
	}

	sess, err := svc.Start(ctx, "0xuser", "mtr-001", 0)
	if err != nil {
		t.Fatalf("Start() free session error = %v", err)
	}
	if _, err := svc.End(ctx, "0xuser", sess.ID); err != nil {
		t.Fatalf("End() free session error = %v", err)
	}
	checkConservation(t, db)
}

func TestService_JournalsEvents(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "0xuser", "mtr-001", 5000)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := svc.End(ctx, "0xuser", sess.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	journal := event.NewSQLiteJournal(db)
	result, err := journal.List(ctx, event.Filter{EntityID: sess.ID})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("journalled events = %d, want started + ended", result.Total)
	}

	// Journal timestamps come from the service clock, not the wall
	// clock, so events line up with the state they describe.
	want := svc.now().UTC()
	for _, ev := range result.Events {
		if !ev.CreatedAt.Equal(want) {
			t.Errorf("event %s CreatedAt = %v, want %v", ev.Type, ev.CreatedAt, want)
		}
	}
}
