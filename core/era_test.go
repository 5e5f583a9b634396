package core

import "testing"

func TestEraTransitionOnSchedule(t *testing.T) {
	d := NewEraDispatcher(EraByron)
	if err := d.Schedule(5, EraShelley); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	d.Tick(4)
	if d.Current() != EraByron {
		t.Fatalf("expected no transition before the activation epoch, got %s", d.Current())
	}
	d.Tick(5)
	if d.Current() != EraShelley {
		t.Fatalf("expected Shelley active at epoch 5, got %s", d.Current())
	}
}

func TestEraTickIsIdempotent(t *testing.T) {
	d := NewEraDispatcher(EraByron)
	if err := d.Schedule(5, EraShelley); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	d.Tick(5)
	d.Tick(5)
	d.Tick(6)
	if d.Current() != EraShelley {
		t.Fatalf("expected repeated ticks at or past activation to be idempotent, got %s", d.Current())
	}
}

func TestEraMultipleScheduledTransitionsInOrder(t *testing.T) {
	d := NewEraDispatcher(EraByron)
	if err := d.Schedule(5, EraShelley); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := d.Schedule(10, EraAllegra); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	d.Tick(12)
	if d.Current() != EraAllegra {
		t.Fatalf("expected Allegra active after ticking past both activations, got %s", d.Current())
	}
}

func TestEraScheduleConflict(t *testing.T) {
	d := NewEraDispatcher(EraByron)
	if err := d.Schedule(5, EraShelley); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := d.Schedule(5, EraAllegra); err == nil {
		t.Fatalf("expected ScheduleConflict for an activation epoch not after the last scheduled epoch")
	}
	if err := d.Schedule(3, EraAllegra); err == nil {
		t.Fatalf("expected ScheduleConflict for an activation epoch before the last scheduled epoch")
	}
}

func TestEraValidateTransactionDelegatesToActiveEra(t *testing.T) {
	d := NewEraDispatcher(EraByron)
	zeroOut := Transaction{Inputs: []TxInput{{PrevTx: 0, Index: 0}}, Outputs: []TxOutput{{Amount: 0}}}
	if !d.ValidateTransaction(zeroOut) {
		t.Fatalf("expected Byron to accept a zero-amount output")
	}

	if err := d.Schedule(1, EraShelley); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	d.Tick(1)
	if d.ValidateTransaction(zeroOut) {
		t.Fatalf("expected Shelley to reject a zero-amount output")
	}
}
