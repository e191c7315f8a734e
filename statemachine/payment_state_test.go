package statemachine

import (
	"testing"

	"rider-payments-api/models"
)

func TestPaymentTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    models.PaymentStatus
		to      models.PaymentStatus
		actor   string
		allowed bool
	}{
		{"admin marks cash paid", models.PaymentPending, models.PaymentPaid, ActorAdmin, true},
		{"admin rejects proof", models.PaymentPending, models.PaymentRejected, ActorAdmin, true},
		{"system fails pending", models.PaymentPending, models.PaymentFailed, ActorSystem, true},
		{"settlement completes paid", models.PaymentPaid, models.PaymentCompleted, ActorSystem, true},
		{"rider cannot mark paid", models.PaymentPending, models.PaymentPaid, ActorRider, false},
		{"admin cannot complete", models.PaymentPaid, models.PaymentCompleted, ActorAdmin, false},
		{"no resurrection from rejected", models.PaymentRejected, models.PaymentPending, ActorAdmin, false},
		{"no resurrection from failed", models.PaymentFailed, models.PaymentPaid, ActorAdmin, false},
		{"completed is final", models.PaymentCompleted, models.PaymentPending, ActorSystem, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CanTransitionPayment(tc.from, tc.to, tc.actor)
			if tc.allowed && err != nil {
				t.Fatalf("expected transition allowed, got %v", err)
			}
			if !tc.allowed && err == nil {
				t.Fatalf("expected transition %s → %s by %s to be rejected", tc.from, tc.to, tc.actor)
			}
		})
	}
}

func TestProofTransitions(t *testing.T) {
	if err := CanTransitionProof(models.ProofPending, models.ProofApproved, ActorAdmin); err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	if err := CanTransitionProof(models.ProofPending, models.ProofRejected, ActorAdmin); err != nil {
		t.Fatalf("admin reject: %v", err)
	}
	if err := CanTransitionProof(models.ProofPending, models.ProofApproved, ActorRider); err == nil {
		t.Fatal("rider should not resolve proofs")
	}
	if err := CanTransitionProof(models.ProofApproved, models.ProofRejected, ActorAdmin); err == nil {
		t.Fatal("approved proofs must stay approved")
	}
}

func TestIsTerminalPayment(t *testing.T) {
	terminal := []models.PaymentStatus{models.PaymentPaid, models.PaymentCompleted, models.PaymentRejected, models.PaymentFailed}
	for _, s := range terminal {
		if !IsTerminalPayment(s) {
			t.Errorf("%s should be terminal for admin actors", s)
		}
	}
	if IsTerminalPayment(models.PaymentPending) {
		t.Error("pending should not be terminal")
	}
}

func TestPaymentTransitionsFrom(t *testing.T) {
	nexts := PaymentTransitionsFrom(models.PaymentPending)
	if len(nexts) != 3 {
		t.Fatalf("pending should have 3 next states, got %v", nexts)
	}
	if nexts := PaymentTransitionsFrom(models.PaymentCompleted); len(nexts) != 0 {
		t.Fatalf("completed should have no next states, got %v", nexts)
	}
}
