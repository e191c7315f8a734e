package statemachine

import (
	"errors"

	"rider-payments-api/models"
)

// Actors that may drive payment lifecycle transitions
const (
	ActorAdmin  = "admin" // includes super_admin
	ActorRider  = "rider"
	ActorSystem = "system"
)

// PaymentTransition defines a valid PaymentHistory state change and who can
// perform it
type PaymentTransition struct {
	From  models.PaymentStatus
	To    models.PaymentStatus
	Actor string
}

// validPaymentTransitions is the authoritative lifecycle definition. A record
// gets exactly one terminal resolution; nothing transitions out of
// paid/rejected/failed except the system marking a paid record completed at
// settlement.
var validPaymentTransitions = []PaymentTransition{
	// Admin marks a cash payment paid, or approves a proof
	{From: models.PaymentPending, To: models.PaymentPaid, Actor: ActorAdmin},
	// Admin rejects a bank-transfer proof
	{From: models.PaymentPending, To: models.PaymentRejected, Actor: ActorAdmin},
	// Provider/system failure before resolution
	{From: models.PaymentPending, To: models.PaymentFailed, Actor: ActorSystem},
	// Settlement closes out a paid record
	{From: models.PaymentPaid, To: models.PaymentCompleted, Actor: ActorSystem},
}

// ProofTransition defines a valid PaymentProof state change
type ProofTransition struct {
	From  models.ProofStatus
	To    models.ProofStatus
	Actor string
}

var validProofTransitions = []ProofTransition{
	{From: models.ProofPending, To: models.ProofApproved, Actor: ActorAdmin},
	{From: models.ProofPending, To: models.ProofRejected, Actor: ActorAdmin},
}

type paymentKey struct {
	From  models.PaymentStatus
	To    models.PaymentStatus
	Actor string
}

type proofKey struct {
	From  models.ProofStatus
	To    models.ProofStatus
	Actor string
}

// Lookup maps for O(1) validation
var paymentTransitionMap = func() map[paymentKey]bool {
	m := make(map[paymentKey]bool)
	for _, t := range validPaymentTransitions {
		m[paymentKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

var proofTransitionMap = func() map[proofKey]bool {
	m := make(map[proofKey]bool)
	for _, t := range validProofTransitions {
		m[proofKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// PaymentTransitionsFrom returns all valid next states from a given state
func PaymentTransitionsFrom(status models.PaymentStatus) []models.PaymentStatus {
	var nexts []models.PaymentStatus
	seen := map[models.PaymentStatus]bool{}
	for _, t := range validPaymentTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// CanTransitionPayment checks if a given actor can move a PaymentHistory
// from one state to another
func CanTransitionPayment(from, to models.PaymentStatus, actor string) error {
	if paymentTransitionMap[paymentKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	return errors.New(
		"invalid payment transition: " + string(from) + " → " + string(to) +
			" is not allowed for actor '" + actor + "'. " +
			"Valid transitions from " + string(from) + " are: " + describePaymentFrom(from),
	)
}

// CanTransitionProof checks if a given actor can resolve a PaymentProof
func CanTransitionProof(from, to models.ProofStatus, actor string) error {
	if proofTransitionMap[proofKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	return errors.New(
		"invalid proof transition: " + string(from) + " → " + string(to) +
			" is not allowed for actor '" + actor + "'",
	)
}

func describePaymentFrom(status models.PaymentStatus) string {
	nexts := PaymentTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	result := ""
	for i, s := range nexts {
		if i > 0 {
			result += ", "
		}
		result += string(s)
	}
	return result
}

// IsTerminalPayment reports whether a PaymentHistory status admits no
// admin-driven transition
func IsTerminalPayment(status models.PaymentStatus) bool {
	for _, t := range validPaymentTransitions {
		if t.From == status && t.Actor != ActorSystem {
			return false
		}
	}
	return true
}

// GetAllPaymentTransitions returns the full state machine for documentation
func GetAllPaymentTransitions() []PaymentTransition {
	return validPaymentTransitions
}

// GetAllProofTransitions returns the proof state machine for documentation
func GetAllProofTransitions() []ProofTransition {
	return validProofTransitions
}
