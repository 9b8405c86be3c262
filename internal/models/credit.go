package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit transaction kinds. Amounts are always positive magnitudes;
// the signed effect on the balance is derived from the kind.
const (
	CreditKindEarned   = "earned"
	CreditKindSpent    = "spent"
	CreditKindRefunded = "refunded"
)

// Reservation statuses. A reservation starts held and is flipped exactly
// once to committed or released.
const (
	ReservationHeld      = "held"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
)

type CreditTransaction struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	ArtifactID   *uuid.UUID `json:"artifact_id,omitempty"`
	Kind         string     `json:"kind"`
	Amount       int        `json:"amount"`
	Description  string     `json:"description"`
	BalanceAfter *int       `json:"balance_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Reservation is a ledger-held intent to spend credits. The reserved amount
// sits in accounts.hold_credits until Commit or Release settles it.
type Reservation struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    int       `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
