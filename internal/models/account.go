package models

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Company          string    `json:"company"`
	PasswordHash     string    `json:"-"`
	CreditBalance    int       `json:"credit_balance"`
	HoldCredits      int       `json:"hold_credits"`
	SubscriptionTier string    `json:"subscription_tier"`
	MaxPerRequest    *int      `json:"max_per_request,omitempty"`
	MaxPerDay        *int      `json:"max_per_day,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
