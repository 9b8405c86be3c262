package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/imageforge/backend/internal/models"
)

// ErrInsufficientCredits is returned when the account balance is too low
// for the requested reservation. It is never retried.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrReservationNotHeld is returned when Commit is called on a reservation
// that was already committed or released.
var ErrReservationNotHeld = errors.New("reservation is not held")

// AccountStore is the minimal account repository interface for the ledger.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	HoldCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) error
	ClearHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	ReturnHold(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// TransactionStore is the minimal credit transaction interface for the ledger.
type TransactionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditTransaction) error
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error)
}

// ReservationStore persists reservation rows so holds survive a crash and
// double settlement can be detected under row lock.
type ReservationStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, res *models.Reservation) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Reservation, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the credit ledger. All balance mutation in the system goes
// through it; callers never touch account balances directly.
type Service struct {
	db           TxBeginner
	accounts     AccountStore
	transactions TransactionStore
	reservations ReservationStore
}

func NewService(db TxBeginner, accounts AccountStore, transactions TransactionStore, reservations ReservationStore) *Service {
	return &Service{db: db, accounts: accounts, transactions: transactions, reservations: reservations}
}

// GetBalance returns the spendable balance for the account. Held credits
// are excluded until their reservation is released.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (int, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.CreditBalance, nil
}

// Reserve moves amount from the account balance into hold and records a
// held reservation. The account row lock serializes concurrent reserves for
// the same account, so two reserves that jointly exceed the balance cannot
// both succeed.
func (s *Service) Reserve(ctx context.Context, accountID uuid.UUID, amount int) (*models.Reservation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("reserve amount must be > 0, got %d", amount)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, tx)

	acc, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.CreditBalance < amount {
		return nil, ErrInsufficientCredits
	}
	// The conditional update is the authoritative guard: the balance check
	// above is advisory, the WHERE credit_balance >= amount clause decides.
	if err := s.accounts.HoldCredits(ctx, tx, accountID, amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientCredits
		}
		return nil, err
	}
	res := &models.Reservation{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		Status:    models.ReservationHeld,
	}
	if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return res, nil
}

// CommitTx finalizes the reservation inside the caller's transaction: the
// hold is cleared and the single spent entry is appended. Callers pair it
// with the artifact insert so billing and the artifact commit atomically.
func (s *Service) CommitTx(ctx context.Context, tx pgx.Tx, res *models.Reservation, description string, artifactID *uuid.UUID) error {
	current, err := s.reservations.GetForUpdate(ctx, tx, res.ID)
	if err != nil {
		return err
	}
	if current.Status != models.ReservationHeld {
		return ErrReservationNotHeld
	}
	newBalance, err := s.accounts.ClearHold(ctx, tx, current.AccountID, current.Amount)
	if err != nil {
		return err
	}
	if err := s.reservations.SetStatusTx(ctx, tx, current.ID, models.ReservationCommitted); err != nil {
		return err
	}
	return s.transactions.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		AccountID:    current.AccountID,
		ArtifactID:   artifactID,
		Kind:         models.CreditKindSpent,
		Amount:       current.Amount,
		Description:  description,
		BalanceAfter: &newBalance,
	})
}

// Release cancels a held reservation, returning the hold to the balance.
// Idempotent: releasing an already-committed or already-released
// reservation is a no-op, so a deferred release after commit is safe.
func (s *Service) Release(ctx context.Context, res *models.Reservation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	current, err := s.reservations.GetForUpdate(ctx, tx, res.ID)
	if err != nil {
		return err
	}
	if current.Status != models.ReservationHeld {
		return commit(ctx, tx)
	}
	if _, err := s.accounts.ReturnHold(ctx, tx, current.AccountID, current.Amount); err != nil {
		return err
	}
	if err := s.reservations.SetStatusTx(ctx, tx, current.ID, models.ReservationReleased); err != nil {
		return err
	}
	return commit(ctx, tx)
}

// Credit tops up the account and appends an earned entry. Used for
// purchases, admin grants, and subscription renewals.
func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, amount int, description string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be > 0, got %d", amount)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	if _, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID); err != nil {
		return err
	}
	newBalance, err := s.accounts.AddCredits(ctx, tx, accountID, amount)
	if err != nil {
		return err
	}
	if err := s.transactions.CreateTx(ctx, tx, &models.CreditTransaction{
		ID:           uuid.New(),
		AccountID:    accountID,
		Kind:         models.CreditKindEarned,
		Amount:       amount,
		Description:  description,
		BalanceAfter: &newBalance,
	}); err != nil {
		return err
	}
	return commit(ctx, tx)
}

// Transactions returns the account's transaction history, newest first.
func (s *Service) Transactions(ctx context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error) {
	return s.transactions.ListByAccountID(ctx, accountID)
}

// rollback and commit tolerate a nil tx so the service can run against
// in-memory stores in tests.
func rollback(ctx context.Context, tx pgx.Tx) {
	if tx != nil {
		_ = tx.Rollback(ctx)
	}
}

func commit(ctx context.Context, tx pgx.Tx) error {
	if tx == nil {
		return nil
	}
	return tx.Commit(ctx)
}
