package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/imageforge/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory stores implementing AccountStore, TransactionStore and
// ReservationStore. They let us exercise the real ledger logic without a
// database; a nil pgx.Tx stands in for the transaction.
// ---------------------------------------------------------------------------

type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func newMemAccounts(accs ...*models.Account) *memAccounts {
	m := &memAccounts{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accs {
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func (m *memAccounts) get(id uuid.UUID) (*models.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memAccounts) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memAccounts) HoldCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	if a.CreditBalance < amount {
		return pgx.ErrNoRows
	}
	a.CreditBalance -= amount
	a.HoldCredits += amount
	return nil
}

func (m *memAccounts) ClearHold(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account %s not found", id)
	}
	a.HoldCredits -= amount
	return a.CreditBalance, nil
}

func (m *memAccounts) ReturnHold(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account %s not found", id)
	}
	a.HoldCredits -= amount
	a.CreditBalance += amount
	return a.CreditBalance, nil
}

func (m *memAccounts) AddCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account %s not found", id)
	}
	a.CreditBalance += amount
	return a.CreditBalance, nil
}

func (m *memAccounts) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].CreditBalance
}

func (m *memAccounts) hold(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].HoldCredits
}

// ---

type memTransactions struct {
	mu      sync.Mutex
	entries []*models.CreditTransaction
}

func (m *memTransactions) CreateTx(_ context.Context, _ pgx.Tx, c *models.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memTransactions) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]*models.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CreditTransaction
	for _, e := range m.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memTransactions) byKind(kind string) []*models.CreditTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CreditTransaction
	for _, e := range m.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ---

type memReservations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Reservation
}

func newMemReservations() *memReservations {
	return &memReservations{rows: make(map[uuid.UUID]*models.Reservation)}
}

func (m *memReservations) CreateTx(_ context.Context, _ pgx.Tx, res *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	m.rows[res.ID] = &cp
	return nil
}

func (m *memReservations) GetForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("reservation %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memReservations) SetStatusTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("reservation %s not found", id)
	}
	r.Status = status
	return nil
}

// ---

type nilTxBeginner struct{}

func (nilTxBeginner) Begin(context.Context) (pgx.Tx, error) { return nil, nil }

func newTestLedger(accs ...*models.Account) (*Service, *memAccounts, *memTransactions) {
	accounts := newMemAccounts(accs...)
	transactions := &memTransactions{}
	svc := NewService(nilTxBeginner{}, accounts, transactions, newMemReservations())
	return svc, accounts, transactions
}

func acct(id uuid.UUID, balance int) *models.Account {
	return &models.Account{ID: id, CreditBalance: balance}
}

// ---------------------------------------------------------------------------
// Reserve / Commit
// ---------------------------------------------------------------------------

func TestReserveAndCommit(t *testing.T) {
	user := uuid.New()
	svc, accounts, transactions := newTestLedger(acct(user, 10))
	ctx := context.Background()

	res, err := svc.Reserve(ctx, user, 5)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got := accounts.balance(user); got != 5 {
		t.Errorf("balance after reserve: got %d, want 5", got)
	}
	if got := accounts.hold(user); got != 5 {
		t.Errorf("hold after reserve: got %d, want 5", got)
	}
	// Reservation is intent only; no transaction yet.
	if n := len(transactions.byKind(models.CreditKindSpent)); n != 0 {
		t.Errorf("spent entries before commit: got %d, want 0", n)
	}

	artifactID := uuid.New()
	if err := svc.CommitTx(ctx, nil, res, "generation", &artifactID); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	if got := accounts.balance(user); got != 5 {
		t.Errorf("balance after commit: got %d, want 5", got)
	}
	if got := accounts.hold(user); got != 0 {
		t.Errorf("hold after commit: got %d, want 0", got)
	}
	spent := transactions.byKind(models.CreditKindSpent)
	if len(spent) != 1 {
		t.Fatalf("spent entries: got %d, want 1", len(spent))
	}
	if spent[0].Amount != 5 {
		t.Errorf("spent amount: got %d, want 5", spent[0].Amount)
	}
	if spent[0].ArtifactID == nil || *spent[0].ArtifactID != artifactID {
		t.Error("spent entry should reference the artifact")
	}
}

func TestReserveInsufficient(t *testing.T) {
	user := uuid.New()
	svc, accounts, transactions := newTestLedger(acct(user, 3))
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, user, 5); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got: %v", err)
	}
	if got := accounts.balance(user); got != 3 {
		t.Errorf("balance unchanged: got %d, want 3", got)
	}
	if n := len(transactions.byKind(models.CreditKindSpent)); n != 0 {
		t.Errorf("expected 0 transactions, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Release
// ---------------------------------------------------------------------------

func TestReleaseReturnsHold(t *testing.T) {
	user := uuid.New()
	svc, accounts, transactions := newTestLedger(acct(user, 10))
	ctx := context.Background()

	res, err := svc.Reserve(ctx, user, 5)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := svc.Release(ctx, res); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := accounts.balance(user); got != 10 {
		t.Errorf("balance after release: got %d, want 10", got)
	}
	if got := accounts.hold(user); got != 0 {
		t.Errorf("hold after release: got %d, want 0", got)
	}
	// Reserve-then-commit model: a released reservation leaves no entries.
	if n := len(transactions.entries); n != 0 {
		t.Errorf("expected 0 transactions after release, got %d", n)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	user := uuid.New()
	svc, accounts, _ := newTestLedger(acct(user, 10))
	ctx := context.Background()

	res, err := svc.Reserve(ctx, user, 5)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := svc.Release(ctx, res); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := svc.Release(ctx, res); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if got := accounts.balance(user); got != 10 {
		t.Errorf("double release must not double refund: got %d, want 10", got)
	}
}

func TestReleaseAfterCommitIsNoop(t *testing.T) {
	user := uuid.New()
	svc, accounts, transactions := newTestLedger(acct(user, 10))
	ctx := context.Background()

	res, err := svc.Reserve(ctx, user, 5)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := svc.CommitTx(ctx, nil, res, "generation", nil); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	if err := svc.Release(ctx, res); err != nil {
		t.Fatalf("Release after commit: %v", err)
	}
	if got := accounts.balance(user); got != 5 {
		t.Errorf("release after commit must not refund: got %d, want 5", got)
	}
	if n := len(transactions.byKind(models.CreditKindSpent)); n != 1 {
		t.Errorf("spent entries: got %d, want 1", n)
	}
}

func TestCommitAfterReleaseFails(t *testing.T) {
	user := uuid.New()
	svc, _, _ := newTestLedger(acct(user, 10))
	ctx := context.Background()

	res, err := svc.Reserve(ctx, user, 5)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := svc.Release(ctx, res); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := svc.CommitTx(ctx, nil, res, "generation", nil); !errors.Is(err, ErrReservationNotHeld) {
		t.Fatalf("expected ErrReservationNotHeld, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Concurrency: two reserves that jointly exceed the balance must not both
// succeed, and the balance must never go negative.
// ---------------------------------------------------------------------------

func TestConcurrentReserveSingleWinner(t *testing.T) {
	user := uuid.New()
	svc, accounts, _ := newTestLedger(acct(user, 5))
	ctx := context.Background()

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, user, 5)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrInsufficientCredits):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Errorf("got %d winners and %d rejections, want exactly 1 of each", won, lost)
	}
	if got := accounts.balance(user); got < 0 {
		t.Errorf("balance went negative: %d", got)
	}
}

func TestConcurrentReserveNeverNegative(t *testing.T) {
	user := uuid.New()
	svc, accounts, _ := newTestLedger(acct(user, 20))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, err := svc.Reserve(ctx, user, 3); err == nil {
				_ = svc.Release(ctx, res)
			}
		}()
	}
	wg.Wait()

	if got := accounts.balance(user); got != 20 {
		t.Errorf("balance after reserve/release storm: got %d, want 20", got)
	}
	if got := accounts.hold(user); got != 0 {
		t.Errorf("hold after reserve/release storm: got %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Conservation: earned - spent - refunded == balance for every account.
// ---------------------------------------------------------------------------

func TestConservation(t *testing.T) {
	user := uuid.New()
	svc, accounts, transactions := newTestLedger(acct(user, 0))
	ctx := context.Background()

	if err := svc.Credit(ctx, user, 100, "initial purchase"); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	// Two generations: one committed, one released.
	res1, err := svc.Reserve(ctx, user, 30)
	if err != nil {
		t.Fatalf("Reserve 1: %v", err)
	}
	if err := svc.CommitTx(ctx, nil, res1, "generation", nil); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	res2, err := svc.Reserve(ctx, user, 40)
	if err != nil {
		t.Fatalf("Reserve 2: %v", err)
	}
	if err := svc.Release(ctx, res2); err != nil {
		t.Fatalf("Release: %v", err)
	}

	sum := func(kind string) int {
		total := 0
		for _, e := range transactions.byKind(kind) {
			total += e.Amount
		}
		return total
	}
	earned := sum(models.CreditKindEarned)
	spent := sum(models.CreditKindSpent)
	refunded := sum(models.CreditKindRefunded)

	expected := earned - spent - refunded
	if got := accounts.balance(user); got != expected {
		t.Errorf("conservation violated: earned(%d) - spent(%d) - refunded(%d) = %d, balance is %d",
			earned, spent, refunded, expected, got)
	}
	if got := accounts.balance(user); got != 70 {
		t.Errorf("balance: got %d, want 70", got)
	}
}

func TestCreditAppendsEarnedEntry(t *testing.T) {
	user := uuid.New()
	svc, accounts, transactions := newTestLedger(acct(user, 0))
	ctx := context.Background()

	if err := svc.Credit(ctx, user, 50, "admin grant"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if got := accounts.balance(user); got != 50 {
		t.Errorf("balance: got %d, want 50", got)
	}
	earned := transactions.byKind(models.CreditKindEarned)
	if len(earned) != 1 || earned[0].Amount != 50 {
		t.Fatalf("earned entries: got %+v, want one entry of 50", earned)
	}
	if earned[0].Description != "admin grant" {
		t.Errorf("description: got %q", earned[0].Description)
	}
}
