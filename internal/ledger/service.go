package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cryptosim/internal/engine"
	"cryptosim/internal/model"
	"cryptosim/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrTxNotFound marks a resolution attempt against an unknown request id.
var ErrTxNotFound = errors.New("transaction_not_found")

// Service runs the deposit/withdrawal approval workflow. Requests start
// Pending and transition exactly once to Approved or Rejected; a second
// resolution of the same record is a no-op so double-clicked admin buttons
// cannot credit twice. Balance effects happen only at approval time, under
// the same per-user lock the order engine uses.
type Service struct {
	mu          sync.RWMutex
	deposits    []model.Deposit
	withdrawals []model.Withdrawal
	payoutRef   string

	locks    *engine.Locks
	balances *engine.Balances
	log      *zap.Logger
}

func NewService(locks *engine.Locks, balances *engine.Balances, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{locks: locks, balances: balances, log: log}
}

func (s *Service) RequestDeposit(userID, userName string, amount decimal.Decimal) (model.Deposit, error) {
	if userID == "" {
		return model.Deposit{}, fmt.Errorf("%w: user id is required", engine.ErrInvalidAmount)
	}
	if amount.Sign() <= 0 {
		return model.Deposit{}, fmt.Errorf("%w: deposit amount %s must be positive", engine.ErrInvalidAmount, amount)
	}
	dep := model.Deposit{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserName:  userName,
		Amount:    amount,
		Status:    types.TxStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.deposits = append(s.deposits, dep)
	s.mu.Unlock()
	return dep, nil
}

func (s *Service) RequestWithdrawal(userID, userName, destinationRef string, amount decimal.Decimal) (model.Withdrawal, error) {
	if userID == "" {
		return model.Withdrawal{}, fmt.Errorf("%w: user id is required", engine.ErrInvalidAmount)
	}
	if amount.Sign() <= 0 {
		return model.Withdrawal{}, fmt.Errorf("%w: withdrawal amount %s must be positive", engine.ErrInvalidAmount, amount)
	}
	destinationRef = strings.TrimSpace(destinationRef)
	if destinationRef == "" {
		return model.Withdrawal{}, fmt.Errorf("%w: destination reference is required", engine.ErrInvalidAmount)
	}
	wd := model.Withdrawal{
		ID:             uuid.NewString(),
		UserID:         userID,
		UserName:       userName,
		Amount:         amount,
		DestinationRef: destinationRef,
		Status:         types.TxStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	s.mu.Lock()
	s.withdrawals = append(s.withdrawals, wd)
	s.mu.Unlock()
	return wd, nil
}

// ResolveDeposit moves a pending deposit to Approved or Rejected. Approval
// credits the amount to the user's balance. Resolving an already-resolved
// record returns it unchanged with applied=false.
func (s *Service) ResolveDeposit(id string, status types.TxStatus) (model.Deposit, bool, error) {
	if !status.Terminal() {
		return model.Deposit{}, false, fmt.Errorf("%w: resolution must be Approved or Rejected", engine.ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.deposits {
		if s.deposits[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Deposit{}, false, fmt.Errorf("%w: deposit %s", ErrTxNotFound, id)
	}
	dep := &s.deposits[idx]
	if dep.Status.Terminal() {
		return *dep, false, nil
	}
	if status == types.TxStatusApproved {
		lock := s.locks.For(dep.UserID)
		lock.Lock()
		s.balances.Credit(dep.UserID, dep.Amount)
		lock.Unlock()
		s.log.Info("deposit approved",
			zap.String("deposit_id", dep.ID),
			zap.String("user_id", dep.UserID),
			zap.String("amount", dep.Amount.String()),
		)
	}
	dep.Status = status
	return *dep, true, nil
}

// ResolveWithdrawal moves a pending withdrawal to Approved or Rejected.
// Approval re-checks the balance at resolution time: the balance may have
// dropped since the request was filed, in which case the resolution fails
// and the record stays Pending.
func (s *Service) ResolveWithdrawal(id string, status types.TxStatus) (model.Withdrawal, bool, error) {
	if !status.Terminal() {
		return model.Withdrawal{}, false, fmt.Errorf("%w: resolution must be Approved or Rejected", engine.ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.withdrawals {
		if s.withdrawals[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Withdrawal{}, false, fmt.Errorf("%w: withdrawal %s", ErrTxNotFound, id)
	}
	wd := &s.withdrawals[idx]
	if wd.Status.Terminal() {
		return *wd, false, nil
	}
	if status == types.TxStatusApproved {
		lock := s.locks.For(wd.UserID)
		lock.Lock()
		balance := s.balances.Get(wd.UserID)
		if balance.LessThan(wd.Amount) {
			lock.Unlock()
			return *wd, false, fmt.Errorf("%w: withdrawal %s exceeds balance %s", engine.ErrInsufficientBalance, wd.Amount, balance)
		}
		s.balances.Debit(wd.UserID, wd.Amount)
		lock.Unlock()
		s.log.Info("withdrawal approved",
			zap.String("withdrawal_id", wd.ID),
			zap.String("user_id", wd.UserID),
			zap.String("amount", wd.Amount.String()),
		)
	}
	wd.Status = status
	return *wd, true, nil
}

// ListDeposits returns deposits newest first, all of them when userID is
// empty (admin view) or the user's own otherwise.
func (s *Service) ListDeposits(userID string) []model.Deposit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Deposit, 0, len(s.deposits))
	for i := len(s.deposits) - 1; i >= 0; i-- {
		if userID == "" || s.deposits[i].UserID == userID {
			out = append(out, s.deposits[i])
		}
	}
	return out
}

func (s *Service) ListWithdrawals(userID string) []model.Withdrawal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Withdrawal, 0, len(s.withdrawals))
	for i := len(s.withdrawals) - 1; i >= 0; i-- {
		if userID == "" || s.withdrawals[i].UserID == userID {
			out = append(out, s.withdrawals[i])
		}
	}
	return out
}

// PayoutRef is the shared deposit destination reference shown to users,
// settable only through the admin surface.
func (s *Service) PayoutRef() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payoutRef
}

func (s *Service) SetPayoutRef(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payoutRef = strings.TrimSpace(ref)
}

type ExportedState struct {
	Deposits    []model.Deposit    `json:"deposits"`
	Withdrawals []model.Withdrawal `json:"withdrawals"`
	PayoutRef   string             `json:"payout_destination_id"`
}

func (s *Service) Export() ExportedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := ExportedState{
		Deposits:    make([]model.Deposit, len(s.deposits)),
		Withdrawals: make([]model.Withdrawal, len(s.withdrawals)),
		PayoutRef:   s.payoutRef,
	}
	copy(st.Deposits, s.deposits)
	copy(st.Withdrawals, s.withdrawals)
	return st
}

func (s *Service) Restore(st ExportedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits = make([]model.Deposit, len(st.Deposits))
	copy(s.deposits, st.Deposits)
	s.withdrawals = make([]model.Withdrawal, len(st.Withdrawals))
	copy(s.withdrawals, st.Withdrawals)
	s.payoutRef = st.PayoutRef
}
