package service

import (
	"context"
	"log"
	"math"

	"nftmarket-api/internal/model"
	"nftmarket-api/internal/repository"
	"nftmarket-api/pkg/derive"
	"nftmarket-api/pkg/feesplit"
)

// AccountService exposes ledger account balances and the development faucet.
type AccountService struct {
	repo repository.LedgerRepository
}

// NewAccountService creates a new account service.
// Returns nil if repo is nil (required dependency).
func NewAccountService(repo repository.LedgerRepository) *AccountService {
	if repo == nil {
		return nil
	}
	return &AccountService{repo: repo}
}

// GetAccount returns the balance for an address, zero for unknown addresses.
func (s *AccountService) GetAccount(ctx context.Context, addr derive.Address) (*model.Account, error) {
	return s.repo.GetAccount(ctx, addr)
}

// Credit adds funds to an account. This is the faucet behind the API-key
// protected admin surface; the ledger itself has no other mint path. Credits
// that would push the balance past the signed 64-bit range the backends
// store are refused, so a stored balance always scans back intact.
func (s *AccountService) Credit(ctx context.Context, addr derive.Address, amount uint64) (*model.Account, error) {
	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		balance, err := tx.Balance(ctx, addr)
		if err != nil {
			return err
		}
		if amount > math.MaxInt64 || balance > math.MaxInt64-amount {
			return feesplit.ErrMathOverflow
		}
		return tx.Credit(ctx, addr, amount)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[AccountService] Credited %d to %s", amount, addr)
	return s.repo.GetAccount(ctx, addr)
}
