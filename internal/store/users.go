package store

import (
	"context"
	"time"

	"ms-chainsync/internal/models"
	"ms-chainsync/internal/utils"
)

// ---------------- USERS ----------------

// GetUserByID → fetch one user by ID, nil when absent
func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByWallet → fetch one user by wallet address, nil when absent
func (d *DB) GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("wallet_address = ?", walletAddress).
		Limit(1).
		Scan(ctx)
	if absent, err := noRows(err); absent || err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser → insert new user row
func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := d.Bun.NewInsert().Model(user).Exec(ctx)
	return err
}

// FindOrCreateUserByWallet returns the user owning a wallet address, creating
// a placeholder row when the wallet has never been seen. Ledger events can
// reference buyers that signed up on-chain only.
func (d *DB) FindOrCreateUserByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	user, err := d.GetUserByWallet(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &models.User{
		ID:            utils.GenerateUUID(),
		WalletAddress: walletAddress,
		Placeholder:   true,
		CreatedAt:     time.Now(),
	}
	if err := d.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent insert for the same wallet.
		if existing, lookupErr := d.GetUserByWallet(ctx, walletAddress); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return user, nil
}
