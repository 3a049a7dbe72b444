package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"nftmarket-api/internal/model"
	"nftmarket-api/pkg/derive"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLLedgerRepository implements LedgerRepository using MySQL.
type MySQLLedgerRepository struct {
	db *sql.DB
}

// NewMySQLLedgerRepository creates a new MySQL ledger repository.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLLedgerRepository(dsn string) (*MySQLLedgerRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("[MySQLLedgerRepository] Initialized")
	return &MySQLLedgerRepository{db: db}, nil
}

func createMySQLTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS marketplaces (
			address VARCHAR(64) PRIMARY KEY,
			admin VARCHAR(64) NOT NULL,
			name VARCHAR(32) NOT NULL,
			fee_bps SMALLINT UNSIGNED NOT NULL,
			bump TINYINT UNSIGNED NOT NULL,
			treasury VARCHAR(64) NOT NULL,
			treasury_bump TINYINT UNSIGNED NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS listings (
			address VARCHAR(64) PRIMARY KEY,
			marketplace VARCHAR(64) NOT NULL,
			seller VARCHAR(64) NOT NULL,
			item VARCHAR(64) NOT NULL,
			price BIGINT UNSIGNED NOT NULL,
			token_id SMALLINT UNSIGNED NOT NULL,
			bump TINYINT UNSIGNED NOT NULL,
			escrow VARCHAR(64) NOT NULL,
			escrow_bump TINYINT UNSIGNED NOT NULL,
			is_active BOOLEAN NOT NULL,
			UNIQUE KEY uq_marketplace_item (marketplace, item),
			KEY idx_listings_marketplace (marketplace)
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			address VARCHAR(64) PRIMARY KEY,
			owner VARCHAR(64) NOT NULL,
			update_authority VARCHAR(64) NOT NULL,
			collection VARCHAR(64) NOT NULL DEFAULT '',
			name VARCHAR(255) NOT NULL,
			uri TEXT NOT NULL,
			is_collection BOOLEAN NOT NULL DEFAULT FALSE,
			frozen BOOLEAN NOT NULL DEFAULT FALSE,
			delegates JSON NOT NULL,
			KEY idx_items_owner (owner)
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			address VARCHAR(64) PRIMARY KEY,
			balance BIGINT UNSIGNED NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// InTx runs fn inside a single MySQL transaction.
func (r *MySQLLedgerRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMarketplace retrieves a marketplace config by address.
func (r *MySQLLedgerRepository) GetMarketplace(ctx context.Context, addr derive.Address) (*model.Marketplace, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT address, admin, name, fee_bps, bump, treasury, treasury_bump FROM marketplaces WHERE address = ?`,
		addr.String())
	return scanMarketplace(row)
}

// GetListing retrieves a listing record by address.
func (r *MySQLLedgerRepository) GetListing(ctx context.Context, addr derive.Address) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT address, marketplace, seller, item, price, token_id, bump, escrow, escrow_bump, is_active FROM listings WHERE address = ?`,
		addr.String())
	return scanListing(row)
}

// GetItem retrieves an item record by address.
func (r *MySQLLedgerRepository) GetItem(ctx context.Context, addr derive.Address) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT address, owner, update_authority, collection, name, uri, is_collection, frozen, delegates FROM items WHERE address = ?`,
		addr.String())
	return scanItem(row)
}

// GetAccount retrieves an account balance. Unknown addresses report zero.
func (r *MySQLLedgerRepository) GetAccount(ctx context.Context, addr derive.Address) (*model.Account, error) {
	account := &model.Account{Address: addr}
	err := r.db.QueryRowContext(ctx,
		`SELECT balance, updated_at FROM accounts WHERE address = ?`, addr.String()).
		Scan(&account.Balance, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return account, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetStats returns statistics about the ledger database.
func (r *MySQLLedgerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	for name, table := range map[string]string{
		"marketplaces": "marketplaces",
		"listings":     "listings",
		"items":        "items",
		"accounts":     "accounts",
	} {
		var count int64
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, err
		}
		stats[name] = count
	}

	var supply sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT SUM(balance) FROM accounts").Scan(&supply); err == nil && supply.Valid {
		stats["total_supply"] = supply.Int64
	}

	return stats, nil
}

// Close closes the database connection.
func (r *MySQLLedgerRepository) Close() error {
	return r.db.Close()
}

// mysqlTx implements Tx on an open MySQL transaction.
type mysqlTx struct {
	tx *sql.Tx
}

func isMySQLDuplicate(err error) bool {
	return strings.Contains(err.Error(), "Error 1062")
}

func (t *mysqlTx) GetMarketplace(ctx context.Context, addr derive.Address) (*model.Marketplace, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT address, admin, name, fee_bps, bump, treasury, treasury_bump FROM marketplaces WHERE address = ? FOR UPDATE`,
		addr.String())
	return scanMarketplace(row)
}

func (t *mysqlTx) InsertMarketplace(ctx context.Context, m *model.Marketplace) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO marketplaces (address, admin, name, fee_bps, bump, treasury, treasury_bump)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Address.String(), m.Admin.String(), m.Name, m.FeeBps, m.Bump,
		m.Treasury.String(), m.TreasuryBump)
	if err != nil {
		if isMySQLDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert marketplace: %w", err)
	}
	return nil
}

func (t *mysqlTx) GetListing(ctx context.Context, addr derive.Address) (*model.Listing, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT address, marketplace, seller, item, price, token_id, bump, escrow, escrow_bump, is_active FROM listings WHERE address = ? FOR UPDATE`,
		addr.String())
	return scanListing(row)
}

func (t *mysqlTx) InsertListing(ctx context.Context, l *model.Listing) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO listings (address, marketplace, seller, item, price, token_id, bump, escrow, escrow_bump, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Address.String(), l.Marketplace.String(), l.Seller.String(), l.Item.String(),
		l.Price, l.TokenID, l.Bump, l.Escrow.String(), l.EscrowBump, l.IsActive)
	if err != nil {
		if isMySQLDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

func (t *mysqlTx) DeleteListing(ctx context.Context, addr derive.Address) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM listings WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *mysqlTx) GetItem(ctx context.Context, addr derive.Address) (*model.Item, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT address, owner, update_authority, collection, name, uri, is_collection, frozen, delegates FROM items WHERE address = ? FOR UPDATE`,
		addr.String())
	return scanItem(row)
}

func (t *mysqlTx) InsertItem(ctx context.Context, i *model.Item) error {
	delegates, err := encodeDelegates(i.Delegates)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO items (address, owner, update_authority, collection, name, uri, is_collection, frozen, delegates)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.Address.String(), i.Owner.String(), i.UpdateAuthority.String(), collectionString(i),
		i.Name, i.URI, i.IsCollection, i.Frozen, delegates)
	if err != nil {
		if isMySQLDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (t *mysqlTx) UpdateItem(ctx context.Context, i *model.Item) error {
	delegates, err := encodeDelegates(i.Delegates)
	if err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx,
		`UPDATE items SET owner = ?, update_authority = ?, collection = ?, name = ?, uri = ?, is_collection = ?, frozen = ?, delegates = ?
		 WHERE address = ?`,
		i.Owner.String(), i.UpdateAuthority.String(), collectionString(i), i.Name, i.URI,
		i.IsCollection, i.Frozen, delegates, i.Address.String())
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	// MySQL reports 0 affected rows for no-op updates, so RowsAffected
	// cannot distinguish "missing" from "unchanged" here.
	_ = result
	return nil
}

func (t *mysqlTx) DeleteItem(ctx context.Context, addr derive.Address) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM items WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *mysqlTx) Balance(ctx context.Context, addr derive.Address) (uint64, error) {
	var balance uint64
	err := t.tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE address = ? FOR UPDATE`, addr.String()).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (t *mysqlTx) Credit(ctx context.Context, addr derive.Address, amount uint64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (address, balance, updated_at) VALUES (?, ?, NOW())
		 ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance), updated_at = NOW()`,
		addr.String(), amount)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	return nil
}

func (t *mysqlTx) Debit(ctx context.Context, addr derive.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	result, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ?, updated_at = NOW()
		 WHERE address = ? AND balance >= ?`,
		amount, addr.String(), amount)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// Ensure MySQLLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*MySQLLedgerRepository)(nil)
