package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"nftmarket-api/internal/model"
	"nftmarket-api/pkg/derive"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteLedgerRepository implements LedgerRepository using SQLite. This is
// the default backend: a single-writer embedded database matches the
// single-operation-atomic execution model exactly.
type SQLiteLedgerRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteLedgerRepository creates a new SQLite ledger repository.
// dbPath is the path to the SQLite database file (e.g., "./data/ledger.db")
func NewSQLiteLedgerRepository(dbPath string) (*SQLiteLedgerRepository, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteLedgerRepository] Initialized with database: %s", dbPath)
	return &SQLiteLedgerRepository{db: db}, nil
}

func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS marketplaces (
		address TEXT PRIMARY KEY,
		admin TEXT NOT NULL,
		name TEXT NOT NULL,
		fee_bps INTEGER NOT NULL,
		bump INTEGER NOT NULL,
		treasury TEXT NOT NULL,
		treasury_bump INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS listings (
		address TEXT PRIMARY KEY,
		marketplace TEXT NOT NULL,
		seller TEXT NOT NULL,
		item TEXT NOT NULL,
		price INTEGER NOT NULL,
		token_id INTEGER NOT NULL,
		bump INTEGER NOT NULL,
		escrow TEXT NOT NULL,
		escrow_bump INTEGER NOT NULL,
		is_active INTEGER NOT NULL,
		UNIQUE(marketplace, item)
	);
	CREATE TABLE IF NOT EXISTS items (
		address TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		update_authority TEXT NOT NULL,
		collection TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		uri TEXT NOT NULL,
		is_collection INTEGER NOT NULL DEFAULT 0,
		frozen INTEGER NOT NULL DEFAULT 0,
		delegates TEXT NOT NULL DEFAULT '{}'
	);
	CREATE TABLE IF NOT EXISTS accounts (
		address TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listings_marketplace ON listings(marketplace);
	CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner);
	`
	_, err := db.Exec(query)
	return err
}

// InTx runs fn inside a single SQLite transaction.
func (r *SQLiteLedgerRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMarketplace retrieves a marketplace config by address.
func (r *SQLiteLedgerRepository) GetMarketplace(ctx context.Context, addr derive.Address) (*model.Marketplace, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT address, admin, name, fee_bps, bump, treasury, treasury_bump FROM marketplaces WHERE address = ?`,
		addr.String())
	return scanMarketplace(row)
}

// GetListing retrieves a listing record by address.
func (r *SQLiteLedgerRepository) GetListing(ctx context.Context, addr derive.Address) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT address, marketplace, seller, item, price, token_id, bump, escrow, escrow_bump, is_active FROM listings WHERE address = ?`,
		addr.String())
	return scanListing(row)
}

// GetItem retrieves an item record by address.
func (r *SQLiteLedgerRepository) GetItem(ctx context.Context, addr derive.Address) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT address, owner, update_authority, collection, name, uri, is_collection, frozen, delegates FROM items WHERE address = ?`,
		addr.String())
	return scanItem(row)
}

// GetAccount retrieves an account balance. Unknown addresses report zero.
func (r *SQLiteLedgerRepository) GetAccount(ctx context.Context, addr derive.Address) (*model.Account, error) {
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
func (r *SQLiteLedgerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
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

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteLedgerRepository) Close() error {
	return r.db.Close()
}

// sqliteTx implements Tx on an open SQLite transaction.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) GetMarketplace(ctx context.Context, addr derive.Address) (*model.Marketplace, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT address, admin, name, fee_bps, bump, treasury, treasury_bump FROM marketplaces WHERE address = ?`,
		addr.String())
	return scanMarketplace(row)
}

func (t *sqliteTx) InsertMarketplace(ctx context.Context, m *model.Marketplace) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO marketplaces (address, admin, name, fee_bps, bump, treasury, treasury_bump)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Address.String(), m.Admin.String(), m.Name, m.FeeBps, m.Bump,
		m.Treasury.String(), m.TreasuryBump)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert marketplace: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetListing(ctx context.Context, addr derive.Address) (*model.Listing, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT address, marketplace, seller, item, price, token_id, bump, escrow, escrow_bump, is_active FROM listings WHERE address = ?`,
		addr.String())
	return scanListing(row)
}

func (t *sqliteTx) InsertListing(ctx context.Context, l *model.Listing) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO listings (address, marketplace, seller, item, price, token_id, bump, escrow, escrow_bump, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Address.String(), l.Marketplace.String(), l.Seller.String(), l.Item.String(),
		l.Price, l.TokenID, l.Bump, l.Escrow.String(), l.EscrowBump, l.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteListing(ctx context.Context, addr derive.Address) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM listings WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) GetItem(ctx context.Context, addr derive.Address) (*model.Item, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT address, owner, update_authority, collection, name, uri, is_collection, frozen, delegates FROM items WHERE address = ?`,
		addr.String())
	return scanItem(row)
}

func (t *sqliteTx) InsertItem(ctx context.Context, i *model.Item) error {
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
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateItem(ctx context.Context, i *model.Item) error {
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
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) DeleteItem(ctx context.Context, addr derive.Address) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM items WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) Balance(ctx context.Context, addr derive.Address) (uint64, error) {
	var balance uint64
	err := t.tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE address = ?`, addr.String()).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (t *sqliteTx) Credit(ctx context.Context, addr derive.Address, amount uint64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (address, balance, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(address) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = datetime('now')`,
		addr.String(), amount)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	return nil
}

func (t *sqliteTx) Debit(ctx context.Context, addr derive.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	result, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ?, updated_at = datetime('now')
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

// Ensure SQLiteLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*SQLiteLedgerRepository)(nil)
