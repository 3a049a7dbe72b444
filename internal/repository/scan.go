package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"nftmarket-api/internal/model"
	"nftmarket-api/pkg/derive"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMarketplace(row rowScanner) (*model.Marketplace, error) {
	var m model.Marketplace
	var addr, admin, treasury string

	err := row.Scan(&addr, &admin, &m.Name, &m.FeeBps, &m.Bump, &treasury, &m.TreasuryBump)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan marketplace: %w", err)
	}

	if m.Address, err = derive.Parse(addr); err != nil {
		return nil, err
	}
	if m.Admin, err = derive.Parse(admin); err != nil {
		return nil, err
	}
	if m.Treasury, err = derive.Parse(treasury); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanListing(row rowScanner) (*model.Listing, error) {
	var l model.Listing
	var addr, marketplace, seller, item, escrow string

	err := row.Scan(&addr, &marketplace, &seller, &item, &l.Price, &l.TokenID,
		&l.Bump, &escrow, &l.EscrowBump, &l.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan listing: %w", err)
	}

	if l.Address, err = derive.Parse(addr); err != nil {
		return nil, err
	}
	if l.Marketplace, err = derive.Parse(marketplace); err != nil {
		return nil, err
	}
	if l.Seller, err = derive.Parse(seller); err != nil {
		return nil, err
	}
	if l.Item, err = derive.Parse(item); err != nil {
		return nil, err
	}
	if l.Escrow, err = derive.Parse(escrow); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanItem(row rowScanner) (*model.Item, error) {
	var i model.Item
	var addr, owner, authority, collection, delegates string

	err := row.Scan(&addr, &owner, &authority, &collection, &i.Name, &i.URI,
		&i.IsCollection, &i.Frozen, &delegates)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	if i.Address, err = derive.Parse(addr); err != nil {
		return nil, err
	}
	if i.Owner, err = derive.Parse(owner); err != nil {
		return nil, err
	}
	if i.UpdateAuthority, err = derive.Parse(authority); err != nil {
		return nil, err
	}
	if collection != "" {
		if i.Collection, err = derive.Parse(collection); err != nil {
			return nil, err
		}
	}
	if delegates != "" && delegates != "{}" {
		if err := json.Unmarshal([]byte(delegates), &i.Delegates); err != nil {
			return nil, fmt.Errorf("failed to decode item delegates: %w", err)
		}
	}
	return &i, nil
}

// encodeDelegates serializes the delegate ACL for storage.
func encodeDelegates(delegates map[model.Capability]derive.Address) (string, error) {
	if len(delegates) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(delegates)
	if err != nil {
		return "", fmt.Errorf("failed to encode item delegates: %w", err)
	}
	return string(raw), nil
}

// collectionString renders the optional collection link for storage,
// empty string meaning no collection.
func collectionString(i *model.Item) string {
	if !i.HasCollection() {
		return ""
	}
	return i.Collection.String()
}
