// Package sqlite provides the SQLite-backed relational store for the
// checkout subsystem: product stock, wallets, saved payment methods and
// persisted per-user carts.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the NETS status stream may read while a checkout request writes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/supermartsg/checkout/internal/cards"
	"github.com/supermartsg/checkout/internal/cart"
	"github.com/supermartsg/checkout/internal/stock"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// keeping the build simple in Docker (Alpine).
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. Idempotent via IF NOT EXISTS;
// a pre-existing legacy products table is left untouched, which is why the
// stock column is detected at runtime rather than assumed.
const schema = `
CREATE TABLE IF NOT EXISTS products (
    id        TEXT PRIMARY KEY,
    name      TEXT NOT NULL,
    price     REAL NOT NULL DEFAULT 0,
    quantity  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS wallets (
    user_id    INTEGER PRIMARY KEY,
    balance    REAL NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS payment_methods (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id         INTEGER NOT NULL,
    brand           TEXT,
    label           TEXT,
    last4           TEXT,
    exp_month       TEXT,
    exp_year        TEXT,
    cardholder_name TEXT,
    card_token      TEXT,
    created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE INDEX IF NOT EXISTS idx_payment_methods_user ON payment_methods(user_id);

CREATE TABLE IF NOT EXISTS carts (
    user_id    INTEGER NOT NULL,
    product_id TEXT NOT NULL,
    quantity   INTEGER NOT NULL,
    PRIMARY KEY (user_id, product_id)
);
`

// stockColumnCandidates lists the column names, in preference order, that a
// catalog schema may use for per-product quantity.
var stockColumnCandidates = []string{"quantity", "stock", "qty", "amount", "inventory"}

// Store implements the stock, wallet, cards and cart ports on one database.
type Store struct {
	db *sql.DB

	colOnce  sync.Once
	stockCol string
	colErr   error
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (s *Store) Close() error {
	return s.db.Close()
}

// ── stock.Store ──────────────────────────────────────────────────────────

// StockColumn detects which column, if any, holds per-product quantity.
// The result is cached for the life of the store.
func (s *Store) StockColumn(ctx context.Context) (string, error) {
	s.colOnce.Do(func() {
		rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(products)`)
		if err != nil {
			s.colErr = fmt.Errorf("sqlite: inspect products schema: %w", err)
			return
		}
		defer rows.Close()

		present := map[string]bool{}
		for rows.Next() {
			var (
				cid        int
				name, typ  string
				notNull    int
				defaultVal sql.NullString
				pk         int
			)
			if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
				s.colErr = fmt.Errorf("sqlite: scan products schema: %w", err)
				return
			}
			present[name] = true
		}
		if err := rows.Err(); err != nil {
			s.colErr = fmt.Errorf("sqlite: inspect products schema: %w", err)
			return
		}

		for _, candidate := range stockColumnCandidates {
			if present[candidate] {
				s.stockCol = candidate
				return
			}
		}
	})
	return s.stockCol, s.colErr
}

func (s *Store) Stock(ctx context.Context, productID string) (int, error) {
	col, err := s.StockColumn(ctx)
	if err != nil {
		return 0, err
	}
	if col == "" {
		return 0, errors.New("sqlite: products table has no stock column")
	}

	var quantity int
	q := fmt.Sprintf(`SELECT %s FROM products WHERE id = ?`, col)
	err = s.db.QueryRowContext(ctx, q, productID).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, stock.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: read stock for %q: %w", productID, err)
	}
	return quantity, nil
}

// DecrementStock subtracts quantity in a single conditional UPDATE so the
// stock can never go negative under concurrent reservations.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	col, err := s.StockColumn(ctx)
	if err != nil {
		return false, err
	}
	if col == "" {
		return false, errors.New("sqlite: products table has no stock column")
	}

	q := fmt.Sprintf(`UPDATE products SET %s = %s - ? WHERE id = ? AND %s >= ?`, col, col, col)
	res, err := s.db.ExecContext(ctx, q, quantity, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("sqlite: decrement stock for %q: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: decrement stock for %q: %w", productID, err)
	}
	if affected == 0 {
		// Distinguish a missing product from a shortfall.
		if _, err := s.Stock(ctx, productID); errors.Is(err, stock.ErrProductNotFound) {
			return false, stock.ErrProductNotFound
		}
		return false, nil
	}
	return true, nil
}

// SetStock upserts a product row with the given quantity.
func (s *Store) SetStock(ctx context.Context, productID, name string, price float64, quantity int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, quantity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price, quantity = excluded.quantity
	`, productID, name, price, quantity)
	if err != nil {
		return fmt.Errorf("sqlite: set stock for %q: %w", productID, err)
	}
	return nil
}

// ── wallet.Store ─────────────────────────────────────────────────────────

func (s *Store) Balance(ctx context.Context, userID int64) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = ? LIMIT 1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: read wallet balance for %d: %w", userID, err)
	}
	return balance, nil
}

// Debit seeds the wallet row if absent, then applies a single conditional
// UPDATE. Reports false when the balance is insufficient.
func (s *Store) Debit(ctx context.Context, userID int64, amount float64) (bool, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO wallets (user_id, balance) VALUES (?, 0)`, userID); err != nil {
		return false, fmt.Errorf("sqlite: seed wallet for %d: %w", userID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		WHERE user_id = ? AND balance >= ?
	`, amount, userID, amount)
	if err != nil {
		return false, fmt.Errorf("sqlite: debit wallet for %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: debit wallet for %d: %w", userID, err)
	}
	return affected > 0, nil
}

func (s *Store) Credit(ctx context.Context, userID int64, amount float64) (float64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
	`, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("sqlite: credit wallet for %d: %w", userID, err)
	}
	return s.Balance(ctx, userID)
}

// ── cards.Store ──────────────────────────────────────────────────────────

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]cards.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, brand, label, last4, exp_month, exp_year, cardholder_name, card_token
		FROM payment_methods
		WHERE user_id = ?
		ORDER BY id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list cards for %d: %w", userID, err)
	}
	defer rows.Close()

	var out []cards.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list cards for %d: %w", userID, err)
	}
	return out, nil
}

func (s *Store) ForUser(ctx context.Context, id, userID int64) (cards.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, brand, label, last4, exp_month, exp_year, cardholder_name, card_token
		FROM payment_methods
		WHERE id = ? AND user_id = ?
		LIMIT 1
	`, id, userID)

	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cards.Card{}, cards.ErrNotFound
	}
	if err != nil {
		return cards.Card{}, err
	}
	return card, nil
}

func (s *Store) Save(ctx context.Context, card cards.Card) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_methods
			(user_id, brand, label, last4, exp_month, exp_year, cardholder_name, card_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, card.UserID, card.Brand, card.Label, card.Last4,
		card.ExpMonth, card.ExpYear, card.CardholderName, card.Token)
	if err != nil {
		return 0, fmt.Errorf("sqlite: save card for %d: %w", card.UserID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: save card for %d: %w", card.UserID, err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (cards.Card, error) {
	var (
		card                                           cards.Card
		brand, label, last4, expMonth, expYear, holder sql.NullString
		token                                          sql.NullString
	)
	err := row.Scan(&card.ID, &card.UserID, &brand, &label, &last4, &expMonth, &expYear, &holder, &token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cards.Card{}, err
		}
		return cards.Card{}, fmt.Errorf("sqlite: scan card: %w", err)
	}
	card.Brand = brand.String
	card.Label = label.String
	card.Last4 = last4.String
	card.ExpMonth = expMonth.String
	card.ExpYear = expYear.String
	card.CardholderName = holder.String
	card.Token = token.String
	return card, nil
}

// ── cart.Store ───────────────────────────────────────────────────────────

func (s *Store) UserCart(ctx context.Context, userID int64) ([]cart.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.product_id, c.quantity, p.name, p.price
		FROM carts c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = ?
		ORDER BY c.rowid ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load cart for %d: %w", userID, err)
	}
	defer rows.Close()

	var items []cart.LineItem
	for rows.Next() {
		var item cart.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Name, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("sqlite: scan cart row: %w", err)
		}
		item.Subtotal = item.UnitPrice * float64(item.Quantity)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: load cart for %d: %w", userID, err)
	}
	return items, nil
}

func (s *Store) UpsertItem(ctx context.Context, userID int64, productID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carts (user_id, product_id, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, product_id) DO UPDATE SET quantity = excluded.quantity
	`, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("sqlite: upsert cart item: %w", err)
	}
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, userID int64, productID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM carts WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return fmt.Errorf("sqlite: remove cart item: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: clear cart for %d: %w", userID, err)
	}
	return nil
}
