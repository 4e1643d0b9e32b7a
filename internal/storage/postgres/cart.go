package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tribetrade/storefront/internal/domain/cart"
)

var _ cart.Storage = (*CartStorage)(nil)

const (
	loadCartSQL = `SELECT product_id, name, unit_price, quantity, store_id, institution_id,
		campus_delivery_fee, waybill_delivery_fee
	FROM cart_lines
	WHERE buyer_id = $1
	ORDER BY position`

	deleteCartSQL = `DELETE FROM cart_lines WHERE buyer_id = $1`

	insertLineSQL = `INSERT INTO cart_lines
		(buyer_id, position, product_id, name, unit_price, quantity, store_id,
		 institution_id, campus_delivery_fee, waybill_delivery_fee)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

// CartStorage persists carts as normalized line rows, one per product, with
// a position column preserving insertion order.
type CartStorage struct {
	pool *pgxpool.Pool
}

// NewCartStorage returns a CartStorage using the given pool.
func NewCartStorage(pool *pgxpool.Pool) *CartStorage {
	return &CartStorage{pool: pool}
}

// Load returns the buyer's persisted lines in insertion order, or an empty
// slice when the buyer has no cart.
func (s *CartStorage) Load(ctx context.Context, buyerID string) ([]cart.Line, error) {
	rows, err := s.pool.Query(ctx, loadCartSQL, buyerID)
	if err != nil {
		return nil, errors.Wrap(err, "query cart lines")
	}
	defer rows.Close()

	var lines []cart.Line
	for rows.Next() {
		var (
			l       cart.Line
			campus  decimal.Decimal
			waybill decimal.NullDecimal
		)
		err := rows.Scan(
			&l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity,
			&l.StoreID, &l.InstitutionID, &campus, &waybill,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan cart line")
		}

		l.CampusDeliveryFee = cart.DefinedFee(campus)
		if waybill.Valid {
			l.WaybillDeliveryFee = cart.DefinedFee(waybill.Decimal)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate cart lines")
	}
	return lines, nil
}

// Save replaces the buyer's whole line set in one transaction. Concurrent
// writers race; the last committed write wins, as the cart store promises.
func (s *CartStorage) Save(ctx context.Context, buyerID string, lines []cart.Line) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, deleteCartSQL, buyerID); err != nil {
		return errors.Wrap(err, "delete old lines")
	}

	for i, l := range lines {
		waybill := decimal.NullDecimal{}
		if l.WaybillDeliveryFee.Defined {
			waybill = decimal.NewNullDecimal(l.WaybillDeliveryFee.Amount)
		}
		_, err := tx.Exec(ctx, insertLineSQL,
			buyerID, i, l.ProductID, l.Name, l.UnitPrice, l.Quantity,
			l.StoreID, l.InstitutionID, l.CampusDeliveryFee.Amount, waybill,
		)
		if err != nil {
			return errors.Wrapf(err, "insert line %q", l.ProductID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Delete removes the buyer's persisted cart entirely.
func (s *CartStorage) Delete(ctx context.Context, buyerID string) error {
	if _, err := s.pool.Exec(ctx, deleteCartSQL, buyerID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}
