package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/database"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) order.Repository {
	return &PGRepository{DB: tx}
}

func (r *PGRepository) Create(ctx context.Context, o *model.Order) error {
	query := `
        INSERT INTO orders (id, merchant_id, customer_name, status, stock_reserved, total_amount, created_at, updated_at)
        VALUES (:id, :merchant_id, :customer_name, :status, :stock_reserved, :total_amount, :created_at, :updated_at)
    `
	if _, err := sqlx.NamedExecContext(ctx, r.DB, query, o); err != nil {
		return err
	}
	return r.insertLines(ctx, o.Lines)
}

func (r *PGRepository) Update(ctx context.Context, o *model.Order) error {
	query := `
        UPDATE orders
        SET customer_name = :customer_name, status = :status, stock_reserved = :stock_reserved,
            total_amount = :total_amount, updated_at = :updated_at
        WHERE id = :id
    `
	res, err := sqlx.NamedExecContext(ctx, r.DB, query, o)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order %s not updated", o.ID)
	}
	return nil
}

func (r *PGRepository) ReplaceLines(ctx context.Context, orderID string, lines []model.OrderLine) error {
	if _, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM order_lines WHERE order_id = ?`), orderID); err != nil {
		return err
	}
	return r.insertLines(ctx, lines)
}

func (r *PGRepository) insertLines(ctx context.Context, lines []model.OrderLine) error {
	query := `
        INSERT INTO order_lines (id, order_id, recipe_id, position, quantity, selling_price)
        VALUES (:id, :order_id, :recipe_id, :position, :quantity, :selling_price)
    `
	for i := range lines {
		if _, err := sqlx.NamedExecContext(ctx, r.DB, query, &lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the order; lines and reservations cascade.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM orders WHERE id = ?`), id)
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	return r.findOne(ctx, id, false)
}

func (r *PGRepository) LockByID(ctx context.Context, id string) (*model.Order, error) {
	return r.findOne(ctx, id, true)
}

func (r *PGRepository) findOne(ctx context.Context, id string, lock bool) (*model.Order, error) {
	query := `SELECT * FROM orders WHERE id = ?`
	if lock {
		query += database.ForUpdate(r.DB)
	}

	var o model.Order
	if err := sqlx.GetContext(ctx, r.DB, &o, r.DB.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	orders := []model.Order{o}
	if err := r.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.OrderFilters) ([]model.Order, int, error) {
	var orders []model.Order
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.MerchantID != "" {
		conditions = append(conditions, "merchant_id = :merchant_id")
		args["merchant_id"] = f.MerchantID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = strings.ToUpper(f.Status)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM orders"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, r.DB, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM orders" + whereClause + " ORDER BY created_at DESC, id"
	if f.PageSize > 0 {
		offset := (max(f.Page, 1) - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.SelectContext(ctx, r.DB, &orders, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	if err := r.loadLines(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, count, nil
}

func (r *PGRepository) loadLines(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	query, args, err := sqlx.In(`SELECT * FROM order_lines WHERE order_id IN (?) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	var lines []model.OrderLine
	if err := sqlx.SelectContext(ctx, r.DB, &lines, r.DB.Rebind(query), args...); err != nil {
		return err
	}

	byOrder := make(map[string][]model.OrderLine, len(orders))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = []model.OrderLine{}
		}
	}
	return nil
}
