package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/database"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) inventory.Repository {
	return &PGRepository{DB: tx}
}

func (r *PGRepository) Create(ctx context.Context, item *model.StockedItem) error {
	query := `
        INSERT INTO stocked_items (
            id, merchant_id, name, item_class, unit, pack_weight,
            cumulative_packs_purchased, cumulative_cost_spent, on_hand_base_units,
            low_stock_threshold, low_stock_unit, created_at, updated_at
        )
        VALUES (
            :id, :merchant_id, :name, :item_class, :unit, :pack_weight,
            :cumulative_packs_purchased, :cumulative_cost_spent, :on_hand_base_units,
            :low_stock_threshold, :low_stock_unit, :created_at, :updated_at
        )
    `
	_, err := sqlx.NamedExecContext(ctx, r.DB, query, item)
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.StockedItem, error) {
	var item model.StockedItem
	err := sqlx.GetContext(ctx, r.DB, &item, r.DB.Rebind(`SELECT * FROM stocked_items WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *PGRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.StockedItem, error) {
	return r.findByIDs(ctx, ids, false)
}

func (r *PGRepository) LockByIDs(ctx context.Context, ids []string) (map[string]*model.StockedItem, error) {
	return r.findByIDs(ctx, ids, true)
}

func (r *PGRepository) findByIDs(ctx context.Context, ids []string, lock bool) (map[string]*model.StockedItem, error) {
	result := make(map[string]*model.StockedItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	query, args, err := sqlx.In(`SELECT * FROM stocked_items WHERE id IN (?) ORDER BY id`, sorted)
	if err != nil {
		return nil, err
	}
	if lock {
		query += database.ForUpdate(r.DB)
	}

	var items []model.StockedItem
	if err := sqlx.SelectContext(ctx, r.DB, &items, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range items {
		result[items[i].ID] = &items[i]
	}
	return result, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ItemFilters) ([]model.StockedItem, int, error) {
	var items []model.StockedItem
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.MerchantID != "" {
		conditions = append(conditions, "merchant_id = :merchant_id")
		args["merchant_id"] = f.MerchantID
	}
	if f.ItemClass != "" {
		conditions = append(conditions, "item_class = :item_class")
		args["item_class"] = f.ItemClass
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM stocked_items"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, r.DB, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM stocked_items" + whereClause + " ORDER BY name, id"
	if f.PageSize > 0 {
		offset := (max(f.Page, 1) - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	err = sqlx.SelectContext(ctx, r.DB, &items, r.DB.Rebind(listQuery), listArgs...)
	return items, count, err
}

func (r *PGRepository) UpdateLedger(ctx context.Context, item *model.StockedItem) error {
	query := `
        UPDATE stocked_items
        SET cumulative_packs_purchased = :cumulative_packs_purchased,
            cumulative_cost_spent = :cumulative_cost_spent,
            on_hand_base_units = :on_hand_base_units,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := sqlx.NamedExecContext(ctx, r.DB, query, item)
	if err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	return expectOneRow(res, item.ID)
}

func (r *PGRepository) UpdateOnHand(ctx context.Context, id string, onHand float64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		r.DB.Rebind(`UPDATE stocked_items SET on_hand_base_units = ?, updated_at = ? WHERE id = ?`),
		onHand, at, id)
	if err != nil {
		return fmt.Errorf("failed to update on-hand stock: %w", err)
	}
	return expectOneRow(res, id)
}

func (r *PGRepository) LogMovement(ctx context.Context, m *model.StockMovement) error {
	query := `
        INSERT INTO stock_movements (
            id, merchant_id, item_id, movement_type, quantity_change,
            quantity_before, quantity_after, cost_change,
            reference_type, reference_id, notes, created_at
        )
        VALUES (
            :id, :merchant_id, :item_id, :movement_type, :quantity_change,
            :quantity_before, :quantity_after, :cost_change,
            :reference_type, :reference_id, :notes, :created_at
        )
    `
	if _, err := sqlx.NamedExecContext(ctx, r.DB, query, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.MerchantID != "" {
		conditions = append(conditions, "merchant_id = :merchant_id")
		args["merchant_id"] = f.MerchantID
	}
	if f.ItemID != "" {
		conditions = append(conditions, "item_id = :item_id")
		args["item_id"] = f.ItemID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM stock_movements"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, r.DB, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC, id"
	if f.PageSize > 0 {
		offset := (max(f.Page, 1) - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	err = sqlx.SelectContext(ctx, r.DB, &items, r.DB.Rebind(listQuery), listArgs...)
	return items, count, err
}

func expectOneRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("stocked item %s not updated", id)
	}
	return nil
}
