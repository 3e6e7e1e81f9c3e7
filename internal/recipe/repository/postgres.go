package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/recipe"
	"github.com/fekuna/omnipos-stock-service/internal/recipe/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/database"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) recipe.Repository {
	return &PGRepository{DB: tx}
}

func (r *PGRepository) Create(ctx context.Context, rec *model.Recipe) error {
	query := `
        INSERT INTO recipes (id, merchant_id, name, making_charge, total_cost_price, created_at, updated_at)
        VALUES (:id, :merchant_id, :name, :making_charge, :total_cost_price, :created_at, :updated_at)
    `
	if _, err := sqlx.NamedExecContext(ctx, r.DB, query, rec); err != nil {
		return fmt.Errorf("failed to insert recipe: %w", err)
	}
	return r.insertIngredients(ctx, rec.Ingredients)
}

func (r *PGRepository) Update(ctx context.Context, rec *model.Recipe) error {
	query := `
        UPDATE recipes
        SET name = :name, making_charge = :making_charge,
            total_cost_price = :total_cost_price, updated_at = :updated_at
        WHERE id = :id
    `
	res, err := sqlx.NamedExecContext(ctx, r.DB, query, rec)
	if err != nil {
		return fmt.Errorf("failed to update recipe: %w", err)
	}
	if err := expectOneRow(res, rec.ID); err != nil {
		return err
	}

	if _, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM recipe_ingredients WHERE recipe_id = ?`), rec.ID); err != nil {
		return fmt.Errorf("failed to clear ingredients: %w", err)
	}
	return r.insertIngredients(ctx, rec.Ingredients)
}

func (r *PGRepository) insertIngredients(ctx context.Context, ings []model.RecipeIngredient) error {
	if len(ings) == 0 {
		return nil
	}
	query := `
        INSERT INTO recipe_ingredients (id, recipe_id, item_id, position, quantity_needed, unit)
        VALUES (:id, :recipe_id, :item_id, :position, :quantity_needed, :unit)
    `
	for i := range ings {
		if _, err := sqlx.NamedExecContext(ctx, r.DB, query, &ings[i]); err != nil {
			return fmt.Errorf("failed to insert ingredient: %w", err)
		}
	}
	return nil
}

func (r *PGRepository) UpdateCost(ctx context.Context, id string, cost decimal.Decimal, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		r.DB.Rebind(`UPDATE recipes SET total_cost_price = ?, updated_at = ? WHERE id = ?`),
		cost, at, id)
	if err != nil {
		return fmt.Errorf("failed to update recipe cost: %w", err)
	}
	return expectOneRow(res, id)
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	// ingredients go with the recipe through ON DELETE CASCADE
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM recipes WHERE id = ?`), id)
	return err
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Recipe, error) {
	var rec model.Recipe
	err := sqlx.GetContext(ctx, r.DB, &rec, r.DB.Rebind(`SELECT * FROM recipes WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	recipes := []model.Recipe{rec}
	if err := r.loadIngredients(ctx, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

func (r *PGRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Recipe, error) {
	recipes, err := r.findByIDs(ctx, ids, false)
	if err != nil {
		return nil, err
	}
	result := make(map[string]*model.Recipe, len(recipes))
	for i := range recipes {
		result[recipes[i].ID] = &recipes[i]
	}
	return result, nil
}

func (r *PGRepository) LockByIDs(ctx context.Context, ids []string) ([]model.Recipe, error) {
	return r.findByIDs(ctx, ids, true)
}

func (r *PGRepository) findByIDs(ctx context.Context, ids []string, lock bool) ([]model.Recipe, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	query, args, err := sqlx.In(`SELECT * FROM recipes WHERE id IN (?) ORDER BY id`, sorted)
	if err != nil {
		return nil, err
	}
	if lock {
		query += database.ForUpdate(r.DB)
	}

	var recipes []model.Recipe
	if err := sqlx.SelectContext(ctx, r.DB, &recipes, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	if err := r.loadIngredients(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.RecipeFilters) ([]model.Recipe, int, error) {
	var recipes []model.Recipe
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.MerchantID != "" {
		conditions = append(conditions, "merchant_id = :merchant_id")
		args["merchant_id"] = f.MerchantID
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "LOWER(name) LIKE :search")
		args["search"] = "%" + strings.ToLower(f.SearchQuery) + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM recipes"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, r.DB, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM recipes" + whereClause + " ORDER BY name, id"
	if f.PageSize > 0 {
		offset := (max(f.Page, 1) - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.SelectContext(ctx, r.DB, &recipes, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	if err := r.loadIngredients(ctx, recipes); err != nil {
		return nil, 0, err
	}
	return recipes, count, nil
}

func (r *PGRepository) FindIDsByItem(ctx context.Context, itemID string) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, r.DB, &ids,
		r.DB.Rebind(`SELECT DISTINCT recipe_id FROM recipe_ingredients WHERE item_id = ? ORDER BY recipe_id`), itemID)
	return ids, err
}

func (r *PGRepository) CountOrderLines(ctx context.Context, recipeID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.DB, &n, r.DB.Rebind(`SELECT count(*) FROM order_lines WHERE recipe_id = ?`), recipeID)
	return n, err
}

// loadIngredients fills Ingredients on every recipe with one query.
func (r *PGRepository) loadIngredients(ctx context.Context, recipes []model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]string, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
	}

	query, args, err := sqlx.In(`SELECT * FROM recipe_ingredients WHERE recipe_id IN (?) ORDER BY recipe_id, position`, ids)
	if err != nil {
		return err
	}
	var ings []model.RecipeIngredient
	if err := sqlx.SelectContext(ctx, r.DB, &ings, r.DB.Rebind(query), args...); err != nil {
		return err
	}

	byRecipe := make(map[string][]model.RecipeIngredient, len(recipes))
	for _, ing := range ings {
		byRecipe[ing.RecipeID] = append(byRecipe[ing.RecipeID], ing)
	}
	for i := range recipes {
		recipes[i].Ingredients = byRecipe[recipes[i].ID]
		if recipes[i].Ingredients == nil {
			recipes[i].Ingredients = []model.RecipeIngredient{}
		}
	}
	return nil
}

func expectOneRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("recipe %s not updated", id)
	}
	return nil
}
