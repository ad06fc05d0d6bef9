package repository

import (
	"context"
	"fmt"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type FoodRepository interface {
	FindByID(ctx context.Context, id string) (*entity.FoodItem, error)
	FindAllActive(ctx context.Context) ([]*entity.FoodItem, error)
}

type foodRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewFoodRepository(db database.PgxIface, log *zap.Logger) FoodRepository {
	return &foodRepository{
		db:  db,
		log: log.With(zap.String("repository", "food")),
	}
}

func (r *foodRepository) FindByID(ctx context.Context, id string) (*entity.FoodItem, error) {
	query := `
		SELECT id, name, price, is_active
		FROM food_items
		WHERE id = $1
	`

	var item entity.FoodItem
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&item.Price,
		&item.IsActive,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find food item by ID",
			zap.Error(err),
			zap.String("item_id", id),
		)
		return nil, fmt.Errorf("find food item by ID %s: %w", id, err)
	}

	return &item, nil
}

func (r *foodRepository) FindAllActive(ctx context.Context) ([]*entity.FoodItem, error) {
	query := `
		SELECT id, name, price, is_active
		FROM food_items
		WHERE is_active = TRUE
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.Error("Failed to find active food items", zap.Error(err))
		return nil, fmt.Errorf("find active food items: %w", err)
	}
	defer rows.Close()

	var items []*entity.FoodItem
	for rows.Next() {
		var item entity.FoodItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.IsActive); err != nil {
			r.log.Error("Failed to scan food item", zap.Error(err))
			return nil, fmt.Errorf("scan food item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}
