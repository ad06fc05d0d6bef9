package entity

type FoodItem struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Price    int64  `db:"price" json:"price"`
	IsActive bool   `db:"is_active" json:"is_active"`
}
