package model

import "time"

// Item represents a purchasable product.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Field limits shared by items and lists.
const (
	MaxNameLength        = 50
	MaxDescriptionLength = 255
)

// ItemPatch holds sanitized item fields. Nil fields are left untouched on update.
type ItemPatch struct {
	Name        *string
	Description *string
	Price       *float64
}

// Apply merges the patch into the item.
func (p ItemPatch) Apply(item *Item) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
}
