package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/shoplist/internal/model"
)

type seedItem struct {
	name        string
	description string
	price       float64
}

// exampleItems is the catalogue inserted by Seed.
var exampleItems = []seedItem{
	{"Apple", "A fresh apple", 0.5},
	{"Banana", "A ripe banana", 0.3},
	{"Milk", "Fresh milk, 1 l", 1.5},
	{"Bread", "Whole grain loaf", 2.2},
	{"Eggs", "Free range, pack of 10", 3.1},
	{"Cheese", "Aged gouda, 200 g", 4.0},
	{"Coffee", "Ground coffee, 500 g", 6.5},
	{"Rice", "Basmati rice, 1 kg", 2.8},
	{"Paper Plates", "Pack of 50", 3.5},
	{"Napkins", "Pack of 100", 1.9},
}

type seedEntry struct {
	item     string
	quantity float64
	status   model.EntryStatus
}

type seedList struct {
	name        string
	description string
	entries     []seedEntry
}

var exampleLists = []seedList{
	{"Weekly Groceries", "Items to buy for the week", []seedEntry{
		{"Apple", 5, model.StatusNotPurchased},
		{"Banana", 8, model.StatusPurchased},
		{"Milk", 2, model.StatusNotPurchased},
		{"Bread", 1, model.StatusNotPurchased},
	}},
	{"Party Supplies", "Saturday birthday party", []seedEntry{
		{"Paper Plates", 2, model.StatusNotPurchased},
		{"Napkins", 1, model.StatusPurchased},
		{"Cheese", 3, model.StatusNotPurchased},
	}},
}

// Seed fills an empty store with example items and lists. It reports whether
// anything was inserted; a store that already has items is left untouched.
func Seed(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return false, fmt.Errorf("counting items: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	ids := make(map[string]string, len(exampleItems))
	for _, si := range exampleItems {
		item, err := CreateItem(ctx, db, si.name, si.description, si.price)
		if err != nil {
			return false, fmt.Errorf("seeding item %q: %w", si.name, err)
		}
		ids[si.name] = item.ID
	}

	for _, sl := range exampleLists {
		entries := make([]model.ListEntry, 0, len(sl.entries))
		for _, se := range sl.entries {
			entries = append(entries, model.ListEntry{
				ItemID:   ids[se.item],
				Quantity: se.quantity,
				Status:   se.status,
			})
		}
		if _, err := CreateList(ctx, db, sl.name, sl.description, entries); err != nil {
			return false, fmt.Errorf("seeding list %q: %w", sl.name, err)
		}
	}

	return true, nil
}
