package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/shoplist/internal/model"
	"github.com/erazemk/shoplist/internal/query"
)

const itemColumns = `id, name, description, price, created_at, updated_at`

func scanItem(s scanner) (*model.Item, error) {
	item := &model.Item{}
	if err := s.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	return item, nil
}

// CreateItem creates a new item.
func CreateItem(ctx context.Context, db *sql.DB, name, description string, price float64) (*model.Item, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO items (id, name, description, price, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, description, price, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns one page of items matching p.
func ListItems(ctx context.Context, db *sql.DB, p query.Params) (model.Page[model.Item], error) {
	where := query.ItemWhere(p)

	var total int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE `+where.SQL, where.Args...,
	).Scan(&total)
	if err != nil {
		return model.Page[model.Item]{}, fmt.Errorf("counting items: %w", err)
	}

	args := append(append([]any{}, where.Args...), p.Limit, p.Offset())
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE `+where.SQL+`
		 ORDER BY `+query.ItemOrder(p)+` LIMIT ? OFFSET ?`, args...,
	)
	if err != nil {
		return model.Page[model.Item]{}, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return model.Page[model.Item]{}, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return model.Page[model.Item]{}, fmt.Errorf("listing items: %w", err)
	}

	return query.NewPage(items, total, p), nil
}

// UpdateItem merges the patch into an existing item and returns the result.
func UpdateItem(ctx context.Context, db *sql.DB, id string, patch model.ItemPatch) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET
		     name = COALESCE(?, name),
		     description = COALESCE(?, description),
		     price = COALESCE(?, price),
		     updated_at = ?
		 WHERE id = ?`,
		optional(patch.Name), optional(patch.Description), optional(patch.Price), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}

	item, err := GetItem(ctx, db, id)
	if err == nil && item == nil {
		// Deleted between the update and the read.
		return nil, ErrNotFound
	}
	return item, err
}

// DeleteItem deletes an item and removes every list entry referencing it.
// It returns the number of removed entries.
func DeleteItem(ctx context.Context, db *sql.DB, id string) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("deleting item: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("deleting item: %w", err)
	} else if n == 0 {
		return 0, ErrNotFound
	}

	removed, err := removeItemFromLists(ctx, tx, id)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing item deletion: %w", err)
	}
	return removed, nil
}

// ItemsByID returns the items with the given IDs, keyed by ID. Unknown IDs
// are absent from the result.
func ItemsByID(ctx context.Context, db *sql.DB, ids []string) (map[string]*model.Item, error) {
	return itemsByID(ctx, db, ids)
}

func itemsByID(ctx context.Context, q querier, ids []string) (map[string]*model.Item, error) {
	items := make(map[string]*model.Item, len(ids))
	ids = unique(ids)
	if len(ids) == 0 {
		return items, nil
	}

	in, args := inClause(ids)
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id IN (`+in+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items[item.ID] = item
	}
	return items, rows.Err()
}

// CountItemsByName returns how many items have a name containing search,
// ignoring case.
func CountItemsByName(ctx context.Context, db *sql.DB, search string) (int, error) {
	where := query.ItemNameWhere(search)
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE `+where.SQL, where.Args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting items by name: %w", err)
	}
	return n, nil
}
