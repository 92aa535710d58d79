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

const listColumns = `id, name, description, created_at`

func scanList(s scanner) (*model.List, error) {
	list := &model.List{}
	if err := s.Scan(&list.ID, &list.Name, &list.Description, &list.CreatedAt); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateList creates a list with its entries in a single transaction.
func CreateList(ctx context.Context, db *sql.DB, name, description string, entries []model.ListEntry) (*model.List, error) {
	id := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lists (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		id, name, description, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating list: %w", err)
	}

	if err := insertEntries(ctx, tx, id, entries); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing list: %w", err)
	}

	return GetList(ctx, db, id)
}

// GetList returns a list with populated entries, or nil if it does not exist.
func GetList(ctx context.Context, db *sql.DB, id string) (*model.List, error) {
	list, err := scanList(db.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM lists WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting list: %w", err)
	}

	lists := []model.List{*list}
	if err := populate(ctx, db, lists); err != nil {
		return nil, err
	}
	return &lists[0], nil
}

// ListLists returns one page of lists matching p, with populated entries.
// Filtering by item with no matching item names yields an empty page without
// querying lists.
func ListLists(ctx context.Context, db *sql.DB, p query.Params) (model.Page[model.List], error) {
	if p.Searching() && p.Filter == query.FilterItem {
		n, err := CountItemsByName(ctx, db, p.Search)
		if err != nil {
			return model.Page[model.List]{}, err
		}
		if n == 0 {
			return query.NewPage[model.List](nil, 0, p), nil
		}
	}

	where := query.ListWhere(p)

	var total int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lists WHERE `+where.SQL, where.Args...,
	).Scan(&total)
	if err != nil {
		return model.Page[model.List]{}, fmt.Errorf("counting lists: %w", err)
	}

	lists, err := queryLists(ctx, db,
		`SELECT `+listColumns+` FROM lists WHERE `+where.SQL+`
		 ORDER BY `+query.ListOrder(p)+` LIMIT ? OFFSET ?`,
		append(append([]any{}, where.Args...), p.Limit, p.Offset())...,
	)
	if err != nil {
		return model.Page[model.List]{}, err
	}

	if err := populate(ctx, db, lists); err != nil {
		return model.Page[model.List]{}, err
	}

	return query.NewPage(lists, total, p), nil
}

func queryLists(ctx context.Context, db *sql.DB, q string, args ...any) ([]model.List, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing lists: %w", err)
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning list: %w", err)
		}
		lists = append(lists, *list)
	}
	return lists, rows.Err()
}

// UpdateList merges the patch into an existing list. Non-nil patch entries
// replace all existing entries.
func UpdateList(ctx context.Context, db *sql.DB, id string, patch model.ListPatch) (*model.List, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE lists SET
		     name = COALESCE(?, name),
		     description = COALESCE(?, description)
		 WHERE id = ?`,
		optional(patch.Name), optional(patch.Description), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating list: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating list: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}

	if patch.Entries != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM list_entries WHERE list_id = ?`, id); err != nil {
			return nil, fmt.Errorf("clearing list entries: %w", err)
		}
		if err := insertEntries(ctx, tx, id, patch.Entries); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing list update: %w", err)
	}

	list, err := GetList(ctx, db, id)
	if err == nil && list == nil {
		return nil, ErrNotFound
	}
	return list, err
}

// DeleteList deletes a list and its entries.
func DeleteList(ctx context.Context, db *sql.DB, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM list_entries WHERE list_id = ?`, id); err != nil {
		return fmt.Errorf("deleting list entries: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting list: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("deleting list: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing list deletion: %w", err)
	}
	return nil
}

func insertEntries(ctx context.Context, q querier, listID string, entries []model.ListEntry) error {
	for i, e := range entries {
		status := e.Status
		if status == "" {
			status = model.StatusNotPurchased
		}
		_, err := q.ExecContext(ctx,
			`INSERT INTO list_entries (list_id, position, item_id, quantity, status) VALUES (?, ?, ?, ?, ?)`,
			listID, i, e.ItemID, e.Quantity, string(status),
		)
		if err != nil {
			return fmt.Errorf("inserting list entry %d: %w", i, err)
		}
	}
	return nil
}

// removeItemFromLists deletes every entry referencing itemID.
func removeItemFromLists(ctx context.Context, q querier, itemID string) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM list_entries WHERE item_id = ?`, itemID)
	if err != nil {
		return 0, fmt.Errorf("removing item from lists: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("removing item from lists: %w", err)
	}
	return n, nil
}

// populate loads the entries of each list in place and resolves their items.
func populate(ctx context.Context, db *sql.DB, lists []model.List) error {
	if len(lists) == 0 {
		return nil
	}

	index := make(map[string]int, len(lists))
	ids := make([]string, len(lists))
	for i := range lists {
		lists[i].Items = []model.ListEntry{}
		index[lists[i].ID] = i
		ids[i] = lists[i].ID
	}

	in, args := inClause(ids)
	rows, err := db.QueryContext(ctx,
		`SELECT list_id, item_id, quantity, status FROM list_entries
		 WHERE list_id IN (`+in+`) ORDER BY list_id, position`, args...,
	)
	if err != nil {
		return fmt.Errorf("getting list entries: %w", err)
	}

	var itemIDs []string
	for rows.Next() {
		var listID, status string
		var e model.ListEntry
		if err := rows.Scan(&listID, &e.ItemID, &e.Quantity, &status); err != nil {
			rows.Close()
			return fmt.Errorf("scanning list entry: %w", err)
		}
		e.Status = model.EntryStatus(status)
		i := index[listID]
		lists[i].Items = append(lists[i].Items, e)
		itemIDs = append(itemIDs, e.ItemID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("getting list entries: %w", err)
	}
	// Release the connection before resolving items.
	rows.Close()

	items, err := itemsByID(ctx, db, itemIDs)
	if err != nil {
		return err
	}
	for i := range lists {
		for j := range lists[i].Items {
			lists[i].Items[j].Item = items[lists[i].Items[j].ItemID]
		}
	}
	return nil
}
