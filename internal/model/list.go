package model

import (
	"encoding/json"
	"time"
)

// EntryStatus is the purchase state of a list entry.
type EntryStatus string

// Entry statuses.
const (
	StatusPurchased    EntryStatus = "purchased"
	StatusNotPurchased EntryStatus = "not purchased"
)

// ParseEntryStatus returns the status named by s. An empty string yields the
// default status.
func ParseEntryStatus(s string) (EntryStatus, bool) {
	switch EntryStatus(s) {
	case "":
		return StatusNotPurchased, true
	case StatusPurchased, StatusNotPurchased:
		return EntryStatus(s), true
	default:
		return "", false
	}
}

// List represents a shopping list.
type List struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"createdAt"`
	Items       []ListEntry `json:"items"`
}

// ListEntry is one item reference inside a list. It encodes "item" as the
// full item when Item is populated and as the bare item ID otherwise.
type ListEntry struct {
	ItemID   string
	Quantity float64
	Status   EntryStatus

	// Populated from the items table (nil if the item vanished concurrently).
	Item *Item
}

type listEntryJSON struct {
	Quantity float64     `json:"quantity"`
	Status   EntryStatus `json:"status"`
	Item     any         `json:"item"`
}

func (e ListEntry) MarshalJSON() ([]byte, error) {
	out := listEntryJSON{Quantity: e.Quantity, Status: e.Status, Item: e.ItemID}
	if e.Item != nil {
		out.Item = e.Item
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts "item" as either an item ID or an item object.
func (e *ListEntry) UnmarshalJSON(b []byte) error {
	var in struct {
		Quantity float64         `json:"quantity"`
		Status   EntryStatus     `json:"status"`
		Item     json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	*e = ListEntry{Quantity: in.Quantity, Status: in.Status}
	switch {
	case len(in.Item) == 0 || string(in.Item) == "null":
		return nil
	case in.Item[0] == '"':
		return json.Unmarshal(in.Item, &e.ItemID)
	}

	var item Item
	if err := json.Unmarshal(in.Item, &item); err != nil {
		return err
	}
	e.Item = &item
	e.ItemID = item.ID
	return nil
}

// ListPatch holds sanitized list fields. Nil fields are left untouched on
// update; a non-nil empty Entries clears the list.
type ListPatch struct {
	Name        *string
	Description *string
	Entries     []ListEntry
}

// ItemIDs returns the referenced item IDs in entry order.
func (p ListPatch) ItemIDs() []string {
	ids := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		ids = append(ids, e.ItemID)
	}
	return ids
}
