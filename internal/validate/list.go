package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erazemk/shoplist/internal/model"
)

const msgListNameInvalid = "Name must be a non-empty string."

// ListFields is a shopping list request body.
type ListFields struct {
	Name        json.RawMessage `json:"name"`
	Description json.RawMessage `json:"description"`
	Items       json.RawMessage `json:"items"`
}

type entryFields struct {
	Item     json.RawMessage `json:"item"`
	Quantity json.RawMessage `json:"quantity"`
	Status   json.RawMessage `json:"status"`
}

// NewList validates a create request. Entries is always non-nil on success.
func NewList(f ListFields) (model.ListPatch, error) {
	var errs Errors
	var p model.ListPatch

	p.Name = name(f.Name, msgNameRequired, &errs)

	if provided(f.Description) {
		p.Description = description(f.Description, msgDescNotString, &errs)
	} else {
		empty := ""
		p.Description = &empty
	}

	p.Entries = entries(f.Items, &errs)

	if err := errs.err(); err != nil {
		return model.ListPatch{}, err
	}
	return p, nil
}

// ListUpdate validates a partial update. A provided items array replaces the
// list's entries wholesale.
func ListUpdate(f ListFields) (model.ListPatch, error) {
	var errs Errors
	var p model.ListPatch

	if provided(f.Name) {
		p.Name = name(f.Name, msgListNameInvalid, &errs)
	}
	if provided(f.Description) {
		p.Description = description(f.Description, msgDescNotString, &errs)
	}
	if provided(f.Items) {
		p.Entries = entries(f.Items, &errs)
	}

	if err := errs.err(); err != nil {
		return model.ListPatch{}, err
	}
	return p, nil
}

// entries validates an items array, recording one message per failed rule
// and index.
func entries(v json.RawMessage, errs *Errors) []model.ListEntry {
	var raw []json.RawMessage
	if !provided(v) || json.Unmarshal(v, &raw) != nil {
		errs.add(msgItemsNotAnArray)
		return nil
	}

	out := make([]model.ListEntry, 0, len(raw))
	for i, r := range raw {
		var f entryFields
		// A non-object element simply has no fields.
		_ = json.Unmarshal(r, &f)

		var e model.ListEntry
		ok := true

		id, isString := stringValue(f.Item)
		id = strings.TrimSpace(id)
		if !isString || id == "" {
			errs.add(fmt.Sprintf("Item at index %d is missing 'item'.", i))
			ok = false
		}
		e.ItemID = id

		qty, isNumber := numberValue(f.Quantity)
		if !provided(f.Quantity) || !isNumber || qty <= 0 {
			errs.add(fmt.Sprintf("Item at index %d must have a valid 'quantity' greater than 0.", i))
			ok = false
		}
		e.Quantity = qty

		e.Status = model.StatusNotPurchased
		if provided(f.Status) {
			s, _ := stringValue(f.Status)
			status, valid := model.ParseEntryStatus(s)
			if !valid || s == "" {
				errs.add(fmt.Sprintf("Item at index %d has an invalid 'status'.", i))
				ok = false
			}
			e.Status = status
		}

		if ok {
			out = append(out, e)
		}
	}
	return out
}

// UnknownItems checks that every entry references an item present in known.
func UnknownItems(entries []model.ListEntry, known map[string]bool) error {
	var errs Errors
	for i, e := range entries {
		if !known[e.ItemID] {
			errs.add(fmt.Sprintf("Item at index %d references an item that does not exist.", i))
		}
	}
	return errs.err()
}
