package validate

import (
	"encoding/json"

	"github.com/erazemk/shoplist/internal/model"
)

const (
	maxName        = model.MaxNameLength
	maxDescription = model.MaxDescriptionLength
)

const (
	msgItemNameInvalid = "Name must be a non-empty string if provided."
	msgItemDescInvalid = "Description must be a string if provided."
	msgPriceRequired   = "Price is required and must be a positive number."
	msgPriceInvalid    = "Price must be a positive number if provided."
)

// ItemFields is an item request body.
type ItemFields struct {
	Name        json.RawMessage `json:"name"`
	Description json.RawMessage `json:"description"`
	Price       json.RawMessage `json:"price"`
}

// NewItem validates a create request. On success every patch field is set.
func NewItem(f ItemFields) (model.ItemPatch, error) {
	var errs Errors
	var p model.ItemPatch

	p.Name = name(f.Name, msgNameRequired, &errs)

	if provided(f.Description) {
		p.Description = description(f.Description, msgDescNotString, &errs)
	} else {
		empty := ""
		p.Description = &empty
	}

	p.Price = price(f.Price, msgPriceRequired, &errs)

	if err := errs.err(); err != nil {
		return model.ItemPatch{}, err
	}
	return p, nil
}

// ItemUpdate validates a partial update. Only provided fields are checked
// and set in the patch.
func ItemUpdate(f ItemFields) (model.ItemPatch, error) {
	var errs Errors
	var p model.ItemPatch

	if provided(f.Name) {
		p.Name = name(f.Name, msgItemNameInvalid, &errs)
	}
	if provided(f.Description) {
		p.Description = description(f.Description, msgItemDescInvalid, &errs)
	}
	if provided(f.Price) {
		p.Price = price(f.Price, msgPriceInvalid, &errs)
	}

	if err := errs.err(); err != nil {
		return model.ItemPatch{}, err
	}
	return p, nil
}

func price(v json.RawMessage, invalid string, errs *Errors) *float64 {
	n, ok := numberValue(v)
	if !provided(v) || !ok || n <= 0 {
		errs.add(invalid)
		return nil
	}
	return &n
}
