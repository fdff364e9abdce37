package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Item is one entry of a backend-provided list (e.g. a bookable room).
type Item struct {
	ID          string `json:"id" mapstructure:"id"`
	Occupied    bool   `json:"occupied" mapstructure:"occupied"`
	Description string `json:"description" mapstructure:"description"`
}

// Reservation acknowledges a committed reservation.
type Reservation struct {
	ItemID string `json:"item_id" mapstructure:"item_id"`
	Status string `json:"status" mapstructure:"status"`
}

// DecodeItems converts a context value into a list of items.
// Values that went through a JSON round-trip (e.g. a persisted session) come back as
// []any of map[string]any with float64 ids; weak decoding folds them back into Items.
func DecodeItems(v any) ([]Item, error) {
	if items, ok := v.([]Item); ok {
		return items, nil
	}
	var items []Item
	if err := weakDecode(v, &items); err != nil {
		return nil, fmt.Errorf("invalid item list: %w", err)
	}
	return items, nil
}

// DecodeItem converts a context value into a single item.
func DecodeItem(v any) (Item, error) {
	if item, ok := v.(Item); ok {
		return item, nil
	}
	var item Item
	if err := weakDecode(v, &item); err != nil {
		return Item{}, fmt.Errorf("invalid item: %w", err)
	}
	return item, nil
}

// DecodeReservation converts a context value into a reservation acknowledgement.
func DecodeReservation(v any) (Reservation, error) {
	if r, ok := v.(Reservation); ok {
		return r, nil
	}
	var r Reservation
	if err := weakDecode(v, &r); err != nil {
		return Reservation{}, fmt.Errorf("invalid reservation: %w", err)
	}
	return r, nil
}

func weakDecode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
