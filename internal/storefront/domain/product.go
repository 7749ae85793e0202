package domain

import "time"

// Product is a catalogue entry. Prices are in minor units (cents).
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	CreatedAt   time.Time `json:"createdAt"`
}
