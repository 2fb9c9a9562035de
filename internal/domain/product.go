package domain

import "time"

// Product is a sellable item with an authoritative stock counter. Stock is only
// ever changed through the inventory store's reserve and release operations.
type Product struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UnitPrice int64     `json:"unit_price"`
	Stock     int       `json:"stock"`
	Category  string    `json:"category,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InStock reports whether qty units could be reserved right now.
func (p *Product) InStock(qty int) bool {
	return qty >= 1 && p.Stock >= qty
}
