package domain

// CartEntry is one product line in a session's cart. Quantity is what the
// shopper asked for; Reserved is how much of it the session currently holds
// against inventory. They differ only after a failed checkout released the
// holds, in which case the next checkout re-reserves the deficit.
type CartEntry struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
}

// Deficit returns how many units must be reserved before the entry is fully held.
func (e CartEntry) Deficit() int {
	if d := e.Quantity - e.Reserved; d > 0 {
		return d
	}
	return 0
}

// CartView is the read model returned to callers.
type CartView struct {
	SessionID string      `json:"session_id"`
	Items     []CartEntry `json:"items"`
	ItemCount int         `json:"item_count"`
}

// NewCartView builds a view over entries. Entries are not copied.
func NewCartView(sessionID string, entries []CartEntry) *CartView {
	if entries == nil {
		entries = []CartEntry{}
	}
	var count int
	for _, e := range entries {
		count += e.Quantity
	}
	return &CartView{SessionID: sessionID, Items: entries, ItemCount: count}
}

// CloneEntries returns a deep copy of entries.
func CloneEntries(entries []CartEntry) []CartEntry {
	if entries == nil {
		return nil
	}
	out := make([]CartEntry, len(entries))
	copy(out, entries)
	return out
}
