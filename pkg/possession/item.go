package possession

import "maps"

// Item is a single stack occupying one slot.
type Item struct {
	Material     string            `cbor:"material"`
	Amount       int               `cbor:"amount"`
	Durability   int               `cbor:"durability"`
	Name         string            `cbor:"name"`
	Enchantments map[string]int    `cbor:"enchantments"`
	Meta         map[string]string `cbor:"meta"`
}

// Clone returns a deep copy of the item. Cloning nil returns nil.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Enchantments = maps.Clone(i.Enchantments)
	c.Meta = maps.Clone(i.Meta)
	return &c
}

// CloneSlots deep-copies a slot slice, keeping empty slots in place.
func CloneSlots(slots []*Item) []*Item {
	if slots == nil {
		return nil
	}
	out := make([]*Item, len(slots))
	for n, it := range slots {
		out[n] = it.Clone()
	}
	return out
}

// CountItems returns the total amount across all occupied slots.
func CountItems(slots []*Item) int {
	total := 0
	for _, it := range slots {
		if it != nil {
			total += it.Amount
		}
	}
	return total
}

// Snapshot is a point-in-time copy of a subject's possessions.
type Snapshot struct {
	Inventory []*Item
	Armor     []*Item
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Inventory: CloneSlots(s.Inventory),
		Armor:     CloneSlots(s.Armor),
	}
}
