package possession

// Holder is the live possession state of a subject. Implementations are only
// touched from the subject's own execution context.
type Holder interface {
	Inventory() []*Item
	Armor() []*Item
	SetInventory(slots []*Item)
	SetArmor(slots []*Item)
}

// Capturer takes and applies snapshots against live holders.
type Capturer interface {
	// Capture copies the holder's current inventory and armor.
	Capture(h Holder) Snapshot

	// Apply replaces the holder's inventory and armor with the snapshot.
	// Applying the same snapshot twice leaves the holder in the same state.
	Apply(h Holder, s Snapshot)

	// Clear empties every inventory and armor slot.
	Clear(h Holder)
}

// SlotCapturer is the default Capturer. It copies slots one to one.
type SlotCapturer struct{}

// Capture implements Capturer.
func (SlotCapturer) Capture(h Holder) Snapshot {
	return Snapshot{
		Inventory: CloneSlots(h.Inventory()),
		Armor:     CloneSlots(h.Armor()),
	}
}

// Apply implements Capturer.
func (SlotCapturer) Apply(h Holder, s Snapshot) {
	h.SetInventory(fit(CloneSlots(s.Inventory), len(h.Inventory())))
	h.SetArmor(fit(CloneSlots(s.Armor), len(h.Armor())))
}

// Clear implements Capturer.
func (SlotCapturer) Clear(h Holder) {
	h.SetInventory(make([]*Item, len(h.Inventory())))
	h.SetArmor(make([]*Item, len(h.Armor())))
}

// fit pads slots with empty entries up to size. Slots beyond size are kept so
// nothing from a snapshot is ever dropped.
func fit(slots []*Item, size int) []*Item {
	if len(slots) >= size {
		return slots
	}
	out := make([]*Item, size)
	copy(out, slots)
	return out
}
