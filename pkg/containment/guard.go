package containment

import (
	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/subject"
)

// Action is a subject action the host asks permission for.
type Action string

// Actions confined subjects may not perform.
const (
	ActionBlockBreak     Action = "block_break"
	ActionBlockPlace     Action = "block_place"
	ActionItemDrop       Action = "item_drop"
	ActionInventoryClick Action = "inventory_click"
	ActionInventoryDrag  Action = "inventory_drag"
	ActionInteract       Action = "interact"
	ActionChat           Action = "chat"
)

var deniedWhileConfined = map[Action]bool{
	ActionBlockBreak:     true,
	ActionBlockPlace:     true,
	ActionItemDrop:       true,
	ActionInventoryClick: true,
	ActionInventoryDrag:  true,
	ActionInteract:       true,
	ActionChat:           true,
}

// Allow reports whether id may perform action. Confined subjects are denied
// the protected actions; a denied chat message is answered with a notice.
func (c *Controller) Allow(id subject.ID, action Action) bool {
	if !deniedWhileConfined[action] || !c.cache.IsMember(id) {
		return true
	}

	c.metrics.RecordDenied(string(action))
	if action == ActionChat {
		c.notify(id, notify.KeyChatBlocked, nil)
	}
	return false
}
