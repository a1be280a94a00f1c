package session

import (
	"fmt"
	"strings"
	"sync"

	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/subject"
)

// GameMode is the interaction mode applied to a live subject.
type GameMode string

const (
	ModeSurvival  GameMode = "survival"
	ModeAdventure GameMode = "adventure"
	ModeCreative  GameMode = "creative"
	ModeSpectator GameMode = "spectator"
)

// ParseGameMode validates a configured game mode name.
func ParseGameMode(s string) (GameMode, error) {
	switch m := GameMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSurvival, ModeAdventure, ModeCreative, ModeSpectator:
		return m, nil
	default:
		return "", fmt.Errorf("unknown game mode %q", s)
	}
}

// Player is the live state of an online subject.
// Mutating methods must only be called from the subject's entity context.
type Player interface {
	possession.Holder

	ID() subject.ID
	Name() string
	Subject() subject.Subject

	GameMode() GameMode
	SetGameMode(m GameMode)

	Location() subject.Location
	Teleport(to subject.Location)
}

// Directory answers online-status questions and resolves live players.
type Directory interface {
	IsOnline(id subject.ID) bool
	Get(id subject.ID) (Player, bool)
}

// Default slot counts of a player inventory.
const (
	InventorySlots = 36
	ArmorSlots     = 4
)

// LivePlayer is an in-memory Player. The mutex only protects readers on other
// goroutines (admin views, tests); it does not replace entity affinity.
type LivePlayer struct {
	mu        sync.RWMutex
	id        subject.ID
	name      string
	mode      GameMode
	loc       subject.Location
	inventory []*possession.Item
	armor     []*possession.Item
	teleports int
}

// NewLivePlayer creates a player with empty inventory and armor slots.
func NewLivePlayer(id subject.ID, name string, loc subject.Location) *LivePlayer {
	return &LivePlayer{
		id:        id,
		name:      name,
		mode:      ModeSurvival,
		loc:       loc,
		inventory: make([]*possession.Item, InventorySlots),
		armor:     make([]*possession.Item, ArmorSlots),
	}
}

func (p *LivePlayer) ID() subject.ID { return p.id }
func (p *LivePlayer) Name() string   { return p.name }

func (p *LivePlayer) Subject() subject.Subject {
	return subject.Subject{ID: p.id, Name: p.name}
}

func (p *LivePlayer) Inventory() []*possession.Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inventory
}

func (p *LivePlayer) Armor() []*possession.Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.armor
}

func (p *LivePlayer) SetInventory(slots []*possession.Item) {
	p.mu.Lock()
	p.inventory = slots
	p.mu.Unlock()
}

func (p *LivePlayer) SetArmor(slots []*possession.Item) {
	p.mu.Lock()
	p.armor = slots
	p.mu.Unlock()
}

// Give places an item in the first empty inventory slot. It reports false
// when the inventory is full.
func (p *LivePlayer) Give(it *possession.Item) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for n, slot := range p.inventory {
		if slot == nil {
			p.inventory[n] = it
			return true
		}
	}
	return false
}

func (p *LivePlayer) GameMode() GameMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

func (p *LivePlayer) SetGameMode(m GameMode) {
	p.mu.Lock()
	p.mode = m
	p.mu.Unlock()
}

func (p *LivePlayer) Location() subject.Location {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loc
}

func (p *LivePlayer) Teleport(to subject.Location) {
	p.mu.Lock()
	p.loc = to
	p.teleports++
	p.mu.Unlock()
}

// SetLocation moves the player without counting a teleport, the way a client
// movement would.
func (p *LivePlayer) SetLocation(to subject.Location) {
	p.mu.Lock()
	p.loc = to
	p.mu.Unlock()
}

// Teleports returns how many times Teleport was called.
func (p *LivePlayer) Teleports() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.teleports
}
