// Package categories keeps the per-direction category lists: fixed
// defaults followed by the user's own additions.
package categories

import (
	"slices"
	"strings"
	"sync"

	"kakeibo/internal/core"
)

var defaults = map[core.Direction][]string{
	core.Expense: {"食費", "交通費", "光熱費", "医療費", "娯楽費", "その他"},
	core.Income:  {"給料", "ボーナス", "副業", "その他"},
}

// Manager holds custom categories for the running process.
type Manager struct {
	mu     sync.RWMutex
	custom map[core.Direction][]string
}

func NewManager() *Manager {
	return &Manager{custom: map[core.Direction][]string{}}
}

// Defaults returns the fixed categories for d.
func Defaults(d core.Direction) []string {
	return slices.Clone(defaults[d])
}

// CategoriesFor returns defaults first, then custom entries in insertion order.
func (m *Manager) CategoriesFor(d core.Direction) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(defaults[d])+len(m.custom[d]))
	out = append(out, defaults[d]...)
	return append(out, m.custom[d]...)
}

// Custom returns only the user-added categories for d.
func (m *Manager) Custom(d core.Direction) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.custom[d])
}

// IsDefault reports whether name is one of d's fixed categories.
func IsDefault(d core.Direction, name string) bool {
	return slices.Contains(defaults[d], name)
}

// AddCustom appends name to d's custom list. Blank names and names already
// present (exact match) are ignored. Reports whether anything was added.
func (m *Manager) AddCustom(d core.Direction, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || !d.Valid() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if IsDefault(d, name) || slices.Contains(m.custom[d], name) {
		return false
	}
	m.custom[d] = append(m.custom[d], name)
	return true
}

// RemoveCustom drops name from d's custom list. Defaults and unknown names
// are left alone. Reports whether anything was removed.
func (m *Manager) RemoveCustom(d core.Direction, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.custom[d], name)
	if i < 0 {
		return false
	}
	m.custom[d] = slices.Delete(m.custom[d], i, i+1)
	return true
}
