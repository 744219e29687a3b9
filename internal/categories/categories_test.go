package categories

import (
	"slices"
	"testing"

	"kakeibo/internal/core"
)

func count(list []string, name string) int {
	n := 0
	for _, c := range list {
		if c == name {
			n++
		}
	}
	return n
}

func TestCategoriesForStartsWithDefaults(t *testing.T) {
	m := NewManager()
	got := m.CategoriesFor(core.Expense)
	want := []string{"食費", "交通費", "光熱費", "医療費", "娯楽費", "その他"}
	if !slices.Equal(got, want) {
		t.Fatalf("expense categories = %v, want %v", got, want)
	}
	if got := m.CategoriesFor(core.Income); !slices.Equal(got, []string{"給料", "ボーナス", "副業", "その他"}) {
		t.Fatalf("income categories = %v", got)
	}
}

func TestAddCustomIsIdempotent(t *testing.T) {
	m := NewManager()
	if !m.AddCustom(core.Expense, "ペット") {
		t.Fatal("first add should succeed")
	}
	if m.AddCustom(core.Expense, "ペット") {
		t.Fatal("second add should be a no-op")
	}
	got := m.CategoriesFor(core.Expense)
	if count(got, "ペット") != 1 {
		t.Fatalf("expected ペット exactly once, got %v", got)
	}
	if got[len(got)-1] != "ペット" {
		t.Fatalf("custom categories should follow defaults: %v", got)
	}
	if count(m.CategoriesFor(core.Income), "ペット") != 0 {
		t.Fatal("custom categories are per direction")
	}
}

func TestAddCustomIgnoresBlankAndDefaults(t *testing.T) {
	m := NewManager()
	for _, name := range []string{"", "   ", "食費"} {
		if m.AddCustom(core.Expense, name) {
			t.Errorf("AddCustom(%q) should be a no-op", name)
		}
	}
	if len(m.Custom(core.Expense)) != 0 {
		t.Fatalf("custom list should be empty, got %v", m.Custom(core.Expense))
	}
}

func TestRemoveDefaultIsNoOp(t *testing.T) {
	m := NewManager()
	before := m.CategoriesFor(core.Expense)
	if m.RemoveCustom(core.Expense, "娯楽費") {
		t.Fatal("default categories cannot be removed")
	}
	if after := m.CategoriesFor(core.Expense); !slices.Equal(before, after) {
		t.Fatalf("categories changed: %v -> %v", before, after)
	}
}

func TestRemoveCustom(t *testing.T) {
	m := NewManager()
	m.AddCustom(core.Income, "配当")
	m.AddCustom(core.Income, "お小遣い")

	if !m.RemoveCustom(core.Income, "配当") {
		t.Fatal("expected removal")
	}
	if m.RemoveCustom(core.Income, "配当") {
		t.Fatal("second removal should be a no-op")
	}
	if got := m.Custom(core.Income); !slices.Equal(got, []string{"お小遣い"}) {
		t.Fatalf("custom = %v", got)
	}
	if !IsDefault(core.Income, "給料") || IsDefault(core.Income, "お小遣い") {
		t.Fatal("IsDefault is wrong")
	}
}
