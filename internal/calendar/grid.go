package calendar

import (
	"fmt"
	"time"

	"kakeibo/internal/core"
)

// GridDays is the fixed size of a month view: six Sunday-first weeks.
const GridDays = 42

// Cell is one day of a month view.
type Cell struct {
	Date    core.Date              `json:"date"`
	InMonth bool                   `json:"in_month"`
	Totals  map[string]core.Totals `json:"totals"`
	Count   int                    `json:"count"`
}

// MonthGrid lays out the month starting on the Sunday on or before the
// first, six weeks long. Cells with no transactions carry an empty map.
func MonthGrid(txs []core.Transaction, year, month int) [][]Cell {
	first := core.NewDate(year, month, 1)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	byDay := map[string][]core.Transaction{}
	for _, tx := range txs {
		key := tx.Date.String()
		byDay[key] = append(byDay[key], tx)
	}

	weeks := make([][]Cell, 0, GridDays/7)
	for i := 0; i < GridDays; i++ {
		if i%7 == 0 {
			weeks = append(weeks, make([]Cell, 0, 7))
		}
		d := core.DateOf(start.AddDate(0, 0, i))
		day := byDay[d.String()]
		weeks[len(weeks)-1] = append(weeks[len(weeks)-1], Cell{
			Date:    d,
			InMonth: d.Month() == month && d.Year() == year,
			Totals:  ByCurrencyTotals(day),
			Count:   len(day),
		})
	}
	return weeks
}

// YearOptions lists now's year plus and minus five, newest first.
func YearOptions(now time.Time) []int {
	years := make([]int, 0, 11)
	for y := now.Year() + 5; y >= now.Year()-5; y-- {
		years = append(years, y)
	}
	return years
}

// Period is one selectable report month.
type Period struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Label string `json:"label"`
}

// PeriodOptions lists six months either side of now with relative labels.
func PeriodOptions(now time.Time) []Period {
	out := make([]Period, 0, 13)
	for i := -6; i <= 6; i++ {
		t := time.Date(now.Year(), now.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		name := fmt.Sprintf("%d年%d月", t.Year(), int(t.Month()))

		var label string
		switch {
		case i == 0:
			label = "今月 (" + name + ")"
		case i == -1:
			label = "先月 (" + name + ")"
		case i == 1:
			label = "来月 (" + name + ")"
		case i > 0:
			label = fmt.Sprintf("%dヶ月後 (%s)", i, name)
		default:
			label = fmt.Sprintf("%dヶ月前 (%s)", -i, name)
		}
		out = append(out, Period{Year: t.Year(), Month: int(t.Month()), Label: label})
	}
	return out
}
