package http

import (
	"net/http"

	"kakeibo/internal/calendar"
	"kakeibo/internal/core"
)

type dayResponse struct {
	Date         core.Date              `json:"date"`
	Transactions []core.Transaction     `json:"transactions"`
	Totals       map[string]core.Totals `json:"totals"`
}

type monthResponse struct {
	Year   int               `json:"year"`
	Month  int               `json:"month"`
	Weeks  [][]calendar.Cell `json:"weeks"`
	Counts map[string]int    `json:"counts"`
}

type monthlyResponse struct {
	Year     int                    `json:"year"`
	Currency string                 `json:"currency"`
	Series   []calendar.MonthTotals `json:"series"`
	Totals   core.Totals            `json:"totals"`
	Net      string                 `json:"net"`
}

type categoryReportResponse struct {
	Year     int              `json:"year"`
	Month    int              `json:"month"`
	Currency string           `json:"currency"`
	Type     core.Direction   `json:"type"`
	Summary  calendar.Summary `json:"summary"`
	Slices   []calendar.Slice `json:"slices"`
}

type optionsResponse struct {
	Years   []int             `json:"years"`
	Periods []calendar.Period `json:"periods"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date, err := core.ParseDate(r.PathValue("date"))
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	txs := calendar.TransactionsOnDate(s.deps.Ledger.Transactions(), date)
	NewResponse().JSON(dayResponse{
		Date:         date,
		Transactions: txs,
		Totals:       calendar.ByCurrencyTotals(txs),
	}).Write(w)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, "month", err)
		return
	}
	txs := s.deps.Ledger.Transactions()
	NewResponse().JSON(monthResponse{
		Year:   params.Year,
		Month:  params.Month,
		Weeks:  calendar.MonthGrid(txs, params.Year, params.Month),
		Counts: calendar.CountByCurrency(txs, params.Year, params.Month),
	}).Write(w)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	NewResponse().JSON(optionsResponse{
		Years:   calendar.YearOptions(now),
		Periods: calendar.PeriodOptions(now),
	}).Write(w)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params, err := ParseMonthParams(query, s.now())
	if err != nil {
		s.fail(w, r, "monthly", err)
		return
	}
	currency, err := ParseCurrencyParam(query, s.deps.Currency)
	if err != nil {
		s.fail(w, r, "monthly", err)
		return
	}
	series := calendar.MonthlySeries(s.deps.Ledger.Transactions(), params.Year, currency)
	totals := calendar.YearTotals(series)
	c, _ := core.LookupCurrency(currency)
	NewResponse().JSON(monthlyResponse{
		Year:     params.Year,
		Currency: currency,
		Series:   series,
		Totals:   totals,
		Net:      totals.Net().StringFixedBank(c.Decimals),
	}).Write(w)
}

func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params, err := ParseMonthParams(query, s.now())
	if err != nil {
		s.fail(w, r, "report", err)
		return
	}
	currency, err := ParseCurrencyParam(query, s.deps.Currency)
	if err != nil {
		s.fail(w, r, "report", err)
		return
	}
	direction := core.Expense
	if v := query.Get("type"); v != "" {
		if direction, err = ParseDirectionParam(v, true); err != nil {
			s.fail(w, r, "report", err)
			return
		}
	}
	txs := s.deps.Ledger.Transactions()
	NewResponse().JSON(categoryReportResponse{
		Year:     params.Year,
		Month:    params.Month,
		Currency: currency,
		Type:     direction,
		Summary:  calendar.PeriodSummary(txs, params.Year, params.Month, currency, direction),
		Slices:   calendar.CategoryBreakdown(txs, params.Year, params.Month, currency, direction),
	}).Write(w)
}

func handleCurrencies(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string][]core.Currency{"currencies": core.Currencies()}).Write(w)
}
