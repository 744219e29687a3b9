package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kakeibo/internal/auth"
	"kakeibo/internal/categories"
	"kakeibo/internal/core"
	"kakeibo/internal/editor"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/session"
	"kakeibo/internal/store/memory"
)

var fixedNow = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	srv    *Server
	mem    *memory.Store
	repo   *ledger.Repository
	loader *session.Loader
	editor *editor.Editor
	token  string
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	mem := memory.New()
	provider, err := auth.New(mem, auth.Config{Secret: []byte("test-secret"), TTL: time.Hour, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	repo := ledger.NewRepository(mem, provider)
	loader := session.NewLoader(provider, repo, session.WithProfiles(mem))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loader.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		loader.Wait()
	})

	cats := categories.NewManager()
	ed := editor.New(repo, cats, core.DefaultCurrency)
	deps := Deps{
		Auth:       provider,
		Sessions:   loader,
		Ledger:     repo,
		Editor:     ed,
		Categories: cats,
		Now:        func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	h := &harness{t: t, srv: srv, mem: mem, repo: repo, loader: loader, editor: ed}
	waitFor(t, loader.Ready)
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// editorJSON mirrors editorResponse with a decodable draft.
type editorJSON struct {
	State            string             `json:"state"`
	ID               string             `json:"id"`
	ShowCategories   bool               `json:"show_categories"`
	CanSave          bool               `json:"can_save"`
	Categories       []string           `json:"categories"`
	CustomCategories []string           `json:"custom_categories"`
	DayTransactions  []core.Transaction `json:"day_transactions"`
	Draft            *struct {
		Type        core.Direction `json:"type"`
		Amount      string         `json:"amount"`
		Category    string         `json:"category"`
		Description string         `json:"description"`
	} `json:"draft"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

// signUp registers alice and waits for the loader to fill the ledger.
func (h *harness) signUp() {
	h.t.Helper()
	rr := h.do(http.MethodPost, "/auth/signup", `{"email":"alice@example.com","password":"correct-horse"}`)
	if rr.Code != http.StatusCreated {
		h.t.Fatalf("signup status = %d body=%s", rr.Code, rr.Body.String())
	}
	resp := decode[authResponse](h.t, rr)
	h.token = resp.Token
	waitFor(h.t, func() bool { return h.repo.Owner() == resp.Session.UserID })
}

func (h *harness) create(body string) core.Transaction {
	h.t.Helper()
	rr := h.do(http.MethodPost, "/transactions", body)
	if rr.Code != http.StatusCreated {
		h.t.Fatalf("create status = %d body=%s", rr.Code, rr.Body.String())
	}
	return decode[core.Transaction](h.t, rr)
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := h.do(http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
	if rr := h.do(http.MethodGet, "/healthz", ""); rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestReadyFailsWhenBackendDown(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Pinger = fakePinger{err: errors.New("down")} })
	if rr := h.do(http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	h := newHarness(t, nil)
	for _, path := range []string{"/transactions", "/editor", "/calendar/month", "/export"} {
		rr := h.do(http.MethodGet, path, "")
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, rr.Code)
		}
	}

	h.token = "not-a-token"
	if rr := h.do(http.MethodGet, "/transactions", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rr.Code)
	}
}

func TestSessionEndpointReportsState(t *testing.T) {
	h := newHarness(t, nil)
	if got := decode[sessionResponse](t, h.do(http.MethodGet, "/auth/session", "")); got.State != "signed_out" {
		t.Errorf("state before signup = %q", got.State)
	}

	h.signUp()
	got := decode[sessionResponse](t, h.do(http.MethodGet, "/auth/session", ""))
	if got.State != "signed_in" || got.Session == nil || got.Session.Email != "alice@example.com" {
		t.Errorf("after signup = %+v", got)
	}

	if rr := h.do(http.MethodPost, "/auth/signout", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("signout status = %d", rr.Code)
	}
	waitFor(t, func() bool { return h.loader.State() == session.SignedOut })
	if rr := h.do(http.MethodGet, "/transactions", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("old token status = %d, want 401", rr.Code)
	}
}

func TestSignUpAndSignInErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"duplicate email", "/auth/signup", `{"email":"alice@example.com","password":"correct-horse"}`, http.StatusConflict},
		{"short password", "/auth/signup", `{"email":"bob@example.com","password":"x"}`, http.StatusUnprocessableEntity},
		{"wrong password", "/auth/signin", `{"email":"alice@example.com","password":"wrong-horse"}`, http.StatusUnauthorized},
		{"unknown user", "/auth/signin", `{"email":"carol@example.com","password":"correct-horse"}`, http.StatusUnauthorized},
		{"malformed body", "/auth/signin", `{"email":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := h.do(http.MethodPost, tt.path, tt.body); rr.Code != tt.want {
				t.Errorf("status = %d, want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestSignInRateLimited(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.SigninLimit = &ratelimit.Config{Requests: 2, Window: time.Minute}
	})
	body := `{"email":"alice@example.com","password":"wrong-horse"}`
	for i := 0; i < 2; i++ {
		if rr := h.do(http.MethodPost, "/auth/signin", body); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i, rr.Code)
		}
	}
	rr := h.do(http.MethodPost, "/auth/signin", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestTransactionLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()

	created := h.create(`{"date":"2024-03-15","type":"expense","amount":"1200","category":"食費","description":"ランチ"}`)
	if created.ID == "" || created.Currency != "JPY" {
		t.Fatalf("created = %+v", created)
	}

	list := decode[transactionsResponse](t, h.do(http.MethodGet, "/transactions", ""))
	if len(list.Transactions) != 1 || list.Version == 0 {
		t.Fatalf("list = %+v", list)
	}

	day := decode[dayResponse](t, h.do(http.MethodGet, "/calendar/day/2024-03-15", ""))
	if len(day.Transactions) != 1 || !day.Totals["JPY"].Expense.Equal(created.Amount) {
		t.Errorf("day = %+v", day)
	}
	if got := decode[dayResponse](t, h.do(http.MethodGet, "/calendar/day/2024-03-16", "")); len(got.Transactions) != 0 {
		t.Errorf("next day = %+v", got)
	}

	rr := h.do(http.MethodPut, "/transactions/"+created.ID,
		`{"date":"2024-03-16","type":"expense","amount":"1500","currency":"JPY","category":"食費"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[dayResponse](t, h.do(http.MethodGet, "/calendar/day/2024-03-16", "")); len(got.Transactions) != 1 {
		t.Errorf("moved day = %+v", got)
	}

	if rr := h.do(http.MethodDelete, "/transactions/"+created.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := h.do(http.MethodDelete, "/transactions/"+created.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
	if rr := h.do(http.MethodGet, "/transactions/"+created.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", rr.Code)
	}
}

func TestCreateValidationAndRemoteErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()

	rr := h.do(http.MethodPost, "/transactions", `{"date":"2024-03-15","type":"expense","amount":"0","category":"食費"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero amount status = %d, want 422", rr.Code)
	}
	rr = h.do(http.MethodPost, "/transactions", `{"date":"2024-03-15","type":"expense","amount":"5","currency":"EUR","category":"食費"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown currency status = %d, want 422", rr.Code)
	}

	h.mem.Fail = func(op string) error {
		if op == "insert" {
			return errors.New("connection refused")
		}
		return nil
	}
	rr = h.do(http.MethodPost, "/transactions", `{"date":"2024-03-15","type":"expense","amount":"5","category":"食費"}`)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("remote failure status = %d, want 502", rr.Code)
	}
	if body := decode[errorBody](t, rr); body.Error.Message != "remote store insert: connection refused" {
		t.Errorf("remote failure message = %q", body.Error.Message)
	}
	if got := h.repo.Transactions(); len(got) != 0 {
		t.Errorf("collection changed after failed insert: %v", got)
	}
}

func TestWriteLogsCarryOwner(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, func(d *Deps) {
		d.Logger = log.New(log.Config{
			Component: log.ComponentHTTP,
			Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		})
	})
	h.signUp()
	created := h.create(`{"date":"2024-03-15","type":"expense","amount":"1200","category":"食費"}`)

	out := buf.String()
	if !strings.Contains(out, "Transaction created") {
		t.Fatalf("no create log in %q", out)
	}
	if want := "owner_id=" + h.repo.Owner(); !strings.Contains(out, want) {
		t.Errorf("log missing %s: %q", want, out)
	}
	if !strings.Contains(out, "transaction_id="+created.ID) {
		t.Errorf("log missing transaction id: %q", out)
	}
}

func TestReloadPicksUpRemoteRows(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()
	h.create(`{"date":"2024-03-15","type":"income","amount":"300000","category":"給料"}`)

	rr := h.do(http.MethodPost, "/transactions/reload", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rr.Code)
	}
	if got := decode[transactionsResponse](t, rr); len(got.Transactions) != 1 {
		t.Errorf("reload = %+v", got)
	}
}

func TestMonthAnalyticsAndReports(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()
	h.create(`{"date":"2024-03-01","type":"expense","amount":"1000","category":"食費"}`)
	h.create(`{"date":"2024-03-02","type":"expense","amount":"500","category":"交通費"}`)
	h.create(`{"date":"2024-03-02","type":"income","amount":"12.50","currency":"USD","category":"副業"}`)

	month := decode[monthResponse](t, h.do(http.MethodGet, "/calendar/month", ""))
	if month.Year != 2024 || month.Month != 3 || len(month.Weeks) != 6 {
		t.Fatalf("month = %d-%d weeks=%d", month.Year, month.Month, len(month.Weeks))
	}
	if month.Counts["JPY"] != 2 || month.Counts["USD"] != 1 {
		t.Errorf("counts = %v", month.Counts)
	}

	monthly := decode[monthlyResponse](t, h.do(http.MethodGet, "/analytics/monthly?year=2024&currency=JPY", ""))
	if len(monthly.Series) != 12 || monthly.Net != "-1500" {
		t.Errorf("monthly = %+v", monthly)
	}

	report := decode[categoryReportResponse](t, h.do(http.MethodGet, "/reports/categories?year=2024&month=3&currency=JPY&type=expense", ""))
	if report.Summary.Count != 2 || len(report.Slices) != 2 || report.Summary.Total.String() != "1500" {
		t.Errorf("report = %+v", report)
	}

	if rr := h.do(http.MethodGet, "/calendar/month?month=13", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month status = %d", rr.Code)
	}
	if rr := h.do(http.MethodGet, "/reports/categories?type=both", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad type status = %d", rr.Code)
	}
}

func TestOptionsAndCurrenciesArePublic(t *testing.T) {
	h := newHarness(t, nil)
	opts := decode[optionsResponse](t, h.do(http.MethodGet, "/calendar/options", ""))
	if len(opts.Years) != 11 || opts.Years[0] != 2029 || len(opts.Periods) != 13 {
		t.Errorf("options = %+v", opts)
	}
	cur := decode[map[string][]core.Currency](t, h.do(http.MethodGet, "/currencies", ""))
	if len(cur["currencies"]) != 4 || cur["currencies"][0].Code != "JPY" {
		t.Errorf("currencies = %+v", cur)
	}
}

func TestEditorFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()

	if rr := h.do(http.MethodPost, "/editor/save", ""); rr.Code != http.StatusConflict {
		t.Fatalf("save while closed status = %d, want 409", rr.Code)
	}

	steps := []struct {
		method, path, body string
		wantState          string
	}{
		{http.MethodPost, "/editor/select", `{"date":"2024-03-15"}`, "viewing"},
		{http.MethodPost, "/editor/add", "", "adding"},
		{http.MethodPatch, "/editor/draft", `{"amount":"800","category":"食費","description":"弁当"}`, "adding"},
		{http.MethodPost, "/editor/save", "", "viewing"},
	}
	var last editorJSON
	for _, st := range steps {
		rr := h.do(st.method, st.path, st.body)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s %s status = %d body=%s", st.method, st.path, rr.Code, rr.Body.String())
		}
		last = decode[editorJSON](t, rr)
		if last.State != st.wantState {
			t.Fatalf("%s state = %q, want %q", st.path, last.State, st.wantState)
		}
	}
	if len(last.DayTransactions) != 1 || last.DayTransactions[0].Description != "弁当" {
		t.Fatalf("day transactions = %+v", last.DayTransactions)
	}
	id := last.DayTransactions[0].ID

	rr := h.do(http.MethodPost, "/editor/edit", `{"id":"`+id+`"}`)
	got := decode[editorJSON](t, rr)
	if got.State != "editing" || got.ID != id || got.Draft == nil || got.Draft.Amount != "800" {
		t.Fatalf("edit = %+v", got)
	}
	if rr := h.do(http.MethodPost, "/editor/back", ""); rr.Code != http.StatusOK {
		t.Fatalf("back status = %d", rr.Code)
	}
	if rr := h.do(http.MethodPost, "/editor/delete", `{"id":"`+id+`"}`); rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if got := decode[editorJSON](t, h.do(http.MethodPost, "/editor/close", "")); got.State != "closed" {
		t.Errorf("close state = %q", got.State)
	}
}

func TestEditorIncompleteDraftCannotSave(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()
	h.do(http.MethodPost, "/editor/select", `{"date":"2024-03-15"}`)
	h.do(http.MethodPost, "/editor/add", "")

	got := decode[editorJSON](t, h.do(http.MethodPatch, "/editor/draft", `{"amount":"800"}`))
	if got.CanSave {
		t.Error("CanSave with empty category")
	}
	if rr := h.do(http.MethodPost, "/editor/save", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("save status = %d, want 422", rr.Code)
	}
	if st := h.editor.State(); st.Name() != "adding" {
		t.Errorf("state after failed save = %q", st.Name())
	}
}

func TestEditorTypeSwitchDropsCategory(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()
	h.do(http.MethodPost, "/editor/select", `{"date":"2024-03-15"}`)
	h.do(http.MethodPost, "/editor/add", "")
	h.do(http.MethodPatch, "/editor/draft", `{"category":"食費"}`)

	got := decode[editorJSON](t, h.do(http.MethodPatch, "/editor/draft", `{"type":"income"}`))
	if got.Draft == nil || got.Draft.Type != core.Income || got.Draft.Category != "" {
		t.Errorf("draft = %+v", got.Draft)
	}
	if len(got.Categories) == 0 || got.Categories[0] != "給料" {
		t.Errorf("categories = %v", got.Categories)
	}
}

func TestRemovingSelectedCategoryClearsDraft(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()

	rr := h.do(http.MethodPost, "/categories/expense", `{"name":"ペット"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add category status = %d", rr.Code)
	}
	if rr := h.do(http.MethodPost, "/categories/expense", `{"name":"ペット"}`); rr.Code != http.StatusOK {
		t.Errorf("duplicate add status = %d, want 200", rr.Code)
	}

	h.do(http.MethodPost, "/editor/select", `{"date":"2024-03-15"}`)
	h.do(http.MethodPost, "/editor/add", "")
	h.do(http.MethodPatch, "/editor/draft", `{"category":"ペット"}`)

	cats := decode[categoriesResponse](t, h.do(http.MethodDelete, "/categories/expense/"+"%E3%83%9A%E3%83%83%E3%83%88", ""))
	if len(cats.Custom) != 0 {
		t.Errorf("custom after delete = %v", cats.Custom)
	}
	got := decode[editorJSON](t, h.do(http.MethodGet, "/editor", ""))
	if got.Draft == nil || got.Draft.Category != "" {
		t.Errorf("draft category = %+v", got.Draft)
	}
}

func TestEditorCategoryManager(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()
	h.do(http.MethodPost, "/editor/select", `{"date":"2024-03-15"}`)
	h.do(http.MethodPost, "/editor/add", "")

	got := decode[editorJSON](t, h.do(http.MethodPost, "/editor/toggle-categories", ""))
	if !got.ShowCategories {
		t.Error("category manager not shown")
	}
	got = decode[editorJSON](t, h.do(http.MethodPost, "/editor/categories", `{"name":"ペット"}`))
	if len(got.CustomCategories) != 1 || got.CustomCategories[0] != "ペット" {
		t.Errorf("custom = %v", got.CustomCategories)
	}
	got = decode[editorJSON](t, h.do(http.MethodDelete, "/editor/categories/%E3%83%9A%E3%83%83%E3%83%88", ""))
	if len(got.CustomCategories) != 0 {
		t.Errorf("custom after remove = %v", got.CustomCategories)
	}

	h.do(http.MethodPost, "/editor/close", "")
	if rr := h.do(http.MethodPost, "/editor/toggle-categories", ""); rr.Code != http.StatusConflict {
		t.Errorf("toggle while closed status = %d, want 409", rr.Code)
	}
}

func TestExport(t *testing.T) {
	h := newHarness(t, nil)
	h.signUp()
	h.create(`{"date":"2024-03-15","type":"expense","amount":"1200","category":"食費"}`)

	rr := h.do(http.MethodGet, "/export?format=yaml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "kakeibo_20240320_090000.yaml") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rr.Body.String(), "食費") {
		t.Errorf("body = %q", rr.Body.String())
	}

	rr = h.do(http.MethodGet, "/export?format=xlsx", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Errorf("xlsx status = %d", rr.Code)
	}

	if rr := h.do(http.MethodGet, "/export?format=csv", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("csv status = %d, want 422", rr.Code)
	}
}
