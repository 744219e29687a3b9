// Package google mirrors ledger months into a Google spreadsheet, one tab
// per month.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

// Header is the first row of every month tab.
var Header = []any{"Date", "Type", "Amount", "Currency", "Category", "Description", "ID"}

// Config selects the credentials. A service account is used when one is
// given; otherwise the OAuth client and saved user token are.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

func (c Config) usesOAuth() bool {
	return strings.TrimSpace(c.ServiceAccountJSON) == "" &&
		strings.TrimSpace(c.ServiceAccountFile) == "" &&
		strings.TrimSpace(c.OAuthTokenFile) != ""
}

// sheetAPI is the slice of the Sheets API the mirror needs.
type sheetAPI interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Write(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

type Client struct {
	api           sheetAPI
	spreadsheetID string
	logger        *log.Logger
}

// New creates an authenticated client. For service accounts inline JSON
// wins over the file and GOOGLE_APPLICATION_CREDENTIALS is the last
// fallback.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var opts []goption.ClientOption
	if cfg.usesOAuth() {
		ts, err := userTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goption.WithTokenSource(ts))
	} else {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(&serviceAPI{svc: svc}, cfg.SpreadsheetID), nil
}

func newClient(api sheetAPI, spreadsheetID string) *Client {
	return &Client{
		api:           api,
		spreadsheetID: spreadsheetID,
		logger:        log.Default(log.ComponentSheets),
	}
}

func credentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.ServiceAccountJSON); js != "" {
		return []byte(js), nil
	}
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// TabName is the title of the tab holding one owner's month,
// "<owner>-YYYY-MM", or plain "YYYY-MM" without an owner.
func TabName(owner string, year, month int) string {
	if owner == "" {
		return fmt.Sprintf("%04d-%02d", year, month)
	}
	return fmt.Sprintf("%s-%04d-%02d", owner, year, month)
}

// a1 builds an A1 range on tab, quoting the title.
func a1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}

// ExportMonth replaces the owner's month tab with txs. Transactions outside the
// month are skipped. The tab is created when missing.
func (c *Client) ExportMonth(ctx context.Context, owner string, year, month int, txs []core.Transaction) (string, error) {
	if c.api == nil {
		return "", errors.New("sheets service not initialized")
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("invalid month: %d", month)
	}
	tab := TabName(owner, year, month)

	titles, err := c.api.SheetTitles(ctx, c.spreadsheetID)
	if err != nil {
		return "", fmt.Errorf("list sheets: %w", err)
	}
	if !containsTitle(titles, tab) {
		if err := c.api.AddSheet(ctx, c.spreadsheetID, tab); err != nil {
			return "", fmt.Errorf("add sheet %s: %w", tab, err)
		}
	}

	if err := c.api.Clear(ctx, c.spreadsheetID, a1(tab, "A:G")); err != nil {
		return "", fmt.Errorf("clear %s: %w", tab, err)
	}
	values := MonthRows(txs, year, month)
	ref := a1(tab, fmt.Sprintf("A1:G%d", len(values)))
	if err := c.api.Write(ctx, c.spreadsheetID, ref, values); err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}

	c.logger.InfoContext(ctx, "Month mirrored",
		log.FieldOwnerID, owner,
		log.FieldYear, year,
		log.FieldMonth, month,
		log.FieldCount, len(values)-1,
		log.FieldSheetsRef, ref)
	return ref, nil
}

// MonthRows renders the header plus one row per transaction in the month,
// oldest day first. Same-day rows keep their input order.
func MonthRows(txs []core.Transaction, year, month int) [][]any {
	in := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.Year() == year && tx.Date.Month() == month {
			in = append(in, tx)
		}
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Date.Before(in[j].Date.Time) })

	rows := make([][]any, 0, len(in)+1)
	rows = append(rows, Header)
	for _, tx := range in {
		rows = append(rows, []any{
			tx.Date.String(),
			string(tx.Type),
			core.AmountString(tx.Currency, tx.Amount),
			tx.Currency,
			tx.Category,
			tx.Description,
			tx.ID,
		})
	}
	return rows
}

func containsTitle(titles []string, want string) bool {
	for _, t := range titles {
		if t == want {
			return true
		}
	}
	return false
}

type serviceAPI struct {
	svc *gsheet.Service
}

func (s *serviceAPI) SheetTitles(ctx context.Context, id string) ([]string, error) {
	ss, err := s.svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (s *serviceAPI) AddSheet(ctx context.Context, id, title string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	_, err := s.svc.Spreadsheets.BatchUpdate(id, req).Context(ctx).Do()
	return err
}

func (s *serviceAPI) Clear(ctx context.Context, id, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(id, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (s *serviceAPI) Write(ctx context.Context, id, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(id, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
