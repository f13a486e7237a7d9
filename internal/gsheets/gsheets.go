// Package gsheets imports live Google Sheets as raw tables.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

// DefaultRange is read when the caller does not name one.
const DefaultRange = "A1:Z5000"

var (
	ErrAccessDenied = errors.New("access denied: share the sheet with the service account or make it viewable by link")
	ErrNotFound     = errors.New("spreadsheet not found: check the URL")
	ErrInvalidURL   = errors.New("not a Google Sheets URL or spreadsheet ID")
)

var (
	idFromURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	bareID    = regexp.MustCompile(`^[a-zA-Z0-9-_]{20,}$`)
)

// ExtractSpreadsheetID returns the spreadsheet ID in a sheet URL. A bare ID is
// returned unchanged.
func ExtractSpreadsheetID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if m := idFromURL.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	if bareID.MatchString(s) {
		return s, nil
	}
	return "", ErrInvalidURL
}

// Metadata describes a spreadsheet and its tabs.
type Metadata struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Sheets []string `json:"sheets"`
}

// Options configures authentication. CredentialsFile wins over APIKey.
type Options struct {
	CredentialsFile string
	APIKey          string
}

// ClientOptions converts o into API client options.
func (o Options) ClientOptions() ([]option.ClientOption, error) {
	switch {
	case o.CredentialsFile != "":
		b, err := os.ReadFile(o.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		return []option.ClientOption{
			option.WithCredentialsJSON(b),
			option.WithScopes(sheets.SpreadsheetsReadonlyScope),
		}, nil
	case o.APIKey != "":
		return []option.ClientOption{option.WithAPIKey(o.APIKey)}, nil
	}
	return nil, errors.New("google sheets credentials not configured (set google_credentials_file or google_api_key)")
}

// Client reads spreadsheet metadata and values.
type Client struct {
	svc    *sheets.Service
	logger *slog.Logger
}

// NewClient builds a Sheets client from raw client options.
func NewClient(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, logger: logger}, nil
}

// Metadata returns the title and tab names of spreadsheetID.
func (c *Client) Metadata(ctx context.Context, spreadsheetID string) (Metadata, error) {
	resp, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields("properties.title", "sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return Metadata{}, mapError(err)
	}
	md := Metadata{ID: spreadsheetID, Sheets: make([]string, 0, len(resp.Sheets))}
	if resp.Properties != nil {
		md.Title = resp.Properties.Title
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			md.Sheets = append(md.Sheets, s.Properties.Title)
		}
	}
	return md, nil
}

// Fetch reads rng (DefaultRange when empty) of one tab as a RawTable.
func (c *Client) Fetch(ctx context.Context, spreadsheetID, sheet, rng string) (table.RawTable, error) {
	if rng == "" {
		rng = DefaultRange
	}
	a1 := quoteSheet(sheet) + "!" + rng
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return table.RawTable{}, fmt.Errorf("fetch %s: %w", sheet, mapError(err))
	}
	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = strings.TrimSpace(fmt.Sprint(v))
			}
		}
		grid[i] = cells
	}
	c.logger.Debug("fetched sheet", "spreadsheet", spreadsheetID, "sheet", sheet, "rows", len(grid))
	return table.RawTable{ID: TableID(spreadsheetID, sheet), Name: sheet, Grid: grid}, nil
}

// FetchAll reads several tabs concurrently. Results keep the order of sheets;
// the first failure cancels the rest.
func (c *Client) FetchAll(ctx context.Context, spreadsheetID string, sheetNames []string, rng string) ([]table.RawTable, error) {
	out := make([]table.RawTable, len(sheetNames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, name := range sheetNames {
		i, name := i, name
		g.Go(func() error {
			t, err := c.Fetch(gctx, spreadsheetID, name, rng)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TableID is the stable ID of a live sheet, so a refresh replaces the same table.
func TableID(spreadsheetID, sheet string) string {
	return "gsheet-" + spreadsheetID + "-" + sheet
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w (%s)", ErrAccessDenied, gerr.Message)
		case http.StatusNotFound:
			return ErrNotFound
		}
	}
	return err
}
