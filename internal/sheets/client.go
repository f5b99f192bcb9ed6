// Package sheets persists transaction rows to a Google Spreadsheet and
// answers the read-side query commands.
package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	// dataRange covers every column of the transaction sheet.
	dataRange = "A:J"

	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
)

// Client talks to one spreadsheet through the Sheets API.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	timeout       time.Duration
	maxRetries    uint64
}

// NewClient builds a Sheets client from a service-account credential and
// makes sure the header row exists before any data row is ever appended.
func NewClient(ctx context.Context, spreadsheetID string, credentialsJSON []byte, header []string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	c := &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		timeout:       defaultTimeout,
		maxRetries:    defaultMaxRetries,
	}

	if err := c.ensureHeader(ctx, header); err != nil {
		return nil, fmt.Errorf("ensuring header row: %w", err)
	}
	return c, nil
}

// SetTimeout overrides the per-call timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SetMaxRetries overrides the bounded retry count for appends.
func (c *Client) SetMaxRetries(n uint64) {
	c.maxRetries = n
}

// ensureHeader writes the column header row when the sheet is empty.
func (c *Client) ensureHeader(ctx context.Context, header []string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, dataRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading sheet: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(header)}}
	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, "A1", vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// AppendRow appends one data row. The append is retried with exponential
// backoff up to maxRetries times, since it is the single point of data loss
// on a transient failure.
func (c *Client) AppendRow(ctx context.Context, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(row)}}

	err := retryAppend(ctx, c.maxRetries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		_, err := c.svc.Spreadsheets.Values.
			Append(c.spreadsheetID, dataRange, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("appending row: %w", err)
	}
	return nil
}

// ReadAllRows returns every row of the sheet, header included.
func (c *Client) ReadAllRows(ctx context.Context) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, dataRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading sheet: %w", err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// retryAppend runs fn with bounded exponential backoff. Retry count and base
// delay are policy choices, not inherited behavior; see DESIGN.md.
func retryAppend(ctx context.Context, maxRetries uint64, fn func(context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	return backoff.Retry(func() error {
		return fn(ctx)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
