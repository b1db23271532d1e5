package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cota-capital/internal/dataset"
)

const (
	statePending   = "PENDING"
	stateRunning   = "RUNNING"
	stateSucceeded = "SUCCEEDED"

	defaultBackoffUnit = 10 * time.Second
)

// Client submits SQL statements to a warehouse statement-execution endpoint.
type Client struct {
	endpoint    string
	token       string
	warehouseID string
	backoffUnit time.Duration
	client      *http.Client
	sleep       func(context.Context, time.Duration) error
	logger      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBackoffUnit sets the unit multiplied by attempt*maxAttempts between polls.
func WithBackoffUnit(unit time.Duration) Option {
	return func(c *Client) {
		if unit > 0 {
			c.backoffUnit = unit
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a warehouse client.
func NewClient(endpoint, token, warehouseID string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("warehouse: empty endpoint")
	}
	c := &Client{
		endpoint:    strings.TrimRight(endpoint, "/"),
		token:       token,
		warehouseID: warehouseID,
		backoffUnit: defaultBackoffUnit,
		client:      &http.Client{Timeout: 60 * time.Second},
		sleep:       sleepContext,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type statementRequest struct {
	Statement   string `json:"statement"`
	WarehouseID string `json:"warehouse_id"`
}

type statementResponse struct {
	StatementID string          `json:"statement_id"`
	Status      statementStatus `json:"status"`
	Manifest    *struct {
		Schema struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
		} `json:"schema"`
	} `json:"manifest"`
	Result *struct {
		DataArray [][]*string `json:"data_array"`
	} `json:"result"`
}

type statementStatus struct {
	State string `json:"state"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Execute runs statement. Read queries left pending are polled up to maxAttempts times.
func (c *Client) Execute(ctx context.Context, statement string, maxAttempts int) (*dataset.Table, error) {
	if strings.TrimSpace(statement) == "" {
		return nil, errors.New("warehouse: empty statement")
	}
	body := statementRequest{Statement: statement, WarehouseID: c.warehouseID}
	resp, err := c.submit(ctx, body)
	if err != nil {
		return nil, err
	}

	if IsReadQuery(statement) {
		for attempt := 1; attempt <= maxAttempts && isPending(resp.Status.State); attempt++ {
			wait := Backoff(attempt, maxAttempts, c.backoffUnit)
			c.logger.Debug().Str("statement_id", resp.StatementID).Int("attempt", attempt).Dur("wait", wait).Msg("statement pending")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			if resp.StatementID != "" {
				resp, err = c.poll(ctx, resp.StatementID)
			} else {
				resp, err = c.submit(ctx, body)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	switch {
	case resp.Status.State == stateSucceeded:
	case isPending(resp.Status.State):
		return nil, fmt.Errorf("%w: id=%s", ErrStatementPending, resp.StatementID)
	case resp.Status.State == "":
		return nil, fmt.Errorf("%w: missing status", ErrMalformedResponse)
	default:
		msg := ""
		if resp.Status.Error != nil {
			msg = resp.Status.Error.Message
		}
		return nil, fmt.Errorf("%w: state=%s %s", ErrStatementFailed, resp.Status.State, msg)
	}

	if resp.Manifest == nil && !IsReadQuery(statement) {
		c.logger.Info().Str("statement_id", resp.StatementID).Msg("statement executed")
		return dataset.New(nil, nil), nil
	}
	table, err := toTable(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("statement_id", resp.StatementID).Int("rows", table.Len()).Strs("columns", table.Columns).Msg("statement executed")
	return table, nil
}

func isPending(state string) bool {
	return state == statePending || state == stateRunning
}

func toTable(resp *statementResponse) (*dataset.Table, error) {
	if resp.Manifest == nil {
		return nil, fmt.Errorf("%w: missing manifest", ErrMalformedResponse)
	}
	columns := make([]string, 0, len(resp.Manifest.Schema.Columns))
	for _, col := range resp.Manifest.Schema.Columns {
		columns = append(columns, col.Name)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrMalformedResponse)
	}
	table := dataset.New(columns, nil)
	if resp.Result == nil {
		return table, nil
	}
	for _, raw := range resp.Result.DataArray {
		row := make([]string, len(raw))
		for i, cell := range raw {
			if cell != nil {
				row[i] = *cell
			}
		}
		table.Append(row)
	}
	return table, nil
}

func (c *Client) submit(ctx context.Context, body statementRequest) (*statementResponse, error) {
	var resp statementResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) poll(ctx context.Context, statementID string) (*statementResponse, error) {
	var resp statementResponse
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint+"/"+statementID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body any, out any) error {
	reqBody := bytes.NewReader(nil)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("warehouse: http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
