// Package ledgerclient is the conductor agent's HTTP path to the ledger server.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/dto"
)

const maxErrorBody = 64 << 10

// Client implements the ledger gateway over the server's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the ledger server at baseURL authenticating with token.
func New(baseURL, token string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

var _ portssvc.LedgerGateway = (*Client)(nil)

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Apply(ctx context.Context, op domain.Operation) (*domain.MutationResult, error) {
	var resp dto.MutationResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/operations", op, &resp); err != nil {
		return nil, err
	}
	return dto.FromMutationResponse(resp), nil
}

func (c *Client) ConfirmSynced(ctx context.Context, transactionID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sync/transactions/"+url.PathEscape(transactionID)+"/ack", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewStorageError("ledger server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewStorageError("unreadable ledger response", err)
		}
		return nil
	}
	return decodeError(resp, op(body))
}

// op extracts the operation a request carried, for error context.
func op(body any) domain.Operation {
	if o, ok := body.(domain.Operation); ok {
		return o
	}
	return domain.Operation{}
}

// decodeError maps a non-2xx response back onto the error taxonomy the services use.
func decodeError(resp *http.Response, sent domain.Operation) error {
	var body dto.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = resp.Status
		}
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.NewValidationError(body.Field, body.Error)
	case resp.StatusCode == http.StatusUnprocessableEntity && body.Code == dto.CodeInsufficientBalance:
		return &apperrors.InsufficientBalanceError{
			PassengerID: sent.PassengerID,
			Balance:     valueOr(body.Balance, decimal.Zero),
			Required:    valueOr(body.Required, sent.Amount),
		}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return apperrors.NewValidationError(body.Field, body.Error)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, body.Error)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicate, body.Error)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, body.Error)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", apperrors.ErrForbidden, body.Error)
	}
	// Rate limiting and server-side failures leave the operation unapplied.
	return apperrors.NewStorageError("ledger server returned "+resp.Status, errors.New(body.Error))
}

func valueOr(d *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if d == nil {
		return fallback
	}
	return *d
}
