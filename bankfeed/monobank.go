package bankfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"betboard/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public Monobank personal API
const DefaultBaseURL = "https://api.monobank.ua"

var (
	// ErrNoAccount is returned when the client info lists no accounts
	ErrNoAccount = errors.New("bank client has no accounts")
	// ErrMissingToken is returned when the client is built without a token
	ErrMissingToken = errors.New("bank API token is not configured")
)

type clientInfo struct {
	Accounts []struct {
		ID string `json:"id"`
	} `json:"accounts"`
}

type statementItem struct {
	ID          string `json:"id"`
	Time        int64  `json:"time"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// MonobankClient reads the account statement from the Monobank personal API
type MonobankClient struct {
	baseURL  string
	token    string
	http     *http.Client
	accounts *AccountCache
}

// NewMonobankClient creates a client; an empty baseURL selects the public API
func NewMonobankClient(baseURL, token string, timeout time.Duration, accounts *AccountCache) *MonobankClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &MonobankClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: timeout},
		accounts: accounts,
	}
}

// AccountID returns the first account of the client, cached per AccountCache
func (c *MonobankClient) AccountID(ctx context.Context) (string, error) {
	if id, ok := c.accounts.Get(); ok {
		return id, nil
	}

	var info clientInfo
	if err := c.get(ctx, "/personal/client-info", &info); err != nil {
		return "", fmt.Errorf("failed to get client info: %w", err)
	}
	if len(info.Accounts) == 0 || info.Accounts[0].ID == "" {
		return "", ErrNoAccount
	}

	id := info.Accounts[0].ID
	c.accounts.Put(id)
	log.WithField("accountID", id).Debug("Refreshed bank account id")
	return id, nil
}

// Statement lists account transactions between from and to
func (c *MonobankClient) Statement(ctx context.Context, from, to time.Time) ([]*models.BankTransaction, error) {
	accountID, err := c.AccountID(ctx)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/personal/statement/%s/%d/%d", accountID, from.Unix(), to.Unix())

	var items []statementItem
	if err := c.get(ctx, path, &items); err != nil {
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}

	transactions := make([]*models.BankTransaction, 0, len(items))
	for _, item := range items {
		transactions = append(transactions, &models.BankTransaction{
			ExternalID:  item.ID,
			Amount:      decimal.New(item.Amount, -2),
			Description: item.Description,
			OccurredAt:  time.Unix(item.Time, 0).UTC(),
		})
	}

	log.WithFields(log.Fields{
		"from":  from.UTC(),
		"to":    to.UTC(),
		"count": len(transactions),
	}).Debug("Fetched bank statement")

	return transactions, nil
}

func (c *MonobankClient) get(ctx context.Context, path string, dst any) error {
	if c.token == "" {
		return ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
