package bring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"meal-planner/internal/apperr"
	"meal-planner/internal/shopping"
)

// List is a shopping list of the account.
type List struct {
	UUID string `json:"listUuid"`
	Name string `json:"name"`
}

// ListItem is an entry of a Bring! list.
type ListItem struct {
	Name          string `json:"name"`
	Specification string `json:"specification"`
}

type listsResponse struct {
	Lists []List `json:"lists"`
}

type itemsResponse struct {
	UUID     string     `json:"uuid"`
	Purchase []ListItem `json:"purchase"`
}

var errUnauthorized = errors.New("unauthorized")

// Client writes shopping items to a Bring! list.
type Client struct {
	session *Session
	logger  *slog.Logger
}

// NewClient creates a new Client.
func NewClient(session *Session, logger *slog.Logger) *Client {
	return &Client{session: session, logger: logger}
}

// Sync replaces the content of the target list with items and returns the list id.
// The target is the list named label, or the first list when label is empty or
// unknown. Items that fail to write are logged and skipped.
func (c *Client) Sync(ctx context.Context, items []shopping.Item, label string) (string, error) {
	lists, err := c.Lists(ctx)
	if err != nil {
		return "", err
	}
	target, err := pickList(lists, label)
	if err != nil {
		return "", err
	}

	current, err := c.Items(ctx, target.UUID)
	if err != nil {
		return "", err
	}

	removeFailed := 0
	for _, it := range current {
		if err := c.update(ctx, target.UUID, url.Values{"remove": {it.Name}}); err != nil {
			removeFailed++
			c.logger.Warn("failed to remove bring item", "item", it.Name, "error", err)
		}
	}

	addFailed := 0
	for _, it := range items {
		form := url.Values{"purchase": {it.Name}, "specification": {it.Quantity}}
		if err := c.update(ctx, target.UUID, form); err != nil {
			addFailed++
			c.logger.Warn("failed to add bring item", "item", it.Name, "error", err)
		}
	}

	if len(items) > 0 && addFailed == len(items) {
		return "", fmt.Errorf("%w: no item could be written to list %s", apperr.ErrExternalSync, target.Name)
	}

	c.logger.Info("bring list updated",
		"list", target.Name,
		"removed", len(current)-removeFailed,
		"added", len(items)-addFailed,
		"failed", removeFailed+addFailed,
	)
	return target.UUID, nil
}

// Lists returns the lists of the account.
func (c *Client) Lists(ctx context.Context) ([]List, error) {
	var out listsResponse
	err := c.call(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			c.session.baseURL+"/bringusers/"+url.PathEscape(c.session.UserUUID())+"/lists", nil)
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: list lists: %w", apperr.ErrExternalSync, err)
	}
	return out.Lists, nil
}

// Items returns the items still to buy on a list.
func (c *Client) Items(ctx context.Context, listUUID string) ([]ListItem, error) {
	var out itemsResponse
	err := c.call(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.session.baseURL+"/v2/bringlists/"+url.PathEscape(listUUID), nil)
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: list items: %w", apperr.ErrExternalSync, err)
	}
	return out.Purchase, nil
}

func (c *Client) update(ctx context.Context, listUUID string, form url.Values) error {
	return c.call(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut,
			c.session.baseURL+"/v2/bringlists/"+url.PathEscape(listUUID), strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, nil)
}

// call runs an authenticated request, logging in again once if the token was rejected.
func (c *Client) call(ctx context.Context, build func() (*http.Request, error), out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.session.EnsureConnected(ctx); err != nil {
			return err
		}
		req, err := build()
		if err != nil {
			return err
		}
		c.session.authorize(req)

		err = c.do(req, out)
		if errors.Is(err, errUnauthorized) && attempt == 0 {
			c.session.invalidate()
			continue
		}
		return err
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.session.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func pickList(lists []List, label string) (List, error) {
	if len(lists) == 0 {
		return List{}, apperr.ErrNoTargetList
	}
	for _, l := range lists {
		if label != "" && strings.EqualFold(l.Name, label) {
			return l, nil
		}
	}
	return lists[0], nil
}
