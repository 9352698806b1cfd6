package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/MilkyWatch/StockBox/internal/transport"
)

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type apiResp struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return errors.Wrap(err, "marshal sendMessage")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	var r apiResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return errors.Wrap(err, "decode")
	}
	if r.OK {
		return nil
	}
	return classify(r)
}

func (c *Client) RecipientStatus(ctx context.Context, chatID int64) (transport.Status, error) {
	u := c.methodURL("getChat") + "?chat_id=" + url.QueryEscape(strconv.FormatInt(chatID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	var r apiResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", errors.Wrap(err, "decode")
	}
	if r.OK {
		return transport.StatusOK, nil
	}

	err = classify(r)
	switch {
	case errors.Is(err, transport.ErrRecipientBlocked):
		return transport.StatusBlocked, nil
	case errors.Is(err, transport.ErrRecipientNotFound):
		return transport.StatusNotFound, nil
	default:
		return "", err
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func classify(r apiResp) error {
	desc := strings.ToLower(r.Description)
	switch {
	case r.ErrorCode == 403:
		return errors.Wrap(transport.ErrRecipientBlocked, r.Description)
	case r.ErrorCode == 400 && strings.Contains(desc, "chat not found"):
		return errors.Wrap(transport.ErrRecipientNotFound, r.Description)
	default:
		return &transport.APIError{Code: r.ErrorCode, Description: r.Description}
	}
}
