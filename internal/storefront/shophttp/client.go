package shophttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/MilkyWatch/StockBox/internal/storefront"
	"github.com/pkg/errors"
)

const (
	browsePath      = "/en/browse/protein"
	pincodePath     = "/entity/pincode"
	preferencesPath = "/entity/ms.settings/_/setPreferences"
	infoPath        = "/user/info.js"
	productsPath    = "/api/1/entity/ms.products"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"
	accessKey = "shop.amul.com"
)

// Client эмулирует браузерную сессию витрины: cookie jar, браузерные заголовки
// и подписанный tid-заголовок на каждый запрос к API.
type Client struct {
	baseURL string
	storeID string
	httpc   *http.Client
}

func New(baseURL, storeID string) (*Client, error) {
	if baseURL == "" {
		baseURL = "https://shop.amul.com"
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}
	return &Client{
		baseURL: baseURL,
		storeID: storeID,
		httpc: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (c *Client) browserHeaders() http.Header {
	h := http.Header{}
	h.Set("user-agent", userAgent)
	h.Set("accept", "application/json, text/plain, */*")
	h.Set("referer", c.baseURL+browsePath)
	h.Set("origin", c.baseURL)
	h.Set("accept-language", "en-IN,en-GB;q=0.9,en-US;q=0.8,en;q=0.7,hi;q=0.6")
	h.Set("x-amul-b2c-access-key", accessKey)
	h.Set("frontend", "1")
	h.Set("base_url", c.baseURL+browsePath)
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-origin")
	h.Set("priority", "u=1, i")
	return h
}

type pincodeRecord struct {
	ID       string          `json:"_id"`
	Substore json.RawMessage `json:"substore"`
}

type pincodeResp struct {
	Records []pincodeRecord `json:"records"`
}

type sessionInfo struct {
	Tid        string `json:"tid"`
	SubstoreID string `json:"substore_id"`
	Substore   struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Alias string `json:"alias"`
	} `json:"substore"`
}

var sessionRe = regexp.MustCompile(`session\s*=\s*(\{.*\})`)

// ResolveSession повторяет последовательность реального браузера: заход на
// страницу каталога (cookies), поиск substore по pincode, привязка сессии через
// setPreferences и извлечение tid/substore_id из info.js. Авторитетный
// substore_id — из info.js, он перекрывает id из pincode-справочника.
func (c *Client) ResolveSession(ctx context.Context, pincode string) (storefront.Session, error) {
	var sess storefront.Session

	if err := c.visitBrowse(ctx); err != nil {
		return sess, err
	}

	rec, sub, err := c.lookupPincode(ctx, pincode)
	if err != nil {
		return sess, err
	}

	if err := c.setPreferences(ctx, rec.Substore); err != nil {
		return sess, err
	}

	info, err := c.fetchSessionInfo(ctx)
	if err != nil {
		return sess, err
	}

	substoreID := rec.ID
	if info.SubstoreID != "" {
		substoreID = info.SubstoreID
	} else if info.Substore.ID != "" {
		substoreID = info.Substore.ID
	}
	if info.Tid == "" || substoreID == "" {
		return sess, errors.Wrap(storefront.ErrSessionRejected, "tid or substore_id missing in info.js")
	}

	sub.ID = substoreID
	return storefront.Session{
		Tid:        info.Tid,
		SubstoreID: substoreID,
		Substore:   sub,
	}, nil
}

func (c *Client) visitBrowse(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+browsePath, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header = c.browserHeaders()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(storefront.ErrSessionRejected, err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 && resp.StatusCode != 304 {
		return errors.Wrapf(storefront.ErrSessionRejected, "browse http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) lookupPincode(ctx context.Context, pincode string) (pincodeRecord, models.Substore, error) {
	u, _ := url.Parse(c.baseURL + pincodePath)
	q := u.Query()
	q.Set("limit", "50")
	q.Set("filters[0][field]", "pincode")
	q.Set("filters[0][value]", pincode)
	q.Set("filters[0][operator]", "regex")
	q.Set("cf_cache", "1h")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return pincodeRecord{}, models.Substore{}, errors.Wrap(err, "new request")
	}
	req.Header = c.browserHeaders()
	req.Header.Set("referer", c.baseURL+"/")
	req.Header.Set("tid", SignTid(c.storeID, "dummy"))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return pincodeRecord{}, models.Substore{}, errors.Wrap(storefront.ErrSessionRejected, err.Error())
	}
	defer resp.Body.Close()

	var pr pincodeResp
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return pincodeRecord{}, models.Substore{}, errors.Wrap(storefront.ErrSessionRejected, "decode pincode response")
	}
	if len(pr.Records) == 0 {
		return pincodeRecord{}, models.Substore{}, errors.Wrapf(storefront.ErrNoSubstore, "pincode %s", pincode)
	}

	rec := pr.Records[0]
	return rec, parseSubstore(rec), nil
}

// parseSubstore: поле substore бывает строкой (alias) или объектом.
func parseSubstore(rec pincodeRecord) models.Substore {
	var asString string
	if json.Unmarshal(rec.Substore, &asString) == nil {
		return models.Substore{
			ID:    rec.ID,
			Name:  titleCase(asString),
			Alias: asString,
		}
	}
	var asObj struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Alias string `json:"alias"`
	}
	if json.Unmarshal(rec.Substore, &asObj) == nil && (asObj.Alias != "" || asObj.Name != "") {
		id := asObj.ID
		if id == "" {
			id = rec.ID
		}
		return models.Substore{ID: id, Name: asObj.Name, Alias: asObj.Alias}
	}
	return models.Substore{ID: rec.ID, Name: "Unknown-" + rec.ID}
}

func (c *Client) setPreferences(ctx context.Context, rawSubstore json.RawMessage) error {
	payload, err := json.Marshal(map[string]any{
		"data": map[string]any{"store": json.RawMessage(rawSubstore)},
	})
	if err != nil {
		return errors.Wrap(err, "marshal preferences")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+preferencesPath, strings.NewReader(string(payload)))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header = c.browserHeaders()
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-requested-with", "XMLHttpRequest")
	req.Header.Set("tid", SignTid(c.storeID, "dummy"))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(storefront.ErrSessionRejected, err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotAcceptable {
		return errors.Wrap(storefront.ErrPreferenceRejected, "setPreferences 406")
	}
	if resp.StatusCode/100 != 2 {
		return errors.Wrapf(storefront.ErrSessionRejected, "setPreferences http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) fetchSessionInfo(ctx context.Context) (sessionInfo, error) {
	u := fmt.Sprintf("%s%s?_v=%d", c.baseURL, infoPath, time.Now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return sessionInfo{}, errors.Wrap(err, "new request")
	}
	req.Header = c.browserHeaders()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return sessionInfo{}, errors.Wrap(storefront.ErrSessionRejected, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sessionInfo{}, errors.Wrap(storefront.ErrSessionRejected, "read info.js")
	}
	m := sessionRe.FindSubmatch(body)
	if m == nil {
		return sessionInfo{}, errors.Wrap(storefront.ErrSessionRejected, "no session JSON in info.js")
	}
	var info sessionInfo
	if err := json.Unmarshal(m[1], &info); err != nil {
		return sessionInfo{}, errors.Wrap(storefront.ErrSessionRejected, "parse session JSON")
	}
	return info, nil
}

type productRecord struct {
	Name              string   `json:"name"`
	Alias             string   `json:"alias"`
	Available         any      `json:"available"`
	SellerSubstoreIDs []string `json:"seller_substore_ids"`
	InventoryQuantity any      `json:"inventory_quantity"`
}

type productsResp struct {
	Data []productRecord `json:"data"`
}

// FetchProduct запрашивает товарное API по alias. 406/5xx отдаём как
// HTTPStatusError (ретраит вызывающий), пустое/не-JSON тело — как
// ErrSessionExpired.
func (c *Client) FetchProduct(ctx context.Context, sess storefront.Session, alias string) ([]storefront.ProductData, error) {
	u, _ := url.Parse(c.baseURL + productsPath)
	qjson, _ := json.Marshal(map[string]string{"alias": alias})
	q := u.Query()
	q.Set("q", string(qjson))
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header = c.browserHeaders()
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	req.Header.Set("tid", SignTid(c.storeID, sess.Tid))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotAcceptable || resp.StatusCode >= 500 {
		return nil, &storefront.HTTPStatusError{Code: resp.StatusCode}
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("product api http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.Wrapf(storefront.ErrSessionExpired, "empty body for alias %s", alias)
	}
	var pr productsResp
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, errors.Wrapf(storefront.ErrSessionExpired, "invalid body for alias %s", alias)
	}

	out := make([]storefront.ProductData, 0, len(pr.Data))
	for _, rec := range pr.Data {
		out = append(out, storefront.ProductData{
			Name:              rec.Name,
			Alias:             rec.Alias,
			Available:         coerceInt(rec.Available, rec.Name, "available"),
			SellerSubstoreIDs: rec.SellerSubstoreIDs,
			Quantity:          coerceQuantity(rec.InventoryQuantity, rec.Name),
		})
	}
	return out, nil
}

// coerceInt приводит произвольное значение поля к int; кривые данные — это
// предупреждение о качестве данных витрины, не ошибка.
func coerceInt(v any, product, field string) int {
	n, ok := asInt(v)
	if !ok {
		slog.Warn("invalid numeric field in product api", "field", field, "product", product, "value", fmt.Sprintf("%v", v))
		return 0
	}
	return n
}

func coerceQuantity(v any, product string) int {
	n, ok := asInt(v)
	if !ok {
		slog.Warn("invalid inventory_quantity in product api", "product", product, "value", fmt.Sprintf("%v", v))
		return 0
	}
	if n < 0 {
		slog.Warn("negative inventory_quantity in product api", "product", product, "value", n)
		return 0
	}
	return n
}

func titleCase(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case float64:
		return int(t), true
	case string:
		if t == "" {
			return 0, true
		}
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
