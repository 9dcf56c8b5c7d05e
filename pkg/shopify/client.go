// Package shopify is a small client for the Shopify Admin REST API covering
// the order and product operations the assistant can perform.
package shopify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shopmate/pkg/config"
	"shopmate/pkg/errs"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultListLimit applies when a list call gets no usable limit.
const DefaultListLimit = 5

// Client talks to one shop.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for cfg. Certificate verification follows
// cfg.SkipVerify().
func NewClient(cfg config.ShopifyConfig, timeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SkipVerify() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Client{
		baseURL:    fmt.Sprintf("https://%s/admin/api/%s", cfg.ShopURL, cfg.APIVersion),
		token:      cfg.AccessToken,
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
	}
}

// NewClientWithBaseURL points the client at an arbitrary API root. Used
// against test servers and proxies.
func NewClientWithBaseURL(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// CreateOrder creates a paid test order.
func (c *Client) CreateOrder(ctx context.Context, email string, items []LineItemInput) (*Order, error) {
	body := map[string]any{
		"order": map[string]any{
			"email":            email,
			"line_items":       items,
			"financial_status": "paid",
			"test":             true,
		},
	}

	var resp struct {
		Order remoteOrder `json:"order"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "orders.json", nil, body, &resp); err != nil {
		return nil, err
	}
	order := resp.Order.summary(false)
	return &order, nil
}

// ListOrders returns the most recent orders.
func (c *Client) ListOrders(ctx context.Context, limit int) (*OrderList, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}

	var resp struct {
		Orders []remoteOrder `json:"orders"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "orders.json", q, nil, &resp); err != nil {
		return nil, err
	}

	out := &OrderList{Orders: make([]Order, 0, len(resp.Orders))}
	for _, o := range resp.Orders {
		out.Orders = append(out.Orders, o.summary(true))
	}
	return out, nil
}

// DeleteOrder deletes an order. Any status other than 200 is a failure.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) (*OrderDeletion, error) {
	status, body, err := c.do(ctx, http.MethodDelete, "orders/"+url.PathEscape(orderID)+".json", nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errs.New(errs.CodeToolExecution,
			"Failed to delete order. Status code: %d, Response: %s", status, body)
	}
	return &OrderDeletion{OrderID: orderID, Message: "Order deleted successfully."}, nil
}

// CreateProduct creates a product with a single variant at price.
func (c *Client) CreateProduct(ctx context.Context, title, price, imageURL string) (*Product, error) {
	product := map[string]any{
		"title":    title,
		"variants": []map[string]any{{"price": price}},
	}
	if imageURL != "" {
		product["images"] = []map[string]any{{"src": imageURL}}
	}

	var resp struct {
		Product remoteProduct `json:"product"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "products.json", nil, map[string]any{"product": product}, &resp); err != nil {
		return nil, err
	}

	p := resp.Product
	return &Product{ID: p.ID, Title: p.Title, Price: p.price(), Image: p.imageSrc()}, nil
}

// DeleteProduct deletes a product. Any status other than 200 is a failure.
func (c *Client) DeleteProduct(ctx context.Context, productID string) (*ProductDeletion, error) {
	status, body, err := c.do(ctx, http.MethodDelete, "products/"+url.PathEscape(productID)+".json", nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errs.New(errs.CodeToolExecution,
			"Delete failed. Status code: %d, response: %s", status, body)
	}
	return &ProductDeletion{ID: productID, Message: "Product removed."}, nil
}

// ListProducts returns the newest products first.
func (c *Client) ListProducts(ctx context.Context, limit int) (*ProductList, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := url.Values{
		"limit": {strconv.Itoa(limit)},
		"order": {"created_at desc"},
	}

	var resp struct {
		Products []remoteProduct `json:"products"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "products.json", q, nil, &resp); err != nil {
		return nil, err
	}

	out := &ProductList{Products: make([]ProductListItem, 0, len(resp.Products))}
	for _, p := range resp.Products {
		out.Products = append(out.Products, ProductListItem{
			ID:       p.ID,
			Title:    p.Title,
			Price:    p.price(),
			ImageURL: p.imageSrc(),
		})
	}
	return out, nil
}

// doJSON performs a request and decodes a 2xx body into out. Non-2xx
// statuses are errors.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	status, body, err := c.do(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return errs.New(errs.CodeToolExecution, "%d %s for url: %s: %s",
			status, http.StatusText(status), c.endpoint(path, query), strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errs.Wrap(err, errs.CodeToolExecution, "decode %s response", path)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, errs.Wrap(err, errs.CodeToolExecution, "encode %s request", path)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reqBody)
	if err != nil {
		return 0, nil, errs.Wrap(err, errs.CodeToolExecution, "build %s request", path)
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errs.Wrap(err, errs.CodeToolExecution, "%s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errs.Wrap(err, errs.CodeToolExecution, "read %s response", path)
	}

	slog.DebugContext(ctx, "Shopify call", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))
	return resp.StatusCode, body, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
