package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout             = 10 * time.Second
	errorBodyReadLimit   int64 = 1024
	productsPath               = "/products"
	proteinsPath               = "/products/proteins"
)

// Client reads the remote product API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a catalog client for baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimmed,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// wireItem accepts both id spellings the product API emits.
type wireItem struct {
	ID          string   `json:"id"`
	MongoID     string   `json:"_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Image       string   `json:"image"`
	Rating      float64  `json:"rating"`
	Calories    int      `json:"calories"`
	Tags        []string `json:"tags"`
}

func (w wireItem) id() string {
	if w.MongoID != "" {
		return w.MongoID
	}
	return w.ID
}

// Fetch loads products and proteins concurrently.
func (c *Client) Fetch(ctx context.Context) (Catalog, error) {
	var (
		items    []wireItem
		proteins []wireItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, productsPath, &items)
	})
	g.Go(func() error {
		return c.getJSON(gctx, proteinsPath, &proteins)
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, err
	}
	return normalize(items, proteins)
}

func normalize(items, proteins []wireItem) (Catalog, error) {
	out := Catalog{
		Items:    make([]MenuItem, 0, len(items)),
		Proteins: make([]Protein, 0, len(proteins)),
	}
	for _, w := range items {
		id := w.id()
		if id == "" {
			return Catalog{}, pkgerrors.Newf(pkgerrors.CodeDependency, "product %q has no id", w.Name)
		}
		category, err := enums.ParseCategory(w.Category)
		if err != nil {
			return Catalog{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("product %q", id))
		}
		out.Items = append(out.Items, MenuItem{
			ID:          id,
			Name:        w.Name,
			Description: w.Description,
			Price:       int64(w.Price),
			Category:    category,
			Image:       w.Image,
			Rating:      w.Rating,
			Calories:    w.Calories,
			Tags:        w.Tags,
		})
	}
	for _, w := range proteins {
		id := w.id()
		if id == "" {
			return Catalog{}, pkgerrors.Newf(pkgerrors.CodeDependency, "protein %q has no id", w.Name)
		}
		out.Proteins = append(out.Proteins, Protein{ID: id, Name: w.Name, Price: int64(w.Price)})
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build catalog request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute catalog request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("GET %s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg))), "catalog request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode catalog response")
	}
	return nil
}
