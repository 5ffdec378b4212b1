// Package marketplace provides listing-source clients for secondhand
// marketplaces. Results are untrusted input: callers validate every listing
// and silently discard malformed entries.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// Client is the REST client for a Browse-style marketplace search API.
type Client struct {
	baseURL    string
	apiKey     string
	category   string
	httpClient *http.Client
}

// NewClient creates a marketplace search client.
//
// baseURL is the API root, e.g. "https://api.ebay.com/buy/browse/v1".
func NewClient(baseURL, apiKey, category string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		category: category,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIListing is the wire representation of a search result item.
type APIListing struct {
	ItemID    string `json:"itemId"`
	Title     string `json:"title"`
	Condition string `json:"condition"`
	Price     struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	ShippingOptions []struct {
		ShippingCost struct {
			Value string `json:"value"`
		} `json:"shippingCost"`
	} `json:"shippingOptions"`
	Seller struct {
		FeedbackPercentage string `json:"feedbackPercentage"`
	} `json:"seller"`
	ItemWebURL string `json:"itemWebUrl"`
	Image      struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
}

// ToDomainListing converts an API item to a domain listing. Unparseable
// numeric fields become zero values, which Listing.Valid rejects downstream.
func (a APIListing) ToDomainListing(category string, observedAt time.Time) domain.Listing {
	price, _ := strconv.ParseFloat(a.Price.Value, 64)
	rating, _ := strconv.ParseFloat(a.Seller.FeedbackPercentage, 64)

	var shipping float64
	if len(a.ShippingOptions) > 0 {
		shipping, _ = strconv.ParseFloat(a.ShippingOptions[0].ShippingCost.Value, 64)
	}

	return domain.Listing{
		Identity: domain.Identity{
			Name:     strings.TrimSpace(a.Title),
			Category: category,
		},
		Condition:    a.Condition,
		Price:        price,
		ShippingCost: shipping,
		SellerRating: rating,
		URL:          a.ItemWebURL,
		ImageURL:     a.Image.ImageURL,
		ObservedAt:   observedAt,
	}
}

type searchResponse struct {
	ItemSummaries []APIListing `json:"itemSummaries"`
	Total         int          `json:"total"`
}

// Search queries the marketplace for listings matching query within the given
// price range. Listings that fail validation are dropped without error.
func (c *Client) Search(ctx context.Context, query string, pr domain.PriceRange, limit int) ([]domain.Listing, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	if pr.Min > 0 || pr.Max > 0 {
		params.Set("filter", fmt.Sprintf("price:[%.2f..%.2f],priceCurrency:USD", pr.Min, pr.Max))
	}

	body, err := c.doGet(ctx, "/item_summary/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("marketplace: search %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("marketplace: decode search results: %w", err)
	}

	now := time.Now().UTC()
	listings := make([]domain.Listing, 0, len(resp.ItemSummaries))
	for i := range resp.ItemSummaries {
		l := resp.ItemSummaries[i].ToDomainListing(c.category, now)
		if !l.Valid() {
			continue
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ domain.ListingSource = (*Client)(nil)
