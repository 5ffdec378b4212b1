package marketplace_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/marketplace"
)

const searchPayload = `{
	"total": 3,
	"itemSummaries": [
		{
			"itemId": "v1|1001|0",
			"title": "Charizard Base Set Holo",
			"condition": "Used",
			"price": {"value": "280.00", "currency": "USD"},
			"shippingOptions": [{"shippingCost": {"value": "5.00"}}],
			"seller": {"feedbackPercentage": "99.2"},
			"itemWebUrl": "https://example.com/item/1001"
		},
		{
			"itemId": "v1|1002|0",
			"title": "Blastoise Shadowless",
			"condition": "Used",
			"price": {"value": "not-a-number", "currency": "USD"},
			"seller": {"feedbackPercentage": "98.0"},
			"itemWebUrl": "https://example.com/item/1002"
		},
		{
			"itemId": "v1|1003|0",
			"title": "",
			"condition": "Used",
			"price": {"value": "120.00", "currency": "USD"},
			"seller": {"feedbackPercentage": "97.0"},
			"itemWebUrl": "https://example.com/item/1003"
		}
	]
}`

func TestSearchDropsInvalidListings(t *testing.T) {
	rq := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal("/item_summary/search", r.URL.Path)
		rq.Equal("Bearer test-key", r.Header.Get("Authorization"))
		rq.Equal("charizard", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchPayload))
	}))
	defer srv.Close()

	c := marketplace.NewClient(srv.URL, "test-key", "trading_card")
	listings, err := c.Search(context.Background(), "charizard", domain.PriceRange{Min: 100, Max: 500}, 50)
	rq.NoError(err)

	// The unparseable price and the empty title are discarded, not surfaced.
	rq.Len(listings, 1)
	rq.Equal("Charizard Base Set Holo", listings[0].Identity.Name)
	rq.Equal("trading_card", listings[0].Identity.Category)
	rq.InDelta(280, listings[0].Price, 1e-9)
	rq.InDelta(5, listings[0].ShippingCost, 1e-9)
	rq.InDelta(99.2, listings[0].SellerRating, 1e-9)
}

func TestSearchErrorStatus(t *testing.T) {
	rq := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"rate limited"}]}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := marketplace.NewClient(srv.URL, "", "trading_card")
	_, err := c.Search(context.Background(), "charizard", domain.PriceRange{}, 10)
	rq.Error(err)
	rq.Contains(err.Error(), "429")
}

func TestFakeFiltersPriceRange(t *testing.T) {
	rq := require.New(t)

	fake := marketplace.NewFake(
		domain.Listing{Identity: domain.Identity{Name: "A", Category: "c"}, Price: 50},
		domain.Listing{Identity: domain.Identity{Name: "B", Category: "c"}, Price: 150},
		domain.Listing{Identity: domain.Identity{Name: "C", Category: "c"}, Price: 900},
	)

	got, err := fake.Search(context.Background(), "q", domain.PriceRange{Min: 100, Max: 500}, 0)
	rq.NoError(err)
	rq.Len(got, 1)
	rq.Equal("B", got[0].Identity.Name)
	rq.Equal([]string{"q"}, fake.Queries())
}
