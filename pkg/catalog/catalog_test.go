package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/gold-repricer/internal/testutil"
	"github.com/Sternrassler/gold-repricer/pkg/client"
	"github.com/Sternrassler/gold-repricer/pkg/pagination"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T, mock *testutil.MockAdmin) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig("test-shop.myshopify.com", "shpat_test")
	cfg.Endpoint = mock.URL()
	cfg.MaxAttempts = 2
	cfg.InitialBackoff = time.Millisecond

	api, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { api.Close() })
	return api
}

func TestFetchPage_DecodesItems(t *testing.T) {
	mock := testutil.NewMockAdmin()
	defer mock.Close()

	mock.SetProducts(
		testutil.GoldProduct(1, "Gold_22K", "5", "10", "200"),
		testutil.MockProduct{ID: "gid://shopify/Product/2", Tags: []string{"gold_18k", "ring"}},
		testutil.MockProduct{ID: "gid://shopify/Product/3", Tags: []string{"silver"}},
	)

	fetcher := NewFetcher(newAPI(t, mock))
	page, err := fetcher.FetchPage(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.False(t, page.HasNext)

	first := page.Items[0]
	assert.Equal(t, "gid://shopify/Product/1", first.ID)
	assert.Equal(t, "gid://shopify/ProductVariant/1", first.VariantID)
	assert.True(t, first.HasVariant())
	assert.Equal(t, map[string]string{"gold_weight": "5", "making_charges": "10", "stone_price": "200"}, first.Metafields)

	second := page.Items[1]
	assert.False(t, second.HasVariant())
	assert.Empty(t, second.Metafields)
	assert.Equal(t, []string{"gold_18k", "ring"}, second.Tags)
}

func TestFetchPage_WalksCursors(t *testing.T) {
	mock := testutil.NewMockAdmin()
	defer mock.Close()

	products := make([]testutil.MockProduct, 0, 5)
	for i := 1; i <= 5; i++ {
		products = append(products, testutil.GoldProduct(i, "Gold_22K", "1", "", ""))
	}
	mock.SetProducts(products...)
	mock.SetPageSize(2)

	fetcher := NewFetcher(newAPI(t, mock))

	var ids []string
	var pages int
	for page, err := range pagination.Pages[Item](context.Background(), fetcher.FetchPage, pagination.DefaultConfig()) {
		require.NoError(t, err)
		pages++
		assert.Equal(t, pages, page.Number)
		for _, item := range page.Items {
			ids = append(ids, item.ID)
		}
	}

	assert.Equal(t, 3, pages)
	require.Len(t, ids, 5)
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("gid://shopify/Product/%d", i+1), id)
	}
}

func TestFetchPage_MetafieldsCapped(t *testing.T) {
	mock := testutil.NewMockAdmin()
	defer mock.Close()

	metafields := map[string]string{}
	for i := 0; i < 12; i++ {
		metafields[fmt.Sprintf("a_extra_%02d", i)] = "x"
	}
	metafields["stone_price"] = "500"
	mock.SetProducts(testutil.MockProduct{
		ID:         "gid://shopify/Product/1",
		Tags:       []string{"Gold_22K"},
		VariantID:  "gid://shopify/ProductVariant/1",
		Metafields: metafields,
	})

	page, err := NewFetcher(newAPI(t, mock)).FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	assert.Len(t, item.Metafields, MaxMetafields)
	_, visible := item.Metafields["stone_price"]
	assert.False(t, visible, "metafields past the first page are absent")
}

func TestFetchPage_MalformedIsTransportError(t *testing.T) {
	mock := testutil.NewMockAdmin()
	defer mock.Close()

	mock.SetProducts(testutil.GoldProduct(1, "Gold_22K", "1", "", ""))
	mock.MalformedPage(0)

	_, err := NewFetcher(newAPI(t, mock)).FetchPage(context.Background(), "")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, "", transportErr.Cursor)
	assert.Contains(t, err.Error(), "cursor start")
}

func TestFetchPage_ClientFailureIsTransportError(t *testing.T) {
	mock := testutil.NewMockAdmin()
	defer mock.Close()

	mock.QueueResponse(testutil.NewUnauthorizedResponse())

	_, err := NewFetcher(newAPI(t, mock)).FetchPage(context.Background(), "cursor-250")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "cursor-250", transportErr.Cursor)
	assert.Equal(t, client.ErrorClassClient, client.ClassOf(err))
}

func TestFetchPage_RetriesThrottle(t *testing.T) {
	mock := testutil.NewMockAdmin()
	defer mock.Close()

	mock.SetProducts(testutil.GoldProduct(1, "Gold_18K", "1", "", ""))
	mock.QueueResponse(testutil.NewThrottledResponse())

	page, err := NewFetcher(newAPI(t, mock)).FetchPage(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, mock.GetRequestCount())
}

// stubExecutor returns a fixed JSON payload for every call.
type stubExecutor struct {
	payload string
	err     error
}

func (s stubExecutor) Do(_ context.Context, _ string, _ map[string]any, out any) error {
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.payload), out)
}

func TestFetchPage_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		cursor  string
		payload string
	}{
		{"missing products", "", `{}`},
		{"missing edges", "", `{"products":{"pageInfo":{"hasNextPage":false,"endCursor":null}}}`},
		{"null edges", "", `{"products":{"edges":null,"pageInfo":{"hasNextPage":false,"endCursor":null}}}`},
		{"missing pageInfo", "", `{"products":{"edges":[]}}`},
		{"next without cursor", "", `{"products":{"edges":[],"pageInfo":{"hasNextPage":true,"endCursor":null}}}`},
		{"cursor repeats request", "c1", `{"products":{"edges":[],"pageInfo":{"hasNextPage":true,"endCursor":"c1"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFetcher(stubExecutor{payload: tt.payload}).FetchPage(context.Background(), tt.cursor)
			var transportErr *TransportError
			require.ErrorAs(t, err, &transportErr)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Equal(t, tt.cursor, transportErr.Cursor)
		})
	}
}

func TestFetchPage_EmptyCatalog(t *testing.T) {
	payload := `{"products":{"edges":[],"pageInfo":{"hasNextPage":false,"endCursor":null}}}`
	page, err := NewFetcher(stubExecutor{payload: payload}).FetchPage(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext)
}

func TestUpdatePrice_Success(t *testing.T) {
	mock := testutil.NewMockAdmin()
	defer mock.Close()

	updater := NewUpdater(newAPI(t, mock))
	ack, err := updater.UpdatePrice(context.Background(), "gid://shopify/Product/1", "gid://shopify/ProductVariant/1", 34217)
	require.NoError(t, err)

	assert.Equal(t, "gid://shopify/ProductVariant/1", ack.VariantID)
	assert.True(t, ack.Price.Equal(decimal.NewFromInt(34217)), "price = %s", ack.Price)

	updates := mock.GetUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, testutil.MockUpdate{
		ProductID: "gid://shopify/Product/1",
		VariantID: "gid://shopify/ProductVariant/1",
		Price:     "34217",
	}, updates[0])
}

func TestUpdatePrice_UserErrors(t *testing.T) {
	mock := testutil.NewMockAdmin()
	defer mock.Close()

	mock.FailVariant("gid://shopify/ProductVariant/7", "Price must be greater than or equal to 0")

	_, err := NewUpdater(newAPI(t, mock)).UpdatePrice(context.Background(), "gid://shopify/Product/7", "gid://shopify/ProductVariant/7", 10)

	var updateErr *UpdateError
	require.ErrorAs(t, err, &updateErr)
	require.Len(t, updateErr.UserErrors, 1)
	assert.Equal(t, "gid://shopify/Product/7", updateErr.ItemID)
	assert.Equal(t, "variants.0.price: Price must be greater than or equal to 0", updateErr.Reason())
	assert.Empty(t, mock.GetUpdates())
}

func TestUpdatePrice_TransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := NewUpdater(stubExecutor{err: boom}).UpdatePrice(context.Background(), "p", "v", 1)

	var updateErr *UpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "update variant v of p: connection reset", err.Error())
}

func TestUpdatePrice_MissingPayload(t *testing.T) {
	_, err := NewUpdater(stubExecutor{payload: `{}`}).UpdatePrice(context.Background(), "p", "v", 1)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
