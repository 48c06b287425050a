// Package testutil provides testing utilities for the Admin API client and the repricer.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultPageSize matches the page size requested by the catalog fetcher.
	DefaultPageSize = 250

	// MaxMetafields is how many metafields the mock returns per product.
	MaxMetafields = 10
)

// MockProduct is a catalog product served by MockAdmin.
type MockProduct struct {
	ID         string
	Tags       []string
	VariantID  string // empty means the product has no variants
	Metafields map[string]string
}

// MockUpdate records one productVariantsBulkUpdate call.
type MockUpdate struct {
	ProductID string
	VariantID string
	Price     string
}

// MockAdminResponse defines a canned response for a request.
type MockAdminResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAdmin is a configurable mock of the Admin GraphQL endpoint.
// It serves gold-tagged products page by page and records price updates.
type MockAdmin struct {
	server *httptest.Server
	mu     sync.RWMutex

	products     []MockProduct
	pageSize     int
	failVariants map[string]string
	malformedAt  map[int]bool
	overrides    []MockAdminResponse

	// Tracking
	RequestCount      int
	QueryCount        int
	MutationCount     int
	Updates           []MockUpdate
	LastRequestHeader http.Header
}

// NewMockAdmin creates a new mock Admin API server.
func NewMockAdmin() *MockAdmin {
	mock := &MockAdmin{
		pageSize:     DefaultPageSize,
		failVariants: make(map[string]string),
		malformedAt:  make(map[int]bool),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock GraphQL endpoint URL.
func (m *MockAdmin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAdmin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and recorded updates.
func (m *MockAdmin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.QueryCount = 0
	m.MutationCount = 0
	m.Updates = nil
	m.LastRequestHeader = nil
}

// SetProducts replaces the served catalog.
func (m *MockAdmin) SetProducts(products ...MockProduct) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = slices.Clone(products)
}

// SetPageSize overrides the number of products per page.
func (m *MockAdmin) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// FailVariant makes updates of variantID return a user error with message.
func (m *MockAdmin) FailVariant(variantID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failVariants[variantID] = message
}

// MalformedPage makes the page starting at product offset return a
// response without the products field.
func (m *MockAdmin) MalformedPage(offset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.malformedAt[offset] = true
}

// QueueResponse serves resp for the next request instead of the catalog.
// Queued responses are consumed in order.
func (m *MockAdmin) QueueResponse(resp MockAdminResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = append(m.overrides, resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAdmin) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetMutationCount returns the number of price update requests.
func (m *MockAdmin) GetMutationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.MutationCount
}

// GetUpdates returns a copy of the recorded price updates.
func (m *MockAdmin) GetUpdates() []MockUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.Updates)
}

// PriceOf returns the last price written to variantID.
func (m *MockAdmin) PriceOf(variantID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.Updates) - 1; i >= 0; i-- {
		if m.Updates[i].VariantID == variantID {
			return m.Updates[i].Price, true
		}
	}
	return "", false
}

type mockRequest struct {
	Query     string          `json:"query"`
	Variables json.RawMessage `json:"variables"`
}

func (m *MockAdmin) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()
	var override *MockAdminResponse
	if len(m.overrides) > 0 {
		next := m.overrides[0]
		m.overrides = m.overrides[1:]
		override = &next
	}
	m.mu.Unlock()

	if override != nil {
		writeResponse(w, *override)
		return
	}

	var req mockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"errors":[{"message":"invalid JSON"}]}`, http.StatusBadRequest)
		return
	}

	if strings.Contains(req.Query, "productVariantsBulkUpdate") {
		m.handleUpdate(w, req)
		return
	}
	m.handleProducts(w, req)
}

func (m *MockAdmin) handleProducts(w http.ResponseWriter, req mockRequest) {
	var vars struct {
		Cursor *string `json:"cursor"`
	}
	json.Unmarshal(req.Variables, &vars)

	offset := 0
	if vars.Cursor != nil {
		n, err := strconv.Atoi(strings.TrimPrefix(*vars.Cursor, "cursor-"))
		if err != nil {
			writeJSON(w, map[string]any{"errors": []map[string]any{{"message": "invalid cursor"}}})
			return
		}
		offset = n
	}

	m.mu.Lock()
	m.QueryCount++
	malformed := m.malformedAt[offset]
	gold := make([]MockProduct, 0, len(m.products))
	for _, p := range m.products {
		if hasGoldTag(p.Tags) {
			gold = append(gold, p)
		}
	}
	pageSize := m.pageSize
	m.mu.Unlock()

	if malformed {
		writeJSON(w, map[string]any{"data": map[string]any{}})
		return
	}

	end := min(offset+pageSize, len(gold))
	if offset > end {
		offset = end
	}

	edges := make([]map[string]any, 0, end-offset)
	for _, p := range gold[offset:end] {
		edges = append(edges, map[string]any{"node": productNode(p)})
	}

	hasNext := end < len(gold)
	var endCursor any
	if end > offset {
		endCursor = fmt.Sprintf("cursor-%d", end)
	}

	writeJSON(w, map[string]any{
		"data": map[string]any{
			"products": map[string]any{
				"edges": edges,
				"pageInfo": map[string]any{
					"hasNextPage": hasNext,
					"endCursor":   endCursor,
				},
			},
		},
		"extensions": healthyCost(252),
	})
}

func (m *MockAdmin) handleUpdate(w http.ResponseWriter, req mockRequest) {
	var vars struct {
		ProductID string `json:"productId"`
		Variants  []struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"variants"`
	}
	json.Unmarshal(req.Variables, &vars)

	m.mu.Lock()
	m.MutationCount++
	userErrors := []map[string]any{}
	variants := []map[string]any{}
	for _, v := range vars.Variants {
		if msg, failed := m.failVariants[v.ID]; failed {
			userErrors = append(userErrors, map[string]any{
				"field":   []string{"variants", "0", "price"},
				"message": msg,
			})
			continue
		}
		m.Updates = append(m.Updates, MockUpdate{ProductID: vars.ProductID, VariantID: v.ID, Price: v.Price})
		variants = append(variants, map[string]any{"id": v.ID, "price": v.Price + ".00"})
	}
	m.mu.Unlock()

	writeJSON(w, map[string]any{
		"data": map[string]any{
			"productVariantsBulkUpdate": map[string]any{
				"productVariants": variants,
				"userErrors":      userErrors,
			},
		},
		"extensions": healthyCost(10),
	})
}

func productNode(p MockProduct) map[string]any {
	variantEdges := []map[string]any{}
	if p.VariantID != "" {
		variantEdges = append(variantEdges, map[string]any{"node": map[string]any{"id": p.VariantID}})
	}

	keys := make([]string, 0, len(p.Metafields))
	for k := range p.Metafields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > MaxMetafields {
		keys = keys[:MaxMetafields]
	}
	metafieldEdges := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		metafieldEdges = append(metafieldEdges, map[string]any{
			"node": map[string]any{"key": k, "value": p.Metafields[k]},
		})
	}

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	return map[string]any{
		"id":         p.ID,
		"tags":       tags,
		"variants":   map[string]any{"edges": variantEdges},
		"metafields": map[string]any{"edges": metafieldEdges},
	}
}

func hasGoldTag(tags []string) bool {
	for _, tag := range tags {
		t := strings.TrimSpace(tag)
		if strings.EqualFold(t, "Gold_22K") || strings.EqualFold(t, "Gold_18K") {
			return true
		}
	}
	return false
}

func healthyCost(requested int) map[string]any {
	return map[string]any{
		"cost": map[string]any{
			"requestedQueryCost": requested,
			"actualQueryCost":    requested,
			"throttleStatus": map[string]any{
				"maximumAvailable":   2000.0,
				"currentlyAvailable": 1990.0,
				"restoreRate":        100.0,
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeResponse(w http.ResponseWriter, resp MockAdminResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewThrottledResponse creates a THROTTLED GraphQL error response.
func NewThrottledResponse() MockAdminResponse {
	return MockAdminResponse{
		StatusCode: http.StatusOK,
		Body:       `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockAdminResponse {
	return MockAdminResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":"Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewUnauthorizedResponse creates a 401 response for a revoked token.
func NewUnauthorizedResponse() MockAdminResponse {
	return MockAdminResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"errors":"[API] Invalid API key or access token"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// GoldProduct builds a priceable product with the given tier tag and metafields.
func GoldProduct(n int, tag, weight, making, stone string) MockProduct {
	metafields := map[string]string{}
	if weight != "" {
		metafields["gold_weight"] = weight
	}
	if making != "" {
		metafields["making_charges"] = making
	}
	if stone != "" {
		metafields["stone_price"] = stone
	}
	return MockProduct{
		ID:         fmt.Sprintf("gid://shopify/Product/%d", n),
		Tags:       []string{tag},
		VariantID:  fmt.Sprintf("gid://shopify/ProductVariant/%d", n),
		Metafields: metafields,
	}
}
