package catalog

import (
	"context"
	"fmt"

	"github.com/Sternrassler/gold-repricer/pkg/logging"
	"github.com/Sternrassler/gold-repricer/pkg/pagination"
	"github.com/rs/zerolog"
)

type productsData struct {
	Products *struct {
		Edges    *[]productEdge `json:"edges"`
		PageInfo *struct {
			HasNextPage bool    `json:"hasNextPage"`
			EndCursor   *string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"products"`
}

type productEdge struct {
	Node productNode `json:"node"`
}

type productNode struct {
	ID       string   `json:"id"`
	Tags     []string `json:"tags"`
	Variants struct {
		Edges []struct {
			Node struct {
				ID string `json:"id"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
	Metafields struct {
		Edges []struct {
			Node struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"metafields"`
}

func (n productNode) item() Item {
	item := Item{
		ID:         n.ID,
		Tags:       n.Tags,
		Metafields: make(map[string]string, len(n.Metafields.Edges)),
	}
	if len(n.Variants.Edges) > 0 {
		item.VariantID = n.Variants.Edges[0].Node.ID
	}
	for _, edge := range n.Metafields.Edges {
		item.Metafields[edge.Node.Key] = edge.Node.Value
	}
	return item
}

// Fetcher reads gold-tagged products one page at a time.
type Fetcher struct {
	api    Executor
	logger zerolog.Logger
}

// NewFetcher creates a Fetcher using api.
func NewFetcher(api Executor) *Fetcher {
	return &Fetcher{
		api:    api,
		logger: logging.NewLogger(logging.ComponentCatalog),
	}
}

// FetchPage returns the page that starts after cursor; "" starts from the
// beginning. It satisfies pagination.FetchFunc[Item]. Every failure is a
// *TransportError.
func (f *Fetcher) FetchPage(ctx context.Context, cursor string) (pagination.Page[Item], error) {
	variables := map[string]any{"cursor": nil}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	var data productsData
	if err := f.api.Do(ctx, productsQuery, variables, &data); err != nil {
		return pagination.Page[Item]{}, &TransportError{Op: "fetch products", Cursor: cursor, Err: err}
	}

	if data.Products == nil {
		return pagination.Page[Item]{}, &TransportError{
			Op:     "fetch products",
			Cursor: cursor,
			Err:    fmt.Errorf("%w: missing products", ErrMalformedResponse),
		}
	}
	if data.Products.Edges == nil {
		return pagination.Page[Item]{}, &TransportError{
			Op:     "fetch products",
			Cursor: cursor,
			Err:    fmt.Errorf("%w: missing products.edges", ErrMalformedResponse),
		}
	}
	if data.Products.PageInfo == nil {
		return pagination.Page[Item]{}, &TransportError{
			Op:     "fetch products",
			Cursor: cursor,
			Err:    fmt.Errorf("%w: missing products.pageInfo", ErrMalformedResponse),
		}
	}

	edges := *data.Products.Edges
	page := pagination.Page[Item]{
		Items:   make([]Item, 0, len(edges)),
		HasNext: data.Products.PageInfo.HasNextPage,
	}
	if end := data.Products.PageInfo.EndCursor; end != nil {
		page.NextCursor = *end
	}
	if page.HasNext && page.NextCursor == "" {
		return pagination.Page[Item]{}, &TransportError{
			Op:     "fetch products",
			Cursor: cursor,
			Err:    fmt.Errorf("%w: hasNextPage without endCursor", ErrMalformedResponse),
		}
	}
	if page.HasNext && page.NextCursor == cursor {
		return pagination.Page[Item]{}, &TransportError{
			Op:     "fetch products",
			Cursor: cursor,
			Err:    fmt.Errorf("%w: endCursor repeats the request cursor", ErrMalformedResponse),
		}
	}

	for _, edge := range edges {
		page.Items = append(page.Items, edge.Node.item())
	}

	f.logger.Debug().
		Str("cursor", cursor).
		Int("items", len(page.Items)).
		Bool("has_next", page.HasNext).
		Msg("Fetched catalog page")

	return page, nil
}
