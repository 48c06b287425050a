package catalog

import "fmt"

const (
	// PageSize is the number of products requested per page.
	PageSize = 250

	// MaxMetafields is the number of metafields read per product. Further
	// metafields are not visible to pricing.
	MaxMetafields = 10
)

// ProductQuery is the server-side search filter. Tag search is case-insensitive,
// so it also matches gold_22k style tags.
const ProductQuery = "tag:Gold_22K OR tag:Gold_18K"

var productsQuery = fmt.Sprintf(`query GoldProducts($cursor: String) {
  products(first: %d, after: $cursor, query: %q) {
    edges {
      node {
        id
        tags
        variants(first: 1) {
          edges { node { id } }
        }
        metafields(first: %d) {
          edges { node { key value } }
        }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`, PageSize, ProductQuery, MaxMetafields)

const updatePriceMutation = `mutation UpdateVariantPrice($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants { id price }
    userErrors { field message }
  }
}`
