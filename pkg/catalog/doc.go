// Package catalog reads gold-tagged products from the Admin GraphQL API page
// by page and writes computed prices back to their variants.
//
// Reads are cursor-paginated (250 products per page, first variant and the
// first 10 metafields of each product). Writes are one productVariantsBulkUpdate
// call per product. A malformed page is a TransportError and must stop the
// caller; a failed write is an UpdateError scoped to a single item.
//
// Both Fetcher and Updater accept any Executor, which *client.Client satisfies:
//
//	api, _ := client.New(client.DefaultConfig(shop, token))
//	fetcher := catalog.NewFetcher(api)
//	for page, err := range pagination.Pages(ctx, fetcher.FetchPage, pagination.DefaultConfig()) {
//		...
//	}
package catalog
