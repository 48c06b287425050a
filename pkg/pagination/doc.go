// Package pagination walks cursor-paginated GraphQL connections.
//
// The Admin API returns at most one page per query together with a
// pageInfo{endCursor, hasNextPage} pair. Pages exposes that walk as a lazy
// iter.Seq2 so callers fold over pages instead of managing a mutable cursor:
//
//	for page, err := range pagination.Pages(ctx, fetcher.FetchPage, pagination.DefaultConfig()) {
//		if err != nil {
//			return err
//		}
//		process(page.Items)
//	}
//
// The sequence:
//   - Starts from the beginning (empty cursor) every time it is ranged over
//   - Stops after the first page whose HasNext is false
//   - Yields a fetch error once and then stops
//   - Optionally prefetches the next page while the caller processes the current one
package pagination
