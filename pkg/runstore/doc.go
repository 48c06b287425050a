// Package runstore keeps the summaries of recent re-pricing runs in Redis so
// a caller that triggered a run can poll its result later.
//
// Keys:
//
//	repricer:run:{run_id}   summary JSON, expires after the configured TTL
//	repricer:run:latest     id of the most recently saved run
//	repricer:runs           ids of recent runs, newest first, capped
package runstore
