// Package rates provides the current metal rate record to the repricer.
//
// The record is owned by the settings workflow; the repricer only reads it.
// A store with no record returns (nil, nil) and the run fails with a
// configuration error before touching the catalog.
package rates

import (
	"context"
	"errors"

	"github.com/Sternrassler/gold-repricer/pkg/pricing"
)

// ErrIncompleteRecord is returned when a stored record lacks a tier rate.
var ErrIncompleteRecord = errors.New("incomplete rate record")

// Store returns the current rate record, or nil when none has been set.
type Store interface {
	Current(ctx context.Context) (*pricing.RateRecord, error)
}

// StaticStore serves a fixed record, e.g. rates passed on the command line.
type StaticStore struct {
	record *pricing.RateRecord
}

// NewStaticStore creates a store for record. A nil record behaves like an empty store.
func NewStaticStore(record *pricing.RateRecord) *StaticStore {
	return &StaticStore{record: record}
}

// Current implements Store.
func (s *StaticStore) Current(_ context.Context) (*pricing.RateRecord, error) {
	if s.record == nil {
		return nil, nil
	}
	record := *s.record
	return &record, nil
}
