// Package realtime pushes store changes to subscribed clients: a snapshot of
// the matching documents first, then every change committed afterwards.
package realtime

import (
	"context"
	"fmt"
)

const (
	CollectionBookings     = "bookings"
	CollectionAccounts     = "accounts"
	CollectionTransactions = "transactions"
)

type Op string

const (
	OpAdded    Op = "added"
	OpModified Op = "modified"
	OpRemoved  Op = "removed"
)

// Change describes one committed write. Date is the calendar day the document
// belongs to, if any, so day views can filter without decoding Doc.
type Change struct {
	Collection string `json:"collection"`
	TenantID   string `json:"tenant_id"`
	Op         Op     `json:"op"`
	ID         string `json:"id"`
	Date       string `json:"date,omitempty"`
	Doc        any    `json:"doc,omitempty"`
}

// Publisher is what services call after a successful commit.
type Publisher interface {
	Publish(ctx context.Context, ch Change)
}

// Query selects the changes a subscriber receives. An empty Date matches
// every day.
type Query struct {
	TenantID   string `json:"tenant_id"`
	Collection string `json:"collection"`
	Date       string `json:"date,omitempty"`
}

// Validate rejects queries whose snapshot and change stream would select
// different documents. Bookings are read one day at a time and accounts
// belong to no day.
func (q Query) Validate() error {
	if q.TenantID == "" || q.Collection == "" {
		return fmt.Errorf("%w: tenant and collection are required", ErrInvalidQuery)
	}
	switch q.Collection {
	case CollectionBookings:
		if q.Date == "" {
			return fmt.Errorf("%w: bookings need a date", ErrInvalidQuery)
		}
	case CollectionAccounts:
		if q.Date != "" {
			return fmt.Errorf("%w: accounts cannot be filtered by date", ErrInvalidQuery)
		}
	case CollectionTransactions:
	default:
		return fmt.Errorf("%w: unknown collection %q", ErrInvalidQuery, q.Collection)
	}
	return nil
}

func (q Query) Matches(ch Change) bool {
	if q.TenantID != ch.TenantID || q.Collection != ch.Collection {
		return false
	}
	return q.Date == "" || q.Date == ch.Date
}

// Discard drops every change. Handy for tools and tests that need no fan-out.
type Discard struct{}

func (Discard) Publish(context.Context, Change) {}
