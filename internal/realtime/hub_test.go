package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestQuery_Matches(t *testing.T) {
	q := Query{TenantID: "t1", Collection: CollectionBookings, Date: "2025-03-14"}

	assert.True(t, q.Matches(Change{TenantID: "t1", Collection: CollectionBookings, Date: "2025-03-14"}))
	assert.False(t, q.Matches(Change{TenantID: "t2", Collection: CollectionBookings, Date: "2025-03-14"}))
	assert.False(t, q.Matches(Change{TenantID: "t1", Collection: CollectionAccounts, Date: "2025-03-14"}))
	assert.False(t, q.Matches(Change{TenantID: "t1", Collection: CollectionBookings, Date: "2025-03-15"}))

	q.Date = ""
	assert.True(t, q.Matches(Change{TenantID: "t1", Collection: CollectionBookings, Date: "2025-03-15"}))
}

func TestHub_DeliversOnlyMatchingChanges(t *testing.T) {
	hub := NewHub()
	day, err := hub.Subscribe(Query{TenantID: "t1", Collection: CollectionBookings, Date: "2025-03-14"})
	require.NoError(t, err)
	other, err := hub.Subscribe(Query{TenantID: "t2", Collection: CollectionBookings, Date: "2025-03-14"})
	require.NoError(t, err)

	hub.Publish(context.Background(), Change{
		Collection: CollectionBookings,
		TenantID:   "t1",
		Op:         OpAdded,
		ID:         "b1",
		Date:       "2025-03-14",
	})

	ev := receive(t, day)
	assert.Equal(t, EventChange, ev.Type)
	require.NotNil(t, ev.Change)
	assert.Equal(t, "b1", ev.Change.ID)
	assertNoEvent(t, other)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe(Query{TenantID: "t1", Collection: CollectionAccounts})
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Len())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, hub.Len())

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// publishing after unsubscribe must not panic on the closed channel
	hub.Publish(context.Background(), Change{Collection: CollectionAccounts, TenantID: "t1"})
}

func TestHub_RejectsIncompleteQuery(t *testing.T) {
	_, err := NewHub().Subscribe(Query{Collection: CollectionBookings})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		q       Query
		wantErr bool
	}{
		{"bookings for a day", Query{TenantID: "t1", Collection: CollectionBookings, Date: "2025-03-14"}, false},
		{"bookings without a day", Query{TenantID: "t1", Collection: CollectionBookings}, true},
		{"accounts", Query{TenantID: "t1", Collection: CollectionAccounts}, false},
		// account changes carry no day, a dated subscription would never hear of one
		{"accounts for a day", Query{TenantID: "t1", Collection: CollectionAccounts, Date: "2025-03-14"}, true},
		{"transactions", Query{TenantID: "t1", Collection: CollectionTransactions}, false},
		{"transactions for a day", Query{TenantID: "t1", Collection: CollectionTransactions, Date: "2025-03-14"}, false},
		{"unknown collection", Query{TenantID: "t1", Collection: "invoices"}, true},
		{"no tenant", Query{Collection: CollectionAccounts}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			assert.NoError(t, err)
		})
	}
}

type fakeRelay struct {
	hub  *Hub
	sent []Change
	err  error
}

func (f *fakeRelay) Send(_ context.Context, ch Change) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, ch)
	f.hub.Deliver(ch)
	return nil
}

func TestHub_PublishThroughRelay(t *testing.T) {
	hub := NewHub()
	relay := &fakeRelay{hub: hub}
	hub.SetRelay(relay)

	sub, err := hub.Subscribe(Query{TenantID: "t1", Collection: CollectionTransactions})
	require.NoError(t, err)

	hub.Publish(context.Background(), Change{Collection: CollectionTransactions, TenantID: "t1", ID: "x"})
	require.Len(t, relay.sent, 1)
	assert.Equal(t, "x", receive(t, sub).Change.ID)
	assertNoEvent(t, sub)
}

func TestHub_RelayFailureFallsBackToLocal(t *testing.T) {
	hub := NewHub()
	hub.SetRelay(&fakeRelay{hub: hub, err: errors.New("redis down")})

	sub, err := hub.Subscribe(Query{TenantID: "t1", Collection: CollectionTransactions})
	require.NoError(t, err)

	hub.Publish(context.Background(), Change{Collection: CollectionTransactions, TenantID: "t1", ID: "y"})
	assert.Equal(t, "y", receive(t, sub).Change.ID)
}

func TestHub_Snapshot(t *testing.T) {
	hub := NewHub()
	hub.RegisterSnapshotter(CollectionBookings, func(_ context.Context, q Query) (any, error) {
		return []string{q.TenantID + ":" + q.Date}, nil
	})

	docs, err := hub.Snapshot(context.Background(), Query{TenantID: "t1", Collection: CollectionBookings, Date: "2025-03-14"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1:2025-03-14"}, docs)

	docs, err = hub.Snapshot(context.Background(), Query{TenantID: "t1", Collection: "unknown"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}
