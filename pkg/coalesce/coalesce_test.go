package coalesce_test

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/privtrace/pkg/coalesce"
	"github.com/maxgio92/privtrace/pkg/registry"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Load(addr, size uint64, fn registry.ID) {
	m.Called(addr, size, fn)
}

func (m *MockSink) Store(addr, size uint64, fn registry.ID) {
	m.Called(addr, size, fn)
}

func (m *MockSink) Modify(addr, size uint64, fn registry.ID) {
	m.Called(addr, size, fn)
}

func newCoalescer(t *testing.T, sink coalesce.Sink, capacity int) *coalesce.Coalescer {
	t.Helper()
	c, err := coalesce.New(sink, coalesce.WithCapacity(capacity))
	require.NoError(t, err)

	return c
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := coalesce.New(new(MockSink), coalesce.WithCapacity(1))
	require.ErrorIs(t, err, coalesce.ErrInvalidCapacity)

	c, err := coalesce.New(new(MockSink))
	require.NoError(t, err)
	require.Equal(t, coalesce.DefaultCapacity, c.Capacity())
}

func TestCoalescer_ReadWriteMergesIntoModify(t *testing.T) {
	sink := new(MockSink)
	sink.On("Modify", uint64(0x1000), uint64(4), registry.ID(1)).Return().Once()

	c := newCoalescer(t, sink, 4)
	c.Fetch(0x400000, 3, 1)
	c.Read("t1", 0x1000, 4, 1)
	c.Write("t1", 0x1000, 4, 1)

	pending := c.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, coalesce.Modify, pending[1].Kind)

	c.Flush()
	sink.AssertExpectations(t)
	sink.AssertNotCalled(t, "Load", mock.Anything, mock.Anything, mock.Anything)
	sink.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	require.Empty(t, c.Pending())
	require.Equal(t, coalesce.Stats{Committed: 1, Merged: 1, Flushes: 1}, c.Stats())
}

func TestCoalescer_NoMerge(t *testing.T) {
	tests := []struct {
		name  string
		first func(*coalesce.Coalescer)
	}{
		{"different size", func(c *coalesce.Coalescer) { c.Read("t1", 0x1000, 8, 1) }},
		{"different expression", func(c *coalesce.Coalescer) { c.Read("t2", 0x1000, 4, 1) }},
		{"different function", func(c *coalesce.Coalescer) { c.Read("t1", 0x1000, 4, 2) }},
		{"write after write", func(c *coalesce.Coalescer) { c.Write("t1", 0x1000, 4, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoalescer(t, new(MockSink), 4)
			tt.first(c)
			c.Write("t1", 0x1000, 4, 1)

			pending := c.Pending()
			require.Len(t, pending, 2)
			require.Equal(t, coalesce.Write, pending[1].Kind)
			require.Zero(t, c.Stats().Merged)
		})
	}
}

func TestCoalescer_FetchBreaksMerge(t *testing.T) {
	c := newCoalescer(t, new(MockSink), 4)
	c.Read("t1", 0x1000, 4, 1)
	c.Fetch(0x400003, 2, 1)
	c.Write("t1", 0x1000, 4, 1)

	require.Equal(t, []coalesce.Kind{coalesce.Read, coalesce.Fetch, coalesce.Write}, kinds(c.Pending()))
}

func TestCoalescer_FlushWhenFullPreservesOrder(t *testing.T) {
	var order []string
	sink := new(MockSink)
	sink.On("Load", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, "load")
	}).Return()
	sink.On("Store", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, "store")
	}).Return()

	c := newCoalescer(t, sink, 2)
	c.Read("", 0x1000, 4, 1)
	c.Write("", 0x2000, 4, 1)
	require.Empty(t, order, "nothing is committed until the buffer is full")

	c.Read("", 0x3000, 4, 1)
	require.Equal(t, []string{"load", "store"}, order)
	require.Len(t, c.Pending(), 1)

	c.Flush()
	require.Equal(t, []string{"load", "store", "load"}, order)
}

func TestCoalescer_FetchesAreNotCommitted(t *testing.T) {
	sink := new(MockSink)
	c := newCoalescer(t, sink, 2)
	c.Fetch(0x400000, 4, 1)
	c.Fetch(0x400004, 4, 1)
	c.Fetch(0x400008, 4, 1)
	c.Flush()

	sink.AssertNotCalled(t, "Load", mock.Anything, mock.Anything, mock.Anything)
	require.Zero(t, c.Stats().Committed)
	require.Equal(t, uint64(2), c.Stats().Flushes)
}

func TestCoalescer_EmptyAccessDropped(t *testing.T) {
	c := newCoalescer(t, new(MockSink), 2)
	c.Read("", 0x1000, 0, 1)
	c.Write("", 0x1000, 0, 1)
	require.Empty(t, c.Pending())
}

func kinds(events []coalesce.Event) []coalesce.Kind {
	out := make([]coalesce.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "fetch", coalesce.Fetch.String())
	require.Equal(t, "read", coalesce.Read.String())
	require.Equal(t, "write", coalesce.Write.String())
	require.Equal(t, "modify", coalesce.Modify.String())
	require.Equal(t, "unknown", coalesce.Kind(42).String())
}
