package ingest

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockConn implements the net.Conn interface for testing purposes
type MockConn struct {
	mock.Mock
}

func (m *MockConn) Read(b []byte) (n int, err error) {
	args := m.Called(b)
	return args.Int(0), args.Error(1)
}

func (m *MockConn) Write(b []byte) (n int, err error) {
	args := m.Called(b)
	return args.Int(0), args.Error(1)
}

func (m *MockConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConn) LocalAddr() net.Addr {
	args := m.Called()
	return args.Get(0).(net.Addr)
}

func (m *MockConn) RemoteAddr() net.Addr {
	args := m.Called()
	return args.Get(0).(net.Addr)
}

func (m *MockConn) SetDeadline(t time.Time) error {
	args := m.Called(t)
	return args.Error(0)
}

func (m *MockConn) SetReadDeadline(t time.Time) error {
	args := m.Called(t)
	return args.Error(0)
}

func (m *MockConn) SetWriteDeadline(t time.Time) error {
	args := m.Called(t)
	return args.Error(0)
}

func socketPath(t *testing.T) string {
	t.Helper()
	// Keep the path short: sun_path is limited to 108 bytes.
	dir, err := os.MkdirTemp("", "ingest")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	return filepath.Join(dir, "s.sock")
}

func nopHandler(context.Context, io.Reader) error {
	return nil
}

func TestServer_Listen(t *testing.T) {
	t.Run("should start UDS listener without errors", func(t *testing.T) {
		logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
		s := NewServer(socketPath(t), nopHandler, logger)

		err := s.Listen(context.Background())
		assert.Nil(t, err)
		assert.Nil(t, s.Shutdown())
	})
}

func TestServer_ProcessConnection(t *testing.T) {
	t.Run("should write readiness message and hand over the stream", func(t *testing.T) {
		logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
		var handled io.Reader
		s := NewServer(socketPath(t), func(_ context.Context, r io.Reader) error {
			handled = r
			return nil
		}, logger)

		s.NotifyReadiness()

		// Test that the readyCh channel is closed.
		assert.Panics(t, func() {
			s.readyCh <- struct{}{}
		})

		mockConn := new(MockConn)
		mockConn.On("Write", []byte{ReadyMsg}).Return(len([]byte{ReadyMsg}), nil)
		mockConn.On("Close").Return(nil)
		mockConn.On("SetReadDeadline", mock.Anything).Return(nil)
		mockConn.On("Read", mock.AnythingOfType("[]uint8")).Return(1, nil)

		s.processConnection(context.Background(), mockConn)

		mockConn.AssertExpectations(t)
		assert.Equal(t, mockConn, handled)
	})

	t.Run("should not hand over a stream when the context is canceled", func(t *testing.T) {
		logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
		called := false
		s := NewServer(socketPath(t), func(context.Context, io.Reader) error {
			called = true
			return nil
		}, logger)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		mockConn := new(MockConn)
		mockConn.On("Close").Return(nil)

		s.processConnection(ctx, mockConn)

		mockConn.AssertExpectations(t)
		mockConn.AssertNotCalled(t, "Write", mock.Anything)
		assert.False(t, called)
	})
}

func TestServer_Stream(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	received := make(chan string, 1)
	s := NewServer(socketPath(t), func(_ context.Context, r io.Reader) error {
		b, err := io.ReadAll(r)
		received <- string(b)
		return err
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Listen(ctx))
	s.NotifyReadiness()

	conn, err := net.Dial("unix", s.socketPath)
	require.NoError(t, err)

	buf := make([]byte, 1)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, byte(ReadyMsg), buf[0])

	_, err = conn.Write([]byte("alloc 0x10 8\n"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	select {
	case got := <-received:
		require.Equal(t, "alloc 0x10 8\n", got)
	case <-time.After(5 * time.Second):
		t.Fatal("stream not handled")
	}

	require.NoError(t, s.Shutdown())
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_Shutdown(t *testing.T) {
	t.Run("should properly shut down listener and remove socket", func(t *testing.T) {
		logger := zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
		s := NewServer(socketPath(t), nopHandler, logger)

		os.Remove(s.socketPath)
		ln, err := net.Listen("unix", s.socketPath)
		assert.Nil(t, err)
		s.ln = ln

		go s.acceptConnections(context.Background())

		err = s.Shutdown()
		assert.Nil(t, err)

		fi, err := os.Stat(s.socketPath)
		assert.Nil(t, fi)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
