package transport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// TestablePort implements Porter with configurable behaviour for tests.
// It mimics a serial port with a read timeout: Read returns (0, nil) when
// no data is buffered, unless BlockReads is enabled, in which case it waits
// for data, an injected error, or Close.
type TestablePort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	readErrs []error
	writeErr error
	closeErr error

	closed      bool
	blockReads  bool
	readTimeout time.Duration

	readCalls  int
	writeCalls int
}

// NewTestablePort creates a TestablePort with an empty buffer.
func NewTestablePort() *TestablePort {
	t := &TestablePort{}
	t.readCond = sync.NewCond(&t.mu)
	return t
}

// Read returns buffered data, an injected error, or (0, nil) when idle.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.readCalls++

	for {
		if t.closed {
			return 0, errors.New("serial port closed")
		}
		if len(t.readErrs) > 0 {
			err := t.readErrs[0]
			t.readErrs = t.readErrs[1:]
			return 0, err
		}
		if t.readBuf.Len() > 0 {
			return t.readBuf.Read(p)
		}
		if !t.blockReads {
			return 0, nil
		}
		t.readCond.Wait()
	}
}

// Write captures data, or returns the injected write error.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writeCalls++

	if t.closed {
		return 0, errors.New("serial port closed")
	}
	if t.writeErr != nil {
		err := t.writeErr
		t.writeErr = nil
		return 0, err
	}
	return t.writeBuf.Write(p)
}

// Close marks the port as closed and wakes any blocked readers.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.readCond.Broadcast()
	return t.closeErr
}

// SetReadTimeout implements TimeoutPorter.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = timeout
	return nil
}

// SetBlockReads switches Read between timeout and blocking semantics.
func (t *TestablePort) SetBlockReads(block bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockReads = block
	t.readCond.Broadcast()
}

// AddReadData appends data to be returned by subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readBuf.Write(data)
	t.readCond.Broadcast()
}

// PushReadError queues an error to be returned by the next Read call.
// Queued errors take precedence over buffered data.
func (t *TestablePort) PushReadError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readErrs = append(t.readErrs, err)
	t.readCond.Broadcast()
}

// SetWriteError makes the next Write call fail with err.
func (t *TestablePort) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// Written returns a copy of all data written to the port.
func (t *TestablePort) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.writeBuf.Bytes()...)
}

// Closed reports whether Close was called.
func (t *TestablePort) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// ReadCalls reports the number of Read calls.
func (t *TestablePort) ReadCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readCalls
}
