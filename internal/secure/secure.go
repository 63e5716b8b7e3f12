// Package secure provides zero-on-dispose containers for private key
// material: the private key, chain code, and master-key-plus-chain-code
// buffers an Account owns.
package secure

import (
	"crypto/rand"
	"io"
	"runtime"
	"sync"
)

// Bytes wraps a sensitive byte slice, locking it in physical memory
// where the OS allows it and guaranteeing the contents are zeroed
// before the buffer is released, even if the owner forgets to call
// Destroy.
type Bytes struct {
	mu     sync.Mutex
	data   []byte
	locked bool
}

// New allocates a zeroed secure buffer of the given size.
func New(size int) *Bytes {
	data := make([]byte, size)
	b := &Bytes{data: data, locked: mlock(data)}
	runtime.SetFinalizer(b, (*Bytes).Destroy)
	return b
}

// FromSlice copies data into a new secure buffer. The caller's slice is
// left untouched; callers holding raw secret bytes should zero their own
// copy separately once this constructor returns.
func FromSlice(data []byte) *Bytes {
	b := New(len(data))
	copy(b.data, data)
	return b
}

// RandomBytes returns n cryptographically random bytes backed by a
// secure buffer.
func RandomBytes(n int) (*Bytes, error) {
	b := New(n)
	if _, err := io.ReadFull(rand.Reader, b.data); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// Bytes returns the underlying slice. Returns nil once destroyed.
func (b *Bytes) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Len returns the buffer length, or 0 once destroyed.
func (b *Bytes) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Locked reports whether the OS accepted the mlock request.
func (b *Bytes) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Destroy overwrites the buffer with zeros and releases the memory
// lock. Safe to call multiple times and safe to call concurrently with
// Bytes/Len.
func (b *Bytes) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return
	}
	Wipe(b.data)
	if b.locked {
		munlock(b.data)
		b.locked = false
	}
	b.data = nil
	runtime.SetFinalizer(b, nil)
}

// Wipe overwrites data with zeros in place. Used for stack-local secret
// copies (e.g. an intermediate seed) that are not held in a Bytes
// container for their whole lifetime.
func Wipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
