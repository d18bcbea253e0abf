package eventpublisher

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newBufferLogger(buf *safeBuffer) zerolog.Logger {
	return zerolog.New(buf)
}
