package server

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportReceive(t *testing.T) {
	tr := NewTransport(strings.NewReader("\n{\"a\":1}\r\n  \n{\"b\":2}"), io.Discard)

	line, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(line))

	line, err = tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(line), "last line without a newline")

	_, err = tr.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTransportLongLine(t *testing.T) {
	long := `{"x":"` + strings.Repeat("a", 256*1024) + `"}`
	tr := NewTransport(strings.NewReader(long+"\n"), io.Discard)

	line, err := tr.Receive()
	require.NoError(t, err)
	assert.Len(t, line, len(long))
}

func TestTransportSendIsLineFramed(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	tr := NewTransport(strings.NewReader(""), writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.Send(map[string]any{"id": i, "text": "line\nbreak"}))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 50, "embedded newlines are escaped")
}

func TestTransportSendError(t *testing.T) {
	tr := NewTransport(strings.NewReader(""), writerFunc(func([]byte) (int, error) {
		return 0, errors.New("pipe closed")
	}))
	err := tr.Send(map[string]any{})
	assert.ErrorContains(t, err, "pipe closed")
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
