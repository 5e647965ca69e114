package session

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

const inputBuffer = 512

// Input is a non-blocking byte source.
type Input interface {
	ReadByte() (byte, bool)
}

// ReaderInput adapts a blocking io.Reader into an Input. A goroutine reads
// ahead into a bounded channel; ReadByte never waits.
type ReaderInput struct {
	ch chan byte

	mu   sync.Mutex
	err  error
	done chan struct{}
}

func NewReaderInput(r io.Reader) *ReaderInput {
	in := &ReaderInput{
		ch:   make(chan byte, inputBuffer),
		done: make(chan struct{}),
	}
	go in.pump(bufio.NewReader(r))
	return in
}

func (in *ReaderInput) pump(r *bufio.Reader) {
	defer close(in.done)
	defer close(in.ch)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				in.mu.Lock()
				in.err = err
				in.mu.Unlock()
			}
			return
		}
		in.ch <- b
	}
}

func (in *ReaderInput) ReadByte() (byte, bool) {
	select {
	case b, ok := <-in.ch:
		return b, ok
	default:
		return 0, false
	}
}

// Exhausted reports whether the reader has ended and every byte has been
// consumed.
func (in *ReaderInput) Exhausted() bool {
	select {
	case <-in.done:
		return len(in.ch) == 0
	default:
		return false
	}
}

// Err returns the read error that stopped the reader, if any. io.EOF is not
// an error.
func (in *ReaderInput) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}

type noInput struct{}

func (noInput) ReadByte() (byte, bool) { return 0, false }
