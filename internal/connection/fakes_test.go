package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

// fakeTransport is a scriptable transport: tests feed it inbound frames and
// read errors, and inspect what was written.
type fakeTransport struct {
	mu         sync.Mutex
	written    [][]byte
	failWrites bool

	in        chan readResult
	closed    chan struct{}
	closeOnce sync.Once
}

type readResult struct {
	data []byte
	err  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan readResult, 64),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case r := <-t.in:
		return r.data, r.err
	case <-t.closed:
		return nil, fmt.Errorf("%w: transport closed", domain.ErrTransport)
	}
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWrites {
		return fmt.Errorf("%w: write refused", domain.ErrTransport)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	t.written = append(t.written, buf)
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) deliver(data []byte) {
	t.in <- readResult{data: data}
}

func (t *fakeTransport) failRead(err error) {
	t.in <- readResult{err: err}
}

func (t *fakeTransport) setFailWrites(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failWrites = fail
}

func (t *fakeTransport) writtenMessages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.written))
	copy(out, t.written)
	return out
}

// scriptedDialer pops one outcome per dial. With defaultOK it hands out
// fresh transports once the script runs dry. Every call is announced on the
// dialed channel.
type scriptedDialer struct {
	mu        sync.Mutex
	outcomes  []dialOutcome
	calls     int
	defaultOK bool

	// gate, when set, blocks each dial until a token arrives.
	gate chan struct{}

	dialed chan struct{}
}

type dialOutcome struct {
	transport *fakeTransport
	err       error
}

func newScriptedDialer() *scriptedDialer {
	return &scriptedDialer{dialed: make(chan struct{}, 64)}
}

func (d *scriptedDialer) script(outcomes ...dialOutcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = append(d.outcomes, outcomes...)
}

func (d *scriptedDialer) Dial(ctx context.Context, endpoint string, opts domain.EffectiveOptions) (Transport, error) {
	if d.gate != nil {
		<-d.gate
	}

	d.mu.Lock()
	d.calls++
	var out dialOutcome
	switch {
	case len(d.outcomes) > 0:
		out = d.outcomes[0]
		d.outcomes = d.outcomes[1:]
	case d.defaultOK:
		out = dialOutcome{transport: newFakeTransport()}
	default:
		out = dialOutcome{err: fmt.Errorf("%w: no outcome scripted", domain.ErrTransport)}
	}
	d.mu.Unlock()

	d.dialed <- struct{}{}

	if out.err != nil {
		return nil, out.err
	}
	return out.transport, nil
}

func (d *scriptedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
