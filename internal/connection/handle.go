package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/classify"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/metrics"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/router"
)

const cmdBufferSize = 256

// --- Command types ---

type handleCmd interface{ handleCmd() }

type cmdSend struct {
	msg *domain.Message
}

func (cmdSend) handleCmd() {}

type cmdDisconnect struct {
	doneCh chan struct{}
}

func (cmdDisconnect) handleCmd() {}

type cmdAddListener struct {
	listener domain.EventListener
}

func (cmdAddListener) handleCmd() {}

type cmdDialResult struct {
	gen       uint64
	transport Transport
	err       error
}

func (cmdDialResult) handleCmd() {}

type cmdFrame struct {
	gen  uint64
	data []byte
}

func (cmdFrame) handleCmd() {}

type cmdTransportClosed struct {
	gen   uint64
	err   error
	clean bool
}

func (cmdTransportClosed) handleCmd() {}

type cmdReconnectDue struct {
	gen uint64
}

func (cmdReconnectDue) handleCmd() {}

// --- Handle ---

// Handle owns one endpoint's connection lifecycle: dialing, the reconnect
// timer, the outbound queue, and the inbound pipeline. All state is confined
// to a single goroutine fed by a command channel; inbound frames are
// classified and dispatched from that goroutine, which is what guarantees
// per-connection FIFO delivery.
type Handle struct {
	endpoint string
	opts     domain.EffectiveOptions

	dialer Dialer
	clock  clockwork.Clock
	hook   *classify.Hook
	router *router.Router
	agg    *metrics.Aggregator

	cmdCh chan handleCmd
	done  chan struct{}

	// cleanupOnce guards registry-side resource release; both the
	// registry and the terminal path may trigger it.
	cleanupOnce sync.Once

	// stateVal mirrors the actor-owned state for lock-free Status reads.
	stateVal atomic.Value

	// Actor-owned fields below; touched only from run().
	state      domain.ConnectionState
	reconnect  domain.ReconnectState
	queue      *outboundQueue
	transport  Transport
	gen        uint64
	timer      clockwork.Timer
	listeners  []domain.EventListener
	onTerminal func(*Handle)
}

type handleConfig struct {
	endpoint   string
	opts       domain.EffectiveOptions
	dialer     Dialer
	clock      clockwork.Clock
	hook       *classify.Hook
	router     *router.Router
	agg        *metrics.Aggregator
	listeners  []domain.EventListener
	onTerminal func(*Handle)
}

func newHandle(cfg handleConfig) *Handle {
	h := &Handle{
		endpoint:   cfg.endpoint,
		opts:       cfg.opts,
		dialer:     cfg.dialer,
		clock:      cfg.clock,
		hook:       cfg.hook,
		router:     cfg.router,
		agg:        cfg.agg,
		cmdCh:      make(chan handleCmd, cmdBufferSize),
		done:       make(chan struct{}),
		state:      domain.StateDisconnected,
		queue:      newOutboundQueue(cfg.opts.QueueCapacity),
		listeners:  cfg.listeners,
		onTerminal: cfg.onTerminal,
	}
	h.stateVal.Store(domain.StateDisconnected)
	return h
}

// start launches the actor goroutine and begins the first dial.
func (h *Handle) start() {
	go h.run()
	h.cmdCh <- cmdReconnectDue{gen: 0}
}

// Endpoint returns the endpoint this handle serves.
func (h *Handle) Endpoint() string { return h.endpoint }

// TenantID returns the tenant the handle was resolved for.
func (h *Handle) TenantID() string { return h.opts.TenantID }

// Status returns the current lifecycle state without blocking.
func (h *Handle) Status() domain.ConnectionState {
	return h.stateVal.Load().(domain.ConnectionState)
}

// Send hands a message to the handle. It never blocks: if the command buffer
// is saturated the message is dropped and counted.
func (h *Handle) Send(msg *domain.Message) error {
	select {
	case <-h.done:
		return domain.ErrHandleClosed
	default:
	}

	select {
	case h.cmdCh <- cmdSend{msg: msg}:
		return nil
	case <-h.done:
		return domain.ErrHandleClosed
	default:
		h.agg.Record(h.endpoint, metrics.EventDropped)
		slog.Warn("Command buffer saturated, dropping message",
			"endpoint", h.endpoint, "message_id", msg.ID)
		return nil
	}
}

// Disconnect cancels any pending reconnect and closes the handle from any
// state. It blocks until the actor has shut down.
func (h *Handle) Disconnect() {
	doneCh := make(chan struct{})
	select {
	case h.cmdCh <- cmdDisconnect{doneCh: doneCh}:
		select {
		case <-doneCh:
		case <-h.done:
		}
	case <-h.done:
	}
}

// AddListener registers a lifecycle event listener. Listeners are invoked
// from the handle's goroutine and must not block.
func (h *Handle) AddListener(l domain.EventListener) {
	select {
	case h.cmdCh <- cmdAddListener{listener: l}:
	case <-h.done:
	}
}

// --- Actor loop ---

func (h *Handle) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdSend:
			h.handleSend(c.msg)
		case cmdDisconnect:
			h.handleDisconnect()
			close(c.doneCh)
		case cmdAddListener:
			h.listeners = append(h.listeners, c.listener)
		case cmdDialResult:
			h.handleDialResult(c)
		case cmdFrame:
			h.handleFrame(c)
		case cmdTransportClosed:
			h.handleTransportClosed(c)
		case cmdReconnectDue:
			h.handleReconnectDue(c)
		}

		if h.state.Terminal() {
			return
		}
	}
}

func (h *Handle) setState(state domain.ConnectionState) {
	h.state = state
	h.stateVal.Store(state)
	metrics.ConnectionTransitions.WithLabelValues(string(state)).Inc()
	h.emit(domain.Event{
		Kind:     domain.EventStatusChanged,
		Endpoint: h.endpoint,
		TenantID: h.opts.TenantID,
		State:    state,
		At:       h.clock.Now(),
	})
}

func (h *Handle) emit(ev domain.Event) {
	for _, l := range h.listeners {
		l(ev)
	}
}

// beginDial starts a connection attempt. Entering Connecting invalidates any
// stale timer or transport via the generation counter.
func (h *Handle) beginDial() {
	h.stopTimer()
	h.gen++
	gen := h.gen
	h.setState(domain.StateConnecting)

	go func() {
		transport, err := h.dialer.Dial(context.Background(), h.endpoint, h.opts)
		select {
		case h.cmdCh <- cmdDialResult{gen: gen, transport: transport, err: err}:
		case <-h.done:
			if transport != nil {
				_ = transport.Close()
			}
		}
	}()
}

func (h *Handle) handleDialResult(c cmdDialResult) {
	if c.gen != h.gen || h.state != domain.StateConnecting {
		// Stale attempt; a newer dial or a disconnect superseded it.
		if c.transport != nil {
			_ = c.transport.Close()
		}
		return
	}

	if c.err != nil {
		h.agg.Record(h.endpoint, metrics.EventError)
		slog.Warn("Connection attempt failed",
			"endpoint", h.endpoint, "attempt", h.reconnect.Attempt, "error", c.err)
		h.handleUncleanClose(c.err)
		return
	}

	h.transport = c.transport
	h.reconnect = domain.ReconnectState{}
	h.setState(domain.StateConnected)
	slog.Info("Connection established", "endpoint", h.endpoint)

	h.flushQueue()
	if h.state != domain.StateConnected {
		// The flush hit a dead transport and already drove a close.
		return
	}

	go h.readLoop(h.gen, h.transport)
}

// flushQueue drains messages queued while disconnected, oldest first. Runs
// exactly once per successful open.
func (h *Handle) flushQueue() {
	for {
		msg := h.queue.pop()
		if msg == nil {
			return
		}
		if !h.writeMessage(msg) {
			return
		}
	}
}

// writeMessage encodes and writes one message. On a transport failure it
// requeues the message and drives the unclean-close path, returning false.
func (h *Handle) writeMessage(msg *domain.Message) bool {
	data, err := msg.Encode()
	if err != nil {
		h.agg.Record(h.endpoint, metrics.EventError)
		slog.Error("Dropping unencodable message", "endpoint", h.endpoint, "message_id", msg.ID, "error", err)
		return true
	}

	if err := h.transport.WriteMessage(data); err != nil {
		h.queue.pushFront(msg)
		h.agg.Record(h.endpoint, metrics.EventError)
		h.handleUncleanClose(err)
		return false
	}

	h.agg.Record(h.endpoint, metrics.EventSent)
	return true
}

func (h *Handle) readLoop(gen uint64, transport Transport) {
	for {
		data, err := transport.ReadMessage()
		if err != nil {
			clean := errors.Is(err, io.EOF)
			select {
			case h.cmdCh <- cmdTransportClosed{gen: gen, err: err, clean: clean}:
			case <-h.done:
			}
			return
		}
		select {
		case h.cmdCh <- cmdFrame{gen: gen, data: data}:
		case <-h.done:
			return
		}
	}
}

func (h *Handle) handleFrame(c cmdFrame) {
	if c.gen != h.gen {
		return
	}

	start := h.clock.Now()

	msg, err := domain.ParseMessage(c.data)
	if err != nil {
		metrics.ProtocolErrors.Inc()
		h.agg.Record(h.endpoint, metrics.EventError)
		slog.Warn("Dropping malformed frame", "endpoint", h.endpoint, "error", err)
		return
	}

	h.agg.Record(h.endpoint, metrics.EventReceived)

	if h.opts.ClassificationEnabled {
		msg = h.hook.Classify(context.Background(), msg)
	}
	h.router.Dispatch(context.Background(), h.endpoint, msg)

	h.agg.ObserveLatency(h.clock.Now().Sub(start))
}

func (h *Handle) handleSend(msg *domain.Message) {
	if h.state == domain.StateConnected {
		h.writeMessage(msg)
		return
	}

	evicted := h.queue.push(msg)
	if evicted != nil {
		metrics.QueueOverflows.Inc()
		h.agg.Record(h.endpoint, metrics.EventDropped)
		h.emit(domain.Event{
			Kind:     domain.EventQueueOverflow,
			Endpoint: h.endpoint,
			TenantID: h.opts.TenantID,
			State:    h.state,
			Dropped:  evicted,
			At:       h.clock.Now(),
		})
	}
}

func (h *Handle) handleTransportClosed(c cmdTransportClosed) {
	if c.gen != h.gen {
		return
	}

	h.closeTransport()

	if c.clean {
		slog.Info("Connection closed by peer", "endpoint", h.endpoint)
		h.setState(domain.StateClosed)
		h.terminate()
		return
	}

	h.agg.Record(h.endpoint, metrics.EventError)
	h.handleUncleanClose(c.err)
}

// handleUncleanClose advances the reconnect state and either schedules the
// next attempt or fails the handle once the budget is spent.
func (h *Handle) handleUncleanClose(cause error) {
	h.closeTransport()
	h.gen++

	h.reconnect.Attempt++
	h.reconnect.LastAttemptAt = h.clock.Now()

	if h.reconnect.Attempt >= h.opts.MaxReconnectAttempts {
		slog.Warn("Reconnect budget exhausted",
			"endpoint", h.endpoint,
			"attempts", h.reconnect.Attempt,
			"error", cause,
		)
		h.setState(domain.StateFailed)
		h.emit(domain.Event{
			Kind:     domain.EventTerminalError,
			Endpoint: h.endpoint,
			TenantID: h.opts.TenantID,
			State:    domain.StateFailed,
			Err:      fmt.Errorf("%w: %v", domain.ErrTerminal, cause),
			At:       h.clock.Now(),
		})
		h.terminate()
		return
	}

	delay := nextReconnectDelay(h.opts, h.reconnect.Attempt, h.reconnect.NextDelay, nil)
	h.reconnect.NextDelay = delay
	h.setState(domain.StateReconnecting)
	metrics.ReconnectAttempts.Inc()
	slog.Info("Scheduling reconnect",
		"endpoint", h.endpoint,
		"attempt", h.reconnect.Attempt,
		"delay", delay,
	)

	gen := h.gen
	h.stopTimer()
	h.timer = h.clock.AfterFunc(delay, func() {
		select {
		case h.cmdCh <- cmdReconnectDue{gen: gen}:
		case <-h.done:
		}
	})
}

// handleReconnectDue re-enters Connecting, ignoring timers from a
// superseded generation.
func (h *Handle) handleReconnectDue(c cmdReconnectDue) {
	if c.gen != h.gen {
		return
	}
	h.beginDial()
}

func (h *Handle) handleDisconnect() {
	h.stopTimer()
	if h.transport != nil {
		h.closeTransport()
	}
	h.gen++
	slog.Info("Connection closed", "endpoint", h.endpoint)
	h.setState(domain.StateClosed)
	h.terminate()
}

func (h *Handle) closeTransport() {
	if h.transport != nil {
		_ = h.transport.Close()
		h.transport = nil
	}
}

func (h *Handle) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// terminate marks the handle dead and notifies the registry. The actor loop
// unwinds after the current command.
func (h *Handle) terminate() {
	close(h.done)
	if h.onTerminal != nil {
		go h.onTerminal(h)
	}
}
