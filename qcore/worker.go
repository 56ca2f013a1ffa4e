package qcore

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// Worker is a minimal QuicServerWorker-style fanout, grounded on mvfst's
// server/QuicServerWorker.h: it demultiplexes datagrams to connections by
// connection ID and creates a new Connection for any datagram whose
// connection ID it does not yet know.
// It does not implement retry or stateless-reset-token verification; those
// remain injected collaborators a real socket-facing server wires in
// separately.
//
// Each connection is driven exclusively by one goroutine reading its own
// inbox channel, preserving the single-threaded-per-connection model
// while letting many connections make progress concurrently;
// golang.org/x/sync/errgroup supervises the pool and propagates the first
// fatal error out of Run.
type Worker struct {
	newConnection func() *Connection
	parseDestCID  func(data []byte) (protocol.ConnectionID, bool)
	inboxSize     int

	mu    sync.Mutex
	byCID map[string]*workerConn

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

type workerConn struct {
	conn  *Connection
	inbox chan ReadData
}

// NewWorker constructs a Worker. newConnection must return a freshly
// wired Connection (its own codec/driver/cidAllocator instances) each
// time it's called; parseDestCID extracts the routing connection ID from
// a raw datagram without needing a cipher, mirroring HandleFirstPacket's
// invariant-header parse.
func NewWorker(newConnection func() *Connection, parseDestCID func([]byte) (protocol.ConnectionID, bool)) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	return &Worker{
		newConnection: newConnection,
		parseDestCID:  parseDestCID,
		inboxSize:     64,
		byCID:         make(map[string]*workerConn),
		group:         group,
		ctx:           gctx,
		cancel:        cancel,
	}
}

// Dispatch routes one received datagram to its connection, creating a new
// one keyed by the client's chosen destination connection ID if this is
// the first datagram seen for it. The inbox is bounded; a connection that
// falls behind has datagrams dropped rather than unbounded memory growth.
func (w *Worker) Dispatch(rd ReadData) {
	cid, ok := w.parseDestCID(rd.Buffer)
	if !ok {
		return
	}
	key := string(cid)

	w.mu.Lock()
	wc, found := w.byCID[key]
	if !found {
		conn := w.newConnection()
		wc = &workerConn{conn: conn, inbox: make(chan ReadData, w.inboxSize)}
		w.byCID[key] = wc
		w.group.Go(func() error { return w.run(wc) })
	}
	w.mu.Unlock()

	select {
	case wc.inbox <- rd:
	default:
		conn := wc.conn
		conn.dropPacket("worker inbox full")
	}
}

// run drains one connection's inbox on its own goroutine until the
// connection closes, then re-keys the dispatch table under the
// server-issued connection ID once HandleFirstPacket has assigned one.
func (w *Worker) run(wc *workerConn) error {
	rekeyed := false
	for {
		select {
		case <-w.ctx.Done():
			return nil
		case rd, ok := <-wc.inbox:
			if !ok {
				return nil
			}
			if err := wc.conn.OnServerReadData(rd); err != nil {
				return err
			}
			if !rekeyed {
				if cid := wc.conn.ActiveServerConnID(); cid != nil {
					w.mu.Lock()
					w.byCID[string(cid)] = wc
					w.mu.Unlock()
					rekeyed = true
				}
			}
			if wc.conn.State() == StateClosed {
				w.forget(wc)
				return nil
			}
		}
	}
}

func (w *Worker) forget(wc *workerConn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, v := range w.byCID {
		if v == wc {
			delete(w.byCID, k)
		}
	}
}

// Wait blocks until every connection goroutine has returned (all
// connections closed) or one returns a fatal error, and shuts the worker
// down.
func (w *Worker) Wait() error {
	err := w.group.Wait()
	w.cancel()
	return err
}

// Close cancels every connection goroutine without waiting for them to
// reach a closed state on their own.
func (w *Worker) Close() {
	w.cancel()
}
