package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// acceptRetryDelay spaces out retries after a failed Accept.
const acceptRetryDelay = 50 * time.Millisecond

// Listener accepts player connections and serves each on its own goroutine.
type Listener struct {
	addr     string
	engine   *Engine
	listener net.Listener
	nextID   atomic.Uint64
	wg       sync.WaitGroup
}

// NewListener creates a listener for addr. Every accepted connection shares
// engine.
func NewListener(addr string, engine *Engine) *Listener {
	if engine == nil {
		engine = &Engine{}
	}
	return &Listener{
		addr:   addr,
		engine: engine.withDefaults(),
	}
}

// Engine returns the engine shared by accepted connections, with defaults
// filled in.
func (l *Listener) Engine() *Engine {
	return l.engine
}

// Listen binds the socket. Start calls it when it has not been called.
func (l *Listener) Listen(ctx context.Context) error {
	// SO_REUSEADDR lets a restarted server rebind while old sockets linger
	lc := ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to start listener on %s: %w", l.addr, err)
	}
	l.listener = ln
	log.Info().Str("addr", ln.Addr().String()).Msg("listener started")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Start accepts connections until ctx is cancelled, then waits for the
// connections it started to finish.
func (l *Listener) Start(ctx context.Context) error {
	if l.listener == nil {
		if err := l.Listen(ctx); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	defer l.wg.Wait()
	for {
		nc, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info().Msg("listener stopping")
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Msg("failed to accept connection")
			time.Sleep(acceptRetryDelay)
			continue
		}

		id := l.nextID.Add(1)
		conn := NewConn(id, nc, l.engine)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			_ = conn.Serve(ctx)
		}()
	}
}

// Stop closes the listening socket. Open connections are left to the
// registry.
func (l *Listener) Stop() {
	if l.listener != nil {
		l.listener.Close()
	}
}
