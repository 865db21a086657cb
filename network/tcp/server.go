package tcp

import (
	"fmt"
	"net"
	"sync"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	mafmt "github.com/multiformats/go-multiaddr-fmt"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/rambollwong/rainbowcat/types"
	catutil "github.com/rambollwong/rainbowcat/util"
	"github.com/rambollwong/rainbowflow/core/event"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/network"
	"github.com/rambollwong/rainbowflow/core/reuse"
	"github.com/rambollwong/rainbowflow/core/safe"
	"github.com/rambollwong/rainbowflow/log"
	"github.com/rambollwong/rainbowflow/util"
	"github.com/rambollwong/rainbowlog"
)

const acceptRetryDelay = 5 * time.Millisecond

var (
	listenMatcher = mafmt.And(mafmt.IP, mafmt.Base(ma.P_TCP))

	_ network.Server = (*Server)(nil)
)

// CanListen return whether address can be listened on.
func CanListen(addr ma.Multiaddr) bool {
	return listenMatcher.Matches(addr)
}

// Server accepts TCP connections and hands each of them out as a Socket.
// Accepting happens on helper goroutines; every accepted connection is
// turned into a Socket on the loop.
type Server struct {
	mu sync.RWMutex

	loop *loop.Loop
	cfg  *config

	state     network.ServerState
	binding   bool
	listeners []manet.Listener
	conns     *types.Set[*Socket]

	connH  event.Hooks[*Socket]
	errH   event.Hooks[error]
	closeH event.Once[struct{}]

	closeC    chan struct{}
	closeOnce sync.Once

	logger *rainbowlog.Logger
}

// CreateServer creates a Server on l. onConnection, if not nil, is called for
// every accepted socket.
func CreateServer(l *loop.Loop, onConnection func(s *Socket), opt ...Option) (*Server, error) {
	cfg := defaultConfig()
	if err := cfg.apply(opt...); err != nil {
		return nil, err
	}
	s := &Server{
		loop:      l,
		cfg:       cfg,
		state:     network.Created,
		listeners: make([]manet.Listener, 0, 2),
		conns:     types.NewSet[*Socket](),
		closeC:    make(chan struct{}),
		logger:    cfg.logger,
	}
	if s.logger == nil {
		s.logger = log.Sub(loggerLabel)
	}
	s.closeH.Post = l.Post
	if onConnection != nil {
		s.connH.Add(onConnection)
	}
	return s, nil
}

// Listen binds the server to port on all IPv4 interfaces. Port 0 picks an
// ephemeral port; ListenAddresses tells which one.
func (s *Server) Listen(port int, onListening func()) error {
	if port < 0 || port > 65535 {
		return ErrInvalidPort
	}
	addr, err := ma.NewMultiaddr(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", port))
	if err != nil {
		return err
	}
	return s.ListenMultiaddr(onListening, addr)
}

// ListenMultiaddr binds the server to the given addresses. Binding happens
// off the loop; onListening is called once every address is bound.
// A bind failure is reported through OnError and stops the server.
func (s *Server) ListenMultiaddr(onListening func(), addresses ...ma.Multiaddr) error {
	switch {
	case s.state == network.Listening || s.binding:
		return ErrServerListening
	case s.state == network.Stopped:
		return ErrServerClosed
	}
	if len(addresses) == 0 {
		return ErrEmptyListenAddress
	}
	for _, address := range addresses {
		if !CanListen(address) {
			return ErrWrongTcpAddr
		}
	}

	s.binding = true
	type listenResult struct {
		listeners []manet.Listener
		err       error
	}
	loop.Submit(s.loop, func() listenResult {
		ls, err := s.listenTCP(addresses)
		return listenResult{listeners: ls, err: err}
	}, func(r listenResult) {
		s.binding = false
		if r.err != nil {
			s.state = network.Stopped
			s.logger.Error().Msg("failed to listen").Err(r.err).Done()
			s.errH.Fire(r.err)
			s.maybeClosed()
			return
		}
		if s.state == network.Stopped {
			// closed while binding
			for _, listener := range r.listeners {
				_ = listener.Close()
			}
			return
		}
		s.mu.Lock()
		s.listeners = append(s.listeners, r.listeners...)
		s.mu.Unlock()
		s.state = network.Listening
		s.loop.Ref()
		for _, listener := range r.listeners {
			listener := listener
			safe.LoggerGo(s.logger, func() {
				s.acceptLoop(listener)
			})
		}
		if onListening != nil {
			onListening()
		}
	})
	return nil
}

// listenTCP binds every address. Either all addresses are bound or none.
func (s *Server) listenTCP(addresses []ma.Multiaddr) ([]manet.Listener, error) {
	listeners := make([]manet.Listener, 0, len(addresses))
	listenCfg := reuse.ListenConfig(s.cfg.reusePort)
	closeAll := func() {
		for _, listener := range listeners {
			_ = listener.Close()
		}
	}
	for _, address := range addresses {
		nw, addr, err := manet.DialArgs(address)
		if err != nil {
			closeAll()
			return nil, err
		}
		netListener, err := listenCfg.Listen(s.cfg.ctx, nw, addr)
		if err != nil {
			s.logger.Warn().
				Msg("failed to listen on address").
				Str("address", addr).
				Err(err).
				Done()
			closeAll()
			return nil, err
		}
		listener, err := manet.WrapNetListener(netListener)
		if err != nil {
			_ = netListener.Close()
			closeAll()
			return nil, err
		}
		listeners = append(listeners, listener)
		s.logger.Info().
			Msg("listening...").
			Str("on", listener.Multiaddr().String()).
			Done()
	}
	return listeners, nil
}

// acceptLoop receives new connections until the listener was closed.
func (s *Server) acceptLoop(listener manet.Listener) {
	for {
		select {
		case <-s.closeC:
			return
		default:
		}
		c, err := listener.Accept()
		if err != nil {
			if util.IsConnClosedError(err) {
				return
			}
			s.logger.Error().Msg("listener accept err").Err(err).Done()
			time.Sleep(acceptRetryDelay)
			continue
		}
		s.loop.Post(func() {
			s.accepted(c)
		})
	}
}

func (s *Server) accepted(c manet.Conn) {
	if s.state != network.Listening {
		_ = c.Close()
		return
	}
	if s.cfg.blacklist != nil && s.cfg.blacklist.BlackAddr(c.RemoteAddr()) {
		s.logger.Info().Msg("connection remote address in blacklist, refused").
			Str("remote_address", c.RemoteAddr().String()).
			Done()
		_ = c.Close()
		return
	}
	if s.cfg.maxConnections > 0 && int(s.conns.Size()) >= s.cfg.maxConnections {
		s.logger.Warn().Msg("max connections reached, refused").
			Str("remote_address", c.RemoteAddr().String()).
			Int("max", s.cfg.maxConnections).
			Done()
		_ = c.Close()
		return
	}

	sock := newSocket(s.loop, network.Inbound, s.cfg, s.cfg.pauseOnConnect)
	sock.established(c)
	s.conns.Put(sock)
	sock.OnClose(func() {
		s.conns.Remove(sock)
		s.maybeClosed()
	})
	s.logger.Info().Msg("new connection accepted").
		Str("local_address", c.LocalMultiaddr().String()).
		Str("remote_address", c.RemoteMultiaddr().String()).
		Done()
	s.connH.Fire(sock)
}

// maybeClosed fires close on a later turn, after the close listeners of the
// last socket ran.
func (s *Server) maybeClosed() {
	if s.state == network.Stopped && s.conns.Size() == 0 && !s.closeH.Fired() {
		s.loop.Post(func() {
			s.closeH.Fire(struct{}{})
		})
	}
}

// Close stops accepting connections. Sockets already handed out stay open;
// onClose is called once all of them were closed.
func (s *Server) Close(onClose func()) error {
	switch {
	case s.state == network.Stopped:
		return ErrServerClosed
	case s.state != network.Listening && !s.binding:
		return ErrServerNotListening
	}
	wasListening := s.state == network.Listening
	s.state = network.Stopped
	s.closeOnce.Do(func() {
		close(s.closeC)
	})
	s.mu.Lock()
	for _, listener := range s.listeners {
		_ = listener.Close()
	}
	s.mu.Unlock()
	if wasListening {
		s.loop.Unref()
	}
	s.logger.Info().Msg("server closed").
		Int("open_connections", int(s.conns.Size())).
		Done()
	if onClose != nil {
		s.closeH.Add(event.Void(onClose))
	}
	s.maybeClosed()
	return nil
}

// OnConnection registers fn to be called for every accepted socket.
func (s *Server) OnConnection(fn func(sock network.Socket)) func() {
	if fn == nil {
		return func() {}
	}
	return s.connH.Add(func(sock *Socket) {
		fn(sock)
	})
}

// OnError registers fn to be called when listening fails.
func (s *Server) OnError(fn func(err error)) func() {
	return s.errH.Add(fn)
}

// OnClose registers fn to be called once the server stopped and every
// socket it produced was closed.
func (s *Server) OnClose(fn func()) func() {
	return s.closeH.Add(event.Void(fn))
}

// ListenAddresses return the list of the local addresses for listeners.
func (s *Server) ListenAddresses() []ma.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return catutil.SliceTransformType(s.listeners, func(_ int, item manet.Listener) ma.Multiaddr {
		return item.Multiaddr()
	})
}

// Address returns the address of the first listener, or nil.
func (s *Server) Address() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// Port returns the port of the first listener, or 0.
func (s *Server) Port() int {
	if addr, ok := s.Address().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// ServerState returns the lifecycle state.
func (s *Server) ServerState() network.ServerState {
	return s.state
}

// Connections returns the number of open sockets.
func (s *Server) Connections() int {
	return int(s.conns.Size())
}
