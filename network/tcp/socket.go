package tcp

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/jpillora/sizestr"
	ma "github.com/multiformats/go-multiaddr"
	mafmt "github.com/multiformats/go-multiaddr-fmt"
	manet "github.com/multiformats/go-multiaddr/net"
	pkgerrors "github.com/pkg/errors"
	"github.com/rambollwong/rainbowflow/core/event"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/network"
	"github.com/rambollwong/rainbowflow/log"
	"github.com/rambollwong/rainbowflow/streams"
	"github.com/rambollwong/rainbowflow/util"
	"github.com/rambollwong/rainbowlog"
)

const (
	loggerLabel = "NETWORK-TCP"

	// DefaultHost is the host Connect dials when none is given.
	DefaultHost = "localhost"
	// DefaultPort is the port Connect dials when none is given.
	DefaultPort = 80
)

var (
	dialMatcher = mafmt.TCP

	_ network.Socket = (*Socket)(nil)
)

// ConnectOptions describes the endpoint a Socket connects to.
// Zero values fall back to DefaultHost, DefaultPort and IPv4.
type ConnectOptions struct {
	Hostname string
	Port     int
	Family   network.Family
}

// Socket is a TCP connection driven by a loop. The readable half delivers
// received chunks, the writable half sends. Writes issued while the socket
// is still connecting are queued and flushed once the connection is up.
type Socket struct {
	*streams.Duplex[[]byte, []byte]
	*network.BasicStatus

	loop   *loop.Loop
	cfg    *config
	ctx    context.Context
	cancel context.CancelFunc

	src    *streams.Source[[]byte]
	sink   *streams.Sink[[]byte]
	reader *streams.ReadPump
	writer *streams.WritePump
	conn   net.Conn

	state      network.SocketState
	host       string
	port       int
	family     network.Family
	localAddr  ma.Multiaddr
	remoteAddr ma.Multiaddr
	refed      bool

	// job deferred until the connection is established
	pending func()

	connectH event.Once[struct{}]

	logger *rainbowlog.Logger
}

// Connect opens a socket to host:port over IPv4. onConnect may be nil.
func Connect(l *loop.Loop, port int, host string, onConnect func(s *Socket), opt ...Option) *Socket {
	return ConnectWithOptions(l, ConnectOptions{Hostname: host, Port: port}, onConnect, opt...)
}

// ConnectWithOptions opens a socket to the endpoint described by o.
// Failures, including invalid options, are reported through OnError.
func ConnectWithOptions(l *loop.Loop, o ConnectOptions, onConnect func(s *Socket), opt ...Option) *Socket {
	if o.Hostname == "" {
		o.Hostname = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	s, err := newOutboundSocket(l, o.Hostname, o.Port, o.Family, onConnect, opt...)
	if err != nil {
		return s
	}
	if o.Port < 0 || o.Port > 65535 {
		s.fail(ErrInvalidPort)
		return s
	}
	s.connect(net.JoinHostPort(o.Hostname, strconv.Itoa(o.Port)))
	return s
}

// ConnectMultiaddr opens a socket to a TCP multi-address such as /ip4/127.0.0.1/tcp/8080.
func ConnectMultiaddr(l *loop.Loop, addr ma.Multiaddr, onConnect func(s *Socket), opt ...Option) *Socket {
	if addr == nil || !dialMatcher.Matches(addr) {
		s, err := newOutboundSocket(l, "", 0, network.FamilyAny, onConnect, opt...)
		if err == nil {
			s.fail(ErrWrongTcpAddr)
		}
		return s
	}
	nw, hostPort, err := manet.DialArgs(addr)
	host, portStr, _ := net.SplitHostPort(hostPort)
	port, _ := strconv.Atoi(portStr)
	family := network.FamilyAny
	switch nw {
	case "tcp4":
		family = network.FamilyIPv4
	case "tcp6":
		family = network.FamilyIPv6
	}
	s, oerr := newOutboundSocket(l, host, port, family, onConnect, opt...)
	if oerr != nil {
		return s
	}
	if err != nil {
		s.fail(pkgerrors.WithMessage(ErrWrongTcpAddr, err.Error()))
		return s
	}
	s.connect(hostPort)
	return s
}

func newOutboundSocket(l *loop.Loop, host string, port int, family network.Family,
	onConnect func(s *Socket), opt ...Option) (*Socket, error) {
	cfg := defaultConfig()
	err := cfg.apply(opt...)
	if err != nil {
		// report the bad option on a socket built from the defaults
		cfg = defaultConfig()
	}
	s := newSocket(l, network.Outbound, cfg, false)
	s.host, s.port, s.family = host, port, family
	if onConnect != nil {
		s.connectH.Add(func(struct{}) { onConnect(s) })
	}
	if err != nil {
		s.fail(err)
	}
	return s, err
}

// newSocket creates a socket in the Connecting state.
func newSocket(l *loop.Loop, dir network.Direction, cfg *config, paused bool) *Socket {
	ctx, cancel := context.WithCancel(cfg.ctx)
	s := &Socket{
		BasicStatus: network.NewStatus(dir),
		loop:        l,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		state:       network.Connecting,
		logger:      cfg.logger,
	}
	if s.logger == nil {
		s.logger = log.Sub(loggerLabel)
	}
	s.connectH.Post = l.Post

	// options were validated by config.apply, the constructors cannot fail
	opts := cfg.streamOptions(paused)
	s.src, _ = streams.NewSource[[]byte](l, opts...)
	s.sink, _ = streams.NewSink[[]byte](l, s.write, s.final, opts...)
	s.Duplex, _ = streams.NewDuplex(l, s.src, s.sink, opts...)

	s.src.OnEnd(s.halfClosed)
	s.sink.OnFinish(s.halfClosed)
	s.Duplex.OnError(s.logError)
	s.Duplex.OnClose(s.teardown)
	return s
}

func (s *Socket) fail(err error) {
	s.loop.Post(func() {
		s.Destroy(err)
	})
}

func (s *Socket) connect(address string) {
	s.logger.Debug().Msg("connecting...").
		Str("address", address).
		Str("family", s.family.String()).
		Done()
	type dialResult struct {
		conn net.Conn
		err  error
	}
	loop.Submit(s.loop, func() dialResult {
		d := net.Dialer{}
		c, err := d.DialContext(s.ctx, s.family.Network(), address)
		return dialResult{conn: c, err: err}
	}, func(r dialResult) {
		if s.state != network.Connecting {
			// destroyed while dialing
			if r.conn != nil {
				_ = r.conn.Close()
			}
			return
		}
		if r.err != nil {
			if util.IsConnRefusedError(r.err) {
				s.logger.Debug().Msg("connection refused.").Str("address", address).Done()
			} else {
				s.logger.Warn().Msg("failed to connect.").
					Str("address", address).
					Err(r.err).
					Done()
			}
			s.Destroy(pkgerrors.Wrapf(r.err, "connect %s", address))
			return
		}
		s.established(r.conn)
	})
}

// established binds conn to the socket and starts the I/O pumps.
func (s *Socket) established(conn net.Conn) {
	s.conn = conn
	s.state = network.Connected
	s.SetEstablished(time.Now())
	s.loop.Ref()
	s.refed = true

	if mc, ok := conn.(manet.Conn); ok {
		s.localAddr, s.remoteAddr = mc.LocalMultiaddr(), mc.RemoteMultiaddr()
	} else {
		s.localAddr, _ = manet.FromNetAddr(conn.LocalAddr())
		s.remoteAddr, _ = manet.FromNetAddr(conn.RemoteAddr())
	}
	if s.host == "" || s.Direction() == network.Inbound {
		s.fillRemote(conn.RemoteAddr())
	}

	s.reader = streams.AttachReader(s.src, conn, s.cfg.readBufferSize)
	s.writer = streams.NewWritePump(s.loop, conn)
	s.sink.OnClose(s.writer.Stop)
	if !s.src.IsPaused() {
		s.reader.Start()
	}

	s.logger.Debug().Msg("connection established").
		Str("direction", s.Direction().String()).
		Str("local_address", s.LocalNetAddr().String()).
		Str("remote_address", s.RemoteNetAddr().String()).
		Done()

	if job := s.pending; job != nil {
		s.pending = nil
		job()
	}
	s.connectH.Fire(struct{}{})
}

func (s *Socket) fillRemote(addr net.Addr) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return
	}
	s.host = host
	s.port, _ = strconv.Atoi(portStr)
	s.family = network.FamilyIPv4
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		s.family = network.FamilyIPv6
	}
}

// write is the WriteFunc of the writable half.
func (s *Socket) write(chunks [][]byte, done func(error)) {
	if s.writer == nil {
		s.pending = func() { s.writer.Write(chunks, done) }
		return
	}
	s.writer.Write(chunks, done)
}

// final shuts down the sending direction of the connection.
func (s *Socket) final(done func(error)) {
	if s.writer == nil {
		s.pending = func() { s.writer.Final(done) }
		return
	}
	s.writer.Final(done)
}

func (s *Socket) logError(err error) {
	if s.state == network.Connecting {
		return
	}
	if util.IsConnResetError(err) {
		s.logger.Debug().Msg("connection reset by peer").
			Str("remote_address", s.RemoteNetAddr().String()).
			Done()
		return
	}
	if util.IsNetErrorTimeout(err) {
		s.logger.Debug().Msg("socket timeout").
			Str("remote_address", s.RemoteNetAddr().String()).
			Done()
		return
	}
	s.logger.Warn().Msg("socket error").Err(err).Done()
}

func (s *Socket) halfClosed() {
	if s.state == network.Connected {
		s.state = network.Closing
	}
}

func (s *Socket) teardown() {
	s.state = network.Closed
	s.SetClosed()
	s.cancel()
	s.pending = nil
	if s.writer != nil {
		s.writer.Stop()
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !isClosedErr(err) {
			s.logger.Debug().Msg("failed to close connection").Err(err).Done()
		}
	}
	if s.refed {
		s.refed = false
		s.loop.Unref()
	}
	s.logger.Debug().Msg("socket closed").
		Str("direction", s.Direction().String()).
		Str("received", sizestr.ToString(s.BytesRead())).
		Str("sent", sizestr.ToString(s.BytesWritten())).
		Done()
}

// End ends the writable half. The readable half stays open until the peer
// ends its side.
func (s *Socket) End(final ...[]byte) error {
	if s.state == network.Connected {
		s.state = network.Closing
	}
	return s.Duplex.End(final...)
}

// Close destroys the socket without an error.
func (s *Socket) Close() error {
	s.Destroy(nil)
	return nil
}

// SocketState returns the connection state.
func (s *Socket) SocketState() network.SocketState {
	return s.state
}

// OnConnect registers fn to be called once the connection was established.
func (s *Socket) OnConnect(fn func()) func() {
	return s.connectH.Add(event.Void(fn))
}

// RemoteHost returns the peer host.
func (s *Socket) RemoteHost() string {
	return s.host
}

// RemotePort returns the peer port.
func (s *Socket) RemotePort() int {
	return s.port
}

// Family returns the address family.
func (s *Socket) Family() network.Family {
	return s.family
}

func (s *Socket) LocalAddr() ma.Multiaddr {
	return s.localAddr
}

func (s *Socket) RemoteAddr() ma.Multiaddr {
	return s.remoteAddr
}

func (s *Socket) LocalNetAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Socket) RemoteNetAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// BytesRead returns the number of bytes received.
func (s *Socket) BytesRead() int64 {
	if s.reader == nil {
		return 0
	}
	return s.reader.Bytes()
}

// BytesWritten returns the number of bytes sent.
func (s *Socket) BytesWritten() int64 {
	if s.writer == nil {
		return 0
	}
	return s.writer.Bytes()
}

// SetNoDelay toggles Nagle's algorithm.
func (s *Socket) SetNoDelay(noDelay bool) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	c, ok := s.conn.(interface{ SetNoDelay(bool) error })
	if !ok {
		return ErrOptionNotSupported
	}
	return c.SetNoDelay(noDelay)
}

// SetKeepAlive toggles TCP keep-alive. A positive period also sets the probe interval.
func (s *Socket) SetKeepAlive(enable bool, period time.Duration) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	c, ok := s.conn.(interface {
		SetKeepAlive(bool) error
		SetKeepAlivePeriod(time.Duration) error
	})
	if !ok {
		return ErrOptionNotSupported
	}
	if err := c.SetKeepAlive(enable); err != nil {
		return err
	}
	if enable && period > 0 {
		return c.SetKeepAlivePeriod(period)
	}
	return nil
}

func isClosedErr(err error) bool {
	return pkgerrors.Is(err, net.ErrClosed)
}
