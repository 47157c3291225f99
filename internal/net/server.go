package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"hati/internal/book"
	"hati/internal/common"
	"hati/internal/engine"
	"hati/internal/utils"
)

const (
	MAX_RECV_SIZE      = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Minute
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session. Writes are serialized per session because fill
// reports and request replies can race for the same connection.
type ClientSession struct {
	conn    net.Conn
	sendMut sync.Mutex
}

func (c *ClientSession) send(buf []byte) error {
	c.sendMut.Lock()
	defer c.sendMut.Unlock()
	_, err := c.conn.Write(buf)
	return err
}

type Server struct {
	address string
	port    int
	pool    utils.WorkerPool
	cancel  context.CancelFunc

	exchange *engine.Exchange

	sessionsLock   sync.Mutex
	clientSessions map[string]*ClientSession
	// accountOwners maps an account name to the address of the session
	// that last acted for it, so fill reports can be routed back.
	accountOwners map[string]string
}

func New(address string, port int, workers uint, exchange *engine.Exchange) *Server {
	if workers == 0 {
		workers = defaultNWorkers
	}
	return &Server{
		address:        address,
		port:           port,
		pool:           utils.NewWorkerPool(workers),
		exchange:       exchange,
		clientSessions: make(map[string]*ClientSession),
		accountOwners:  make(map[string]string),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()
	// Accept blocks, so cancellation has to close the listener out from
	// under it.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	// Start accepting connections.
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		log.Info().
			Str("address", conn.RemoteAddr().String()).
			Msg("new client added")
		// Track the session; we expect to maintain a long TCP session.
		s.addClientSession(conn)

		// Pass over the connection to be read from.
		s.pool.AddTask(conn)
	}
}

// ReportFill implements engine.Reporter: both parties of a fill get an
// execution report on their session, if they are connected.
func (s *Server) ReportFill(fill common.Fill) {
	s.reportExecution(fill.Maker, fill.Taker.Owner, fill)
	s.reportExecution(fill.Taker, fill.Maker.Owner, fill)
}

func (s *Server) reportExecution(party *common.Order, counterparty string, fill common.Fill) {
	session := s.sessionFor(party.Owner)
	if session == nil {
		return
	}
	report := Report{
		TypeOf:       ExecutionReport,
		Side:         party.Side,
		OrderUUID:    party.UUID,
		Price:        fill.Price.String(),
		Quantity:     fill.Quantity.String(),
		Counterparty: counterparty,
	}
	if err := session.send(report.Serialize()); err != nil {
		log.Error().Err(err).Str("account", party.Owner).Msg("unable to send execution report")
	}
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection, dispatches it against the exchange, and
// writes the reply. The connection is requeued for the next message, so
// one slow client never pins a worker. Any error returned here is fatal
// to the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	addr := conn.RemoteAddr().String()

	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Str("address", addr).Err(err).Msg("failed setting deadline for connection")
		s.dropClientSession(addr)
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			// A failed read usually means the client went away.
			log.Info().Err(err).Str("address", addr).Msg("closing client connection")
			s.dropClientSession(addr)
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", addr).Msg("error parsing message")
			s.reply(addr, Report{TypeOf: ErrorReport, Err: err.Error()})
		} else {
			s.dispatch(addr, message)
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// dispatch routes one parsed message to the exchange and replies on the
// caller's session.
func (s *Server) dispatch(addr string, message Message) {
	switch m := message.(type) {
	case SubmitOrderMessage:
		s.bindAccount(m.Account, addr)
		result, err := s.exchange.SubmitOrder(m.Side, m.Account, m.Price, m.Quantity)
		if err != nil {
			s.reply(addr, Report{TypeOf: ErrorReport, Err: err.Error()})
			return
		}
		log.Info().
			Str("account", m.Account).
			Str("order", result.OrderID).
			Str("filled", result.Filled.String()).
			Str("remaining", result.Remaining.String()).
			Msg("order submitted")
		s.reply(addr, Report{
			TypeOf:    SubmitReport,
			OrderUUID: result.OrderID,
			Filled:    result.Filled.String(),
			Remaining: result.Remaining.String(),
		})

	case CancelOrderMessage:
		s.bindAccount(m.Account, addr)
		if err := s.exchange.CancelOrder(m.OrderUUID, m.Account); err != nil {
			s.reply(addr, Report{TypeOf: ErrorReport, Err: err.Error()})
			return
		}
		log.Info().Str("account", m.Account).Str("order", m.OrderUUID).Msg("order cancelled")
		s.reply(addr, Report{TypeOf: CancelReport})

	case GetQuoteMessage:
		notional, err := s.exchange.Quote(m.Side, m.Quantity)
		if err != nil {
			s.reply(addr, Report{TypeOf: ErrorReport, Err: err.Error()})
			return
		}
		s.reply(addr, Report{TypeOf: QuoteReport, Notional: notional.String()})

	case GetBalanceMessage:
		balances, err := s.exchange.Balances(m.Account)
		if err != nil {
			s.reply(addr, Report{TypeOf: ErrorReport, Err: err.Error()})
			return
		}
		s.reply(addr, Report{TypeOf: BalanceReport, Balances: balances})

	case BaseMessage:
		switch m.TypeOf {
		case GetDepth:
			s.reply(addr, Report{TypeOf: DepthReport, Levels: sortedDepth(s.exchange)})
		case Heartbeat:
			// Keepalive only; nothing to do.
		}
	}
}

// sortedDepth flattens the depth map into a deterministic wire order:
// price ascending.
func sortedDepth(exchange *engine.Exchange) []book.DepthLevel {
	depth := exchange.Depth()
	levels := make([]book.DepthLevel, 0, len(depth))
	for _, level := range depth {
		levels = append(levels, level)
	}
	slices.SortFunc(levels, func(a, b book.DepthLevel) int {
		return a.Price.Cmp(b.Price)
	})
	return levels
}

func (s *Server) reply(addr string, report Report) {
	s.sessionsLock.Lock()
	session := s.clientSessions[addr]
	s.sessionsLock.Unlock()
	if session == nil {
		return
	}
	if err := session.send(report.Serialize()); err != nil {
		log.Error().Err(err).Str("address", addr).Msg("unable to send report")
		s.dropClientSession(addr)
	}
}

func (s *Server) bindAccount(account, addr string) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	s.accountOwners[account] = addr
}

func (s *Server) sessionFor(account string) *ClientSession {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	addr, ok := s.accountOwners[account]
	if !ok {
		return nil
	}
	return s.clientSessions[addr]
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = &ClientSession{conn: conn}
}

// dropClientSession closes and forgets a session.
func (s *Server) dropClientSession(addr string) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()

	if session, ok := s.clientSessions[addr]; ok {
		_ = session.conn.Close()
		delete(s.clientSessions, addr)
	}
	for account, owner := range s.accountOwners {
		if owner == addr {
			delete(s.accountOwners, account)
		}
	}
}
