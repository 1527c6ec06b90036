//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package aby implements the two-party secure executor. The executor
// owns one endpoint of a two-party session and evaluates nonlinear
// operations on masked homomorphic values with Yao's garbled circuits
// or the GMW protocol. The server holds the masks and the client the
// homomorphic secret key.
package aby

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/markkurossi/hetensor/circuit"
	"github.com/markkurossi/hetensor/env"
	"github.com/markkurossi/hetensor/gmw"
	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/ot"
	"github.com/markkurossi/hetensor/p2p"
	"github.com/markkurossi/hetensor/plaintext"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

var bo = binary.BigEndian

const (
	magic   = 0x48455441
	version = 1
)

// State defines the executor states.
type State int

// Executor states.
const (
	Unconfigured State = iota
	Validated
	SessionOpen
	SharingComputed
	Ready
	Closed
)

var states = map[State]string{
	Unconfigured:    "unconfigured",
	Validated:       "validated",
	SessionOpen:     "session-open",
	SharingComputed: "sharing-computed",
	Ready:           "ready",
	Closed:          "closed",
}

func (s State) String() string {
	name, ok := states[s]
	if ok {
		return name
	}
	return fmt.Sprintf("{State %d}", int(s))
}

// Executor implements the two-party secure executor.
type Executor struct {
	m        sync.Mutex
	state    State
	busy     bool
	config   *Config
	session  *session
	id       xid.ID
	log      zerolog.Logger
	rand     io.Reader
	maskRand io.Reader
	heCtx    *he.Context
	workers  []*he.Context
	addr     string
	listener net.Listener
	conn     *p2p.Conn
	oti      ot.OT
	peer     *gmw.Peer
	seq      uint64
	timing   *circuit.Timing
	dump     io.Writer
}

// New creates a new executor. The function validates the
// configuration and opens the session. The server starts listening
// for its peer and the client resolves the server address. The
// connection is established with Connect.
func New(config *Config, heCtx *he.Context, e *env.Config) (
	*Executor, error) {

	exec := &Executor{
		state:  Unconfigured,
		config: config,
		id:     xid.New(),
		rand:   e.GetRandom(),
		heCtx:  heCtx,
	}
	var err error
	exec.session, err = config.validate(heCtx)
	if err != nil {
		return nil, err
	}
	exec.state = Validated
	exec.log = e.GetLogger().With().
		Str("session", exec.id.String()).
		Str("role", exec.session.role.String()).
		Logger()

	if len(config.Seed) > 0 {
		exec.maskRand = env.NewSeededRandom([]byte(config.Seed))
	} else {
		exec.maskRand = exec.rand
	}

	if err := exec.open(); err != nil {
		exec.release()
		return nil, err
	}
	exec.state = SessionOpen

	exec.log.Info().
		Str("protocol", exec.session.protocol.String()).
		Str("addr", exec.addr).
		Int("bits", exec.session.bits).
		Msg("session open")

	return exec, nil
}

func (exec *Executor) open() error {
	switch exec.session.role {
	case RoleServer:
		listener, err := p2p.Listen(exec.config.Addr())
		if err != nil {
			return err
		}
		exec.listener = listener
		exec.addr = listener.Addr().String()

	case RoleClient:
		addr, err := net.ResolveTCPAddr("tcp", exec.config.Addr())
		if err != nil {
			return err
		}
		exec.addr = addr.String()
		for i := 0; i < exec.session.threads; i++ {
			exec.workers = append(exec.workers, exec.heCtx.ShallowCopy())
		}
	}
	return nil
}

func (exec *Executor) String() string {
	return fmt.Sprintf("%s/%s@%s", exec.session.role, exec.session.protocol,
		exec.addr)
}

// ID returns the session ID.
func (exec *Executor) ID() xid.ID {
	return exec.id
}

// Role returns the executor role.
func (exec *Executor) Role() Role {
	return exec.session.role
}

// Protocol returns the secure circuit protocol.
func (exec *Executor) Protocol() Protocol {
	return exec.session.protocol
}

// Addr returns the session address. For the server this is the
// address of its listener and for the client the server address.
func (exec *Executor) Addr() string {
	return exec.addr
}

// State returns the executor state.
func (exec *Executor) State() State {
	exec.m.Lock()
	defer exec.m.Unlock()
	return exec.state
}

// Mask draws n additive masks from the session's random stream.
func (exec *Executor) Mask(n int) (plaintext.Plaintext, error) {
	return exec.session.fixed.Masks(exec.maskRand, n)
}

// GetCircuit returns a new circuit builder for the session's
// protocol.
func (exec *Executor) GetCircuit() (*circuit.Builder, error) {
	exec.m.Lock()
	defer exec.m.Unlock()
	if exec.state < SessionOpen || exec.state == Closed {
		return nil, ErrSessionNotReady
	}
	return circuit.NewBuilder(exec.session.protocol.Sharing(), 2,
		exec.session.reserve), nil
}

// DumpCircuits sets the writer where the executor dumps the circuits
// of the nonlinear batches. The nil writer disables dumping.
func (exec *Executor) DumpCircuits(w io.Writer) {
	exec.m.Lock()
	exec.dump = w
	exec.m.Unlock()
}

// acquire marks the executor busy. The state must be at least
// minState.
func (exec *Executor) acquire(minState, maxState State) error {
	exec.m.Lock()
	defer exec.m.Unlock()
	if exec.busy {
		return ErrBusy
	}
	if exec.state < minState || exec.state > maxState {
		return ErrSessionNotReady
	}
	exec.busy = true
	return nil
}

func (exec *Executor) done() {
	exec.m.Lock()
	exec.busy = false
	exec.m.Unlock()
}

func (exec *Executor) setState(state State) {
	exec.m.Lock()
	exec.state = state
	exec.m.Unlock()
}

// deadline returns the I/O deadline for one protocol step.
func (exec *Executor) deadline(ctx context.Context) time.Time {
	var deadline time.Time
	if exec.session.timeout > 0 {
		deadline = time.Now().Add(exec.session.timeout)
	}
	d, ok := ctx.Deadline()
	if ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

// Connect connects the peers, verifies the session parameters, and
// initializes the base OTs.
func (exec *Executor) Connect(ctx context.Context) (err error) {
	if err := exec.acquire(SessionOpen, SessionOpen); err != nil {
		return err
	}
	defer exec.done()

	defer func() {
		if err != nil {
			exec.log.Error().Err(err).Msg("connect failed")
			exec.close()
		}
	}()

	if d := exec.deadline(ctx); !d.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, d)
		defer cancel()
	}

	var conn *p2p.Conn
	if exec.session.role == RoleServer {
		conn, err = p2p.Accept(ctx, exec.listener)
		exec.listener.Close()
		exec.listener = nil
	} else {
		conn, err = p2p.Dial(ctx, exec.addr)
	}
	if err != nil {
		return exec.ioError("connect", err)
	}
	exec.m.Lock()
	exec.conn = conn
	exec.m.Unlock()

	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()
	if d, ok := ctx.Deadline(); ok {
		conn.SetDeadline(d)
	}

	if err := exec.handshake(); err != nil {
		return err
	}
	exec.log.Info().Msg("connected")

	switch exec.session.protocol {
	case ProtocolYao:
		co := ot.NewCO(exec.rand)
		if exec.session.role == RoleServer {
			err = co.InitSender(conn)
		} else {
			err = co.InitReceiver(conn)
		}
		exec.oti = co

	case ProtocolGMW:
		exec.peer, err = gmw.NewPeer(exec.session.role.Party(), conn,
			exec.rand)
		if err == nil {
			exec.log.Debug().Int("party", exec.peer.ID()).
				Str("peer", exec.peer.String()).Msg("GMW peer")
			err = exec.peer.Init()
		}
	}
	if err != nil {
		return exec.ioError("base OT", err)
	}
	exec.setState(SharingComputed)
	exec.log.Debug().
		Str("sharing", exec.session.protocol.Sharing().String()).
		Msg("base OTs initialized")

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return err
	}
	exec.setState(Ready)
	exec.log.Info().Msg("ready")

	return nil
}

func (exec *Executor) hello() []byte {
	s := exec.session
	buf := make([]byte, 32)
	bo.PutUint32(buf[0:], magic)
	bo.PutUint32(buf[4:], version)
	buf[8] = byte(s.role)
	buf[9] = byte(s.protocol)
	buf[10] = byte(s.mt)
	bo.PutUint32(buf[12:], uint32(s.bits))
	bo.PutUint32(buf[16:], uint32(s.security))
	bo.PutUint32(buf[20:], uint32(s.fixed.frac))
	bo.PutUint32(buf[24:], uint32(s.fixed.mask))
	bo.PutUint32(buf[28:], uint32(exec.heCtx.Slots()))
	return buf
}

func (exec *Executor) verifyHello(data []byte) error {
	if len(data) != 32 || bo.Uint32(data) != magic {
		return desync("invalid handshake")
	}
	if v := bo.Uint32(data[4:]); v != version {
		return desync("version mismatch: %d != %d", v, version)
	}
	s := exec.session
	if Role(data[8]) == s.role {
		return desync("peer has the same role %s", s.role)
	}
	if p := Protocol(data[9]); p != s.protocol {
		return desync("protocol mismatch: %s != %s", p, s.protocol)
	}
	if mt := MTAlgorithm(data[10]); mt != s.mt {
		return desync("MT algorithm mismatch: %s != %s", mt, s.mt)
	}
	local := exec.hello()
	for i, name := range []string{
		"bit length", "security level", "fraction bits", "mask bits",
		"slots",
	} {
		o := 12 + i*4
		if bo.Uint32(data[o:]) != bo.Uint32(local[o:]) {
			return desync("%s mismatch: %d != %d", name,
				bo.Uint32(data[o:]), bo.Uint32(local[o:]))
		}
	}
	return nil
}

// handshake exchanges and verifies the session parameters. The server
// sends its parameters first.
func (exec *Executor) handshake() error {
	var data []byte
	var err error

	if exec.session.role == RoleServer {
		if err = exec.send(exec.hello()); err != nil {
			return exec.ioError("handshake", err)
		}
		data, err = exec.conn.ReceiveData()
		if err != nil {
			return exec.ioError("handshake", err)
		}
	} else {
		data, err = exec.conn.ReceiveData()
		if err != nil {
			return exec.ioError("handshake", err)
		}
		if err = exec.send(exec.hello()); err != nil {
			return exec.ioError("handshake", err)
		}
	}
	return exec.verifyHello(data)
}

func (exec *Executor) send(data []byte) error {
	if err := exec.conn.SendData(data); err != nil {
		return err
	}
	return exec.conn.Flush()
}

// ioError maps I/O errors to protocol errors. Timeouts and
// unexpected connection closes are protocol desynchronizations.
func (exec *Executor) ioError(step string, err error) error {
	var de *ProtocolDesyncError
	if errors.As(err, &de) {
		return err
	}
	if p2p.IsTimeout(err) {
		return &ProtocolDesyncError{
			Reason: step + ": timeout",
			Err:    err,
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return &ProtocolDesyncError{
			Reason: step + ": connection closed",
			Err:    err,
		}
	}
	return xerrors.Errorf("aby: %s: %w", step, err)
}

// PrintTiming prints the timing report of the latest batch.
func (exec *Executor) PrintTiming(w io.Writer) {
	exec.m.Lock()
	timing := exec.timing
	conn := exec.conn
	exec.m.Unlock()

	if timing == nil || conn == nil {
		return
	}
	timing.Print(w, conn.Stats)
}

// Stats returns the connection I/O statistics.
func (exec *Executor) Stats() p2p.IOStats {
	exec.m.Lock()
	defer exec.m.Unlock()
	if exec.conn == nil {
		return p2p.NewIOStats()
	}
	return exec.conn.Stats.Copy()
}

// Close closes the session. Close must not be called while an
// evaluation is in progress. Cancel the evaluation context to abort
// the evaluation.
func (exec *Executor) Close() error {
	return exec.close()
}

func (exec *Executor) close() error {
	exec.m.Lock()
	defer exec.m.Unlock()

	if exec.state == Closed {
		return nil
	}
	err := exec.release()
	exec.state = Closed
	exec.log.Info().Msg("session closed")
	return err
}

func (exec *Executor) release() error {
	var err error
	if exec.listener != nil {
		err = exec.listener.Close()
		exec.listener = nil
	}
	if exec.conn != nil {
		// Bound the final flush if the peer has stopped reading.
		exec.conn.SetDeadline(time.Now().Add(time.Second))
		if cerr := exec.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		exec.conn = nil
	}
	return err
}
