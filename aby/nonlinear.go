//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package aby

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/markkurossi/hetensor/circuit"
	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/plaintext"
	"github.com/markkurossi/hetensor/value"
	"golang.org/x/sync/errgroup"
)

// EvaluateNonlinearBatch evaluates the nonlinear batch with the
// peer. The peer must call EvaluateNonlinearBatch with a structurally
// identical batch.
//
// The server sends the masked ciphertexts of the encrypted operands
// and provides the input masks, plaintext operands, and output masks
// to the secure circuit. It returns the client's encrypted results
// which hold the output values plus the output masks.
//
// The client decrypts the masked operands, evaluates the circuit, and
// returns the encrypted results it sent to the server.
//
// Any error closes the session.
func (exec *Executor) EvaluateNonlinearBatch(ctx context.Context,
	batch *Batch) ([]value.Value, error) {

	if err := exec.acquire(Ready, Ready); err != nil {
		return nil, err
	}
	defer exec.done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var err error
	if exec.session.role == RoleServer {
		err = batch.validate()
	} else {
		err = batch.structure()
	}
	if err != nil {
		return nil, err
	}

	stop := exec.bound(ctx)
	defer stop()

	var result []value.Value
	if exec.session.role == RoleServer {
		result, err = exec.serverBatch(batch)
	} else {
		result, err = exec.clientBatch(ctx, batch, false)
	}
	if err != nil {
		exec.log.Error().Err(err).Str("batch", batch.String()).
			Msg("batch failed")
		exec.close()
		return nil, err
	}
	return result, nil
}

// Serve evaluates the batches the server sends until the server
// closes the session or the context is done. Serve is available only
// for the client role.
func (exec *Executor) Serve(ctx context.Context) error {
	if exec.session.role != RoleClient {
		return fmt.Errorf("aby: %s can't serve", exec.session.role)
	}
	for {
		if err := exec.acquire(Ready, Ready); err != nil {
			return err
		}
		err := exec.serve(ctx)
		exec.done()
		if err != nil {
			exec.close()
			if errors.Is(err, errPeerClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			exec.log.Error().Err(err).Msg("serve failed")
			return err
		}
	}
}

var errPeerClosed = errors.New("aby: peer closed session")

func (exec *Executor) serve(ctx context.Context) error {
	stop := exec.bound(ctx)
	defer stop()

	_, err := exec.clientBatch(ctx, nil, true)
	return err
}

// bound bounds the connection I/O with the context and session
// timeout. The returned function releases the bound.
func (exec *Executor) bound(ctx context.Context) func() {
	conn := exec.conn
	conn.SetDeadline(exec.deadline(ctx))
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		if stop() {
			conn.SetDeadline(time.Time{})
		}
	}
}

func (exec *Executor) circuit(batch *Batch) (*circuit.Circuit, error) {
	builder := circuit.NewBuilder(exec.session.protocol.Sharing(), 2,
		exec.session.reserve)
	err := batch.Circuit(builder, exec.session.bits, exec.session.fixed.frac)
	if err != nil {
		return nil, err
	}
	circ, err := builder.Compile()
	if err != nil {
		return nil, err
	}
	exec.m.Lock()
	dump := exec.dump
	exec.m.Unlock()
	if dump != nil {
		fmt.Fprintf(dump, "%s batch %d: %s\n", exec.session.role, exec.seq-1,
			batch)
		circ.Dump(dump)
	}
	return circ, nil
}

func (exec *Executor) serverBatch(batch *Batch) ([]value.Value, error) {
	conn := exec.conn
	fx := exec.session.fixed
	timing := circuit.NewTiming()
	start := conn.Stats.Copy()

	// Header and acknowledgement.
	hdr := batch.header(exec.seq)
	exec.seq++
	if err := exec.send(hdr); err != nil {
		return nil, exec.ioError("header", err)
	}
	ack, err := conn.ReceiveData()
	if err != nil {
		return nil, exec.ioError("header", err)
	}
	if !bytes.Equal(hdr, ack) {
		peer, seq, err := parseHeader(ack)
		if err != nil {
			return nil, err
		}
		return nil, desync("batch mismatch: %v#%d != %v#%d",
			batch, exec.seq-1, peer, seq)
	}
	timing.Sample("Header", []string{batch.String()})

	// Masked operands.
	for _, in := range batch.Inputs {
		if !in.Encrypted {
			continue
		}
		for _, v := range in.Values {
			ct, err := value.Cipher(v)
			if err != nil {
				return nil, err
			}
			data, err := ct.MarshalBinary()
			if err != nil {
				return nil, err
			}
			if err := conn.SendData(data); err != nil {
				return nil, exec.ioError("operands", err)
			}
		}
	}
	if err := conn.Flush(); err != nil {
		return nil, exec.ioError("operands", err)
	}
	timing.Sample("Mask", []string{
		circuit.FileSize(conn.Stats.Sub(start).Sum()).String(),
	})

	circ, err := exec.circuit(batch)
	if err != nil {
		return nil, err
	}
	timing.Sample("Circuit", []string{fmt.Sprintf("cost %d", circ.Cost())})

	var inputs []bool
	for e := 0; e < batch.Count; e++ {
		for l := 0; l < batch.Lanes; l++ {
			for _, in := range batch.Inputs {
				var v float64
				if in.Encrypted {
					v = value.Lane(in.Masks[e], l)
				} else {
					p, err := value.Plain(in.Values[e])
					if err != nil {
						return nil, err
					}
					v = value.Lane(p, l)
				}
				inputs = append(inputs, fx.Bits(fx.Encode(v))...)
			}
			inputs = append(inputs,
				fx.Bits(fx.Encode(value.Lane(batch.OutputMasks[e], l)))...)
		}
	}

	sample := timing.Sample("Protocol", nil)
	switch exec.session.protocol {
	case ProtocolYao:
		err = circuit.Garbler(conn, exec.oti, circ, inputs, exec.rand, sample)
	case ProtocolGMW:
		_, err = exec.peer.Run(circ, inputs, sample)
	}
	if err != nil {
		return nil, exec.ioError(exec.session.protocol.String(), err)
	}
	sample.End = time.Now()
	sample.Cols = []string{
		circuit.FileSize(conn.Stats.Sub(start).Sum()).String(),
	}

	// Masked results.
	result := make([]value.Value, batch.Count)
	for e := range result {
		data, err := conn.ReceiveData()
		if err != nil {
			return nil, exec.ioError("results", err)
		}
		ct, err := exec.heCtx.UnmarshalCiphertext(data)
		if err != nil {
			return nil, desync("invalid result %d: %v", e, err)
		}
		if ct.Lanes() != batch.Lanes || ct.Complex() != batch.Complex {
			return nil, desync("result %d: %v", e, ct)
		}
		result[e] = value.NewCipher(ct, batch.Packed)
	}
	timing.Sample("Result", []string{
		circuit.FileSize(conn.Stats.Sub(start).Sum()).String(),
	})
	exec.finish(batch, timing)

	return result, nil
}

// clientBatch evaluates the client side of the batch. If batch is
// nil, the client adopts the structure the server sends. If wait is
// true, the client waits for the next batch without the session
// timeout.
func (exec *Executor) clientBatch(ctx context.Context, batch *Batch,
	wait bool) ([]value.Value, error) {

	conn := exec.conn
	fx := exec.session.fixed

	if wait {
		var deadline time.Time
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
		conn.SetDeadline(deadline)
	}
	hdr, err := conn.ReceiveData()
	if err != nil {
		if wait && errors.Is(err, io.EOF) {
			return nil, errPeerClosed
		}
		return nil, exec.ioError("header", err)
	}
	if wait {
		conn.SetDeadline(exec.deadline(ctx))
	}
	timing := circuit.NewTiming()
	start := conn.Stats.Copy()

	peer, seq, err := parseHeader(hdr)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		batch = peer
	}
	local := batch.header(exec.seq)
	exec.seq++
	if err := exec.send(local); err != nil {
		return nil, exec.ioError("header", err)
	}
	if !bytes.Equal(hdr, local) {
		return nil, desync("batch mismatch: %v#%d != %v#%d",
			batch, exec.seq-1, peer, seq)
	}
	timing.Sample("Header", []string{batch.String()})

	// Masked operands.
	var cts []*he.Ciphertext
	for _, in := range batch.Inputs {
		if !in.Encrypted {
			continue
		}
		for e := 0; e < batch.Count; e++ {
			data, err := conn.ReceiveData()
			if err != nil {
				return nil, exec.ioError("operands", err)
			}
			ct, err := exec.heCtx.UnmarshalCiphertext(data)
			if err != nil {
				return nil, desync("invalid operand: %v", err)
			}
			if err := batch.lanes(ct.Lanes()); err != nil {
				return nil, &ProtocolDesyncError{
					Reason: "operand",
					Err:    err,
				}
			}
			cts = append(cts, ct)
		}
	}
	masked := make([]plaintext.Plaintext, len(cts))
	decrypt := time.Now()
	err = exec.parallel(len(cts), func(hc *he.Context, i int) error {
		lanes, err := hc.Decrypt(cts[i])
		if err != nil {
			return err
		}
		masked[i] = lanes
		return nil
	})
	if err != nil {
		return nil, err
	}
	timing.Sample("Mask", []string{
		circuit.FileSize(conn.Stats.Sub(start).Sum()).String(),
	}).AbsSubSample("Decrypt", time.Since(decrypt))

	circ, err := exec.circuit(batch)
	if err != nil {
		return nil, err
	}
	timing.Sample("Circuit", []string{fmt.Sprintf("cost %d", circ.Cost())})

	var inputs []bool
	for e := 0; e < batch.Count; e++ {
		for l := 0; l < batch.Lanes; l++ {
			var idx int
			for _, in := range batch.Inputs {
				if !in.Encrypted {
					continue
				}
				v := value.Lane(masked[idx*batch.Count+e], l)
				inputs = append(inputs, fx.Bits(fx.Encode(v))...)
				idx++
			}
		}
	}

	var out []bool
	sample := timing.Sample("Protocol", nil)
	switch exec.session.protocol {
	case ProtocolYao:
		out, err = circuit.Evaluator(conn, exec.oti, circ, inputs, sample)
	case ProtocolGMW:
		out, err = exec.peer.Run(circ, inputs, sample)
	}
	if err != nil {
		return nil, exec.ioError(exec.session.protocol.String(), err)
	}
	sample.End = time.Now()
	sample.Cols = []string{
		circuit.FileSize(conn.Stats.Sub(start).Sum()).String(),
	}

	// Encrypt masked results.
	bits := exec.session.bits
	result := make([]value.Value, batch.Count)
	encrypt := time.Now()
	err = exec.parallel(batch.Count, func(hc *he.Context, e int) error {
		lanes := make([]float64, batch.Lanes)
		for l := range lanes {
			o := (e*batch.Lanes + l) * bits
			lanes[l] = fx.Decode(fx.Value(out[o : o+bits]))
		}
		ct, err := hc.Encrypt(lanes, batch.Complex)
		if err != nil {
			return err
		}
		result[e] = value.NewCipher(ct, batch.Packed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	encrypted := time.Since(encrypt)
	for _, v := range result {
		ct, err := value.Cipher(v)
		if err != nil {
			return nil, err
		}
		data, err := ct.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if err := conn.SendData(data); err != nil {
			return nil, exec.ioError("results", err)
		}
	}
	if err := conn.Flush(); err != nil {
		return nil, exec.ioError("results", err)
	}
	timing.Sample("Result", []string{
		circuit.FileSize(conn.Stats.Sub(start).Sum()).String(),
	}).AbsSubSample("Encrypt", encrypted)
	exec.finish(batch, timing)

	return result, nil
}

// parallel runs f for the indices [0,n) with the executor's worker
// contexts.
func (exec *Executor) parallel(n int,
	f func(hc *he.Context, i int) error) error {

	pool := make(chan *he.Context, len(exec.workers))
	for _, w := range exec.workers {
		pool <- w
	}
	var g errgroup.Group
	g.SetLimit(len(exec.workers))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			w := <-pool
			defer func() {
				pool <- w
			}()
			return f(w, i)
		})
	}
	return g.Wait()
}

func (exec *Executor) finish(batch *Batch, timing *circuit.Timing) {
	exec.m.Lock()
	exec.timing = timing
	exec.m.Unlock()

	exec.log.Debug().
		Uint64("seq", exec.seq-1).
		Str("batch", batch.String()).
		Dur("time", timing.Total()).
		Msg("batch done")
}
