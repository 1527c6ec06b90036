//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"time"
)

var bo = binary.BigEndian

// RetryDelay specifies the delay between connection attempts in Dial.
var RetryDelay = 50 * time.Millisecond

// Listen creates a TCP listener for the address.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Accept accepts one peer connection from the listener. The function
// returns when a peer connects, the context is done, or the listener
// fails.
func Accept(ctx context.Context, listener net.Listener) (*Conn, error) {
	type result struct {
		nc  net.Conn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		nc, err := listener.Accept()
		ch <- result{
			nc:  nc,
			err: err,
		}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return NewConn(r.nc), nil

	case <-ctx.Done():
		// Unblock the pending Accept. The listener is not usable
		// after this.
		listener.Close()
		r := <-ch
		if r.nc != nil {
			r.nc.Close()
		}
		return nil, ctx.Err()
	}
}

// Dial connects to the peer at addr. Failed connection attempts are
// retried until the context is done.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var dialer net.Dialer
	for {
		nc, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return NewConn(nc), nil
		}
		if ctx.Err() != nil {
			return nil, errors.Join(ctx.Err(), err)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), err)
		case <-time.After(RetryDelay):
		}
	}
}

// IsTimeout tests if the error is a network timeout.
func IsTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
