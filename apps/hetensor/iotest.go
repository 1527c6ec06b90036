//
// iotest.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/markkurossi/hetensor/circuit"
	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/ot"
	"github.com/markkurossi/hetensor/p2p"
	"github.com/spf13/cobra"
)

// addIOTestCmd adds the command that measures the peer connection
// throughput for garbled labels and ciphertexts.
func addIOTestCmd(command *cobra.Command) {
	var size int64
	var ciphertexts bool

	iotestCmd := &cobra.Command{
		Use:   "iotest",
		Short: "Test peer connection I/O performance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return testIO(cmd.Context(), size, ciphertexts)
		},
	}
	iotestCmd.Flags().Int64Var(&size, "size", 100*1000*1000,
		"Number of bytes to transfer")
	iotestCmd.Flags().BoolVar(&ciphertexts, "ciphertexts", false,
		"Transfer ciphertexts instead of labels")

	command.AddCommand(iotestCmd)
}

func testIO(ctx context.Context, size int64, ciphertexts bool) error {
	ln, err := p2p.Listen("127.0.0.1:0")
	if err != nil {
		return err
	}
	defer ln.Close()

	var payload []byte
	if ciphertexts {
		heCtx, err := he.NewContext(he.DefaultParams)
		if err != nil {
			return err
		}
		ct, err := heCtx.Encrypt([]float64{1, 2, 3}, false)
		if err != nil {
			return err
		}
		payload, err = ct.MarshalBinary()
		if err != nil {
			return err
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- receiverTestIO(ctx, ln, ciphertexts)
	}()

	start := time.Now()
	conn, err := p2p.Dial(ctx, ln.Addr().String())
	if err != nil {
		return err
	}

	var sent int64
	var label ot.Label
	var labelData ot.LabelData

	for sent < size {
		if ciphertexts {
			err = conn.SendData(payload)
			sent += int64(len(payload))
		} else {
			err = conn.SendLabel(label, &labelData)
			sent += int64(len(labelData))
		}
		if err != nil {
			return err
		}
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	if err := conn.Close(); err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("Sent: %v in %v (%v/s)\n",
		circuit.FileSize(conn.Stats.Sum()), elapsed,
		circuit.FileSize(float64(conn.Stats.Sum())/elapsed.Seconds()))
	return nil
}

func receiverTestIO(ctx context.Context, ln net.Listener,
	ciphertexts bool) error {

	conn, err := p2p.Accept(ctx, ln)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		if ciphertexts {
			_, err = conn.ReceiveData()
		} else {
			var label ot.Label
			var labelData ot.LabelData
			err = conn.ReceiveLabel(&label, &labelData)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
	}
	fmt.Printf("Received: %v\n", circuit.FileSize(conn.Stats.Sum()))
	return nil
}
