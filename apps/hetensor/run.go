//
// run.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/markkurossi/hetensor/aby"
	"github.com/markkurossi/hetensor/element"
	"github.com/markkurossi/hetensor/env"
	"github.com/markkurossi/hetensor/he"
	"github.com/markkurossi/hetensor/kernel"
	"github.com/markkurossi/hetensor/plaintext"
	"github.com/markkurossi/hetensor/tensor"
	"github.com/markkurossi/tabulate"
	"github.com/spf13/cobra"
)

type runOptions struct {
	protocol string
	op       string
	shape    string
	a        string
	b        string
	configA  string
	configB  string
	seed     string
	timing   bool
	dump     bool
}

// addRunCmd adds the command that evaluates an operator with both
// parties in this process.
func addRunCmd(command *cobra.Command) {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate an elementwise operator with two local parties",
		Long: "Evaluate an elementwise operator over secure tensors. " +
			"The server and client parties run in this process and " +
			"communicate over the loopback interface.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dump = verbose
			return run(cmd.Context(), &opts)
		},
	}
	flags := runCmd.Flags()
	flags.StringVarP(&opts.protocol, "protocol", "p", "yao",
		"Secure circuit protocol: yao or gmw")
	flags.StringVarP(&opts.op, "op", "o", "minimum", "Operator")
	flags.StringVarP(&opts.shape, "shape", "s", "2,3", "Tensor shape")
	flags.StringVar(&opts.a, "a", "", "Operand a values (default i+1)")
	flags.StringVar(&opts.b, "b", "", "Operand b values (default (i+1)/6)")
	flags.StringVar(&opts.configA, "config-a", "encrypted,packed",
		"Operand a configuration")
	flags.StringVar(&opts.configB, "config-b", "plain",
		"Operand b configuration")
	flags.StringVar(&opts.seed, "seed", "", "Mask seed")
	flags.BoolVarP(&opts.timing, "timing", "t", false,
		"Print protocol timing")

	command.AddCommand(runCmd)
}

func parseInts(str string) ([]int, error) {
	var result []int
	for _, part := range strings.Split(str, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func parseValues(str string, size int, def func(i int) float64) (
	[]float64, error) {

	result := make([]float64, size)
	if len(str) == 0 {
		for i := range result {
			result[i] = def(i)
		}
		return result, nil
	}
	parts := strings.Split(str, ",")
	if len(parts) != size {
		return nil, fmt.Errorf("got %d values, expected %d", len(parts), size)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func run(ctx context.Context, opts *runOptions) error {
	_, err := execute(ctx, opts, os.Stdout)
	return err
}

// execute evaluates the operator and prints the result table to
// w. The function returns the decrypted result values.
func execute(ctx context.Context, opts *runOptions, w io.Writer) (
	plaintext.Plaintext, error) {

	if ctx == nil {
		ctx = context.Background()
	}
	op, err := kernel.ParseOp(opts.op)
	if err != nil {
		return nil, err
	}
	dims, err := parseInts(opts.shape)
	if err != nil {
		return nil, fmt.Errorf("invalid shape: %v", err)
	}
	shape := tensor.Shape(dims)

	configA, err := tensor.ParseConfig(opts.configA)
	if err != nil {
		return nil, err
	}
	configB, err := tensor.ParseConfig(opts.configB)
	if err != nil {
		return nil, err
	}
	av, err := parseValues(opts.a, shape.Size(), func(i int) float64 {
		return float64(i + 1)
	})
	if err != nil {
		return nil, fmt.Errorf("operand a: %v", err)
	}
	bv, err := parseValues(opts.b, shape.Size(), func(i int) float64 {
		return float64(i+1) / 6
	})
	if err != nil {
		return nil, fmt.Errorf("operand b: %v", err)
	}

	e := &env.Config{}
	heCtx, err := he.NewContext(he.DefaultParams)
	if err != nil {
		return nil, err
	}
	pub := heCtx.Public()

	server, client, err := connect(ctx, opts, heCtx, e)
	if err != nil {
		return nil, err
	}
	if opts.dump {
		server.DumpCircuits(w)
	}

	served := make(chan error, 1)
	go func() {
		served <- client.Serve(ctx)
	}()

	// shutdown closes the server which ends the client's Serve
	// loop. The client is closed after Serve has returned.
	shutdown := sync.OnceValue(func() error {
		server.Close()
		err := <-served
		client.Close()
		return err
	})
	defer shutdown()

	a := tensor.New("a", element.F64, shape, configA)
	if err := a.SetFloat64s(pub, av); err != nil {
		return nil, err
	}
	b := tensor.New("b", element.F64, shape, configB)
	if err := b.SetFloat64s(pub, bv); err != nil {
		return nil, err
	}

	ev := kernel.NewEvaluator(pub, server, e)
	start := time.Now()
	var result *tensor.Tensor
	if op.Unary() {
		result, err = ev.Unary(ctx, op, a, shape)
	} else {
		result, err = ev.Binary(ctx, op, a, b, shape)
	}
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	if opts.timing {
		server.PrintTiming(w)
	}
	if err := shutdown(); err != nil {
		return nil, err
	}

	got, err := result.Float64s(heCtx)
	if err != nil {
		return nil, err
	}
	printResult(w, op, a, b, av, bv, got)
	fmt.Fprintf(w, "%s: %s in %s\n", result, heCtx, elapsed)

	return got, nil
}

func connect(ctx context.Context, opts *runOptions, heCtx *he.Context,
	e *env.Config) (*aby.Executor, *aby.Executor, error) {

	config := aby.NewConfig("server", opts.protocol)
	config.Host = "127.0.0.1"
	config.Port = 0
	config.Seed = opts.seed
	server, err := aby.New(config, heCtx.Public(), e)
	if err != nil {
		return nil, nil, err
	}
	_, port, err := net.SplitHostPort(server.Addr())
	if err != nil {
		server.Close()
		return nil, nil, err
	}

	config = aby.NewConfig("client", opts.protocol)
	config.Host = "127.0.0.1"
	config.Port, err = strconv.Atoi(port)
	if err != nil {
		server.Close()
		return nil, nil, err
	}
	client, err := aby.New(config, heCtx, e)
	if err != nil {
		server.Close()
		return nil, nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- client.Connect(ctx)
	}()
	serr := server.Connect(ctx)
	cerr := <-done
	if serr == nil {
		serr = cerr
	}
	if serr != nil {
		server.Close()
		client.Close()
		return nil, nil, serr
	}
	return server, client, nil
}

func printResult(w io.Writer, op kernel.Op, a, b *tensor.Tensor,
	av, bv []float64, got plaintext.Plaintext) {

	packSize := a.Shape.Pack().Size()

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Index").SetAlign(tabulate.MR)
	tab.Header(fmt.Sprintf("a [%s]", a.Config)).SetAlign(tabulate.MR)
	if !op.Unary() {
		tab.Header(fmt.Sprintf("b [%s]", b.Config)).SetAlign(tabulate.MR)
	}
	tab.Header(op.String()).SetAlign(tabulate.MR)

	for i, v := range got {
		x, y := av[i], bv[i]
		if a.Config.Packed && !b.Config.Packed {
			y = bv[i%packSize]
		}
		if b.Config.Packed && !a.Config.Packed {
			x = av[i%packSize]
		}
		row := tab.Row()
		row.Column(fmt.Sprintf("%d", i))
		row.Column(fmt.Sprintf("%g", x))
		if !op.Unary() {
			row.Column(fmt.Sprintf("%g", y))
		}
		row.Column(fmt.Sprintf("%.4f", v))
	}
	tab.Print(w)
}
