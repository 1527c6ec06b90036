//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package aby

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/markkurossi/hetensor/env"
	"github.com/markkurossi/hetensor/he"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	heOnce sync.Once
	heCtx  *he.Context
	heErr  error
)

var nop = zerolog.Nop()

var testEnv = &env.Config{
	Logger: &nop,
}

func secretContext(t *testing.T) *he.Context {
	heOnce.Do(func() {
		heCtx, heErr = he.NewContext(he.DefaultParams)
	})
	require.NoError(t, heErr)
	return heCtx
}

func localConfig(role, protocol string) *Config {
	config := NewConfig(role, protocol)
	config.Host = "127.0.0.1"
	config.Port = 0
	config.Timeout = 20 * time.Second
	return config
}

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(`
role: client
protocol: gmw
port: 9000
timeout: 5s
seed: test
`))
	require.NoError(t, err)
	require.Equal(t, "client", config.Role)
	require.Equal(t, "gmw", config.Protocol)
	require.Equal(t, DefaultHost, config.Host)
	require.Equal(t, 9000, config.Port)
	require.Equal(t, DefaultSecurityLevel, config.SecurityLevel)
	require.Equal(t, DefaultBitLength, config.BitLength)
	require.Equal(t, DefaultThreads, config.Threads)
	require.Equal(t, DefaultMTAlgorithm, config.MTAlgorithm)
	require.Equal(t, DefaultReserveGates, config.ReserveGates)
	require.Equal(t, 5*time.Second, config.Timeout)
	require.Equal(t, DefaultFractionBits, config.FractionBits)
	require.Equal(t, DefaultMaskBits, config.MaskBits)
	require.Equal(t, "test", config.Seed)
	require.Equal(t, "localhost:9000", config.Addr())

	data, err := config.Marshal()
	require.NoError(t, err)
	again, err := ParseConfig(data)
	require.NoError(t, err)
	require.Equal(t, config, again)

	_, err = ParseConfig([]byte("port: [1, 2]"))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aby.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("role: server\nprotocol: yao\n"), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "server", config.Role)
	require.NoError(t, config.Validate(secretContext(t)))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	ctx := secretContext(t)

	tests := []struct {
		name   string
		modify func(c *Config)
		ctx    *he.Context
		err    error
	}{
		{"role", func(c *Config) { c.Role = "observer" }, ctx, ErrUnknownRole},
		{"role first", func(c *Config) {
			c.Role = "observer"
			c.Protocol = "bmr"
			c.SecurityLevel = 80
		}, ctx, ErrUnknownRole},
		{"protocol", func(c *Config) { c.Protocol = "bmr" }, ctx,
			ErrUnknownProtocol},
		{"protocol before mt", func(c *Config) {
			c.Protocol = "arith"
			c.MTAlgorithm = "MT_PAILLIER"
		}, ctx, ErrUnknownProtocol},
		{"mt", func(c *Config) { c.MTAlgorithm = "MT_PAILLIER" }, ctx,
			ErrUnsupportedAlgorithm},
		{"security", func(c *Config) { c.SecurityLevel = 256 }, ctx,
			ErrUnsupportedSecurityLevel},
		{"bit length", func(c *Config) { c.BitLength = 29 }, ctx,
			ErrInvalidBitLength},
		{"bit length max", func(c *Config) { c.BitLength = 65 }, ctx,
			ErrInvalidBitLength},
		{"threads", func(c *Config) { c.Threads = 0 }, ctx,
			ErrInvalidThreads},
		{"context", func(c *Config) {}, nil, ErrMissingContext},
		{"secret key", func(c *Config) {}, ctx.Public(),
			ErrMissingSecretKey},
	}
	for _, test := range tests {
		config := localConfig("client", "yao")
		test.modify(config)
		exec, err := New(config, test.ctx, testEnv)
		require.Nil(t, exec, test.name)
		require.True(t, errors.Is(err, test.err), "%s: %v", test.name, err)
	}

	config := localConfig("client", "yao")
	config.BitLength = 30
	require.NoError(t, config.Validate(ctx))
	require.NoError(t, localConfig("server", "gmw").Validate(ctx.Public()))
}

func TestRoleNames(t *testing.T) {
	ctx := secretContext(t)

	for _, name := range []string{"server", "Server", "SERVER"} {
		exec, err := New(localConfig(name, "yao"), ctx, testEnv)
		require.NoError(t, err, name)
		require.Equal(t, RoleServer, exec.Role())
		require.Equal(t, SessionOpen, exec.State())
		require.NoError(t, exec.Close())
		require.Equal(t, Closed, exec.State())
	}
	for _, name := range []string{"client", "Client", "CLIENT"} {
		exec, err := New(localConfig(name, "GMW"), ctx, testEnv)
		require.NoError(t, err, name)
		require.Equal(t, RoleClient, exec.Role())
		require.Equal(t, ProtocolGMW, exec.Protocol())
		require.NoError(t, exec.Close())
	}
	for _, name := range []string{"", "servers", "peer", "garbler"} {
		_, err := ParseRole(name)
		require.ErrorIs(t, err, ErrUnknownRole, name)
	}
}

func TestParseNames(t *testing.T) {
	p, err := ParseProtocol("Yao")
	require.NoError(t, err)
	require.Equal(t, ProtocolYao, p)
	require.Equal(t, "yao", p.String())

	mt, err := ParseMTAlgorithm("mt_ot")
	require.NoError(t, err)
	require.Equal(t, MTOT, mt)
	require.Equal(t, "MT_OT", mt.String())

	require.Equal(t, "client", RoleClient.String())
	require.Equal(t, 1, RoleClient.Party())
	require.Equal(t, "ready", Ready.String())
}
