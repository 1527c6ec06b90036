//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package aby

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/markkurossi/hetensor/circuit"
	"github.com/markkurossi/hetensor/he"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Role defines the party role in the two-party session.
type Role byte

// Party roles.
const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("{Role %d}", r)
	}
}

// Party returns the protocol party ID of the role.
func (r Role) Party() int {
	return int(r)
}

// ParseRole parses the role name. The name is case insensitive.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(name) {
	case "server":
		return RoleServer, nil
	case "client":
		return RoleClient, nil
	default:
		return 0, xerrors.Errorf("%q: %w", name, ErrUnknownRole)
	}
}

// Protocol defines the secure circuit protocol.
type Protocol byte

// Secure circuit protocols.
const (
	ProtocolYao Protocol = iota
	ProtocolGMW
)

func (p Protocol) String() string {
	switch p {
	case ProtocolYao:
		return "yao"
	case ProtocolGMW:
		return "gmw"
	default:
		return fmt.Sprintf("{Protocol %d}", p)
	}
}

// Sharing returns the circuit sharing of the protocol.
func (p Protocol) Sharing() circuit.Sharing {
	if p == ProtocolGMW {
		return circuit.SharingBool
	}
	return circuit.SharingYao
}

// ParseProtocol parses the protocol name. The name is case
// insensitive.
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToLower(name) {
	case "yao":
		return ProtocolYao, nil
	case "gmw":
		return ProtocolGMW, nil
	default:
		return 0, xerrors.Errorf("%q: %w", name, ErrUnknownProtocol)
	}
}

// MTAlgorithm defines the multiplication triple generation algorithm.
type MTAlgorithm byte

// Multiplication triple algorithms.
const (
	MTOT MTAlgorithm = iota
)

func (a MTAlgorithm) String() string {
	switch a {
	case MTOT:
		return "MT_OT"
	default:
		return fmt.Sprintf("{MTAlgorithm %d}", a)
	}
}

// ParseMTAlgorithm parses the multiplication triple algorithm name.
func ParseMTAlgorithm(name string) (MTAlgorithm, error) {
	if strings.ToUpper(name) == "MT_OT" {
		return MTOT, nil
	}
	return 0, xerrors.Errorf("%q: %w", name, ErrUnsupportedAlgorithm)
}

// Config defines the two-party session configuration.
type Config struct {
	Role          string        `yaml:"role"`
	Protocol      string        `yaml:"protocol"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	SecurityLevel int           `yaml:"security_level"`
	BitLength     int           `yaml:"bit_length"`
	Threads       int           `yaml:"threads"`
	MTAlgorithm   string        `yaml:"mt_algorithm"`
	ReserveGates  int           `yaml:"reserve_gates"`
	Timeout       time.Duration `yaml:"timeout"`
	FractionBits  int           `yaml:"fraction_bits"`
	MaskBits      int           `yaml:"mask_bits"`
	Seed          string        `yaml:"seed,omitempty"`
}

// Configuration defaults.
const (
	DefaultHost          = "localhost"
	DefaultPort          = 7766
	DefaultSecurityLevel = 128
	DefaultBitLength     = 64
	DefaultThreads       = 2
	DefaultMTAlgorithm   = "MT_OT"
	DefaultReserveGates  = 65536
	DefaultTimeout       = 30 * time.Second
	DefaultFractionBits  = 16
	DefaultMaskBits      = 12
)

// NewConfig creates a configuration with the default values for the
// role and protocol.
func NewConfig(role, protocol string) *Config {
	return &Config{
		Role:          role,
		Protocol:      protocol,
		Host:          DefaultHost,
		Port:          DefaultPort,
		SecurityLevel: DefaultSecurityLevel,
		BitLength:     DefaultBitLength,
		Threads:       DefaultThreads,
		MTAlgorithm:   DefaultMTAlgorithm,
		ReserveGates:  DefaultReserveGates,
		Timeout:       DefaultTimeout,
		FractionBits:  DefaultFractionBits,
		MaskBits:      DefaultMaskBits,
	}
}

// ParseConfig parses the YAML configuration data. Missing values get
// their default values.
func ParseConfig(data []byte) (*Config, error) {
	config := NewConfig("", "")
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, xerrors.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadConfig loads the YAML configuration from the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Addr returns the peer network address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// session holds the validated session parameters.
type session struct {
	role     Role
	protocol Protocol
	mt       MTAlgorithm
	security int
	bits     int
	threads  int
	fixed    fixed
	timeout  time.Duration
	reserve  int
}

// Validate validates the configuration for the homomorphic context.
// The client role requires a context with the secret key.
func (c *Config) Validate(ctx *he.Context) error {
	_, err := c.validate(ctx)
	return err
}

func (c *Config) validate(ctx *he.Context) (*session, error) {
	role, err := ParseRole(c.Role)
	if err != nil {
		return nil, err
	}
	protocol, err := ParseProtocol(c.Protocol)
	if err != nil {
		return nil, err
	}
	mt, err := ParseMTAlgorithm(c.MTAlgorithm)
	if err != nil {
		return nil, err
	}
	if c.SecurityLevel != 128 {
		return nil, xerrors.Errorf("%d: %w", c.SecurityLevel,
			ErrUnsupportedSecurityLevel)
	}
	if c.FractionBits < 0 || c.MaskBits < 1 ||
		c.FractionBits+c.MaskBits+2 > c.BitLength || c.BitLength > 64 {
		return nil, xerrors.Errorf("bit length %d, fraction %d, mask %d: %w",
			c.BitLength, c.FractionBits, c.MaskBits, ErrInvalidBitLength)
	}
	if c.Threads < 1 {
		return nil, xerrors.Errorf("%d: %w", c.Threads, ErrInvalidThreads)
	}
	if ctx == nil {
		return nil, ErrMissingContext
	}
	if role == RoleClient && !ctx.CanDecrypt() {
		return nil, ErrMissingSecretKey
	}
	if c.Port < 0 || c.Port > 65535 {
		return nil, fmt.Errorf("aby: invalid port %d", c.Port)
	}
	reserve := c.ReserveGates
	if reserve < 0 {
		reserve = 0
	}
	return &session{
		role:     role,
		protocol: protocol,
		mt:       mt,
		security: c.SecurityLevel,
		bits:     c.BitLength,
		threads:  c.Threads,
		fixed: fixed{
			bits: c.BitLength,
			frac: c.FractionBits,
			mask: c.MaskBits,
		},
		timeout: c.Timeout,
		reserve: reserve,
	}, nil
}
