//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package env implements global environment for the secure tensor
// evaluation modules.
package env

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/chacha20"
)

// Config defines the global system configuration. It configures
// system operation for all modules. Config must not be modified after
// being passed to any module. It is safe for concurrent use by
// multiple modules as they do not modify it.
type Config struct {
	Rand   io.Reader
	Logger *zerolog.Logger
}

// GetRandom returns the source of entropy for masking, garbling, OT,
// and other cryptography operations.
func (config *Config) GetRandom() io.Reader {
	if config != nil && config.Rand != nil {
		return config.Rand
	}
	return rand.Reader
}

var defaultLogger = zerolog.New(zerolog.ConsoleWriter{
	Out: os.Stderr,
}).With().Timestamp().Logger()

// GetLogger returns the logger.
func (config *Config) GetLogger() *zerolog.Logger {
	if config != nil && config.Logger != nil {
		return config.Logger
	}
	return &defaultLogger
}

// NewSeededRandom creates a deterministic random stream from the
// seed. The stream is the ChaCha20 key stream keyed with the SHA-256
// hash of the seed.
func NewSeededRandom(seed []byte) io.Reader {
	key := sha256.Sum256(seed)
	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err)
	}
	return &keyStream{
		cipher: cipher,
	}
}

type keyStream struct {
	cipher *chacha20.Cipher
}

func (ks *keyStream) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	ks.cipher.XORKeyStream(p, p)
	return len(p), nil
}
