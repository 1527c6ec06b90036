//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package env

import (
	"bytes"
	"io"
	"testing"
)

func TestSeededRandom(t *testing.T) {
	var a, b, c [64]byte

	if _, err := io.ReadFull(NewSeededRandom([]byte("seed")), a[:]); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadFull(NewSeededRandom([]byte("seed")), b[:]); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadFull(NewSeededRandom([]byte("other")), c[:]); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a[:], b[:]) {
		t.Errorf("same seed produced different streams")
	}
	if bytes.Equal(a[:], c[:]) {
		t.Errorf("different seeds produced equal streams")
	}
}

func TestDefaults(t *testing.T) {
	var config *Config
	if config.GetRandom() == nil {
		t.Errorf("nil random")
	}
	if config.GetLogger() == nil {
		t.Errorf("nil logger")
	}
}
