//
// co_test.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"crypto/rand"
	"testing"
)

func TestCO(t *testing.T) {
	const count = 64

	delta, err := NewLabel(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	wires := make([]Wire, count)
	flags := make([]bool, count)
	for i := range wires {
		wires[i], err = NewWire(rand.Reader, delta)
		if err != nil {
			t.Fatal(err)
		}
		flags[i] = i%3 == 0
	}

	pipe, rPipe := NewPipe()
	done := make(chan error)

	go func() {
		sender := NewCO(nil)
		if err := sender.InitSender(pipe); err != nil {
			done <- err
			return
		}
		done <- sender.Send(wires)
	}()

	receiver := NewCO(nil)
	if err := receiver.InitReceiver(rPipe); err != nil {
		t.Fatalf("InitReceiver: %v", err)
	}
	result := make([]Label, count)
	if err := receiver.Receive(flags, result); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	for i, flag := range flags {
		expected := wires[i].L0
		if flag {
			expected = wires[i].L1
		}
		if !result[i].Equal(expected) {
			t.Errorf("label %d: got %v, expected %v", i, result[i], expected)
		}
	}
}

func TestLabel(t *testing.T) {
	var l Label
	l.SetS(true)
	if !l.S() {
		t.Errorf("S bit not set")
	}
	l.SetBit(true)
	if !l.Bit() {
		t.Errorf("LSB not set")
	}
	var data LabelData
	var l2 Label
	l2.SetBytes(l.Bytes(&data))
	if !l.Equal(l2) {
		t.Errorf("bytes round trip failed: %v != %v", l, l2)
	}
}
