// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package logx

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	l.Debug("should not appear")
	l.Info("should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below min level, got %q", buf.String())
	}

	l.Warn("visible warning", "k", "v")
	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "visible warning") {
		t.Errorf("output %q missing level/message", out)
	}
	if !strings.Contains(out, "k=v") {
		t.Errorf("output %q missing key/value pair", out)
	}
}

func TestLoggerHandlesOddContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug")
	l.Info("odd", "onlyKey")
	if !strings.Contains(buf.String(), "onlyKey=MISSING") {
		t.Errorf("output %q should flag the dangling key", buf.String())
	}
}

func TestDiscardLoggerDoesNothing(t *testing.T) {
	// Exercising every method is the only way to prove none of them
	// panics; Discard is used whenever an embedder configures no logger.
	Discard.Debug("x")
	Discard.Info("x")
	Discard.Warn("x")
	Discard.Error("x")
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "not-a-real-level")
	l.Info("shown")
	l.Debug("hidden")
	out := buf.String()
	if !strings.Contains(out, "shown") || strings.Contains(out, "hidden") {
		t.Errorf("unrecognized min-level string should default to info, got %q", out)
	}
}
