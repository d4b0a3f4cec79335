package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun_AlwaysSmilingLosesEveryGame(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var out bytes.Buffer
	err := run([]string{"-games=2", "-seed=3", "-smile=1", "-fps=400", "-round=2s", "-items=3", "-timeout=5s"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "seed 3\n") {
		t.Errorf("output missing seed line:\n%s", got)
	}
	if strings.Count(got, "finished") != 2 || !strings.Contains(got, "laughed in 2 of 2 games") {
		t.Errorf("expected two lost games:\n%s", got)
	}
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-games=many"}, &out); err == nil {
		t.Error("run should reject a malformed flag")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-fps=0"}, &out); err == nil {
		t.Error("run should reject a zero frame rate")
	}
}
