package config

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("CFG_STR", "value")
	if got := String("CFG_STR", "fallback"); got != "value" {
		t.Fatalf("String = %q", got)
	}
	if got := String("CFG_STR_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("String fallback = %q", got)
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("CFG_REQ", "value")
	if got, err := RequiredString("CFG_REQ"); err != nil || got != "value" {
		t.Fatalf("RequiredString = %q, %v", got, err)
	}
	if _, err := RequiredString("CFG_REQ_UNSET"); err == nil {
		t.Fatal("missing required var should error")
	}
}

func TestInt(t *testing.T) {
	t.Setenv("CFG_INT", "42")
	if got := Int("CFG_INT", 7); got != 42 {
		t.Fatalf("Int = %d", got)
	}
	t.Setenv("CFG_INT_BAD", "many")
	if got := Int("CFG_INT_BAD", 7); got != 7 {
		t.Fatalf("malformed int should fall back, got %d", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("CFG_DUR", "90s")
	if got := Duration("CFG_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("Duration = %s", got)
	}
	if got := Duration("CFG_DUR_UNSET", time.Minute); got != time.Minute {
		t.Fatalf("Duration fallback = %s", got)
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CFG_PORT", "8080")
	if got, err := Port("CFG_PORT", "9090"); err != nil || got != "8080" {
		t.Fatalf("Port = %q, %v", got, err)
	}
	t.Setenv("CFG_PORT_BAD", "eighty")
	if _, err := Port("CFG_PORT_BAD", "9090"); err == nil {
		t.Fatal("non-numeric port should error")
	}
	t.Setenv("CFG_PORT_RANGE", "70000")
	if _, err := Port("CFG_PORT_RANGE", "9090"); err == nil {
		t.Fatal("out-of-range port should error")
	}
}
