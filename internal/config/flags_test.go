package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestAddFlagsOverrides(t *testing.T) {
	cfg := &Config{AgentURL: "ws://127.0.0.1:8080", BindAddr: "127.0.0.1:8190", BindFallback: true, CDPPort: 9220}
	flagSet := pflag.NewFlagSet("pulse", pflag.ContinueOnError)
	cfg.AddFlags(flagSet)

	if err := flagSet.Parse([]string{"--bind", "127.0.0.1:9000", "--cdp-port=9333", "--bind-fallback=false"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:9000" {
		t.Fatalf("BindAddr = %q; want 127.0.0.1:9000", cfg.BindAddr)
	}
	if cfg.CDPPort != 9333 {
		t.Fatalf("CDPPort = %d; want 9333", cfg.CDPPort)
	}
	if cfg.BindFallback {
		t.Fatalf("BindFallback = true; want false")
	}
	if cfg.AgentURL != "ws://127.0.0.1:8080" {
		t.Fatalf("AgentURL = %q; want the loaded value kept", cfg.AgentURL)
	}
}
