package main

import "testing"

func TestRunCLIUnknownSubcommandReturnsFalse(t *testing.T) {
	if RunCLI([]string{"bogus"}) {
		t.Fatalf("expected unknown subcommand to return false")
	}
}

func TestRunCLINoArgsReturnsFalse(t *testing.T) {
	if RunCLI(nil) {
		t.Fatalf("expected empty args to return false")
	}
}

func TestRunCLIVersion(t *testing.T) {
	if !RunCLI([]string{"version"}) {
		t.Fatalf("expected version subcommand to be handled")
	}
}

func TestRunCLIConfig(t *testing.T) {
	if !RunCLI([]string{"config"}) {
		t.Fatalf("expected config subcommand to be handled")
	}
}
