package main

import "testing"

func TestVersionCommandExists(t *testing.T) {
	// Test that the version command is properly initialized
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}

	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want %q", versionCmd.Use, "version")
	}

	if versionCmd.Short == "" {
		t.Error("versionCmd.Short should not be empty")
	}

	if versionCmd.Run == nil {
		t.Error("versionCmd.Run should not be nil")
	}

	if versionCmd.Flags().Lookup("short") == nil {
		t.Error("versionCmd should expose a --short flag")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := map[string]bool{
		"run":      false,
		"validate": false,
		"cache":    false,
		"version":  false,
	}

	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
