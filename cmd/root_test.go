package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"pathways/internal/httpclient"
	"pathways/internal/identity"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
	if GetVersion() != testVersion {
		t.Errorf("Expected GetVersion to return %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "pathways" {
		t.Errorf("Expected Use to be 'pathways', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestGetExitCode(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected int
	}{
		{"generic error", errors.New("boom"), ExitCodeError},
		{"not logged in", errNotLoggedIn, ExitCodeAuthRequired},
		{"wrapped not logged in", fmt.Errorf("status: %w", errNotLoggedIn), ExitCodeAuthRequired},
		{"auth expired", httpclient.ErrAuthExpired, ExitCodeAuthRequired},
		{"state mismatch", identity.ErrStateMismatch, ExitCodeAuthFailed},
		{"provider denial", &identity.CallbackError{Reason: "access_denied"}, ExitCodeAuthFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := getExitCode(tc.err); got != tc.expected {
				t.Errorf("Expected exit code %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestVersionCommandExecution(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = testVersion

	versionCmd := newVersionCmd()

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, []string{})

	expected := "pathways version " + testVersion + "\n"
	if buf.String() != expected {
		t.Errorf("Expected output %q, got %q", expected, buf.String())
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	expected := []string{"login", "logout", "status", "refresh", "catalog", "progress", "version"}
	for _, name := range expected {
		found := false
		for _, sub := range rootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}
