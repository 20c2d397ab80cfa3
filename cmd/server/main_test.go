package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chitchat/internal/registry"
)

func TestRun_Rejects_Unknown_Username_Policy(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "missing.env")

	err := run([]string{"--env-file", envFile, "--username-policy", "newest"})

	require.ErrorIs(t, err, registry.ErrInvalidUsernamePolicy)
}

func TestRun_Rejects_Unknown_Flag(t *testing.T) {
	err := run([]string{"--no-such-flag"})
	require.Error(t, err)
}

func TestRun_Reports_Bad_Env_File(t *testing.T) {
	// A directory cannot be parsed as a dotenv file
	err := run([]string{"--env-file", t.TempDir()})
	require.Error(t, err)
}
