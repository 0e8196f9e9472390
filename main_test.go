package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ptgott/mailutil/smtptest"
	"github.com/ptgott/mailutil/userconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	missingConfig := filepath.Join(dir, "missing.yaml")

	badConfig := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badConfig, []byte("log:\n    path: ./log.csv\n"), 0644); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		description string
		args        []string
		expected    int
	}{
		{
			description: "valid addresses only",
			args:        []string{"-validate", "-to", "you@example.com", "-cc", "a@b.co", "-cc", "cc@example.org"},
			expected:    0,
		},
		{
			description: "invalid recipient",
			args:        []string{"-validate", "-to", "no-at-symbol.com"},
			expected:    1,
		},
		{
			description: "invalid cc",
			args:        []string{"-validate", "-to", "you@example.com", "-cc", "a@b.c"},
			expected:    1,
		},
		{
			description: "missing config file",
			args:        []string{"-config", missingConfig, "-to", "you@example.com"},
			expected:    1,
		},
		{
			description: "config without an email section",
			args:        []string{"-config", badConfig, "-to", "you@example.com"},
			expected:    1,
		},
		{
			description: "unknown flag",
			args:        []string{"-nope"},
			expected:    2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, run(tc.args))
		})
	}
}

func TestRunSends(t *testing.T) {
	t.Setenv(userconfig.PasswordEnvVar, "")
	srv := smtptest.StartServer(t)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.csv")
	attPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(attPath, []byte("some notes"), 0644))

	configPath := filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf(`email:
    smtpServerAddress: %v
    username: myuser
    password: mypassword
    fromAddress: me@example.com
    skipCertVerification: true
log:
    path: %v
`, srv.Address(), logPath)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	code := run([]string{
		"-config", configPath,
		"-to", "you@example.com",
		"-subject", "From the command line",
		"-body", "Hello",
		"-attach", attPath,
	})
	require.Equal(t, 0, code)

	ms := srv.RetrieveMessages(0)
	require.Len(t, ms, 1)
	assert.Equal(t, "me@example.com", ms[0].From)
	assert.Equal(t, []string{"you@example.com"}, ms[0].To)

	pe, err := smtptest.ParseEmail(ms[0].Body)
	require.NoError(t, err)
	as := pe.Attachments()
	require.Len(t, as, 1)
	assert.Equal(t, "notes.txt", as[0].Filename())

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "you@example.com,success,"), lines[0])
}
