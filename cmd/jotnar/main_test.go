package main

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestInitConfig(t *testing.T) {
	f, err := os.CreateTemp("", "jotnar_config_test_*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.WriteString("queue:\n  backend: sqlite\n  dsn: test.db\n")
	f.Close()

	oldCfgFile := cfgFile
	oldExit := exit
	defer func() {
		cfgFile = oldCfgFile
		exit = oldExit
		viper.Reset()
	}()

	exitCode := -1
	exit = func(code int) { exitCode = code }

	cfgFile = f.Name()
	viper.Reset()
	initConfig()

	assert.Equal(t, -1, exitCode, "initConfig should not exit on a valid config")
	assert.Equal(t, "sqlite", viper.GetString("queue.backend"))
}

func TestRootCmd_Subcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"ingest", "triage", "rebase", "backport", "janitor", "deploy"} {
		assert.Contains(t, names, want)
	}
}

func TestExecute_ExitsOnUnknownCommand(t *testing.T) {
	oldArgs := os.Args
	oldExit := exit
	defer func() {
		os.Args = oldArgs
		exit = oldExit
	}()

	exitCode := -1
	exit = func(code int) { exitCode = code }
	os.Args = []string{"jotnar", "not-a-real-subcommand"}

	Execute()

	assert.Equal(t, 1, exitCode)
}
