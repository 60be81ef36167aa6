package main

import (
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var configEnvVars = []string{
	"STATIC_PORT",
	"STATIC_ADDRESS",
	"STATIC_LOG_LEVEL",
	"STATIC_ASSETS_DIR",
	"STATIC_PAGES_DIR",
	"STATIC_READ_TIMEOUT",
	"STATIC_RATE_LIMIT_ENABLED",
	"STATIC_RATE_LIMIT_TRUST_PROXY",
	"STATIC_CONFIG_FILE",
}

// TestHelper provides utilities for testing
type TestHelper struct {
	originalEnv map[string]*string
	originalDir string
	logs        *observer.ObservedLogs
	logger      *zap.Logger
}

// SetupTestEnv clears the server's environment variables and captures logs
func SetupTestEnv() *TestHelper {
	core, logs := observer.New(zapcore.DebugLevel)
	helper := &TestHelper{
		originalEnv: make(map[string]*string),
		logs:        logs,
		logger:      zap.New(core),
	}

	for _, envVar := range configEnvVars {
		if value, ok := os.LookupEnv(envVar); ok {
			helper.originalEnv[envVar] = &value
		} else {
			helper.originalEnv[envVar] = nil
		}
		os.Unsetenv(envVar)
	}

	return helper
}

// RestoreEnv restores the original environment and working directory
func (h *TestHelper) RestoreEnv() {
	for key, value := range h.originalEnv {
		if value == nil {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, *value)
		}
	}

	if h.originalDir != "" {
		os.Chdir(h.originalDir)
	}
}

// SetEnv sets an environment variable for testing
func (h *TestHelper) SetEnv(key, value string) {
	os.Setenv(key, value)
}

// Chdir switches the working directory until RestoreEnv
func (h *TestHelper) Chdir(t *testing.T, dir string) {
	t.Helper()

	if h.originalDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		h.originalDir = wd
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

// Logger returns a logger whose output is captured by the helper
func (h *TestHelper) Logger() *zap.Logger {
	return h.logger
}

// Logs returns the captured log entries
func (h *TestHelper) Logs() *observer.ObservedLogs {
	return h.logs
}
