// cmd/supervisor/main_test.go
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/safety-supervisor/internal/config"
	"github.com/tamzrod/safety-supervisor/internal/hardfault"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, yml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supervisor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	return path
}

const memoryConfig = `supervisor:
  name: bench
  store: { in_memory: true }
  self_test:
    ram:
      enabled: true
      regions:
        - { start: 0x0000, end: 0x00ff }
`

func TestValidate_ExampleConfig(t *testing.T) {
	out, err := execute(t, "validate", "-c", filepath.Join("..", "..", "supervisor.example.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "config ok: safety-01")
	assert.Contains(t, out, "ram=1/1 rom=1/1 cpu=3/4")
}

func TestValidate_RejectsMisalignedRegion(t *testing.T) {
	path := writeConfig(t, `supervisor:
  name: bench
  self_test:
    ram:
      enabled: true
      regions:
        - { start: 0x0002, end: 0x0101 }
`)
	_, err := execute(t, "validate", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self_test.ram")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRoot_RejectsLogFormat(t *testing.T) {
	_, err := execute(t, "validate", "--log-format", "xml", "-c", writeConfig(t, memoryConfig))
	assert.Error(t, err)
}

func TestLog_EmptyStore(t *testing.T) {
	out, err := execute(t, "log", "-c", writeConfig(t, memoryConfig))
	require.NoError(t, err)
	assert.Contains(t, out, "nv last error: no_error")
	assert.Contains(t, out, "reset cause: power_on")
	assert.Contains(t, out, "error log empty")
}

func TestPowerCycle(t *testing.T) {
	out, err := execute(t, "power-cycle", "-c", writeConfig(t, memoryConfig))
	require.NoError(t, err)
	assert.Contains(t, out, "power cycled")
}

func TestPrintRecords(t *testing.T) {
	st, err := openStores(config.StoreConfig{InMemory: true}, nil)
	require.NoError(t, err)
	defer st.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := hardfault.HardErrorEntry(hardfault.VoltageExceeded, true)
	e.At = at
	e.BootID = uuid.New()
	require.NoError(t, st.log.AppendPermanent(e))

	records, err := st.log.List()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printRecords(&out, records))
	assert.Contains(t, out.String(), "voltage_exceeded")
	assert.Contains(t, out.String(), "permanent")
	assert.Contains(t, out.String(), "2026-03-01T12:00:00Z")
	assert.Contains(t, out.String(), "0x08610000")
}

func TestCauseString(t *testing.T) {
	assert.Equal(t, "watchdog", causeString(hardfault.ResetWatchdog|hardfault.ResetPin))
	assert.Equal(t, "software", causeString(hardfault.ResetSoftware))
	assert.Equal(t, "power_on", causeString(hardfault.ResetPowerOn))
}
