package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENGR161-Team1/MARCO/internal/imu"
)

const validConfig = `
# comment line
I2C_BUS=1
BUILDHAT_PORT=/dev/serial0
BUILDHAT_BAUD=115200

LINE_CHANNELS=0,1,2,3,4
LINE_POSITIONS=-2,-1,0,1,2
LINE_THRESHOLD=0.5

MOTOR_LEFT_PORT=0
MOTOR_RIGHT_PORT=1
MOTOR_LEFT_INVERTED=true
WHEEL_RADIUS_CM=2.8
WHEEL_BASE_CM=12.0

MAX_SPEED_CMS=25.0
TICK_PERIOD_MS=40
NAV_INTERVAL_MS=40
ANGLE_MODE=radians
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.I2CBus)
	assert.Equal(t, 115200, cfg.BuildHATBaud)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, cfg.LineChannels)
	assert.Equal(t, []float64{-2, -1, 0, 1, 2}, cfg.LinePositions)
	assert.True(t, cfg.MotorLeftInverted)
	assert.Equal(t, 12.0, cfg.WheelBase)
	assert.Equal(t, imu.Radians, cfg.AngleMode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"\nBOGUS_KEY=1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOGUS_KEY")
}

func TestLoadMalformedLine(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"\nnot a key value pair\n"))
	assert.Error(t, err)
}

func TestLoadChannelPositionMismatch(t *testing.T) {
	cfg := validConfig + "\nLINE_POSITIONS=-1,0,1\n"
	_, err := Load(writeConfig(t, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "equal length")
}

func TestLoadBadAngleMode(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"\nANGLE_MODE=gradians\n"))
	assert.Error(t, err)
}

func TestLoadThresholdRange(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"\nLINE_THRESHOLD=1.5\n"))
	assert.Error(t, err)
}

func TestLoadMotorPortRange(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"\nMOTOR_LEFT_PORT=7\n"))
	assert.Error(t, err)
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(writeConfig(t, "I2C_BUS=1\n"))
	assert.Error(t, err)
}
