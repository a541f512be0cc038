package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ENGR161-Team1/MARCO/internal/imu"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDFollow   string
	MQTTClientIDNavigate string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicPose   string
	TopicStatus string

	// Hardware buses
	I2CBus        string
	BuildHATPort  string
	BuildHATBaud  int
	UltrasonicPin string

	// Motors
	MotorLeftPort     int
	MotorRightPort    int
	MotorLeftInverted bool
	WheelRadius       float64 // cm
	WheelBase         float64 // cm

	// Line sensor array
	LineChannels  []int
	LinePositions []float64
	LineInvert    bool
	LineThreshold float64

	// Line following
	Speed       float64 // commanded forward speed, cm/s
	MaxSpeed    float64 // per-wheel limit, cm/s
	MinRadius   float64 // tightest turn radius, cm
	Kp, Ki, Kd  float64
	TickPeriod  int // milliseconds
	RunDuration int // seconds
	WindowSize  int

	// Gap recovery
	ReacquireTime    int     // milliseconds
	ReacquireMaxDist float64 // cm
	SweepAngle       float64 // degrees
	SweepStep        float64 // degrees

	// Safety ring
	StoppingDistance float64 // cm
	SlowdownDistance float64 // cm
	SlowFactor       float64
	SafetyInterval   int // milliseconds

	// Pose tracking
	AngleMode           imu.AngleMode
	NavInterval         int // milliseconds
	AccelNoiseThreshold float64
	VelocityDecay       float64
	PoseLogCapacity     int
	PoseLogFile         string

	// Calibration
	CalibrationFile     string
	CalibrationSamples  int
	CalibrationInterval int // milliseconds

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for the singleton:
//   - globalConfig is unexported so other packages cannot mutate it.
//   - configOnce ensures InitGlobal only runs once.
//   - configMu allows many concurrent readers through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func parseIntList(key, value string) ([]int, error) {
	fields := strings.Split(value, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid %s element %q: %w", key, f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloatList(key, value string) ([]float64, error) {
	fields := strings.Split(value, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s element %q: %w", key, f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_FOLLOW":
		c.MQTTClientIDFollow = value
	case "MQTT_CLIENT_ID_NAVIGATE":
		c.MQTTClientIDNavigate = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// Hardware buses
	case "I2C_BUS":
		c.I2CBus = value
	case "BUILDHAT_PORT":
		c.BuildHATPort = value
	case "BUILDHAT_BAUD":
		c.BuildHATBaud, err = parseInt(key, value)
	case "ULTRASONIC_PIN":
		c.UltrasonicPin = value

	// Motors
	case "MOTOR_LEFT_PORT":
		c.MotorLeftPort, err = parseInt(key, value)
		if err == nil && (c.MotorLeftPort < 0 || c.MotorLeftPort > 3) {
			return fmt.Errorf("MOTOR_LEFT_PORT must be 0-3, got %d", c.MotorLeftPort)
		}
	case "MOTOR_RIGHT_PORT":
		c.MotorRightPort, err = parseInt(key, value)
		if err == nil && (c.MotorRightPort < 0 || c.MotorRightPort > 3) {
			return fmt.Errorf("MOTOR_RIGHT_PORT must be 0-3, got %d", c.MotorRightPort)
		}
	case "MOTOR_LEFT_INVERTED":
		c.MotorLeftInverted, err = parseBool(key, value)
	case "WHEEL_RADIUS_CM":
		c.WheelRadius, err = parseFloat(key, value)
	case "WHEEL_BASE_CM":
		c.WheelBase, err = parseFloat(key, value)

	// Line sensor array
	case "LINE_CHANNELS":
		c.LineChannels, err = parseIntList(key, value)
	case "LINE_POSITIONS":
		c.LinePositions, err = parseFloatList(key, value)
	case "LINE_INVERT":
		c.LineInvert, err = parseBool(key, value)
	case "LINE_THRESHOLD":
		c.LineThreshold, err = parseFloat(key, value)
		if err == nil && (c.LineThreshold < 0 || c.LineThreshold > 1) {
			return fmt.Errorf("LINE_THRESHOLD must be in [0,1], got %v", c.LineThreshold)
		}

	// Line following
	case "SPEED_CMS":
		c.Speed, err = parseFloat(key, value)
	case "MAX_SPEED_CMS":
		c.MaxSpeed, err = parseFloat(key, value)
	case "MIN_RADIUS_CM":
		c.MinRadius, err = parseFloat(key, value)
	case "PID_KP":
		c.Kp, err = parseFloat(key, value)
	case "PID_KI":
		c.Ki, err = parseFloat(key, value)
	case "PID_KD":
		c.Kd, err = parseFloat(key, value)
	case "TICK_PERIOD_MS":
		c.TickPeriod, err = parseInt(key, value)
	case "RUN_DURATION_S":
		c.RunDuration, err = parseInt(key, value)
	case "WINDOW_SIZE":
		c.WindowSize, err = parseInt(key, value)

	// Gap recovery
	case "REACQUIRE_TIME_MS":
		c.ReacquireTime, err = parseInt(key, value)
	case "REACQUIRE_MAX_DISTANCE_CM":
		c.ReacquireMaxDist, err = parseFloat(key, value)
	case "SWEEP_ANGLE_DEG":
		c.SweepAngle, err = parseFloat(key, value)
	case "SWEEP_STEP_DEG":
		c.SweepStep, err = parseFloat(key, value)

	// Safety ring
	case "STOPPING_DISTANCE_CM":
		c.StoppingDistance, err = parseFloat(key, value)
	case "SLOWDOWN_DISTANCE_CM":
		c.SlowdownDistance, err = parseFloat(key, value)
	case "SLOW_FACTOR":
		c.SlowFactor, err = parseFloat(key, value)
		if err == nil && (c.SlowFactor <= 0 || c.SlowFactor > 1) {
			return fmt.Errorf("SLOW_FACTOR must be in (0,1], got %v", c.SlowFactor)
		}
	case "SAFETY_INTERVAL_MS":
		c.SafetyInterval, err = parseInt(key, value)

	// Pose tracking
	case "ANGLE_MODE":
		switch strings.ToLower(value) {
		case "degrees":
			c.AngleMode = imu.Degrees
		case "radians":
			c.AngleMode = imu.Radians
		default:
			return fmt.Errorf("ANGLE_MODE must be degrees or radians, got %q", value)
		}
	case "NAV_INTERVAL_MS":
		c.NavInterval, err = parseInt(key, value)
	case "ACCEL_NOISE_THRESHOLD":
		c.AccelNoiseThreshold, err = parseFloat(key, value)
	case "VELOCITY_DECAY":
		c.VelocityDecay, err = parseFloat(key, value)
		if err == nil && (c.VelocityDecay < 0 || c.VelocityDecay > 1) {
			return fmt.Errorf("VELOCITY_DECAY must be in [0,1], got %v", c.VelocityDecay)
		}
	case "POSE_LOG_CAPACITY":
		c.PoseLogCapacity, err = parseInt(key, value)
	case "POSE_LOG_FILE":
		c.PoseLogFile = value

	// Calibration
	case "CALIBRATION_FILE":
		c.CalibrationFile = value
	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseInt(key, value)
	case "CALIBRATION_INTERVAL_MS":
		c.CalibrationInterval, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.I2CBus == "" {
		return fmt.Errorf("I2C_BUS is required")
	}
	if c.BuildHATPort == "" {
		return fmt.Errorf("BUILDHAT_PORT is required")
	}
	if c.BuildHATBaud == 0 {
		return fmt.Errorf("BUILDHAT_BAUD is required")
	}
	if len(c.LineChannels) == 0 {
		return fmt.Errorf("LINE_CHANNELS is required")
	}
	if len(c.LineChannels) != len(c.LinePositions) {
		return fmt.Errorf("LINE_CHANNELS and LINE_POSITIONS must have equal length (%d vs %d)",
			len(c.LineChannels), len(c.LinePositions))
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("MAX_SPEED_CMS must be positive")
	}
	if c.WheelBase <= 0 {
		return fmt.Errorf("WHEEL_BASE_CM must be positive")
	}
	if c.WheelRadius <= 0 {
		return fmt.Errorf("WHEEL_RADIUS_CM must be positive")
	}
	if c.TickPeriod == 0 {
		return fmt.Errorf("TICK_PERIOD_MS is required")
	}
	if c.NavInterval == 0 {
		return fmt.Errorf("NAV_INTERVAL_MS is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. sync.Once
// guards repeat calls; only this function can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be
// called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
