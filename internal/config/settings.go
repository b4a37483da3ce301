// internal/config/settings.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoadSettings reads the service settings from path (optional) and BRIDGE_*
// environment overrides, then validates them. An empty path searches ".",
// "./config" and "/etc/modbus-bridge" for bridge.yaml.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/modbus-bridge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read settings: %w", err)
		}
	}

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: decode settings: %w", err)
	}

	if err := ValidateSettings(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registers_path", "")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.scratch_size", 10240)
	v.SetDefault("http.rate_limit.rps", 20.0)
	v.SetDefault("http.rate_limit.burst", 5)

	v.SetDefault("modbus.mode", "rtu")
	v.SetDefault("modbus.port", "/dev/ttyS1")
	v.SetDefault("modbus.address", "127.0.0.1:502")
	v.SetDefault("modbus.baud_rate", 115200)
	v.SetDefault("modbus.data_bits", 8)
	v.SetDefault("modbus.parity", "N")
	v.SetDefault("modbus.stop_bits", 1)
	v.SetDefault("modbus.rs485", true)
	v.SetDefault("modbus.timeout", time.Second)
	v.SetDefault("modbus.idle_timeout", time.Minute)
	v.SetDefault("modbus.breaker.max_requests", 1)
	v.SetDefault("modbus.breaker.interval", 30*time.Second)
	v.SetDefault("modbus.breaker.timeout", 10*time.Second)
	v.SetDefault("modbus.breaker.failure_threshold", 5)

	v.SetDefault("polling.enabled", true)
	v.SetDefault("polling.retries", 30)
	v.SetDefault("polling.read_delay", time.Millisecond)
	v.SetDefault("polling.sweep_delay", 500*time.Millisecond)
	v.SetDefault("polling.interval", 0)
	v.SetDefault("polling.echo_cid", -1)
	v.SetDefault("polling.echo_pattern", 0x55)

	v.SetDefault("link.interface", "")
	v.SetDefault("link.poll_interval", 2*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// ValidateSettings checks settings correctness. It does not mutate s.
func ValidateSettings(s *Settings) error {
	if s.HTTP.Addr == "" {
		return errors.New("config: http.addr is required")
	}
	if s.HTTP.ScratchSize <= 0 {
		return fmt.Errorf("config: http.scratch_size must be positive, got %d", s.HTTP.ScratchSize)
	}
	if s.HTTP.RateLimit.RPS < 0 {
		return fmt.Errorf("config: http.rate_limit.rps must not be negative")
	}
	if s.HTTP.RateLimit.RPS > 0 && s.HTTP.RateLimit.Burst <= 0 {
		return fmt.Errorf("config: http.rate_limit.burst must be positive when rps is set")
	}

	switch s.Modbus.Mode {
	case "rtu":
		if s.Modbus.Port == "" {
			return errors.New("config: modbus.port is required in rtu mode")
		}
		switch s.Modbus.Parity {
		case "N", "E", "O":
		default:
			return fmt.Errorf("config: modbus.parity must be N, E or O, got %q", s.Modbus.Parity)
		}
		if s.Modbus.BaudRate <= 0 {
			return fmt.Errorf("config: modbus.baud_rate must be positive")
		}
	case "tcp":
		if s.Modbus.Address == "" {
			return errors.New("config: modbus.address is required in tcp mode")
		}
	default:
		return fmt.Errorf("config: modbus.mode must be rtu or tcp, got %q", s.Modbus.Mode)
	}
	if s.Modbus.Timeout <= 0 {
		return errors.New("config: modbus.timeout must be positive")
	}

	if s.Polling.Retries < 0 {
		return fmt.Errorf("config: polling.retries must not be negative")
	}
	if s.Polling.ReadDelay < 0 || s.Polling.SweepDelay < 0 || s.Polling.Interval < 0 {
		return errors.New("config: polling delays must not be negative")
	}
	if s.Polling.EchoCID > 0xFFFF {
		return fmt.Errorf("config: polling.echo_cid %d out of range", s.Polling.EchoCID)
	}
	return nil
}
