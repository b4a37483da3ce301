// internal/config/config.go
package config

import "time"

// Settings is the service configuration, loaded by LoadSettings.
type Settings struct {
	RegistersPath string `mapstructure:"registers_path"`

	HTTP    HTTPConfig    `mapstructure:"http"`
	Modbus  ModbusConfig  `mapstructure:"modbus"`
	Polling PollingConfig `mapstructure:"polling"`
	Link    LinkConfig    `mapstructure:"link"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Request bodies reaching this size are refused.
	ScratchSize int `mapstructure:"scratch_size"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"` // 0 disables
	Burst int     `mapstructure:"burst"`
}

// ---- FIELD BUS ----

type ModbusConfig struct {
	Mode        string        `mapstructure:"mode"` // rtu | tcp
	Port        string        `mapstructure:"port"`
	Address     string        `mapstructure:"address"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	Parity      string        `mapstructure:"parity"`
	StopBits    int           `mapstructure:"stop_bits"`
	RS485       bool          `mapstructure:"rs485"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	Breaker BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// ---- POLLING ----

type PollingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Retries     int           `mapstructure:"retries"`
	ReadDelay   time.Duration `mapstructure:"read_delay"`
	SweepDelay  time.Duration `mapstructure:"sweep_delay"`
	Interval    time.Duration `mapstructure:"interval"` // zero runs one cycle
	EchoCID     int           `mapstructure:"echo_cid"` // negative disables
	EchoPattern uint8         `mapstructure:"echo_pattern"`
}

// ---- LINK ----

type LinkConfig struct {
	Interface    string        `mapstructure:"interface"` // empty disables
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RegisterFile is the yaml register map.
type RegisterFile struct {
	Blocks    BlocksConfig     `yaml:"blocks"`
	Registers []RegisterConfig `yaml:"registers"`
}

// BlocksConfig sizes the per-kind storage blocks; zero derives the size
// from the table.
type BlocksConfig struct {
	Holding  int `yaml:"holding"`
	Input    int `yaml:"input"`
	Coil     int `yaml:"coil"`
	Discrete int `yaml:"discrete"`
}

// RegisterConfig is one characteristic.
type RegisterConfig struct {
	CID    uint16    `yaml:"cid"`
	Name   string    `yaml:"name"`
	Units  string    `yaml:"units"`
	Device uint8     `yaml:"device"`
	Kind   string    `yaml:"kind"`
	Start  uint16    `yaml:"start"`
	Count  uint16    `yaml:"count"`
	Offset *int      `yaml:"offset"`
	Type   string    `yaml:"type"`
	Size   int       `yaml:"size"`
	Limits []float64 `yaml:"limits"` // min, max, step or mask
	Access string    `yaml:"access"`
}
