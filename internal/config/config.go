package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the logrus logger shared by every command.
type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
	// Dir, when set, receives one file per log level.
	Dir string `yaml:"dir"`
}

// CaptureConfig describes where packets come from and how long a capture lasts.
type CaptureConfig struct {
	Source           string `yaml:"source" default:"live"` // live, offline or nats
	Interface        string `yaml:"interface"`
	OfflinePath      string `yaml:"offline_path"`
	BPFFilter        string `yaml:"bpf_filter"`
	SnapshotLen      int32  `yaml:"snapshot_len" default:"1600"`
	Promiscuous      bool   `yaml:"promiscuous" default:"true"`
	BaselineDuration string `yaml:"baseline_duration" default:"60s"`
	AttackDuration   string `yaml:"attack_duration" default:"90s"`
	MaxPackets       int    `yaml:"max_packets"`
	ProgressEvery    int    `yaml:"progress_every" default:"1000"`
	Archive          bool   `yaml:"archive" default:"true"`
	SizeOfChannel    int    `yaml:"size_of_channel" default:"10000"`
}

// ModuleDef defines a single attack module from the config file.
type ModuleDef struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Count     int    `yaml:"count"`
	PortRange string `yaml:"port_range"`
	Ports     []int  `yaml:"ports"`
	Timeout   string `yaml:"timeout"`
	Binary    string `yaml:"binary"`
}

// AttackConfig holds the configuration for the attack sequencer.
type AttackConfig struct {
	Target    string      `yaml:"target" default:"127.0.0.1"`
	WarmUp    string      `yaml:"warm_up" default:"2s"`
	Pause     string      `yaml:"pause" default:"3s"`
	Preflight bool        `yaml:"preflight" default:"true"`
	Modules   []ModuleDef `yaml:"modules"`
}

// ClickHouseConfig holds the connection details for the ClickHouse writer.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"127.0.0.1"`
	Port     int    `yaml:"port" default:"9000"`
	Database string `yaml:"database" default:"default"`
	Username string `yaml:"username" default:"default"`
	Password string `yaml:"password"`
}

// StorageConfig defines where run artifacts are written.
type StorageConfig struct {
	RootPath   string           `yaml:"root_path" default:"captures"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ProbeConfig holds the NATS details shared by remote probes and the NATS source.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url" default:"nats://127.0.0.1:4222"`
	Subject string `yaml:"subject" default:"netdev.frames.raw"`
}

// APIConfig holds the listen addresses of nd-api.
type APIConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr" default:":8080"`
	GrpcListenAddr string `yaml:"grpc_listen_addr" default:":50051"`
}

// SMTPConfig holds the configuration for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" default:"587"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Capture CaptureConfig `yaml:"capture"`
	Attack  AttackConfig  `yaml:"attack"`
	Storage StorageConfig `yaml:"storage"`
	Probe   ProbeConfig   `yaml:"probe"`
	API     APIConfig     `yaml:"api"`
	SMTP    SMTPConfig    `yaml:"smtp"`
}

// DefaultModules returns the fixed attack sequence: scan, three floods, banner grab.
func DefaultModules() []ModuleDef {
	return []ModuleDef{
		{Name: "nmap_port_scan", Type: "port_scan", PortRange: "1-1000", Binary: "nmap"},
		{Name: "syn_flood", Type: "syn_flood", Count: 200},
		{Name: "icmp_flood", Type: "icmp_flood", Count: 100},
		{Name: "udp_flood", Type: "udp_flood", Count: 150},
		{Name: "banner_grab", Type: "banner_grab", Ports: []int{21, 22, 23, 25, 80, 443, 3306, 8080}, Timeout: "500ms"},
	}
}

// Default returns a Config populated only with default values.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	cfg.Attack.Modules = DefaultModules()
	return &cfg, nil
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Fields absent from the file keep their defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if len(cfg.Attack.Modules) == 0 {
		cfg.Attack.Modules = DefaultModules()
	}

	if _, err := cfg.Durations(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Durations holds the parsed form of every duration string in the config.
type Durations struct {
	Baseline time.Duration
	Attack   time.Duration
	WarmUp   time.Duration
	Pause    time.Duration
}

// Durations parses the duration fields, naming the offending key on failure.
func (c *Config) Durations() (Durations, error) {
	var d Durations
	fields := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"capture.baseline_duration", c.Capture.BaselineDuration, &d.Baseline},
		{"capture.attack_duration", c.Capture.AttackDuration, &d.Attack},
		{"attack.warm_up", c.Attack.WarmUp, &d.WarmUp},
		{"attack.pause", c.Attack.Pause, &d.Pause},
	}
	for _, f := range fields {
		v, err := time.ParseDuration(f.value)
		if err != nil {
			return Durations{}, fmt.Errorf("invalid %s %q: %w", f.key, f.value, err)
		}
		if v < 0 {
			return Durations{}, fmt.Errorf("%s must not be negative", f.key)
		}
		*f.dst = v
	}
	return d, nil
}
