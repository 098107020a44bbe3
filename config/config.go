package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const Version = "1.0.0"

// The listening port must be in the ephemeral range so the server
// never squats on a well-known service port.
const (
	DefaultTCPPort = 50000
	MinTCPPort     = 49152
	MaxTCPPort     = 65535
)

const startTimeLayout = "2006-01-02T15:04:05"

// Config is the fully validated runtime configuration consumed by the
// session engine. It is immutable once loaded.
type Config struct {
	RideName          string        // name of the group ride, checked at registration
	ControlFile       string        // URL of the ride's control file, passed through to clients
	VideoFile         string        // URL of the ride's video file, passed through to clients
	IPAddr            string        // listen address; empty means any interface
	TCPPort           int           // listening TCP port
	MaxRiders         int           // max number of riders allowed to join
	ProgUpdatePeriod  time.Duration // period the clients need to send their progress updates
	LeaderboardPeriod time.Duration // period between leaderboard broadcasts
	StartTime         time.Time     // ride start time in UTC; zero means start immediately
	LogLevel          string
}

func (c Config) String() string {
	start := "immediate"
	if !c.StartTime.IsZero() {
		start = c.StartTime.Format(startTimeLayout)
	}
	return fmt.Sprintf(
		"[CONFIG: RideName: %s | ControlFile: %s | VideoFile: %s | Addr: %s:%d | MaxRiders: %d | ProgUpdatePeriod: %s | LeaderboardPeriod: %s | StartTime: %s | LogLevel: %s]",
		c.RideName,
		c.ControlFile,
		c.VideoFile,
		c.IPAddr,
		c.TCPPort,
		c.MaxRiders,
		c.ProgUpdatePeriod,
		c.LeaderboardPeriod,
		start,
		c.LogLevel,
	)
}

// InitConfig parses the command-line arguments and environment into a
// validated Config. It returns an error with a printable cause for any
// missing required option or malformed value. --help and --version are
// handled here and terminate the process.
func InitConfig(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("grs", pflag.ContinueOnError)

	fs.String("ride-name", "", "name of the group ride")
	fs.String("control-file", "", "URL of the ride's control file")
	fs.String("video-file", "", "URL of the ride's video file")
	fs.String("ip-addr", "", "IP address to listen on (default: any interface)")
	fs.Int("max-riders", 100, "maximum number of riders allowed to join")
	fs.Int("prog-update-period", 1, "period (in seconds) the clients need to send their progress updates")
	fs.Int("leaderboard-period", 2, "period (in seconds) between leaderboard broadcasts")
	fs.String("start-time", "", "start date and time of the ride (ISO 8601 UTC, e.g. 2023-04-02T21:01:00)")
	fs.Int("tcp-port", DefaultTCPPort, fmt.Sprintf("TCP port of the listening socket (%d-%d)", MinTCPPort, MaxTCPPort))
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	version := fs.Bool("version", false, "show program version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		return nil, err
	}

	if *version {
		fmt.Printf("grs version %s\n", Version)
		os.Exit(0)
	}

	v := viper.New()
	v.SetEnvPrefix("GRS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// this function will do nothing if the file is missing,
	// so only environment variables will be used.
	_ = godotenv.Load(".env")
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "failed to bind command-line flags")
	}

	config := &Config{
		RideName:          v.GetString("ride-name"),
		ControlFile:       v.GetString("control-file"),
		VideoFile:         v.GetString("video-file"),
		IPAddr:            v.GetString("ip-addr"),
		TCPPort:           v.GetInt("tcp-port"),
		MaxRiders:         v.GetInt("max-riders"),
		ProgUpdatePeriod:  time.Duration(v.GetInt("prog-update-period")) * time.Second,
		LeaderboardPeriod: time.Duration(v.GetInt("leaderboard-period")) * time.Second,
		LogLevel:          v.GetString("log-level"),
	}

	if start := v.GetString("start-time"); start != "" {
		startTime, err := time.ParseInLocation(startTimeLayout, start, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid start time %q", start)
		}
		config.StartTime = startTime
	}

	if err := config.validate(time.Now().UTC()); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate(now time.Time) error {
	if c.RideName == "" {
		return errors.New("missing required option: --ride-name")
	}
	if c.ControlFile == "" {
		return errors.New("missing required option: --control-file")
	}
	if c.VideoFile == "" {
		return errors.New("missing required option: --video-file")
	}
	if c.IPAddr != "" && net.ParseIP(c.IPAddr) == nil {
		return errors.Errorf("invalid IP address %q", c.IPAddr)
	}
	if (c.TCPPort < MinTCPPort) || (c.TCPPort > MaxTCPPort) {
		return errors.Errorf("TCP port must be in the range %d-%d", MinTCPPort, MaxTCPPort)
	}
	if c.MaxRiders <= 0 {
		return errors.Errorf("invalid max riders value %d", c.MaxRiders)
	}
	if c.ProgUpdatePeriod <= 0 {
		return errors.New("progress update period must be positive")
	}
	if c.LeaderboardPeriod <= 0 {
		return errors.New("leaderboard period must be positive")
	}
	if !c.StartTime.IsZero() && c.StartTime.Before(now) {
		return errors.Errorf("start time %s is already in the past", c.StartTime.Format(startTimeLayout))
	}
	return nil
}

// StartTimeEpoch is the ride start time as Unix seconds, zero when the
// ride starts immediately. This is the value sent on the wire in the
// registration response.
func (c *Config) StartTimeEpoch() int64 {
	if c.StartTime.IsZero() {
		return 0
	}
	return c.StartTime.Unix()
}
