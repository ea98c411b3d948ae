package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/angas/pricewatch-go/hours"
	"github.com/angas/pricewatch-go/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	Path string
	// How many days daily backup files should be stored before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 30
	}
	return *d.BackupRetentionDays
}

type AppConfigTibber struct {
	ApiToken string `mapstructure:"api_token"` // Personal access token from developer.tibber.com
}

type AppConfigAnalysis struct {
	// Battery round-trip efficiency in percent (1-100), default: 75
	BatteryEfficiency *float64 `mapstructure:"battery_efficiency"`
	// Consecutive hours for window searches and top-N rankings (1-24), default: 3
	HoursDuration *int `mapstructure:"hours_duration"`
	// Custom time-of-day window, e.g. overnight charging. End at or before
	// start means the window wraps past midnight. Default: 17:00-07:00
	WindowStart *string `mapstructure:"window_start"`
	WindowEnd   *string `mapstructure:"window_end"`
}

// GetEfficiency returns the battery efficiency as a fraction, clamped to (0, 1].
func (a AppConfigAnalysis) GetEfficiency() float64 {
	e := 75.0
	if a.BatteryEfficiency != nil {
		e = *a.BatteryEfficiency
	}
	if e < 1 {
		e = 1
	}
	if e > 100 {
		e = 100
	}
	return e / 100.0
}

func (a AppConfigAnalysis) GetDuration() int {
	d := 3
	if a.HoursDuration != nil {
		d = *a.HoursDuration
	}
	if d < 1 {
		d = 1
	}
	if d > 24 {
		d = 24
	}
	return d
}

func (a AppConfigAnalysis) GetWindow() (hours.Window, error) {
	w := hours.Window{Start: hours.ClockTime{Hour: 17}, End: hours.ClockTime{Hour: 7}}
	if a.WindowStart != nil {
		start, err := hours.ParseClock(*a.WindowStart)
		if err != nil {
			return w, fmt.Errorf("window_start: %w", err)
		}
		w.Start = start
	}
	if a.WindowEnd != nil {
		end, err := hours.ParseClock(*a.WindowEnd)
		if err != nil {
			return w, fmt.Errorf("window_end: %w", err)
		}
		w.End = end
	}
	return w, nil
}

type AppConfigMqtt struct {
	Enabled  bool
	Host     string
	Port     int16
	Username string
	Password string
	// Topic prefix Home Assistant listens on for discovery, default: "homeassistant"
	DiscoveryPrefix *string `mapstructure:"discovery_prefix"`
}

func (m AppConfigMqtt) GetDiscoveryPrefix() string {
	if m.DiscoveryPrefix == nil {
		return "homeassistant"
	}
	return *m.DiscoveryPrefix
}

type AppConfigLogging struct {
	// Min log level for database: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return "JSON"
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return "TEXT"
	}
	return "JSON"
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api      AppConfigApi
	Database AppConfigDatabase
	Tibber   AppConfigTibber
	Analysis AppConfigAnalysis
	Mqtt     AppConfigMqtt
	Logging  AppConfigLogging
}

func Load(path string) (*AppConfig, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("config")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var c AppConfig

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	return &c, nil
}

// Watch re-reads the config file whenever it changes so analysis settings can
// be tuned without a restart. The callback gets the freshly parsed config.
func Watch(logger *slog.Logger, onChange func(*AppConfig)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		var c AppConfig
		if err := viper.Unmarshal(&c); err != nil {
			logger.Warn("ignoring config change, unable to unmarshal",
				slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config file changed, applying new settings", slog.String("file", e.Name))
		onChange(&c)
	})
	viper.WatchConfig()
}
