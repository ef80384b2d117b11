// Package config загружает настройки из YAML-файла, переменных окружения JFET_* и значений по умолчанию.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/momentics/jfetmeter/pkg/fit"
)

// SerialConfig - параметры последовательного порта.
type SerialConfig struct {
	// Port - путь к устройству; пусто - автоопределение.
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	SettleDelay time.Duration `mapstructure:"settleDelay"`
}

// FitConfig - окна выборки и шаг поиска отсечки.
type FitConfig struct {
	LinearWindow int     `mapstructure:"linearWindow"`
	CutoffWindow int     `mapstructure:"cutoffWindow"`
	Step         float64 `mapstructure:"step"`
	MaxSteps     int     `mapstructure:"maxSteps"`
}

// Options переводит настройки в параметры аппроксимации.
func (f FitConfig) Options() fit.Options {
	return fit.Options{
		LinearWindow: f.LinearWindow,
		CutoffWindow: f.CutoffWindow,
		Step:         f.Step,
		MaxSteps:     f.MaxSteps,
	}
}

// OutputConfig - куда писать результаты.
type OutputConfig struct {
	Dir  string `mapstructure:"dir"`
	Plot bool   `mapstructure:"plot"`
}

// LumberjackConfig - ротация файла лога.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig - уровень и формат лога.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// HTTPConfig - адрес HTTP-сервера.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// MetricsConfig - публикация метрик Prometheus.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config - конфигурация верхнего уровня.
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Fit     FitConfig     `mapstructure:"fit"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load читает конфигурацию. Если path пуст, ищется jfetmeter.yaml в текущем
// каталоге и в ./configs; отсутствие файла не является ошибкой.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("jfetmeter")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("JFET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения, которые нельзя исправить молча.
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud должен быть положительным: %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.readTimeout должен быть положительным: %v", c.Serial.ReadTimeout)
	}
	if c.Fit.LinearWindow < 2 || c.Fit.CutoffWindow < 1 {
		return fmt.Errorf("некорректные окна аппроксимации: %d/%d", c.Fit.LinearWindow, c.Fit.CutoffWindow)
	}
	if c.Fit.Step <= 0 || c.Fit.MaxSteps <= 0 {
		return fmt.Errorf("некорректный шаг поиска отсечки: %g x %d", c.Fit.Step, c.Fit.MaxSteps)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 38400)
	v.SetDefault("serial.readTimeout", "10s")
	v.SetDefault("serial.settleDelay", "1s")

	def := fit.DefaultOptions()
	v.SetDefault("fit.linearWindow", def.LinearWindow)
	v.SetDefault("fit.cutoffWindow", def.CutoffWindow)
	v.SetDefault("fit.step", def.Step)
	v.SetDefault("fit.maxSteps", def.MaxSteps)

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.plot", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdownTimeout", "5s")

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
