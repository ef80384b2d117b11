// Package meter предоставляет API для работы с измерителем параметров транзисторов.
package meter

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/jfetmeter/internal/util"
	"github.com/momentics/jfetmeter/pkg/fit"
	"github.com/momentics/jfetmeter/pkg/frame"
)

// Driver определяет операции, которые должен поддерживать драйвер измерителя.
// Порядок вызовов фиксирован: Identify, затем RunSweep.
type Driver interface {
	Identify() (string, error)
	RunSweep() (Sweep, error)
	Close() error
}

// Config - параметры подключения к измерителю.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	// SettleDelay - пауза после открытия порта: плата перезагружается при открытии.
	SettleDelay time.Duration
	Fit         fit.Options
	Logger      *zap.Logger
	Observer    frame.Observer
	Recorder    Recorder
}

// DefaultConfig возвращает параметры по умолчанию для указанного порта.
func DefaultConfig(port string) Config {
	return Config{
		Port:        port,
		Baud:        util.DefaultBaudRate,
		ReadTimeout: frame.DefaultTimeout,
		SettleDelay: time.Second,
		Fit:         fit.DefaultOptions(),
	}
}

// opener открывает порт; подменяется в тестах.
type opener func(path string, baud int) (util.SerialPortInterface, error)

func openSerial(path string, baud int) (util.SerialPortInterface, error) {
	return util.OpenPort(path, util.Mode8N1(baud))
}

// Open открывает порт и собирает канал, сессию и Meter.
func Open(cfg Config) (*Meter, error) {
	return open(cfg, openSerial)
}

func open(cfg Config, openPort opener) (*Meter, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("не указан последовательный порт")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("port", cfg.Port))

	port, err := openPort(cfg.Port, cfg.Baud)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия порта %s: %w", cfg.Port, err)
	}
	log.Info("порт открыт", zap.Int("baud", cfg.Baud), zap.Duration("timeout", cfg.ReadTimeout))
	if cfg.SettleDelay > 0 {
		time.Sleep(cfg.SettleDelay)
	}

	chOpts := []frame.Option{frame.WithTimeout(cfg.ReadTimeout), frame.WithLogger(log)}
	if cfg.Observer != nil {
		chOpts = append(chOpts, frame.WithObserver(cfg.Observer))
	}
	session := NewSession(frame.NewChannel(port, chOpts...), log)

	fitOpts := cfg.Fit
	if fitOpts == (fit.Options{}) {
		fitOpts = fit.DefaultOptions()
	}
	return NewMeter(session,
		WithFitOptions(fitOpts),
		WithMeterLogger(log),
		WithRecorder(cfg.Recorder),
	), nil
}

// MeterPool хранит по одному Meter на порт для HTTP-сервера.
// Каждый Meter сам сериализует обращения к своему порту.
type MeterPool struct {
	cfg     Config
	open    opener
	devices map[string]*Meter
	mu      sync.RWMutex
}

// NewMeterPool создает пул; cfg задает все, кроме имени порта.
func NewMeterPool(cfg Config) *MeterPool {
	return &MeterPool{cfg: cfg, open: openSerial, devices: make(map[string]*Meter)}
}

func (p *MeterPool) Get(portPath string) (*Meter, error) {
	p.mu.RLock()
	if m, exists := p.devices[portPath]; exists {
		p.mu.RUnlock()
		return m, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, exists := p.devices[portPath]; exists {
		return m, nil
	}

	cfg := p.cfg
	cfg.Port = portPath
	m, err := open(cfg, p.open)
	if err != nil {
		return nil, err
	}
	p.devices[portPath] = m
	return m, nil
}

// Drop закрывает и забывает Meter. После таймаута или переполнения буфера
// канал остается в неопределенном состоянии, и следующий запрос открывает порт заново.
func (p *MeterPool) Drop(portPath string) {
	p.mu.Lock()
	m, exists := p.devices[portPath]
	delete(p.devices, portPath)
	p.mu.Unlock()
	if exists {
		m.Close()
	}
}

func (p *MeterPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for path, m := range p.devices {
		m.Close()
		delete(p.devices, path)
	}
}
