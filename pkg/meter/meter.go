package meter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/jfetmeter/pkg/fit"
)

// Recorder получает итог каждого измерения (например, для метрик).
type Recorder interface {
	ObserveMeasurement(outcome string, d time.Duration)
}

// Исходы измерения для Recorder.
const (
	OutcomeOK          = "ok"
	OutcomeDeviceError = "device_error"
	OutcomeFailed      = "failed"
)

// Measurement - результат одного прогона: версия, развертка и параметры.
type Measurement struct {
	ID       string        `json:"id"`
	Version  string        `json:"version"`
	Sweep    Sweep         `json:"sweep"`
	Params   fit.Params    `json:"params"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Meter сериализует обмен с одним измерителем: в каждый момент идет не более одного запроса.
type Meter struct {
	driver   Driver
	fitOpts  fit.Options
	log      *zap.Logger
	recorder Recorder
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// MeterOption настраивает Meter.
type MeterOption func(*Meter)

// WithFitOptions задает окна и шаг аппроксимации.
func WithFitOptions(o fit.Options) MeterOption {
	return func(m *Meter) { m.fitOpts = o }
}

// WithMeterLogger задает логгер.
func WithMeterLogger(log *zap.Logger) MeterOption {
	return func(m *Meter) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRecorder подключает учет измерений.
func WithRecorder(r Recorder) MeterOption {
	return func(m *Meter) { m.recorder = r }
}

func NewMeter(driver Driver, opts ...MeterOption) *Meter {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Meter{
		driver:  driver,
		fitOpts: fit.DefaultOptions(),
		log:     zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Identify запрашивает версию прошивки.
func (m *Meter) Identify() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driver.Identify()
}

// Measure выполняет полный прогон: версия, развертка, аппроксимация.
// Либо вычислены все четыре параметра, либо возвращается ошибка.
func (m *Meter) Measure(ctx context.Context) (*Measurement, error) {
	if ctx == nil {
		ctx = m.ctx
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	res := &Measurement{ID: uuid.NewString(), Started: time.Now()}
	log := m.log.With(zap.String("measurement", res.ID))

	err := m.measure(ctx, res)
	res.Duration = time.Since(res.Started)
	m.record(err, res.Duration)
	if err != nil {
		log.Error("измерение не выполнено", zap.Error(err), zap.Duration("elapsed", res.Duration))
		return nil, err
	}
	log.Info("измерение завершено",
		zap.String("version", res.Version),
		zap.Int("points", res.Sweep.Len()),
		zap.Float64("idss", res.Params.Idss),
		zap.Float64("voff", res.Params.Voff),
		zap.Float64("yfs", res.Params.Yfs),
		zap.Float64("vsat", res.Params.Vsat),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

func (m *Meter) measure(ctx context.Context, res *Measurement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	version, err := m.driver.Identify()
	if err != nil {
		return fmt.Errorf("запрос версии: %w", err)
	}
	res.Version = version

	if err := ctx.Err(); err != nil {
		return err
	}
	sweep, err := m.driver.RunSweep()
	if err != nil {
		return fmt.Errorf("развертка: %w", err)
	}
	res.Sweep = sweep

	params, err := fit.Compute(sweep.Vg, sweep.Id, m.fitOpts)
	if err != nil {
		return fmt.Errorf("аппроксимация: %w", err)
	}
	res.Params = params
	return nil
}

func (m *Meter) record(err error, d time.Duration) {
	if m.recorder == nil {
		return
	}
	switch {
	case err == nil:
		m.recorder.ObserveMeasurement(OutcomeOK, d)
	case IsDeviceError(err):
		m.recorder.ObserveMeasurement(OutcomeDeviceError, d)
	default:
		m.recorder.ObserveMeasurement(OutcomeFailed, d)
	}
}

func (m *Meter) Close() error {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driver.Close()
}
