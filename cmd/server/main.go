// Package main - HTTP-сервер для удаленного запуска измерений.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/momentics/jfetmeter/internal/config"
	"github.com/momentics/jfetmeter/internal/logging"
	"github.com/momentics/jfetmeter/internal/metrics"
	"github.com/momentics/jfetmeter/internal/util"
	"github.com/momentics/jfetmeter/pkg/fit"
	"github.com/momentics/jfetmeter/pkg/frame"
	"github.com/momentics/jfetmeter/pkg/meter"
	"github.com/momentics/jfetmeter/pkg/report"
)

var configPath = flag.String("config", "", "Path to config file")

// measurer - то, что нужно обработчику от Meter.
type measurer interface {
	Measure(ctx context.Context) (*meter.Measurement, error)
}

// meterSource выдает измеритель по пути порта.
type meterSource interface {
	Get(port string) (measurer, error)
	Drop(port string)
}

type poolSource struct{ pool *meter.MeterPool }

func (s poolSource) Get(port string) (measurer, error) { return s.pool.Get(port) }
func (s poolSource) Drop(port string)                  { s.pool.Drop(port) }

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	reg := metrics.NewRegistry()
	mm := metrics.NewMeterMetrics(reg)

	pool := meter.NewMeterPool(meter.Config{
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
		SettleDelay: cfg.Serial.SettleDelay,
		Fit:         cfg.Fit.Options(),
		Logger:      logger,
		Observer:    mm,
		Recorder:    mm,
	})
	defer pool.CloseAll()

	gin.SetMode(gin.ReleaseMode)
	var metricsHandler http.Handler
	if cfg.Metrics.Enable {
		metricsHandler = metrics.Handler(reg)
	}
	router := newRouter(poolSource{pool}, cfg.Serial.Port, cfg.Metrics.Path, metricsHandler, logger)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		logger.Info("сервер запущен", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ошибка HTTP сервера", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("сервер останавливается...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("ошибка при корректном завершении сервера", zap.Error(err))
		return
	}
	logger.Info("сервер успешно остановлен")
}

func newRouter(src meterSource, defaultPort, metricsPath string, metricsHandler http.Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/v1")
	api.GET("/measure", measureHandler(src, defaultPort, logger))
	api.GET("/ports", portsHandler)
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}
	return r
}

// measureResponse - ответ на запрос измерения.
type measureResponse struct {
	ID       string        `json:"id"`
	Port     string        `json:"port"`
	Version  string        `json:"version"`
	Duration string        `json:"duration"`
	Result   report.Result `json:"result"`
}

func measureHandler(src meterSource, defaultPort string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		port := c.DefaultQuery("port", defaultPort)
		if port == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "параметр 'port' обязателен"})
			return
		}

		m, err := src.Get(port)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": fmt.Sprintf("ошибка устройства: %v", err)})
			return
		}

		res, err := m.Measure(c.Request.Context())
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				// канал мог остаться посреди кадра: следующий запрос откроет порт заново
				src.Drop(port)
			}
			logger.Warn("измерение не выполнено", zap.String("port", port), zap.Error(err))
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, measureResponse{
			ID:       res.ID,
			Port:     port,
			Version:  res.Version,
			Duration: res.Duration.String(),
			Result:   report.NewResult(res.Params, res.Sweep),
		})
	}
}

// statusFor отделяет ошибки прибора и непригодные данные от сбоев связи.
func statusFor(err error) int {
	var ie *meter.InsufficientDataError
	switch {
	case meter.IsDeviceError(err), errors.As(err, &ie),
		errors.Is(err, fit.ErrFitDomain), errors.Is(err, fit.ErrDegenerate), errors.Is(err, fit.ErrNoConvergence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, frame.ErrReadTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func portsHandler(c *gin.Context) {
	ports, err := util.ListPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ports)
}
