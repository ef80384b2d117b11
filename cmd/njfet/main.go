// Command njfet измеряет параметры N-канального полевого транзистора с p-n переходом:
// Idss, Voff, Yfs и Vsat.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/momentics/jfetmeter/internal/app"
	"github.com/momentics/jfetmeter/internal/config"
	"github.com/momentics/jfetmeter/internal/logging"
	"github.com/momentics/jfetmeter/internal/util"
	"github.com/momentics/jfetmeter/pkg/meter"
)

var (
	configPath = flag.String("config", "", "Path to config file (default: ./jfetmeter.yaml if present)")
	portFlag   = flag.String("port", "", "Serial device path (default: auto-detect)")
	outDir     = flag.String("out", "", "Directory for n-jfet-<i>.json results")
	noPlot     = flag.Bool("no-plot", false, "Do not save the PNG plot")
	listPorts  = flag.Bool("list", false, "List serial ports and exit")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if *listPorts {
		return printPorts()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *noPlot {
		cfg.Output.Plot = false
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if cfg.Serial.Port == "" {
		cfg.Serial.Port, err = util.DetectPort()
		if err != nil {
			logger.Error("порт не найден", zap.Error(err))
			return 1
		}
	}

	fmt.Println("Open:", cfg.Serial.Port)
	m, err := meter.Open(meter.Config{
		Port:        cfg.Serial.Port,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
		SettleDelay: cfg.Serial.SettleDelay,
		Fit:         cfg.Fit.Options(),
		Logger:      logger,
	})
	if err != nil {
		logger.Error("не удалось подключиться к измерителю", zap.Error(err))
		return 1
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	oc, err := app.Run(ctx, m, app.Output{Dir: cfg.Output.Dir, Plot: cfg.Output.Plot}, os.Stdout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println()
	fmt.Println("Saved:", oc.JSONPath)
	if oc.PlotPath != "" {
		fmt.Println("Plot: ", oc.PlotPath)
	}
	return 0
}

func printPorts() int {
	ports, err := util.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return 0
	}
	for _, p := range ports {
		if p.IsUSB {
			fmt.Printf("%s\tUSB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
		} else {
			fmt.Println(p.Name)
		}
	}
	return 0
}
