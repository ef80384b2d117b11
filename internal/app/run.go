// Package app связывает измеритель, аппроксимацию и запись результатов в один прогон.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/momentics/jfetmeter/pkg/meter"
	"github.com/momentics/jfetmeter/pkg/report"
)

// Output - куда сохранять результаты прогона.
type Output struct {
	Dir  string
	Plot bool
}

// Outcome - что получилось в итоге прогона.
type Outcome struct {
	Measurement *meter.Measurement
	JSONPath    string
	PlotPath    string
}

// Run выполняет измерение, печатает таблицу и сводку в stdout и сохраняет
// файл результатов. При любой ошибке измерения файлы не создаются.
func Run(ctx context.Context, m *meter.Meter, out Output, stdout io.Writer, log *zap.Logger) (*Outcome, error) {
	if log == nil {
		log = zap.NewNop()
	}
	res, err := m.Measure(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(stdout, "Transistor Meter Version", res.Version)
	report.WriteTable(stdout, res.Sweep)
	report.WriteSummary(stdout, res.Params)

	base, err := report.Save(out.Dir, res.Params, res.Sweep)
	if err != nil {
		return nil, err
	}
	oc := &Outcome{Measurement: res, JSONPath: base + ".json"}
	log.Info("результат сохранен", zap.String("file", oc.JSONPath), zap.String("measurement", res.ID))

	if out.Plot {
		path, err := report.Plot(base, res.Params, res.Sweep)
		if err != nil {
			// JSON уже записан; график - необязательное дополнение
			log.Warn("график не сохранен", zap.Error(err))
		} else {
			oc.PlotPath = path
		}
	}
	return oc, nil
}
