// Package report сохраняет результаты измерения: JSON-файл, график и текстовую сводку.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/momentics/jfetmeter/pkg/fit"
	"github.com/momentics/jfetmeter/pkg/meter"
)

// BaseNamePrefix - общий префикс файлов результатов.
const BaseNamePrefix = "n-jfet-"

// Result - содержимое JSON-файла. Параметры округлены до сотых,
// исходные точки записываются без изменений.
type Result struct {
	Id   []float64 `json:"Id"`
	Idss float64   `json:"Idss"`
	Vg   []float64 `json:"Vg"`
	Voff float64   `json:"Voff"`
	Vsat float64   `json:"Vsat"`
	Yfs  float64   `json:"Yfs"`
}

// NewResult собирает содержимое файла результатов.
func NewResult(p fit.Params, sw meter.Sweep) Result {
	r := p.Rounded()
	return Result{
		Id:   sw.Id,
		Idss: r.Idss,
		Vg:   sw.Vg,
		Voff: r.Voff,
		Vsat: r.Vsat,
		Yfs:  r.Yfs,
	}
}

// NextBaseName возвращает путь без расширения вида dir/n-jfet-<i>
// для первого i >= 1, для которого еще нет файла .json.
func NextBaseName(dir string) (string, error) {
	for i := 1; ; i++ {
		base := filepath.Join(dir, BaseNamePrefix+strconv.Itoa(i))
		_, err := os.Stat(base + ".json")
		if errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		if err != nil {
			return "", fmt.Errorf("ошибка проверки файла %s.json: %w", base, err)
		}
	}
}

// Save записывает результат в первый свободный файл n-jfet-<i>.json в каталоге dir
// и возвращает путь без расширения, чтобы рядом можно было сохранить график.
func Save(dir string, p fit.Params, sw meter.Sweep) (string, error) {
	base, err := NextBaseName(dir)
	if err != nil {
		return "", err
	}
	// O_EXCL: не затирать файл, созданный параллельным прогоном
	f, err := os.OpenFile(base+".json", os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла результатов: %w", err)
	}
	if err := WriteResult(f, NewResult(p, sw)); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ошибка записи файла результатов: %w", err)
	}
	return base, nil
}

// WriteResult пишет результат с отступом в четыре пробела.
func WriteResult(w io.Writer, r Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("ошибка кодирования результата: %w", err)
	}
	return nil
}

// WriteTable печатает таблицу точек развертки.
func WriteTable(w io.Writer, sw meter.Sweep) {
	fmt.Fprintln(w, "  Vg, V  Id, mA")
	fmt.Fprintln(w, "  -------------")
	for i := range sw.Vg {
		fmt.Fprintf(w, "  %.3f  %.3f\n", sw.Vg[i], sw.Id[i])
	}
}

// WriteSummary печатает найденные параметры.
func WriteSummary(w io.Writer, p fit.Params) {
	r := p.Rounded()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "    Idss =", formatValue(r.Idss), "mA")
	fmt.Fprintln(w, "Vds(off) =", formatValue(r.Voff), "V")
	fmt.Fprintln(w, "     Yfs =", formatValue(r.Yfs), "mA/V")
	fmt.Fprintln(w, "    Vsat =", formatValue(r.Vsat), "V")
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
