// Package fit вычисляет параметры N-канального полевого транзистора с p-n переходом
// по снятой передаточной характеристике.
//
// Ток стока аппроксимируется кусочной функцией:
//
//	Id(Vg) = 0                              Vg <= Voff
//	         Yfs*(Vg-Voff)^2/(2*Vsat)       Voff <= Vg <= Voff+Vsat
//	         Yfs*(Vg-Voff-Vsat/2)           Vg >= Voff+Vsat
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrFitDomain - под логарифмом оказалось неположительное значение.
	ErrFitDomain = errors.New("выход за область определения логарифма")
	// ErrDegenerate - выборка не позволяет провести прямую или результат не конечен.
	ErrDegenerate = errors.New("вырожденная выборка")
	// ErrNoConvergence - уточнение отсечки не остановилось за отведенное число шагов.
	ErrNoConvergence = errors.New("уточнение напряжения отсечки не сошлось")
)

// DomainError указывает точку, на которой квадратичная модель не определена.
type DomainError struct {
	X0    float64
	Index int
	X, Y  float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%v: x0=%g, точка %d (x=%g, y=%g)", ErrFitDomain, e.X0, e.Index, e.X, e.Y)
}

func (e *DomainError) Is(target error) bool { return target == ErrFitDomain }

// Params - четыре параметра транзистора.
type Params struct {
	Idss float64 // ток стока при нулевом напряжении затвора, мА
	Voff float64 // напряжение отсечки, В
	Yfs  float64 // крутизна, мА/В
	Vsat float64 // напряжение насыщения, В
}

// Options задает окна выборки и шаг поиска отсечки.
type Options struct {
	// LinearWindow - сколько первых точек считаются линейным участком.
	LinearWindow int
	// CutoffWindow - сколько последних точек (без самой последней) идут на поиск отсечки.
	CutoffWindow int
	// Step - шаг уточнения напряжения отсечки, В.
	Step float64
	// MaxSteps ограничивает число шагов уточнения.
	MaxSteps int
}

// DefaultOptions соответствуют разрешению измерителя.
func DefaultOptions() Options {
	return Options{
		LinearWindow: 7,
		CutoffWindow: 7,
		Step:         0.01,
		MaxSteps:     100000,
	}
}

func (o Options) validate() error {
	if o.LinearWindow < 2 || o.CutoffWindow < 1 || o.Step <= 0 || o.MaxSteps <= 0 {
		return fmt.Errorf("некорректные параметры аппроксимации: %+v", o)
	}
	return nil
}

// LinearFit проводит прямую y = slope*x + intercept методом наименьших квадратов.
func LinearFit(x, y []float64) (slope, intercept float64, err error) {
	if len(x) != len(y) {
		return 0, 0, fmt.Errorf("длины выборок различаются: %d и %d", len(x), len(y))
	}
	k := float64(len(x))
	if len(x) < 2 {
		return 0, 0, ErrDegenerate
	}
	sumX := floats.Sum(x)
	sumY := floats.Sum(y)
	sumXY := floats.Dot(x, y)
	sumX2 := floats.Dot(x, x)

	den := k*sumX2 - sumX*sumX
	if den == 0 {
		return 0, 0, ErrDegenerate
	}
	slope = (k*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / k
	return slope, intercept, nil
}

// CutoffError подбирает c в модели y = c*(x-x0)^2 через логарифмы и возвращает
// сумму квадратов невязок. Требует x-x0 > 0 и y > 0 во всех точках.
func CutoffError(x0 float64, x, y []float64) (float64, error) {
	if len(x) != len(y) || len(x) == 0 {
		return 0, fmt.Errorf("некорректные выборки: %d и %d точек", len(x), len(y))
	}
	logs := make([]float64, len(x))
	for i := range x {
		dx := x[i] - x0
		if dx <= 0 || y[i] <= 0 {
			return 0, &DomainError{X0: x0, Index: i, X: x[i], Y: y[i]}
		}
		logs[i] = math.Log(y[i]) - 2*math.Log(dx)
	}
	c := math.Exp(floats.Sum(logs) / float64(len(x)))

	var sum float64
	for i := range x {
		dx := x[i] - x0
		r := y[i] - c*dx*dx
		sum += r * r
	}
	return sum, nil
}

// InitialCutoff дает начальное приближение отсечки по последней точке развертки:
// отбрасывает дробную часть в единицах шага и отступает еще на один шаг.
func InitialCutoff(last, step float64) float64 {
	return math.Trunc(last*(1/step)-1) * step
}

// RefineCutoff сдвигает x0 вниз с шагом step, пока ошибка строго убывает.
func RefineCutoff(x0 float64, x, y []float64, step float64, maxSteps int) (float64, error) {
	e0, err := CutoffError(x0, x, y)
	if err != nil {
		return 0, err
	}
	for i := 0; i < maxSteps; i++ {
		e1, err := CutoffError(x0-step, x, y)
		if err != nil {
			return 0, err
		}
		if e1 >= e0 {
			return x0, nil
		}
		x0 -= step
		e0 = e1
	}
	return 0, fmt.Errorf("%w за %d шагов", ErrNoConvergence, maxSteps)
}

// Compute вычисляет параметры по развертке vg/id в порядке, заданном устройством.
func Compute(vg, id []float64, opts Options) (Params, error) {
	if err := opts.validate(); err != nil {
		return Params{}, err
	}
	if len(vg) != len(id) {
		return Params{}, fmt.Errorf("длины выборок различаются: %d и %d", len(vg), len(id))
	}
	n := len(vg)
	if n < opts.LinearWindow || n < opts.CutoffWindow+1 {
		return Params{}, fmt.Errorf("%w: %d точек недостаточно для окон %d/%d",
			ErrDegenerate, n, opts.LinearWindow, opts.CutoffWindow)
	}

	yfs, idss, err := LinearFit(vg[:opts.LinearWindow], id[:opts.LinearWindow])
	if err != nil {
		return Params{}, fmt.Errorf("линейный участок: %w", err)
	}

	lo, hi := n-1-opts.CutoffWindow, n-1
	guess := InitialCutoff(vg[n-1], opts.Step)
	voff, err := RefineCutoff(guess, vg[lo:hi], id[lo:hi], opts.Step, opts.MaxSteps)
	if err != nil {
		return Params{}, fmt.Errorf("участок отсечки: %w", err)
	}

	p := Params{
		Idss: idss,
		Voff: voff,
		Yfs:  yfs,
		Vsat: 2 * (-voff - idss/yfs),
	}
	if !p.finite() {
		return Params{}, fmt.Errorf("%w: %+v", ErrDegenerate, p)
	}
	return p, nil
}

func (p Params) finite() bool {
	for _, v := range []float64{p.Idss, p.Voff, p.Yfs, p.Vsat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Round2 округляет значение до сотых, как в файле результатов.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rounded возвращает параметры, округленные до сотых.
func (p Params) Rounded() Params {
	return Params{
		Idss: Round2(p.Idss),
		Voff: Round2(p.Voff),
		Yfs:  Round2(p.Yfs),
		Vsat: Round2(p.Vsat),
	}
}
