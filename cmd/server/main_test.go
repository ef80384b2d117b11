package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/momentics/jfetmeter/internal/metrics"
	"github.com/momentics/jfetmeter/pkg/fit"
	"github.com/momentics/jfetmeter/pkg/frame"
	"github.com/momentics/jfetmeter/pkg/meter"
)

type fakeMeter struct {
	res *meter.Measurement
	err error
}

func (f *fakeMeter) Measure(context.Context) (*meter.Measurement, error) { return f.res, f.err }

type fakeSource struct {
	meters  map[string]*fakeMeter
	dropped []string
}

func (s *fakeSource) Get(port string) (measurer, error) {
	m, ok := s.meters[port]
	if !ok {
		return nil, errors.New("нет такого порта")
	}
	return m, nil
}

func (s *fakeSource) Drop(port string) { s.dropped = append(s.dropped, port) }

func init() { gin.SetMode(gin.TestMode) }

func serve(t *testing.T, src meterSource, url string) *httptest.ResponseRecorder {
	t.Helper()
	reg := metrics.NewRegistry()
	router := newRouter(src, "/dev/ttyUSB0", "/metrics", metrics.Handler(reg), zap.NewNop())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))
	return rr
}

func TestMeasureOK(t *testing.T) {
	src := &fakeSource{meters: map[string]*fakeMeter{
		"/dev/ttyUSB0": {res: &meter.Measurement{
			ID:       "abc",
			Version:  "1.0",
			Sweep:    meter.Sweep{Vg: []float64{0, -1}, Id: []float64{5, 1}},
			Params:   fit.Params{Idss: 7.7107, Voff: -3.5123, Yfs: 3.1671, Vsat: 2.1508},
			Duration: 2 * time.Second,
		}},
	}}

	rr := serve(t, src, "/api/v1/measure")
	if rr.Code != http.StatusOK {
		t.Fatalf("/api/v1/measure code=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp measureResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.ID != "abc" || resp.Port != "/dev/ttyUSB0" || resp.Version != "1.0" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Result.Idss != 7.71 || resp.Result.Voff != -3.51 || resp.Result.Yfs != 3.17 || resp.Result.Vsat != 2.15 {
		t.Errorf("parameters not rounded: %+v", resp.Result)
	}
}

func TestMeasureErrors(t *testing.T) {
	cases := []struct {
		err     error
		code    int
		dropped bool
	}{
		{fmt.Errorf("развертка: %w", &meter.DeviceError{Message: "Bad transistor!"}), http.StatusUnprocessableEntity, false},
		{&meter.InsufficientDataError{Got: 3, Want: 10}, http.StatusUnprocessableEntity, false},
		{fmt.Errorf("аппроксимация: %w", fit.ErrFitDomain), http.StatusUnprocessableEntity, false},
		{&frame.TimeoutError{Timeout: time.Second}, http.StatusGatewayTimeout, true},
		{&frame.OverflowError{Capacity: frame.BufferCapacity}, http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		src := &fakeSource{meters: map[string]*fakeMeter{"/dev/ttyUSB0": {err: tc.err}}}
		rr := serve(t, src, "/api/v1/measure?port=/dev/ttyUSB0")
		if rr.Code != tc.code {
			t.Errorf("%v: code=%d, want %d", tc.err, rr.Code, tc.code)
		}
		if got := len(src.dropped) == 1; got != tc.dropped {
			t.Errorf("%v: dropped=%v, want %v", tc.err, src.dropped, tc.dropped)
		}
	}
}

func TestMeasureUnknownPort(t *testing.T) {
	rr := serve(t, &fakeSource{}, "/api/v1/measure?port=/dev/none")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestMeasureRequiresPort(t *testing.T) {
	reg := metrics.NewRegistry()
	router := newRouter(&fakeSource{}, "", "/metrics", metrics.Handler(reg), zap.NewNop())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/measure", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := serve(t, &fakeSource{}, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics code=%d", rr.Code)
	}
}
