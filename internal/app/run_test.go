package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/jfetmeter/pkg/frame"
	"github.com/momentics/jfetmeter/pkg/meter"
	"github.com/momentics/jfetmeter/pkg/report"
)

// scriptedPort отвечает заранее заданными кадрами на команды по порядку.
type scriptedPort struct {
	replies []string
	rx      bytes.Buffer
	sent    []string
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if p.rx.Len() == 0 {
		return 0, nil
	}
	return p.rx.Read(b)
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.sent = append(p.sent, string(b))
	if len(p.replies) > 0 {
		payload := p.replies[0]
		p.replies = p.replies[1:]
		sum := frame.Checksum([]byte(payload))
		// мусор перед ответом должен быть пропущен
		p.rx.WriteString("\r")
		p.rx.WriteString(payload + string(sum[:]) + "\r")
	}
	return len(b), nil
}

func (p *scriptedPort) Close() error                       { return nil }
func (p *scriptedPort) SetReadTimeout(time.Duration) error { return nil }

func newMeter(replies ...string) (*meter.Meter, *scriptedPort) {
	port := &scriptedPort{replies: replies}
	ch := frame.NewChannel(port, frame.WithTimeout(10*time.Millisecond))
	return meter.NewMeter(meter.NewSession(ch, nil)), port
}

func jsonFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	return files
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	m, port := newMeter(
		`{"Version":"1.0"}`,
		`{"Vgate":[0,-0.5,-1,-1.5,-2,-2.5,-3,-3.2,-3.4,-3.5],"Idrain":[10,6,3,1.2,0.4,0.1,0.02,0.01,0.005,0.001]}`,
	)
	var stdout bytes.Buffer

	oc, err := Run(context.Background(), m, Output{Dir: dir, Plot: true}, &stdout, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"versionlpbmndmd\r", "njfetlhadlead\r"}, port.sent)
	assert.Equal(t, []string{filepath.Join(dir, "n-jfet-1.json")}, jsonFiles(t, dir))
	assert.Equal(t, filepath.Join(dir, "n-jfet-1.png"), oc.PlotPath)

	data, err := os.ReadFile(oc.JSONPath)
	require.NoError(t, err)
	var got report.Result
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 7.71, got.Idss)
	assert.Equal(t, -3.51, got.Voff)
	assert.Equal(t, 3.17, got.Yfs)
	assert.Equal(t, 2.15, got.Vsat)
	assert.Equal(t, []float64{0, -0.5, -1, -1.5, -2, -2.5, -3, -3.2, -3.4, -3.5}, got.Vg)
	assert.Equal(t, []float64{10, 6, 3, 1.2, 0.4, 0.1, 0.02, 0.01, 0.005, 0.001}, got.Id)

	assert.True(t, strings.HasPrefix(stdout.String(), "Transistor Meter Version 1.0\n"))
	assert.Contains(t, stdout.String(), "Vds(off) = -3.51 V")
}

func TestRunInsufficientDataWritesNothing(t *testing.T) {
	dir := t.TempDir()
	m, _ := newMeter(
		`{"Version":"1.0"}`,
		`{"Vgate":[0,-0.5,-1,-1.5,-2,-2.5,-3,-3.2,-3.4],"Idrain":[10,6,3,1.2,0.4,0.1,0.02,0.01,0.005]}`,
	)

	_, err := Run(context.Background(), m, Output{Dir: dir, Plot: true}, &bytes.Buffer{}, nil)
	var ie *meter.InsufficientDataError
	require.True(t, errors.As(err, &ie), "got %v", err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunDeviceErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	m, _ := newMeter(`{"Version":"1.0"}`, `{"Error":"Bad transistor!"}`)

	_, err := Run(context.Background(), m, Output{Dir: dir}, &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad transistor!")
	assert.Empty(t, jsonFiles(t, dir))
}

func TestRunWithoutPlot(t *testing.T) {
	dir := t.TempDir()
	m, _ := newMeter(
		`{"Version":"1.0"}`,
		`{"Vgate":[0,-0.5,-1,-1.5,-2,-2.5,-3,-3.2,-3.4,-3.5],"Idrain":[10,6,3,1.2,0.4,0.1,0.02,0.01,0.005,0.001]}`,
	)

	oc, err := Run(context.Background(), m, Output{Dir: dir}, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	assert.Empty(t, oc.PlotPath)
	_, err = os.Stat(filepath.Join(dir, "n-jfet-1.png"))
	assert.True(t, os.IsNotExist(err))
}
