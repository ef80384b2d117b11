// Package util содержит вспомогательные утилиты, не являющиеся частью публичного API.
package util

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate - скорость обмена с измерителем транзисторов.
const DefaultBaudRate = 38400

// SerialPortInterface определяет интерфейс для работы с последовательным портом.
// Это позволяет нам использовать реальный порт в production и мок-объект в тестах.
type SerialPortInterface interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// realPort - это обертка над реальной реализацией последовательного порта.
type realPort struct {
	port serial.Port
}

func (r *realPort) Read(p []byte) (n int, err error)     { return r.port.Read(p) }
func (r *realPort) Write(p []byte) (n int, err error)    { return r.port.Write(p) }
func (r *realPort) Close() error                         { return r.port.Close() }
func (r *realPort) SetReadTimeout(t time.Duration) error { return r.port.SetReadTimeout(t) }

// Mode8N1 возвращает режим 8 бит данных, без четности, один стоповый бит.
func Mode8N1(baud int) *serial.Mode {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenPort открывает реальный последовательный порт.
func OpenPort(path string, mode *serial.Mode) (SerialPortInterface, error) {
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return &realPort{port: p}, nil
}

// PortInfo описывает найденный в системе последовательный порт.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial,omitempty"`
	Product      string `json:"product,omitempty"`
}

// ListPorts перечисляет доступные последовательные порты.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления портов: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// ErrNoPorts возвращается, когда автоопределение не нашло ни одного порта.
var ErrNoPorts = errors.New("последовательные порты не найдены")

// DetectPort выбирает порт измерителя: первый USB-порт, иначе первый из найденных.
// Измеритель подключается через USB-UART преобразователь (CH340 и подобные).
func DetectPort() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	return pickPort(ports)
}

func pickPort(ports []PortInfo) (string, error) {
	if len(ports) == 0 {
		return "", ErrNoPorts
	}
	for _, p := range ports {
		if p.IsUSB {
			return p.Name, nil
		}
	}
	return ports[0].Name, nil
}
