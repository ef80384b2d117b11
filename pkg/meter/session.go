// Этот файл содержит реализацию драйвера измерителя (кадровый протокол с JSON-ответами).
package meter

import (
	"encoding/json"
	"strconv"

	"go.uber.org/zap"
)

const (
	cmdVersion = "version"
	cmdNJFET   = "njfet"

	// MinSamples - меньше этого числа точек аппроксимация бессмысленна.
	MinSamples = 10
)

// Transport - кадровый канал до устройства (см. frame.Channel).
type Transport interface {
	Send(payload string) error
	Receive() ([]byte, error)
	Close() error
}

// Sweep - снятая характеристика: напряжение затвора (В) и ток стока (мА)
// в порядке, заданном устройством.
type Sweep struct {
	Vg []float64 `json:"Vg"`
	Id []float64 `json:"Id"`
}

// Len возвращает число точек.
func (s Sweep) Len() int { return len(s.Vg) }

// Session выполняет обмен запрос-ответ поверх Transport.
type Session struct {
	tr         Transport
	log        *zap.Logger
	version    string
	minSamples int
}

// NewSession создает сессию поверх канала.
func NewSession(tr Transport, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{tr: tr, log: log, minSamples: MinSamples}
}

// exchange отправляет команду и разбирает ответ как JSON-объект.
func (s *Session) exchange(cmd string) (map[string]json.RawMessage, error) {
	if err := s.tr.Send(cmd); err != nil {
		return nil, err
	}
	payload, err := s.tr.Receive()
	if err != nil {
		return nil, err
	}
	var reply map[string]json.RawMessage
	if err := json.Unmarshal(payload, &reply); err != nil {
		return nil, &ProtocolError{Request: cmd, Reason: "ответ не является JSON-объектом", Err: err}
	}
	return reply, nil
}

// Handshake запрашивает версию прошивки. Должен предшествовать RunSweep.
func (s *Session) Handshake() (string, error) {
	reply, err := s.exchange(cmdVersion)
	if err != nil {
		return "", err
	}
	raw, ok := reply["Version"]
	if !ok {
		return "", &ProtocolError{Request: cmdVersion, Reason: "нет поля Version"}
	}
	version, err := scalarString(raw)
	if err != nil || version == "" {
		return "", &ProtocolError{Request: cmdVersion, Reason: "некорректное поле Version", Err: err}
	}
	s.version = version
	s.log.Info("измеритель опознан", zap.String("version", version))
	return version, nil
}

// Identify реализует Driver.
func (s *Session) Identify() (string, error) { return s.Handshake() }

// RunSweep запускает развертку и возвращает точки характеристики.
func (s *Session) RunSweep() (Sweep, error) {
	if s.version == "" {
		return Sweep{}, ErrNotIdentified
	}
	reply, err := s.exchange(cmdNJFET)
	if err != nil {
		return Sweep{}, err
	}
	if raw, ok := reply["Error"]; ok {
		msg, err := scalarString(raw)
		if err != nil {
			msg = string(raw)
		}
		return Sweep{}, &DeviceError{Message: msg}
	}

	var sw Sweep
	if err := decodeSeries(reply, "Vgate", &sw.Vg); err != nil {
		return Sweep{}, err
	}
	if err := decodeSeries(reply, "Idrain", &sw.Id); err != nil {
		return Sweep{}, err
	}
	if len(sw.Vg) != len(sw.Id) {
		return Sweep{}, &ProtocolError{
			Request: cmdNJFET,
			Reason:  "длины Vgate (" + strconv.Itoa(len(sw.Vg)) + ") и Idrain (" + strconv.Itoa(len(sw.Id)) + ") различаются",
		}
	}
	if len(sw.Vg) < s.minSamples {
		return Sweep{}, &InsufficientDataError{Got: len(sw.Vg), Want: s.minSamples}
	}
	s.log.Debug("развертка получена", zap.Int("points", sw.Len()))
	return sw, nil
}

// Close закрывает канал.
func (s *Session) Close() error { return s.tr.Close() }

func decodeSeries(reply map[string]json.RawMessage, key string, dst *[]float64) error {
	raw, ok := reply[key]
	if !ok {
		return &ProtocolError{Request: cmdNJFET, Reason: "нет поля " + key}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ProtocolError{Request: cmdNJFET, Reason: "поле " + key + " не является массивом чисел", Err: err}
	}
	return nil
}

// scalarString принимает строку или число: прошивки разных версий
// отдают поле версии по-разному.
func scalarString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
