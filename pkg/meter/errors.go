package meter

import (
	"errors"
	"fmt"
)

// ErrNotIdentified - развертка запрошена до успешного запроса версии.
var ErrNotIdentified = errors.New("устройство не опознано: сначала нужен запрос версии")

// ProtocolError - ответ устройства не разобран или в нем нет ожидаемого поля.
type ProtocolError struct {
	// Request - команда, на которую пришел ответ.
	Request string
	Reason  string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ответ на %q: %s: %v", e.Request, e.Reason, e.Err)
	}
	return fmt.Sprintf("ответ на %q: %s", e.Request, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// DeviceError - устройство само сообщило об ошибке (например, транзистор не подключен).
type DeviceError struct {
	// Message - текст устройства без изменений.
	Message string
}

func (e *DeviceError) Error() string {
	return "ошибка устройства: " + e.Message
}

// InsufficientDataError - точек развертки меньше, чем нужно для аппроксимации.
type InsufficientDataError struct {
	Got  int
	Want int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("недостаточно точек развертки: получено %d, нужно не менее %d", e.Got, e.Want)
}

// IsDeviceError возвращает true, если ошибку сообщило само устройство.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
