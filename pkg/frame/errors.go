package frame

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReadTimeout - за отведенное время не пришло ни одного байта.
	ErrReadTimeout = errors.New("таймаут чтения")
	// ErrBufferOverflow - кадр не поместился в приемный буфер.
	ErrBufferOverflow = errors.New("переполнение приемного буфера")

	// ErrShortPacket и ErrBadChecksum не выходят за пределы Channel:
	// такие кадры отбрасываются, о них сообщается только наблюдателю и в лог.
	ErrShortPacket = errors.New("короткий пакет")
	ErrBadChecksum = errors.New("неверная контрольная сумма")
)

// TimeoutError возвращается Receive, когда очередной байт не пришел вовремя.
type TimeoutError struct {
	Timeout time.Duration
	// Pending - сколько байт незавершенного кадра осталось в буфере.
	Pending int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("не удалось принять кадр за %v (в буфере %d байт)", e.Timeout, e.Pending)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrReadTimeout }

// OverflowError возвращается, когда за Capacity байт не встретился терминатор.
type OverflowError struct {
	Capacity int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("кадр длиннее %d байт без терминатора", e.Capacity)
}

func (e *OverflowError) Is(target error) bool { return target == ErrBufferOverflow }
