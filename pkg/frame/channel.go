// Package frame реализует кадровый обмен с измерителем по последовательному порту.
//
// Кадр - это полезная нагрузка, за которой следуют восемь символов контрольной
// суммы (см. Checksum) и символ возврата каретки. Байт-стаффинга нет: символ CR
// внутри полезной нагрузки не экранируется.
package frame

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/jfetmeter/internal/util"
)

const (
	// Terminator завершает каждый кадр в обоих направлениях.
	Terminator byte = '\r'
	// BufferCapacity - размер приемного буфера.
	BufferCapacity = 4096
	// DefaultTimeout - сколько ждать каждый очередной байт.
	DefaultTimeout = 10 * time.Second
)

// Observer получает диагностические события канала. Вызывается синхронно из Send/Receive.
type Observer interface {
	FrameSent(size int)
	FrameReceived(size int)
	// FrameDiscarded вызывается для отброшенного кадра; reason - ErrShortPacket или ErrBadChecksum.
	FrameDiscarded(reason error)
}

// receiveBuffer накапливает байты текущего кадра.
type receiveBuffer struct {
	data [BufferCapacity]byte
	pos  int
}

// push добавляет байт и сообщает, заполнен ли буфер целиком.
func (b *receiveBuffer) push(c byte) (full bool) {
	b.data[b.pos] = c
	b.pos++
	return b.pos == len(b.data)
}

// take возвращает копию накопленных байт и сбрасывает буфер.
func (b *receiveBuffer) take() []byte {
	out := make([]byte, b.pos)
	copy(out, b.data[:b.pos])
	b.reset()
	return out
}

func (b *receiveBuffer) reset() {
	clear(b.data[:b.pos])
	b.pos = 0
}

// Channel владеет последовательным портом и приемным буфером.
// Не предназначен для одновременного использования из нескольких горутин.
type Channel struct {
	port     util.SerialPortInterface
	timeout  time.Duration
	log      *zap.Logger
	observer Observer
	buf      receiveBuffer
}

// Option настраивает Channel.
type Option func(*Channel)

// WithTimeout задает таймаут ожидания каждого байта.
func WithTimeout(t time.Duration) Option {
	return func(c *Channel) {
		if t > 0 {
			c.timeout = t
		}
	}
}

// WithLogger задает логгер для диагностики отброшенных кадров.
func WithLogger(log *zap.Logger) Option {
	return func(c *Channel) {
		if log != nil {
			c.log = log
		}
	}
}

// WithObserver подключает наблюдателя (например, метрики).
func WithObserver(o Observer) Option {
	return func(c *Channel) { c.observer = o }
}

// NewChannel создает канал поверх открытого порта.
func NewChannel(port util.SerialPortInterface, opts ...Option) *Channel {
	c := &Channel{
		port:    port,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout возвращает таймаут ожидания байта.
func (c *Channel) Timeout() time.Duration { return c.timeout }

// Send дописывает контрольную сумму и терминатор и отправляет кадр. Ответ не ожидается.
func (c *Channel) Send(payload string) error {
	trailer := Checksum([]byte(payload))
	msg := make([]byte, 0, len(payload)+TrailerSize+1)
	msg = append(msg, payload...)
	msg = append(msg, trailer[:]...)
	msg = append(msg, Terminator)

	n, err := c.port.Write(msg)
	if err != nil {
		return fmt.Errorf("ошибка отправки команды %q: %w", payload, err)
	}
	if n != len(msg) {
		return fmt.Errorf("неполная запись команды %q: %d/%d байт", payload, n, len(msg))
	}
	c.log.Debug("кадр отправлен", zap.String("payload", payload), zap.ByteString("checksum", trailer[:]))
	if c.observer != nil {
		c.observer.FrameSent(len(msg))
	}
	return nil
}

// Receive читает порт побайтно до первого корректного кадра и возвращает его
// полезную нагрузку. Короткие кадры и кадры с неверной контрольной суммой
// отбрасываются, чтение продолжается.
//
// Если очередной байт не пришел за Timeout, возвращается *TimeoutError, а
// принятая часть кадра остается в буфере.
func (c *Channel) Receive() ([]byte, error) {
	if err := c.port.SetReadTimeout(c.timeout); err != nil {
		return nil, fmt.Errorf("ошибка установки таймаута чтения: %w", err)
	}

	var b [1]byte
	for {
		n, err := c.port.Read(b[:])
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения из порта: %w", err)
		}
		if n == 0 {
			return nil, &TimeoutError{Timeout: c.timeout, Pending: c.buf.pos}
		}

		if b[0] == Terminator {
			payload, err := c.unpack(c.buf.take())
			if err != nil {
				continue
			}
			return payload, nil
		}

		if c.buf.push(b[0]) {
			c.buf.reset()
			return nil, &OverflowError{Capacity: BufferCapacity}
		}
	}
}

// unpack отделяет трейлер и проверяет контрольную сумму.
func (c *Channel) unpack(candidate []byte) ([]byte, error) {
	if len(candidate) <= TrailerSize {
		c.discard(ErrShortPacket, zap.Int("size", len(candidate)))
		return nil, ErrShortPacket
	}

	split := len(candidate) - TrailerSize
	payload, trailer := candidate[:split], candidate[split:]
	if !Verify(payload, trailer) {
		c.discard(ErrBadChecksum, zap.ByteString("checksum", trailer), zap.Int("size", len(candidate)))
		return nil, ErrBadChecksum
	}

	c.log.Debug("кадр принят", zap.ByteString("payload", payload))
	if c.observer != nil {
		c.observer.FrameReceived(len(candidate) + 1)
	}
	return payload, nil
}

func (c *Channel) discard(reason error, fields ...zap.Field) {
	c.log.Warn("кадр отброшен", append(fields, zap.Error(reason))...)
	if c.observer != nil {
		c.observer.FrameDiscarded(reason)
	}
}

// Close закрывает порт.
func (c *Channel) Close() error {
	return c.port.Close()
}
