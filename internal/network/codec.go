package network

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	// Фрейм: 4 байта длины (LE) + 1 байт флагов + данные
	flagCompressed byte = 1 << 0

	maxFrameSize         = 256 * 1024
	compressionThreshold = 512
)

// Codec кодирует сообщения во фреймы с опциональным zstd-сжатием.
// Потокобезопасность обеспечивает вызывающий: каждый канал связи
// владеет собственными мьютексами чтения и записи.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec создаёт кодек с zstd на уровне SpeedDefault
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// WriteMessage сериализует сообщение и пишет фрейм в w
func (c *Codec) WriteMessage(w io.Writer, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сообщения: %w", err)
	}

	var flags byte
	if len(data) >= compressionThreshold {
		data = c.encoder.EncodeAll(data, nil)
		flags |= flagCompressed
	}

	frame := make([]byte, 5+len(data))
	binary.LittleEndian.PutUint32(frame, uint32(1+len(data)))
	frame[4] = flags
	copy(frame[5:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("ошибка записи фрейма: %w", err)
	}
	return nil
}

// ReadMessage читает один фрейм из r и разбирает сообщение
func (c *Codec) ReadMessage(r io.Reader) (*Message, error) {
	sizeBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, sizeBuf); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint32(sizeBuf)
	if size == 0 {
		return nil, fmt.Errorf("пустой фрейм")
	}
	if size > maxFrameSize {
		return nil, fmt.Errorf("фрейм слишком большой: %d байт", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	flags := body[0]
	data := body[1:]
	if flags&flagCompressed != 0 {
		var err error
		data, err = c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка распаковки фрейма: %w", err)
		}
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("ошибка разбора сообщения: %w", err)
	}
	return &msg, nil
}
