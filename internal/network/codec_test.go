package network

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

// TestCodecRoundtrip тестирует кодирование и разбор небольшого сообщения
func TestCodecRoundtrip(t *testing.T) {
	c := newTestCodec(t)

	msg, err := NewMessage(MsgTileSet, &TileSetRequest{Tile: 4})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	msg.Seq = 7

	var buf bytes.Buffer
	if err := c.WriteMessage(&buf, msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := c.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Type != MsgTileSet || got.Seq != 7 {
		t.Errorf("получено type=%d seq=%d", got.Type, got.Seq)
	}

	var req TileSetRequest
	if err := got.DecodePayload(&req); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if req.Tile != 4 {
		t.Errorf("Tile = %d, ожидалось 4", req.Tile)
	}
}

// TestCodecCompressesLargePayload тестирует сжатие больших сообщений
func TestCodecCompressesLargePayload(t *testing.T) {
	c := newTestCodec(t)

	tiles := make([]uint16, 4096)
	msg, err := NewMessage(MsgChunkData, &ChunkData{Size: 64, Tiles: tiles})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	var buf bytes.Buffer
	if err := c.WriteMessage(&buf, msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	frame := buf.Bytes()
	if frame[4]&flagCompressed == 0 {
		t.Error("большое сообщение не сжато")
	}
	// Однородный массив тайлов сжимается на порядки
	if len(frame) >= 4096 {
		t.Errorf("фрейм %d байт, сжатие не сработало", len(frame))
	}

	got, err := c.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var data ChunkData
	if err := got.DecodePayload(&data); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if len(data.Tiles) != 4096 {
		t.Errorf("восстановлено %d тайлов, ожидалось 4096", len(data.Tiles))
	}
}

// TestCodecRejectsOversizedFrame тестирует отклонение огромных фреймов
func TestCodecRejectsOversizedFrame(t *testing.T) {
	c := newTestCodec(t)

	var buf bytes.Buffer
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, maxFrameSize+1)
	buf.Write(size)

	if _, err := c.ReadMessage(&buf); err == nil {
		t.Error("слишком большой фрейм принят")
	}
}

// TestCodecMultipleMessages тестирует чтение нескольких фреймов подряд
func TestCodecMultipleMessages(t *testing.T) {
	c := newTestCodec(t)

	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		msg := &Message{Type: MsgPing, Seq: uint32(i)}
		if err := c.WriteMessage(&buf, msg); err != nil {
			t.Fatalf("WriteMessage #%d: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		got, err := c.ReadMessage(&buf)
		if err != nil {
			t.Fatalf("ReadMessage #%d: %v", i, err)
		}
		if got.Seq != uint32(i) {
			t.Errorf("Seq = %d, ожидалось %d", got.Seq, i)
		}
	}
}
