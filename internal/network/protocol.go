package network

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/tile-arena/internal/combat"
	"github.com/annel0/tile-arena/internal/vec"
)

// MessageType определяет тип сообщения
type MessageType uint16

const (
	MsgAuth         MessageType = iota // 0: Авторизация
	MsgAuthResponse                    // 1: Ответ авторизации
	MsgPing                            // 2: Пинг для поддержания соединения
	MsgPong                            // 3: Ответ на пинг
	MsgChunkRequest                    // 4: Запрос чанка
	MsgChunkData                       // 5: Данные чанка
	MsgTileSet                         // 6: Установка тайла
	MsgTileUpdate                      // 7: Уведомление об изменении тайла
	MsgMove                            // 8: Перемещение игрока
	MsgAttack                          // 9: Запрос атаки
	MsgAttackResult                    // 10: Результат атаки
	MsgError                           // 11: Ошибка обработки
)

// Message — конверт протокола. Полезная нагрузка сериализуется в JSON
// и сжимается на уровне фрейма.
type Message struct {
	Type    MessageType     `json:"type"`
	Seq     uint32          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage собирает конверт с сериализованной полезной нагрузкой
func NewMessage(t MessageType, payload interface{}) (*Message, error) {
	msg := &Message{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации payload: %w", err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// DecodePayload разбирает полезную нагрузку конверта в out
func (m *Message) DecodePayload(out interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("пустой payload сообщения типа %d", m.Type)
	}
	return json.Unmarshal(m.Payload, out)
}

// AuthRequest — запрос авторизации: либо логин/пароль, либо JWT
type AuthRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	Register bool   `json:"register,omitempty"`
}

// AuthResponse — ответ на запрос авторизации
type AuthResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	PlayerID uint64        `json:"player_id,omitempty"`
	Token    string        `json:"token,omitempty"`
	Pos      vec.Vec3Float `json:"pos"`
}

// ChunkRequest — запрос содержимого чанка по координате
type ChunkRequest struct {
	Coord vec.Vec2 `json:"coord"`
}

// ChunkData — содержимое чанка. Для uniform-чанка передаётся один
// тайл, для dense — весь массив в row-major порядке.
type ChunkData struct {
	Coord   vec.Vec2 `json:"coord"`
	Size    int      `json:"size"`
	Uniform bool     `json:"uniform"`
	Fill    uint16   `json:"fill,omitempty"`
	Tiles   []uint16 `json:"tiles,omitempty"`
}

// TileSetRequest — запрос установки тайла
type TileSetRequest struct {
	Pos  vec.Vec2 `json:"pos"`
	Tile uint16   `json:"tile"`
}

// TileUpdateNotify — уведомление об изменении тайла
type TileUpdateNotify struct {
	Pos  vec.Vec2 `json:"pos"`
	Tile uint16   `json:"tile"`
}

// MoveRequest — новая позиция игрока
type MoveRequest struct {
	Pos vec.Vec3Float `json:"pos"`
}

// AttackRequest — запрос swept-sphere атаки
type AttackRequest struct {
	Start   vec.Vec3Float `json:"start"`
	End     vec.Vec3Float `json:"end"`
	Radius  float64       `json:"radius"`
	Samples int           `json:"samples"`
}

// AttackResult — попадания, зафиксированные боевым тиком
type AttackResult struct {
	Hits []combat.HitReport `json:"hits"`
}

// ErrorNotify — сообщение об ошибке обработки запроса
type ErrorNotify struct {
	Message string `json:"message"`
}
