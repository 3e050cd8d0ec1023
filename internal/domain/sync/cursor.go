package sync

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor позиция в глобально упорядоченном потоке изменений.
// Порядок: (Timestamp, EntityID, EntityType).
type Cursor struct {
	Timestamp  time.Time
	EntityID   string
	EntityType string
}

type cursorWire struct {
	TS   string `json:"ts"`
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// EncodeCursor непрозрачный токен для клиента
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(cursorWire{
		TS:   c.Timestamp.UTC().Format(time.RFC3339Nano),
		ID:   c.EntityID,
		Type: c.EntityType,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor разбирает токен, выданный EncodeCursor
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var w cursorWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if w.TS == "" || w.ID == "" {
		return Cursor{}, fmt.Errorf("%w: missing position", ErrInvalidCursor)
	}

	ts, err := time.Parse(time.RFC3339Nano, w.TS)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	return Cursor{Timestamp: ts.UTC(), EntityID: w.ID, EntityType: w.Type}, nil
}

// After сообщает, идет ли позиция (ts, id, typ) в потоке строго после c
func (c Cursor) After(ts time.Time, id, typ string) bool {
	switch {
	case !ts.Equal(c.Timestamp):
		return ts.After(c.Timestamp)
	case id != c.EntityID:
		return id > c.EntityID
	default:
		return c.InclusiveID(typ)
	}
}

// InclusiveID сообщает, должен ли запрос по типу typ включать строку с id == EntityID
// при совпадающем времени. Курсор без типа ведет себя как пара (время, id).
func (c Cursor) InclusiveID(typ string) bool {
	return c.EntityType != "" && typ > c.EntityType
}
