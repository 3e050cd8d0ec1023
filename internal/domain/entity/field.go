package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind тип значения бизнес-поля
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
	// KindRef ссылка на другую сущность той же организации, хранится как <name>_id
	KindRef Kind = "ref"
)

// TimeFormat формат времени во всех сериализованных значениях
const TimeFormat = time.RFC3339Nano

func (k Kind) valid() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool, KindTime, KindRef:
		return true
	}
	return false
}

// Field описание бизнес-поля синхронизируемой сущности
type Field struct {
	Name string
	Kind Kind
}

// Key имя поля в данных клиента, в колонке таблицы и в field_timestamps
func (f Field) Key() string {
	if f.Kind == KindRef {
		return f.Name + "_id"
	}
	return f.Name
}

// maxInt64Float 2^63, первое значение float64 за пределами int64
const maxInt64Float = float64(1 << 63)

// Coerce приводит значение из JSON к каноническому Go-типу поля.
// nil допустим для любого поля. Время хранится с точностью до микросекунды.
func (f Field) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Kind {
	case KindString, KindRef:
		s, ok := v.(string)
		if !ok {
			return nil, f.invalid(v)
		}
		return s, nil

	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) || n >= maxInt64Float || n < -maxInt64Float {
				return nil, f.invalid(v)
			}
			return int64(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, f.invalid(v)
			}
			return i, nil
		}
		return nil, f.invalid(v)

	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			x, err := n.Float64()
			if err != nil {
				return nil, f.invalid(v)
			}
			return x, nil
		}
		return nil, f.invalid(v)

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, f.invalid(v)
		}
		return b, nil

	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Truncate(time.Microsecond), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, f.invalid(v)
			}
			return parsed.UTC().Truncate(time.Microsecond), nil
		}
		return nil, f.invalid(v)
	}

	return nil, fmt.Errorf("%w: field %q has unsupported kind %q", ErrInvalidDescriptor, f.Name, f.Kind)
}

func (f Field) invalid(v any) error {
	return fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidFieldValue, f.Key(), f.Kind, v)
}

// Encode значение поля для ответа клиенту
func (f Field) Encode(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(TimeFormat)
	}
	return v
}

// Equal сравнивает два канонических значения поля
func Equal(a, b any) bool {
	ta, aTime := a.(time.Time)
	tb, bTime := b.(time.Time)
	if aTime || bTime {
		return aTime && bTime && ta.Equal(tb)
	}
	return a == b
}
