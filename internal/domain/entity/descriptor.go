package entity

import (
	"fmt"
	"regexp"
)

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reservedKeys служебные колонки, которые не участвуют в LWW и не принимаются от клиента
var reservedKeys = map[string]struct{}{
	"id":               {},
	"organization_id":  {},
	"sync_version":     {},
	"created_at":       {},
	"updated_at":       {},
	"deleted_at":       {},
	"last_modified_by": {},
	"device_id":        {},
	"field_timestamps": {},
}

// IsReserved сообщает, является ли ключ служебным
func IsReserved(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// Descriptor декларативная схема типа сущности: таблица, бизнес-поля
// и признак пополевого LWW.
type Descriptor struct {
	Name            string
	Table           string
	Fields          []Field
	FieldTimestamps bool
}

// Field возвращает поле по ключу
func (d *Descriptor) Field(key string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Key() == key {
			return f, true
		}
	}
	return Field{}, false
}

// Keys ключи всех бизнес-полей в порядке объявления
func (d *Descriptor) Keys() []string {
	keys := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		keys[i] = f.Key()
	}
	return keys
}

// Validate проверяет схему. Имена таблиц и колонок подставляются в SQL,
// поэтому допускаются только простые идентификаторы.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if !identPattern.MatchString(d.Table) {
		return fmt.Errorf("%w: %s: bad table name %q", ErrInvalidDescriptor, d.Name, d.Table)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		key := f.Key()
		if !f.Kind.valid() {
			return fmt.Errorf("%w: %s.%s: unknown kind %q", ErrInvalidDescriptor, d.Name, f.Name, f.Kind)
		}
		if !identPattern.MatchString(key) {
			return fmt.Errorf("%w: %s: bad field name %q", ErrInvalidDescriptor, d.Name, key)
		}
		if IsReserved(key) {
			return fmt.Errorf("%w: %s: field %q is reserved", ErrInvalidDescriptor, d.Name, key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidDescriptor, d.Name, key)
		}
		seen[key] = struct{}{}
	}

	return nil
}

func (d *Descriptor) sameAs(other *Descriptor) bool {
	if d == other {
		return true
	}
	if d.Table != other.Table || d.FieldTimestamps != other.FieldTimestamps || len(d.Fields) != len(other.Fields) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}
