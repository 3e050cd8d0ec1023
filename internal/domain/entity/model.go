package entity

import "time"

// Entity строка синхронизируемой таблицы любого зарегистрированного типа.
// Values хранит канонические значения бизнес-полей по ключу.
// FieldTimestamps равен nil для типов без пополевого LWW.
type Entity struct {
	ID              string
	OrganizationID  string
	SyncVersion     int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
	LastModifiedBy  string
	DeviceID        string
	Values          map[string]any
	FieldTimestamps map[string]time.Time
}

// New пустая сущность для указанного типа
func New(d *Descriptor, organizationID, id string) *Entity {
	e := &Entity{
		ID:             id,
		OrganizationID: organizationID,
		Values:         make(map[string]any, len(d.Fields)),
	}
	if d.FieldTimestamps {
		e.FieldTimestamps = make(map[string]time.Time, len(d.Fields))
	}
	return e
}

func (e *Entity) IsDeleted() bool {
	return e.DeletedAt != nil
}

// FieldTimestamp время записи, последней установившей поле
func (e *Entity) FieldTimestamp(key string) (time.Time, bool) {
	if e.FieldTimestamps == nil {
		return time.Time{}, false
	}
	ts, ok := e.FieldTimestamps[key]
	return ts, ok
}

// Stamp фиксирует время записи поля; no-op для типов без field timestamps
func (e *Entity) Stamp(key string, ts time.Time) {
	if e.FieldTimestamps == nil {
		return
	}
	e.FieldTimestamps[key] = ts.UTC()
}

// Clone глубокая копия, чтобы неудачная попытка записи не портила исходник
func (e *Entity) Clone() *Entity {
	c := *e
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		c.DeletedAt = &t
	}
	c.Values = make(map[string]any, len(e.Values))
	for k, v := range e.Values {
		c.Values[k] = v
	}
	if e.FieldTimestamps != nil {
		c.FieldTimestamps = make(map[string]time.Time, len(e.FieldTimestamps))
		for k, v := range e.FieldTimestamps {
			c.FieldTimestamps[k] = v
		}
	}
	return &c
}
