package sqlstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"orgsync/internal/domain/entity"
)

// служебные колонки каждой таблицы сущностей, в порядке сканирования
var systemColumns = []string{
	"organization_id",
	"id",
	"sync_version",
	"created_at",
	"updated_at",
	"deleted_at",
	"last_modified_by",
	"device_id",
	"field_timestamps",
}

func entityColumns(d *entity.Descriptor) string {
	return strings.Join(append(append([]string{}, systemColumns...), d.Keys()...), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(d *entity.Descriptor, row rowScanner) (*entity.Entity, error) {
	var (
		orgID, id, modifiedBy, deviceID string
		version                         int64
		created, updated, deleted       dbTime
		stamps                          []byte
		raw                             = make([]any, len(d.Fields))
	)

	dest := []any{&orgID, &id, &version, &created, &updated, &deleted, &modifiedBy, &deviceID, &stamps}
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	e := entity.New(d, orgID, id)
	e.SyncVersion = version
	e.CreatedAt = created.Time
	e.UpdatedAt = updated.Time
	e.DeletedAt = deleted.ptr()
	e.LastModifiedBy = modifiedBy
	e.DeviceID = deviceID

	for i, f := range d.Fields {
		v, err := decodeValue(f, raw[i])
		if err != nil {
			return nil, err
		}
		e.Values[f.Key()] = v
	}

	if d.FieldTimestamps && len(stamps) > 0 {
		var wire map[string]string
		if err := json.Unmarshal(stamps, &wire); err != nil {
			return nil, fmt.Errorf("decode field_timestamps of %s %s: %w", d.Name, id, err)
		}
		for key, s := range wire {
			ts, err := time.Parse(entity.TimeFormat, s)
			if err != nil {
				return nil, fmt.Errorf("decode field_timestamps[%s] of %s %s: %w", key, d.Name, id, err)
			}
			e.Stamp(key, ts)
		}
	}

	return e, nil
}

// encodeStamps nil для типов без пополевого LWW
func encodeStamps(d *entity.Descriptor, e *entity.Entity) (any, error) {
	if !d.FieldTimestamps {
		return nil, nil
	}
	wire := make(map[string]string, len(e.FieldTimestamps))
	for key, ts := range e.FieldTimestamps {
		wire[key] = ts.UTC().Format(entity.TimeFormat)
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *Store) encodeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return s.dialect.Time(t)
	}
	return v
}

// decodeValue приводит значение колонки к каноническому типу поля
func decodeValue(f entity.Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch f.Kind {
	case entity.KindString, entity.KindRef:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case entity.KindInt:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int32:
			return int64(v), nil
		}
	case entity.KindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case entity.KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
	case entity.KindTime:
		var t dbTime
		if err := t.Scan(raw); err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Key(), err)
		}
		return t.Time, nil
	}

	return nil, fmt.Errorf("column %s: unexpected %T for %s field", f.Key(), raw, f.Kind)
}
