// Package sqlstore реализует порты хранения доменов поверх database/sql.
// Различия СУБД (плейсхолдеры, представление времени, коды ошибок) скрыты за Dialect.
package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Dialect особенности конкретной СУБД
type Dialect interface {
	Name() string
	// Placeholder n-й параметр запроса, начиная с 1
	Placeholder(n int) string
	// Time представление времени в параметре запроса
	Time(t time.Time) any
	IsUniqueViolation(err error) bool
}

// args накапливает параметры запроса и выдает для них плейсхолдеры
type args struct {
	dialect Dialect
	values  []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, v)
	return a.dialect.Placeholder(len(a.values))
}

func (a *args) time(t time.Time) string {
	return a.add(a.dialect.Time(t))
}

func (a *args) nullTime(t *time.Time) string {
	if t == nil {
		return a.add(nil)
	}
	return a.time(*t)
}

func (a *args) list(vs ...any) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = a.add(v)
	}
	return strings.Join(ph, ", ")
}

// dbTime сканирует время, сохраненное либо нативно, либо как микросекунды Unix
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
	case int64:
		t.Time, t.Valid = time.UnixMicro(v).UTC(), true
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	return nil
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var _ sql.Scanner = (*dbTime)(nil)

// UnixMicro кодирует время как микросекунды Unix для СУБД без собственного типа
func UnixMicro(t time.Time) any {
	return t.UTC().UnixMicro()
}

// Native передает время драйверу как есть
func Native(t time.Time) any {
	return t.UTC()
}
