package sync

import (
	"sort"
	"time"

	"orgsync/internal/domain/entity"
)

// Resolution итог пополевого LWW
type Resolution struct {
	Applied  []string
	Rejected []ConflictField
}

// Resolve применяет входящие значения к e по правилу last-writer-wins для каждого поля.
// Клиент выигрывает, если у поля нет метки или его метка строго раньше clientTS.
// При равенстве побеждает сервер. Проигрыш с отличающимся значением попадает в Rejected.
// Служебные и неизвестные поля пропускаются. Функция не возвращает ошибок.
func Resolve(d *entity.Descriptor, e *entity.Entity, incoming map[string]any, clientTS time.Time) Resolution {
	var res Resolution

	keys := make([]string, 0, len(incoming))
	for k := range incoming {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if entity.IsReserved(key) {
			continue
		}
		field, ok := d.Field(key)
		if !ok {
			continue
		}

		clientValue := incoming[key]
		serverTS, stamped := e.FieldTimestamp(key)

		if !stamped || clientTS.After(serverTS) {
			e.Values[key] = clientValue
			e.Stamp(key, clientTS)
			res.Applied = append(res.Applied, key)
			continue
		}

		serverValue := e.Values[key]
		if entity.Equal(clientValue, serverValue) {
			continue
		}

		res.Rejected = append(res.Rejected, ConflictField{
			Field:           key,
			ClientValue:     field.Encode(clientValue),
			ServerValue:     field.Encode(serverValue),
			ClientTimestamp: clientTS.UTC(),
			ServerTimestamp: serverTS,
		})
	}

	return res
}
