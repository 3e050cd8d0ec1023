package entity

// DefaultSerializer выдает id, версию, временные метки, устройство, field_timestamps
// (для LWW-типов) и все бизнес-поля. Привязка к организации, автор изменения
// и метка удаления не выдаются.
func DefaultSerializer(d *Descriptor, e *Entity) map[string]any {
	out := make(map[string]any, len(d.Fields)+6)

	out["id"] = e.ID
	out["sync_version"] = e.SyncVersion
	out["created_at"] = e.CreatedAt.UTC().Format(TimeFormat)
	out["updated_at"] = e.UpdatedAt.UTC().Format(TimeFormat)
	out["device_id"] = e.DeviceID

	for _, f := range d.Fields {
		out[f.Key()] = f.Encode(e.Values[f.Key()])
	}

	if d.FieldTimestamps {
		stamps := make(map[string]string, len(e.FieldTimestamps))
		for k, ts := range e.FieldTimestamps {
			stamps[k] = ts.UTC().Format(TimeFormat)
		}
		out["field_timestamps"] = stamps
	}

	return out
}
