package entity

const previewLen = 80

// Встроенные типы сущностей. Таблицы создаются миграциями.
var (
	Customer = &Descriptor{
		Name:  "customer",
		Table: "customers",
		Fields: []Field{
			{Name: "name", Kind: KindString},
			{Name: "phone", Kind: KindString},
			{Name: "email", Kind: KindString},
			{Name: "address", Kind: KindString},
		},
		FieldTimestamps: true,
	}

	Job = &Descriptor{
		Name:  "job",
		Table: "jobs",
		Fields: []Field{
			{Name: "customer", Kind: KindRef},
			{Name: "title", Kind: KindString},
			{Name: "status", Kind: KindString},
			{Name: "scheduled_at", Kind: KindTime},
			{Name: "amount_cents", Kind: KindInt},
		},
		FieldTimestamps: true,
	}

	Note = &Descriptor{
		Name:  "note",
		Table: "notes",
		Fields: []Field{
			{Name: "job", Kind: KindRef},
			{Name: "body", Kind: KindString},
			{Name: "pinned", Kind: KindBool},
		},
	}
)

// NoteSerializer дополняет стандартный вывод коротким превью текста
func NoteSerializer(d *Descriptor, e *Entity) map[string]any {
	out := DefaultSerializer(d, e)

	body, _ := e.Values["body"].(string)
	runes := []rune(body)
	if len(runes) > previewLen {
		runes = runes[:previewLen]
	}
	out["preview"] = string(runes)

	return out
}

// NewDefaultRegistry реестр со всеми встроенными типами
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(Customer, nil)
	r.MustRegister(Job, nil)
	r.MustRegister(Note, NoteSerializer)
	return r
}
