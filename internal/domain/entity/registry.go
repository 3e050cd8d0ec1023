package entity

import (
	"fmt"
	"sort"
)

// Serializer превращает сущность в данные для pull-ответа
type Serializer func(d *Descriptor, e *Entity) map[string]any

type registration struct {
	descriptor *Descriptor
	serializer Serializer
}

// Registry сопоставляет имя типа сущности с его схемой и сериализатором.
// Заполняется один раз при старте процесса и дальше только читается.
type Registry struct {
	types map[string]registration
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]registration),
	}
}

// Register регистрирует тип. Повторная регистрация той же схемы допустима
// и заменяет сериализатор; другая схема под тем же именем - ошибка конфигурации.
func (r *Registry) Register(d *Descriptor, serializer Serializer) error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidDescriptor)
	}
	if err := d.Validate(); err != nil {
		return err
	}

	if existing, ok := r.types[d.Name]; ok && !existing.descriptor.sameAs(d) {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, d.Name)
	}

	for name, reg := range r.types {
		if name != d.Name && reg.descriptor.Table == d.Table {
			return fmt.Errorf("%w: table %s is already used by %s", ErrInvalidDescriptor, d.Table, name)
		}
	}

	r.types[d.Name] = registration{descriptor: d, serializer: serializer}
	return nil
}

// MustRegister как Register, но паникует при ошибке конфигурации
func (r *Registry) MustRegister(d *Descriptor, serializer Serializer) {
	if err := r.Register(d, serializer); err != nil {
		panic(err)
	}
}

// Resolve возвращает схему по имени типа
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	reg, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, name)
	}
	return reg.descriptor, nil
}

// Names имена всех зарегистрированных типов в алфавитном порядке
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors схемы всех типов в порядке Names
func (r *Registry) Descriptors() []*Descriptor {
	names := r.Names()
	out := make([]*Descriptor, len(names))
	for i, name := range names {
		out[i] = r.types[name].descriptor
	}
	return out
}

// SerializerFor возвращает пользовательский сериализатор типа или DefaultSerializer
func (r *Registry) SerializerFor(name string) Serializer {
	if reg, ok := r.types[name]; ok && reg.serializer != nil {
		return reg.serializer
	}
	return DefaultSerializer
}

// Serialize сериализует сущность зарегистрированного типа
func (r *Registry) Serialize(name string, e *Entity) (map[string]any, error) {
	d, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return r.SerializerFor(name)(d, e), nil
}
