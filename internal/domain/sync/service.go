package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"orgsync/internal/domain/entity"
)

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// Push применяет пакет клиентских мутаций
	Push(ctx context.Context, p Principal, req PushRequest) (*PushResponse, error)

	// Pull возвращает следующую страницу изменений после курсора
	Pull(ctx context.Context, p Principal, req PullRequest) (*Page, error)

	// GetOperation возвращает строку журнала по ключу идемпотентности
	GetOperation(ctx context.Context, p Principal, idempotencyKey string) (*OperationLog, error)

	// EntityTypes описывает зарегистрированные типы сущностей
	EntityTypes() []EntityTypeInfo
}

// ServiceConfig конфигурация сервиса синхронизации
type ServiceConfig struct {
	MaxBatchSize     int
	DefaultPullLimit int
	MaxPullLimit     int
	DriftWarn        time.Duration
	MaxWriteRetries  int
	// Clock источник серверного времени; по умолчанию time.Now
	Clock func() time.Time
}

// Service реализация сервиса синхронизации
type Service struct {
	repo     Repository
	registry *entity.Registry
	log      *slog.Logger
	config   *ServiceConfig
}

// NewService создает новый сервис синхронизации
func NewService(repo Repository, registry *entity.Registry, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 100
	}
	if config.DefaultPullLimit <= 0 {
		config.DefaultPullLimit = 100
	}
	if config.MaxPullLimit <= 0 {
		config.MaxPullLimit = 500
	}
	if config.DefaultPullLimit > config.MaxPullLimit {
		config.DefaultPullLimit = config.MaxPullLimit
	}
	if config.DriftWarn <= 0 {
		config.DriftWarn = 5 * time.Minute
	}
	if config.MaxWriteRetries <= 0 {
		config.MaxWriteRetries = 3
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Service{
		repo:     repo,
		registry: registry,
		log:      log.With(slog.String("component", "sync_service")),
		config:   config,
	}
}

// now серверное время с точностью до микросекунды: столько хранят обе СУБД,
// и курсор должен совпадать с тем, что вернется из базы.
func (s *Service) now() time.Time {
	return s.config.Clock().UTC().Truncate(time.Microsecond)
}

// GetOperation возвращает строку журнала организации
func (s *Service) GetOperation(ctx context.Context, p Principal, idempotencyKey string) (*OperationLog, error) {
	op, err := s.repo.GetOperation(ctx, p.OrganizationID, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("get operation: %w", err)
	}
	return op, nil
}

// EntityTypes описывает все зарегистрированные типы
func (s *Service) EntityTypes() []EntityTypeInfo {
	descriptors := s.registry.Descriptors()
	out := make([]EntityTypeInfo, 0, len(descriptors))

	for _, d := range descriptors {
		info := EntityTypeInfo{
			Name:            d.Name,
			FieldTimestamps: d.FieldTimestamps,
			Fields:          make([]FieldInfo, len(d.Fields)),
		}
		for i, f := range d.Fields {
			info.Fields[i] = FieldInfo{Key: f.Key(), Kind: string(f.Kind)}
		}
		out = append(out, info)
	}

	return out
}

// PurgeTombstones удаляет надгробия старше retention во всех типах.
// Возвращает число удаленных строк по типам.
func (s *Service) PurgeTombstones(ctx context.Context, retention time.Duration) (map[string]int64, error) {
	before := s.now().Add(-retention)
	purged := make(map[string]int64)

	for _, d := range s.registry.Descriptors() {
		n, err := s.repo.PurgeTombstones(ctx, d, before)
		if err != nil {
			return purged, fmt.Errorf("purge %s: %w", d.Name, err)
		}
		purged[d.Name] = n
		s.log.Info("tombstones purged",
			slog.String("entity_type", d.Name),
			slog.Int64("count", n),
			slog.Time("before", before),
		)
	}

	return purged, nil
}
