package sync

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/exp/slog"

	"orgsync/internal/domain/entity"
)

type candidate struct {
	typ string
	row *entity.Entity
}

func (c candidate) less(other candidate) bool {
	switch {
	case !c.row.UpdatedAt.Equal(other.row.UpdatedAt):
		return c.row.UpdatedAt.Before(other.row.UpdatedAt)
	case c.row.ID != other.row.ID:
		return c.row.ID < other.row.ID
	default:
		return c.typ < other.typ
	}
}

// Pull возвращает следующую страницу изменений организации по всем выбранным типам
// в едином порядке (updated_at, id). Надгробия попадают в поток как delete.
func (s *Service) Pull(ctx context.Context, p Principal, req PullRequest) (*Page, error) {
	var after *Cursor
	if req.Since != "" {
		c, err := DecodeCursor(req.Since)
		if err != nil {
			return nil, err
		}
		after = &c
	}

	limit := s.clampLimit(req.Limit)

	var candidates []candidate
	for _, name := range s.pullTypes(req.EntityTypes) {
		d, err := s.registry.Resolve(name)
		if err != nil {
			return nil, err
		}

		rows, err := s.repo.ListChanges(ctx, d, p.OrganizationID, after, limit+1)
		if err != nil {
			return nil, fmt.Errorf("list %s changes: %w", name, err)
		}
		for _, row := range rows {
			candidates = append(candidates, candidate{typ: name, row: row})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].less(candidates[j])
	})

	page := &Page{
		Changes: make([]Change, 0, min(len(candidates), limit)),
		HasMore: len(candidates) > limit,
		Cursor:  req.Since,
	}
	if page.HasMore {
		candidates = candidates[:limit]
	}

	for _, c := range candidates {
		change := Change{
			EntityType: c.typ,
			EntityID:   c.row.ID,
			Version:    c.row.SyncVersion,
			UpdatedAt:  c.row.UpdatedAt,
		}

		if c.row.IsDeleted() {
			change.Operation = ChangeDelete
		} else {
			data, err := s.registry.Serialize(c.typ, c.row)
			if err != nil {
				return nil, err
			}
			change.Operation = ChangeUpsert
			change.Data = data
		}

		page.Changes = append(page.Changes, change)
	}

	if n := len(candidates); n > 0 {
		last := candidates[n-1]
		page.Cursor = EncodeCursor(Cursor{
			Timestamp:  last.row.UpdatedAt,
			EntityID:   last.row.ID,
			EntityType: last.typ,
		})
	}

	s.log.Debug("pull page built",
		slog.String("organization_id", p.OrganizationID),
		slog.Int("changes", len(page.Changes)),
		slog.Bool("has_more", page.HasMore),
	)

	return page, nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.config.DefaultPullLimit
	}
	if limit > s.config.MaxPullLimit {
		return s.config.MaxPullLimit
	}
	return limit
}

// pullTypes пересечение фильтра с реестром; неизвестные имена молча отбрасываются
func (s *Service) pullTypes(filter []string) []string {
	registered := s.registry.Names()
	if len(filter) == 0 {
		return registered
	}

	wanted := make(map[string]struct{}, len(filter))
	for _, name := range filter {
		wanted[name] = struct{}{}
	}

	out := make([]string, 0, len(filter))
	for _, name := range registered {
		if _, ok := wanted[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
