package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orgsync/internal/domain/entity"
)

var pullBase = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func row(d *entity.Descriptor, id string, updatedAt time.Time, version int64) *entity.Entity {
	e := entity.New(d, "org-1", id)
	e.SyncVersion = version
	e.CreatedAt = updatedAt
	e.UpdatedAt = updatedAt
	return e
}

func expectList(repo *MockRepository, d *entity.Descriptor, limit int, rows []*entity.Entity) {
	repo.On("ListChanges", mock.Anything, d, "org-1", mock.Anything, limit).Return(rows, nil)
}

func TestPull_WireFormat(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	customer := row(entity.Customer, "c-1", pullBase, 2)
	customer.CreatedAt = pullBase.Add(-time.Hour)
	customer.DeviceID = "dev-1"
	customer.LastModifiedBy = "member-1"
	customer.Values["name"] = "Acme"
	customer.Values["phone"] = "+1 555 0100"
	customer.Stamp("name", pullBase.Add(-time.Hour))

	job := row(entity.Job, "j-1", pullBase, 1)
	job.CreatedAt = pullBase.Add(-30 * time.Minute)
	job.DeviceID = "dev-2"
	job.Values["customer_id"] = "c-1"
	job.Values["title"] = "Install boiler"
	job.Values["status"] = "scheduled"
	job.Values["scheduled_at"] = time.Date(2026, 6, 3, 8, 0, 0, 0, time.UTC)
	job.Values["amount_cents"] = int64(12500)

	deletedAt := pullBase.Add(time.Second)
	note := row(entity.Note, "n-1", deletedAt, 3)
	note.DeletedAt = &deletedAt
	note.Values["body"] = "gate code 1234"

	expectList(repo, entity.Customer, 101, []*entity.Entity{customer})
	expectList(repo, entity.Job, 101, []*entity.Entity{job})
	expectList(repo, entity.Note, 101, []*entity.Entity{note})

	page, err := s.Pull(context.Background(), editor, PullRequest{})
	require.NoError(t, err)

	out, err := json.MarshalIndent(page, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "pull_page", out)
}

func TestPull_LimitIsClamped(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		queried   int
	}{
		{name: "default", requested: 0, queried: 101},
		{name: "negative", requested: -5, queried: 101},
		{name: "within range", requested: 10, queried: 11},
		{name: "above maximum", requested: 10000, queried: 501},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			s := newTestService(repo)

			expectList(repo, entity.Customer, tt.queried, nil)
			expectList(repo, entity.Job, tt.queried, nil)
			expectList(repo, entity.Note, tt.queried, nil)

			page, err := s.Pull(context.Background(), editor, PullRequest{Limit: tt.requested})
			require.NoError(t, err)
			assert.Empty(t, page.Changes)
			assert.NotNil(t, page.Changes)
			repo.AssertExpectations(t)
		})
	}
}

func TestPull_FilterDropsUnknownTypes(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	expectList(repo, entity.Note, 101, []*entity.Entity{row(entity.Note, "n-1", pullBase, 1)})

	page, err := s.Pull(context.Background(), editor, PullRequest{EntityTypes: []string{"note", "invoice"}})
	require.NoError(t, err)

	require.Len(t, page.Changes, 1)
	assert.Equal(t, "note", page.Changes[0].EntityType)
	repo.AssertNotCalled(t, "ListChanges", mock.Anything, entity.Customer, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ListChanges", mock.Anything, entity.Job, mock.Anything, mock.Anything, mock.Anything)
}

func TestPull_OnlyUnknownTypesGivesEmptyPage(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	page, err := s.Pull(context.Background(), editor, PullRequest{EntityTypes: []string{"invoice"}, Since: "abc"})
	// "abc" не валидный курсор
	assert.ErrorIs(t, err, ErrInvalidCursor)
	assert.Nil(t, page)

	page, err = s.Pull(context.Background(), editor, PullRequest{EntityTypes: []string{"invoice"}})
	require.NoError(t, err)
	assert.Empty(t, page.Changes)
	assert.False(t, page.HasMore)
	repo.AssertNotCalled(t, "ListChanges", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPull_MergesTypesInGlobalOrder(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	expectList(repo, entity.Customer, 101, []*entity.Entity{
		row(entity.Customer, "a", pullBase, 1),
		row(entity.Customer, "x", pullBase.Add(2*time.Second), 1),
	})
	expectList(repo, entity.Job, 101, []*entity.Entity{
		row(entity.Job, "b", pullBase, 1),
		row(entity.Job, "x", pullBase.Add(2*time.Second), 1),
	})
	expectList(repo, entity.Note, 101, []*entity.Entity{
		row(entity.Note, "z", pullBase.Add(time.Second), 1),
	})

	page, err := s.Pull(context.Background(), editor, PullRequest{})
	require.NoError(t, err)

	var got []string
	for _, c := range page.Changes {
		got = append(got, c.EntityType+"/"+c.EntityID)
	}
	assert.Equal(t, []string{"customer/a", "job/b", "note/z", "customer/x", "job/x"}, got)

	c, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Timestamp: pullBase.Add(2 * time.Second), EntityID: "x", EntityType: "job"}, c)
}

func TestPull_HasMoreTruncatesPage(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	expectList(repo, entity.Customer, 3, []*entity.Entity{
		row(entity.Customer, "c-1", pullBase, 1),
		row(entity.Customer, "c-2", pullBase.Add(time.Second), 1),
		row(entity.Customer, "c-3", pullBase.Add(2*time.Second), 1),
	})
	expectList(repo, entity.Job, 3, nil)
	expectList(repo, entity.Note, 3, []*entity.Entity{
		row(entity.Note, "n-1", pullBase.Add(3*time.Second), 1),
	})

	page, err := s.Pull(context.Background(), editor, PullRequest{Limit: 2})
	require.NoError(t, err)

	require.Len(t, page.Changes, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "c-2", page.Changes[1].EntityID)

	c, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "c-2", c.EntityID)
	assert.Equal(t, "customer", c.EntityType)
}

func TestPull_PassesCursorToRepository(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	since := EncodeCursor(Cursor{Timestamp: pullBase, EntityID: "c-9", EntityType: "customer"})
	atCursor := mock.MatchedBy(func(c *Cursor) bool {
		return c != nil && c.Timestamp.Equal(pullBase) && c.EntityID == "c-9" && c.EntityType == "customer"
	})

	for _, d := range []*entity.Descriptor{entity.Customer, entity.Job, entity.Note} {
		repo.On("ListChanges", mock.Anything, d, "org-1", atCursor, 101).Return(nil, nil)
	}

	page, err := s.Pull(context.Background(), editor, PullRequest{Since: since})
	require.NoError(t, err)

	assert.Empty(t, page.Changes)
	assert.False(t, page.HasMore)
	assert.Equal(t, since, page.Cursor)
	repo.AssertExpectations(t)
}

func TestPull_TombstoneHasNoData(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	deletedAt := pullBase
	gone := row(entity.Customer, "c-1", pullBase, 4)
	gone.DeletedAt = &deletedAt
	gone.Values["name"] = "secret"

	expectList(repo, entity.Customer, 101, []*entity.Entity{gone})

	page, err := s.Pull(context.Background(), editor, PullRequest{EntityTypes: []string{"customer"}})
	require.NoError(t, err)

	require.Len(t, page.Changes, 1)
	assert.Equal(t, ChangeDelete, page.Changes[0].Operation)
	assert.Nil(t, page.Changes[0].Data)
	assert.Equal(t, int64(4), page.Changes[0].Version)
}

func TestPull_NoteCarriesPreview(t *testing.T) {
	repo := new(MockRepository)
	s := newTestService(repo)

	n := row(entity.Note, "n-1", pullBase, 1)
	n.Values["body"] = "short"
	expectList(repo, entity.Note, 101, []*entity.Entity{n})

	page, err := s.Pull(context.Background(), editor, PullRequest{EntityTypes: []string{"note"}})
	require.NoError(t, err)

	require.Len(t, page.Changes, 1)
	assert.Equal(t, "short", page.Changes[0].Data["preview"])
	assert.NotContains(t, page.Changes[0].Data, "field_timestamps")
	assert.NotContains(t, page.Changes[0].Data, "organization_id")
}
