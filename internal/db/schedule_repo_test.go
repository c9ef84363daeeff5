package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

func TestScheduleListRange(t *testing.T) {
	s := newTestStore(t)
	companyID := seedCompany(t, s, "schedco")
	techA := seedUser(t, s, companyID, "a@schedco.test", types.RoleTechnician)
	techB := seedUser(t, s, companyID, "b@schedco.test", types.RoleTechnician)
	repo := NewScheduleRepository(s)

	day := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	mk := func(tech int64, title string, startHour, endHour int) {
		_, err := repo.Create(context.Background(), &types.ScheduleEvent{
			CompanyID:    companyID,
			TechnicianID: tech,
			Type:         types.EventOther,
			Title:        title,
			StartsAt:     day.Add(time.Duration(startHour) * time.Hour),
			EndsAt:       day.Add(time.Duration(endHour) * time.Hour),
		})
		require.NoError(t, err)
	}

	mk(techA, "morning job", 8, 10)
	mk(techA, "afternoon job", 13, 15)
	mk(techB, "other tech", 9, 11)
	mk(techA, "next day", 32, 34)

	events, err := repo.ListRange(context.Background(), companyID, 0, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "morning job", events[0].Title)

	mine, err := repo.ListRange(context.Background(), companyID, techA, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, e := range mine {
		assert.Equal(t, techA, e.TechnicianID)
	}

	// Overlap semantics: an event straddling the window boundary is
	// included.
	mk(techA, "straddler", 23, 25)
	events, err = repo.ListRange(context.Background(), companyID, techA, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestScheduleDelete(t *testing.T) {
	s := newTestStore(t)
	companyID := seedCompany(t, s, "sdelco")
	otherCompany := seedCompany(t, s, "other-sdelco")
	techID := seedUser(t, s, companyID, "t@sdelco.test", types.RoleTechnician)
	repo := NewScheduleRepository(s)

	id, err := repo.Create(context.Background(), &types.ScheduleEvent{
		CompanyID:    companyID,
		TechnicianID: techID,
		Type:         types.EventOther,
		Title:        "pto",
		StartsAt:     time.Now().UTC(),
		EndsAt:       time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	// Foreign tenant cannot delete it.
	err = repo.Delete(context.Background(), id, otherCompany)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundEvent, appErr.Code)

	require.NoError(t, repo.Delete(context.Background(), id, companyID))

	err = repo.Delete(context.Background(), id, companyID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundEvent, appErr.Code)
}
