package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kejaview/backend/internal/apperr"
	"github.com/kejaview/backend/internal/models"
)

func TestAcceptSchedulePriority(t *testing.T) {
	now := time.Now()
	req := &models.ViewingRequest{
		ProposedSlots: []models.ProposedSlot{
			{Date: "2026-09-10", TimeWindow: "10:00-11:00"},
			{Date: "2026-09-11", TimeWindow: "14:00-15:00"},
		},
		Counter: &models.CounterProposal{
			Date:       "2026-09-12",
			TimeWindow: "16:00-17:00",
			ProposedBy: uuid.New(),
			ProposedAt: &now,
		},
	}

	// An explicit schedule from the accepting party beats the counter.
	date, window, err := acceptSchedule(req, 0, "2026-09-20", "09:00-10:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-20", date)
	assert.Equal(t, "09:00-10:00", window)

	// Without an override the counter-proposal is the active schedule.
	date, window, err = acceptSchedule(req, 0, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-12", date)
	assert.Equal(t, "16:00-17:00", window)

	// No counter on the table: the indexed original slot.
	req.Counter = nil
	date, window, err = acceptSchedule(req, 1, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-11", date)
	assert.Equal(t, "14:00-15:00", window)
}

func TestAcceptScheduleHalfOverride(t *testing.T) {
	req := &models.ViewingRequest{
		ProposedSlots: []models.ProposedSlot{{Date: "2026-09-10", TimeWindow: "10:00-11:00"}},
	}

	_, _, err := acceptSchedule(req, 0, "2026-09-20", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, _, err = acceptSchedule(req, 0, "", "09:00-10:00")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAcceptScheduleSlotBounds(t *testing.T) {
	req := &models.ViewingRequest{
		ProposedSlots: []models.ProposedSlot{{Date: "2026-09-10", TimeWindow: "10:00-11:00"}},
	}

	_, _, err := acceptSchedule(req, -1, "", "")
	assert.ErrorIs(t, err, apperr.ErrNoScheduleAvailable)

	_, _, err = acceptSchedule(req, 1, "", "")
	assert.ErrorIs(t, err, apperr.ErrNoScheduleAvailable)
}
