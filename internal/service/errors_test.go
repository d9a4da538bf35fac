package service

import (
	"errors"
	"fmt"
	"testing"

	"venuebook/internal/database"
	"venuebook/internal/repository"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want Kind
	}{
		{"SlotTaken", &database.SlotTakenError{VenueID: 1, Date: "2030-01-07", Slot: "09:00 - 10:00"}, KindSlotConflict},
		{"SlotTakenSentinel", fmt.Errorf("insert: %w", database.ErrSlotTaken), KindSlotConflict},
		{"NotFound", fmt.Errorf("venue 3: %w", database.ErrNotFound), KindNotFound},
		{"Capacity", database.ErrCapacityExceeded, KindCapacityExceeded},
		{"Cancelled", database.ErrAlreadyCancelled, KindAlreadyCancelled},
		{"Version", database.ErrConcurrentModification, KindInternal},
		{"LockTimeout", fmt.Errorf("%w: venue:1", repository.ErrLockTimeout), KindInternal},
		{"Unknown", errors.New("disk on fire"), KindInternal},
		{"AlreadyClassified", newError(KindLockedWindow, "locked"), KindLockedWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translate(tt.in)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.in)
		})
	}

	assert.NoError(t, translate(nil))
}

func TestErrorMessages(t *testing.T) {
	err := translate(&database.SlotTakenError{VenueID: 1, Date: "2030-01-07", Slot: "09:00 - 10:00"})
	assert.Equal(t, "slot 09:00 - 10:00 on 2030-01-07 is already booked", err.Error())

	// Internal details stay out of the message.
	err = translate(errors.New("sql: connection refused"))
	assert.Equal(t, "internal error", err.Error())

	assert.Equal(t, "NotFound", ErrNotFound.Error())
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.True(t, errors.Is(newError(KindSlotConflict, "x"), ErrSlotConflict))
	assert.False(t, errors.Is(newError(KindSlotConflict, "x"), ErrCapacityExceeded))
}
