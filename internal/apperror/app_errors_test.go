package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	t.Run("Maps wrapped sentinels onto wire codes", func(t *testing.T) {
		// Given: errors wrapped the way the session store wraps them
		cases := map[error]string{
			fmt.Errorf("failed to join match: %w", ErrMatchNotFound):                   CodeNotFound,
			fmt.Errorf("failed to join match: %w", ErrMatchFull):                       CodeFull,
			fmt.Errorf("%w: %w", ErrMoveRejected, ErrCellOccupied):                    CodeRejected,
			fmt.Errorf("display name is required: %w", ErrInvalidInput):               CodeInvalidInput,
			errors.New("redis down"):                                                   CodeInternal,
			fmt.Errorf("failed to submit move: %w", fmt.Errorf("%w", ErrMoveRejected)): CodeRejected,
		}

		for err, want := range cases {
			// When: mapping the error
			got := Code(err)

			// Then: the matching wire code is returned
			assert.Equal(t, want, got, err.Error())
		}
	})
}
