package usecases

import (
	"context"
	"fmt"
)

// Navigator moves the user to another view. views.Registry satisfies it.
type Navigator interface {
	Navigate(path string) error
}

// Delete removes a meeting after explicit confirmation.
type Delete struct {
	Backend   Backend
	Refresher Refresher
	Navigator Navigator
	Live      LiveView
}

// Execute deletes meeting id, refreshes the views and returns to the home view.
func (d *Delete) Execute(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := d.Backend.DeleteMeeting(ctx, id); err != nil {
		return fmt.Errorf("deleting meeting: %w", err)
	}
	// the open shadow must not be flushed back over a deleted meeting
	liveOrNone(d.Live).Discard(id)

	if d.Refresher != nil {
		if err := d.Refresher.Refresh(ctx); err != nil {
			return err
		}
	}
	if d.Navigator != nil {
		return d.Navigator.Navigate("/")
	}
	return nil
}
