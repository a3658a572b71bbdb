package usecases

import (
	"context"
	"fmt"

	"github.com/devbydaniel/watson/internal/domain/meeting"
)

// Publish sends a meeting's summary to the linked CRM organization.
type Publish struct {
	Backend   Backend
	Toaster   Toaster
	Refresher Refresher
	Live      LiveView
}

// Execute saves m, publishes it and, on the first publication, marks it published.
// It reports whether this was the first publication.
func (p *Publish) Execute(ctx context.Context, m *meeting.Meeting) (bool, error) {
	if !m.HasOrganization() {
		return false, ErrNoOrganization
	}
	if err := p.Backend.UpdateMeeting(ctx, m); err != nil {
		return false, fmt.Errorf("saving meeting: %w", err)
	}
	if err := p.Backend.Publish(ctx, m.UUID); err != nil {
		return false, fmt.Errorf("publishing: %w", err)
	}

	if m.Published {
		p.Toaster.Success("Summary published!", "The summary was successfully published to Affinity.")
		return false, nil
	}

	m.Published = true
	if err := p.Backend.UpdateMeeting(ctx, m); err != nil {
		return true, fmt.Errorf("marking meeting published: %w", err)
	}
	liveOrNone(p.Live).Update(m.UUID, func(s *meeting.Meeting) { s.Published = true })
	p.Toaster.Success("Summary published to Affinity!", "The summary was successfully published to Affinity.")
	if p.Refresher != nil {
		if err := p.Refresher.Refresh(ctx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// PublishLabel is the action label for a meeting's publish button.
func PublishLabel(m *meeting.Meeting) string {
	if m.Published {
		return "Re-upload to Affinity"
	}
	return "Upload to Affinity"
}
