package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"legalestate/events"
	"legalestate/models"
	"legalestate/monitoring"
)

func clientDocument(c *models.Client) events.ClientDocument {
	doc := events.ClientDocument{
		ID:               c.ID,
		Email:            c.Email,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		Phone:            c.Phone,
		ProfileCompleted: c.ProfileCompleted,
	}
	if c.AssignedLawyerID != nil {
		doc.LawyerID = *c.AssignedLawyerID
	}
	return doc
}

// publish never fails the caller; a lost event only delays the search projection.
func publish(ctx context.Context, p events.Publisher, logger *zap.Logger, name string, at time.Time, doc events.ClientDocument) {
	if p == nil {
		return
	}
	err := p.Publish(ctx, events.ClientEvent{Event: name, OccurredAt: at, Data: doc})
	if err != nil {
		monitoring.EventPublishFailures.Inc()
		logger.Warn("publish client event failed",
			zap.String("event", name),
			zap.Uint("client_id", doc.ID),
			zap.Error(err),
		)
	}
}
