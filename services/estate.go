package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"legalestate/events"
	"legalestate/models"
	"legalestate/monitoring"
)

// EstateInput is the estate form as submitted by a client. Children, Assets and
// Beneficiaries accept either plain text or any JSON value.
type EstateInput struct {
	MaritalStatus         string
	SpouseName            string
	Children              json.RawMessage
	Assets                json.RawMessage
	Beneficiaries         json.RawMessage
	HealthcarePreferences string
	ExecutorPreferences   string
	SpecialInstructions   string

	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

type EstateService struct {
	repo      models.Repository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewEstateService(repo models.Repository, publisher events.Publisher, logger *zap.Logger) *EstateService {
	return &EstateService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the client's estate record, or an empty one if nothing was saved yet.
func (s *EstateService) Get(ctx context.Context, clientID uint) (*models.EstateRecord, error) {
	record, err := s.repo.GetEstateRecord(ctx, clientID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.EstateRecord{ClientID: clientID}, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Save upserts the client's estate record and marks the profile as completed.
// Every save counts as completion; fields are not checked for completeness.
// created reports whether this was the client's first save.
func (s *EstateService) Save(ctx context.Context, clientID uint, in EstateInput) (record *models.EstateRecord, created bool, err error) {
	now := s.now().UTC()
	record = &models.EstateRecord{
		ClientID:              clientID,
		MaritalStatus:         in.MaritalStatus,
		SpouseName:            in.SpouseName,
		Children:              freeText(in.Children),
		Assets:                freeText(in.Assets),
		Beneficiaries:         freeText(in.Beneficiaries),
		HealthcarePreferences: in.HealthcarePreferences,
		ExecutorPreferences:   in.ExecutorPreferences,
		SpecialInstructions:   in.SpecialInstructions,
		CompletedAt:           &now,
		UpdatedAt:             now,
	}
	profile := models.ClientProfile{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Address:   in.Address,
	}

	created, err = s.repo.SaveEstateRecord(ctx, record, profile)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	monitoring.EstateSaves.Inc()

	if client, err := s.repo.GetClientByID(ctx, clientID); err == nil {
		doc := clientDocument(client)
		doc.EstateCompleted = record.CompletedAt
		publish(ctx, s.publisher, s.logger, events.EstateSaved, now, doc)
	} else {
		s.logger.Warn("reload client after estate save", zap.Uint("client_id", clientID), zap.Error(err))
	}

	return record, created, nil
}

// freeText stores JSON strings unquoted and every other JSON value compacted.
func freeText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
