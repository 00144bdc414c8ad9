package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"legalestate/events"
	"legalestate/models"
	"legalestate/utils"
)

// ClientsIndex is the Elasticsearch index holding client directory documents.
const ClientsIndex = "clients"

type Dashboard struct {
	Clients    []models.ClientSummary
	Statistics models.InvitationStats
}

type DashboardService struct {
	repo   models.Repository
	search utils.ElasticsearchClient
	logger *zap.Logger
}

// NewDashboardService creates the service. search may be nil, which disables SearchClients.
func NewDashboardService(repo models.Repository, search utils.ElasticsearchClient, logger *zap.Logger) *DashboardService {
	return &DashboardService{repo: repo, search: search, logger: logger}
}

func (s *DashboardService) Dashboard(ctx context.Context, lawyerID uint) (*Dashboard, error) {
	clients, err := s.repo.ListClientsForLawyer(ctx, lawyerID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.InvitationStats(ctx, lawyerID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Clients: clients, Statistics: stats}, nil
}

// SearchClients runs a full text match over the lawyer's own clients.
func (s *DashboardService) SearchClients(ctx context.Context, lawyerID uint, query string) ([]events.ClientDocument, error) {
	if s.search == nil {
		return nil, ErrSearchUnavailable
	}

	hits, err := s.search.SearchClients(ctx, ClientsIndex, clientSearchQuery(lawyerID, query))
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}

	docs := make([]events.ClientDocument, 0, len(hits))
	for _, hit := range hits {
		var doc events.ClientDocument
		if err := json.Unmarshal(hit, &doc); err != nil {
			s.logger.Warn("skip malformed client document", zap.Error(err))
			continue
		}
		// The filter already scopes by lawyer; this guards against a stale mapping.
		if doc.LawyerID != lawyerID {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func clientSearchQuery(lawyerID uint, query string) map[string]any {
	var must any = map[string]any{"match_all": map[string]any{}}
	if q := strings.TrimSpace(query); q != "" {
		must = map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"first_name^2", "last_name^2", "email"},
				"fuzziness": "AUTO",
			},
		}
	}

	return map[string]any{
		"size": 50,
		"query": map[string]any{
			"bool": map[string]any{
				"must": must,
				"filter": []any{
					map[string]any{"term": map[string]any{"lawyer_id": lawyerID}},
				},
			},
		},
	}
}
