package models

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is a process-local Repository used for local development and tests.
// It enforces the same uniqueness rules as the Postgres schema.
type MemoryRepository struct {
	mu          sync.Mutex
	now         func() time.Time
	lawyers     map[uint]Lawyer
	clients     map[uint]Client
	estates     map[uint]EstateRecord // keyed by client id
	invitations []InvitationLog
	nextID      uint
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:     time.Now,
		lawyers: make(map[uint]Lawyer),
		clients: make(map[uint]Client),
		estates: make(map[uint]EstateRecord),
	}
}

func (r *MemoryRepository) id() uint {
	r.nextID++
	return r.nextID
}

// stamp returns a strictly increasing creation time so ordering stays deterministic.
func (r *MemoryRepository) stamp() time.Time {
	return r.now().Add(time.Duration(r.nextID) * time.Microsecond)
}

func (r *MemoryRepository) CreateLawyer(_ context.Context, lawyer *Lawyer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.lawyers {
		if existing.Email == lawyer.Email {
			return ErrDuplicate
		}
	}
	lawyer.ID = r.id()
	lawyer.CreatedAt = r.stamp()
	r.lawyers[lawyer.ID] = *lawyer
	return nil
}

func (r *MemoryRepository) GetLawyerByEmail(_ context.Context, email string) (*Lawyer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, lawyer := range r.lawyers {
		if lawyer.Email == email {
			return &lawyer, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ClientExists(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.clientByEmailLocked(email)
	return ok, nil
}

func (r *MemoryRepository) clientByEmailLocked(email string) (Client, bool) {
	for _, client := range r.clients {
		if client.Email == email {
			return client, true
		}
	}
	return Client{}, false
}

func (r *MemoryRepository) CreateInvitedClient(_ context.Context, client *Client, log *InvitationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clientByEmailLocked(client.Email); ok {
		return ErrDuplicate
	}
	if r.codeTakenLocked(log.InvitationCode) {
		return ErrDuplicateCode
	}

	client.ID = r.id()
	client.CreatedAt = r.stamp()
	r.clients[client.ID] = *client

	log.ID = r.id()
	r.invitations = append(r.invitations, *log)
	return nil
}

func (r *MemoryRepository) GetClientByID(_ context.Context, id uint) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &client, nil
}

func (r *MemoryRepository) GetClientByCredentials(_ context.Context, email, accessCode string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clientByEmailLocked(email)
	if !ok || client.AccessCode != accessCode {
		return nil, ErrNotFound
	}
	return &client, nil
}

func (r *MemoryRepository) RecordInvitation(_ context.Context, clientID uint, log *InvitationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	if r.codeTakenLocked(log.InvitationCode) {
		return ErrDuplicateCode
	}
	sentAt := log.SentAt
	client.InvitationSentAt = &sentAt
	r.clients[clientID] = client

	log.ID = r.id()
	r.invitations = append(r.invitations, *log)
	return nil
}

func (r *MemoryRepository) MarkInvitationOpened(_ context.Context, code string, at time.Time) (*InvitationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.invitations {
		if r.invitations[i].InvitationCode != code {
			continue
		}
		if r.invitations[i].OpenedAt == nil {
			r.invitations[i].OpenedAt = &at
		}
		log := r.invitations[i]
		return &log, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) MarkInvitationDownloaded(_ context.Context, code string) (*InvitationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.invitations {
		if r.invitations[i].InvitationCode == code {
			r.invitations[i].AppDownloaded = true
			log := r.invitations[i]
			return &log, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) GetEstateRecord(_ context.Context, clientID uint) (*EstateRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.estates[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (r *MemoryRepository) SaveEstateRecord(_ context.Context, record *EstateRecord, profile ClientProfile) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[record.ClientID]
	if !ok {
		return false, ErrNotFound
	}
	profile.apply(&client)
	client.ProfileCompleted = true
	r.clients[client.ID] = client

	existing, found := r.estates[record.ClientID]
	if found {
		record.ID = existing.ID
	} else {
		record.ID = r.id()
	}
	r.estates[record.ClientID] = *record
	return !found, nil
}

func (r *MemoryRepository) codeTakenLocked(code string) bool {
	for _, existing := range r.invitations {
		if existing.InvitationCode == code {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) ListClientsForLawyer(_ context.Context, lawyerID uint) ([]ClientSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([]ClientSummary, 0)
	for _, client := range r.clients {
		if client.AssignedLawyerID == nil || *client.AssignedLawyerID != lawyerID {
			continue
		}
		row := ClientSummary{Client: client}
		if record, ok := r.estates[client.ID]; ok {
			row.EstateCompleted = record.CompletedAt
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows, nil
}

func (r *MemoryRepository) InvitationStats(_ context.Context, lawyerID uint) (InvitationStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats InvitationStats
	for _, log := range r.invitations {
		if log.SentByLawyerID == nil || *log.SentByLawyerID != lawyerID {
			continue
		}
		stats.TotalInvitations++
		if log.AppDownloaded {
			stats.Downloads++
		}
	}
	return stats, nil
}

// InvitationCount returns the number of stored invitation log rows.
func (r *MemoryRepository) InvitationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invitations)
}

// EstateCount returns the number of stored estate records.
func (r *MemoryRepository) EstateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.estates)
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
