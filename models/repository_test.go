package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}

func TestNotFound(t *testing.T) {
	require.ErrorIs(t, notFound(gorm.ErrRecordNotFound, "get"), ErrNotFound)

	err := notFound(errors.New("conn reset"), "get client")
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "get client")
}

func newTestPostgresRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("DB_HOST not set")
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"), port)

	repo, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// seedLawyer creates a lawyer and removes everything it owns when the test ends.
func seedLawyer(t *testing.T, repo *PostgresRepository, suffix, name string) *Lawyer {
	t.Helper()

	lawyer := &Lawyer{
		Email:        name + "-" + suffix + "@x.com",
		PasswordHash: "hash",
		FirstName:    name,
		LastName:     "Test",
	}
	require.NoError(t, repo.CreateLawyer(context.Background(), lawyer))

	t.Cleanup(func() {
		db := repo.db
		clientIDs := db.Model(&Client{}).Select("id").Where("assigned_lawyer_id = ?", lawyer.ID)
		db.Where("client_id IN (?)", clientIDs).Delete(&EstateRecord{})
		db.Where("sent_by_lawyer_id = ?", lawyer.ID).Delete(&InvitationLog{})
		db.Where("assigned_lawyer_id = ?", lawyer.ID).Delete(&Client{})
		db.Delete(&Lawyer{}, lawyer.ID)
	})
	return lawyer
}

func seedClient(t *testing.T, repo *PostgresRepository, lawyer *Lawyer, email, code string, createdAt time.Time) *Client {
	t.Helper()

	client := &Client{
		Email:            email,
		AccessCode:       "AAAA1111",
		FirstName:        "Client",
		AssignedLawyerID: &lawyer.ID,
		CreatedAt:        createdAt,
	}
	entry := &InvitationLog{
		ClientEmail:    email,
		InvitationCode: code,
		SentByLawyerID: &lawyer.ID,
		SentAt:         createdAt,
	}
	require.NoError(t, repo.CreateInvitedClient(context.Background(), client, entry))
	return client
}

func TestPostgresRepositoryDuplicates(t *testing.T) {
	repo := newTestPostgresRepository(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	lawyer := seedLawyer(t, repo, suffix, "dup")

	err := repo.CreateLawyer(ctx, &Lawyer{Email: lawyer.Email, PasswordHash: "hash", FirstName: "Other", LastName: "Test"})
	require.ErrorIs(t, err, ErrDuplicate)

	email := "client-" + suffix + "@x.com"
	code := "code-" + suffix
	seedClient(t, repo, lawyer, email, code, time.Now())

	err = repo.CreateInvitedClient(ctx,
		&Client{Email: email, AccessCode: "BBBB2222", AssignedLawyerID: &lawyer.ID},
		&InvitationLog{ClientEmail: email, InvitationCode: code + "-2", SentByLawyerID: &lawyer.ID, SentAt: time.Now()},
	)
	require.ErrorIs(t, err, ErrDuplicate)

	other := "other-" + suffix + "@x.com"
	err = repo.CreateInvitedClient(ctx,
		&Client{Email: other, AccessCode: "CCCC3333", AssignedLawyerID: &lawyer.ID},
		&InvitationLog{ClientEmail: other, InvitationCode: code, SentByLawyerID: &lawyer.ID, SentAt: time.Now()},
	)
	require.ErrorIs(t, err, ErrDuplicateCode)

	exists, err := repo.ClientExists(ctx, other)
	require.NoError(t, err)
	require.False(t, exists, "the client insert must roll back with the log row")

	stats, err := repo.InvitationStats(ctx, lawyer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalInvitations)
}

func TestPostgresRepositorySaveEstateRecordUpserts(t *testing.T) {
	repo := newTestPostgresRepository(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	lawyer := seedLawyer(t, repo, suffix, "estate")
	client := seedClient(t, repo, lawyer, "estate-"+suffix+"@x.com", "estate-"+suffix, time.Now())

	now := time.Now().UTC()
	inserted, err := repo.SaveEstateRecord(ctx, &EstateRecord{ClientID: client.ID, MaritalStatus: "single", CompletedAt: &now, UpdatedAt: now}, ClientProfile{})
	require.NoError(t, err)
	require.True(t, inserted)

	phone := "555-0100"
	later := now.Add(time.Minute)
	inserted, err = repo.SaveEstateRecord(ctx, &EstateRecord{ClientID: client.ID, MaritalStatus: "married", CompletedAt: &later, UpdatedAt: later}, ClientProfile{Phone: &phone})
	require.NoError(t, err)
	require.False(t, inserted)

	var count int64
	require.NoError(t, repo.db.Model(&EstateRecord{}).Where("client_id = ?", client.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	record, err := repo.GetEstateRecord(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, "married", record.MaritalStatus)
	require.WithinDuration(t, later, *record.CompletedAt, time.Millisecond)

	stored, err := repo.GetClientByID(ctx, client.ID)
	require.NoError(t, err)
	require.True(t, stored.ProfileCompleted)
	require.Equal(t, phone, stored.Phone)

	_, err = repo.SaveEstateRecord(ctx, &EstateRecord{ClientID: 0, MaritalStatus: "single"}, ClientProfile{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepositoryDashboardQueries(t *testing.T) {
	repo := newTestPostgresRepository(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	lawyerA := seedLawyer(t, repo, suffix, "lawyer-a")
	lawyerB := seedLawyer(t, repo, suffix, "lawyer-b")

	base := time.Now().UTC().Add(-time.Hour)
	older := seedClient(t, repo, lawyerA, "older-"+suffix+"@x.com", "older-"+suffix, base)
	newer := seedClient(t, repo, lawyerA, "newer-"+suffix+"@x.com", "newer-"+suffix, base.Add(time.Minute))
	seedClient(t, repo, lawyerB, "foreign-"+suffix+"@x.com", "foreign-"+suffix, base.Add(2*time.Minute))

	completed := time.Now().UTC()
	_, err := repo.SaveEstateRecord(ctx, &EstateRecord{ClientID: newer.ID, CompletedAt: &completed, UpdatedAt: completed}, ClientProfile{})
	require.NoError(t, err)

	rows, err := repo.ListClientsForLawyer(ctx, lawyerA.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, newer.ID, rows[0].ID)
	require.Equal(t, older.ID, rows[1].ID)
	require.NotNil(t, rows[0].EstateCompleted)
	require.WithinDuration(t, completed, *rows[0].EstateCompleted, time.Millisecond)
	require.Nil(t, rows[1].EstateCompleted)

	_, err = repo.MarkInvitationDownloaded(ctx, "older-"+suffix)
	require.NoError(t, err)
	require.NoError(t, repo.RecordInvitation(ctx, older.ID, &InvitationLog{
		ClientEmail:    older.Email,
		InvitationCode: "resend-" + suffix,
		SentByLawyerID: &lawyerA.ID,
		SentAt:         time.Now(),
	}))

	stats, err := repo.InvitationStats(ctx, lawyerA.ID)
	require.NoError(t, err)
	require.Equal(t, InvitationStats{TotalInvitations: 3, Downloads: 1}, stats)

	stats, err = repo.InvitationStats(ctx, lawyerB.ID)
	require.NoError(t, err)
	require.Equal(t, InvitationStats{TotalInvitations: 1, Downloads: 0}, stats)
}
