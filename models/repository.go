package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	// ErrDuplicateCode means an invitation code is already taken; retry with a fresh one.
	ErrDuplicateCode = errors.New("duplicate invitation code")
)

// Repository is the relational store behind lawyers, clients, estate records and invitation logs.
type Repository interface {
	CreateLawyer(ctx context.Context, lawyer *Lawyer) error
	GetLawyerByEmail(ctx context.Context, email string) (*Lawyer, error)

	ClientExists(ctx context.Context, email string) (bool, error)
	// CreateInvitedClient stores the client and its first invitation log row atomically.
	CreateInvitedClient(ctx context.Context, client *Client, log *InvitationLog) error
	GetClientByID(ctx context.Context, id uint) (*Client, error)
	GetClientByCredentials(ctx context.Context, email, accessCode string) (*Client, error)
	// RecordInvitation appends a log row and refreshes the client's invitation timestamp.
	RecordInvitation(ctx context.Context, clientID uint, log *InvitationLog) error
	MarkInvitationOpened(ctx context.Context, code string, at time.Time) (*InvitationLog, error)
	MarkInvitationDownloaded(ctx context.Context, code string) (*InvitationLog, error)

	GetEstateRecord(ctx context.Context, clientID uint) (*EstateRecord, error)
	// SaveEstateRecord upserts by client id and flags the client profile as completed.
	// inserted reports whether the client had no record before.
	SaveEstateRecord(ctx context.Context, record *EstateRecord, profile ClientProfile) (inserted bool, err error)

	ListClientsForLawyer(ctx context.Context, lawyerID uint) ([]ClientSummary, error)
	InvitationStats(ctx context.Context, lawyerID uint) (InvitationStats, error)

	Ping(ctx context.Context) error
	Close() error
}

var _ Repository = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Lawyer{}, &Client{}, &EstateRecord{}, &InvitationLog{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) CreateLawyer(ctx context.Context, lawyer *Lawyer) error {
	if err := r.db.WithContext(ctx).Create(lawyer).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create lawyer: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetLawyerByEmail(ctx context.Context, email string) (*Lawyer, error) {
	var lawyer Lawyer
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&lawyer).Error; err != nil {
		return nil, notFound(err, "get lawyer by email")
	}
	return &lawyer, nil
}

func (r *PostgresRepository) ClientExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Client{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count clients: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresRepository) CreateInvitedClient(ctx context.Context, client *Client, log *InvitationLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(client).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("create client: %w", err)
		}
		if err := tx.Create(log).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateCode
			}
			return fmt.Errorf("create invitation log: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) GetClientByID(ctx context.Context, id uint) (*Client, error) {
	var client Client
	if err := r.db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, notFound(err, "get client")
	}
	return &client, nil
}

func (r *PostgresRepository) GetClientByCredentials(ctx context.Context, email, accessCode string) (*Client, error) {
	var client Client
	err := r.db.WithContext(ctx).
		Where("email = ? AND access_code = ?", email, accessCode).
		First(&client).Error
	if err != nil {
		return nil, notFound(err, "get client by credentials")
	}
	return &client, nil
}

func (r *PostgresRepository) RecordInvitation(ctx context.Context, clientID uint, log *InvitationLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Client{}).Where("id = ?", clientID).Update("invitation_sent_at", log.SentAt)
		if res.Error != nil {
			return fmt.Errorf("touch client invitation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(log).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateCode
			}
			return fmt.Errorf("create invitation log: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) MarkInvitationOpened(ctx context.Context, code string, at time.Time) (*InvitationLog, error) {
	var log InvitationLog
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invitation_code = ?", code).First(&log).Error; err != nil {
			return notFound(err, "get invitation")
		}
		if log.OpenedAt != nil {
			return nil
		}
		log.OpenedAt = &at
		return tx.Model(&log).Update("opened_at", at).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *PostgresRepository) MarkInvitationDownloaded(ctx context.Context, code string) (*InvitationLog, error) {
	var log InvitationLog
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invitation_code = ?", code).First(&log).Error; err != nil {
			return notFound(err, "get invitation")
		}
		log.AppDownloaded = true
		return tx.Model(&log).Update("app_downloaded", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *PostgresRepository) GetEstateRecord(ctx context.Context, clientID uint) (*EstateRecord, error) {
	var record EstateRecord
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&record).Error; err != nil {
		return nil, notFound(err, "get estate record")
	}
	return &record, nil
}

func (r *PostgresRepository) SaveEstateRecord(ctx context.Context, record *EstateRecord, profile ClientProfile) (bool, error) {
	var inserted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The client row update also locks it, so saves for one client run one at a time.
		updates := profile.updates()
		updates["profile_completed"] = true
		res := tx.Model(&Client{}).Where("id = ?", record.ClientID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update client profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var existing int64
		if err := tx.Model(&EstateRecord{}).Where("client_id = ?", record.ClientID).Count(&existing).Error; err != nil {
			return fmt.Errorf("count estate records: %w", err)
		}
		inserted = existing == 0

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			DoUpdates: clause.AssignmentColumns(estateColumns),
		}).Create(record).Error
		if err != nil {
			return fmt.Errorf("upsert estate record: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *PostgresRepository) ListClientsForLawyer(ctx context.Context, lawyerID uint) ([]ClientSummary, error) {
	var rows []ClientSummary
	err := r.db.WithContext(ctx).
		Table("clients AS c").
		Select("c.*, e.completed_at AS estate_completed").
		Joins("LEFT JOIN estate_data e ON c.id = e.client_id").
		Where("c.assigned_lawyer_id = ?", lawyerID).
		Order("c.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list clients for lawyer: %w", err)
	}
	return rows, nil
}

func (r *PostgresRepository) InvitationStats(ctx context.Context, lawyerID uint) (InvitationStats, error) {
	var stats InvitationStats
	err := r.db.WithContext(ctx).
		Model(&InvitationLog{}).
		Select("COUNT(*) AS total_invitations, COALESCE(SUM(CASE WHEN app_downloaded THEN 1 ELSE 0 END), 0) AS downloads").
		Where("sent_by_lawyer_id = ?", lawyerID).
		Scan(&stats).Error
	if err != nil {
		return InvitationStats{}, fmt.Errorf("invitation stats: %w", err)
	}
	return stats, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
