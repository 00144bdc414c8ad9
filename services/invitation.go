package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"legalestate/config"
	"legalestate/events"
	"legalestate/models"
	"legalestate/monitoring"
	"legalestate/utils"
)

const (
	accessCodeLength  = 8
	invitationSubject = "Your Estate Planning Portal Access"
	codeAttempts      = 3
)

var invitationTemplate = template.Must(template.New("invitation").Parse(`
<h2>Estate Planning Invitation</h2>
<p>Dear {{.Name}},</p>
<p>You've been invited to begin your estate planning process with our secure digital platform.</p>
<p><strong>Your Access Code:</strong> {{.AccessCode}}</p>
<p>Please click the link below to download our secure app and begin your estate planning journey:</p>
<p><a href="{{.PortalURL}}" style="background: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 8px;">Access Your Estate Planning Portal</a></p>
<p>If you have any questions, please don't hesitate to contact our office.</p>
<p>Best regards,<br>Your Legal Team</p>
`))

type invitationView struct {
	Name       string
	AccessCode string
	PortalURL  template.URL
}

// InvitationService onboards clients on behalf of a lawyer.
type InvitationService struct {
	repo        models.Repository
	mailer      utils.Mailer
	publisher   events.Publisher
	frontendURL string
	logger      *zap.Logger
	now         func() time.Time
	newCode     func() string
}

func NewInvitationService(repo models.Repository, mailer utils.Mailer, publisher events.Publisher, cfg config.Config, logger *zap.Logger) *InvitationService {
	return &InvitationService{
		repo:        repo,
		mailer:      mailer,
		publisher:   publisher,
		frontendURL: cfg.FrontendURL,
		logger:      logger,
		now:         time.Now,
		newCode:     uuid.NewString,
	}
}

type Invitation struct {
	ClientID       uint
	AccessCode     string
	InvitationCode string
}

func newAccessCode() string {
	return strings.ToUpper(uuid.NewString()[:accessCodeLength])
}

// Invite creates the client and its invitation log row, then emails the access code.
// When only the email fails, the returned Invitation is non-nil alongside a
// *NotificationError: the client exists and can be re-invited.
func (s *InvitationService) Invite(ctx context.Context, lawyerID uint, clientName, clientEmail string) (*Invitation, error) {
	email := normalizeEmail(clientEmail)
	name := strings.TrimSpace(clientName)
	if name == "" {
		return nil, NewValidationError("clientName", "is required")
	}

	exists, err := s.repo.ClientExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrClientExists
	}

	now := s.now().UTC()
	var (
		client *models.Client
		entry  *models.InvitationLog
	)
	for attempt := 1; ; attempt++ {
		client = &models.Client{
			Email:            email,
			AccessCode:       newAccessCode(),
			FirstName:        name,
			InvitationSentAt: &now,
			AssignedLawyerID: &lawyerID,
		}
		entry = &models.InvitationLog{
			ClientEmail:    email,
			InvitationCode: s.newCode(),
			SentByLawyerID: &lawyerID,
			SentAt:         now,
		}

		err = s.repo.CreateInvitedClient(ctx, client, entry)
		if errors.Is(err, models.ErrDuplicateCode) && attempt < codeAttempts {
			s.logger.Warn("invitation code collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrClientExists
		}
		return nil, fmt.Errorf("create invited client: %w", err)
	}

	inv := &Invitation{
		ClientID:       client.ID,
		AccessCode:     client.AccessCode,
		InvitationCode: entry.InvitationCode,
	}
	s.logger.Info("client invited",
		zap.Uint("lawyer_id", lawyerID),
		zap.Uint("client_id", client.ID),
	)
	publish(ctx, s.publisher, s.logger, events.ClientInvited, now, clientDocument(client))

	if err := s.sendInvitation(ctx, client, entry.InvitationCode); err != nil {
		return inv, err
	}
	return inv, nil
}

// ResendInvitation mails a fresh invitation link to a client the lawyer owns.
// The access code is unchanged.
func (s *InvitationService) ResendInvitation(ctx context.Context, lawyerID, clientID uint) (*Invitation, error) {
	client, err := s.repo.GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if client.AssignedLawyerID == nil || *client.AssignedLawyerID != lawyerID {
		return nil, ErrNotFound
	}

	var entry *models.InvitationLog
	for attempt := 1; ; attempt++ {
		entry = &models.InvitationLog{
			ClientEmail:    client.Email,
			InvitationCode: s.newCode(),
			SentByLawyerID: &lawyerID,
			SentAt:         s.now().UTC(),
		}
		err = s.repo.RecordInvitation(ctx, client.ID, entry)
		if errors.Is(err, models.ErrDuplicateCode) && attempt < codeAttempts {
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record invitation: %w", err)
	}

	inv := &Invitation{
		ClientID:       client.ID,
		AccessCode:     client.AccessCode,
		InvitationCode: entry.InvitationCode,
	}
	if err := s.sendInvitation(ctx, client, entry.InvitationCode); err != nil {
		return inv, err
	}
	s.logger.Info("invitation resent", zap.Uint("lawyer_id", lawyerID), zap.Uint("client_id", client.ID))
	return inv, nil
}

func (s *InvitationService) MarkOpened(ctx context.Context, code string) error {
	_, err := s.repo.MarkInvitationOpened(ctx, code, s.now().UTC())
	if errors.Is(err, models.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *InvitationService) MarkDownloaded(ctx context.Context, code string) error {
	_, err := s.repo.MarkInvitationDownloaded(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// PortalURL is the link embedded in invitation emails.
func (s *InvitationService) PortalURL(invitationCode string) string {
	return s.frontendURL + "#client-portal?code=" + url.QueryEscape(invitationCode)
}

func (s *InvitationService) sendInvitation(ctx context.Context, client *models.Client, invitationCode string) error {
	var body bytes.Buffer
	err := invitationTemplate.Execute(&body, invitationView{
		Name:       client.FirstName,
		AccessCode: client.AccessCode,
		PortalURL:  template.URL(s.PortalURL(invitationCode)),
	})
	if err != nil {
		return fmt.Errorf("render invitation: %w", err)
	}

	err = s.mailer.Send(ctx, utils.MailMessage{
		To:      client.Email,
		Subject: invitationSubject,
		HTML:    body.String(),
	})
	if err != nil {
		monitoring.MailFailures.Inc()
		s.logger.Error("invitation email failed",
			zap.Uint("client_id", client.ID),
			zap.Error(err),
		)
		utils.CaptureError(err, map[string]any{
			"client_id":       client.ID,
			"invitation_code": invitationCode,
		})
		return &NotificationError{ClientID: client.ID, Err: err}
	}

	monitoring.InvitationsSent.Inc()
	return nil
}
