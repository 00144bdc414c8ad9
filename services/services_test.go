package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"legalestate/auth"
	"legalestate/config"
	"legalestate/events"
	"legalestate/models"
	"legalestate/utils"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []utils.MailMessage
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg utils.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.ClientEvent
}

func (p *fakePublisher) Publish(_ context.Context, event events.ClientEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

type fixture struct {
	repo       *models.MemoryRepository
	tokens     *auth.TokenIssuer
	mailer     *fakeMailer
	publisher  *fakePublisher
	auth       *AuthService
	invitation *InvitationService
	estate     *EstateService
	dashboard  *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Config{
		LawyerTokenTTL: 24 * time.Hour,
		ClientTokenTTL: 7 * 24 * time.Hour,
		FrontendURL:    "http://localhost:8000",
	}
	logger := zap.NewNop()
	repo := models.NewMemoryRepository()
	tokens := auth.NewTokenIssuer("test-secret", auth.NewMemoryRevocationStore())
	mailer := &fakeMailer{}
	publisher := &fakePublisher{}

	return &fixture{
		repo:       repo,
		tokens:     tokens,
		mailer:     mailer,
		publisher:  publisher,
		auth:       NewAuthService(repo, tokens, publisher, cfg, logger),
		invitation: NewInvitationService(repo, mailer, publisher, cfg, logger),
		estate:     NewEstateService(repo, publisher, logger),
		dashboard:  NewDashboardService(repo, nil, logger),
	}
}

func (f *fixture) registerLawyer(t *testing.T, email string) *LawyerSession {
	t.Helper()
	session, err := f.auth.RegisterLawyer(context.Background(), RegisterLawyerInput{
		Email:     email,
		Password:  "password123",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)
	return session
}

func TestRegisterLawyerRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.registerLawyer(t, "a@x.com")

	_, err := f.auth.RegisterLawyer(context.Background(), RegisterLawyerInput{
		Email:     " A@X.com ",
		Password:  "password123",
		FirstName: "Other",
		LastName:  "Person",
	})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegisterLawyerRequiresLongPassword(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.RegisterLawyer(context.Background(), RegisterLawyerInput{
		Email:     "a@x.com",
		Password:  "short",
		FirstName: "Jane",
		LastName:  "Doe",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "password")
}

func TestRegisterLawyerIssuesLawyerToken(t *testing.T) {
	f := newFixture(t)
	bar := "  BAR-1 "
	session, err := f.auth.RegisterLawyer(context.Background(), RegisterLawyerInput{
		Email:     "a@x.com",
		Password:  "password123",
		FirstName: "Jane",
		LastName:  "Doe",
		BarNumber: &bar,
	})
	require.NoError(t, err)
	require.Equal(t, "BAR-1", *session.Lawyer.BarNumber)
	require.NotEqual(t, "password123", session.Lawyer.PasswordHash)

	claims, err := f.tokens.Verify(context.Background(), session.Token)
	require.NoError(t, err)
	require.Equal(t, auth.RoleLawyer, claims.Role)
	require.Equal(t, session.Lawyer.ID, claims.SubjectID())
	require.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestLoginLawyerDoesNotDistinguishFailures(t *testing.T) {
	f := newFixture(t)
	f.registerLawyer(t, "a@x.com")
	ctx := context.Background()

	_, wrongPassword := f.auth.LoginLawyer(ctx, "a@x.com", "password124")
	_, unknownEmail := f.auth.LoginLawyer(ctx, "nobody@x.com", "password123")

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	session, err := f.auth.LoginLawyer(ctx, "A@x.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
}

func TestInviteCreatesClientAndSendsMail(t *testing.T) {
	f := newFixture(t)
	lawyer := f.registerLawyer(t, "a@x.com")

	inv, err := f.invitation.Invite(context.Background(), lawyer.Lawyer.ID, "Client C", "C@x.com")
	require.NoError(t, err)
	require.Len(t, inv.AccessCode, 8)
	require.Equal(t, strings.ToUpper(inv.AccessCode), inv.AccessCode)
	require.NotEmpty(t, inv.InvitationCode)

	client, err := f.repo.GetClientByID(context.Background(), inv.ClientID)
	require.NoError(t, err)
	require.Equal(t, "c@x.com", client.Email)
	require.Equal(t, "Client C", client.FirstName)
	require.False(t, client.ProfileCompleted)
	require.Equal(t, lawyer.Lawyer.ID, *client.AssignedLawyerID)
	require.NotNil(t, client.InvitationSentAt)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	require.Equal(t, "c@x.com", msg.To)
	require.Equal(t, "Your Estate Planning Portal Access", msg.Subject)
	require.Contains(t, msg.HTML, inv.AccessCode)
	require.Contains(t, msg.HTML, "http://localhost:8000#client-portal?code="+inv.InvitationCode)
	require.Contains(t, msg.HTML, "Dear Client C")

	require.Equal(t, 1, f.repo.InvitationCount())
	require.Equal(t, []string{events.ClientInvited}, f.publisher.names())
}

func TestInviteEscapesClientName(t *testing.T) {
	f := newFixture(t)
	lawyer := f.registerLawyer(t, "a@x.com")

	_, err := f.invitation.Invite(context.Background(), lawyer.Lawyer.ID, "<script>x</script>", "c@x.com")
	require.NoError(t, err)
	require.NotContains(t, f.mailer.sent[0].HTML, "<script>")
}

func TestInviteRetriesInvitationCodeCollision(t *testing.T) {
	f := newFixture(t)
	lawyer := f.registerLawyer(t, "a@x.com")
	ctx := context.Background()

	codes := []string{"code-1", "code-1", "code-2", "code-2", "code-3"}
	f.invitation.newCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}

	first, err := f.invitation.Invite(ctx, lawyer.Lawyer.ID, "First", "first@x.com")
	require.NoError(t, err)
	require.Equal(t, "code-1", first.InvitationCode)

	second, err := f.invitation.Invite(ctx, lawyer.Lawyer.ID, "Second", "second@x.com")
	require.NoError(t, err)
	require.Equal(t, "code-2", second.InvitationCode)

	resent, err := f.invitation.ResendInvitation(ctx, lawyer.Lawyer.ID, first.ClientID)
	require.NoError(t, err)
	require.Equal(t, "code-3", resent.InvitationCode)
	require.Equal(t, 3, f.repo.InvitationCount())
}

func TestInviteGivesUpAfterRepeatedCodeCollisions(t *testing.T) {
	f := newFixture(t)
	lawyer := f.registerLawyer(t, "a@x.com")
	ctx := context.Background()
	f.invitation.newCode = func() string { return "same-code" }

	_, err := f.invitation.Invite(ctx, lawyer.Lawyer.ID, "First", "first@x.com")
	require.NoError(t, err)

	_, err = f.invitation.Invite(ctx, lawyer.Lawyer.ID, "Second", "second@x.com")
	require.ErrorIs(t, err, models.ErrDuplicateCode)
	require.NotErrorIs(t, err, ErrClientExists)

	exists, err := f.repo.ClientExists(ctx, "second@x.com")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestInviteExistingClientAddsNoLogRow(t *testing.T) {
	f := newFixture(t)
	lawyerA := f.registerLawyer(t, "a@x.com")
	lawyerB := f.registerLawyer(t, "b@x.com")
	ctx := context.Background()

	_, err := f.invitation.Invite(ctx, lawyerA.Lawyer.ID, "Client C", "c@x.com")
	require.NoError(t, err)

	_, err = f.invitation.Invite(ctx, lawyerB.Lawyer.ID, "Client C", "c@x.com")
	require.ErrorIs(t, err, ErrClientExists)
	require.Equal(t, 1, f.repo.InvitationCount())
	require.Len(t, f.mailer.sent, 1)
}

func TestInviteMailFailureKeepsClient(t *testing.T) {
	f := newFixture(t)
	lawyer := f.registerLawyer(t, "a@x.com")
	f.mailer.err = errors.New("smtp down")
	ctx := context.Background()

	inv, err := f.invitation.Invite(ctx, lawyer.Lawyer.ID, "Client C", "c@x.com")
	require.ErrorIs(t, err, ErrNotificationFailed)

	var nerr *NotificationError
	require.ErrorAs(t, err, &nerr)
	require.NotNil(t, inv)
	require.Equal(t, inv.ClientID, nerr.ClientID)

	exists, err := f.repo.ClientExists(ctx, "c@x.com")
	require.NoError(t, err)
	require.True(t, exists)

	f.mailer.err = nil
	resent, err := f.invitation.ResendInvitation(ctx, lawyer.Lawyer.ID, inv.ClientID)
	require.NoError(t, err)
	require.Equal(t, inv.AccessCode, resent.AccessCode)
	require.NotEqual(t, inv.InvitationCode, resent.InvitationCode)
	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, 2, f.repo.InvitationCount())
}

func TestResendInvitationIsScopedToLawyer(t *testing.T) {
	f := newFixture(t)
	lawyerA := f.registerLawyer(t, "a@x.com")
	lawyerB := f.registerLawyer(t, "b@x.com")
	ctx := context.Background()

	inv, err := f.invitation.Invite(ctx, lawyerA.Lawyer.ID, "Client C", "c@x.com")
	require.NoError(t, err)

	_, err = f.invitation.ResendInvitation(ctx, lawyerB.Lawyer.ID, inv.ClientID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.invitation.ResendInvitation(ctx, lawyerA.Lawyer.ID, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInvitationTracking(t *testing.T) {
	f := newFixture(t)
	lawyer := f.registerLawyer(t, "a@x.com")
	ctx := context.Background()

	inv, err := f.invitation.Invite(ctx, lawyer.Lawyer.ID, "Client C", "c@x.com")
	require.NoError(t, err)

	require.NoError(t, f.invitation.MarkOpened(ctx, inv.InvitationCode))
	require.NoError(t, f.invitation.MarkDownloaded(ctx, inv.InvitationCode))
	require.ErrorIs(t, f.invitation.MarkOpened(ctx, "missing"), ErrNotFound)
	require.ErrorIs(t, f.invitation.MarkDownloaded(ctx, "missing"), ErrNotFound)

	dash, err := f.dashboard.Dashboard(ctx, lawyer.Lawyer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), dash.Statistics.TotalInvitations)
	require.Equal(t, int64(1), dash.Statistics.Downloads)
}

func TestLoginClientRequiresExactPair(t *testing.T) {
	f := newFixture(t)
	lawyer := f.registerLawyer(t, "a@x.com")
	ctx := context.Background()

	inv, err := f.invitation.Invite(ctx, lawyer.Lawyer.ID, "Client C", "c@x.com")
	require.NoError(t, err)

	_, err = f.auth.LoginClient(ctx, "c@x.com", "WRONG000")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.LoginClient(ctx, "other@x.com", inv.AccessCode)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := f.auth.LoginClient(ctx, "c@x.com", inv.AccessCode)
	require.NoError(t, err)
	require.Equal(t, inv.ClientID, session.Client.ID)

	claims, err := f.tokens.Verify(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, auth.RoleClient, claims.Role)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
	require.Contains(t, f.publisher.names(), events.ClientLoggedIn)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	session := f.registerLawyer(t, "a@x.com")
	ctx := context.Background()

	claims, err := f.tokens.Verify(ctx, session.Token)
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(ctx, claims))

	_, err = f.tokens.Verify(ctx, session.Token)
	require.ErrorIs(t, err, auth.ErrTokenRevoked)
}

func TestEstateSaveTwiceKeepsOneRecord(t *testing.T) {
	f := newFixture(t)
	lawyer := f.registerLawyer(t, "a@x.com")
	ctx := context.Background()

	inv, err := f.invitation.Invite(ctx, lawyer.Lawyer.ID, "Client C", "c@x.com")
	require.NoError(t, err)

	empty, err := f.estate.Get(ctx, inv.ClientID)
	require.NoError(t, err)
	require.Zero(t, empty.ID)
	require.Nil(t, empty.CompletedAt)

	first, created, err := f.estate.Save(ctx, inv.ClientID, EstateInput{MaritalStatus: "single"})
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, first.CompletedAt)

	client, err := f.repo.GetClientByID(ctx, inv.ClientID)
	require.NoError(t, err)
	require.True(t, client.ProfileCompleted)

	phone := "555-0100"
	second, created, err := f.estate.Save(ctx, inv.ClientID, EstateInput{
		MaritalStatus: "married",
		SpouseName:    "Sam",
		Children:      json.RawMessage(`[{"name":"Kim", "age": 4}]`),
		Assets:        json.RawMessage(`"house"`),
		Phone:         &phone,
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.repo.EstateCount())

	stored, err := f.estate.Get(ctx, inv.ClientID)
	require.NoError(t, err)
	require.Equal(t, "married", stored.MaritalStatus)
	require.Equal(t, `[{"name":"Kim","age":4}]`, stored.Children)
	require.Equal(t, "house", stored.Assets)
	require.Equal(t, "", stored.Beneficiaries)

	client, err = f.repo.GetClientByID(ctx, inv.ClientID)
	require.NoError(t, err)
	require.True(t, client.ProfileCompleted)
	require.Equal(t, "555-0100", client.Phone)
	require.Equal(t, "Client C", client.FirstName)

	require.Equal(t, []string{events.ClientInvited, events.EstateSaved, events.EstateSaved}, f.publisher.names())
}

func TestEstateSaveUnknownClient(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.estate.Save(context.Background(), 404, EstateInput{MaritalStatus: "single"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDashboardIsScopedToLawyer(t *testing.T) {
	f := newFixture(t)
	lawyerA := f.registerLawyer(t, "a@x.com")
	lawyerB := f.registerLawyer(t, "b@x.com")
	ctx := context.Background()

	_, err := f.invitation.Invite(ctx, lawyerA.Lawyer.ID, "First", "first@x.com")
	require.NoError(t, err)
	second, err := f.invitation.Invite(ctx, lawyerA.Lawyer.ID, "Second", "second@x.com")
	require.NoError(t, err)
	_, err = f.invitation.Invite(ctx, lawyerB.Lawyer.ID, "Other", "other@x.com")
	require.NoError(t, err)

	_, _, err = f.estate.Save(ctx, second.ClientID, EstateInput{MaritalStatus: "single"})
	require.NoError(t, err)

	dash, err := f.dashboard.Dashboard(ctx, lawyerA.Lawyer.ID)
	require.NoError(t, err)
	require.Len(t, dash.Clients, 2)
	require.Equal(t, "second@x.com", dash.Clients[0].Email)
	require.NotNil(t, dash.Clients[0].EstateCompleted)
	require.Equal(t, "first@x.com", dash.Clients[1].Email)
	require.Nil(t, dash.Clients[1].EstateCompleted)
	require.Equal(t, int64(2), dash.Statistics.TotalInvitations)
	require.Equal(t, int64(0), dash.Statistics.Downloads)

	for _, c := range dash.Clients {
		require.Equal(t, lawyerA.Lawyer.ID, *c.AssignedLawyerID)
	}
}

func TestFreeText(t *testing.T) {
	require.Equal(t, "", freeText(nil))
	require.Equal(t, "", freeText(json.RawMessage(`null`)))
	require.Equal(t, "two kids", freeText(json.RawMessage(`"two kids"`)))
	require.Equal(t, `{"a":1}`, freeText(json.RawMessage(` { "a" : 1 } `)))
	require.Equal(t, "3", freeText(json.RawMessage(`3`)))
}

type fakeSearch struct {
	index string
	query map[string]any
	hits  []json.RawMessage
}

func (f *fakeSearch) IndexClient(context.Context, string, string, any) error { return nil }

func (f *fakeSearch) SearchClients(_ context.Context, index string, query map[string]any) ([]json.RawMessage, error) {
	f.index = index
	f.query = query
	return f.hits, nil
}

func (f *fakeSearch) DeleteClient(context.Context, string, string) error { return nil }
func (f *fakeSearch) Ping(context.Context) error                        { return nil }
func (f *fakeSearch) Close() error                                      { return nil }

func TestSearchClientsFiltersByLawyer(t *testing.T) {
	search := &fakeSearch{hits: []json.RawMessage{
		json.RawMessage(`{"id":1,"email":"c@x.com","first_name":"Client","lawyer_id":7}`),
		json.RawMessage(`{"id":2,"email":"d@x.com","first_name":"Other","lawyer_id":8}`),
		json.RawMessage(`not json`),
	}}
	svc := NewDashboardService(models.NewMemoryRepository(), search, zap.NewNop())

	docs, err := svc.SearchClients(context.Background(), 7, " client ")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "c@x.com", docs[0].Email)
	require.Equal(t, ClientsIndex, search.index)

	boolQuery := search.query["query"].(map[string]any)["bool"].(map[string]any)
	must := boolQuery["must"].(map[string]any)["multi_match"].(map[string]any)
	require.Equal(t, "client", must["query"])
	filter := boolQuery["filter"].([]any)[0].(map[string]any)["term"].(map[string]any)
	require.Equal(t, uint(7), filter["lawyer_id"])
}

func TestSearchClientsWithoutIndex(t *testing.T) {
	svc := NewDashboardService(models.NewMemoryRepository(), nil, zap.NewNop())
	_, err := svc.SearchClients(context.Background(), 1, "x")
	require.ErrorIs(t, err, ErrSearchUnavailable)
}
