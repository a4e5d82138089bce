package app

import (
	"context"
	"log"
	"time"

	"omnihub/api/internal/access"
	"omnihub/api/internal/assist"
	"omnihub/api/internal/auth"
	"omnihub/api/internal/authpw"
	"omnihub/api/internal/board"
	"omnihub/api/internal/config"
	"omnihub/api/internal/docstore"
	"omnihub/api/internal/email"
	"omnihub/api/internal/realtime"
	"omnihub/api/internal/search"
	"omnihub/api/internal/session"
	"omnihub/api/internal/store"
	"omnihub/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is everything the service needs from postgres. The concrete
// implementation is store.PostgresStore; tests substitute a fake.
type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	CreateProject(ctx context.Context, project store.Project) error
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]store.Project, error)
	UpdateProject(ctx context.Context, project store.Project) error
	DeleteProject(ctx context.Context, projectID string) error
	UpsertContributor(ctx context.Context, c store.Contributor) error
	GetContributor(ctx context.Context, projectID, userID string) (store.Contributor, error)
	ListContributors(ctx context.Context, projectID string) ([]store.Contributor, error)
	RemoveContributor(ctx context.Context, projectID, userID string) error
	ListPendingInvites(ctx context.Context, userID string) ([]store.Project, error)

	CreateTask(ctx context.Context, task store.Task) error
	GetTask(ctx context.Context, taskID string) (store.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]store.Task, error)
	CountChildren(ctx context.Context, taskID string) (int, error)
	UpdateTask(ctx context.Context, task store.Task) error
	UpdateTaskStatus(ctx context.Context, taskID, status string) error
	DeleteTask(ctx context.Context, taskID string) ([]string, error)

	ListColumns(ctx context.Context, projectID string) ([]store.Column, error)
	SeedDefaultColumns(ctx context.Context, projectID string) ([]store.Column, error)
	GetColumn(ctx context.Context, columnID string) (store.Column, error)
	InsertColumn(ctx context.Context, column store.Column) error
	MaxColumnOrder(ctx context.Context, projectID string) (int, bool, error)
	CountColumns(ctx context.Context, projectID string) (int, error)
	CountTicketsInColumn(ctx context.Context, columnID string) (int, error)
	GetTicket(ctx context.Context, ticketID string) (store.Ticket, error)
	GetBoardTicket(ctx context.Context, ticketID string) (store.BoardTicket, error)
	ListBoardTickets(ctx context.Context, projectID string) ([]store.BoardTicket, error)
	CreateTicketFromTask(ctx context.Context, ticket store.Ticket) (store.Ticket, error)
	ApplyTicketMove(ctx context.Context, ticketID string, plan board.Plan) error
	ApplyColumnMove(ctx context.Context, columnID string, plan board.Plan) error
	DeleteTicket(ctx context.Context, ticketID string) (store.Ticket, error)
	DeleteColumn(ctx context.Context, columnID string) (store.Column, int, error)

	CreateDocument(ctx context.Context, doc store.Document) error
	GetDocument(ctx context.Context, docID string) (store.Document, error)
	ListDocuments(ctx context.Context, projectID string) ([]store.Document, error)
	DeleteDocument(ctx context.Context, docID string) error

	CreateNotification(ctx context.Context, n store.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]store.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string) error
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	ListFollowing(ctx context.Context, userID string) ([]store.User, error)
	ListFollowers(ctx context.Context, userID string) ([]store.User, error)
	DashboardStatsForUser(ctx context.Context, userID string) (store.DashboardStats, error)

	AppendAssistMessage(ctx context.Context, m store.AssistMessage) error
	ListAssistMessages(ctx context.Context, userID, projectID string, limit int) ([]store.AssistMessage, error)
	ClearAssistMessages(ctx context.Context, userID, projectID string) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID, displayName string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (session.TokenData, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg         config.Config
	store       dataStore
	sessions    sessionStore
	authpw      *authpw.Service
	checker     *access.Checker
	broadcaster realtime.Broadcaster
	mail        *email.Service
	docs        docstore.Store
	search      *search.Service
	assist      *assist.Client
}

// Options carries the optional collaborators. Any of them may be nil; the
// matching feature degrades (no mail, no object storage, no search, no
// assistant, no fan-out) without taking the API down.
type Options struct {
	Auth        *authpw.Service
	Broadcaster realtime.Broadcaster
	Mail        *email.Service
	Docs        docstore.Store
	Search      *search.Service
	Assist      *assist.Client
}

func New(cfg config.Config, dataStore dataStore, sessions sessionStore, opts Options) *Service {
	return &Service{
		cfg:         cfg,
		store:       dataStore,
		sessions:    sessions,
		authpw:      opts.Auth,
		checker:     access.NewChecker(dataStore),
		broadcaster: opts.Broadcaster,
		mail:        opts.Mail,
		docs:        opts.Docs,
		search:      opts.Search,
		assist:      opts.Assist,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthPasswordService exposes the signup/signin flows to the HTTP layer.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// SMTPConfigured reports whether outbound mail can be sent.
func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// CreateSession issues an access/refresh token pair for a known user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the old one is revoked even when issuing
// the replacement fails, so a leaked token is single-use.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, data.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, user.DisplayName, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates a bearer token and resolves the user behind it.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// SendVerificationMail mails the signup verification link in the background.
func (s *Service) SendVerificationMail(email, displayName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	go func() {
		url := s.cfg.AppURL + "/verify-email?token=" + token
		if err := s.mail.SendVerificationEmail(email, displayName, url); err != nil {
			log.Printf(`{"level":"warn","msg":"send verification email","error":%q}`, err.Error())
		}
	}()
}

// SendPasswordResetMail mails the reset link in the background.
func (s *Service) SendPasswordResetMail(ctx context.Context, email, token string) {
	if !s.SMTPConfigured() {
		return
	}
	displayName := email
	if user, err := s.store.GetUserByEmail(ctx, email); err == nil {
		displayName = user.DisplayName
	}
	go func() {
		url := s.cfg.AppURL + "/reset-password?token=" + token
		if err := s.mail.SendPasswordResetEmail(email, displayName, url); err != nil {
			log.Printf(`{"level":"warn","msg":"send reset email","error":%q}`, err.Error())
		}
	}()
}

// emit fans an event out to a room. Best effort only: a nil broadcaster or a
// failed publish never fails the operation that triggered the event.
func (s *Service) emit(room, event string, payload any) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.EmitToRoom(room, event, payload)
}

// notify persists a notification and pushes it to the recipient's own room.
func (s *Service) notify(ctx context.Context, n store.Notification) {
	n.ID = util.NewID("ntf")
	if err := s.store.CreateNotification(ctx, n); err != nil {
		log.Printf(`{"level":"warn","msg":"store notification","kind":%q,"error":%q}`, n.Kind, err.Error())
		return
	}
	s.emit(realtime.UserRoom(n.UserID), "notification_created", map[string]any{
		"id":        n.ID,
		"kind":      n.Kind,
		"actorId":   n.ActorID,
		"subjectId": n.SubjectID,
		"body":      n.Body,
	})
}
