package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	AvatarURL             string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Project struct {
	ID          string
	Name        string
	Description string
	Color       string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contributor invitation states.
const (
	InvitePending  = "Pending"
	InviteAccepted = "Accepted"
	InviteIgnored  = "Ignored"
)

type Contributor struct {
	ProjectID   string
	UserID      string
	DisplayName string
	Status      string
	InvitedAt   time.Time
}

type Task struct {
	ID           string
	ProjectID    string
	Title        string
	Description  string
	Priority     string
	Status       string
	Deadline     *time.Time
	AssignedTo   string
	ParentTaskID string
	Type         string
	IsTicket     bool
	TicketID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Column struct {
	ID        string
	ProjectID string
	Name      string
	Order     int
	IsDefault bool
	CreatedAt time.Time
}

type Ticket struct {
	ID         string
	TaskID     string
	ProjectID  string
	ColumnID   string
	AssigneeID string
	Deadline   *time.Time
	Priority   string
	Label      string
	Order      int
	CreatedAt  time.Time
}

// BoardTicket is a ticket joined with the task summary and assignee the
// board view renders. Readers sort by Order; gaps left by deletions are
// tolerated, so contiguity is never assumed.
type BoardTicket struct {
	Ticket
	TaskTitle       string
	TaskDescription string
	TaskStatus      string
	AssigneeName    string
	AssigneeAvatar  string
}

type Document struct {
	ID          string
	ProjectID   string
	OwnerID     string
	Name        string
	ObjectKey   string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

type Notification struct {
	ID        string
	UserID    string
	Kind      string
	ActorID   string
	SubjectID string
	Body      string
	ReadAt    *time.Time
	CreatedAt time.Time
}

type AssistMessage struct {
	ID        int64
	UserID    string
	ProjectID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// DashboardStats aggregates the per-user landing page counters.
type DashboardStats struct {
	ActiveProjects int
	PendingTasks   int
	CompletedTasks int
	DocumentCount  int
}
