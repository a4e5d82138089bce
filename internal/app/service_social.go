package app

import (
	"context"
	"time"

	"omnihub/api/internal/store"
)

type DashboardView struct {
	ActiveProjects int `json:"activeProjects"`
	PendingTasks   int `json:"pendingTasks"`
	CompletedTasks int `json:"completedTasks"`
	DocumentCount  int `json:"documentCount"`
}

type NotificationView struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	ActorID   string `json:"actorId,omitempty"`
	SubjectID string `json:"subjectId,omitempty"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

type FollowUserView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

func (s *Service) Dashboard(ctx context.Context, userID string) (DashboardView, error) {
	stats, err := s.store.DashboardStatsForUser(ctx, userID)
	if err != nil {
		return DashboardView{}, err
	}
	return DashboardView{
		ActiveProjects: stats.ActiveProjects,
		PendingTasks:   stats.PendingTasks,
		CompletedTasks: stats.CompletedTasks,
		DocumentCount:  stats.DocumentCount,
	}, nil
}

func (s *Service) ListNotifications(ctx context.Context, userID string, limit int) ([]NotificationView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.store.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	views := make([]NotificationView, 0, len(items))
	for _, n := range items {
		views = append(views, NotificationView{
			ID:        n.ID,
			Kind:      n.Kind,
			ActorID:   n.ActorID,
			SubjectID: n.SubjectID,
			Body:      n.Body,
			Read:      n.ReadAt != nil,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return views, nil
}

// MarkNotificationsRead marks the given ids as read, or every unread
// notification when ids is empty.
func (s *Service) MarkNotificationsRead(ctx context.Context, userID string, ids []string) error {
	return s.store.MarkNotificationsRead(ctx, userID, ids)
}

func (s *Service) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return validationError("cannot follow yourself", nil)
	}
	followee, err := s.store.GetUserByID(ctx, followeeID)
	if err != nil {
		return err
	}
	if err := s.store.Follow(ctx, followerID, followeeID); err != nil {
		return err
	}

	follower, err := s.store.GetUserByID(ctx, followerID)
	if err != nil {
		return err
	}
	s.notify(ctx, store.Notification{
		UserID:  followee.ID,
		Kind:    "new_follower",
		ActorID: followerID,
		Body:    follower.DisplayName + " started following you",
	})
	return nil
}

func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.store.Unfollow(ctx, followerID, followeeID)
}

func (s *Service) ListFollowing(ctx context.Context, userID string) ([]FollowUserView, error) {
	users, err := s.store.ListFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return followUserViews(users), nil
}

func (s *Service) ListFollowers(ctx context.Context, userID string) ([]FollowUserView, error) {
	users, err := s.store.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	return followUserViews(users), nil
}

func followUserViews(users []store.User) []FollowUserView {
	views := make([]FollowUserView, 0, len(users))
	for _, u := range users {
		views = append(views, FollowUserView{ID: u.ID, DisplayName: u.DisplayName, Avatar: u.AvatarURL})
	}
	return views
}
