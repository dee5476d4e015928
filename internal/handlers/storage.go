package handlers

import (
	"context"

	"tutormarket/internal/classroom"
	"tutormarket/internal/lifecycle"
	"tutormarket/internal/profiles"
	"tutormarket/models"
)

// CategoryStore отдаёт справочник категорий.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// ProjectService - жизненный цикл проектов (lifecycle.Manager).
type ProjectService interface {
	Create(ctx context.Context, student *models.User, in lifecycle.ProjectInput, publish bool) (*models.Project, error)
	Get(ctx context.Context, viewer *models.User, id int) (*models.Project, error)
	Update(ctx context.Context, owner *models.User, id int, in lifecycle.ProjectInput) (*models.Project, error)
	Publish(ctx context.Context, owner *models.User, id int) (*models.Project, error)
	Complete(ctx context.Context, owner *models.User, id int) (*models.Project, error)
	CurrentTutor(ctx context.Context, p *models.Project) (int, bool, error)
	List(ctx context.Context, f lifecycle.ProjectFilter) ([]models.Project, error)
	Dashboard(ctx context.Context, user *models.User, f lifecycle.ProjectFilter) ([]models.Project, error)
}

// BidService - реестр предложений (lifecycle.Ledger).
type BidService interface {
	Submit(ctx context.Context, tutor *models.User, projectID int, description string, budget *models.Money) (*models.Bid, error)
	Award(ctx context.Context, student *models.User, projectID, bidID int) (*models.Bid, error)
	Decline(ctx context.Context, student *models.User, projectID, bidID int) (*models.Bid, error)
	Edit(ctx context.Context, tutor *models.User, bidID int, in lifecycle.BidInput) (*models.Bid, error)
	VisibleBids(ctx context.Context, viewer *models.User, project *models.Project) ([]models.Bid, error)
	TutorBids(ctx context.Context, tutor *models.User, limit, offset int) ([]models.Bid, error)
	History(ctx context.Context, viewer *models.User, bidID int) ([]models.BidHistory, error)
}

// ClassroomService открывает классы и ведёт их чат.
type ClassroomService interface {
	Open(ctx context.Context, user *models.User, project *models.Project) (*classroom.Session, error)
	Post(ctx context.Context, user *models.User, classroomID int, message string) (*models.ChatMessage, error)
}

// PaymentService проводит и показывает платежи.
type PaymentService interface {
	Pay(ctx context.Context, payer *models.User, project *models.Project, amount, token string) (*models.Transaction, error)
	Get(ctx context.Context, viewer *models.User, id int) (*models.Transaction, error)
}

// PayoutService подключает аккаунт выплат репетитора (payments.Connector).
type PayoutService interface {
	Start(ctx context.Context, tutor *models.User) (string, error)
	Complete(ctx context.Context, tutor *models.User, code, state string) (*models.User, error)
}

// ProfileService показывает и редактирует профили пользователей.
type ProfileService interface {
	Get(ctx context.Context, viewer *models.User, id int) (*profiles.Profile, error)
	Update(ctx context.Context, user *models.User, in profiles.Input) (*profiles.Profile, error)
}
