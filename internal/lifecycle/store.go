package lifecycle

import (
	"context"

	"tutormarket/models"
)

// ProjectFilter описывает выборку проектов для списков и панели пользователя.
type ProjectFilter struct {
	CategoryID int
	Status     models.Status
	StudentID  int  // Только проекты студента
	TutorID    int  // Только проекты, на которые репетитор подал предложения
	Drafts     bool // Включать черновики (только вместе со StudentID)
	Limit      int
	Offset     int
}

// Store - операции чтения, нужные жизненному циклу, и единица работы InTx.
type Store interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	GetProject(ctx context.Context, id int) (*models.Project, error)
	GetBid(ctx context.Context, id int) (*models.Bid, error)
	CategoryExists(ctx context.Context, id int) (bool, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error)
	ListProjectBids(ctx context.Context, projectID int) ([]models.Bid, error)
	ListAwardedBids(ctx context.Context, projectID int) ([]models.Bid, error)
	ListTutorBids(ctx context.Context, tutorID int, limit, offset int) ([]models.Bid, error)
	GetBidHistory(ctx context.Context, bidID int) ([]models.BidHistory, error)

	// InTx выполняет fn в одной транзакции: коммит при nil, откат при ошибке.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx - операции записи внутри транзакции.
type Tx interface {
	// LockProject читает проект и блокирует его строку до конца транзакции.
	LockProject(ctx context.Context, id int) (*models.Project, error)
	GetBid(ctx context.Context, id int) (*models.Bid, error)

	CreateProject(ctx context.Context, p *models.Project) error
	// UpdateProject сохраняет проект, пересчитывая is_awarded по набору предложений.
	UpdateProject(ctx context.Context, p *models.Project) error
	SetProjectSkills(ctx context.Context, projectID int, skills []string) error

	CreateBid(ctx context.Context, b *models.Bid) error
	UpdateBid(ctx context.Context, b *models.Bid) error
	CountAwardedBids(ctx context.Context, projectID, exceptBidID int) (int, error)
	AppendBidHistory(ctx context.Context, b *models.Bid, event models.BidEvent) error
}
