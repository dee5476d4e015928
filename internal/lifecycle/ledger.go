package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"tutormarket/internal/metrics"
	"tutormarket/models"
)

// AwardPolicy определяет, допускается ли несколько выбранных предложений на проект.
type AwardPolicy string

const (
	// AwardLenient проверяет только закэшированный статус проекта.
	AwardLenient AwardPolicy = "lenient"
	// AwardStrict дополнительно сверяется с живым набором предложений под блокировкой проекта.
	AwardStrict AwardPolicy = "strict"
)

func ParseAwardPolicy(s string) (AwardPolicy, error) {
	switch AwardPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AwardLenient:
		return AwardLenient, nil
	case AwardStrict:
		return AwardStrict, nil
	}
	return "", fmt.Errorf("unknown award policy %q", s)
}

// BidNotifier сообщает студенту о новом предложении. Вызывается асинхронно после коммита.
type BidNotifier interface {
	BidSubmitted(ctx context.Context, project *models.Project, bid *models.Bid) error
}

// BidInput - правки предложения репетитором. nil означает "не менять".
type BidInput struct {
	Description *string       `json:"description"`
	Budget      *models.Money `json:"budget"`
}

// Ledger ведёт предложения по проектам и поддерживает кэш is_awarded проекта.
// Каждая запись выполняется одной транзакцией с блокировкой строки проекта:
// сначала предложение, затем проект.
type Ledger struct {
	store         Store
	policy        AwardPolicy
	notifier      BidNotifier
	notifyTimeout time.Duration
	metrics       *metrics.Metrics
	pending       sync.WaitGroup
}

type LedgerOption func(*Ledger)

// WithNotifier включает уведомления о новых предложениях. timeout <= 0 оставляет значение по умолчанию.
func WithNotifier(n BidNotifier, timeout time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.notifier = n
		if timeout > 0 {
			l.notifyTimeout = timeout
		}
	}
}

func WithMetrics(m *metrics.Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = m }
}

func NewLedger(store Store, policy AwardPolicy, opts ...LedgerOption) *Ledger {
	l := &Ledger{store: store, policy: policy, notifyTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit подаёт предложение репетитора на открытый проект.
// Тип бюджета берётся из текущего типа бюджета проекта.
func (l *Ledger) Submit(ctx context.Context, tutor *models.User, projectID int, description string, budget *models.Money) (*models.Bid, error) {
	defer l.metrics.ObserveLedger("submit", time.Now())

	if tutor.Role != models.RoleTutor {
		return nil, invalidState("only tutors can submit bids")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, invalid("description is required")
	}
	if budget == nil {
		return nil, invalid("budget is required")
	}
	if *budget < 0 {
		return nil, invalid("budget must not be negative")
	}

	var project *models.Project
	bid := &models.Bid{
		TutorID:     tutor.ID,
		Description: description,
		Budget:      budget,
	}
	err := l.store.InTx(ctx, func(tx Tx) error {
		var err error
		project, err = tx.LockProject(ctx, projectID)
		if err != nil {
			return err
		}
		if Status(project) != models.StatusOpen {
			return invalidState("this project is not open to bids")
		}
		bid.ProjectID = project.ID
		bid.BudgetType = project.BudgetType
		if err := tx.CreateBid(ctx, bid); err != nil {
			return err
		}
		if err := tx.AppendBidHistory(ctx, bid, models.BidSubmitted); err != nil {
			return err
		}
		return tx.UpdateProject(ctx, project)
	})
	if err != nil {
		return nil, err
	}

	l.metrics.BidEvent(string(models.BidSubmitted))
	slog.Info("bid submitted", "project_id", project.ID, "bid_id", bid.ID, "tutor_id", tutor.ID)
	l.notify(project, bid)
	return bid, nil
}

// Award выбирает предложение. Остальные предложения не отклоняются автоматически.
func (l *Ledger) Award(ctx context.Context, student *models.User, projectID, bidID int) (*models.Bid, error) {
	defer l.metrics.ObserveLedger("award", time.Now())

	var bid *models.Bid
	err := l.store.InTx(ctx, func(tx Tx) error {
		project, b, err := l.loadForDecision(ctx, tx, student, projectID, bidID)
		if err != nil {
			return err
		}
		if Status(project) != models.StatusOpen {
			return invalidState("only open projects can be awarded")
		}
		if l.policy == AwardStrict {
			n, err := tx.CountAwardedBids(ctx, project.ID, b.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return invalidState("project %d already has an awarded bid", project.ID)
			}
		}
		b.Awarded = true
		b.Declined = false
		if err := l.write(ctx, tx, project, b, models.BidAwarded); err != nil {
			return err
		}
		bid = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.BidEvent(string(models.BidAwarded))
	l.metrics.ProjectTransition(string(models.StatusAwarded))
	slog.Info("bid awarded", "project_id", projectID, "bid_id", bid.ID, "tutor_id", bid.TutorID)
	return bid, nil
}

// Decline отклоняет предложение. Статус проекта не проверяется, чтобы можно было
// исправить прежнее решение; снятие последнего выбора возвращает проект в Open.
func (l *Ledger) Decline(ctx context.Context, student *models.User, projectID, bidID int) (*models.Bid, error) {
	defer l.metrics.ObserveLedger("decline", time.Now())

	var bid *models.Bid
	var status models.Status
	err := l.store.InTx(ctx, func(tx Tx) error {
		project, b, err := l.loadForDecision(ctx, tx, student, projectID, bidID)
		if err != nil {
			return err
		}
		b.Awarded = false
		b.Declined = true
		if err := l.write(ctx, tx, project, b, models.BidDeclined); err != nil {
			return err
		}
		bid = b
		status = Status(project)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.BidEvent(string(models.BidDeclined))
	slog.Info("bid declined", "project_id", projectID, "bid_id", bid.ID, "project_status", status)
	return bid, nil
}

// Edit применяет правки репетитора, пока проект открыт. Если тип бюджета проекта
// изменился, прежняя сумма сбрасывается и её нужно ввести заново.
func (l *Ledger) Edit(ctx context.Context, tutor *models.User, bidID int, in BidInput) (*models.Bid, error) {
	defer l.metrics.ObserveLedger("edit", time.Now())

	var bid *models.Bid
	err := l.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		if b.TutorID != tutor.ID {
			return invalidState("you don't have permission to edit this bid")
		}
		project, err := tx.LockProject(ctx, b.ProjectID)
		if err != nil {
			return err
		}
		// Перечитываем под блокировкой проекта.
		if b, err = tx.GetBid(ctx, bidID); err != nil {
			return err
		}
		if !CanEdit(b, project) {
			return invalidState("bids can only be edited while the project is open")
		}

		RefreshBudgetType(b, project)
		if in.Description != nil {
			d := strings.TrimSpace(*in.Description)
			if d == "" {
				return invalid("description is required")
			}
			b.Description = d
		}
		if in.Budget != nil {
			if *in.Budget < 0 {
				return invalid("budget must not be negative")
			}
			budget := *in.Budget
			b.Budget = &budget
		}
		if err := tx.UpdateBid(ctx, b); err != nil {
			return err
		}
		if err := tx.AppendBidHistory(ctx, b, models.BidEdited); err != nil {
			return err
		}
		bid = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.metrics.BidEvent(string(models.BidEdited))
	return bid, nil
}

// CanEditBid загружает проект предложения и проверяет, открыт ли он.
func (l *Ledger) CanEditBid(ctx context.Context, bid *models.Bid) (bool, error) {
	project, err := l.store.GetProject(ctx, bid.ProjectID)
	if err != nil {
		return false, err
	}
	return CanEdit(bid, project), nil
}

// VisibleBids возвращает предложения проекта: автору - все, репетитору - только свои.
func (l *Ledger) VisibleBids(ctx context.Context, viewer *models.User, project *models.Project) ([]models.Bid, error) {
	bids, err := l.store.ListProjectBids(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if viewer.ID == project.StudentID {
		return bids, nil
	}
	own := make([]models.Bid, 0, len(bids))
	for _, b := range bids {
		if b.TutorID == viewer.ID {
			own = append(own, b)
		}
	}
	return own, nil
}

// TutorBids возвращает предложения репетитора, новые первыми.
func (l *Ledger) TutorBids(ctx context.Context, tutor *models.User, limit, offset int) ([]models.Bid, error) {
	return l.store.ListTutorBids(ctx, tutor.ID, limit, offset)
}

// History возвращает журнал предложения автору проекта или самому репетитору.
func (l *Ledger) History(ctx context.Context, viewer *models.User, bidID int) ([]models.BidHistory, error) {
	bid, err := l.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.TutorID != viewer.ID {
		project, err := l.store.GetProject(ctx, bid.ProjectID)
		if err != nil {
			return nil, err
		}
		if project.StudentID != viewer.ID {
			return nil, invalidState("you don't have permission to view this bid")
		}
	}
	return l.store.GetBidHistory(ctx, bidID)
}

// Wait дожидается отправки всех уведомлений.
func (l *Ledger) Wait() {
	l.pending.Wait()
}

func (l *Ledger) loadForDecision(ctx context.Context, tx Tx, student *models.User, projectID, bidID int) (*models.Project, *models.Bid, error) {
	project, err := tx.LockProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	bid, err := tx.GetBid(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	if bid.ProjectID != project.ID {
		return nil, nil, invalidState("bid is not associated with project")
	}
	if project.StudentID != student.ID {
		return nil, nil, invalidState("you do not have permission to alter bids on this project")
	}
	return project, bid, nil
}

// write сохраняет предложение, пишет журнал и пересчитывает кэш проекта.
func (l *Ledger) write(ctx context.Context, tx Tx, project *models.Project, bid *models.Bid, event models.BidEvent) error {
	if err := tx.UpdateBid(ctx, bid); err != nil {
		return err
	}
	if err := tx.AppendBidHistory(ctx, bid, event); err != nil {
		return err
	}
	return errors.Wrapf(tx.UpdateProject(ctx, project), "recompute project %d", project.ID)
}

func (l *Ledger) notify(project *models.Project, bid *models.Bid) {
	if l.notifier == nil {
		return
	}
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.notifyTimeout)
		defer cancel()
		if err := l.notifier.BidSubmitted(ctx, project, bid); err != nil {
			l.metrics.Notification("failed")
			slog.Warn("bid notification failed", "project_id", project.ID, "bid_id", bid.ID, "error", err)
			return
		}
		l.metrics.Notification("sent")
	}()
}
