package db_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tutormarket/db"
	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

func newTestStorage(t *testing.T) *db.Storage {
	t.Helper()
	s, err := db.Open(context.Background(), db.DriverSQLite, filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createUser(t *testing.T, s *db.Storage, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", FirstName: username, Role: role}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestUsersAndCategories(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 5)

	ok, err := s.CategoryExists(ctx, categories[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.CategoryExists(ctx, 9999)
	require.NoError(t, err)
	require.False(t, ok)

	u := createUser(t, s, "alice", models.RoleStudent)
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, models.RoleStudent, got.Role)

	got, err = s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	require.NoError(t, s.SetPayoutAccount(ctx, u.ID, "acct_123"))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "acct_123", got.PayoutAccount)
	// подключённый аккаунт не перезаписывается
	require.ErrorIs(t, s.SetPayoutAccount(ctx, u.ID, "acct_other"), lifecycle.ErrInvalidState)

	got.FirstName, got.LastName, got.Email = "Alice", "Smith", "alice.smith@example.com"
	require.NoError(t, s.UpdateProfile(ctx, got))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "acct_123", got.PayoutAccount)
	require.Equal(t, "Alice Smith", got.FullName())
	require.Equal(t, "alice.smith@example.com", got.Email)
	require.ErrorIs(t, s.UpdateProfile(ctx, &models.User{ID: 9999}), lifecycle.ErrNotFound)

	_, err = s.GetUser(ctx, 9999)
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
	require.ErrorIs(t, s.SetPayoutAccount(ctx, 9999, "acct"), lifecycle.ErrNotFound)
}

func newProject(t *testing.T, s *db.Storage, student *models.User, published bool) *models.Project {
	t.Helper()
	p := &models.Project{
		StudentID:   student.ID,
		Title:       "Organic chemistry",
		CategoryID:  1,
		Description: "Reaction mechanisms",
		ProjectType: models.ProjectOneTime,
		BudgetType:  models.BudgetHourly,
		Budget:      models.NewMoney(3000),
		Published:   published,
	}
	err := s.InTx(context.Background(), func(tx lifecycle.Tx) error {
		if err := tx.CreateProject(context.Background(), p); err != nil {
			return err
		}
		return tx.SetProjectSkills(context.Background(), p.ID, []string{"chemistry", "lab"})
	})
	require.NoError(t, err)
	return p
}

func TestProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	student := createUser(t, s, "alice", models.RoleStudent)

	p := newProject(t, s, student, false)
	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Title, got.Title)
	require.Equal(t, models.BudgetHourly, got.BudgetType)
	require.Equal(t, models.NewMoney(3000), got.Budget)
	require.False(t, got.Published)
	require.Equal(t, []string{"chemistry", "lab"}, got.RequiredSkills)
	require.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Second)

	got.Budget = nil
	got.Published = true
	err = s.InTx(ctx, func(tx lifecycle.Tx) error {
		if err := tx.UpdateProject(ctx, got); err != nil {
			return err
		}
		return tx.SetProjectSkills(ctx, got.ID, []string{"lab"})
	})
	require.NoError(t, err)

	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, got.Budget)
	require.True(t, got.Published)
	require.Equal(t, []string{"lab"}, got.RequiredSkills)

	_, err = s.GetProject(ctx, 9999)
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	student := createUser(t, s, "alice", models.RoleStudent)

	var id int
	err := s.InTx(ctx, func(tx lifecycle.Tx) error {
		p := &models.Project{
			StudentID: student.ID, Title: "t", CategoryID: 1, Description: "d",
			ProjectType: models.ProjectOneTime, BudgetType: models.BudgetFixed,
		}
		if err := tx.CreateProject(ctx, p); err != nil {
			return err
		}
		id = p.ID
		return lifecycle.ErrInvalidState
	})
	require.ErrorIs(t, err, lifecycle.ErrInvalidState)

	_, err = s.GetProject(ctx, id)
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestLedgerOverSQLite(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	student := createUser(t, s, "alice", models.RoleStudent)
	tutor := createUser(t, s, "bob", models.RoleTutor)
	tutor2 := createUser(t, s, "carol", models.RoleTutor)

	manager := lifecycle.NewManager(s, nil)
	ledger := lifecycle.NewLedger(s, lifecycle.AwardStrict)

	p := newProject(t, s, student, true)
	first, err := ledger.Submit(ctx, tutor, p.ID, "first", models.NewMoney(2500))
	require.NoError(t, err)
	require.Equal(t, models.BudgetHourly, first.BudgetType)
	second, err := ledger.Submit(ctx, tutor2, p.ID, "second", models.NewMoney(2000))
	require.NoError(t, err)

	bids, err := s.ListProjectBids(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, second.ID, bids[0].ID)

	_, err = ledger.Award(ctx, student, p.ID, first.ID)
	require.NoError(t, err)
	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.IsAwarded)

	tutorID, ok, err := manager.CurrentTutor(ctx, got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tutor.ID, tutorID)

	awarded, err := manager.List(ctx, lifecycle.ProjectFilter{Status: models.StatusAwarded, Limit: 10})
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	open, err := manager.List(ctx, lifecycle.ProjectFilter{Status: models.StatusOpen, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, open)

	_, err = ledger.Decline(ctx, student, p.ID, first.ID)
	require.NoError(t, err)
	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, got.IsAwarded)

	_, err = ledger.Award(ctx, student, p.ID, second.ID)
	require.NoError(t, err)

	history, err := s.GetBidHistory(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, []int{1, 2, 3}, []int{history[0].Version, history[1].Version, history[2].Version})
	require.Equal(t, models.BidDeclined, history[2].Event)
	require.True(t, history[2].Declined)

	mine, err := manager.Dashboard(ctx, tutor2, lifecycle.ProjectFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	tutorBids, err := s.ListTutorBids(ctx, tutor2.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, tutorBids, 1)
	require.True(t, tutorBids[0].Awarded)

	_, err = manager.Complete(ctx, student, p.ID)
	require.NoError(t, err)
	closed, err := manager.List(ctx, lifecycle.ProjectFilter{Status: models.StatusClosed, Limit: 10})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.True(t, closed[0].IsAwarded)
}

func TestListProjectsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	student := createUser(t, s, "alice", models.RoleStudent)

	draft := newProject(t, s, student, false)
	first := newProject(t, s, student, true)
	second := newProject(t, s, student, true)

	public, err := s.ListProjects(ctx, lifecycle.ProjectFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, public, 2)
	require.Equal(t, second.ID, public[0].ID)
	require.Equal(t, first.ID, public[1].ID)

	paged, err := s.ListProjects(ctx, lifecycle.ProjectFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, first.ID, paged[0].ID)

	mine, err := s.ListProjects(ctx, lifecycle.ProjectFilter{StudentID: student.ID, Drafts: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, mine, 3)

	drafts, err := s.ListProjects(ctx, lifecycle.ProjectFilter{
		StudentID: student.ID, Drafts: true, Status: models.StatusDraft, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, draft.ID, drafts[0].ID)

	other, err := s.ListProjects(ctx, lifecycle.ProjectFilter{CategoryID: 2, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestSaveClassroomOncePerProject(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	student := createUser(t, s, "alice", models.RoleStudent)
	p := newProject(t, s, student, true)

	first, err := s.SaveClassroom(ctx, &models.Classroom{ProjectID: p.ID, SessionID: "session-1"})
	require.NoError(t, err)
	second, err := s.SaveClassroom(ctx, &models.Classroom{ProjectID: p.ID, SessionID: "session-2"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "session-1", second.SessionID)

	msg := &models.ChatMessage{ClassroomID: first.ID, UserID: student.ID, Message: "hello"}
	require.NoError(t, s.AddChatMessage(ctx, msg))
	messages, err := s.ListChatMessages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "hello", messages[0].Message)
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	student := createUser(t, s, "alice", models.RoleStudent)
	p := newProject(t, s, student, true)

	tr := &models.Transaction{
		ProjectID:   p.ID,
		ChargeID:    "ch_1",
		Description: "Payment",
		Currency:    "usd",
		TotalAmount: 10000,
		GatewayFee:  320,
		PlatformFee: 1000,
	}
	require.NoError(t, s.CreateTransaction(ctx, tr))

	got, err := s.GetTransaction(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, "ch_1", got.ChargeID)
	require.Equal(t, models.Money(10000), got.TotalAmount)
	require.Equal(t, models.Money(1000), got.PlatformFee)

	list, err := s.ListProjectTransactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.GetTransaction(ctx, 9999)
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}
