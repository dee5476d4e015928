package classroom

import (
	"context"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"tutormarket/internal/lifecycle"
	"tutormarket/internal/metrics"
	"tutormarket/models"
)

const (
	maxMessageLength = 4000
	provisionTimeout = 30 * time.Second
)

// Store - хранилище классов и сообщений чата.
type Store interface {
	GetProject(ctx context.Context, id int) (*models.Project, error)
	GetClassroom(ctx context.Context, id int) (*models.Classroom, error)
	GetClassroomByProject(ctx context.Context, projectID int) (*models.Classroom, error)
	// SaveClassroom сохраняет класс, если у проекта его ещё нет, и возвращает сохранённый.
	SaveClassroom(ctx context.Context, c *models.Classroom) (*models.Classroom, error)
	AddChatMessage(ctx context.Context, m *models.ChatMessage) error
	ListChatMessages(ctx context.Context, classroomID int) ([]models.ChatMessage, error)
}

// TutorResolver определяет текущего репетитора проекта.
type TutorResolver interface {
	CurrentTutor(ctx context.Context, p *models.Project) (int, bool, error)
}

// Session - класс с токеном входа для пользователя и историей чата.
type Session struct {
	Classroom *models.Classroom    `json:"classroom"`
	Token     string               `json:"token"`
	Messages  []models.ChatMessage `json:"messages"`
}

type Service struct {
	store       Store
	tutors      TutorResolver
	provisioner Provisioner
	metrics     *metrics.Metrics
	group       singleflight.Group
}

func NewService(store Store, tutors TutorResolver, provisioner Provisioner, m *metrics.Metrics) *Service {
	return &Service{store: store, tutors: tutors, provisioner: provisioner, metrics: m}
}

// Open открывает класс проекта для студента или текущего репетитора.
// Сессия создаётся при первом открытии и дальше переиспользуется.
func (s *Service) Open(ctx context.Context, user *models.User, project *models.Project) (*Session, error) {
	if err := s.checkMember(ctx, user, project); err != nil {
		return nil, err
	}

	c, err := s.store.GetClassroomByProject(ctx, project.ID)
	if errors.Is(err, lifecycle.ErrNotFound) {
		c, err = s.provision(ctx, project.ID)
	}
	if err != nil {
		return nil, err
	}

	token, err := s.provisioner.Token(c.SessionID, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "issue session token")
	}
	messages, err := s.store.ListChatMessages(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Classroom: c, Token: token, Messages: messages}, nil
}

// provision создаёт сессию один раз на проект: параллельные запросы внутри
// процесса ждут первый, между процессами побеждает первая вставка в базу.
// Общая работа не зависит от отмены запроса, который её начал: каждый
// вызывающий ждёт результат только до отмены своего контекста.
func (s *Service) provision(ctx context.Context, projectID int) (*models.Classroom, error) {
	ch := s.group.DoChan(strconv.Itoa(projectID), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), provisionTimeout)
		defer cancel()

		if c, err := s.store.GetClassroomByProject(ctx, projectID); err == nil {
			return c, nil
		}
		sessionID, err := s.provisioner.CreateSession(ctx, projectID)
		if err != nil {
			return nil, errors.Wrapf(err, "create session for project %d", projectID)
		}
		c, err := s.store.SaveClassroom(ctx, &models.Classroom{ProjectID: projectID, SessionID: sessionID})
		if err != nil {
			return nil, err
		}
		if c.SessionID == sessionID {
			s.metrics.SessionProvisioned()
			slog.Info("classroom provisioned", "project_id", projectID, "classroom_id", c.ID)
		}
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Classroom), nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "wait for classroom of project %d", projectID)
	}
}

// Post добавляет сообщение в чат класса. Текст экранируется для вывода в HTML.
func (s *Service) Post(ctx context.Context, user *models.User, classroomID int, message string) (*models.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.Wrap(lifecycle.ErrValidation, "message is required")
	}
	if len(message) > maxMessageLength {
		return nil, errors.Wrapf(lifecycle.ErrValidation, "message is longer than %d bytes", maxMessageLength)
	}

	c, err := s.store.GetClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMember(ctx, user, project); err != nil {
		return nil, err
	}

	m := &models.ChatMessage{
		ClassroomID: c.ID,
		UserID:      user.ID,
		Message:     html.EscapeString(message),
	}
	if err := s.store.AddChatMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) checkMember(ctx context.Context, user *models.User, project *models.Project) error {
	if !project.IsAwarded {
		return errors.Wrap(lifecycle.ErrInvalidState, "classroom is available only for awarded projects")
	}
	if user.ID == project.StudentID {
		return nil
	}
	tutorID, ok, err := s.tutors.CurrentTutor(ctx, project)
	if err != nil {
		return err
	}
	if !ok || tutorID != user.ID {
		return errors.Wrap(lifecycle.ErrInvalidState, "you are not a member of this classroom")
	}
	return nil
}
