package notify

import (
	"bytes"
	"context"
	"embed"
	"log/slog"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

//go:embed templates/*.txt
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

// Notifier доставляет сообщение получателю.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// LogNotifier пишет сообщения в лог. Используется, когда почта не настроена.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, to, subject, body string) error {
	slog.Info("notification", "to", to, "subject", subject, "body_bytes", len(body))
	return nil
}

// UserGetter загружает получателей уведомлений.
type UserGetter interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
}

// BidMailer сообщает студенту о новом предложении по его проекту.
type BidMailer struct {
	users    UserGetter
	notifier Notifier
	site     string
}

var _ lifecycle.BidNotifier = (*BidMailer)(nil)

func NewBidMailer(users UserGetter, notifier Notifier, site string) *BidMailer {
	return &BidMailer{users: users, notifier: notifier, site: site}
}

type bidMessage struct {
	Site        string
	Title       string
	ProjectID   int
	Student     string
	Tutor       string
	Budget      string
	Description string
}

func (m *BidMailer) BidSubmitted(ctx context.Context, project *models.Project, bid *models.Bid) error {
	student, err := m.users.GetUser(ctx, project.StudentID)
	if err != nil {
		return errors.Wrap(err, "load student")
	}
	if student.Email == "" {
		slog.Debug("student has no email, skipping bid notification", "student_id", student.ID)
		return nil
	}
	tutor, err := m.users.GetUser(ctx, bid.TutorID)
	if err != nil {
		return errors.Wrap(err, "load tutor")
	}

	data := bidMessage{
		Site:        m.site,
		Title:       project.Title,
		ProjectID:   project.ID,
		Student:     student.FullName(),
		Tutor:       tutor.FullName(),
		Budget:      lifecycle.BudgetDisplay(bid.Budget, bid.BudgetType),
		Description: bid.Description,
	}
	subject, err := render("bid_subject.txt", data)
	if err != nil {
		return err
	}
	body, err := render("bid_body.txt", data)
	if err != nil {
		return err
	}
	// Тема письма должна быть одной строкой.
	subject = strings.Join(strings.Fields(subject), " ")
	return m.notifier.Notify(ctx, student.Email, subject, body)
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "render %s", name)
	}
	return buf.String(), nil
}
