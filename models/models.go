package models

import (
	"strings"
	"time"
)

type (
	Role        string // Роль пользователя
	ProjectType string // Тип проекта
	BudgetType  string // Тип бюджета
	Status      string // Производный статус проекта
	BidEvent    string // Событие в журнале предложения
)

const (
	RoleStudent Role = "student" // Студент публикует проекты
	RoleTutor   Role = "tutor"   // Репетитор подаёт предложения

	ProjectOneTime   ProjectType = "one_time"
	ProjectRecurring ProjectType = "recurring"

	BudgetFixed  BudgetType = "fixed"
	BudgetHourly BudgetType = "hourly"
	BudgetUnset  BudgetType = "" // Только у предложения после сброса бюджета

	StatusDraft   Status = "Draft"   // Черновик, виден только автору
	StatusOpen    Status = "Open"    // Опубликован, принимает предложения
	StatusAwarded Status = "Awarded" // Есть выбранное предложение
	StatusClosed  Status = "Closed"  // Завершён

	BidSubmitted BidEvent = "submitted"
	BidEdited    BidEvent = "edited"
	BidAwarded   BidEvent = "awarded"
	BidDeclined  BidEvent = "declined"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleTutor:
		return true
	default:
		return false
	}
}

func ValidProjectType(t ProjectType) bool {
	switch t {
	case ProjectOneTime, ProjectRecurring:
		return true
	default:
		return false
	}
}

// ValidBudgetType проверяет тип бюджета проекта (пустое значение не допускается).
func ValidBudgetType(t BudgetType) bool {
	switch t {
	case BudgetFixed, BudgetHourly:
		return true
	default:
		return false
	}
}

// Label возвращает человекочитаемое название типа бюджета.
func (t BudgetType) Label() string {
	switch t {
	case BudgetFixed:
		return "Fixed"
	case BudgetHourly:
		return "Hourly"
	default:
		return "Not set"
	}
}

// ParseStatus разбирает статус из строки запроса без учёта регистра.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return StatusDraft, true
	case "open":
		return StatusOpen, true
	case "awarded":
		return StatusAwarded, true
	case "closed":
		return StatusClosed, true
	}
	return "", false
}

// Сущность Пользователя
type User struct {
	ID            int       `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	FirstName     string    `db:"first_name" json:"firstName"`
	LastName      string    `db:"last_name" json:"lastName"`
	Role          Role      `db:"role" json:"role"`
	PayoutAccount string    `db:"payout_account" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"-"`
}

// FullName возвращает имя и фамилию, либо username если они не заполнены.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Сущность Категории
type Category struct {
	ID          int       `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	ModifiedAt  time.Time `db:"modified_at" json:"-"`
}

// Сущность Проекта. IsAwarded - кэш, пересчитывается хранилищем при каждом сохранении.
type Project struct {
	ID             int         `db:"id" json:"id"`
	StudentID      int         `db:"student_id" json:"studentId"`
	Title          string      `db:"title" json:"title"`
	CategoryID     int         `db:"category_id" json:"categoryId"`
	Description    string      `db:"description" json:"description"`
	ProjectType    ProjectType `db:"project_type" json:"projectType"`
	BudgetType     BudgetType  `db:"budget_type" json:"budgetType"`
	Budget         *Money      `db:"budget_cents" json:"budget"`
	Published      bool        `db:"published" json:"published"`
	IsAwarded      bool        `db:"is_awarded" json:"isAwarded"`
	Completed      bool        `db:"completed" json:"completed"`
	RequiredSkills []string    `db:"-" json:"requiredSkills"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	ModifiedAt     time.Time   `db:"modified_at" json:"modifiedAt"`
}

// Сущность Предложения
type Bid struct {
	ID          int        `db:"id" json:"id"`
	ProjectID   int        `db:"project_id" json:"projectId"`
	TutorID     int        `db:"tutor_id" json:"tutorId"`
	Description string     `db:"description" json:"description"`
	BudgetType  BudgetType `db:"budget_type" json:"budgetType"`
	Budget      *Money     `db:"budget_cents" json:"budget"`
	Awarded     bool       `db:"awarded" json:"awarded"`
	Declined    bool       `db:"declined" json:"declined"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	ModifiedAt  time.Time  `db:"modified_at" json:"modifiedAt"`
}

// Запись журнала предложения
type BidHistory struct {
	ID          int        `db:"id" json:"id"`
	BidID       int        `db:"bid_id" json:"bidId"`
	Version     int        `db:"version" json:"version"`
	Event       BidEvent   `db:"event" json:"event"`
	Description string     `db:"description" json:"description"`
	BudgetType  BudgetType `db:"budget_type" json:"budgetType"`
	Budget      *Money     `db:"budget_cents" json:"budget"`
	Awarded     bool       `db:"awarded" json:"awarded"`
	Declined    bool       `db:"declined" json:"declined"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// Сущность Класса (сессия совместной работы по проекту)
type Classroom struct {
	ID         int       `db:"id" json:"id"`
	ProjectID  int       `db:"project_id" json:"projectId"`
	SessionID  string    `db:"session_id" json:"sessionId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	ModifiedAt time.Time `db:"modified_at" json:"-"`
}

// Сообщение чата класса
type ChatMessage struct {
	ID          int       `db:"id" json:"id"`
	ClassroomID int       `db:"classroom_id" json:"classroomId"`
	UserID      int       `db:"user_id" json:"userId"`
	Message     string    `db:"message" json:"message"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Платежа. Суммы хранятся в минимальных единицах валюты.
type Transaction struct {
	ID          int       `db:"id" json:"id"`
	ProjectID   int       `db:"project_id" json:"projectId"`
	ChargeID    string    `db:"charge_id" json:"chargeId"`
	Description string    `db:"description" json:"description"`
	Currency    string    `db:"currency" json:"currency"`
	TotalAmount Money     `db:"total_amount" json:"totalAmount"`
	GatewayFee  Money     `db:"gateway_fee" json:"gatewayFee"`
	PlatformFee Money     `db:"platform_fee" json:"platformFee"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	ModifiedAt  time.Time `db:"modified_at" json:"-"`
}
