package profiles

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

const (
	maxNameLength  = 30
	maxEmailLength = 75
)

// Profile - карточка пользователя. Email виден только самому пользователю.
type Profile struct {
	ID              int         `json:"id"`
	Username        string      `json:"username"`
	FirstName       string      `json:"firstName"`
	LastName        string      `json:"lastName"`
	Email           string      `json:"email,omitempty"`
	Role            models.Role `json:"role"`
	PayoutConnected bool        `json:"payoutConnected"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// Input - изменяемые поля профиля. nil означает "не менять".
type Input struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

type Store interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get возвращает профиль пользователя id глазами viewer.
func (s *Service) Get(ctx context.Context, viewer *models.User, id int) (*Profile, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return newProfile(u, viewer.ID == u.ID), nil
}

// Update меняет имя и email пользователя. Email обязателен, как при регистрации.
func (s *Service) Update(ctx context.Context, user *models.User, in Input) (*Profile, error) {
	u, err := s.store.GetUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
	}
	if err := validate(u); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return newProfile(u, true), nil
}

func validate(u *models.User) error {
	if utf8.RuneCountInString(u.FirstName) > maxNameLength || utf8.RuneCountInString(u.LastName) > maxNameLength {
		return errors.Wrapf(lifecycle.ErrValidation, "names must be at most %d characters", maxNameLength)
	}
	if u.Email == "" {
		return errors.Wrap(lifecycle.ErrValidation, "email is required")
	}
	if len(u.Email) > maxEmailLength {
		return errors.Wrapf(lifecycle.ErrValidation, "email must be at most %d characters", maxEmailLength)
	}
	addr, err := mail.ParseAddress(u.Email)
	if err != nil || addr.Address != u.Email {
		return errors.Wrapf(lifecycle.ErrValidation, "invalid email %q", u.Email)
	}
	return nil
}

func newProfile(u *models.User, self bool) *Profile {
	p := &Profile{
		ID:              u.ID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Role:            u.Role,
		PayoutConnected: u.PayoutAccount != "",
		CreatedAt:       u.CreatedAt,
	}
	if self {
		p.Email = u.Email
	}
	return p
}
