package payments

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"tutormarket/internal/lifecycle"
	"tutormarket/models"
)

const connectStateTTL = 15 * time.Minute

// ErrAlreadyConnected - у репетитора уже есть аккаунт выплат.
var ErrAlreadyConnected = errors.Wrap(lifecycle.ErrInvalidState, "payout account is already connected")

// AccountLinker подключает аккаунты выплат через OAuth платёжной системы.
type AccountLinker interface {
	AuthorizeURL(state string) string
	LinkAccount(ctx context.Context, code string) (string, error)
}

// AccountStore хранит аккаунты выплат.
type AccountStore interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	// SetPayoutAccount сохраняет аккаунт, только если он ещё не задан,
	// иначе возвращает ошибку с lifecycle.ErrInvalidState.
	SetPayoutAccount(ctx context.Context, userID int, account string) error
}

// Connector ведёт подключение аккаунта выплат репетитора: Start выдаёт адрес
// страницы платёжной системы, Complete принимает код, с которым она вернула пользователя.
type Connector struct {
	store  AccountStore
	linker AccountLinker
	secret []byte
}

// NewConnector создаёт сервис подключения. linker может быть nil, тогда
// операции возвращают ErrNotConfigured. stateSecret подписывает параметр state.
func NewConnector(store AccountStore, linker AccountLinker, stateSecret string) *Connector {
	return &Connector{store: store, linker: linker, secret: []byte(stateSecret)}
}

func (c *Connector) Start(ctx context.Context, tutor *models.User) (string, error) {
	if err := c.check(tutor); err != nil {
		return "", err
	}
	state, err := c.issueState(tutor.ID)
	if err != nil {
		return "", err
	}
	return c.linker.AuthorizeURL(state), nil
}

func (c *Connector) Complete(ctx context.Context, tutor *models.User, code, state string) (*models.User, error) {
	if err := c.check(tutor); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, errors.Wrap(lifecycle.ErrValidation, "authorization code is required")
	}
	if err := c.verifyState(state, tutor.ID); err != nil {
		return nil, err
	}

	account, err := c.linker.LinkAccount(ctx, code)
	if err != nil {
		if errors.Is(err, ErrLinkRejected) {
			return nil, errors.Wrap(lifecycle.ErrValidation, err.Error())
		}
		return nil, errors.Wrap(err, "link payout account")
	}
	if err := c.store.SetPayoutAccount(ctx, tutor.ID, account); err != nil {
		return nil, err
	}
	slog.Info("payout account connected", "user_id", tutor.ID)
	return c.store.GetUser(ctx, tutor.ID)
}

func (c *Connector) check(tutor *models.User) error {
	if c.linker == nil {
		return ErrNotConfigured
	}
	if tutor.Role != models.RoleTutor {
		return errors.Wrap(lifecycle.ErrInvalidState, "only tutors can connect a payout account")
	}
	if tutor.PayoutAccount != "" {
		return ErrAlreadyConnected
	}
	return nil
}

// issueState подписывает state: вернувшийся код принимается только от того же пользователя.
func (c *Connector) issueState(userID int) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(connectStateTTL)),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign connect state")
	}
	return state, nil
}

func (c *Connector) verifyState(state string, userID int) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || claims.Subject != strconv.Itoa(userID) {
		return errors.Wrap(lifecycle.ErrValidation, "invalid or expired connect state")
	}
	return nil
}
