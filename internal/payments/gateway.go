package payments

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var (
	// ErrCardDeclined - платёжная система отклонила карту. Повтор с теми же данными бесполезен.
	ErrCardDeclined = errors.New("card declined")
	// ErrLinkRejected - платёжная система не приняла код подключения аккаунта.
	ErrLinkRejected = errors.New("authorization code rejected")
)

// ChargeRequest - списание в пользу подключённого аккаунта репетитора.
type ChargeRequest struct {
	Amount         int64
	Currency       string
	Token          string
	Description    string
	Destination    string
	ApplicationFee int64
}

// Charge - результат списания. Комиссии в минимальных единицах валюты.
type Charge struct {
	ID          string
	Amount      int64
	Currency    string
	GatewayFee  int64
	PlatformFee int64
}

// Gateway проводит списания.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// StripeGateway проводит списания через Stripe Connect и подключает аккаунты репетиторов.
type StripeGateway struct {
	api       *client.API
	secretKey string
	clientID  string
}

// NewStripeGateway создаёт шлюз. clientID нужен только для подключения аккаунтов,
// backends - для тестов; при nil используются серверы Stripe.
func NewStripeGateway(secretKey, clientID string, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api, secretKey: secretKey, clientID: clientID}
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	params := &stripe.ChargeParams{
		Amount:               stripe.Int64(req.Amount),
		Currency:             stripe.String(req.Currency),
		Description:          stripe.String(req.Description),
		ApplicationFeeAmount: stripe.Int64(req.ApplicationFee),
		Source:               &stripe.PaymentSourceSourceParams{Token: stripe.String(req.Token)},
	}
	params.Context = ctx
	params.SetStripeAccount(req.Destination)
	params.AddExpand("balance_transaction")

	ch, err := g.api.Charges.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return nil, errors.Wrap(ErrCardDeclined, stripeErr.Msg)
		}
		return nil, errors.Wrap(err, "stripe charge")
	}

	out := &Charge{
		ID:       ch.ID,
		Amount:   ch.Amount,
		Currency: string(ch.Currency),
	}
	if ch.BalanceTransaction != nil {
		for _, fee := range ch.BalanceTransaction.FeeDetails {
			switch fee.Type {
			case "stripe_fee":
				out.GatewayFee = fee.Amount
			case "application_fee":
				out.PlatformFee = fee.Amount
			}
		}
	}
	return out, nil
}

// AuthorizeURL возвращает адрес страницы Stripe, где репетитор разрешает платформе
// проводить платежи от имени своего аккаунта.
func (g *StripeGateway) AuthorizeURL(state string) string {
	return g.api.OAuth.AuthorizeURL(&stripe.AuthorizeURLParams{
		ClientID:     stripe.String(g.clientID),
		ResponseType: stripe.String("code"),
		Scope:        stripe.String("read_write"),
		State:        stripe.String(state),
	})
}

// LinkAccount обменивает код авторизации на id подключённого аккаунта.
func (g *StripeGateway) LinkAccount(ctx context.Context, code string) (string, error) {
	params := &stripe.OAuthTokenParams{
		ClientSecret: stripe.String(g.secretKey),
		Code:         stripe.String(code),
		GrantType:    stripe.String("authorization_code"),
	}
	params.Context = ctx

	token, err := g.api.OAuth.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
			return "", errors.Wrap(ErrLinkRejected, stripeErr.Error())
		}
		return "", errors.Wrap(err, "stripe oauth token")
	}
	if token.StripeUserID == "" {
		return "", errors.New("stripe oauth token has no account id")
	}
	return token.StripeUserID, nil
}
