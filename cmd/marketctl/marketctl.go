// marketctl - служебная утилита: заводит пользователей и категории и выпускает
// токены API. Регистрации и входа в сервисе нет, учётные записи создаёт оператор.
//
//	marketctl user -username bob -email bob@example.com -role tutor
//	marketctl category -title Physics -description "Mechanics and optics"
//	marketctl token -username bob -ttl 24h
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"tutormarket/db"
	"tutormarket/internal/auth"
	"tutormarket/internal/config"
	"tutormarket/models"
	"tutormarket/pkg/logging"
)

// adminStore - операции хранилища, доступные утилите.
type adminStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateCategory(ctx context.Context, c *models.Category) error
}

func main() {
	logging.Setup()
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("cannot connect to DB", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(ctx, os.Args[1:], store, cfg.JWTSecret, os.Stdout); err != nil {
		slog.Error("marketctl failed", "error", err)
		store.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, store adminStore, jwtSecret string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: marketctl user|category|token [flags]")
	}
	switch args[0] {
	case "user":
		return createUser(ctx, args[1:], store, out)
	case "category":
		return createCategory(ctx, args[1:], store, out)
	case "token":
		return issueToken(ctx, args[1:], store, jwtSecret, out)
	default:
		return errors.Errorf("unknown command %q", args[0])
	}
}

func createUser(ctx context.Context, args []string, store adminStore, out io.Writer) error {
	fs := flag.NewFlagSet("user", flag.ContinueOnError)
	fs.SetOutput(out)
	u := &models.User{}
	var role string
	fs.StringVar(&u.Username, "username", "", "login name (required)")
	fs.StringVar(&u.Email, "email", "", "email for notifications")
	fs.StringVar(&u.FirstName, "first", "", "first name")
	fs.StringVar(&u.LastName, "last", "", "last name")
	fs.StringVar(&role, "role", string(models.RoleStudent), "student or tutor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return errors.New("-username is required")
	}
	u.Role = models.Role(strings.ToLower(role))
	if err := store.CreateUser(ctx, u); err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s %s with id %d\n", u.Role, u.Username, u.ID)
	return nil
}

func createCategory(ctx context.Context, args []string, store adminStore, out io.Writer) error {
	fs := flag.NewFlagSet("category", flag.ContinueOnError)
	fs.SetOutput(out)
	c := &models.Category{}
	fs.StringVar(&c.Title, "title", "", "category title (required)")
	fs.StringVar(&c.Description, "description", "", "category description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return errors.New("-title is required")
	}
	if err := store.CreateCategory(ctx, c); err != nil {
		return err
	}
	fmt.Fprintf(out, "created category %q with id %d\n", c.Title, c.ID)
	return nil
}

func issueToken(ctx context.Context, args []string, store adminStore, jwtSecret string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "user to issue the token for (required)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("-username is required")
	}
	if *ttl <= 0 {
		return errors.New("-ttl must be positive")
	}

	u, err := store.GetUserByUsername(ctx, *username)
	if err != nil {
		return err
	}
	token, err := auth.NewJWTManager(jwtSecret, *ttl).Generate(u)
	if err != nil {
		return errors.Wrap(err, "issue token")
	}
	fmt.Fprintln(out, token)
	return nil
}
