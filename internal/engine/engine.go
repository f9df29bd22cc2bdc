package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"reminderdesk/internal/alert"
	"reminderdesk/internal/config"
	"reminderdesk/internal/events"
	"reminderdesk/internal/metrics"
	"reminderdesk/internal/repo"
	"reminderdesk/internal/visibility"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Engine applies reminder lifecycle operations against the store. Every
// mutation runs validate -> begin -> read -> check -> write -> event -> commit.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Resolver visibility.Resolver
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{},
		Config:   cfg,
		Resolver: visibility.NewResolver(cfg),
		Logger:   zap.NewNop(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Location is the zone reminder dates and times are interpreted in.
func (e Engine) Location() *time.Location {
	if e.Config == nil {
		return time.Local
	}
	loc, err := e.Config.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

// Evaluator builds the alert evaluator from the configured window and zone.
func (e Engine) Evaluator() alert.Evaluator {
	w := alert.DefaultWindow
	if e.Config != nil {
		w = alert.Window{Early: e.Config.AlertEarly(), Grace: e.Config.AlertGrace()}
	}
	return alert.NewEvaluator(w, e.Location())
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// fail records store failures before handing the error back.
func (e Engine) fail(op string, err error) error {
	var se StoreError
	if errors.As(err, &se) {
		e.Metrics.StoreError(op)
		e.log().Error("store failure", zap.String("op", op), zap.Error(se.Err))
	}
	return err
}

func (e Engine) begin(ctx context.Context, op string) (*sql.Tx, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, e.fail(op, StoreError{Op: op, Err: err})
	}
	return tx, nil
}

func (e Engine) commit(tx *sql.Tx, op string) error {
	if err := tx.Commit(); err != nil {
		return e.fail(op, StoreError{Op: op, Err: err})
	}
	return nil
}
