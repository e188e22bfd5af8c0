package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/andrasnagy-data/authscreen/internal/shared/gateway"
	"github.com/andrasnagy-data/authscreen/internal/shared/metrics"
)

// Operation names one of the three authentication requests
type Operation string

const (
	OpRegister Operation = "register"
	OpLogin    Operation = "login"
	OpLogout   Operation = "logout"
)

var ErrUnknownOperation = errors.New("unknown operation")

type (
	// Poster issues a request and delivers its single outcome on the returned channel
	Poster interface {
		Post(ctx context.Context, req gateway.Request) <-chan gateway.Outcome
	}

	// Notifier shows a message to the user
	Notifier interface {
		Show(message string)
	}

	// Controller turns form state into requests and request outcomes into messages
	Controller struct {
		gateway Poster
		sink    Notifier
		forms   *Forms
		logger  zerolog.Logger

		// serializes Show so messages are delivered one at a time
		showMu  sync.Mutex
		pending sync.WaitGroup
	}
)

// ParseOperation maps a user-facing action name to an Operation
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OpRegister, OpLogin, OpLogout:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}
}

// Title is the capitalised label used in messages
func (op Operation) Title() string {
	switch op {
	case OpRegister:
		return "Register"
	case OpLogin:
		return "Login"
	case OpLogout:
		return "Logout"
	default:
		return string(op)
	}
}

func NewController(gw Poster, sink Notifier, forms *Forms, logger zerolog.Logger) *Controller {
	return &Controller{
		gateway: gw,
		sink:    sink,
		forms:   forms,
		logger:  logger.With().Str("component", "controller").Logger(),
	}
}

// Register posts the registration form to /register without the session credential
func (c *Controller) Register(ctx context.Context) {
	c.submit(ctx, OpRegister, c.forms.Register, false)
}

// Login posts the login form to /login, sending and accepting the session credential
func (c *Controller) Login(ctx context.Context) {
	c.submit(ctx, OpLogin, c.forms.Login, true)
}

// Logout posts the login form to /logout, sending and accepting the session credential
func (c *Controller) Logout(ctx context.Context) {
	c.submit(ctx, OpLogout, c.forms.Login, true)
}

// Run triggers op
func (c *Controller) Run(ctx context.Context, op Operation) error {
	switch op {
	case OpRegister:
		c.Register(ctx)
	case OpLogin:
		c.Login(ctx)
	case OpLogout:
		c.Logout(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	return nil
}

// Wait blocks until every submitted request has been reported to the user
func (c *Controller) Wait() {
	c.pending.Wait()
}

func (c *Controller) submit(ctx context.Context, op Operation, form *Form, withCredentials bool) {
	creds := form.Value()

	c.logger.Debug().
		Str("operation", string(op)).
		Str("form", form.Name()).
		Str("name", creds.Name).
		Msg("Submitting")

	c.pending.Add(1)
	metrics.ScreenInFlight.Inc()

	outcomes := c.gateway.Post(ctx, gateway.Request{
		Path:            "/" + string(op),
		Body:            creds,
		WithCredentials: withCredentials,
	})

	go func() {
		defer c.pending.Done()
		defer metrics.ScreenInFlight.Dec()

		outcome, ok := <-outcomes
		if !ok {
			c.logger.Error().Str("operation", string(op)).Msg("Gateway closed without an outcome")
			return
		}
		c.report(op, outcome)
	}()
}

func (c *Controller) report(op Operation, outcome gateway.Outcome) {
	message := Message(op, outcome)

	if outcome.Succeeded() {
		metrics.ScreenOutcomesTotal.WithLabelValues(string(op), "success").Inc()
		c.logger.Debug().Str("operation", string(op)).Msg("Request completed")
	} else {
		metrics.ScreenOutcomesTotal.WithLabelValues(string(op), "failure").Inc()
		c.logger.Debug().
			Str("operation", string(op)).
			Int("status", outcome.Failure.Status).
			RawJSON("payload", outcome.Failure.Payload).
			Msg("Request failed")
	}

	c.showMu.Lock()
	defer c.showMu.Unlock()
	c.sink.Show(message)
}

// Message formats the user-facing text for an outcome of op
func Message(op Operation, outcome gateway.Outcome) string {
	if outcome.Succeeded() {
		return op.Title() + " completed"
	}
	payload := outcome.Failure.Payload
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return fmt.Sprintf("%s error: %s", op.Title(), payload)
}
