package screen

import (
	"errors"
	"sync"
)

const (
	RegisterForm = "register"
	LoginForm    = "login"
)

var ErrUnknownForm = errors.New("unknown form")

type (
	// Credentials is the name and password pair entered by the user
	Credentials struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	// Form holds the live field values of one credentials form. Any string is accepted.
	Form struct {
		name  string
		mu    sync.RWMutex
		value Credentials
	}

	// Forms is the pair of forms on the screen. Logout reads the login form.
	Forms struct {
		Register *Form
		Login    *Form
	}
)

func NewForm(name string) *Form {
	return &Form{name: name}
}

func NewForms() *Forms {
	return &Forms{
		Register: NewForm(RegisterForm),
		Login:    NewForm(LoginForm),
	}
}

// Lookup returns the form called name
func (f *Forms) Lookup(name string) (*Form, error) {
	switch name {
	case RegisterForm:
		return f.Register, nil
	case LoginForm:
		return f.Login, nil
	default:
		return nil, ErrUnknownForm
	}
}

func (f *Form) Name() string {
	return f.name
}

// Value returns a snapshot of the current field values
func (f *Form) Value() Credentials {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

func (f *Form) Set(c Credentials) {
	f.mu.Lock()
	f.value = c
	f.mu.Unlock()
}

func (f *Form) SetName(name string) {
	f.mu.Lock()
	f.value.Name = name
	f.mu.Unlock()
}

func (f *Form) SetPassword(password string) {
	f.mu.Lock()
	f.value.Password = password
	f.mu.Unlock()
}
