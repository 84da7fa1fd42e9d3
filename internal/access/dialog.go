package access

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"Portfolio/internal/model"
)

// ErrCannotSubmit возвращается, если форма не готова к отправке
var ErrCannotSubmit = errors.New("email and name are required")

const fallbackSubmit = "Failed to submit request. Please try again."

// Submitter отправляет форму запроса доступа
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (*Outcome, error)
}

// Navigator открывает ссылку в новой вкладке
type Navigator interface {
	OpenNewTab(url string)
}

// Alerter показывает блокирующее сообщение об ошибке
type Alerter interface {
	Alert(msg string)
}

// Dialog хранит состояние диалога запроса доступа на стороне посетителя
type Dialog struct {
	mu         sync.Mutex
	svc        Submitter
	nav        Navigator
	alert      Alerter
	after      func(d time.Duration, fn func())
	open       bool
	project    model.Project
	email      string
	name       string
	company    string
	message    string
	submitting bool
	success    bool
}

// NewDialog создаёт диалог; отложенные действия выполняются через time.AfterFunc
func NewDialog(svc Submitter, nav Navigator, alert Alerter) *Dialog {
	return &Dialog{
		svc:   svc,
		nav:   nav,
		alert: alert,
		after: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// Open открывает диалог для проекта
func (d *Dialog) Open(p model.Project) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.project = p
	d.open = true
}

// IsOpen сообщает, открыт ли диалог
func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Succeeded сообщает, что отправка прошла и показывается подтверждение
func (d *Dialog) Succeeded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.success
}

// Fill задаёт значения полей формы
func (d *Dialog) Fill(email, name, company, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.email, d.name, d.company, d.message = email, name, company, message
}

// Values возвращает введённые email и имя
func (d *Dialog) Values() (email, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.email, d.name
}

// CanSubmit: кнопка активна только при заполненных email и имени
func (d *Dialog) CanSubmit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canSubmit()
}

func (d *Dialog) canSubmit() bool {
	return !d.submitting && strings.TrimSpace(d.email) != "" && strings.TrimSpace(d.name) != ""
}

// Submit отправляет форму. При успехе планирует редирект (для public) и закрытие;
// при ошибке показывает alert и оставляет диалог открытым с введёнными данными
func (d *Dialog) Submit(ctx context.Context) error {
	d.mu.Lock()
	if !d.canSubmit() {
		d.mu.Unlock()
		return ErrCannotSubmit
	}
	req := SubmitRequest{ProjectID: d.project.ID, Email: d.email, Name: d.name}
	if d.company != "" {
		c := d.company
		req.Company = &c
	}
	if d.message != "" {
		m := d.message
		req.Message = &m
	}
	d.submitting = true
	d.mu.Unlock()

	out, err := d.svc.Submit(ctx, req)

	d.mu.Lock()
	d.submitting = false
	if err != nil {
		d.mu.Unlock()
		msg := err.Error()
		if msg == "" {
			msg = fallbackSubmit
		}
		d.alert.Alert(msg)
		return err
	}
	d.success = true
	d.mu.Unlock()

	d.after(out.CloseAfter, func() {
		if out.Action == ActionRedirect && out.RedirectURL != "" {
			d.nav.OpenNewTab(out.RedirectURL)
		}
		d.close()
	})
	return nil
}

// Close закрывает диалог и сбрасывает форму
func (d *Dialog) Close() {
	d.close()
}

func (d *Dialog) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.success = false
	d.email, d.name, d.company, d.message = "", "", "", ""
}
