package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"Portfolio/internal/model"
	"Portfolio/internal/ordering"
)

// ErrNotEditing возвращается при отправке без открытого редактирования
var ErrNotEditing = errors.New("no project is being edited")

// ErrBusy возвращается, пока предыдущая отправка не завершилась
var ErrBusy = errors.New("submission already in progress")

// ErrNoPendingDelete возвращается при подтверждении без запроса на удаление
var ErrNoPendingDelete = errors.New("no delete pending confirmation")

// сообщения по умолчанию, если ошибка хранилища пуста
const (
	fallbackUpdate = "Failed to update project"
	fallbackCreate = "Failed to create project"
	fallbackDelete = "Failed to delete project"
	fallbackMove   = "Failed to move project"
	fallbackToggle = "Failed to update visibility"
)

// State состояние контроллера редактирования
type State string

const (
	StateIdle       State = "idle"
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateError      State = "error"
)

// Store описывает операции хранилища, которые вызывает контроллер
type Store interface {
	Create(ctx context.Context, p model.Project) (*model.Project, error)
	Update(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error)
	Delete(ctx context.Context, id string) error
	Move(ctx context.Context, id string, dir ordering.Direction) ([]model.OrderUpdate, error)
}

// Controller единственный владелец указателя редактируемого проекта, буфера и ошибки.
// Одновременно редактируется не более одной записи
type Controller struct {
	mu            sync.Mutex
	store         Store
	now           func() time.Time
	newID         func(time.Time) string
	state         State
	editing       *string
	draft         Draft
	errMsg        string
	pendingDelete *string
}

// NewController создаёт контроллер поверх хранилища
func NewController(store Store) *Controller {
	return &Controller{store: store, now: time.Now, newID: GenerateID, state: StateIdle}
}

// State возвращает текущее состояние
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Editing возвращает id редактируемого проекта
func (c *Controller) Editing() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return "", false
	}
	return *c.editing, true
}

// Error возвращает сообщение последней ошибки для отображения в форме
func (c *Controller) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// BeginEdit переводит контроллер в режим редактирования проекта p и заполняет буфер
func (c *Controller) BeginEdit(p model.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := p.ID
	c.editing = &id
	c.draft = FromProject(p)
	c.errMsg = ""
	c.state = StateEditing
}

// Edit изменяет буфер в рамках владения контроллера
func (c *Controller) Edit(fn func(d *Draft) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return ErrNotEditing
	}
	return fn(&c.draft)
}

// Cancel отбрасывает буфер без обращения к хранилищу
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Controller) reset() {
	c.editing = nil
	c.draft = NewDraft()
	c.errMsg = ""
	c.state = StateIdle
}

// Submit валидирует буфер и отправляет частичное обновление.
// При ошибке валидации хранилище не вызывается; при ошибке хранилища буфер сохраняется
func (c *Controller) Submit(ctx context.Context) (*model.Project, error) {
	c.mu.Lock()
	if c.editing == nil {
		c.mu.Unlock()
		return nil, ErrNotEditing
	}
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if err := c.draft.Validate(); err != nil {
		c.errMsg = err.Error()
		c.state = StateError
		c.mu.Unlock()
		return nil, err
	}
	id := *c.editing
	patch := c.draft.Patch()
	c.state = StateSubmitting
	c.mu.Unlock()

	p, err := c.store.Update(ctx, id, patch)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errMsg = messageOf(err, fallbackUpdate)
		c.state = StateError
		return nil, err
	}
	c.reset()
	return p, nil
}

// Create валидирует буфер формы создания и создаёт проект с умолчаниями
func (c *Controller) Create(ctx context.Context, d Draft) (*model.Project, error) {
	if err := d.Validate(); err != nil {
		c.setError(err.Error())
		return nil, err
	}
	now := c.now()
	p, err := c.store.Create(ctx, NewProject(d, now, c.newID(now)))
	if err != nil {
		c.setError(messageOf(err, fallbackCreate))
		return nil, err
	}
	c.setError("")
	return p, nil
}

// RequestDelete запоминает проект для удаления до подтверждения
func (c *Controller) RequestDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = &id
}

// CancelDelete снимает запрос на удаление
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = nil
}

// ConfirmDelete выполняет жёсткое удаление ранее запрошенного проекта
func (c *Controller) ConfirmDelete(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.pendingDelete == nil {
		c.mu.Unlock()
		return "", ErrNoPendingDelete
	}
	id := *c.pendingDelete
	c.mu.Unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		c.setError(messageOf(err, fallbackDelete))
		return "", err
	}
	c.mu.Lock()
	c.pendingDelete = nil
	if c.editing != nil && *c.editing == id {
		c.reset()
	}
	c.mu.Unlock()
	return id, nil
}

// MoveUp поднимает проект на одну позицию в каноническом порядке
func (c *Controller) MoveUp(ctx context.Context, id string) ([]model.OrderUpdate, error) {
	return c.move(ctx, id, ordering.Up)
}

// MoveDown опускает проект на одну позицию
func (c *Controller) MoveDown(ctx context.Context, id string) ([]model.OrderUpdate, error) {
	return c.move(ctx, id, ordering.Down)
}

func (c *Controller) move(ctx context.Context, id string, dir ordering.Direction) ([]model.OrderUpdate, error) {
	updates, err := c.store.Move(ctx, id, dir)
	if err != nil {
		c.setError(messageOf(err, fallbackMove))
		return nil, err
	}
	return updates, nil
}

// ToggleVisible переключает видимость; состояние меняется только после ответа хранилища
func (c *Controller) ToggleVisible(ctx context.Context, p model.Project) (*model.Project, error) {
	v := !p.Visible
	return c.toggle(ctx, p.ID, model.ProjectPatch{Visible: &v})
}

// ToggleFeatured переключает признак избранного
func (c *Controller) ToggleFeatured(ctx context.Context, p model.Project) (*model.Project, error) {
	v := !p.Featured
	return c.toggle(ctx, p.ID, model.ProjectPatch{Featured: &v})
}

func (c *Controller) toggle(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	updated, err := c.store.Update(ctx, id, patch)
	if err != nil {
		c.setError(messageOf(err, fallbackToggle))
		return nil, err
	}
	return updated, nil
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = msg
}

func messageOf(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
