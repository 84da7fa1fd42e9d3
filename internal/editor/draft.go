// Пакет editor реализует админский сценарий редактирования проекта:
// типизированный буфер формы с набором затронутых полей и контроллер состояний
package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"Portfolio/internal/model"
)

// ErrTitleRequired возвращается, если заголовок пуст после trim
var ErrTitleRequired = errors.New("Title is required")

// ErrInvalidEnum возвращается при неизвестном значении type/status/repoAccess
var ErrInvalidEnum = errors.New("invalid enum value")

// Field имя поля буфера редактирования (совпадает с JSON-ключом)
type Field string

const (
	FieldTitle          Field = "title"
	FieldDescription    Field = "description"
	FieldTags           Field = "tags"
	FieldYear           Field = "year"
	FieldType           Field = "type"
	FieldStatus         Field = "status"
	FieldVisible        Field = "visible"
	FieldFeatured       Field = "featured"
	FieldOrder          Field = "order"
	FieldGithubURL      Field = "githubUrl"
	FieldRepoAccess     Field = "repoAccess"
	FieldHideRepoButton Field = "hideRepoButton"
	FieldDemoURL        Field = "demoUrl"
	FieldAppURL         Field = "appUrl"
)

// Draft типизированный буфер формы проекта.
// Значения хранятся уже приведёнными, touched фиксирует поля, которые менял оператор
type Draft struct {
	title          string
	description    string
	tags           []string
	year           string
	typ            model.ProjectType
	status         model.ProjectStatus
	visible        bool
	featured       bool
	order          int
	githubURL      string
	repoAccess     model.RepoAccess
	hideRepoButton bool
	demoURL        string
	appURL         string

	touched map[Field]struct{}
}

// NewDraft создаёт пустой буфер
func NewDraft() Draft {
	return Draft{order: model.DefaultOrder, touched: map[Field]struct{}{}}
}

// FromProject заполняет буфер текущими значениями проекта, не помечая поля затронутыми
func FromProject(p model.Project) Draft {
	d := NewDraft()
	d.title = p.Title
	d.description = p.Description
	d.tags = append([]string(nil), p.Tags...)
	d.year = p.Year
	d.typ = p.Type
	d.status = p.Status
	d.visible = p.Visible
	d.featured = p.Featured
	if p.Order != nil {
		d.order = *p.Order
	}
	d.githubURL = deref(p.GithubURL)
	d.repoAccess = p.RepoAccess
	d.hideRepoButton = p.HideRepoButton
	d.demoURL = deref(p.DemoURL)
	d.appURL = deref(p.AppURL)
	return d
}

func (d *Draft) touch(f Field) {
	if d.touched == nil {
		d.touched = map[Field]struct{}{}
	}
	d.touched[f] = struct{}{}
}

// Touched сообщает, менялось ли поле
func (d *Draft) Touched(f Field) bool {
	_, ok := d.touched[f]
	return ok
}

func (d *Draft) SetTitle(v string)       { d.title = v; d.touch(FieldTitle) }
func (d *Draft) SetDescription(v string) { d.description = v; d.touch(FieldDescription) }
func (d *Draft) SetYear(v string)        { d.year = v; d.touch(FieldYear) }
func (d *Draft) SetGithubURL(v string)   { d.githubURL = v; d.touch(FieldGithubURL) }
func (d *Draft) SetDemoURL(v string)     { d.demoURL = v; d.touch(FieldDemoURL) }
func (d *Draft) SetAppURL(v string)      { d.appURL = v; d.touch(FieldAppURL) }

// SetTags принимает список или строку через запятую
func (d *Draft) SetTags(v any) { d.tags = ParseTags(v); d.touch(FieldTags) }

// SetOrder принимает строку, число или nil, см. ParseOrder
func (d *Draft) SetOrder(v any) { d.order = ParseOrder(v); d.touch(FieldOrder) }

func (d *Draft) SetVisible(v any)        { d.visible = Truthy(v); d.touch(FieldVisible) }
func (d *Draft) SetFeatured(v any)       { d.featured = Truthy(v); d.touch(FieldFeatured) }
func (d *Draft) SetHideRepoButton(v any) { d.hideRepoButton = Truthy(v); d.touch(FieldHideRepoButton) }

func (d *Draft) SetType(v model.ProjectType)     { d.typ = v; d.touch(FieldType) }
func (d *Draft) SetStatus(v model.ProjectStatus) { d.status = v; d.touch(FieldStatus) }
func (d *Draft) SetRepoAccess(v model.RepoAccess) {
	d.repoAccess = v
	d.touch(FieldRepoAccess)
}

// Title возвращает текущее значение заголовка в буфере
func (d *Draft) Title() string { return d.title }

// Order возвращает приведённый ранг
func (d *Draft) Order() int { return d.order }

// UnmarshalJSON разбирает тело формы, помечая затронутыми только присланные ключи.
// Неизвестные ключи игнорируются
func (d *Draft) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if d.touched == nil {
		*d = NewDraft()
	}
	for key, msg := range raw {
		var v any
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		switch Field(key) {
		case FieldTitle:
			d.SetTitle(asString(v))
		case FieldDescription:
			d.SetDescription(asString(v))
		case FieldTags:
			d.SetTags(v)
		case FieldYear:
			d.SetYear(asString(v))
		case FieldType:
			d.SetType(model.ProjectType(asString(v)))
		case FieldStatus:
			d.SetStatus(model.ProjectStatus(asString(v)))
		case FieldVisible:
			d.SetVisible(v)
		case FieldFeatured:
			d.SetFeatured(v)
		case FieldOrder:
			d.SetOrder(v)
		case FieldGithubURL:
			d.SetGithubURL(asString(v))
		case FieldRepoAccess:
			d.SetRepoAccess(model.RepoAccess(asString(v)))
		case FieldHideRepoButton:
			d.SetHideRepoButton(v)
		case FieldDemoURL:
			d.SetDemoURL(asString(v))
		case FieldAppURL:
			d.SetAppURL(asString(v))
		}
	}
	return nil
}

// Validate проверяет буфер перед отправкой в хранилище
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.title) == "" {
		return ErrTitleRequired
	}
	if d.Touched(FieldType) && !d.typ.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidEnum, d.typ)
	}
	if d.Touched(FieldStatus) && !d.status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidEnum, d.status)
	}
	if d.Touched(FieldRepoAccess) && !d.repoAccess.Valid() {
		return fmt.Errorf("%w: repoAccess %q", ErrInvalidEnum, d.repoAccess)
	}
	return nil
}

// Patch собирает частичное обновление только из затронутых полей.
// Пустые после trim ссылки в патч не попадают
func (d *Draft) Patch() model.ProjectPatch {
	var pt model.ProjectPatch
	if d.Touched(FieldTitle) {
		v := strings.TrimSpace(d.title)
		pt.Title = &v
	}
	if d.Touched(FieldDescription) {
		v := d.description
		pt.Description = &v
	}
	if d.Touched(FieldTags) {
		v := append([]string{}, d.tags...)
		pt.Tags = &v
	}
	if d.Touched(FieldYear) {
		v := d.year
		pt.Year = &v
	}
	if d.Touched(FieldType) {
		v := d.typ
		pt.Type = &v
	}
	if d.Touched(FieldStatus) {
		v := d.status
		pt.Status = &v
	}
	if d.Touched(FieldVisible) {
		v := d.visible
		pt.Visible = &v
	}
	if d.Touched(FieldFeatured) {
		v := d.featured
		pt.Featured = &v
	}
	if d.Touched(FieldOrder) {
		v := d.order
		pt.Order = &v
	}
	if d.Touched(FieldRepoAccess) {
		v := d.repoAccess
		pt.RepoAccess = &v
	}
	if d.Touched(FieldHideRepoButton) {
		v := d.hideRepoButton
		pt.HideRepoButton = &v
	}
	if d.Touched(FieldGithubURL) {
		pt.GithubURL = trimmedURL(d.githubURL)
	}
	if d.Touched(FieldDemoURL) {
		pt.DemoURL = trimmedURL(d.demoURL)
	}
	if d.Touched(FieldAppURL) {
		pt.AppURL = trimmedURL(d.appURL)
	}
	return pt
}

// NewProject собирает новую запись из буфера с умолчаниями формы создания
func NewProject(d Draft, now time.Time, id string) model.Project {
	p := model.Project{
		ID:          id,
		Title:       strings.TrimSpace(d.title),
		Description: d.description,
		Tags:        []string{},
		Year:        strconv.Itoa(now.Year()),
		Type:        model.TypeRepository,
		Status:      model.StatusActive,
		Visible:     true,
		RepoAccess:  model.AccessPublic,
	}
	order := model.DefaultOrder
	if d.Touched(FieldOrder) {
		order = d.order
	}
	p.Order = &order
	if d.Touched(FieldTags) {
		p.Tags = append(p.Tags, d.tags...)
	}
	if d.Touched(FieldYear) && strings.TrimSpace(d.year) != "" {
		p.Year = strings.TrimSpace(d.year)
	}
	if d.Touched(FieldType) {
		p.Type = d.typ
	}
	if d.Touched(FieldStatus) {
		p.Status = d.status
	}
	if d.Touched(FieldVisible) {
		p.Visible = d.visible
	}
	if d.Touched(FieldFeatured) {
		p.Featured = d.featured
	}
	if d.Touched(FieldRepoAccess) {
		p.RepoAccess = d.repoAccess
	}
	p.HideRepoButton = d.hideRepoButton
	p.GithubURL = trimmedURL(d.githubURL)
	p.DemoURL = trimmedURL(d.demoURL)
	p.AppURL = trimmedURL(d.appURL)
	return p
}

// GenerateID возвращает идентификатор вида project-<epoch-ms>-<suffix>
func GenerateID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("project-%d-%s", now.UnixMilli(), suffix)
}

// ParseOrder приводит ввод ранга к целому.
// Строка разбирается как ведущее целое ("3.7" -> 3), нераспознанный ввод даёт DefaultOrder
func ParseOrder(v any) int {
	switch x := v.(type) {
	case nil:
		return model.DefaultOrder
	case int:
		return orderInRange(int64(x))
	case int64:
		return orderInRange(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return model.DefaultOrder
		}
		x = math.Trunc(x)
		if x < math.MinInt32 || x > math.MaxInt32 {
			return model.DefaultOrder
		}
		return int(x)
	case json.Number:
		return parseLeadingInt(x.String())
	case string:
		return parseLeadingInt(x)
	}
	return model.DefaultOrder
}

// parseLeadingInt разбирает необязательный знак и ведущие цифры после пробелов
func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return model.DefaultOrder
	}
	n, err := strconv.ParseInt(s[:end], 10, 32)
	if err != nil {
		return model.DefaultOrder
	}
	return int(n)
}

// orderInRange отбрасывает значения, не помещающиеся в столбец sort_order INTEGER
func orderInRange(n int64) int {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return model.DefaultOrder
	}
	return int(n)
}

// ParseTags принимает список строк или строку через запятую, пустые элементы отбрасываются
func ParseTags(v any) []string {
	out := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch x := v.(type) {
	case string:
		for _, part := range strings.Split(x, ",") {
			add(part)
		}
	case []string:
		for _, s := range x {
			add(s)
		}
	case []any:
		for _, s := range x {
			if str, ok := s.(string); ok {
				add(str)
			}
		}
	}
	return out
}

// Truthy приводит значение к bool: строки через strconv.ParseBool, иначе по непустоте
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	}
	return true
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func trimmedURL(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
