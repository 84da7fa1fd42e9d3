// Пакет ordering содержит чистые функции упорядочивания проектов портфолио:
// канонический порядок, поиск соседа для перемещения и план обмена рангами
package ordering

import (
	"errors"
	"sort"

	"Portfolio/internal/model"
)

// ErrNotFound возвращается, если проект отсутствует в полном наборе
var ErrNotFound = errors.New("project not found in ordering set")

// Direction направление перемещения проекта
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection разбирает направление из запроса
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case Up:
		return Up, true
	case Down:
		return Down, true
	}
	return "", false
}

// EffectiveOrder возвращает ранг проекта, отсутствующий ранг считается DefaultOrder
func EffectiveOrder(p model.Project) int {
	if p.Order == nil {
		return model.DefaultOrder
	}
	return *p.Order
}

// Recency возвращает метку свежести: updatedAt, иначе createdAt, иначе 0
func Recency(p model.Project) int64 {
	if p.UpdatedAt != 0 {
		return p.UpdatedAt
	}
	return p.CreatedAt
}

// Less задаёт канонический порядок: ранг по возрастанию, затем свежесть по убыванию
func Less(a, b model.Project) bool {
	oa, ob := EffectiveOrder(a), EffectiveOrder(b)
	if oa != ob {
		return oa < ob
	}
	return Recency(a) > Recency(b)
}

// Sort возвращает отсортированную копию, исходный слайс не меняется
func Sort(projects []model.Project) []model.Project {
	out := make([]model.Project, len(projects))
	copy(out, projects)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// indexOf ищет проект по внешнему id в уже отсортированном слайсе
func indexOf(sorted []model.Project, id string) int {
	for i := range sorted {
		if sorted[i].ID == id {
			return i
		}
	}
	return -1
}

// Neighbor возвращает соседа проекта id в каноническом порядке ПОЛНОГО набора.
// ok=false означает, что перемещение ничего не меняет (голова при Up, хвост при Down)
func Neighbor(all []model.Project, id string, dir Direction) (model.Project, bool, error) {
	sorted := Sort(all)
	i := indexOf(sorted, id)
	if i < 0 {
		return model.Project{}, false, ErrNotFound
	}
	switch dir {
	case Up:
		if i == 0 {
			return model.Project{}, false, nil
		}
		return sorted[i-1], true, nil
	case Down:
		if i == len(sorted)-1 {
			return model.Project{}, false, nil
		}
		return sorted[i+1], true, nil
	}
	return model.Project{}, false, nil
}

// PlanSwap вычисляет два обновления ранга для перемещения проекта.
// Обмен идёт по значениям: проект получает ранг соседа, а сосед исходный ранг проекта.
// nil без ошибки означает no-op
func PlanSwap(all []model.Project, id string, dir Direction) ([]model.OrderUpdate, error) {
	sorted := Sort(all)
	i := indexOf(sorted, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	neighbor, ok, err := Neighbor(sorted, id, dir)
	if err != nil || !ok {
		return nil, err
	}
	self := sorted[i]
	return []model.OrderUpdate{
		{ID: self.ID, Order: EffectiveOrder(neighbor)},
		{ID: neighbor.ID, Order: EffectiveOrder(self)},
	}, nil
}

// Apply применяет обновления рангов к копии набора; прочие поля не меняются
func Apply(all []model.Project, updates []model.OrderUpdate) []model.Project {
	byID := make(map[string]int, len(updates))
	for _, u := range updates {
		byID[u.ID] = u.Order
	}
	out := make([]model.Project, len(all))
	copy(out, all)
	for i := range out {
		if o, ok := byID[out[i].ID]; ok {
			v := o
			out[i].Order = &v
		}
	}
	return out
}

// Visible оставляет только видимые проекты, сохраняя порядок
func Visible(projects []model.Project) []model.Project {
	return filter(projects, func(p model.Project) bool { return p.Visible })
}

// Featured оставляет видимые и отмеченные проекты
func Featured(projects []model.Project) []model.Project {
	return filter(projects, func(p model.Project) bool { return p.Visible && p.Featured })
}

// ByType оставляет видимые проекты заданного типа
func ByType(projects []model.Project, t model.ProjectType) []model.Project {
	return filter(projects, func(p model.Project) bool { return p.Visible && p.Type == t })
}

func filter(projects []model.Project, keep func(model.Project) bool) []model.Project {
	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
