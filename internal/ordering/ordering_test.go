package ordering

import (
	"testing"

	"github.com/stretchr/testify/require"

	"Portfolio/internal/model"
)

func intPtr(v int) *int { return &v }

func ids(ps []model.Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestSort_CanonicalOrder(t *testing.T) {
	// ранги [5, 9999, 2, 5]; среди двух «5» первым идёт более свежий
	in := []model.Project{
		{ID: "a", Order: intPtr(5), UpdatedAt: 100},
		{ID: "b", Order: intPtr(9999), UpdatedAt: 900},
		{ID: "c", Order: intPtr(2), UpdatedAt: 1},
		{ID: "d", Order: intPtr(5), UpdatedAt: 300},
	}
	out := Sort(in)
	require.Equal(t, []string{"c", "d", "a", "b"}, ids(out))
	// исходный слайс не изменился
	require.Equal(t, []string{"a", "b", "c", "d"}, ids(in))
}

func TestSort_MissingOrderAndTimestamps(t *testing.T) {
	in := []model.Project{
		{ID: "none"},
		{ID: "created", CreatedAt: 50},
		{ID: "ranked", Order: intPtr(10000)},
	}
	out := Sort(in)
	// отсутствующий ранг = 9999, свежесть: updatedAt -> createdAt -> 0
	require.Equal(t, []string{"created", "none", "ranked"}, ids(out))
}

func TestPlanSwap_NoOpAtHeadAndTail(t *testing.T) {
	all := []model.Project{
		{ID: "a", Order: intPtr(1)},
		{ID: "b", Order: intPtr(2)},
		{ID: "c", Order: intPtr(3)},
	}
	up, err := PlanSwap(all, "a", Up)
	require.NoError(t, err)
	require.Nil(t, up)

	down, err := PlanSwap(all, "c", Down)
	require.NoError(t, err)
	require.Nil(t, down)
}

func TestPlanSwap_SwapsValues(t *testing.T) {
	all := []model.Project{
		{ID: "a", Title: "A", Order: intPtr(3), Visible: true},
		{ID: "b", Title: "B", Order: intPtr(7), Visible: false},
	}
	updates, err := PlanSwap(all, "b", Up)
	require.NoError(t, err)
	require.Equal(t, []model.OrderUpdate{{ID: "b", Order: 3}, {ID: "a", Order: 7}}, updates)

	after := Apply(all, updates)
	require.Len(t, after, 2)
	require.Equal(t, 7, *after[0].Order)
	require.Equal(t, 3, *after[1].Order)
	// остальные поля не тронуты
	require.Equal(t, "A", after[0].Title)
	require.False(t, after[1].Visible)
	// исходные значения не мутированы
	require.Equal(t, 3, *all[0].Order)
}

func TestNeighbor_UsesFullSet(t *testing.T) {
	// скрытый проект между двумя видимыми должен учитываться при поиске соседа
	all := []model.Project{
		{ID: "v1", Order: intPtr(1), Visible: true},
		{ID: "hidden", Order: intPtr(2), Visible: false},
		{ID: "v2", Order: intPtr(3), Visible: true},
	}
	n, ok, err := Neighbor(all, "v2", Up)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hidden", n.ID)

	_, _, err = Neighbor(all, "missing", Up)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPlanSwap_DefaultOrderNeighbor(t *testing.T) {
	all := []model.Project{
		{ID: "a", Order: intPtr(4)},
		{ID: "b"},
	}
	updates, err := PlanSwap(all, "a", Down)
	require.NoError(t, err)
	require.Equal(t, []model.OrderUpdate{{ID: "a", Order: model.DefaultOrder}, {ID: "b", Order: 4}}, updates)
}

func TestFilters(t *testing.T) {
	all := []model.Project{
		{ID: "a", Visible: true, Featured: true, Type: model.TypeLiveApp},
		{ID: "b", Visible: false, Featured: true, Type: model.TypeLiveApp},
		{ID: "c", Visible: true, Type: model.TypeRepository},
	}
	require.Equal(t, []string{"a", "c"}, ids(Visible(all)))
	require.Equal(t, []string{"a"}, ids(Featured(all)))
	require.Equal(t, []string{"c"}, ids(ByType(all, model.TypeRepository)))

	d, ok := ParseDirection("down")
	require.True(t, ok)
	require.Equal(t, Down, d)
	_, ok = ParseDirection("left")
	require.False(t, ok)
}
