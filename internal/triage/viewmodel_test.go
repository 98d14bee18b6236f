package triage

import (
	"testing"

	"portfolio-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []domain.ContactMessage {
	return []domain.ContactMessage{
		{ID: "m5", Name: "Ana Lopez", Email: "ana@x.com", Message: "Hola, quiero cotizar un sitio web", Date: "2026-10-05T10:00:00.000Z", Status: domain.StatusNew},
		{ID: "m4", Name: "Bruno Diaz", Email: "bruno@acme.io", Message: "Need a landing page", Date: "2026-10-04T10:00:00.000Z", Status: domain.StatusNew},
		{ID: "m3", Name: "Carla", Email: "carla@studio.cl", Message: "Consulta por logo", Date: "2026-10-03T10:00:00.000Z", Status: domain.StatusRead},
		{ID: "m2", Name: "Diego", Email: "diego@mail.com", Message: "Gracias por la respuesta", Date: "2026-10-02T10:00:00.000Z", Status: domain.StatusReplied},
		{ID: "m1", Name: "Eva", Email: "EVA@Example.org", Message: "Presupuesto para tienda online", Date: "2026-10-01T10:00:00.000Z", Status: domain.StatusNew},
	}
}

func ids(msgs []domain.ContactMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestKPIsIgnoreSearchAndFilter(t *testing.T) {
	vm := NewViewModel()
	vm.SetMessages(sample())

	for _, f := range Filters {
		vm.SetStatusFilter(f)
		vm.SetSearchTerm("zzz")
		k := vm.KPIs()
		assert.Equal(t, 5, k.Total, f)
		assert.Equal(t, 3, k.New, f)
	}
}

func TestVisibleByStatusPreservesOrder(t *testing.T) {
	msgs := append(sample(), domain.ContactMessage{ID: "m0", Name: "Fer", Email: "f@f.co", Message: "Otra respuesta", Status: domain.StatusReplied})
	vm := NewViewModel()
	vm.SetMessages(msgs)
	vm.SetStatusFilter(FilterReplied)

	assert.Equal(t, []string{"m2", "m0"}, ids(vm.Visible()))
}

func TestVisibleSearch(t *testing.T) {
	vm := NewViewModel()
	vm.SetMessages(sample())

	t.Run("Empty term matches all", func(t *testing.T) {
		vm.SetSearchTerm("")
		assert.Len(t, vm.Visible(), 5)
	})

	t.Run("Case insensitive across fields", func(t *testing.T) {
		vm.SetSearchTerm("ANA")
		assert.Equal(t, []string{"m5"}, ids(vm.Visible()))

		vm.SetSearchTerm("example")
		assert.Equal(t, []string{"m1"}, ids(vm.Visible()))

		vm.SetSearchTerm("landing")
		assert.Equal(t, []string{"m4"}, ids(vm.Visible()))
	})

	t.Run("Search AND filter", func(t *testing.T) {
		vm.SetSearchTerm("o")
		vm.SetStatusFilter(FilterRead)
		assert.Equal(t, []string{"m3"}, ids(vm.Visible()))
	})

	// Source sequence is untouched by filtering.
	assert.Len(t, vm.Messages(), 5)
}

func TestSelectUnknownIsNoop(t *testing.T) {
	vm := NewViewModel()
	vm.SetMessages(sample())

	require.True(t, vm.Select("m3"))
	assert.False(t, vm.Select("missing"))

	sel, ok := vm.Selected()
	require.True(t, ok)
	assert.Equal(t, "m3", sel.ID)
}

func TestSnapshotWithoutSelectedClearsSelection(t *testing.T) {
	vm := NewViewModel()
	vm.SetMessages(sample())
	require.True(t, vm.Select("m2"))

	var next []domain.ContactMessage
	for _, m := range sample() {
		if m.ID != "m2" {
			next = append(next, m)
		}
	}
	vm.SetMessages(next)

	_, ok := vm.Selected()
	assert.False(t, ok)
}

func TestOptimisticStatusOverwrittenBySnapshot(t *testing.T) {
	vm := NewViewModel()
	vm.SetMessages(sample())
	require.True(t, vm.Select("m5"))

	vm.ApplyStatus("m5", domain.StatusReplied)
	sel, _ := vm.Selected()
	assert.Equal(t, domain.StatusReplied, sel.Status)
	// The sequence itself is not patched.
	assert.Equal(t, 3, vm.KPIs().New)

	next := sample()
	next[0].Status = domain.StatusRead
	vm.SetMessages(next)
	sel, _ = vm.Selected()
	assert.Equal(t, domain.StatusRead, sel.Status)
}

func TestForget(t *testing.T) {
	vm := NewViewModel()
	vm.SetMessages(sample())
	require.True(t, vm.Select("m4"))

	vm.Forget("m1")
	_, ok := vm.Selected()
	assert.True(t, ok)

	vm.Forget("m4")
	_, ok = vm.Selected()
	assert.False(t, ok)
}

func TestParseFilter(t *testing.T) {
	f, ok := ParseFilter("Replied")
	assert.True(t, ok)
	assert.Equal(t, FilterReplied, f)

	f, ok = ParseFilter("")
	assert.True(t, ok)
	assert.Equal(t, FilterAll, f)

	f, ok = ParseFilter("archived")
	assert.False(t, ok)
	assert.Equal(t, FilterAll, f)
}
