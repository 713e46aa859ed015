package directory_test

import (
	"testing"

	"github.com/jrsteele09/go-dashboard-core/directory"
	"github.com/jrsteele09/go-dashboard-core/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStore_DefaultSeed(t *testing.T) {
	s := directory.New()
	require.Equal(t, []string{"IT", "HR", "Sales", "Marketing", "Finance", "Administration"}, s.List())
}

func TestStore_WithSeedSkipsBlankAndDuplicates(t *testing.T) {
	s := directory.New(directory.WithSeed(" Ops ", "", "Ops", "Legal"))
	require.Equal(t, []string{"Ops", "Legal"}, s.List())
}

func TestStore_ListIsACopy(t *testing.T) {
	s := directory.New()
	names := s.List()
	names[0] = "Hacked"
	require.Equal(t, "IT", s.List()[0])
}

func TestStore_Add(t *testing.T) {
	s := directory.New(directory.WithSeed())

	require.True(t, s.Add("IT"))
	require.False(t, s.Add("IT"))
	require.False(t, s.Add("  IT  "))
	require.False(t, s.Add("   "))
	require.True(t, s.Add("it"))
	require.True(t, s.Add("  Legal "))
	require.Equal(t, []string{"IT", "it", "Legal"}, s.List())
	require.True(t, s.Contains(" Legal"))
}

func TestStore_Rename(t *testing.T) {
	s := directory.New()

	require.True(t, s.Rename("IT", "IT"))
	require.Len(t, s.List(), 6)

	require.False(t, s.Rename("IT", "HR"))
	require.False(t, s.Rename("IT", " HR "))
	require.False(t, s.Rename("IT", "  "))
	require.False(t, s.Rename("Nope", "Legal"))
	require.Equal(t, directory.DefaultSeed, s.List())

	require.True(t, s.Rename("IT", " Engineering "))
	require.Equal(t, "Engineering", s.List()[0])
}

func TestStore_Remove(t *testing.T) {
	s := directory.New()
	require.False(t, s.Remove("Legal"))
	require.True(t, s.Remove("IT"))
	require.False(t, s.Remove("IT"))
	require.Equal(t, []string{"HR", "Sales", "Marketing", "Finance", "Administration"}, s.List())
}

func TestStore_NotifiesOncePerAppliedMutation(t *testing.T) {
	s := directory.New()
	calls := 0
	var seen [][]string
	unsubscribe := s.Subscribe(func() {
		calls++
		seen = append(seen, s.List())
	})
	defer unsubscribe()

	s.Add("IT")
	s.Rename("IT", "HR")
	s.Remove("Nope")
	s.Add(" ")
	require.Zero(t, calls)

	s.Add("Legal")
	s.Rename("Legal", "Compliance")
	s.Remove("Compliance")
	require.Equal(t, 3, calls)
	require.Contains(t, seen[0], "Legal")
	require.Contains(t, seen[1], "Compliance")
	require.NotContains(t, seen[2], "Compliance")
}

func TestStore_UnsubscribedListenerIsNeverCalled(t *testing.T) {
	s := directory.New()
	var first, second int
	unsubscribeFirst := s.Subscribe(func() { first++ })
	unsubscribeSecond := s.Subscribe(func() { second++ })
	defer unsubscribeSecond()

	s.Add("Legal")
	unsubscribeFirst()
	unsubscribeFirst()
	s.Add("Ops")

	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
}

func TestStore_ListenerRemovedDuringNotification(t *testing.T) {
	s := directory.New()
	var later int
	var unsubscribeLater func()
	unsubscribeEarly := s.Subscribe(func() { unsubscribeLater() })
	defer unsubscribeEarly()
	unsubscribeLater = s.Subscribe(func() { later++ })

	s.Add("Legal")
	require.Zero(t, later)
}

func TestStore_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	s := directory.New(directory.WithMetrics(m))
	s.Add("Legal")
	s.Add("Legal")

	count, err := testutil.GatherAndCount(m.Registry(), "dashboard_directory_mutations_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestStore_EndToEndScenario(t *testing.T) {
	s := directory.New()

	require.True(t, s.Add("Legal"))
	names := s.List()
	require.Len(t, names, 7)
	require.Equal(t, "Legal", names[6])

	require.True(t, s.Remove("HR"))
	require.Equal(t, []string{"IT", "Sales", "Marketing", "Finance", "Administration", "Legal"}, s.List())

	require.True(t, s.Rename("Sales", "Retail"))
	require.Equal(t, []string{"IT", "Retail", "Marketing", "Finance", "Administration", "Legal"}, s.List())
}
