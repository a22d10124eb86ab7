package fixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razeghi71/kqlmock/table"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestGenerateTables(t *testing.T) {
	tables := Generate(now, 1)

	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.Name)
		assert.NotEmpty(t, tbl.Rows, tbl.Name)
	}
	assert.Equal(t, []string{Vessels, BatteryReadings, VesselMaintenance, AlertsAndEvents, ChargingSessions, EnergyConsumption}, names)
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(now, 42)
	b := Generate(now, 42)
	c := Generate(now, 43)

	for i := range a {
		require.Equal(t, len(a[i].Rows), len(b[i].Rows))
		for j := range a[i].Rows {
			assert.Equal(t, a[i].Rows[j].Native(), b[i].Rows[j].Native())
		}
	}
	assert.NotEqual(t, a[1].Rows[0].Native(), c[1].Rows[0].Native())
}

func TestTimestampsInWindow(t *testing.T) {
	for _, tbl := range Generate(now, 7) {
		if tbl.ColIndex("timestamp") < 0 {
			continue
		}
		for _, row := range tbl.Rows {
			v := row.Get("timestamp")
			require.Equal(t, table.TypeTime, v.Type)
			assert.False(t, v.Time.After(now), tbl.Name)
			assert.False(t, v.Time.Before(now.Add(-Window)), tbl.Name)
		}
	}
}

func TestRowsFollowColumns(t *testing.T) {
	for _, tbl := range Generate(now, 3) {
		for _, row := range tbl.Rows {
			assert.Equal(t, tbl.Columns, row.Keys(), tbl.Name)
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := Registry(now, 1)
	assert.Equal(t, []string{AlertsAndEvents, BatteryReadings, ChargingSessions, EnergyConsumption, VesselMaintenance, Vessels}, reg.Names())

	rows, err := reg.Resolve(t.Context(), BatteryReadings)
	require.NoError(t, err)
	assert.Len(t, rows, 240)
}
