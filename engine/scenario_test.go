package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razeghi71/kqlmock/parser"
	"github.com/razeghi71/kqlmock/table"
)

func TestScenarioRecentReadingsForVessel(t *testing.T) {
	br := newTable("BatteryReadings",
		table.RowOf("timestamp", hoursAgo(3), "vesselName", "Atlantic Carrier", "batteryBank", "A", "voltage", 48.2, "current", 12.0),
		table.RowOf("timestamp", hoursAgo(36), "vesselName", "Atlantic Carrier", "batteryBank", "B", "voltage", 47.9, "current", 11.0),
		table.RowOf("timestamp", hoursAgo(2), "vesselName", "Nordic Star", "batteryBank", "A", "voltage", 46.1, "current", 9.5),
	)
	e := newTestEngine(Options{}, br)

	res := runQuery(t, e, `BatteryReadings
| where timestamp >= ago(24h)
| where vesselName == "Atlantic Carrier"
| project timestamp, batteryBank, voltage`)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"timestamp", "batteryBank", "voltage"}, res.Columns)
	assert.Equal(t, "A", res.Rows[0].Get("batteryBank").Str)
	assert.Equal(t, 48.2, res.Rows[0].Get("voltage").Float)
}

func TestScenarioTopPendingMaintenance(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 7, d, 9, 0, 0, 0, time.UTC) }
	var rows []*table.Row
	for i, d := range []int{12, 3, 27, 8, 19, 1} {
		rows = append(rows, table.RowOf("maintenanceId", "P"+string(rune('0'+i)), "status", "pending", "scheduledDate", day(d)))
	}
	for i, d := range []int{2, 4, 6, 9} {
		rows = append(rows, table.RowOf("maintenanceId", "C"+string(rune('0'+i)), "status", "completed", "scheduledDate", day(d)))
	}
	e := newTestEngine(Options{}, newTable("VesselMaintenance", rows...))

	res := runQuery(t, e, `VesselMaintenance | where status == "pending" | top 5 by scheduledDate`)
	require.Len(t, res.Rows, 5)
	want := []int{1, 3, 8, 12, 19}
	for i, r := range res.Rows {
		assert.Equal(t, "pending", r.Get("status").Str)
		assert.Equal(t, day(want[i]), r.Get("scheduledDate").Time)
	}
}

func TestScenarioAverageVoltageByVessel(t *testing.T) {
	br := newTable("BatteryReadings",
		table.RowOf("vesselName", "Nordic Star", "voltage", 46.0),
		table.RowOf("vesselName", "Atlantic Carrier", "voltage", 48.0),
		table.RowOf("vesselName", "Nordic Star", "voltage", 47.0),
		table.RowOf("vesselName", "Atlantic Carrier", "voltage", 49.0),
		table.RowOf("vesselName", "Nordic Star", "voltage", 45.5),
		table.RowOf("vesselName", "Atlantic Carrier", "voltage", 50.0),
	)
	e := newTestEngine(Options{}, br)

	res := runQuery(t, e, "BatteryReadings | summarize avg(voltage), count() by vesselName")
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []string{"vesselName", "avg(voltage)", "count()"}, res.Columns)

	assert.Equal(t, "Atlantic Carrier", res.Rows[0].Get("vesselName").Str)
	assert.InDelta(t, 49.0, res.Rows[0].Get("avg(voltage)").Float, 1e-9)
	assert.Equal(t, int64(3), res.Rows[0].Get("count()").Int)

	assert.Equal(t, "Nordic Star", res.Rows[1].Get("vesselName").Str)
	assert.InDelta(t, (46.0+47.0+45.5)/3, res.Rows[1].Get("avg(voltage)").Float, 1e-9)
	assert.Equal(t, int64(3), res.Rows[1].Get("count()").Int)
}

func TestScenarioUnresolvedSevereAlerts(t *testing.T) {
	alerts := newTable("AlertsAndEvents",
		table.RowOf("alertId", "A1", "severity", "high", "resolved", false),
		table.RowOf("alertId", "A2", "severity", "critical", "resolved", true),
		table.RowOf("alertId", "A3", "severity", "low", "resolved", false),
		table.RowOf("alertId", "A4", "severity", "critical", "resolved", false),
		table.RowOf("alertId", "A5", "severity", "medium", "resolved", false),
		table.RowOf("alertId", "A6", "severity", "high", "resolved", true),
	)
	e := newTestEngine(Options{}, alerts)

	res := runQuery(t, e, `AlertsAndEvents | where severity in ("high","critical") and not resolved`)
	var got []string
	for _, r := range res.Rows {
		got = append(got, r.Get("alertId").Str)
	}
	assert.Equal(t, []string{"A1", "A4"}, got)
}

func TestScenarioUnknownTable(t *testing.T) {
	e := newTestEngine(Options{}, readings())
	_, err := e.Run(context.Background(), "Foo | top 5")
	require.Error(t, err)
	assert.EqualError(t, err, "unknown table: Foo")
}

func TestScenarioInnerJoinOnVesselID(t *testing.T) {
	br := newTable("BatteryReadings",
		table.RowOf("vesselId", "V1", "voltage", 48.0),
		table.RowOf("vesselId", "V2", "voltage", 47.0),
		table.RowOf("vesselId", "V3", "voltage", 46.0),
	)
	vm := newTable("VesselMaintenance",
		table.RowOf("vesselId", "V2", "component", "battery"),
		table.RowOf("vesselId", "V3", "component", "inverter"),
		table.RowOf("vesselId", "V4", "component", "motor"),
	)
	e := newTestEngine(Options{}, br, vm)

	res, err := e.Execute(context.Background(), parser.Parse("BatteryReadings | join VesselMaintenance on vesselId"))
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []string{"vesselId", "voltage", "component"}, res.Columns)
	assert.Equal(t, "V2", res.Rows[0].Get("vesselId").Str)
	assert.Equal(t, "battery", res.Rows[0].Get("component").Str)
	assert.Equal(t, 47.0, res.Rows[0].Get("voltage").Float)
	assert.Equal(t, "V3", res.Rows[1].Get("vesselId").Str)
	assert.Equal(t, "inverter", res.Rows[1].Get("component").Str)
}
