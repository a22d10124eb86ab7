// Package fixtures generates the demo fleet tables queries run against.
package fixtures

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/razeghi71/kqlmock/registry"
	"github.com/razeghi71/kqlmock/table"
)

// Table names.
const (
	Vessels           = "Vessels"
	BatteryReadings   = "BatteryReadings"
	VesselMaintenance = "VesselMaintenance"
	AlertsAndEvents   = "AlertsAndEvents"
	ChargingSessions  = "ChargingSessions"
	EnergyConsumption = "EnergyConsumption"
)

// Window is how far back generated timestamps reach from now.
const Window = 7 * 24 * time.Hour

type vessel struct {
	id       string
	name     string
	kind     string
	port     string
	capacity float64
}

var fleet = []vessel{
	{"V001", "Atlantic Carrier", "cargo", "Rotterdam", 4200},
	{"V002", "Nordic Star", "ferry", "Oslo", 2800},
	{"V003", "Baltic Breeze", "ferry", "Tallinn", 2600},
	{"V004", "Pacific Dawn", "tanker", "Singapore", 5100},
	{"V005", "Coastal Spirit", "tug", "Hamburg", 900},
	{"V006", "Arctic Tern", "research", "Tromso", 1500},
}

var (
	banks       = []string{"A", "B", "C"}
	components  = []string{"battery", "inverter", "motor", "cooling", "bms"}
	technicians = []string{"J. Berg", "A. Novak", "M. Silva", "K. Tanaka"}
	statuses    = []string{"pending", "in_progress", "completed"}
	severities  = []string{"low", "medium", "high", "critical"}
	alertTypes  = []string{"voltage_low", "temperature_high", "cell_imbalance", "charger_fault", "comms_lost"}
	stations    = []string{"Rotterdam-1", "Oslo-2", "Tallinn-1", "Hamburg-3", "Singapore-4"}
)

// Generate builds the six demo tables. The same now and seed always yield
// the same rows.
func Generate(now time.Time, seed uint64) []*table.Table {
	g := &generator{
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now,
	}
	return []*table.Table{
		g.vessels(),
		g.batteryReadings(),
		g.maintenance(),
		g.alerts(),
		g.charging(),
		g.consumption(),
	}
}

// Registry wraps Generate in a registry.
func Registry(now time.Time, seed uint64) *registry.Registry {
	return registry.New(Generate(now, seed)...)
}

type generator struct {
	rnd *rand.Rand
	now time.Time
}

// ago returns a random instant inside the window, truncated to seconds.
func (g *generator) ago() time.Time {
	d := time.Duration(g.rnd.Int64N(int64(Window)))
	return g.now.Add(-d).Truncate(time.Second)
}

func (g *generator) between(lo, hi float64) float64 {
	return round2(lo + g.rnd.Float64()*(hi-lo))
}

func (g *generator) pick(xs []string) string {
	return xs[g.rnd.IntN(len(xs))]
}

func (g *generator) vessel() vessel {
	return fleet[g.rnd.IntN(len(fleet))]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (g *generator) vessels() *table.Table {
	t := table.NewTable(Vessels, []string{"vesselId", "vesselName", "vesselType", "homePort", "batteryCapacityKwh", "commissioned"})
	for _, v := range fleet {
		years := 1 + g.rnd.IntN(12)
		t.AddRow([]table.Value{
			table.StrVal(v.id),
			table.StrVal(v.name),
			table.StrVal(v.kind),
			table.StrVal(v.port),
			table.FloatVal(v.capacity),
			table.TimeVal(time.Date(g.now.Year()-years, time.Month(1+g.rnd.IntN(12)), 1, 0, 0, 0, 0, time.UTC)),
		})
	}
	return t
}

func (g *generator) batteryReadings() *table.Table {
	t := table.NewTable(BatteryReadings, []string{"timestamp", "vesselId", "vesselName", "batteryBank", "voltage", "current", "temperature", "stateOfCharge"})
	for range 240 {
		v := g.vessel()
		t.AddRow([]table.Value{
			table.TimeVal(g.ago()),
			table.StrVal(v.id),
			table.StrVal(v.name),
			table.StrVal(g.pick(banks)),
			table.FloatVal(g.between(43.5, 52.5)),
			table.FloatVal(g.between(-80, 120)),
			table.FloatVal(g.between(18, 45)),
			table.IntVal(int64(10 + g.rnd.IntN(91))),
		})
	}
	return t
}

func (g *generator) maintenance() *table.Table {
	t := table.NewTable(VesselMaintenance, []string{"maintenanceId", "vesselId", "vesselName", "component", "status", "scheduledDate", "technician", "timestamp"})
	for i := range 40 {
		v := g.vessel()
		created := g.ago()
		// scheduled up to two weeks after the request
		scheduled := created.Add(time.Duration(g.rnd.Int64N(int64(14 * 24 * time.Hour)))).Truncate(time.Hour)
		t.AddRow([]table.Value{
			table.StrVal(fmt.Sprintf("M%04d", i+1)),
			table.StrVal(v.id),
			table.StrVal(v.name),
			table.StrVal(g.pick(components)),
			table.StrVal(g.pick(statuses)),
			table.TimeVal(scheduled),
			table.StrVal(g.pick(technicians)),
			table.TimeVal(created),
		})
	}
	return t
}

func (g *generator) alerts() *table.Table {
	t := table.NewTable(AlertsAndEvents, []string{"alertId", "timestamp", "vesselId", "vesselName", "severity", "alertType", "message", "resolved"})
	for i := range 80 {
		v := g.vessel()
		kind := g.pick(alertTypes)
		t.AddRow([]table.Value{
			table.StrVal(fmt.Sprintf("A%04d", i+1)),
			table.TimeVal(g.ago()),
			table.StrVal(v.id),
			table.StrVal(v.name),
			table.StrVal(g.pick(severities)),
			table.StrVal(kind),
			table.StrVal(fmt.Sprintf("%s on %s", kind, v.name)),
			table.BoolVal(g.rnd.IntN(3) == 0),
		})
	}
	return t
}

func (g *generator) charging() *table.Table {
	t := table.NewTable(ChargingSessions, []string{"sessionId", "timestamp", "vesselId", "vesselName", "station", "durationMinutes", "energyKwh", "cost"})
	for i := range 60 {
		v := g.vessel()
		minutes := 15 + g.rnd.IntN(226)
		kwh := round2(float64(minutes) * g.between(2, 9))
		t.AddRow([]table.Value{
			table.StrVal(fmt.Sprintf("S%04d", i+1)),
			table.TimeVal(g.ago()),
			table.StrVal(v.id),
			table.StrVal(v.name),
			table.StrVal(g.pick(stations)),
			table.IntVal(int64(minutes)),
			table.FloatVal(kwh),
			table.FloatVal(round2(kwh * 0.21)),
		})
	}
	return t
}

func (g *generator) consumption() *table.Table {
	t := table.NewTable(EnergyConsumption, []string{"timestamp", "vesselId", "vesselName", "consumptionKwh", "speedKnots", "distanceNm"})
	for range 168 {
		v := g.vessel()
		speed := g.between(0, 18)
		t.AddRow([]table.Value{
			table.TimeVal(g.ago()),
			table.StrVal(v.id),
			table.StrVal(v.name),
			table.FloatVal(round2(20 + speed*speed*v.capacity/4000)),
			table.FloatVal(speed),
			table.FloatVal(round2(speed * g.between(0.5, 1))),
		})
	}
	return t
}
