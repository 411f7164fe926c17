package metering

import (
	"sort"

	"github.com/shopspring/decimal"
)

// History holds the readings of one (unit, utility) pair, most recent first.
// It is a snapshot of backend state and is rebuilt after every write.
type History struct {
	Utility  UtilityType
	UnitID   string
	readings []MeterReading
}

// NewHistory builds a history from backend readings. Readings of other units or
// utilities are dropped so water and electricity never share previous-reading state.
func NewHistory(utility UtilityType, unitID string, readings []MeterReading) *History {
	kept := make([]MeterReading, 0, len(readings))
	for _, r := range readings {
		if r.UnitID != "" && r.UnitID != unitID {
			continue
		}
		if r.Utility != "" && r.Utility != utility {
			continue
		}
		r.Utility = utility
		kept = append(kept, r)
	}
	// Dates may be day precision; the counter only grows, so on equal dates
	// the higher reading is the later one.
	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].DateRecorded.Equal(kept[j].DateRecorded) {
			return kept[i].DateRecorded.After(kept[j].DateRecorded)
		}
		return kept[i].Reading.GreaterThan(kept[j].Reading)
	})
	return &History{
		Utility:  utility,
		UnitID:   unitID,
		readings: kept,
	}
}

// Readings returns a copy of the readings, most recent first
func (h *History) Readings() []MeterReading {
	out := make([]MeterReading, len(h.readings))
	copy(out, h.readings)
	return out
}

// Len returns the number of readings
func (h *History) Len() int {
	return len(h.readings)
}

// Latest returns the most recent reading, or nil when none exists
func (h *History) Latest() *MeterReading {
	if len(h.readings) == 0 {
		return nil
	}
	r := h.readings[0]
	return &r
}

// Previous returns the reading a new submission is validated against: the most
// recent reading for the unit, or zero when the unit has never been read
func (h *History) Previous() decimal.Decimal {
	if latest := h.Latest(); latest != nil {
		return latest.Reading
	}
	return decimal.Zero
}

// Splice places an accepted reading at the head of the history
func (h *History) Splice(r MeterReading) {
	r.Utility = h.Utility
	h.readings = append([]MeterReading{r}, h.readings...)
}

// TotalConsumed sums consumed units across the history
func (h *History) TotalConsumed() decimal.Decimal {
	total := decimal.Zero
	for _, r := range h.readings {
		total = total.Add(r.UnitsConsumed)
	}
	return total
}

// TotalBilled sums the backend-computed amounts across the history
func (h *History) TotalBilled() decimal.Decimal {
	total := decimal.Zero
	for _, r := range h.readings {
		total = total.Add(r.AmountDue)
	}
	return total
}
