package calendar

import (
	"fmt"
	"io"
	"os"
	"time"

	ical "github.com/emersion/go-ical"
)

// LoadICSFile reads all-day events from an iCalendar file as holidays
func LoadICSFile(path string) ([]Holiday, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening holiday calendar: %w", err)
	}
	defer f.Close()

	holidays, err := ParseICS(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return holidays, nil
}

// ParseICS decodes iCalendar data. Every all-day VEVENT becomes one holiday per
// covered day (DTEND is exclusive). Timed events are ignored: they are meetings,
// not closures, and belong in the ledger as blocks.
func ParseICS(r io.Reader) ([]Holiday, error) {
	dec := ical.NewDecoder(r)
	var holidays []Holiday

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			startProp := event.Props.Get(ical.PropDateTimeStart)
			if startProp == nil || startProp.ValueType() != ical.ValueDate {
				continue
			}
			start, err := event.DateTimeStart(time.UTC)
			if err != nil {
				continue // skip malformed events
			}
			end, err := event.DateTimeEnd(time.UTC)
			if err != nil || !end.After(start) {
				end = start.AddDate(0, 0, 1)
			}

			summary, _ := event.Props.Text(ical.PropSummary)
			for d := Day(start); d.Before(end); d = d.AddDate(0, 0, 1) {
				holidays = append(holidays, Holiday{Date: d, Name: summary})
			}
		}
	}

	return holidays, nil
}
