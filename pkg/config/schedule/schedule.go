package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/tauraamui/xerror"
)

const stLayout = "15:04:05"

// Time is a wall clock time of day, written as "15:04:05" in config files.
type Time time.Duration

func ParseTime(value string) (Time, error) {
	nt, err := time.Parse(stLayout, value)
	if err != nil {
		return 0, xerror.Errorf("invalid schedule time %q: %w", value, err)
	}
	return At(nt.Hour(), nt.Minute(), nt.Second()), nil
}

func At(hour, minute, second int) Time {
	return Time(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

func (st *Time) UnmarshalJSON(b []byte) error {
	t, err := ParseTime(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*st = t
	return nil
}

func (st Time) MarshalJSON() ([]byte, error) {
	return []byte(st.String()), nil
}

func (st Time) Hour() int { return int(time.Duration(st) / time.Hour) }

func (st Time) Minute() int { return int(time.Duration(st)%time.Hour) / int(time.Minute) }

func (st Time) Second() int { return int(time.Duration(st)%time.Minute) / int(time.Second) }

// On places the time of day on t's calendar date.
func (st Time) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, st.Hour(), st.Minute(), st.Second(), 0, t.Location())
}

func (st Time) String() string {
	return fmt.Sprintf("%q", fmt.Sprintf("%02d:%02d:%02d", st.Hour(), st.Minute(), st.Second()))
}

// OnOffTimes for loading up on off time entries
type OnOffTimes struct {
	Off *Time `json:"off,omitempty"`
	On  *Time `json:"on,omitempty"`
}

func (o OnOffTimes) empty() bool { return o.Off == nil && o.On == nil }

type Week struct {
	Everyday  OnOffTimes `json:"everyday"`
	Monday    OnOffTimes `json:"monday"`
	Tuesday   OnOffTimes `json:"tuesday"`
	Wednesday OnOffTimes `json:"wednesday"`
	Thursday  OnOffTimes `json:"thursday"`
	Friday    OnOffTimes `json:"friday"`
	Saturday  OnOffTimes `json:"saturday"`
	Sunday    OnOffTimes `json:"sunday"`
}

// Day returns the entries for d, days without their own fall back to Everyday.
func (w Week) Day(d time.Weekday) OnOffTimes {
	days := [...]OnOffTimes{w.Sunday, w.Monday, w.Tuesday, w.Wednesday, w.Thursday, w.Friday, w.Saturday}
	if day := days[d]; !day.empty() {
		return day
	}
	return w.Everyday
}

func (w Week) Empty() bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !w.Day(d).empty() {
			return false
		}
	}
	return true
}

type Schedule interface {
	IsOn(time.Time) bool
}

func NewSchedule(w Week) Schedule {
	return &schedule{week: w}
}

// Schedule contains each day of the week and it's off and on time entries
type schedule struct {
	week Week
}

// IsOn reports the state set by the latest on or off entry at or before t,
// looking back up to a week. A schedule without entries is always on.
func (s *schedule) IsOn(t time.Time) bool {
	for i := 0; i <= 7; i++ {
		day := t.AddDate(0, 0, -i)
		found, on := latestBefore(t, day, s.week.Day(day.Weekday()))
		if found {
			return on
		}
	}
	return true
}

func latestBefore(t, day time.Time, entries OnOffTimes) (found bool, on bool) {
	var latest time.Time
	if entries.On != nil {
		if at := entries.On.On(day); !at.After(t) {
			found, on, latest = true, true, at
		}
	}
	if entries.Off != nil {
		if at := entries.Off.On(day); !at.After(t) && (!found || at.After(latest)) {
			found, on = true, false
		}
	}
	return found, on
}
