package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"

	"example.com/backstage/services/calendar/internal/models"
)

// MaxOccurrences bounds every expansion, including rules with neither count nor end date
const MaxOccurrences = 5000

var frequencies = map[models.Frequency]rrule.Frequency{
	models.FrequencyDaily:   rrule.DAILY,
	models.FrequencyWeekly:  rrule.WEEKLY,
	models.FrequencyMonthly: rrule.MONTHLY,
	models.FrequencyYearly:  rrule.YEARLY,
}

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

// ParseFrequency accepts only the exact upper-case frequency names
func ParseFrequency(s string) (models.Frequency, error) {
	f := models.Frequency(s)
	if _, ok := frequencies[f]; !ok {
		return "", errors.Errorf("unsupported frequency %q", s)
	}
	return f, nil
}

// ParseWeekday parses a byDay token such as "MO", "1MO" or "-1FR"
func ParseWeekday(token string) (rrule.Weekday, error) {
	if len(token) < 2 {
		return rrule.Weekday{}, errors.Errorf("invalid weekday %q", token)
	}

	code := strings.ToUpper(token[len(token)-2:])
	day, ok := weekdays[code]
	if !ok {
		return rrule.Weekday{}, errors.Errorf("invalid weekday %q", token)
	}

	prefix := token[:len(token)-2]
	if prefix == "" {
		return day, nil
	}

	n, err := strconv.Atoi(prefix)
	if err != nil || n == 0 || n < -53 || n > 53 {
		return rrule.Weekday{}, errors.Errorf("invalid weekday ordinal %q", token)
	}
	return day.Nth(n), nil
}

// ToRRule converts a stored rule into an rrule-go rule anchored at its start date
func ToRRule(rule models.RecurrenceRule) (*rrule.RRule, error) {
	freq, ok := frequencies[rule.Frequency]
	if !ok {
		return nil, errors.Errorf("unsupported frequency %q", rule.Frequency)
	}

	opt := rrule.ROption{
		Freq:     freq,
		Dtstart:  rule.RecurrenceStartDate.UTC(),
		Interval: rule.Interval,
	}
	if opt.Interval < 1 {
		opt.Interval = 1
	}
	if rule.Count != nil {
		opt.Count = *rule.Count
	}
	if rule.RecurrenceEndDate != nil {
		opt.Until = rule.RecurrenceEndDate.UTC()
	}

	for _, token := range rule.ByDay {
		day, err := ParseWeekday(token)
		if err != nil {
			return nil, err
		}
		opt.Byweekday = append(opt.Byweekday, day)
	}
	for _, m := range rule.ByMonth {
		opt.Bymonth = append(opt.Bymonth, int(m))
	}
	for _, d := range rule.ByMonthDay {
		opt.Bymonthday = append(opt.Bymonthday, int(d))
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build recurrence rule")
	}
	return r, nil
}

// CanonicalString renders the rule in RFC 5545 form
func CanonicalString(rule models.RecurrenceRule) (string, error) {
	r, err := ToRRule(rule)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// Occurrences expands the rule inside [windowStart, windowEnd], returning at most max
// start times. truncated reports whether the cap cut the expansion short.
func Occurrences(rule models.RecurrenceRule, windowStart, windowEnd time.Time, max int) (occurrences []time.Time, truncated bool, err error) {
	if windowEnd.Before(windowStart) {
		return nil, false, errors.New("window end is before window start")
	}
	if max <= 0 || max > MaxOccurrences {
		max = MaxOccurrences
	}

	r, err := ToRRule(rule)
	if err != nil {
		return nil, false, err
	}

	next := r.Iterator()
	for {
		t, ok := next()
		if !ok || t.After(windowEnd) {
			break
		}
		if t.Before(windowStart) {
			continue
		}
		if len(occurrences) == max {
			truncated = true
			break
		}
		occurrences = append(occurrences, t)
	}

	return occurrences, truncated, nil
}
