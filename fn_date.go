package formula

import (
	"math"
	"strings"
	"time"
)

func registerDateFunctions(t functionTable) {
	t.volatile("NOW", fnNow, 0, 0)
	t.volatile("TODAY", fnToday, 0, 0)
	t.add("YEAR", datePart(func(d time.Time) int { return d.Year() }), 1, 1)
	t.add("MONTH", datePart(func(d time.Time) int { return int(d.Month()) }), 1, 1)
	t.add("DAY", datePart(func(d time.Time) int { return d.Day() }), 1, 1)
	t.add("HOUR", datePart(func(d time.Time) int { return d.Hour() }), 1, 1)
	t.add("MINUTE", datePart(func(d time.Time) int { return d.Minute() }), 1, 1)
	t.add("SECOND", datePart(func(d time.Time) int { return d.Second() }), 1, 1)
	t.add("WEEKDAY", fnWeekday, 2, 1)
	t.add("TIME", fnTime, 3, 3)
	t.add("DATE", fnDate, 3, 3)
	t.add("DATEDIF", fnDateDif, 3, 3)
}

// now reads the engine clock as a UTC wall-clock time
func now(ec *EvalContext) time.Time {
	t := ec.engine.clock.Now()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func fnNow(ec *EvalContext, args []Expression) (Primitive, error) {
	return FormattedValue{Value: now(ec), Format: "M/d/yyyy h:mm tt"}, nil
}

func fnToday(ec *EvalContext, args []Expression) (Primitive, error) {
	t := now(ec)
	return FormattedValue{Value: dateOnly(t), Format: "M/d/yyyy"}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// datePart accepts a date or a fractional day count
func datePart(part func(time.Time) int) FunctionImpl {
	return func(ec *EvalContext, args []Expression) (Primitive, error) {
		d, err := argDate(ec, args, 0)
		if err != nil {
			return nil, err
		}
		return float64(part(d)), nil
	}
}

// fnWeekday numbers days per return type: 1 Sunday=1, 2 Monday=1, 3 Monday=0
func fnWeekday(ec *EvalContext, args []Expression) (Primitive, error) {
	d, err := argDate(ec, args, 0)
	if err != nil {
		return nil, err
	}
	kind, err := argIntOr(ec, args, 1, 1)
	if err != nil {
		return nil, err
	}
	day := int(d.Weekday())
	switch kind {
	case 1:
		return float64(day + 1), nil
	case 2:
		return float64((day+6)%7 + 1), nil
	case 3:
		return float64((day + 6) % 7), nil
	}
	return nil, domainErrorf("WEEKDAY: invalid return type %d", kind)
}

// fnTime builds a time of day on the epoch date. out of range components
// wrap into the next unit.
func fnTime(ec *EvalContext, args []Expression) (Primitive, error) {
	var parts [3]int
	for i := range parts {
		n, err := argInt(ec, args, i)
		if err != nil {
			return nil, err
		}
		parts[i] = n
	}
	t := time.Date(oaEpoch.Year(), oaEpoch.Month(), oaEpoch.Day(), parts[0], parts[1], parts[2], 0, time.UTC)
	return FormattedValue{Value: t, Format: "t"}, nil
}

// fnDate builds a date; years below 1900 are offset from 1900 and month or
// day overflow rolls forward
func fnDate(ec *EvalContext, args []Expression) (Primitive, error) {
	var parts [3]int
	for i := range parts {
		n, err := argInt(ec, args, i)
		if err != nil {
			return nil, err
		}
		parts[i] = n
	}
	year := parts[0]
	if year >= 0 && year < 1900 {
		year += 1900
	}
	if year < 0 || year > 9999 {
		return nil, domainErrorf("DATE: year %d is out of range", parts[0])
	}
	t := time.Date(year, time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
	return FormattedValue{Value: t, Format: "d"}, nil
}

// fnDateDif counts whole units between two dates
func fnDateDif(ec *EvalContext, args []Expression) (Primitive, error) {
	start, err := argDate(ec, args, 0)
	if err != nil {
		return nil, err
	}
	end, err := argDate(ec, args, 1)
	if err != nil {
		return nil, err
	}
	unit, err := argString(ec, args, 2)
	if err != nil {
		return nil, err
	}
	start, end = dateOnly(start), dateOnly(end)
	if start.After(end) {
		return nil, domainErrorf("DATEDIF: start date is after end date")
	}

	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()

	switch strings.ToUpper(unit) {
	case "Y":
		years := ey - sy
		if em < sm || (em == sm && ed < sd) {
			years--
		}
		return float64(years), nil
	case "M":
		months := (ey-sy)*12 + int(em-sm)
		if ed < sd {
			months--
		}
		return float64(months), nil
	case "D":
		return dayDiff(start, end), nil
	case "YM":
		months := int(em - sm)
		if ed < sd {
			months--
		}
		if months < 0 {
			months += 12
		}
		return float64(months), nil
	case "YD":
		anniversary := time.Date(ey, sm, sd, 0, 0, 0, 0, time.UTC)
		if anniversary.After(end) {
			anniversary = time.Date(ey-1, sm, sd, 0, 0, 0, 0, time.UTC)
		}
		return dayDiff(anniversary, end), nil
	case "MD":
		if ed >= sd {
			return float64(ed - sd), nil
		}
		// count from the start day within the month before the end month
		prevDays := time.Date(ey, em, 0, 0, 0, 0, 0, time.UTC).Day()
		return float64(prevDays - min(sd, prevDays) + ed), nil
	}
	return nil, domainErrorf("DATEDIF: invalid unit '%s'", unit)
}

func dayDiff(from, to time.Time) float64 {
	return math.Round(ToOADate(to) - ToOADate(from))
}
