package jsredis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Unit is the granularity an Expiration is expressed in
type Unit int

const (
	Second Unit = iota
	Minute
	Hour
	Day
	Week
	// Month is a fixed 30 days
	Month
	// Year is a fixed 365 days
	Year
)

// unitSeconds holds the length of each unit in seconds
var unitSeconds = [...]float64{
	Second: 1,
	Minute: 60,
	Hour:   60 * 60,
	Day:    60 * 60 * 24,
	Week:   60 * 60 * 24 * 7,
	Month:  60 * 60 * 24 * 30,
	Year:   60 * 60 * 24 * 365,
}

var unitSuffixes = [...]string{
	Second: "s",
	Minute: "m",
	Hour:   "h",
	Day:    "d",
	Week:   "w",
	Month:  "mo",
	Year:   "y",
}

func (u Unit) valid() bool {
	return u >= Second && u <= Year
}

func (u Unit) String() string {
	if !u.valid() {
		return fmt.Sprintf("Unit(%d)", int(u))
	}
	return unitSuffixes[u]
}

// Expiration is an amount of time expressed in one of the fixed units.
// Months and years are calendar approximations, not calendar arithmetic.
type Expiration struct {
	Amount float64
	Unit   Unit
}

func Seconds(n float64) Expiration { return Expiration{Amount: n, Unit: Second} }
func Minutes(n float64) Expiration { return Expiration{Amount: n, Unit: Minute} }
func Hours(n float64) Expiration   { return Expiration{Amount: n, Unit: Hour} }
func Days(n float64) Expiration    { return Expiration{Amount: n, Unit: Day} }
func Weeks(n float64) Expiration   { return Expiration{Amount: n, Unit: Week} }
func Months(n float64) Expiration  { return Expiration{Amount: n, Unit: Month} }
func Years(n float64) Expiration   { return Expiration{Amount: n, Unit: Year} }

// Seconds returns the canonical length of e in seconds
func (e Expiration) Seconds() float64 {
	if !e.Unit.valid() {
		return 0
	}
	return e.Amount * unitSeconds[e.Unit]
}

// maxExpirationSeconds keeps deadlines exact as JSON numbers and well inside
// the range of time.Time
const maxExpirationSeconds = 1 << 53

// maxDurationSeconds is the largest length a time.Duration can hold
const maxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

// Duration converts e to a time.Duration, saturating at the bounds of
// time.Duration for lengths beyond about 292 years
func (e Expiration) Duration() time.Duration {
	secs := e.Seconds()
	switch {
	case math.IsNaN(secs):
		return 0
	case secs >= maxDurationSeconds:
		return math.MaxInt64
	case secs <= -maxDurationSeconds:
		return math.MinInt64
	}
	return time.Duration(secs * float64(time.Second))
}

// validate rejects lengths that cannot be turned into a deadline
func (e Expiration) validate() error {
	secs := e.Seconds()
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > maxExpirationSeconds {
		return fmt.Errorf("%w: %v", ErrExpirationRange, e)
	}
	return nil
}

// after returns t advanced by e. Lengths too long for a time.Duration are
// added as whole seconds.
func (e Expiration) after(t time.Time) time.Time {
	secs := e.Seconds()
	if math.Abs(secs) < maxDurationSeconds {
		return t.Add(e.Duration())
	}
	whole, frac := math.Modf(secs)
	return time.Unix(t.Unix()+int64(whole), int64(t.Nanosecond())+int64(math.Round(frac*1e9))).In(t.Location())
}

func (e Expiration) String() string {
	return strconv.FormatFloat(e.Amount, 'f', -1, 64) + e.Unit.String()
}

// ParseExpiration parses strings such as "90s", "5m", "1.5h", "2d", "1w",
// "3mo" and "1y". A bare number is read as seconds.
func ParseExpiration(s string) (Expiration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Expiration{}, fmt.Errorf("empty expiration")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-' && r != '+'
	})

	number, suffix := s, ""
	if split >= 0 {
		number, suffix = s[:split], strings.ToLower(strings.TrimSpace(s[split:]))
	}

	amount, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return Expiration{}, fmt.Errorf("invalid expiration %q: %w", s, err)
	}

	switch suffix {
	case "", "s", "sec", "secs", "second", "seconds":
		return Seconds(amount), nil
	case "m", "min", "mins", "minute", "minutes":
		return Minutes(amount), nil
	case "h", "hr", "hrs", "hour", "hours":
		return Hours(amount), nil
	case "d", "day", "days":
		return Days(amount), nil
	case "w", "wk", "wks", "week", "weeks":
		return Weeks(amount), nil
	case "mo", "mon", "month", "months":
		return Months(amount), nil
	case "y", "yr", "yrs", "year", "years":
		return Years(amount), nil
	default:
		return Expiration{}, fmt.Errorf("invalid expiration %q: unknown unit %q", s, suffix)
	}
}
