package jsredis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// referenceUnix is 2001-01-01T00:00:00Z as a Unix timestamp
const referenceUnix = 978307200

// Deadline is the absolute expiry stored in a shadow record. On the wire it
// is a JSON number of seconds since 2001-01-01T00:00:00Z, the layout existing
// shadow records already use.
type Deadline struct {
	time.Time
}

func (d Deadline) MarshalJSON() ([]byte, error) {
	secs := float64(d.Unix()-referenceUnix) + float64(d.Nanosecond())/1e9
	if math.IsInf(secs, 0) || math.IsNaN(secs) {
		return nil, fmt.Errorf("deadline %v out of range", d.Time)
	}
	return strconv.AppendFloat(nil, secs, 'f', -1, 64), nil
}

func (d *Deadline) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("deadline: %w", err)
	}

	whole, frac := math.Modf(secs)
	d.Time = time.Unix(referenceUnix+int64(whole), int64(math.Round(frac*1e9))).UTC()
	return nil
}
