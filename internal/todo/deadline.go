package todo

import "strings"

// Deadline is the display form of a task's deadline
type Deadline struct {
	Date string // DD.MM.YYYY, or empty
	Time string // passed through unchanged, or empty
}

// IsZero reports whether neither part is set
func (d Deadline) IsZero() bool {
	return d.Date == "" && d.Time == ""
}

func (d Deadline) String() string {
	switch {
	case d.Date != "" && d.Time != "":
		return d.Date + " • " + d.Time
	case d.Date != "":
		return d.Date
	default:
		return d.Time
	}
}

// FormatDeadline turns an ISO date (YYYY-MM-DD) into DD.MM.YYYY and passes the
// time through. Input is not validated: a malformed date is reassembled from
// whatever pieces splitting on "-" produces.
func FormatDeadline(date, clock *string) Deadline {
	var d Deadline
	if date != nil && *date != "" {
		parts := strings.SplitN(*date, "-", 3)
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		d.Date = parts[2] + "." + parts[1] + "." + parts[0]
	}
	if clock != nil {
		d.Time = *clock
	}
	return d
}
