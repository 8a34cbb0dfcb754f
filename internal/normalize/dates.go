package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/06",
	"1/2/06 15:04",
	"01-02-06",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// excelEpoch is day zero of spreadsheet serial dates (1900 date system).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var filenameDate = regexp.MustCompile(`_(\d{6})(?:\D|$)`)

// Date parses the date formats seen in CRM and call-center exports, including
// spreadsheet serial numbers. Unparseable values report false.
func Date(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f < 2958466 {
		days := int(f)
		secs := int((f - float64(days)) * 86400)
		return excelEpoch.AddDate(0, 0, days).Add(time.Duration(secs) * time.Second), true
	}
	return time.Time{}, false
}

// FormatDate renders t as an ISO date, with the clock only when it is set.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// DateString parses and reformats s; unparseable input yields "".
func DateString(s string) string {
	t, ok := Date(s)
	if !ok {
		return ""
	}
	return FormatDate(t)
}

// FilenameDate extracts the purchase date encoded as an "_MMDDYY" token in a
// file name ("PD_DM_031523.csv" -> 2023-03-15).
func FilenameDate(name string) (time.Time, bool) {
	m := filenameDate.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("010206", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
