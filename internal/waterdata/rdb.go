package waterdata

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hydrowatch/hydrowatch/internal/series"
)

// tzOffsets maps the service's timezone codes to fixed UTC offsets.
// Unknown codes fall back to UTC.
var tzOffsets = map[string]*time.Location{
	"UTC":  time.UTC,
	"GMT":  time.UTC,
	"EST":  time.FixedZone("EST", -5*3600),
	"EDT":  time.FixedZone("EDT", -4*3600),
	"CST":  time.FixedZone("CST", -6*3600),
	"CDT":  time.FixedZone("CDT", -5*3600),
	"MST":  time.FixedZone("MST", -7*3600),
	"MDT":  time.FixedZone("MDT", -6*3600),
	"PST":  time.FixedZone("PST", -8*3600),
	"PDT":  time.FixedZone("PDT", -7*3600),
	"AKST": time.FixedZone("AKST", -9*3600),
	"AKDT": time.FixedZone("AKDT", -8*3600),
	"HST":  time.FixedZone("HST", -10*3600),
}

const rdbTimeLayout = "2006-01-02 15:04"

// ParseRDB decodes a tab-separated RDB body into raw samples.
//
// The format, as the service delivers it:
//
//	# comment lines describing the site and disclaimers
//	agency_cd  site_no  datetime  tz_cd  <ts>_<param>  <ts>_<param>_cd
//	5s         15s      20d       6s     14n           10s
//	USGS       09504500 2026-08-01 12:00 MST  103    A
//
// The value column is located by the parameter-code suffix in the header;
// its quality column is the same name plus "_cd". A non-numeric value cell
// (outage, "Ice") yields a sample with a nil Value so the filter downstream
// can reject it explicitly.
func ParseRDB(r io.Reader, parameter string) ([]series.RawSample, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cols rdbColumns
	haveHeader := false
	skippedTypeRow := false
	var samples []series.RawSample

	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")

		if !haveHeader {
			c, err := locateColumns(fields, parameter)
			if err != nil {
				return nil, err
			}
			cols = c
			haveHeader = true
			continue
		}

		// The row after the header declares column widths ("5s", "20d", …).
		if !skippedTypeRow {
			skippedTypeRow = true
			if isTypeRow(fields) {
				continue
			}
		}

		s, ok := parseRow(fields, cols)
		if !ok {
			continue // short or malformed row — skip, never fail the batch
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read rdb body: %w", err)
	}
	if !haveHeader {
		return nil, fmt.Errorf("rdb body has no header row")
	}
	return samples, nil
}

// rdbColumns holds the resolved column indices for one RDB table.
type rdbColumns struct {
	datetime  int
	tz        int
	value     int
	qualifier int
}

// locateColumns resolves the column layout from the header row. The value
// column carries a "<timeseries>_<parameter>" name; its qualifier column is
// the same name suffixed "_cd".
func locateColumns(header []string, parameter string) (rdbColumns, error) {
	cols := rdbColumns{datetime: -1, tz: -1, value: -1, qualifier: -1}
	for i, name := range header {
		switch {
		case name == "datetime":
			cols.datetime = i
		case name == "tz_cd":
			cols.tz = i
		case strings.HasSuffix(name, "_"+parameter):
			cols.value = i
		case strings.HasSuffix(name, "_"+parameter+"_cd"):
			cols.qualifier = i
		}
	}
	if cols.datetime < 0 {
		return cols, fmt.Errorf("rdb header missing datetime column")
	}
	if cols.value < 0 {
		return cols, fmt.Errorf("rdb header has no value column for parameter %s", parameter)
	}
	return cols, nil
}

// isTypeRow reports whether fields look like the RDB column-type row, whose
// cells are a width followed by a type letter (5s, 20d, 14n).
func isTypeRow(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if f == "" {
			continue
		}
		last := f[len(f)-1]
		if last != 's' && last != 'd' && last != 'n' {
			return false
		}
		if _, err := strconv.Atoi(f[:len(f)-1]); err != nil {
			return false
		}
	}
	return true
}

// parseRow converts one data row into a RawSample.
func parseRow(fields []string, cols rdbColumns) (series.RawSample, bool) {
	max := cols.datetime
	if cols.value > max {
		max = cols.value
	}
	if len(fields) <= max {
		return series.RawSample{}, false
	}

	loc := time.UTC
	if cols.tz >= 0 && cols.tz < len(fields) {
		if l, ok := tzOffsets[strings.TrimSpace(fields[cols.tz])]; ok {
			loc = l
		}
	}

	ts, err := time.ParseInLocation(rdbTimeLayout, strings.TrimSpace(fields[cols.datetime]), loc)
	if err != nil {
		return series.RawSample{}, false
	}

	s := series.RawSample{Timestamp: ts}

	if cols.qualifier >= 0 && cols.qualifier < len(fields) {
		// The quality cell may carry trailing remark codes ("P [4]"); the
		// leading token is the qualifier proper.
		if q := strings.Fields(fields[cols.qualifier]); len(q) > 0 {
			s.Qualifier = q[0]
		}
	}

	raw := strings.TrimSpace(fields[cols.value])
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		s.Value = &v
	} else if raw != "" && s.Qualifier == "" {
		// Non-numeric reading like "Ice" doubles as its own qualifier.
		s.Qualifier = raw
	}
	return s, true
}
