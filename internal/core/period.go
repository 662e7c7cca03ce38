package core

import "strings"

// Granularity is the bar spacing a period is served at.
type Granularity string

const (
	Intraday Granularity = "intraday"
	Daily    Granularity = "daily"
	Weekly   Granularity = "weekly"
)

// Period is a named lookback window.
type Period struct {
	Token       string
	Days        int
	Granularity Granularity
}

// DefaultPeriod is used for unknown tokens.
var DefaultPeriod = Period{Token: "3M", Days: 90, Granularity: Daily}

var periods = map[string]Period{
	"1D":  {Token: "1D", Days: 1, Granularity: Intraday},
	"1W":  {Token: "1W", Days: 7, Granularity: Intraday},
	"1M":  {Token: "1M", Days: 30, Granularity: Daily},
	"3M":  DefaultPeriod,
	"6M":  {Token: "6M", Days: 180, Granularity: Daily},
	"1Y":  {Token: "1Y", Days: 365, Granularity: Daily},
	"2Y":  {Token: "2Y", Days: 730, Granularity: Daily},
	"3Y":  {Token: "3Y", Days: 1095, Granularity: Daily},
	"5Y":  {Token: "5Y", Days: 1825, Granularity: Weekly},
	"10Y": {Token: "10Y", Days: 3650, Granularity: Weekly},
}

// ParsePeriod resolves a token such as "1Y". Unknown tokens fall back to a 90-day daily view.
func ParsePeriod(token string) Period {
	if p, ok := periods[strings.ToUpper(strings.TrimSpace(token))]; ok {
		return p
	}
	return DefaultPeriod
}

// KnownPeriod reports whether token is in the lookup table.
func KnownPeriod(token string) bool {
	_, ok := periods[strings.ToUpper(strings.TrimSpace(token))]
	return ok
}
