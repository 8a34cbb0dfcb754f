package enrich

import (
	"fmt"
	"strings"
)

// UnknownStateError is returned for a state name without a USPS code.
type UnknownStateError struct{ Name string }

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("enrich: unknown state %q", e.Name)
}

var stateCodes = map[string]string{
	"ALABAMA":                  "AL",
	"ALASKA":                   "AK",
	"ARIZONA":                  "AZ",
	"ARKANSAS":                 "AR",
	"CALIFORNIA":               "CA",
	"COLORADO":                 "CO",
	"CONNECTICUT":              "CT",
	"DELAWARE":                 "DE",
	"DISTRICT OF COLUMBIA":     "DC",
	"FLORIDA":                  "FL",
	"GEORGIA":                  "GA",
	"HAWAII":                   "HI",
	"IDAHO":                    "ID",
	"ILLINOIS":                 "IL",
	"INDIANA":                  "IN",
	"IOWA":                     "IA",
	"KANSAS":                   "KS",
	"KENTUCKY":                 "KY",
	"LOUISIANA":                "LA",
	"MAINE":                    "ME",
	"MARYLAND":                 "MD",
	"MASSACHUSETTS":            "MA",
	"MICHIGAN":                 "MI",
	"MINNESOTA":                "MN",
	"MISSISSIPPI":              "MS",
	"MISSOURI":                 "MO",
	"MONTANA":                  "MT",
	"NEBRASKA":                 "NE",
	"NEVADA":                   "NV",
	"NEW HAMPSHIRE":            "NH",
	"NEW JERSEY":               "NJ",
	"NEW MEXICO":               "NM",
	"NEW YORK":                 "NY",
	"NORTH CAROLINA":           "NC",
	"NORTH DAKOTA":             "ND",
	"OHIO":                     "OH",
	"OKLAHOMA":                 "OK",
	"OREGON":                   "OR",
	"PENNSYLVANIA":             "PA",
	"RHODE ISLAND":             "RI",
	"SOUTH CAROLINA":           "SC",
	"SOUTH DAKOTA":             "SD",
	"TENNESSEE":                "TN",
	"TEXAS":                    "TX",
	"UTAH":                     "UT",
	"VERMONT":                  "VT",
	"VIRGINIA":                 "VA",
	"WASHINGTON":               "WA",
	"WEST VIRGINIA":            "WV",
	"WISCONSIN":                "WI",
	"WYOMING":                  "WY",
	"PUERTO RICO":              "PR",
	"GUAM":                     "GU",
	"VIRGIN ISLANDS":           "VI",
	"AMERICAN SAMOA":           "AS",
	"NORTHERN MARIANA ISLANDS": "MP",
}

var knownCodes = func() map[string]bool {
	m := make(map[string]bool, len(stateCodes))
	for _, c := range stateCodes {
		m[c] = true
	}
	return m
}()

// StateCode returns the USPS code for a state name or code, ignoring case and
// surrounding space. "Washington DC" and "D.C." resolve to DC.
func StateCode(name string) (string, error) {
	n := strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(name, ".", "")), " "))
	if knownCodes[n] {
		return n, nil
	}
	if c, ok := stateCodes[n]; ok {
		return c, nil
	}
	switch n {
	case "WASHINGTON DC", "DC":
		return "DC", nil
	}
	return "", &UnknownStateError{Name: name}
}
