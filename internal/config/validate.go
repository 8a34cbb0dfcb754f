package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"leadetl/internal/enrich"
)

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the environment variable name.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SnapshotBackends are the snapshot kinds the CLI links in.
var SnapshotBackends = []string{"dir", "mssql", "postgres", "s3", "sqlite"}

// MetricsBackends are the accepted METRICS_BACKEND values; "" and "none"
// disable metrics.
var MetricsBackends = []string{"", "none", "datadog", "pushgateway"}

type setting struct {
	name  string
	value string
}

// Validate checks the configuration and returns every finding. Paths read by
// the core stages are always required; enrichment paths are required only by
// the modes that read them and produce a warning otherwise.
func (c *Config) Validate() []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}
	require := func(sev Severity, settings ...setting) {
		for _, s := range settings {
			if strings.TrimSpace(s.value) == "" {
				add(sev, s.name, "not set")
			}
		}
	}

	require(SeverityError, c.core()...)
	if c.DuplicatesToScorePath == "" {
		add(SeverityWarning, "PATH_DUPLICATES_TO_SCORE", "not set; the duplicates-to-score audit file is not written")
	}

	mode := c.Mode()
	if !mode.Valid() {
		add(SeverityError, "NUMBER_OF_FEATURES", "must be 1, 2, 3 or 4, got %d", c.NumberOfFeatures)
	}
	debt, census, fed := SeverityWarning, SeverityWarning, SeverityWarning
	switch mode {
	case enrich.ModeDebtInAmerica:
		debt = SeverityError
	case enrich.ModeCensusDeluxe:
		census = SeverityError
	case enrich.ModeFedReserve:
		fed = SeverityError
	case enrich.ModeDebtAndFed:
		debt, fed = SeverityError, SeverityError
	}
	if mode.Valid() {
		require(debt, c.debtSettings()...)
		require(census, c.censusSettings()...)
		require(fed, c.fedSettings()...)
	}

	if c.LeadNameMatchDistance < 0 {
		add(SeverityError, "LEAD_NAME_MATCH_DISTANCE", "must not be negative, got %d", c.LeadNameMatchDistance)
	}

	if !slices.Contains(SnapshotBackends, c.SnapshotBackend) {
		add(SeverityError, "SNAPSHOT_BACKEND", "unsupported backend %q (supported: %s)", c.SnapshotBackend, strings.Join(SnapshotBackends, ", "))
	} else if c.Snapshot().DSN == "" {
		path := "SNAPSHOT_DSN"
		if c.SnapshotBackend == "dir" {
			path = "PATH_TO_STORE_PICKLE_FILES"
		}
		add(SeverityError, path, "not set; the %s snapshot backend needs a location", c.SnapshotBackend)
	}

	if !slices.Contains(MetricsBackends, strings.ToLower(c.MetricsBackend)) {
		add(SeverityWarning, "METRICS_BACKEND", "unknown backend %q; metrics are disabled", c.MetricsBackend)
	}
	if strings.EqualFold(c.MetricsBackend, "pushgateway") {
		if u, err := url.Parse(c.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			add(SeverityError, "PUSHGATEWAY_URL", "invalid URL %q", c.PushgatewayURL)
		}
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		add(SeverityWarning, "LOG_LEVEL", "%v; using info", err)
	}
	if c.PurlPath != "" {
		add(SeverityWarning, "PATH_PURL", "set but not read by any stage")
	}
	return out
}

func (c *Config) core() []setting {
	return []setting{
		{"PATH_OPT_OUT_LIST", c.OptOutListPath},
		{"PROSPECT_FULLNAME_PATH", c.ProspectFullnamePath},
		{"PROSPECTS_TO_BE_SCORED_PATH", c.ProspectsToBeScoredPath},
		{"PROSPECT_PATH", c.ProspectPath},
		{"PATH_TO_LEADS_WITHOUT_ID_THAT_NEED_TO_BE_EXCLUDED", c.ExcludedWithoutIDPath},
		{"PDR_FILES_PATH", c.PDRFilesPath},
		{"PATH_TO_LEADS_WITH_ID_THAT_NEED_TO_BE_EXCLUDED", c.ExcludedWithIDPath},
		{"PATH_STATUS", c.StatusPath},
		{"PATH_PHONE_20230308", c.PhoneStatusPath},
		{"PATH_MISSING_CLIENTS", c.MissingClientsPath},
		{"CALL_CENTER_PATH", c.CallCenterPath},
		{"CALL_CENTER_INBOUND_FORMAT_PATH", c.CallCenterInboundPath},
		{"PATH_FINAL_CALL_CENTER", c.FinalCallCenterPath},
		{"PATH_PHONE", c.PhonePath},
		{"PATH_STATUS_DESCRIPTION", c.StatusDescriptionPath},
		{"PURL_RESPONDERS_1022_0123_PATH", c.PurlRespondersPath},
		{"PATH_TO_US_CENSUS_BUREAU_3RD_PARTY_DATA", c.USCensusPath},
		{"PATH_FINAL_DATASET", c.FinalDatasetPath},
	}
}

func (c *Config) debtSettings() []setting {
	return []setting{
		{"PATH_DEBT_IN_AMERICA_JUNE_2022_AUTO", c.DebtAutoPath},
		{"PATH_DEBT_IN_AMERICA_JUNE_2022_DELINQUENCY", c.DebtDelinquencyPath},
		{"PATH_DEBT_IN_AMERICA_JUNE_2022_MEDICAL", c.DebtMedicalPath},
		{"PATH_DEBT_IN_AMERICA_JUNE_2022_STUDENT", c.DebtStudentPath},
		{"PATH_TO_DF_MATCHING_ZIPCODES_TO_GEOIDS", c.ZipGEOIDPath},
	}
}

func (c *Config) censusSettings() []setting {
	return []setting{
		{"PATH_TO_STORE_CENSUS_2010_DF", c.Census2010Path},
		{"PATH_TO_STORE_CENSUS_2017_2021_DF", c.CensusACSPath},
		{"PATH_TO_STORE_CENSUS_DELUXE_DF", c.CensusDeluxePath},
		{"PATH_TO_CENSUS_PLACE_FIPS", c.CensusPlaceFIPSPath},
	}
}

func (c *Config) fedSettings() []setting {
	return []setting{
		{"PATH_FEDERAL_RESERVE_BANK_PHILADELPHIA", c.FedReservePath},
		{"PATH_TO_STORE_PREPROCESSED_BANK_OF_PHILADELPHIA_FILES", c.FedPreprocessedDir},
		{"PATH_TO_STORE_BANK_OF_PHILADELPHIA_FINAL_FILE", c.FedFinalPath},
	}
}
