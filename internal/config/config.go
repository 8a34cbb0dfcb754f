// Package config holds the run configuration. It is read once from the
// environment (optionally seeded from .env files) and passed explicitly to
// every pipeline stage.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"leadetl/internal/enrich"
	"leadetl/internal/snapshot"
)

// DefaultEnvFiles are loaded by Load when no files are given.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config is the flat set of settings of one run. Input paths may be glob
// patterns where a stage reads several files; "**" matches any depth.
type Config struct {
	DebugMode bool `env:"DEBUG_MODE"`

	// Lead sources and audit outputs.
	PDRFilesPath            string `env:"PDR_FILES_PATH"`
	ProspectFullnamePath    string `env:"PROSPECT_FULLNAME_PATH"`
	ProspectsToBeScoredPath string `env:"PROSPECTS_TO_BE_SCORED_PATH"`
	ProspectPath            string `env:"PROSPECT_PATH"`
	OptOutListPath          string `env:"PATH_OPT_OUT_LIST"`
	PurlRespondersPath      string `env:"PURL_RESPONDERS_1022_0123_PATH"`
	PurlPath                string `env:"PATH_PURL"`
	PhonePath               string `env:"PATH_PHONE"`
	PhoneStatusPath         string `env:"PATH_PHONE_20230308"`
	StatusPath              string `env:"PATH_STATUS"`
	StatusDescriptionPath   string `env:"PATH_STATUS_DESCRIPTION"`
	CallCenterPath          string `env:"CALL_CENTER_PATH"`
	CallCenterInboundPath   string `env:"CALL_CENTER_INBOUND_FORMAT_PATH"`
	USCensusPath            string `env:"PATH_TO_US_CENSUS_BUREAU_3RD_PARTY_DATA"`
	GenderNamesPath         string `env:"PATH_GENDER_NAMES"`
	LeadNameMatchDistance   int    `env:"LEAD_NAME_MATCH_DISTANCE" envDefault:"0"`
	RandomSeed              uint64 `env:"RANDOM_SEED" envDefault:"0"`
	NumberOfFeatures        int    `env:"NUMBER_OF_FEATURES"`
	ExcludedWithIDPath      string `env:"PATH_TO_LEADS_WITH_ID_THAT_NEED_TO_BE_EXCLUDED"`
	ExcludedWithoutIDPath   string `env:"PATH_TO_LEADS_WITHOUT_ID_THAT_NEED_TO_BE_EXCLUDED"`
	MissingClientsPath      string `env:"PATH_MISSING_CLIENTS"`
	DuplicatesToScorePath   string `env:"PATH_DUPLICATES_TO_SCORE"`
	FinalCallCenterPath     string `env:"PATH_FINAL_CALL_CENTER"`
	FinalDatasetPath        string `env:"PATH_FINAL_DATASET"`
	PickleFilesPath         string `env:"PATH_TO_STORE_PICKLE_FILES"`

	// Debt in America (mode 1 and 4).
	DebtAutoPath        string `env:"PATH_DEBT_IN_AMERICA_JUNE_2022_AUTO"`
	DebtDelinquencyPath string `env:"PATH_DEBT_IN_AMERICA_JUNE_2022_DELINQUENCY"`
	DebtMedicalPath     string `env:"PATH_DEBT_IN_AMERICA_JUNE_2022_MEDICAL"`
	DebtStudentPath     string `env:"PATH_DEBT_IN_AMERICA_JUNE_2022_STUDENT"`
	ZipGEOIDPath        string `env:"PATH_TO_DF_MATCHING_ZIPCODES_TO_GEOIDS"`

	// Census deluxe (mode 2).
	Census2010Path      string `env:"PATH_TO_STORE_CENSUS_2010_DF"`
	CensusACSPath       string `env:"PATH_TO_STORE_CENSUS_2017_2021_DF"`
	CensusDeluxePath    string `env:"PATH_TO_STORE_CENSUS_DELUXE_DF"`
	CensusPlaceFIPSPath string `env:"PATH_TO_CENSUS_PLACE_FIPS"`

	// Federal Reserve Bank of Philadelphia (mode 3 and 4).
	FedReservePath          string `env:"PATH_FEDERAL_RESERVE_BANK_PHILADELPHIA"`
	FedPreprocessedDir      string `env:"PATH_TO_STORE_PREPROCESSED_BANK_OF_PHILADELPHIA_FILES"`
	FedPreprocessedReadGlob string `env:"PATH_TO_READ_ALL_PREPROCESSED_BANK_OF_PHILADELPHIA_FILES"`
	FedFinalPath            string `env:"PATH_TO_STORE_BANK_OF_PHILADELPHIA_FINAL_FILE"`

	// Snapshot store. An empty DSN of the dir backend falls back to
	// PATH_TO_STORE_PICKLE_FILES.
	SnapshotBackend string `env:"SNAPSHOT_BACKEND" envDefault:"dir"`
	SnapshotDSN     string `env:"SNAPSHOT_DSN"`

	LogDir   string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MetricsBackend string `env:"METRICS_BACKEND"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL" envDefault:"http://localhost:9091"`
	MetricsTags    string `env:"METRICS_TAGS"`
}

// LoadEnv loads the given .env files that exist into the process environment.
// Variables already set are not overridden. It returns how many files were
// loaded.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if st, err := os.Stat(f); err == nil && !st.IsDir() {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads envFiles (DefaultEnvFiles when none are given) and parses the
// environment. It does not validate; call Validate.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("config: load env files: %w", err)
	}
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return c, nil
}

// Parse builds a Config from an explicit variable map instead of the process
// environment.
func Parse(vars map[string]string) (*Config, error) {
	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return c, nil
}

// Mode is the enrichment selector.
func (c *Config) Mode() enrich.Mode { return enrich.Mode(c.NumberOfFeatures) }

// LogrusLevel maps LOG_LEVEL to a logrus level. DEBUG_MODE forces debug and
// an unparseable level falls back to info.
func (c *Config) LogrusLevel() logrus.Level {
	if c.DebugMode {
		return logrus.DebugLevel
	}
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func parseLevel(s string) (logrus.Level, error) {
	return logrus.ParseLevel(strings.TrimSpace(s))
}

// Snapshot returns the snapshot store configuration.
func (c *Config) Snapshot() snapshot.Config {
	dsn := c.SnapshotDSN
	if dsn == "" && c.SnapshotBackend == "dir" {
		dsn = c.PickleFilesPath
	}
	return snapshot.Config{Kind: c.SnapshotBackend, DSN: dsn}
}
