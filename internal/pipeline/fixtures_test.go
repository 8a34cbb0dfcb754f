package pipeline

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/xuri/excelize/v2"

	"leadetl/internal/config"
	"leadetl/internal/gender"
	"leadetl/internal/snapshot"
	"leadetl/internal/table"
)

type sheet struct {
	name string
	rows [][]string
}

// writeBook writes an xlsx workbook with the given sheets, in order.
func writeBook(t *testing.T, path string, sheets ...sheet) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f := excelize.NewFile()
	defer f.Close()
	for i, s := range sheets {
		switch {
		case i == 0 && s.name != "Sheet1":
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		case i > 0:
			if _, err := f.NewSheet(s.name); err != nil {
				t.Fatalf("NewSheet: %v", err)
			}
		}
		for r, row := range s.rows {
			if len(row) == 0 {
				continue
			}
			vals := make([]any, len(row))
			for j, v := range row {
				vals[j] = v
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(s.name, cell, &vals); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
}

// writeTable writes a CSV with header cols and the given rows.
func writeTable(t *testing.T, path string, cols []string, rows ...[]string) {
	t.Helper()
	tb := table.New(filepath.Base(path), cols...)
	for _, r := range rows {
		tb.Append(r...)
	}
	if err := tb.WriteCSVFile(path); err != nil {
		t.Fatalf("WriteCSVFile: %v", err)
	}
}

func writeText(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// seqUUID returns a generator of predictable UUIDs.
func seqUUID() func() uuid.UUID {
	var n uint16
	return func() uuid.UUID {
		n++
		var u uuid.UUID
		u[0] = 0x10
		u[14], u[15] = byte(n>>8), byte(n)
		return u
	}
}

func testEnv(cfg *config.Config) (*Env, *snapshot.Memory, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	store := snapshot.NewMemory()
	return &Env{
		Cfg:     cfg,
		Store:   store,
		Log:     log,
		Gender:  gender.Default(),
		NewUUID: seqUUID(),
		Rand:    rand.New(rand.NewPCG(1, 1)),
	}, store, hook
}

const fedHomeEquity = `{"data":[
 {"state":"Massachusetts","total":[
   {"month":1,"year":2022,"dollars":10},
   {"month":2,"year":2022,"dollars":20},
   {"month":3,"year":2022,"dollars":30}]},
 {"state":"New York","total":[{"month":1,"year":2022,"dollars":7}]}
]}`

// fixture lays out a complete set of pipeline inputs under dir and returns
// the matching configuration.
//
// Leads: John Smith (fullname prospect, Cambridge), Mary Major (to be scored,
// listed twice), Jane Roe (prospect on the opt-out list), Bob Stone (prospect
// and PDR lead 12345-67890-C, called twice, PURL responder) and Ann (PDR lead
// on the opt-out list).
func fixture(t *testing.T, dir string) *config.Config {
	t.Helper()
	p := func(parts ...string) string { return filepath.Join(append([]string{dir}, parts...)...) }

	writeBook(t, p("optout.xlsx"), sheet{OptOutSheet, [][]string{
		{"Reference ID", "First Name", "Last Name", "Address", "City", "State"},
		{"39407-68469-B", "Ann", "Lee", "", "", ""},
		{"", "Jane", "Roe", "1 Elm St", "Boston", "MA"},
	}})

	writeTable(t, p("prospects", "Fullname_PD_031523.csv"),
		[]string{"First Name", "Middle Initial", "Surname", "Street", "City", "State Abbreviation", "Zip Code", "debt"},
		[]string{"John", "Q", "Smith", "5 Main St", "Cambridge", "MA", "021391234", "12000"},
	)
	writeTable(t, p("prospects", "To Be Scored", "PD_TBS_040123.csv"),
		[]string{"FNAME", "LNAME", "ADDRESS", "CITY", "STATE", "ZIP", "ZIP4", "EST DEBT "},
		[]string{"Mary", "Major", "9 State St", "Albany", "NY", "12207", "1", "8000"},
		[]string{"Mary", "Major", "9 State St", "Albany", "NY", "12207", "1", "8000"},
	)
	writeTable(t, p("prospects", "PD_DM_020123.csv"),
		[]string{"FNAME", "LNAME", "ADDRESS", "CITY", "STATE", "ZIP", "ZIP4", "EST DEBT"},
		[]string{"Jane", "Roe", "1 Elm St", "Boston", "MA", "2108", "", "5000"},
		[]string{"Bob", "Stone", "3 Oak Ave", "Albany", "NY", "12207", "", "7000"},
	)

	pdrHeader := []string{"Lead Source", "Status", "First Name", "Surname", "Street", "City", "State Abbreviation", "Zip Code", "EHV", "Reference ID", "DID", "DM PURL"}
	writeBook(t, p("pdr", "PDR_0301.xlsx"),
		sheet{"Sheet1", [][]string{{"summary"}}},
		sheet{PDRSheet, [][]string{
			pdrHeader,
			{"Mail", "New", "Bob", "Stone", "3 Oak Ave", "Albany", "NY", "12207", "7000", "12345-67890-A", "8005550001", "pd.com/1234567890"},
			{"Mail", "New", "Bob", "Stone", "3 Oak Ave", "Albany", "NY", "12207", "7000", "12345-67890-C", "8005550001", "pd.com/1234567890"},
			{"Mail", "New", "Ann", "Lee", "7 Pine Rd", "Troy", "NY", "12180", "9000", "39407-68469-B", "8005550002", "pd.com/3940768469"},
			{"Mail", "New", "Zed", "Nope", "1 Bad Rd", "Troy", "NY", "12180", "9000", "123-A", "8005550003", ""},
		}},
	)
	writeBook(t, p("pdr", "PDR_notes.xlsx"), sheet{"Sheet1", [][]string{{"notes"}}})

	writeTable(t, p("crm", "status.csv"),
		[]string{"Id", "DM Reference ID", "Date Added", "Status", "Lead Source"},
		[]string{"1", "12345-67890-C", "2023-03-01", "Client", "CRM"},
		[]string{"2", "99999-99999-A", "2023-03-02", "Hot", "CRM"},
		[]string{"3", "55555-55555-A", "2023-03-02", StatusTestLead, "CRM"},
	)
	writeTable(t, p("crm", "phone_status.csv"),
		[]string{"Id", "DM Reference ID", "Date Added", "Status", "Lead Source", "Mobile Phone", "Home Phone", "Work Phone"},
		[]string{"4", "12345-67890-A", "2023-03-05", "Scheduled Appointment", "CRM", "", "(617) 555-0100", ""},
	)
	writeTable(t, p("crm", "phone.csv"),
		[]string{"DM Reference ID", "Mobile Phone", "Home Phone", "Work Phone"},
		[]string{"12345-67890-C", "", "", "617-555-0100"},
	)
	writeTable(t, p("crm", "descriptions.csv"),
		[]string{"Status", "Description"},
		[]string{"Scheduled Appointment", "Booked"},
		[]string{"Aged - Uncontacted", "old"},
		[]string{"Aged - Uncontacted", "Never reached"},
	)

	writeBook(t, p("cc", "agent.xlsx"),
		sheet{"Cover Sheet", [][]string{{"Report"}}},
		sheet{"Agent Performance", [][]string{{"Agent", "Calls"}, {"Alice", "4"}}},
		sheet{"Alice", agentGrid()},
	)
	writeBook(t, p("cc_inbound", "inbound.xlsx"),
		sheet{"Cover Sheet", [][]string{{"Report"}}},
		sheet{"Calls", [][]string{
			{"Date", "Queue", "Trunk", "Caller ID", "Call Time", "Exit Reason"},
			{"2023-03-09 15:00:00", "Sales_Inbound_Main", "T4", "(518) 555-0199", "45", "Completed"},
		}},
	)

	writeTable(t, p("purl", "responders.csv"),
		[]string{"Reference ID", "First", "Last", "Zip", "Debt Amount", "f.First", "f.Last", "f.Email", "f.Phone"},
		[]string{"pd.com/1234567890", "Bob", "Stone", "12207", "7000", "Bob", "Stone", "bob@example.com", "6175550100"},
		[]string{"pd.com/1234567890", "Bob", "Stone", "12207", "7000", "Bob", "Stone", "bob@example.com", "6175550100"},
	)
	writeTable(t, p("census.csv"),
		[]string{"Zipcode", "Mean_Income"},
		[]string{"12207", "55000"},
		[]string{"2139", "80000"},
	)

	for _, d := range []struct{ file, col, v string }{
		{"auto.xlsx", "auto_share", "10"},
		{"delinquency.xlsx", "delinq_share", "2"},
		{"medical.xlsx", "medical_share", "3"},
		{"student.xlsx", "student_share", "4"},
	} {
		writeBook(t, p("debt", d.file), sheet{DebtSheet, [][]string{
			{"GEOID", "NAME", d.col},
			{"36001", "Albany County", d.v},
		}})
	}
	writeTable(t, p("debt", "zip_geoid.csv"), []string{"ZCTA5", "GEOID"}, []string{"12207", "36001"})
	writeText(t, p("fed", "Home Equity", "balance.json"), fedHomeEquity)

	return &config.Config{
		OptOutListPath:          p("optout.xlsx"),
		ProspectFullnamePath:    p("prospects", "**", "Fullname*.csv"),
		ProspectsToBeScoredPath: p("prospects", ToBeScoredMarker, "*.csv"),
		ProspectPath:            p("prospects", "**", "*.csv"),
		PDRFilesPath:            p("pdr", "*.xlsx"),
		StatusPath:              p("crm", "status.csv"),
		PhoneStatusPath:         p("crm", "phone_status.csv"),
		PhonePath:               p("crm", "phone.csv"),
		StatusDescriptionPath:   p("crm", "descriptions.csv"),
		CallCenterPath:          p("cc", "*.xlsx"),
		CallCenterInboundPath:   p("cc_inbound", "*.xlsx"),
		PurlRespondersPath:      p("purl", "*.csv"),
		USCensusPath:            p("census.csv"),
		NumberOfFeatures:        4,
		RandomSeed:              1,

		DebtAutoPath:        p("debt", "auto.xlsx"),
		DebtDelinquencyPath: p("debt", "delinquency.xlsx"),
		DebtMedicalPath:     p("debt", "medical.xlsx"),
		DebtStudentPath:     p("debt", "student.xlsx"),
		ZipGEOIDPath:        p("debt", "zip_geoid.csv"),

		FedReservePath:     p("fed", "**", "*.json"),
		FedPreprocessedDir: p("out", "fed"),
		FedFinalPath:       p("out", "fed_final.csv"),

		ExcludedWithIDPath:    p("out", "excluded_with_id.csv"),
		ExcludedWithoutIDPath: p("out", "excluded_without_id.csv"),
		MissingClientsPath:    p("out", "missing_clients.csv"),
		DuplicatesToScorePath: p("out", "duplicates_to_score.csv"),
		FinalCallCenterPath:   p("out", "call_center.csv"),
		FinalDatasetPath:      p("out", "final.csv"),
	}
}

// agentGrid is an agent sheet with one call per section. Bob's number shows
// up in the queue and inbound sections.
func agentGrid() [][]string {
	queueHeader := []string{"#", "Date", "Queue", "Trunk", "Caller ID", "Agent", "Wait", "Call Time", "Exit Reason", "CRM Status"}
	otherHeader := []string{"#", "Date", "Queue", "Trunk", "Source", "Destination", "Caller ID", "Call Time", "Exit Reason", "CRM Status"}
	return [][]string{
		{"Agent Performance / Queue"},
		{"Summary", "", "Total", "4"},
		{},
		{sectionQueue},
		queueHeader,
		{"1", "2023-03-06 10:00:00", "Sales_Inbound_Main", "T1", "16175550100", "Alice", "5", "120", "Agent Hangup", "Client!"},
		{},
		{sectionInbound},
		otherHeader,
		{"1", "2023-03-07 11:00:00", "Sales_Inbound_Main", "T2", "6175550100", "200", "", "90", "Caller Hangup", ""},
		{sectionOutbound},
		otherHeader,
		{"1", "2023-03-08 09:00:00", "Sales_Outbound", "T3", "200", "5185550199", "", "60", "Completed", ""},
		{sectionInternal},
		otherHeader,
		{"1", "2023-03-08 12:00:00", "Internal", "", "101", "102", "", "30", "Completed", ""},
	}
}
