package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadetl/internal/config"
	"leadetl/internal/features"
	"leadetl/internal/loader"
	"leadetl/internal/resolve"
	"leadetl/internal/snapshot"
	"leadetl/internal/table"
)

func byFirstName(t *testing.T, tb *table.Table) map[string]map[string]string {
	t.Helper()
	ix, ok := tb.Index("input_feature_pd_first_name")
	require.True(t, ok, "first name column")
	out := map[string]map[string]string{}
	for _, r := range tb.Rows {
		m := make(map[string]string, len(tb.Columns))
		for i, c := range tb.Columns {
			m[c] = r.V[i]
		}
		out[r.V[ix]] = m
	}
	return out
}

func rowsIn(t *testing.T, path string) int {
	t.Helper()
	tb, err := loader.Load(context.Background(), path, loader.Options{})
	require.NoError(t, err, path)
	return tb.Len()
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	cfg := fixture(t, dir)
	env, store, hook := testEnv(cfg)

	require.NoError(t, NewRunner(env).Run(ctx, ""))

	final, err := store.Load(ctx, SnapFinal)
	require.NoError(t, err)
	require.Equal(t, 3, final.Len(), "John, Mary and Bob survive")
	require.NoError(t, features.CheckNames(final.Columns))

	leads := byFirstName(t, final)
	bob, john, mary := leads["Bob"], leads["John"], leads["Mary"]
	require.NotNil(t, bob)
	require.NotNil(t, john)
	require.NotNil(t, mary)

	assert.Equal(t, "1234567890", bob["input_feature_pd_customer_lead_id"])
	assert.Equal(t, "3", bob["input_feature_pd_mailings_sent_so_far"])
	assert.Equal(t, "2", bob["input_feature_pd_number_of_calls_so_far"])
	assert.Equal(t, features.Contacted, bob["target"])
	assert.Equal(t, features.Contacted, bob["temporary_target"])
	assert.Equal(t, features.PurlYes, bob["input_feature_pd_customer_purl_fully_completed"])
	assert.Equal(t, features.Inbound, bob["input_feature_pd_phone_center_activity"])
	assert.Equal(t, "6175550100", bob["input_feature_pd_customer_phone"])
	assert.Equal(t, "bob@example.com", bob["input_feature_pd_purl_email"])
	assert.Equal(t, "55000", bob["input_feature_3rdParty_mean_income_per_zip"])
	assert.Equal(t, "10", bob["input_feature_3rdParty_auto_share"])
	assert.Equal(t, "4", bob["input_feature_3rdParty_student_share"])
	assert.Equal(t, "7", bob["input_feature_3rdParty_Home_Equity_balance_mean"])

	assert.Equal(t, "male", john["input_feature_pd_customer_gender"])
	assert.Equal(t, "02139", john["input_feature_pd_customer_zip1"])
	assert.Equal(t, "1234", john["input_feature_pd_customer_zip2"])
	assert.Equal(t, "2023-03-15", john["input_feature_pd_date_of_lead_purchased"])
	assert.Equal(t, "0", john["input_feature_pd_mailings_sent_so_far"])
	assert.Equal(t, features.Uncontacted, john["target"])
	assert.Equal(t, features.Uncontacted, john["temporary_target"])
	assert.Equal(t, features.PurlNotClicked, john["input_feature_pd_customer_purl_fully_completed"])
	assert.Equal(t, features.NoContact, john["input_feature_pd_phone_center_activity"])
	assert.Equal(t, "80000", john["input_feature_3rdParty_mean_income_per_zip"])
	assert.Equal(t, "", john["input_feature_3rdParty_auto_share"])
	assert.Equal(t, "20", john["input_feature_3rdParty_Home_Equity_balance_mean"])
	assert.Len(t, john["input_feature_pd_customer_lead_id"], 10)

	assert.Equal(t, toBeScored, mary["input_feature_pd_customer_lead_to_be_scored"])
	assert.Equal(t, "female", mary["input_feature_pd_customer_gender"])
	assert.Equal(t, "0001", mary["input_feature_pd_customer_zip2"])

	ids := map[string]bool{}
	for _, l := range leads {
		ids[l["input_feature_pd_customer_lead_id"]] = true
	}
	assert.Len(t, ids, 3, "lead ids are unique")

	desc, err := store.Load(ctx, SnapAddDescription)
	require.NoError(t, err)
	for _, r := range desc.Rows {
		switch desc.Get(r, colFirstName) {
		case "Bob":
			assert.Equal(t, "Booked", desc.Get(r, "Description"))
		case "John":
			assert.Equal(t, features.StatusAgedUncontacted, desc.Get(r, colStatus))
			assert.Equal(t, "Never reached", desc.Get(r, "Description"))
		}
	}

	assert.Equal(t, 1, rowsIn(t, cfg.ExcludedWithoutIDPath))
	assert.Equal(t, 1, rowsIn(t, cfg.ExcludedWithIDPath))
	assert.Equal(t, 1, rowsIn(t, cfg.MissingClientsPath))
	assert.Equal(t, 2, rowsIn(t, cfg.DuplicatesToScorePath))
	assert.Equal(t, 4, rowsIn(t, cfg.FinalCallCenterPath))
	assert.Equal(t, 3, rowsIn(t, cfg.FinalDatasetPath))
	assert.Equal(t, 2, rowsIn(t, cfg.FedFinalPath))
	assert.FileExists(t, filepath.Join(cfg.FedPreprocessedDir, "Home_Equity_Balance.csv"))

	done := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "pipeline: stage done" {
			done++
		}
	}
	assert.Equal(t, len(Stages()), done)
}

func TestRun_OptOutListShrinkKeepsMoreLeads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	cfg := fixture(t, dir)
	writeBook(t, cfg.OptOutListPath, sheet{OptOutSheet, [][]string{
		{"Reference ID", "First Name", "Last Name", "Address", "City", "State"},
		{"39407-68469-B", "Ann", "Lee", "", "", ""},
	}})
	env, store, _ := testEnv(cfg)

	require.NoError(t, NewRunner(env).Run(ctx, ""))
	final, err := store.Load(ctx, SnapFinal)
	require.NoError(t, err)
	assert.Equal(t, 4, final.Len(), "Jane is no longer opted out")
	assert.Equal(t, 0, rowsIn(t, cfg.ExcludedWithoutIDPath))
}

func TestRun_ResumeFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := fixture(t, t.TempDir())
	env, store, _ := testEnv(cfg)
	require.NoError(t, NewRunner(env).Run(ctx, ""))
	require.NoError(t, os.Remove(cfg.FinalDatasetPath))

	require.NoError(t, NewRunner(env).Run(ctx, "make_final_modifications"))
	assert.FileExists(t, cfg.FinalDatasetPath)
	final, err := store.Load(ctx, SnapFinal)
	require.NoError(t, err)
	assert.Equal(t, 3, final.Len())

	fresh, _, _ := testEnv(cfg)
	err = NewRunner(fresh).Run(ctx, "format_status")
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrNotFound), "got %v", err)
	assert.Contains(t, err.Error(), "format_status")
}

func TestRun_UnknownStage(t *testing.T) {
	t.Parallel()
	env, _, _ := testEnv(&config.Config{})
	err := NewRunner(env).Run(context.Background(), "format_everything")
	var ue *UnknownStageError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "format_everything", ue.Name)
	assert.Contains(t, err.Error(), "clear_opt_out_list")
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env, _, _ := testEnv(&config.Config{})
	err := NewRunner(env).Run(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_StopsAtFailingStage(t *testing.T) {
	t.Parallel()
	env, _, hook := testEnv(&config.Config{})
	ran := []string{}
	boom := errors.New("boom")
	r := &Runner{Env: env, Stages: []Stage{
		{Name: "a", Run: func(context.Context, *Env) error { ran = append(ran, "a"); return nil }},
		{Name: "b", Run: func(context.Context, *Env) error { ran = append(ran, "b"); return boom }},
		{Name: "c", Run: func(context.Context, *Env) error { ran = append(ran, "c"); return nil }},
	}}
	err := r.Run(context.Background(), "")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "pipeline: b: boom", err.Error())
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, "pipeline: stage failed", hook.LastEntry().Message)
}

func TestNames(t *testing.T) {
	t.Parallel()
	names := Names()
	require.Len(t, names, 14)
	assert.Equal(t, "clear_opt_out_list", names[0])
	assert.Equal(t, "enrich", names[len(names)-1])
	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate stage %s", n)
		seen[n] = true
	}
}

func TestNewEnv_GenderOverride(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := filepath.Join(dir, "names.csv")
	writeText(t, p, "name,gender\nbob,male\n")

	env, err := NewEnv(&config.Config{GenderNamesPath: p, RandomSeed: 3}, snapshot.NewMemory(), nil)
	require.NoError(t, err)
	assert.Equal(t, "male", env.Gender.Guess("Bob"))

	_, err = NewEnv(&config.Config{GenderNamesPath: filepath.Join(dir, "missing.csv")}, snapshot.NewMemory(), nil)
	assert.Error(t, err)
}

func TestParseAgentSheet(t *testing.T) {
	t.Parallel()
	got, err := parseAgentSheet("agent[Alice]", agentGrid())
	require.NoError(t, err)
	assert.Equal(t, callColumns, got.Columns)
	callers, _ := got.Column(colCallerID)
	assert.Equal(t, []string{"16175550100", "6175550100", "5185550199", "101"}, callers)
	queues, _ := got.Column("Queue")
	assert.Equal(t, []string{"Sales_Inbound_Main", "Sales_Inbound_Main", "Sales_Outbound", "Internal"}, queues)
	assert.Equal(t, "Client!", got.Get(got.Rows[0], colCRMStatus))
}

func TestParseAgentSheet_Layout(t *testing.T) {
	t.Parallel()
	noQueue := agentGrid()
	noQueue[3] = []string{"Details"}

	wide := agentGrid()
	wide[5] = append(wide[5], "extra")

	swapped := agentGrid()
	swapped[7], swapped[10] = swapped[10], swapped[7]

	for name, grid := range map[string][][]string{
		"no queue section": noQueue,
		"eleven columns":   wide,
		"misplaced":        swapped,
	} {
		_, err := parseAgentSheet("agent[x]", grid)
		var le *loader.LayoutError
		assert.ErrorAs(t, err, &le, name)
	}
}

func TestCleanStatus(t *testing.T) {
	t.Parallel()
	env, _, _ := testEnv(&config.Config{})
	tb := table.New("status", "Id", colRefID, colDateAdded, colStatus)
	tb.Append("1", "12345-67890-A", "3/1/2023", "Client")
	tb.Append("2", "12345-67890-A", "2023-03-09", "Hot")
	tb.Append("3", "22222-33333-A", "soon", "Hot")
	tb.Append("4", "44444-55555-A", "2023-03-02", StatusTestLead)
	tb.Append("5", "1-A", "2023-03-02", "Hot")
	tb.Append("6", "", "2023-03-02", "Hot")

	require.NoError(t, cleanStatus(env, tb))
	assert.False(t, tb.Has("Id"))
	require.Equal(t, 1, tb.Len())
	assert.Equal(t, []string{"1234567890", "2023-03-01", "Client"}, tb.Rows[0].V)
}

func TestPhoneColumn(t *testing.T) {
	t.Parallel()
	env, _, _ := testEnv(&config.Config{})
	tb := table.New("phones", colRefID, "Mobile Phone", "Home Phone", "Work Phone")
	tb.Append("a", "", "(617) 555-0100", "5185550199")
	tb.Append("b", "1-518-555-0199", "", "")
	tb.Append("c", "", "", "")

	require.NoError(t, phoneColumn(env, tb))
	assert.Equal(t, []string{colRefID, colPhone}, tb.Columns)
	phones, _ := tb.Column(colPhone)
	assert.Equal(t, []string{"6175550100", "5185550199"}, phones)
}

func TestCallReport(t *testing.T) {
	t.Parallel()
	calls := table.New(SnapCallCenter, callColumns...)
	calls.Append("2023-03-06 10:00:00", "Sales_Inbound_Main", "T1", "6175550100", "120", "", "")
	calls.Append("2023-03-07 11:00:00", "Sales_Outbound", "T2", "6175550100", "90", "", "")
	calls.Append("2023-03-01 09:00:00", "Sales_Inbound_Main", "T3", "5185550199", "30", "", "")

	rep, err := callReport(calls)
	require.NoError(t, err)
	assert.False(t, rep.Has(colCallerID))
	require.Equal(t, 2, rep.Len())
	assert.Equal(t, "6175550100", rep.Get(rep.Rows[0], colPhone))
	assert.Equal(t, "2", rep.Get(rep.Rows[0], colCallsNumber))
	assert.Equal(t, "Sales_Outbound", rep.Get(rep.Rows[0], "Queue"))
	assert.Equal(t, "1", rep.Get(rep.Rows[1], colCallsNumber))
	assert.Equal(t, 3, calls.Len(), "input is not modified")
}

func TestFormatPurlResponders_UnsupportedExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeText(t, filepath.Join(dir, "purl", "responders.txt"), "Reference ID\n1\n")
	env, _, _ := testEnv(&config.Config{PurlRespondersPath: filepath.Join(dir, "purl", "*")})

	err := formatPurlResponders(context.Background(), env)
	assert.ErrorIs(t, err, loader.ErrUnsupportedExtension)
}

func TestFormatPurlResponders_MissingKeyColumn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	writeTable(t, filepath.Join(dir, "purl", "responders.csv"),
		[]string{"Ref", "First", "f.First", "f.Last"},
		[]string{"pd.com/1234567890", "Bob", "Bob", "Stone"},
		[]string{"pd.com/1234567891", "Ann", "Ann", "Lee"},
		[]string{"pd.com/1234567892", "Kim", "", ""},
	)
	env, store, _ := testEnv(&config.Config{PurlRespondersPath: filepath.Join(dir, "purl", "*.csv")})

	err := formatPurlResponders(ctx, env)
	var mc *table.MissingColumnError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, "Reference ID", mc.Column)
	assert.Contains(t, err.Error(), "responders.csv")
	_, err = store.Load(ctx, SnapPurlResponders)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestStages_RequireInputFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope", "*.xlsx")
	writeBook(t, filepath.Join(dir, "cc", "agent.xlsx"), sheet{"Cover Sheet", [][]string{{"x"}}})

	tests := []struct {
		name string
		cfg  config.Config
		run  func(context.Context, *Env) error
		snap string
	}{
		{"pdr", config.Config{PDRFilesPath: missing}, formatPDR, SnapInitialPDR},
		{"purl", config.Config{PurlRespondersPath: missing}, formatPurlResponders, SnapPurlResponders},
		{"call center agents", config.Config{CallCenterPath: missing, CallCenterInboundPath: missing}, formatCallCenter, SnapCallCenter},
		{"call center inbound", config.Config{CallCenterPath: filepath.Join(dir, "cc", "*.xlsx"), CallCenterInboundPath: missing}, formatCallCenter, SnapCallCenter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			cfg := tt.cfg
			env, store, _ := testEnv(&cfg)

			err := tt.run(ctx, env)
			require.ErrorIs(t, err, loader.ErrNoMatch)
			assert.Contains(t, err.Error(), missing)
			_, err = store.Load(ctx, tt.snap)
			assert.ErrorIs(t, err, snapshot.ErrNotFound, "no snapshot is saved")
		})
	}
}

func TestFormatPDR_NoLeadSheet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	writeBook(t, filepath.Join(dir, "pdr", "PDR_notes.xlsx"), sheet{"Sheet1", [][]string{{"notes"}}})
	env, store, _ := testEnv(&config.Config{PDRFilesPath: filepath.Join(dir, "pdr", "*.xlsx")})

	err := formatPDR(ctx, env)
	var le *loader.LayoutError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Detail, PDRSheet)
	_, err = store.Load(ctx, SnapInitialPDR)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestEnrich_RejectsMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env, store, _ := testEnv(&config.Config{NumberOfFeatures: 7})
	require.NoError(t, store.Save(ctx, SnapFinalStageOne, table.New(SnapFinalStageOne, "x")))

	err := enrichFinal(ctx, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUMBER_OF_FEATURES")
}

func TestResolveLeads_Synthetic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env, store, _ := testEnv(&config.Config{})
	f := gofakeit.New(11)

	lead := func(tb *table.Table, first, last, zip, debt, ref string) {
		r := make([]string, len(tb.Columns))
		for i, c := range tb.Columns {
			switch c {
			case colFirstName:
				r[i] = first
			case colLastName:
				r[i] = last
			case colZip:
				r[i] = zip
			case colDebt:
				r[i] = debt
			case colRefID:
				r[i] = ref
			case colMailNumber:
				r[i] = "0"
			}
		}
		tb.Append(r...)
	}

	prospects := table.New(SnapProspects, pdrLayout...)
	for range 50 {
		lead(prospects, f.FirstName(), f.LastName(), f.Zip(), fmt.Sprint(f.Number(1000, 90000)), "")
	}
	pdr := table.New(SnapPDR, pdrLayout...)
	for i := range 20 {
		first, last, zip, debt := f.FirstName(), f.LastName(), f.Zip(), fmt.Sprint(f.Number(1000, 90000))
		if i == 0 {
			p := prospects.Rows[0]
			first, last, zip, debt = prospects.Get(p, colFirstName), prospects.Get(p, colLastName), prospects.Get(p, colZip), prospects.Get(p, colDebt)
		}
		lead(pdr, first, last, zip, debt, fmt.Sprintf("%05d-%05d-A", 10000+i, 20000+i))
	}
	require.NoError(t, store.Save(ctx, SnapProspects, prospects))
	require.NoError(t, store.Save(ctx, SnapPDR, pdr))

	require.NoError(t, resolveLeads(ctx, env))

	leads, err := store.Load(ctx, SnapLeads)
	require.NoError(t, err)
	assert.Equal(t, 69, leads.Len())
	assert.False(t, leads.Has(colRefID))

	for _, c := range []string{resolve.ColUUID, resolve.ColLeadID} {
		vals, err := leads.Column(c)
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, v := range vals {
			assert.NotEmpty(t, v, c)
			assert.False(t, seen[v], "duplicate %s %s", c, v)
			seen[v] = true
		}
	}

	lookup, err := store.Load(ctx, SnapLookup)
	require.NoError(t, err)
	assert.Equal(t, 20, lookup.Len())
	assert.Equal(t, "1000020000", lookup.Get(lookup.Rows[0], colRefID))
}
