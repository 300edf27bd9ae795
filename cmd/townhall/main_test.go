package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townhall/internal/civic"
	"townhall/internal/config"
	"townhall/internal/store"
)

// execute runs the CLI against dbFile and returns its output. Flag
// variables are package globals, so each run starts from their defaults.
func execute(t *testing.T, dbFile string, args ...string) (string, error) {
	t.Helper()
	listSince, listThroughTwitter, listNoAttempts, listUSReps, listOrderAttempts = "", false, false, false, ""
	importInfile, usersStaff, serveAddr, dbPath, verbose = "", false, "", "", false
	configForce = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	full := append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "--db", dbFile}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedRep(t *testing.T, dbFile, ocdID, name string) civic.Official {
	t.Helper()
	st, err := store.Open(dbFile)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	d, _, err := st.GetOrCreateDivision(ctx, ocdID, name+"'s district")
	require.NoError(t, err)
	f, _, err := st.GetOrCreateOffice(ctx, d.ID, "United States House of Representatives")
	require.NoError(t, err)
	o := civic.Official{Name: name, Party: "Democratic", OfficeID: f.ID, InOffice: true}
	require.NoError(t, st.CreateOfficial(ctx, &o))
	return o
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "th.db")
	out, err := execute(t, db, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("schema version %d", store.CurrentSchemaVersion))
	_, err = os.Stat(db)
	assert.NoError(t, err)
}

func TestUsersCreate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "th.db")

	out, err := execute(t, db, "users", "create", "Volunteer@Example.ORG", "--staff")
	require.NoError(t, err)
	assert.Contains(t, out, "<Volunteer@example.org>")

	_, err = execute(t, db, "users", "create", "Volunteer@example.org")
	assert.ErrorContains(t, err, "already exists")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	u, err := st.GetUserByEmail(context.Background(), "Volunteer@example.org")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
}

func TestOfficialsList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "th.db")
	seedRep(t, db, "ocd-division/country:us/state:or/cd:3", "Earl Blumenauer")
	seedRep(t, db, "ocd-division/country:us/state:or", "Oregon Governor")

	out, err := execute(t, db, "officials", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Earl Blumenauer")
	assert.Contains(t, out, "Oregon Governor")
	assert.Contains(t, out, "2 officials")

	out, err = execute(t, db, "officials", "list", "--us-reps", "--order-by-attempts", "desc")
	require.NoError(t, err)
	assert.Contains(t, out, "Earl Blumenauer")
	assert.NotContains(t, out, "Oregon Governor")

	_, err = execute(t, db, "officials", "list", "--order-by-attempts", "sideways")
	assert.ErrorContains(t, err, "asc or desc")

	_, err = execute(t, db, "officials", "list", "--without-meetings-since", "last week")
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestPick(t *testing.T) {
	db := filepath.Join(t.TempDir(), "th.db")

	out, err := execute(t, db, "pick")
	require.NoError(t, err)
	assert.Contains(t, out, "No representative available")

	seedRep(t, db, "ocd-division/country:us/state:or/cd:3", "Earl Blumenauer")
	out, err = execute(t, db, "pick")
	require.NoError(t, err)
	assert.Contains(t, out, "Earl Blumenauer")
	assert.Contains(t, out, "/officials/1-earl-blumenauer/")
}

func TestImportReps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ocdID := strings.TrimPrefix(r.URL.Path, "/representatives/")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"divisions": {%q: {"name": "Oregon's 3rd", "officeIndices": [0]}},
			"offices": [{"name": "US House", "officialIndices": [0]}],
			"officials": [{"name": "Earl Blumenauer", "party": "Democratic", "phones": ["(202) 225-4811"]}]}`, ocdID)
	}))
	defer srv.Close()
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("TOWNHALL_CIVIC_BASE_URL", srv.URL)

	dir := t.TempDir()
	db := filepath.Join(dir, "th.db")
	infile := filepath.Join(dir, "districts.txt")
	require.NoError(t, os.WriteFile(infile, []byte("ocd-division/country:us/state:or/cd:3\n\nocd-division/country:us/state:or/cd:3\n"), 0644))

	out, err := execute(t, db, "import-reps", "--infile", infile)
	require.NoError(t, err)
	assert.Contains(t, out, "1 divisions, 1 new officials, 0 failed")

	out, err = execute(t, db, "import-reps", "ocd-division/country:us/state:or/cd:3")
	require.NoError(t, err)
	assert.Contains(t, out, "0 new officials")

	_, err = execute(t, db, "import-reps")
	assert.ErrorContains(t, err, "no division ids")
}

func TestConfigInit(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("TOWNHALL_DB", "")
	t.Setenv("TOWNHALL_ADDR", "")
	db := filepath.Join(t.TempDir(), "th.db")
	path := filepath.Join(t.TempDir(), "conf", "townhall.yaml")

	out, err := execute(t, db, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	def := config.DefaultConfig()
	assert.Equal(t, def.Server.Addr, loaded.Server.Addr)
	assert.Equal(t, def.Database.Path, loaded.Database.Path)
	assert.Equal(t, def.Civic.Concurrency, loaded.Civic.Concurrency)

	_, err = execute(t, db, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0644))
	_, err = execute(t, db, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
	_, err = config.Load(path)
	assert.NoError(t, err)
}
