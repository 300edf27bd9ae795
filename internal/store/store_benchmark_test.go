package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"townhall/internal/civic"
)

func BenchmarkRunMigrations(b *testing.B) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		b.Fatalf("Failed to open memory database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	// A v1 layout so the column checks have something to find.
	setupSQL := `
	CREATE TABLE schema_versions (version INTEGER NOT NULL, applied_at TEXT NOT NULL);
	CREATE TABLE meetings (id INTEGER PRIMARY KEY, official_id INTEGER, date TEXT);
	CREATE TABLE addresses (id INTEGER PRIMARY KEY, official_id INTEGER, line1 TEXT);
	`
	if _, err := db.Exec(setupSQL); err != nil {
		b.Fatalf("Failed to setup benchmark db: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Only the first run alters tables; later runs measure the checks.
		if err := RunMigrations(db); err != nil {
			b.Fatalf("RunMigrations failed: %v", err)
		}
	}
}

func BenchmarkEligibleRepresentativeIDs(b *testing.B) {
	st, err := Open(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("Open failed: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	// 435 districts; every third has a meeting.
	for i := 0; i < 435; i++ {
		state := fmt.Sprintf("%c%c", 'a'+i/260, 'a'+(i/10)%26)
		ocd := fmt.Sprintf("ocd-division/country:us/state:%s/cd:%d", state, i%10+1)
		d, _, err := st.GetOrCreateDivision(ctx, ocd, ocd)
		if err != nil {
			b.Fatal(err)
		}
		f, _, err := st.GetOrCreateOffice(ctx, d.ID, "United States House of Representatives")
		if err != nil {
			b.Fatal(err)
		}
		o := civic.Official{Name: fmt.Sprintf("Rep %d", i), OfficeID: f.ID, InOffice: true}
		if err := st.CreateOfficial(ctx, &o); err != nil {
			b.Fatal(err)
		}
		if i%3 == 0 {
			if err := st.CreateMeeting(ctx, &civic.Meeting{OfficialID: o.ID, Date: st.Now()}); err != nil {
				b.Fatal(err)
			}
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ids, err := st.EligibleRepresentativeIDs(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if len(ids) != 290 {
			b.Fatalf("eligible = %d, want 290", len(ids))
		}
	}
}
