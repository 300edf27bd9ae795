package civicapi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"townhall/internal/civic"
	"townhall/internal/logging"
	"townhall/internal/store"
)

// Fetcher retrieves representative data for one division.
type Fetcher interface {
	RepresentativeInfoByDivision(ctx context.Context, ocdID string) (*Response, error)
}

// Store is the persistence the importer writes through.
type Store interface {
	WithTx(ctx context.Context, fn func(tx *store.Tx) error) error
}

// Importer loads representatives into the store.
type Importer struct {
	fetcher     Fetcher
	store       Store
	concurrency int
}

// NewImporter creates an importer issuing at most concurrency API calls
// at once.
func NewImporter(f Fetcher, st Store, concurrency int) *Importer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Importer{fetcher: f, store: st, concurrency: concurrency}
}

// Result describes what happened to one division.
type Result struct {
	OCDID    string
	Official string
	Created  bool
	Err      error
}

// Summary collects per-division results in input order.
type Summary struct {
	Results []Result
}

// Created counts officials that did not exist before the import.
func (s Summary) Created() int {
	n := 0
	for _, r := range s.Results {
		if r.Created {
			n++
		}
	}
	return n
}

// Failed lists the divisions that could not be imported.
func (s Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Import fetches and stores the representative of each division. A
// division the API cannot answer for is recorded in the summary and the
// rest continue; a store failure stops the import.
func (im *Importer) Import(ctx context.Context, ocdIDs []string) (Summary, error) {
	timer := logging.StartTimer(logging.CategoryImport, "Importer.Import")
	defer timer.Stop()

	results := make([]Result, len(ocdIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i, id := range ocdIDs {
		g.Go(func() error {
			res := Result{OCDID: id}
			defer func() { results[i] = res }()

			resp, err := im.fetcher.RepresentativeInfoByDivision(gctx, id)
			if err != nil {
				res.Err = err
				logging.ImportWarn("Fetch %s failed: %v", id, err)
				return nil
			}
			div, office, official, err := resp.Representative(id)
			if err != nil {
				res.Err = err
				logging.ImportWarn("Skipping %s: %v", id, err)
				return nil
			}
			res.Official = official.Name

			created, err := im.save(gctx, id, div, office, official)
			if err != nil {
				res.Err = err
				return fmt.Errorf("failed to save %s: %w", id, err)
			}
			res.Created = created
			logging.ImportDebug("Imported %s: %s (created=%v)", id, official.Name, created)
			return nil
		})
	}
	err := g.Wait()

	summary := Summary{Results: results}
	logging.Import("Imported %d divisions: %d new officials, %d failed",
		len(ocdIDs), summary.Created(), len(summary.Failed()))
	return summary, err
}

// save get-or-creates the division, office and official. Contact details
// are only written for a newly created official.
func (im *Importer) save(ctx context.Context, ocdID string, div DivisionInfo, office OfficeInfo, info OfficialInfo) (bool, error) {
	var created bool
	err := im.store.WithTx(ctx, func(tx *store.Tx) error {
		d, _, err := tx.GetOrCreateDivision(ctx, ocdID, div.Name)
		if err != nil {
			return err
		}
		f, _, err := tx.GetOrCreateOffice(ctx, d.ID, office.Name)
		if err != nil {
			return err
		}
		o, isNew, err := tx.GetOrCreateOfficial(ctx, info.Name, f.ID, info.Party)
		if err != nil {
			return err
		}
		created = isNew
		if !isNew {
			return nil
		}
		return addContactDetails(ctx, tx, o.ID, info)
	})
	return created, err
}

func addContactDetails(ctx context.Context, tx *store.Tx, officialID int64, info OfficialInfo) error {
	for _, a := range info.Address {
		err := tx.AddAddress(ctx, &civic.Address{
			OfficialID:   officialID,
			LocationName: a.LocationName,
			Line1:        a.Line1,
			Line2:        a.Line2,
			Line3:        a.Line3,
			City:         a.City,
			State:        a.State,
			PostalCode:   a.Zip,
		})
		if err != nil {
			return err
		}
	}
	for _, c := range info.Channels {
		typ := civic.ChannelType(c.Type)
		if !typ.Valid() {
			logging.ImportWarn("Skipping unknown channel type %q for official %d", c.Type, officialID)
			continue
		}
		if err := tx.AddChannel(ctx, &civic.SocialMediaChannel{OfficialID: officialID, ChannelID: c.ID, Type: typ}); err != nil {
			return err
		}
	}
	for _, number := range info.Phones {
		if err := tx.AddPhone(ctx, &civic.Phone{OfficialID: officialID, Number: number}); err != nil {
			return err
		}
	}
	for _, u := range info.URLs {
		if err := tx.AddWebsite(ctx, &civic.Website{OfficialID: officialID, URL: u}); err != nil {
			return err
		}
	}
	for _, e := range info.Emails {
		if err := tx.AddEmail(ctx, &civic.Email{OfficialID: officialID, Address: e}); err != nil {
			return err
		}
	}
	return nil
}

// ReadDivisionIDs reads one division id per line, skipping blank lines and
// # comments.
func ReadDivisionIDs(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read division ids: %w", err)
	}
	return ids, nil
}

// Dedupe drops repeated division ids, keeping first occurrences.
func Dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// SortedFailures returns failed division ids in lexical order.
func (s Summary) SortedFailures() []string {
	var ids []string
	for _, r := range s.Failed() {
		ids = append(ids, r.OCDID)
	}
	sort.Strings(ids)
	return ids
}
