package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"townhall/internal/civic"
	"townhall/internal/outreach"
	"townhall/internal/store"
)

// Style definitions.
var styles = struct {
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Border  lipgloss.Style
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
}{
	Header: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Padding(0, 1),
	Cell: lipgloss.NewStyle().
		Padding(0, 1),
	Border: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("62")).
		Padding(0, 1),
	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color("244")),
	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true),
	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true),
}

var (
	listSince          string
	listThroughTwitter bool
	listNoAttempts     bool
	listUSReps         bool
	listOrderAttempts  string
)

// officialsCmd groups the official queries
var officialsCmd = &cobra.Command{
	Use:   "officials",
	Short: "Query officials",
}

var officialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List officials matching the given filters",
	Long: `Lists officials as a table. Filters combine.

Examples:
  townhall officials list --without-meetings-since 2017-01-01
  townhall officials list --us-reps --order-by-attempts desc`,
	Args: cobra.NoArgs,
	RunE: runOfficialsList,
}

func init() {
	f := officialsListCmd.Flags()
	f.StringVar(&listSince, "without-meetings-since", "", "Only officials with no meeting on or after this date (YYYY-MM-DD)")
	f.BoolVar(&listThroughTwitter, "through-twitter", false, "Only officials who announce meetings on social media or Twitter")
	f.BoolVar(&listNoAttempts, "without-contact-attempts", false, "Only officials nobody has contacted")
	f.BoolVar(&listUSReps, "us-reps", false, "Only US House representatives")
	f.StringVar(&listOrderAttempts, "order-by-attempts", "", "Order by number of contact attempts: asc or desc")

	officialsCmd.AddCommand(officialsListCmd)
}

// buildQuery turns the list flags into a query.
func buildQuery() (store.OfficialQuery, error) {
	q := store.Officials()
	if listSince != "" {
		since, err := civic.ParseDate(listSince)
		if err != nil {
			return q, fmt.Errorf("--without-meetings-since must be a date formatted YYYY-MM-DD: %w", err)
		}
		q = q.WithoutMeetingsSince(since)
	}
	if listThroughTwitter {
		q = q.ThroughTwitter()
	}
	if listNoAttempts {
		q = q.WithoutContactAttempts()
	}
	if listUSReps {
		q = q.USReps()
	}
	switch listOrderAttempts {
	case "":
	case "asc":
		q = q.OrderByContactAttempts(false)
	case "desc":
		q = q.OrderByContactAttempts(true)
	default:
		return q, fmt.Errorf("--order-by-attempts must be asc or desc, got %q", listOrderAttempts)
	}
	return q, nil
}

func runOfficialsList(cmd *cobra.Command, args []string) error {
	q, err := buildQuery()
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	list, err := st.ListOfficials(ctx, q)
	if err != nil {
		return err
	}
	if err := st.LoadDetails(ctx, list, store.DetailMeetings); err != nil {
		return err
	}
	ids := make([]int64, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	attempts, err := st.CountContactAttempts(ctx, ids)
	if err != nil {
		return err
	}

	renderOfficials(cmd.OutOrStdout(), list, attempts, st.Now())
	return nil
}

func renderOfficials(w io.Writer, list []civic.Official, attempts map[int64]int, today time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("No officials found."))
		return
	}

	rows := make([][]string, 0, len(list))
	for _, o := range list {
		division := ""
		if o.Office != nil && o.Office.Division != nil {
			division = o.Office.Division.Name
		}
		rows = append(rows, []string{
			strconv.FormatInt(o.ID, 10),
			o.Name,
			o.Party,
			division,
			strconv.Itoa(attempts[o.ID]),
			strconv.Itoa(len(o.Meetings)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Border).
		Headers("ID", "NAME", "PARTY", "DIVISION", "ATTEMPTS", "MEETINGS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return styles.Cell
		})
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, styles.Muted.Render(fmt.Sprintf("%d officials as of %s", len(list), today.Format(civic.DateLayout))))
}

// pickCmd prints a randomly selected representative to contact
var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick a US representative nobody has met with or contacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rep, err := outreach.NewSelector(st, nil).Pick(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if rep == nil {
			fmt.Fprintln(out, "No representative available: every US representative has a meeting or a contact attempt.")
			return nil
		}
		fmt.Fprintln(out, styles.Title.Render(rep.Name))
		if rep.Office != nil && rep.Office.Division != nil {
			fmt.Fprintf(out, "%s (%s)\n", rep.Office.Division.Name, rep.Party)
		}
		for _, p := range rep.Phones {
			fmt.Fprintf(out, "  phone: %s\n", p.Number)
		}
		for _, c := range rep.Channels {
			fmt.Fprintf(out, "  %s: %s\n", c.ServiceName(), c.URL())
		}
		fmt.Fprintf(out, "  page:  %s%s\n", cfg.Server.BaseURL, rep.Path())
		return nil
	},
}
