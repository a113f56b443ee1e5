package export

// Dataset defines tabular export content rendered by the CSV and PDF exporters.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Footer lines rendered after the table, e.g. attendance totals.
	Footer []string
}
