// Package report renders model and forecast summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/hochfrequenz/process-eta/internal/domain"
	"github.com/hochfrequenz/process-eta/internal/features"
	"github.com/hochfrequenz/process-eta/internal/regression"
)

// Forecast is one row of the forecast table
type Forecast struct {
	Process *domain.Process
	Seconds float64
	ETA     time.Time
}

type styles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
}

// newStyles binds the styles to w so that plain writers get plain text
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("244")),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// WriteCoefficients prints the trained weights, one per line
func WriteCoefficients(w io.Writer, c regression.Coefficients) error {
	s := newStyles(w)
	if _, err := fmt.Fprintln(w, s.title.Render("Trained weights:")); err != nil {
		return err
	}

	names := features.Names()
	for i, v := range c {
		if _, err := fmt.Fprintf(w, "w%d: %g %s\n", i, v, s.muted.Render("("+names[i]+")")); err != nil {
			return err
		}
	}
	return nil
}

// WriteFitReport prints the outcome of a training run
func WriteFitReport(w io.Writer, r regression.FitReport) error {
	s := newStyles(w)
	if r.Skipped() {
		_, err := fmt.Fprintln(w, s.warning.Render("No completed records, model left untouched"))
		return err
	}

	_, err := fmt.Fprintf(w, "%s %d records, R² %.4f, RMSE %.2fs\n",
		s.title.Render("Fit:"), r.Rows, r.RSquared, r.RMSE)
	return err
}

// WriteForecasts prints a table of forecasts with ETAs relative to now
func WriteForecasts(w io.Writer, rows []Forecast, now time.Time) error {
	s := newStyles(w)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, s.muted.Render("No in-flight processes"))
		return err
	}

	if _, err := fmt.Fprintln(w, s.title.Render("Forecasts:")); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tPRIORITY\tFORECAST\tETA\tIN")
	for _, f := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1fs\t%s\t%s\n",
			f.Process.ID,
			f.Process.Type,
			f.Process.Priority,
			f.Seconds,
			f.ETA.Format(time.RFC3339),
			humanize.RelTime(f.ETA, now, "ago", "from now"),
		)
	}
	return tw.Flush()
}
