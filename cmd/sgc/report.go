package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
)

func reportCmd() *cobra.Command {
	var (
		as   uint
		q    services.ReportQuery
		top  bool
		dept uint
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print commitment totals per department",
		Example: `  sgc report --as 1 --all --month marzo --year 2025
  sgc report --as 4 --people`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q.DepartmentID = dept
			return withDB(func(db *gorm.DB) error {
				ctx := cmd.Context()
				a, err := resolveActor(ctx, db, as)
				if err != nil {
					return err
				}
				reports := &services.ReportService{DB: db}
				if top {
					people, err := reports.TopPeople(ctx, a, q)
					if err != nil {
						return err
					}
					renderPeople(cmd.OutOrStdout(), people)
					return nil
				}
				month, err := reports.MonthSummary(ctx, a, q)
				if err != nil {
					return err
				}
				renderMonth(cmd.OutOrStdout(), month)
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&as, "as", 0, "person id whose scope the report uses")
	cmd.Flags().BoolVar(&q.All, "all", false, "every department (service director only)")
	cmd.Flags().UintVar(&dept, "department", 0, "restrict to one department")
	cmd.Flags().UintVar(&q.AreaID, "area", 0, "restrict to one area")
	cmd.Flags().StringVar(&q.Month, "month", "", "month name or number, or Todos")
	cmd.Flags().IntVar(&q.Year, "year", 0, "year")
	cmd.Flags().BoolVar(&top, "people", false, "list referents by assigned commitments instead")
	return cmd
}

func newTable(w io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(title)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw
}

func renderMonth(w io.Writer, m *services.MonthReport) {
	title := "Commitments"
	if m.Month != "" {
		title += " - " + m.Month
	}
	tw := newTable(w, title)
	tw.AppendHeader(table.Row{"Department", "Total", "Completed", "Pending", "Completed %"})
	for _, d := range m.Departments {
		pct := services.PercentagesOf(d.Totals)
		tw.AppendRow(table.Row{d.Name, d.Total, d.Completed, d.Pending, fmt.Sprintf("%.2f", pct.Completed)})
	}
	tw.AppendFooter(table.Row{"Total", m.Totals.Total, m.Totals.Completed, m.Totals.Pending, fmt.Sprintf("%.2f", m.Percentages.Completed)})
	tw.Render()
}

func renderPeople(w io.Writer, people []repo.PersonLoad) {
	tw := newTable(w, "Referents by assigned commitments")
	tw.AppendHeader(table.Row{"Person", "Total", "Completed", "Pending", "Completed %"})
	for _, p := range people {
		pct := services.PercentagesOf(p.Totals)
		tw.AppendRow(table.Row{p.Name + " " + p.LastName, p.Total, p.Completed, p.Pending, fmt.Sprintf("%.2f", pct.Completed)})
	}
	tw.Render()
}
