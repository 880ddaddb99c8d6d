package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/langschool/backoffice/cmd/school/output"
	"github.com/langschool/backoffice/cmd/school/tui"
	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/stats"
)

var statsLimit int

// statsCmd prints the dashboard figures
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics",
	Long: `Show entity counts, revenue, payment totals and upcoming classes.

Examples:
  school stats                       # Human readable summary
  school stats --json                # Output in JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd.Context())
	},
}

// availabilityCmd prints the seats of a class
var availabilityCmd = &cobra.Command{
	Use:   "availability CLASS_ID",
	Short: "Show the free seats of a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		classID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || classID <= 0 {
			return fmt.Errorf("invalid class id %q", args[0])
		}
		return runAvailability(cmd.Context(), classID)
	},
}

// dashboardCmd opens the live dashboard
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		return tui.RunDashboard(stats.NewReader(db), enrollment.NewService(db))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, availabilityCmd, dashboardCmd)
	statsCmd.Flags().IntVar(&statsLimit, "limit", stats.DefaultLimit, "Number of upcoming classes and recent registrations")
}

type statsReport struct {
	Dashboard           stats.Dashboard            `json:"dashboard"`
	Live                stats.Live                 `json:"live"`
	Payments            stats.PaymentSummary       `json:"payments"`
	UpcomingClasses     []stats.UpcomingClass      `json:"upcoming_classes"`
	RecentRegistrations []stats.RecentRegistration `json:"recent_registrations"`
}

func collectStats(ctx context.Context, reader *stats.Reader, limit int) (statsReport, error) {
	var report statsReport
	var err error

	if report.Dashboard, err = reader.Dashboard(ctx); err != nil {
		return report, err
	}
	if report.Live, err = reader.Live(ctx); err != nil {
		return report, err
	}
	if report.Payments, err = reader.Payments(ctx); err != nil {
		return report, err
	}
	if report.UpcomingClasses, err = reader.UpcomingClasses(ctx, limit); err != nil {
		return report, err
	}
	if report.RecentRegistrations, err = reader.RecentRegistrations(ctx, limit); err != nil {
		return report, err
	}
	return report, nil
}

func runStats(ctx context.Context) error {
	_, db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := collectStats(ctx, stats.NewReader(db), statsLimit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(report)
	}

	d := report.Dashboard
	output.Section("Dashboard")
	output.KeyValue("Professors", d.Professors)
	output.KeyValue("Students", d.Students)
	output.KeyValue("Courses", d.Courses)
	output.KeyValue("Classes", d.Classes)
	output.KeyValue("Registrations", d.Registrations)
	output.KeyValue("Completed revenue", fmt.Sprintf("%.2f", d.Revenue))

	output.Section("Last 30 Days")
	output.KeyValue("Upcoming classes", report.Live.UpcomingClasses)
	output.KeyValue("New registrations (7d)", report.Live.RecentRegistrations)
	output.KeyValue("Revenue (30d)", fmt.Sprintf("%.2f", report.Live.Revenue30Days))
	output.KeyValue("Pending payments", fmt.Sprintf("%.2f", report.Payments.TotalPending))

	output.Section("Upcoming Classes")
	if len(report.UpcomingClasses) == 0 {
		output.Muted("  none")
	}
	for _, c := range report.UpcomingClasses {
		state := "allowed"
		if c.Available() <= 0 {
			state = "full"
		}
		fmt.Printf("  %s #%d %s (%s) %s  %d/%d\n", output.StatusIcon(state), c.ClassID, c.CourseTitle,
			c.ProfessorName, c.StartDate.Format("2006-01-02"), c.Registered, c.Capacity)
	}
	return nil
}

func runAvailability(ctx context.Context, classID int64) error {
	_, db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := enrollment.NewService(db).GetClassAvailability(ctx, classID)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(a)
	}

	output.Section(fmt.Sprintf("Class %d", classID))
	output.KeyValue("Capacity", a.Capacity)
	output.KeyValue("Registered", a.Registered)
	output.KeyValue("Available", a.Available)
	if a.Available <= 0 {
		output.Warning("Class is full")
	} else {
		output.Success("%d seat(s) free", a.Available)
	}
	return nil
}
