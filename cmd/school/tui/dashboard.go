package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/stats"
)

// refreshInterval is how often the dashboard reloads on its own.
const refreshInterval = 30 * time.Second

// StatsSource feeds the dashboard figures
type StatsSource interface {
	Dashboard(ctx context.Context) (stats.Dashboard, error)
	Live(ctx context.Context) (stats.Live, error)
	UpcomingClasses(ctx context.Context, limit int) ([]stats.UpcomingClass, error)
}

// SeatSource answers availability lookups for the selected class
type SeatSource interface {
	GetClassAvailability(ctx context.Context, classID int64) (enrollment.Availability, error)
}

// DashboardModel shows totals, live counters and upcoming classes.
type DashboardModel struct {
	stats   StatsSource
	seats   SeatSource
	spinner spinner.Model
	list    list.Model
	loading bool
	err     error
	width   int
	height  int
	updated time.Time

	dashboard    stats.Dashboard
	live         stats.Live
	availability *enrollment.Availability
}

// NewDashboardModel creates the dashboard model
func NewDashboardModel(source StatsSource, seats SeatSource) DashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = infoStyle

	l := list.New([]list.Item{}, ItemDelegate{}, 0, 0)
	l.Title = "Upcoming Classes"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	return DashboardModel{
		stats:   source,
		seats:   seats,
		spinner: sp,
		list:    l,
		loading: true,
	}
}

type dashboardLoadedMsg struct {
	dashboard stats.Dashboard
	live      stats.Live
	upcoming  []stats.UpcomingClass
	at        time.Time
}

type availabilityMsg struct {
	availability enrollment.Availability
}

type refreshMsg struct{}

func loadDashboardCmd(source StatsSource) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		d, err := source.Dashboard(ctx)
		if err != nil {
			return errorMsg{err: err}
		}
		live, err := source.Live(ctx)
		if err != nil {
			return errorMsg{err: err}
		}
		upcoming, err := source.UpcomingClasses(ctx, 20)
		if err != nil {
			return errorMsg{err: err}
		}
		return dashboardLoadedMsg{dashboard: d, live: live, upcoming: upcoming, at: time.Now()}
	}
}

func availabilityCmd(seats SeatSource, classID int64) tea.Cmd {
	return func() tea.Msg {
		a, err := seats.GetClassAvailability(context.Background(), classID)
		if err != nil {
			return errorMsg{err: err}
		}
		return availabilityMsg{availability: a}
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Init starts loading and the refresh timer
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadDashboardCmd(m.stats), refreshTick(), tea.EnterAltScreen)
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width/2, msg.Height-12)
		return m, nil

	case dashboardLoadedMsg:
		m.loading = false
		m.err = nil
		m.dashboard = msg.dashboard
		m.live = msg.live
		m.updated = msg.at

		items := make([]list.Item, len(msg.upcoming))
		for i, c := range msg.upcoming {
			items[i] = ClassItem{
				ID:         c.ClassID,
				Course:     c.CourseTitle,
				Professor:  c.ProfessorName,
				Starts:     c.StartDate.Format("2006-01-02"),
				Schedule:   strings.TrimSpace(c.ClassDays + " " + c.ClassTime),
				Registered: c.Registered,
				Capacity:   c.Capacity,
			}
		}
		m.list.SetItems(items)
		return m, nil

	case availabilityMsg:
		a := msg.availability
		m.availability = &a
		return m, nil

	case errorMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case refreshMsg:
		if m.loading {
			return m, refreshTick()
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, loadDashboardCmd(m.stats), refreshTick())

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, loadDashboardCmd(m.stats))
		case "enter":
			if item, ok := m.list.SelectedItem().(ClassItem); ok && m.seats != nil {
				return m, availabilityCmd(m.seats, item.ID)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m DashboardModel) totalsView() string {
	d := m.dashboard
	rows := []string{
		fmt.Sprintf("Professors     %d", d.Professors),
		fmt.Sprintf("Students       %d", d.Students),
		fmt.Sprintf("Courses        %d", d.Courses),
		fmt.Sprintf("Classes        %d", d.Classes),
		fmt.Sprintf("Registrations  %d", d.Registrations),
		successStyle.Render(fmt.Sprintf("Revenue        %.2f", d.Revenue)),
	}
	return boxStyle.Render(titleStyle.Render("Totals") + "\n" + strings.Join(rows, "\n"))
}

func (m DashboardModel) liveView() string {
	l := m.live
	rows := []string{
		fmt.Sprintf("Upcoming classes      %d", l.UpcomingClasses),
		fmt.Sprintf("Registrations (%dd)    %d", stats.RecentRegistrationDays, l.RecentRegistrations),
		fmt.Sprintf("Revenue (%dd)         %.2f", stats.RevenueDays, l.Revenue30Days),
	}
	return boxStyle.Render(titleStyle.Render("Live") + "\n" + strings.Join(rows, "\n"))
}

func (m DashboardModel) seatsView() string {
	if m.availability == nil {
		return boxStyle.Render(mutedStyle.Render("Select a class and press enter\nto check its seats"))
	}
	a := m.availability
	body := fmt.Sprintf("Class #%d\n\nSeats  %s\nFree   %d", a.ClassID, FormatSeats(a.Registered, a.Capacity), a.Available)
	return activeBoxStyle.Render(body)
}

// View renders the dashboard
func (m DashboardModel) View() string {
	header := titleStyle.Render("Language School Dashboard")
	switch {
	case m.loading:
		header += "  " + m.spinner.View() + mutedStyle.Render(" loading")
	case !m.updated.IsZero():
		header += "  " + subtitleStyle.Render("updated "+m.updated.Format("15:04:05"))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.list.View(),
		"  ",
		lipgloss.JoinVertical(lipgloss.Left, m.totalsView(), m.liveView(), m.seatsView()),
	)

	parts := []string{header, body}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	}
	parts = append(parts, helpStyle.Render(
		FormatKey("↑/↓", "navigate")+" • "+
			FormatKey("enter", "seats")+" • "+
			FormatKey("r", "refresh")+" • "+
			FormatKey("q", "quit"),
	))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// RunDashboard starts the interactive dashboard
func RunDashboard(source StatsSource, seats SeatSource) error {
	p := tea.NewProgram(NewDashboardModel(source, seats))
	_, err := p.Run()
	return err
}
