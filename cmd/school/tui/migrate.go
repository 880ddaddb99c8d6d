package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/langschool/backoffice/pkg/migration"
)

// Action is the direction of an interactive migration run
type Action string

const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
)

// MigrateMode represents the current mode of the migration UI
type MigrateMode int

const (
	ModeList MigrateMode = iota
	ModeConfirm
	ModeExecuting
	ModeComplete
	ModeError
)

// Migrator is the part of the executor the UI drives
type Migrator interface {
	Status(ctx context.Context, migrations []migration.Migration) ([]migration.MigrationRecord, error)
	Up(ctx context.Context, migrations []migration.Migration) ([]string, error)
	Down(ctx context.Context, migrations []migration.Migration, steps int) ([]string, error)
}

// MigrateModel is the main Bubbletea model for interactive migrations
type MigrateModel struct {
	mode         MigrateMode
	action       Action
	list         list.Model
	confirmation ConfirmationDialog
	progress     ProgressView
	logs         LogView
	err          error
	width        int
	height       int
	executor     Migrator
	migrations   []migration.Migration
	status       []migration.MigrationRecord
	steps        int
}

// NewMigrateModel creates a new migration UI model
func NewMigrateModel(action Action, executor Migrator, migrations []migration.Migration) MigrateModel {
	l := list.New([]list.Item{}, ItemDelegate{}, 0, 0)
	l.Title = "Database Migrations"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return MigrateModel{
		mode:       ModeList,
		action:     action,
		list:       l,
		logs:       NewLogView(10),
		executor:   executor,
		migrations: migrations,
	}
}

// Init initializes the model
func (m MigrateModel) Init() tea.Cmd {
	return tea.Batch(loadStatusCmd(m.executor, m.migrations), tea.EnterAltScreen)
}

// Messages
type statusLoadedMsg struct {
	status []migration.MigrationRecord
}

type migrationsExecutedMsg struct {
	versions []string
	err      error
}

type errorMsg struct {
	err error
}

// Commands
func loadStatusCmd(executor Migrator, migrations []migration.Migration) tea.Cmd {
	return func() tea.Msg {
		status, err := executor.Status(context.Background(), migrations)
		if err != nil {
			return errorMsg{err: fmt.Errorf("failed to get migration status: %w", err)}
		}
		return statusLoadedMsg{status: status}
	}
}

func executeCmd(executor Migrator, migrations []migration.Migration, action Action, steps int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		var versions []string
		var err error
		if action == ActionUp {
			versions, err = executor.Up(ctx, migrations)
		} else {
			versions, err = executor.Down(ctx, migrations, steps)
		}
		return migrationsExecutedMsg{versions: versions, err: err}
	}
}

// plan returns how many migrations the run would touch when started from
// the selected row, or 0 when the row cannot start a run.
func (m MigrateModel) plan(selected int) int {
	if selected < 0 || selected >= len(m.status) {
		return 0
	}

	count := 0
	switch m.action {
	case ActionUp:
		for _, s := range m.status {
			if s.Status != migration.StatusApplied {
				count++
			}
		}
	case ActionDown:
		if m.status[selected].Status != migration.StatusApplied {
			return 0
		}
		for _, s := range m.status[selected:] {
			if s.Status == migration.StatusApplied {
				count++
			}
		}
	}
	return count
}

// Update handles messages
func (m MigrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case statusLoadedMsg:
		m.status = msg.status

		items := make([]list.Item, len(msg.status))
		for i, s := range msg.status {
			appliedAt := ""
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			items[i] = MigrationItem{
				Version:   s.Version,
				Name:      s.Name,
				Status:    string(s.Status),
				AppliedAt: appliedAt,
			}
		}
		m.list.SetItems(items)
		return m, nil

	case migrationsExecutedMsg:
		for _, v := range msg.versions {
			m.logs.AddLog(successStyle.Render("✓ Completed: " + v))
		}
		m.progress.Current = len(msg.versions)
		if msg.err != nil {
			m.mode = ModeError
			m.err = msg.err
			m.logs.AddLog(dangerStyle.Render("Failed: " + msg.err.Error()))
			return m, nil
		}
		m.mode = ModeComplete
		return m, nil

	case errorMsg:
		m.mode = ModeError
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeList:
			if m.list.FilterState() == list.Filtering {
				break
			}
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit

			case "enter", " ":
				selected := m.list.Index()
				count := m.plan(selected)
				if count == 0 {
					return m, nil
				}
				m.steps = count

				message := fmt.Sprintf("Apply %d pending migration(s)?", count)
				if m.action == ActionDown {
					message = fmt.Sprintf("Roll back %d migration(s), down to and including\n%s - %s",
						count, m.status[selected].Version, m.status[selected].Name)
				}
				m.confirmation = NewConfirmationDialog(fmt.Sprintf("Confirm Migration %s", m.action), message)
				m.mode = ModeConfirm
				return m, nil
			}

		case ModeConfirm:
			if msg.String() == "ctrl+c" || msg.String() == "q" {
				m.mode = ModeList
				return m, nil
			}
			done, yes := m.confirmation.Update(msg)
			if !done {
				return m, nil
			}
			if !yes {
				m.mode = ModeList
				return m, nil
			}
			m.mode = ModeExecuting
			m.progress = ProgressView{
				Total:   m.steps,
				Message: fmt.Sprintf("Running migrate %s", m.action),
			}
			return m, executeCmd(m.executor, m.migrations, m.action, m.steps)

		case ModeComplete, ModeError:
			switch msg.String() {
			case "ctrl+c", "q", "enter":
				return m, tea.Quit
			}
		}
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI
func (m MigrateModel) View() string {
	center := func(s string) string {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
	}

	switch m.mode {
	case ModeList:
		help := helpStyle.Render(
			FormatKey("↑/↓", "navigate") + " • " +
				FormatKey("enter", "execute") + " • " +
				FormatKey("q", "quit"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)

	case ModeConfirm:
		return center(m.confirmation.View())

	case ModeExecuting:
		return center(lipgloss.JoinVertical(lipgloss.Left, m.progress.View(), "\n", m.logs.View()))

	case ModeComplete:
		msg := titleStyle.Render("Migration Complete!") + "\n\n" +
			successStyle.Render(fmt.Sprintf("Successfully executed %d migration(s)", m.progress.Current)) + "\n\n" +
			m.logs.View() + "\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return center(boxStyle.Render(msg))

	case ModeError:
		msg := titleStyle.Render("Migration Failed") + "\n\n" +
			errorStyle.Render(m.err.Error()) + "\n\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return center(boxStyle.Render(msg))
	}

	return "Unknown mode"
}

// RunMigrateUI starts the interactive migration UI
func RunMigrateUI(action Action, executor Migrator, migrations []migration.Migration) error {
	p := tea.NewProgram(NewMigrateModel(action, executor, migrations))
	_, err := p.Run()
	return err
}
