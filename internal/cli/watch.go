package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <jid>",
	Short: "Follow a job until it reaches a terminal state",
	Long: `Poll one job and show its task progress until it finishes, fails or is
canceled. The command exits non-zero when the job ends FAILED or CANCELED.

On a terminal a progress bar is shown; otherwise one line is printed per poll.

Examples:
  flinkwatch watch 4f7c...
  flinkwatch watch 4f7c... --interval 5s | tee watch.log`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 2*time.Second, "poll interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	jid := args[0]
	c := flinkClient()
	fetch := func(ctx context.Context) (*flink.Job, error) {
		return c.GetJob(ctx, jid)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchPlain(ctx, cmd.OutOrStdout(), fetch, watchInterval)
	}
	return runWatchUI(jid, fetch, watchInterval)
}

// Theme holds the color scheme for job states and the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// jobFetcher returns the current state of the watched job.
type jobFetcher func(ctx context.Context) (*flink.Job, error)

// jobOutcome turns a terminal job into the command's result.
func jobOutcome(job flink.Job) error {
	switch job.Status {
	case flink.StateFailed, flink.StateCanceled:
		return fmt.Errorf("job %s ended in state %s", job.ID, job.Status)
	}
	return nil
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// jobUpdateMsg carries the updated job data
type jobUpdateMsg struct {
	job *flink.Job
	err error
}

// watchModel is the bubbletea model for a watched job.
type watchModel struct {
	fetch    jobFetcher
	jid      string
	interval time.Duration
	job      *flink.Job
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newWatchModel(jid string, fetch jobFetcher, interval time.Duration) watchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return watchModel{
		fetch:    fetch,
		jid:      jid,
		interval: interval,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init fetches the job right away.
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchJob(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchJob()

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.job = msg.job
		if m.job.IsTerminal() {
			m.done = true
			m.err = jobOutcome(*m.job)
			return m, tea.Quit
		}
		return m, tickCmd(m.interval)

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m watchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m watchModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}
	if m.job == nil {
		return "Loading job status...\n"
	}

	status := m.theme.stateStyle(m.job.Status).Render(fmt.Sprintf("[%s]", m.job.Status))
	bar := m.progress.ViewAs(m.job.Progress())
	counts := fmt.Sprintf("%s tasks", taskSummary(m.job.Counters))
	hint := m.theme.hintStyle().Render(fmt.Sprintf("%s  ·  press q to stop watching", m.job.Name))

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

func (m watchModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render(fmt.Sprintf("\nStopped watching job %s.\n", m.jid))
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	out := m.theme.completedStyle().Render("✓ Finished") + "\n"
	if m.job != nil {
		out += fmt.Sprintf("  Tasks:    %s\n", taskSummary(m.job.Counters))
		out += fmt.Sprintf("  Duration: %s\n", formatDuration(m.job.Duration))
	}
	return out
}

// fetchJob runs in a command so Update never blocks on the network.
func (m watchModel) fetchJob() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		job, err := m.fetch(ctx)
		return jobUpdateMsg{job: job, err: err}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runWatchUI runs the interactive progress UI.
// Quitting with q is not an error; a failed or canceled job is.
func runWatchUI(jid string, fetch jobFetcher, interval time.Duration) error {
	p := tea.NewProgram(newWatchModel(jid, fetch, interval))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(watchModel); ok && !m.quitting {
		return m.err
	}
	return nil
}

// watchPlain prints one line per poll until the job is terminal or ctx is done.
func watchPlain(ctx context.Context, w io.Writer, fetch jobFetcher, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to fetch job status: %w", err)
		}

		fmt.Fprintf(w, "%s %s %-12s %s tasks (%.0f%%)\n",
			time.Now().Format(time.TimeOnly), job.ID, job.Status, taskSummary(job.Counters), job.Progress()*100)

		if job.IsTerminal() {
			return jobOutcome(*job)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
