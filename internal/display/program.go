package display

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/packagewjx/meshbench/internal/aggregate"
)

type summaryMsg *aggregate.Summary
type doneMsg struct{ err error }

// Model shows the latest tick summary until the feed closes or the user
// quits.
type Model struct {
	feed   <-chan *aggregate.Summary
	errc   <-chan error
	cancel context.CancelFunc

	last     *aggregate.Summary
	finished bool
	err      error
}

// NewModel reads summaries from feed. When the producer is done it sends its
// result on errc. cancel is called when the user quits early.
func NewModel(feed <-chan *aggregate.Summary, errc <-chan error, cancel context.CancelFunc) Model {
	return Model{feed: feed, errc: errc, cancel: cancel}
}

func (m Model) Init() tea.Cmd {
	return m.next()
}

func (m Model) next() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.feed
		if !ok {
			return doneMsg{err: <-m.errc}
		}
		return summaryMsg(s)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case summaryMsg:
		m.last = msg
		return m, m.next()

	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	view := Render(m.last)
	footer := "q: quit"
	if m.finished {
		footer = "run finished"
	}
	return view + "\n" + footerStyle.Render(footer) + "\n"
}

// Err is the producer's result once the feed has closed.
func (m Model) Err() error {
	return m.err
}

// Run drives the program until the producer finishes or the user quits.
func Run(ctx context.Context, feed <-chan *aggregate.Summary, errc <-chan error, cancel context.CancelFunc) error {
	p := tea.NewProgram(NewModel(feed, errc, cancel), tea.WithContext(ctx), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil && err != tea.ErrProgramKilled {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
