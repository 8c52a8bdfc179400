package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Dashboard runs the terminal UI and receives broadcasts.
type Dashboard struct {
	program teaProgram
	run     func() error
	quit    func()
	notices chan noticeMsg
	now     func() time.Time
}

// New prepares a full-screen program refreshing every interval.
func New(ctrl Controller, interval time.Duration) *Dashboard {
	p := tea.NewProgram(newModel(ctrl, interval), tea.WithAltScreen())
	return &Dashboard{
		program: p,
		run: func() error {
			_, err := p.Run()
			return err
		},
		quit:    p.Quit,
		notices: make(chan noticeMsg, 64),
		now:     time.Now,
	}
}

// Broadcast queues msg for the notice pane. It never blocks; notices are
// dropped while the queue is full.
func (d *Dashboard) Broadcast(msg string) {
	select {
	case d.notices <- noticeMsg{at: d.now(), line: msg}:
	default:
	}
}

// Run blocks until the user quits or ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.forward(fwdCtx)
	go func() {
		<-fwdCtx.Done()
		d.quit()
	}()
	return d.run()
}

func (d *Dashboard) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.notices:
			d.program.Send(n)
		}
	}
}
