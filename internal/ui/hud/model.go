// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hud

import (
	"log"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/hud-tui/internal/auth"
	"github.com/morganforge/hud-tui/internal/convo"
	"github.com/morganforge/hud-tui/internal/events"
	"github.com/morganforge/hud-tui/internal/geometry"
	"github.com/morganforge/hud-tui/internal/telemetry"
	"github.com/morganforge/hud-tui/internal/ui/components"
	"github.com/morganforge/hud-tui/internal/ui/history"
	"github.com/morganforge/hud-tui/internal/ui/styles"
)

// Deps bundles the collaborators one window runs on. Every window gets its
// own controller and reactor; only the bus is shared machinery, and it is
// message-passing, not shared state.
type Deps struct {
	Controller *convo.Controller
	Pager      *convo.HistoryPager
	Session    *auth.Session
	Usage      *telemetry.Usage
	Reactor    *geometry.Reactor
	Bus        *events.Bus
	Logger     *log.Logger
	Offline    bool
}

// Model is the chat window.
type Model struct {
	deps  Deps
	keys  KeyMap
	theme *styles.Theme

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	markdown *components.MarkdownRenderer

	historyPanel history.Model
	showHistory  bool

	// activity coalesces transcript changes from the stream goroutine.
	activity chan struct{}
	// busQ carries bus events into the update loop, preserving order.
	busQ *eventQueue

	width   int
	height  int
	errText string
	ready   bool
}

// New wires a window model. Subscriptions are registered here; the returned
// model is ready for tea.NewProgram.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = log.New(log.Writer(), "hud: ", log.LstdFlags)
	}

	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.Prompt = "┃ "
	ta.CharLimit = 8000
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	m := Model{
		deps:     deps,
		keys:     DefaultKeyMap(),
		theme:    styles.NewTheme(),
		textarea: ta,
		spinner:  sp,
		markdown: components.NewMarkdownRenderer(72),
		activity: make(chan struct{}, 1),
		busQ:     newEventQueue(),
	}
	m.historyPanel = history.New(deps.Pager, 40, 20)

	// The stream goroutine signals through the channel; the update loop
	// drains it. Non-blocking send coalesces bursts of chunks.
	deps.Controller.Store().Subscribe(func() {
		select {
		case m.activity <- struct{}{}:
		default:
		}
	})

	// Bus delivery holds the bus mutex across handlers, so the handler only
	// enqueues and returns: a busy update loop never backs a publisher up.
	// The queue preserves emission order; processing happens in Update.
	deps.Bus.Subscribe(m.busQ.push)

	return m
}

// =============================================================================
// EVENT QUEUE
// =============================================================================

// eventQueue is an unbounded ordered queue between the bus and the update
// loop. push never blocks; pop drains one event at a time in emission order.
type eventQueue struct {
	mu     sync.Mutex
	events []events.Event
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

// push appends one event and wakes a waiting listener.
func (q *eventQueue) push(ev events.Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop removes the oldest event. When more remain, the signal is re-armed so
// the next listener returns without waiting.
func (q *eventQueue) pop() (events.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	if len(q.events) > 0 {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return ev, true
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		listenActivity(m.activity),
		listenBus(m.busQ),
	)
}

// listenActivity re-arms the transcript change listener.
func listenActivity(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return ActivityMsg{}
	}
}

// listenBus re-arms the bus listener.
func listenBus(q *eventQueue) tea.Cmd {
	return func() tea.Msg {
		for {
			if ev, ok := q.pop(); ok {
				return BusEventMsg{Event: ev}
			}
			<-q.signal
		}
	}
}

// streaming reports whether a reply is in flight.
func (m Model) streaming() bool {
	return m.deps.Controller.Streaming()
}

// contentWidth is the usable width for message bubbles.
func (m Model) contentWidth() int {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

// transcriptHeight estimates rendered content height in terminal rows, the
// measurement fed to the geometry reactor.
func transcriptHeight(rendered string) float64 {
	if rendered == "" {
		return 0
	}
	return float64(strings.Count(rendered, "\n") + 1)
}
