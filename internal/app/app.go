package app

import (
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"proximity-radar.klederson.com/internal/config"
	"proximity-radar.klederson.com/internal/friends"
	"proximity-radar.klederson.com/internal/heading"
	"proximity-radar.klederson.com/internal/proximity"
	"proximity-radar.klederson.com/internal/radar"
	"proximity-radar.klederson.com/internal/ui"
)

// headingStep is how far one key press turns a static heading.
const headingStep = 15

// Engine is the part of the coordinator the UI reads.
type Engine interface {
	Registry() *proximity.PeerRegistry
	Status() proximity.Status
	Subscribe() *proximity.PeerStream
}

// Options wires the model to the rest of the program.
type Options struct {
	Engine   Engine
	Identity proximity.IdentitySource
	Headings proximity.HeadingSource
	Friends  *friends.Set
	Backend  string
	PeerTTL  time.Duration // zero keeps peers forever
	Restart  func() error  // starts discovery over after a failure, may be nil
	Log      *zap.Logger
}

// shared holds state shared between the Bubble Tea model copies and main.go.
// Because Bubble Tea uses value receivers, pointer fields ensure all copies
// see the same underlying data.
type shared struct {
	opts    Options
	sweep   *radar.Sweep
	history *History
	stream  *proximity.PeerStream
	now     func() time.Time
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	width  int
	height int

	cursor      int
	friendsOnly bool
	detail      bool
	lastErr     string

	shared *shared

	// Cached snapshot
	entries  []ui.Entry
	status   proximity.Status
	own      proximity.Heading
	nickname string
}

// New creates the model and subscribes to the peer stream.
func New(opts Options) AppModel {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Headings == nil {
		opts.Headings = heading.Unsupported{}
	}
	if opts.Friends == nil {
		opts.Friends, _ = friends.Load(nil)
	}
	m := AppModel{
		shared: &shared{
			opts:    opts,
			sweep:   radar.NewSweep(),
			history: NewHistory(config.RSSIHistorySize),
			stream:  opts.Engine.Subscribe(),
			now:     time.Now,
		},
	}
	m.refresh()
	return m
}

func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), waitForEvent(m.shared.stream)}
	if m.shared.opts.PeerTTL > 0 {
		cmds = append(cmds, evictCmd())
	}
	return tea.Batch(cmds...)
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		m.shared.sweep.UpdateAt(time.Time(msg))
		m.refresh()
		return m, tickCmd()

	case EvictMsg:
		for _, id := range m.shared.opts.Engine.Registry().Evict(m.shared.opts.PeerTTL, time.Time(msg)) {
			m.shared.history.Forget(id)
		}
		m.refresh()
		return m, evictCmd()

	case PeerEventMsg:
		m.shared.history.Push(msg.Peer.ID, msg.Peer.SignalStrength)
		return m, waitForEvent(m.shared.stream)

	case StreamClosedMsg:
		return m, nil

	case RestartedMsg:
		m.lastErr = ""
		m.refresh()
		return m, nil

	case ErrorMsg:
		m.lastErr = msg.Err.Error()
		m.shared.opts.Log.Warn("ui action failed", zap.Error(msg.Err))
		return m, nil
	}

	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.shared.stream.Close()
		return m, tea.Quit

	case "esc":
		m.detail = false

	case "enter":
		m.detail = len(m.entries) > 0

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}

	case "home":
		m.cursor = 0

	case "end":
		if len(m.entries) > 0 {
			m.cursor = len(m.entries) - 1
		}

	case "f":
		if e, ok := m.selected(); ok {
			if _, err := m.shared.opts.Friends.Toggle(e.Peer.ID, e.Peer.Nickname); err != nil {
				return m, errCmd(err)
			}
			m.refresh()
		}

	case "F":
		m.friendsOnly = !m.friendsOnly
		m.cursor = 0
		m.detail = false
		m.refresh()

	case "x":
		if e, ok := m.selected(); ok {
			m.shared.opts.Engine.Registry().Remove(e.Peer.ID)
			m.shared.history.Forget(e.Peer.ID)
			m.detail = false
			m.refresh()
		}

	case "r":
		if restart := m.shared.opts.Restart; restart != nil {
			return m, restartCmd(restart)
		}

	case "left", "h", "right", "l":
		if s, ok := m.shared.opts.Headings.(*heading.Static); ok {
			delta := headingStep
			if k := msg.String(); k == "left" || k == "h" {
				delta = -headingStep
			}
			s.Rotate(delta)
			m.refresh()
		}
	}

	return m, nil
}

func (m AppModel) selected() (ui.Entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return ui.Entry{}, false
	}
	return m.entries[m.cursor], true
}

// refresh re-reads the registry and coordinator into the cached snapshot.
func (m *AppModel) refresh() {
	opts := m.shared.opts
	now := m.shared.now()

	peers := opts.Engine.Registry().Snapshot()
	sortPeers(peers)

	m.entries = make([]ui.Entry, 0, len(peers))
	for _, p := range peers {
		friend := opts.Friends.Contains(p.ID)
		if m.friendsOnly && !friend {
			continue
		}
		m.entries = append(m.entries, ui.Entry{
			Peer:   p,
			Friend: friend,
			Stale:  now.Sub(p.LastSeen) > config.PeerStaleAfter,
		})
	}
	if m.cursor >= len(m.entries) {
		m.cursor = max(0, len(m.entries)-1)
	}
	if len(m.entries) == 0 {
		m.detail = false
	}

	m.status = opts.Engine.Status()
	m.own = heading.Reading(opts.Headings)
	if opts.Identity != nil {
		if id, err := opts.Identity.Identity(); err == nil {
			m.nickname = id.Nickname
		}
	}
}

// sortPeers orders by distance, unknown distances last, ties by id.
func sortPeers(peers []proximity.DecodedPeer) {
	sort.SliceStable(peers, func(i, j int) bool {
		a, b := peers[i].DistanceMeters, peers[j].DistanceMeters
		if (a < 0) != (b < 0) {
			return b < 0
		}
		if a != b {
			return a < b
		}
		return peers[i].ID < peers[j].ID
	})
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing proximity radar..."
	}

	menuH := 1
	statusH := 1
	bodyH := m.height - menuH - statusH
	if bodyH < 5 {
		bodyH = 5
	}

	radarW := m.width * 3 / 4
	if radarW < 30 {
		radarW = 30
	}
	listW := m.width - radarW
	if listW < 15 {
		listW = 15
		radarW = m.width - listW
	}

	menuBar := ui.RenderMenuBar(m.width, m.shared.opts.Backend, m.nickname, m.friendsOnly)

	var left string
	if e, ok := m.selected(); ok && m.detail {
		left = ui.RenderDetailPanel(e, m.own, radarW, bodyH, m.shared.history.Values(e.Peer.ID), m.shared.now())
	} else {
		innerW := max(radarW-4, 5)
		innerH := max(bodyH-4, 3)
		content := radar.Render(innerW, innerH, m.blips(), m.shared.sweep)
		left = ui.RenderRadarPanel(radarW, bodyH, content, radar.RenderLegend(innerW))
	}

	list := ui.RenderPeerList(m.entries, listW, bodyH, m.cursor, m.friendsOnly)

	st := m.status
	if m.lastErr != "" {
		st.LastError = m.lastErr
	}
	statusBar := ui.RenderStatusBar(m.width, st, m.own, len(m.entries),
		m.shared.opts.Friends.Len(), m.shared.sweep.Degrees(), config.MaxRange)

	return ui.ComposeLayout(menuBar, left, list, statusBar)
}

func (m AppModel) blips() []radar.Blip {
	now := m.shared.now()
	blips := make([]radar.Blip, 0, len(m.entries))
	for _, e := range m.entries {
		b := radar.BlipFor(e.Peer, m.own, e.Friend, now, config.PeerStaleAfter)
		if !b.Bearing {
			continue // list only
		}
		blips = append(blips, b)
	}
	return blips
}

func waitForEvent(s *proximity.PeerStream) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.Events()
		if !ok {
			return StreamClosedMsg{}
		}
		return PeerEventMsg(ev)
	}
}

func restartCmd(restart func() error) tea.Cmd {
	return func() tea.Msg {
		if err := restart(); err != nil {
			return ErrorMsg{Err: err}
		}
		return RestartedMsg{}
	}
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg { return ErrorMsg{Err: err} }
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(config.TargetFPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func evictCmd() tea.Cmd {
	return tea.Tick(config.EvictInterval, func(t time.Time) tea.Msg {
		return EvictMsg(t)
	})
}
