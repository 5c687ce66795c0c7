package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"proximity-radar.klederson.com/internal/friends"
	"proximity-radar.klederson.com/internal/heading"
	"proximity-radar.klederson.com/internal/proximity"
)

type silentRadio struct{}

func (silentRadio) BeginAdvertising(context.Context, []byte, proximity.TxParameters) error {
	return nil
}
func (silentRadio) EndAdvertising(context.Context) error      { return nil }
func (silentRadio) BeginScanning(proximity.ScanHandler) error { return nil }
func (silentRadio) EndScanning() error                        { return nil }

type fixedIdentity proximity.Identity

func (f fixedIdentity) Identity() (proximity.Identity, error) { return proximity.Identity(f), nil }

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, headings proximity.HeadingSource, peers ...proximity.DecodedPeer) (AppModel, *proximity.Coordinator) {
	t.Helper()
	coord := proximity.NewCoordinator(silentRadio{},
		proximity.NewCodec(proximity.DefaultFrameConfig()),
		proximity.NewPeerRegistry(),
		proximity.DefaultCoordinatorConfig(), zap.NewNop())
	t.Cleanup(func() { _ = coord.Close() })

	for _, p := range peers {
		coord.Registry().Merge(p)
	}
	fs, err := friends.Load(nil)
	assert.NilError(t, err)

	m := New(Options{
		Engine:   coord,
		Identity: fixedIdentity{Nickname: "me", ID: "self"},
		Headings: headings,
		Friends:  fs,
		Backend:  "mock",
		PeerTTL:  time.Minute,
	})
	m.shared.now = func() time.Time { return epoch }
	m.refresh()
	return m, coord
}

func peer(id string, dist float64) proximity.DecodedPeer {
	return proximity.DecodedPeer{Nickname: "n-" + id, ID: id, DistanceMeters: dist, SignalStrength: -60, LastSeen: epoch}
}

func press(m AppModel, key string) AppModel {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(AppModel)
}

func ids(m AppModel) []string {
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Peer.ID)
	}
	return out
}

func TestEntriesSortedByDistance(t *testing.T) {
	m, _ := newTestModel(t, nil, peer("far", 8), peer("unknown", -1), peer("near", 0.5))
	assert.DeepEqual(t, ids(m), []string{"near", "far", "unknown"})
	assert.Equal(t, m.nickname, "me")
}

func TestFriendToggleAndFilter(t *testing.T) {
	m, _ := newTestModel(t, nil, peer("a", 1), peer("b", 2))

	m = press(m, "down")
	m = press(m, "f")
	assert.Check(t, m.shared.opts.Friends.Contains("b"))
	assert.Check(t, m.entries[1].Friend)

	m = press(m, "F")
	assert.DeepEqual(t, ids(m), []string{"b"})
	assert.Equal(t, m.cursor, 0)

	m = press(m, "F")
	assert.Check(t, is.Len(m.entries, 2))
}

func TestRemovePeer(t *testing.T) {
	m, coord := newTestModel(t, nil, peer("a", 1), peer("b", 2))
	m.shared.history.Push("a", -50)

	m = press(m, "x")
	assert.DeepEqual(t, ids(m), []string{"b"})
	assert.Equal(t, coord.Registry().Count(), 1)
	assert.Check(t, is.Len(m.shared.history.Values("a"), 0))
}

func TestDetailPanelToggle(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m = press(m, "enter")
	assert.Check(t, !m.detail, "no peers, no detail")

	m, _ = newTestModel(t, nil, peer("a", 1))
	m = press(m, "enter")
	assert.Check(t, m.detail)
	m = press(m, "esc")
	assert.Check(t, !m.detail)
}

func TestRotateStaticHeading(t *testing.T) {
	h := heading.NewStatic(10)
	m, _ := newTestModel(t, h)
	assert.Equal(t, m.own, proximity.HeadingOf(10))

	m = press(m, "left")
	assert.Equal(t, m.own, proximity.HeadingOf(355))
	m = press(m, "l")
	m = press(m, "l")
	assert.Equal(t, m.own, proximity.HeadingOf(25))
}

func TestPeerEventFeedsHistory(t *testing.T) {
	m, _ := newTestModel(t, nil)
	for _, rssi := range []int{-70, -65, -60} {
		p := peer("a", 1)
		p.SignalStrength = rssi
		next, cmd := m.Update(PeerEventMsg{Peer: p, Outcome: proximity.Updated})
		m = next.(AppModel)
		assert.Check(t, cmd != nil)
	}
	assert.DeepEqual(t, m.shared.history.Values("a"), []float64{-70, -65, -60})
}

func TestEvictDropsOldPeers(t *testing.T) {
	old := peer("old", 1)
	old.LastSeen = epoch.Add(-2 * time.Minute)
	m, _ := newTestModel(t, nil, old, peer("fresh", 2))

	next, _ := m.Update(EvictMsg(epoch))
	m = next.(AppModel)
	assert.DeepEqual(t, ids(m), []string{"fresh"})
}

func TestViewRenders(t *testing.T) {
	m, _ := newTestModel(t, heading.NewStatic(0), peer("a", 1))
	assert.Equal(t, m.View(), "Initializing proximity radar...")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(AppModel)
	out := m.View()
	assert.Check(t, is.Contains(out, "PEERS [1]"))
	assert.Check(t, is.Contains(out, "n-a"))
}

func TestRestartKey(t *testing.T) {
	m, _ := newTestModel(t, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Check(t, cmd == nil, "no restart hook")

	calls := 0
	var result error = proximity.ErrNotStopped
	m.shared.opts.Restart = func() error {
		calls++
		return result
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Assert(t, cmd != nil)
	msg := cmd()
	assert.Equal(t, calls, 1)
	next, _ := m.Update(msg)
	m = next.(AppModel)
	assert.Equal(t, m.lastErr, proximity.ErrNotStopped.Error())

	result = nil
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	msg = cmd()
	assert.Equal(t, msg, tea.Msg(RestartedMsg{}))
	next, _ = m.Update(msg)
	m = next.(AppModel)
	assert.Equal(t, calls, 2)
	assert.Equal(t, m.lastErr, "")
}

func TestRingWraps(t *testing.T) {
	r := NewRSSIRing(3)
	assert.Equal(t, r.Last(), 0.0)
	for _, v := range []float64{1, 2, 3, 4} {
		r.Push(v)
	}
	assert.DeepEqual(t, r.Values(), []float64{2, 3, 4})
	assert.Equal(t, r.Last(), 4.0)
	assert.Equal(t, r.Len(), 3)
}

func TestPeersWithoutHeadingStayOffRadar(t *testing.T) {
	facing := peer("facing", 1)
	facing.Heading = proximity.HeadingOf(90)
	m, _ := newTestModel(t, heading.NewStatic(0), facing, peer("blind", 2))

	assert.DeepEqual(t, ids(m), []string{"facing", "blind"})
	blips := m.blips()
	assert.Assert(t, is.Len(blips, 1))
	assert.Equal(t, blips[0].ID, "facing")

	m, _ = newTestModel(t, nil, facing)
	assert.Check(t, is.Len(m.blips(), 0), "no local compass")
	assert.Check(t, is.Len(m.entries, 1))
}
