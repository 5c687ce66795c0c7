package bluetooth

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"proximity-radar.klederson.com/internal/proximity"
)

var mockNicknames = []string{
	"Ana", "Bruno", "Carla", "Diego", "Eva", "Felipe", "Gabi", "Hugo",
	"Iris", "João", "Kenji", "Lúcia", "Marta", "Nico", "Olga", "Pedro",
}

type mockPeer struct {
	mac       string
	id        proximity.Identity
	heading   float64
	turnRate  float64 // degrees per second
	compass   bool
	baseRSSI  float64
	phase     float64
	amplitude float64
	active    bool
	prefix    int // bytes in front of the frame, as different stacks deliver it
}

// MockRadio simulates a room of people running the app. It implements
// proximity.Radio so demo mode runs the real coordinator.
type MockRadio struct {
	codec    *proximity.Codec
	company  uint16
	failRate float64
	tick     time.Duration

	mu          sync.Mutex
	rng         *rand.Rand
	peers       []mockPeer
	advertising []byte
	cancel      context.CancelFunc
	done        chan struct{}
	elapsed     float64
}

// MockOption configures a MockRadio.
type MockOption func(*MockRadio)

// WithFailRate makes BeginAdvertising fail with probability p.
func WithFailRate(p float64) MockOption { return func(m *MockRadio) { m.failRate = p } }

// WithTick sets how often every simulated peer is heard.
func WithTick(d time.Duration) MockOption { return func(m *MockRadio) { m.tick = d } }

// WithSeed makes the simulation deterministic.
func WithSeed(seed int64) MockOption {
	return func(m *MockRadio) { m.rng = rand.New(rand.NewSource(seed)) }
}

// NewMockRadio creates n simulated peers encoding their frames with codec.
func NewMockRadio(n int, codec *proximity.Codec, companyID uint16, opts ...MockOption) *MockRadio {
	m := &MockRadio{
		codec:   codec,
		company: companyID,
		tick:    200 * time.Millisecond,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(m)
	}

	names := m.rng.Perm(len(mockNicknames))
	for i := 0; i < n; i++ {
		nick := mockNicknames[names[i%len(names)]]
		if i >= len(names) {
			nick = fmt.Sprintf("%s%d", nick, i/len(names)+1)
		}
		m.peers = append(m.peers, mockPeer{
			mac:       m.randomMAC(),
			id:        proximity.Identity{Nickname: nick, ID: uuid.NewString()},
			heading:   m.rng.Float64() * 360,
			turnRate:  (m.rng.Float64() - 0.5) * 20,
			compass:   m.rng.Float64() > 0.2,
			baseRSSI:  -45 - m.rng.Float64()*40, // -45 to -85 dBm
			phase:     m.rng.Float64() * 2 * math.Pi,
			amplitude: 2 + m.rng.Float64()*6,
			active:    true,
			prefix:    m.rng.Intn(3),
		})
	}
	return m
}

// BeginAdvertising records the frame as on air.
func (m *MockRadio) BeginAdvertising(_ context.Context, frame []byte, _ proximity.TxParameters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRate > 0 && m.rng.Float64() < m.failRate {
		return errors.New("mock: advertiser busy")
	}
	m.advertising = append([]byte(nil), frame...)
	return nil
}

// EndAdvertising takes the frame off air.
func (m *MockRadio) EndAdvertising(context.Context) error {
	m.mu.Lock()
	m.advertising = nil
	m.mu.Unlock()
	return nil
}

// Advertising returns the frame currently on air, nil when silent.
func (m *MockRadio) Advertising() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.advertising...)
}

// BeginScanning starts delivering simulated advertisements.
func (m *MockRadio) BeginScanning(h proximity.ScanHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, h, m.done)
	return nil
}

// EndScanning stops the simulation loop.
func (m *MockRadio) EndScanning() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (m *MockRadio) loop(ctx context.Context, h proximity.ScanHandler, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, res := range m.Step(m.tick) {
				h(res)
			}
		}
	}
}

// Step advances the simulation by dt and returns what a scanner would hear.
func (m *MockRadio) Step(dt time.Duration) []proximity.ScanResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed += dt.Seconds()

	var out []proximity.ScanResult
	for i := range m.peers {
		p := &m.peers[i]

		// people wander in and out of range
		if m.rng.Float64() < 0.003 {
			p.active = !p.active
		}
		if !p.active {
			continue
		}
		p.heading = math.Mod(p.heading+p.turnRate*dt.Seconds()+360, 360)

		heading := proximity.Heading{}
		if p.compass {
			heading = proximity.HeadingOf(int(p.heading))
		}
		frame, err := m.codec.Encode(p.id, heading)
		if err != nil {
			continue
		}

		rssi := p.baseRSSI + p.amplitude*math.Sin(m.elapsed*0.5+p.phase) + (m.rng.Float64()-0.5)*4
		out = append(out, proximity.ScanResult{
			DeviceID:         p.mac,
			ManufacturerData: m.wrap(p.prefix, frame),
			RSSI:             int(rssi),
		})
	}

	// now and then a foreign beacon shows up
	if m.rng.Float64() < 0.05 {
		out = append(out, proximity.ScanResult{
			DeviceID:         m.randomMAC(),
			ManufacturerData: []byte{0x4C, 0x00, 0x02, 0x15, 0xE2, 0xC5},
			RSSI:             -80,
		})
	}
	return out
}

func (m *MockRadio) wrap(prefix int, frame []byte) []byte {
	switch prefix {
	case 2:
		b := make([]byte, 2+len(frame))
		binary.LittleEndian.PutUint16(b, m.company)
		copy(b[2:], frame)
		return b
	case 1:
		return append([]byte{byte(m.company)}, frame...)
	default:
		return append([]byte(nil), frame...)
	}
}

func (m *MockRadio) randomMAC() string {
	b := make([]byte, 6)
	m.rng.Read(b)
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
