package proximity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Frame layout: <tag>|<nickname>|<id>[|<hhh>]
const (
	minFrameFields = 3
	headingDigits  = 3
	delimiterSub   = '_'
)

// decodeOffsets lists the payload offsets tried by Decode, in preference order.
// Transports may prepend one or two bytes (usually the company id) to the frame;
// offset 0 covers transports that hand over the bare frame.
var decodeOffsets = []int{2, 1, 0}

// FrameConfig bounds the advertisement frame.
type FrameConfig struct {
	Tag            string
	Delimiter      byte
	Budget         int // total frame bytes
	NicknameBudget int // bytes of nickname kept
	IDBudget       int // bytes of id kept
	ReferencePower float64
}

// DefaultFrameConfig returns the layout used by deployed senders.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Tag:            "MM",
		Delimiter:      '|',
		Budget:         26,
		NicknameBudget: 10,
		IDBudget:       8,
		ReferencePower: DefaultReferencePower,
	}
}

// Codec encodes the local identity into a frame and decodes received frames.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	cfg FrameConfig
	now func() time.Time
}

// NewCodec creates a codec. Zero fields of cfg fall back to the defaults.
func NewCodec(cfg FrameConfig) *Codec {
	def := DefaultFrameConfig()
	if cfg.Tag == "" {
		cfg.Tag = def.Tag
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = def.Delimiter
	}
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	if cfg.NicknameBudget <= 0 {
		cfg.NicknameBudget = def.NicknameBudget
	}
	if cfg.IDBudget <= 0 {
		cfg.IDBudget = def.IDBudget
	}
	if cfg.ReferencePower == 0 {
		cfg.ReferencePower = def.ReferencePower
	}
	return &Codec{cfg: cfg, now: time.Now}
}

// Config returns the effective frame configuration.
func (c *Codec) Config() FrameConfig { return c.cfg }

// Fields returns the nickname and id exactly as Encode places them on air
// before any further shrinking needed to meet the total budget.
func (c *Codec) Fields(id Identity) (nickname, token string) {
	return c.clip(id.Nickname, c.cfg.NicknameBudget), c.clip(id.ID, c.cfg.IDBudget)
}

// Encode builds the advertisement frame for id. Over-long fields are truncated,
// never rejected. When the assembled frame still exceeds the budget the
// nickname shrinks first, then the heading is dropped, then the id shrinks.
// An empty nickname or id is rejected with ErrEmptyField, since Decode would
// drop the resulting frame.
func (c *Codec) Encode(id Identity, heading Heading) ([]byte, error) {
	nick, token := c.Fields(id)
	switch {
	case nick == "":
		return nil, errors.Wrap(ErrEmptyField, "encode nickname")
	case token == "":
		return nil, errors.Wrap(ErrEmptyField, "encode id")
	}
	head := ""
	if heading.Valid {
		head = fmt.Sprintf("%0*d", headingDigits, NormalizeDegrees(heading.Degrees))
	}

	for {
		frame := c.assemble(nick, token, head)
		if len(frame) <= c.cfg.Budget {
			return []byte(frame), nil
		}
		switch {
		case utf8.RuneCountInString(nick) > 1:
			nick = dropLastRune(nick)
		case head != "":
			head = ""
		case utf8.RuneCountInString(token) > 1:
			token = dropLastRune(token)
		default:
			return nil, errors.Wrapf(ErrFrameTooLarge, "minimal frame is %d bytes, budget %d", len(frame), c.cfg.Budget)
		}
	}
}

func (c *Codec) assemble(nick, token, head string) string {
	var sb strings.Builder
	sb.WriteString(c.cfg.Tag)
	sb.WriteByte(c.cfg.Delimiter)
	sb.WriteString(nick)
	sb.WriteByte(c.cfg.Delimiter)
	sb.WriteString(token)
	if head != "" {
		sb.WriteByte(c.cfg.Delimiter)
		sb.WriteString(head)
	}
	return sb.String()
}

// clip replaces delimiter bytes and truncates s to at most max bytes without
// splitting a UTF-8 sequence.
func (c *Codec) clip(s string, max int) string {
	s = strings.Map(func(r rune) rune {
		if r == rune(c.cfg.Delimiter) {
			return delimiterSub
		}
		return r
	}, s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func dropLastRune(s string) string {
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}

// Decode parses a received manufacturer payload. Candidate offsets are tried in
// order and the first one that starts with the tag and carries enough fields
// wins. A missing or non-numeric heading is treated as absent.
func (c *Codec) Decode(raw []byte, rssi int) (DecodedPeer, error) {
	frame, fields, err := c.locate(raw)
	if err != nil {
		return DecodedPeer{}, err
	}

	nick, token := fields[1], fields[2]
	if nick == "" || token == "" {
		return DecodedPeer{}, &DecodeError{Raw: raw, Err: ErrMalformedFields}
	}

	peer := DecodedPeer{
		Nickname:       nick,
		ID:             token,
		RawFrame:       frame,
		SignalStrength: rssi,
		DistanceMeters: EstimateDistance(rssi, c.cfg.ReferencePower),
		LastSeen:       c.now(),
	}
	if len(fields) > minFrameFields {
		peer.Heading = parseHeading(fields[minFrameFields])
	}
	return peer, nil
}

func (c *Codec) locate(raw []byte) (string, []string, error) {
	prefix := c.cfg.Tag + string(c.cfg.Delimiter)
	tagged := false
	for _, off := range decodeOffsets {
		if len(raw) < off+len(prefix) {
			continue
		}
		candidate := strings.TrimRight(string(raw[off:]), "\x00")
		if !strings.HasPrefix(candidate, prefix) {
			continue
		}
		tagged = true
		fields := strings.Split(candidate, string(c.cfg.Delimiter))
		if len(fields) < minFrameFields {
			continue
		}
		return candidate, fields, nil
	}
	if tagged {
		return "", nil, &DecodeError{Raw: raw, Err: ErrMalformedFields}
	}
	return "", nil, &DecodeError{Raw: raw, Err: ErrNoTag}
}

func parseHeading(field string) Heading {
	deg, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil || deg < 0 || deg > 359 {
		return Heading{}
	}
	return Heading{Degrees: deg, Valid: true}
}
