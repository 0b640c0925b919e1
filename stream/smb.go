package stream

// SMB is a minimal SMBv1 negotiate-protocol probe. Parsing the negotiate
// response is out of scope (spec §1); Feed hands the raw response back as
// one banner fragment and Cleanup releases the scratch buffer the engine
// notes as needing protocol-specific teardown (spec §4.1 destroy_tcb).
type SMB struct {
	negotiateRequest []byte
}

// NewSMB returns an SMBv1 stream with a canned negotiate-protocol request.
func NewSMB(negotiateRequest []byte) *SMB {
	return &SMB{negotiateRequest: negotiateRequest}
}

func (s *SMB) Name() string { return "smbv1" }

func (s *SMB) Hello(st *State) ([]byte, bool) {
	if len(s.negotiateRequest) == 0 {
		return nil, false
	}
	return s.negotiateRequest, true
}

func (s *SMB) TransmitHello(st *State, net NetAPI) (bool, error) { return false, nil }

func (s *SMB) Feed(st *State, net NetAPI, payload []byte) ([]Fragment, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	return []Fragment{{Data: append([]byte(nil), payload...)}}, nil
}

func (s *SMB) Next() (Stream, bool) { return nil, false }

// Cleanup is SMB's protocol-specific teardown hook, named explicitly in
// spec §4.1 ("e.g., SMB cleanup"). There is no allocated scratch beyond
// State today, so this is a no-op placeholder kept for that call site.
func (s *SMB) Cleanup(st *State) {}
