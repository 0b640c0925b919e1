package stream

// Raw is a protocol-agnostic probe stream for a canned hello supplied
// verbatim, e.g. via set_parameter("hello-string[port]", base64) (spec §6):
// no parser assumptions are made about the response, which is handed back
// as a single banner fragment.
type Raw struct {
	hello []byte
}

// NewRaw returns a Raw stream that sends hello verbatim.
func NewRaw(hello []byte) *Raw {
	return &Raw{hello: hello}
}

func (r *Raw) Name() string { return "raw" }

func (r *Raw) Hello(st *State) ([]byte, bool) {
	if len(r.hello) == 0 {
		return nil, false
	}
	return r.hello, true
}

func (r *Raw) TransmitHello(st *State, net NetAPI) (bool, error) { return false, nil }

func (r *Raw) Feed(st *State, net NetAPI, payload []byte) ([]Fragment, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	return []Fragment{{Data: append([]byte(nil), payload...)}}, nil
}

func (r *Raw) Next() (Stream, bool) { return nil, false }

func (r *Raw) Cleanup(st *State) {}
