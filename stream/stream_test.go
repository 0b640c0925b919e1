package stream

import "testing"

type noopNetAPI struct{}

func (noopNetAPI) Send(payload []byte) error { return nil }

func TestHTTPHelloIncludesHeadersAndPayload(t *testing.T) {
	h := NewHTTP()
	h.Host = "example.com"
	h.Payload = []byte("body")
	h.Headers = map[string]string{"X-Test": "1"}

	hello, ok := h.Hello(&State{})
	if !ok {
		t.Fatalf("want a canned hello")
	}
	s := string(hello)
	for _, want := range []string{"GET / HTTP/1.0\r\n", "Host: example.com\r\n", "X-Test: 1\r\n", "\r\n\r\nbody"} {
		if !contains(s, want) {
			t.Fatalf("hello missing %q, got %q", want, s)
		}
	}
}

func TestHTTPFeedReturnsWholePayloadAsOneFragment(t *testing.T) {
	h := NewHTTP()
	frags, err := h.Feed(&State{}, noopNetAPI{}, []byte("HTTP/1.1 200 OK\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 || string(frags[0].Data) != "HTTP/1.1 200 OK\r\n\r\n" {
		t.Fatalf("want the whole payload as one fragment, got %+v", frags)
	}
}

func TestSSLFeedAssemblesRecordsAcrossCalls(t *testing.T) {
	s := NewSSL([]byte("clienthello"), false, false, false)
	st := &State{}

	// Record header: type(1) version(2) length(2 big-endian) = 3 bytes body.
	header := []byte{0x16, 0x03, 0x01, 0x00, 0x03}
	body := []byte{0xAA, 0xBB, 0xCC}

	frags, err := s.Feed(st, noopNetAPI{}, header)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 0 {
		t.Fatalf("want no fragment until the full record arrives, got %+v", frags)
	}

	frags, err = s.Feed(st, noopNetAPI{}, body)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 || len(frags[0].Data) != 8 {
		t.Fatalf("want one assembled 8-byte record, got %+v", frags)
	}
	if len(st.SSLFragment) != 0 {
		t.Fatalf("want the fragment buffer drained after a full record, got %d bytes left", len(st.SSLFragment))
	}
}

func TestSSLTransmitHelloSendsAndMarksState(t *testing.T) {
	s := NewSSL([]byte("clienthello"), false, false, false)
	st := &State{}
	sent, err := s.TransmitHello(st, noopNetAPI{})
	if err != nil {
		t.Fatal(err)
	}
	if !sent {
		t.Fatalf("want TransmitHello to report it sent the ClientHello directly")
	}
	if !st.IsSentHello {
		t.Fatalf("want IsSentHello set after TransmitHello")
	}
}

func TestSSLNextYieldsFallback(t *testing.T) {
	fallback := NewHTTP()
	s := NewSSL([]byte("hello"), false, false, false).WithFallback(fallback)
	next, ok := s.Next()
	if !ok || next != fallback {
		t.Fatalf("want Next to yield the configured fallback stream")
	}
}

func TestRawSendsCannedHelloVerbatim(t *testing.T) {
	r := NewRaw([]byte{1, 2, 3})
	hello, ok := r.Hello(&State{})
	if !ok || string(hello) != string([]byte{1, 2, 3}) {
		t.Fatalf("want the canned hello sent verbatim, got %v", hello)
	}
}

func TestByPortSelect(t *testing.T) {
	byPort := ByPort{80: NewHTTP(), 22: NewRaw([]byte("ssh"))}
	s, ok := byPort.Select(80)
	if !ok || s.Name() != "http" {
		t.Fatalf("want http stream selected for port 80")
	}
	if _, ok := byPort.Select(9999); ok {
		t.Fatalf("want no stream selected for an unregistered port")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
