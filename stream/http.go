package stream

import "bytes"

// HTTP is a minimal HTTP/1.x probe stream: it sends a configurable request
// line + headers as a canned hello and treats the entire response as one
// banner fragment, since full response parsing is out of scope (spec §1).
type HTTP struct {
	Method    string
	URL       string
	Version   string
	Host      string
	UserAgent string
	Headers   map[string]string // additional headers set via set_http_header
	Payload   []byte            // optional request body
}

// NewHTTP returns an HTTP stream with the defaults spec §6 implies
// (method/url/version settable via set_parameter).
func NewHTTP() *HTTP {
	return &HTTP{
		Method:    "GET",
		URL:       "/",
		Version:   "HTTP/1.0",
		UserAgent: "synscan",
	}
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) Hello(st *State) ([]byte, bool) {
	var b bytes.Buffer
	b.WriteString(h.Method)
	b.WriteByte(' ')
	b.WriteString(h.URL)
	b.WriteByte(' ')
	b.WriteString(h.Version)
	b.WriteString("\r\n")
	if h.Host != "" {
		b.WriteString("Host: " + h.Host + "\r\n")
	}
	if h.UserAgent != "" {
		b.WriteString("User-Agent: " + h.UserAgent + "\r\n")
	}
	for name, value := range h.Headers {
		b.WriteString(name + ": " + value + "\r\n")
	}
	b.WriteString("\r\n")
	b.Write(h.Payload)
	return b.Bytes(), true
}

func (h *HTTP) TransmitHello(st *State, net NetAPI) (bool, error) {
	return false, nil // HTTP has no custom transmit behavior; use Hello.
}

func (h *HTTP) Feed(st *State, net NetAPI, payload []byte) ([]Fragment, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	return []Fragment{{Data: append([]byte(nil), payload...)}}, nil
}

func (h *HTTP) Next() (Stream, bool) { return nil, false }

func (h *HTTP) Cleanup(st *State) {}
