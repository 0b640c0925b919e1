package engine

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestSetParameterHTTPFields(t *testing.T) {
	c := NewConfig()
	for name, value := range map[string]string{
		"http-method":     "HEAD",
		"http-url":        "/index.html",
		"http-version":    "HTTP/1.1",
		"http-host":       "example.com",
		"http-user-agent": "probe/1.0",
		"http-payload":    "body",
	} {
		if err := c.SetParameter(name, value); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
	if c.HTTP.Method != "HEAD" || c.HTTP.URL != "/index.html" || c.HTTP.Host != "example.com" {
		t.Fatalf("want http fields applied, got %+v", c.HTTP)
	}
}

func TestSetParameterTimeouts(t *testing.T) {
	c := NewConfig()
	if err := c.SetParameter("timeout", "45"); err != nil {
		t.Fatal(err)
	}
	if c.ConnectionTimeout != 45*time.Second {
		t.Fatalf("want connection timeout 45s, got %s", c.ConnectionTimeout)
	}
	if err := c.SetParameter("hello-timeout", "1.5"); err != nil {
		t.Fatal(err)
	}
	if c.HelloTimeout != 1500*time.Millisecond {
		t.Fatalf("want hello timeout 1.5s, got %s", c.HelloTimeout)
	}
}

func TestSetParameterHelloMode(t *testing.T) {
	c := NewConfig()
	if err := c.SetParameter("hello", "ssl"); err != nil {
		t.Fatal(err)
	}
	if c.HelloMode != "ssl" {
		t.Fatalf("want hello mode ssl, got %s", c.HelloMode)
	}
	if err := c.SetParameter("hello", "bogus"); err == nil {
		t.Fatalf("want an error for an unrecognized hello mode")
	}
}

func TestSetParameterSSLFlags(t *testing.T) {
	c := NewConfig()
	for _, name := range []string{"heartbleed", "ticketbleed", "poodle"} {
		if err := c.SetParameter(name, ""); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
	}
	if !c.Heartbleed || !c.Ticketbleed || !c.POODLE {
		t.Fatalf("want all three SSL probe flags set, got %+v", c)
	}
}

func TestSetParameterUnrecognizedNameErrors(t *testing.T) {
	c := NewConfig()
	if err := c.SetParameter("not-a-real-parameter", "x"); err == nil {
		t.Fatalf("want an error for an unrecognized parameter name")
	}
}

func TestSetParameterHelloStringDecodesBase64PerPort(t *testing.T) {
	c := NewConfig()
	encoded := base64.StdEncoding.EncodeToString([]byte("raw-hello"))
	if err := c.SetParameter("hello-string[2222]", encoded); err != nil {
		t.Fatal(err)
	}
	if string(c.HelloStrings[2222]) != "raw-hello" {
		t.Fatalf("want decoded hello bytes stored under port 2222, got %q", c.HelloStrings[2222])
	}
}

func TestSetParameterHelloStringRejectsBadPortOrBase64(t *testing.T) {
	c := NewConfig()
	if err := c.SetParameter("hello-string[notaport]", "aGVsbG8="); err == nil {
		t.Fatalf("want an error for a non-numeric port")
	}
	if err := c.SetParameter("hello-string[80]", "not-valid-base64!!"); err == nil {
		t.Fatalf("want an error for malformed base64")
	}
}

func TestSetSSLClientHelloForcesStreamRebuild(t *testing.T) {
	c := NewConfig()
	c.SetParameter("hello", "ssl")
	first := c.DefaultStream()

	c.SetSSLClientHello([]byte("new-hello"))
	second := c.DefaultStream()
	if first == second {
		t.Fatalf("want SetSSLClientHello to force DefaultStream to rebuild the SSL stream")
	}
}

func TestStreamsByPortLayersHelloStringOverridesOnDefault(t *testing.T) {
	c := NewConfig()
	encoded := base64.StdEncoding.EncodeToString([]byte("raw-hello"))
	c.SetParameter("hello-string[2222]", encoded)

	byPort := c.StreamsByPort(80)

	def, ok := byPort.Select(80)
	if !ok || def.Name() != "http" {
		t.Fatalf("want the default http stream registered at port 80")
	}
	override, ok := byPort.Select(2222)
	if !ok || override.Name() != "raw" {
		t.Fatalf("want a raw stream override registered at port 2222")
	}
}

func TestSetHTTPHeaderAddsHeader(t *testing.T) {
	c := NewConfig()
	c.SetHTTPHeader("X-Scan", "1")
	if c.HTTP.Headers["X-Scan"] != "1" {
		t.Fatalf("want the header recorded on the default HTTP stream")
	}
}
