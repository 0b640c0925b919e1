// Package banner implements BannerOutput / BannerCollector (spec §2, §3):
// the per-connection accumulator of parsed application-protocol evidence,
// flushed to a Reporter on teardown.
//
// Every accumulated Output and every flush is tagged with an xid.ID, the
// same way runZeroInc-sockstats/cmd/exporter_example2 labels a live
// connection's Prometheus metrics with xid.New().String() — here the ID
// lets a downstream consumer correlate a flushed banner with table/metrics
// events for the same connection even after its TCB slot has been reused.
package banner

import (
	"time"

	"github.com/rs/xid"
)

// Output accumulates banner fragments for one connection until flush.
type Output struct {
	ID       xid.ID
	AppProto string
	data     []byte
}

// NewOutput starts a fresh accumulator tagged with a new sortable ID.
func NewOutput(appProto string) Output {
	return Output{ID: xid.New(), AppProto: appProto}
}

// Append adds a banner fragment.
func (o *Output) Append(b []byte) {
	o.data = append(o.data, b...)
}

// Len reports the number of accumulated bytes.
func (o *Output) Len() int { return len(o.data) }

// Bytes returns the accumulated banner bytes. The caller must not retain a
// reference across a Reset.
func (o *Output) Bytes() []byte { return o.data }

// Reset clears accumulated data and assigns a fresh ID, for TCB slab reuse.
func (o *Output) Reset(appProto string) {
	o.ID = xid.New()
	o.AppProto = appProto
	o.data = o.data[:0]
}

// Reporter is the output sink banners are flushed to (spec §6
// report_banner). Implementations are assumed thread-safe by contract
// (spec §5).
type Reporter interface {
	ReportBanner(now time.Time, id xid.ID, remoteIP []byte, remotePort uint16, appProto string, ttl uint8, data []byte)
}

// Flush reports o to r if it has any accumulated data, including an empty
// banner set (spec §8 scenario 6: "a banner flush (empty banner set is
// valid)"). now, remoteIP, remotePort and ttl describe the connection being
// torn down.
func Flush(r Reporter, o *Output, now time.Time, remoteIP []byte, remotePort uint16, ttl uint8) {
	if r == nil {
		return
	}
	r.ReportBanner(now, o.ID, remoteIP, remotePort, o.AppProto, ttl, o.Bytes())
}
