package output

import (
	"fmt"
	"strconv"

	"github.com/jmurray2011/hoard/internal/reqcache"
)

// FormatCacheStats outputs a cache stats snapshot in the configured format.
func (f *Formatter) FormatCacheStats(s reqcache.Stats) error {
	switch f.format {
	case FormatJSON:
		return f.writeJSON(s)
	case FormatCSV:
		return f.writeCSV(
			[]string{"size", "capacity", "ttl", "hits", "misses", "hitRatio", "evictions", "expired", "coalesced"},
			[][]string{{
				strconv.Itoa(s.Size),
				strconv.Itoa(s.Capacity),
				s.TTL.String(),
				strconv.FormatUint(s.Hits, 10),
				strconv.FormatUint(s.Misses, 10),
				strconv.FormatFloat(s.HitRatio(), 'f', 4, 64),
				strconv.FormatUint(s.Evictions, 10),
				strconv.FormatUint(s.Expired, 10),
				strconv.FormatUint(s.Coalesced, 10),
			}},
		)
	}

	capacity := "unbounded"
	if s.Capacity >= 0 {
		capacity = strconv.Itoa(s.Capacity)
	}
	ttl := "none"
	if s.TTL > 0 {
		ttl = s.TTL.String()
	}

	f.renderer.KeyValue("Entries", fmt.Sprintf("%d / %s  %s", s.Size, capacity, f.renderer.UsageBar(s.Size, s.Capacity, 20)))
	f.renderer.KeyValue("TTL", ttl)
	f.renderer.KeyValue("Hits", strconv.FormatUint(s.Hits, 10))
	f.renderer.KeyValue("Misses", strconv.FormatUint(s.Misses, 10))
	f.renderer.KeyValue("Hit ratio", fmt.Sprintf("%.1f%%", s.HitRatio()*100))
	f.renderer.KeyValue("Evictions", strconv.FormatUint(s.Evictions, 10))
	f.renderer.KeyValue("Expired", strconv.FormatUint(s.Expired, 10))
	f.renderer.KeyValue("Coalesced", strconv.FormatUint(s.Coalesced, 10))
	return nil
}
