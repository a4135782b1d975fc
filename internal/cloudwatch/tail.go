package cloudwatch

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/pkg/lru"
)

// Tail defaults.
const (
	DefaultTailPollInterval    = 2 * time.Second
	DefaultTailLookback        = 5 * time.Second
	DefaultTailDedupCapacity   = 10000
	DefaultTailEventChanBuffer = 100
)

// TailOptions configures Tail.
type TailOptions struct {
	LogGroup string

	// Filter is passed to FilterLogEvents; "a|b" becomes an OR pattern.
	Filter string

	// Match, when set, drops events whose message it does not match.
	Match *regexp.Regexp

	// PollInterval defaults to DefaultTailPollInterval.
	PollInterval time.Duration

	// Lookback is how far before the previous poll each window starts, to
	// catch events that arrive late. Defaults to DefaultTailLookback.
	Lookback time.Duration

	// DedupCapacity bounds the set of recently seen events.
	DedupCapacity int

	Logger logging.Logger
}

func (o *TailOptions) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultTailPollInterval
	}
	if o.Lookback <= 0 {
		o.Lookback = DefaultTailLookback
	}
	if o.DedupCapacity <= 0 {
		o.DedupCapacity = DefaultTailDedupCapacity
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
}

func eventKey(e TailEvent) string {
	return strconv.FormatInt(e.Timestamp.UnixNano(), 10) + "\x00" + e.LogStream + "\x00" + e.Message
}

// Tail polls reader for new events until ctx is done, then closes the
// returned channel. Overlapping poll windows are de-duplicated with a bounded
// LRU set, so memory stays flat however long the tail runs. Poll errors are
// logged and retried on the next tick.
func Tail(ctx context.Context, reader EventFilterer, opts TailOptions) <-chan TailEvent {
	opts.setDefaults()
	log := opts.Logger.WithFields(map[string]interface{}{
		"component": "tail",
		"group":     opts.LogGroup,
	})

	events := make(chan TailEvent, DefaultTailEventChanBuffer)

	go func() {
		defer close(events)

		seen := lru.New[string, struct{}](opts.DedupCapacity)
		last := time.Now().Add(-opts.Lookback)

		ticker := time.NewTicker(opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			end := time.Now()
			batch, err := reader.FilterLogEvents(ctx, opts.LogGroup, opts.Filter, last.Add(-opts.Lookback), end)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Debug("transient error: %v", err)
				continue
			}

			for _, e := range batch {
				key := eventKey(e)
				if seen.Has(key) {
					continue
				}
				seen.Set(key, struct{}{})

				if opts.Match != nil && !opts.Match.MatchString(e.Message) {
					continue
				}

				select {
				case events <- e:
				case <-ctx.Done():
					return
				}
			}

			last = end
		}
	}()

	return events
}
