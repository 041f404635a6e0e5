// Package fetch downloads historical bars from the Alpaca market-data API
// into snapshot files. Like the live feed it sits outside the deterministic
// core: fetched data is written to disk and replayed through the same
// validation gate as any other snapshot.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/snapshot"
)

// ErrUnknownTimeframe indicates a timeframe label with no Alpaca mapping.
var ErrUnknownTimeframe = errors.New("unknown timeframe label")

// barGetter is the slice of the Alpaca client the fetcher uses.
// *marketdata.Client satisfies it.
type barGetter interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

var _ barGetter = (*marketdata.Client)(nil)

// Options configures a Fetcher.
type Options struct {
	APIKey    string
	APISecret string
	BaseURL   string // "" = SDK default
	Feed      string // "" = account default feed

	// RequestsPerMinute paces chunk requests. Default 200.
	RequestsPerMinute int
	// ChunkDays is the backfill window per request. Default 30.
	ChunkDays int

	// OnRequest, when set, is called after every upstream request with
	// its result.
	OnRequest func(err error)

	Logger *log.Logger // nil = log.Default()
}

// Fetcher downloads bars one time-window chunk at a time, paced by a rate
// limiter, and concatenates the result.
type Fetcher struct {
	client    barGetter
	limiter   *rate.Limiter
	feed      string
	chunkDays int
	onRequest func(error)
	logger    *log.Logger
}

// New creates a Fetcher backed by the Alpaca market-data client.
func New(opts Options) *Fetcher {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.BaseURL != "" {
		clientOpts.BaseURL = opts.BaseURL
	}

	return newFetcher(marketdata.NewClient(clientOpts), opts)
}

// newFetcher wires an arbitrary barGetter, used directly by tests.
func newFetcher(client barGetter, opts Options) *Fetcher {
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 200
	}
	chunkDays := opts.ChunkDays
	if chunkDays <= 0 {
		chunkDays = 30
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Fetcher{
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		feed:      opts.Feed,
		chunkDays: chunkDays,
		onRequest: opts.OnRequest,
		logger:    logger,
	}
}

// Timeframe maps a timeframe label to its Alpaca form.
func Timeframe(label string) (marketdata.TimeFrame, error) {
	switch label {
	case domain.TimeframeM1:
		return marketdata.OneMin, nil
	case domain.TimeframeM5:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case domain.TimeframeM15:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case domain.TimeframeM30:
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case domain.TimeframeH1:
		return marketdata.OneHour, nil
	case domain.TimeframeH4:
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case domain.TimeframeD1:
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("%w %q", ErrUnknownTimeframe, label)
	}
}

// FetchBars downloads bars for symbol over [start, end], chunked by the
// configured window. Chunk-boundary duplicates are dropped and the result
// is returned in chronological order, so the written snapshot passes the
// replay validation gate.
func (f *Fetcher) FetchBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Bar, error) {
	tf, err := Timeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("start %v is not before end %v", start, end)
	}

	window := time.Duration(f.chunkDays) * 24 * time.Hour

	var bars []domain.Bar
	for chunkStart := start; chunkStart.Before(end); chunkStart = chunkStart.Add(window) {
		chunkEnd := chunkStart.Add(window)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		alpacaBars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: tf,
			Start:     chunkStart,
			End:       chunkEnd,
			Feed:      marketdata.Feed(f.feed),
		})
		if f.onRequest != nil {
			f.onRequest(err)
		}
		if err != nil {
			return nil, fmt.Errorf("get bars %s %s..%s: %w",
				symbol, chunkStart.Format("2006-01-02"), chunkEnd.Format("2006-01-02"), err)
		}

		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Timestamp: ab.Timestamp.UTC(),
				Open:      ab.Open,
				High:      ab.High,
				Low:       ab.Low,
				Close:     ab.Close,
				Volume:    float64(ab.Volume),
			})
		}

		f.logger.Printf("fetch: %s %s %s..%s: %d bars",
			symbol, timeframe, chunkStart.Format("2006-01-02"), chunkEnd.Format("2006-01-02"), len(alpacaBars))
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return dedupeByTimestamp(bars), nil
}

// WriteSnapshot fetches bars and writes them as one snapshot file named
// <symbol>_<timeframe>.<format> under dir, returning the resulting data
// reference.
func (f *Fetcher) WriteSnapshot(ctx context.Context, symbol, timeframe string, start, end time.Time, dir, format string) (*domain.DataRef, error) {
	bars, err := f.FetchBars(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned for %s %s", symbol, timeframe)
	}

	name := fmt.Sprintf("%s_%s.%s", strings.ToLower(symbol), strings.ToLower(timeframe), format)
	path := filepath.Join(dir, name)

	switch format {
	case snapshot.FormatCSV:
		err = snapshot.WriteCSV(path, bars)
	case snapshot.FormatParquet:
		err = snapshot.WriteParquet(path, bars)
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	f.logger.Printf("fetch: wrote %d bars to %s", len(bars), path)
	return snapshot.Describe(dir, format, len(bars))
}

// dedupeByTimestamp keeps the first bar of each timestamp in an already
// sorted sequence.
func dedupeByTimestamp(bars []domain.Bar) []domain.Bar {
	if len(bars) < 2 {
		return bars
	}
	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, b)
	}
	return out
}
