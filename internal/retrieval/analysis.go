package retrieval

import (
	"context"
	"time"

	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// analysisPeriod is the history window shown alongside a quote.
const analysisPeriod = "6M"

// analysisNews is the headline count shown alongside a quote.
const analysisNews = 5

// Analyze fetches quote, history, indicators and news for symbol concurrently.
func (s *Service) Analyze(ctx context.Context, symbol string) *Analysis {
	a := &Analysis{Symbol: normalizeSymbol(symbol)}

	var g errgroup.Group
	g.Go(func() error {
		a.Quote = s.GetQuote(ctx, a.Symbol)
		return nil
	})
	g.Go(func() error {
		a.History = s.GetHistory(ctx, a.Symbol, analysisPeriod)
		return nil
	})
	g.Go(func() error {
		a.Indicators = s.GetIndicators(ctx, a.Symbol, DefaultIndicators)
		return nil
	})
	g.Go(func() error {
		a.News = s.GetNews(ctx, a.Symbol, analysisNews)
		return nil
	})
	_ = g.Wait()

	for _, part := range []struct {
		name   string
		origin core.Origin
	}{
		{OpQuote, a.Quote.Origin},
		{OpHistory, a.History.Origin},
		{OpIndicators, a.Indicators.Origin},
		{OpNews, a.News.Origin},
	} {
		if part.origin.IsMock() {
			a.Degraded = append(a.Degraded, part.name)
		}
	}
	return a
}

// TestConnections probes every registered source concurrently. Results are in
// registration order and are never substituted with mock data.
func (s *Service) TestConnections(ctx context.Context) []ConnectionResult {
	probers := s.registry.Probers()
	results := make([]ConnectionResult, len(probers))

	var g errgroup.Group
	for i, p := range probers {
		i, p := i, p
		g.Go(func() error {
			results[i] = s.probe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) probe(ctx context.Context, p collector.Prober) ConnectionResult {
	start := time.Now()
	_, err := callWithTimeout(ctx, s.settings.SourceTimeout, p, func(ctx context.Context, p collector.Prober) (struct{}, error) {
		return struct{}{}, p.Probe(ctx)
	})
	latency := time.Since(start)

	r := ConnectionResult{
		Provider:  p.Name(),
		OK:        err == nil,
		Latency:   latency,
		LatencyMS: latency.Milliseconds(),
	}
	outcome := "ok"
	if err != nil {
		outcome = core.Kind(err)
		r.ErrorKind = outcome
		r.Error = err.Error()
	}
	s.recorder.RecordSourceCall(p.Name(), "probe", outcome, latency.Seconds())
	s.logger.Info("connectivity probe",
		zap.String("provider", p.Name()),
		zap.Bool("ok", r.OK),
		zap.Duration("latency", latency),
		zap.Error(err),
	)
	return r
}
