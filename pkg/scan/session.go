// Package scan implements the pull-based scan session driven by the host
// one row at a time, composed of table-option validation, the skip/take
// pagination driver, and the two projection strategies.
package scan

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/smowry40/sustainalytics-fdw/pkg/logging"
	"github.com/smowry40/sustainalytics-fdw/pkg/project"
	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

// Prometheus metrics for scan sessions.
var (
	fdwScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fdw_scans_total",
		Help: "Total table scans opened by endpoint",
	}, []string{"endpoint"})

	fdwPagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fdw_pages_fetched_total",
		Help: "Total pages fetched by endpoint",
	}, []string{"endpoint"})

	fdwRowsYieldedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fdw_rows_yielded_total",
		Help: "Total rows yielded to the host by endpoint",
	}, []string{"endpoint"})
)

// Fetcher is the fetch contract the session depends on. *client.Fetcher
// satisfies it.
type Fetcher interface {
	GetJSON(ctx context.Context, endpoint string, query url.Values, v any) error
}

// Session is one open table scan. It is driven single-threaded by the host:
// Begin validates options, Next yields rows until (nil, nil), End releases
// buffered state. At most one page (DataServices) or the flattened catalog
// (FieldMappingDefinitions) is held in memory.
type Session struct {
	fetcher Fetcher
	logger  zerolog.Logger

	opts  *Options
	state State

	// DataServices paging.
	skip      int
	items     []sustainalytics.DataServiceItem
	idx       int
	lastCount int

	// FieldMappingDefinitions buffer.
	catalog       []*project.FieldMappingRow
	catalogLoaded bool

	rowsYielded int
	closed      bool
}

// NewSession creates a scan session over the given fetcher.
func NewSession(fetcher Fetcher) *Session {
	return &Session{
		fetcher: fetcher,
		logger:  logging.NewLogger("scan"),
		state:   StateIdle,
	}
}

// Begin validates table options and initializes the scan context. It fails
// fast with a config error before any network call; the first fetch happens
// on the first Next.
func (s *Session) Begin(tableOptions map[string]string) error {
	opts, err := ParseOptions(tableOptions)
	if err != nil {
		return err
	}

	s.opts = opts
	s.state = StateIdle
	s.skip = 0
	s.items = nil
	s.idx = 0
	s.lastCount = 0
	s.catalog = nil
	s.catalogLoaded = false
	s.rowsYielded = 0
	s.closed = false

	fdwScansTotal.WithLabelValues(string(opts.Endpoint)).Inc()
	s.logger.Info().
		Str("endpoint", string(opts.Endpoint)).
		Int("take", opts.Take).
		Msg("Scan opened")

	return nil
}

// Next returns the next row, or (nil, nil) at end-of-data. Fetches are
// triggered lazily: a new page is requested only once the current one is
// fully consumed.
func (s *Session) Next(ctx context.Context) (project.Row, error) {
	if s.opts == nil {
		return nil, sustainalytics.NewConfigError("scan not begun")
	}

	switch s.opts.Endpoint {
	case EndpointDataServices:
		return s.nextDataService(ctx)
	default:
		return s.nextFieldMapping(ctx)
	}
}

// End releases buffered page/catalog state. Idempotent: calling it again is
// a no-op and later Next calls report end-of-data.
func (s *Session) End() {
	if s.opts != nil && !s.closed {
		s.logger.Info().
			Str("endpoint", string(s.opts.Endpoint)).
			Int("rows", s.rowsYielded).
			Msg("Scan closed")
	}
	s.closed = true
	s.state = StateExhausted
	s.items = nil
	s.idx = 0
	s.catalog = nil
	s.catalogLoaded = true
}

// State exposes the driver state for tests and logging.
func (s *Session) State() State {
	return s.state
}

// nextDataService runs the pagination state machine until a row is produced
// or the source is exhausted.
func (s *Session) nextDataService(ctx context.Context) (project.Row, error) {
	for {
		switch s.state {
		case StateIdle:
			s.skip = 0
			s.state = StateFetchingPage

		case StateFetchingPage:
			if err := s.fetchPage(ctx); err != nil {
				return nil, err
			}
			if s.lastCount == 0 {
				s.state = StateExhausted
			} else {
				s.state = StateDraining
			}

		case StateDraining:
			if s.idx < len(s.items) {
				row, err := project.DataService(s.items[s.idx])
				if err != nil {
					return nil, err
				}
				s.idx++
				s.rowsYielded++
				fdwRowsYieldedTotal.WithLabelValues(string(EndpointDataServices)).Inc()
				return row, nil
			}
			// Page drained. A full page implies more may exist; the cursor
			// advances by the requested take, not the returned count.
			if s.lastCount < s.opts.Take {
				s.state = StateExhausted
			} else {
				s.skip += s.opts.Take
				s.state = StateFetchingPage
			}

		default: // StateExhausted
			return nil, nil
		}
	}
}

// fetchPage requests the page at the current skip cursor and buffers it.
func (s *Session) fetchPage(ctx context.Context) error {
	query := url.Values{}
	query.Set(OptionProductID, s.opts.ProductID)
	query.Set("Skip", strconv.Itoa(s.skip))
	query.Set("Take", strconv.Itoa(s.opts.Take))
	if len(s.opts.PackageIDs) > 0 {
		query.Set(OptionPackageIDs, strings.Join(s.opts.PackageIDs, ","))
	}
	if len(s.opts.FieldClusterIDs) > 0 {
		query.Set(OptionFieldClusterIDs, strings.Join(s.opts.FieldClusterIDs, ","))
	}
	if len(s.opts.FieldIDs) > 0 {
		query.Set(OptionFieldIDs, strings.Join(s.opts.FieldIDs, ","))
	}

	var items []sustainalytics.DataServiceItem
	if err := s.fetcher.GetJSON(ctx, sustainalytics.PathDataService, query, &items); err != nil {
		return err
	}

	s.items = items
	s.idx = 0
	s.lastCount = len(items)

	fdwPagesFetchedTotal.WithLabelValues(string(EndpointDataServices)).Inc()
	s.logger.Debug().
		Int("skip", s.skip).
		Int("take", s.opts.Take).
		Int("count", s.lastCount).
		Msg("Page fetched")

	return nil
}

// nextFieldMapping serves rows from the eagerly flattened catalog. The
// endpoint is not paginated; the whole response is flattened on first pull.
func (s *Session) nextFieldMapping(ctx context.Context) (project.Row, error) {
	if !s.catalogLoaded {
		var products []sustainalytics.CatalogProduct
		if err := s.fetcher.GetJSON(ctx, sustainalytics.PathFieldMappingDefinitions, nil, &products); err != nil {
			return nil, err
		}

		rows, err := project.FlattenCatalog(products)
		if err != nil {
			return nil, err
		}

		s.catalog = rows
		s.catalogLoaded = true
		s.idx = 0
		s.state = StateDraining

		fdwPagesFetchedTotal.WithLabelValues(string(EndpointFieldMappingDefinitions)).Inc()
		s.logger.Debug().
			Int("rows", len(rows)).
			Msg("Catalog flattened")
	}

	if s.idx < len(s.catalog) {
		row := s.catalog[s.idx]
		s.idx++
		s.rowsYielded++
		fdwRowsYieldedTotal.WithLabelValues(string(EndpointFieldMappingDefinitions)).Inc()
		return row, nil
	}

	s.state = StateExhausted
	return nil, nil
}
