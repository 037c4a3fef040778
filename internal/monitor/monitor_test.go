package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"monitor-concorrentes/internal/database"
	"monitor-concorrentes/internal/lease"
	"monitor-concorrentes/internal/metrics"
	"monitor-concorrentes/internal/models"
	"monitor-concorrentes/internal/monitor"
	"monitor-concorrentes/internal/scraper"
)

const storeURL = "https://loja.example.com"

type crawlFunc func(ctx context.Context, url string) scraper.CrawlResult

func (f crawlFunc) Crawl(ctx context.Context, url string) scraper.CrawlResult { return f(ctx, url) }

func staticCrawler(result scraper.CrawlResult) crawlFunc {
	return func(context.Context, string) scraper.CrawlResult { return result }
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, alerts []models.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alerts...)
}

func (n *recordingNotifier) all() []models.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Alert(nil), n.alerts...)
}

// switchableCrawler devolve o resultado configurado no momento do crawl
type switchableCrawler struct {
	mu     sync.Mutex
	result scraper.CrawlResult
	calls  int
}

func (c *switchableCrawler) set(r scraper.CrawlResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = r
}

func (c *switchableCrawler) Crawl(context.Context, string) scraper.CrawlResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.result
}

func price(v float64) *float64 { return &v }

func record(handle, title string, p *float64) models.ProductRecord {
	return models.ProductRecord{
		Title:    title,
		URL:      storeURL + "/products/" + handle,
		Price:    p,
		Currency: "USD",
	}
}

func complete(records ...models.ProductRecord) scraper.CrawlResult {
	return scraper.CrawlResult{Products: records, Pages: 1, Complete: true, Strategy: "catalog_api"}
}

type fixture struct {
	db       *database.DB
	crawler  *switchableCrawler
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	monitor  *monitor.Monitor
	id       int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	id, err := db.AddCompetitor(context.Background(), models.Competitor{Name: "Loja", URL: storeURL})
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		crawler:  &switchableCrawler{},
		notifier: &recordingNotifier{},
		metrics:  metrics.New(prometheus.NewRegistry()),
		id:       id,
	}
	f.monitor = monitor.New(monitor.NewStore(db), f.crawler, f.notifier, lease.NewLocalLocker(),
		monitor.Config{ScanTimeout: 5 * time.Second, Workers: 2, AlertThreshold: 5}, f.metrics, zap.NewNop())
	return f
}

func (f *fixture) scan(t *testing.T, result scraper.CrawlResult) *monitor.ScanSummary {
	t.Helper()
	f.crawler.set(result)
	summary, err := f.monitor.RunScan(context.Background(), f.id)
	require.NoError(t, err)
	return summary
}

func TestRunScanFirstScanInsertsProducts(t *testing.T) {
	f := newFixture(t)

	summary := f.scan(t, complete(
		record("widget", "Widget", price(29.99)),
		record("gadget", "Gadget", nil),
	))

	assert.Equal(t, models.ScanSummarized, summary.State)
	assert.Equal(t, models.ScanCompleted, summary.Result.Status)
	assert.Equal(t, 2, summary.Result.NewCount)
	assert.NotZero(t, summary.Result.ID)
	assert.Equal(t, "catalog_api", summary.Strategy)

	products, err := f.db.LoadActiveProducts(context.Background(), f.id)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Len(t, products[0].PriceHistory, 1)
	assert.Empty(t, products[1].PriceHistory)

	c, err := f.db.GetCompetitor(context.Background(), f.id)
	require.NoError(t, err)
	assert.Equal(t, 2, c.ProductCount)
	assert.NotNil(t, c.LastScannedAt)

	alerts := f.notifier.all()
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertNewProduct, alerts[0].Type)
	assert.Equal(t, products[0].ID, alerts[0].ProductID)
	assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.CatalogChanges.WithLabelValues(metrics.ChangeNew)), 0.001)
}

func TestRunScanPriceChange(t *testing.T) {
	f := newFixture(t)
	f.scan(t, complete(record("widget", "Widget", price(29.99))))

	summary := f.scan(t, complete(record("widget", "Widget", price(24.99))))

	assert.Equal(t, 1, summary.Result.PriceChangedCount)
	assert.Zero(t, summary.Result.NewCount)
	assert.Zero(t, summary.Result.RemovedCount)

	products, err := f.db.LoadActiveProducts(context.Background(), f.id)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotNil(t, products[0].Price)
	assert.InDelta(t, 24.99, *products[0].Price, 0.0001)
	require.Len(t, products[0].PriceHistory, 2)
	assert.InDelta(t, 29.99, products[0].PriceHistory[0].Price, 0.0001)
	assert.InDelta(t, 24.99, products[0].PriceHistory[1].Price, 0.0001)

	require.Len(t, summary.Alerts, 1)
	alert := summary.Alerts[0]
	assert.Equal(t, models.AlertPriceDrop, alert.Type)
	assert.Equal(t, models.SeverityMedium, alert.Severity)
	assert.InDelta(t, -16.67, alert.Data["change_percent"].(float64), 0.01)
}

func TestRunScanUnchangedCatalog(t *testing.T) {
	f := newFixture(t)
	f.scan(t, complete(record("widget", "Widget", price(29.99))))

	summary := f.scan(t, complete(record("widget", "Widget", price(29.995))))

	assert.True(t, summary.Diff.Empty())
	assert.Empty(t, summary.Alerts)

	products, err := f.db.LoadActiveProducts(context.Background(), f.id)
	require.NoError(t, err)
	assert.Len(t, products[0].PriceHistory, 1)
	require.NotNil(t, products[0].Price)
	assert.InDelta(t, 29.99, *products[0].Price, 1e-9)
}

func TestRunScanSubCentStepsAccumulate(t *testing.T) {
	f := newFixture(t)
	f.scan(t, complete(record("widget", "Widget", price(29.99))))

	for _, p := range []float64{29.993, 29.996} {
		summary := f.scan(t, complete(record("widget", "Widget", price(p))))
		assert.Zero(t, summary.Result.PriceChangedCount)
	}

	// contra o preço salvo (29.99) a variação já passa da tolerância
	summary := f.scan(t, complete(record("widget", "Widget", price(30.005))))
	assert.Equal(t, 1, summary.Result.PriceChangedCount)

	products, err := f.db.LoadActiveProducts(context.Background(), f.id)
	require.NoError(t, err)
	require.Len(t, products[0].PriceHistory, 2)
	assert.InDelta(t, 30.005, products[0].PriceHistory[1].Price, 1e-9)
	assert.InDelta(t, 30.005, *products[0].Price, 1e-9)
}

func TestRunScanNewAndRemoved(t *testing.T) {
	f := newFixture(t)
	f.scan(t, complete(record("a", "A", price(10)), record("b", "B", price(20))))

	summary := f.scan(t, complete(record("a", "A", price(10)), record("c", "C", price(30))))

	assert.Equal(t, 1, summary.Result.NewCount)
	assert.Equal(t, 1, summary.Result.RemovedCount)

	products, err := f.db.LoadActiveProducts(context.Background(), f.id)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "A", products[0].Title)
	assert.Equal(t, "C", products[1].Title)

	c, err := f.db.GetCompetitor(context.Background(), f.id)
	require.NoError(t, err)
	assert.Equal(t, 2, c.ProductCount)
}

func TestRunScanReactivatesRemovedProduct(t *testing.T) {
	f := newFixture(t)
	f.scan(t, complete(record("a", "A", price(10))))
	f.scan(t, complete())

	summary := f.scan(t, complete(record("a", "A", price(8))))
	assert.Equal(t, 1, summary.Result.NewCount)

	products, err := f.db.LoadActiveProducts(context.Background(), f.id)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Len(t, products[0].PriceHistory, 2)
	assert.InDelta(t, 8, products[0].PriceHistory[1].Price, 0.0001)
}

func TestRunScanIncompleteCrawlSkipsRemovals(t *testing.T) {
	f := newFixture(t)
	f.scan(t, complete(record("a", "A", price(10)), record("b", "B", price(20))))

	summary := f.scan(t, scraper.CrawlResult{
		Products: []models.ProductRecord{record("c", "C", price(5))},
		Complete: false,
		Strategy: "catalog_api",
		Err:      errors.New("status 503"),
	})

	assert.Equal(t, models.ScanPartial, summary.Result.Status)
	assert.Equal(t, "status 503", summary.Result.Error)
	assert.Equal(t, 1, summary.Result.NewCount)
	assert.Zero(t, summary.Result.RemovedCount)

	c, err := f.db.GetCompetitor(context.Background(), f.id)
	require.NoError(t, err)
	assert.Equal(t, 3, c.ProductCount)
}

func TestRunScanFailedCrawlKeepsCatalog(t *testing.T) {
	f := newFixture(t)
	f.scan(t, complete(record("a", "A", price(10))))

	summary := f.scan(t, scraper.CrawlResult{Complete: false, Err: context.DeadlineExceeded})

	assert.Equal(t, models.ScanPartial, summary.Result.Status)
	assert.True(t, summary.Diff.Empty())

	products, err := f.db.LoadActiveProducts(context.Background(), f.id)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestRunScanCompetitorNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.monitor.RunScan(context.Background(), 999)

	assert.ErrorIs(t, err, monitor.ErrCompetitorNotFound)
	assert.Zero(t, f.crawler.calls)
}

func TestRunScanAlreadyScanning(t *testing.T) {
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close()
	id, err := db.AddCompetitor(context.Background(), models.Competitor{Name: "Loja", URL: storeURL})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	crawler := crawlFunc(func(context.Context, string) scraper.CrawlResult {
		close(entered)
		<-release
		return complete(record("a", "A", price(10)))
	})
	m := monitor.New(monitor.NewStore(db), crawler, nil, lease.NewLocalLocker(),
		monitor.Config{ScanTimeout: 5 * time.Second}, nil, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := m.RunScan(context.Background(), id)
		done <- err
	}()
	<-entered

	_, err = m.RunScan(context.Background(), id)
	assert.ErrorIs(t, err, monitor.ErrAlreadyScanning)

	close(release)
	require.NoError(t, <-done)

	products, err := db.LoadActiveProducts(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Len(t, products[0].PriceHistory, 1)
}

func TestRunScanTimeoutBoundsCrawl(t *testing.T) {
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close()
	id, err := db.AddCompetitor(context.Background(), models.Competitor{Name: "Loja", URL: storeURL})
	require.NoError(t, err)

	crawler := crawlFunc(func(ctx context.Context, _ string) scraper.CrawlResult {
		<-ctx.Done()
		return scraper.CrawlResult{Complete: false, Err: ctx.Err()}
	})
	m := monitor.New(monitor.NewStore(db), crawler, nil, nil,
		monitor.Config{ScanTimeout: 50 * time.Millisecond}, nil, zap.NewNop())

	summary, err := m.RunScan(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ScanPartial, summary.Result.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), summary.Result.Error)
}

// failingStore simula falha de escrita na transação do scan
type failingStore struct {
	monitor.Store
	saved []models.ScanResult
}

func (s *failingStore) WithTx(context.Context, func(tx monitor.Tx) error) error {
	return errors.New("disk full")
}

func (s *failingStore) SaveScanResult(_ context.Context, r models.ScanResult) (int64, error) {
	s.saved = append(s.saved, r)
	return int64(len(s.saved)), nil
}

func TestRunScanStorageFailure(t *testing.T) {
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close()
	id, err := db.AddCompetitor(context.Background(), models.Competitor{Name: "Loja", URL: storeURL})
	require.NoError(t, err)

	store := &failingStore{Store: monitor.NewStore(db)}
	notifier := &recordingNotifier{}
	m := monitor.New(store, staticCrawler(complete(record("a", "A", price(10)))), notifier, nil,
		monitor.Config{}, nil, zap.NewNop())

	summary, err := m.RunScan(context.Background(), id)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, summary)
	assert.Equal(t, models.ScanError, summary.State)
	require.Len(t, store.saved, 1)
	assert.Equal(t, models.ScanFailed, store.saved[0].Status)
	assert.Zero(t, store.saved[0].NewCount)
	assert.Empty(t, notifier.all())

	products, err := db.LoadActiveProducts(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestRunScanLeaseReleasedAfterFailure(t *testing.T) {
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close()
	id, err := db.AddCompetitor(context.Background(), models.Competitor{Name: "Loja", URL: storeURL})
	require.NoError(t, err)

	locker := lease.NewLocalLocker()
	store := &failingStore{Store: monitor.NewStore(db)}
	m := monitor.New(store, staticCrawler(complete()), nil, locker, monitor.Config{}, nil, zap.NewNop())

	_, err = m.RunScan(context.Background(), id)
	require.Error(t, err)

	l, err := locker.Acquire(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, l.Release(context.Background()))
}

func TestScanAll(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	var ids []int64
	for _, name := range []string{"A", "B", "C"} {
		id, err := db.AddCompetitor(ctx, models.Competitor{Name: name, URL: storeURL + "/" + name})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, db.SetCompetitorStatus(ctx, ids[2], models.CompetitorPaused))

	m := monitor.New(monitor.NewStore(db), staticCrawler(complete(record("x", "X", price(1)))), nil, nil,
		monitor.Config{Workers: 2}, nil, zap.NewNop())

	result, err := m.ScanAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Zero(t, result.Failed)

	paused, err := db.GetCompetitor(ctx, ids[2])
	require.NoError(t, err)
	assert.Nil(t, paused.LastScannedAt)
}
