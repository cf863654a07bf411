package goldLedgerService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KotFed0t/gold_ledger_bot/config"
	"github.com/KotFed0t/gold_ledger_bot/data/cache"
	"github.com/KotFed0t/gold_ledger_bot/data/ledgerstore"
	"github.com/KotFed0t/gold_ledger_bot/data/repository"
	"github.com/KotFed0t/gold_ledger_bot/internal/model"
	"github.com/KotFed0t/gold_ledger_bot/internal/service"
	"github.com/shopspring/decimal"
)

const chatID int64 = 100500

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func strPtr(s string) *string {
	return &s
}

func day(n int) time.Time {
	return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC)
}

type fakeRepo struct {
	mu      sync.Mutex
	ledgers map[int64][]model.Lot
	loadErr error
	saved   map[int64][]model.Lot
	saveCh  chan int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		ledgers: make(map[int64][]model.Lot),
		saved:   make(map[int64][]model.Lot),
		saveCh:  make(chan int64, 16),
	}
}

func (r *fakeRepo) SaveLedger(_ context.Context, chatID int64, lots []model.Lot) error {
	r.mu.Lock()
	r.saved[chatID] = lots
	r.mu.Unlock()

	select {
	case r.saveCh <- chatID:
	default:
	}

	return nil
}

func (r *fakeRepo) LoadLedger(_ context.Context, chatID int64) ([]model.Lot, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}

	lots, ok := r.ledgers[chatID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	return lots, nil
}

func (r *fakeRepo) GetChatIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(r.ledgers))
	for id := range r.ledgers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	return tFunc(ctx)
}

type fakeCache struct {
	mu    sync.Mutex
	price *model.GoldPrice
}

func (c *fakeCache) GetGoldPrice(_ context.Context) (model.GoldPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.price == nil {
		return model.GoldPrice{}, cache.ErrNotFound
	}

	return *c.price, nil
}

func (c *fakeCache) SetGoldPrice(_ context.Context, price model.GoldPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.price = &price

	return nil
}

type fakeGoldApi struct {
	price model.GoldPrice
	err   error
}

func (a *fakeGoldApi) GetGoldPrice(_ context.Context) (model.GoldPrice, error) {
	if a.err != nil {
		return model.GoldPrice{}, a.err
	}
	return a.price, nil
}

type fakeReportGen struct {
	size int
	err  error
}

func (g *fakeReportGen) Generate(_ context.Context, _ model.LedgerReport) ([]byte, string, error) {
	if g.err != nil {
		return nil, "", g.err
	}
	return make([]byte, g.size), ".xlsx", nil
}

type fakeCloudStorage struct {
	uploads         []string
	deleteOldCalled bool
}

func (s *fakeCloudStorage) UploadFile(_ context.Context, _ io.Reader, filename string) (string, error) {
	s.uploads = append(s.uploads, filename)
	return "https://drive.google.com/uc?export=download&id=test", nil
}

func (s *fakeCloudStorage) DeleteOldFiles(_ context.Context) error {
	s.deleteOldCalled = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		ItemsPerPage:  5,
		BatchFeeSplit: "even",
		Telegram:      config.Telegram{FileLimitInBytes: 1 << 20},
	}
}

func newTestService(t *testing.T) (*GoldLedgerService, *fakeRepo, *fakeCloudStorage) {
	t.Helper()

	repo := newFakeRepo()
	storage := &fakeCloudStorage{}
	goldApi := &fakeGoldApi{price: model.GoldPrice{PricePerGram: d("7000"), UpdatedAt: day(20)}}
	srv := New(testConfig(), ledgerstore.NewStore(), repo, &fakeCache{}, goldApi, &fakeReportGen{size: 64}, storage)

	return srv, repo, storage
}

func TestAddLotAndGetPortfolioPage(t *testing.T) {
	srv, _, _ := newTestService(t)
	ctx := context.Background()

	lotA, err := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil)
	if err != nil {
		t.Fatalf("AddLot: %v", err)
	}
	if lotA.ID == "" {
		t.Fatal("expected generated lot id")
	}

	if _, err := srv.AddLot(ctx, chatID, d("5"), d("5200"), day(3), strPtr("слиток 5г")); err != nil {
		t.Fatalf("AddLot: %v", err)
	}

	page, err := srv.GetPortfolioPage(ctx, chatID, 0, nil)
	if err != nil {
		t.Fatalf("GetPortfolioPage: %v", err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if !page.Items[0].Lot.BoughtAt.Equal(day(3)) {
		t.Errorf("expected newest lot first, got boughtAt %v", page.Items[0].Lot.BoughtAt)
	}
	if got := page.ActiveGrams.String(); got != "15" {
		t.Errorf("ActiveGrams = %s, want 15", got)
	}
	if got := page.TotalProfit.String(); got != "0" {
		t.Errorf("TotalProfit = %s, want 0", got)
	}
	if page.GoldPrice == nil || page.ActiveValue == nil {
		t.Fatal("expected gold price enrichment")
	}
	if got := page.ActiveValue.String(); got != "105000" {
		t.Errorf("ActiveValue = %s, want 105000", got)
	}
}

func TestEnsureLedgerFromRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("loads saved ledger on first access", func(t *testing.T) {
		srv, repo, _ := newTestService(t)
		repo.ledgers[chatID] = []model.Lot{
			{ID: "a", Grams: d("10"), PricePerGram: d("5000"), BoughtAt: day(1)},
		}

		page, err := srv.GetPortfolioPage(ctx, chatID, 0, nil)
		if err != nil {
			t.Fatalf("GetPortfolioPage: %v", err)
		}
		if len(page.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(page.Items))
		}
		if got := page.ActiveGrams.String(); got != "10" {
			t.Errorf("ActiveGrams = %s, want 10", got)
		}
	})

	t.Run("malformed payload starts empty", func(t *testing.T) {
		srv, repo, _ := newTestService(t)
		repo.loadErr = fmt.Errorf("%w: unexpected end of JSON input", repository.ErrMalformedLedger)

		page, err := srv.GetPortfolioPage(ctx, chatID, 0, nil)
		if err != nil {
			t.Fatalf("GetPortfolioPage: %v", err)
		}
		if len(page.Items) != 0 {
			t.Fatalf("expected empty portfolio, got %d items", len(page.Items))
		}
	})

	t.Run("load error is returned", func(t *testing.T) {
		srv, repo, _ := newTestService(t)
		repo.loadErr = errors.New("connection refused")

		if _, err := srv.GetPortfolioPage(ctx, chatID, 0, nil); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestAddSale(t *testing.T) {
	ctx := context.Background()

	t.Run("overdraft rejected", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil)

		_, err := srv.AddSale(ctx, chatID, lot.ID, dp("11"), d("5500"), d("0"), day(5), nil)
		if !errors.Is(err, service.ErrOverdraft) {
			t.Fatalf("expected ErrOverdraft, got %v", err)
		}
	})

	t.Run("nil grams sells whole remainder", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil)

		sale, err := srv.AddSale(ctx, chatID, lot.ID, nil, d("5500"), d("20"), day(5), nil)
		if err != nil {
			t.Fatalf("AddSale: %v", err)
		}
		if got := sale.Grams.String(); got != "10" {
			t.Errorf("sale grams = %s, want 10", got)
		}

		details, err := srv.GetLotDetails(ctx, chatID, lot.ID)
		if err != nil {
			t.Fatalf("GetLotDetails: %v", err)
		}
		if !details.FullySold {
			t.Error("expected lot fully sold")
		}
		if got := details.Profit.String(); got != "4980" {
			t.Errorf("profit = %s, want 4980", got)
		}
	})

	t.Run("partial sale leaves remainder", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil)

		if _, err := srv.AddSale(ctx, chatID, lot.ID, dp("4"), d("5500"), d("0"), day(5), nil); err != nil {
			t.Fatalf("AddSale: %v", err)
		}

		details, _ := srv.GetLotDetails(ctx, chatID, lot.ID)
		if got := details.Remaining.String(); got != "6" {
			t.Errorf("remaining = %s, want 6", got)
		}
		if got := details.Profit.String(); got != "2000" {
			t.Errorf("profit = %s, want 2000", got)
		}
	})

	t.Run("missing lot", func(t *testing.T) {
		srv, _, _ := newTestService(t)

		_, err := srv.AddSale(ctx, chatID, "nope", dp("1"), d("5500"), d("0"), day(5), nil)
		if !errors.Is(err, service.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEditAndDeleteSale(t *testing.T) {
	ctx := context.Background()

	t.Run("edit excludes own volume from overdraft check", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil)
		sale, _ := srv.AddSale(ctx, chatID, lot.ID, dp("6"), d("5500"), d("0"), day(5), nil)

		if _, err := srv.EditSale(ctx, chatID, lot.ID, sale.ID, dp("10"), d("5600"), d("0"), day(6), nil); err != nil {
			t.Fatalf("EditSale to full lot volume: %v", err)
		}

		_, err := srv.EditSale(ctx, chatID, lot.ID, sale.ID, dp("11"), d("5600"), d("0"), day(6), nil)
		if !errors.Is(err, service.ErrOverdraft) {
			t.Fatalf("expected ErrOverdraft, got %v", err)
		}
	})

	t.Run("nil grams resolves against remainder plus own volume", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil)
		sale, _ := srv.AddSale(ctx, chatID, lot.ID, dp("6"), d("5500"), d("0"), day(5), nil)

		edited, err := srv.EditSale(ctx, chatID, lot.ID, sale.ID, nil, d("5600"), d("0"), day(6), nil)
		if err != nil {
			t.Fatalf("EditSale: %v", err)
		}
		if got := edited.Grams.String(); got != "10" {
			t.Errorf("edited grams = %s, want 10", got)
		}
	})

	t.Run("delete restores remainder", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil)
		sale, _ := srv.AddSale(ctx, chatID, lot.ID, nil, d("5500"), d("0"), day(5), nil)

		if err := srv.DeleteSale(ctx, chatID, lot.ID, sale.ID); err != nil {
			t.Fatalf("DeleteSale: %v", err)
		}

		details, _ := srv.GetLotDetails(ctx, chatID, lot.ID)
		if got := details.Remaining.String(); got != "10" {
			t.Errorf("remaining = %s, want 10", got)
		}
	})

	t.Run("unknown sale", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil)

		if err := srv.DeleteSale(ctx, chatID, lot.ID, "nope"); !errors.Is(err, service.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBatchSaleLifecycle(t *testing.T) {
	ctx := context.Background()
	srv, _, _ := newTestService(t)

	lotA, _ := srv.AddLot(ctx, chatID, d("3"), d("500"), day(1), nil)
	lotB, _ := srv.AddLot(ctx, chatID, d("7"), d("520"), day(2), nil)

	view, err := srv.CreateBatchSale(ctx, chatID, []string{lotA.ID, lotB.ID}, d("600"), d("10"), day(15), strPtr("продано в банке"))
	if err != nil {
		t.Fatalf("CreateBatchSale: %v", err)
	}

	if got := view.TotalGrams.String(); got != "10" {
		t.Errorf("TotalGrams = %s, want 10", got)
	}
	if got := view.AvgBuyPrice.String(); got != "514" {
		t.Errorf("AvgBuyPrice = %s, want 514", got)
	}
	if got := view.TotalProfit.String(); got != "850" {
		t.Errorf("TotalProfit = %s, want 850", got)
	}
	if got := view.TotalFee.String(); got != "10" {
		t.Errorf("TotalFee = %s, want 10", got)
	}
	if !view.FullySold {
		t.Error("expected batch fully sold")
	}

	// продажи участников несут общий batchID и свои uuid
	detailsA, _ := srv.GetLotDetails(ctx, chatID, lotA.ID)
	if len(detailsA.Sales) != 1 {
		t.Fatalf("expected 1 sale on lotA, got %d", len(detailsA.Sales))
	}
	saleA := detailsA.Sales[0]
	if saleA.ID == "" || saleA.BatchID == nil || *saleA.BatchID != view.BatchID {
		t.Errorf("unexpected batch sale: id=%q batchID=%v", saleA.ID, saleA.BatchID)
	}

	// пакетную продажу нельзя править или удалять по одной
	if _, err := srv.EditSale(ctx, chatID, lotA.ID, saleA.ID, dp("1"), d("600"), d("0"), day(16), nil); !errors.Is(err, service.ErrSaleInBatch) {
		t.Fatalf("expected ErrSaleInBatch on edit, got %v", err)
	}
	if err := srv.DeleteSale(ctx, chatID, lotA.ID, saleA.ID); !errors.Is(err, service.ErrSaleInBatch) {
		t.Fatalf("expected ErrSaleInBatch on delete, got %v", err)
	}

	// расширение лота возвращает его в актив, но второй пакет поверх него невозможен
	if _, err := srv.EditLot(ctx, chatID, lotA.ID, d("5"), d("500"), day(1), nil); err != nil {
		t.Fatalf("EditLot: %v", err)
	}
	lotC, _ := srv.AddLot(ctx, chatID, d("2"), d("500"), day(3), nil)
	if _, err := srv.CreateBatchSale(ctx, chatID, []string{lotC.ID, lotA.ID}, d("600"), d("0"), day(16), nil); !errors.Is(err, service.ErrLotInOtherBatch) {
		t.Fatalf("expected ErrLotInOtherBatch, got %v", err)
	}

	// удаление пакета возвращает лоты в актив
	if err := srv.DeleteBatch(ctx, chatID, view.BatchID); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if _, err := srv.GetBatchDetails(ctx, chatID, view.BatchID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after batch delete, got %v", err)
	}
	detailsB, _ := srv.GetLotDetails(ctx, chatID, lotB.ID)
	if got := detailsB.Remaining.String(); got != "7" {
		t.Errorf("lotB remaining after batch delete = %s, want 7", got)
	}

	// удаление пакета вместе с лотами убирает лоты целиком
	view2, err := srv.CreateBatchSale(ctx, chatID, []string{lotA.ID, lotB.ID}, d("610"), d("0"), day(17), nil)
	if err != nil {
		t.Fatalf("CreateBatchSale: %v", err)
	}
	if err := srv.DeleteBatchWithLots(ctx, chatID, view2.BatchID); err != nil {
		t.Fatalf("DeleteBatchWithLots: %v", err)
	}
	if _, err := srv.GetLotDetails(ctx, chatID, lotA.ID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected lotA removed, got %v", err)
	}
	if _, err := srv.GetLotDetails(ctx, chatID, lotC.ID); err != nil {
		t.Fatalf("lotC must survive, got %v", err)
	}
}

func TestCreateBatchSaleValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty selection", func(t *testing.T) {
		srv, _, _ := newTestService(t)

		if _, err := srv.CreateBatchSale(ctx, chatID, nil, d("600"), d("0"), day(15), nil); !errors.Is(err, service.ErrEmptySelection) {
			t.Fatalf("expected ErrEmptySelection, got %v", err)
		}
	})

	t.Run("stale ids only", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		if _, err := srv.AddLot(ctx, chatID, d("1"), d("500"), day(1), nil); err != nil {
			t.Fatalf("AddLot: %v", err)
		}

		if _, err := srv.CreateBatchSale(ctx, chatID, []string{"nope"}, d("600"), d("0"), day(15), nil); !errors.Is(err, service.ErrEmptySelection) {
			t.Fatalf("expected ErrEmptySelection, got %v", err)
		}
	})

	t.Run("fully sold selection", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("2"), d("500"), day(1), nil)
		if _, err := srv.AddSale(ctx, chatID, lot.ID, nil, d("600"), d("0"), day(5), nil); err != nil {
			t.Fatalf("AddSale: %v", err)
		}

		if _, err := srv.CreateBatchSale(ctx, chatID, []string{lot.ID}, d("650"), d("0"), day(15), nil); !errors.Is(err, service.ErrNothingToSell) {
			t.Fatalf("expected ErrNothingToSell, got %v", err)
		}
	})
}

func TestGetPortfolioPagePagination(t *testing.T) {
	ctx := context.Background()
	srv, _, _ := newTestService(t)

	for i := 1; i <= 7; i++ {
		if _, err := srv.AddLot(ctx, chatID, d("1"), d("5000"), day(i), nil); err != nil {
			t.Fatalf("AddLot: %v", err)
		}
	}

	page, err := srv.GetPortfolioPage(ctx, chatID, 0, nil)
	if err != nil {
		t.Fatalf("GetPortfolioPage: %v", err)
	}
	if len(page.Items) != 5 || !page.HasNextPage || page.CurPage != 0 {
		t.Fatalf("page 0: items=%d hasNext=%v curPage=%d", len(page.Items), page.HasNextPage, page.CurPage)
	}
	if !page.Items[0].Lot.BoughtAt.Equal(day(7)) {
		t.Errorf("expected newest lot first, got %v", page.Items[0].Lot.BoughtAt)
	}

	page, err = srv.GetPortfolioPage(ctx, chatID, 1, nil)
	if err != nil {
		t.Fatalf("GetPortfolioPage: %v", err)
	}
	if len(page.Items) != 2 || page.HasNextPage || page.CurPage != 1 {
		t.Fatalf("page 1: items=%d hasNext=%v curPage=%d", len(page.Items), page.HasNextPage, page.CurPage)
	}

	// несуществующая страница откатывается на последнюю
	page, err = srv.GetPortfolioPage(ctx, chatID, 9, nil)
	if err != nil {
		t.Fatalf("GetPortfolioPage: %v", err)
	}
	if page.CurPage != 1 {
		t.Errorf("expected clamp to page 1, got %d", page.CurPage)
	}
}

func TestGetPortfolioPageSelection(t *testing.T) {
	ctx := context.Background()
	srv, _, _ := newTestService(t)

	lotA, _ := srv.AddLot(ctx, chatID, d("3"), d("500"), day(1), nil)
	lotB, _ := srv.AddLot(ctx, chatID, d("7"), d("520"), day(2), nil)
	if _, err := srv.AddSale(ctx, chatID, lotB.ID, nil, d("600"), d("0"), day(5), nil); err != nil {
		t.Fatalf("AddSale: %v", err)
	}

	page, err := srv.GetPortfolioPage(ctx, chatID, 0, []string{lotA.ID, lotB.ID, "stale"})
	if err != nil {
		t.Fatalf("GetPortfolioPage: %v", err)
	}

	// проданный и устаревший лоты не попадают в выбранные
	if page.SelectedCount != 1 {
		t.Errorf("SelectedCount = %d, want 1", page.SelectedCount)
	}
	if got := page.SelectedGrams.String(); got != "3" {
		t.Errorf("SelectedGrams = %s, want 3", got)
	}

	for _, item := range page.Items {
		if item.Lot == nil {
			continue
		}
		switch item.Lot.ID {
		case lotA.ID:
			if !item.Lot.Selected || !item.Lot.Selectable {
				t.Error("lotA must be selected and selectable")
			}
		case lotB.ID:
			if item.Lot.Selected || item.Lot.Selectable {
				t.Error("sold lotB must not be selectable")
			}
		}
	}
}

func TestExportLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("empty ledger", func(t *testing.T) {
		srv, _, _ := newTestService(t)

		_, _, _, err := srv.ExportLedger(ctx, chatID)
		if !errors.Is(err, service.ErrEmptyLedger) {
			t.Fatalf("expected ErrEmptyLedger, got %v", err)
		}
	})

	t.Run("small file returned as bytes", func(t *testing.T) {
		srv, _, storage := newTestService(t)
		if _, err := srv.AddLot(ctx, chatID, d("10"), d("5000"), day(1), nil); err != nil {
			t.Fatalf("AddLot: %v", err)
		}

		fileBytes, filename, link, err := srv.ExportLedger(ctx, chatID)
		if err != nil {
			t.Fatalf("ExportLedger: %v", err)
		}
		if len(fileBytes) != 64 {
			t.Errorf("expected 64 bytes, got %d", len(fileBytes))
		}
		if !strings.HasPrefix(filename, "gold_ledger_100500_") || !strings.HasSuffix(filename, ".xlsx") {
			t.Errorf("unexpected filename %q", filename)
		}
		if link != "" {
			t.Errorf("expected no link, got %q", link)
		}
		if len(storage.uploads) != 0 {
			t.Errorf("expected no uploads, got %v", storage.uploads)
		}
	})

	t.Run("big file goes to cloud", func(t *testing.T) {
		repo := newFakeRepo()
		storage := &fakeCloudStorage{}
		srv := New(testConfig(), ledgerstore.NewStore(), repo, &fakeCache{}, &fakeGoldApi{}, &fakeReportGen{size: 2 << 20}, storage)
		if _, err := srv.AddLot(context.Background(), chatID, d("10"), d("5000"), day(1), nil); err != nil {
			t.Fatalf("AddLot: %v", err)
		}

		fileBytes, _, link, err := srv.ExportLedger(context.Background(), chatID)
		if err != nil {
			t.Fatalf("ExportLedger: %v", err)
		}
		if fileBytes != nil {
			t.Error("expected no bytes for oversized file")
		}
		if link == "" {
			t.Error("expected download link")
		}
		if len(storage.uploads) != 1 {
			t.Errorf("expected 1 upload, got %v", storage.uploads)
		}
	})
}

func TestGetProfitHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("empty ledger has no points", func(t *testing.T) {
		srv, _, _ := newTestService(t)

		points, err := srv.GetProfitHistory(ctx, chatID)
		if err != nil {
			t.Fatalf("GetProfitHistory: %v", err)
		}
		if len(points) != 0 {
			t.Fatalf("expected no points, got %d", len(points))
		}
	})

	t.Run("points sorted by sale date", func(t *testing.T) {
		srv, _, _ := newTestService(t)
		lot, _ := srv.AddLot(ctx, chatID, d("10"), d("500"), day(1), nil)

		// поздняя продажа записана первой, порядок должен выровняться по дате
		if _, err := srv.AddSale(ctx, chatID, lot.ID, dp("2"), d("600"), d("0"), day(10), nil); err != nil {
			t.Fatalf("AddSale: %v", err)
		}
		if _, err := srv.AddSale(ctx, chatID, lot.ID, dp("3"), d("550"), d("0"), day(5), nil); err != nil {
			t.Fatalf("AddSale: %v", err)
		}

		points, err := srv.GetProfitHistory(ctx, chatID)
		if err != nil {
			t.Fatalf("GetProfitHistory: %v", err)
		}
		if len(points) != 2 {
			t.Fatalf("expected 2 points, got %d", len(points))
		}
		if !points[0].SoldAt.Equal(day(5)) || !points[1].SoldAt.Equal(day(10)) {
			t.Errorf("points must ascend by date: %v, %v", points[0].SoldAt, points[1].SoldAt)
		}
		if got := points[0].Profit.String(); got != "150" {
			t.Errorf("first profit = %s, want 150", got)
		}
		if got := points[1].Profit.String(); got != "200" {
			t.Errorf("second profit = %s, want 200", got)
		}
	})
}

func TestBackupLedgers(t *testing.T) {
	ctx := context.Background()
	srv, repo, storage := newTestService(t)

	repo.ledgers[1] = []model.Lot{{ID: "a", Grams: d("10"), PricePerGram: d("5000"), BoughtAt: day(1)}}
	repo.ledgers[2] = []model.Lot{} // пустой реестр пропускается
	repo.ledgers[3] = []model.Lot{{ID: "b", Grams: d("5"), PricePerGram: d("5100"), BoughtAt: day(2)}}

	if err := srv.BackupLedgers(ctx); err != nil {
		t.Fatalf("BackupLedgers: %v", err)
	}

	if len(storage.uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %v", storage.uploads)
	}
	if !storage.deleteOldCalled {
		t.Error("expected DeleteOldFiles call")
	}
}

func TestFillGoldPriceCache(t *testing.T) {
	ctx := context.Background()

	t.Run("fills cache from api", func(t *testing.T) {
		repo := newFakeRepo()
		cacheFake := &fakeCache{}
		goldApi := &fakeGoldApi{price: model.GoldPrice{PricePerGram: d("7100"), UpdatedAt: day(20)}}
		srv := New(testConfig(), ledgerstore.NewStore(), repo, cacheFake, goldApi, &fakeReportGen{}, &fakeCloudStorage{})

		if err := srv.FillGoldPriceCache(ctx); err != nil {
			t.Fatalf("FillGoldPriceCache: %v", err)
		}

		price, err := cacheFake.GetGoldPrice(ctx)
		if err != nil {
			t.Fatalf("cache must be filled: %v", err)
		}
		if got := price.PricePerGram.String(); got != "7100" {
			t.Errorf("cached price = %s, want 7100", got)
		}
	})

	t.Run("api error is returned", func(t *testing.T) {
		repo := newFakeRepo()
		goldApi := &fakeGoldApi{err: errors.New("rate limited")}
		srv := New(testConfig(), ledgerstore.NewStore(), repo, &fakeCache{}, goldApi, &fakeReportGen{}, &fakeCloudStorage{})

		if err := srv.FillGoldPriceCache(ctx); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestPersistLedgerAsync(t *testing.T) {
	srv, repo, _ := newTestService(t)

	if _, err := srv.AddLot(context.Background(), chatID, d("10"), d("5000"), day(1), nil); err != nil {
		t.Fatalf("AddLot: %v", err)
	}

	select {
	case id := <-repo.saveCh:
		repo.mu.Lock()
		saved := repo.saved[id]
		repo.mu.Unlock()
		if len(saved) != 1 {
			t.Fatalf("expected 1 lot persisted, got %d", len(saved))
		}
	case <-time.After(time.Second):
		t.Fatal("ledger was not persisted")
	}
}
