package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kandalvillage/posflow/internal/catalog"
	"github.com/kandalvillage/posflow/internal/idempotency"
	"github.com/kandalvillage/posflow/internal/orders"
	"github.com/kandalvillage/posflow/internal/pricing"
	"github.com/kandalvillage/posflow/internal/store"
)

type fakeStore struct {
	mu          sync.Mutex
	order       *orders.Order
	products    map[string]*catalog.Product
	loadErr     error
	updateErr   error
	rowErr      error
	patches     []store.OrderPatch
	patchDocs   []string
	rowStatuses map[string]orders.RowStatus
}

func (f *fakeStore) LoadOrder(ctx context.Context, docID string) (*orders.Order, map[string]*catalog.Product, error) {
	if f.loadErr != nil {
		return nil, nil, f.loadErr
	}
	if f.order == nil || f.order.DocumentID != docID {
		return nil, nil, nil
	}
	cp := *f.order
	return &cp, f.products, nil
}

func (f *fakeStore) UpdateOrder(ctx context.Context, docID string, patch store.OrderPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.patches = append(f.patches, patch)
	f.patchDocs = append(f.patchDocs, docID)
	return nil
}

func (f *fakeStore) UpdateOrderRowStatus(ctx context.Context, rowDocID string, status orders.RowStatus, updatedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rowErr != nil {
		return f.rowErr
	}
	if f.rowStatuses == nil {
		f.rowStatuses = map[string]orders.RowStatus{}
	}
	f.rowStatuses[rowDocID] = status
	return nil
}

type fakeIdemp struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record
	failed  map[string]string
}

func newFakeIdemp() *fakeIdemp {
	return &fakeIdemp{records: map[string]*idempotency.Record{}, failed: map[string]string{}}
}

func (f *fakeIdemp) CreateIfNotExists(ctx context.Context, key, orderDocID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	f.records[key] = &idempotency.Record{
		IdempotencyKey: key,
		Status:         idempotency.StatusInProgress,
		OrderDocID:     orderDocID,
	}
	return true, nil
}

func (f *fakeIdemp) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeIdemp) MarkDone(ctx context.Context, key, receipt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[key]
	rec.Status = idempotency.StatusDone
	rec.Receipt = receipt
	return nil
}

func (f *fakeIdemp) MarkFailed(ctx context.Context, key, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[key]; ok {
		rec.Status = idempotency.StatusFailed
		rec.Note = note
	}
	f.failed[key] = note
	return nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	methods []string
	amounts []float64
}

func (f *fakeMetrics) RecordPayment(ctx context.Context, method string, amountUSD float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods = append(f.methods, method)
	f.amounts = append(f.amounts, amountUSD)
	return nil
}

type staticNamer map[string]string

func (s staticNamer) Name(ctx context.Context, docID string) (string, error) {
	return s[docID], nil
}

func testOrder() (*orders.Order, map[string]*catalog.Product) {
	order := &orders.Order{
		DocumentID:  "order-1",
		OrderStatus: orders.OrderServed,
		Rows: []orders.OrderRow{
			{DocumentID: "row-1", Quantity: 1, ProductDocID: "prod-1", Status: orders.RowServed},
			{DocumentID: "row-2", Quantity: 2, ProductDocID: "prod-2", Status: orders.RowServed},
			{DocumentID: "row-3", Quantity: 1, ProductDocID: "prod-1", Status: orders.RowCancelled},
		},
	}
	products := map[string]*catalog.Product{
		"prod-1": {DocumentID: "prod-1", Price: 10, Vat: 0},
		"prod-2": {DocumentID: "prod-2", Price: 5, Vat: 0},
	}
	return order, products
}

func newTestOrchestrator(fs *fakeStore, idemp IdempotencyStore, m Metrics) *Orchestrator {
	calc := pricing.NewCalculator(staticNamer{}, decimal.Decimal{})
	o := NewOrchestrator(fs, calc, idemp, m)
	o.nowFunc = func() time.Time {
		return time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)
	}
	return o
}

func TestPay_HappyPath(t *testing.T) {
	order, products := testOrder()
	fs := &fakeStore{order: order, products: products}
	idemp := newFakeIdemp()
	m := &fakeMetrics{}
	orch := newTestOrchestrator(fs, idemp, m)

	receipt, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "key-1", "sokha")
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}

	// 10 + 2x5 = 20, cancelled row excluded
	if receipt.RefinedUSD != "20.00" {
		t.Errorf("refined usd = %s, want 20.00", receipt.RefinedUSD)
	}
	if receipt.RefinedRiel != "80000" {
		t.Errorf("refined riel = %s, want 80000", receipt.RefinedRiel)
	}
	if receipt.DiscountSummary != "No discounts applied" {
		t.Errorf("summary = %q", receipt.DiscountSummary)
	}
	if receipt.Replayed {
		t.Errorf("fresh checkout must not be marked replayed")
	}

	if len(fs.patches) != 1 {
		t.Fatalf("expected 1 order patch, got %d", len(fs.patches))
	}
	p := fs.patches[0]
	if *p.OrderStatus != orders.OrderPaid {
		t.Errorf("patched status = %s", *p.OrderStatus)
	}
	if *p.PaidAmount != 20.0 {
		t.Errorf("paid amount = %v", *p.PaidAmount)
	}
	if *p.PaymentMethod != "QR" {
		t.Errorf("payment method = %s", *p.PaymentMethod)
	}
	if p.PaymentDaytime == nil || !p.PaymentDaytime.Equal(time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)) {
		t.Errorf("payment daytime = %v", p.PaymentDaytime)
	}
	if *p.ProcessedByUserName != "sokha" {
		t.Errorf("processed by = %s", *p.ProcessedByUserName)
	}

	if fs.rowStatuses["row-1"] != orders.RowPaid || fs.rowStatuses["row-2"] != orders.RowPaid {
		t.Errorf("rows not settled: %v", fs.rowStatuses)
	}
	if _, touched := fs.rowStatuses["row-3"]; touched {
		t.Errorf("cancelled row must not be touched")
	}

	rec := idemp.records["key-1"]
	if rec == nil || rec.Status != idempotency.StatusDone {
		t.Fatalf("idempotency record not marked done: %+v", rec)
	}
	var stored Receipt
	if err := json.Unmarshal([]byte(rec.Receipt), &stored); err != nil {
		t.Fatalf("stored receipt: %v", err)
	}
	if stored.RefinedUSD != "20.00" {
		t.Errorf("stored receipt refined usd = %s", stored.RefinedUSD)
	}

	if len(m.methods) != 1 || m.methods[0] != "QR" || m.amounts[0] != 20.0 {
		t.Errorf("metric not recorded: %v %v", m.methods, m.amounts)
	}
}

func TestPay_ReplaysCompletedCheckout(t *testing.T) {
	order, products := testOrder()
	fs := &fakeStore{order: order, products: products}
	idemp := newFakeIdemp()
	idemp.records["key-1"] = &idempotency.Record{
		IdempotencyKey: "key-1",
		Status:         idempotency.StatusDone,
		Receipt:        `{"orderDocId":"order-1","refinedUSD":"20.00"}`,
	}
	orch := newTestOrchestrator(fs, idemp, nil)

	receipt, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "key-1", "")
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if !receipt.Replayed {
		t.Errorf("expected replayed receipt")
	}
	if receipt.RefinedUSD != "20.00" {
		t.Errorf("refined usd = %s", receipt.RefinedUSD)
	}
	if len(fs.patches) != 0 {
		t.Errorf("replay must not write to the remote store")
	}
}

func TestPay_InProgressRejected(t *testing.T) {
	order, products := testOrder()
	fs := &fakeStore{order: order, products: products}
	idemp := newFakeIdemp()
	idemp.records["key-1"] = &idempotency.Record{
		IdempotencyKey: "key-1",
		Status:         idempotency.StatusInProgress,
	}
	orch := newTestOrchestrator(fs, idemp, nil)

	_, err := orch.Pay(context.Background(), "order-1", orders.PayCash, pricing.DiscountSet{}, "key-1", "")
	if !errors.Is(err, ErrCheckoutInProgress) {
		t.Fatalf("err = %v, want ErrCheckoutInProgress", err)
	}
}

func TestPay_FailedAttemptIsRetryable(t *testing.T) {
	order, products := testOrder()
	fs := &fakeStore{order: order, products: products}
	idemp := newFakeIdemp()
	idemp.records["key-1"] = &idempotency.Record{
		IdempotencyKey: "key-1",
		Status:         idempotency.StatusFailed,
		Note:           "remote update failed",
	}
	orch := newTestOrchestrator(fs, idemp, nil)

	receipt, err := orch.Pay(context.Background(), "order-1", orders.PayCash, pricing.DiscountSet{}, "key-1", "")
	if err != nil {
		t.Fatalf("Pay after failed attempt: %v", err)
	}
	if receipt.Replayed {
		t.Errorf("retry after failure must run fresh")
	}
	if len(fs.patches) != 1 {
		t.Errorf("expected the retry to write the payment")
	}
}

func TestPay_AlreadyPaid(t *testing.T) {
	order, products := testOrder()
	order.OrderStatus = orders.OrderPaid
	fs := &fakeStore{order: order, products: products}
	orch := newTestOrchestrator(fs, nil, nil)

	_, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "", "")
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
}

func TestPay_MergedSourceRefusedAndReasserted(t *testing.T) {
	order, products := testOrder()
	order.OrderStatus = orders.OrderPending
	order.MergedToOderDocID = "order-2"
	fs := &fakeStore{order: order, products: products}
	orch := newTestOrchestrator(fs, nil, nil)

	_, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "", "")
	if !errors.Is(err, ErrOrderMerged) {
		t.Fatalf("err = %v, want ErrOrderMerged", err)
	}
	if len(fs.patches) != 1 || *fs.patches[0].OrderStatus != orders.OrderMerged {
		t.Errorf("expected merged status re-assertion, got %+v", fs.patches)
	}
}

func TestPay_ReassertsMergeSourceAfterCommit(t *testing.T) {
	order, products := testOrder()
	order.MergedWithOderDocID = "order-0"
	fs := &fakeStore{order: order, products: products}
	orch := newTestOrchestrator(fs, nil, nil)

	receipt, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "", "")
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if receipt.RefinedUSD != "20.00" {
		t.Errorf("refined usd = %s, want 20.00", receipt.RefinedUSD)
	}

	if len(fs.patches) != 2 {
		t.Fatalf("expected payment patch plus source re-assertion, got %d", len(fs.patches))
	}
	if fs.patchDocs[0] != "order-1" || *fs.patches[0].OrderStatus != orders.OrderPaid {
		t.Errorf("first patch: doc=%s status=%v", fs.patchDocs[0], fs.patches[0].OrderStatus)
	}
	if fs.patchDocs[1] != "order-0" || *fs.patches[1].OrderStatus != orders.OrderMerged {
		t.Errorf("expected merged re-assertion on order-0, got doc=%s patch=%+v", fs.patchDocs[1], fs.patches[1])
	}
}

func TestPay_ReplaysEvenWhenOrderAlreadyPaid(t *testing.T) {
	order, products := testOrder()
	order.OrderStatus = orders.OrderPaid
	fs := &fakeStore{order: order, products: products}
	idemp := newFakeIdemp()
	idemp.records["key-1"] = &idempotency.Record{
		IdempotencyKey: "key-1",
		Status:         idempotency.StatusDone,
		Receipt:        `{"orderDocId":"order-1","refinedUSD":"20.00"}`,
	}
	orch := newTestOrchestrator(fs, idemp, nil)

	receipt, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "key-1", "")
	if err != nil {
		t.Fatalf("duplicate submission after completion must replay, got %v", err)
	}
	if !receipt.Replayed {
		t.Errorf("expected replayed receipt")
	}
	if len(fs.patches) != 0 {
		t.Errorf("replay must not write to the remote store")
	}
}

func TestPay_GateFailureReleasesFreshKey(t *testing.T) {
	order, products := testOrder()
	order.OrderStatus = orders.OrderPaid
	fs := &fakeStore{order: order, products: products}
	idemp := newFakeIdemp()
	orch := newTestOrchestrator(fs, idemp, nil)

	_, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "key-1", "")
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
	rec := idemp.records["key-1"]
	if rec == nil || rec.Status != idempotency.StatusFailed {
		t.Errorf("claimed key must be marked failed after a gate rejection: %+v", rec)
	}
}

func TestPay_NothingToPay(t *testing.T) {
	order, products := testOrder()
	for i := range order.Rows {
		order.Rows[i].Status = orders.RowCancelled
	}
	fs := &fakeStore{order: order, products: products}
	orch := newTestOrchestrator(fs, nil, nil)

	_, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "", "")
	if !errors.Is(err, ErrNothingToPay) {
		t.Fatalf("err = %v, want ErrNothingToPay", err)
	}
}

func TestPay_OrderNotFound(t *testing.T) {
	fs := &fakeStore{}
	orch := newTestOrchestrator(fs, nil, nil)

	_, err := orch.Pay(context.Background(), "order-x", orders.PayQR, pricing.DiscountSet{}, "", "")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestPay_RemoteFailureMarksKeyFailed(t *testing.T) {
	order, products := testOrder()
	fs := &fakeStore{order: order, products: products, updateErr: errors.New("boom")}
	idemp := newFakeIdemp()
	orch := newTestOrchestrator(fs, idemp, nil)

	_, err := orch.Pay(context.Background(), "order-1", orders.PayQR, pricing.DiscountSet{}, "key-1", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if note, ok := idemp.failed["key-1"]; !ok || !strings.Contains(note, "boom") {
		t.Errorf("idempotency key not marked failed: %v", idemp.failed)
	}
	if len(fs.rowStatuses) != 0 {
		t.Errorf("rows must not be settled when the order update fails")
	}
}

func TestPay_RowFailureIsNonFatal(t *testing.T) {
	order, products := testOrder()
	fs := &fakeStore{order: order, products: products, rowErr: errors.New("row write failed")}
	orch := newTestOrchestrator(fs, nil, nil)

	receipt, err := orch.Pay(context.Background(), "order-1", orders.PayCash, pricing.DiscountSet{}, "", "")
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if receipt == nil || receipt.RefinedUSD != "20.00" {
		t.Errorf("expected receipt despite row failures")
	}
}

func TestPay_WithDiscounts(t *testing.T) {
	order, products := testOrder()
	fs := &fakeStore{order: order, products: products}
	orch := newTestOrchestrator(fs, nil, nil)

	d := pricing.DiscountSet{
		KandalVillageFriend: true,
		Custom: pricing.CustomDiscount{
			Value: decimal.NewFromInt(2),
			Type:  pricing.CustomDollar,
		},
	}
	receipt, err := orch.Pay(context.Background(), "order-1", orders.PayCash, d, "", "")
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	// 20 x 0.85 = 17, minus $2 = 15, already a multiple of 0.1
	if receipt.Final != "15.00" {
		t.Errorf("final = %s, want 15.00", receipt.Final)
	}
	if receipt.RefinedUSD != "15.00" {
		t.Errorf("refined usd = %s, want 15.00", receipt.RefinedUSD)
	}
	if !strings.Contains(receipt.DiscountSummary, "Kandal Village Friend") {
		t.Errorf("summary = %q", receipt.DiscountSummary)
	}
	if !strings.Contains(receipt.DiscountSummary, "Custom Discount") {
		t.Errorf("summary = %q", receipt.DiscountSummary)
	}
}

func TestQuote_DoesNotMutate(t *testing.T) {
	order, products := testOrder()
	fs := &fakeStore{order: order, products: products}
	orch := newTestOrchestrator(fs, nil, nil)

	totals, priced, err := orch.Quote(context.Background(), "order-1", pricing.DiscountSet{})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !totals.Base.Equal(decimal.NewFromInt(20)) {
		t.Errorf("base = %s, want 20", totals.Base)
	}
	if len(priced) != 2 {
		t.Errorf("expected 2 priced rows, got %d", len(priced))
	}
	if len(fs.patches) != 0 || len(fs.rowStatuses) != 0 {
		t.Errorf("quote must not write")
	}
}
