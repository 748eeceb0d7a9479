package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	infraredis "github.com/kursadbilgin/purchase-notifier/internal/infra/redis"
	"github.com/kursadbilgin/purchase-notifier/internal/lock"
	"github.com/kursadbilgin/purchase-notifier/internal/registration"
	goredis "github.com/redis/go-redis/v9"
)

func saleOrder(id string) domain.Order {
	return domain.Order{
		ID:            id,
		Name:          "S000" + id,
		State:         domain.OrderStateSale,
		InvoiceStatus: domain.InvoiceStatusToInvoice,
		Customer: domain.Customer{
			ID:     "c1",
			Name:   "Jane Doe",
			Email:  "jane@example.com",
			Mobile: "+1 555 0199",
		},
		Lines: []domain.OrderLine{
			{Product: domain.Product{ID: "p1", Name: "Coaching session", CategoryName: "Services"}},
			{Product: domain.Product{ID: "p2", Name: "DISC profile", CategoryName: domain.AssessmentCategory}},
			{Product: domain.Product{ID: "p3", Name: "Team assessment", CategoryName: "Other"}},
		},
		AmountTotal: 149.5,
		Currency:    "USD",
	}
}

type hookDeps struct {
	*serviceDeps
	locker *fakeLocker
}

func newHookDeps() *hookDeps {
	return &hookDeps{serviceDeps: newServiceDeps(), locker: &fakeLocker{}}
}

func (d *hookDeps) buildHook(t *testing.T) (*OrderHook, *PurchaseLogService) {
	t.Helper()

	svc := d.build(t)
	hook, err := NewOrderHook(d.logs, svc, d.locker, nil)
	if err != nil {
		t.Fatalf("NewOrderHook() error = %v", err)
	}
	return hook, svc
}

func TestOrderHookConfirmCreatesSingleLog(t *testing.T) {
	t.Parallel()

	deps := newHookDeps()
	registrar := &fakeRegistrar{}
	deps.registrar = registrar
	hook, _ := deps.buildHook(t)

	order := saleOrder("42")
	if err := hook.OnOrderConfirmed(context.Background(), order); err != nil {
		t.Fatalf("OnOrderConfirmed() error = %v", err)
	}
	if err := hook.OnOrderConfirmed(context.Background(), order); err != nil {
		t.Fatalf("second OnOrderConfirmed() error = %v", err)
	}
	if err := hook.OnOrderUpdated(context.Background(), order, []string{domain.OrderFieldInvoiceStatus}); err != nil {
		t.Fatalf("OnOrderUpdated() error = %v", err)
	}

	logs := deps.logs.all()
	if len(logs) != 1 {
		t.Fatalf("purchase logs = %d, want 1", len(logs))
	}
	if registrar.calls() != 1 {
		t.Fatalf("registration calls = %d, want 1", registrar.calls())
	}
	if deps.sender.count() != 1 {
		t.Fatalf("emails = %d, want 1", deps.sender.count())
	}
	if len(deps.locker.acquired) != 3 || deps.locker.released != 3 {
		t.Fatalf("lock acquired/released = %d/%d, want 3/3", len(deps.locker.acquired), deps.locker.released)
	}
}

func TestOrderHookSnapshotsOrder(t *testing.T) {
	t.Parallel()

	deps := newHookDeps()
	registrar := &fakeRegistrar{}
	deps.registrar = registrar
	hook, _ := deps.buildHook(t)

	created, err := hook.MaybeCreatePurchaseLog(context.Background(), saleOrder("7"))
	if err != nil {
		t.Fatalf("MaybeCreatePurchaseLog() error = %v", err)
	}
	if created == nil {
		t.Fatal("MaybeCreatePurchaseLog() returned nil, want created log")
	}

	if created.Reference != "S0007" {
		t.Fatalf("reference = %q, want S0007", created.Reference)
	}
	if created.OrderID == nil || *created.OrderID != "7" {
		t.Fatalf("order id = %v, want 7", created.OrderID)
	}
	if created.AssessmentName != "DISC profile" {
		t.Fatalf("assessment name = %q, want first assessment line", created.AssessmentName)
	}
	if created.AssessmentProductID == nil || *created.AssessmentProductID != "p2" {
		t.Fatalf("assessment product id = %v, want p2", created.AssessmentProductID)
	}
	if created.CustomerPhone != "+1 555 0199" {
		t.Fatalf("phone = %q, want mobile fallback", created.CustomerPhone)
	}
	if created.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", created.PaymentStatus)
	}
	if created.PurchaseDate.IsZero() {
		t.Fatal("purchase date should default to creation time")
	}

	if registrar.calls() != 1 {
		t.Fatalf("registration calls = %d, want 1", registrar.calls())
	}
	req := registrar.requests[0]
	if req.AssessmentName != "DISC profile" || req.OrderReference != "S0007" {
		t.Fatalf("registration request = %+v", req)
	}
}

func TestOrderHookNoAssessmentProduct(t *testing.T) {
	t.Parallel()

	deps := newHookDeps()
	hook, _ := deps.buildHook(t)

	order := saleOrder("8")
	order.Lines = []domain.OrderLine{{Product: domain.Product{ID: "p1", Name: "Widget", CategoryName: "Other"}}}

	created, err := hook.MaybeCreatePurchaseLog(context.Background(), order)
	if err != nil {
		t.Fatalf("MaybeCreatePurchaseLog() error = %v", err)
	}
	if created.AssessmentName != "" || created.AssessmentProductID != nil {
		t.Fatalf("assessment = (%q, %v), want empty", created.AssessmentName, created.AssessmentProductID)
	}
}

func TestOrderHookConfirmConditions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		state       domain.OrderState
		invoice     domain.InvoiceStatus
		wantCreated bool
	}{
		{name: "sale state", state: domain.OrderStateSale, invoice: domain.InvoiceStatusNothing, wantCreated: true},
		{name: "invoiced but done", state: domain.OrderStateDone, invoice: domain.InvoiceStatusInvoiced, wantCreated: true},
		{name: "quotation sent", state: domain.OrderStateSent, invoice: domain.InvoiceStatusNothing, wantCreated: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			deps := newHookDeps()
			hook, _ := deps.buildHook(t)

			order := saleOrder("9")
			order.State = tc.state
			order.InvoiceStatus = tc.invoice

			if err := hook.OnOrderConfirmed(context.Background(), order); err != nil {
				t.Fatalf("OnOrderConfirmed() error = %v", err)
			}
			if got := len(deps.logs.all()) == 1; got != tc.wantCreated {
				t.Fatalf("created = %v, want %v", got, tc.wantCreated)
			}
		})
	}
}

func TestOrderHookUpdateConditions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		state       domain.OrderState
		changed     []string
		wantCreated bool
	}{
		{name: "state change to sale", state: domain.OrderStateSale, changed: []string{"state"}, wantCreated: true},
		{name: "invoice status change in sale", state: domain.OrderStateSale, changed: []string{"note", "invoice_status"}, wantCreated: true},
		{name: "unrelated field change", state: domain.OrderStateSale, changed: []string{"note"}, wantCreated: false},
		{name: "invoiced but not sale", state: domain.OrderStateDone, changed: []string{"invoice_status"}, wantCreated: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			deps := newHookDeps()
			hook, _ := deps.buildHook(t)

			order := saleOrder("10")
			order.State = tc.state
			order.InvoiceStatus = domain.InvoiceStatusInvoiced

			if err := hook.OnOrderUpdated(context.Background(), order, tc.changed); err != nil {
				t.Fatalf("OnOrderUpdated() error = %v", err)
			}
			if got := len(deps.logs.all()) == 1; got != tc.wantCreated {
				t.Fatalf("created = %v, want %v", got, tc.wantCreated)
			}
		})
	}
}

func TestOrderHookRegistrationFailureSkipsEmail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	deps := newHookDeps()
	deps.registrar = registration.NewClient(nil)
	deps.config.cfg = registration.Config{URL: server.URL}
	hook, _ := deps.buildHook(t)

	created, err := hook.MaybeCreatePurchaseLog(context.Background(), saleOrder("11"))
	if err != nil {
		t.Fatalf("MaybeCreatePurchaseLog() error = %v", err)
	}

	got, _ := deps.logs.GetByID(context.Background(), created.ID)
	if got.RegistrationStatus != domain.RegistrationStatusFailed {
		t.Fatalf("registration status = %s, want failed", got.RegistrationStatus)
	}
	if deps.sender.count() != 0 {
		t.Fatal("email must not be sent after a failed registration")
	}
	if got.EmailSent {
		t.Fatal("email flag must stay unset")
	}
}

func TestOrderHookSuccessfulRegistrationSendsEmail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"user_id":"abc123"}`))
	}))
	defer server.Close()

	deps := newHookDeps()
	deps.registrar = registration.NewClient(nil)
	deps.config.cfg = registration.Config{URL: server.URL}
	hook, _ := deps.buildHook(t)

	created, err := hook.MaybeCreatePurchaseLog(context.Background(), saleOrder("12"))
	if err != nil {
		t.Fatalf("MaybeCreatePurchaseLog() error = %v", err)
	}

	got, _ := deps.logs.GetByID(context.Background(), created.ID)
	if got.RegistrationStatus != domain.RegistrationStatusSent {
		t.Fatalf("registration status = %s, want sent", got.RegistrationStatus)
	}
	if got.ExternalUserID == nil || *got.ExternalUserID != "abc123" {
		t.Fatalf("external user id = %v, want abc123", got.ExternalUserID)
	}
	if !got.EmailSent || got.EmailSentAt == nil {
		t.Fatal("email should be marked sent")
	}
	if deps.sender.count() != 1 {
		t.Fatalf("emails = %d, want 1", deps.sender.count())
	}
}

func TestOrderHookConcurrentConfirmationsRegisterOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"user_id":"abc123"}`))
	}))
	defer server.Close()

	deps := newHookDeps()
	deps.registrar = registration.NewClient(nil)
	deps.config.cfg = registration.Config{URL: server.URL}

	// Without a lock both callers pass the existence check; the store's
	// uniqueness constraint must still leave a single log.
	svc := deps.build(t)
	hook, err := NewOrderHook(deps.logs, svc, nil, nil)
	if err != nil {
		t.Fatalf("NewOrderHook() error = %v", err)
	}

	gate := make(chan struct{})
	var waiting sync.WaitGroup
	waiting.Add(2)
	deps.logs.existsFn = func(context.Context, string) (bool, error) {
		waiting.Done()
		<-gate
		return false, nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- hook.OnOrderConfirmed(context.Background(), saleOrder("13"))
		}()
	}
	waiting.Wait()
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("OnOrderConfirmed() error = %v", err)
		}
	}
	if got := len(deps.logs.all()); got != 1 {
		t.Fatalf("purchase logs = %d, want 1", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("registration calls = %d, want 1", calls.Load())
	}
}

func TestOrderHookDuplicateDuringSlowRegistration(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	const lockTTL = 300 * time.Millisecond
	locker, err := infraredis.NewRedisOrderLock(rdb, lockTTL)
	if err != nil {
		t.Fatalf("NewRedisOrderLock() error = %v", err)
	}

	var calls atomic.Int32
	var lockHeld atomic.Bool
	registering := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		lockHeld.Store(mr.Exists("purchase-log:order:42"))
		select {
		case registering <- struct{}{}:
		default:
		}
		time.Sleep(3 * lockTTL)
		_, _ = w.Write([]byte(`{"user_id":"abc123"}`))
	}))
	defer server.Close()

	deps := newServiceDeps()
	deps.registrar = registration.NewClient(nil)
	deps.config.cfg = registration.Config{URL: server.URL}
	svc := deps.build(t)
	hook, err := NewOrderHook(deps.logs, svc, locker, nil)
	if err != nil {
		t.Fatalf("NewOrderHook() error = %v", err)
	}

	first := make(chan error, 1)
	go func() {
		first <- hook.OnOrderConfirmed(context.Background(), saleOrder("42"))
	}()

	select {
	case <-registering:
	case <-time.After(5 * time.Second):
		t.Fatal("registration endpoint was not called")
	}
	time.Sleep(100 * time.Millisecond)

	if err := hook.OnOrderConfirmed(context.Background(), saleOrder("42")); err != nil {
		t.Fatalf("duplicate OnOrderConfirmed() error = %v, want nil", err)
	}
	if err := <-first; err != nil {
		t.Fatalf("OnOrderConfirmed() error = %v", err)
	}

	if lockHeld.Load() {
		t.Fatal("order lock held during registration")
	}
	logs := deps.logs.all()
	if len(logs) != 1 {
		t.Fatalf("purchase logs = %d, want 1", len(logs))
	}
	if calls.Load() != 1 {
		t.Fatalf("registration calls = %d, want 1", calls.Load())
	}
	if logs[0].RegistrationStatus != domain.RegistrationStatusSent {
		t.Fatalf("registration status = %s, want sent", logs[0].RegistrationStatus)
	}
}

func TestOrderHookLockFailure(t *testing.T) {
	t.Parallel()

	deps := newHookDeps()
	deps.locker.acquireFn = func(context.Context, string) (lock.ReleaseFunc, error) {
		return nil, lock.ErrNotAcquired
	}
	hook, _ := deps.buildHook(t)

	_, err := hook.MaybeCreatePurchaseLog(context.Background(), saleOrder("14"))
	if !errors.Is(err, lock.ErrNotAcquired) {
		t.Fatalf("MaybeCreatePurchaseLog() error = %v, want ErrNotAcquired", err)
	}
	if got := len(deps.logs.all()); got != 0 {
		t.Fatalf("purchase logs = %d, want 0", got)
	}
}

func TestOrderHookStorageFailureAfterCreateIsSwallowed(t *testing.T) {
	t.Parallel()

	deps := newHookDeps()
	deps.logs.updateRegFn = func(context.Context, string, domain.RegistrationOutcome) error {
		return errors.New("db down")
	}
	hook, _ := deps.buildHook(t)

	created, err := hook.MaybeCreatePurchaseLog(context.Background(), saleOrder("15"))
	if err != nil {
		t.Fatalf("MaybeCreatePurchaseLog() error = %v, want nil once the log exists", err)
	}
	if created == nil {
		t.Fatal("created log should be returned")
	}
	if deps.sender.count() != 0 {
		t.Fatal("email must not be sent when the registration outcome is unknown")
	}
}

func TestOrderHookExistenceCheckFailure(t *testing.T) {
	t.Parallel()

	deps := newHookDeps()
	deps.logs.existsFn = func(context.Context, string) (bool, error) {
		return false, errors.New("db down")
	}
	hook, _ := deps.buildHook(t)

	if err := hook.OnOrderConfirmed(context.Background(), saleOrder("16")); err == nil {
		t.Fatal("OnOrderConfirmed() expected error")
	}
}

func TestOrderHookHandleEvent(t *testing.T) {
	t.Parallel()

	deps := newHookDeps()
	hook, _ := deps.buildHook(t)

	confirmed := domain.OrderEvent{Type: domain.OrderEventConfirmed, Orders: []domain.Order{saleOrder("17"), saleOrder("18")}}
	if err := hook.HandleEvent(context.Background(), confirmed); err != nil {
		t.Fatalf("HandleEvent(confirmed) error = %v", err)
	}
	if got := len(deps.logs.all()); got != 2 {
		t.Fatalf("purchase logs = %d, want 2", got)
	}

	deleted := domain.OrderEvent{Type: domain.OrderEventDeleted, OrderID: "17"}
	if err := hook.HandleEvent(context.Background(), deleted); err != nil {
		t.Fatalf("HandleEvent(deleted) error = %v", err)
	}
	if deps.logs.deletedOrderID != "17" {
		t.Fatalf("deleted order = %q, want 17", deps.logs.deletedOrderID)
	}
	if got := len(deps.logs.all()); got != 1 {
		t.Fatalf("purchase logs after delete = %d, want 1", got)
	}

	invalid := domain.OrderEvent{Type: domain.OrderEventUpdated}
	if err := hook.HandleEvent(context.Background(), invalid); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("HandleEvent(invalid) error = %v, want ErrValidation", err)
	}
}
