package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"github.com/kursadbilgin/purchase-notifier/internal/lock"
	"github.com/kursadbilgin/purchase-notifier/internal/mailer"
	"github.com/kursadbilgin/purchase-notifier/internal/registration"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
)

// memPurchaseLogRepo is an in-memory purchase log store that enforces the
// one-log-per-order constraint.
type memPurchaseLogRepo struct {
	mu   sync.Mutex
	logs map[string]domain.PurchaseLog

	createFn       func(ctx context.Context, l *domain.PurchaseLog) error
	existsFn       func(ctx context.Context, orderID string) (bool, error)
	updateRegFn    func(ctx context.Context, id string, outcome domain.RegistrationOutcome) error
	markEmailErr   error
	deletedOrderID string
}

func newMemPurchaseLogRepo() *memPurchaseLogRepo {
	return &memPurchaseLogRepo{logs: map[string]domain.PurchaseLog{}}
}

func (r *memPurchaseLogRepo) Create(ctx context.Context, l *domain.PurchaseLog) error {
	if r.createFn != nil {
		if err := r.createFn(ctx, l); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l.OrderID != nil {
		for _, existing := range r.logs {
			if existing.OrderID != nil && *existing.OrderID == *l.OrderID {
				return domain.ErrConflict
			}
		}
	}
	r.logs[l.ID] = *l
	return nil
}

func (r *memPurchaseLogRepo) GetByID(_ context.Context, id string) (*domain.PurchaseLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (r *memPurchaseLogRepo) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	if r.existsFn != nil {
		return r.existsFn(ctx, orderID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.OrderID != nil && *l.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPurchaseLogRepo) List(_ context.Context, _ repository.ListParams) ([]domain.PurchaseLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PurchaseLog, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

func (r *memPurchaseLogRepo) UpdateRegistration(ctx context.Context, id string, outcome domain.RegistrationOutcome) error {
	if r.updateRegFn != nil {
		return r.updateRegFn(ctx, id, outcome)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.RegistrationStatus = outcome.Status
	if outcome.ExternalUserID != nil {
		v := *outcome.ExternalUserID
		l.ExternalUserID = &v
	}
	if outcome.RawAPIResponse != nil {
		v := *outcome.RawAPIResponse
		l.RawAPIResponse = &v
	}
	r.logs[id] = l
	return nil
}

func (r *memPurchaseLogRepo) MarkEmailSent(_ context.Context, id string, sentAt time.Time) error {
	if r.markEmailErr != nil {
		return r.markEmailErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.EmailSent = true
	if l.EmailSentAt == nil {
		at := sentAt
		l.EmailSentAt = &at
	}
	r.logs[id] = l
	return nil
}

func (r *memPurchaseLogRepo) DeleteByOrderID(_ context.Context, orderID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedOrderID = orderID
	var deleted int64
	for id, l := range r.logs {
		if l.OrderID != nil && *l.OrderID == orderID {
			delete(r.logs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memPurchaseLogRepo) all() []domain.PurchaseLog {
	logs, _, _ := r.List(context.Background(), repository.ListParams{})
	return logs
}

type fakeTemplateRepo struct {
	getByKeyFn func(ctx context.Context, key string) (*domain.EmailTemplate, error)
}

func (f *fakeTemplateRepo) GetByKey(ctx context.Context, key string) (*domain.EmailTemplate, error) {
	if f.getByKeyFn != nil {
		return f.getByKeyFn(ctx, key)
	}
	return &domain.EmailTemplate{
		Key:     key,
		Subject: "Your {{.AssessmentName}} registration",
		Body:    "<p>Hello {{.CustomerName}}, your id is {{.ExternalUserID}}</p>",
		IsHTML:  true,
	}, nil
}

type fakeSender struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, msg mailer.Message) error
	sent   []mailer.Message
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeConfigSource struct {
	cfg registration.Config
	err error
}

func (f *fakeConfigSource) DiscConfig(context.Context) (registration.Config, error) {
	return f.cfg, f.err
}

type fakeRegistrar struct {
	mu         sync.Mutex
	registerFn func(ctx context.Context, cfg registration.Config, req registration.Request) registration.Result
	requests   []registration.Request
}

func (f *fakeRegistrar) Register(ctx context.Context, cfg registration.Config, req registration.Request) registration.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.registerFn != nil {
		return f.registerFn(ctx, cfg, req)
	}
	return registration.Result{Success: true, Status: domain.RegistrationStatusSent, ExternalUserID: "ext-1", RawResponse: "{}"}
}

func (f *fakeRegistrar) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeLocker struct {
	acquireFn func(ctx context.Context, key string) (lock.ReleaseFunc, error)
	acquired  []string
	released  int
}

func (f *fakeLocker) TryAcquire(ctx context.Context, key string) (lock.ReleaseFunc, bool, error) {
	release, err := f.Acquire(ctx, key)
	return release, err == nil, err
}

func (f *fakeLocker) Acquire(ctx context.Context, key string) (lock.ReleaseFunc, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, key)
	}
	f.acquired = append(f.acquired, key)
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}
