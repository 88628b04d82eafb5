package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/oauth2"
	"paypal-gateway/internal/paypal"
	"paypal-gateway/internal/scheduler"
)

type fakeTokens struct {
	mu          sync.Mutex
	tokens      []string
	err         error
	calls       int
	invalidated int
}

func newFakeTokens(tokens ...string) *fakeTokens {
	if len(tokens) == 0 {
		tokens = []string{"tok-1"}
	}
	return &fakeTokens{tokens: tokens}
}

func (f *fakeTokens) GetToken(ctx context.Context) (oauth2.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return oauth2.AccessToken{}, f.err
	}
	token := f.tokens[0]
	return oauth2.AccessToken{Token: token, CreatedAt: time.Now(), ExpiresIn: 3600}, nil
}

func (f *fakeTokens) Invalidate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	if len(f.tokens) > 1 {
		f.tokens = f.tokens[1:]
	}
	return nil
}

// fakePayPal implements WebhookAPI, SimulationAPI and SignatureAPI
type fakePayPal struct {
	mu sync.Mutex

	webhooks  []paypal.Webhook
	nextID    int
	createErr error
	listErr   error
	emptyID   bool

	simulateID  string
	simulateErr error
	simulated   []string

	verifyOK  bool
	verifyErr error
	verified  []paypal.VerifySignatureRequest

	// rejectToken answers 401 for calls made with this token
	rejectToken string

	creates, deletes int
	tokensSeen       []string
}

func unauthorized() error {
	return &paypal.APIError{StatusCode: http.StatusUnauthorized, Name: "AUTHENTICATION_FAILURE"}
}

func (f *fakePayPal) seen(token string) error {
	f.tokensSeen = append(f.tokensSeen, token)
	if f.rejectToken != "" && token == f.rejectToken {
		return unauthorized()
	}
	return nil
}

func (f *fakePayPal) CreateWebhook(ctx context.Context, token, callbackURL string, eventTypes []string) (*paypal.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.seen(token); err != nil {
		return nil, err
	}
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.emptyID {
		return &paypal.Webhook{URL: callbackURL}, nil
	}

	f.nextID++
	wh := paypal.Webhook{ID: fmt.Sprintf("WH-%d", f.nextID), URL: callbackURL}
	for _, name := range eventTypes {
		wh.EventTypes = append(wh.EventTypes, paypal.EventType{Name: name})
	}
	f.webhooks = append(f.webhooks, wh)
	return &wh, nil
}

func (f *fakePayPal) ListWebhooks(ctx context.Context, token string) ([]paypal.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.seen(token); err != nil {
		return nil, err
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]paypal.Webhook(nil), f.webhooks...), nil
}

func (f *fakePayPal) DeleteWebhook(ctx context.Context, token, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.seen(token); err != nil {
		return err
	}
	f.deletes++
	kept := f.webhooks[:0]
	for _, wh := range f.webhooks {
		if wh.ID != id {
			kept = append(kept, wh)
		}
	}
	f.webhooks = kept
	return nil
}

func (f *fakePayPal) SimulateEvent(ctx context.Context, token, webhookID, eventType, resourceVersion string) (*paypal.SimulatedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.seen(token); err != nil {
		return nil, err
	}
	if f.simulateErr != nil {
		return nil, f.simulateErr
	}
	f.simulated = append(f.simulated, webhookID+"/"+eventType)
	return &paypal.SimulatedEvent{ID: f.simulateID, EventType: eventType}, nil
}

func (f *fakePayPal) VerifySignature(ctx context.Context, token string, req paypal.VerifySignatureRequest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.seen(token); err != nil {
		return false, err
	}
	f.verified = append(f.verified, req)
	return f.verifyOK, f.verifyErr
}

func (f *fakePayPal) remoteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.webhooks)
}

type scheduledJob struct {
	at  time.Time
	job scheduler.Job
}

// fakeScheduler records jobs instead of running them
type fakeScheduler struct {
	mu        sync.Mutex
	jobs      map[string]scheduledJob
	scheduled int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[string]scheduledJob)}
}

func (f *fakeScheduler) ScheduleOnce(name string, at time.Time, job scheduler.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled++
	f.jobs[name] = scheduledJob{at: at, job: job}
}

func (f *fakeScheduler) Pending(name string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[name]
	return j.at, ok
}

func (f *fakeScheduler) Cancel(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	delete(f.jobs, name)
	return ok
}

// fire runs and removes the named job like the real queue would
func (f *fakeScheduler) fire(ctx context.Context, name string) error {
	f.mu.Lock()
	j, ok := f.jobs[name]
	delete(f.jobs, name)
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("no job %s", name)
	}
	return j.job(ctx)
}

type staticSubscriptions struct {
	sub *Subscription
	err error
}

func (s staticSubscriptions) Subscription(ctx context.Context) (*Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.sub == nil {
		return nil, errors.NotRegisteredError()
	}
	return s.sub, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
