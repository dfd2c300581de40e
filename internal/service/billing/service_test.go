package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/servicehq/platform-api/internal/config"
	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository"
)

type fakeOrgRepo struct {
	orgs    map[uuid.UUID]*model.Organization
	updates []*model.BillingUpdate
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{orgs: make(map[uuid.UUID]*model.Organization)}
}

func (f *fakeOrgRepo) Create(ctx context.Context, org *model.Organization) error {
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeOrgRepo) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return nil, errors.New("organization not found")
	}
	return o, nil
}

func (f *fakeOrgRepo) Update(ctx context.Context, org *model.Organization) error { return nil }
func (f *fakeOrgRepo) SoftDelete(ctx context.Context, id uuid.UUID) error        { return nil }

func (f *fakeOrgRepo) List(ctx context.Context, filters *model.OrganizationFilters) ([]*model.Organization, error) {
	return nil, nil
}

func (f *fakeOrgRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Organization, error) {
	for _, o := range f.orgs {
		if o.StripeCustomerID != nil && *o.StripeCustomerID == customerID {
			return o, nil
		}
	}
	return nil, errors.New("organization not found")
}

func (f *fakeOrgRepo) ApplyBillingUpdate(ctx context.Context, update *model.BillingUpdate) error {
	f.updates = append(f.updates, update)
	if o, ok := f.orgs[update.OrganizationID]; ok {
		o.StripeCustomerID = update.StripeCustomerID
		o.StripePriceID = update.StripePriceID
		o.SubscriptionStatus = update.SubscriptionStatus
		o.TrialEndsAt = update.TrialEndsAt
		o.SubscriptionEndsAt = update.SubscriptionEndsAt
	}
	return nil
}

type fakeUserRepo struct {
	owners map[uuid.UUID]*model.User
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (f *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return nil, errors.New("not found")
}
func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, errors.New("not found")
}
func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error { return nil }
func (f *fakeUserRepo) SoftDelete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeUserRepo) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error) {
	if filters.Role != model.RoleOwner {
		return nil, nil
	}
	if owner, ok := f.owners[filters.OrganizationID]; ok {
		return []*model.User{owner}, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) CountTeamMembers(ctx context.Context, orgID uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeUserRepo) CreateTeamMemberWithinLimit(ctx context.Context, user *model.User, limit int) error {
	return nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeInvalidator struct {
	invalidated []uuid.UUID
}

func (f *fakeInvalidator) InvalidateSnapshot(orgID uuid.UUID) {
	f.invalidated = append(f.invalidated, orgID)
}

type fakeEmail struct {
	paymentFailedTo []string
}

func (f *fakeEmail) SendWelcome(ctx context.Context, email, name string) error { return nil }
func (f *fakeEmail) SendPaymentFailed(ctx context.Context, email, orgName string) error {
	f.paymentFailedTo = append(f.paymentFailedTo, email)
	return nil
}
func (f *fakeEmail) SendTrialEnding(ctx context.Context, email, orgName string, daysLeft int) error {
	return nil
}
func (f *fakeEmail) SendCustom(ctx context.Context, to, subject, content string) error { return nil }

type fixture struct {
	svc     *Service
	orgs    *fakeOrgRepo
	users   *fakeUserRepo
	outbox  *fakeOutboxRepo
	cache   *fakeInvalidator
	email   *fakeEmail
	orgID   uuid.UUID
	custID  string
	priceID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	orgs := newFakeOrgRepo()
	users := &fakeUserRepo{owners: make(map[uuid.UUID]*model.User)}
	outbox := &fakeOutboxRepo{}
	cache := &fakeInvalidator{}
	mail := &fakeEmail{}

	priceID := "price_growth_123"
	priceMap := map[string]plan.Tier{priceID: plan.TierGrowth}
	resolver := plan.NewResolver(priceMap, nil)

	svc := NewService(orgs, users, outbox, cache, resolver, mail,
		config.StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"},
		priceMap, nil)

	orgID := uuid.New()
	custID := "cus_123"
	orgs.orgs[orgID] = &model.Organization{
		Base:               model.Base{ID: orgID},
		Name:               "Brightside Plumbing",
		Status:             string(model.OrganizationStatusActive),
		StripeCustomerID:   &custID,
		SubscriptionStatus: plan.StatusActive,
	}
	users.owners[orgID] = &model.User{
		Base:  model.Base{ID: uuid.New()},
		Email: "owner@brightside.test",
		Role:  model.RoleOwner,
	}

	return &fixture{
		svc: svc, orgs: orgs, users: users, outbox: outbox,
		cache: cache, email: mail, orgID: orgID, custID: custID, priceID: priceID,
	}
}

func subscriptionEvent(t *testing.T, eventType string, sub stripe.Subscription) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestDispatch_SubscriptionUpdated(t *testing.T) {
	f := newFixture(t)

	event := subscriptionEvent(t, "customer.subscription.updated", stripe.Subscription{
		Customer: &stripe.Customer{ID: f.custID},
		Status:   stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: f.priceID}},
			},
		},
	})

	require.NoError(t, f.svc.dispatch(context.Background(), event))

	require.Len(t, f.orgs.updates, 1)
	update := f.orgs.updates[0]
	assert.Equal(t, f.orgID, update.OrganizationID)
	require.NotNil(t, update.StripePriceID)
	assert.Equal(t, f.priceID, *update.StripePriceID)
	assert.Equal(t, plan.StatusActive, update.SubscriptionStatus)

	assert.Equal(t, []uuid.UUID{f.orgID}, f.cache.invalidated, "snapshot cache must be invalidated")

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventPlanChanged, f.outbox.events[0].EventType)

	var payload model.PlanChangedPayload
	require.NoError(t, json.Unmarshal(f.outbox.events[0].Payload, &payload))
	assert.Equal(t, string(plan.TierGrowth), payload.Tier)
}

func TestDispatch_SubscriptionDeleted(t *testing.T) {
	f := newFixture(t)
	price := f.priceID
	f.orgs.orgs[f.orgID].StripePriceID = &price

	event := subscriptionEvent(t, "customer.subscription.deleted", stripe.Subscription{
		Customer: &stripe.Customer{ID: f.custID},
		Status:   stripe.SubscriptionStatusCanceled,
	})

	require.NoError(t, f.svc.dispatch(context.Background(), event))

	require.Len(t, f.orgs.updates, 1)
	update := f.orgs.updates[0]
	assert.Equal(t, plan.StatusCanceled, update.SubscriptionStatus)
	require.NotNil(t, update.StripePriceID, "price is kept for the audit trail")

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventSubscriptionEnded, f.outbox.events[0].EventType)

	// Canceled status forces the lowest tier even with a paid price.
	var payload model.PlanChangedPayload
	require.NoError(t, json.Unmarshal(f.outbox.events[0].Payload, &payload))
	assert.Equal(t, string(plan.TierFree), payload.Tier)
}

func TestDispatch_PaymentFailed(t *testing.T) {
	f := newFixture(t)

	raw, err := json.Marshal(stripe.Invoice{Customer: &stripe.Customer{ID: f.custID}})
	require.NoError(t, err)
	event := stripe.Event{
		Type: "invoice.payment_failed",
		Data: &stripe.EventData{Raw: raw},
	}

	require.NoError(t, f.svc.dispatch(context.Background(), event))

	require.Len(t, f.orgs.updates, 1)
	assert.Equal(t, plan.StatusPastDue, f.orgs.updates[0].SubscriptionStatus)
	assert.Equal(t, []string{"owner@brightside.test"}, f.email.paymentFailedTo)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventPaymentFailed, f.outbox.events[0].EventType)
}

func TestDispatch_CheckoutCompleted(t *testing.T) {
	f := newFixture(t)
	newOrgID := uuid.New()
	f.orgs.orgs[newOrgID] = &model.Organization{
		Base:               model.Base{ID: newOrgID},
		Name:               "Fresh Signup",
		SubscriptionStatus: plan.StatusTrialing,
	}

	raw, err := json.Marshal(stripe.CheckoutSession{
		ClientReferenceID: newOrgID.String(),
		Customer:          &stripe.Customer{ID: "cus_new"},
	})
	require.NoError(t, err)
	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}

	require.NoError(t, f.svc.dispatch(context.Background(), event))

	require.Len(t, f.orgs.updates, 1)
	update := f.orgs.updates[0]
	require.NotNil(t, update.StripeCustomerID)
	assert.Equal(t, "cus_new", *update.StripeCustomerID)
	assert.Equal(t, plan.StatusTrialing, update.SubscriptionStatus, "status untouched until subscription events land")

	// Linking a customer changes no plan fields, so no event is queued.
	assert.Empty(t, f.outbox.events)
}

func TestDispatch_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	event := subscriptionEvent(t, "customer.subscription.updated", stripe.Subscription{
		Customer: &stripe.Customer{ID: "cus_stranger"},
		Status:   stripe.SubscriptionStatusActive,
	})

	assert.Error(t, f.svc.dispatch(context.Background(), event))
	assert.Empty(t, f.orgs.updates)
}

func TestDispatch_IgnoresUnhandledTypes(t *testing.T) {
	f := newFixture(t)

	event := stripe.Event{Type: "charge.succeeded", Data: &stripe.EventData{Raw: []byte("{}")}}
	require.NoError(t, f.svc.dispatch(context.Background(), event))
	assert.Empty(t, f.orgs.updates)
	assert.Empty(t, f.outbox.events)
}

func TestCreateCheckoutSession_UnknownPrice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCheckoutSession(context.Background(), f.orgID, &model.CreateCheckoutSessionRequest{
		PriceID:    "price_unmapped",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	assert.ErrorIs(t, err, ErrUnknownPrice)
}

func TestCreatePortalSession_NoCustomer(t *testing.T) {
	f := newFixture(t)
	f.orgs.orgs[f.orgID].StripeCustomerID = nil

	_, err := f.svc.CreatePortalSession(context.Background(), f.orgID, "https://app.test/billing")
	assert.Error(t, err)
}

func TestHandleWebhookEvent_BadSignature(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleWebhookEvent(context.Background(), []byte(`{}`), "t=1,v1=bogus")
	assert.Error(t, err)
}

var _ repository.OrganizationRepository = (*fakeOrgRepo)(nil)
var _ repository.UserRepository = (*fakeUserRepo)(nil)
var _ repository.OutboxRepository = (*fakeOutboxRepo)(nil)
