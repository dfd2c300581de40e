package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	portalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/servicehq/platform-api/internal/config"
	"github.com/servicehq/platform-api/internal/email"
	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository"
	"github.com/servicehq/platform-api/pkg/circuitbreaker"
	"github.com/servicehq/platform-api/pkg/metrics"
)

// Tolerance for clock drift when verifying webhook signatures.
const webhookTolerance = 5 * time.Minute

var ErrUnknownPrice = errors.New("price ID is not mapped to any plan")

// Servicer owns the billing provider integration. It is the only writer
// of the organization's subscription fields; everything else derives the
// tier from them at read time.
type Servicer interface {
	CreateCheckoutSession(ctx context.Context, orgID uuid.UUID, req *model.CreateCheckoutSessionRequest) (*model.CheckoutSessionResponse, error)
	CreatePortalSession(ctx context.Context, orgID uuid.UUID, returnURL string) (*model.CheckoutSessionResponse, error)
	HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error
}

// snapshotInvalidator is the slice of the entitlement service billing
// needs: dropping cached snapshots when plan fields change.
type snapshotInvalidator interface {
	InvalidateSnapshot(orgID uuid.UUID)
}

type Service struct {
	orgRepo    repository.OrganizationRepository
	userRepo   repository.UserRepository
	outboxRepo repository.OutboxRepository
	snapshots  snapshotInvalidator
	resolver   *plan.Resolver
	emailSvc   email.Service
	breaker    *circuitbreaker.CircuitBreaker
	metrics    *metrics.Metrics

	webhookSecret string
	priceToTier   map[string]plan.Tier
	now           func() time.Time
}

func NewService(
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	outboxRepo repository.OutboxRepository,
	snapshots snapshotInvalidator,
	resolver *plan.Resolver,
	emailSvc email.Service,
	cfg config.StripeConfig,
	priceToTier map[string]plan.Tier,
	m *metrics.Metrics,
) *Service {
	stripe.Key = cfg.SecretKey

	var onOpen func()
	if m != nil {
		onOpen = func() { m.StripeBreakerOpen.Inc() }
	}

	return &Service{
		orgRepo:    orgRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		snapshots:  snapshots,
		resolver:   resolver,
		emailSvc:   emailSvc,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:           "stripe",
			MaxFailures:    5,
			Timeout:        30 * time.Second,
			OnOpenRejected: onOpen,
		}),
		metrics:       m,
		webhookSecret: cfg.WebhookSecret,
		priceToTier:   priceToTier,
		now:           time.Now,
	}
}

// CreateCheckoutSession opens a hosted checkout page for one of the
// configured plan prices. The organization ID rides along as the client
// reference so the completion webhook can link the customer back.
func (s *Service) CreateCheckoutSession(ctx context.Context, orgID uuid.UUID, req *model.CreateCheckoutSessionRequest) (*model.CheckoutSessionResponse, error) {
	if _, ok := s.priceToTier[req.PriceID]; !ok {
		return nil, ErrUnknownPrice
	}

	org, err := s.orgRepo.Get(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("organization not found: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, org)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(org.ID.String()),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}

	var sess *stripe.CheckoutSession
	err = s.breaker.Execute(func() error {
		var callErr error
		sess, callErr = checkoutsession.New(params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &model.CheckoutSessionResponse{URL: sess.URL}, nil
}

// CreatePortalSession opens the hosted billing portal where customers
// change plans or payment methods.
func (s *Service) CreatePortalSession(ctx context.Context, orgID uuid.UUID, returnURL string) (*model.CheckoutSessionResponse, error) {
	org, err := s.orgRepo.Get(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("organization not found: %w", err)
	}
	if org.StripeCustomerID == nil {
		return nil, errors.New("organization has no billing customer")
	}

	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  org.StripeCustomerID,
		ReturnURL: stripe.String(returnURL),
	}

	var sess *stripe.BillingPortalSession
	err = s.breaker.Execute(func() error {
		var callErr error
		sess, callErr = portalsession.New(params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}

	return &model.CheckoutSessionResponse{URL: sess.URL}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, org *model.Organization) (string, error) {
	if org.StripeCustomerID != nil {
		return *org.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Name:   stripe.String(org.Name),
		Metadata: map[string]string{
			"organization_id": org.ID.String(),
		},
	}

	var cust *stripe.Customer
	err := s.breaker.Execute(func() error {
		var callErr error
		cust, callErr = customer.New(params)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to create billing customer: %w", err)
	}

	update := &model.BillingUpdate{
		OrganizationID:     org.ID,
		StripeCustomerID:   &cust.ID,
		StripePriceID:      org.StripePriceID,
		SubscriptionStatus: org.SubscriptionStatus,
		TrialEndsAt:        org.TrialEndsAt,
		SubscriptionEndsAt: org.SubscriptionEndsAt,
	}
	if err := s.orgRepo.ApplyBillingUpdate(ctx, update); err != nil {
		return "", fmt.Errorf("failed to link billing customer: %w", err)
	}
	return cust.ID, nil
}

// HandleWebhookEvent verifies the signature and applies the event. Plan
// changes land here and nowhere else.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithTolerance(payload, signature, s.webhookSecret, webhookTolerance)
	if err != nil {
		return fmt.Errorf("invalid webhook signature: %w", err)
	}

	eventType := string(event.Type)
	if err := s.dispatch(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.WebhookEventsFailed.WithLabelValues(eventType).Inc()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.WebhookEventsProcessed.WithLabelValues(eventType).Inc()
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return s.handleCheckoutCompleted(ctx, &sess)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return s.handleSubscriptionChange(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return s.handleSubscriptionDeleted(ctx, &sub)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return s.handlePaymentFailed(ctx, &inv)

	default:
		log.Debug().Str("type", string(event.Type)).Msg("ignoring webhook event")
		return nil
	}
}

// handleCheckoutCompleted links the billing customer to the organization
// named in the client reference. Subscription details follow in their
// own events.
func (s *Service) handleCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	orgID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("checkout session has no usable client reference: %w", err)
	}

	org, err := s.orgRepo.Get(ctx, orgID)
	if err != nil {
		return fmt.Errorf("organization not found for checkout session: %w", err)
	}

	if sess.Customer == nil {
		return errors.New("checkout session has no customer")
	}

	update := &model.BillingUpdate{
		OrganizationID:     org.ID,
		StripeCustomerID:   &sess.Customer.ID,
		StripePriceID:      org.StripePriceID,
		SubscriptionStatus: org.SubscriptionStatus,
		TrialEndsAt:        org.TrialEndsAt,
		SubscriptionEndsAt: org.SubscriptionEndsAt,
	}
	if err := s.orgRepo.ApplyBillingUpdate(ctx, update); err != nil {
		return fmt.Errorf("failed to link billing customer: %w", err)
	}

	log.Info().
		Str("organization_id", org.ID.String()).
		Str("customer_id", sess.Customer.ID).
		Msg("billing customer linked")
	return nil
}

func (s *Service) handleSubscriptionChange(ctx context.Context, sub *stripe.Subscription) error {
	org, err := s.orgForSubscription(ctx, sub)
	if err != nil {
		return err
	}

	var priceID *string
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = &sub.Items.Data[0].Price.ID
	}

	update := &model.BillingUpdate{
		OrganizationID:     org.ID,
		StripeCustomerID:   org.StripeCustomerID,
		StripePriceID:      priceID,
		SubscriptionStatus: string(sub.Status),
		TrialEndsAt:        unixTime(sub.TrialEnd),
		SubscriptionEndsAt: unixTime(sub.CurrentPeriodEnd),
	}
	return s.applyPlanChange(ctx, org, update, model.EventPlanChanged)
}

// handleSubscriptionDeleted degrades the organization. The price is kept
// for the audit trail; the canceled status alone forces the lowest tier.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	org, err := s.orgForSubscription(ctx, sub)
	if err != nil {
		return err
	}

	now := s.now()
	update := &model.BillingUpdate{
		OrganizationID:     org.ID,
		StripeCustomerID:   org.StripeCustomerID,
		StripePriceID:      org.StripePriceID,
		SubscriptionStatus: plan.StatusCanceled,
		TrialEndsAt:        org.TrialEndsAt,
		SubscriptionEndsAt: &now,
	}
	return s.applyPlanChange(ctx, org, update, model.EventSubscriptionEnded)
}

func (s *Service) handlePaymentFailed(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Customer == nil {
		return errors.New("invoice has no customer")
	}
	org, err := s.orgRepo.GetByStripeCustomerID(ctx, inv.Customer.ID)
	if err != nil {
		return fmt.Errorf("organization not found for customer %s: %w", inv.Customer.ID, err)
	}

	update := &model.BillingUpdate{
		OrganizationID:     org.ID,
		StripeCustomerID:   org.StripeCustomerID,
		StripePriceID:      org.StripePriceID,
		SubscriptionStatus: plan.StatusPastDue,
		TrialEndsAt:        org.TrialEndsAt,
		SubscriptionEndsAt: org.SubscriptionEndsAt,
	}
	if err := s.applyPlanChange(ctx, org, update, model.EventPaymentFailed); err != nil {
		return err
	}

	s.notifyOwner(ctx, org)
	return nil
}

// applyPlanChange is the single write path for billing fields: persist,
// invalidate the snapshot cache, and queue the change event for
// downstream consumers.
func (s *Service) applyPlanChange(ctx context.Context, org *model.Organization, update *model.BillingUpdate, eventType string) error {
	if err := s.orgRepo.ApplyBillingUpdate(ctx, update); err != nil {
		return fmt.Errorf("failed to apply billing update: %w", err)
	}

	s.snapshots.InvalidateSnapshot(org.ID)

	priceID := ""
	if update.StripePriceID != nil {
		priceID = *update.StripePriceID
	}
	tier := s.resolver.Resolve(plan.Subscription{
		PriceID:     priceID,
		Status:      update.SubscriptionStatus,
		TrialEndsAt: update.TrialEndsAt,
	})

	payload, err := json.Marshal(model.PlanChangedPayload{
		OrganizationID:     org.ID,
		PriceID:            priceID,
		SubscriptionStatus: update.SubscriptionStatus,
		Tier:               string(tier),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal plan change payload: %w", err)
	}

	outboxEvent := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    string(model.OutboxStatusPending),
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.outboxRepo.Create(ctx, outboxEvent); err != nil {
		// The billing fields are already committed; the snapshot cache is
		// already invalidated. Losing the event only delays downstream
		// consumers, so log instead of failing the webhook.
		log.Error().Err(err).
			Str("organization_id", org.ID.String()).
			Str("event_type", eventType).
			Msg("failed to queue outbox event")
	}

	log.Info().
		Str("organization_id", org.ID.String()).
		Str("status", update.SubscriptionStatus).
		Str("tier", string(tier)).
		Msg("plan updated")
	return nil
}

func (s *Service) orgForSubscription(ctx context.Context, sub *stripe.Subscription) (*model.Organization, error) {
	if sub.Customer == nil {
		return nil, errors.New("subscription has no customer")
	}
	org, err := s.orgRepo.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		return nil, fmt.Errorf("organization not found for customer %s: %w", sub.Customer.ID, err)
	}
	return org, nil
}

func (s *Service) notifyOwner(ctx context.Context, org *model.Organization) {
	owners, err := s.userRepo.List(ctx, &model.UserFilters{
		OrganizationID: org.ID,
		Role:           model.RoleOwner,
	})
	if err != nil || len(owners) == 0 {
		log.Warn().Err(err).Str("organization_id", org.ID.String()).Msg("no owner to notify")
		return
	}
	if err := s.emailSvc.SendPaymentFailed(ctx, owners[0].Email, org.Name); err != nil {
		log.Warn().Err(err).Str("organization_id", org.ID.String()).Msg("failed to send payment failed email")
	}
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
