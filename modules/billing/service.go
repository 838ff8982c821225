package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/dmitrymomot/retailplan/handler"
	"github.com/dmitrymomot/retailplan/pkg/binder"
	"github.com/dmitrymomot/retailplan/pkg/logger"
	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
)

// SellerRegistry creates seller records.
type SellerRegistry interface {
	EnsureSeller(ctx context.Context, sellerID uuid.UUID) error
}

// PlanCatalog lists the plan templates on offer.
type PlanCatalog interface {
	Templates() []*engine.Template
}

// SyncSubscriber streams a seller's sync events until ctx ends.
type SyncSubscriber interface {
	Subscribe(ctx context.Context, sellerID uuid.UUID) <-chan engine.SyncEvent
}

// Service exposes the plan engine over HTTP.
type Service struct {
	engine       engine.Service
	sellers      SellerRegistry
	catalog      PlanCatalog
	events       SyncSubscriber
	errorHandler handler.ErrorHandler[handler.Context]
	keepAlive    time.Duration
	log          *slog.Logger
}

// Option configures Service.
type Option func(*Service)

// WithSellerRegistry enables PUT /sellers/{sellerID}.
func WithSellerRegistry(r SellerRegistry) Option {
	return func(s *Service) { s.sellers = r }
}

// WithCatalog enables GET /plans.
func WithCatalog(c PlanCatalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithSyncEvents enables the GET /sellers/{sellerID}/events stream.
func WithSyncEvents(sub SyncSubscriber) Option {
	return func(s *Service) { s.events = sub }
}

// WithKeepAlive sets the idle interval between stream keep-alive comments.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(svc engine.Service, opts ...Option) *Service {
	s := &Service{
		engine:    svc,
		keepAlive: 25 * time.Second,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errorHandler = handler.NewErrorHandler(s.log, handler.WithClassifier(ClassifyError))
	return s
}

// Handle returns the module router.
//
//	r.Mount("/v1", billing.NewService(rt.Service,
//		billing.WithCatalog(rt.Catalog),
//		billing.WithSellerRegistry(rt.Sellers),
//		billing.WithSyncEvents(rt.Bus),
//	).Handle())
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	if s.catalog != nil {
		r.Get("/plans", wrap(s, s.plans, binder.Query()))
	}

	r.Route("/sellers/{sellerID}", func(r chi.Router) {
		path := binder.Path(chi.URLParam)

		if s.sellers != nil {
			r.Put("/", wrap(s, s.ensureSeller, path))
		}

		r.Post("/activate", wrap(s, s.activate, path, binder.JSON()))
		r.Post("/switch", wrap(s, s.switchPlan, path, binder.JSON()))
		r.Post("/switch-valid", wrap(s, s.switchToValid, path))
		r.Post("/reactivate", wrap(s, s.reactivate, path))
		r.Post("/default-plan", wrap(s, s.assignDefault, path))
		r.Post("/subscriptions/{subscriptionID}/payment", wrap(s, s.confirmPayment, path))
		r.Get("/remaining", wrap(s, s.remaining, path))

		r.Get("/usage", wrap(s, s.usage, path))
		r.Post("/usage", wrap(s, s.adjust, path, binder.JSON()))
		r.Get("/usage/{resource}/capacity", wrap(s, s.canAdd, path, binder.Query()))

		if s.events != nil {
			r.Get("/events", wrap(s, s.stream, path))
		}
	})

	return r
}

func wrap[R any](s *Service, h handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithDecorators(validated[R]()),
		handler.WithErrorHandler[handler.Context, R](s.errorHandler),
	)
}

func (s *Service) plans(_ handler.Context, req PlansRequest) handler.Response {
	templates := s.catalog.Templates()
	if req.Active != nil {
		templates = lo.Filter(templates, func(t *engine.Template, _ int) bool { return t.Active == *req.Active })
	}
	return handler.JSON(lo.Map(templates, func(t *engine.Template, _ int) PlanView { return NewPlanView(t) }))
}

func (s *Service) ensureSeller(ctx handler.Context, req SellerRequest) handler.Response {
	if err := s.sellers.EnsureSeller(ctx, req.SellerID); err != nil {
		return handler.Fail(err)
	}
	return handler.Empty()
}

func (s *Service) activate(ctx handler.Context, req ActivateRequest) handler.Response {
	return activation(s.engine.Activate(ctx, engine.ActivateRequest{
		SellerID:       req.SellerID,
		TemplateID:     req.TemplateID,
		SubscriptionID: req.SubscriptionID,
	}))
}

func (s *Service) switchPlan(ctx handler.Context, req ActivateRequest) handler.Response {
	return activation(s.engine.Switch(ctx, engine.ActivateRequest{
		SellerID:       req.SellerID,
		TemplateID:     req.TemplateID,
		SubscriptionID: req.SubscriptionID,
	}))
}

func (s *Service) switchToValid(ctx handler.Context, req SellerRequest) handler.Response {
	return activation(s.engine.SwitchToValid(ctx, req.SellerID))
}

func (s *Service) reactivate(ctx handler.Context, req SellerRequest) handler.Response {
	return activation(s.engine.ReactivateCurrent(ctx, req.SellerID))
}

func (s *Service) assignDefault(ctx handler.Context, req SellerRequest) handler.Response {
	return activation(s.engine.AssignDefaultPlan(ctx, req.SellerID))
}

func (s *Service) confirmPayment(ctx handler.Context, req PaymentRequest) handler.Response {
	return activation(s.engine.ConfirmPayment(ctx, req.SellerID, req.SubscriptionID))
}

func activation(res *engine.ActivationResult, err error) handler.Response {
	if err != nil {
		return handler.Fail(err)
	}
	if res.Created {
		return handler.JSON(res, handler.WithJSONStatus(http.StatusCreated))
	}
	return handler.JSON(res)
}

func (s *Service) remaining(ctx handler.Context, req SellerRequest) handler.Response {
	infos, err := s.engine.GetRemaining(ctx, req.SellerID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(infos, handler.WithJSONMeta(map[string]any{"count": len(infos)}))
}

func (s *Service) usage(ctx handler.Context, req SellerRequest) handler.Response {
	summary, err := s.engine.UsageSummary(ctx, req.SellerID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(summary)
}

func (s *Service) adjust(ctx handler.Context, req AdjustRequest) handler.Response {
	summary, err := s.engine.AdjustUsage(ctx, req.SellerID, engine.Resource(req.Resource), req.Delta)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(summary)
}

func (s *Service) canAdd(ctx handler.Context, req CapacityRequest) handler.Response {
	res := engine.Resource(req.Resource)
	if err := s.engine.CanAdd(ctx, req.SellerID, res, req.Count); err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(CapacityView{Resource: res, Count: req.Count, Allowed: true})
}

func (s *Service) stream(ctx handler.Context, req SellerRequest) handler.Response {
	return handler.SSE(func(stream handler.StreamContext) error {
		events := s.events.Subscribe(stream, req.SellerID)
		log := s.log.With(logger.SellerID(req.SellerID), logger.Component("sync-stream"))
		log.DebugContext(stream, "sync stream opened")
		defer log.DebugContext(stream, "sync stream closed")

		if err := stream.Comment("connected"); err != nil {
			return nil
		}

		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-stream.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := stream.Send(ev.Topic, ev); err != nil {
					return nil
				}
			case <-ticker.C:
				if err := stream.Comment("keep-alive"); err != nil {
					return nil
				}
			}
		}
	})
}
