package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"payment-approval/internal/domain"
	"payment-approval/internal/repository"
	"payment-approval/internal/service"
)

type WorkflowService interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, id int64) (*domain.Payment, error)
	ListPayments(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
	Submit(ctx context.Context, paymentID, actorID int64) (*domain.Payment, error)
	Approve(ctx context.Context, paymentID, actorID int64, role domain.StageRole) (*domain.Payment, error)
	Reject(ctx context.Context, paymentID, actorID int64, reason string) (*domain.Payment, error)
	Cancel(ctx context.Context, paymentID, actorID int64) (*domain.Payment, error)
	FinalizePost(ctx context.Context, paymentID, actorID int64) (*domain.Payment, error)
	History(ctx context.Context, paymentID int64) ([]domain.AuditEntry, error)
	OverdueReviews(ctx context.Context) ([]domain.Payment, error)
}

type VerifyService interface {
	Verify(ctx context.Context, paymentID int64, ip, method string) service.VerifyResult
}

type QRAssetService interface {
	EnsureAsset(ctx context.Context, p *domain.Payment) (string, error)
}

type VoucherGenerator interface {
	Generate(ctx context.Context, paymentID int64) (string, error)
}

type VerificationsExporter interface {
	StartVerificationsExport(ctx context.Context, selected []string, filter repository.VerificationsFilter, userID int64) (string, error)
}

type ExportListService interface {
	GetExports(ctx context.Context, userID int64) ([]interface{}, error)
	GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error)
}

type Handler struct {
	workflow   WorkflowService
	verify     VerifyService
	qr         QRAssetService
	vouchers   VoucherGenerator
	exporter   VerificationsExporter
	exportList ExportListService
}

func NewHandler(
	workflow WorkflowService,
	verify VerifyService,
	qr QRAssetService,
	vouchers VoucherGenerator,
	exporter VerificationsExporter,
	exportList ExportListService,
) *Handler {
	return &Handler{
		workflow:   workflow,
		verify:     verify,
		qr:         qr,
		vouchers:   vouchers,
		exporter:   exporter,
		exportList: exportList,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

// InitRouterWithAuth builds the authenticated API router. The public
// verification routes live on a separate router, see InitPublicRouter.
func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.createPayment)
		r.Get("/", h.listPayments)
		r.Get("/overdue", h.listOverdue)

		r.Route("/{payment_id}", func(r chi.Router) {
			r.Get("/", h.getPayment)
			r.Post("/submit", h.submitPayment)
			r.Post("/approve", h.approvePayment)
			r.Post("/reject", h.rejectPayment)
			r.Post("/cancel", h.cancelPayment)
			r.Post("/post", h.postPayment)
			r.Get("/history", h.paymentHistory)
			r.Get("/voucher", h.paymentVoucher)
		})
	})

	r.Post("/verifications/export", h.exportVerifications)
	r.Route("/exports", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
	})

	return r
}

// InitPublicRouter serves the unauthenticated verification surface. Meant to
// be mounted under /payment, so the full paths are /payment/verify/{id} and
// /payment/verify/{id}/qr.png.
func (h *Handler) InitPublicRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(30*time.Second),
	)

	r.Get("/verify/{payment_id}", h.verifyPayment)
	r.Get("/verify/{payment_id}/qr.png", h.verifyQRImage)

	return r
}
