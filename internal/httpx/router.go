package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/supermartsg/checkout/internal/session"
)

func NewRouter(handler *Handler, sessions session.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(WithSession(sessions))

	r.Get("/checkout", handler.RenderCheckout)
	r.Post("/checkout", handler.ProcessCheckout)
	r.Get("/invoice", handler.RenderInvoice)
	r.Get("/paynow", handler.RenderPayNow)

	r.Post("/checkout/nets", handler.StartNetsCheckout)
	r.Get("/checkout/nets/status", handler.NetsStatusStream)

	r.Post("/api/paypal/orders", handler.CreatePayPalOrder)
	r.Post("/api/paypal/orders/{orderID}/capture", handler.CapturePayPalOrder)

	r.Get("/orders", handler.OrderHistory)
	r.Get("/orders/recent", handler.RecentOrders)
	r.Post("/orders/{invoice}/cancel", handler.CancelOrder)
	r.Put("/admin/orders/{invoice}/status", handler.SetOrderStatus)

	r.Post("/wallet/topup", handler.TopUpWallet)

	return r
}
