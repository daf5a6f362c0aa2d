package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"certproof/internal/auth"
	"certproof/internal/handlers"
	"certproof/internal/middleware"
)

// New wires the certificate API. Registration, verification and read paths
// are public; destructive and administrative paths require an admin session.
func New(srv *handlers.Server, authHandler *auth.Handler, jwtSecret []byte, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.RequestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/nonce", authHandler.Nonce)
		r.Post("/auth/login", authHandler.Login)

		r.Post("/certificates", srv.RegisterCertificate)
		r.Get("/certificates", srv.ListCertificates)
		r.Get("/certificates/{hash_key}", srv.GetCertificate)
		r.Get("/certificates/{hash_key}/qrcode", srv.CertificateQRCode)

		r.Post("/verifications", srv.VerifyDocument)
		r.Post("/extractions", srv.ExtractDocument)

		r.Get("/shared/{hash_key}", srv.SharedCertificate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(jwtSecret))
			r.Delete("/certificates/{hash_key}", srv.DeleteCertificate)
			r.Patch("/certificates/{hash_key}/verified", srv.SetVerified)
			r.Post("/certificates/{hash_key}/share", srv.CreateShareLink)
			r.Post("/certificates/bulk", srv.BulkRegister)
		})
	})

	return r
}
