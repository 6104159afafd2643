package rest

import (
	"encoding/base64"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"payment-approval/internal/domain"
)

// The public pages are deliberately self-contained: no assets, no scripts,
// nothing that depends on the authenticated app being reachable.
const verifyPageTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Payment Verification</title>
<style>
body { font-family: sans-serif; background: #f5f6f8; margin: 0; padding: 2rem; }
.card { max-width: 480px; margin: 0 auto; background: #fff; border-radius: 8px; padding: 2rem; box-shadow: 0 1px 4px rgba(0,0,0,.1); }
.badge { display: inline-block; padding: .35rem .8rem; border-radius: 4px; color: #fff; font-weight: bold; }
.badge.info { background: #17a2b8; }
.badge.warning { background: #ffc107; color: #212529; }
.badge.success { background: #28a745; }
.badge.danger { background: #dc3545; }
.badge.secondary { background: #6c757d; }
table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
td { padding: .4rem 0; border-bottom: 1px solid #eee; }
td:first-child { color: #6c757d; width: 40%; }
.code { margin-top: 1rem; font-size: .8rem; color: #6c757d; }
</style>
</head>
<body>
<div class="card">
<h2>Payment Verification</h2>
<p><span class="badge {{.Severity}}">{{.Label}}</span></p>
<table>
<tr><td>Reference</td><td>{{.Name}}</td></tr>
<tr><td>Partner</td><td>{{.Partner}}</td></tr>
<tr><td>Amount</td><td>{{.Amount}}</td></tr>
{{range .Actors}}<tr><td>{{.Title}}</td><td>{{.When}}</td></tr>
{{end}}</table>
<p class="code">Verification code: {{.Code}}</p>
</div>
</body>
</html>
`

const verifyNotFoundTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Payment Verification</title>
<style>
body { font-family: sans-serif; background: #f5f6f8; margin: 0; padding: 2rem; }
.card { max-width: 480px; margin: 0 auto; background: #fff; border-radius: 8px; padding: 2rem; box-shadow: 0 1px 4px rgba(0,0,0,.1); text-align: center; }
</style>
</head>
<body>
<div class="card">
<h2>Verification Unavailable</h2>
<p>The requested payment could not be verified. Check the link or QR code and try again.</p>
</div>
</body>
</html>
`

var (
	verifyPage         = template.Must(template.New("verify").Parse(verifyPageTmpl))
	verifyNotFoundPage = template.Must(template.New("verify_not_found").Parse(verifyNotFoundTmpl))
)

type verifyActorView struct {
	Title string
	When  string
}

type verifyPageView struct {
	Severity string
	Label    string
	Name     string
	Partner  string
	Amount   string
	Actors   []verifyActorView
	Code     string
}

// verifyPayment renders the public status page. Every failure path, from a
// malformed identifier to a storage error, collapses into the same generic
// page so the endpoint leaks nothing about what exists.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "payment_id"), 10, 64)
	if err != nil || id <= 0 {
		renderNotFound(w)
		return
	}

	method := domain.MethodWebAccess
	if r.URL.Query().Get("src") == "qr" {
		method = domain.MethodQRScan
	}

	result := h.verify.Verify(r.Context(), id, r.RemoteAddr, method)
	if !result.Found {
		renderNotFound(w)
		return
	}

	p := result.Payment
	view := verifyPageView{
		Severity: result.Severity,
		Label:    result.Label,
		Name:     p.Name,
		Partner:  p.Partner,
		Amount:   strconv.FormatFloat(p.Amount, 'f', 2, 64) + " " + p.Currency,
		Code:     result.Code,
	}
	addActor := func(title string, actorID *int64, at *time.Time) {
		if actorID == nil || at == nil {
			return
		}
		view.Actors = append(view.Actors, verifyActorView{Title: title, When: at.Format("2006-01-02 15:04")})
	}
	addActor("Reviewed", p.ReviewerID, p.ReviewedAt)
	addActor("Approved", p.ApproverID, p.ApprovedAt)
	addActor("Authorized", p.AuthorizerID, p.AuthorizedAt)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := verifyPage.Execute(w, view); err != nil {
		log.Printf("[HTTP] verify page render error: %v", err)
	}
}

// verifyQRImage serves the payment's QR as a PNG. Missing payments, hidden
// QRs and render failures all answer 404.
func (h *Handler) verifyQRImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "payment_id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}

	p, err := h.workflow.GetPayment(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	encoded, err := h.qr.EnsureAsset(r.Context(), p)
	if err != nil || encoded == "" {
		http.NotFound(w, r)
		return
	}

	png, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Printf("[HTTP] stored qr asset for payment %d is not valid base64: %v", id, err)
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		log.Printf("[HTTP] write qr image error: %v", err)
	}
}

func renderNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := verifyNotFoundPage.Execute(w, nil); err != nil {
		log.Printf("[HTTP] verify page render error: %v", err)
	}
}
