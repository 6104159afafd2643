package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"

	qrcode "github.com/skip2/go-qrcode"

	"payment-approval/internal/domain"
)

type QRAssetStore interface {
	UpdateQRAsset(ctx context.Context, id int64, image, checksum string) error
}

// QRService derives the public verification URL for a payment and renders it
// as a scannable PNG. The rendered asset is cached on the payment row keyed
// by a checksum of its dependency fields and regenerated lazily when stale.
// The enable_qr_verification setting gates generation: with the feature off
// no asset is rendered, served or embedded anywhere.
type QRService struct {
	baseURL  string
	store    QRAssetStore
	settings SettingsSource
}

func NewQRService(baseURL string, store QRAssetStore, settings SettingsSource) *QRService {
	return &QRService{baseURL: baseURL, store: store, settings: settings}
}

// VerificationURL is a pure function of the configured base URL and the
// payment identifier. The src marker lets the endpoint distinguish scans
// from direct web access.
func (s *QRService) VerificationURL(paymentID int64) (string, error) {
	if s.baseURL == "" {
		return "", &domain.ConfigError{Key: "APP_EXTERNAL_URL"}
	}
	base := s.baseURL
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return fmt.Sprintf("%s/payment/verify/%d?src=qr", base, paymentID), nil
}

// RenderQR encodes a URL into a PNG. Failures propagate as EncodingError;
// callers may store a sentinel empty asset but must not hide the failure.
func (s *QRService) RenderQR(url string) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return nil, &domain.EncodingError{Err: err}
	}
	return png, nil
}

// AssetChecksum hashes the fields the QR asset depends on. A changed
// checksum invalidates the cached image.
func AssetChecksum(p *domain.Payment) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%.2f|%s|%s|%t", p.ID, p.Name, p.Amount, p.Partner, p.State, p.ShowQR)
	return hex.EncodeToString(h.Sum(nil))
}

// EnsureAsset returns the payment's QR image as base64 PNG, regenerating it
// when the dependency checksum is stale. Returns empty when the payment does
// not carry a QR.
func (s *QRService) EnsureAsset(ctx context.Context, p *domain.Payment) (string, error) {
	if !p.ShowQR {
		return "", nil
	}

	if s.settings != nil {
		settings, err := s.settings.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		if !settings.EnableQRVerification {
			return "", nil
		}
	}

	checksum := AssetChecksum(p)
	if p.QRImage != "" && p.QRChecksum == checksum {
		return p.QRImage, nil
	}

	url, err := s.VerificationURL(p.ID)
	if err != nil {
		return "", err
	}

	png, err := s.RenderQR(url)
	if err != nil {
		// Fail soft for the stored field, loud for operators: the row gets an
		// empty asset so a broken QR is visible, and the cause is logged.
		log.Printf("[QR] render failed for payment %d: %v", p.ID, err)
		if s.store != nil {
			_ = s.store.UpdateQRAsset(ctx, p.ID, "", checksum)
		}
		return "", err
	}

	encoded := base64.StdEncoding.EncodeToString(png)
	if s.store != nil {
		if err := s.store.UpdateQRAsset(ctx, p.ID, encoded, checksum); err != nil {
			log.Printf("[QR] asset cache update failed for payment %d: %v", p.ID, err)
		}
	}

	p.QRImage = encoded
	p.QRChecksum = checksum
	return encoded, nil
}
