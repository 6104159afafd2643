package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"testing"

	"payment-approval/internal/domain"
)

type fakeQRStore struct {
	updates int
	image   string
	sum     string
}

func (f *fakeQRStore) UpdateQRAsset(ctx context.Context, id int64, image, checksum string) error {
	f.updates++
	f.image = image
	f.sum = checksum
	return nil
}

func TestVerificationURL_Pure(t *testing.T) {
	svc := NewQRService("https://pay.example.com", nil, nil)

	first, err := svc.VerificationURL(42)
	if err != nil {
		t.Fatalf("VerificationURL: %v", err)
	}
	second, err := svc.VerificationURL(42)
	if err != nil {
		t.Fatalf("VerificationURL: %v", err)
	}
	if first != second {
		t.Fatalf("same input produced %q and %q", first, second)
	}
	if first != "https://pay.example.com/payment/verify/42?src=qr" {
		t.Fatalf("url = %q", first)
	}
}

func TestVerificationURL_TrailingSlash(t *testing.T) {
	svc := NewQRService("https://pay.example.com/", nil, nil)

	url, err := svc.VerificationURL(7)
	if err != nil {
		t.Fatalf("VerificationURL: %v", err)
	}
	if url != "https://pay.example.com/payment/verify/7?src=qr" {
		t.Fatalf("url = %q", url)
	}
}

func TestVerificationURL_MissingBase(t *testing.T) {
	svc := NewQRService("", nil, nil)

	_, err := svc.VerificationURL(1)
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
}

func TestRenderQR_ProducesDecodablePNG(t *testing.T) {
	svc := NewQRService("https://pay.example.com", nil, nil)

	data, err := svc.RenderQR("https://pay.example.com/payment/verify/1?src=qr")
	if err != nil {
		t.Fatalf("RenderQR: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a decodable PNG: %v", err)
	}
	if img.Bounds().Dx() == 0 {
		t.Error("empty image")
	}
}

func TestAssetChecksum_ChangesWithFields(t *testing.T) {
	p := &domain.Payment{ID: 1, Name: "PAY/1", Amount: 100, Partner: "Acme", State: domain.StateDraft, ShowQR: true}
	base := AssetChecksum(p)

	p.Amount = 200
	if AssetChecksum(p) == base {
		t.Error("checksum must change when the amount changes")
	}

	p.Amount = 100
	if AssetChecksum(p) != base {
		t.Error("checksum must be stable for identical fields")
	}
}

func TestEnsureAsset_CachesByChecksum(t *testing.T) {
	store := &fakeQRStore{}
	svc := NewQRService("https://pay.example.com", store, &fakeSettings{settings: domain.DefaultWorkflowSettings()})
	p := &domain.Payment{ID: 1, Name: "PAY/1", Amount: 100, Partner: "Acme", State: domain.StateUnderReview, ShowQR: true}

	encoded, err := svc.EnsureAsset(context.Background(), p)
	if err != nil {
		t.Fatalf("EnsureAsset: %v", err)
	}
	if encoded == "" {
		t.Fatal("expected an asset")
	}
	if store.updates != 1 {
		t.Fatalf("store updates = %d, want 1", store.updates)
	}
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		t.Fatalf("asset is not valid base64: %v", err)
	}

	// second call with unchanged fields hits the cached asset
	again, err := svc.EnsureAsset(context.Background(), p)
	if err != nil {
		t.Fatalf("EnsureAsset (cached): %v", err)
	}
	if again != encoded {
		t.Error("cached asset differs")
	}
	if store.updates != 1 {
		t.Fatalf("store updates = %d after cache hit, want 1", store.updates)
	}

	// changed dependency field invalidates the cache
	p.Amount = 500
	if _, err := svc.EnsureAsset(context.Background(), p); err != nil {
		t.Fatalf("EnsureAsset (stale): %v", err)
	}
	if store.updates != 2 {
		t.Fatalf("store updates = %d after invalidation, want 2", store.updates)
	}
}

// With enable_qr_verification off, no asset is rendered or stored, so the
// image endpoint and the voucher embed both come up empty.
func TestEnsureAsset_FeatureDisabled(t *testing.T) {
	store := &fakeQRStore{}
	settings := &fakeSettings{settings: domain.DefaultWorkflowSettings()}
	settings.settings.EnableQRVerification = false
	svc := NewQRService("https://pay.example.com", store, settings)
	p := &domain.Payment{ID: 1, Name: "PAY/1", Amount: 100, Partner: "Acme", State: domain.StatePosted, ShowQR: true}

	encoded, err := svc.EnsureAsset(context.Background(), p)
	if err != nil {
		t.Fatalf("EnsureAsset: %v", err)
	}
	if encoded != "" {
		t.Error("disabled verification must produce no asset")
	}
	if store.updates != 0 {
		t.Error("disabled verification must not touch the store")
	}
}

func TestEnsureAsset_SettingsErrorPropagates(t *testing.T) {
	store := &fakeQRStore{}
	settings := &fakeSettings{err: errors.New("settings table unavailable")}
	svc := NewQRService("https://pay.example.com", store, settings)
	p := &domain.Payment{ID: 1, ShowQR: true}

	if _, err := svc.EnsureAsset(context.Background(), p); err == nil {
		t.Fatal("expected the settings failure to surface")
	}
	if store.updates != 0 {
		t.Error("failed settings read must not touch the store")
	}
}

func TestEnsureAsset_SkipsHiddenQR(t *testing.T) {
	store := &fakeQRStore{}
	svc := NewQRService("https://pay.example.com", store, &fakeSettings{settings: domain.DefaultWorkflowSettings()})
	p := &domain.Payment{ID: 1, ShowQR: false}

	encoded, err := svc.EnsureAsset(context.Background(), p)
	if err != nil {
		t.Fatalf("EnsureAsset: %v", err)
	}
	if encoded != "" {
		t.Error("hidden QR must produce no asset")
	}
	if store.updates != 0 {
		t.Error("hidden QR must not touch the store")
	}
}
