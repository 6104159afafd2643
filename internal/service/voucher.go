package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"payment-approval/internal/clients"
	"payment-approval/internal/domain"
)

// VoucherService builds the printable voucher for a payment: a workbook with
// the payment fields, the stage actors, and the verification QR embedded.
type VoucherService struct {
	payments PaymentRepository
	qr       *QRService
	storage  *clients.StorageClient
	s3       *clients.S3Client
}

func NewVoucherService(payments PaymentRepository, qr *QRService, storage *clients.StorageClient, s3 *clients.S3Client) *VoucherService {
	return &VoucherService{payments: payments, qr: qr, storage: storage, s3: s3}
}

// Generate renders and stores the voucher, returning its public URL.
func (s *VoucherService) Generate(ctx context.Context, paymentID int64) (string, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return "", err
	}

	data, err := s.render(ctx, p)
	if err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("voucher_%d_%s.xlsx", p.ID, uuid.NewString())
	savedName, err := s.storage.Save(ctx, fileName, data)
	if err != nil {
		return "", &domain.StorageError{Op: "voucher save", Err: err}
	}

	if s.s3 != nil {
		if _, err := s.s3.UploadXLSX(ctx, savedName, data); err != nil {
			// archive copy is best-effort; the local file already serves
			log.Printf("[VOUCHER] s3 archive failed for payment %d: %v", p.ID, err)
		}
	}

	return s.storage.GetURL(savedName), nil
}

func (s *VoucherService) render(ctx context.Context, p *domain.Payment) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Voucher"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{Creator: "payment-approval"})

	_, label := StatusBadge(p.State)

	rows := [][]any{
		{"Payment Voucher", ""},
		{"Reference", p.Name},
		{"Partner", p.Partner},
		{"Amount", fmt.Sprintf("%.2f %s", p.Amount, p.Currency)},
		{"Direction", p.Direction},
		{"Company", p.Company},
		{"Status", label},
	}
	rows = append(rows, actorRows(p)...)
	rows = append(rows, []any{"Generated", time.Now().Format("2006-01-02 15:04:05")})

	for rowIdx, row := range rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			_ = f.SetCellValue(sheet, cell, val)
		}
	}

	if qrImage, err := s.qr.EnsureAsset(ctx, p); err == nil && qrImage != "" {
		if png, err := base64.StdEncoding.DecodeString(qrImage); err == nil {
			if err := f.AddPictureFromBytes(sheet, "D2", &excelize.Picture{
				Extension: ".png",
				File:      png,
				Format:    &excelize.GraphicOptions{ScaleX: 0.5, ScaleY: 0.5},
			}); err != nil {
				log.Printf("[VOUCHER] embed qr failed for payment %d: %v", p.ID, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func actorRows(p *domain.Payment) [][]any {
	var rows [][]any
	add := func(title string, id *int64, at *time.Time) {
		if id == nil {
			return
		}
		when := ""
		if at != nil {
			when = at.Format("2006-01-02 15:04")
		}
		rows = append(rows, []any{title, fmt.Sprintf("user %d  %s", *id, when)})
	}
	add("Reviewed by", p.ReviewerID, p.ReviewedAt)
	add("Approved by", p.ApproverID, p.ApprovedAt)
	add("Authorized by", p.AuthorizerID, p.AuthorizedAt)
	return rows
}
