package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"payment-approval/internal/clients"
	"payment-approval/internal/domain"
	"payment-approval/internal/repository"
)

type VerificationExportSource interface {
	List(ctx context.Context, f repository.VerificationsFilter) ([]domain.VerificationRecord, error)
}

type ExportStatus struct {
	Key      string                 `json:"key"`
	Type     string                 `json:"type"`
	UserID   int64                  `json:"user_id"`
	Filters  map[string]interface{} `json:"filters"`
	Progress float64                `json:"progress"`
	FileURL  *string                `json:"file_url"`
	Error    *string                `json:"error,omitempty"`
	Created  time.Time              `json:"created"`
}

const (
	exportKeyPrefix = "exports:"
	exportSetKey    = "export_ids"
	exportTTL       = 20 * time.Minute

	maxVerificationsForExport = 500_000
)

type verificationColumn struct {
	Header string
	Value  func(r domain.VerificationRecord) any
}

var verificationColumns = map[string]verificationColumn{
	"id":         {Header: "ID", Value: func(r domain.VerificationRecord) any { return r.ID }},
	"payment_id": {Header: "Payment ID", Value: func(r domain.VerificationRecord) any { return r.PaymentID }},
	"code":       {Header: "Code", Value: func(r domain.VerificationRecord) any { return r.Code }},
	"ip_address": {Header: "IP Address", Value: func(r domain.VerificationRecord) any { return r.IPAddress }},
	"method":     {Header: "Method", Value: func(r domain.VerificationRecord) any { return r.Method }},
	"outcome":    {Header: "Outcome", Value: func(r domain.VerificationRecord) any { return r.Outcome }},
	"created_at": {Header: "Verified At", Value: func(r domain.VerificationRecord) any {
		return r.CreatedAt.Format("2006-01-02 15:04:05")
	}},
}

var defaultVerificationFields = []string{"id", "payment_id", "code", "ip_address", "method", "outcome", "created_at"}

// ExportService runs verification-log exports in the background. Status lives
// in redis keyed by export id; the websocket hub pushes progress so the client
// does not have to poll.
type ExportService struct {
	source  VerificationExportSource
	redis   *clients.RedisClient
	storage *clients.StorageClient
	ws      *clients.WebSocketClient
}

func NewExportService(source VerificationExportSource, redis *clients.RedisClient, storage *clients.StorageClient, ws *clients.WebSocketClient) *ExportService {
	return &ExportService{source: source, redis: redis, storage: storage, ws: ws}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

// StartVerificationsExport queues a background export and returns its id.
// The returned id is the bare uuid the status endpoints take back; the
// "exports:" redis key prefix stays internal.
func (s *ExportService) StartVerificationsExport(ctx context.Context, selected []string, filter repository.VerificationsFilter, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = defaultVerificationFields
	}

	exportID := uuid.NewString()
	key := exportKeyPrefix + exportID
	now := time.Now()

	status := &ExportStatus{
		Key:      key,
		Type:     "verifications",
		UserID:   userID,
		Filters:  buildVerificationsFiltersMap(filter, selected),
		Progress: 0,
		FileURL:  nil,
		Created:  now,
	}

	_ = s.saveStatus(ctx, status)

	go s.runVerificationsExport(context.Background(), key, selected, filter, userID, now)

	return exportID, nil
}

func (s *ExportService) runVerificationsExport(ctx context.Context, key string, selected []string, filter repository.VerificationsFilter, userID int64, createdAt time.Time) {
	exportID := strings.TrimPrefix(key, exportKeyPrefix)
	status := &ExportStatus{
		Key:      key,
		Type:     "verifications",
		UserID:   userID,
		Filters:  buildVerificationsFiltersMap(filter, selected),
		Progress: 0,
		FileURL:  nil,
		Created:  createdAt,
	}

	fail := func(errStr string) {
		log.Printf("[EXPORT] %s: %s", key, errStr)
		status.Error = &errStr
		status.Progress = 100
		_ = s.saveStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
		}
	}

	records, err := s.source.List(ctx, filter)
	if err != nil {
		fail(fmt.Sprintf("load verifications failed: %v", err))
		return
	}
	if len(records) > maxVerificationsForExport {
		fail(fmt.Sprintf("too many verification records to export (over %d)", maxVerificationsForExport))
		return
	}

	var cols []verificationColumn
	for _, key := range selected {
		col, ok := verificationColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		fail("no known columns selected")
		return
	}

	f := excelize.NewFile()
	sheet := "Verifications"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(records)
	rowIdx := 2
	chunkSize := 1000
	for i, rec := range records {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(rec))
		}
		rowIdx++

		if (i+1)%chunkSize == 0 || i == total-1 {
			raw := float64(i+1) / float64(total) * 100.0
			progress := math.Round(raw)
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = s.saveStatus(ctx, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, userID, exportID, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		fail(fmt.Sprintf("write workbook failed: %v", err))
		return
	}
	data := buf.Bytes()

	fileName := fmt.Sprintf("verifications_%s.xlsx", time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 95, "uploading")
	}

	savedName, err := s.storage.Save(ctx, fileName, data)
	if err != nil {
		fail(fmt.Sprintf("save export failed: %v", err))
		return
	}

	url := s.storage.GetURL(savedName)
	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, userID, exportID, url, fileName)
	}
}

func (s *ExportService) GetExports(ctx context.Context, userID int64) ([]interface{}, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}

		var status ExportStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}

		if status.UserID == userID {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	var exports []interface{}
	for _, status := range statuses {
		exports = append(exports, exportMap(status))
	}
	return exports, nil
}

// GetExport resolves the bare id handed out by StartVerificationsExport.
func (s *ExportService) GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, exportKeyPrefix+exportID)
	if err != nil {
		return nil, errors.New("export not found")
	}

	var status ExportStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}

	if status.UserID != userID {
		return nil, errors.New("export not found")
	}

	return exportMap(status), nil
}

// exportMap shapes a status for the API: clients see the bare id they can
// feed back to GET /exports/{id}, never the redis key.
func exportMap(status ExportStatus) map[string]interface{} {
	return map[string]interface{}{
		"id":         strings.TrimPrefix(status.Key, exportKeyPrefix),
		"type":       status.Type,
		"user_id":    status.UserID,
		"progress":   status.Progress,
		"file_url":   status.FileURL,
		"error":      status.Error,
		"filters":    status.Filters,
		"created_at": humanizeAgo(status.Created),
	}
}

func humanizeAgo(t time.Time) string {
	now := time.Now()
	if t.After(now) {
		return "just now"
	}

	diff := now.Sub(t)
	minutes := int(diff.Minutes())
	if minutes < 1 {
		return "just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d h ago", hours)
	}
	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("%d d ago", days)
	}
	return t.Format("2006-01-02 15:04")
}

func buildVerificationsFiltersMap(f repository.VerificationsFilter, fields []string) map[string]interface{} {
	m := map[string]interface{}{}
	if f.PaymentID != nil {
		m["payment_id"] = *f.PaymentID
	} else {
		m["payment_id"] = nil
	}
	if f.Method != nil {
		m["method"] = *f.Method
	} else {
		m["method"] = nil
	}
	if f.Outcome != nil {
		m["outcome"] = *f.Outcome
	} else {
		m["outcome"] = nil
	}
	if f.From != nil {
		m["from"] = f.From.Format("2006-01-02")
	} else {
		m["from"] = nil
	}
	if f.To != nil {
		m["to"] = f.To.Format("2006-01-02")
	} else {
		m["to"] = nil
	}
	m["fields"] = fields
	return m
}
