package clients

import (
	"context"
	"fmt"

	"payment-approval/internal/domain"
	ws "payment-approval/internal/transport/websocket"
)

// WebSocketClient pushes approval and export notifications to connected users.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

// NotifyApprovalPending tells a user that a payment is waiting on them.
func (c *WebSocketClient) NotifyApprovalPending(
	ctx context.Context,
	userID int64,
	payment *domain.Payment,
	role domain.StageRole,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("notify_user_of_pending_approval#%d", userID)
	message := &ws.Message{
		Event:   ws.EventApprovalPending,
		Channel: channel,
		Data: map[string]interface{}{
			"payment_id": payment.ID,
			"name":       payment.Name,
			"amount":     payment.Amount,
			"currency":   payment.Currency,
			"state":      string(payment.State),
			"role":       string(role),
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

// NotifyApprovalComplete tells a stage actor the payment cleared all stages.
func (c *WebSocketClient) NotifyApprovalComplete(
	ctx context.Context,
	userID int64,
	payment *domain.Payment,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("notify_user_of_approval_complete#%d", userID)
	message := &ws.Message{
		Event:   ws.EventApprovalComplete,
		Channel: channel,
		Data: map[string]interface{}{
			"payment_id": payment.ID,
			"name":       payment.Name,
			"state":      string(payment.State),
			"user_id":    userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

// NotifyApprovalRejected tells a stage actor the payment was rejected.
func (c *WebSocketClient) NotifyApprovalRejected(
	ctx context.Context,
	userID int64,
	payment *domain.Payment,
	reason string,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("notify_user_of_approval_rejected#%d", userID)
	message := &ws.Message{
		Event:   ws.EventApprovalRejected,
		Channel: channel,
		Data: map[string]interface{}{
			"payment_id": payment.ID,
			"name":       payment.Name,
			"reason":     reason,
			"user_id":    userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

// NotifyExportProgress reports verification-log export progress.
func (c *WebSocketClient) NotifyExportProgress(
	ctx context.Context,
	userID int64,
	exportID string,
	progress float64,
	stage string,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("notify_user_of_progress_export#%d", userID)
	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	message := &ws.Message{
		Event:   ws.EventExportProgress,
		Channel: channel,
		Data:    data,
	}

	c.hub.Broadcast(userID, message)
	return nil
}

// NotifyExportComplete reports a finished export with its download URL.
func (c *WebSocketClient) NotifyExportComplete(
	ctx context.Context,
	userID int64,
	exportID string,
	url string,
	filename string,
) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("notify_user_when_export_complete#%d", userID)
	message := &ws.Message{
		Event:   ws.EventExportComplete,
		Channel: channel,
		Data: map[string]interface{}{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}

// NotifyExportFailed reports a failed export with the error message.
func (c *WebSocketClient) NotifyExportFailed(ctx context.Context, userID int64, exportID string, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	channel := fmt.Sprintf("notify_user_when_export_failed#%d", userID)
	message := &ws.Message{
		Event:   ws.EventExportFailed,
		Channel: channel,
		Data: map[string]interface{}{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	}

	c.hub.Broadcast(userID, message)
	return nil
}
