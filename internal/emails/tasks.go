package emails

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/chilisaus/storefront-api/internal/common"
	"github.com/chilisaus/storefront-api/internal/obs"
)

// Task types processed by the mail worker.
const (
	TypeOrderReceipt = "email:order_receipt"
	TypeLowStock     = "email:low_stock"
)

// LowStockPayload is the body of a TypeLowStock task.
type LowStockPayload struct {
	ProductName string `json:"productName"`
	Stock       int    `json:"stock"`
}

// NewOrderReceiptTask builds an asynq task carrying the rendered-order data.
func NewOrderReceiptTask(data ReceiptData) (*asynq.Task, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("emails: encode receipt payload: %w", err)
	}
	return asynq.NewTask(TypeOrderReceipt, payload, asynq.MaxRetry(5)), nil
}

// NewLowStockTask builds an asynq task for a seller inventory alert.
func NewLowStockTask(p LowStockPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("emails: encode low stock payload: %w", err)
	}
	return asynq.NewTask(TypeLowStock, payload, asynq.MaxRetry(5)), nil
}

// Enqueuer submits email tasks to the Redis-backed queue.
type Enqueuer struct {
	Client *asynq.Client
	Logger zerolog.Logger
}

// EnqueueReceipt schedules the customer confirmation plus the seller
// packing slip for a settled order.
func (e *Enqueuer) EnqueueReceipt(ctx context.Context, data ReceiptData) error {
	if e == nil || e.Client == nil {
		return nil
	}
	task, err := NewOrderReceiptTask(data)
	if err != nil {
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("emails: enqueue receipt: %w", err)
	}
	e.Logger.Debug().Str("order_id", data.OrderID).Msg("receipt email enqueued")
	return nil
}

// EnqueueLowStock schedules a seller inventory alert.
func (e *Enqueuer) EnqueueLowStock(ctx context.Context, p LowStockPayload) error {
	if e == nil || e.Client == nil {
		return nil
	}
	task, err := NewLowStockTask(p)
	if err != nil {
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("emails: enqueue low stock alert: %w", err)
	}
	return nil
}

// Handler processes queued email tasks on the worker.
type Handler struct {
	Sender      common.EmailSender
	SellerEmail string
	Logger      zerolog.Logger
}

// Register attaches the handler to an asynq mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOrderReceipt, h.HandleOrderReceipt)
	mux.HandleFunc(TypeLowStock, h.HandleLowStock)
}

// HandleOrderReceipt renders and sends the customer confirmation and the
// seller packing slip.
func (h *Handler) HandleOrderReceipt(_ context.Context, task *asynq.Task) error {
	var data ReceiptData
	if err := json.Unmarshal(task.Payload(), &data); err != nil {
		return fmt.Errorf("emails: decode receipt payload: %w", err)
	}
	if h.Sender == nil {
		return nil
	}

	html, err := ReceiptHTML(data)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order Confirmation - %s", data.OrderID)
	if err := h.Sender.Send(data.CustomerEmail, subject, html); err != nil {
		h.countDelivery("receipt", "error")
		return fmt.Errorf("emails: send receipt: %w", err)
	}
	h.countDelivery("receipt", "ok")

	if h.SellerEmail != "" {
		slip, err := PackingSlipHTML(data)
		if err != nil {
			return err
		}
		if err := h.Sender.Send(h.SellerEmail, fmt.Sprintf("New Order - %s", data.OrderID), slip); err != nil {
			h.countDelivery("packing_slip", "error")
			return fmt.Errorf("emails: send packing slip: %w", err)
		}
		h.countDelivery("packing_slip", "ok")
	}
	h.Logger.Info().Str("order_id", data.OrderID).Msg("order emails sent")
	return nil
}

// HandleLowStock renders and sends a seller inventory alert.
func (h *Handler) HandleLowStock(_ context.Context, task *asynq.Task) error {
	var p LowStockPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("emails: decode low stock payload: %w", err)
	}
	if h.Sender == nil || h.SellerEmail == "" {
		return nil
	}
	html, err := LowStockHTML(p.ProductName, p.Stock)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Low Stock Alert: %s", p.ProductName)
	if err := h.Sender.Send(h.SellerEmail, subject, html); err != nil {
		h.countDelivery("low_stock", "error")
		return fmt.Errorf("emails: send low stock alert: %w", err)
	}
	h.countDelivery("low_stock", "ok")
	return nil
}

func (h *Handler) countDelivery(kind, result string) {
	if obs.EmailDeliveryTotal != nil {
		obs.EmailDeliveryTotal.WithLabelValues(kind, result).Inc()
	}
}
