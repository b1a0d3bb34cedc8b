package payment

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chilisaus/storefront-api/internal/common"
	"github.com/chilisaus/storefront-api/internal/emails"
	"github.com/chilisaus/storefront-api/internal/events"
	"github.com/chilisaus/storefront-api/internal/obs"
	"github.com/chilisaus/storefront-api/internal/order"
)

// EventCheckoutCompleted is the only provider event type that settles an
// order. Everything else is acknowledged and dropped.
const EventCheckoutCompleted = "checkout.session.completed"

const maxWebhookBody = 1 << 20

// LowStockAlert reports a product that crossed its restock threshold
// during settlement.
type LowStockAlert struct {
	Name  string
	Stock int
}

// Settlement is the durable result of processing a completed checkout.
type Settlement struct {
	Order    order.Order
	Items    []order.Item
	LowStock []LowStockAlert
}

// Settler persists a completed checkout as an order.
type Settler interface {
	Settle(ctx context.Context, details CheckoutDetails) (Settlement, error)
}

// MailEnqueuer schedules the transactional emails a settlement produces.
type MailEnqueuer interface {
	EnqueueReceipt(ctx context.Context, data emails.ReceiptData) error
	EnqueueLowStock(ctx context.Context, p emails.LowStockPayload) error
}

// Webhook receives provider payment notifications, guards against replays
// and hands completed checkouts to the settler.
type Webhook struct {
	Provider  Provider
	Replay    *redis.Client
	ReplayTTL time.Duration
	Settler   Settler
	Events    *events.Bus
	Mailer    MailEnqueuer
	TaxBps    int
	Logger    zerolog.Logger
}

func (h *Webhook) replayTTL() time.Duration {
	if h.ReplayTTL > 0 {
		return h.ReplayTTL
	}
	return 24 * time.Hour
}

// Handle processes a signed provider webhook. Replayed event ids are
// rejected with 409 so a mis-signed retry cannot double-settle.
func (h *Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Provider == nil || h.Settler == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "webhook handler not configured", nil)
		return
	}
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.count("read_error")
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to read payload", nil)
		return
	}
	event, err := h.Provider.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.count("invalid_signature")
		h.Logger.Warn().Err(err).Msg("webhook signature rejected")
		common.JSONError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "webhook signature verification failed", nil)
		return
	}
	if event.Type != EventCheckoutCompleted {
		h.count("ignored")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	replayKey := "wh:stripe:" + event.ID
	if h.Replay != nil {
		ok, err := h.Replay.SetNX(ctx, replayKey, 1, h.replayTTL()).Result()
		if err != nil {
			h.count("replay_check_error")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "replay guard unavailable", nil)
			return
		}
		if !ok {
			h.count("replay")
			common.JSONError(w, http.StatusConflict, "REPLAY", "event already processed", nil)
			return
		}
	}

	details, err := h.Provider.CheckoutDetails(ctx, event.SessionID)
	if err != nil {
		h.releaseReplay(ctx, replayKey)
		h.count("detail_error")
		h.Logger.Error().Err(err).Str("session_id", event.SessionID).Msg("checkout detail fetch failed")
		common.JSONError(w, http.StatusBadGateway, "PROVIDER_UNAVAILABLE", "unable to load checkout details", nil)
		return
	}

	settlement, err := h.Settler.Settle(ctx, details)
	if err != nil {
		h.releaseReplay(ctx, replayKey)
		h.count("settle_error")
		h.Logger.Error().Err(err).Str("session_id", event.SessionID).Msg("settlement failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settlement failed", nil)
		return
	}

	h.count("ok")
	if obs.OrderSettledTotal != nil {
		obs.OrderSettledTotal.Inc()
	}
	h.Logger.Info().
		Str("order_id", settlement.Order.ID.String()).
		Str("session_id", settlement.Order.SessionID).
		Int64("total_cents", settlement.Order.TotalCents).
		Msg("order settled")

	if h.Events != nil {
		if _, err := h.Events.Emit(ctx, events.TopicOrderPaid, settlement.Order.ID, map[string]any{
			"sessionId":  settlement.Order.SessionID,
			"totalCents": settlement.Order.TotalCents,
			"country":    settlement.Order.Country,
		}); err != nil {
			h.Logger.Warn().Err(err).Msg("order.paid notifiers reported failures")
		}
		if code := settlement.Order.VoucherCode; code != nil && *code != "" {
			if _, err := h.Events.Emit(ctx, events.TopicVoucherUsed, settlement.Order.ID, map[string]string{
				"code": *code,
			}); err != nil {
				h.Logger.Warn().Err(err).Msg("voucher.used notifiers reported failures")
			}
		}
	}
	h.enqueueMail(ctx, settlement)

	w.WriteHeader(http.StatusNoContent)
}

// enqueueMail schedules the receipt and any low stock alerts. Queue
// failures never fail the webhook, the order is already durable.
func (h *Webhook) enqueueMail(ctx context.Context, settlement Settlement) {
	if h.Mailer == nil {
		return
	}
	receipt := h.receiptData(settlement)
	if err := h.Mailer.EnqueueReceipt(ctx, receipt); err != nil {
		h.Logger.Error().Err(err).Str("order_id", settlement.Order.ID.String()).Msg("receipt enqueue failed")
		h.emitDeferred(ctx, settlement.Order.ID, "receipt")
	}
	for _, alert := range settlement.LowStock {
		if h.Events != nil {
			_, _ = h.Events.Emit(ctx, events.TopicStockLow, settlement.Order.ID, map[string]any{
				"product": alert.Name,
				"stock":   alert.Stock,
			})
		}
		if err := h.Mailer.EnqueueLowStock(ctx, emails.LowStockPayload{ProductName: alert.Name, Stock: alert.Stock}); err != nil {
			h.Logger.Error().Err(err).Str("product", alert.Name).Msg("low stock enqueue failed")
			h.emitDeferred(ctx, settlement.Order.ID, "low_stock")
		}
	}
}

func (h *Webhook) emitDeferred(ctx context.Context, orderID uuid.UUID, kind string) {
	if h.Events == nil {
		return
	}
	_, _ = h.Events.Emit(ctx, events.TopicEmailDeferred, orderID, map[string]string{"kind": kind})
}

func (h *Webhook) receiptData(settlement Settlement) emails.ReceiptData {
	items := make([]emails.ReceiptItem, 0, len(settlement.Items))
	for _, it := range settlement.Items {
		items = append(items, emails.ReceiptItem{Name: it.Name, Qty: it.Qty, PriceCents: it.UnitPriceCents})
	}
	return emails.ReceiptData{
		OrderID:       settlement.Order.ID.String(),
		CustomerEmail: settlement.Order.Email,
		Country:       settlement.Order.Country,
		Items:         items,
		SubtotalCents: settlement.Order.SubtotalCents,
		ShippingCents: settlement.Order.ShippingCents,
		TaxCents:      settlement.Order.TaxCents,
		TotalCents:    settlement.Order.TotalCents,
		TaxRateBps:    h.TaxBps,
	}
}

func (h *Webhook) releaseReplay(ctx context.Context, key string) {
	if h.Replay == nil {
		return
	}
	if err := h.Replay.Del(ctx, key).Err(); err != nil {
		h.Logger.Warn().Err(err).Str("key", key).Msg("replay key release failed")
	}
}

func (h *Webhook) count(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(result).Inc()
	}
}
