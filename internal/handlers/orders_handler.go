package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kandalvillage/posflow/internal/catalog"
	"github.com/kandalvillage/posflow/internal/checkout"
	"github.com/kandalvillage/posflow/internal/merge"
	"github.com/kandalvillage/posflow/internal/notify"
	"github.com/kandalvillage/posflow/internal/orders"
	"github.com/kandalvillage/posflow/internal/poll"
	"github.com/kandalvillage/posflow/internal/pricing"
	"github.com/kandalvillage/posflow/internal/store"
	"github.com/kandalvillage/posflow/internal/validation"
)

// HandlerConfig groups dependencies for the order API.
type HandlerConfig struct {
	Store    *store.Client
	Poller   *poll.Poller
	Checkout *checkout.Orchestrator
	Merger   *merge.Merger
	Kitchen  *notify.KitchenPublisher // nil disables kitchen tickets
}

// RegisterRoutes registers the order API routes.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	transitioner := orders.NewTransitioner(cfg.Store)
	reconciler := orders.NewReconciler(cfg.Store)

	r.POST("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		order, err := cfg.Store.CreateOrder(ctx, store.OrderCreate{
			TableName:         req.TableName,
			CustomerName:      req.CustomerName,
			OrderStatus:       orders.OrderPending,
			CreatedByUserName: req.CreatedBy,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.Header("Location", "/orders/"+order.DocumentID)
		c.JSON(http.StatusCreated, order)
	})

	r.GET("/orders", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pending": cfg.Poller.Pending(),
			"served":  cfg.Poller.Served(),
			"paid":    cfg.Poller.TodayPaid(),
		})
	})

	r.GET("/orders/:docID", func(c *gin.Context) {
		ctx := c.Request.Context()

		order, _, err := cfg.Store.LoadOrder(ctx, c.Param("docID"))
		if err != nil {
			writeError(c, err)
			return
		}
		if order == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.POST("/orders/:docID/rows", func(c *gin.Context) {
		ctx := c.Request.Context()
		orderDocID := c.Param("docID")

		var req validation.AddRowRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		order, err := cfg.Store.GetOrder(ctx, orderDocID)
		if err != nil {
			writeError(c, err)
			return
		}
		if order == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		if order.OrderStatus == orders.OrderPaid || order.OrderStatus == orders.OrderMerged {
			c.JSON(http.StatusConflict, gin.H{"error": "order_closed"})
			return
		}

		product, err := cfg.Store.GetProduct(ctx, req.ProductDocID)
		if err != nil {
			writeError(c, err)
			return
		}
		if product == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product_not_found"})
			return
		}

		subtotal, taxes := rowAmounts(product.Price, product.Vat, req.Quantity)
		row, err := cfg.Store.CreateOrderRow(ctx, store.RowCreate{
			Quantity:          req.Quantity,
			Subtotal:          subtotal,
			TaxesSubtotal:     taxes,
			OrderDocID:        orderDocID,
			ProductDocID:      req.ProductDocID,
			CategoryDocID:     req.CategoryDocID,
			Status:            orders.RowPending,
			CreatedByUserName: req.CreatedBy,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		if row.OrderDocID == "" {
			row.OrderDocID = orderDocID
		}

		notifyKitchen(ctx, cfg, c.GetHeader("X-Request-Id"), row, product, req)

		c.JSON(http.StatusCreated, row)
	})

	r.PUT("/order-rows/:docID/status", func(c *gin.Context) {
		ctx := c.Request.Context()
		rowDocID := c.Param("docID")

		var req validation.RowStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		row, err := cfg.Store.GetOrderRow(ctx, rowDocID)
		if err != nil {
			writeError(c, err)
			return
		}
		if row == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_row_not_found"})
			return
		}

		if err := transitioner.Transition(ctx, row, orders.RowStatus(req.Status), req.UpdatedBy); err != nil {
			writeError(c, err)
			return
		}

		// derive the parent order's status from its rows
		orderStatus := ""
		if row.OrderDocID != "" {
			parent, _, loadErr := cfg.Store.LoadOrder(ctx, row.OrderDocID)
			if loadErr != nil {
				log.Printf("[handlers] reload order %s after row transition: %v", row.OrderDocID, loadErr)
			} else if parent != nil {
				if _, recErr := reconciler.Reconcile(ctx, parent); recErr != nil {
					log.Printf("[handlers] reconcile order %s: %v", parent.DocumentID, recErr)
				}
				orderStatus = string(parent.OrderStatus)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"row":         row,
			"orderStatus": orderStatus,
		})
	})

	r.GET("/orders/:docID/merge-candidates", func(c *gin.Context) {
		ctx := c.Request.Context()

		candidates, err := cfg.Merger.Candidates(ctx, c.Param("docID"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"candidates": candidates})
	})

	r.POST("/orders/:docID/merge", func(c *gin.Context) {
		ctx := c.Request.Context()
		destDocID := c.Param("docID")

		var req validation.MergeRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if req.SourceDocID == destDocID {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cannot_merge_order_into_itself"})
			return
		}

		dest, err := cfg.Store.GetOrder(ctx, destDocID)
		if err != nil {
			writeError(c, err)
			return
		}
		if dest == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		if dest.OrderStatus == orders.OrderPaid || dest.OrderStatus == orders.OrderMerged {
			c.JSON(http.StatusConflict, gin.H{"error": "order_closed"})
			return
		}

		merged, _, err := cfg.Merger.Merge(ctx, dest, req.SourceDocID, c.GetHeader("X-User-Name"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, merged)
	})

	r.POST("/orders/:docID/quote", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.QuoteRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		totals, priced, err := cfg.Checkout.Quote(ctx, c.Param("docID"), toDiscountSet(req.Discounts))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, quoteResponse(totals, priced, req.Discounts))
	})

	r.POST("/orders/:docID/checkout", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		idempKey := c.GetHeader("Idempotency-Key")
		if idempKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
			return
		}

		receipt, err := cfg.Checkout.Pay(
			ctx,
			c.Param("docID"),
			orders.PaymentMethod(req.PaymentMethod),
			toDiscountSet(req.Discounts),
			idempKey,
			req.ProcessedBy,
		)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, receipt)
	})

	r.GET("/categories", func(c *gin.Context) {
		ctx := c.Request.Context()

		categories, err := cfg.Store.ListCategories(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	})
}

// notifyKitchen publishes a ticket for food rows. Best-effort: the row is
// already persisted, so a queue failure only costs the printout.
func notifyKitchen(ctx context.Context, cfg HandlerConfig, requestID string, row *orders.OrderRow, product *catalog.Product, req validation.AddRowRequest) {
	if cfg.Kitchen == nil || req.CategoryDocID == "" {
		return
	}
	category, err := cfg.Store.GetCategory(ctx, req.CategoryDocID)
	if err != nil {
		log.Printf("[handlers] resolve category %s: %v", req.CategoryDocID, err)
		return
	}
	if category == nil || !category.IsFood {
		return
	}

	if requestID == "" {
		requestID = uuid.NewString()
	}
	ticket := notify.Ticket{
		OrderDocID:    row.OrderDocID,
		RowDocID:      row.DocumentID,
		ProductDocID:  row.ProductDocID,
		ProductName:   product.Name,
		Quantity:      row.Quantity,
		PlacedBy:      req.CreatedBy,
		PlacedAt:      time.Now().UTC(),
		CorrelationID: requestID,
	}
	if err := cfg.Kitchen.PublishTicket(ctx, ticket); err != nil {
		log.Printf("[handlers] kitchen ticket row=%s: %v", row.DocumentID, err)
	}
}

// quoteResponse renders a totals preview: amounts as 2-decimal strings, the
// riel figure whole, plus the per-line discounted prices.
func quoteResponse(totals pricing.Totals, priced []pricing.PricedRow, d validation.DiscountPayload) gin.H {
	lines := make([]gin.H, 0, len(priced))
	for _, pr := range priced {
		lines = append(lines, gin.H{
			"rowDocId":  pr.Row.DocumentID,
			"quantity":  pr.Row.Quantity,
			"unitPrice": pr.UnitPrice.StringFixed(2),
			"subtotal":  pr.Subtotal.StringFixed(2),
			"taxes":     pr.Taxes.StringFixed(2),
		})
	}
	return gin.H{
		"base":            totals.Base.StringFixed(2),
		"taxes":           totals.Taxes.StringFixed(2),
		"net":             totals.Net.StringFixed(2),
		"final":           totals.Final.StringFixed(2),
		"refinedUSD":      totals.RefinedUSD.StringFixed(2),
		"riel":            totals.Riel.StringFixed(0),
		"refinedRiel":     totals.RefinedRiel.StringFixed(0),
		"discountSummary": toDiscountSet(d).Summary(),
		"rows":            lines,
	}
}

func toDiscountSet(d validation.DiscountPayload) pricing.DiscountSet {
	set := pricing.DiscountSet{
		KhmerCustomer:       d.KhmerCustomer,
		CBACMembers:         d.CBACMembers,
		KandalVillageFriend: d.KandalVillageFriend,
	}
	if d.Custom != nil && d.Custom.Value > 0 {
		set.Custom = pricing.CustomDiscount{
			Value: decimal.NewFromFloat(d.Custom.Value),
			Type:  pricing.CustomDiscountType(d.Custom.Type),
		}
	}
	return set
}

// rowAmounts computes the stored 2-decimal subtotal and embedded VAT for a
// new row at full menu price.
func rowAmounts(price, vat float64, quantity int) (subtotal, taxes float64) {
	p := decimal.NewFromFloat(price)
	sub := p.Mul(decimal.NewFromInt(int64(quantity)))
	tax := decimal.Zero
	if vat > 0 {
		rate := decimal.NewFromFloat(vat).Div(decimal.NewFromInt(100))
		tax = sub.Sub(sub.Div(decimal.NewFromInt(1).Add(rate)))
	}
	subtotal, _ = sub.Round(2).Float64()
	taxes, _ = tax.Round(2).Float64()
	return subtotal, taxes
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
	case errors.Is(err, checkout.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
	case errors.Is(err, checkout.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"error": "order_already_paid"})
	case errors.Is(err, checkout.ErrOrderMerged):
		c.JSON(http.StatusConflict, gin.H{"error": "order_merged"})
	case errors.Is(err, checkout.ErrNothingToPay):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no_payable_rows"})
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "checkout_in_progress"})
	case errors.Is(err, orders.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "illegal_status_transition"})
	case errors.Is(err, merge.ErrSourceEmpty):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "merge_source_empty"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "detail": err.Error()})
	}
}

