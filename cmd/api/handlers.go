package main

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/pharmacy-inventory/internal/application"
	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/internal/infrastructure/report"
	"github.com/wms-platform/pharmacy-inventory/pkg/api"
	apperrors "github.com/wms-platform/pharmacy-inventory/pkg/errors"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
	"github.com/wms-platform/pharmacy-inventory/pkg/metrics"
	"github.com/wms-platform/pharmacy-inventory/pkg/middleware"
)

// services bundles what the HTTP handlers need
type services struct {
	orders      *application.PurchaseOrderService
	products    *application.ProductService
	alerts      *application.AlertService
	adjustments *application.StockAdjustmentService
	reports     *application.ReportService
	coordinator *application.RefreshCoordinator
	metrics     *metrics.Metrics
	ready       func() error
	corsOrigins []string
}

func setupRouter(svc *services, logger *logging.Logger) *gin.Engine {
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middlewareConfig.CORSOrigins = svc.corsOrigins
	middleware.Setup(router, middlewareConfig)
	if svc.metrics != nil {
		router.Use(middleware.MetricsMiddleware(svc.metrics))
	}

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, svc.ready))
	if svc.metrics != nil {
		router.GET("/metrics", middleware.MetricsEndpoint(svc.metrics))
	}

	v1 := router.Group("/api/v1")
	{
		orders := v1.Group("/purchase-orders")
		{
			orders.GET("", listPurchaseOrdersHandler(svc.orders, logger))
			orders.GET("/counts", purchaseOrderCountsHandler(svc.orders))
			orders.GET("/:id", getPurchaseOrderHandler(svc.orders, logger))
			orders.POST("/:id/lines/:lineId/received-quantity", updateReceivedQuantityHandler(svc.orders, logger))
			orders.POST("/:id/lines/:lineId/receive", receiveLineHandler(svc.orders, logger))
			orders.POST("/:id/lines/:lineId/return", returnLineHandler(svc.orders, logger))
		}

		products := v1.Group("/products")
		{
			products.GET("", listProductsHandler(svc.products, logger))
			products.GET("/categories", listCategoriesHandler(svc.products))
		}

		alerts := v1.Group("/alerts")
		{
			alerts.GET("", getAlertsHandler(svc.alerts, logger))
			alerts.POST("/:key/dismiss", dismissAlertHandler(svc.alerts, logger))
		}

		v1.DELETE("/sessions/current", endSessionHandler(svc.alerts, logger))
		v1.POST("/stock-adjustments", submitStockAdjustmentHandler(svc.adjustments, logger))
		v1.POST("/refresh", refreshHandler(svc.coordinator, svc.reports, logger))
		v1.GET("/dashboard", dashboardHandler(svc.reports))
		v1.GET("/reports/inventory", inventoryReportHandler(svc.reports, logger))
	}

	return router
}

// Purchase order handlers

func listPurchaseOrdersHandler(service *application.PurchaseOrderService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		filter := api.ParseFilter(c)
		result, err := service.ListPurchaseOrders(c.Request.Context(), application.ListPurchaseOrdersQuery{
			Status:   filter.Status,
			Search:   filter.Search,
			DateFrom: filter.DateFrom,
			DateTo:   filter.DateTo,
			Page:     api.ParsePagination(c, api.DefaultPageSize),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func purchaseOrderCountsHandler(service *application.PurchaseOrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, service.Counts(c.Request.Context()))
	}
}

func getPurchaseOrderHandler(service *application.PurchaseOrderService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		header, err := service.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, header)
	}
}

func updateReceivedQuantityHandler(service *application.PurchaseOrderService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ReceivedQty *int `json:"receivedQty" binding:"required,min=0"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.UpdateReceivedQuantity(c.Request.Context(), application.UpdateReceivedQuantityCommand{
			PurchaseOrderID: c.Param("id"),
			LineID:          c.Param("lineId"),
			ReceivedQty:     *req.ReceivedQty,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func receiveLineHandler(service *application.PurchaseOrderService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.ReceiveLine(c.Request.Context(), application.ReceiveLineCommand{
			PurchaseOrderID: c.Param("id"),
			LineID:          c.Param("lineId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func returnLineHandler(service *application.PurchaseOrderService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason string `json:"reason" binding:"required,max=500,safe_string"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.ReturnLine(c.Request.Context(), application.ReturnLineCommand{
			PurchaseOrderID: c.Param("id"),
			LineID:          c.Param("lineId"),
			Reason:          req.Reason,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// Product handlers

func listProductsHandler(service *application.ProductService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		screen, appErr := bindScreen(c, "")
		if appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		filter := api.ParseFilter(c)
		result, err := service.ListProducts(c.Request.Context(), application.ListProductsQuery{
			Search:   filter.Search,
			Category: filter.Category,
			Alert:    filter.Alert,
			Screen:   screen,
			Page:     api.ParsePagination(c, api.DefaultPageSize),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func listCategoriesHandler(service *application.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"categories": service.Categories(c.Request.Context())})
	}
}

// Alert handlers

func getAlertsHandler(service *application.AlertService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		screen, appErr := bindScreen(c, application.DashboardScreen)
		if appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		view, err := service.AlertsForSession(c.Request.Context(), middleware.GetSessionID(c), screen)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, view)
	}
}

func dismissAlertHandler(service *application.AlertService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		screen, appErr := bindScreen(c, application.DashboardScreen)
		if appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		if c.Request.ContentLength > 0 {
			var req struct {
				Screen string `json:"screen" binding:"omitempty,slug"`
			}
			if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
				responder.RespondWithAppError(appErr)
				return
			}
			if req.Screen != "" {
				screen = req.Screen
			}
		}

		record, err := service.Dismiss(c.Request.Context(), application.DismissAlertCommand{
			SessionID: middleware.GetSessionID(c),
			AlertKey:  c.Param("key"),
			Screen:    screen,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, record)
	}
}

func endSessionHandler(service *application.AlertService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		if err := service.EndSession(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
			responder.RespondWithError(err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

type screenQuery struct {
	Screen string `form:"screen" json:"screen" binding:"omitempty,max=64,slug"`
}

// bindScreen reads the optional screen query parameter. Screens are slugs
// since they key per-session state and metric labels.
func bindScreen(c *gin.Context, fallback string) (string, *apperrors.AppError) {
	var query screenQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return "", apperrors.ErrValidationWithFields("invalid screen", middleware.ValidationErrorFormatter(err))
	}
	if query.Screen == "" {
		return fallback, nil
	}
	return query.Screen, nil
}

// Stock adjustment handler

func submitStockAdjustmentHandler(service *application.StockAdjustmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		// Field rules live in domain.StockAdjustment.Validate
		var req struct {
			ProductID      string `json:"productId"`
			QuantityChange int    `json:"quantityChange"`
			AdjustmentType string `json:"adjustmentType"`
			Reason         string `json:"reason" binding:"max=500,safe_string"`
			AdjustedBy     string `json:"adjustedBy" binding:"max=100,safe_string"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		adjustment := domain.StockAdjustment{
			ProductID:      req.ProductID,
			QuantityChange: req.QuantityChange,
			Type:           domain.AdjustmentType(req.AdjustmentType),
			Reason:         req.Reason,
			AdjustedBy:     req.AdjustedBy,
		}
		if err := service.Submit(c.Request.Context(), application.SubmitStockAdjustmentCommand{Adjustment: adjustment}); err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "accepted", "adjustment": adjustment})
	}
}

// Refresh, dashboard and report handlers

func refreshHandler(coordinator *application.RefreshCoordinator, reports *application.ReportService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		ctx := c.Request.Context()
		var err error
		if resource := c.Query("resource"); resource != "" {
			err = coordinator.RefreshResource(ctx, resource, application.TriggerManual)
		} else {
			err = coordinator.RefreshAll(ctx, application.TriggerManual)
		}
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"mode":        coordinator.Mode(),
			"controllers": reports.Dashboard(ctx).Controllers,
		})
	}
}

func dashboardHandler(service *application.ReportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, service.Dashboard(c.Request.Context()))
	}
}

func inventoryReportHandler(service *application.ReportService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		screen, appErr := bindScreen(c, "")
		if appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.InventoryReport(c.Request.Context(), application.InventoryReportQuery{
			Category: c.Query("category"),
			Alert:    c.Query("alert"),
			Screen:   screen,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		switch c.DefaultQuery("format", "json") {
		case "json":
			c.JSON(http.StatusOK, result)
		case "xlsx":
			var buf bytes.Buffer
			if err := report.WriteInventoryXLSX(&buf, result); err != nil {
				responder.RespondWithError(err)
				return
			}
			filename := fmt.Sprintf("inventory-%s.xlsx", result.GeneratedAt.Format("2006-01-02"))
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
			c.Data(http.StatusOK, report.ContentTypeXLSX, buf.Bytes())
		default:
			responder.RespondBadRequest("format must be json or xlsx")
		}
	}
}
