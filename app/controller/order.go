package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/mapper"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

type orderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*entity.Order, error)
	GetOrder(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string, actor *auth.Actor) (*entity.Order, error)
	ListUserOrders(ctx context.Context, actor *auth.Actor, status string, page, limit int32) ([]*entity.Order, int64, error)
	CheckOrderStatus(ctx context.Context, orderID string) (*entity.Order, error)
	CancelOrder(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error)
	AdminRefundOrder(ctx context.Context, orderID string, actor *auth.Actor) (*entity.Order, error)
	AdminRetryOrder(ctx context.Context, orderID string, actor *auth.Actor) (*entity.Order, error)
}

type OrderController struct {
	orderService orderService
	logger       logrus.FieldLogger
}

func NewOrderController(orderService orderService) *OrderController {
	return &OrderController{
		orderService: orderService,
		logger:       factory.NewModuleLogger("orders-controller"),
	}
}

func (c *OrderController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *OrderController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.orderService.CreateOrder(ctx.Request().Context(), service.CreateOrderInput{
		ProductID:     req.ProductID,
		TargetID:      req.TargetID,
		TargetServer:  req.TargetServer,
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
		Email:         req.Email,
		Actor:         auth.ActorFromContext(ctx),
		IPAddress:     ctx.RealIP(),
		UserAgent:     ctx.Request().UserAgent(),
	})
	if err != nil {
		return writeServiceError(ctx, c.logger, "Create order", err)
	}

	return ctx.JSON(http.StatusCreated, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *OrderController) GetOrder(ctx echo.Context) error {
	req, err := types.NewOrderIDRequestFromContext(ctx, "id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.orderService.GetOrder(ctx.Request().Context(), req.ID, auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, "Get order", err)
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *OrderController) TrackOrder(ctx echo.Context) error {
	req, err := types.NewTrackOrderRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.orderService.GetOrderByNumber(ctx.Request().Context(), req.OrderNumber, auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, "Track order", err)
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *OrderController) ListOrders(ctx echo.Context) error {
	req, err := types.NewListOrdersRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, total, err := c.orderService.ListUserOrders(ctx.Request().Context(), auth.ActorFromContext(ctx), req.Status, req.GetPage(), req.GetLimit())
	if err != nil {
		return writeServiceError(ctx, c.logger, "List orders", err)
	}

	return ctx.JSON(http.StatusOK, &types.ListOrdersResponse{
		Orders:     mapper.OrdersToResponse(items),
		Pagination: types.NewPagination(req.GetPage(), req.GetLimit(), total),
	})
}

// OrderStatus polls the provider for a processing order the caller may view.
func (c *OrderController) OrderStatus(ctx echo.Context) error {
	req, err := types.NewOrderIDRequestFromContext(ctx, "id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.orderService.GetOrder(reqCtx, req.ID, auth.ActorFromContext(ctx)); err != nil {
		return writeServiceError(ctx, c.logger, "Order status", err)
	}
	item, err := c.orderService.CheckOrderStatus(reqCtx, req.ID)
	if err != nil {
		return writeServiceError(ctx, c.logger, "Order status", err)
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *OrderController) CancelOrder(ctx echo.Context) error {
	req, err := types.NewOrderIDRequestFromContext(ctx, "id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.orderService.CancelOrder(ctx.Request().Context(), req.ID, auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, "Cancel order", err)
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *OrderController) RefundOrder(ctx echo.Context) error {
	req, err := types.NewOrderIDRequestFromContext(ctx, "id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.orderService.AdminRefundOrder(ctx.Request().Context(), req.ID, auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, "Refund order", err)
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *OrderController) RetryOrder(ctx echo.Context) error {
	req, err := types.NewOrderIDRequestFromContext(ctx, "id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.orderService.AdminRetryOrder(ctx.Request().Context(), req.ID, auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, "Retry order", err)
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}
