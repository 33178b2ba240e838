package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/mapper"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

type paymentService interface {
	PaymentMethods(ctx context.Context, actor *auth.Actor) (*service.PaymentMethodsResult, error)
	GetOrder(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error)
	GetPaymentStatus(ctx context.Context, orderID string) (*entity.Order, error)
	TopupBalance(ctx context.Context, actor *auth.Actor, amount decimal.Decimal, method string) (*entity.Order, error)
	GetBalance(ctx context.Context, actor *auth.Actor) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, actor *auth.Actor, txnType string, page, limit int32) ([]*entity.BalanceTransaction, int64, error)
	AdminAdjustBalance(ctx context.Context, actor *auth.Actor, userID string, amount decimal.Decimal, description string) (*entity.BalanceTransaction, error)
}

type PaymentController struct {
	paymentService paymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService paymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Methods(ctx echo.Context) error {
	result, err := c.paymentService.PaymentMethods(ctx.Request().Context(), auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, "Payment methods", err)
	}

	return ctx.JSON(http.StatusOK, mapper.MethodsToResponse(result.Groups, result.Balance))
}

func (c *PaymentController) PaymentStatus(ctx echo.Context) error {
	req, err := types.NewOrderIDRequestFromContext(ctx, "orderId")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.paymentService.GetOrder(reqCtx, req.ID, auth.ActorFromContext(ctx)); err != nil {
		return writeServiceError(ctx, c.logger, "Payment status", err)
	}
	item, err := c.paymentService.GetPaymentStatus(reqCtx, req.ID)
	if err != nil {
		return writeServiceError(ctx, c.logger, "Payment status", err)
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentStatusToResponse(item))
}

func (c *PaymentController) Topup(ctx echo.Context) error {
	req, err := types.NewTopupRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.TopupBalance(ctx.Request().Context(), auth.ActorFromContext(ctx), req.Amount, req.PaymentMethod)
	if err != nil {
		return writeServiceError(ctx, c.logger, "Top up", err)
	}

	return ctx.JSON(http.StatusCreated, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *PaymentController) Balance(ctx echo.Context) error {
	balance, err := c.paymentService.GetBalance(ctx.Request().Context(), auth.ActorFromContext(ctx))
	if err != nil {
		return writeServiceError(ctx, c.logger, "Get balance", err)
	}

	return ctx.JSON(http.StatusOK, &types.BalanceResponse{Balance: balance.StringFixed(0)})
}

func (c *PaymentController) Transactions(ctx echo.Context) error {
	req, err := types.NewListTransactionsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, total, err := c.paymentService.ListTransactions(ctx.Request().Context(), auth.ActorFromContext(ctx), req.Type, req.GetPage(), req.GetLimit())
	if err != nil {
		return writeServiceError(ctx, c.logger, "List transactions", err)
	}

	return ctx.JSON(http.StatusOK, &types.ListTransactionsResponse{
		Transactions: mapper.TransactionsToResponse(items),
		Pagination:   types.NewPagination(req.GetPage(), req.GetLimit(), total),
	})
}

func (c *PaymentController) AdjustBalance(ctx echo.Context) error {
	req, err := types.NewAdjustBalanceRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	txn, err := c.paymentService.AdminAdjustBalance(ctx.Request().Context(), auth.ActorFromContext(ctx), req.UserID, req.Amount, req.Description)
	if err != nil {
		return writeServiceError(ctx, c.logger, "Adjust balance", err)
	}

	return ctx.JSON(http.StatusOK, &types.TransactionEnvelopeResponse{Transaction: mapper.TransactionToResponse(txn)})
}
