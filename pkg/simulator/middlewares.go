package simulator

import (
	"time"

	"github.com/go-kit/kit/log"

	"context"

	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/merchant"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger log.Logger
}

func (mw loggingMiddleware) Health(ctx context.Context) (healthy bool) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "Health",
			"healthy", healthy,
			"took", time.Since(begin),
		)
	}(time.Now())
	return mw.next.Health(ctx)
}

func (mw loggingMiddleware) RegisterClient(ctx context.Context, name, card string, initialBalance float64) (result RegisterResult, err error) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "RegisterClient",
			"name", name,
			"took", time.Since(begin),
			"err", err)
	}(time.Now())
	return mw.next.RegisterClient(ctx, name, card, initialBalance)
}

func (mw loggingMiddleware) SubmitPurchase(ctx context.Context, clientName, merchantName string, items []string, amount float64) (result PurchaseResult, err error) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "SubmitPurchase",
			"client", clientName,
			"merchant", merchantName,
			"amount", amount,
			"success", result.Success,
			"took", time.Since(begin),
			"err", err)
	}(time.Now())
	return mw.next.SubmitPurchase(ctx, clientName, merchantName, items, amount)
}

func (mw loggingMiddleware) RechargeAccount(ctx context.Context, clientName string, amount float64) (result PurchaseResult, err error) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "RechargeAccount",
			"client", clientName,
			"amount", amount,
			"took", time.Since(begin),
			"err", err)
	}(time.Now())
	return mw.next.RechargeAccount(ctx, clientName, amount)
}

func (mw loggingMiddleware) RevokeCertificate(ctx context.Context, serial string) (err error) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "RevokeCertificate",
			"serial", serial,
			"took", time.Since(begin),
			"err", err)
	}(time.Now())
	return mw.next.RevokeCertificate(ctx, serial)
}

func (mw loggingMiddleware) ListCertificates(ctx context.Context) (certs []ca.Status, err error) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "ListCertificates",
			"took", time.Since(begin),
			"err", err)
	}(time.Now())
	return mw.next.ListCertificates(ctx)
}

func (mw loggingMiddleware) ListTransactions(ctx context.Context) (txs []TransactionInfo, err error) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "ListTransactions",
			"took", time.Since(begin),
			"err", err)
	}(time.Now())
	return mw.next.ListTransactions(ctx)
}

func (mw loggingMiddleware) GetBalance(ctx context.Context, clientName string) (balance float64, err error) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "GetBalance",
			"client", clientName,
			"took", time.Since(begin),
			"err", err)
	}(time.Now())
	return mw.next.GetBalance(ctx, clientName)
}

func (mw loggingMiddleware) ListOrders(ctx context.Context, merchantName string) (orders []merchant.Order, err error) {
	defer func(begin time.Time) {
		mw.logger.Log(
			"method", "ListOrders",
			"merchant", merchantName,
			"took", time.Since(begin),
			"err", err)
	}(time.Now())
	return mw.next.ListOrders(ctx, merchantName)
}
