package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/merchant"

	"github.com/go-kit/kit/metrics"
)

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func NewInstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return &instrumentingMiddleware{
			requestCount:   counter,
			requestLatency: latency,
			next:           next,
		}
	}
}

func (mw *instrumentingMiddleware) instrument(begin time.Time, method string, err error) {
	lvs := []string{"method", method, "error", fmt.Sprint(err != nil)}
	mw.requestCount.With(lvs...).Add(1)
	mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
}

func (mw *instrumentingMiddleware) Health(ctx context.Context) bool {
	defer func(begin time.Time) { mw.instrument(begin, "Health", nil) }(time.Now())
	return mw.next.Health(ctx)
}

func (mw *instrumentingMiddleware) RegisterClient(ctx context.Context, name, card string, initialBalance float64) (result RegisterResult, err error) {
	defer func(begin time.Time) { mw.instrument(begin, "RegisterClient", err) }(time.Now())
	return mw.next.RegisterClient(ctx, name, card, initialBalance)
}

func (mw *instrumentingMiddleware) SubmitPurchase(ctx context.Context, clientName, merchantName string, items []string, amount float64) (result PurchaseResult, err error) {
	defer func(begin time.Time) { mw.instrument(begin, "SubmitPurchase", err) }(time.Now())
	return mw.next.SubmitPurchase(ctx, clientName, merchantName, items, amount)
}

func (mw *instrumentingMiddleware) RechargeAccount(ctx context.Context, clientName string, amount float64) (result PurchaseResult, err error) {
	defer func(begin time.Time) { mw.instrument(begin, "RechargeAccount", err) }(time.Now())
	return mw.next.RechargeAccount(ctx, clientName, amount)
}

func (mw *instrumentingMiddleware) RevokeCertificate(ctx context.Context, serial string) (err error) {
	defer func(begin time.Time) { mw.instrument(begin, "RevokeCertificate", err) }(time.Now())
	return mw.next.RevokeCertificate(ctx, serial)
}

func (mw *instrumentingMiddleware) ListCertificates(ctx context.Context) (certs []ca.Status, err error) {
	defer func(begin time.Time) { mw.instrument(begin, "ListCertificates", err) }(time.Now())
	return mw.next.ListCertificates(ctx)
}

func (mw *instrumentingMiddleware) ListTransactions(ctx context.Context) (txs []TransactionInfo, err error) {
	defer func(begin time.Time) { mw.instrument(begin, "ListTransactions", err) }(time.Now())
	return mw.next.ListTransactions(ctx)
}

func (mw *instrumentingMiddleware) GetBalance(ctx context.Context, clientName string) (balance float64, err error) {
	defer func(begin time.Time) { mw.instrument(begin, "GetBalance", err) }(time.Now())
	return mw.next.GetBalance(ctx, clientName)
}

func (mw *instrumentingMiddleware) ListOrders(ctx context.Context, merchantName string) (orders []merchant.Order, err error) {
	defer func(begin time.Time) { mw.instrument(begin, "ListOrders", err) }(time.Now())
	return mw.next.ListOrders(ctx, merchantName)
}
