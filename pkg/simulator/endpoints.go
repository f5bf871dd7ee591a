package simulator

import (
	"context"

	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/merchant"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/tracing/opentracing"
	stdopentracing "github.com/opentracing/opentracing-go"
)

type Endpoints struct {
	HealthEndpoint            endpoint.Endpoint
	RegisterClientEndpoint    endpoint.Endpoint
	SubmitPurchaseEndpoint    endpoint.Endpoint
	RechargeAccountEndpoint   endpoint.Endpoint
	RevokeCertificateEndpoint endpoint.Endpoint
	ListCertificatesEndpoint  endpoint.Endpoint
	ListTransactionsEndpoint  endpoint.Endpoint
	GetBalanceEndpoint        endpoint.Endpoint
	ListOrdersEndpoint        endpoint.Endpoint
}

func MakeServerEndpoints(s Service, otTracer stdopentracing.Tracer) Endpoints {
	var healthEndpoint endpoint.Endpoint
	{
		healthEndpoint = MakeHealthEndpoint(s)
		healthEndpoint = opentracing.TraceServer(otTracer, "Health")(healthEndpoint)
	}
	var registerClientEndpoint endpoint.Endpoint
	{
		registerClientEndpoint = MakeRegisterClientEndpoint(s)
		registerClientEndpoint = opentracing.TraceServer(otTracer, "RegisterClient")(registerClientEndpoint)
	}
	var submitPurchaseEndpoint endpoint.Endpoint
	{
		submitPurchaseEndpoint = MakeSubmitPurchaseEndpoint(s)
		submitPurchaseEndpoint = opentracing.TraceServer(otTracer, "SubmitPurchase")(submitPurchaseEndpoint)
	}
	var rechargeAccountEndpoint endpoint.Endpoint
	{
		rechargeAccountEndpoint = MakeRechargeAccountEndpoint(s)
		rechargeAccountEndpoint = opentracing.TraceServer(otTracer, "RechargeAccount")(rechargeAccountEndpoint)
	}
	var revokeCertificateEndpoint endpoint.Endpoint
	{
		revokeCertificateEndpoint = MakeRevokeCertificateEndpoint(s)
		revokeCertificateEndpoint = opentracing.TraceServer(otTracer, "RevokeCertificate")(revokeCertificateEndpoint)
	}
	var listCertificatesEndpoint endpoint.Endpoint
	{
		listCertificatesEndpoint = MakeListCertificatesEndpoint(s)
		listCertificatesEndpoint = opentracing.TraceServer(otTracer, "ListCertificates")(listCertificatesEndpoint)
	}
	var listTransactionsEndpoint endpoint.Endpoint
	{
		listTransactionsEndpoint = MakeListTransactionsEndpoint(s)
		listTransactionsEndpoint = opentracing.TraceServer(otTracer, "ListTransactions")(listTransactionsEndpoint)
	}
	var getBalanceEndpoint endpoint.Endpoint
	{
		getBalanceEndpoint = MakeGetBalanceEndpoint(s)
		getBalanceEndpoint = opentracing.TraceServer(otTracer, "GetBalance")(getBalanceEndpoint)
	}
	var listOrdersEndpoint endpoint.Endpoint
	{
		listOrdersEndpoint = MakeListOrdersEndpoint(s)
		listOrdersEndpoint = opentracing.TraceServer(otTracer, "ListOrders")(listOrdersEndpoint)
	}
	return Endpoints{
		HealthEndpoint:            healthEndpoint,
		RegisterClientEndpoint:    registerClientEndpoint,
		SubmitPurchaseEndpoint:    submitPurchaseEndpoint,
		RechargeAccountEndpoint:   rechargeAccountEndpoint,
		RevokeCertificateEndpoint: revokeCertificateEndpoint,
		ListCertificatesEndpoint:  listCertificatesEndpoint,
		ListTransactionsEndpoint:  listTransactionsEndpoint,
		GetBalanceEndpoint:        getBalanceEndpoint,
		ListOrdersEndpoint:        listOrdersEndpoint,
	}
}

func MakeHealthEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		healthy := s.Health(ctx)
		return healthResponse{Healthy: healthy}, nil
	}
}

func MakeRegisterClientEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(registerClientRequest)
		result, err := s.RegisterClient(ctx, req.Name, req.Card, req.InitialBalance)
		return registerClientResponse{Result: result, Err: err}, nil
	}
}

func MakeSubmitPurchaseEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(submitPurchaseRequest)
		result, err := s.SubmitPurchase(ctx, req.Client, req.Merchant, req.Items, req.Amount)
		return purchaseResponse{Result: result, Err: err}, nil
	}
}

func MakeRechargeAccountEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(rechargeAccountRequest)
		result, err := s.RechargeAccount(ctx, req.Client, req.Amount)
		return purchaseResponse{Result: result, Err: err}, nil
	}
}

func MakeRevokeCertificateEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(revokeCertificateRequest)
		err = s.RevokeCertificate(ctx, req.Serial)
		return revokeCertificateResponse{Err: err}, nil
	}
}

func MakeListCertificatesEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		certs, err := s.ListCertificates(ctx)
		return listCertificatesResponse{Certificates: certs, Err: err}, nil
	}
}

func MakeListTransactionsEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		txs, err := s.ListTransactions(ctx)
		return listTransactionsResponse{Transactions: txs, Err: err}, nil
	}
}

func MakeGetBalanceEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(getBalanceRequest)
		balance, err := s.GetBalance(ctx, req.Client)
		return getBalanceResponse{Balance: balance, Err: err}, nil
	}
}

func MakeListOrdersEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(listOrdersRequest)
		orders, err := s.ListOrders(ctx, req.Merchant)
		return listOrdersResponse{Orders: orders, Err: err}, nil
	}
}

type healthRequest struct{}

type healthResponse struct {
	Healthy bool  `json:"healthy,omitempty"`
	Err     error `json:"err,omitempty"`
}

type registerClientRequest struct {
	Name           string  `json:"name"`
	Card           string  `json:"card"`
	InitialBalance float64 `json:"initial_balance"`
}

type registerClientResponse struct {
	Result RegisterResult `json:"result"`
	Err    error          `json:"err,omitempty"`
}

func (r registerClientResponse) error() error { return r.Err }

type submitPurchaseRequest struct {
	Client   string   `json:"client"`
	Merchant string   `json:"merchant"`
	Items    []string `json:"items"`
	Amount   float64  `json:"amount"`
}

type purchaseResponse struct {
	Result PurchaseResult `json:"result"`
	Err    error          `json:"err,omitempty"`
}

func (r purchaseResponse) error() error { return r.Err }

type rechargeAccountRequest struct {
	Client string  `json:"client"`
	Amount float64 `json:"amount"`
}

type revokeCertificateRequest struct {
	Serial string `json:"serial"`
}

type revokeCertificateResponse struct {
	Err error `json:"err,omitempty"`
}

func (r revokeCertificateResponse) error() error { return r.Err }

type listCertificatesRequest struct{}

type listCertificatesResponse struct {
	Certificates []ca.Status `json:"certificates"`
	Err          error       `json:"err,omitempty"`
}

func (r listCertificatesResponse) error() error { return r.Err }

type listTransactionsRequest struct{}

type listTransactionsResponse struct {
	Transactions []TransactionInfo `json:"transactions"`
	Err          error             `json:"err,omitempty"`
}

func (r listTransactionsResponse) error() error { return r.Err }

type getBalanceRequest struct {
	Client string `json:"client"`
}

type getBalanceResponse struct {
	Balance float64 `json:"balance"`
	Err     error   `json:"err,omitempty"`
}

func (r getBalanceResponse) error() error { return r.Err }

type listOrdersRequest struct {
	Merchant string `json:"merchant"`
}

type listOrdersResponse struct {
	Orders []merchant.Order `json:"orders"`
	Err    error            `json:"err,omitempty"`
}

func (r listOrdersResponse) error() error { return r.Err }
