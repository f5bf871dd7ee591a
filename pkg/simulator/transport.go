package simulator

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dualsign/SET-simulator/pkg/protocol"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/tracing/opentracing"

	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	stdopentracing "github.com/opentracing/opentracing-go"

	"github.com/gorilla/mux"
)

type errorer interface {
	error() error
}

func MakeHTTPHandler(s Service, logger log.Logger, otTracer stdopentracing.Tracer) http.Handler {
	r := mux.NewRouter()
	e := MakeServerEndpoints(s, otTracer)

	options := []httptransport.ServerOption{
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	r.Methods("GET").Path("/health").Handler(httptransport.NewServer(
		e.HealthEndpoint,
		decodeHealthRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "Health", logger)))...,
	))

	r.Methods("POST").Path("/v1/clients").Handler(httptransport.NewServer(
		e.RegisterClientEndpoint,
		decodeRegisterClientRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "RegisterClient", logger)))...,
	))

	r.Methods("POST").Path("/v1/purchases").Handler(httptransport.NewServer(
		e.SubmitPurchaseEndpoint,
		decodeSubmitPurchaseRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "SubmitPurchase", logger)))...,
	))

	r.Methods("POST").Path("/v1/clients/{name}/recharge").Handler(httptransport.NewServer(
		e.RechargeAccountEndpoint,
		decodeRechargeAccountRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "RechargeAccount", logger)))...,
	))

	r.Methods("POST").Path("/v1/certificates/{serial}/revoke").Handler(httptransport.NewServer(
		e.RevokeCertificateEndpoint,
		decodeRevokeCertificateRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "RevokeCertificate", logger)))...,
	))

	r.Methods("GET").Path("/v1/certificates").Handler(httptransport.NewServer(
		e.ListCertificatesEndpoint,
		decodeEmptyRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "ListCertificates", logger)))...,
	))

	r.Methods("GET").Path("/v1/transactions").Handler(httptransport.NewServer(
		e.ListTransactionsEndpoint,
		decodeEmptyRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "ListTransactions", logger)))...,
	))

	r.Methods("GET").Path("/v1/clients/{name}/balance").Handler(httptransport.NewServer(
		e.GetBalanceEndpoint,
		decodeGetBalanceRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "GetBalance", logger)))...,
	))

	r.Methods("GET").Path("/v1/merchants/{name}/orders").Handler(httptransport.NewServer(
		e.ListOrdersEndpoint,
		decodeListOrdersRequest,
		encodeJSONResponse,
		append(options, httptransport.ServerBefore(opentracing.HTTPToContext(otTracer, "ListOrders", logger)))...,
	))

	return r
}

func decodeHealthRequest(ctx context.Context, r *http.Request) (request interface{}, err error) {
	var req healthRequest
	return req, nil
}

func decodeEmptyRequest(ctx context.Context, r *http.Request) (request interface{}, err error) {
	return struct{}{}, nil
}

func decodeRegisterClientRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	var req registerClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, protocol.Errorf(protocol.KindValidation, "could not decode request body: %v", err)
	}
	defer r.Body.Close()
	return req, nil
}

func decodeSubmitPurchaseRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	var req submitPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, protocol.Errorf(protocol.KindValidation, "could not decode request body: %v", err)
	}
	defer r.Body.Close()
	return req, nil
}

func decodeRechargeAccountRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	var req rechargeAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, protocol.Errorf(protocol.KindValidation, "could not decode request body: %v", err)
	}
	defer r.Body.Close()
	req.Client = mux.Vars(r)["name"]
	return req, nil
}

func decodeRevokeCertificateRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	return revokeCertificateRequest{Serial: mux.Vars(r)["serial"]}, nil
}

func decodeGetBalanceRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	return getBalanceRequest{Client: mux.Vars(r)["name"]}, nil
}

func decodeListOrdersRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	return listOrdersRequest{Merchant: mux.Vars(r)["name"]}, nil
}

func encodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if e, ok := response.(errorer); ok && e.error() != nil {
		encodeError(ctx, e.error(), w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(codeFrom(err))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

func codeFrom(err error) int {
	kind, ok := protocol.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case protocol.KindValidation, protocol.KindPolicy:
		return http.StatusBadRequest
	case protocol.KindSecurity:
		return http.StatusForbidden
	case protocol.KindFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
