package simulator

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dualsign/SET-simulator/pkg/bank"
	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/client"
	"github.com/dualsign/SET-simulator/pkg/depot/inmem"
	"github.com/dualsign/SET-simulator/pkg/merchant"
	"github.com/dualsign/SET-simulator/pkg/protocol"

	"github.com/go-kit/kit/log"
)

type serviceSetUp struct {
	authority *ca.CertificateAuthority
	bank      *bank.Bank
	service   Service
}

func setup(t *testing.T) *serviceSetUp {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := log.NewJSONLogger(buf)

	authority, err := ca.New("TestCA", nil, inmem.NewDepot(logger), logger)
	if err != nil {
		t.Fatal("Unable to create certificate authority")
	}
	bk, err := bank.New("TestBank", authority, logger)
	if err != nil {
		t.Fatal("Unable to create bank")
	}
	m, err := merchant.New("FNAC", authority, bk, logger)
	if err != nil {
		t.Fatal("Unable to create merchant")
	}
	merchants := map[string]*merchant.Merchant{"FNAC": m}

	svc := NewService(authority, bk, merchants, map[string]*client.Client{}, logger)
	return &serviceSetUp{authority: authority, bank: bk, service: svc}
}

func TestRegisterClient(t *testing.T) {
	stu := setup(t)
	ctx := context.Background()

	result, err := stu.service.RegisterClient(ctx, "Alice", "4970-1111-2222-3333", 0)
	if err != nil {
		t.Fatalf("Registration failed: %s", err)
	}
	if !result.Success {
		t.Fatal("Registration reported failure")
	}
	if result.Serial == "" {
		t.Error("Registration returned no certificate serial")
	}
	if result.Balance != DefaultInitialBalance {
		t.Errorf("Got balance %.2f; want the %d default", result.Balance, DefaultInitialBalance)
	}

	testCases := []struct {
		name string
		who  string
		card string
	}{
		{"Duplicate client", "Alice", "4970-4444-5555-6666"},
		{"Card already in use", "Bob", "4970-1111-2222-3333"},
		{"Malformed card", "Carol", "4970111122223333"},
		{"Empty name", "", "4970-4444-5555-6666"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := stu.service.RegisterClient(ctx, tc.who, tc.card, 0)
			if err == nil {
				t.Error("Registration succeeded")
			}
			if kind, ok := protocol.KindOf(err); !ok || kind != protocol.KindValidation {
				t.Errorf("Got kind %v; want %v", kind, protocol.KindValidation)
			}
		})
	}
}

func TestSubmitPurchase(t *testing.T) {
	stu := setup(t)
	ctx := context.Background()

	if _, err := stu.service.RegisterClient(ctx, "Alice", "4970-1111-2222-3333", 0); err != nil {
		t.Fatal("Unable to register client")
	}

	result, err := stu.service.SubmitPurchase(ctx, "Alice", "FNAC", []string{"book"}, 45)
	if err != nil {
		t.Fatalf("Purchase failed: %s", err)
	}
	if !result.Success {
		t.Fatalf("Purchase declined: %s", result.Message)
	}
	if result.NewBalance != 955 {
		t.Errorf("Got balance %.2f; want 955", result.NewBalance)
	}

	if _, err := stu.service.SubmitPurchase(ctx, "Nobody", "FNAC", []string{"book"}, 45); err == nil {
		t.Error("Purchase for an unknown client succeeded")
	}
	if _, err := stu.service.SubmitPurchase(ctx, "Alice", "Nowhere", []string{"book"}, 45); err == nil {
		t.Error("Purchase at an unknown merchant succeeded")
	}

	orders, err := stu.service.ListOrders(ctx, "FNAC")
	if err != nil {
		t.Fatalf("ListOrders failed: %s", err)
	}
	if len(orders) != 1 {
		t.Errorf("Got %d orders; want 1", len(orders))
	}
}

func TestSubmitPurchaseDeclineIsAResult(t *testing.T) {
	stu := setup(t)
	ctx := context.Background()

	if _, err := stu.service.RegisterClient(ctx, "Alice", "4970-1111-2222-3333", 30); err != nil {
		t.Fatal("Unable to register client")
	}

	result, err := stu.service.SubmitPurchase(ctx, "Alice", "FNAC", []string{"laptop"}, 5000)
	if err != nil {
		t.Fatalf("Decline surfaced as transport error: %s", err)
	}
	if result.Success {
		t.Fatal("Purchase above the balance succeeded")
	}
	if !strings.Contains(result.Message, "insufficient funds") {
		t.Errorf("Got message %q; want an insufficient funds decline", result.Message)
	}
	if result.NewBalance != 30 {
		t.Errorf("Got balance %.2f; want 30", result.NewBalance)
	}
}

func TestRechargeAccount(t *testing.T) {
	stu := setup(t)
	ctx := context.Background()

	if _, err := stu.service.RegisterClient(ctx, "Alice", "4970-1111-2222-3333", 30); err != nil {
		t.Fatal("Unable to register client")
	}

	result, err := stu.service.RechargeAccount(ctx, "Alice", 500)
	if err != nil {
		t.Fatalf("Recharge failed: %s", err)
	}
	if !result.Success || result.NewBalance != 530 {
		t.Errorf("Got success=%v balance=%.2f; want success and 530", result.Success, result.NewBalance)
	}

	result, err = stu.service.RechargeAccount(ctx, "Alice", bank.MaxRecharge+1)
	if err != nil {
		t.Fatalf("Over-cap recharge surfaced as transport error: %s", err)
	}
	if result.Success {
		t.Error("Recharge above the cap succeeded")
	}

	if _, err := stu.service.RechargeAccount(ctx, "Nobody", 500); err == nil {
		t.Error("Recharge for an unknown client succeeded")
	}
}

func TestRevokeCertificateBlocksPurchases(t *testing.T) {
	stu := setup(t)
	ctx := context.Background()

	reg, err := stu.service.RegisterClient(ctx, "Alice", "4970-1111-2222-3333", 0)
	if err != nil {
		t.Fatal("Unable to register client")
	}
	if err := stu.service.RevokeCertificate(ctx, reg.Serial); err != nil {
		t.Fatalf("Revocation failed: %s", err)
	}

	result, err := stu.service.SubmitPurchase(ctx, "Alice", "FNAC", []string{"book"}, 45)
	if err != nil {
		t.Fatalf("Purchase surfaced as transport error: %s", err)
	}
	if result.Success {
		t.Fatal("Purchase with a revoked certificate succeeded")
	}
	if !strings.Contains(result.Message, "certificate revoked") {
		t.Errorf("Got message %q; want a revocation reason", result.Message)
	}

	certs, err := stu.service.ListCertificates(ctx)
	if err != nil {
		t.Fatalf("ListCertificates failed: %s", err)
	}
	found := false
	for _, st := range certs {
		if st.Serial == reg.Serial {
			found = true
			if !st.Revoked {
				t.Error("Listing does not mark the certificate revoked")
			}
		}
	}
	if !found {
		t.Errorf("Serial %s missing from listing", reg.Serial)
	}
}

func TestListTransactionsMasksCards(t *testing.T) {
	stu := setup(t)
	ctx := context.Background()

	if _, err := stu.service.RegisterClient(ctx, "Alice", "4970-1111-2222-3333", 0); err != nil {
		t.Fatal("Unable to register client")
	}
	if _, err := stu.service.SubmitPurchase(ctx, "Alice", "FNAC", []string{"book"}, 45); err != nil {
		t.Fatal("Purchase failed")
	}

	txs, err := stu.service.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions failed: %s", err)
	}
	if len(txs) != 1 {
		t.Fatalf("Got %d transactions; want 1", len(txs))
	}
	if txs[0].MaskedCard != "4970-****-****-3333" {
		t.Errorf("Got masked card %q; want 4970-****-****-3333", txs[0].MaskedCard)
	}
}

func TestGetBalance(t *testing.T) {
	stu := setup(t)
	ctx := context.Background()

	if _, err := stu.service.RegisterClient(ctx, "Alice", "4970-1111-2222-3333", 250); err != nil {
		t.Fatal("Unable to register client")
	}
	balance, err := stu.service.GetBalance(ctx, "Alice")
	if err != nil {
		t.Fatalf("GetBalance failed: %s", err)
	}
	if balance != 250 {
		t.Errorf("Got balance %.2f; want 250", balance)
	}
	if _, err := stu.service.GetBalance(ctx, "Nobody"); err == nil {
		t.Error("GetBalance for an unknown client succeeded")
	}
}
