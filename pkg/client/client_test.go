package client

import (
	"bytes"
	"testing"
	"time"

	"github.com/dualsign/SET-simulator/pkg/bank"
	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/depot/inmem"
	"github.com/dualsign/SET-simulator/pkg/merchant"
	"github.com/dualsign/SET-simulator/pkg/protocol"

	"github.com/go-kit/kit/log"
)

type clientSetUp struct {
	bank     *bank.Bank
	merchant *merchant.Merchant
	client   *Client
}

func setup(t *testing.T) *clientSetUp {
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
	m, err := merchant.New("TestShop", authority, bk, logger)
	if err != nil {
		t.Fatal("Unable to create merchant")
	}
	cl, err := New("Alice", "4970-1111-2222-3333", authority, logger)
	if err != nil {
		t.Fatal("Unable to create client")
	}
	if err := bk.CreateAccount("4970-1111-2222-3333", "Alice", 1000); err != nil {
		t.Fatal("Unable to create account")
	}
	return &clientSetUp{bank: bk, merchant: m, client: cl}
}

func TestBuildPacket(t *testing.T) {
	stu := setup(t)
	packet, err := stu.client.BuildPacket(stu.merchant, []string{"book", "pen"}, 50)
	if err != nil {
		t.Fatalf("BuildPacket failed: %s", err)
	}

	if packet.TransactionID == "" {
		t.Error("Packet carries no transaction id")
	}
	if packet.Certificate == nil || packet.Certificate.Subject != "Alice" {
		t.Error("Packet carries the wrong certificate")
	}
	if packet.OrderInfo.Amount != 50 || packet.OrderInfo.Client != "Alice" {
		t.Error("Order info does not match the request")
	}
	drift := time.Now().Unix() - packet.Timestamp
	if drift < 0 || drift > 5 {
		t.Errorf("Packet timestamp drifts %d seconds from now", drift)
	}

	// The merchant must not be able to read the payment information,
	// only the bank's key recovers it.
	plain, err := stu.bank.Decrypt(packet.EncryptedPaymentInfo)
	if err != nil {
		t.Fatalf("Bank could not decrypt payment info: %s", err)
	}
	if !bytes.Contains(plain, []byte("4970-1111-2222-3333")) {
		t.Error("Decrypted payment info does not carry the card")
	}
	if _, err := stu.merchant.Decrypt(packet.EncryptedPaymentInfo); err == nil {
		t.Error("Merchant decrypted the payment info")
	}

	payload, err := protocol.SignedPayload(packet.OrderInfo, packet.EncryptedPaymentInfo, packet.TransactionID)
	if err != nil {
		t.Fatal("Unable to rebuild signed payload")
	}
	if valid, reason := stu.merchant.VerifySignature(payload, packet.Signature, packet.Certificate); !valid {
		t.Errorf("Packet signature does not verify: %s", reason)
	}
}

func TestPurchaseRecordsHistory(t *testing.T) {
	stu := setup(t)

	if _, err := stu.client.Purchase(stu.merchant, []string{"book"}, 45); err != nil {
		t.Fatalf("Purchase failed: %s", err)
	}
	if _, err := stu.client.Purchase(stu.merchant, []string{"laptop"}, 5000); err == nil {
		t.Fatal("Purchase above the balance succeeded")
	}

	history := stu.client.History()
	if len(history) != 2 {
		t.Fatalf("Got %d attempts; want 2", len(history))
	}
	if !history[0].Success {
		t.Error("First attempt recorded as failed")
	}
	if history[1].Success {
		t.Error("Second attempt recorded as successful")
	}
	if history[1].Message == "" {
		t.Error("Failed attempt carries no decline reason")
	}
}
