package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"regexp"

	"github.com/dualsign/SET-simulator/pkg/ca"
)

// OrderInfo is the cleartext part of an order, visible to the merchant.
type OrderInfo struct {
	Items     []string `json:"items"`
	Amount    float64  `json:"amount"`
	Client    string   `json:"client"`
	Timestamp int64    `json:"timestamp"`
}

// PaymentInfo carries the sensitive payment fields. It travels encrypted
// for the bank and is never readable by the merchant.
type PaymentInfo struct {
	Card          string  `json:"card"`
	Amount        float64 `json:"amount"`
	Nonce         string  `json:"nonce"`
	TransactionID string  `json:"transaction_id"`
}

// TransactionPacket is the message a client submits to a merchant. The
// signature covers canonical(OrderInfo) ++ EncryptedPaymentInfo ++
// TransactionID, binding both halves without exposing the payment data.
type TransactionPacket struct {
	OrderInfo            OrderInfo
	EncryptedPaymentInfo []byte
	Signature            []byte
	Certificate          *ca.Certificate
	TransactionID        string
	Timestamp            int64
}

// SignedPayload builds the exact byte sequence the dual signature covers.
// The same function runs at signing time and at verification time; the
// JSON encoding of OrderInfo is deterministic because struct fields
// marshal in declaration order.
func SignedPayload(oi OrderInfo, encryptedPaymentInfo []byte, transactionID string) ([]byte, error) {
	canonical, err := json.Marshal(oi)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(canonical)+len(encryptedPaymentInfo)+len(transactionID))
	payload = append(payload, canonical...)
	payload = append(payload, encryptedPaymentInfo...)
	payload = append(payload, transactionID...)
	return payload, nil
}

// NewTransactionID returns a fresh random transaction identifier.
func NewTransactionID() string {
	return randomHex(16)
}

// NewNonce returns the random nonce embedded in PaymentInfo.
func NewNonce() string {
	return randomHex(16)
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

var cardShape = regexp.MustCompile(`^[0-9]{4}-[0-9]{4}-[0-9]{4}-[0-9]{4}$`)

// ValidCard reports whether card has the grouped-digit shape the
// simulator uses. No payment-network checksum is applied.
func ValidCard(card string) bool {
	return cardShape.MatchString(card)
}
