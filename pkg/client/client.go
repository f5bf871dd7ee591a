package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/entity"
	"github.com/dualsign/SET-simulator/pkg/merchant"
	"github.com/dualsign/SET-simulator/pkg/protocol"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// CertValidityDays is the validity of a client certificate.
const CertValidityDays = 365

// Attempt records the outcome of one purchase, successful or not.
type Attempt struct {
	TransactionID string    `json:"transaction_id"`
	Merchant      string    `json:"merchant"`
	Items         []string  `json:"items"`
	Amount        float64   `json:"amount"`
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// Client builds and signs transaction packets.
type Client struct {
	*entity.Capability
	name   string
	card   string
	logger log.Logger

	mu      sync.Mutex
	history []Attempt
}

func New(name, card string, authority *ca.CertificateAuthority, logger log.Logger) (*Client, error) {
	cap, err := entity.New(name, authority, CertValidityDays)
	if err != nil {
		return nil, err
	}
	return &Client{
		Capability: cap,
		name:       name,
		card:       card,
		logger:     logger,
	}, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Card() string { return c.card }

// Purchase assembles a fresh packet, encrypts the payment information
// for the bank reached through the merchant, signs the combination and
// submits it. Every attempt is appended to the purchase history.
func (c *Client) Purchase(m *merchant.Merchant, items []string, amount float64) (string, error) {
	packet, err := c.BuildPacket(m, items, amount)
	if err != nil {
		c.record(Attempt{Merchant: m.Name(), Items: items, Amount: amount, Message: err.Error(), Timestamp: time.Now()})
		return "", err
	}

	msg, err := m.ProcessOrder(packet)
	attempt := Attempt{
		TransactionID: packet.TransactionID,
		Merchant:      m.Name(),
		Items:         items,
		Amount:        amount,
		Success:       err == nil,
		Message:       msg,
		Timestamp:     time.Now(),
	}
	if err != nil {
		attempt.Message = err.Error()
		level.Warn(c.logger).Log("msg", "Purchase refused", "client", c.name, "merchant", m.Name(), "err", err)
	} else {
		level.Info(c.logger).Log("msg", "Purchase accepted", "client", c.name, "merchant", m.Name(), "amount", amount)
	}
	c.record(attempt)
	return msg, err
}

// BuildPacket constructs and signs a packet without submitting it.
// Exposed so adversarial scenarios can tamper with a signed packet
// before delivery.
func (c *Client) BuildPacket(m *merchant.Merchant, items []string, amount float64) (*protocol.TransactionPacket, error) {
	transactionID := protocol.NewTransactionID()
	now := time.Now().Unix()

	oi := protocol.OrderInfo{
		Items:     items,
		Amount:    amount,
		Client:    c.name,
		Timestamp: now,
	}
	pi := protocol.PaymentInfo{
		Card:          c.card,
		Amount:        amount,
		Nonce:         protocol.NewNonce(),
		TransactionID: transactionID,
	}

	piJSON, err := json.Marshal(pi)
	if err != nil {
		return nil, protocol.Errorf(protocol.KindTechnical, "could not encode payment info: %v", err)
	}
	encrypted, err := c.EncryptFor(piJSON, m.Bank().PublicKey())
	if err != nil {
		return nil, protocol.Errorf(protocol.KindTechnical, "could not encrypt payment info: %v", err)
	}

	payload, err := protocol.SignedPayload(oi, encrypted, transactionID)
	if err != nil {
		return nil, protocol.Errorf(protocol.KindTechnical, "could not build signed payload: %v", err)
	}
	signature, err := c.Sign(payload)
	if err != nil {
		return nil, protocol.Errorf(protocol.KindTechnical, "could not sign order: %v", err)
	}

	return &protocol.TransactionPacket{
		OrderInfo:            oi,
		EncryptedPaymentInfo: encrypted,
		Signature:            signature,
		Certificate:          c.Certificate(),
		TransactionID:        transactionID,
		Timestamp:            now,
	}, nil
}

func (c *Client) record(a Attempt) {
	c.mu.Lock()
	c.history = append(c.history, a)
	c.mu.Unlock()
}

// History returns a copy of the purchase attempts.
func (c *Client) History() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Attempt, len(c.history))
	copy(out, c.history)
	return out
}
