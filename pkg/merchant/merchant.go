package merchant

import (
	"fmt"
	"sync"
	"time"

	"github.com/dualsign/SET-simulator/pkg/bank"
	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/entity"
	"github.com/dualsign/SET-simulator/pkg/protocol"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// CertValidityDays is the validity of a merchant certificate.
const CertValidityDays = 730

// Order is created only for approved purchases.
type Order struct {
	ID        string    `json:"order_id"`
	Customer  string    `json:"customer"`
	Items     []string  `json:"items"`
	Amount    float64   `json:"amount"`
	AuthCode  string    `json:"authorization_code"`
	Timestamp time.Time `json:"timestamp"`
}

// Merchant validates incoming packets and coordinates with the bank. It
// never sees the payment information, only the opaque ciphertext it
// forwards.
type Merchant struct {
	*entity.Capability
	name   string
	bank   *bank.Bank
	logger log.Logger

	mu     sync.Mutex
	orders []Order
}

func New(name string, authority *ca.CertificateAuthority, bk *bank.Bank, logger log.Logger) (*Merchant, error) {
	cap, err := entity.New(name, authority, CertValidityDays)
	if err != nil {
		return nil, err
	}
	return &Merchant{
		Capability: cap,
		name:       name,
		bank:       bk,
		logger:     logger,
	}, nil
}

func (m *Merchant) Name() string { return m.name }

func (m *Merchant) Bank() *bank.Bank { return m.bank }

// ProcessOrder runs the merchant-side validation pipeline: freshness,
// then dual signature and certificate, then the bank. The transaction id
// is marked seen only on final approval, so a mangled packet can be
// corrected and resent, and a declined packet can legally be retried
// after a balance top-up.
func (m *Merchant) ProcessOrder(p *protocol.TransactionPacket) (string, error) {
	if ok, reason := m.CheckFreshness(p.TransactionID, p.Timestamp); !ok {
		level.Warn(m.logger).Log("msg", "Order rejected", "merchant", m.name, "reason", reason)
		return "", protocol.Errorf(protocol.KindSecurity, "%s", reason)
	}

	payload, err := protocol.SignedPayload(p.OrderInfo, p.EncryptedPaymentInfo, p.TransactionID)
	if err != nil {
		return "", protocol.Errorf(protocol.KindTechnical, "could not rebuild signed payload: %v", err)
	}
	if valid, reason := m.VerifySignature(payload, p.Signature, p.Certificate); !valid {
		// No contact with the bank on this path.
		level.Warn(m.logger).Log("msg", "Order rejected", "merchant", m.name, "reason", reason)
		return "", protocol.Errorf(protocol.KindSecurity, "%s", reason)
	}

	tx, err := m.bank.AuthorizePayment(p.EncryptedPaymentInfo, p.TransactionID, p.Timestamp)
	if err != nil {
		level.Warn(m.logger).Log("msg", "Bank declined order", "merchant", m.name, "err", err)
		return "", err
	}

	m.MarkSeen(p.TransactionID)
	order := Order{
		ID:        p.TransactionID,
		Customer:  p.Certificate.Subject,
		Items:     p.OrderInfo.Items,
		Amount:    p.OrderInfo.Amount,
		AuthCode:  tx.AuthCode,
		Timestamp: time.Now(),
	}
	m.mu.Lock()
	m.orders = append(m.orders, order)
	m.mu.Unlock()

	level.Info(m.logger).Log("msg", "Order approved", "merchant", m.name, "customer", order.Customer, "amount", order.Amount)
	return fmt.Sprintf("order approved, authorization %s", tx.AuthCode), nil
}

// Orders returns a copy of the approved order records.
func (m *Merchant) Orders() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, len(m.orders))
	copy(out, m.orders)
	return out
}
