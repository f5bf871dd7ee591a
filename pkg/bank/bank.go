package bank

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/entity"
	"github.com/dualsign/SET-simulator/pkg/protocol"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// MaxRecharge caps a single top-up. Policy, not a security control.
const MaxRecharge = 10000

// CertValidityDays is the validity of the bank's own certificate.
const CertValidityDays = 1825

const (
	StatusApproved = "approved"
	StatusDeclined = "declined"
)

// Account is one card's balance and holder.
type Account struct {
	Holder  string  `json:"holder"`
	Balance float64 `json:"balance"`
}

// Transaction is one authorization attempt. Records are append-only and
// immutable once written; every attempt, approved or declined, produces
// exactly one record.
type Transaction struct {
	ID        string    `json:"transaction_id"`
	Card      string    `json:"card"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	AuthCode  string    `json:"authorization_code,omitempty"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

// Bank holds the card ledger and decides payment authorizations. One
// mutex guards the freshness check, the ledger mutation and the history
// append together, which gives at-most-once debit per transaction id.
type Bank struct {
	*entity.Capability
	name   string
	logger log.Logger

	mu       sync.Mutex
	accounts map[string]*Account
	history  []Transaction
}

func New(name string, authority *ca.CertificateAuthority, logger log.Logger) (*Bank, error) {
	cap, err := entity.New(name, authority, CertValidityDays)
	if err != nil {
		return nil, err
	}
	return &Bank{
		Capability: cap,
		name:       name,
		logger:     logger,
		accounts:   make(map[string]*Account),
	}, nil
}

func (b *Bank) Name() string { return b.name }

func (b *Bank) CreateAccount(card, holder string, initialBalance float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if initialBalance < 0 {
		return protocol.Errorf(protocol.KindValidation, "initial balance cannot be negative")
	}
	if _, ok := b.accounts[card]; ok {
		return protocol.Errorf(protocol.KindValidation, "an account already exists for this card")
	}
	b.accounts[card] = &Account{Holder: holder, Balance: initialBalance}
	level.Info(b.logger).Log("msg", "Account created", "holder", holder, "balance", initialBalance)
	return nil
}

// Balance returns the current balance, or false when the card has no
// account. A read immediately following a debit observes the debit.
func (b *Bank) Balance(card string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[card]
	if !ok {
		return 0, false
	}
	return acct.Balance, true
}

func (b *Bank) Recharge(card string, amount float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[card]
	if !ok {
		return protocol.Errorf(protocol.KindValidation, "unknown card")
	}
	if amount <= 0 {
		return protocol.Errorf(protocol.KindPolicy, "recharge amount must be positive")
	}
	if amount > MaxRecharge {
		return protocol.Errorf(protocol.KindPolicy, "recharge amount exceeds the %d limit", MaxRecharge)
	}
	acct.Balance += amount
	level.Info(b.logger).Log("msg", "Account recharged", "holder", acct.Holder, "amount", amount, "balance", acct.Balance)
	return nil
}

// AuthorizePayment decrypts the payment information, validates the
// account and balance, debits, and returns the approved record carrying
// the authorization code. Declines return a protocol error; in every
// case one record is appended to the history. Payment info is not
// decrypted when the freshness check already failed.
func (b *Bank) AuthorizePayment(encryptedPaymentInfo []byte, transactionID string, timestamp int64) (Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok, reason := b.CheckFreshness(transactionID, timestamp); !ok {
		return b.decline(transactionID, "unknown", 0, reason, protocol.KindSecurity)
	}

	plain, err := b.Decrypt(encryptedPaymentInfo)
	if err != nil {
		return b.decline(transactionID, "unknown", 0, "technical error: payment data could not be decrypted", protocol.KindTechnical)
	}
	var pi protocol.PaymentInfo
	if err := json.Unmarshal(plain, &pi); err != nil {
		return b.decline(transactionID, "unknown", 0, "technical error: payment data could not be parsed", protocol.KindTechnical)
	}

	acct, ok := b.accounts[pi.Card]
	if !ok {
		return b.decline(transactionID, pi.Card, pi.Amount, "invalid card", protocol.KindValidation)
	}
	if acct.Balance < pi.Amount {
		return b.decline(transactionID, pi.Card, pi.Amount, "insufficient funds", protocol.KindFunds)
	}

	acct.Balance -= pi.Amount
	code := authorizationCode(transactionID, pi.Amount, pi.Card)
	b.MarkSeen(transactionID)

	tx := Transaction{
		ID:        transactionID,
		Card:      pi.Card,
		Amount:    pi.Amount,
		Timestamp: time.Now(),
		AuthCode:  code,
		Status:    StatusApproved,
	}
	b.history = append(b.history, tx)
	level.Info(b.logger).Log("msg", "Payment authorized", "card", pi.Card, "amount", pi.Amount, "authorization", code)
	return tx, nil
}

func (b *Bank) decline(transactionID, card string, amount float64, reason string, kind protocol.Kind) (Transaction, error) {
	tx := Transaction{
		ID:        transactionID,
		Card:      card,
		Amount:    amount,
		Timestamp: time.Now(),
		Status:    StatusDeclined,
		Reason:    reason,
	}
	b.history = append(b.history, tx)
	level.Warn(b.logger).Log("msg", "Payment declined", "card", card, "reason", reason)
	return tx, protocol.Errorf(kind, "%s", reason)
}

// Transactions returns a copy of the audit history.
func (b *Bank) Transactions() []Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Transaction, len(b.history))
	copy(out, b.history)
	return out
}

// authorizationCode mixes the wall clock at computation time, so the
// code cannot be recomputed later from the stored record alone.
func authorizationCode(transactionID string, amount float64, card string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%.2f|%s|%d", transactionID, amount, card, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:])[:16]
}
