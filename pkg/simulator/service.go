package simulator

import (
	"context"
	"sync"

	"github.com/dualsign/SET-simulator/pkg/bank"
	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/client"
	"github.com/dualsign/SET-simulator/pkg/merchant"
	"github.com/dualsign/SET-simulator/pkg/protocol"

	"github.com/go-kit/kit/log"
)

// DefaultInitialBalance is credited to new accounts when the caller does
// not specify a balance.
const DefaultInitialBalance = 1000

type Service interface {
	Health(ctx context.Context) bool
	RegisterClient(ctx context.Context, name, card string, initialBalance float64) (RegisterResult, error)
	SubmitPurchase(ctx context.Context, clientName, merchantName string, items []string, amount float64) (PurchaseResult, error)
	RechargeAccount(ctx context.Context, clientName string, amount float64) (PurchaseResult, error)
	RevokeCertificate(ctx context.Context, serial string) error
	ListCertificates(ctx context.Context) ([]ca.Status, error)
	ListTransactions(ctx context.Context) ([]TransactionInfo, error)
	GetBalance(ctx context.Context, clientName string) (float64, error)
	ListOrders(ctx context.Context, merchantName string) ([]merchant.Order, error)
}

// PurchaseResult is the boundary shape for purchases and recharges.
// Protocol declines land here as success=false with the decline reason;
// they are results, not transport failures.
type PurchaseResult struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	NewBalance float64 `json:"new_balance"`
}

type RegisterResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Serial  string  `json:"certificate_serial"`
	Balance float64 `json:"balance"`
}

// TransactionInfo is a bank record with the card masked for display.
type TransactionInfo struct {
	bank.Transaction
	MaskedCard string `json:"masked_card"`
}

type setSimulator struct {
	authority *ca.CertificateAuthority
	bank      *bank.Bank
	logger    log.Logger

	mu        sync.RWMutex
	merchants map[string]*merchant.Merchant
	clients   map[string]*client.Client
}

// NewService wires the protocol core behind the external interface. The
// authority, bank, merchants and clients are owned services passed by
// reference, so test fixtures build isolated worlds per scenario.
func NewService(authority *ca.CertificateAuthority, bk *bank.Bank, merchants map[string]*merchant.Merchant, clients map[string]*client.Client, logger log.Logger) Service {
	if merchants == nil {
		merchants = make(map[string]*merchant.Merchant)
	}
	if clients == nil {
		clients = make(map[string]*client.Client)
	}
	return &setSimulator{
		authority: authority,
		bank:      bk,
		logger:    logger,
		merchants: merchants,
		clients:   clients,
	}
}

func (s *setSimulator) Health(ctx context.Context) bool {
	return true
}

func (s *setSimulator) RegisterClient(ctx context.Context, name, card string, initialBalance float64) (RegisterResult, error) {
	if name == "" {
		return RegisterResult{}, protocol.Errorf(protocol.KindValidation, "client name is required")
	}
	if !protocol.ValidCard(card) {
		return RegisterResult{}, protocol.Errorf(protocol.KindValidation, "card must have the dddd-dddd-dddd-dddd shape")
	}
	if initialBalance == 0 {
		initialBalance = DefaultInitialBalance
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[name]; ok {
		return RegisterResult{}, protocol.Errorf(protocol.KindValidation, "client %s already exists", name)
	}
	if _, ok := s.bank.Balance(card); ok {
		return RegisterResult{}, protocol.Errorf(protocol.KindValidation, "this card is already in use")
	}

	cl, err := client.New(name, card, s.authority, log.With(s.logger, "component", "client"))
	if err != nil {
		return RegisterResult{}, protocol.Errorf(protocol.KindTechnical, "could not create client: %v", err)
	}
	if err := s.bank.CreateAccount(card, name, initialBalance); err != nil {
		return RegisterResult{}, err
	}
	s.clients[name] = cl

	return RegisterResult{
		Success: true,
		Message: "client " + name + " registered",
		Serial:  cl.Certificate().Serial,
		Balance: initialBalance,
	}, nil
}

func (s *setSimulator) SubmitPurchase(ctx context.Context, clientName, merchantName string, items []string, amount float64) (PurchaseResult, error) {
	s.mu.RLock()
	cl, okClient := s.clients[clientName]
	m, okMerchant := s.merchants[merchantName]
	s.mu.RUnlock()
	if !okClient {
		return PurchaseResult{}, protocol.Errorf(protocol.KindValidation, "unknown client %s", clientName)
	}
	if !okMerchant {
		return PurchaseResult{}, protocol.Errorf(protocol.KindValidation, "unknown merchant %s", merchantName)
	}
	if amount < 0 {
		return PurchaseResult{}, protocol.Errorf(protocol.KindValidation, "amount cannot be negative")
	}

	msg, err := cl.Purchase(m, items, amount)
	balance, _ := s.bank.Balance(cl.Card())
	if err != nil {
		return PurchaseResult{Success: false, Message: err.Error(), NewBalance: balance}, nil
	}
	return PurchaseResult{Success: true, Message: msg, NewBalance: balance}, nil
}

func (s *setSimulator) RechargeAccount(ctx context.Context, clientName string, amount float64) (PurchaseResult, error) {
	s.mu.RLock()
	cl, ok := s.clients[clientName]
	s.mu.RUnlock()
	if !ok {
		return PurchaseResult{}, protocol.Errorf(protocol.KindValidation, "unknown client %s", clientName)
	}

	if err := s.bank.Recharge(cl.Card(), amount); err != nil {
		balance, _ := s.bank.Balance(cl.Card())
		return PurchaseResult{Success: false, Message: err.Error(), NewBalance: balance}, nil
	}
	balance, _ := s.bank.Balance(cl.Card())
	return PurchaseResult{Success: true, Message: "account recharged", NewBalance: balance}, nil
}

func (s *setSimulator) RevokeCertificate(ctx context.Context, serial string) error {
	if serial == "" {
		return protocol.Errorf(protocol.KindValidation, "serial is required")
	}
	return s.authority.Revoke(serial)
}

func (s *setSimulator) ListCertificates(ctx context.Context) ([]ca.Status, error) {
	return s.authority.List()
}

func (s *setSimulator) ListTransactions(ctx context.Context) ([]TransactionInfo, error) {
	txs := s.bank.Transactions()
	out := make([]TransactionInfo, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionInfo{Transaction: tx, MaskedCard: maskCard(tx.Card)})
	}
	return out, nil
}

func (s *setSimulator) GetBalance(ctx context.Context, clientName string) (float64, error) {
	s.mu.RLock()
	cl, ok := s.clients[clientName]
	s.mu.RUnlock()
	if !ok {
		return 0, protocol.Errorf(protocol.KindValidation, "unknown client %s", clientName)
	}
	balance, ok := s.bank.Balance(cl.Card())
	if !ok {
		return 0, protocol.Errorf(protocol.KindValidation, "no account for client %s", clientName)
	}
	return balance, nil
}

func (s *setSimulator) ListOrders(ctx context.Context, merchantName string) ([]merchant.Order, error) {
	s.mu.RLock()
	m, ok := s.merchants[merchantName]
	s.mu.RUnlock()
	if !ok {
		return nil, protocol.Errorf(protocol.KindValidation, "unknown merchant %s", merchantName)
	}
	return m.Orders(), nil
}

func maskCard(card string) string {
	if card == "unknown" || len(card) < 8 {
		return card
	}
	return card[:4] + "-****-****-" + card[len(card)-4:]
}
