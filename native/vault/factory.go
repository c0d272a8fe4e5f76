package vault

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrUnknownVault is returned when a vault reference was not minted by this
// factory.
var ErrUnknownVault = errors.New("vault: unknown vault")

// Vault is one auction's isolated custody holder. The executor controls the
// escrowed collateral; it starts as the factory itself and is redirected to
// the borrower on cancel or to the note holder's collaborator on settlement.
type Vault struct {
	addr     [20]byte
	executor [20]byte
}

// Address returns the vault's opaque reference identity.
func (v *Vault) Address() [20]byte { return v.addr }

// Executor returns the account currently controlling the vault.
func (v *Vault) Executor() [20]byte { return v.executor }

// Factory mints per-auction custody vaults with deterministic-per-process,
// collision-free addresses derived from a random seed and a counter.
type Factory struct {
	mu      sync.Mutex
	seed    [32]byte
	counter uint64
	vaults  map[[20]byte]*Vault
}

// NewFactory creates a vault factory with a fresh random seed.
func NewFactory() (*Factory, error) {
	f := &Factory{vaults: make(map[[20]byte]*Vault)}
	if _, err := rand.Read(f.seed[:]); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateVault mints a new vault and returns its reference address.
func (f *Factory) CreateVault() ([20]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], f.counter)
	f.counter++
	digest := ethcrypto.Keccak256(f.seed[:], nonce[:])
	var addr [20]byte
	copy(addr[:], digest[12:])
	f.vaults[addr] = &Vault{addr: addr}
	return addr, nil
}

// SetExecutor redirects control of the referenced vault to the given account.
func (f *Factory) SetExecutor(vault [20]byte, executor [20]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vaults[vault]
	if !ok {
		return ErrUnknownVault
	}
	v.executor = executor
	return nil
}

// Vault looks up a minted vault by reference.
func (f *Factory) Vault(addr [20]byte) (*Vault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vaults[addr]
	return v, ok
}
