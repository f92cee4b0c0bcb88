// Package nostrmq is a library for encrypted, point-to-point RPC messaging
// over nostr relays. A node identifies itself with a long-term secp256k1
// key pair, sends JSON payloads to a peer identified by its public key, and
// subscribes to payloads addressed to itself. Messages travel as signed
// kind-30072 events whose content is a NIP-04 encrypted envelope; NIP-13
// proof of work mining is available for spam resistance.
package nostrmq

import (
	"os"
	"sync"
	"time"

	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
	"github.com/nostrmq/nostrmq/pkg/nostr/nip13"
	"github.com/nostrmq/nostrmq/pkg/nostr/pool"
	"github.com/nostrmq/nostrmq/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

// Client is a configured node: its identity keys and the relay pool it
// sends and receives through.
type Client struct {
	cfg *Config
	sec string
	pub string

	mx   sync.Mutex
	pool *pool.P

	ctx    context.T
	cancel context.F
}

// New validates the configuration, derives the node's public key, and
// returns a client. Nothing is dialed until the first Send or Receive.
func New(cfg *Config) (c *Client, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	var pub string
	if pub, err = keys.GetPublicKey(cfg.SecKey); err != nil {
		return nil, &ConfigError{Field: "seckey",
			Reason: "cannot derive public key: " + err.Error()}
	}
	ctx, cancel := context.Cancel(context.Bg())
	return &Client{
		cfg:    cfg,
		sec:    cfg.SecKey,
		pub:    pub,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Pubkey returns the node's public key in hex.
func (c *Client) Pubkey() string { return c.pub }

// Pool returns the relay pool, dialing the configured relays on first use.
func (c *Client) Pool() *pool.P {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.pool == nil {
		c.pool = pool.New(c.ctx, c.cfg.Relays...)
	}
	return c.pool
}

// connect waits until at least one relay is up.
func (c *Client) connect(ctx context.T) error {
	return c.Pool().Connect(ctx)
}

// Close disconnects every relay and ends every subscription. The client
// cannot be reused afterwards.
func (c *Client) Close() {
	c.cancel()
	c.mx.Lock()
	p := c.pool
	c.mx.Unlock()
	if p != nil {
		p.Close()
	}
}

// MineEventPow mines a nonce tag onto the template so its id carries at
// least the given number of leading zero bits, splitting the search over
// the given number of workers. A non-positive bits target returns the
// template unchanged.
func MineEventPow(ctx context.T, tmpl *event.T, bits,
	workers int) (*event.T, error) {

	mined, err := nip13.Generate(ctx, tmpl, bits, workers,
		nip13.DefaultTimeout)
	if err == nip13.ErrGenerateTimeout {
		return nil, &PowTimeoutError{Target: bits,
			Timeout: nip13.DefaultTimeout}
	}
	return mined, err
}

// HasValidPow reports whether the event commits to, and its id actually
// demonstrates, at least the given difficulty. Zero or negative always
// passes.
func HasValidPow(ev *event.T, bits int) bool {
	return nip13.HasValidPoW(ev, bits)
}

// ValidatePowDifficulty reports whether a bare event id demonstrates at
// least the given number of leading zero bits.
func ValidatePowDifficulty(eventID string, bits int) bool {
	return nip13.Check(eventID, bits) == nil
}

// clampTimeout applies the default publish timeout.
func clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 2000 * time.Millisecond
	}
	return d
}
