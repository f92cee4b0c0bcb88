package nostrmq

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"strings"

	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
)

// Config is the static configuration of a node. All fields bind to command
// line flags, and all but LogLevel to NOSTRMQ_* environment variables,
// through go-arg tags, and
// round-trip through a JSON profile file with Save and Load. The secret key
// is never logged and is excluded from the JSON form.
type Config struct {
	SecKey        string   `arg:"-s,--seckey,env:NOSTRMQ_SECRET_KEY" json:"-" help:"identity secret key, 64 character lowercase hex"`
	Relays        []string `arg:"-r,--relay,separate,env:NOSTRMQ_RELAYS" json:"relays" help:"relay websocket URL, repeatable (ws:// or wss://)"`
	PowDifficulty int      `arg:"--pow,env:NOSTRMQ_POW_DIFFICULTY" json:"pow_difficulty" default:"0" help:"leading zero bits to mine on sends that enable proof of work, 0 disables"`
	PowThreads    int      `arg:"--powthreads,env:NOSTRMQ_POW_THREADS" json:"pow_threads" default:"1" help:"worker count for proof of work mining"`

	// replay tracking
	LookbackSeconds    int    `arg:"--lookback,env:NOSTRMQ_LOOKBACK_SECONDS" json:"lookback_seconds" default:"3600" help:"how many seconds behind now a fresh subscription starts"`
	TrackLimit         int    `arg:"--tracklimit,env:NOSTRMQ_TRACK_LIMIT" json:"track_limit" default:"100" help:"how many recently processed event ids to remember"`
	CacheDir           string `arg:"--cachedir,env:NOSTRMQ_CACHE_DIR" json:"cache_dir" default:".nostrmq" help:"directory for the replay tracker cache files"`
	DisablePersistence bool   `arg:"--nopersist,env:NOSTRMQ_DISABLE_PERSISTENCE" json:"disable_persistence" help:"keep replay tracking in memory only"`

	LogLevel string `arg:"--loglevel" json:"-" default:"info" help:"set log level [off,fatal,error,warn,info,debug,trace] (can also use GODEBUG environment variable)"`
}

func (c *Config) Save(filename string) (err error) {
	if c == nil {
		err = errors.New("cannot save nil config")
		log.E.Ln(err)
		return
	}
	var b []byte
	if b, err = json.MarshalIndent(c, "", "    "); chk.E(err) {
		return
	}
	if err = os.WriteFile(filename, b, 0600); chk.E(err) {
		return
	}
	return
}

func (c *Config) Load(filename string) (err error) {
	if c == nil {
		err = errors.New("cannot load into nil config")
		chk.E(err)
		return
	}
	var b []byte
	if b, err = os.ReadFile(filename); chk.E(err) {
		return
	}
	if err = json.Unmarshal(b, c); chk.E(err) {
		return
	}
	return
}

// Validate checks the key material, relay URLs and proof of work settings,
// returning a ConfigError naming the first offending field.
func (c *Config) Validate() error {
	if c.SecKey == "" {
		return &ConfigError{Field: "seckey", Reason: "missing"}
	}
	if !keys.IsValid32ByteHex(c.SecKey) {
		return &ConfigError{Field: "seckey",
			Reason: "must be 64 characters of lowercase hex"}
	}
	if len(c.Relays) == 0 {
		return &ConfigError{Field: "relays",
			Reason: "at least one relay URL is required"}
	}
	for _, r := range c.Relays {
		if err := validateRelayURL(r); err != nil {
			return &ConfigError{Field: "relays", Reason: err.Error()}
		}
	}
	if c.PowDifficulty < 0 || c.PowDifficulty > 256 {
		return &ConfigError{Field: "pow_difficulty",
			Reason: "must be between 0 and 256"}
	}
	if c.PowThreads < 1 {
		return &ConfigError{Field: "pow_threads", Reason: "must be at least 1"}
	}
	return nil
}

func validateRelayURL(r string) error {
	u, err := url.Parse(strings.TrimSpace(r))
	if err != nil {
		return errors.New("'" + r + "' is not a URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("'" + r + "' must use the ws or wss scheme")
	}
	if u.Host == "" {
		return errors.New("'" + r + "' has no host")
	}
	return nil
}
