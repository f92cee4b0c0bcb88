package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/nostrmq/nostrmq/pkg/nostr/context"
	"github.com/nostrmq/nostrmq/pkg/nostr/event"
	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
	"github.com/nostrmq/nostrmq/pkg/nostrmq"
	"github.com/nostrmq/nostrmq/pkg/slog"
)

var (
	AppName = "nostrmq"
	Version = "v0.1.0"
)

type SendCmd struct {
	Target   string `arg:"positional,required" help:"recipient public key, 64 character hex"`
	Payload  string `arg:"positional" help:"JSON payload to send (reads stdin when omitted)"`
	Response string `arg:"--response" help:"public key replies should address instead of our own"`
	Pow      int    `arg:"--bits" default:"-1" help:"mine this many leading zero bits (-1 uses the configured default when --pow is set)"`
	UsePow   bool   `arg:"--pow" help:"enable proof of work at the configured difficulty"`
	Timeout  int    `arg:"--timeout" default:"2000" help:"publish timeout in milliseconds"`
}

type ListenCmd struct{}

type KeygenCmd struct{}

type args struct {
	nostrmq.Config
	Send    *SendCmd   `arg:"subcommand:send" help:"send a payload to a peer"`
	Listen  *ListenCmd `arg:"subcommand:listen" help:"print every message addressed to us"`
	Keygen  *KeygenCmd `arg:"subcommand:keygen" help:"generate a fresh identity key"`
	Profile string     `arg:"-C,--profile" help:"load configuration from a JSON profile file"`
}

func (args) Version() string { return AppName + " " + Version }

var log, chk = slog.New(os.Stderr)

func main() {
	var a args
	p := arg.MustParse(&a)
	// --loglevel takes effect unless GODEBUG already selects a level
	if os.Getenv("GODEBUG") == "" {
		for lvl, name := range []string{"off", "fatal", "error", "warn",
			"info", "debug", "trace"} {

			if a.LogLevel == name {
				slog.SetLogLevel(lvl)
			}
		}
	}
	runtime.GOMAXPROCS(runtime.NumCPU())

	if a.Keygen != nil {
		sk := keys.GeneratePrivateKey()
		pk, err := keys.GetPublicKey(sk)
		if chk.E(err) {
			os.Exit(1)
		}
		log.I.Ln("secret key (keep safe):", sk)
		log.I.Ln("public key (share):", pk)
		return
	}

	conf := a.Config
	if a.Profile != "" {
		// the profile file fills in relays, pow difficulty and cache dir
		// where flags and env vars left them unset or at their defaults;
		// other fields are not read from it, and the secret key never
		// lives in a profile
		var fileConf nostrmq.Config
		if err := fileConf.Load(filepath.Clean(a.Profile)); chk.E(err) {
			os.Exit(1)
		}
		if len(conf.Relays) == 0 {
			conf.Relays = fileConf.Relays
		}
		if conf.PowDifficulty == 0 {
			conf.PowDifficulty = fileConf.PowDifficulty
		}
		if conf.CacheDir == "" || conf.CacheDir == ".nostrmq" {
			if fileConf.CacheDir != "" {
				conf.CacheDir = fileConf.CacheDir
			}
		}
	}

	c, err := nostrmq.New(&conf)
	if chk.E(err) {
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := signal.NotifyContext(context.Bg(), os.Interrupt,
		syscall.SIGTERM)
	defer cancel()

	switch {
	case a.Send != nil:
		doSend(ctx, c, a.Send)
	case a.Listen != nil:
		doListen(ctx, c)
	default:
		p.WriteHelp(os.Stderr)
		os.Exit(2)
	}
}

func doSend(ctx context.T, c *nostrmq.Client, cmd *SendCmd) {
	raw := cmd.Payload
	if raw == "" {
		b, err := io.ReadAll(os.Stdin)
		if chk.E(err) {
			os.Exit(1)
		}
		raw = string(b)
	}
	var payload interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// not JSON; send it as a string
		payload = raw
	}
	pow := nostrmq.PowOff()
	if cmd.UsePow {
		pow = nostrmq.PowDefault()
	}
	if cmd.Pow >= 0 {
		pow = nostrmq.PowBits(cmd.Pow)
	}
	id, err := c.Send(ctx, nostrmq.SendOptions{
		Target:   cmd.Target,
		Payload:  payload,
		Response: cmd.Response,
		Pow:      pow,
		Timeout:  time.Duration(cmd.Timeout) * time.Millisecond,
	})
	if chk.E(err) {
		os.Exit(1)
	}
	log.I.Ln("published", id)
}

func doListen(ctx context.T, c *nostrmq.Client) {
	h, err := c.Receive(ctx, nostrmq.ReceiveOptions{
		OnMessage: func(payload json.RawMessage, sender string,
			raw *event.T) {

			log.I.F("message from %s: %s", sender, string(payload))
		},
	})
	if chk.E(err) {
		os.Exit(1)
	}
	defer h.Close()
	log.I.Ln("listening as", c.Pubkey())
	<-ctx.Done()
}
