package nostrmq

import (
	"encoding/json"

	"github.com/nostrmq/nostrmq/pkg/nostr/keys"
)

// envelope is the cleartext JSON object carried, encrypted, in the content
// of every message event. The target always equals the p tag of the
// enclosing event, and the response names the key a reply should address.
type envelope struct {
	Target   string      `json:"target"`
	Response string      `json:"response"`
	Payload  interface{} `json:"payload"`
}

// receivedEnvelope is the decode-side form, keeping the payload raw so the
// required-field checks run before anyone interprets it.
type receivedEnvelope struct {
	Target   *string         `json:"target"`
	Response *string         `json:"response"`
	Payload  json.RawMessage `json:"payload"`
}

// parseEnvelope decodes a decrypted content string and enforces the
// envelope contract: target, response and payload all present, both key
// fields valid hex, and the target addressed to us.
func parseEnvelope(cleartext, selfPub string) (env receivedEnvelope,
	err error) {

	if err = json.Unmarshal([]byte(cleartext), &env); err != nil {
		return
	}
	switch {
	case env.Target == nil:
		err = log.D.Err("envelope missing target field")
	case env.Response == nil:
		err = log.D.Err("envelope missing response field")
	case env.Payload == nil:
		err = log.D.Err("envelope missing payload field")
	case !keys.IsValid32ByteHex(*env.Target):
		err = log.D.Err("envelope target '%s' is not a valid pubkey",
			*env.Target)
	case !keys.IsValid32ByteHex(*env.Response):
		err = log.D.Err("envelope response '%s' is not a valid pubkey",
			*env.Response)
	case *env.Target != selfPub:
		err = log.D.Err("envelope target '%s' is not us", *env.Target)
	}
	return
}
