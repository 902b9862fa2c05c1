package appdata

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/uhyunpark/hookorder/pkg/hook"
)

var (
	usdt   = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	robber = common.HexToAddress("0x9dfB98A93e96c9bf3EA2C3Fb06C52482D94d10a9")
)

func transferHook(t *testing.T, gas uint64) hook.CallDescriptor {
	t.Helper()
	desc, err := hook.ERC20().Encode(usdt, "transfer", gas, robber, big.NewInt(1000))
	if err != nil {
		t.Fatalf("failed to encode hook: %v", err)
	}
	return desc
}

func TestEmptyDocumentHash(t *testing.T) {
	c, err := Identify(ObjectValue(NewObject()))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}

	// Well-known appData value for "{}"
	want := "0xb48d38f93eaa084033fc5970bf96e559c33c4cdc07d889ab00b4d63f9590739d"
	if c.ID.Hex() != want {
		t.Errorf("hash = %s, want %s", c.ID.Hex(), want)
	}
	if c.Text() != "{}" {
		t.Errorf("canonical = %s, want {}", c.Text())
	}
}

func TestIdentifyDocument(t *testing.T) {
	doc := NewDocument(DocumentParams{PreHooks: []hook.CallDescriptor{transferHook(t, 50000)}})

	c, err := Identify(ObjectValue(doc))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}

	want := `{"appCode":"CoW Swap","metadata":{"hooks":{"pre":[{"callData":"0xa9059cbb` +
		`0000000000000000000000009dfb98a93e96c9bf3ea2c3fb06c52482d94d10a9` +
		`00000000000000000000000000000000000000000000000000000000000003e8",` +
		`"gasLimit":"50000","target":"0xdAC17F958D2ee523a2206206994597C13D831ec7"}]}},"version":"1.1.0"}`
	if c.Text() != want {
		t.Errorf("canonical =\n%s\nwant\n%s", c.Text(), want)
	}

	if c.ID.Hash != Keccak256([]byte(want)) {
		t.Errorf("hash = %s, want keccak of canonical text", c.ID.Hex())
	}
	if c.ID.SchemaVersion != LatestVersion {
		t.Errorf("schema version = %q, want %q", c.ID.SchemaVersion, LatestVersion)
	}
}

func TestIdentifierDeterminism(t *testing.T) {
	h := transferHook(t, 50000)

	first, err := Identify(ObjectValue(NewDocument(DocumentParams{PreHooks: []hook.CallDescriptor{h}})))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}

	// Same content assembled in a different insertion order
	w := h.ToWire()
	hookObj := NewObject().Set("gasLimit", String(w.GasLimit)).Set("callData", String(w.CallData)).Set("target", String(w.Target))
	manual := NewObject().
		Set("version", String(LatestVersion)).
		Set("metadata", ObjectValue(NewObject().Set("hooks", ObjectValue(NewObject().Set("pre", Array(ObjectValue(hookObj))))))).
		Set("appCode", String(DefaultAppCode))

	second, err := Identify(ObjectValue(manual))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}

	if first.Text() != second.Text() {
		t.Errorf("canonical forms differ:\n%s\n%s", first.Text(), second.Text())
	}
	if first.ID.Hash != second.ID.Hash || first.ID.String() != second.ID.String() {
		t.Errorf("identifiers differ: %s vs %s", first.ID, second.ID)
	}
}

func TestIdentifierSensitivity(t *testing.T) {
	base, err := Identify(ObjectValue(NewDocument(DocumentParams{PreHooks: []hook.CallDescriptor{transferHook(t, 50000)}})))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}

	variants := map[string]DocumentParams{
		"gas limit digit": {PreHooks: []hook.CallDescriptor{transferHook(t, 50001)}},
		"app code":        {AppCode: "CoW Hooks", PreHooks: []hook.CallDescriptor{transferHook(t, 50000)}},
		"version":         {Version: "1.0.0", PreHooks: []hook.CallDescriptor{transferHook(t, 50000)}},
		"environment":     {Environment: "staging", PreHooks: []hook.CallDescriptor{transferHook(t, 50000)}},
	}

	for name, params := range variants {
		t.Run(name, func(t *testing.T) {
			c, err := Identify(ObjectValue(NewDocument(params)))
			if err != nil {
				t.Fatalf("failed to identify: %v", err)
			}
			if c.ID.Hash == base.ID.Hash {
				t.Errorf("identifier unchanged after editing %s", name)
			}
		})
	}
}

func TestIdentifierCID(t *testing.T) {
	c, err := Identify(ObjectValue(NewObject()))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}

	text := c.ID.String()
	wantPrefix := "f01551b20" // base16, CIDv1, raw, keccak-256, 32 bytes
	if !strings.HasPrefix(text, wantPrefix) {
		t.Fatalf("CID = %s, want prefix %s", text, wantPrefix)
	}
	if text[len(wantPrefix):] != strings.TrimPrefix(c.ID.Hex(), "0x") {
		t.Errorf("CID digest = %s, want %s", text[len(wantPrefix):], c.ID.Hex())
	}

	parsed, err := ParseIdentifier(text)
	if err != nil {
		t.Fatalf("failed to parse CID: %v", err)
	}
	if parsed.Hash != c.ID.Hash {
		t.Errorf("parsed hash = %s, want %s", parsed.Hex(), c.ID.Hex())
	}

	// Other multibase spellings of the same CID decode to the same hash
	parsed, err = ParseIdentifier(c.ID.CID.String())
	if err != nil {
		t.Fatalf("failed to parse base32 CID: %v", err)
	}
	if parsed.Hash != c.ID.Hash {
		t.Errorf("base32 parsed hash = %s, want %s", parsed.Hex(), c.ID.Hex())
	}
}

func TestParseIdentifierRejectsLegacy(t *testing.T) {
	digest, err := mh.Sum([]byte("{}"), mh.SHA2_256, -1)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	legacy := cid.NewCidV0(digest)

	_, err = ParseIdentifier(legacy.String())
	if !errors.Is(err, ErrUnsupportedIdentifier) {
		t.Errorf("error = %v, want ErrUnsupportedIdentifier", err)
	}
}

func TestPreHooksRoundTrip(t *testing.T) {
	h := transferHook(t, 50000)
	doc := NewDocument(DocumentParams{PreHooks: []hook.CallDescriptor{h}})

	c, err := Identify(ObjectValue(doc))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}
	parsed, err := ParseObject(c.Bytes)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	hooks, err := PreHooks(parsed)
	if err != nil {
		t.Fatalf("failed to read hooks: %v", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("hooks = %d, want 1", len(hooks))
	}
	if hooks[0].String() != h.String() {
		t.Errorf("hook = %s, want %s", hooks[0], h)
	}

	if hooks, err := PreHooks(NewObject()); err != nil || len(hooks) != 0 {
		t.Errorf("empty document hooks = %v, %v", hooks, err)
	}

	bad := NewObject().Set("metadata", ObjectValue(NewObject().Set("hooks", ObjectValue(NewObject().Set("pre", String("nope"))))))
	if _, err := PreHooks(bad); err == nil {
		t.Error("non-array pre hooks should fail")
	}
}

func TestPreHooksReportsFirstBadField(t *testing.T) {
	// every field is malformed; the error names the first one every time
	hookObj := NewObject().Set("gasLimit", Int(1)).Set("callData", Null()).Set("target", Bool(true))
	doc := NewObject().Set("metadata", ObjectValue(NewObject().
		Set("hooks", ObjectValue(NewObject().Set("pre", Array(ObjectValue(hookObj)))))))

	for i := 0; i < 20; i++ {
		_, err := PreHooks(doc)
		if err == nil || !strings.Contains(err.Error(), "pre[0].target") {
			t.Fatalf("error = %v, want it to name pre[0].target", err)
		}
	}
}
