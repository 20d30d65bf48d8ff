// Package wallet defines the external signature-verification contract used
// only at ready time (spec.md §6). Real eth/sol cryptographic verification
// is explicitly out of scope for this engine; production deployments wire
// in their own Verifier.
package wallet

// Type is the wallet family a signature was produced by.
type Type string

const (
	TypeEthereum Type = "eth"
	TypeSolana   Type = "sol"
)

// Verifier checks that message was signed by the wallet playerId claims to
// control. The engine calls this only from ready(); nothing else depends
// on it.
type Verifier interface {
	Verify(walletType Type, playerID, message, signature string) bool
}

// DevVerifier is a stand-in Verifier for tests and local development: it
// accepts any non-empty signature. It performs no cryptography and MUST
// NOT be used against real funds.
type DevVerifier struct{}

func (DevVerifier) Verify(_ Type, _, _, signature string) bool {
	return signature != ""
}
