package verify

import (
	"context"

	"github.com/samber/lo"

	"github.com/safekit/safe/pkg/signature"
	"github.com/safekit/safe/pkg/types"
)

// Decision is the aggregate authorization outcome. Results is index-aligned
// with the input signatures so callers can surface per-signature feedback.
type Decision struct {
	Valid   bool                     `json:"valid"`
	Count   int                      `json:"count"`
	Results []types.ValidationResult `json:"results"`
}

// Authorize validates every signature and counts distinct validated owners
// against the threshold. A signer counts once no matter how many supplied
// signatures validate to it, and only while it is in the owner set.
//
// Input order never affects the count (only the wire encoding needs
// sorting). threshold 0 trivially authorizes; rejecting zero-threshold
// Safes is the caller's policy, not the aggregator's.
//
// The returned error is structural only (malformed hash or signature);
// validation failures are reported inside the Decision.
func (v *Validator) Authorize(ctx context.Context, sigs []signature.Signature, owners []types.Address, threshold int, signedHash []byte, rawData []byte) (Decision, error) {
	d := Decision{Results: make([]types.ValidationResult, 0, len(sigs))}
	seen := make(map[types.Address]bool, len(sigs))

	for _, sig := range sigs {
		res, err := v.Validate(ctx, sig, signedHash, rawData)
		if err != nil {
			return Decision{}, err
		}
		d.Results = append(d.Results, res)
		if !res.Valid || seen[res.Signer] {
			continue
		}
		if !lo.Contains(owners, res.Signer) {
			continue
		}
		seen[res.Signer] = true
		d.Count++
	}
	d.Valid = d.Count >= threshold
	return d, nil
}
