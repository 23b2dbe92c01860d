package boundwitness

import (
	"fmt"

	"xyonode/internal/heuristic"
	"xyonode/internal/packer"
)

// ExtractNested scans a completed block's signed heuristics for embedded
// Bridge items (bridged blocks a relaying node re-attests to) and returns
// them decoded, flattened across every participant, in encounter order.
// Feeds bridged-block consumers per spec.md §4.6.
func ExtractNested(p *packer.Packer, bw *BoundWitness) ([]*BoundWitness, error) {
	var nested []*BoundWitness

	for pi, payload := range bw.Payloads {
		for _, item := range payload.SignedHeuristics {
			if item.Major != heuristic.MajorHeuristic || item.Minor != heuristic.MinorBridge {
				continue
			}

			bridge, ok := item.Value.(heuristic.Bridge)
			if !ok {
				return nil, fmt.Errorf("nested extract: participant %d: unexpected Bridge value type %T", pi, item.Value)
			}

			decoded, err := p.Deserialize(bridge.Encoded)
			if err != nil {
				return nil, fmt.Errorf("nested extract: participant %d: %w", pi, err)
			}

			inner, ok := decoded.(*BoundWitness)
			if !ok {
				return nil, fmt.Errorf("nested extract: participant %d: decoded %T, not a BoundWitness", pi, decoded)
			}

			nested = append(nested, inner)
		}
	}

	return nested, nil
}
