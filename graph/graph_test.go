package graph

import (
	"testing"

	"zkmlprove/claim"
)

func TestClaimsForNodeResolvesNodeAndModelEdges(t *testing.T) {
	claimsByNode := map[NodeId][]claim.Claim[int64]{
		1: {claim.New([]int64{1, 2}, int64(10))},
	}
	outputClaims := []claim.Claim[int64]{claim.New([]int64{3}, int64(99))}

	outputs := []OutputWire{
		{Edges: []Edge{NewEdge(1, 0)}},
		{Edges: []Edge{NewModelEdge(0)}},
	}

	got, err := ClaimsForNode(outputs, claimsByNode, outputClaims)
	if err != nil {
		t.Fatalf("ClaimsForNode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(got))
	}
	if got[0].Eval != 10 {
		t.Fatalf("node-routed claim: got %d want 10", got[0].Eval)
	}
	if got[1].Eval != 99 {
		t.Fatalf("model-routed claim: got %d want 99", got[1].Eval)
	}
}

func TestClaimsForNodeMissingNodeClaims(t *testing.T) {
	outputs := []OutputWire{{Edges: []Edge{NewEdge(7, 0)}}}
	_, err := ClaimsForNode[int64](outputs, map[NodeId][]claim.Claim[int64]{}, nil)
	if err == nil {
		t.Fatalf("expected error for missing node claims")
	}
}

func TestClaimsForNodeOutOfRangeOutputClaim(t *testing.T) {
	outputs := []OutputWire{{Edges: []Edge{NewModelEdge(3)}}}
	_, err := ClaimsForNode[int64](outputs, map[NodeId][]claim.Claim[int64]{}, []claim.Claim[int64]{})
	if err == nil {
		t.Fatalf("expected error for out-of-range output claim index")
	}
}

func TestClaimsForNodePanicsOnFanOut(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on fan-out output wire")
		}
	}()
	outputs := []OutputWire{{Edges: []Edge{NewModelEdge(0), NewModelEdge(1)}}}
	_, _ = ClaimsForNode[int64](outputs, map[NodeId][]claim.Claim[int64]{}, []claim.Claim[int64]{0: {}, 1: {}})
}

func TestInputClaimsCollectsDenseRange(t *testing.T) {
	claimsByNode := map[NodeId][]claim.Claim[int64]{
		0: {claim.New([]int64{1}, int64(5)), claim.New([]int64{1}, int64(6))},
		1: {claim.New([]int64{1}, int64(7))},
	}
	nodes := []NodeInputs{
		{Id: 0, Inputs: []Edge{NewModelEdge(1), NewModelEdge(0)}},
		{Id: 1, Inputs: []Edge{NewEdge(0, 0)}},
	}
	got, err := InputClaims(nodes, claimsByNode)
	if err != nil {
		t.Fatalf("InputClaims: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 input claims, got %d", len(got))
	}
	if got[0].Eval != 6 || got[1].Eval != 5 {
		t.Fatalf("input claims out of order: got [%d %d] want [6 5]", got[0].Eval, got[1].Eval)
	}
}

func TestInputClaimsRejectsSparseRange(t *testing.T) {
	claimsByNode := map[NodeId][]claim.Claim[int64]{
		0: {claim.New([]int64{1}, int64(5))},
	}
	nodes := []NodeInputs{
		{Id: 0, Inputs: []Edge{NewModelEdge(5)}},
	}
	_, err := InputClaims(nodes, claimsByNode)
	if err == nil {
		t.Fatalf("expected error for non-dense input claim index set")
	}
}

func TestInputClaimsRejectsEmpty(t *testing.T) {
	_, err := InputClaims[int64](nil, map[NodeId][]claim.Claim[int64]{})
	if err == nil {
		t.Fatalf("expected error when no input claims are found")
	}
}
