package common

// Known entity types. The catalog may contain others; they are passed through
// unchanged and can be used as filters like any of these.
const (
	EntityTypeOrganization   = "organization"
	EntityTypePerson         = "person"
	EntityTypeCommittee      = "committee"
	EntityTypeGovernmentBody = "government_body"
)

// Entity is an identity record from the entity catalog. Entities are
// immutable from the point of view of the network service.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"entity_type"`
}

// CooccurrenceEdge is one row of the precomputed co-occurrence table. The pair
// is unordered and callers must not assume EntityA < EntityB.
//
// Strength is the ranking and thresholding key. It is treated as an opaque
// ordering value and is not necessarily equal to Jaccard.
type CooccurrenceEdge struct {
	EntityA       string  `json:"entity_a_id"`
	EntityB       string  `json:"entity_b_id"`
	SharedCases   int     `json:"shared_case_count"`
	InviteCount   int     `json:"invite_cooccurrence_count"`
	ResponseCount int     `json:"response_cooccurrence_count"`
	Jaccard       float64 `json:"jaccard_score"`
	Strength      float64 `json:"relationship_strength"`
}

// Touches reports whether id is one of the two endpoints.
func (e CooccurrenceEdge) Touches(id string) bool {
	return e.EntityA == id || e.EntityB == id
}

// Other returns the endpoint opposite to id. The second return value is false
// if id is not an endpoint of the edge.
func (e CooccurrenceEdge) Other(id string) (string, bool) {
	switch id {
	case e.EntityA:
		return e.EntityB, true
	case e.EntityB:
		return e.EntityA, true
	default:
		return "", false
	}
}

// PairKey returns an orientation independent key for the edge.
func (e CooccurrenceEdge) PairKey() string {
	if e.EntityA < e.EntityB {
		return e.EntityA + "\x00" + e.EntityB
	}
	return e.EntityB + "\x00" + e.EntityA
}

// SubgraphNode is a node of a query response. Degree counts the edges of the
// same response that touch the node, not the degree in the full table.
type SubgraphNode struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"entity_type"`
	Degree int    `json:"degree"`
}

// SubgraphEdge is an edge of a query response. Both endpoints are always
// present in the accompanying node list.
type SubgraphEdge struct {
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Weight        float64 `json:"weight"`
	InviteCount   int     `json:"invite_count"`
	ResponseCount int     `json:"response_count"`
	SharedCases   int     `json:"shared_cases_count"`
	Jaccard       float64 `json:"jaccard_score"`
}

// Subgraph is the bounded, visualization ready view of the network.
type Subgraph struct {
	Nodes []SubgraphNode `json:"nodes"`
	Edges []SubgraphEdge `json:"edges"`
}

// EmptySubgraph returns a subgraph whose slices are non-nil so that it
// encodes as empty JSON arrays.
func EmptySubgraph() Subgraph {
	return Subgraph{
		Nodes: []SubgraphNode{},
		Edges: []SubgraphEdge{},
	}
}

// NeighborRecord is one entry of a neighbour ranking.
type NeighborRecord struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"entity_type"`
	SharedCases   int     `json:"shared_cases_count"`
	Jaccard       float64 `json:"jaccard_score"`
	InviteCount   int     `json:"invite_count"`
	ResponseCount int     `json:"response_count"`
	Strength      float64 `json:"relationship_strength"`
}
