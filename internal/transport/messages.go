// Package transport implements the peer-to-peer RPC surface over gRPC: the
// wire message shapes, a gob-based codec standing in for protoc-generated
// marshaling, hand-declared service descriptors, and the typed client-side
// call helpers every node uses to talk to its peers.
package transport

// HashPos carries a raw ring identifier (20 bytes for a 160-bit space).
type HashPos struct {
	Key []byte
}

// Address carries a single peer address string.
type Address struct {
	Addr string
}

// Empty is the request/response shape for RPCs with no payload.
type Empty struct{}

// FindSuccessorReply answers FindSuccessor with the resolved peer.
type FindSuccessorReply struct {
	ID   []byte
	Addr string
}

// GetPredecessorReply answers GetPredecessor. Present is false when the
// responding node currently has no predecessor.
type GetPredecessorReply struct {
	Present bool
	ID      []byte
	Addr    string
}

// FingerEntry is one resolved finger, returned by FindClosestPrecedingFinger.
type FingerEntry struct {
	ID   []byte
	Addr string
}

// SuccessorListReply answers GetSuccessorList.
type SuccessorListReply struct {
	OwnAddress string
	Successors []FingerEntry
}

// NotifyRequest is sent by a node announcing itself as a candidate
// predecessor, carrying its proof-of-work admission token.
type NotifyRequest struct {
	Address       string
	PowTimestamp  int64
	PowNonce      uint64
	PowDifficulty int
}

// KvPair mirrors the wire shape of one stored key/value pair exactly as
// carried during Notify/Handoff streaming and GetKvStoreData.
type KvPair struct {
	Key            []byte
	Value          string
	ExpirationDate int64 // seconds since epoch, 0 = never
}

// GetStatus enumerates the outcomes of a Get RPC.
type GetStatus int32

const (
	StatusNone GetStatus = iota
	StatusOK
	StatusNotFound
	StatusExpired
)

// GetRequest carries the raw key bytes to look up.
type GetRequest struct {
	Key []byte
}

// GetReply answers a Get RPC.
type GetReply struct {
	Value  string
	Status GetStatus
}

// PutRequest carries a write, including the replication factor: a value
// above zero is routed to the primary unchanged, which stores the pair and
// sends it to the next Replication-1 successors with Replication set to
// zero; zero means "store only, don't forward further".
type PutRequest struct {
	Key         []byte
	Ttl         int64 // nanoseconds; 0 = never expires
	Replication int32
	Value       string
}

// NodeSummary answers GetNodeSummary with a debug snapshot of a node's
// routing state.
type NodeSummary struct {
	ID               []byte
	Addr             string
	PredecessorAddr  string
	HasPredecessor   bool
	Successors       []FingerEntry
	NonEmptyFingers  int32
}

// KvStoreSizeReply answers GetKvStoreSize.
type KvStoreSizeReply struct {
	Size int64
}

// KvStoreDataReply answers GetKvStoreData.
type KvStoreDataReply struct {
	Pairs []KvPair
}
