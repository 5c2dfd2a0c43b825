package query

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Version is the only supported request and response format version.
const Version uint8 = 1

// ChainQueryType tags the body layout of a per-chain query and its response.
type ChainQueryType uint8

const (
	EthCallQueryRequestType             ChainQueryType = 1
	EthCallByTimestampQueryRequestType  ChainQueryType = 2
	EthCallWithFinalityQueryRequestType ChainQueryType = 3
	SolanaAccountQueryRequestType       ChainQueryType = 4
	SolanaPdaQueryRequestType           ChainQueryType = 5
)

func (t ChainQueryType) String() string {
	switch t {
	case EthCallQueryRequestType:
		return "eth_call"
	case EthCallByTimestampQueryRequestType:
		return "eth_call_by_timestamp"
	case EthCallWithFinalityQueryRequestType:
		return "eth_call_with_finality"
	case SolanaAccountQueryRequestType:
		return "sol_account"
	case SolanaPdaQueryRequestType:
		return "sol_pda"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// QueryRequest is the request embedded in a response.
type QueryRequest struct {
	Nonce   uint32                 // Nonce is chosen by the requester
	Queries []PerChainQueryRequest // Queries are answered in order
}

// PerChainQueryRequest is one query addressed to one chain.
type PerChainQueryRequest struct {
	ChainID uint16     // ChainID is the wormhole chain id
	Query   ChainQuery // Query is the typed body
}

// ChainQuery is a typed per-chain query body.
type ChainQuery interface {
	Type() ChainQueryType
	encode(w *writer)
}

// EthCallData is one contract call.
type EthCallData struct {
	To   common.Address // To is the contract address
	Data []byte         // Data is the ABI-encoded call
}

// EthCallQueryRequest is an eth_call batch at a block.
type EthCallQueryRequest struct {
	BlockID  string        // BlockID is a block number (hex) or hash
	CallData []EthCallData // CallData are the calls to run
}

// EthCallByTimestampQueryRequest is an eth_call batch at a target time.
type EthCallByTimestampQueryRequest struct {
	TargetTimestamp      uint64        // TargetTimestamp is in microseconds
	TargetBlockIDHint    string        // TargetBlockIDHint is the block at or before the target
	FollowingBlockIDHint string        // FollowingBlockIDHint is the block after the target
	CallData             []EthCallData // CallData are the calls to run
}

// EthCallWithFinalityQueryRequest is an eth_call batch that waits for finality.
type EthCallWithFinalityQueryRequest struct {
	BlockID  string        // BlockID is a block number (hex) or hash
	Finality string        // Finality is "finalized" or "safe"
	CallData []EthCallData // CallData are the calls to run
}

// SolanaAccountQueryRequest reads a set of Solana accounts.
type SolanaAccountQueryRequest struct {
	Commitment      string     // Commitment is the Solana commitment level
	MinContextSlot  uint64     // MinContextSlot is the oldest acceptable slot
	DataSliceOffset uint64     // DataSliceOffset is the start of returned data
	DataSliceLength uint64     // DataSliceLength is the length of returned data
	Accounts        [][32]byte // Accounts are the addresses to read
}

// SolanaPDAEntry identifies a program-derived account by its seeds.
type SolanaPDAEntry struct {
	ProgramAddress [32]byte // ProgramAddress is the deriving program
	Seeds          [][]byte // Seeds exclude the bump
}

// SolanaPdaQueryRequest reads a set of program-derived accounts.
type SolanaPdaQueryRequest struct {
	Commitment      string           // Commitment is the Solana commitment level
	MinContextSlot  uint64           // MinContextSlot is the oldest acceptable slot
	DataSliceOffset uint64           // DataSliceOffset is the start of returned data
	DataSliceLength uint64           // DataSliceLength is the length of returned data
	PDAs            []SolanaPDAEntry // PDAs are the accounts to derive and read
}

func (*EthCallQueryRequest) Type() ChainQueryType { return EthCallQueryRequestType }

func (*EthCallByTimestampQueryRequest) Type() ChainQueryType {
	return EthCallByTimestampQueryRequestType
}

func (*EthCallWithFinalityQueryRequest) Type() ChainQueryType {
	return EthCallWithFinalityQueryRequestType
}

func (*SolanaAccountQueryRequest) Type() ChainQueryType { return SolanaAccountQueryRequestType }

func (*SolanaPdaQueryRequest) Type() ChainQueryType { return SolanaPdaQueryRequestType }

// Marshal encodes the request.
// Format: [1B version] [4B nonce] [1B n] n*([2B chain] [1B type] [4B len] [body])
func (q *QueryRequest) Marshal() ([]byte, error) {
	w := &writer{}
	w.u8(Version)
	w.u32(q.Nonce)
	w.count(len(q.Queries), "queries")

	for _, pcq := range q.Queries {
		body := &writer{}
		pcq.Query.encode(body)

		b, err := body.result()
		if err != nil {
			return nil, fmt.Errorf("encode %s query:\n%w", pcq.Query.Type(), err)
		}

		w.u16(pcq.ChainID)
		w.u8(uint8(pcq.Query.Type()))
		w.bytes(b)
	}

	return w.result()
}

// decodeRequest parses a request that must fill r exactly.
func decodeRequest(r *reader) QueryRequest {
	var q QueryRequest

	if v := r.u8("request version"); r.err == nil && v != Version {
		r.fail("unsupported request version %d", v)
	}

	q.Nonce = r.u32("nonce")
	n := int(r.u8("query count"))

	for i := 0; i < n && r.err == nil; i++ {
		chainID := r.u16("query chain id")
		typ := ChainQueryType(r.u8("query type"))
		body := r.sub("query body")

		query := decodeQuery(typ, body)
		if err := body.finish(fmt.Sprintf("query %d", i)); err != nil {
			r.fail("query %d (%s): %v", i, typ, err)
			break
		}

		q.Queries = append(q.Queries, PerChainQueryRequest{ChainID: chainID, Query: query})
	}

	return q
}

func decodeQuery(typ ChainQueryType, r *reader) ChainQuery {
	switch typ {
	case EthCallQueryRequestType:
		return &EthCallQueryRequest{
			BlockID:  r.string("block id"),
			CallData: decodeCallData(r),
		}
	case EthCallByTimestampQueryRequestType:
		return &EthCallByTimestampQueryRequest{
			TargetTimestamp:      r.u64("target timestamp"),
			TargetBlockIDHint:    r.string("target block hint"),
			FollowingBlockIDHint: r.string("following block hint"),
			CallData:             decodeCallData(r),
		}
	case EthCallWithFinalityQueryRequestType:
		return &EthCallWithFinalityQueryRequest{
			BlockID:  r.string("block id"),
			Finality: r.string("finality"),
			CallData: decodeCallData(r),
		}
	case SolanaAccountQueryRequestType:
		q := &SolanaAccountQueryRequest{
			Commitment:      r.string("commitment"),
			MinContextSlot:  r.u64("min context slot"),
			DataSliceOffset: r.u64("data slice offset"),
			DataSliceLength: r.u64("data slice length"),
		}
		n := int(r.u8("account count"))
		for i := 0; i < n && r.err == nil; i++ {
			var acc [32]byte
			r.fixed(acc[:], "account")
			q.Accounts = append(q.Accounts, acc)
		}
		return q
	case SolanaPdaQueryRequestType:
		q := &SolanaPdaQueryRequest{
			Commitment:      r.string("commitment"),
			MinContextSlot:  r.u64("min context slot"),
			DataSliceOffset: r.u64("data slice offset"),
			DataSliceLength: r.u64("data slice length"),
		}
		n := int(r.u8("pda count"))
		for i := 0; i < n && r.err == nil; i++ {
			var e SolanaPDAEntry
			r.fixed(e.ProgramAddress[:], "program address")
			seeds := int(r.u8("seed count"))
			for j := 0; j < seeds && r.err == nil; j++ {
				e.Seeds = append(e.Seeds, r.bytes("seed"))
			}
			q.PDAs = append(q.PDAs, e)
		}
		return q
	default:
		r.fail("unsupported query type %d", uint8(typ))
		return nil
	}
}

func decodeCallData(r *reader) []EthCallData {
	n := int(r.u8("call count"))

	calls := make([]EthCallData, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		var c EthCallData
		r.fixed(c.To[:], "call to")
		c.Data = r.bytes("call data")
		calls = append(calls, c)
	}

	return calls
}

func encodeCallData(w *writer, calls []EthCallData) {
	w.count(len(calls), "calls")
	for _, c := range calls {
		w.raw(c.To[:])
		w.bytes(c.Data)
	}
}

func (q *EthCallQueryRequest) encode(w *writer) {
	w.bytes([]byte(q.BlockID))
	encodeCallData(w, q.CallData)
}

func (q *EthCallByTimestampQueryRequest) encode(w *writer) {
	w.u64(q.TargetTimestamp)
	w.bytes([]byte(q.TargetBlockIDHint))
	w.bytes([]byte(q.FollowingBlockIDHint))
	encodeCallData(w, q.CallData)
}

func (q *EthCallWithFinalityQueryRequest) encode(w *writer) {
	w.bytes([]byte(q.BlockID))
	w.bytes([]byte(q.Finality))
	encodeCallData(w, q.CallData)
}

func (q *SolanaAccountQueryRequest) encode(w *writer) {
	w.bytes([]byte(q.Commitment))
	w.u64(q.MinContextSlot)
	w.u64(q.DataSliceOffset)
	w.u64(q.DataSliceLength)
	w.count(len(q.Accounts), "accounts")
	for _, a := range q.Accounts {
		w.raw(a[:])
	}
}

func (q *SolanaPdaQueryRequest) encode(w *writer) {
	w.bytes([]byte(q.Commitment))
	w.u64(q.MinContextSlot)
	w.u64(q.DataSliceOffset)
	w.u64(q.DataSliceLength)
	w.count(len(q.PDAs), "pdas")
	for _, p := range q.PDAs {
		w.raw(p.ProgramAddress[:])
		w.count(len(p.Seeds), "seeds")
		for _, s := range p.Seeds {
			w.bytes(s)
		}
	}
}
