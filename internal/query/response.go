package query

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	qverrors "QueryVerify/internal/errors"
)

const (
	// OffChainRequestIDLen is the request signature length for chain 0 requests.
	OffChainRequestIDLen = 65

	// OnChainRequestIDLen is the request id length for on-chain requests.
	OnChainRequestIDLen = 32
)

// QueryResponse is a guardian-attested answer to a QueryRequest.
type QueryResponse struct {
	RequestChainID uint16                  // RequestChainID is 0 for off-chain requests
	RequestID      []byte                  // RequestID is the requester signature or on-chain id
	RequestBytes   []byte                  // RequestBytes is the embedded request as sent
	Request        QueryRequest            // Request is the decoded request
	Responses      []PerChainQueryResponse // Responses answer Request.Queries in order
}

// PerChainQueryResponse is one chain's answer.
type PerChainQueryResponse struct {
	ChainID  uint16        // ChainID is the wormhole chain id
	Response ChainResponse // Response is the typed body
}

// ChainResponse is a typed per-chain response body.
type ChainResponse interface {
	Type() ChainQueryType
	encode(w *writer)
}

// EthCallQueryResponse answers an EthCallQueryRequest.
type EthCallQueryResponse struct {
	BlockNumber uint64      // BlockNumber is the block the calls ran at
	Hash        common.Hash // Hash is that block's hash
	Time        uint64      // Time is the block time in microseconds
	Results     [][]byte    // Results are the call return values
}

// EthCallByTimestampQueryResponse answers an EthCallByTimestampQueryRequest.
type EthCallByTimestampQueryResponse struct {
	TargetBlockNumber    uint64
	TargetBlockHash      common.Hash
	TargetBlockTime      uint64
	FollowingBlockNumber uint64
	FollowingBlockHash   common.Hash
	FollowingBlockTime   uint64
	Results              [][]byte
}

// EthCallWithFinalityQueryResponse answers an EthCallWithFinalityQueryRequest.
type EthCallWithFinalityQueryResponse struct {
	BlockNumber uint64
	Hash        common.Hash
	Time        uint64
	Results     [][]byte
}

// SolanaAccountResult is the state of one Solana account.
type SolanaAccountResult struct {
	Lamports   uint64
	RentEpoch  uint64
	Executable bool
	Owner      [32]byte
	Data       []byte
}

// SolanaAccountQueryResponse answers a SolanaAccountQueryRequest.
type SolanaAccountQueryResponse struct {
	SlotNumber uint64
	BlockTime  uint64
	BlockHash  [32]byte
	Results    []SolanaAccountResult
}

// SolanaPdaResult is the state of one program-derived account.
type SolanaPdaResult struct {
	Account    [32]byte
	Bump       uint8
	Lamports   uint64
	RentEpoch  uint64
	Executable bool
	Owner      [32]byte
	Data       []byte
}

// SolanaPdaQueryResponse answers a SolanaPdaQueryRequest.
type SolanaPdaQueryResponse struct {
	SlotNumber uint64
	BlockTime  uint64
	BlockHash  [32]byte
	Results    []SolanaPdaResult
}

func (*EthCallQueryResponse) Type() ChainQueryType { return EthCallQueryRequestType }

func (*EthCallByTimestampQueryResponse) Type() ChainQueryType {
	return EthCallByTimestampQueryRequestType
}

func (*EthCallWithFinalityQueryResponse) Type() ChainQueryType {
	return EthCallWithFinalityQueryRequestType
}

func (*SolanaAccountQueryResponse) Type() ChainQueryType { return SolanaAccountQueryRequestType }

func (*SolanaPdaQueryResponse) Type() ChainQueryType { return SolanaPdaQueryRequestType }

// ParseResponse strictly decodes a query response. Every length-delimited
// section must be consumed exactly, each response must match its query in
// chain and type, and no byte may follow the last response.
func ParseResponse(b []byte) (*QueryResponse, error) {
	r := newReader(b)
	resp := decodeResponse(r)

	if err := r.finish("response"); err != nil {
		return nil, errorsmod.Wrap(qverrors.ErrFailedToParseResponse, err.Error())
	}

	return resp, nil
}

// ParseRequest strictly decodes a query request.
func ParseRequest(b []byte) (*QueryRequest, error) {
	r := newReader(b)
	req := decodeRequest(r)

	if err := r.finish("request"); err != nil {
		return nil, errorsmod.Wrap(qverrors.ErrFailedToParseResponse, err.Error())
	}

	return &req, nil
}

func decodeResponse(r *reader) *QueryResponse {
	resp := &QueryResponse{}

	if v := r.u8("version"); r.err == nil && v != Version {
		r.fail("unsupported version %d", v)
	}

	resp.RequestChainID = r.u16("request chain id")

	idLen := OnChainRequestIDLen
	if resp.RequestChainID == 0 {
		idLen = OffChainRequestIDLen
	}
	if id := r.take(idLen, "request id"); id != nil {
		resp.RequestID = append([]byte{}, id...)
	}

	reqReader := r.sub("request")
	resp.RequestBytes = append([]byte{}, reqReader.buf...)
	resp.Request = decodeRequest(reqReader)
	if err := reqReader.finish("request"); err != nil {
		r.fail("request: %v", err)
		return resp
	}

	n := int(r.u8("response count"))
	if r.err == nil && n != len(resp.Request.Queries) {
		r.fail("response count %d does not match query count %d", n, len(resp.Request.Queries))
		return resp
	}

	for i := 0; i < n && r.err == nil; i++ {
		query := resp.Request.Queries[i]

		chainID := r.u16("response chain id")
		typ := ChainQueryType(r.u8("response type"))
		if r.err != nil {
			break
		}
		if chainID != query.ChainID {
			r.fail("response %d chain id %d does not match query chain id %d", i, chainID, query.ChainID)
			break
		}
		if typ != query.Query.Type() {
			r.fail("response %d type %s does not match query type %s", i, typ, query.Query.Type())
			break
		}

		body := r.sub("response body")
		chainResp := decodeChainResponse(typ, body)
		if err := body.finish(fmt.Sprintf("response %d", i)); err != nil {
			r.fail("response %d (%s): %v", i, typ, err)
			break
		}

		if err := checkResultCount(query.Query, chainResp); err != nil {
			r.fail("response %d: %v", i, err)
			break
		}

		resp.Responses = append(resp.Responses, PerChainQueryResponse{ChainID: chainID, Response: chainResp})
	}

	return resp
}

func decodeChainResponse(typ ChainQueryType, r *reader) ChainResponse {
	switch typ {
	case EthCallQueryRequestType:
		resp := &EthCallQueryResponse{BlockNumber: r.u64("block number")}
		r.fixed(resp.Hash[:], "block hash")
		resp.Time = r.u64("block time")
		resp.Results = decodeResults(r)
		return resp
	case EthCallByTimestampQueryRequestType:
		resp := &EthCallByTimestampQueryResponse{TargetBlockNumber: r.u64("target block number")}
		r.fixed(resp.TargetBlockHash[:], "target block hash")
		resp.TargetBlockTime = r.u64("target block time")
		resp.FollowingBlockNumber = r.u64("following block number")
		r.fixed(resp.FollowingBlockHash[:], "following block hash")
		resp.FollowingBlockTime = r.u64("following block time")
		resp.Results = decodeResults(r)
		return resp
	case EthCallWithFinalityQueryRequestType:
		resp := &EthCallWithFinalityQueryResponse{BlockNumber: r.u64("block number")}
		r.fixed(resp.Hash[:], "block hash")
		resp.Time = r.u64("block time")
		resp.Results = decodeResults(r)
		return resp
	case SolanaAccountQueryRequestType:
		resp := &SolanaAccountQueryResponse{
			SlotNumber: r.u64("slot number"),
			BlockTime:  r.u64("block time"),
		}
		r.fixed(resp.BlockHash[:], "block hash")
		n := int(r.u8("result count"))
		for i := 0; i < n && r.err == nil; i++ {
			res := SolanaAccountResult{
				Lamports:   r.u64("lamports"),
				RentEpoch:  r.u64("rent epoch"),
				Executable: r.bool("executable"),
			}
			r.fixed(res.Owner[:], "owner")
			res.Data = r.bytes("data")
			resp.Results = append(resp.Results, res)
		}
		return resp
	case SolanaPdaQueryRequestType:
		resp := &SolanaPdaQueryResponse{
			SlotNumber: r.u64("slot number"),
			BlockTime:  r.u64("block time"),
		}
		r.fixed(resp.BlockHash[:], "block hash")
		n := int(r.u8("result count"))
		for i := 0; i < n && r.err == nil; i++ {
			var res SolanaPdaResult
			r.fixed(res.Account[:], "account")
			res.Bump = r.u8("bump")
			res.Lamports = r.u64("lamports")
			res.RentEpoch = r.u64("rent epoch")
			res.Executable = r.bool("executable")
			r.fixed(res.Owner[:], "owner")
			res.Data = r.bytes("data")
			resp.Results = append(resp.Results, res)
		}
		return resp
	default:
		r.fail("unsupported response type %d", uint8(typ))
		return nil
	}
}

func decodeResults(r *reader) [][]byte {
	n := int(r.u8("result count"))

	results := make([][]byte, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		results = append(results, r.bytes("result"))
	}

	return results
}

// checkResultCount requires one result per requested call or account.
func checkResultCount(q ChainQuery, resp ChainResponse) error {
	var want, got int

	switch q := q.(type) {
	case *EthCallQueryRequest:
		want, got = len(q.CallData), len(resp.(*EthCallQueryResponse).Results)
	case *EthCallByTimestampQueryRequest:
		want, got = len(q.CallData), len(resp.(*EthCallByTimestampQueryResponse).Results)
	case *EthCallWithFinalityQueryRequest:
		want, got = len(q.CallData), len(resp.(*EthCallWithFinalityQueryResponse).Results)
	case *SolanaAccountQueryRequest:
		want, got = len(q.Accounts), len(resp.(*SolanaAccountQueryResponse).Results)
	case *SolanaPdaQueryRequest:
		want, got = len(q.PDAs), len(resp.(*SolanaPdaQueryResponse).Results)
	}

	if want != got {
		return fmt.Errorf("%d results for %d requested", got, want)
	}

	return nil
}

// Marshal encodes the response. RequestBytes is ignored; the request is
// re-encoded from Request.
func (q *QueryResponse) Marshal() ([]byte, error) {
	reqBytes, err := q.Request.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode request:\n%w", err)
	}

	idLen := OnChainRequestIDLen
	if q.RequestChainID == 0 {
		idLen = OffChainRequestIDLen
	}
	if len(q.RequestID) != idLen {
		return nil, fmt.Errorf("request id has %d bytes, want %d", len(q.RequestID), idLen)
	}

	w := &writer{}
	w.u8(Version)
	w.u16(q.RequestChainID)
	w.raw(q.RequestID)
	w.bytes(reqBytes)
	w.count(len(q.Responses), "responses")

	for _, pcr := range q.Responses {
		body := &writer{}
		pcr.Response.encode(body)

		b, err := body.result()
		if err != nil {
			return nil, fmt.Errorf("encode %s response:\n%w", pcr.Response.Type(), err)
		}

		w.u16(pcr.ChainID)
		w.u8(uint8(pcr.Response.Type()))
		w.bytes(b)
	}

	return w.result()
}

func encodeResults(w *writer, results [][]byte) {
	w.count(len(results), "results")
	for _, r := range results {
		w.bytes(r)
	}
}

func (r *EthCallQueryResponse) encode(w *writer) {
	w.u64(r.BlockNumber)
	w.raw(r.Hash[:])
	w.u64(r.Time)
	encodeResults(w, r.Results)
}

func (r *EthCallByTimestampQueryResponse) encode(w *writer) {
	w.u64(r.TargetBlockNumber)
	w.raw(r.TargetBlockHash[:])
	w.u64(r.TargetBlockTime)
	w.u64(r.FollowingBlockNumber)
	w.raw(r.FollowingBlockHash[:])
	w.u64(r.FollowingBlockTime)
	encodeResults(w, r.Results)
}

func (r *EthCallWithFinalityQueryResponse) encode(w *writer) {
	w.u64(r.BlockNumber)
	w.raw(r.Hash[:])
	w.u64(r.Time)
	encodeResults(w, r.Results)
}

func (r *SolanaAccountQueryResponse) encode(w *writer) {
	w.u64(r.SlotNumber)
	w.u64(r.BlockTime)
	w.raw(r.BlockHash[:])
	w.count(len(r.Results), "results")
	for _, res := range r.Results {
		w.u64(res.Lamports)
		w.u64(res.RentEpoch)
		w.bool(res.Executable)
		w.raw(res.Owner[:])
		w.bytes(res.Data)
	}
}

func (r *SolanaPdaQueryResponse) encode(w *writer) {
	w.u64(r.SlotNumber)
	w.u64(r.BlockTime)
	w.raw(r.BlockHash[:])
	w.count(len(r.Results), "results")
	for _, res := range r.Results {
		w.raw(res.Account[:])
		w.u8(res.Bump)
		w.u64(res.Lamports)
		w.u64(res.RentEpoch)
		w.bool(res.Executable)
		w.raw(res.Owner[:])
		w.bytes(res.Data)
	}
}
