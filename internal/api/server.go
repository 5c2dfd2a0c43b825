// Package api serves the query verification program over HTTP.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	qverrors "QueryVerify/internal/errors"
	"QueryVerify/internal/guardian"
	"QueryVerify/internal/ledger"
	"QueryVerify/internal/logger"
	"QueryVerify/internal/program"
	"QueryVerify/internal/sigbuf"
	"QueryVerify/internal/snapshot"
)

const (
	// DefaultMaxBodySize is the default request body limit in bytes.
	DefaultMaxBodySize = 1 << 20 // 1 MB
)

// Program executes instructions.
type Program interface {
	PostSignatures(ctx context.Context, args program.PostSignaturesArgs, signers program.Signers) (*sigbuf.Buffer, error)
	VerifyQuery(ctx context.Context, args program.VerifyQueryArgs) (*program.VerifyResult, error)
	CloseSignatures(ctx context.Context, args program.CloseSignaturesArgs, signers program.Signers) (uint64, error)
	Initialize(ctx context.Context, payer ledger.Pubkey, signers program.Signers) (ledger.Pubkey, error)
	FetchSignatures(ctx context.Context, addr ledger.Pubkey) (*sigbuf.Buffer, error)
}

// GuardianSets reads published guardian sets.
type GuardianSets interface {
	Get(ctx context.Context, index uint32) (*guardian.Set, ledger.Pubkey, error)
}

// Config configures a Server.
type Config struct {
	Addr        string           // Addr is the HTTP listen address
	MaxBodySize int64            // MaxBodySize limits request bodies; zero uses DefaultMaxBodySize
	Now         func() time.Time // Now checks envelope expiry; nil uses time.Now
}

// Server is the HTTP API server.
type Server struct {
	cfg     Config         // cfg holds the listen address and limits
	program Program        // program executes instructions
	sets    GuardianSets   // sets serves guardian set lookups
	ledger  *ledger.Ledger // ledger serves accounts and snapshots
	log     *slog.Logger

	mu       sync.Mutex
	server   *http.Server // server is the underlying HTTP server
	listener net.Listener // listener is bound by Start
}

// New creates a new HTTP API server.
func New(cfg Config, p Program, sets GuardianSets, l *ledger.Ledger) *Server {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Server{
		cfg:     cfg,
		program: p,
		sets:    sets,
		ledger:  l,
		log:     logger.Component("api"),
	}
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/signatures", s.handlePostSignatures)
	mux.HandleFunc("POST /v1/verify", s.handleVerifyQuery)
	mux.HandleFunc("POST /v1/close", s.handleCloseSignatures)
	mux.HandleFunc("POST /v1/initialize", s.handleInitialize)
	mux.HandleFunc("GET /v1/signatures/{address}", s.handleGetSignatures)
	mux.HandleFunc("GET /v1/guardian-sets/{index}", s.handleGetGuardianSet)
	mux.HandleFunc("GET /v1/accounts/{address}", s.handleGetAccount)
	mux.HandleFunc("GET /v1/snapshot", s.handleSnapshot)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start binds the listen address and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s:\n%w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.server = srv
	s.mu.Unlock()

	go func() {
		s.log.Info("http api started", "addr", ln.Addr().String())

		if err := srv.Serve(ln); err != http.ErrServerClosed {
			s.log.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.cfg.Addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

// handlePostSignatures handles POST /v1/signatures requests.
func (s *Server) handlePostSignatures(w http.ResponseWriter, r *http.Request) {
	var req PostSignaturesRequest

	ctx, signers, err := s.readEnvelope(r, InstructionPostSignatures, &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	records, err := sigbuf.ParseGuardianSignatures(req.GuardianSignatures)
	if err != nil {
		s.writeError(w, errorsmod.Wrap(qverrors.ErrInvalidInstruction, err.Error()))
		return
	}

	buf, err := s.program.PostSignatures(ctx, program.PostSignaturesArgs{
		Payer:           req.Payer,
		Buffer:          req.Buffer,
		Records:         records,
		TotalSignatures: req.TotalSignatures,
	}, signers)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bufferResponse(req.Buffer, buf))
}

// handleVerifyQuery handles POST /v1/verify requests.
func (s *Server) handleVerifyQuery(w http.ResponseWriter, r *http.Request) {
	var req VerifyQueryRequest

	ctx, _, err := s.readEnvelope(r, InstructionVerifyQuery, &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	args := program.VerifyQueryArgs{
		Buffer:           req.Buffer,
		GuardianSetIndex: req.GuardianSetIndex,
		Payload:          req.Response,
	}
	if req.GuardianSet != nil {
		args.GuardianSet = *req.GuardianSet
	}
	if req.RefundRecipient != nil {
		args.RefundRecipient = *req.RefundRecipient
	}

	res, err := s.program.VerifyQuery(ctx, args)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VerifyQueryResponse{
		Digest:           res.Digest,
		GuardianSetIndex: res.GuardianSetIndex,
		ValidSignatures:  res.ValidSignatures,
		Refunded:         res.Refunded,
		RefundRecipient:  res.RefundRecipient,
		Nonce:            res.Response.Request.Nonce,
		Responses:        len(res.Response.Responses),
	})
}

// handleCloseSignatures handles POST /v1/close requests.
func (s *Server) handleCloseSignatures(w http.ResponseWriter, r *http.Request) {
	var req CloseSignaturesRequest

	ctx, signers, err := s.readEnvelope(r, InstructionCloseSignatures, &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	refunded, err := s.program.CloseSignatures(ctx, program.CloseSignaturesArgs{
		Buffer:          req.Buffer,
		RefundRecipient: req.RefundRecipient,
	}, signers)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CloseSignaturesResponse{Refunded: refunded})
}

// handleInitialize handles POST /v1/initialize requests.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest

	ctx, signers, err := s.readEnvelope(r, InstructionInitialize, &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	addr, err := s.program.Initialize(ctx, req.Payer, signers)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, InitializeResponse{Config: addr})
}

// handleGetSignatures handles GET /v1/signatures/{address} requests.
func (s *Server) handleGetSignatures(w http.ResponseWriter, r *http.Request) {
	addr, err := pathPubkey(r, "address")
	if err != nil {
		s.writeError(w, err)
		return
	}

	buf, err := s.program.FetchSignatures(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bufferResponse(addr, buf))
}

// handleGetGuardianSet handles GET /v1/guardian-sets/{index} requests.
func (s *Server) handleGetGuardianSet(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(r.PathValue("index"), 10, 32)
	if err != nil {
		s.writeError(w, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "guardian set index %q", r.PathValue("index")))
		return
	}

	set, addr, err := s.sets.Get(r.Context(), uint32(index))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GuardianSetResponse{
		Index:          set.Index,
		Address:        addr,
		Keys:           set.Keys,
		CreationTime:   set.CreationTime,
		ExpirationTime: set.ExpirationTime,
		Quorum:         set.Quorum(),
	})
}

// handleGetAccount handles GET /v1/accounts/{address} requests.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pathPubkey(r, "address")
	if err != nil {
		s.writeError(w, err)
		return
	}

	acc, err := s.ledger.Account(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if acc == nil {
		s.writeError(w, errorsmod.Wrapf(qverrors.ErrAccountNotFound, "account %s", addr))
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{
		Address:  acc.Address,
		Owner:    acc.Owner,
		Lamports: acc.Lamports,
		Data:     acc.Data,
	})
}

// handleSnapshot handles GET /v1/snapshot requests.
// The body is the zstd-compressed snapshot; its checksum is sent as a header.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := snapshot.Create(r.Context(), s.ledger)
	if err != nil {
		s.writeError(w, err)
		return
	}

	checksum, err := snapshot.Checksum(data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	compressed, err := snapshot.Compress(data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("X-Snapshot-Checksum", hex.EncodeToString(checksum[:]))
	w.WriteHeader(http.StatusOK)
	w.Write(compressed)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// readEnvelope reads a signed instruction, checks its name, expiry and
// signatures, and decodes its arguments into args. The returned context
// carries the envelope's receipt when it is signed, so the instruction
// commits at most once.
func (s *Server) readEnvelope(r *http.Request, instruction string, args any) (context.Context, program.Signers, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodySize+1))
	if err != nil {
		return nil, nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "read body: %v", err)
	}
	if int64(len(body)) > s.cfg.MaxBodySize {
		return nil, nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "body exceeds %d bytes", s.cfg.MaxBodySize)
	}
	if len(body) == 0 {
		return nil, nil, errorsmod.Wrap(qverrors.ErrInvalidInstruction, "empty body")
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "decode envelope: %v", err)
	}

	if env.Instruction != instruction {
		return nil, nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "instruction %q sent to %s endpoint", env.Instruction, instruction)
	}

	signers, err := env.Verify(s.cfg.Now())
	if err != nil {
		return nil, nil, err
	}

	if err := json.Unmarshal(env.Args, args); err != nil {
		return nil, nil, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "decode %s args: %v", instruction, err)
	}

	ctx := r.Context()
	if len(signers) > 0 {
		ctx = ledger.WithReceipt(ctx, env.Receipt())
	}

	return ctx, signers, nil
}

// pathPubkey parses a base58 path parameter.
func pathPubkey(r *http.Request, name string) (ledger.Pubkey, error) {
	pk, err := ledger.ParsePubkey(r.PathValue(name))
	if err != nil {
		return ledger.Pubkey{}, errorsmod.Wrapf(qverrors.ErrInvalidInstruction, "%s: %v", name, err)
	}

	return pk, nil
}

func bufferResponse(addr ledger.Pubkey, buf *sigbuf.Buffer) BufferResponse {
	sigs := make([]string, len(buf.Records))
	for i, rec := range buf.Records {
		sigs[i] = sigbuf.GuardianSignatureHex(rec)
	}

	return BufferResponse{
		Address:            addr,
		WriteAuthority:     buf.WriteAuthority,
		RefundRecipient:    buf.RefundRecipient,
		TotalSignatures:    buf.TotalSignatures,
		GuardianSignatures: sigs,
	}
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case qverrors.IsNotFound(err):
		return http.StatusNotFound
	case qverrors.IsAuthorization(err):
		return http.StatusForbidden
	case errors.Is(err, qverrors.ErrDuplicateInstruction):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}

	if codespace, _ := qverrors.Info(err); codespace == qverrors.Codespace {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// writeError writes an error response carrying the registered code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	codespace, code := qverrors.Info(err)

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}

	writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Codespace: codespace,
		Code:      code,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
