package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/namechain/registry/registrar"
	"github.com/namechain/registry/registry"
	"github.com/namechain/registry/roles"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler processes HTTP requests for the name registry service.
// Registrations go through the registrar's commit-reveal flow; reads
// hit the registry directly.
type Handler struct {
	registrar *registrar.Registrar
	registry  *registry.Registry
	log       *slog.Logger
}

// NewHandler creates a new HTTP request handler.
func NewHandler(reg *registrar.Registrar, names *registry.Registry, log *slog.Logger) *Handler {
	return &Handler{
		registrar: reg,
		registry:  names,
		log:       log,
	}
}

// CommitmentRequest carries a precomputed registration commitment.
type CommitmentRequest struct {
	Commitment string `json:"commitment"`
}

// RegisterRequest reveals the parameters behind an earlier commitment.
// Payment is a decimal wei amount.
type RegisterRequest struct {
	Label           string `json:"label"`
	Owner           string `json:"owner"`
	Secret          string `json:"secret"`
	Subregistry     string `json:"subregistry,omitempty"`
	Resolver        string `json:"resolver,omitempty"`
	DurationSeconds uint64 `json:"duration_seconds"`
	Referrer        string `json:"referrer,omitempty"`
	Payment         string `json:"payment"`
}

// RegisterResponse reports the minted token and any overpayment
// returned to the caller.
type RegisterResponse struct {
	TokenID string `json:"token_id"`
	Change  string `json:"change"`
}

// RenewRequest extends an existing registration.
type RenewRequest struct {
	Label           string `json:"label"`
	DurationSeconds uint64 `json:"duration_seconds"`
	Payment         string `json:"payment"`
}

// RenewResponse reports the new expiry and any overpayment.
type RenewResponse struct {
	Expiry uint64 `json:"expiry"`
	Change string `json:"change"`
}

// PriceResponse quotes rent for a label and duration.
type PriceResponse struct {
	Label           string `json:"label"`
	DurationSeconds uint64 `json:"duration_seconds"`
	Base            string `json:"base"`
	Premium         string `json:"premium"`
	Total           string `json:"total"`
}

// HandleCommitment accepts a registration commitment.
//
// URL format: POST /api/registrar/commitment
func (h *Handler) HandleCommitment(w http.ResponseWriter, r *http.Request) {
	var req CommitmentRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	commitment := common.HexToHash(req.Commitment)
	if commitment == (common.Hash{}) {
		http.Error(w, "invalid commitment hash", http.StatusBadRequest)
		return
	}

	if err := h.registrar.Commit(commitment); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"committed"}`))
}

// HandleRegister reveals a commitment and registers the name.
//
// URL format: POST /api/registrar/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !validLabel(req.Label) {
		http.Error(w, "invalid label", http.StatusBadRequest)
		return
	}
	if !common.IsHexAddress(req.Owner) {
		http.Error(w, "invalid owner address", http.StatusBadRequest)
		return
	}

	secret, err := parseHash(req.Secret)
	if err != nil {
		http.Error(w, "invalid secret", http.StatusBadRequest)
		return
	}
	referrer := common.Hash{}
	if req.Referrer != "" {
		referrer, err = parseHash(req.Referrer)
		if err != nil {
			http.Error(w, "invalid referrer", http.StatusBadRequest)
			return
		}
	}

	payment, ok := new(big.Int).SetString(req.Payment, 10)
	if !ok {
		http.Error(w, "invalid payment amount", http.StatusBadRequest)
		return
	}

	tokenID, change, err := h.registrar.Register(
		req.Label,
		common.HexToAddress(req.Owner),
		secret,
		common.HexToAddress(req.Subregistry),
		common.HexToAddress(req.Resolver),
		time.Duration(req.DurationSeconds)*time.Second,
		referrer,
		payment,
	)
	if err != nil {
		h.log.Info("Registration rejected",
			slog.String("label", req.Label),
			"err", err)
		h.writeDomainError(w, err)
		return
	}

	h.log.Info("Name registered via API",
		slog.String("label", req.Label),
		slog.String("owner", req.Owner))

	writeJSON(w, http.StatusOK, RegisterResponse{
		TokenID: tokenID.Hex(),
		Change:  change.String(),
	})
}

// HandleRenew extends an existing registration.
//
// URL format: POST /api/registrar/renew
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !validLabel(req.Label) {
		http.Error(w, "invalid label", http.StatusBadRequest)
		return
	}
	payment, ok := new(big.Int).SetString(req.Payment, 10)
	if !ok {
		http.Error(w, "invalid payment amount", http.StatusBadRequest)
		return
	}

	expiry, change, err := h.registrar.Renew(req.Label, time.Duration(req.DurationSeconds)*time.Second, payment)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RenewResponse{
		Expiry: expiry,
		Change: change.String(),
	})
}

// HandlePrice quotes rent for a label.
//
// URL format: GET /api/registrar/price/{label}?duration_seconds=31536000
func (h *Handler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	label := r.PathValue("label")
	if !validLabel(label) {
		http.Error(w, "invalid label", http.StatusBadRequest)
		return
	}

	var durationSeconds uint64
	if _, err := fmt.Sscanf(r.URL.Query().Get("duration_seconds"), "%d", &durationSeconds); err != nil || durationSeconds == 0 {
		http.Error(w, "invalid duration_seconds", http.StatusBadRequest)
		return
	}

	price, err := h.registrar.RentPrice(label, time.Duration(durationSeconds)*time.Second)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PriceResponse{
		Label:           label,
		DurationSeconds: durationSeconds,
		Base:            price.Base.String(),
		Premium:         price.Premium.String(),
		Total:           price.Total().String(),
	})
}

// HandleNameInfo resolves a registered name.
//
// URL format: GET /api/registry/name/{label}
func (h *Handler) HandleNameInfo(w http.ResponseWriter, r *http.Request) {
	label := r.PathValue("label")
	if !validLabel(label) {
		http.Error(w, "invalid label", http.StatusBadRequest)
		return
	}

	info, ok := h.registry.Info(label)
	if !ok {
		http.Error(w, "name not registered", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest

	var (
		tooNew       *registrar.CommitmentTooNewError
		tooOld       *registrar.CommitmentTooOldError
		unexpired    *registrar.UnexpiredCommitmentExistsError
		insufficient *registrar.InsufficientValueError
		taken        *registry.NameAlreadyRegisteredError
		expired      *registry.NameExpiredError
		unauthorized *roles.UnauthorizedError
	)

	switch {
	case errors.As(err, &tooNew), errors.As(err, &tooOld), errors.As(err, &unexpired), errors.As(err, &taken):
		status = http.StatusConflict
	case errors.As(err, &insufficient):
		status = http.StatusPaymentRequired
	case errors.As(err, &expired):
		status = http.StatusNotFound
	case errors.As(err, &unauthorized):
		status = http.StatusForbidden
	}

	http.Error(w, err.Error(), status)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// validLabel checks a single registrable label: non-empty, within the DNS
// label length limit, and free of separator dots.
func validLabel(label string) bool {
	return label != "" && len(label) <= 63 && !strings.Contains(label, ".")
}

func parseHash(s string) (common.Hash, error) {
	b := common.FromHex(s)
	if len(b) != 32 {
		return common.Hash{}, fmt.Errorf("expected 32 byte hex value")
	}
	return common.BytesToHash(b), nil
}
