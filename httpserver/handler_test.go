package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namechain/registry/datastore"
	"github.com/namechain/registry/registrar"
	"github.com/namechain/registry/registry"
	"github.com/namechain/registry/roles"
)

var (
	registrarAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ownerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type testEnv struct {
	router    http.Handler
	clock     *clock.Mock
	registrar *registrar.Registrar
	registry  *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockClock := clock.NewMock()
	mockClock.Set(time.Unix(1700000000, 0))

	roleStore := roles.NewStore(logger)
	reg := registry.New(common.HexToAddress("0x1111"), roleStore, datastore.NewStore(), mockClock, logger)
	roleStore.BootstrapRootRoles(roles.Union(roles.RoleRegistrar, roles.RoleRenew), registrarAddr)

	rgr := registrar.New(registrarAddr, reg, &registrar.FixedPriceOracle{RatePerSecond: big.NewInt(1)},
		mockClock, time.Minute, time.Hour, logger)

	srv, err := New(&HTTPServerConfig{ListenAddr: "127.0.0.1:0", Log: logger}, NewHandler(rgr, reg, logger))
	require.NoError(t, err)

	return &testEnv{
		router:    srv.getRouter(),
		clock:     mockClock,
		registrar: rgr,
		registry:  reg,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRegistrationFlow(t *testing.T) {
	env := newTestEnv(t)

	secret := common.HexToHash("0x1234567890123456789012345678901234567890123456789012345678901234")
	duration := uint64(365 * 24 * 3600)

	commitment, err := registrar.MakeCommitment("alice", ownerAddr, secret,
		common.Address{}, common.Address{}, time.Duration(duration)*time.Second, [32]byte{})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/registrar/commitment", CommitmentRequest{Commitment: commitment.Hex()})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	env.clock.Add(2 * time.Minute)

	rec = env.do(t, http.MethodPost, "/api/registrar/register", RegisterRequest{
		Label:           "alice",
		Owner:           ownerAddr.Hex(),
		Secret:          secret.Hex(),
		DurationSeconds: duration,
		Payment:         fmt.Sprintf("%d", duration),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TokenID)
	assert.Equal(t, "0", resp.Change)

	rec = env.do(t, http.MethodGet, "/api/registry/name/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info registry.NameInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, ownerAddr, info.Owner)
	assert.Equal(t, "alice", info.Label)
}

func TestRegisterWithoutCommitment(t *testing.T) {
	env := newTestEnv(t)

	secret := common.HexToHash("0xabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	rec := env.do(t, http.MethodPost, "/api/registrar/register", RegisterRequest{
		Label:           "bob",
		Owner:           ownerAddr.Hex(),
		Secret:          secret.Hex(),
		DurationSeconds: 3600,
		Payment:         "3600",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestRegisterInsufficientPayment(t *testing.T) {
	env := newTestEnv(t)

	secret := common.HexToHash("0x1234567890123456789012345678901234567890123456789012345678901234")
	duration := uint64(3600)

	commitment, err := registrar.MakeCommitment("carol", ownerAddr, secret,
		common.Address{}, common.Address{}, time.Duration(duration)*time.Second, [32]byte{})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/registrar/commitment", CommitmentRequest{Commitment: commitment.Hex()})
	require.Equal(t, http.StatusAccepted, rec.Code)

	env.clock.Add(2 * time.Minute)

	rec = env.do(t, http.MethodPost, "/api/registrar/register", RegisterRequest{
		Label:           "carol",
		Owner:           ownerAddr.Hex(),
		Secret:          secret.Hex(),
		DurationSeconds: duration,
		Payment:         "10",
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
}

func TestNameInfoNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/registry/name/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNameInfoRejectsInvalidLabel(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/registry/name/foo.eth", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	overlong := strings.Repeat("a", 64)
	rec = env.do(t, http.MethodGet, "/api/registry/name/"+overlong, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriceQuote(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/registrar/price/alice?duration_seconds=100", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PriceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "100", resp.Base)
	assert.Equal(t, "0", resp.Premium)
	assert.Equal(t, "100", resp.Total)
}

func TestPriceQuoteRejectsZeroDuration(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/registrar/price/alice?duration_seconds=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/drain", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/undrain", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
