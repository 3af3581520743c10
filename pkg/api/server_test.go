package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joonhyuk-dev/curio/params"
	"github.com/joonhyuk-dev/curio/pkg/asset"
	xcrypto "github.com/joonhyuk-dev/curio/pkg/crypto"
	"github.com/joonhyuk-dev/curio/pkg/market"
)

var (
	testOperator = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	testAdmin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type testEnv struct {
	srv      *httptest.Server
	engine   *market.Engine
	registry *asset.MemoryRegistry
	seller   *xcrypto.Signer
	typed    *xcrypto.TypedSigner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	seller, err := xcrypto.GenerateKey()
	require.NoError(t, err)

	registry := asset.NewMemoryRegistry()
	registry.Deploy(testContract)
	registry.SetApprovalForAll(testContract, seller.Address(), testOperator, true)

	cfg := params.Market{
		FeeBps:        300,
		MinOrderPrice: big.NewInt(1000),
		MaxBatchSize:  10,
		Operator:      testOperator,
		Admin:         testAdmin,
	}
	domain := xcrypto.DefaultDomain()
	engine := market.NewEngine(cfg, domain, registry, zap.NewNop())
	server := NewServer(engine, nil, zap.NewNop())

	env := &testEnv{
		srv:      httptest.NewServer(server.router),
		engine:   engine,
		registry: registry,
		seller:   seller,
		typed:    xcrypto.NewTypedSigner(domain),
	}
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// submitRequest mints a token and builds a signed listing request for it.
func (e *testEnv) submitRequest(t *testing.T, tokenID, price int64) SubmitOrderRequest {
	t.Helper()
	require.NoError(t, e.registry.Mint(testContract, big.NewInt(tokenID), e.seller.Address()))

	order := &market.Order{
		Seller:        e.seller.Address(),
		Price:         big.NewInt(price),
		AssetContract: testContract,
		TokenID:       big.NewInt(tokenID),
		Nonce:         e.engine.NonceOf(e.seller.Address()),
	}
	sig, err := e.typed.SignOrder(e.seller, order.Typed())
	require.NoError(t, err)

	return SubmitOrderRequest{
		Seller:        order.Seller.Hex(),
		Price:         order.Price.String(),
		AssetContract: order.AssetContract.Hex(),
		TokenID:       order.TokenID.String(),
		Nonce:         order.Nonce,
		Signature:     hexutil.Encode(sig),
	}
}

func TestSubmitAndGetOrder(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/v1/orders", env.submitRequest(t, 1, 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info OrderInfo
	decode(t, resp, &info)
	assert.Equal(t, "2000", info.Price)
	assert.Equal(t, env.seller.Address().Hex(), info.Seller)
	assert.NotEmpty(t, info.Hash)

	resp = env.get(t, "/api/v1/orders/"+info.Hash)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got OrderInfo
	decode(t, resp, &got)
	assert.Equal(t, info, got)

	resp = env.get(t, "/api/v1/orders")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []OrderInfo
	decode(t, resp, &list)
	assert.Len(t, list, 1)
}

func TestSubmitOrderRejections(t *testing.T) {
	env := newTestEnv(t)

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(env.srv.URL+"/api/v1/orders", "application/json", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad signature encoding", func(t *testing.T) {
		req := env.submitRequest(t, 2, 2000)
		req.Signature = "not-hex"
		resp := env.post(t, "/api/v1/orders", req)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("double listing conflicts", func(t *testing.T) {
		req := env.submitRequest(t, 3, 2000)
		resp := env.post(t, "/api/v1/orders", req)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = env.post(t, "/api/v1/orders", req)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		var e ErrorResponse
		decode(t, resp, &e)
		assert.Equal(t, "listing rejected", e.Error)
	})

	t.Run("unknown order is 404", func(t *testing.T) {
		resp := env.get(t, "/api/v1/orders/0xdeadbeef")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestDepositFulfillClaimFlow(t *testing.T) {
	env := newTestEnv(t)
	buyer := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	var listed OrderInfo
	resp := env.post(t, "/api/v1/orders", env.submitRequest(t, 1, 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &listed)

	resp = env.post(t, "/api/v1/accounts/"+buyer.Hex()+"/deposit", DepositRequest{Amount: "2000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var acct AccountInfo
	decode(t, resp, &acct)
	assert.Equal(t, "2000", acct.Balance)

	resp = env.post(t, "/api/v1/orders/"+listed.Hash+"/fulfill", FulfillRequest{
		Taker:   buyer.Hex(),
		Payment: "2000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fulfilled FulfillResponse
	decode(t, resp, &fulfilled)
	assert.Equal(t, "settled", fulfilled.Outcome)

	// Seller claims: 2000 - floor(2000*3%) = 1940.
	resp = env.post(t, "/api/v1/accounts/"+env.seller.Address().Hex()+"/claim", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claim ClaimResponse
	decode(t, resp, &claim)
	assert.Equal(t, "1940", claim.Amount)

	resp = env.get(t, "/api/v1/accounts/" + env.seller.Address().Hex())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sellerAcct AccountInfo
	decode(t, resp, &sellerAcct)
	assert.Equal(t, "1940", sellerAcct.Balance)
	assert.Equal(t, "0", sellerAcct.Proceeds)
	assert.Equal(t, uint64(1), sellerAcct.Nonce)
}

func TestFulfillRejections(t *testing.T) {
	env := newTestEnv(t)
	buyer := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	var listed OrderInfo
	resp := env.post(t, "/api/v1/orders", env.submitRequest(t, 1, 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &listed)

	t.Run("invalid payment string", func(t *testing.T) {
		resp := env.post(t, "/api/v1/orders/"+listed.Hash+"/fulfill", FulfillRequest{Taker: buyer.Hex(), Payment: "abc"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		resp := env.post(t, "/api/v1/orders/"+listed.Hash+"/fulfill", FulfillRequest{Taker: buyer.Hex(), Payment: "2000"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown hash is 404", func(t *testing.T) {
		resp := env.post(t, "/api/v1/orders/0x99/fulfill", FulfillRequest{Taker: buyer.Hex(), Payment: "2000"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRemoveOrderEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var listed OrderInfo
	resp := env.post(t, "/api/v1/orders", env.submitRequest(t, 1, 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &listed)

	stranger := common.HexToAddress("0x5555555555555555555555555555555555555555")
	resp = env.post(t, "/api/v1/orders/"+listed.Hash+"/remove", RemoveRequest{Caller: stranger.Hex()})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.post(t, "/api/v1/orders/"+listed.Hash+"/remove", RemoveRequest{Caller: env.seller.Address().Hex()})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.get(t, "/api/v1/orders/" + listed.Hash)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/v1/admin/pause", PauseRequest{Caller: env.seller.Address().Hex(), Paused: true})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.post(t, "/api/v1/admin/pause", PauseRequest{Caller: testAdmin.Hex(), Paused: true})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Paused engine refuses listings with 503.
	resp = env.post(t, "/api/v1/orders", env.submitRequest(t, 1, 2000))
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Health reports the flag while staying 200.
	resp = env.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	decode(t, resp, &health)
	assert.Equal(t, true, health["paused"])

	resp = env.post(t, "/api/v1/admin/pause", PauseRequest{Caller: testAdmin.Hex(), Paused: true})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.post(t, "/api/v1/admin/whitelist", WhitelistRequest{Caller: testAdmin.Hex(), Contract: testContract.Hex(), Allowed: true})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.engine.Whitelisted(testContract))
}

func TestOrderHashPreview(t *testing.T) {
	env := newTestEnv(t)

	// Preview the digest, then list with the same terms: the engine must
	// store the order under exactly the previewed digest.
	req := env.submitRequest(t, 1, 2000)
	resp := env.post(t, "/api/v1/orders/hash", OrderHashRequest{
		Seller:        req.Seller,
		Price:         req.Price,
		AssetContract: req.AssetContract,
		TokenID:       req.TokenID,
		Expiration:    req.Expiration,
		Nonce:         req.Nonce,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview map[string]string
	decode(t, resp, &preview)
	require.NotEmpty(t, preview["hash"])

	resp = env.post(t, "/api/v1/orders", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed OrderInfo
	decode(t, resp, &listed)
	assert.Equal(t, preview["hash"], listed.Hash)

	t.Run("invalid price rejected", func(t *testing.T) {
		resp := env.post(t, "/api/v1/orders/hash", OrderHashRequest{Price: "abc", TokenID: "1"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestBatchEndpoints(t *testing.T) {
	env := newTestEnv(t)
	buyer := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	var h1, h2 OrderInfo
	resp := env.post(t, "/api/v1/orders", env.submitRequest(t, 1, 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &h1)
	resp = env.post(t, "/api/v1/orders", env.submitRequest(t, 2, 3000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &h2)

	resp = env.post(t, "/api/v1/accounts/"+buyer.Hex()+"/deposit", DepositRequest{Amount: "5000"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.post(t, "/api/v1/orders/fulfill", BatchFulfillRequest{
		Taker:   buyer.Hex(),
		Hashes:  []string{h1.Hash, h2.Hash},
		Payment: "5000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results []BatchResultInfo
	decode(t, resp, &results)
	require.Len(t, results, 2)
	assert.Equal(t, "settled", results[0].Outcome)
	assert.Equal(t, "settled", results[1].Outcome)
}
