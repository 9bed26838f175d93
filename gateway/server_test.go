package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"tradefarm/core/state"
	"tradefarm/native/farming"
	"tradefarm/native/token"
	"tradefarm/storage"
)

const (
	ownerSecret = "test-owner-secret"
	ownerHex    = "0x0101010101010101010101010101010101010101"
	aliceHex    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

var programStart = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	server  *Server
	manager *state.Manager
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := farming.NewEngine()

	var owner [20]byte
	for i := range owner {
		owner[i] = 0x01
	}
	_, err := manager.Update(func(txn *state.Txn) error {
		_, initErr := engine.InitProgram(txn, farming.Params{
			StartTime:      programStart,
			PreviousVolume: bigInt(t, "1000"),
			PreviousDays:   10,
			TotalDays:      5,
			Owner:          owner,
		})
		if initErr != nil {
			return initErr
		}
		return token.Mint(txn, owner, bigInt(t, "1000000"))
	})
	require.NoError(t, err)

	fx := &fixture{manager: manager, now: programStart.Add(time.Hour)}
	fx.server = New(Config{
		Manager:   manager,
		Engine:    engine,
		JWTSecret: ownerSecret,
		Now:       func() time.Time { return fx.now },
	})
	return fx
}

func bigInt(t *testing.T, raw string) *big.Int {
	t.Helper()
	value, ok := new(big.Int).SetString(raw, 10)
	require.True(t, ok)
	return value
}

func (fx *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
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
	req.RemoteAddr = "203.0.113.7:4242"
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, req)
	return rec
}

func ownerToken(t *testing.T, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "owner",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authHeader(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": "Bearer " + ownerToken(t, ownerSecret)}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	payload := map[string]string{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	return payload
}

func (fx *fixture) deposit(t *testing.T, amount string) {
	t.Helper()
	rec := fx.do(t, http.MethodPost, "/v1/pool/deposit", map[string]string{"amount": amount}, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (fx *fixture) trade(t *testing.T, id, account, amount string, at time.Time) {
	t.Helper()
	rec := fx.do(t, http.MethodPost, "/v1/trades", map[string]any{
		"tradeId":   id,
		"account":   account,
		"amount":    amount,
		"timestamp": at.Unix(),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTradeAndQueries(t *testing.T) {
	fx := newFixture(t)
	fx.deposit(t, "100000")
	fx.trade(t, "t0", aliceHex, "1000", programStart.Add(time.Hour))

	rec := fx.do(t, http.MethodGet, "/v1/days/0/volume", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1000", decodeBody(t, rec)["amount"])

	rec = fx.do(t, http.MethodGet, "/v1/days/0/baseline", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1000", decodeBody(t, rec)["amount"])

	rec = fx.do(t, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/volume/0", aliceHex), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1000", decodeBody(t, rec)["volume"])

	rec = fx.do(t, http.MethodGet, "/v1/pool", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "100000", decodeBody(t, rec)["balance"])
}

func TestTradeGeneratesIDWhenMissing(t *testing.T) {
	fx := newFixture(t)
	rec := fx.do(t, http.MethodPost, "/v1/trades", map[string]any{
		"account": aliceHex,
		"amount":  "500",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decodeBody(t, rec)["tradeId"])
}

func TestTradeRejectsMalformedRequests(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/v1/trades", map[string]any{"account": "nope", "amount": "1"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/trades", map[string]any{"account": aliceHex, "amount": "-5"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTradeRejectsSkewedTimestamps(t *testing.T) {
	fx := newFixture(t)

	for _, ts := range []time.Time{fx.now.Add(-time.Hour), fx.now.Add(time.Hour)} {
		rec := fx.do(t, http.MethodPost, "/v1/trades", map[string]any{
			"tradeId":   "skewed",
			"account":   aliceHex,
			"amount":    "1000",
			"timestamp": ts.Unix(),
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}

	rec := fx.do(t, http.MethodGet, "/v1/days/0/volume", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", decodeBody(t, rec)["amount"])

	// Within the accepted skew the trade lands normally.
	fx.trade(t, "in-skew", aliceHex, "1000", fx.now.Add(-time.Minute))
	rec = fx.do(t, http.MethodGet, "/v1/days/0/volume", nil, nil)
	require.Equal(t, "1000", decodeBody(t, rec)["amount"])
}

func TestDepositRequiresOwnerToken(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/v1/pool/deposit", map[string]string{"amount": "100"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/pool/deposit", map[string]string{"amount": "100"},
		map[string]string{"Authorization": "Bearer " + ownerToken(t, "wrong-secret")})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	fx.deposit(t, "100000")
	// A second deposit conflicts with the single upfront funding event.
	rec = fx.do(t, http.MethodPost, "/v1/pool/deposit", map[string]string{"amount": "1"}, authHeader(t))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestClaimFlow(t *testing.T) {
	fx := newFixture(t)
	fx.deposit(t, "100000")
	fx.trade(t, "t0", aliceHex, "1000", programStart.Add(time.Hour))

	// Cross the day boundary so the claim finalizes day 0.
	fx.now = programStart.Add(25 * time.Hour)

	rec := fx.do(t, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/claimable", aliceHex), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", decodeBody(t, rec)["claimable"])

	rec = fx.do(t, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/claim", aliceHex), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "22000", decodeBody(t, rec)["claimed"])

	rec = fx.do(t, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/balance", aliceHex), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "22000", decodeBody(t, rec)["balance"])

	rec = fx.do(t, http.MethodPost, fmt.Sprintf("/v1/accounts/%s/claim", aliceHex), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", decodeBody(t, rec)["claimed"])
}

func TestDayAndCaughtUp(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodGet, "/v1/day", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"day": 0}`, rec.Body.String())

	rec = fx.do(t, http.MethodGet, "/v1/caught-up", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"caughtUp": true}`, rec.Body.String())

	fx.now = programStart.Add(25 * time.Hour)
	rec = fx.do(t, http.MethodGet, "/v1/caught-up", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"caughtUp": false}`, rec.Body.String())
}

func TestSweepAfterEpoch(t *testing.T) {
	fx := newFixture(t)
	fx.deposit(t, "100000")

	rec := fx.do(t, http.MethodPost, "/v1/pool/sweep", nil, authHeader(t))
	require.Equal(t, http.StatusConflict, rec.Code)

	fx.now = programStart.Add(6 * 24 * time.Hour)
	rec = fx.do(t, http.MethodPost, "/v1/pool/sweep", nil, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code)
	// Five zero-volume penalty days emit 18000 each.
	require.Equal(t, "10000", decodeBody(t, rec)["swept"])
}

func TestMintRequiresOwner(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, http.MethodPost, "/v1/token/mint", map[string]string{"account": aliceHex, "amount": "10"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/token/mint", map[string]string{"account": aliceHex, "amount": "10"}, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/balance", aliceHex), nil, nil)
	require.Equal(t, "10", decodeBody(t, rec)["balance"])
}
