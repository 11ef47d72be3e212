package verifier

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientVerifyProof(t *testing.T) {
	var received verifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		if received.PublicInputs[0].Sign() == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"msg":"zero input"}`))
			return
		}
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second)
	one := big.NewInt(1)
	proofA := [2]*big.Int{one, one}
	proofB := [2][2]*big.Int{{one, one}, {one, one}}
	valid, err := client.VerifyProof(proofA, proofB, proofA, big.NewInt(42))
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, 0, received.PublicInputs[0].Cmp(big.NewInt(42)))
	assert.Equal(t, 0, received.Proof.PiB[1][0].Cmp(one))

	_, err = client.VerifyProof(proofA, proofB, proofA, big.NewInt(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero input")
}

func TestMock(t *testing.T) {
	m := &Mock{}
	valid, err := m.VerifyProof([2]*big.Int{}, [2][2]*big.Int{}, [2]*big.Int{}, big.NewInt(7))
	require.NoError(t, err)
	assert.True(t, valid)
	m.Invalid = true
	valid, err = m.VerifyProof([2]*big.Int{}, [2][2]*big.Int{}, [2]*big.Int{}, big.NewInt(8))
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Len(t, m.Inputs, 2)
}
