package verifier

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/log"

	"github.com/dghubble/sling"
)

const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 2 * time.Second
	defaultTimeout         = 10 * time.Second
)

// Proof is a groth16 proof as sent to the verifier server
type Proof struct {
	PiA [2]*big.Int    `json:"pi_a"`
	PiB [2][2]*big.Int `json:"pi_b"`
	PiC [2]*big.Int    `json:"pi_c"`
}

// verifyRequest is the body of the verify endpoint
type verifyRequest struct {
	Proof Proof `json:"proof"`
	// PublicInputs has a single element: the batch input hash
	PublicInputs []*big.Int `json:"publicInputs"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// ErrorServer is the return struct for a verifier server error
type ErrorServer struct {
	Message string `json:"msg"`
}

func (e ErrorServer) Error() string {
	return fmt.Sprintf("verifier server error: %s", e.Message)
}

// Client is a verifier backed by an HTTP verifier server
type Client struct {
	URL     string
	client  *sling.Sling
	timeout time.Duration
}

// NewClient creates a Client for the verifier server at url.  A zero timeout
// uses the default one.
func NewClient(url string, timeout time.Duration) *Client {
	tr := &http.Transport{
		MaxIdleConns:       defaultMaxIdleConns,
		IdleConnTimeout:    defaultIdleConnTimeout,
		DisableCompression: true,
	}
	httpClient := &http.Client{Transport: tr}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		URL:     url,
		client:  sling.New().Base(url).Client(httpClient),
		timeout: timeout,
	}
}

func (c *Client) apiRequest(ctx context.Context, path string, body interface{},
	ret interface{}) error {
	req, err := c.client.New().Post(path).BodyJSON(body).Request()
	if err != nil {
		return common.Wrap(err)
	}
	var errSrv ErrorServer
	res, err := c.client.Do(req.WithContext(ctx), ret, &errSrv)
	if err != nil {
		return common.Wrap(err)
	}
	defer res.Body.Close() //nolint:errcheck
	if !(200 <= res.StatusCode && res.StatusCode < 300) {
		return common.Wrap(errSrv)
	}
	return nil
}

// VerifyProof asks the verifier server whether the proof is valid for input
func (c *Client) VerifyProof(proofA [2]*big.Int, proofB [2][2]*big.Int, proofC [2]*big.Int,
	input *big.Int) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	var res verifyResponse
	if err := c.apiRequest(ctx, "verify", &verifyRequest{
		Proof:        Proof{PiA: proofA, PiB: proofB, PiC: proofC},
		PublicInputs: []*big.Int{input},
	}, &res); err != nil {
		return false, common.Wrap(err)
	}
	log.Debugw("verifier response", "url", c.URL, "valid", res.Valid)
	return res.Valid, nil
}

// Mock is a verifier to be used in tests and devnets.  It doesn't check
// anything: it accepts every proof unless Invalid is set.
type Mock struct {
	Invalid bool
	// Inputs records the inputs of the verified proofs
	Inputs []*big.Int
}

// VerifyProof returns !m.Invalid
func (m *Mock) VerifyProof(proofA [2]*big.Int, proofB [2][2]*big.Int, proofC [2]*big.Int,
	input *big.Int) (bool, error) {
	m.Inputs = append(m.Inputs, new(big.Int).Set(input))
	return !m.Invalid, nil
}
