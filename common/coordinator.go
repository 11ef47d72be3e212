package common

import (
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Coordinator represents a Rollup coordinator who wishes to forge
type Coordinator struct {
	// Bidder is the address of the bidder
	Bidder ethCommon.Address `json:"bidderAddr" meddler:"bidder_addr"`
	// Forger is the address of the forger
	Forger ethCommon.Address `json:"forgerAddr" meddler:"forger_addr"`
	// EthBlockNum is the block in which the coordinator was registered
	EthBlockNum int64 `json:"ethereumBlock" meddler:"eth_block_num"`
	// URL of the coordinators API
	URL string `json:"URL" meddler:"url"`
}

// Bytes returns the store representation of the coordinator registration:
// [ forger 20 bytes | ethBlockNum 8 bytes | url ]
func (c *Coordinator) Bytes() []byte {
	b := make([]byte, 28+len(c.URL)) //nolint:gomnd
	copy(b[0:20], c.Forger.Bytes())
	putInt64(b[20:28], c.EthBlockNum)
	copy(b[28:], c.URL)
	return b
}

// CoordinatorFromBytes decodes the coordinator registration of bidder
func CoordinatorFromBytes(bidder ethCommon.Address, b []byte) (*Coordinator, error) {
	if len(b) < 28 { //nolint:gomnd
		return nil, Wrap(fmt.Errorf("can not parse Coordinator, bytes len %d", len(b)))
	}
	return &Coordinator{
		Bidder:      bidder,
		Forger:      ethCommon.BytesToAddress(b[0:20]),
		EthBlockNum: getInt64(b[20:28]),
		URL:         string(b[28:]),
	}, nil
}
