package common

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

const (
	// bidFixedBytesLen is [8 bytes] slotNum + [1 byte] fulfilled + [20 bytes]
	// bidder + [20 bytes] forger + [16 bytes] bidValue + [8 bytes] ethBlockNum
	bidFixedBytesLen = 8 + 1 + 20 + 20 + 16 + 8
	// AmountBytesLen is the length of a 128 bit amount
	AmountBytesLen = 16
)

// Bid is a struct that represents one bid in the Auction
type Bid struct {
	SlotNum     int64             `json:"slotNum" meddler:"slot_num"`
	BidValue    *big.Int          `json:"bidValue" meddler:"bid_value,bigint"`
	EthBlockNum int64             `json:"ethereumBlockNum" meddler:"eth_block_num"`
	Bidder      ethCommon.Address `json:"bidderAddr" meddler:"bidder_addr"`
	// Forger and URL of the bidder coordinator at bid time
	Forger ethCommon.Address `json:"forgerAddr" meddler:"forger_addr"`
	URL    string            `json:"URL" meddler:"url"`
	// Fulfilled is set once the bid has been settled by a forge in its slot
	Fulfilled bool `json:"fulfilled" meddler:"-"`
}

// Bytes returns the store representation of the bid
func (b *Bid) Bytes() ([]byte, error) {
	amount, err := AmountBytes(b.BidValue)
	if err != nil {
		return nil, Wrap(err)
	}
	out := make([]byte, bidFixedBytesLen+len(b.URL))
	putInt64(out[0:8], b.SlotNum)
	if b.Fulfilled {
		out[8] = 1
	}
	copy(out[9:29], b.Bidder.Bytes())
	copy(out[29:49], b.Forger.Bytes())
	copy(out[49:65], amount[:])
	putInt64(out[65:73], b.EthBlockNum)
	copy(out[bidFixedBytesLen:], b.URL)
	return out, nil
}

// BidFromBytes decodes a bid from its store representation
func BidFromBytes(b []byte) (*Bid, error) {
	if len(b) < bidFixedBytesLen {
		return nil, Wrap(fmt.Errorf("can not parse Bid, bytes len %d, expected at least %d",
			len(b), bidFixedBytesLen))
	}
	return &Bid{
		SlotNum:     getInt64(b[0:8]),
		Fulfilled:   b[8] == 1,
		Bidder:      ethCommon.BytesToAddress(b[9:29]),
		Forger:      ethCommon.BytesToAddress(b[29:49]),
		BidValue:    new(big.Int).SetBytes(b[49:65]),
		EthBlockNum: getInt64(b[65:73]),
		URL:         string(b[bidFixedBytesLen:]),
	}, nil
}

// AmountBytes returns the 16 byte big endian representation of a 128 bit
// amount
func AmountBytes(amount *big.Int) ([AmountBytesLen]byte, error) {
	var b [AmountBytesLen]byte
	if err := CheckAmount(amount); err != nil {
		return b, Wrap(err)
	}
	amount.FillBytes(b[:])
	return b, nil
}

// Claim is a withdrawal of the claimable balance of an address
type Claim struct {
	Owner       ethCommon.Address `json:"owner" meddler:"owner"`
	Amount      *big.Int          `json:"amount" meddler:"amount,bigint"`
	EthBlockNum int64             `json:"ethereumBlockNum" meddler:"eth_block_num"`
}

// ForgeAllocation is the settlement of a slot bid when its winner forges
type ForgeAllocation struct {
	SlotNum          int64             `json:"slotNum" meddler:"slot_num"`
	Bidder           ethCommon.Address `json:"bidderAddr" meddler:"bidder_addr"`
	Forger           ethCommon.Address `json:"forgerAddr" meddler:"forger_addr"`
	BurnAmount       *big.Int          `json:"burnAmount" meddler:"burn_amount,bigint"`
	DonationAmount   *big.Int          `json:"donationAmount" meddler:"donation_amount,bigint"`
	GovernanceAmount *big.Int          `json:"governanceAmount" meddler:"governance_amount,bigint"`
	EthBlockNum      int64             `json:"ethereumBlockNum" meddler:"eth_block_num"`
}

func putInt64(b []byte, v int64) {
	binary.BigEndian.PutUint64(b, uint64(v))
}

func getInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
