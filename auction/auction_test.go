package auction

import (
	"math/big"
	"testing"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database/kvdb"
	"tokamak-forge-auction/token"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisBlock = 100

var (
	tokenAddr       = ethCommon.HexToAddress("0x1001")
	auctionAddr     = ethCommon.HexToAddress("0x1002")
	governanceAddr  = ethCommon.HexToAddress("0x1003")
	donationAddr    = ethCommon.HexToAddress("0x1004")
	bootCoordinator = ethCommon.HexToAddress("0x1005")
	bidder1         = ethCommon.HexToAddress("0x2001")
	forger1         = ethCommon.HexToAddress("0x3001")
	bidder2         = ethCommon.HexToAddress("0x2002")
	forger2         = ethCommon.HexToAddress("0x3002")
	anybody         = ethCommon.HexToAddress("0x4444")
)

func e18(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1e18))
}

type testAuction struct {
	t       *testing.T
	chain   *chain.Chain
	token   *token.ERC20
	auction *Auction
}

func newTestAuction(t *testing.T) *testAuction {
	k, err := kvdb.NewKVDB(kvdb.Config{InMemory: true})
	require.NoError(t, err)
	c, err := chain.NewChain(chain.Config{ChainID: 1}, k)
	require.NoError(t, err)
	tk := token.NewERC20(tokenAddr, "Tokamak Network", "TON")
	a, err := NewAuction(&common.AuctionConstants{
		BlocksPerSlot:     common.AuctionBlocksPerSlot,
		GenesisBlockNum:   genesisBlock,
		TokenAddress:      tokenAddr,
		AuctionAddress:    auctionAddr,
		GovernanceAddress: governanceAddr,
	}, tk)
	require.NoError(t, err)
	ta := &testAuction{t: t, chain: c, token: tk, auction: a}

	vars := common.NewAuctionVariables(donationAddr, bootCoordinator, "https://boot.coord")
	require.NoError(t, ta.exec(governanceAddr, func(tx *chain.Tx) error {
		return a.Initialize(tx, vars)
	}))
	for _, coord := range []struct{ bidder, forger ethCommon.Address }{
		{bidder1, forger1}, {bidder2, forger2},
	} {
		coord := coord
		require.NoError(t, ta.exec(coord.bidder, func(tx *chain.Tx) error {
			if err := tk.Mint(tx, coord.bidder, e18(1000)); err != nil {
				return err
			}
			if err := tk.Approve(tx, auctionAddr, e18(1000)); err != nil {
				return err
			}
			return a.SetCoordinator(tx, coord.forger, "https://"+coord.forger.Hex())
		}))
	}
	return ta
}

func (ta *testAuction) exec(from ethCommon.Address, fn func(tx *chain.Tx) error) error {
	_, err := ta.chain.Execute(from, "test", fn)
	return err
}

func (ta *testAuction) call(fn func(tx *chain.Tx) error) {
	require.NoError(ta.t, ta.chain.Call(fn))
}

func (ta *testAuction) bid(from ethCommon.Address, slot int64, amount *big.Int) error {
	return ta.exec(from, func(tx *chain.Tx) error {
		return ta.auction.ProcessBid(tx, slot, amount, amount, nil)
	})
}

func (ta *testAuction) claimable(addr ethCommon.Address) *big.Int {
	var v *big.Int
	ta.call(func(tx *chain.Tx) error {
		var err error
		v, err = ta.auction.GetClaimableHEZ(tx, addr)
		return err
	})
	return v
}

func (ta *testAuction) balance(addr ethCommon.Address) *big.Int {
	var v *big.Int
	ta.call(func(tx *chain.Tx) error {
		var err error
		v, err = ta.token.BalanceOf(tx, addr)
		return err
	})
	return v
}

func (ta *testAuction) canForge(forger ethCommon.Address, blockNum int64) (bool, error) {
	var v bool
	var err error
	ta.call(func(tx *chain.Tx) error {
		v, err = ta.auction.CanForge(tx, forger, blockNum)
		return nil
	})
	return v, err
}

func assertBigEqual(t *testing.T, expected, actual *big.Int) {
	assert.Equal(t, 0, expected.Cmp(actual), "expected %s, actual %s", expected, actual)
}

func TestSlotClock(t *testing.T) {
	clock, err := NewSlotClock(&common.AuctionConstants{
		BlocksPerSlot:   common.AuctionBlocksPerSlot,
		GenesisBlockNum: genesisBlock,
	})
	require.NoError(t, err)

	slot, err := clock.SlotNum(genesisBlock - 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), slot)
	slot, err = clock.SlotNum(genesisBlock + 41)
	require.NoError(t, err)
	assert.Equal(t, int64(1), slot)
	slot, err = clock.SlotNum(genesisBlock + 39)
	require.NoError(t, err)
	assert.Equal(t, int64(0), slot)
	_, err = clock.SlotNum(-1)
	assert.Equal(t, common.ErrWrongBlockNumber, common.Unwrap(err))

	start, end, err := clock.SlotBlocks(1)
	require.NoError(t, err)
	assert.Equal(t, int64(genesisBlock+40), start)
	assert.Equal(t, int64(genesisBlock+79), end)
	_, _, err = clock.SlotBlocks(1 << 62)
	assert.Equal(t, common.ErrNumOverflow, common.Unwrap(err))

	assert.Equal(t, int64(1), clock.RelativeBlock(genesisBlock+41))
	assert.Equal(t, 5, SlotSet(11))

	_, err = NewSlotClock(&common.AuctionConstants{})
	assert.Error(t, err)
}

func TestInitialize(t *testing.T) {
	ta := newTestAuction(t)
	vars := common.NewAuctionVariables(donationAddr, bootCoordinator, "https://boot.coord")
	err := ta.exec(governanceAddr, func(tx *chain.Tx) error {
		return ta.auction.Initialize(tx, vars)
	})
	assert.Equal(t, common.ErrAlreadyInitialized, common.Unwrap(err))

	k, err := kvdb.NewKVDB(kvdb.Config{InMemory: true})
	require.NoError(t, err)
	c, err := chain.NewChain(chain.Config{}, k)
	require.NoError(t, err)
	require.NoError(t, c.AdvanceTo(genesisBlock+1))
	_, err = c.Execute(governanceAddr, "initialize", func(tx *chain.Tx) error {
		return ta.auction.Initialize(tx, vars)
	})
	assert.Equal(t, common.ErrGenesisBelowMinimal, common.Unwrap(err))

	k2, err := kvdb.NewKVDB(kvdb.Config{InMemory: true})
	require.NoError(t, err)
	c2, err := chain.NewChain(chain.Config{}, k2)
	require.NoError(t, err)
	_, err = c2.Execute(anybody, "initialize", func(tx *chain.Tx) error {
		return ta.auction.Initialize(tx, vars)
	})
	assert.Equal(t, common.ErrOnlyGovernance, common.Unwrap(err))
	invalid := vars.Copy()
	invalid.AllocationRatio = [3]uint16{5000, 5000, 1}
	_, err = c2.Execute(governanceAddr, "initialize", func(tx *chain.Tx) error {
		return ta.auction.Initialize(tx, invalid)
	})
	assert.Equal(t, common.ErrAllocationRatioNotValid, common.Unwrap(err))
	_, err = c2.Execute(bidder1, "bid", func(tx *chain.Tx) error {
		return ta.auction.ProcessBid(tx, 3, e18(11), e18(11), nil)
	})
	assert.Equal(t, common.ErrNotInitialized, common.Unwrap(err))
}

func TestSetCoordinator(t *testing.T) {
	ta := newTestAuction(t)
	err := ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.SetCoordinator(tx, forger1, "")
	})
	assert.Equal(t, common.ErrNotValidURL, common.Unwrap(err))
	require.NoError(t, ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.SetCoordinator(tx, forger2, "https://new.url")
	}))
	ta.call(func(tx *chain.Tx) error {
		coord, err := ta.auction.GetCoordinator(tx, bidder1)
		require.NoError(t, err)
		assert.Equal(t, forger2, coord.Forger)
		assert.Equal(t, "https://new.url", coord.URL)
		coord, err = ta.auction.GetCoordinator(tx, anybody)
		require.NoError(t, err)
		assert.Nil(t, coord)
		return nil
	})

	err = ta.bid(anybody, 3, e18(11))
	assert.Equal(t, common.ErrCoordinatorNotRegistered, common.Unwrap(err))
}

func TestOutbid(t *testing.T) {
	ta := newTestAuction(t)

	require.NoError(t, ta.bid(bidder1, 3, e18(11)))
	err := ta.bid(bidder2, 3, e18(11))
	assert.Equal(t, common.ErrBidMustBeHigher, common.Unwrap(err))

	prevClaimable := ta.claimable(bidder1)
	bid121 := new(big.Int).Mul(big.NewInt(121), big.NewInt(1e17))
	require.NoError(t, ta.bid(bidder2, 3, bid121))
	assertBigEqual(t, new(big.Int).Add(prevClaimable, e18(11)), ta.claimable(bidder1))

	ta.call(func(tx *chain.Tx) error {
		bid, err := ta.auction.GetBid(tx, 3)
		require.NoError(t, err)
		assert.Equal(t, bidder2, bid.Bidder)
		assert.Equal(t, forger2, bid.Forger)
		assertBigEqual(t, bid121, bid.BidValue)
		min, err := ta.auction.GetMinBidBySlot(tx, 3)
		require.NoError(t, err)
		assertBigEqual(t, outbid(bid121, common.AuctionDefaultOutbidding), min)
		return nil
	})
}

func TestBidErrors(t *testing.T) {
	ta := newTestAuction(t)

	// current slot 0, closed auction slots 2
	err := ta.bid(bidder1, 1, e18(11))
	assert.Equal(t, common.ErrAuctionClosed, common.Unwrap(err))
	err = ta.bid(bidder1, common.AuctionDefaultOpenAuctionSlots+1, e18(11))
	assert.Equal(t, common.ErrAuctionNotOpen, common.Unwrap(err))
	require.NoError(t, ta.bid(bidder1, common.AuctionDefaultOpenAuctionSlots, e18(11)))
	err = ta.bid(bidder1, 3, e18(9))
	assert.Equal(t, common.ErrBelowMinimum, common.Unwrap(err))
	err = ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessBid(tx, 3, e18(11), e18(10), nil)
	})
	assert.Equal(t, common.ErrNotEnoughBalance, common.Unwrap(err))

	// not enough balance
	err = ta.bid(bidder1, 4, e18(2000))
	assert.Equal(t, common.ErrTokenTransferFailed, common.Unwrap(err))
	// the failed transfer reverts the bid
	ta.call(func(tx *chain.Tx) error {
		bid, err := ta.auction.GetBid(tx, 4)
		require.NoError(t, err)
		assert.Nil(t, bid)
		return nil
	})

	// advance to slot 2: slot 3 is closed
	require.NoError(t, ta.chain.AdvanceTo(genesisBlock+2*common.AuctionBlocksPerSlot))
	err = ta.bid(bidder1, 3, e18(11))
	assert.Equal(t, common.ErrAuctionClosed, common.Unwrap(err))
	ta.call(func(tx *chain.Tx) error {
		_, err := ta.auction.GetMinBidBySlot(tx, 3)
		assert.Equal(t, common.ErrAuctionClosed, common.Unwrap(err))
		return nil
	})
}

func TestBidExcessIsClaimable(t *testing.T) {
	ta := newTestAuction(t)
	require.NoError(t, ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessBid(tx, 3, e18(11), e18(15), nil)
	}))
	assertBigEqual(t, e18(4), ta.claimable(bidder1))
	assertBigEqual(t, e18(15), ta.balance(auctionAddr))
	assertBigEqual(t, e18(985), ta.balance(bidder1))
}

func TestValueConservation(t *testing.T) {
	ta := newTestAuction(t)
	const slot = 7
	bidders := []ethCommon.Address{bidder1, bidder2}
	refunds := big.NewInt(0)
	var amounts []*big.Int
	for i := 0; i < 10; i++ {
		var amount *big.Int
		ta.call(func(tx *chain.Tx) error {
			var err error
			amount, err = ta.auction.GetMinBidBySlot(tx, slot)
			return err
		})
		amount.Add(amount, big.NewInt(int64(i)))
		before := new(big.Int).Add(ta.claimable(bidder1), ta.claimable(bidder2))
		require.NoError(t, ta.bid(bidders[i%2], slot, amount))
		after := new(big.Int).Add(ta.claimable(bidder1), ta.claimable(bidder2))
		refunds.Add(refunds, new(big.Int).Sub(after, before))
		amounts = append(amounts, amount)
	}
	allButLast := big.NewInt(0)
	for _, amount := range amounts[:len(amounts)-1] {
		allButLast.Add(allButLast, amount)
	}
	assertBigEqual(t, allButLast, refunds)
	ta.call(func(tx *chain.Tx) error {
		bid, err := ta.auction.GetBid(tx, slot)
		require.NoError(t, err)
		assertBigEqual(t, amounts[len(amounts)-1], bid.BidValue)
		return nil
	})
	// the auction holds exactly the claimable balances and the live bid
	held := new(big.Int).Add(refunds, amounts[len(amounts)-1])
	assertBigEqual(t, held, ta.balance(auctionAddr))
}

func TestClaimHEZ(t *testing.T) {
	ta := newTestAuction(t)
	require.NoError(t, ta.bid(bidder1, 3, e18(11)))
	require.NoError(t, ta.bid(bidder2, 3, e18(20)))

	before := ta.balance(bidder1)
	receipt, err := ta.chain.Execute(bidder1, "claimHEZ", func(tx *chain.Tx) error {
		return ta.auction.ClaimHEZ(tx)
	})
	require.NoError(t, err)
	assert.Equal(t, EventHEZClaimed, receipt.Events[len(receipt.Events)-1].Name)
	assertBigEqual(t, new(big.Int).Add(before, e18(11)), ta.balance(bidder1))
	assertBigEqual(t, big.NewInt(0), ta.claimable(bidder1))

	err = ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ClaimHEZ(tx)
	})
	assert.Equal(t, common.ErrNoClaimableBalance, common.Unwrap(err))
	assertBigEqual(t, new(big.Int).Add(before, e18(11)), ta.balance(bidder1))
}

func TestMultiBid(t *testing.T) {
	ta := newTestAuction(t)
	require.NoError(t, ta.exec(governanceAddr, func(tx *chain.Tx) error {
		return ta.auction.ChangeDefaultSlotSetBid(tx, 0, e18(123456789))
	}))

	allSets := [common.AuctionSlotSets]bool{true, true, true, true, true, true}
	before := ta.balance(bidder1)
	require.NoError(t, ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessMultiBid(tx, e18(100), 5, 10, allSets, e18(15), big.NewInt(0), nil)
	}))
	ta.call(func(tx *chain.Tx) error {
		for slot := int64(5); slot <= 10; slot++ {
			bid, err := ta.auction.GetBid(tx, slot)
			require.NoError(t, err)
			if SlotSet(slot) == 0 {
				assert.Nil(t, bid)
				continue
			}
			require.NotNil(t, bid)
			assertBigEqual(t, common.AuctionInitialMinimalBidding, bid.BidValue)
		}
		return nil
	})
	// only the placed bids are transferred
	assertBigEqual(t, new(big.Int).Sub(before, e18(50)), ta.balance(bidder1))
	assertBigEqual(t, big.NewInt(0), ta.claimable(bidder1))

	// minBid raises the bids, maxBid skips the slots that are too expensive
	require.NoError(t, ta.bid(bidder2, 20, e18(14)))
	require.NoError(t, ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessMultiBid(tx, e18(100), 19, 21, allSets, e18(15), e18(12), nil)
	}))
	ta.call(func(tx *chain.Tx) error {
		bid, err := ta.auction.GetBid(tx, 19)
		require.NoError(t, err)
		assertBigEqual(t, e18(12), bid.BidValue)
		bid, err = ta.auction.GetBid(tx, 20)
		require.NoError(t, err)
		assert.Equal(t, bidder2, bid.Bidder)
		bid, err = ta.auction.GetBid(tx, 21)
		require.NoError(t, err)
		assertBigEqual(t, e18(12), bid.BidValue)
		return nil
	})

	err := ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessMultiBid(tx, e18(100), 30, 40, allSets, e18(10), e18(11), nil)
	})
	assert.Equal(t, common.ErrMaxBidLowerThanMinBid, common.Unwrap(err))
	err = ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessMultiBid(tx, e18(30), 30, 40, allSets, e18(15), e18(10), nil)
	})
	assert.Equal(t, common.ErrNotEnoughBalance, common.Unwrap(err))
	err = ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessMultiBid(tx, e18(100), 1, 4, allSets, e18(15), e18(10), nil)
	})
	assert.Equal(t, common.ErrAuctionClosed, common.Unwrap(err))
	err = ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessMultiBid(tx, e18(100), 4320, 4321, allSets, e18(15), e18(10), nil)
	})
	assert.Equal(t, common.ErrAuctionNotOpen, common.Unwrap(err))
	err = ta.exec(bidder1, func(tx *chain.Tx) error {
		return ta.auction.ProcessMultiBid(tx, e18(100), 10, 9, allSets, e18(15), e18(10), nil)
	})
	assert.Equal(t, common.ErrNotValidSlotRange, common.Unwrap(err))
}

func TestGovernanceSetters(t *testing.T) {
	ta := newTestAuction(t)
	gov := func(fn func(tx *chain.Tx) error) error {
		return ta.exec(governanceAddr, fn)
	}

	err := ta.exec(anybody, func(tx *chain.Tx) error {
		return ta.auction.SetOutbidding(tx, 500)
	})
	assert.Equal(t, common.ErrOnlyGovernance, common.Unwrap(err))

	for _, ratio := range [][3]uint16{{4000, 4000, 2001}, {0, 0, 0}, {10000, 1, 0}} {
		ratio := ratio
		err := gov(func(tx *chain.Tx) error { return ta.auction.SetAllocationRatio(tx, ratio) })
		assert.Equal(t, common.ErrAllocationRatioNotValid, common.Unwrap(err))
	}
	require.NoError(t, gov(func(tx *chain.Tx) error {
		return ta.auction.SetAllocationRatio(tx, [3]uint16{3000, 3000, 4000})
	}))

	err = gov(func(tx *chain.Tx) error { return ta.auction.SetOutbidding(tx, 0) })
	assert.Equal(t, common.ErrOutbiddingNotValid, common.Unwrap(err))
	err = gov(func(tx *chain.Tx) error { return ta.auction.SetOutbidding(tx, 10001) })
	assert.Equal(t, common.ErrOutbiddingNotValid, common.Unwrap(err))
	require.NoError(t, gov(func(tx *chain.Tx) error { return ta.auction.SetOutbidding(tx, 10000) }))

	err = gov(func(tx *chain.Tx) error { return ta.auction.SetSlotDeadline(tx, 41) })
	assert.Equal(t, common.ErrGreaterThanBlocksPerSlot, common.Unwrap(err))
	require.NoError(t, gov(func(tx *chain.Tx) error { return ta.auction.SetSlotDeadline(tx, 40) }))

	err = gov(func(tx *chain.Tx) error { return ta.auction.SetDonationAddress(tx, common.EmptyAddr) })
	assert.Equal(t, common.ErrNotValidAddress, common.Unwrap(err))
	require.NoError(t, gov(func(tx *chain.Tx) error { return ta.auction.SetDonationAddress(tx, anybody) }))
	require.NoError(t, gov(func(tx *chain.Tx) error {
		return ta.auction.SetBootCoordinator(tx, forger2, "https://boot2")
	}))
	require.NoError(t, gov(func(tx *chain.Tx) error { return ta.auction.SetOpenAuctionSlots(tx, 100) }))
	require.NoError(t, gov(func(tx *chain.Tx) error { return ta.auction.SetClosedAuctionSlots(tx, 3) }))

	err = gov(func(tx *chain.Tx) error { return ta.auction.ChangeDefaultSlotSetBid(tx, 6, e18(1)) })
	assert.Equal(t, common.ErrNotValidSlotSet, common.Unwrap(err))
	require.NoError(t, gov(func(tx *chain.Tx) error {
		return ta.auction.ChangeDefaultSlotSetBid(tx, 2, big.NewInt(0))
	}))
	err = gov(func(tx *chain.Tx) error { return ta.auction.ChangeDefaultSlotSetBid(tx, 2, e18(1)) })
	assert.Equal(t, common.ErrSlotDecentralized, common.Unwrap(err))

	ta.call(func(tx *chain.Tx) error {
		vars, err := ta.auction.GetVariables(tx)
		require.NoError(t, err)
		assert.Equal(t, [3]uint16{3000, 3000, 4000}, vars.AllocationRatio)
		assert.Equal(t, uint16(10000), vars.Outbidding)
		assert.Equal(t, uint8(40), vars.SlotDeadline)
		assert.Equal(t, anybody, vars.DonationAddress)
		assert.Equal(t, forger2, vars.BootCoordinator)
		assert.Equal(t, "https://boot2", vars.BootCoordinatorURL)
		assert.Equal(t, uint16(100), vars.OpenAuctionSlots)
		assert.Equal(t, uint16(3), vars.ClosedAuctionSlots)
		assert.Equal(t, 0, vars.DefaultSlotSetBid[2].Sign())
		return nil
	})
}

func TestClosedMinBidIsFrozen(t *testing.T) {
	ta := newTestAuction(t)
	require.NoError(t, ta.bid(bidder1, 3, e18(11)))
	require.NoError(t, ta.bid(bidder1, 4, e18(11)))
	// slot 2: slots 2 and 3 are closed, slot 4 is open
	require.NoError(t, ta.chain.AdvanceTo(genesisBlock+2*common.AuctionBlocksPerSlot))
	require.NoError(t, ta.exec(governanceAddr, func(tx *chain.Tx) error {
		if err := ta.auction.ChangeDefaultSlotSetBid(tx, 3, e18(50)); err != nil {
			return err
		}
		return ta.auction.ChangeDefaultSlotSetBid(tx, 4, e18(50))
	}))
	ta.call(func(tx *chain.Tx) error {
		slot3, err := ta.auction.GetSlot(tx, 3)
		require.NoError(t, err)
		assertBigEqual(t, common.AuctionInitialMinimalBidding, slot3.DefaultSlotBid)
		assert.False(t, slot3.BootCoord)
		assert.Equal(t, forger1, slot3.Forger)
		slot4, err := ta.auction.GetSlot(tx, 4)
		require.NoError(t, err)
		assertBigEqual(t, e18(50), slot4.DefaultSlotBid)
		assert.True(t, slot4.BootCoord)
		assert.Equal(t, bootCoordinator, slot4.Forger)
		return nil
	})
}

func TestCanForge(t *testing.T) {
	ta := newTestAuction(t)
	require.NoError(t, ta.bid(bidder1, 3, e18(11)))

	_, err := ta.canForge(forger1, -1)
	assert.Equal(t, common.ErrWrongBlockNumber, common.Unwrap(err))
	_, err = ta.canForge(bootCoordinator, genesisBlock-1)
	assert.Equal(t, common.ErrAuctionNotStarted, common.Unwrap(err))

	candidates := []ethCommon.Address{forger1, forger2, bootCoordinator, anybody}
	for slot := int64(2); slot <= 4; slot++ {
		for relative := int64(0); relative < common.AuctionBlocksPerSlot; relative++ {
			blockNum := genesisBlock + slot*common.AuctionBlocksPerSlot + relative
			var allowed []ethCommon.Address
			for _, c := range candidates {
				ok, err := ta.canForge(c, blockNum)
				require.NoError(t, err)
				if ok {
					allowed = append(allowed, c)
				}
			}
			if relative >= common.AuctionDefaultSlotDeadline {
				assert.Equal(t, candidates, allowed)
			} else if slot == 3 {
				assert.Equal(t, []ethCommon.Address{forger1}, allowed)
			} else {
				assert.Equal(t, []ethCommon.Address{bootCoordinator}, allowed)
			}
		}
	}

	// a raised minimum invalidates the bid of an open slot
	require.NoError(t, ta.exec(governanceAddr, func(tx *chain.Tx) error {
		return ta.auction.ChangeDefaultSlotSetBid(tx, 3, e18(12))
	}))
	ok, err := ta.canForge(forger1, genesisBlock+3*common.AuctionBlocksPerSlot)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = ta.canForge(bootCoordinator, genesisBlock+3*common.AuctionBlocksPerSlot)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForgeSettlement(t *testing.T) {
	ta := newTestAuction(t)
	bid121 := new(big.Int).Mul(big.NewInt(121), big.NewInt(1e17))
	require.NoError(t, ta.bid(bidder1, 3, e18(11)))
	require.NoError(t, ta.bid(bidder2, 3, bid121))
	require.NoError(t, ta.bid(bidder1, 4, e18(11)))
	// the bid of slot 4 falls below the minimum
	require.NoError(t, ta.exec(governanceAddr, func(tx *chain.Tx) error {
		return ta.auction.ChangeDefaultSlotSetBid(tx, 4, e18(123456789))
	}))

	require.NoError(t, ta.chain.AdvanceTo(genesisBlock+3*common.AuctionBlocksPerSlot))
	err := ta.exec(anybody, func(tx *chain.Tx) error {
		_, err := ta.auction.Forge(tx, forger1)
		return err
	})
	assert.Equal(t, common.ErrCannotForge, common.Unwrap(err))

	var allocation *common.ForgeAllocation
	require.NoError(t, ta.exec(anybody, func(tx *chain.Tx) error {
		var err error
		allocation, err = ta.auction.Forge(tx, forger2)
		return err
	}))
	require.NotNil(t, allocation)
	donation := new(big.Int).Mul(bid121, big.NewInt(4000))
	donation.Div(donation, big.NewInt(10000))
	governance := new(big.Int).Mul(bid121, big.NewInt(2000))
	governance.Div(governance, big.NewInt(10000))
	burn := new(big.Int).Sub(bid121, donation)
	burn.Sub(burn, governance)
	assertBigEqual(t, donation, allocation.DonationAmount)
	assertBigEqual(t, governance, allocation.GovernanceAmount)
	assertBigEqual(t, burn, allocation.BurnAmount)
	assertBigEqual(t, donation, ta.claimable(donationAddr))
	assertBigEqual(t, governance, ta.claimable(governanceAddr))
	assertBigEqual(t, burn, ta.claimable(common.AuctionBurnAddress))

	// second forge of the slot: no settlement
	require.NoError(t, ta.exec(anybody, func(tx *chain.Tx) error {
		var err error
		allocation, err = ta.auction.Forge(tx, forger2)
		return err
	}))
	assert.Nil(t, allocation)
	assertBigEqual(t, donation, ta.claimable(donationAddr))
	ta.call(func(tx *chain.Tx) error {
		slot, err := ta.auction.GetSlot(tx, 3)
		require.NoError(t, err)
		assert.True(t, slot.ForgerCommitment)
		return nil
	})

	// the boot coordinator forges slot 4 and its bid is refunded
	require.NoError(t, ta.chain.AdvanceTo(genesisBlock+4*common.AuctionBlocksPerSlot))
	before := ta.claimable(bidder1)
	require.NoError(t, ta.exec(anybody, func(tx *chain.Tx) error {
		var err error
		allocation, err = ta.auction.Forge(tx, bootCoordinator)
		return err
	}))
	assert.Nil(t, allocation)
	assertBigEqual(t, new(big.Int).Add(before, e18(11)), ta.claimable(bidder1))
}

func TestForgeSettlesOnlyWinner(t *testing.T) {
	ta := newTestAuction(t)
	require.NoError(t, ta.bid(bidder1, 3, e18(11)))

	// after the deadline anybody forges, but the bid is left unsettled
	require.NoError(t, ta.chain.AdvanceTo(genesisBlock+3*common.AuctionBlocksPerSlot+
		common.AuctionDefaultSlotDeadline))
	var allocation *common.ForgeAllocation
	require.NoError(t, ta.exec(anybody, func(tx *chain.Tx) error {
		var err error
		allocation, err = ta.auction.Forge(tx, anybody)
		return err
	}))
	assert.Nil(t, allocation)
	assertBigEqual(t, big.NewInt(0), ta.claimable(donationAddr))
	assertBigEqual(t, big.NewInt(0), ta.claimable(bidder1))

	// the winner forging later in the slot settles it
	require.NoError(t, ta.exec(anybody, func(tx *chain.Tx) error {
		var err error
		allocation, err = ta.auction.Forge(tx, forger1)
		return err
	}))
	require.NotNil(t, allocation)
	total := new(big.Int).Add(allocation.BurnAmount, allocation.DonationAmount)
	total.Add(total, allocation.GovernanceAmount)
	assertBigEqual(t, e18(11), total)
	assertBigEqual(t, allocation.DonationAmount, ta.claimable(donationAddr))
}

func TestAllocate(t *testing.T) {
	a := Allocate(big.NewInt(10001), [3]uint16{4000, 4000, 2000})
	assertBigEqual(t, big.NewInt(4000), a.DonationAmount)
	assertBigEqual(t, big.NewInt(2000), a.GovernanceAmount)
	assertBigEqual(t, big.NewInt(4001), a.BurnAmount)
}

func TestBidWithPermit(t *testing.T) {
	ta := newTestAuction(t)
	sk, err := ethCrypto.HexToECDSA("fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19")
	require.NoError(t, err)
	owner := ethCrypto.PubkeyToAddress(sk.PublicKey)
	signHash := func(hash []byte) ([]byte, error) {
		return ethCrypto.Sign(hash, sk)
	}
	require.NoError(t, ta.exec(owner, func(tx *chain.Tx) error {
		if err := ta.token.Mint(tx, owner, e18(100)); err != nil {
			return err
		}
		return ta.auction.SetCoordinator(tx, owner, "https://owner")
	}))

	newPermit := func(owner, spender ethCommon.Address, value *big.Int) []byte {
		p := &common.Permit{
			Owner:    owner,
			Spender:  spender,
			Value:    value,
			Deadline: new(big.Int).SetUint64(1 << 62),
		}
		require.NoError(t, ta.token.SignPermit(signHash, ta.chain.ChainID(), p, big.NewInt(0)))
		data, err := p.Bytes()
		require.NoError(t, err)
		return data
	}
	bidWithPermit := func(data []byte) error {
		return ta.exec(owner, func(tx *chain.Tx) error {
			return ta.auction.ProcessBid(tx, 3, e18(11), e18(11), data)
		})
	}

	err = bidWithPermit([]byte{0x01, 0x02})
	assert.Equal(t, common.ErrNotValidCall, common.Unwrap(err))
	err = bidWithPermit(newPermit(bidder1, auctionAddr, e18(11)))
	assert.Equal(t, common.ErrPermitOwner, common.Unwrap(err))
	err = bidWithPermit(newPermit(owner, anybody, e18(11)))
	assert.Equal(t, common.ErrPermitSpender, common.Unwrap(err))
	err = bidWithPermit(newPermit(owner, auctionAddr, e18(12)))
	assert.Equal(t, common.ErrWrongAmount, common.Unwrap(err))

	// tampered signature
	data := newPermit(owner, auctionAddr, e18(11))
	data[len(data)-1] ^= 0x01
	err = bidWithPermit(data)
	assert.Equal(t, common.ErrPermitFailed, common.Unwrap(err))

	require.NoError(t, bidWithPermit(newPermit(owner, auctionAddr, e18(11))))
	assertBigEqual(t, e18(89), ta.balance(owner))
}
