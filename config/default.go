package config

// DefaultValues are the default values of the Node configuration.  They
// describe a single node devnet.
const DefaultValues = `
[Log]
Level = "info"
Out = ["stdout"]

[Chain]
ChainID = 5
BlockTime = "2s"
CheckpointInterval = 1
BlocksKeep = 1024
Log = false

[StateDB]
Path = "/tmp/forge-auction/statedb"
Keep = 256
InMemory = false

[PostgreSQL]
PortWrite = 5432
HostWrite = "localhost"
UserWrite = "forge"
PasswordWrite = "yourpasswordhere"
NameWrite = "forge"

[Auction]
GenesisBlockNum = 20
TokenAddress = "0x00000000000000000000000000000000000000A1"
AuctionAddress = "0x00000000000000000000000000000000000000A2"
DonationAddress = "0x00000000000000000000000000000000000000A3"
BootCoordinator = "0x00000000000000000000000000000000000000A4"
BootCoordinatorURL = "http://localhost:8086"

[Rollup]
Address = "0x00000000000000000000000000000000000000A5"
GovernanceAddress = "0x00000000000000000000000000000000000000A6"
ForgeL1L2BatchTimeout = 10
AbsoluteMaxL1L2BatchTimeout = 240
MaxPendingQueues = 65536

[[Rollup.Verifiers]]
URL = ""
Timeout = "30s"
MaxTx = 512
NLevels = 32

[Token]
Name = "Tokamak Network"
Symbol = "TON"

[Synchronizer]
SyncLoopInterval = "1s"
StatsUpdateBlockNumDiffThreshold = 100
StatsUpdateFrequencyDivider = 100

[API]
Address = "localhost:8086"
Explorer = true
MaxSQLConnections = 100
SQLConnectionTimeout = "2s"
`
